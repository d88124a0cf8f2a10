package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/tutorlabs/internal/chat"
	"github.com/ashureev/tutorlabs/internal/curriculum"
	"github.com/ashureev/tutorlabs/internal/domain"
	"github.com/ashureev/tutorlabs/internal/orchestrator"
)

const defaultAgentLogLimit = 100

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]string{"status": "healthy", "version": h.version})
}

// ListTopics returns the topic summaries.
func (h *Handler) ListTopics(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, h.topics.List())
}

// CreateSessionRequest is the body of POST /api/sessions.
type CreateSessionRequest struct {
	TopicID        string                 `json:"topic_id"`
	StudentContext *domain.StudentContext `json:"student_context,omitempty"`
}

// CreateSessionResponse describes a new session.
type CreateSessionResponse struct {
	SessionID      string `json:"session_id"`
	TopicName      string `json:"topic_name"`
	TotalSteps     int    `json:"total_steps"`
	WelcomeMessage string `json:"welcome_message"`
}

// CreateSession starts a session on a topic.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.TopicID == "" {
		Error(w, http.StatusBadRequest, "topic_id is required")
		return
	}

	topic, err := h.topics.Get(req.TopicID)
	if errors.Is(err, curriculum.ErrTopicNotFound) {
		Error(w, http.StatusNotFound, "Topic not found: "+req.TopicID)
		return
	}
	if err != nil {
		slog.Error("Topic lookup failed", "topic_id", req.TopicID, "error", err)
		Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	profile := domain.DefaultStudentContext()
	if req.StudentContext != nil {
		profile = *req.StudentContext
	}
	sess := domain.NewSession(topic, profile)
	sess.MaxHistory = h.maxHist
	if err := h.sessions.Save(r.Context(), sess); err != nil {
		slog.Error("Failed to save new session", "session_id", sess.SessionID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	slog.Info("Session created", "session_id", sess.SessionID, "topic_id", topic.TopicID)
	JSON(w, http.StatusCreated, CreateSessionResponse{
		SessionID:      sess.SessionID,
		TopicName:      topic.TopicName,
		TotalSteps:     sess.TotalSteps(),
		WelcomeMessage: h.turns.Welcome(r.Context(), sess, chat.ChannelHTTP),
	})
}

// GetSession returns the compact session state.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "session_id")
	sess, err := h.sessions.Get(r.Context(), id)
	if err != nil {
		sessionError(w, id, err)
		return
	}
	JSON(w, http.StatusOK, sess.State())
}

// GetSessionDetailed returns the full session state.
func (h *Handler) GetSessionDetailed(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "session_id")
	sess, err := h.sessions.Get(r.Context(), id)
	if err != nil {
		sessionError(w, id, err)
		return
	}
	JSON(w, http.StatusOK, sess.Detailed())
}

// DeleteSession ends a session.
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "session_id")
	if _, err := h.sessions.Get(r.Context(), id); err != nil {
		sessionError(w, id, err)
		return
	}
	if err := h.sessions.Delete(r.Context(), id); err != nil {
		sessionError(w, id, err)
		return
	}
	if h.onDelete != nil {
		h.onDelete(id)
	}
	slog.Info("Session deleted", "session_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// AgentLogsResponse is the body of GET /api/sessions/{id}/agent-logs.
type AgentLogsResponse struct {
	SessionID  string                       `json:"session_id"`
	TurnID     string                       `json:"turn_id,omitempty"`
	Logs       []orchestrator.AgentLogEntry `json:"logs"`
	TotalCount int                          `json:"total_count"`
}

// GetAgentLogs returns agent execution log entries. With a turn or agent
// filter every match is returned, otherwise the most recent limit.
func (h *Handler) GetAgentLogs(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "session_id")
	if _, err := h.sessions.Get(r.Context(), id); err != nil {
		sessionError(w, id, err)
		return
	}

	q := r.URL.Query()
	filter := orchestrator.AgentLogFilter{
		TurnID: q.Get("turn_id"),
		Agent:  q.Get("agent_name"),
	}
	if filter.TurnID == "" && filter.Agent == "" {
		filter.Limit = defaultAgentLogLimit
		if raw := q.Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				Error(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			filter.Limit = n
		}
	}

	logs := h.agentLogs.Query(id, filter)
	if logs == nil {
		logs = []orchestrator.AgentLogEntry{}
	}
	JSON(w, http.StatusOK, AgentLogsResponse{
		SessionID:  id,
		TurnID:     filter.TurnID,
		Logs:       logs,
		TotalCount: len(logs),
	})
}

// MessageRequest is the body of POST /api/sessions/{id}/messages.
type MessageRequest struct {
	Message string `json:"message"`
}

// MessageResponse is a turn result plus the state after the turn.
type MessageResponse struct {
	orchestrator.TurnResult
	State domain.StateView `json:"state"`
}

// PostMessage runs one turn over plain HTTP.
func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "session_id")
	var req MessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, sess, err := h.turns.Chat(r.Context(), id, req.Message, chat.ChannelHTTP)
	switch {
	case errors.Is(err, chat.ErrEmptyMessage):
		Error(w, http.StatusBadRequest, "message is required")
		return
	case errors.Is(err, chat.ErrRateLimited):
		Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	case err != nil:
		sessionError(w, id, err)
		return
	}
	JSON(w, http.StatusOK, MessageResponse{TurnResult: result, State: sess.State()})
}
