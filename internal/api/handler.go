// Package api provides HTTP handlers for the tutor REST API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/tutorlabs/internal/curriculum"
	"github.com/ashureev/tutorlabs/internal/domain"
	"github.com/ashureev/tutorlabs/internal/orchestrator"
	"github.com/ashureev/tutorlabs/internal/store"
)

// maxRequestBodySize bounds JSON request bodies (1MB).
const maxRequestBodySize = 1 << 20

// Topics is the read-only topic catalog.
type Topics interface {
	List() []curriculum.Summary
	Get(id string) (*domain.Topic, error)
}

// Turns runs chat turns and welcome messages.
type Turns interface {
	Chat(ctx context.Context, sessionID, message, channel string) (orchestrator.TurnResult, *domain.Session, error)
	Welcome(ctx context.Context, s *domain.Session, channel string) string
}

// AgentLogs is the queryable agent execution log.
type AgentLogs interface {
	Query(sessionID string, f orchestrator.AgentLogFilter) []orchestrator.AgentLogEntry
}

// Options are the dependencies of the REST handlers.
type Options struct {
	Sessions  store.Store
	Topics    Topics
	Turns     Turns
	AgentLogs AgentLogs
	Version   string
	// MaxHistory is the conversation window of new sessions.
	MaxHistory int
	// OnSessionDeleted runs after a session is deleted.
	OnSessionDeleted func(sessionID string)
}

// Handler provides the REST endpoints.
type Handler struct {
	sessions  store.Store
	topics    Topics
	turns     Turns
	agentLogs AgentLogs
	version   string
	maxHist   int
	onDelete  func(string)
}

// NewHandler creates a new Handler.
func NewHandler(opts Options) *Handler {
	if opts.Version == "" {
		opts.Version = "dev"
	}
	if opts.MaxHistory <= 0 {
		opts.MaxHistory = domain.DefaultMaxHistory
	}
	return &Handler{
		sessions:  opts.Sessions,
		topics:    opts.Topics,
		turns:     opts.Turns,
		agentLogs: opts.AgentLogs,
		version:   opts.Version,
		maxHist:   opts.MaxHistory,
		onDelete:  opts.OnSessionDeleted,
	}
}

// RegisterRoutes registers the REST routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Get("/topics", h.ListTopics)
		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", h.CreateSession)
			r.Route("/{session_id}", func(r chi.Router) {
				r.Get("/", h.GetSession)
				r.Delete("/", h.DeleteSession)
				r.Get("/detailed", h.GetSessionDetailed)
				r.Get("/agent-logs", h.GetAgentLogs)
				r.Post("/messages", h.PostMessage)
			})
		})
	})
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to encode response", "error", err)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		Error(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// sessionError writes the response for a store lookup failure.
func sessionError(w http.ResponseWriter, sessionID string, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		Error(w, http.StatusNotFound, "Session not found")
	case errors.Is(err, store.ErrExpired):
		Error(w, http.StatusGone, "Session expired")
	default:
		slog.Error("Session lookup failed", "session_id", sessionID, "error", err)
		Error(w, http.StatusInternalServerError, "internal error")
	}
}
