package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/tutorlabs/internal/chat"
	"github.com/ashureev/tutorlabs/internal/curriculum"
	"github.com/ashureev/tutorlabs/internal/domain"
	"github.com/ashureev/tutorlabs/internal/orchestrator"
	"github.com/ashureev/tutorlabs/internal/store"
)

type fakeTurns struct {
	st       store.Store
	err      error
	welcomes int
}

func (f *fakeTurns) Chat(ctx context.Context, sessionID, message, _ string) (orchestrator.TurnResult, *domain.Session, error) {
	if f.err != nil {
		return orchestrator.TurnResult{}, nil, f.err
	}
	sess, err := f.st.Get(ctx, sessionID)
	if err != nil {
		return orchestrator.TurnResult{}, nil, err
	}
	sess.TurnCount++
	return orchestrator.TurnResult{
		Response:          "reply to " + message,
		Intent:            "question",
		SpecialistsCalled: []string{"explainer"},
		StateChanged:      true,
	}, sess, nil
}

func (f *fakeTurns) Welcome(context.Context, *domain.Session, string) string {
	f.welcomes++
	return "Welcome!"
}

type fixture struct {
	router  http.Handler
	store   *store.MemoryStore
	turns   *fakeTurns
	log     *orchestrator.AgentLog
	deleted []string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	topic := &domain.Topic{
		TopicID:    "math_fractions",
		TopicName:  "Fractions",
		Subject:    "Mathematics",
		GradeLevel: 5,
		StudyPlan: domain.StudyPlan{Steps: []domain.StudyPlanStep{
			{StepID: 1, Type: domain.StepExplain, Concept: "fractions"},
			{StepID: 2, Type: domain.StepCheck, Concept: "fractions"},
		}},
	}
	catalog, err := curriculum.New(topic)
	require.NoError(t, err)

	f := &fixture{
		store: store.NewMemory(time.Hour),
		log:   orchestrator.NewAgentLog(0),
	}
	f.turns = &fakeTurns{st: f.store}
	h := NewHandler(Options{
		Sessions:         f.store,
		Topics:           catalog,
		Turns:            f.turns,
		AgentLogs:        f.log,
		Version:          "1.2.3",
		MaxHistory:       6,
		OnSessionDeleted: func(id string) { f.deleted = append(f.deleted, id) },
	})
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	f.router = r
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) newSession(t *testing.T) *domain.Session {
	t.Helper()
	w := f.do(t, http.MethodPost, "/api/sessions", map[string]any{"topic_id": "math_fractions"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp CreateSessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	sess, err := f.store.Get(context.Background(), resp.SessionID)
	require.NoError(t, err)
	return sess
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	JSON(w, http.StatusOK, map[string]string{"foo": "bar"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "bar", decode[map[string]string](t, w)["foo"])
}

func TestHealthAndTopics(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]string{"status": "healthy", "version": "1.2.3"}, decode[map[string]string](t, w))

	w = f.do(t, http.MethodGet, "/api/topics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	topics := decode[[]curriculum.Summary](t, w)
	require.Len(t, topics, 1)
	assert.Equal(t, "math_fractions", topics[0].TopicID)
	assert.Equal(t, 2, topics[0].TotalSteps)
}

func TestCreateSession(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/sessions", map[string]any{
		"topic_id":        "math_fractions",
		"student_context": map[string]any{"grade": 7, "language_level": "simple"},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	resp := decode[CreateSessionResponse](t, w)
	assert.True(t, strings.HasPrefix(resp.SessionID, "sess_"))
	assert.Equal(t, "Fractions", resp.TopicName)
	assert.Equal(t, 2, resp.TotalSteps)
	assert.Equal(t, "Welcome!", resp.WelcomeMessage)

	sess, err := f.store.Get(context.Background(), resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 7, sess.Student.Grade)
	assert.Equal(t, domain.LanguageSimple, sess.Student.LanguageLevel)
	assert.Equal(t, "CBSE", sess.Student.Board)
	assert.Equal(t, 6, sess.MaxHistory)
	assert.Equal(t, map[string]float64{"fractions": 0}, sess.Mastery)
}

func TestCreateSession_Errors(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/sessions", map[string]any{"topic_id": "nope"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Topic not found: nope", decode[map[string]string](t, w)["error"])

	w = f.do(t, http.MethodPost, "/api/sessions", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/sessions", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetSession(t *testing.T) {
	f := newFixture(t)
	sess := f.newSession(t)

	w := f.do(t, http.MethodGet, "/api/sessions/"+sess.SessionID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	state := decode[domain.StateView](t, w)
	assert.Equal(t, sess.SessionID, state.SessionID)
	assert.Equal(t, 1, state.CurrentStep)
	assert.Equal(t, 2, state.TotalSteps)

	w = f.do(t, http.MethodGet, "/api/sessions/"+sess.SessionID+"/detailed", nil)
	require.Equal(t, http.StatusOK, w.Code)
	detailed := decode[domain.DetailedState](t, w)
	require.NotNil(t, detailed.Topic)
	assert.Equal(t, "math_fractions", detailed.Topic.TopicID)
	assert.Len(t, detailed.MasteryItems, 1)

	w = f.do(t, http.MethodGet, "/api/sessions/sess_missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetSession_Expired(t *testing.T) {
	f := newFixture(t)
	sess := f.newSession(t)
	sess.UpdatedAt = time.Now().Add(-2 * time.Hour)
	require.NoError(t, f.store.Save(context.Background(), sess))

	w := f.do(t, http.MethodGet, "/api/sessions/"+sess.SessionID+"/detailed", nil)
	assert.Equal(t, http.StatusGone, w.Code)
	assert.Equal(t, "Session expired", decode[map[string]string](t, w)["error"])
}

func TestDeleteSession(t *testing.T) {
	f := newFixture(t)
	sess := f.newSession(t)

	w := f.do(t, http.MethodDelete, "/api/sessions/"+sess.SessionID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []string{sess.SessionID}, f.deleted)

	w = f.do(t, http.MethodDelete, "/api/sessions/"+sess.SessionID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetAgentLogs(t *testing.T) {
	f := newFixture(t)
	sess := f.newSession(t)
	for i, agent := range []string{"orchestrator", "evaluator", "explainer", "orchestrator"} {
		turn := "turn_1"
		if i == 3 {
			turn = "turn_2"
		}
		f.log.Record(orchestrator.AgentLogEntry{SessionID: sess.SessionID, TurnID: turn, Agent: agent, Event: orchestrator.EventCompleted})
	}
	base := "/api/sessions/" + sess.SessionID + "/agent-logs"

	resp := decode[AgentLogsResponse](t, f.do(t, http.MethodGet, base, nil))
	assert.Equal(t, 4, resp.TotalCount)

	resp = decode[AgentLogsResponse](t, f.do(t, http.MethodGet, base+"?limit=2", nil))
	require.Len(t, resp.Logs, 2)
	assert.Equal(t, "turn_2", resp.Logs[1].TurnID)

	resp = decode[AgentLogsResponse](t, f.do(t, http.MethodGet, base+"?turn_id=turn_1", nil))
	assert.Equal(t, "turn_1", resp.TurnID)
	assert.Equal(t, 3, resp.TotalCount)

	resp = decode[AgentLogsResponse](t, f.do(t, http.MethodGet, base+"?agent_name=orchestrator", nil))
	assert.Equal(t, 2, resp.TotalCount)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, base+"?limit=abc", nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/sessions/sess_x/agent-logs", nil).Code)

	other := f.newSession(t)
	resp = decode[AgentLogsResponse](t, f.do(t, http.MethodGet, "/api/sessions/"+other.SessionID+"/agent-logs", nil))
	assert.NotNil(t, resp.Logs)
	assert.Zero(t, resp.TotalCount)
}

func TestPostMessage(t *testing.T) {
	f := newFixture(t)
	sess := f.newSession(t)
	path := "/api/sessions/" + sess.SessionID + "/messages"

	w := f.do(t, http.MethodPost, path, MessageRequest{Message: "what is a half?"})
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[MessageResponse](t, w)
	assert.Equal(t, "reply to what is a half?", resp.Response)
	assert.Equal(t, "question", resp.Intent)
	assert.Equal(t, []string{"explainer"}, resp.SpecialistsCalled)
	assert.Equal(t, sess.SessionID, resp.State.SessionID)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	assert.Contains(t, raw, "response")
	assert.Contains(t, raw, "state_changed")
}

func TestPostMessage_Errors(t *testing.T) {
	f := newFixture(t)
	sess := f.newSession(t)
	path := "/api/sessions/" + sess.SessionID + "/messages"

	tests := []struct {
		err  error
		code int
	}{
		{chat.ErrEmptyMessage, http.StatusBadRequest},
		{chat.ErrRateLimited, http.StatusTooManyRequests},
		{store.ErrNotFound, http.StatusNotFound},
		{store.ErrExpired, http.StatusGone},
		{assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			f.turns.err = tt.err
			assert.Equal(t, tt.code, f.do(t, http.MethodPost, path, MessageRequest{Message: "x"}).Code)
		})
	}
}
