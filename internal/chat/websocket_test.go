package chat

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWSServer(t *testing.T, svc *Service, registry *Registry) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Get("/ws/{session_id}", NewHandler(svc, registry, nil, "*", true).ServeHTTP)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, sessionID string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + sessionID
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) ServerFrame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var f ServerFrame
	require.NoError(t, wsjson.Read(ctx, conn, &f))
	return f
}

func writeFrame(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, wsjson.Write(ctx, conn, v))
}

func TestWebSocket_ConnectSendsStateThenWelcome(t *testing.T) {
	svc, _, _, sess := newTestService(t, &fakeTutor{welcome: "Welcome to fractions!"}, nil)
	srv := newWSServer(t, svc, NewRegistry())
	conn := dial(t, srv, sess.SessionID)

	state := readFrame(t, conn)
	assert.Equal(t, FrameStateUpdate, state.Type)
	require.NotNil(t, state.Payload.State)
	assert.Equal(t, sess.SessionID, state.Payload.State.SessionID)
	assert.Equal(t, 2, state.Payload.State.TotalSteps)
	assert.NotEmpty(t, state.ID)

	welcome := readFrame(t, conn)
	assert.Equal(t, FrameAssistant, welcome.Type)
	assert.Equal(t, "Welcome to fractions!", welcome.Payload.Message)
}

func TestWebSocket_ChatFrameSequence(t *testing.T) {
	svc, _, _, sess := newTestService(t, &fakeTutor{}, nil)
	srv := newWSServer(t, svc, NewRegistry())
	conn := dial(t, srv, sess.SessionID)
	readFrame(t, conn)
	readFrame(t, conn)

	writeFrame(t, conn, ClientFrame{Type: FrameChat, Payload: ClientPayload{Message: "hello"}})
	assert.Equal(t, FrameTyping, readFrame(t, conn).Type)
	reply := readFrame(t, conn)
	assert.Equal(t, FrameAssistant, reply.Type)
	assert.Equal(t, "echo: hello", reply.Payload.Message)
	state := readFrame(t, conn)
	assert.Equal(t, FrameStateUpdate, state.Type)

	writeFrame(t, conn, ClientFrame{Type: FrameGetState})
	assert.Equal(t, FrameStateUpdate, readFrame(t, conn).Type)
}

func TestWebSocket_NoWelcomeAfterFirstTurn(t *testing.T) {
	svc, st, _, sess := newTestService(t, &fakeTutor{}, nil)
	sess.TurnCount = 3
	require.NoError(t, st.Save(context.Background(), sess))
	srv := newWSServer(t, svc, NewRegistry())
	conn := dial(t, srv, sess.SessionID)

	assert.Equal(t, FrameStateUpdate, readFrame(t, conn).Type)
	writeFrame(t, conn, ClientFrame{Type: FrameGetState})
	assert.Equal(t, FrameStateUpdate, readFrame(t, conn).Type, "welcome was not sent")
}

func TestWebSocket_InvalidFrames(t *testing.T) {
	svc, _, _, sess := newTestService(t, &fakeTutor{}, nil)
	srv := newWSServer(t, svc, NewRegistry())
	conn := dial(t, srv, sess.SessionID)
	readFrame(t, conn)
	readFrame(t, conn)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte("not json")))
	f := readFrame(t, conn)
	assert.Equal(t, FrameError, f.Type)
	assert.Contains(t, f.Payload.Error, "Invalid message format")

	writeFrame(t, conn, ClientFrame{Type: "dance"})
	f = readFrame(t, conn)
	assert.Equal(t, FrameError, f.Type)
	assert.Contains(t, f.Payload.Error, "Unknown message type")

	writeFrame(t, conn, ClientFrame{Type: FrameChat})
	assert.Equal(t, FrameTyping, readFrame(t, conn).Type)
	f = readFrame(t, conn)
	assert.Equal(t, FrameError, f.Type)
	assert.Equal(t, "Message is required", f.Payload.Error)
}

func TestWebSocket_UnknownSession(t *testing.T) {
	svc, _, _, _ := newTestService(t, &fakeTutor{}, nil)
	srv := newWSServer(t, svc, NewRegistry())
	conn := dial(t, srv, "sess_nope")

	f := readFrame(t, conn)
	assert.Equal(t, FrameError, f.Type)
	assert.Equal(t, "Session not found", f.Payload.Error)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _, err := conn.Read(ctx)
	assert.Equal(t, websocket.StatusNormalClosure, websocket.CloseStatus(err))
}

func TestWebSocket_SecondConnectionReplacesFirst(t *testing.T) {
	svc, st, _, sess := newTestService(t, &fakeTutor{}, nil)
	sess.TurnCount = 1
	require.NoError(t, st.Save(context.Background(), sess))
	registry := NewRegistry()
	srv := newWSServer(t, svc, registry)

	first := dial(t, srv, sess.SessionID)
	readFrame(t, first)
	second := dial(t, srv, sess.SessionID)
	readFrame(t, second)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _, err := first.Read(ctx)
	assert.Equal(t, websocket.StatusPolicyViolation, websocket.CloseStatus(err))
	assert.Eventually(t, func() bool { return registry.Len() == 1 }, time.Second, 10*time.Millisecond)
}

func TestHandler_CheckOrigin(t *testing.T) {
	h := NewHandler(nil, nil, nil, "https://tutor.example", false)
	req := httptest.NewRequest("GET", "/ws/x", nil)
	assert.True(t, h.checkOrigin(req))
	req.Header.Set("Origin", "https://tutor.example")
	assert.True(t, h.checkOrigin(req))
	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, h.checkOrigin(req))
}
