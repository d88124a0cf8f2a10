package chat

import (
	"log/slog"
	"sync"

	"github.com/coder/websocket"
)

// closer is the part of *websocket.Conn the registry needs.
type closer interface {
	Close(code websocket.StatusCode, reason string) error
}

// Registry keeps at most one live connection per session. Registering a
// new connection closes the one it replaces.
type Registry struct {
	mu     sync.Mutex
	active map[string]closer
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{active: make(map[string]closer)}
}

// Register installs conn for sessionID. The replaced connection is closed
// in the background: a websocket close waits for the peer's handshake and
// must not hold up the new connection or other sessions.
func (m *Registry) Register(sessionID string, conn closer) {
	m.mu.Lock()
	existing, ok := m.active[sessionID]
	m.active[sessionID] = conn
	m.mu.Unlock()

	if ok && existing != conn {
		slog.Info("Chat connection replaced", "session_id", sessionID)
		go func() {
			_ = existing.Close(websocket.StatusPolicyViolation, "session opened elsewhere")
		}()
	}
}

// Unregister removes conn if it is still the live connection.
func (m *Registry) Unregister(sessionID string, conn closer) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if current, ok := m.active[sessionID]; ok && current == conn {
		delete(m.active, sessionID)
	}
}

// Close terminates the connection of one session, if any.
func (m *Registry) Close(sessionID, reason string) {
	m.mu.Lock()
	conn, ok := m.active[sessionID]
	delete(m.active, sessionID)
	m.mu.Unlock()
	if ok {
		_ = conn.Close(websocket.StatusGoingAway, reason)
	}
}

// CloseAll terminates every connection. Used on shutdown.
func (m *Registry) CloseAll() {
	m.mu.Lock()
	conns := m.active
	m.active = make(map[string]closer)
	m.mu.Unlock()

	for sid, conn := range conns {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		slog.Debug("Chat connection closed", "session_id", sid)
	}
}

// Len returns the number of live connections.
func (m *Registry) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}
