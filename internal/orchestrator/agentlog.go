package orchestrator

import (
	"sync"
	"time"
)

// DefaultAgentLogSize is the number of entries kept per session.
const DefaultAgentLogSize = 200

// Agent log event types.
const (
	EventTurnStarted      = "turn_started"
	EventCompleted        = "completed"
	EventFailed           = "failed"
	EventTimeout          = "timeout"
	EventBlocked          = "blocked"
	EventDecisionMade     = "decision_made"
	EventDecisionFallback = "decision_fallback"
	EventResponseComposed = "response_composed"
	EventTurnCompleted    = "turn_completed"
	EventTurnFailed       = "turn_failed"
)

const maxInputSummary = 100

// AgentLogEntry is one observable step of a turn.
type AgentLogEntry struct {
	Timestamp    time.Time      `json:"timestamp"`
	SessionID    string         `json:"session_id"`
	TurnID       string         `json:"turn_id"`
	Agent        string         `json:"agent_name"`
	Event        string         `json:"event_type"`
	InputSummary string         `json:"input_summary,omitempty"`
	Output       map[string]any `json:"output,omitempty"`
	Reasoning    string         `json:"reasoning,omitempty"`
	DurationMS   int64          `json:"duration_ms,omitempty"`
	Prompt       string         `json:"prompt,omitempty"`
	Model        string         `json:"model,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// AgentLogFilter narrows a query. Zero fields match everything.
type AgentLogFilter struct {
	TurnID string
	Agent  string
	Limit  int
}

// AgentLog keeps the most recent entries of every session in memory.
type AgentLog struct {
	mu      sync.RWMutex
	size    int
	entries map[string][]AgentLogEntry
}

// NewAgentLog returns a log keeping size entries per session.
func NewAgentLog(size int) *AgentLog {
	if size <= 0 {
		size = DefaultAgentLogSize
	}
	return &AgentLog{size: size, entries: make(map[string][]AgentLogEntry)}
}

// Record appends e, dropping the oldest entry of the session when full.
func (l *AgentLog) Record(e AgentLogEntry) {
	if l == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	e.InputSummary = truncate(e.InputSummary, maxInputSummary)

	l.mu.Lock()
	defer l.mu.Unlock()
	list := append(l.entries[e.SessionID], e)
	if len(list) > l.size {
		list = append([]AgentLogEntry(nil), list[len(list)-l.size:]...)
	}
	l.entries[e.SessionID] = list
}

// Query returns the session's entries in order, filtered by f. With a
// limit only the most recent matches are returned.
func (l *AgentLog) Query(sessionID string, f AgentLogFilter) []AgentLogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []AgentLogEntry
	for _, e := range l.entries[sessionID] {
		if f.TurnID != "" && e.TurnID != f.TurnID {
			continue
		}
		if f.Agent != "" && e.Agent != f.Agent {
			continue
		}
		out = append(out, e)
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[len(out)-f.Limit:]
	}
	return out
}

// Recent returns the last n entries of the session.
func (l *AgentLog) Recent(sessionID string, n int) []AgentLogEntry {
	return l.Query(sessionID, AgentLogFilter{Limit: n})
}

// Forget drops all entries of a session.
func (l *AgentLog) Forget(sessionID string) {
	l.mu.Lock()
	delete(l.entries, sessionID)
	l.mu.Unlock()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
