// Package chat is the conversational transport of the tutor: the
// WebSocket endpoint, per-session turn serialization, rate limiting and
// the NDJSON conversation log.
package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/tutorlabs/internal/domain"
	"github.com/ashureev/tutorlabs/internal/metrics"
	"github.com/ashureev/tutorlabs/internal/orchestrator"
	"github.com/ashureev/tutorlabs/internal/store"
)

var (
	// ErrRateLimited means the session sent too many messages.
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrEmptyMessage means the chat message was blank.
	ErrEmptyMessage = errors.New("message is required")
)

// Tutor is the orchestrator surface the transport drives.
type Tutor interface {
	ProcessTurn(ctx context.Context, s *domain.Session, message string) orchestrator.TurnResult
	GenerateWelcomeMessage(ctx context.Context, s *domain.Session) string
}

// Service runs chat turns for any transport. It loads the session,
// holds the per-session lock for the whole turn and logs both sides of
// the exchange.
type Service struct {
	sessions store.Store
	tutor    Tutor
	limiter  *RateLimiter
	convLog  ConversationLogger
	metrics  *metrics.Metrics
	logger   *slog.Logger
	locks    *sessionLocks
}

// ServiceOptions configures a Service. Limiter, ConversationLog, Metrics
// and Logger are optional.
type ServiceOptions struct {
	Sessions        store.Store
	Tutor           Tutor
	Limiter         *RateLimiter
	ConversationLog ConversationLogger
	Metrics         *metrics.Metrics
	Logger          *slog.Logger
}

// NewService builds a Service.
func NewService(opts ServiceOptions) *Service {
	if opts.ConversationLog == nil {
		opts.ConversationLog = noopConversationLogger{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{
		sessions: opts.Sessions,
		tutor:    opts.Tutor,
		limiter:  opts.Limiter,
		convLog:  opts.ConversationLog,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
		locks:    newSessionLocks(),
	}
}

// Session loads a session.
func (s *Service) Session(ctx context.Context, id string) (*domain.Session, error) {
	return s.sessions.Get(ctx, id)
}

// Welcome generates and logs the welcome message of a new session.
func (s *Service) Welcome(ctx context.Context, sess *domain.Session, channel string) string {
	msg := s.tutor.GenerateWelcomeMessage(ctx, sess)
	s.convLog.Log(ConversationLogEvent{
		SessionID:  sess.SessionID,
		Channel:    channel,
		Direction:  "outbound",
		EventType:  EventWelcomeMessage,
		ContentRaw: msg,
	})
	return msg
}

// Chat runs one turn. The returned session is the state after the turn.
func (s *Service) Chat(ctx context.Context, sessionID, message, channel string) (orchestrator.TurnResult, *domain.Session, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return orchestrator.TurnResult{}, nil, ErrEmptyMessage
	}
	if s.limiter != nil && !s.limiter.Allow(sessionID) {
		s.metrics.RateLimited()
		s.logger.Warn("Chat rate limit exceeded", "session_id", sessionID, "channel", channel)
		return orchestrator.TurnResult{}, nil, ErrRateLimited
	}

	unlock := s.locks.lock(sessionID)
	defer unlock()

	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return orchestrator.TurnResult{}, nil, err
	}

	s.convLog.Log(ConversationLogEvent{
		SessionID:  sessionID,
		Channel:    channel,
		Direction:  "inbound",
		EventType:  EventStudentMessage,
		ContentRaw: message,
		Meta:       map[string]any{"turn": sess.TurnCount + 1},
	})

	start := time.Now()
	result := s.tutor.ProcessTurn(ctx, sess, message)

	s.convLog.Log(ConversationLogEvent{
		SessionID:  sessionID,
		Channel:    channel,
		Direction:  "outbound",
		EventType:  EventTutorMessage,
		ContentRaw: result.Response,
		Meta: map[string]any{
			"intent":             result.Intent,
			"specialists_called": result.SpecialistsCalled,
			"state_changed":      result.StateChanged,
			"duration_ms":        time.Since(start).Milliseconds(),
		},
	})
	return result, sess, nil
}

// ErrorMessage maps a Chat error to the text shown to the student.
func ErrorMessage(err error) string {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return "Session not found"
	case errors.Is(err, store.ErrExpired):
		return "Session expired"
	case errors.Is(err, ErrRateLimited):
		return "You're sending messages too quickly. Please wait a moment."
	case errors.Is(err, ErrEmptyMessage):
		return "Message is required"
	default:
		return "Server error"
	}
}
