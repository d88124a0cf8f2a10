package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ashureev/tutorlabs/internal/domain"
	"github.com/ashureev/tutorlabs/internal/metrics"
	"github.com/ashureev/tutorlabs/internal/store"
)

const (
	writeTimeout = 10 * time.Second
	readLimit    = 64 << 10
)

// Frame types.
const (
	FrameChat        = "chat"
	FrameGetState    = "get_state"
	FrameAssistant   = "assistant"
	FrameStateUpdate = "state_update"
	FrameError       = "error"
	FrameTyping      = "typing"
)

// ClientFrame is a message from the browser.
type ClientFrame struct {
	Type    string        `json:"type"`
	Payload ClientPayload `json:"payload"`
}

// ClientPayload carries the chat text.
type ClientPayload struct {
	Message string `json:"message"`
}

// ServerFrame is a message to the browser.
type ServerFrame struct {
	ID        string        `json:"id"`
	Type      string        `json:"type"`
	Payload   ServerPayload `json:"payload"`
	Timestamp time.Time     `json:"timestamp"`
}

// ServerPayload holds whichever of message, state or error the frame
// type carries.
type ServerPayload struct {
	Message string            `json:"message,omitempty"`
	State   *domain.StateView `json:"state,omitempty"`
	Error   string            `json:"error,omitempty"`
}

func newFrame(typ string, p ServerPayload) ServerFrame {
	return ServerFrame{ID: uuid.NewString(), Type: typ, Payload: p, Timestamp: time.Now().UTC()}
}

// Handler serves GET /ws/{session_id}.
type Handler struct {
	svc           *Service
	registry      *Registry
	metrics       *metrics.Metrics
	allowedOrigin string
	isDev         bool
}

// NewHandler creates the WebSocket handler.
func NewHandler(svc *Service, registry *Registry, m *metrics.Metrics, allowedOrigin string, isDev bool) *Handler {
	return &Handler{
		svc:           svc,
		registry:      registry,
		metrics:       m,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// ServeHTTP upgrades the request and runs the chat loop until the
// client disconnects.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")
	slog.Info("WebSocket connection request", "session_id", sessionID, "ip", r.RemoteAddr)

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "session_id", sessionID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "session_id", sessionID)
		}
	}()
	ws.SetReadLimit(readLimit)

	ctx := r.Context()
	sess, err := h.svc.Session(ctx, sessionID)
	if err != nil {
		slog.Warn("WebSocket for unknown session", "session_id", sessionID, "error", err)
		_ = h.send(ctx, ws, newFrame(FrameError, ServerPayload{Error: ErrorMessage(err)}))
		return
	}

	h.registry.Register(sessionID, ws)
	defer h.registry.Unregister(sessionID, ws)
	h.metrics.ConnectionOpened()
	defer h.metrics.ConnectionClosed()

	slog.Info("WebSocket connected", "session_id", sessionID)
	if err := h.sendState(ctx, ws, sess); err != nil {
		return
	}
	if sess.TurnCount == 0 {
		welcome := h.svc.Welcome(ctx, sess, ChannelWebSocket)
		if err := h.send(ctx, ws, newFrame(FrameAssistant, ServerPayload{Message: welcome})); err != nil {
			return
		}
	}

	h.readLoop(ctx, ws, sessionID)
	slog.Info("WebSocket disconnected", "session_id", sessionID)
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" || origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *Handler) readLoop(ctx context.Context, ws *websocket.Conn, sessionID string) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || ctx.Err() != nil {
				slog.Debug("WebSocket closed by client", "session_id", sessionID)
			} else {
				slog.Warn("WebSocket read error", "error", err, "session_id", sessionID)
			}
			return
		}

		var frame ClientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			if h.sendError(ctx, ws, "Invalid message format: "+err.Error()) != nil {
				return
			}
			continue
		}

		slog.Info("Message received", "session_id", sessionID, "type", frame.Type)

		switch frame.Type {
		case FrameChat:
			err = h.handleChat(ctx, ws, sessionID, frame.Payload.Message)
		case FrameGetState:
			err = h.handleGetState(ctx, ws, sessionID)
		default:
			err = h.sendError(ctx, ws, "Unknown message type: "+frame.Type)
		}
		if err != nil {
			return
		}
	}
}

// handleChat sends typing, assistant and state_update frames. A returned
// error ends the connection.
func (h *Handler) handleChat(ctx context.Context, ws *websocket.Conn, sessionID, message string) error {
	if err := h.send(ctx, ws, newFrame(FrameTyping, ServerPayload{})); err != nil {
		return err
	}

	result, sess, err := h.svc.Chat(ctx, sessionID, message, ChannelWebSocket)
	if err != nil {
		if sendErr := h.sendError(ctx, ws, ErrorMessage(err)); sendErr != nil {
			return sendErr
		}
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrExpired) {
			return err
		}
		return nil
	}

	if err := h.send(ctx, ws, newFrame(FrameAssistant, ServerPayload{Message: result.Response})); err != nil {
		return err
	}
	return h.sendState(ctx, ws, sess)
}

func (h *Handler) handleGetState(ctx context.Context, ws *websocket.Conn, sessionID string) error {
	sess, err := h.svc.Session(ctx, sessionID)
	if err != nil {
		if sendErr := h.sendError(ctx, ws, ErrorMessage(err)); sendErr != nil {
			return sendErr
		}
		return err
	}
	return h.sendState(ctx, ws, sess)
}

func (h *Handler) sendState(ctx context.Context, ws *websocket.Conn, sess *domain.Session) error {
	state := sess.State()
	return h.send(ctx, ws, newFrame(FrameStateUpdate, ServerPayload{State: &state}))
}

func (h *Handler) sendError(ctx context.Context, ws *websocket.Conn, msg string) error {
	return h.send(ctx, ws, newFrame(FrameError, ServerPayload{Error: msg}))
}

func (h *Handler) send(ctx context.Context, ws *websocket.Conn, frame ServerFrame) error {
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := wsjson.Write(writeCtx, ws, frame); err != nil {
		slog.Debug("WebSocket write error", "error", err, "type", frame.Type)
		return err
	}
	return nil
}
