package chat

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Conversation log channels and event types.
const (
	ChannelWebSocket = "websocket"
	ChannelHTTP      = "http"

	EventStudentMessage = "student_message"
	EventTutorMessage   = "tutor_message"
	EventWelcomeMessage = "welcome_message"
)

// ConversationLogEvent is one NDJSON line of the conversation log.
type ConversationLogEvent struct {
	Timestamp  string         `json:"timestamp"`
	SessionID  string         `json:"session_id"`
	Channel    string         `json:"channel"`
	Direction  string         `json:"direction"`
	EventType  string         `json:"event_type"`
	ContentRaw string         `json:"content_raw"`
	Content    string         `json:"content"`
	Meta       map[string]any `json:"meta,omitempty"`
}

// ConversationLogger records student and tutor messages.
type ConversationLogger interface {
	Log(ConversationLogEvent)
	Close() error
}

// ConversationLogConfig configures the file-backed logger.
type ConversationLogConfig struct {
	Enabled       bool
	Dir           string
	GlobalEnabled bool
	GlobalPath    string
	QueueSize     int
}

type noopConversationLogger struct{}

func (noopConversationLogger) Log(ConversationLogEvent) {}
func (noopConversationLogger) Close() error            { return nil }

// fileConversationLogger appends events to <dir>/<session_id>.ndjson from
// a single writer goroutine. Log never blocks: when the queue is full the
// event is dropped with a warning.
type fileConversationLogger struct {
	files  *fileCache
	global *os.File
	logger *slog.Logger

	queue chan ConversationLogEvent
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewConversationLogger returns a no-op logger when cfg is disabled.
func NewConversationLogger(cfg ConversationLogConfig, logger *slog.Logger) (ConversationLogger, error) {
	if !cfg.Enabled {
		return noopConversationLogger{}, nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create conversation log dir: %w", err)
	}

	l := &fileConversationLogger{
		files:  newFileCache(cfg.Dir, maxOpenLogFiles),
		logger: logger,
		queue:  make(chan ConversationLogEvent, cfg.QueueSize),
	}
	if cfg.GlobalEnabled {
		if err := os.MkdirAll(filepath.Dir(cfg.GlobalPath), 0o755); err != nil {
			return nil, fmt.Errorf("create global conversation log dir: %w", err)
		}
		f, err := os.OpenFile(cfg.GlobalPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open global conversation log: %w", err)
		}
		l.global = f
	}

	l.wg.Add(1)
	go l.run()
	return l, nil
}

func (l *fileConversationLogger) Log(event ConversationLogEvent) {
	if event.Timestamp == "" {
		event.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}
	if event.Content == "" {
		event.Content = cleanForReadability(event.ContentRaw)
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return
	}
	select {
	case l.queue <- event:
	default:
		l.logger.Warn("Conversation log queue full, dropping event",
			"session_id", event.SessionID,
			"event_type", event.EventType,
		)
	}
}

func (l *fileConversationLogger) run() {
	defer l.wg.Done()
	defer l.files.closeAll()

	for event := range l.queue {
		line, err := json.Marshal(event)
		if err != nil {
			l.logger.Warn("Failed to encode conversation log event", "error", err)
			continue
		}
		line = append(line, '\n')

		f, err := l.files.get(safeFileName(event.SessionID))
		if err != nil {
			l.logger.Warn("Failed to open conversation log", "session_id", event.SessionID, "error", err)
		} else if _, err := f.Write(line); err != nil {
			l.logger.Warn("Failed to write conversation log", "session_id", event.SessionID, "error", err)
		}
		if l.global != nil {
			if _, err := l.global.Write(line); err != nil {
				l.logger.Warn("Failed to write global conversation log", "error", err)
			}
		}
	}
}

// maxOpenLogFiles bounds the per-session files kept open by the writer.
const maxOpenLogFiles = 64

// fileCache keeps the most recently written session files open and closes
// the least recently used one past its size. Only the writer goroutine
// uses it.
type fileCache struct {
	dir   string
	files *lru.Cache[string, *os.File]
}

func newFileCache(dir string, maxOpen int) *fileCache {
	if maxOpen <= 0 {
		maxOpen = maxOpenLogFiles
	}
	files, err := lru.NewWithEvict(maxOpen, func(_ string, f *os.File) {
		_ = f.Close()
	})
	if err != nil {
		// Only returned for a non-positive size.
		panic("chat: " + err.Error())
	}
	return &fileCache{dir: dir, files: files}
}

func (c *fileCache) get(name string) (*os.File, error) {
	if f, ok := c.files.Get(name); ok {
		return f, nil
	}
	f, err := os.OpenFile(filepath.Join(c.dir, name+".ndjson"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	c.files.Add(name, f)
	return f, nil
}

func (c *fileCache) len() int { return c.files.Len() }

func (c *fileCache) closeAll() {
	for _, name := range c.files.Keys() {
		c.files.Remove(name)
	}
}

// Close drains the queue and closes all files.
func (l *fileConversationLogger) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.queue)
	l.mu.Unlock()

	l.wg.Wait()
	if l.global != nil {
		return l.global.Close()
	}
	return nil
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9_\-]`)

func safeFileName(id string) string {
	name := unsafeFileChars.ReplaceAllString(id, "_")
	if name == "" {
		return "unknown"
	}
	return name
}

var (
	ansiCSI = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]`)
	ansiOSC = regexp.MustCompile(`\x1b\][^\x07\x1b]*(\x07|\x1b\\)`)
)

// cleanForReadability strips terminal escape sequences and carriage
// returns so the content field reads as plain text.
func cleanForReadability(raw string) string {
	s := ansiOSC.ReplaceAllString(raw, "")
	s = ansiCSI.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "")
	return strings.TrimSpace(s)
}
