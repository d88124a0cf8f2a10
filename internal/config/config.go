// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Session store backends.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string
	LogLevel    string
	TopicsDir   string

	Session         SessionConfig
	LLM             LLMConfig
	Agents          AgentConfig
	RateLimit       RateLimitConfig
	ConversationLog ConversationLogConfig
}

// SessionConfig controls session persistence and expiry.
type SessionConfig struct {
	Store         string // memory, sqlite or redis
	DBPath        string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Timeout       time.Duration // idle duration before a session expires
	SweepInterval time.Duration
	MaxHistory    int
}

// LLMConfig configures the structured completion client.
type LLMConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	MaxRetries int
	RateLimit  float64
	RateBurst  int
}

// AgentConfig configures specialist execution.
type AgentConfig struct {
	Timeout        time.Duration
	EnableParallel bool
}

// RateLimitConfig throttles chat messages per session.
type RateLimitConfig struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// ConversationLogConfig controls JSON conversation logging.
type ConversationLogConfig struct {
	Enabled       bool
	Dir           string
	GlobalEnabled bool
	GlobalPath    string
	QueueSize     int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	queueSize := getEnvInt("CONVERSATION_LOG_QUEUE_SIZE", 1000)
	if queueSize <= 0 {
		queueSize = 1000
	}

	apiKey := getEnv("LLM_API_KEY", "")
	if apiKey == "" {
		apiKey = getEnv("OPENAI_API_KEY", "")
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8000"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		TopicsDir:   getEnv("TOPICS_DIR", ""),
		Session: SessionConfig{
			Store:         strings.ToLower(getEnv("SESSION_STORE", StoreSQLite)),
			DBPath:        getEnv("DB_PATH", "./data/tutor.db"),
			RedisAddr:     getEnv("REDIS_ADDR", ""),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getEnvInt("REDIS_DB", 0),
			Timeout:       getEnvDuration("SESSION_TIMEOUT", time.Hour),
			SweepInterval: getEnvDuration("SESSION_SWEEP_INTERVAL", 5*time.Minute),
			MaxHistory:    getEnvInt("MAX_CONVERSATION_HISTORY", 10),
		},
		LLM: LLMConfig{
			APIKey:     apiKey,
			BaseURL:    getEnv("LLM_BASE_URL", "https://api.openai.com"),
			Model:      getEnv("LLM_MODEL", "gpt-5.2"),
			Timeout:    getEnvDuration("LLM_TIMEOUT", 60*time.Second),
			MaxRetries: getEnvInt("LLM_MAX_RETRIES", 3),
			RateLimit:  getEnvFloat("LLM_RATE_LIMIT", 5),
			RateBurst:  getEnvInt("LLM_RATE_BURST", 10),
		},
		Agents: AgentConfig{
			Timeout:        getEnvDuration("AGENT_TIMEOUT", 30*time.Second),
			EnableParallel: getEnvBool("ENABLE_PARALLEL_AGENTS", true),
		},
		RateLimit: RateLimitConfig{
			RequestsPerWindow: getEnvInt("CHAT_RATE_LIMIT", 20),
			WindowDuration:    getEnvDuration("CHAT_RATE_WINDOW", time.Minute),
		},
		ConversationLog: ConversationLogConfig{
			Enabled:       getEnvBool("CONVERSATION_LOG_ENABLED", true),
			Dir:           getEnv("CONVERSATION_LOG_DIR", "./data/logs/conversations"),
			GlobalEnabled: getEnvBool("CONVERSATION_LOG_GLOBAL_ENABLED", false),
			GlobalPath:    getEnv("CONVERSATION_LOG_GLOBAL_PATH", "./data/logs/conversations/all.ndjson"),
			QueueSize:     queueSize,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
//
//nolint:gocyclo // Flat list of independent checks.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	switch c.Session.Store {
	case StoreMemory:
	case StoreSQLite:
		if c.Session.DBPath == "" {
			return fmt.Errorf("DB_PATH cannot be empty when SESSION_STORE=sqlite")
		}
	case StoreRedis:
		if c.Session.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR cannot be empty when SESSION_STORE=redis")
		}
	default:
		return fmt.Errorf("SESSION_STORE must be one of memory, sqlite, redis (got %q)", c.Session.Store)
	}
	if c.Session.Timeout <= 0 {
		return fmt.Errorf("SESSION_TIMEOUT must be > 0")
	}
	if c.Session.MaxHistory <= 0 {
		return fmt.Errorf("MAX_CONVERSATION_HISTORY must be > 0")
	}
	if c.LLM.BaseURL == "" {
		return fmt.Errorf("LLM_BASE_URL cannot be empty")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("LLM_MODEL cannot be empty")
	}
	if c.LLM.MaxRetries <= 0 {
		return fmt.Errorf("LLM_MAX_RETRIES must be > 0")
	}
	if c.Agents.Timeout <= 0 {
		return fmt.Errorf("AGENT_TIMEOUT must be > 0")
	}
	if c.RateLimit.RequestsPerWindow <= 0 {
		return fmt.Errorf("CHAT_RATE_LIMIT must be > 0")
	}
	if c.ConversationLog.Dir == "" {
		return fmt.Errorf("CONVERSATION_LOG_DIR cannot be empty")
	}
	if c.ConversationLog.GlobalPath == "" {
		return fmt.Errorf("CONVERSATION_LOG_GLOBAL_PATH cannot be empty")
	}
	if c.ConversationLog.QueueSize <= 0 {
		return fmt.Errorf("CONVERSATION_LOG_QUEUE_SIZE must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// AllowedOrigins returns the CORS origins for the configured frontend.
func (c *Config) AllowedOrigins() []string {
	if c.IsDevelopment() {
		return []string{"*"}
	}
	return []string{c.FrontendURL}
}

// SlogLevel maps LOG_LEVEL to a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

// getEnvDuration accepts Go duration strings ("90s") or plain seconds ("90").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
