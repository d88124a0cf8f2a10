package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SESSION_STORE", "memory")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.Port)
	assert.Equal(t, StoreMemory, cfg.Session.Store)
	assert.Equal(t, time.Hour, cfg.Session.Timeout)
	assert.Equal(t, 10, cfg.Session.MaxHistory)
	assert.Equal(t, 30*time.Second, cfg.Agents.Timeout)
	assert.Equal(t, 60*time.Second, cfg.LLM.Timeout)
	assert.True(t, cfg.Agents.EnableParallel)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SESSION_STORE", "memory")
	t.Setenv("AGENT_TIMEOUT", "5")
	t.Setenv("SESSION_TIMEOUT", "90m")
	t.Setenv("ENABLE_PARALLEL_AGENTS", "off")
	t.Setenv("FRONTEND_URL", "https://tutor.example.com")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.Agents.Timeout)
	assert.Equal(t, 90*time.Minute, cfg.Session.Timeout)
	assert.False(t, cfg.Agents.EnableParallel)
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, []string{"https://tutor.example.com"}, cfg.AllowedOrigins())
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
}

func TestValidateRejectsUnknownStore(t *testing.T) {
	t.Setenv("SESSION_STORE", "mongo")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SESSION_STORE")
}

func TestValidateRedisNeedsAddr(t *testing.T) {
	t.Setenv("SESSION_STORE", "redis")
	t.Setenv("REDIS_ADDR", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REDIS_ADDR")
}
