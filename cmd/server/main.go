// Tutor server: multi-agent tutoring REST API and WebSocket chat.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/ashureev/tutorlabs/internal/api"
	"github.com/ashureev/tutorlabs/internal/chat"
	"github.com/ashureev/tutorlabs/internal/config"
	"github.com/ashureev/tutorlabs/internal/curriculum"
	"github.com/ashureev/tutorlabs/internal/llm"
	"github.com/ashureev/tutorlabs/internal/metrics"
	"github.com/ashureev/tutorlabs/internal/middleware"
	"github.com/ashureev/tutorlabs/internal/orchestrator"
	"github.com/ashureev/tutorlabs/internal/specialist"
	"github.com/ashureev/tutorlabs/internal/store"
	"github.com/ashureev/tutorlabs/web"
)

const version = "0.1.0"

func main() {
	var level slog.LevelVar
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: &level,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	level.Set(cfg.SlogLevel())

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "store", cfg.Session.Store, "model", cfg.LLM.Model)
	if cfg.LLM.APIKey == "" {
		slog.Warn("LLM_API_KEY is not set; requests to the model endpoint will be unauthenticated")
	}

	// Initialize dependencies.
	sessions, err := openStore(cfg)
	if err != nil {
		slog.Error("Failed to initialize session store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := sessions.Close(); closeErr != nil {
			slog.Error("Failed to close session store", "error", closeErr)
		}
	}()

	if err := sessions.Ping(context.Background()); err != nil {
		slog.Error("Session store health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Session store connected", "backend", cfg.Session.Store)

	catalog, err := curriculum.Load(cfg.TopicsDir, logger)
	if err != nil {
		slog.Error("Failed to load topics", "error", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	client := llm.NewClient(llm.Config{
		APIKey:     cfg.LLM.APIKey,
		BaseURL:    cfg.LLM.BaseURL,
		Model:      cfg.LLM.Model,
		Timeout:    cfg.LLM.Timeout,
		MaxRetries: cfg.LLM.MaxRetries,
		RateLimit:  cfg.LLM.RateLimit,
		RateBurst:  cfg.LLM.RateBurst,
	}, logger)

	specialists, err := specialist.NewRegistry(specialist.Options{
		Client:  client,
		Timeout: cfg.Agents.Timeout,
		Logger:  logger,
	})
	if err != nil {
		slog.Error("Failed to initialize specialists", "error", err)
		os.Exit(1)
	}

	agentLog := orchestrator.NewAgentLog(orchestrator.DefaultAgentLogSize)
	orch, err := orchestrator.New(orchestrator.Options{
		Specialists:    specialists,
		Client:         client,
		Sessions:       sessions,
		AgentLog:       agentLog,
		Metrics:        m,
		Logger:         logger,
		Model:          client.Model(),
		EnableParallel: cfg.Agents.EnableParallel,
	})
	if err != nil {
		slog.Error("Failed to initialize orchestrator", "error", err)
		os.Exit(1)
	}

	conversationLogger, err := chat.NewConversationLogger(chat.ConversationLogConfig{
		Enabled:       cfg.ConversationLog.Enabled,
		Dir:           cfg.ConversationLog.Dir,
		GlobalEnabled: cfg.ConversationLog.GlobalEnabled,
		GlobalPath:    cfg.ConversationLog.GlobalPath,
		QueueSize:     cfg.ConversationLog.QueueSize,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize conversation logger", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := conversationLogger.Close(); closeErr != nil {
			slog.Warn("Failed to close conversation logger", "error", closeErr)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	limiter := chat.NewRateLimiter(cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.WindowDuration)
	limiter.StartEviction(ctx)

	chatService := chat.NewService(chat.ServiceOptions{
		Sessions:        sessions,
		Tutor:           orch,
		Limiter:         limiter,
		ConversationLog: conversationLogger,
		Metrics:         m,
		Logger:          logger,
	})
	connections := chat.NewRegistry()
	endSession := func(sessionID, reason string) {
		connections.Close(sessionID, reason)
		agentLog.Forget(sessionID)
	}

	// Initialize handlers.
	apiHandler := api.NewHandler(api.Options{
		Sessions:         sessions,
		Topics:           catalog,
		Turns:            chatService,
		AgentLogs:        agentLog,
		Version:          version,
		MaxHistory:       cfg.Session.MaxHistory,
		OnSessionDeleted: func(id string) { endSession(id, "session deleted") },
	})
	wsHandler := chat.NewHandler(chatService, connections, m, cfg.FrontendURL, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(cfg.AllowedOrigins()))
	r.Use(m.Middleware)

	apiHandler.RegisterRoutes(r)
	r.Get("/ws/{session_id}", wsHandler.ServeHTTP)
	r.Method(http.MethodGet, "/metrics", m.Handler())

	// Serve embedded frontend (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	// Turns over plain HTTP can run for several model calls, so there is
	// no WriteTimeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}
	srv.RegisterOnShutdown(connections.CloseAll)

	// Start session sweeper.
	store.StartSweeper(ctx, sessions, cfg.Session.SweepInterval, func(expired []string, remaining int) {
		for _, id := range expired {
			endSession(id, "session expired")
		}
		if remaining >= 0 {
			m.SetActiveSessions(remaining)
		}
	})

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server stopped successfully")
}

// openStore builds the configured session store backend.
func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Session.Store {
	case config.StoreMemory:
		return store.NewMemory(cfg.Session.Timeout), nil
	case config.StoreSQLite:
		return store.NewSQLite(cfg.Session.DBPath, cfg.Session.Timeout)
	case config.StoreRedis:
		return store.NewRedis(store.RedisConfig{
			Addr:     cfg.Session.RedisAddr,
			Password: cfg.Session.RedisPassword,
			DB:       cfg.Session.RedisDB,
		}, cfg.Session.Timeout)
	default:
		return nil, fmt.Errorf("unknown session store %q", cfg.Session.Store)
	}
}
