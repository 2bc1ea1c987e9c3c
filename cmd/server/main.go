// Loom - workspace chat server with a tool-augmented agent.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/ndelia/loom/internal/agent"
	"github.com/ndelia/loom/internal/api"
	"github.com/ndelia/loom/internal/auth"
	"github.com/ndelia/loom/internal/config"
	"github.com/ndelia/loom/internal/middleware"
	"github.com/ndelia/loom/internal/store"
	"github.com/ndelia/loom/internal/tools"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
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
	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected", "path", cfg.DBPath)

	issuer := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL)
	authHandler := auth.NewHandler(repo, issuer, !cfg.IsDevelopment())
	baseHandler := api.NewHandler(repo)

	registry, err := tools.NewRegistry(buildTools(cfg)...)
	if err != nil {
		slog.Error("Failed to build tool registry", "error", err)
		os.Exit(1)
	}

	var agentHandler *agent.Handler
	if cfg.Agent.AnthropicAPIKey != "" {
		model := agent.NewAnthropicClient(cfg.Agent.AnthropicAPIKey, cfg.Agent.Model, cfg.Agent.MaxTokens)
		agentHandler = agent.NewHandler(repo, model, registry, cfg)
		defer agentHandler.Close()
		slog.Info("Agent enabled", "model", cfg.Agent.Model, "tools", len(registry.Definitions()))
	} else {
		slog.Info("Agent disabled (ANTHROPIC_API_KEY not set)")
	}

	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS([]string{cfg.FrontendURL}))

	// Public routes.
	authHandler.RegisterRoutes(r)

	// Authenticated routes.
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(issuer))
		baseHandler.RegisterWorkspaceRoutes(r)
		baseHandler.RegisterChatPageRoutes(r)
		if agentHandler != nil {
			agentHandler.RegisterRoutes(r)
		}
	})

	// Note: SSE and WebSocket connections require long write timeouts,
	// so WriteTimeout stays at 0.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}

func buildTools(cfg *config.Config) []tools.Tool {
	list := []tools.Tool{
		tools.NewURLFetcher(cfg.Agent.ToolTimeout),
	}
	if cfg.Agent.TavilyAPIKey != "" {
		list = append(list, tools.NewWebSearch(cfg.Agent.TavilyAPIKey, cfg.Agent.ToolTimeout))
	} else {
		slog.Info("Web search disabled (TAVILY_API_KEY not set)")
	}
	return list
}
