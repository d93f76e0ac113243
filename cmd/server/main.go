// Elicit - Conversational Requirements Elicitation Server
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

	"github.com/joho/godotenv"

	"github.com/ashureev/elicit/internal/compliance"
	"github.com/ashureev/elicit/internal/config"
	"github.com/ashureev/elicit/internal/gap"
	"github.com/ashureev/elicit/internal/llm"
	"github.com/ashureev/elicit/internal/orchestrator"
	"github.com/ashureev/elicit/internal/policy"
	"github.com/ashureev/elicit/internal/promptctx"
	"github.com/ashureev/elicit/internal/publish"
	"github.com/ashureev/elicit/internal/requirements"
	"github.com/ashureev/elicit/internal/server"
	"github.com/ashureev/elicit/internal/store"
	"github.com/ashureev/elicit/internal/wire"
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

	// Initialize dependencies.
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
	slog.Info("Database connected")

	opts := []llm.OpenAIOption{llm.WithSmallModel(cfg.FastModel)}
	if cfg.OpenAIBaseURL != "" {
		opts = append(opts, llm.WithBaseURL(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL))
	}
	client := llm.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.SmartModel, logger, opts...)

	manager := store.NewManager(repo)
	checker := compliance.NewChecker(client, policy.NewLocalStore(), logger)
	reqs := requirements.NewService(manager, gap.NewDefaultEngine(), checker, cfg.ComplianceStrict, logger)
	builder := promptctx.NewBuilder()

	handler := server.NewHandler(server.Config{
		Repo:          repo,
		Manager:       manager,
		Client:        client,
		Requirements:  reqs,
		Catalog:       orchestrator.DefaultCatalog(client, builder),
		Registry:      orchestrator.DefaultRegistry(),
		Mapper:        wire.NewMapper(),
		Builder:       builder,
		Publisher:     publish.NewMarkdownGenerator(),
		AllowedOrigin: cfg.FrontendURL,
		IsDev:         cfg.IsDevelopment(),
		MaxTurns:      cfg.MaxAgentTurns,
		RateLimiter:   server.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow),
		Logger:        logger,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // websocket connections are long-lived
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
