package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/phrazzld/studbud/internal/config"
	"github.com/phrazzld/studbud/internal/content"
	"github.com/phrazzld/studbud/internal/domain"
	"github.com/phrazzld/studbud/internal/events"
	"github.com/phrazzld/studbud/internal/generation"
	"github.com/phrazzld/studbud/internal/metrics"
	"github.com/phrazzld/studbud/internal/orchestrator"
	"github.com/phrazzld/studbud/internal/service/auth"
	"github.com/phrazzld/studbud/internal/session"
)

// application holds the shared dependencies of both commands and owns their
// shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger

	generator    generation.Generator
	metrics      *metrics.Metrics
	eventEmitter *events.InMemoryEventEmitter
	orchestrator *orchestrator.Orchestrator
	sessions     *session.Manager
}

// newApplication wires the generation pipeline and session manager around gen.
func newApplication(cfg *config.Config, logger *slog.Logger, gen generation.Generator) (*application, error) {
	if gen == nil {
		return nil, errors.New("generator cannot be nil")
	}

	defaultMode, err := domain.ParseMode(cfg.Session.DefaultMode)
	if err != nil {
		return nil, fmt.Errorf("invalid session.default_mode: %w", err)
	}

	app := &application{
		config:    cfg,
		logger:    logger,
		generator: gen,
		metrics:   metrics.New(),
	}

	app.eventEmitter = events.NewInMemoryEventEmitter(logger)
	app.eventEmitter.RegisterHandler(app.metrics)

	normalizer := content.NewNormalizer(logger, gen, cfg.Content.MaxFileBytes)
	gate := content.NewGate(cfg.Content.MinAlphanumeric)
	app.orchestrator = orchestrator.New(logger, gen, normalizer, gate, app.metrics, orchestrator.Config{
		MaxConcurrent: cfg.LLM.MaxConcurrent,
		Timeout:       cfg.LLM.Timeout,
	})

	app.sessions = session.NewManager(logger, app.orchestrator, session.ManagerConfig{
		IdleTimeout:  cfg.Session.IdleTimeout,
		DefaultMode:  defaultMode,
		DefaultCount: cfg.Session.DefaultCount,
		Emitter:      app.eventEmitter,
	})

	logger.Info("application initialized",
		"provider", gen.Name(),
		"max_concurrent", cfg.LLM.MaxConcurrent,
		"idle_timeout", cfg.Session.IdleTimeout.String())
	return app, nil
}

// Run serves HTTP until ctx is canceled, then shuts down gracefully.
func (app *application) Run(ctx context.Context) error {
	tokens, err := auth.NewJWTService(app.config.Auth)
	if err != nil {
		return fmt.Errorf("failed to initialize session tokens (auth.session_secret): %w", err)
	}
	app.logger.Info("session token service initialized",
		"token_lifetime_minutes", app.config.Auth.TokenLifetimeMinutes)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", app.config.Server.Port),
		Handler:           app.setupRouter(tokens),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return app.serve(ctx, server, server.ListenAndServe)
}

// serve runs listen alongside the session sweeper and shuts both down when
// ctx ends or either fails.
func (app *application) serve(ctx context.Context, server *http.Server, listen func() error) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		app.logger.Info("starting server", "addr", server.Addr)
		if err := listen(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return app.sessions.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		app.logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), app.config.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})

	err := g.Wait()
	app.cleanup()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return err
}

// cleanup cancels outstanding generations and waits for them.
func (app *application) cleanup() {
	app.sessions.Close()
	app.logger.Info("application shutdown completed")
}
