package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/phrazzld/studbud/internal/api"
	apiMiddleware "github.com/phrazzld/studbud/internal/api/middleware"
	"github.com/phrazzld/studbud/internal/service/auth"
)

// setupRouter creates the application router with all routes and middleware.
func (app *application) setupRouter(tokens auth.JWTService) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.NewTraceMiddleware(app.logger))

	sessionHandler := api.NewSessionHandler(app.sessions, tokens, app.config.Content.MaxFileBytes)
	authMiddleware := apiMiddleware.NewAuthMiddleware(tokens)
	api.RegisterSessionRoutes(r, sessionHandler, authMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("failed to write health check response", "error", err)
		}
	})
	r.Method(http.MethodGet, "/metrics", app.metrics.Handler())

	return r
}
