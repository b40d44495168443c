package http

import (
	"net/http"
	"time"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"authgate/internal/auth"
	"authgate/internal/config"
)

// NewRouter wires application routes and middleware using chi.
func NewRouter(cfg config.Config, google GoogleAuthenticator, service *auth.Service, codes *auth.CodeEngine, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(newSecurityHeadersMiddleware())
	r.Use(newSlogMiddleware(logger))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":      "ok",
			"environment": cfg.Environment,
		})
	})

	handler := NewAuthHandler(google, service, codes, logger)

	r.Route("/api/auth", func(r chi.Router) {
		r.Get("/google", handler.BeginGoogle)
		r.Post("/google/callback", handler.CompleteGoogle)
		r.Post("/email/request", handler.RequestEmailCode)
		r.Post("/email/verify", handler.VerifyEmailCode)
		r.Post("/refresh", handler.Refresh)

		r.Group(func(r chi.Router) {
			r.Use(newAuthMiddleware(service))
			r.Post("/logout", handler.Logout)
			r.Get("/me", handler.Me)
		})
	})

	r.NotFound(http.NotFoundHandler().ServeHTTP)

	return r
}
