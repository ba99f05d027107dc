// Package api assembles the HTTP surface: public routes, the job API under
// /api/v1 and the admin-only catalog and usage mutations.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zoumson/OpenFreeAI/internal/api/handlers"
	apmiddleware "github.com/zoumson/OpenFreeAI/internal/api/middleware"
	domainauth "github.com/zoumson/OpenFreeAI/internal/domain/auth"
)

// Services are the dependencies of the router. Metrics may be nil, in which
// case /metrics is not mounted.
type Services struct {
	Submitter handlers.Submitter
	Jobs      handlers.JobReader
	Catalog   handlers.ModelCatalog
	History   handlers.HistoryStore
	Auth      handlers.Authenticator
	Tokens    apmiddleware.TokenParser
	Metrics   http.Handler
	Logger    *slog.Logger
}

// NewRouter creates the chi router with every route.
func NewRouter(s Services) *chi.Mux {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(apmiddleware.RequestLogger(logger))
	r.Use(middleware.Recoverer)

	// ===== PUBLIC ROUTES =====

	r.Get("/health", handlers.Health)
	if s.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.Metrics)
	}

	authHandler := handlers.NewAuthHandler(s.Auth)
	r.Post("/auth/login", authHandler.Login)

	promptHandler := handlers.NewPromptHandler(s.Submitter, logger)
	jobHandler := handlers.NewJobHandler(s.Jobs)
	modelHandler := handlers.NewModelHandler(s.Catalog, logger)
	historyHandler := handlers.NewHistoryHandler(s.History)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/version", handlers.Version)

		r.Post("/prompt", promptHandler.Submit)
		r.Get("/job/{id}", jobHandler.Get)
		r.Post("/jobs/poll", jobHandler.Poll)

		r.Get("/model/list", modelHandler.List)
		r.Get("/model/grouped", modelHandler.Grouped)

		r.Get("/history", historyHandler.List)
		r.Get("/usage", historyHandler.Usage)

		// ===== ADMIN ROUTES (Bearer JWT with role admin) =====
		r.Group(func(r chi.Router) {
			r.Use(apmiddleware.Authenticate(s.Tokens))
			r.Use(apmiddleware.RequireRole(domainauth.RoleAdmin))

			r.Post("/model/load", modelHandler.Load)
			r.Post("/model/clear", modelHandler.Clear)
			r.Post("/usage/reset", historyHandler.ResetUsage)
		})
	})

	return r
}
