package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/MrJamesThe3rd/finsync/internal/auth"
	"github.com/MrJamesThe3rd/finsync/internal/http/cloudsync"
	"github.com/MrJamesThe3rd/finsync/internal/http/finance"
	"github.com/MrJamesThe3rd/finsync/internal/http/goal"
	"github.com/MrJamesThe3rd/finsync/internal/http/insight"
	"github.com/MrJamesThe3rd/finsync/internal/http/settings"
)

type Handlers struct {
	Finance  *finance.Handler
	Goals    *goal.Handler
	Settings *settings.Handler
	Sync     *cloudsync.Handler
	Insights *insight.Handler
}

type Options struct {
	// JWTSecret enables bearer authentication on every API route when set.
	JWTSecret      []byte
	AllowedOrigins []string
}

func New(h Handlers, opts Options) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:*", "http://127.0.0.1:*"}
	}

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	router.Route("/api/v1", func(r chi.Router) {
		if len(opts.JWTSecret) > 0 {
			r.Use(auth.Middleware(opts.JWTSecret))
		}

		r.Route("/transactions", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			h.Finance.TransactionRoutes(r)
		})

		r.Route("/budgets", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			h.Finance.BudgetRoutes(r)
		})

		r.Route("/goals", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			h.Goals.Routes(r)
		})

		r.Route("/settings", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			h.Settings.Routes(r)
		})

		r.Route("/sync", h.Sync.Routes)
		r.Route("/insights", h.Insights.Routes)
	})

	return router
}
