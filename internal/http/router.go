package http

import (
	"net/http"
	"time"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"gatehouse/internal/config"
	"gatehouse/internal/identity"
	"gatehouse/internal/metrics"
	"gatehouse/internal/oauth"
)

// RouterDeps carries the wired components the router exposes.
type RouterDeps struct {
	Reconciler  *identity.Reconciler
	Credentials *identity.Credentials
	Repo        identity.Repository
	Verifier    tokenVerifier
	Providers   []oauth.Provider
	Collector   *metrics.Collector
	Logger      *slog.Logger
}

// NewRouter wires application routes and middleware using chi.
func NewRouter(cfg config.Config, deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(newSecurityHeadersMiddleware(cfg.Environment))
	r.Use(newSlogMiddleware(deps.Logger))
	r.Use(newMetricsMiddleware(deps.Collector))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":      "ok",
			"environment": cfg.Environment,
		})
	})
	r.Method(http.MethodGet, "/metrics", deps.Collector.Handler())

	oauthHandler := NewOAuthHandler(deps.Providers, deps.Reconciler, deps.Collector, cfg.FrontendURL, cfg.Environment, cfg.TokenTTL, deps.Logger)
	userHandler := NewUserHandler(deps.Credentials, deps.Repo, deps.Collector, deps.Logger)

	authLimiter := newAuthRateLimiter(30, 10)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Use(authLimiter.Middleware)

			r.Post("/register", userHandler.Register)
			r.Post("/logout", oauthHandler.Logout)
			r.Route("/{provider}", func(r chi.Router) {
				r.Get("/", oauthHandler.Initiate)
				r.Get("/callback", oauthHandler.Callback)
			})
		})

		r.Route("/user", func(r chi.Router) {
			r.Use(newAuthMiddleware(deps.Verifier))

			r.Get("/me", userHandler.Me)
			r.Put("/me/password", userHandler.ChangePassword)
		})
	})

	r.NotFound(http.NotFoundHandler().ServeHTTP)

	return r
}

func providerParam(r *http.Request) string {
	return chi.URLParam(r, "provider")
}
