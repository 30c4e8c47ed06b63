package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iudanet/mapkeeper/internal/diff"
	"github.com/iudanet/mapkeeper/internal/server/handlers"
	"github.com/iudanet/mapkeeper/internal/server/middleware"
	"github.com/iudanet/mapkeeper/internal/server/storage/sqlite"
)

const (
	healthPath  = "/api/v1/health"
	metricsPath = "/metrics"
)

// RateLimits задает лимиты запросов
type RateLimits struct {
	AuthPerMinute   int // регистрация и вход, по IP
	UploadPerMinute int // загрузка diff, по пользователю
}

// Router собирает HTTP API поверх хранилища
type Router struct {
	handler      http.Handler
	authLimiter  *middleware.RateLimiter
	writeLimiter *middleware.RateLimiter
}

// NewRouter создает роутер со всеми маршрутами API и /metrics
func NewRouter(logger *slog.Logger, s *sqlite.Storage, jwtConfig handlers.JWTConfig, limits RateLimits, version string) *Router {
	registry := prometheus.NewRegistry()
	registry.MustRegister(diff.Metrics()...)
	registry.MustRegister(middleware.RequestDuration, sqlite.NewStatsCollector(s))

	rt := &Router{
		authLimiter:  middleware.NewRateLimiter(limits.AuthPerMinute, time.Minute),
		writeLimiter: middleware.NewRateLimiter(limits.UploadPerMinute, time.Minute),
	}

	healthHandler := handlers.NewHealthHandler(logger, s, version)
	authHandler := handlers.NewAuthHandler(logger, s, jwtConfig)
	changesetHandler := handlers.NewChangesetHandler(logger, s)
	uploadHandler := handlers.NewUploadHandler(logger, diff.NewRunner(s, logger))
	elementHandler := handlers.NewElementHandler(logger, s)

	requireAuth := middleware.AuthMiddleware(logger, jwtConfig)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.RecoveryMiddleware(logger))
	r.Use(middleware.LoggingMiddleware(logger, healthPath, metricsPath))
	r.Use(middleware.MetricsMiddleware)

	r.Get(healthPath, healthHandler.Health)
	r.Handle(metricsPath, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(rt.authLimiter.Middleware(logger, middleware.ByIP))
			r.Post("/auth/register", authHandler.Register)
			r.Post("/auth/login", authHandler.Login)
		})

		// Чтение элементов и changeset открыто для всех
		r.Get("/changesets/{id}", changesetHandler.Get)
		r.Route("/elements/{type}/{id}", func(r chi.Router) {
			r.Get("/", elementHandler.Latest)
			r.Get("/history", elementHandler.History)
			r.Get("/parents", elementHandler.Parents)
			r.Get("/{version}", elementHandler.Version)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Put("/users/{id}/roles", authHandler.SetRoles)
			r.Post("/changesets", changesetHandler.Create)
			r.Put("/changesets/{id}/close", changesetHandler.Close)

			r.Group(func(r chi.Router) {
				r.Use(rt.writeLimiter.Middleware(logger, middleware.ByUser))
				r.Post("/changesets/{id}/upload", uploadHandler.Upload)
				r.Post("/changesets/{id}/elements", uploadHandler.Create)
			})
		})
	})

	rt.handler = r
	return rt
}

func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt.handler.ServeHTTP(w, r)
}

// Close останавливает фоновые goroutine rate limiter
func (rt *Router) Close() {
	rt.authLimiter.Stop()
	rt.writeLimiter.Stop()
}
