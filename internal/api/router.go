package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/letsssss/naver-real-sub000/internal/api/middleware"
	"github.com/letsssss/naver-real-sub000/internal/chat"
	"github.com/letsssss/naver-real-sub000/internal/handlers"
	"github.com/letsssss/naver-real-sub000/internal/store"
)

// NewRouter creates and configures the HTTP router.
func NewRouter(logger zerolog.Logger, svc *chat.Service, pg store.DataStore, bus store.EventBus, jwtSecret string) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	// CORS - the frontends live on the marketplace's own origins, but the
	// gateway rewrites Origin, so allow all and rely on token auth.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	h := handlers.NewHandler(svc, pg, bus, logger)
	auth := middleware.NewAuthMiddleware(jwtSecret)

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	// Public routes
	r.Get("/health", h.Health)

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth)

		r.Post("/rooms/open", h.OpenRoom)
		r.Post("/rooms/{id}/close", h.CloseRoom)
		r.Get("/rooms/{id}/messages", h.GetMessages)
		r.Post("/rooms/{id}/messages", h.SendMessage)
		r.Post("/rooms/{id}/read", h.MarkRead)
		r.Get("/rooms/{id}/unread", h.UnreadCount)
		r.Get("/rooms/{id}/feed", h.Feed)
	})

	return r
}
