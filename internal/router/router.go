package router

import (
	"net/http"

	"baro-tracker-api/internal/handler"
	"baro-tracker-api/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler          *handler.Handler
	ItemHandler      *handler.ItemHandler
	SocialHandler    *handler.SocialHandler
	PushTokenHandler *handler.PushTokenHandler
	AdminHandler     *handler.AdminHandler
	AuthMiddleware   func(http.Handler) http.Handler
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recovery)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-API-Key"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	if cfg.Handler != nil {
		r.Get("/api/status", cfg.Handler.Status)
	}

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.Handler != nil {
			r.Get("/health", cfg.Handler.Health)
			r.Get("/ready", cfg.Handler.Ready)
		}

		if cfg.ItemHandler != nil {
			r.Get("/current", cfg.ItemHandler.Current)
			r.Route("/items", func(r chi.Router) {
				r.Get("/", cfg.ItemHandler.ListItems)
				r.Route("/{item_id}", func(r chi.Router) {
					r.Get("/", cfg.ItemHandler.GetItem)
					r.Post("/wishlist", cfg.ItemHandler.AddWishlist)
					r.Delete("/wishlist", cfg.ItemHandler.RemoveWishlist)
					if cfg.SocialHandler != nil {
						r.Get("/likes", cfg.SocialHandler.ListLikes)
						r.Post("/likes", cfg.SocialHandler.Like)
						r.Delete("/likes", cfg.SocialHandler.Unlike)
						r.Get("/reviews", cfg.SocialHandler.ListReviews)
						r.Post("/reviews", cfg.SocialHandler.PostReview)
						r.Get("/market", cfg.SocialHandler.GetMarket)
					}
				})
			})
		}

		if cfg.SocialHandler != nil {
			r.Route("/reviews/{review_id}", func(r chi.Router) {
				r.Put("/", cfg.SocialHandler.UpdateReview)
				r.Delete("/", cfg.SocialHandler.DeleteReview)
				r.Post("/report", cfg.SocialHandler.ReportReview)
			})
		}

		if cfg.PushTokenHandler != nil {
			r.Post("/push-tokens", cfg.PushTokenHandler.Register)
			r.Delete("/push-tokens", cfg.PushTokenHandler.Unregister)
		}

		// Admin routes require an API key.
		if cfg.AdminHandler != nil {
			r.Route("/admin", func(r chi.Router) {
				if cfg.AuthMiddleware != nil {
					r.Use(cfg.AuthMiddleware)
				}
				r.Get("/stats", cfg.AdminHandler.GetStats)
				r.Get("/unknown-items", cfg.AdminHandler.ListUnknown)
				r.Get("/source", cfg.AdminHandler.FetchSource)
				r.Post("/backfill", cfg.AdminHandler.Backfill)
				r.Post("/jobs/{job}", cfg.AdminHandler.RunJob)
				r.Post("/market/ingest", cfg.AdminHandler.IngestMarket)
			})
		}
	})

	return r
}
