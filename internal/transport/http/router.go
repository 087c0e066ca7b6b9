package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/yong-jelly/usemap-sub002/internal/handler"
	"github.com/yong-jelly/usemap-sub002/internal/httputil"
	"github.com/yong-jelly/usemap-sub002/internal/metrics"
	authmw "github.com/yong-jelly/usemap-sub002/internal/transport/http/middleware"
)

// RouterConfig holds the dependencies needed to create routes
type RouterConfig struct {
	CommentHandler *handler.CommentHandler
	MediaHandler   *handler.MediaHandler
	JWTSecret      string
	RateLimiter    *authmw.RateLimiter // nil disables write rate limiting
}

// NewRouter creates and configures a new Chi router with all route groups
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	// Health check endpoint (useful for deployment/monitoring)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	// Public place endpoints; a valid token personalizes is_liked
	r.Group(func(r chi.Router) {
		r.Use(authmw.OptionalAuthMiddleware(cfg.JWTSecret))

		r.Get("/places/{placeId}/comments", cfg.CommentHandler.List)
		r.Get("/places/{placeId}/comments/count", cfg.CommentHandler.Count)
	})

	// Protected routes - require authentication
	r.Group(func(r chi.Router) {
		r.Use(authmw.AuthMiddleware(cfg.JWTSecret))
		if cfg.RateLimiter != nil {
			r.Use(cfg.RateLimiter.Middleware)
		}

		r.Post("/places/{placeId}/comments", cfg.CommentHandler.Create)
		r.Post("/places/{placeId}/comments/attachments", cfg.MediaHandler.UploadAttachment)

		r.Route("/comments/{commentId}", func(r chi.Router) {
			r.Patch("/", cfg.CommentHandler.Update)
			r.Delete("/", cfg.CommentHandler.Deactivate)
			r.Post("/like", cfg.CommentHandler.ToggleLike)
		})
	})

	return r
}
