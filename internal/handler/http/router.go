package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agenthub/wishlist-service/internal/service"
	"github.com/agenthub/wishlist-service/pkg/health"
	"github.com/agenthub/wishlist-service/pkg/middleware"
)

// publicCacheMaxAge caches public slug lookups at the edge for one minute.
const publicCacheMaxAge = 60

// RouterConfig carries the request-surface settings the router needs.
type RouterConfig struct {
	Environment        string
	UserID             string
	CORSAllowedOrigins []string
	PprofAllowedCIDRs  []string
}

// NewRouter creates a chi router with all wishlist service routes registered.
func NewRouter(
	cfg RouterConfig,
	sync *service.Synchronizer,
	favorites *service.Favorites,
	healthHandler *health.Handler,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		ExposedHeaders: []string{"X-Correlation-ID"},
		Environment:    cfg.Environment,
	}))
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics("wishlist"))
	r.Use(middleware.Tracing("wishlist"))
	r.Use(WithUser(cfg.UserID))
	r.Use(middleware.RequestLogger(logger))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// Pprof debug endpoints with IP allowlist.
	middleware.RegisterPprof(r, cfg.PprofAllowedCIDRs, logger)

	handler := NewWishlistHandler(sync, favorites, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/wishlists", func(r chi.Router) {
			r.Use(ContentTypeJSON)

			r.Get("/", handler.ListWishlists)
			r.Post("/", handler.CreateWishlist)
			r.Post("/refresh", handler.Refresh)
			r.Get("/selected", handler.SelectedWishlist)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", handler.GetWishlist)
				r.Patch("/", handler.UpdateWishlist)
				r.Delete("/", handler.DeleteWishlist)
				r.Post("/select", handler.SelectWishlist)
				r.Post("/visibility", handler.SetVisibility)
				r.Post("/items", handler.AddItem)
				r.Delete("/items/{itemId}", handler.RemoveItem)
			})
		})

		r.Route("/favorites", func(r chi.Router) {
			r.Use(ContentTypeJSON)

			r.Get("/{itemId}", handler.GetFavorite)
			r.Post("/{itemId}/toggle", handler.ToggleFavorite)
		})

		// Shared links resolve without a session and are edge-cacheable.
		r.With(middleware.CacheControl(publicCacheMaxAge)).
			Get("/public/wishlists/{slug}", handler.GetPublicWishlist)
	})

	return r
}
