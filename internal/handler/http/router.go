package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/travelbooking/search/internal/service"
	"github.com/travelbooking/search/pkg/health"
	"github.com/travelbooking/search/pkg/middleware"
)

// RouterConfig carries the HTTP surface settings that vary per deployment.
type RouterConfig struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
	// SearchCacheMaxAge sets Cache-Control on GET search responses; zero disables it.
	SearchCacheMaxAge int
}

// NewRouter creates a chi router with all search service routes registered.
func NewRouter(
	searchService *service.SearchService,
	healthHandler *health.Handler,
	cfg RouterConfig,
	logger *slog.Logger,
) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Tracing("search"))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(cfg.RequestTimeout))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics("search"))

	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	searchHandler := NewSearchHandler(searchService, logger)

	r.Route("/api/v1/search", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if cfg.SearchCacheMaxAge > 0 {
				r.Use(middleware.CacheControl(cfg.SearchCacheMaxAge))
			}
			r.Get("/destinations", searchHandler.SearchDestinations)
			r.Get("/flights", searchHandler.SearchFlights)
			r.Get("/hotels", searchHandler.SearchHotels)
			r.Get("/autocomplete", searchHandler.Autocomplete)
		})

		r.Group(func(r chi.Router) {
			r.Use(ContentTypeJSON)
			r.Post("/initialize", searchHandler.Initialize)
			r.Post("/index/{kind}", searchHandler.IndexDocument)
			r.Post("/bulk/{kind}", searchHandler.BulkIndex)
			r.Delete("/{kind}/{id}", searchHandler.DeleteDocument)
		})
	})

	return r
}
