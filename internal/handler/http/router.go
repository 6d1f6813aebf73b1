package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Papaai2/baladymall-sub000/internal/service"
	"github.com/Papaai2/baladymall-sub000/pkg/health"
	"github.com/Papaai2/baladymall-sub000/pkg/middleware"
)

// RouterConfig holds the HTTP surface settings.
type RouterConfig struct {
	ServiceName    string
	LoginURL       string
	RequestTimeout time.Duration
}

// NewRouter creates a chi router with every storefront route registered.
func NewRouter(
	carts *service.CartService,
	cartValidator *service.CartValidator,
	checkout *service.CheckoutService,
	healthHandler *health.Handler,
	logger *slog.Logger,
	cfg RouterConfig,
) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(cfg.RequestTimeout))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(cfg.ServiceName))
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.RequestLogger(logger))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	cartHandler := NewCartHandler(carts, cartValidator, logger)
	checkoutHandler := NewCheckoutHandler(checkout, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Route("/cart", func(r chi.Router) {
			r.Use(middleware.Session(middleware.SessionConfig{LoginURL: cfg.LoginURL, ResumePath: "/cart"}))

			r.Get("/", cartHandler.GetCart)
			r.Delete("/", cartHandler.ClearCart)

			r.Post("/items", cartHandler.AddItem)
			r.Put("/items/{productId}", cartHandler.UpdateItem)
			r.Delete("/items/{productId}", cartHandler.RemoveItem)
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Use(middleware.Session(middleware.SessionConfig{LoginURL: cfg.LoginURL, ResumePath: "/checkout"}))

			r.Get("/", checkoutHandler.Preview)
			r.Post("/", checkoutHandler.PlaceOrder)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Use(middleware.Session(middleware.SessionConfig{LoginURL: cfg.LoginURL}))

			r.Get("/", checkoutHandler.ListOrders)
			r.Get("/{orderId}", checkoutHandler.GetOrder)
		})
	})

	return r
}
