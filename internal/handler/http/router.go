package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/orderservice/internal/service"
	"github.com/utafrali/orderservice/pkg/health"
	"github.com/utafrali/orderservice/pkg/middleware"
)

// NewRouter creates a chi router with all cart and order routes registered.
// A nil corsCfg leaves the CORS middleware unmounted.
func NewRouter(
	cartService *service.CartService,
	orderService *service.OrderService,
	healthHandler *health.Handler,
	logger *slog.Logger,
	pprofCIDRs []string,
	corsCfg *middleware.CORSConfig,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	if corsCfg != nil {
		r.Use(middleware.CORS(*corsCfg))
	}
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics("orderservice"))
	r.Use(middleware.Tracing("orderservice"))
	r.Use(middleware.RequestLogger(logger))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// Pprof debug endpoints with IP allowlist.
	middleware.RegisterPprof(r, pprofCIDRs, logger)

	cartHandler := NewCartHandler(cartService, logger)
	orderHandler := NewOrderHandler(orderService, logger)

	r.Route("/carts", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Post("/", cartHandler.CreateCart)
		r.Get("/", cartHandler.ListCarts)
		r.Get("/{id}", cartHandler.GetCart)
		r.Delete("/{id}", cartHandler.DeleteCart)
		r.Post("/{id}/items", cartHandler.AddItem)
		r.Put("/{id}/items/{productId}", cartHandler.UpdateItem)
		r.Delete("/{id}/items/{productId}", cartHandler.RemoveItem)
		r.Post("/{id}/checkout", cartHandler.Checkout)
	})

	r.Route("/orders", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Post("/", orderHandler.CreateOrder)
		r.Get("/", orderHandler.ListOrders)
		r.Get("/{id}", orderHandler.GetOrder)
		r.Put("/{id}", orderHandler.UpdateOrder)
		r.Patch("/{id}/status", orderHandler.UpdateOrderStatus)
		r.Delete("/{id}", orderHandler.DeleteOrder)
	})

	return r
}
