package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/quoteflow/api/controllers"
	"github.com/angelmondragon/quoteflow/api/middleware"
	"github.com/angelmondragon/quoteflow/internal/flow"
	products "github.com/angelmondragon/quoteflow/internal/products"
	"github.com/angelmondragon/quoteflow/pkg/config"
	"github.com/angelmondragon/quoteflow/pkg/enums"
	"github.com/angelmondragon/quoteflow/pkg/logger"
	"github.com/angelmondragon/quoteflow/pkg/metrics"
	"github.com/angelmondragon/quoteflow/pkg/redis"
)

// RequestStore backs the idempotency and rate limit middleware.
type RequestStore interface {
	redis.IdempotencyStore
	IncrWithTTL(context.Context, string, time.Duration) (int64, error)
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	store RequestStore,
	httpMetrics *metrics.HTTPMetrics,
	metricsHandler http.Handler,
	readiness []controllers.ReadinessCheck,
	productService products.Service,
	flowService flow.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(httpMetrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	var idempotencyStore redis.IdempotencyStore
	var rateStore middleware.RateLimitStore
	if store != nil {
		idempotencyStore = store
		rateStore = store
	}
	idempotent := middleware.Idempotency(idempotencyStore, logg)
	publicPolicy := middleware.NewRateLimitPolicy(
		"shared",
		cfg.RateLimit.PublicWindow,
		cfg.RateLimit.PublicIPLimit,
		cfg.RateLimit.PublicEmailLimit,
	)
	resellerOnly := middleware.RequireRole(enums.RoleReseller, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness...))
	})

	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}

	r.Route("/api/public", func(r chi.Router) {
		r.Use(middleware.RateLimit(publicPolicy, rateStore, logg))
		r.Post("/shared/{token}", controllers.StartSharedFlow(flowService, logg))
		r.With(idempotent).Post("/shared/{token}/accept", controllers.AcceptSharedQuote(flowService, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.OptionalAuth(cfg.JWT, logg))

		r.Get("/products", controllers.ListProducts(productService, logg))
		r.Post("/vin/validate", controllers.ValidateVIN(logg))

		r.Route("/flows", func(r chi.Router) {
			r.With(middleware.Auth(cfg.JWT, logg)).Post("/", controllers.CreateFlow(flowService, logg))

			// Shared-link flows are driven anonymously, so the page owner check
			// lives in the flow service rather than here.
			r.Route("/{flowId}", func(r chi.Router) {
				r.Get("/", controllers.GetFlow(flowService, logg))
				r.Post("/reset", controllers.ResetFlow(flowService, logg))
				r.Put("/vehicle", controllers.UpdateVehicle(flowService, logg))
				r.Post("/quotes/hero", controllers.SubmitHeroQuote(flowService, logg))
				r.Post("/quotes/vsc", controllers.SubmitVSCQuote(flowService, logg))
				r.Post("/payment", controllers.OpenPayment(flowService, logg))
				r.With(idempotent).Post("/payment/card", controllers.SubmitCard(flowService, logg))
				r.Delete("/payment", controllers.CancelPayment(flowService, logg))
				r.With(resellerOnly, idempotent).Post("/share", controllers.CreateShare(flowService, logg))
				r.With(resellerOnly, idempotent).Post("/share/email", controllers.EmailShare(flowService, logg))
			})
		})
	})

	return r
}
