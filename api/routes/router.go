package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/cardtrove-backend/api/controllers"
	listingcontrollers "github.com/angelmondragon/cardtrove-backend/api/controllers/listings"
	offercontrollers "github.com/angelmondragon/cardtrove-backend/api/controllers/offers"
	ordercontrollers "github.com/angelmondragon/cardtrove-backend/api/controllers/orders"
	reputationcontrollers "github.com/angelmondragon/cardtrove-backend/api/controllers/reputation"
	shippingcontrollers "github.com/angelmondragon/cardtrove-backend/api/controllers/shipping"
	webhookcontrollers "github.com/angelmondragon/cardtrove-backend/api/controllers/webhooks"
	"github.com/angelmondragon/cardtrove-backend/api/middleware"
	checkoutsvc "github.com/angelmondragon/cardtrove-backend/internal/checkout"
	"github.com/angelmondragon/cardtrove-backend/internal/listings"
	"github.com/angelmondragon/cardtrove-backend/internal/offers"
	"github.com/angelmondragon/cardtrove-backend/internal/orders"
	"github.com/angelmondragon/cardtrove-backend/internal/payments"
	"github.com/angelmondragon/cardtrove-backend/internal/reputation"
	"github.com/angelmondragon/cardtrove-backend/internal/shipping"
	"github.com/angelmondragon/cardtrove-backend/pkg/config"
	"github.com/angelmondragon/cardtrove-backend/pkg/db"
	"github.com/angelmondragon/cardtrove-backend/pkg/logger"
	"github.com/angelmondragon/cardtrove-backend/pkg/metrics"
	pkgredis "github.com/angelmondragon/cardtrove-backend/pkg/redis"
	"github.com/angelmondragon/cardtrove-backend/pkg/stripe"
)

// Cache is the Redis surface the HTTP layer needs.
type Cache interface {
	pkgredis.IdempotencyStore
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
	Ping(ctx context.Context) error
}

// Params carries everything the router mounts. Nil services answer with a 500.
type Params struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       db.Pinger
	Cache    Cache
	Gatherer prometheus.Gatherer
	Metrics  *metrics.Marketplace

	Listings   listings.Service
	Offers     offers.Service
	Orders     orders.Service
	Checkout   checkoutsvc.Service
	Payments   payments.Service
	Shipping   shipping.Service
	Reputation reputation.Service

	Stripe      *stripe.Client
	StripeGuard *payments.EventGuard
}

func NewRouter(p Params) http.Handler {
	cfg := p.Config
	logg := p.Logger

	var (
		verifier webhookcontrollers.EventVerifier
		guard    webhookcontrollers.EventGuard
	)
	if p.Stripe != nil {
		verifier = p.Stripe
	}
	if p.StripeGuard != nil {
		guard = p.StripeGuard
	}
	var limiter middleware.RateLimiterStore = p.Cache

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	readiness := map[string]controllers.Pinger{}
	if p.DB != nil {
		readiness["database"] = p.DB
	}
	if p.Cache != nil {
		readiness["redis"] = p.Cache
	}
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})
	if p.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(p.Payments, verifier, guard, p.Metrics, logg))
		r.Post("/carrier", webhookcontrollers.CarrierWebhook(p.Shipping, logg))
	})

	offerPolicy := middleware.NewRateLimitPolicy("offers", cfg.Marketplace.OfferRateLimitPerHour, time.Hour)
	reportPolicy := middleware.NewRateLimitPolicy("reports", cfg.Marketplace.ReportRateLimitPerHour, time.Hour)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(p.Cache, logg))

		r.Post("/checkout", controllers.Checkout(p.Checkout, logg))

		r.Route("/listings", func(r chi.Router) {
			r.Post("/", listingcontrollers.Create(p.Listings, logg))
			r.Get("/", listingcontrollers.List(p.Listings, logg))
			r.Get("/{listingId}", listingcontrollers.Get(p.Listings, logg))
			r.Patch("/{listingId}", listingcontrollers.Update(p.Listings, logg))
			r.Post("/{listingId}/cancel", listingcontrollers.Cancel(p.Listings, logg))
			r.With(middleware.UserRateLimit(offerPolicy, limiter, logg)).
				Post("/{listingId}/offers", offercontrollers.Create(p.Offers, logg))
			r.Get("/{listingId}/offers", offercontrollers.ListForListing(p.Offers, logg))
		})

		r.Route("/offers", func(r chi.Router) {
			r.Get("/", offercontrollers.ListMine(p.Offers, logg))
			r.Get("/{offerId}", offercontrollers.Get(p.Offers, logg))
			r.Post("/{offerId}/accept", offercontrollers.Accept(p.Offers, logg))
			r.Post("/{offerId}/decline", offercontrollers.Decline(p.Offers, logg))
			r.Post("/{offerId}/counter", offercontrollers.Counter(p.Offers, logg))
			r.Post("/{offerId}/withdraw", offercontrollers.Withdraw(p.Offers, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", ordercontrollers.List(p.Orders, logg))
			r.Get("/{orderId}", ordercontrollers.Detail(p.Orders, logg))
			r.Post("/{orderId}/cancel", ordercontrollers.Cancel(p.Orders, logg))
			r.Post("/{orderId}/complete", ordercontrollers.Complete(p.Orders, logg))
			r.Post("/{orderId}/shipping/rates", shippingcontrollers.Rates(p.Shipping, logg))
			r.Post("/{orderId}/shipping/label", shippingcontrollers.Label(p.Shipping, logg))
			r.Post("/{orderId}/review", reputationcontrollers.SubmitReview(p.Reputation, logg))
		})

		r.Get("/sellers/{sellerId}/reviews", reputationcontrollers.SellerReviews(p.Reputation, logg))
		r.With(middleware.UserRateLimit(reportPolicy, limiter, logg)).
			Post("/reports", reputationcontrollers.SubmitReport(p.Reputation, logg))
		r.Post("/blocks", reputationcontrollers.Block(p.Reputation, logg))
		r.Delete("/blocks/{userId}", reputationcontrollers.Unblock(p.Reputation, logg))

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole("admin", logg))
			r.Post("/reports/{reportId}/resolve", reputationcontrollers.ResolveReport(p.Reputation, logg))
		})
	})

	return r
}
