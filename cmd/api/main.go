package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/cardtrove-backend/api/routes"
	"github.com/angelmondragon/cardtrove-backend/internal/catalog"
	"github.com/angelmondragon/cardtrove-backend/internal/checkout"
	"github.com/angelmondragon/cardtrove-backend/internal/fees"
	"github.com/angelmondragon/cardtrove-backend/internal/listings"
	"github.com/angelmondragon/cardtrove-backend/internal/offers"
	"github.com/angelmondragon/cardtrove-backend/internal/orders"
	"github.com/angelmondragon/cardtrove-backend/internal/payments"
	"github.com/angelmondragon/cardtrove-backend/internal/reputation"
	"github.com/angelmondragon/cardtrove-backend/internal/shipping"
	"github.com/angelmondragon/cardtrove-backend/internal/users"
	"github.com/angelmondragon/cardtrove-backend/pkg/carrier"
	"github.com/angelmondragon/cardtrove-backend/pkg/config"
	"github.com/angelmondragon/cardtrove-backend/pkg/db"
	"github.com/angelmondragon/cardtrove-backend/pkg/logger"
	"github.com/angelmondragon/cardtrove-backend/pkg/metrics"
	"github.com/angelmondragon/cardtrove-backend/pkg/migrate"
	"github.com/angelmondragon/cardtrove-backend/pkg/outbox"
	"github.com/angelmondragon/cardtrove-backend/pkg/redis"
	"github.com/angelmondragon/cardtrove-backend/pkg/stripe"
)

const (
	stripeEventTTL  = 72 * time.Hour
	shutdownTimeout = 15 * time.Second
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	bootCtx := context.Background()

	dbClient, err := db.New(bootCtx, cfg.DB, logg)
	requireResource(bootCtx, logg, "database", err)

	requireResource(bootCtx, logg, "dev migrations", migrate.MaybeRunDev(bootCtx, cfg, logg, dbClient))

	redisClient, err := redis.New(bootCtx, cfg.Redis, logg)
	requireResource(bootCtx, logg, "redis", err)
	defer func() {
		if err := multierr.Combine(redisClient.Close(), dbClient.Close()); err != nil {
			logg.Error(bootCtx, "error closing datastores", err)
		}
	}()

	stripeClient, err := stripe.NewClient(bootCtx, cfg.Stripe, logg)
	requireResource(bootCtx, logg, "stripe", err)

	carrierClient, err := carrier.NewFromConfig(cfg.Carrier)
	requireResource(bootCtx, logg, "carrier", err)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	marketMetrics := metrics.NewMarketplace(registry)

	feeSchedule, err := fees.ScheduleFromConfig(cfg.Marketplace)
	requireResource(bootCtx, logg, "fee schedule", err)

	gormDB := dbClient.DB()
	outboxSvc := outbox.NewService(outbox.NewRepository(gormDB), logg)
	usersRepo := users.NewRepository(gormDB)
	catalogRepo := catalog.NewRepository(gormDB)
	listingsRepo := listings.NewRepository(gormDB)
	offersRepo := offers.NewRepository(gormDB)
	ordersRepo := orders.NewRepository(gormDB)

	reputationSvc, err := reputation.NewService(reputation.ServiceParams{
		Repo:                reputation.NewRepository(gormDB),
		Users:               usersRepo,
		Tx:                  dbClient,
		Outbox:              outboxSvc,
		Logger:              logg,
		ReportWindow:        cfg.Marketplace.ReportWindow,
		SuspensionThreshold: cfg.Marketplace.SuspensionThreshold,
	})
	requireResource(bootCtx, logg, "reputation service", err)

	listingsSvc, err := listings.NewService(listingsRepo, dbClient, outboxSvc, usersRepo, catalogRepo)
	requireResource(bootCtx, logg, "listings service", err)

	offersSvc, err := offers.NewService(offers.ServiceParams{
		Repo:     offersRepo,
		Listings: listingsRepo,
		Blocks:   reputationSvc,
		Tx:       dbClient,
		Outbox:   outboxSvc,
		Logger:   logg,
		TTL:      cfg.Marketplace.OfferTTL,
	})
	requireResource(bootCtx, logg, "offers service", err)

	ordersSvc, err := orders.NewService(orders.ServiceParams{
		Repo:            ordersRepo,
		Listings:        listingsRepo,
		Tx:              dbClient,
		Outbox:          outboxSvc,
		Payments:        stripeClient,
		Metrics:         marketMetrics,
		Logger:          logg,
		ProviderTimeout: cfg.Stripe.ProviderTimeout,
	})
	requireResource(bootCtx, logg, "orders service", err)

	checkoutSvc, err := checkout.NewService(checkout.ServiceParams{
		Orders:          ordersRepo,
		Listings:        listingsRepo,
		Offers:          offersRepo,
		Cards:           catalogRepo,
		Blocks:          reputationSvc,
		Sessions:        stripeClient,
		Fees:            feeSchedule,
		Currency:        stripeClient.Currency(),
		Tx:              dbClient,
		Outbox:          outboxSvc,
		Metrics:         marketMetrics,
		Logger:          logg,
		ProviderTimeout: cfg.Stripe.ProviderTimeout,
	})
	requireResource(bootCtx, logg, "checkout service", err)

	paymentsSvc, err := payments.NewService(payments.ServiceParams{
		Orders:          ordersRepo,
		Listings:        listingsRepo,
		Tx:              dbClient,
		Outbox:          outboxSvc,
		Refunds:         stripeClient,
		Metrics:         marketMetrics,
		Logger:          logg,
		ProviderTimeout: cfg.Stripe.ProviderTimeout,
	})
	requireResource(bootCtx, logg, "payments service", err)

	stripeGuard, err := payments.NewEventGuard(redisClient, stripeEventTTL, "stripe-webhook")
	requireResource(bootCtx, logg, "stripe event guard", err)

	shippingSvc, err := shipping.NewService(shipping.ServiceParams{
		Repo:          shipping.NewRepository(gormDB),
		Orders:        ordersRepo,
		Users:         usersRepo,
		Carrier:       carrierClient,
		FirstSale:     reputationSvc,
		Tx:            dbClient,
		Outbox:        outboxSvc,
		Metrics:       marketMetrics,
		Logger:        logg,
		Provider:      cfg.Carrier.Provider,
		WebhookSecret: cfg.Carrier.WebhookSecret,
		AllowUnsigned: cfg.App.IsDev(),
		Timeout:       cfg.Carrier.Timeout,
	})
	requireResource(bootCtx, logg, "shipping service", err)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":        cfg.App.Env,
		"addr":       addr,
		"stripe_env": stripeClient.Environment(),
	})

	server := &http.Server{
		Addr:              addr,
		ReadHeaderTimeout: 10 * time.Second,
		Handler: routes.NewRouter(routes.Params{
			Config:      cfg,
			Logger:      logg,
			DB:          dbClient,
			Cache:       redisClient,
			Gatherer:    registry,
			Metrics:     marketMetrics,
			Listings:    listingsSvc,
			Offers:      offersSvc,
			Orders:      ordersSvc,
			Checkout:    checkoutSvc,
			Payments:    paymentsSvc,
			Shipping:    shippingSvc,
			Reputation:  reputationSvc,
			Stripe:      stripeClient,
			StripeGuard: stripeGuard,
		}),
	}

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(ctx, "api server shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
