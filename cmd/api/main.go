package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/veridia-labs/veridia-backend/api/controllers"
	"github.com/veridia-labs/veridia-backend/api/routes"
	"github.com/veridia-labs/veridia-backend/internal/checkout"
	"github.com/veridia-labs/veridia-backend/internal/delivery"
	"github.com/veridia-labs/veridia-backend/internal/reports"
	stripewebhook "github.com/veridia-labs/veridia-backend/internal/webhooks/stripe"
	"github.com/veridia-labs/veridia-backend/pkg/bigquery"
	"github.com/veridia-labs/veridia-backend/pkg/config"
	"github.com/veridia-labs/veridia-backend/pkg/db"
	"github.com/veridia-labs/veridia-backend/pkg/logger"
	"github.com/veridia-labs/veridia-backend/pkg/metrics"
	"github.com/veridia-labs/veridia-backend/pkg/migrate"
	"github.com/veridia-labs/veridia-backend/pkg/pubsub"
	"github.com/veridia-labs/veridia-backend/pkg/redis"
	pkgstripe "github.com/veridia-labs/veridia-backend/pkg/stripe"
)

const webhookGuardTTL = 24 * time.Hour

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	webhookMetrics := metrics.NewWebhookMetrics(registry)

	deps := map[string]controllers.Pinger{}
	closers := []func() error{}
	closeAll := func() {
		var closeErr error
		for i := len(closers) - 1; i >= 0; i-- {
			closeErr = multierr.Append(closeErr, closers[i]())
		}
		if closeErr != nil {
			logg.Error(ctx, "error releasing resources", closeErr)
		}
	}
	defer closeAll()

	var store reports.Store
	switch cfg.Store.Backend {
	case config.StoreBackendMemory:
		store = reports.NewMemoryStore()

	case config.StoreBackendPostgres:
		dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
		requireResource(ctx, logg, "database", err)
		closers = append(closers, dbClient.Close)
		deps["database"] = dbClient

		err = migrate.MaybeRunDev(ctx, cfg, logg, dbClient)
		requireResource(ctx, logg, "dev migrations", err)

		store = reports.NewGormStore(dbClient)

	case config.StoreBackendBigQuery:
		bqClient, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg)
		requireResource(ctx, logg, "bigquery", err)
		closers = append(closers, bqClient.Close)
		deps["bigquery"] = bqClient

		store, err = reports.NewBigQueryStore(bqClient)
		requireResource(ctx, logg, "bigquery store", err)

	default:
		requireResource(ctx, logg, "store backend",
			fmt.Errorf("unknown store backend %q", cfg.Store.Backend))
	}

	var redisClient *redis.Client
	if cfg.Redis.Configured() {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		requireResource(ctx, logg, "redis", err)
		closers = append(closers, redisClient.Close)
		deps["redis"] = redisClient
	}

	var stripeClient *pkgstripe.Client
	if cfg.Stripe.APIKey != "" {
		stripeClient, err = pkgstripe.NewClient(ctx, cfg.Stripe, logg)
		requireResource(ctx, logg, "stripe", err)
	} else {
		logg.Warn(ctx, "stripe api key not set, checkout disabled")
	}

	reportsSvc, err := reports.NewService(store, logg)
	requireResource(ctx, logg, "reports service", err)

	checkoutSvc, err := checkout.NewService(checkout.ServiceParams{
		Store:        store,
		Stripe:       checkout.NewStripeClient(stripeClient),
		StripeConfig: cfg.Stripe,
		Logger:       logg,
	})
	requireResource(ctx, logg, "checkout service", err)

	deliverySvc, err := delivery.NewService(delivery.ServiceParams{
		Store:   store,
		Mailer:  delivery.NewResendMailer(cfg.Resend),
		Metrics: webhookMetrics,
		Logger:  logg,
	})
	requireResource(ctx, logg, "delivery service", err)

	var dispatcher delivery.Dispatcher
	switch cfg.Delivery.Mode {
	case config.DeliveryModePubSub:
		pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		requireResource(ctx, logg, "pubsub", err)
		closers = append(closers, pubsubClient.Close)
		deps["pubsub"] = pubsubClient

		dispatcher, err = delivery.NewPubSubDispatcher(pubsubClient.DeliveryPublisher(), logg)
		requireResource(ctx, logg, "delivery dispatcher", err)

	default:
		dispatcher, err = delivery.NewInlineDispatcher(deliverySvc, cfg.Delivery.BufferSize, logg)
		requireResource(ctx, logg, "delivery dispatcher", err)
	}
	closers = append(closers, dispatcher.Close)

	webhookSvc, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Store:      store,
		Dispatcher: dispatcher,
		Metrics:    webhookMetrics,
		Logger:     logg,
	})
	requireResource(ctx, logg, "webhook service", err)

	var guard *stripewebhook.IdempotencyGuard
	if redisClient != nil {
		guard, err = stripewebhook.NewIdempotencyGuard(redisClient, webhookGuardTTL, "stripe-webhook")
		requireResource(ctx, logg, "webhook idempotency guard", err)
	}

	handler := routes.NewRouter(routes.RouterParams{
		Config:          cfg,
		Logger:          logg,
		AnalyzeService:  reportsSvc,
		ReportsService:  reportsSvc,
		CheckoutService: checkoutSvc,
		WebhookService:  webhookSvc,
		WebhookGuard:    guard,
		StripeClient:    stripeClient,
		Registry:        registry,
		Dependencies:    deps,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	runCtx := logg.WithFields(ctx, map[string]any{
		"env":           cfg.App.Env,
		"addr":          addr,
		"store_backend": cfg.Store.Backend,
		"delivery_mode": cfg.Delivery.Mode,
	})
	logg.Info(runCtx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	shutdownCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	go func() {
		<-shutdownCtx.Done()
		drainCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = server.Shutdown(drainCtx)
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(runCtx, "api server stopped unexpectedly", err)
		closeAll()
		os.Exit(1)
	}

	logg.Info(runCtx, "api server shut down gracefully")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
