package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/veridia-labs/veridia-backend/internal/delivery"
	"github.com/veridia-labs/veridia-backend/internal/reports"
	"github.com/veridia-labs/veridia-backend/pkg/bigquery"
	"github.com/veridia-labs/veridia-backend/pkg/config"
	"github.com/veridia-labs/veridia-backend/pkg/db"
	"github.com/veridia-labs/veridia-backend/pkg/logger"
	"github.com/veridia-labs/veridia-backend/pkg/metrics"
	"github.com/veridia-labs/veridia-backend/pkg/pubsub"
)

// The delivery worker consumes delivery jobs published by the API when
// VERIDIA_DELIVERY_MODE=pubsub. It needs the same report store as the API so
// the sent flag lands in the same place.
func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "delivery-worker"})

	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "delivery-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	var store reports.Store
	switch cfg.Store.Backend {
	case config.StoreBackendPostgres:
		dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
		requireResource(ctx, logg, "database", err)
		defer dbClient.Close()
		store = reports.NewGormStore(dbClient)

	case config.StoreBackendBigQuery:
		bqClient, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg)
		requireResource(ctx, logg, "bigquery", err)
		defer bqClient.Close()
		store, err = reports.NewBigQueryStore(bqClient)
		requireResource(ctx, logg, "bigquery store", err)

	default:
		// The in-memory store is process local; a separate worker could never
		// see the API's reports.
		requireResource(ctx, logg, "store backend",
			fmt.Errorf("store backend %q cannot back a standalone worker", cfg.Store.Backend))
	}

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	requireResource(ctx, logg, "pubsub", err)
	defer pubsubClient.Close()

	subscription := pubsubClient.DeliverySubscription()
	if subscription == nil {
		requireResource(ctx, logg, "pubsub subscription",
			errors.New("VERIDIA_PUBSUB_DELIVERY_SUBSCRIPTION is required"))
	}

	webhookMetrics := metrics.NewWebhookMetrics(prometheus.NewRegistry())

	deliverySvc, err := delivery.NewService(delivery.ServiceParams{
		Store:   store,
		Mailer:  delivery.NewResendMailer(cfg.Resend),
		Metrics: webhookMetrics,
		Logger:  logg,
	})
	requireResource(ctx, logg, "delivery service", err)

	consumer, err := delivery.NewConsumer(deliverySvc, subscription, logg)
	requireResource(ctx, logg, "delivery consumer", err)

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":           cfg.App.Env,
		"store_backend": cfg.Store.Backend,
	})
	logg.Info(runCtx, "delivery worker ready")

	if err := consumer.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "delivery worker not working", err)
		os.Exit(1)
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
