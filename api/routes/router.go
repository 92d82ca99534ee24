package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/veridia-labs/veridia-backend/api/controllers"
	webhookcontrollers "github.com/veridia-labs/veridia-backend/api/controllers/webhooks"
	"github.com/veridia-labs/veridia-backend/api/middleware"
	stripewebhook "github.com/veridia-labs/veridia-backend/internal/webhooks/stripe"
	"github.com/veridia-labs/veridia-backend/pkg/config"
	"github.com/veridia-labs/veridia-backend/pkg/logger"
	pkgstripe "github.com/veridia-labs/veridia-backend/pkg/stripe"
)

// RouterParams carries everything the HTTP surface depends on. Optional
// dependencies may be nil; the affected endpoints degrade instead of the
// whole router failing to build.
type RouterParams struct {
	Config          *config.Config
	Logger          *logger.Logger
	AnalyzeService  controllers.AnalyzeService
	ReportsService  controllers.ReportsService
	CheckoutService controllers.CheckoutService
	WebhookService  webhookcontrollers.StripeWebhookService
	WebhookGuard    *stripewebhook.IdempotencyGuard
	StripeClient    *pkgstripe.Client
	Registry        *prometheus.Registry
	Dependencies    map[string]controllers.Pinger
}

func NewRouter(params RouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/", controllers.HealthLive(cfg.App.Env))
		r.Get("/live", controllers.HealthLive(cfg.App.Env))
		r.Get("/ready", controllers.HealthReady(cfg.App.Env, logg, params.Dependencies))
	})

	r.Get("/modules", controllers.Modules())
	r.Post("/analyze", controllers.Analyze(params.AnalyzeService, logg))

	r.Post("/create-checkout-session", controllers.CreateCheckoutSession(params.CheckoutService, logg))
	r.Post("/create-repair-checkout-session", controllers.CreateRepairCheckoutSession(params.CheckoutService, logg))

	// Stripe points at /stripe-webhook; the aliased path survives from an
	// earlier dashboard configuration.
	stripeHandler := webhookcontrollers.StripeWebhook(params.WebhookService, stripeSigner(params.StripeClient), webhookGuard(params.WebhookGuard), logg)
	r.Post("/stripe-webhook", stripeHandler)
	r.Post("/stripe/webhook", stripeHandler)

	r.Get("/report/{reportID}", controllers.GetReport(params.ReportsService, logg))
	r.Get("/report-status/{reportID}", controllers.GetReportStatus(params.ReportsService, logg))

	if params.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(params.Registry, promhttp.HandlerOpts{}))
	}

	return r
}

type signingSecretProvider interface {
	SigningSecret() string
}

// stripeSigner avoids handing the webhook controller a typed nil.
func stripeSigner(client *pkgstripe.Client) signingSecretProvider {
	if client == nil {
		return nil
	}
	return client
}

type eventGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

// webhookGuard avoids handing the webhook controller a typed nil when Redis
// is not configured.
func webhookGuard(guard *stripewebhook.IdempotencyGuard) eventGuard {
	if guard == nil {
		return nil
	}
	return guard
}
