package checkout

import (
	"context"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/checkout/session"

	pkgstripe "github.com/veridia-labs/veridia-backend/pkg/stripe"
)

type stripeClientWrapper struct{}

// NewStripeClient wraps the shared Stripe client so the checkout service can
// be tested against a stub.
func NewStripeClient(api *pkgstripe.Client) SessionClient {
	if api == nil {
		return nil
	}
	return &stripeClientWrapper{}
}

func (w *stripeClientWrapper) Create(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	if params != nil {
		params.Context = ctx
	}
	return session.New(params)
}
