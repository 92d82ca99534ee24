package controllers

import (
	"context"
	"net/http"

	"github.com/veridia-labs/veridia-backend/api/responses"
	"github.com/veridia-labs/veridia-backend/api/validators"
	"github.com/veridia-labs/veridia-backend/internal/checkout"
	pkgerrors "github.com/veridia-labs/veridia-backend/pkg/errors"
	"github.com/veridia-labs/veridia-backend/pkg/logger"
)

type CheckoutService interface {
	CreateSession(ctx context.Context, input checkout.CreateSessionInput) (string, error)
}

type checkoutRequest struct {
	ReportID string   `json:"report_id" validate:"required"`
	Email    string   `json:"email" validate:"omitempty,email"`
	Modules  []string `json:"modules" validate:"omitempty,dive,required"`
}

// CreateCheckoutSession starts the unlock purchase for a locked report.
func CreateCheckoutSession(svc CheckoutService, logg *logger.Logger) http.HandlerFunc {
	return createSession(svc, logg, checkout.FlowUnlock)
}

// CreateRepairCheckoutSession starts the repair purchase for an unlocked report.
func CreateRepairCheckoutSession(svc CheckoutService, logg *logger.Logger) http.HandlerFunc {
	return createSession(svc, logg, checkout.FlowRepair)
}

func createSession(svc CheckoutService, logg *logger.Logger, flow checkout.Flow) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeDependency, "checkout unavailable"))
			return
		}

		var req checkoutRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		url, err := svc.CreateSession(ctx, checkout.CreateSessionInput{
			ReportID: req.ReportID,
			Email:    req.Email,
			Modules:  req.Modules,
			Flow:     flow,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"checkout_url": url})
	}
}
