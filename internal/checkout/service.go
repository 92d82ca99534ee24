package checkout

import (
	"context"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/veridia-labs/veridia-backend/internal/catalog"
	"github.com/veridia-labs/veridia-backend/internal/reports"
	"github.com/veridia-labs/veridia-backend/pkg/config"
	pkgerrors "github.com/veridia-labs/veridia-backend/pkg/errors"
	"github.com/veridia-labs/veridia-backend/pkg/logger"
)

// Flow discriminates the two purchase types carried in session metadata and
// echoed back verbatim by the webhook.
type Flow string

const (
	FlowUnlock Flow = "unlock"
	FlowRepair Flow = "repair"
)

const (
	MetadataReportID = "report_id"
	MetadataFlow     = "flow"
)

// SessionClient is the subset of Stripe checkout operations the service
// needs, wrapped so the service can be tested.
type SessionClient interface {
	Create(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

type ServiceParams struct {
	Store        reports.Store
	Stripe       SessionClient
	StripeConfig config.StripeConfig
	Logger       *logger.Logger
}

type Service struct {
	store reports.Store
	api   SessionClient
	cfg   config.StripeConfig
	logg  *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "report store required")
	}
	return &Service{
		store: params.Store,
		api:   params.Stripe,
		cfg:   params.StripeConfig,
		logg:  params.Logger,
	}, nil
}

type CreateSessionInput struct {
	ReportID string
	Email    string
	Modules  []string
	Flow     Flow
}

// CreateSession validates the report's pre-transition state and asks Stripe
// for a hosted checkout session, returning its redirect URL.
func (s *Service) CreateSession(ctx context.Context, input CreateSessionInput) (string, error) {
	if s.api == nil || strings.TrimSpace(s.cfg.APIKey) == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "payment processor is not configured")
	}
	if strings.TrimSpace(input.ReportID) == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "report id is required")
	}

	report, err := s.store.Get(ctx, input.ReportID)
	if err != nil {
		if err == reports.ErrNotFound {
			return "", pkgerrors.New(pkgerrors.CodeNotFound, "report not found")
		}
		return "", err
	}

	switch input.Flow {
	case FlowUnlock:
		if report.Status != reports.StatusLocked {
			return "", pkgerrors.New(pkgerrors.CodeConflict, "report is already unlocked")
		}
	case FlowRepair:
		if report.Status != reports.StatusUnlocked {
			return "", pkgerrors.New(pkgerrors.CodeConflict, "report must be unlocked before purchasing a repair")
		}
		if report.RepairStatus != reports.RepairLocked {
			return "", pkgerrors.New(pkgerrors.CodeConflict, "repair is already active")
		}
	default:
		return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown flow %q", input.Flow))
	}

	lineItems, err := s.lineItems(report, input)
	if err != nil {
		return "", err
	}

	email := strings.TrimSpace(input.Email)
	if email == "" {
		email = report.OwnerEmail
	}

	params := &stripe.CheckoutSessionParams{
		Mode:          stripe.String(string(stripe.CheckoutSessionModePayment)),
		CustomerEmail: stripe.String(email),
		SuccessURL:    stripe.String(s.cfg.SuccessURL),
		CancelURL:     stripe.String(s.cfg.CancelURL),
		LineItems:     lineItems,
	}
	params.AddMetadata(MetadataReportID, report.ReportID)
	params.AddMetadata(MetadataFlow, string(input.Flow))

	session, err := s.api.Create(ctx, params)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "create checkout session")
	}
	if session == nil || session.URL == "" {
		return "", pkgerrors.New(pkgerrors.CodeUpstream, "checkout session has no redirect url")
	}

	if s.logg != nil {
		ctx = s.logg.WithFields(ctx, map[string]any{
			"report_id": report.ReportID,
			"flow":      string(input.Flow),
		})
		s.logg.Info(ctx, "checkout session created")
	}

	return session.URL, nil
}

func (s *Service) lineItems(report *reports.Report, input CreateSessionInput) ([]*stripe.CheckoutSessionLineItemParams, error) {
	if input.Flow == FlowRepair {
		if priceID := strings.TrimSpace(s.cfg.RepairPriceID); priceID != "" {
			return []*stripe.CheckoutSessionLineItemParams{{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			}}, nil
		}
		return s.fallbackLineItems(fmt.Sprintf("Veridia Repair - %s", report.ReportID)), nil
	}

	modules := input.Modules
	if len(modules) == 0 {
		modules = report.SelectedModules
	}

	items := []*stripe.CheckoutSessionLineItemParams{}
	for _, name := range modules {
		module, ok := catalog.Lookup(name)
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown module %q", name))
		}
		if !report.SelectedModules.Contains(module.Name) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("module %q was not selected on this report", module.Name))
		}
		priceID, ok := s.cfg.ModulePrices[module.Name]
		if !ok || strings.TrimSpace(priceID) == "" {
			continue
		}
		items = append(items, &stripe.CheckoutSessionLineItemParams{
			Price:    stripe.String(priceID),
			Quantity: stripe.Int64(1),
		})
	}

	// Without per-module prices, sell the unlock as a single line item.
	if len(items) == 0 {
		return s.fallbackLineItems(fmt.Sprintf("Veridia Report - %s", report.ReportID)), nil
	}
	return items, nil
}

func (s *Service) fallbackLineItems(productName string) []*stripe.CheckoutSessionLineItemParams {
	return []*stripe.CheckoutSessionLineItemParams{{
		Quantity: stripe.Int64(1),
		PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
			Currency:   stripe.String(s.cfg.Currency),
			UnitAmount: stripe.Int64(s.cfg.UnlockAmount),
			ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
				Name: stripe.String(productName),
			},
		},
	}}
}
