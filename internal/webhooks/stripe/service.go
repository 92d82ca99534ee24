package stripewebhook

import (
	"context"
	"encoding/json"
	"time"

	"github.com/stripe/stripe-go/v84"

	"github.com/veridia-labs/veridia-backend/internal/checkout"
	"github.com/veridia-labs/veridia-backend/internal/delivery"
	"github.com/veridia-labs/veridia-backend/internal/reports"
	pkgerrors "github.com/veridia-labs/veridia-backend/pkg/errors"
	"github.com/veridia-labs/veridia-backend/pkg/logger"
	"github.com/veridia-labs/veridia-backend/pkg/metrics"
)

// Webhook event outcome labels used on the metrics counter.
const (
	OutcomeUnlocked     = "unlocked"
	OutcomeRepaired     = "repair_activated"
	OutcomeDuplicate    = "duplicate"
	OutcomeIgnored      = "ignored"
	OutcomeUnpaid       = "unpaid"
	OutcomeNoMetadata   = "no_metadata"
	OutcomeUnknownID    = "unknown_report"
	OutcomeInvalidState = "invalid_state"
	OutcomeError        = "error"
)

type ServiceParams struct {
	Store      reports.Store
	Dispatcher delivery.Dispatcher
	Metrics    *metrics.WebhookMetrics
	Logger     *logger.Logger
}

// Service applies verified Stripe events to report state. The state-keyed
// conditional write in the store is the source of truth for idempotency;
// everything downstream of a committed transition is best effort.
type Service struct {
	store      reports.Store
	dispatcher delivery.Dispatcher
	metrics    *metrics.WebhookMetrics
	logg       *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "report store required")
	}
	return &Service{
		store:      params.Store,
		dispatcher: params.Dispatcher,
		metrics:    params.Metrics,
		logg:       params.Logger,
	}, nil
}

// HandleEvent processes one verified event. A nil return acks the delivery;
// an error return tells Stripe to retry, so only failures where a retry can
// still change the outcome may surface here.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	logCtx := ctx
	if s.logg != nil {
		logCtx = s.logg.WithEventID(ctx, event.ID)
	}

	if event.Type != stripe.EventTypeCheckoutSessionCompleted {
		s.metrics.IncEvent(OutcomeIgnored)
		return nil
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session")
	}

	// Completed sessions can still be unpaid (e.g. delayed payment methods);
	// a later async_payment_succeeded redelivers the paid state.
	if session.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		s.metrics.IncEvent(OutcomeUnpaid)
		if s.logg != nil {
			s.logg.Info(logCtx, "session completed but not paid, ignoring")
		}
		return nil
	}

	reportID := session.Metadata[checkout.MetadataReportID]
	if reportID == "" {
		// Not our session. Ack so Stripe stops redelivering it.
		s.metrics.IncEvent(OutcomeNoMetadata)
		if s.logg != nil {
			s.logg.Warn(logCtx, "paid session has no report metadata")
		}
		return nil
	}
	logCtx = s.withReportID(logCtx, reportID)

	flow := checkout.Flow(session.Metadata[checkout.MetadataFlow])
	if flow == "" {
		flow = checkout.FlowUnlock
	}

	switch flow {
	case checkout.FlowUnlock:
		return s.unlock(ctx, logCtx, event, &session, reportID)
	case checkout.FlowRepair:
		return s.activateRepair(ctx, logCtx, event, &session, reportID)
	default:
		s.metrics.IncEvent(OutcomeIgnored)
		if s.logg != nil {
			s.logg.Warn(logCtx, "unknown checkout flow in metadata")
		}
		return nil
	}
}

func (s *Service) unlock(ctx, logCtx context.Context, event *stripe.Event, session *stripe.CheckoutSession, reportID string) error {
	report, err := s.store.Get(ctx, reportID)
	if err != nil {
		if err == reports.ErrNotFound {
			s.metrics.IncEvent(OutcomeUnknownID)
			if s.logg != nil {
				s.logg.Warn(logCtx, "paid session references unknown report")
			}
			return nil
		}
		s.metrics.IncEvent(OutcomeError)
		return err
	}

	applied, err := s.store.Unlock(ctx, reportID, reports.UnlockFields{
		FullResult:      reports.BuildFullResult(report),
		PaidAt:          paidAt(event),
		StripeSessionID: session.ID,
		LastEventID:     event.ID,
	})
	if err != nil {
		if err == reports.ErrNotFound {
			s.metrics.IncEvent(OutcomeUnknownID)
			return nil
		}
		s.metrics.IncEvent(OutcomeError)
		return err
	}
	if !applied {
		// Already unlocked: a replay or a second session for the same report.
		s.metrics.IncEvent(OutcomeDuplicate)
		if s.logg != nil {
			s.logg.Info(logCtx, "report already unlocked, duplicate event acked")
		}
		return nil
	}

	s.metrics.IncEvent(OutcomeUnlocked)
	if s.logg != nil {
		s.logg.Info(logCtx, "report unlocked")
	}
	s.enqueueDelivery(ctx, logCtx, delivery.Job{
		ReportID:  reportID,
		Flow:      checkout.FlowUnlock,
		EventID:   event.ID,
		SessionID: session.ID,
	})
	return nil
}

func (s *Service) activateRepair(ctx, logCtx context.Context, event *stripe.Event, session *stripe.CheckoutSession, reportID string) error {
	applied, err := s.store.ActivateRepair(ctx, reportID, reports.RepairFields{
		PaidAt:          paidAt(event),
		StripeSessionID: session.ID,
		LastEventID:     event.ID,
	})
	if err != nil {
		if err == reports.ErrNotFound {
			s.metrics.IncEvent(OutcomeUnknownID)
			if s.logg != nil {
				s.logg.Warn(logCtx, "repair session references unknown report")
			}
			return nil
		}
		s.metrics.IncEvent(OutcomeError)
		return err
	}
	if !applied {
		// Either a replay (repair already active) or a repair paid against a
		// still-locked report. Both are terminal for this event.
		s.metrics.IncEvent(OutcomeInvalidState)
		if s.logg != nil {
			s.logg.Warn(logCtx, "repair activation not applied")
		}
		return nil
	}

	s.metrics.IncEvent(OutcomeRepaired)
	if s.logg != nil {
		s.logg.Info(logCtx, "repair plan activated")
	}
	s.enqueueDelivery(ctx, logCtx, delivery.Job{
		ReportID:  reportID,
		Flow:      checkout.FlowRepair,
		EventID:   event.ID,
		SessionID: session.ID,
	})
	return nil
}

// enqueueDelivery runs only after the transition committed. Failures are
// logged, never propagated: the ack must stand regardless.
func (s *Service) enqueueDelivery(ctx, logCtx context.Context, job delivery.Job) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Enqueue(ctx, job); err != nil {
		s.metrics.IncDelivery(delivery.OutcomeDropped)
		if s.logg != nil {
			s.logg.Error(logCtx, "failed to enqueue delivery job", err)
		}
	}
}

func (s *Service) withReportID(ctx context.Context, reportID string) context.Context {
	if s.logg == nil {
		return ctx
	}
	return s.logg.WithReportID(ctx, reportID)
}

func paidAt(event *stripe.Event) time.Time {
	if event != nil && event.Created > 0 {
		return time.Unix(event.Created, 0).UTC()
	}
	return time.Now().UTC()
}
