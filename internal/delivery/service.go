package delivery

import (
	"context"
	"time"

	"github.com/veridia-labs/veridia-backend/internal/checkout"
	"github.com/veridia-labs/veridia-backend/internal/reports"
	pkgerrors "github.com/veridia-labs/veridia-backend/pkg/errors"
	"github.com/veridia-labs/veridia-backend/pkg/logger"
	"github.com/veridia-labs/veridia-backend/pkg/metrics"
)

type ServiceParams struct {
	Store    reports.Store
	Renderer PDFRenderer
	Mailer   Mailer
	Metrics  *metrics.WebhookMetrics
	Logger   *logger.Logger
}

// Service executes delivery jobs: it renders the PDF, emails the customer
// and records the sent flag. Everything here is best effort; a failure is
// logged and counted but never touches payment state.
type Service struct {
	store    reports.Store
	renderer PDFRenderer
	mailer   Mailer
	metrics  *metrics.WebhookMetrics
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "report store required")
	}
	if params.Renderer == nil {
		params.Renderer = NewPDFRenderer()
	}
	return &Service{
		store:    params.Store,
		renderer: params.Renderer,
		mailer:   params.Mailer,
		metrics:  params.Metrics,
		logg:     params.Logger,
	}, nil
}

// Deliver runs one job to completion. A nil return means the job is settled
// and must not be retried; an error means a transient failure where a retry
// could still succeed.
func (s *Service) Deliver(ctx context.Context, job Job) error {
	logCtx := ctx
	if s.logg != nil {
		logCtx = s.logg.WithFields(ctx, map[string]any{
			"report_id": job.ReportID,
			"flow":      string(job.Flow),
			"event_id":  job.EventID,
		})
	}

	report, err := s.store.Get(ctx, job.ReportID)
	if err != nil {
		if err == reports.ErrNotFound {
			s.metrics.IncDelivery(OutcomeMissingReport)
			if s.logg != nil {
				s.logg.Warn(logCtx, "delivery job references unknown report")
			}
			return nil
		}
		return err
	}

	if s.mailer == nil {
		s.metrics.IncDelivery(OutcomeDropped)
		if s.logg != nil {
			s.logg.Warn(logCtx, "email delivery disabled, job dropped")
		}
		return nil
	}

	if job.Flow == checkout.FlowRepair {
		return s.deliverRepair(logCtx, report)
	}
	return s.deliverReport(logCtx, report)
}

func (s *Service) deliverReport(ctx context.Context, report *reports.Report) error {
	if report.Sent {
		s.metrics.IncDelivery(OutcomeDuplicate)
		if s.logg != nil {
			s.logg.Info(ctx, "report already sent, skipping delivery")
		}
		return nil
	}

	// A missing attachment is better than no email at all.
	pdf, err := s.renderer.Render(report)
	if err != nil {
		pdf = nil
		if s.logg != nil {
			s.logg.Warn(ctx, "pdf render failed, sending without attachment")
		}
	}

	if err := s.mailer.SendReport(ctx, report, pdf); err != nil {
		s.metrics.IncDelivery(OutcomeFailed)
		if s.logg != nil {
			s.logg.Error(ctx, "report email failed", err)
		}
		return err
	}

	sent := true
	sentAt := time.Now().UTC()
	if err := s.store.Update(ctx, report.ReportID, reports.Patch{Sent: &sent, SentAt: &sentAt}); err != nil {
		// Email went out; an unset flag risks one extra email, not a lost one.
		if s.logg != nil {
			s.logg.Error(ctx, "failed to record sent flag", err)
		}
	}

	s.metrics.IncDelivery(OutcomeDelivered)
	if s.logg != nil {
		s.logg.Info(ctx, "report delivered")
	}
	return nil
}

func (s *Service) deliverRepair(ctx context.Context, report *reports.Report) error {
	if err := s.mailer.SendRepairConfirmation(ctx, report); err != nil {
		s.metrics.IncDelivery(OutcomeFailed)
		if s.logg != nil {
			s.logg.Error(ctx, "repair confirmation email failed", err)
		}
		return err
	}
	s.metrics.IncDelivery(OutcomeDelivered)
	if s.logg != nil {
		s.logg.Info(ctx, "repair confirmation delivered")
	}
	return nil
}
