package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/veridia-labs/veridia-backend/api/responses"
	"github.com/veridia-labs/veridia-backend/internal/reports"
	pkgerrors "github.com/veridia-labs/veridia-backend/pkg/errors"
	"github.com/veridia-labs/veridia-backend/pkg/logger"
)

type ReportsService interface {
	PublicReport(ctx context.Context, id string) (*reports.PublicView, error)
	ReportStatus(ctx context.Context, id string) (*reports.StatusView, error)
}

// GetReport serves the public projection; the full result stays hidden until
// the report unlocks.
func GetReport(svc ReportsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reports service unavailable"))
			return
		}

		view, err := svc.PublicReport(ctx, chi.URLParam(r, "reportID"))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, view)
	}
}

// GetReportStatus serves the owner's polling endpoint with both result blobs.
func GetReportStatus(svc ReportsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reports service unavailable"))
			return
		}

		view, err := svc.ReportStatus(ctx, chi.URLParam(r, "reportID"))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, view)
	}
}
