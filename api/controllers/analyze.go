package controllers

import (
	"context"
	"net/http"

	"github.com/veridia-labs/veridia-backend/api/responses"
	"github.com/veridia-labs/veridia-backend/api/validators"
	"github.com/veridia-labs/veridia-backend/internal/catalog"
	"github.com/veridia-labs/veridia-backend/internal/reports"
	pkgerrors "github.com/veridia-labs/veridia-backend/pkg/errors"
	"github.com/veridia-labs/veridia-backend/pkg/logger"
)

type AnalyzeService interface {
	Analyze(ctx context.Context, input reports.AnalyzeInput) (*reports.AnalyzeOutput, error)
}

type analyzeRequest struct {
	Domain          string   `json:"domain" validate:"required,max=255"`
	Name            string   `json:"name" validate:"required,max=120"`
	Email           string   `json:"email" validate:"required,email"`
	SelectedModules []string `json:"selectedModules" validate:"required,min=1,dive,required"`
}

// Analyze runs the free scan and creates a locked report.
func Analyze(svc AnalyzeService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "analyze service unavailable"))
			return
		}

		var req analyzeRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		out, err := svc.Analyze(ctx, reports.AnalyzeInput{
			Domain:          req.Domain,
			Name:            req.Name,
			Email:           req.Email,
			SelectedModules: req.SelectedModules,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, out)
	}
}

// Modules lists the purchasable diagnostic modules.
func Modules() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]any{"modules": catalog.Modules()})
	}
}
