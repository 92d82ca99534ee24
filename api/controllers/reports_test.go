package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/veridia-labs/veridia-backend/internal/reports"
	pkgerrors "github.com/veridia-labs/veridia-backend/pkg/errors"
)

type fakeReportsService struct {
	lastID string
	public *reports.PublicView
	status *reports.StatusView
	err    error
}

func (f *fakeReportsService) PublicReport(_ context.Context, id string) (*reports.PublicView, error) {
	f.lastID = id
	if f.err != nil {
		return nil, f.err
	}
	return f.public, nil
}

func (f *fakeReportsService) ReportStatus(_ context.Context, id string) (*reports.StatusView, error) {
	f.lastID = id
	if f.err != nil {
		return nil, f.err
	}
	return f.status, nil
}

func reportRouter(svc ReportsService) http.Handler {
	r := chi.NewRouter()
	r.Get("/report/{reportID}", GetReport(svc, nil))
	r.Get("/report-status/{reportID}", GetReportStatus(svc, nil))
	return r
}

func TestGetReportServesPublicView(t *testing.T) {
	svc := &fakeReportsService{public: &reports.PublicView{
		ReportID:      "rep_abc",
		DomainSubject: "example.com",
	}}
	router := reportRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/report/rep_abc", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.lastID != "rep_abc" {
		t.Fatalf("expected path param to reach the service, got %q", svc.lastID)
	}

	var envelope struct {
		Data reports.PublicView `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.DomainSubject != "example.com" {
		t.Fatalf("unexpected payload %+v", envelope.Data)
	}
}

func TestGetReportStatusServesStatusView(t *testing.T) {
	svc := &fakeReportsService{status: &reports.StatusView{
		ReportID: "rep_abc",
		Status:   reports.StatusUnlocked,
	}}
	router := reportRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/report-status/rep_abc", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	var envelope struct {
		Data reports.StatusView `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Status != reports.StatusUnlocked {
		t.Fatalf("unexpected payload %+v", envelope.Data)
	}
}

func TestGetReportNotFound(t *testing.T) {
	svc := &fakeReportsService{err: pkgerrors.New(pkgerrors.CodeNotFound, "report not found")}
	router := reportRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/report/rep_missing", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
