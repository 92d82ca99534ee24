package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/veridia-labs/veridia-backend/internal/checkout"
	pkgerrors "github.com/veridia-labs/veridia-backend/pkg/errors"
)

type fakeCheckoutService struct {
	input checkout.CreateSessionInput
	url   string
	err   error
}

func (f *fakeCheckoutService) CreateSession(_ context.Context, input checkout.CreateSessionInput) (string, error) {
	f.input = input
	if f.err != nil {
		return "", f.err
	}
	return f.url, nil
}

func postCheckout(t *testing.T, handler http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/create-checkout-session", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestCreateCheckoutSessionReturnsRedirectURL(t *testing.T) {
	svc := &fakeCheckoutService{url: "https://checkout.stripe.com/pay/cs_1"}
	rec := postCheckout(t, CreateCheckoutSession(svc, nil), `{"report_id":"rep_abc","email":"dana@example.com"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	var envelope struct {
		Data struct {
			CheckoutURL string `json:"checkout_url"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.CheckoutURL != "https://checkout.stripe.com/pay/cs_1" {
		t.Fatalf("expected redirect url under checkout_url, got %s", rec.Body.String())
	}
	if svc.input.Flow != checkout.FlowUnlock {
		t.Fatalf("expected unlock flow, got %q", svc.input.Flow)
	}
	if svc.input.ReportID != "rep_abc" || svc.input.Email != "dana@example.com" {
		t.Fatalf("unexpected service input %+v", svc.input)
	}
}

func TestCreateRepairCheckoutSessionUsesRepairFlow(t *testing.T) {
	svc := &fakeCheckoutService{url: "https://checkout.stripe.com/pay/cs_2"}
	rec := postCheckout(t, CreateRepairCheckoutSession(svc, nil), `{"report_id":"rep_abc"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.input.Flow != checkout.FlowRepair {
		t.Fatalf("expected repair flow, got %q", svc.input.Flow)
	}
}

func TestCreateCheckoutSessionValidation(t *testing.T) {
	svc := &fakeCheckoutService{url: "https://example.com"}

	rec := postCheckout(t, CreateCheckoutSession(svc, nil), `{"email":"dana@example.com"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without report_id, got %d", rec.Code)
	}
	if svc.input.ReportID != "" {
		t.Fatalf("service must not run on invalid input")
	}

	rec = postCheckout(t, CreateCheckoutSession(svc, nil), `{"report_id":"rep_abc","email":"not-an-email"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid email, got %d", rec.Code)
	}
}

func TestCreateCheckoutSessionErrorMapping(t *testing.T) {
	cases := map[string]struct {
		err  error
		want int
	}{
		"already unlocked": {pkgerrors.New(pkgerrors.CodeConflict, "report already unlocked"), http.StatusConflict},
		"unknown report":   {pkgerrors.New(pkgerrors.CodeNotFound, "report not found"), http.StatusNotFound},
		"stripe down":      {pkgerrors.New(pkgerrors.CodeUpstream, "create checkout session"), http.StatusBadGateway},
		"not configured":   {pkgerrors.New(pkgerrors.CodeDependency, "stripe not configured"), http.StatusServiceUnavailable},
	}

	for name, tc := range cases {
		svc := &fakeCheckoutService{err: tc.err}
		rec := postCheckout(t, CreateCheckoutSession(svc, nil), `{"report_id":"rep_abc"}`)
		if rec.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d (%s)", name, tc.want, rec.Code, rec.Body.String())
		}
	}
}

func TestCreateCheckoutSessionWithoutService(t *testing.T) {
	rec := postCheckout(t, CreateCheckoutSession(nil, nil), `{"report_id":"rep_abc"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when checkout is disabled, got %d", rec.Code)
	}
}
