package delivery

import (
	"context"
	"strings"
	"testing"

	"github.com/resend/resend-go/v2"

	"github.com/veridia-labs/veridia-backend/internal/reports"
	"github.com/veridia-labs/veridia-backend/pkg/config"
	pkgerrors "github.com/veridia-labs/veridia-backend/pkg/errors"
)

type stubEmailSender struct {
	last *resend.SendEmailRequest
	err  error
}

func (s *stubEmailSender) SendWithContext(_ context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error) {
	s.last = params
	if s.err != nil {
		return nil, s.err
	}
	return &resend.SendEmailResponse{Id: "email_1"}, nil
}

func mailerReport() *reports.Report {
	return &reports.Report{
		ReportID:        "rep_mail1",
		OwnerEmail:      "owner@example.com",
		OwnerName:       "Dana",
		DomainSubject:   "example.com",
		SelectedModules: reports.StringList{"SEO", "Security"},
	}
}

func TestNewResendMailerDisabledWithoutKey(t *testing.T) {
	if m := NewResendMailer(config.ResendConfig{}); m != nil {
		t.Fatalf("expected nil mailer when no api key is set")
	}
}

func TestSendReportAttachesPDF(t *testing.T) {
	sender := &stubEmailSender{}
	mailer := &resendMailer{emails: sender, from: "reports@veridia.dev"}

	if err := mailer.SendReport(context.Background(), mailerReport(), []byte("%PDF-1.4")); err != nil {
		t.Fatalf("send report: %v", err)
	}
	if sender.last == nil {
		t.Fatalf("expected a send call")
	}
	if got := sender.last.To; len(got) != 1 || got[0] != "owner@example.com" {
		t.Fatalf("unexpected recipients %v", got)
	}
	if !strings.Contains(sender.last.Subject, "example.com") {
		t.Fatalf("subject should name the domain, got %q", sender.last.Subject)
	}
	if len(sender.last.Attachments) != 1 {
		t.Fatalf("expected one attachment, got %d", len(sender.last.Attachments))
	}
	attachment := sender.last.Attachments[0]
	if attachment.ContentType != "application/pdf" || !strings.Contains(attachment.Filename, "rep_mail1") {
		t.Fatalf("unexpected attachment %q (%s)", attachment.Filename, attachment.ContentType)
	}
	if !strings.Contains(sender.last.Html, "Dana") || !strings.Contains(sender.last.Html, "Security") {
		t.Fatalf("body should greet the owner and list modules")
	}
}

func TestSendReportWithoutPDFOmitsAttachment(t *testing.T) {
	sender := &stubEmailSender{}
	mailer := &resendMailer{emails: sender, from: "reports@veridia.dev"}

	if err := mailer.SendReport(context.Background(), mailerReport(), nil); err != nil {
		t.Fatalf("send report: %v", err)
	}
	if len(sender.last.Attachments) != 0 {
		t.Fatalf("expected no attachments, got %d", len(sender.last.Attachments))
	}
}

func TestSendRepairConfirmation(t *testing.T) {
	sender := &stubEmailSender{}
	mailer := &resendMailer{emails: sender, from: "reports@veridia.dev"}

	if err := mailer.SendRepairConfirmation(context.Background(), mailerReport()); err != nil {
		t.Fatalf("send confirmation: %v", err)
	}
	if !strings.Contains(sender.last.Subject, "Repair plan") {
		t.Fatalf("unexpected subject %q", sender.last.Subject)
	}
	if len(sender.last.Attachments) != 0 {
		t.Fatalf("confirmation must not carry an attachment")
	}
}

func TestMailerValidatesRecipient(t *testing.T) {
	mailer := &resendMailer{emails: &stubEmailSender{}, from: "reports@veridia.dev"}

	err := mailer.SendReport(context.Background(), &reports.Report{ReportID: "rep_x"}, nil)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
