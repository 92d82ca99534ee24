package delivery

import (
	"context"
	"fmt"
	"strings"

	"github.com/resend/resend-go/v2"

	"github.com/veridia-labs/veridia-backend/internal/reports"
	"github.com/veridia-labs/veridia-backend/pkg/config"
	pkgerrors "github.com/veridia-labs/veridia-backend/pkg/errors"
)

// Mailer sends the customer-facing delivery emails.
type Mailer interface {
	SendReport(ctx context.Context, report *reports.Report, pdf []byte) error
	SendRepairConfirmation(ctx context.Context, report *reports.Report) error
}

type emailSender interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

type resendMailer struct {
	emails emailSender
	from   string
}

// NewResendMailer builds the Resend-backed mailer. Returns nil when no API
// key is configured so callers can treat email as disabled.
func NewResendMailer(cfg config.ResendConfig) Mailer {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil
	}
	client := resend.NewClient(cfg.APIKey)
	return &resendMailer{
		emails: client.Emails,
		from:   cfg.DefaultFrom,
	}
}

func (m *resendMailer) SendReport(ctx context.Context, report *reports.Report, pdf []byte) error {
	if report == nil || report.OwnerEmail == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "report owner email required")
	}

	params := &resend.SendEmailRequest{
		From:    m.from,
		To:      []string{report.OwnerEmail},
		Subject: fmt.Sprintf("Your Veridia report for %s is ready", report.DomainSubject),
		Html:    reportBodyHTML(report),
	}
	if len(pdf) > 0 {
		params.Attachments = []*resend.Attachment{{
			Content:     pdf,
			Filename:    fmt.Sprintf("veridia-report-%s.pdf", report.ReportID),
			ContentType: "application/pdf",
		}}
	}

	if _, err := m.emails.SendWithContext(ctx, params); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "send report email")
	}
	return nil
}

func (m *resendMailer) SendRepairConfirmation(ctx context.Context, report *reports.Report) error {
	if report == nil || report.OwnerEmail == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "report owner email required")
	}

	params := &resend.SendEmailRequest{
		From:    m.from,
		To:      []string{report.OwnerEmail},
		Subject: fmt.Sprintf("Repair plan activated for %s", report.DomainSubject),
		Html: fmt.Sprintf(
			"<p>Hi %s,</p><p>Your repair plan for <strong>%s</strong> is now active. "+
				"Our team will start working through the findings in your report and keep you posted by email.</p>"+
				"<p>Report reference: %s</p>",
			displayName(report), report.DomainSubject, report.ReportID,
		),
	}

	if _, err := m.emails.SendWithContext(ctx, params); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "send repair confirmation email")
	}
	return nil
}

func reportBodyHTML(report *reports.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<p>Hi %s,</p>", displayName(report))
	fmt.Fprintf(&b,
		"<p>Thanks for your purchase. Your full diagnostic report for <strong>%s</strong> is attached as a PDF.</p>",
		report.DomainSubject,
	)
	if len(report.SelectedModules) > 0 {
		b.WriteString("<p>Modules covered:</p><ul>")
		for _, name := range report.SelectedModules {
			fmt.Fprintf(&b, "<li>%s</li>", name)
		}
		b.WriteString("</ul>")
	}
	fmt.Fprintf(&b, "<p>Report reference: %s</p>", report.ReportID)
	return b.String()
}

func displayName(report *reports.Report) string {
	if name := strings.TrimSpace(report.OwnerName); name != "" {
		return name
	}
	return "there"
}
