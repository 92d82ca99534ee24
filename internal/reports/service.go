package reports

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/veridia-labs/veridia-backend/internal/catalog"
	pkgerrors "github.com/veridia-labs/veridia-backend/pkg/errors"
	"github.com/veridia-labs/veridia-backend/pkg/logger"
)

// Service owns report intake and the read-side projections. Only the webhook
// pipeline mutates payment state; intake only creates.
type Service struct {
	store Store
	logg  *logger.Logger
}

func NewService(store Store, logg *logger.Logger) (*Service, error) {
	if store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "report store required")
	}
	return &Service{store: store, logg: logg}, nil
}

type AnalyzeInput struct {
	Domain          string
	Name            string
	Email           string
	SelectedModules []string
}

type AnalyzeOutput struct {
	ReportID       string   `json:"report_id"`
	Summary        string   `json:"summary"`
	DetectedIssues []string `json:"detected_issues"`
	LockedModules  []string `json:"locked_modules"`
}

// Analyze validates the intake request, computes the teaser diagnostics and
// creates the report in the locked state.
func (s *Service) Analyze(ctx context.Context, input AnalyzeInput) (*AnalyzeOutput, error) {
	domain := strings.TrimSpace(strings.ToLower(input.Domain))
	if domain == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "domain is required")
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if strings.TrimSpace(input.Email) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	if len(input.SelectedModules) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one module must be selected")
	}

	selected := make(StringList, 0, len(input.SelectedModules))
	for _, name := range input.SelectedModules {
		module, ok := catalog.Lookup(name)
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown module %q", name)).
				WithDetails(map[string]any{"known_modules": catalog.Names()})
		}
		if !selected.Contains(module.Name) {
			selected = append(selected, module.Name)
		}
	}

	reportID, err := NewReportID()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint report id")
	}

	issues := detectIssues(domain, selected)
	summary := fmt.Sprintf(
		"Preliminary scan of %s across %d module(s) flagged %d potential issue(s). Unlock the full report for details.",
		domain, len(selected), len(issues),
	)

	report := &Report{
		ReportID:        reportID,
		OwnerEmail:      strings.TrimSpace(input.Email),
		OwnerName:       strings.TrimSpace(input.Name),
		DomainSubject:   domain,
		SelectedModules: selected,
		Status:          StatusLocked,
		RepairStatus:    RepairLocked,
		BasicResult: Result{
			"summary":         summary,
			"detected_issues": issues,
			"score":           teaserScore(domain),
		},
	}

	if err := s.store.Create(ctx, report); err != nil {
		return nil, err
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithReportID(ctx, reportID), "report created")
	}

	return &AnalyzeOutput{
		ReportID:       reportID,
		Summary:        summary,
		DetectedIssues: issues,
		LockedModules:  selected,
	}, nil
}

// PublicView is the projection exposed on the public report endpoint. The
// full result stays hidden until the report unlocks.
type PublicView struct {
	ReportID        string     `json:"report_id"`
	DomainSubject   string     `json:"domain_subject"`
	SelectedModules []string   `json:"selected_modules"`
	Paid            bool       `json:"paid"`
	Unlocked        bool       `json:"unlocked"`
	RepairActive    bool       `json:"repair_active"`
	Sent            bool       `json:"sent"`
	FullResult      Result     `json:"full_result,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	PaidAt          *time.Time `json:"paid_at,omitempty"`
}

func (s *Service) PublicReport(ctx context.Context, id string) (*PublicView, error) {
	report, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	view := &PublicView{
		ReportID:        report.ReportID,
		DomainSubject:   report.DomainSubject,
		SelectedModules: report.SelectedModules,
		Paid:            report.Unlocked(),
		Unlocked:        report.Unlocked(),
		RepairActive:    report.RepairActivated(),
		Sent:            report.Sent,
		CreatedAt:       report.CreatedAt,
		PaidAt:          report.PaidAt,
	}
	if report.Unlocked() {
		view.FullResult = report.FullResult
	}
	return view, nil
}

// StatusView carries both result blobs for the owner's polling endpoint.
type StatusView struct {
	ReportID     string     `json:"report_id"`
	Status       Status     `json:"status"`
	RepairStatus string     `json:"repair_status"`
	BasicResult  Result     `json:"basic_result"`
	FullResult   Result     `json:"full_result,omitempty"`
	Sent         bool       `json:"sent"`
	SentAt       *time.Time `json:"sent_at,omitempty"`
	PaidAt       *time.Time `json:"paid_at,omitempty"`
}

func (s *Service) ReportStatus(ctx context.Context, id string) (*StatusView, error) {
	report, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	view := &StatusView{
		ReportID:     report.ReportID,
		Status:       report.Status,
		RepairStatus: string(report.RepairStatus),
		BasicResult:  report.BasicResult,
		Sent:         report.Sent,
		SentAt:       report.SentAt,
		PaidAt:       report.PaidAt,
	}
	if report.Unlocked() {
		view.FullResult = report.FullResult
	}
	return view, nil
}

func (s *Service) get(ctx context.Context, id string) (*Report, error) {
	if strings.TrimSpace(id) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "report id is required")
	}
	report, err := s.store.Get(ctx, id)
	if err != nil {
		if err == ErrNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "report not found")
		}
		return nil, err
	}
	return report, nil
}

// BuildFullResult expands the teaser diagnostics into the paid report body.
// The content is a deterministic placeholder keyed on the subject so repeated
// generation yields identical output.
func BuildFullResult(report *Report) Result {
	modules := map[string]any{}
	for _, name := range report.SelectedModules {
		module, ok := catalog.Lookup(name)
		if !ok {
			continue
		}
		modules[module.Name] = map[string]any{
			"title":           module.Title,
			"findings":        moduleFindings(report.DomainSubject, module.Name),
			"recommendations": moduleRecommendations(module.Name),
		}
	}
	return Result{
		"domain":       report.DomainSubject,
		"score":        teaserScore(report.DomainSubject),
		"modules":      modules,
		"generated_at": time.Now().UTC().Format(time.RFC3339),
	}
}

var issueTemplates = map[string][]string{
	"SEO": {
		"missing or duplicated meta descriptions",
		"weak internal linking structure",
		"pages excluded from the sitemap",
	},
	"Security": {
		"TLS configuration allows outdated ciphers",
		"missing security response headers",
		"exposed administrative endpoints",
	},
	"Performance": {
		"uncompressed static assets",
		"render-blocking scripts above the fold",
		"oversized hero images",
	},
	"Reputation": {
		"inconsistent brand profiles across directories",
		"unanswered public reviews",
		"low share of branded search traffic",
	},
}

func detectIssues(domain string, selected StringList) []string {
	issues := []string{}
	seed := hashSeed(domain)
	for i, name := range selected {
		templates := issueTemplates[name]
		if len(templates) == 0 {
			continue
		}
		issues = append(issues, fmt.Sprintf("%s: %s", name, templates[int(seed+uint32(i))%len(templates)]))
	}
	return issues
}

func moduleFindings(domain, module string) []string {
	templates := issueTemplates[module]
	findings := make([]string, 0, len(templates))
	for _, tpl := range templates {
		findings = append(findings, fmt.Sprintf("%s on %s", tpl, domain))
	}
	return findings
}

func moduleRecommendations(module string) []string {
	switch module {
	case "SEO":
		return []string{"publish a complete sitemap", "add unique meta descriptions to key pages"}
	case "Security":
		return []string{"enforce TLS 1.2+ only", "add standard security headers"}
	case "Performance":
		return []string{"enable asset compression", "defer non-critical scripts"}
	case "Reputation":
		return []string{"claim and unify brand profiles", "respond to outstanding reviews"}
	default:
		return nil
	}
}

func teaserScore(domain string) int {
	// Placeholder scoring: stable per domain, bounded 40-95.
	return 40 + int(hashSeed(domain)%56)
}

func hashSeed(domain string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.ToLower(strings.TrimSpace(domain))))
	return h.Sum32()
}
