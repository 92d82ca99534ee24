package delivery

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/go-pdf/fpdf"

	"github.com/veridia-labs/veridia-backend/internal/reports"
	pkgerrors "github.com/veridia-labs/veridia-backend/pkg/errors"
)

// PDFRenderer turns an unlocked report into the attachment body.
type PDFRenderer interface {
	Render(report *reports.Report) ([]byte, error)
}

type pdfRenderer struct{}

func NewPDFRenderer() PDFRenderer {
	return &pdfRenderer{}
}

// Render lays out the full result as a simple A4 document. The layout follows
// the result shape produced by reports.BuildFullResult but tolerates values
// that went through a JSON round trip.
func (r *pdfRenderer) Render(report *reports.Report) ([]byte, error) {
	if report == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "report required")
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Veridia Report %s", report.ReportID), false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "Veridia Diagnostic Report")
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 7, fmt.Sprintf("Subject: %s", report.DomainSubject))
	pdf.Ln(7)
	pdf.Cell(0, 7, fmt.Sprintf("Report ID: %s", report.ReportID))
	pdf.Ln(7)
	if score, ok := numberField(report.FullResult, "score"); ok {
		pdf.Cell(0, 7, fmt.Sprintf("Overall score: %d / 100", score))
		pdf.Ln(7)
	}
	pdf.Ln(4)

	for _, name := range moduleNames(report.FullResult) {
		section, _ := report.FullResult["modules"].(map[string]any)[name].(map[string]any)

		pdf.SetFont("Helvetica", "B", 13)
		title := name
		if t, ok := section["title"].(string); ok && t != "" {
			title = t
		}
		pdf.Cell(0, 8, title)
		pdf.Ln(8)

		pdf.SetFont("Helvetica", "", 10)
		for _, finding := range stringSlice(section["findings"]) {
			pdf.MultiCell(0, 5.5, "- "+finding, "", "L", false)
		}
		recommendations := stringSlice(section["recommendations"])
		if len(recommendations) > 0 {
			pdf.Ln(2)
			pdf.SetFont("Helvetica", "I", 10)
			pdf.Cell(0, 6, "Recommended actions:")
			pdf.Ln(6)
			pdf.SetFont("Helvetica", "", 10)
			for _, rec := range recommendations {
				pdf.MultiCell(0, 5.5, "- "+rec, "", "L", false)
			}
		}
		pdf.Ln(6)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "render report pdf")
	}
	return buf.Bytes(), nil
}

func moduleNames(result reports.Result) []string {
	modules, _ := result["modules"].(map[string]any)
	names := make([]string, 0, len(modules))
	for name := range modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func numberField(result reports.Result, key string) (int, bool) {
	switch v := result[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func stringSlice(value any) []string {
	switch v := value.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
