package delivery

import (
	"context"

	"github.com/veridia-labs/veridia-backend/internal/checkout"
)

// Job describes one delivery triggered by a paid checkout session. It is
// enqueued only after the state transition has been committed, so a lost job
// never loses payment state.
type Job struct {
	ReportID  string        `json:"report_id"`
	Flow      checkout.Flow `json:"flow"`
	EventID   string        `json:"event_id"`
	SessionID string        `json:"session_id"`
}

// Dispatcher hands delivery jobs to whatever executes them: the in-process
// worker in inline mode, or the Pub/Sub topic when a separate worker runs.
type Dispatcher interface {
	Enqueue(ctx context.Context, job Job) error
	Close() error
}

// Delivery outcome labels used on the metrics counter.
const (
	OutcomeDelivered     = "delivered"
	OutcomeDuplicate     = "duplicate"
	OutcomeMissingReport = "missing_report"
	OutcomeFailed        = "failed"
	OutcomeDropped       = "dropped"
)
