package reports

import (
	"context"
	"errors"
	"time"
)

// Status is the unlock axis of a report. locked -> unlocked is terminal.
type Status string

const (
	StatusLocked   Status = "locked"
	StatusUnlocked Status = "unlocked"
)

// RepairStatus is the independent repair axis. locked -> active is terminal
// and gated on the unlock axis already being unlocked.
type RepairStatus string

const (
	RepairLocked RepairStatus = "locked"
	RepairActive RepairStatus = "active"
)

// ErrNotFound is returned by Get when no report exists for the given id.
var ErrNotFound = errors.New("report not found")

// Report is the persisted record for one diagnostic request and its paywall
// state. Identity fields are immutable after creation; only the webhook
// pipeline mutates the payment/delivery fields.
type Report struct {
	ReportID        string       `gorm:"column:report_id;primaryKey" json:"report_id"`
	OwnerEmail      string       `gorm:"column:owner_email" json:"owner_email"`
	OwnerName       string       `gorm:"column:owner_name" json:"owner_name"`
	DomainSubject   string       `gorm:"column:domain_subject" json:"domain_subject"`
	SelectedModules StringList   `gorm:"column:selected_modules;type:jsonb" json:"selected_modules"`
	Status          Status       `gorm:"column:status" json:"status"`
	RepairStatus    RepairStatus `gorm:"column:repair_status" json:"repair_status"`
	BasicResult     Result       `gorm:"column:basic_result;type:jsonb" json:"basic_result"`
	FullResult      Result       `gorm:"column:full_result;type:jsonb" json:"full_result,omitempty"`
	PaidAt          *time.Time   `gorm:"column:paid_at" json:"paid_at,omitempty"`
	StripeSessionID string       `gorm:"column:stripe_session_id" json:"stripe_session_id,omitempty"`
	LastEventID     string       `gorm:"column:last_event_id" json:"last_event_id,omitempty"`
	Sent            bool         `gorm:"column:sent" json:"sent"`
	SentAt          *time.Time   `gorm:"column:sent_at" json:"sent_at,omitempty"`
	CreatedAt       time.Time    `gorm:"column:created_at" json:"created_at"`
	UpdatedAt       time.Time    `gorm:"column:updated_at" json:"updated_at"`
}

func (Report) TableName() string {
	return "reports"
}

// Unlocked reports whether the unlock axis reached its terminal state.
func (r *Report) Unlocked() bool {
	return r != nil && r.Status == StatusUnlocked
}

// RepairActivated reports whether the repair axis reached its terminal state.
func (r *Report) RepairActivated() bool {
	return r != nil && r.RepairStatus == RepairActive
}

// Patch is a partial update. Nil fields are left untouched; Update merges,
// never replaces.
type Patch struct {
	Sent   *bool
	SentAt *time.Time
}

// UnlockFields carries everything the unlock transition writes in one update.
type UnlockFields struct {
	FullResult      Result
	PaidAt          time.Time
	StripeSessionID string
	LastEventID     string
}

// RepairFields carries the repair activation provenance.
type RepairFields struct {
	PaidAt          time.Time
	StripeSessionID string
	LastEventID     string
}

// Store is the report persistence contract. All backends expose identical
// merge semantics; Unlock and ActivateRepair are conditional writes keyed on
// the expected prior state and report whether the transition was applied,
// which is what makes duplicate webhook deliveries safe.
type Store interface {
	Create(ctx context.Context, report *Report) error
	Get(ctx context.Context, id string) (*Report, error)
	Update(ctx context.Context, id string, patch Patch) error
	Unlock(ctx context.Context, id string, fields UnlockFields) (bool, error)
	ActivateRepair(ctx context.Context, id string, fields RepairFields) (bool, error)
}
