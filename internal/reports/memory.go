package reports

import (
	"context"
	"sync"
	"time"

	pkgerrors "github.com/veridia-labs/veridia-backend/pkg/errors"
)

// MemoryStore is the in-memory backend used in local/dev deployments and
// tests. The single mutex serializes the check-and-set transitions, giving
// the same at-most-once guarantee the SQL backends get from conditional
// UPDATE statements.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*Report
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*Report)}
}

func (s *MemoryStore) Create(_ context.Context, report *Report) error {
	if report == nil || report.ReportID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "report id required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[report.ReportID]; exists {
		return pkgerrors.New(pkgerrors.CodeConflict, "report already exists")
	}
	now := time.Now().UTC()
	stored := *report
	stored.CreatedAt = now
	stored.UpdatedAt = now
	s.records[report.ReportID] = &stored
	report.CreatedAt = now
	report.UpdatedAt = now
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneReport(stored), nil
}

// Update merges the patch into the existing record. Absent ids are a no-op.
func (s *MemoryStore) Update(_ context.Context, id string, patch Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.records[id]
	if !ok {
		return nil
	}
	applyPatch(stored, patch)
	stored.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) Unlock(_ context.Context, id string, fields UnlockFields) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.records[id]
	if !ok {
		return false, ErrNotFound
	}
	if stored.Status != StatusLocked {
		return false, nil
	}
	paidAt := fields.PaidAt
	stored.Status = StatusUnlocked
	stored.FullResult = fields.FullResult.Clone()
	stored.PaidAt = &paidAt
	stored.StripeSessionID = fields.StripeSessionID
	stored.LastEventID = fields.LastEventID
	stored.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (s *MemoryStore) ActivateRepair(_ context.Context, id string, fields RepairFields) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.records[id]
	if !ok {
		return false, ErrNotFound
	}
	if stored.Status != StatusUnlocked || stored.RepairStatus != RepairLocked {
		return false, nil
	}
	paidAt := fields.PaidAt
	stored.RepairStatus = RepairActive
	stored.PaidAt = &paidAt
	stored.StripeSessionID = fields.StripeSessionID
	stored.LastEventID = fields.LastEventID
	stored.UpdatedAt = time.Now().UTC()
	return true, nil
}

func applyPatch(stored *Report, patch Patch) {
	if patch.Sent != nil {
		stored.Sent = *patch.Sent
	}
	if patch.SentAt != nil {
		sentAt := *patch.SentAt
		stored.SentAt = &sentAt
	}
}

func cloneReport(r *Report) *Report {
	out := *r
	out.SelectedModules = append(StringList(nil), r.SelectedModules...)
	out.BasicResult = r.BasicResult.Clone()
	out.FullResult = r.FullResult.Clone()
	if r.PaidAt != nil {
		paidAt := *r.PaidAt
		out.PaidAt = &paidAt
	}
	if r.SentAt != nil {
		sentAt := *r.SentAt
		out.SentAt = &sentAt
	}
	return &out
}
