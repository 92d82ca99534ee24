package reports

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/veridia-labs/veridia-backend/pkg/db"
	pkgerrors "github.com/veridia-labs/veridia-backend/pkg/errors"
)

// GormStore persists reports through the shared GORM connection. Postgres in
// production, SQLite behind the dev feature flag; semantics are identical.
type GormStore struct {
	client *db.Client
}

func NewGormStore(client *db.Client) *GormStore {
	return &GormStore{client: client}
}

func (s *GormStore) Create(ctx context.Context, report *Report) error {
	if report == nil || report.ReportID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "report id required")
	}
	if err := s.client.DB().WithContext(ctx).Create(report).Error; err != nil {
		if db.IsUniqueViolation(err, "") {
			return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "report already exists")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert report")
	}
	return nil
}

func (s *GormStore) Get(ctx context.Context, id string) (*Report, error) {
	var report Report
	err := s.client.DB().WithContext(ctx).Where("report_id = ?", id).First(&report).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load report")
	}
	return &report, nil
}

// Update merges the patch via a column-scoped UPDATE. Absent ids are a no-op.
func (s *GormStore) Update(ctx context.Context, id string, patch Patch) error {
	values := patchValues(patch)
	if len(values) == 0 {
		return nil
	}
	values["updated_at"] = time.Now().UTC()

	err := s.client.DB().WithContext(ctx).
		Model(&Report{}).
		Where("report_id = ?", id).
		Updates(values).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update report")
	}
	return nil
}

// Unlock performs the locked -> unlocked transition as a single conditional
// UPDATE keyed on the prior state. RowsAffected == 0 with an existing row
// means the report was already unlocked; the existence check runs in the same
// transaction so the two reads cannot disagree.
func (s *GormStore) Unlock(ctx context.Context, id string, fields UnlockFields) (bool, error) {
	var applied bool
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		res := tx.Model(&Report{}).
			Where("report_id = ? AND status = ?", id, StatusLocked).
			Updates(map[string]any{
				"status":            StatusUnlocked,
				"full_result":       fields.FullResult,
				"paid_at":           fields.PaidAt,
				"stripe_session_id": fields.StripeSessionID,
				"last_event_id":     fields.LastEventID,
				"updated_at":        time.Now().UTC(),
			})
		if res.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "unlock report")
		}
		if res.RowsAffected > 0 {
			applied = true
			return nil
		}
		return existsOrNotFound(tx, id)
	})
	return applied, err
}

// ActivateRepair flips the repair axis, gated on the unlock axis.
func (s *GormStore) ActivateRepair(ctx context.Context, id string, fields RepairFields) (bool, error) {
	var applied bool
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		res := tx.Model(&Report{}).
			Where("report_id = ? AND status = ? AND repair_status = ?", id, StatusUnlocked, RepairLocked).
			Updates(map[string]any{
				"repair_status":     RepairActive,
				"paid_at":           fields.PaidAt,
				"stripe_session_id": fields.StripeSessionID,
				"last_event_id":     fields.LastEventID,
				"updated_at":        time.Now().UTC(),
			})
		if res.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "activate repair")
		}
		if res.RowsAffected > 0 {
			applied = true
			return nil
		}
		return existsOrNotFound(tx, id)
	})
	return applied, err
}

func existsOrNotFound(tx *gorm.DB, id string) error {
	var count int64
	err := tx.Model(&Report{}).
		Where("report_id = ?", id).
		Count(&count).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check report exists")
	}
	if count == 0 {
		return ErrNotFound
	}
	return nil
}

func patchValues(patch Patch) map[string]any {
	values := map[string]any{}
	if patch.Sent != nil {
		values["sent"] = *patch.Sent
	}
	if patch.SentAt != nil {
		values["sent_at"] = *patch.SentAt
	}
	return values
}
