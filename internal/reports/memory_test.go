package reports

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func seedReport(t *testing.T, store *MemoryStore) *Report {
	t.Helper()
	report := &Report{
		ReportID:        "rep_test1",
		OwnerEmail:      "owner@example.com",
		OwnerName:       "Owner",
		DomainSubject:   "example.com",
		SelectedModules: StringList{"SEO", "Security"},
		Status:          StatusLocked,
		RepairStatus:    RepairLocked,
		BasicResult:     Result{"summary": "teaser"},
	}
	if err := store.Create(context.Background(), report); err != nil {
		t.Fatalf("create report: %v", err)
	}
	return report
}

func TestMemoryStoreCreateAndGet(t *testing.T) {
	store := NewMemoryStore()
	seedReport(t, store)

	got, err := store.Get(context.Background(), "rep_test1")
	if err != nil {
		t.Fatalf("get report: %v", err)
	}
	if got.Status != StatusLocked {
		t.Fatalf("expected locked status, got %s", got.Status)
	}

	// The store hands out copies; mutating one must not leak back.
	got.Status = StatusUnlocked
	got.BasicResult["summary"] = "tampered"

	again, err := store.Get(context.Background(), "rep_test1")
	if err != nil {
		t.Fatalf("get report again: %v", err)
	}
	if again.Status != StatusLocked {
		t.Fatalf("mutation leaked into store")
	}
	if again.BasicResult["summary"] != "teaser" {
		t.Fatalf("result mutation leaked into store")
	}
}

func TestMemoryStoreCreateRejectsDuplicates(t *testing.T) {
	store := NewMemoryStore()
	seedReport(t, store)

	err := store.Create(context.Background(), &Report{ReportID: "rep_test1"})
	if err == nil {
		t.Fatalf("expected duplicate create to fail")
	}
}

func TestMemoryStoreGetMissing(t *testing.T) {
	store := NewMemoryStore()
	if _, err := store.Get(context.Background(), "rep_missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreUnlockAppliesOnce(t *testing.T) {
	store := NewMemoryStore()
	seedReport(t, store)
	ctx := context.Background()

	fields := UnlockFields{
		FullResult:      Result{"detail": "full"},
		PaidAt:          time.Now().UTC(),
		StripeSessionID: "cs_1",
		LastEventID:     "evt_1",
	}

	applied, err := store.Unlock(ctx, "rep_test1", fields)
	if err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if !applied {
		t.Fatalf("expected first unlock to apply")
	}

	report, err := store.Get(ctx, "rep_test1")
	if err != nil {
		t.Fatalf("get report: %v", err)
	}
	if report.Status != StatusUnlocked {
		t.Fatalf("expected unlocked status, got %s", report.Status)
	}
	if report.StripeSessionID != "cs_1" || report.LastEventID != "evt_1" {
		t.Fatalf("expected payment provenance to be recorded")
	}
	if report.PaidAt == nil {
		t.Fatalf("expected paid_at to be set")
	}

	// Replay: same event, no state change.
	applied, err = store.Unlock(ctx, "rep_test1", fields)
	if err != nil {
		t.Fatalf("replayed unlock: %v", err)
	}
	if applied {
		t.Fatalf("expected replayed unlock to be a no-op")
	}

	if _, err := store.Unlock(ctx, "rep_missing", fields); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound for absent report, got %v", err)
	}
}

func TestMemoryStoreUnlockConcurrentDuplicates(t *testing.T) {
	store := NewMemoryStore()
	seedReport(t, store)
	ctx := context.Background()

	fields := UnlockFields{
		FullResult:      Result{"detail": "full"},
		PaidAt:          time.Now().UTC(),
		StripeSessionID: "cs_1",
		LastEventID:     "evt_1",
	}

	const workers = 16
	var wg sync.WaitGroup
	var appliedCount int32
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			applied, err := store.Unlock(ctx, "rep_test1", fields)
			if err != nil {
				t.Errorf("concurrent unlock: %v", err)
				return
			}
			if applied {
				atomic.AddInt32(&appliedCount, 1)
			}
		}()
	}
	wg.Wait()

	if appliedCount != 1 {
		t.Fatalf("expected exactly one unlock to apply, got %d", appliedCount)
	}
	report, err := store.Get(ctx, "rep_test1")
	if err != nil {
		t.Fatalf("get report: %v", err)
	}
	if report.Status != StatusUnlocked {
		t.Fatalf("expected unlocked status, got %s", report.Status)
	}
}

func TestMemoryStoreActivateRepairGatedOnUnlock(t *testing.T) {
	store := NewMemoryStore()
	seedReport(t, store)
	ctx := context.Background()

	repair := RepairFields{
		PaidAt:          time.Now().UTC(),
		StripeSessionID: "cs_2",
		LastEventID:     "evt_2",
	}

	applied, err := store.ActivateRepair(ctx, "rep_test1", repair)
	if err != nil {
		t.Fatalf("activate repair: %v", err)
	}
	if applied {
		t.Fatalf("repair must not activate on a locked report")
	}

	if _, err := store.Unlock(ctx, "rep_test1", UnlockFields{
		FullResult: Result{"detail": "full"},
		PaidAt:     time.Now().UTC(),
	}); err != nil {
		t.Fatalf("unlock: %v", err)
	}

	applied, err = store.ActivateRepair(ctx, "rep_test1", repair)
	if err != nil {
		t.Fatalf("activate repair after unlock: %v", err)
	}
	if !applied {
		t.Fatalf("expected repair activation to apply after unlock")
	}

	applied, err = store.ActivateRepair(ctx, "rep_test1", repair)
	if err != nil {
		t.Fatalf("replayed repair activation: %v", err)
	}
	if applied {
		t.Fatalf("expected replayed repair activation to be a no-op")
	}
}

func TestMemoryStoreUpdateMergesPatch(t *testing.T) {
	store := NewMemoryStore()
	seedReport(t, store)
	ctx := context.Background()

	sent := true
	sentAt := time.Now().UTC()
	if err := store.Update(ctx, "rep_test1", Patch{Sent: &sent, SentAt: &sentAt}); err != nil {
		t.Fatalf("update: %v", err)
	}

	report, err := store.Get(ctx, "rep_test1")
	if err != nil {
		t.Fatalf("get report: %v", err)
	}
	if !report.Sent || report.SentAt == nil {
		t.Fatalf("expected sent flag and timestamp to be recorded")
	}
	if report.OwnerEmail != "owner@example.com" {
		t.Fatalf("patch must not clobber unrelated fields")
	}

	// Patching an absent id is a harmless no-op.
	if err := store.Update(ctx, "rep_missing", Patch{Sent: &sent}); err != nil {
		t.Fatalf("update absent report: %v", err)
	}
}
