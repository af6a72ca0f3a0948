package sweep

import (
	"context"
	"testing"
	"time"

	"github.com/lenslink/messaging/pkg/models"
	"github.com/lenslink/messaging/pkg/store"
)

func setupStore(t *testing.T) {
	t.Helper()
	if err := store.Open(t.TempDir()); err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
}

func TestRunOnce(t *testing.T) {
	setupStore(t)
	now := time.Now().UTC()

	recs := []models.ViolationRecord{
		{UserID: "active-1", Count: 2, BanUntil: now.Add(24 * time.Hour), LastViolationAt: now},
		{UserID: "active-2", Count: 4, BanUntil: now.Add(time.Hour), LastViolationAt: now},
		{UserID: "lapsed", Count: 2, BanUntil: now.Add(-time.Hour), LastViolationAt: now.Add(-72 * time.Hour)},
		{UserID: "warned-only", Count: 1, LastViolationAt: now},
	}
	for _, r := range recs {
		if err := store.SaveViolation(r); err != nil {
			t.Fatalf("SaveViolation(%s): %v", r.UserID, err)
		}
	}

	if err := RunOnce(); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	// the pass is read-only: every record survives untouched
	after, err := store.ListViolations()
	if err != nil {
		t.Fatal(err)
	}
	if len(after) != len(recs) {
		t.Fatalf("records = %d, want %d", len(after), len(recs))
	}
	for _, r := range after {
		if r.Count == 0 {
			t.Fatalf("record %s lost its count", r.UserID)
		}
	}
}

func TestRunOnceEmptyLedger(t *testing.T) {
	setupStore(t)
	if err := RunOnce(); err != nil {
		t.Fatalf("RunOnce on empty ledger: %v", err)
	}
}

func TestStartDisabled(t *testing.T) {
	cancel, err := Start(context.Background(), false, "")
	if err != nil {
		t.Fatalf("Start disabled: %v", err)
	}
	cancel()
}

func TestStartInvalidCron(t *testing.T) {
	if _, err := Start(context.Background(), true, "not a cron"); err == nil {
		t.Fatal("invalid cron accepted")
	}
}

func TestStartAndCancel(t *testing.T) {
	setupStore(t)
	cancel, err := Start(context.Background(), true, "0 2 * * *")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	cancel()
}
