// ABOUTME: Tests for sync checkpoints, retry flags, and the sync lock.
// ABOUTME: Uses a fake clock to check timestamps and lock expiry.
package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/harperreed/ringhealth/internal/models"
)

func TestCheckpointNeverMovesBackwards(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	t1 := time.Date(2025, 1, 8, 6, 0, 0, 0, time.UTC)
	db.now = func() time.Time { return t1 }
	if err := db.RecordCheckpoint(ctx, models.StreamDailySleep, "2025-01-07"); err != nil {
		t.Fatalf("RecordCheckpoint failed: %v", err)
	}

	t2 := t1.Add(time.Hour)
	db.now = func() time.Time { return t2 }
	if err := db.RecordCheckpoint(ctx, models.StreamDailySleep, "2025-01-05"); err != nil {
		t.Fatalf("RecordCheckpoint failed: %v", err)
	}

	cp, err := db.GetCheckpoint(ctx, models.StreamDailySleep)
	if err != nil {
		t.Fatalf("GetCheckpoint failed: %v", err)
	}
	if cp.LastSyncDate != "2025-01-07" {
		t.Errorf("Expected checkpoint to stay at 2025-01-07, got %s", cp.LastSyncDate)
	}
	if !cp.LastSyncTimestamp.Equal(t2) {
		t.Errorf("Expected timestamp %v, got %v", t2, cp.LastSyncTimestamp)
	}
}

func TestCheckpointAdvances(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for _, day := range []string{"2025-01-07", "2025-01-10"} {
		if err := db.RecordCheckpoint(ctx, models.StreamWorkouts, day); err != nil {
			t.Fatalf("RecordCheckpoint(%s) failed: %v", day, err)
		}
	}

	cps, err := db.ListCheckpoints(ctx)
	if err != nil {
		t.Fatalf("ListCheckpoints failed: %v", err)
	}
	if len(cps) != 1 || cps[0].LastSyncDate != "2025-01-10" {
		t.Errorf("Expected single checkpoint at 2025-01-10, got %+v", cps)
	}
}

func TestGetCheckpointMissing(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.GetCheckpoint(context.Background(), models.StreamStress)
	if !errors.Is(err, ErrNoCheckpoint) {
		t.Errorf("Expected ErrNoCheckpoint, got %v", err)
	}
}

func TestRecordCheckpointValidation(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if err := db.RecordCheckpoint(ctx, models.StreamStress, "01/07/2025"); err == nil {
		t.Error("Expected error for malformed date")
	}
	if err := db.RecordCheckpoint(ctx, "steps", "2025-01-07"); err == nil {
		t.Error("Expected error for unknown stream")
	}
}

func TestRetryFlags(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if err := db.FlagRetry(ctx, models.StreamSpO2, "2025-01-07", "empty response"); err != nil {
		t.Fatalf("FlagRetry failed: %v", err)
	}
	if err := db.FlagRetry(ctx, models.StreamSpO2, "2025-01-08", "empty response"); err != nil {
		t.Fatalf("FlagRetry again failed: %v", err)
	}

	flags, err := db.ListRetryFlags(ctx)
	if err != nil {
		t.Fatalf("ListRetryFlags failed: %v", err)
	}
	if len(flags) != 1 {
		t.Fatalf("Expected 1 flag, got %d", len(flags))
	}
	if flags[0].WindowEnd != "2025-01-08" || flags[0].Reason != "empty response" {
		t.Errorf("Unexpected flag: %+v", flags[0])
	}

	if err := db.ClearRetry(ctx, models.StreamSpO2); err != nil {
		t.Fatalf("ClearRetry failed: %v", err)
	}
	flags, _ = db.ListRetryFlags(ctx)
	if len(flags) != 0 {
		t.Errorf("Expected no flags after clear, got %d", len(flags))
	}
}

func TestSyncLock(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	now := time.Date(2025, 1, 8, 6, 0, 0, 0, time.UTC)
	db.now = func() time.Time { return now }

	if err := db.AcquireSyncLock(ctx, "proc-a", time.Minute); err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}
	if err := db.AcquireSyncLock(ctx, "proc-b", time.Minute); !errors.Is(err, ErrLockHeld) {
		t.Errorf("Expected ErrLockHeld for second owner, got %v", err)
	}
	if err := db.AcquireSyncLock(ctx, "proc-a", time.Minute); err != nil {
		t.Errorf("Expected re-acquire by holder to succeed, got %v", err)
	}

	holder, err := db.SyncLockHolder(ctx)
	if err != nil {
		t.Fatalf("SyncLockHolder failed: %v", err)
	}
	if holder == nil || holder.Owner != "proc-a" {
		t.Errorf("Expected proc-a to hold the lock, got %+v", holder)
	}

	now = now.Add(2 * time.Minute)
	if err := db.AcquireSyncLock(ctx, "proc-b", time.Minute); err != nil {
		t.Errorf("Expected expired lock to be taken over, got %v", err)
	}

	if err := db.ReleaseSyncLock(ctx, "proc-a"); err != nil {
		t.Fatalf("release by non-holder failed: %v", err)
	}
	if holder, _ := db.SyncLockHolder(ctx); holder == nil || holder.Owner != "proc-b" {
		t.Errorf("Release by non-holder must not drop the lock, got %+v", holder)
	}

	if err := db.ReleaseSyncLock(ctx, "proc-b"); err != nil {
		t.Fatalf("ReleaseSyncLock failed: %v", err)
	}
	if holder, _ := db.SyncLockHolder(ctx); holder != nil {
		t.Errorf("Expected lock to be free, got %+v", holder)
	}
}
