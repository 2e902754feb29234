// ABOUTME: Tests for journal CRUD operations on the SQLite repository.
// ABOUTME: Verifies notes, goals, and meals including prefix lookups.
package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/harperreed/ringhealth/internal/models"
)

func TestCreateAndListNotes(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	old := models.NewNote("legs heavy").WithDate("2025-01-01").WithType(models.NoteTraining)
	recent := models.NewNote("slept well").WithDate("2025-01-06")
	for _, n := range []*models.Note{old, recent} {
		if err := db.CreateNote(ctx, n); err != nil {
			t.Fatalf("CreateNote failed: %v", err)
		}
	}

	all, err := db.ListNotes(ctx, "", 0)
	if err != nil {
		t.Fatalf("ListNotes failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("Expected 2 notes, got %d", len(all))
	}
	if all[0].ID != recent.ID {
		t.Errorf("Expected newest note first, got %s", all[0].Content)
	}
	if all[1].NoteType != models.NoteTraining {
		t.Errorf("Expected training note type, got %s", all[1].NoteType)
	}

	since, err := db.ListNotes(ctx, "2025-01-05", 0)
	if err != nil {
		t.Fatalf("ListNotes since failed: %v", err)
	}
	if len(since) != 1 {
		t.Errorf("Expected 1 note since 2025-01-05, got %d", len(since))
	}
}

func TestDeleteNoteByPrefix(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	n := models.NewNote("delete me")
	if err := db.CreateNote(ctx, n); err != nil {
		t.Fatalf("CreateNote failed: %v", err)
	}

	if err := db.DeleteNote(ctx, n.ID.String()[:8]); err != nil {
		t.Fatalf("DeleteNote failed: %v", err)
	}

	notes, _ := db.ListNotes(ctx, "", 0)
	if len(notes) != 0 {
		t.Errorf("Expected no notes after delete, got %d", len(notes))
	}

	err := db.DeleteNote(ctx, n.ID.String())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound deleting twice, got %v", err)
	}
}

func TestGoalLifecycle(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	g := models.NewGoal("Lower running HR", models.GoalLowerRunningHR).
		WithDescription("Zone 2 base").
		WithTarget("145", "2025-06-01").
		WithStartDate("2025-01-01")
	if err := db.CreateGoal(ctx, g); err != nil {
		t.Fatalf("CreateGoal failed: %v", err)
	}

	got, err := db.GetGoal(ctx, g.ID.String()[:6])
	if err != nil {
		t.Fatalf("GetGoal by prefix failed: %v", err)
	}
	if got.Title != g.Title || got.GoalType != models.GoalLowerRunningHR {
		t.Errorf("Goal mismatch: got %+v", got)
	}
	if got.TargetValue == nil || *got.TargetValue != "145" {
		t.Errorf("Expected target 145, got %v", got.TargetValue)
	}
	if got.CurrentValue != nil {
		t.Errorf("Expected no current value, got %v", *got.CurrentValue)
	}

	current := "151"
	if err := db.UpdateGoalStatus(ctx, g.ID.String(), models.GoalCompleted, &current); err != nil {
		t.Fatalf("UpdateGoalStatus failed: %v", err)
	}

	active := models.GoalActive
	actives, err := db.ListGoals(ctx, &active)
	if err != nil {
		t.Fatalf("ListGoals failed: %v", err)
	}
	if len(actives) != 0 {
		t.Errorf("Expected no active goals, got %d", len(actives))
	}

	all, _ := db.ListGoals(ctx, nil)
	if len(all) != 1 || all[0].Status != models.GoalCompleted {
		t.Fatalf("Expected one completed goal, got %+v", all)
	}
	if all[0].CurrentValue == nil || *all[0].CurrentValue != "151" {
		t.Errorf("Expected current value 151, got %v", all[0].CurrentValue)
	}

	if err := db.UpdateGoalStatus(ctx, g.ID.String(), "paused", nil); err == nil {
		t.Error("Expected error for invalid status")
	}
}

func TestGetGoalNotFound(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.GetGoal(context.Background(), "deadbeef")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if !IsNotFound(err) {
		t.Error("IsNotFound should recognize the error")
	}
}

func TestMeals(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	m := models.NewMeal("oatmeal with berries").WithPortion("1 bowl").WithNotes("pre-run")
	m.Date = "2025-01-03"
	if err := db.CreateMeal(ctx, m); err != nil {
		t.Fatalf("CreateMeal failed: %v", err)
	}

	meals, err := db.ListMeals(ctx, "2025-01-01", 10)
	if err != nil {
		t.Fatalf("ListMeals failed: %v", err)
	}
	if len(meals) != 1 {
		t.Fatalf("Expected 1 meal, got %d", len(meals))
	}
	if meals[0].EstimatedPortion == nil || *meals[0].EstimatedPortion != "1 bowl" {
		t.Errorf("Expected portion '1 bowl', got %v", meals[0].EstimatedPortion)
	}
	if meals[0].Time == nil {
		t.Error("Expected meal time to be kept")
	}

	if err := db.DeleteMeal(ctx, m.ID.String()); err != nil {
		t.Fatalf("DeleteMeal failed: %v", err)
	}
}

func TestOpenCreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "nested", "dir", "ringhealth.db")

	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	info, err := os.Stat(dbPath)
	if err != nil {
		t.Fatalf("Database file not created: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("Expected 0600 permissions, got %o", perm)
	}
	if db.Path() != dbPath {
		t.Errorf("Path mismatch: got %s", db.Path())
	}
}

// setupTestDB creates a test database in a temp directory.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "ringhealth-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(tmpDir) })

	dbPath := filepath.Join(tmpDir, "ringhealth.db")
	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return db
}
