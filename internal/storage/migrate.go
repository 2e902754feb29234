// ABOUTME: Import from the legacy oura-health SQLite database.
// ABOUTME: Re-maps stored vendor payloads and copies journal entries with fresh IDs.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/harperreed/ringhealth/internal/mapper"
	"github.com/harperreed/ringhealth/internal/models"
)

// legacyTables maps streams to the legacy tables that hold their payloads.
var legacyTables = map[models.StreamKind]string{
	models.StreamDailySleep:    "oura_sleep",
	models.StreamSleepSessions: "oura_sleep_sessions",
	models.StreamActivity:      "oura_activity",
	models.StreamReadiness:     "oura_readiness",
	models.StreamStress:        "oura_stress",
	models.StreamWorkouts:      "oura_workouts",
	models.StreamSpO2:          "oura_spo2",
}

// MigrateSummary holds counts of migrated entities.
type MigrateSummary struct {
	Records     map[models.StreamKind]int
	Malformed   int
	Checkpoints int
	Notes       int
	Goals       int
	Meals       int
}

// MigrateLegacy copies everything from a legacy database into dst. With
// dryRun set it counts what would be written without touching dst.
// Missing legacy tables are skipped.
func MigrateLegacy(ctx context.Context, legacyPath string, dst *DB, dryRun bool) (*MigrateSummary, error) {
	if _, err := os.Stat(legacyPath); err != nil {
		return nil, fmt.Errorf("legacy database: %w", err)
	}
	src, err := sql.Open("sqlite", "file:"+legacyPath+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open legacy database: %w", err)
	}
	defer src.Close()

	summary := &MigrateSummary{Records: make(map[models.StreamKind]int)}

	for _, kind := range models.AllStreams {
		raws, err := legacyPayloads(ctx, src, kind)
		if err != nil {
			return nil, err
		}
		if len(raws) == 0 {
			continue
		}
		rows, errs := mapper.MapBatch(kind, raws)
		summary.Malformed += len(errs)
		if len(rows) == 0 {
			continue
		}
		if !dryRun {
			if _, err := dst.UpsertBatch(ctx, kind, rows); err != nil {
				return nil, fmt.Errorf("migrate %s: %w", kind, err)
			}
		}
		summary.Records[kind] = len(rows)
	}

	if err := migrateCheckpoints(ctx, src, dst, dryRun, summary); err != nil {
		return nil, err
	}
	if err := migrateNotes(ctx, src, dst, dryRun, summary); err != nil {
		return nil, err
	}
	if err := migrateGoals(ctx, src, dst, dryRun, summary); err != nil {
		return nil, err
	}
	if err := migrateMeals(ctx, src, dst, dryRun, summary); err != nil {
		return nil, err
	}
	return summary, nil
}

func hasTable(ctx context.Context, src *sql.DB, table string) (bool, error) {
	var n int
	err := src.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("inspect legacy table %s: %w", table, err)
	}
	return n > 0, nil
}

func legacyPayloads(ctx context.Context, src *sql.DB, kind models.StreamKind) ([]models.RawRecord, error) {
	if kind == models.StreamHeartRate {
		return legacyHeartRate(ctx, src)
	}
	table := legacyTables[kind]
	ok, err := hasTable(ctx, src, table)
	if err != nil || !ok {
		return nil, err
	}

	rows, err := src.QueryContext(ctx, "SELECT raw_data FROM "+table+" WHERE raw_data IS NOT NULL")
	if err != nil {
		return nil, fmt.Errorf("read legacy %s: %w", table, err)
	}
	defer rows.Close()

	var out []models.RawRecord
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan legacy %s: %w", table, err)
		}
		out = append(out, models.RawRecord(raw))
	}
	return out, rows.Err()
}

func legacyHeartRate(ctx context.Context, src *sql.DB) ([]models.RawRecord, error) {
	ok, err := hasTable(ctx, src, "heart_rate")
	if err != nil || !ok {
		return nil, err
	}

	rows, err := src.QueryContext(ctx,
		"SELECT CAST(timestamp AS TEXT), bpm, COALESCE(source, '') FROM heart_rate")
	if err != nil {
		return nil, fmt.Errorf("read legacy heart_rate: %w", err)
	}
	defer rows.Close()

	var out []models.RawRecord
	for rows.Next() {
		var ts, source string
		var bpm int
		if err := rows.Scan(&ts, &bpm, &source); err != nil {
			return nil, fmt.Errorf("scan legacy heart_rate: %w", err)
		}
		sample := map[string]any{"timestamp": ts, "bpm": bpm}
		if source != "" {
			sample["source"] = source
		}
		b, err := json.Marshal(sample)
		if err != nil {
			return nil, fmt.Errorf("encode legacy heart_rate: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func migrateCheckpoints(ctx context.Context, src *sql.DB, dst *DB, dryRun bool, summary *MigrateSummary) error {
	ok, err := hasTable(ctx, src, "sync_status")
	if err != nil || !ok {
		return err
	}
	rows, err := src.QueryContext(ctx,
		"SELECT data_type, CAST(last_sync_date AS TEXT) FROM sync_status WHERE last_sync_date IS NOT NULL")
	if err != nil {
		return fmt.Errorf("read legacy sync_status: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var stream, day string
		if err := rows.Scan(&stream, &day); err != nil {
			return fmt.Errorf("scan legacy sync_status: %w", err)
		}
		if !models.IsValidStream(stream) || !models.IsValidDay(day) {
			continue
		}
		if !dryRun {
			if err := dst.RecordCheckpoint(ctx, models.StreamKind(stream), day); err != nil {
				return fmt.Errorf("migrate checkpoint: %w", err)
			}
		}
		summary.Checkpoints++
	}
	return rows.Err()
}

func migrateNotes(ctx context.Context, src *sql.DB, dst *DB, dryRun bool, summary *MigrateSummary) error {
	ok, err := hasTable(ctx, src, "user_notes")
	if err != nil || !ok {
		return err
	}
	rows, err := src.QueryContext(ctx, `
		SELECT CAST(date AS TEXT), COALESCE(note_type, 'general'), content, CAST(created_at AS TEXT)
		FROM user_notes
	`)
	if err != nil {
		return fmt.Errorf("read legacy notes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var n models.Note
		var noteType string
		var createdAt sql.NullString
		if err := rows.Scan(&n.Date, &noteType, &n.Content, &createdAt); err != nil {
			return fmt.Errorf("scan legacy note: %w", err)
		}
		n.ID = uuid.New()
		n.NoteType = models.NoteType(noteType)
		n.CreatedAt = legacyTime(createdAt)
		if !dryRun {
			if err := dst.CreateNote(ctx, &n); err != nil {
				return fmt.Errorf("migrate note: %w", err)
			}
		}
		summary.Notes++
	}
	return rows.Err()
}

func migrateGoals(ctx context.Context, src *sql.DB, dst *DB, dryRun bool, summary *MigrateSummary) error {
	ok, err := hasTable(ctx, src, "goals")
	if err != nil || !ok {
		return err
	}
	rows, err := src.QueryContext(ctx, `
		SELECT title, description, goal_type, target_value, current_value,
			CAST(start_date AS TEXT), CAST(target_date AS TEXT), COALESCE(status, 'active'),
			CAST(created_at AS TEXT), CAST(updated_at AS TEXT)
		FROM goals
	`)
	if err != nil {
		return fmt.Errorf("read legacy goals: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var g models.Goal
		var status string
		var description, targetValue, currentValue, targetDate, createdAt, updatedAt sql.NullString
		if err := rows.Scan(&g.Title, &description, &g.GoalType, &targetValue, &currentValue,
			&g.StartDate, &targetDate, &status, &createdAt, &updatedAt); err != nil {
			return fmt.Errorf("scan legacy goal: %w", err)
		}
		g.ID = uuid.New()
		g.Status = models.GoalStatus(status)
		g.Description = nullStringPtr(description)
		g.TargetValue = nullStringPtr(targetValue)
		g.CurrentValue = nullStringPtr(currentValue)
		g.TargetDate = nullStringPtr(targetDate)
		g.CreatedAt = legacyTime(createdAt)
		g.UpdatedAt = legacyTime(updatedAt)
		if !dryRun {
			if err := dst.CreateGoal(ctx, &g); err != nil {
				return fmt.Errorf("migrate goal: %w", err)
			}
		}
		summary.Goals++
	}
	return rows.Err()
}

func migrateMeals(ctx context.Context, src *sql.DB, dst *DB, dryRun bool, summary *MigrateSummary) error {
	ok, err := hasTable(ctx, src, "meals")
	if err != nil || !ok {
		return err
	}
	rows, err := src.QueryContext(ctx, `
		SELECT CAST(date AS TEXT), CAST(time AS TEXT), description, estimated_portion, notes,
			CAST(created_at AS TEXT)
		FROM meals
	`)
	if err != nil {
		return fmt.Errorf("read legacy meals: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m models.Meal
		var mealTime, portion, notes, createdAt sql.NullString
		if err := rows.Scan(&m.Date, &mealTime, &m.Description, &portion, &notes, &createdAt); err != nil {
			return fmt.Errorf("scan legacy meal: %w", err)
		}
		m.ID = uuid.New()
		m.Time = nullStringPtr(mealTime)
		m.EstimatedPortion = nullStringPtr(portion)
		m.Notes = nullStringPtr(notes)
		m.CreatedAt = legacyTime(createdAt)
		if !dryRun {
			if err := dst.CreateMeal(ctx, &m); err != nil {
				return fmt.Errorf("migrate meal: %w", err)
			}
		}
		summary.Meals++
	}
	return rows.Err()
}

// legacyTime parses SQLite CURRENT_TIMESTAMP text, falling back to now.
func legacyTime(ns sql.NullString) time.Time {
	if ns.Valid {
		for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339} {
			if t, err := time.Parse(layout, ns.String); err == nil {
				return t
			}
		}
	}
	return time.Now()
}
