// ABOUTME: Notes, goals, and meals CRUD operations for SQLite storage.
// ABOUTME: Entries are addressed by full UUID or an unambiguous prefix.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/ringhealth/internal/models"
)

// journalTables lists the tables that resolveID may search.
var journalTables = map[string]bool{"user_notes": true, "goals": true, "meals": true}

// CreateNote stores a new note.
func (d *DB) CreateNote(ctx context.Context, n *models.Note) error {
	query := `
		INSERT INTO user_notes (id, date, note_type, content, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := d.db.ExecContext(ctx, query,
		n.ID.String(),
		n.Date,
		string(n.NoteType),
		n.Content,
		n.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("create note: %w", err)
	}
	return nil
}

// ListNotes returns notes, newest first. A non-empty since limits results to
// notes dated on or after that day.
func (d *DB) ListNotes(ctx context.Context, since string, limit int) ([]*models.Note, error) {
	query := `
		SELECT id, date, note_type, content, created_at
		FROM user_notes
		WHERE date >= ?
		ORDER BY date DESC, created_at DESC
	`
	query, args := limitClause(query, []any{since}, limit)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	var notes []*models.Note
	for rows.Next() {
		var n models.Note
		var idStr, noteType, createdAt string
		if err := rows.Scan(&idStr, &n.Date, &noteType, &n.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		n.ID, _ = uuid.Parse(idStr)
		n.NoteType = models.NoteType(noteType)
		n.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		notes = append(notes, &n)
	}
	return notes, rows.Err()
}

// DeleteNote removes a note by ID or prefix.
func (d *DB) DeleteNote(ctx context.Context, idOrPrefix string) error {
	return d.deleteByID(ctx, "user_notes", "note", idOrPrefix)
}

// CreateGoal stores a new goal.
func (d *DB) CreateGoal(ctx context.Context, g *models.Goal) error {
	query := `
		INSERT INTO goals (id, title, description, goal_type, target_value, current_value,
			start_date, target_date, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := d.db.ExecContext(ctx, query,
		g.ID.String(),
		g.Title,
		g.Description,
		g.GoalType,
		g.TargetValue,
		g.CurrentValue,
		g.StartDate,
		g.TargetDate,
		string(g.Status),
		g.CreatedAt.UTC().Format(time.RFC3339),
		g.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("create goal: %w", err)
	}
	return nil
}

const goalColumns = `id, title, description, goal_type, target_value, current_value,
	start_date, target_date, status, created_at, updated_at`

// GetGoal retrieves a goal by ID or prefix.
func (d *DB) GetGoal(ctx context.Context, idOrPrefix string) (*models.Goal, error) {
	id, err := d.resolveID(ctx, "goals", idOrPrefix)
	if err != nil {
		return nil, err
	}
	goals, err := d.queryGoals(ctx, `SELECT `+goalColumns+` FROM goals WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(goals) == 0 {
		return nil, fmt.Errorf("goal %s: %w", idOrPrefix, ErrNotFound)
	}
	return goals[0], nil
}

// ListGoals returns goals, optionally filtered by status, newest first.
func (d *DB) ListGoals(ctx context.Context, status *models.GoalStatus) ([]*models.Goal, error) {
	if status != nil {
		return d.queryGoals(ctx, `SELECT `+goalColumns+` FROM goals WHERE status = ? ORDER BY created_at DESC`, string(*status))
	}
	return d.queryGoals(ctx, `SELECT `+goalColumns+` FROM goals ORDER BY created_at DESC`)
}

// UpdateGoalStatus changes a goal's status and optionally its current value.
func (d *DB) UpdateGoalStatus(ctx context.Context, idOrPrefix string, status models.GoalStatus, currentValue *string) error {
	if !models.IsValidGoalStatus(string(status)) {
		return fmt.Errorf("update goal: invalid status %q", status)
	}
	id, err := d.resolveID(ctx, "goals", idOrPrefix)
	if err != nil {
		return fmt.Errorf("update goal: %w", err)
	}
	_, err = d.db.ExecContext(ctx, `
		UPDATE goals
		SET status = ?, current_value = COALESCE(?, current_value), updated_at = ?
		WHERE id = ?
	`, string(status), currentValue, d.now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("update goal: %w", err)
	}
	return nil
}

// DeleteGoal removes a goal by ID or prefix.
func (d *DB) DeleteGoal(ctx context.Context, idOrPrefix string) error {
	return d.deleteByID(ctx, "goals", "goal", idOrPrefix)
}

func (d *DB) queryGoals(ctx context.Context, query string, args ...any) ([]*models.Goal, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()

	var goals []*models.Goal
	for rows.Next() {
		var g models.Goal
		var idStr, status, createdAt, updatedAt string
		var description, targetValue, currentValue, targetDate sql.NullString
		err := rows.Scan(&idStr, &g.Title, &description, &g.GoalType, &targetValue, &currentValue,
			&g.StartDate, &targetDate, &status, &createdAt, &updatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		g.ID, _ = uuid.Parse(idStr)
		g.Status = models.GoalStatus(status)
		g.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		g.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		g.Description = nullStringPtr(description)
		g.TargetValue = nullStringPtr(targetValue)
		g.CurrentValue = nullStringPtr(currentValue)
		g.TargetDate = nullStringPtr(targetDate)
		goals = append(goals, &g)
	}
	return goals, rows.Err()
}

// CreateMeal stores a new meal.
func (d *DB) CreateMeal(ctx context.Context, m *models.Meal) error {
	query := `
		INSERT INTO meals (id, date, time, description, estimated_portion, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := d.db.ExecContext(ctx, query,
		m.ID.String(),
		m.Date,
		m.Time,
		m.Description,
		m.EstimatedPortion,
		m.Notes,
		m.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("create meal: %w", err)
	}
	return nil
}

// ListMeals returns meals dated on or after since, newest first.
func (d *DB) ListMeals(ctx context.Context, since string, limit int) ([]*models.Meal, error) {
	query := `
		SELECT id, date, time, description, estimated_portion, notes, created_at
		FROM meals
		WHERE date >= ?
		ORDER BY date DESC, time DESC
	`
	query, args := limitClause(query, []any{since}, limit)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list meals: %w", err)
	}
	defer rows.Close()

	var meals []*models.Meal
	for rows.Next() {
		var m models.Meal
		var idStr, createdAt string
		var mealTime, portion, notes sql.NullString
		if err := rows.Scan(&idStr, &m.Date, &mealTime, &m.Description, &portion, &notes, &createdAt); err != nil {
			return nil, fmt.Errorf("scan meal: %w", err)
		}
		m.ID, _ = uuid.Parse(idStr)
		m.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		m.Time = nullStringPtr(mealTime)
		m.EstimatedPortion = nullStringPtr(portion)
		m.Notes = nullStringPtr(notes)
		meals = append(meals, &m)
	}
	return meals, rows.Err()
}

// DeleteMeal removes a meal by ID or prefix.
func (d *DB) DeleteMeal(ctx context.Context, idOrPrefix string) error {
	return d.deleteByID(ctx, "meals", "meal", idOrPrefix)
}

func (d *DB) deleteByID(ctx context.Context, table, noun, idOrPrefix string) error {
	id, err := d.resolveID(ctx, table, idOrPrefix)
	if err != nil {
		return fmt.Errorf("delete %s: %w", noun, err)
	}

	result, err := d.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", noun, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s: %w", noun, err)
	}
	if affected == 0 {
		return fmt.Errorf("delete %s %s: %w", noun, idOrPrefix, ErrNotFound)
	}
	return nil
}

// resolveID finds the full ID from a prefix.
func (d *DB) resolveID(ctx context.Context, table, idOrPrefix string) (string, error) {
	if !journalTables[table] {
		return "", fmt.Errorf("resolve ID: unknown table %q", table)
	}
	// If it looks like a full UUID, use it directly
	if len(idOrPrefix) == 36 && strings.Count(idOrPrefix, "-") == 4 {
		return idOrPrefix, nil
	}
	if idOrPrefix == "" {
		return "", fmt.Errorf("empty id: %w", ErrNotFound)
	}

	rows, err := d.db.QueryContext(ctx, "SELECT id FROM "+table+" WHERE id LIKE ? || '%'", idOrPrefix)
	if err != nil {
		return "", fmt.Errorf("resolve ID: %w", err)
	}
	defer rows.Close()

	var matches []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", fmt.Errorf("scan ID: %w", err)
		}
		matches = append(matches, id)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("resolve ID: %w", err)
	}

	if len(matches) == 0 {
		return "", fmt.Errorf("%s: %w", idOrPrefix, ErrNotFound)
	}
	if len(matches) > 1 {
		return "", fmt.Errorf("ambiguous prefix %s: matches multiple records", idOrPrefix)
	}
	return matches[0], nil
}

func nullStringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// IsNotFound reports whether err means the requested entry is absent.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, sql.ErrNoRows)
}
