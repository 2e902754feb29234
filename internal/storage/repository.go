// ABOUTME: Repository interface for ring health storage.
// ABOUTME: Read-side contract used by the MCP server, HTTP API, and digest builder.
package storage

import (
	"context"

	"github.com/goccy/go-json"

	"github.com/harperreed/ringhealth/internal/models"
)

// Repository defines the storage interface consumers read and journal through.
// This interface allows swapping implementations (e.g., for testing).
type Repository interface {
	// Synced ring data
	ListSleep(ctx context.Context, limit int) ([]*models.SleepDay, error)
	ListActivity(ctx context.Context, limit int) ([]*models.ActivityDay, error)
	ListReadiness(ctx context.Context, limit int) ([]*models.ReadinessDay, error)
	ListStress(ctx context.Context, limit int) ([]*models.StressDay, error)
	ListSpO2(ctx context.Context, limit int) ([]*models.SpO2Day, error)
	ListWorkouts(ctx context.Context, limit int) ([]*models.Workout, error)
	ListWorkoutsSince(ctx context.Context, day, activity string) ([]*models.Workout, error)
	GetWorkout(ctx context.Context, id string) (*models.Workout, error)
	ListSleepSessions(ctx context.Context, limit int) ([]*models.SleepSession, error)
	ListHeartRate(ctx context.Context, limit int) ([]*models.HeartRateSample, error)
	CountRows(ctx context.Context, kind models.StreamKind) (int, error)
	RecentPayloads(ctx context.Context, kind models.StreamKind, limit int) ([]json.RawMessage, error)

	// Sync bookkeeping
	ListCheckpoints(ctx context.Context) ([]*models.Checkpoint, error)
	ListRetryFlags(ctx context.Context) ([]*models.RetryFlag, error)

	// Journal
	CreateNote(ctx context.Context, n *models.Note) error
	ListNotes(ctx context.Context, since string, limit int) ([]*models.Note, error)
	DeleteNote(ctx context.Context, idOrPrefix string) error
	CreateGoal(ctx context.Context, g *models.Goal) error
	GetGoal(ctx context.Context, idOrPrefix string) (*models.Goal, error)
	ListGoals(ctx context.Context, status *models.GoalStatus) ([]*models.Goal, error)
	UpdateGoalStatus(ctx context.Context, idOrPrefix string, status models.GoalStatus, currentValue *string) error
	DeleteGoal(ctx context.Context, idOrPrefix string) error
	CreateMeal(ctx context.Context, m *models.Meal) error
	ListMeals(ctx context.Context, since string, limit int) ([]*models.Meal, error)
	DeleteMeal(ctx context.Context, idOrPrefix string) error

	// Export
	GetAllData(ctx context.Context) (*ExportData, error)

	// Lifecycle
	Close() error
}

// Compile-time check that DB implements Repository.
var _ Repository = (*DB)(nil)
