// ABOUTME: Batched full-replace upserts of synced ring rows.
// ABOUTME: One transaction per batch; a failure leaves no partial batch behind.
package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/harperreed/ringhealth/internal/models"
)

// tableSpec binds a stream to its table and column projection.
type tableSpec struct {
	table   string
	columns []string
	values  func(models.Row) ([]any, bool)
}

var tables = map[models.StreamKind]tableSpec{
	models.StreamDailySleep: {
		table: "oura_sleep",
		columns: []string{"day", "vendor_id", "score", "deep_sleep", "efficiency", "latency",
			"rem_sleep", "restfulness", "timing", "total_sleep", "raw_data"},
		values: func(row models.Row) ([]any, bool) {
			r, ok := row.(*models.SleepDay)
			if !ok {
				return nil, false
			}
			return []any{r.Day, nullString(r.ID), r.Score, r.DeepSleep, r.Efficiency, r.Latency,
				r.REMSleep, r.Restfulness, r.Timing, r.TotalSleep, rawText(r.RawData)}, true
		},
	},
	models.StreamActivity: {
		table: "oura_activity",
		columns: []string{"day", "vendor_id", "score", "steps", "active_calories", "total_calories",
			"target_calories", "high_activity_time", "medium_activity_time", "low_activity_time",
			"average_met_minutes", "sedentary_time", "resting_time", "inactivity_alerts",
			"high_activity_met_minutes", "medium_activity_met_minutes", "low_activity_met_minutes", "raw_data"},
		values: func(row models.Row) ([]any, bool) {
			r, ok := row.(*models.ActivityDay)
			if !ok {
				return nil, false
			}
			return []any{r.Day, nullString(r.ID), r.Score, r.Steps, r.ActiveCalories, r.TotalCalories,
				r.TargetCalories, r.HighActivityTime, r.MediumActivityTime, r.LowActivityTime,
				r.AverageMETMinutes, r.SedentaryTime, r.RestingTime, r.InactivityAlerts,
				r.HighActivityMETMinutes, r.MediumActivityMETMinutes, r.LowActivityMETMinutes, rawText(r.RawData)}, true
		},
	},
	models.StreamReadiness: {
		table: "oura_readiness",
		columns: []string{"day", "vendor_id", "score", "temperature_deviation", "temperature_trend_deviation",
			"activity_balance", "body_temperature", "hrv_balance", "previous_day_activity", "previous_night",
			"recovery_index", "resting_heart_rate", "sleep_balance", "raw_data"},
		values: func(row models.Row) ([]any, bool) {
			r, ok := row.(*models.ReadinessDay)
			if !ok {
				return nil, false
			}
			return []any{r.Day, nullString(r.ID), r.Score, r.TemperatureDeviation, r.TemperatureTrendDeviation,
				r.ActivityBalance, r.BodyTemperature, r.HRVBalance, r.PreviousDayActivity, r.PreviousNight,
				r.RecoveryIndex, r.RestingHeartRate, r.SleepBalance, rawText(r.RawData)}, true
		},
	},
	models.StreamStress: {
		table:   "oura_stress",
		columns: []string{"day", "vendor_id", "stress_high", "recovery_high", "day_summary", "raw_data"},
		values: func(row models.Row) ([]any, bool) {
			r, ok := row.(*models.StressDay)
			if !ok {
				return nil, false
			}
			return []any{r.Day, nullString(r.ID), r.StressHigh, r.RecoveryHigh, r.DaySummary, rawText(r.RawData)}, true
		},
	},
	models.StreamSpO2: {
		table:   "oura_spo2",
		columns: []string{"day", "vendor_id", "spo2_average", "breathing_disturbance_index", "raw_data"},
		values: func(row models.Row) ([]any, bool) {
			r, ok := row.(*models.SpO2Day)
			if !ok {
				return nil, false
			}
			return []any{r.Day, nullString(r.ID), r.SpO2Average, r.BreathingDisturbanceIndex, rawText(r.RawData)}, true
		},
	},
	models.StreamWorkouts: {
		table: "oura_workouts",
		columns: []string{"id", "day", "activity", "start_datetime", "end_datetime", "calories", "intensity",
			"average_heart_rate", "max_heart_rate", "distance", "source", "label", "raw_data"},
		values: func(row models.Row) ([]any, bool) {
			r, ok := row.(*models.Workout)
			if !ok {
				return nil, false
			}
			return []any{r.ID, r.Day, nullString(r.Activity), r.StartDatetime, r.EndDatetime, r.Calories, r.Intensity,
				r.AverageHeartRate, r.MaxHeartRate, r.Distance, r.Source, r.Label, rawText(r.RawData)}, true
		},
	},
	models.StreamSleepSessions: {
		table: "oura_sleep_sessions",
		columns: []string{"id", "day", "type", "bedtime_start", "bedtime_end", "total_sleep_duration",
			"awake_time", "light_sleep_duration", "deep_sleep_duration", "rem_sleep_duration",
			"restless_periods", "average_hrv", "average_heart_rate", "lowest_heart_rate",
			"efficiency", "latency", "average_breath", "raw_data"},
		values: func(row models.Row) ([]any, bool) {
			r, ok := row.(*models.SleepSession)
			if !ok {
				return nil, false
			}
			return []any{r.ID, r.Day, r.Type, r.BedtimeStart, r.BedtimeEnd, r.TotalSleepDuration,
				r.AwakeTime, r.LightSleepDuration, r.DeepSleepDuration, r.REMSleepDuration,
				r.RestlessPeriods, r.AverageHRV, r.AverageHeartRate, r.LowestHeartRate,
				r.Efficiency, r.Latency, r.AverageBreath, rawText(r.RawData)}, true
		},
	},
	models.StreamHeartRate: {
		table:   "heart_rate",
		columns: []string{"timestamp", "source", "bpm"},
		values: func(row models.Row) ([]any, bool) {
			r, ok := row.(*models.HeartRateSample)
			if !ok {
				return nil, false
			}
			return []any{r.Timestamp, r.Source, r.BPM}, true
		},
	},
}

// TableFor returns the table that stores a stream.
func TableFor(kind models.StreamKind) (string, bool) {
	spec, ok := tables[kind]
	return spec.table, ok
}

func (s tableSpec) upsertSQL() string {
	cols := append(append([]string{}, s.columns...), "schema_version", "synced_at")
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	return fmt.Sprintf("INSERT OR REPLACE INTO %s (%s) VALUES (%s)",
		s.table, strings.Join(cols, ", "), placeholders)
}

// UpsertBatch writes rows for one stream inside a single transaction.
// A row whose natural key already exists replaces the stored row entirely,
// so fields absent from the newer record become NULL. Returns the number of
// rows written; on any failure nothing from the batch is committed.
func (d *DB) UpsertBatch(ctx context.Context, kind models.StreamKind, rows []models.Row) (int, error) {
	if len(rows) == 0 {
		return 0, ErrEmptyBatch
	}
	spec, ok := tables[kind]
	if !ok {
		return 0, &StorageError{Op: "upsert", Stream: kind, Err: fmt.Errorf("no table for stream")}
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, &StorageError{Op: "begin", Stream: kind, Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, spec.upsertSQL())
	if err != nil {
		return 0, &StorageError{Op: "prepare", Stream: kind, Err: err}
	}
	defer stmt.Close()

	syncedAt := d.now().UTC().Format(time.RFC3339)
	for i, row := range rows {
		args, ok := spec.values(row)
		if !ok {
			return 0, &StorageError{Op: "upsert", Stream: kind, Err: fmt.Errorf("row %d is %T", i, row)}
		}
		args = append(args, row.Meta().SchemaVersion, syncedAt)
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, &StorageError{Op: "upsert", Stream: kind, Err: fmt.Errorf("row %d (%s): %w", i, row.Key(), err)}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, &StorageError{Op: "commit", Stream: kind, Err: err}
	}
	return len(rows), nil
}

// CountRows returns the number of stored rows for a stream.
func (d *DB) CountRows(ctx context.Context, kind models.StreamKind) (int, error) {
	spec, ok := tables[kind]
	if !ok {
		return 0, fmt.Errorf("count rows: unknown stream %q", kind)
	}
	var n int
	if err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+spec.table).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", kind, err)
	}
	return n, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func rawText(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
