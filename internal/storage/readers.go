// ABOUTME: Read access to synced ring rows for reports and narration.
// ABOUTME: Results are sorted most recent first.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/harperreed/ringhealth/internal/models"
)

func limitClause(query string, args []any, limit int) (string, []any) {
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return query, args
}

func scanMeta(m *models.RecordMeta, raw sql.NullString, syncedAt string) {
	if raw.Valid {
		m.RawData = []byte(raw.String)
	}
	m.SyncedAt, _ = time.Parse(time.RFC3339, syncedAt)
}

// ListSleep returns daily sleep summaries.
func (d *DB) ListSleep(ctx context.Context, limit int) ([]*models.SleepDay, error) {
	query, args := limitClause(`
		SELECT day, COALESCE(vendor_id, ''), score, deep_sleep, efficiency, latency, rem_sleep,
			restfulness, timing, total_sleep, raw_data, schema_version, synced_at
		FROM oura_sleep
		ORDER BY day DESC`, nil, limit)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sleep: %w", err)
	}
	defer rows.Close()

	var out []*models.SleepDay
	for rows.Next() {
		var r models.SleepDay
		var raw sql.NullString
		var syncedAt string
		if err := rows.Scan(&r.Day, &r.ID, &r.Score, &r.DeepSleep, &r.Efficiency, &r.Latency, &r.REMSleep,
			&r.Restfulness, &r.Timing, &r.TotalSleep, &raw, &r.SchemaVersion, &syncedAt); err != nil {
			return nil, fmt.Errorf("scan sleep: %w", err)
		}
		scanMeta(&r.RecordMeta, raw, syncedAt)
		out = append(out, &r)
	}
	return out, rows.Err()
}

// ListActivity returns daily activity summaries.
func (d *DB) ListActivity(ctx context.Context, limit int) ([]*models.ActivityDay, error) {
	query, args := limitClause(`
		SELECT day, COALESCE(vendor_id, ''), score, steps, active_calories, total_calories, target_calories,
			high_activity_time, medium_activity_time, low_activity_time, average_met_minutes,
			sedentary_time, resting_time, inactivity_alerts, high_activity_met_minutes,
			medium_activity_met_minutes, low_activity_met_minutes, raw_data, schema_version, synced_at
		FROM oura_activity
		ORDER BY day DESC`, nil, limit)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	var out []*models.ActivityDay
	for rows.Next() {
		var r models.ActivityDay
		var raw sql.NullString
		var syncedAt string
		if err := rows.Scan(&r.Day, &r.ID, &r.Score, &r.Steps, &r.ActiveCalories, &r.TotalCalories, &r.TargetCalories,
			&r.HighActivityTime, &r.MediumActivityTime, &r.LowActivityTime, &r.AverageMETMinutes,
			&r.SedentaryTime, &r.RestingTime, &r.InactivityAlerts, &r.HighActivityMETMinutes,
			&r.MediumActivityMETMinutes, &r.LowActivityMETMinutes, &raw, &r.SchemaVersion, &syncedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		scanMeta(&r.RecordMeta, raw, syncedAt)
		out = append(out, &r)
	}
	return out, rows.Err()
}

// ListReadiness returns daily readiness summaries.
func (d *DB) ListReadiness(ctx context.Context, limit int) ([]*models.ReadinessDay, error) {
	query, args := limitClause(`
		SELECT day, COALESCE(vendor_id, ''), score, temperature_deviation, temperature_trend_deviation,
			activity_balance, body_temperature, hrv_balance, previous_day_activity, previous_night,
			recovery_index, resting_heart_rate, sleep_balance, raw_data, schema_version, synced_at
		FROM oura_readiness
		ORDER BY day DESC`, nil, limit)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list readiness: %w", err)
	}
	defer rows.Close()

	var out []*models.ReadinessDay
	for rows.Next() {
		var r models.ReadinessDay
		var raw sql.NullString
		var syncedAt string
		if err := rows.Scan(&r.Day, &r.ID, &r.Score, &r.TemperatureDeviation, &r.TemperatureTrendDeviation,
			&r.ActivityBalance, &r.BodyTemperature, &r.HRVBalance, &r.PreviousDayActivity, &r.PreviousNight,
			&r.RecoveryIndex, &r.RestingHeartRate, &r.SleepBalance, &raw, &r.SchemaVersion, &syncedAt); err != nil {
			return nil, fmt.Errorf("scan readiness: %w", err)
		}
		scanMeta(&r.RecordMeta, raw, syncedAt)
		out = append(out, &r)
	}
	return out, rows.Err()
}

// ListStress returns daily stress summaries.
func (d *DB) ListStress(ctx context.Context, limit int) ([]*models.StressDay, error) {
	query, args := limitClause(`
		SELECT day, COALESCE(vendor_id, ''), stress_high, recovery_high, day_summary, raw_data, schema_version, synced_at
		FROM oura_stress
		ORDER BY day DESC`, nil, limit)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list stress: %w", err)
	}
	defer rows.Close()

	var out []*models.StressDay
	for rows.Next() {
		var r models.StressDay
		var raw sql.NullString
		var syncedAt string
		if err := rows.Scan(&r.Day, &r.ID, &r.StressHigh, &r.RecoveryHigh, &r.DaySummary, &raw, &r.SchemaVersion, &syncedAt); err != nil {
			return nil, fmt.Errorf("scan stress: %w", err)
		}
		scanMeta(&r.RecordMeta, raw, syncedAt)
		out = append(out, &r)
	}
	return out, rows.Err()
}

// ListSpO2 returns daily blood-oxygen summaries.
func (d *DB) ListSpO2(ctx context.Context, limit int) ([]*models.SpO2Day, error) {
	query, args := limitClause(`
		SELECT day, COALESCE(vendor_id, ''), spo2_average, breathing_disturbance_index, raw_data, schema_version, synced_at
		FROM oura_spo2
		ORDER BY day DESC`, nil, limit)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list spo2: %w", err)
	}
	defer rows.Close()

	var out []*models.SpO2Day
	for rows.Next() {
		var r models.SpO2Day
		var raw sql.NullString
		var syncedAt string
		if err := rows.Scan(&r.Day, &r.ID, &r.SpO2Average, &r.BreathingDisturbanceIndex, &raw, &r.SchemaVersion, &syncedAt); err != nil {
			return nil, fmt.Errorf("scan spo2: %w", err)
		}
		scanMeta(&r.RecordMeta, raw, syncedAt)
		out = append(out, &r)
	}
	return out, rows.Err()
}

const workoutColumns = `id, day, COALESCE(activity, ''), start_datetime, end_datetime, calories, intensity,
	average_heart_rate, max_heart_rate, distance, source, label, raw_data, schema_version, synced_at`

// ListWorkouts returns workouts, newest first.
func (d *DB) ListWorkouts(ctx context.Context, limit int) ([]*models.Workout, error) {
	query, args := limitClause(`SELECT `+workoutColumns+`
		FROM oura_workouts
		ORDER BY day DESC, start_datetime DESC`, nil, limit)
	return d.queryWorkouts(ctx, query, args...)
}

// ListWorkoutsSince returns workouts on or after day whose activity contains
// the given text, oldest first. An empty activity matches all workouts.
func (d *DB) ListWorkoutsSince(ctx context.Context, day, activity string) ([]*models.Workout, error) {
	query := `SELECT ` + workoutColumns + `
		FROM oura_workouts
		WHERE day >= ? AND LOWER(COALESCE(activity, '')) LIKE '%' || LOWER(?) || '%'
		ORDER BY day ASC, start_datetime ASC`
	return d.queryWorkouts(ctx, query, day, activity)
}

func (d *DB) queryWorkouts(ctx context.Context, query string, args ...any) ([]*models.Workout, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list workouts: %w", err)
	}
	defer rows.Close()

	var out []*models.Workout
	for rows.Next() {
		var r models.Workout
		var raw sql.NullString
		var syncedAt string
		if err := rows.Scan(&r.ID, &r.Day, &r.Activity, &r.StartDatetime, &r.EndDatetime, &r.Calories, &r.Intensity,
			&r.AverageHeartRate, &r.MaxHeartRate, &r.Distance, &r.Source, &r.Label, &raw, &r.SchemaVersion, &syncedAt); err != nil {
			return nil, fmt.Errorf("scan workout: %w", err)
		}
		scanMeta(&r.RecordMeta, raw, syncedAt)
		out = append(out, &r)
	}
	return out, rows.Err()
}

// GetWorkout returns a single workout by vendor id.
func (d *DB) GetWorkout(ctx context.Context, id string) (*models.Workout, error) {
	workouts, err := d.queryWorkouts(ctx, `SELECT `+workoutColumns+` FROM oura_workouts WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(workouts) == 0 {
		return nil, fmt.Errorf("workout %s: %w", id, ErrNotFound)
	}
	return workouts[0], nil
}

// ListSleepSessions returns detailed sleep periods.
func (d *DB) ListSleepSessions(ctx context.Context, limit int) ([]*models.SleepSession, error) {
	query, args := limitClause(`
		SELECT id, day, type, bedtime_start, bedtime_end, total_sleep_duration, awake_time,
			light_sleep_duration, deep_sleep_duration, rem_sleep_duration, restless_periods,
			average_hrv, average_heart_rate, lowest_heart_rate, efficiency, latency, average_breath,
			raw_data, schema_version, synced_at
		FROM oura_sleep_sessions
		ORDER BY day DESC, bedtime_start DESC`, nil, limit)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sleep sessions: %w", err)
	}
	defer rows.Close()

	var out []*models.SleepSession
	for rows.Next() {
		var r models.SleepSession
		var raw sql.NullString
		var syncedAt string
		if err := rows.Scan(&r.ID, &r.Day, &r.Type, &r.BedtimeStart, &r.BedtimeEnd, &r.TotalSleepDuration, &r.AwakeTime,
			&r.LightSleepDuration, &r.DeepSleepDuration, &r.REMSleepDuration, &r.RestlessPeriods,
			&r.AverageHRV, &r.AverageHeartRate, &r.LowestHeartRate, &r.Efficiency, &r.Latency, &r.AverageBreath,
			&raw, &r.SchemaVersion, &syncedAt); err != nil {
			return nil, fmt.Errorf("scan sleep session: %w", err)
		}
		scanMeta(&r.RecordMeta, raw, syncedAt)
		out = append(out, &r)
	}
	return out, rows.Err()
}

// ListHeartRate returns heart-rate samples, newest first.
func (d *DB) ListHeartRate(ctx context.Context, limit int) ([]*models.HeartRateSample, error) {
	query, args := limitClause(`
		SELECT timestamp, source, bpm, schema_version, synced_at
		FROM heart_rate
		ORDER BY timestamp DESC`, nil, limit)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list heart rate: %w", err)
	}
	defer rows.Close()

	var out []*models.HeartRateSample
	for rows.Next() {
		var r models.HeartRateSample
		var syncedAt string
		if err := rows.Scan(&r.Timestamp, &r.Source, &r.BPM, &r.SchemaVersion, &syncedAt); err != nil {
			return nil, fmt.Errorf("scan heart rate: %w", err)
		}
		scanMeta(&r.RecordMeta, sql.NullString{}, syncedAt)
		out = append(out, &r)
	}
	return out, rows.Err()
}
