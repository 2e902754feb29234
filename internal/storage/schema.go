// ABOUTME: SQLite schema definition and initialization.
// ABOUTME: Defines ring data tables, sync bookkeeping, and journal tables.
package storage

// initSchema creates or updates the database schema.
func (d *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS oura_sleep (
		day TEXT NOT NULL PRIMARY KEY,
		vendor_id TEXT,
		score INTEGER,
		deep_sleep INTEGER,
		efficiency INTEGER,
		latency INTEGER,
		rem_sleep INTEGER,
		restfulness INTEGER,
		timing INTEGER,
		total_sleep INTEGER,
		raw_data TEXT,
		schema_version INTEGER NOT NULL,
		synced_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS oura_activity (
		day TEXT NOT NULL PRIMARY KEY,
		vendor_id TEXT,
		score INTEGER,
		steps INTEGER,
		active_calories INTEGER,
		total_calories INTEGER,
		target_calories INTEGER,
		high_activity_time INTEGER,
		medium_activity_time INTEGER,
		low_activity_time INTEGER,
		average_met_minutes REAL,
		sedentary_time INTEGER,
		resting_time INTEGER,
		inactivity_alerts INTEGER,
		high_activity_met_minutes INTEGER,
		medium_activity_met_minutes INTEGER,
		low_activity_met_minutes INTEGER,
		raw_data TEXT,
		schema_version INTEGER NOT NULL,
		synced_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS oura_readiness (
		day TEXT NOT NULL PRIMARY KEY,
		vendor_id TEXT,
		score INTEGER,
		temperature_deviation REAL,
		temperature_trend_deviation REAL,
		activity_balance INTEGER,
		body_temperature INTEGER,
		hrv_balance INTEGER,
		previous_day_activity INTEGER,
		previous_night INTEGER,
		recovery_index INTEGER,
		resting_heart_rate INTEGER,
		sleep_balance INTEGER,
		raw_data TEXT,
		schema_version INTEGER NOT NULL,
		synced_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS oura_stress (
		day TEXT NOT NULL PRIMARY KEY,
		vendor_id TEXT,
		stress_high INTEGER,
		recovery_high INTEGER,
		day_summary TEXT,
		raw_data TEXT,
		schema_version INTEGER NOT NULL,
		synced_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS oura_spo2 (
		day TEXT NOT NULL PRIMARY KEY,
		vendor_id TEXT,
		spo2_average REAL,
		breathing_disturbance_index REAL,
		raw_data TEXT,
		schema_version INTEGER NOT NULL,
		synced_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS oura_workouts (
		id TEXT NOT NULL PRIMARY KEY,
		day TEXT NOT NULL,
		activity TEXT,
		start_datetime TEXT,
		end_datetime TEXT,
		calories REAL,
		intensity TEXT,
		average_heart_rate REAL,
		max_heart_rate REAL,
		distance REAL,
		source TEXT,
		label TEXT,
		raw_data TEXT,
		schema_version INTEGER NOT NULL,
		synced_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS oura_sleep_sessions (
		id TEXT NOT NULL PRIMARY KEY,
		day TEXT NOT NULL,
		type TEXT,
		bedtime_start TEXT,
		bedtime_end TEXT,
		total_sleep_duration INTEGER,
		awake_time INTEGER,
		light_sleep_duration INTEGER,
		deep_sleep_duration INTEGER,
		rem_sleep_duration INTEGER,
		restless_periods INTEGER,
		average_hrv REAL,
		average_heart_rate REAL,
		lowest_heart_rate INTEGER,
		efficiency INTEGER,
		latency INTEGER,
		average_breath REAL,
		raw_data TEXT,
		schema_version INTEGER NOT NULL,
		synced_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS heart_rate (
		timestamp TEXT NOT NULL,
		source TEXT NOT NULL,
		bpm INTEGER NOT NULL,
		schema_version INTEGER NOT NULL,
		synced_at DATETIME NOT NULL,
		PRIMARY KEY (timestamp, source)
	);

	CREATE TABLE IF NOT EXISTS sync_status (
		stream_type TEXT PRIMARY KEY,
		last_sync_date TEXT NOT NULL,
		last_sync_timestamp DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sync_retry (
		stream_type TEXT PRIMARY KEY,
		flagged_at DATETIME NOT NULL,
		window_end TEXT NOT NULL,
		reason TEXT
	);

	CREATE TABLE IF NOT EXISTS sync_lock (
		name TEXT PRIMARY KEY,
		owner TEXT NOT NULL,
		acquired_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS user_notes (
		id TEXT NOT NULL PRIMARY KEY,
		date TEXT NOT NULL,
		note_type TEXT NOT NULL DEFAULT 'general',
		content TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS goals (
		id TEXT NOT NULL PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT,
		goal_type TEXT NOT NULL,
		target_value TEXT,
		current_value TEXT,
		start_date TEXT NOT NULL,
		target_date TEXT,
		status TEXT NOT NULL DEFAULT 'active',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS meals (
		id TEXT NOT NULL PRIMARY KEY,
		date TEXT NOT NULL,
		time TEXT,
		description TEXT NOT NULL,
		estimated_portion TEXT,
		notes TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_workouts_day ON oura_workouts(day DESC);
	CREATE INDEX IF NOT EXISTS idx_workouts_activity_day ON oura_workouts(activity, day);
	CREATE INDEX IF NOT EXISTS idx_sleep_sessions_day ON oura_sleep_sessions(day DESC);
	CREATE INDEX IF NOT EXISTS idx_notes_date ON user_notes(date DESC);
	CREATE INDEX IF NOT EXISTS idx_goals_status ON goals(status);
	CREATE INDEX IF NOT EXISTS idx_meals_date ON meals(date DESC);
	`

	_, err := d.db.Exec(schema)
	return err
}
