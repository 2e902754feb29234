// ABOUTME: Versioned per-stream vendor shapes accepted by the mapper.
// ABOUTME: Each stream decodes into a fixed struct; wrong field types are rejected.
package mapper

import "github.com/harperreed/ringhealth/internal/models"

// Schema describes the vendor shape the mapper accepts for one stream.
type Schema struct {
	Stream  models.StreamKind
	Version int
	// KeyField is the vendor field holding the natural key.
	KeyField string
}

var schemas = map[models.StreamKind]Schema{
	models.StreamDailySleep:    {Stream: models.StreamDailySleep, Version: 1, KeyField: "day"},
	models.StreamActivity:      {Stream: models.StreamActivity, Version: 1, KeyField: "day"},
	models.StreamReadiness:     {Stream: models.StreamReadiness, Version: 1, KeyField: "day"},
	models.StreamStress:        {Stream: models.StreamStress, Version: 1, KeyField: "day"},
	models.StreamSpO2:          {Stream: models.StreamSpO2, Version: 1, KeyField: "day"},
	models.StreamWorkouts:      {Stream: models.StreamWorkouts, Version: 1, KeyField: "id"},
	models.StreamSleepSessions: {Stream: models.StreamSleepSessions, Version: 1, KeyField: "id"},
	models.StreamHeartRate:     {Stream: models.StreamHeartRate, Version: 1, KeyField: "timestamp"},
}

// SchemaFor returns the schema registered for a stream.
func SchemaFor(kind models.StreamKind) (Schema, bool) {
	s, ok := schemas[kind]
	return s, ok
}

type sleepContributors struct {
	DeepSleep   *int `json:"deep_sleep"`
	Efficiency  *int `json:"efficiency"`
	Latency     *int `json:"latency"`
	REMSleep    *int `json:"rem_sleep"`
	Restfulness *int `json:"restfulness"`
	Timing      *int `json:"timing"`
	TotalSleep  *int `json:"total_sleep"`
}

type vendorDailySleep struct {
	ID           string             `json:"id"`
	Day          string             `json:"day"`
	Score        *int               `json:"score"`
	Contributors *sleepContributors `json:"contributors"`
}

type vendorActivity struct {
	ID                       string   `json:"id"`
	Day                      string   `json:"day"`
	Score                    *int     `json:"score"`
	Steps                    *int     `json:"steps"`
	ActiveCalories           *int     `json:"active_calories"`
	TotalCalories            *int     `json:"total_calories"`
	TargetCalories           *int     `json:"target_calories"`
	HighActivityTime         *int     `json:"high_activity_time"`
	MediumActivityTime       *int     `json:"medium_activity_time"`
	LowActivityTime          *int     `json:"low_activity_time"`
	AverageMETMinutes        *float64 `json:"average_met_minutes"`
	SedentaryTime            *int     `json:"sedentary_time"`
	RestingTime              *int     `json:"resting_time"`
	InactivityAlerts         *int     `json:"inactivity_alerts"`
	HighActivityMETMinutes   *int     `json:"high_activity_met_minutes"`
	MediumActivityMETMinutes *int     `json:"medium_activity_met_minutes"`
	LowActivityMETMinutes    *int     `json:"low_activity_met_minutes"`
}

type readinessContributors struct {
	ActivityBalance     *int `json:"activity_balance"`
	BodyTemperature     *int `json:"body_temperature"`
	HRVBalance          *int `json:"hrv_balance"`
	PreviousDayActivity *int `json:"previous_day_activity"`
	PreviousNight       *int `json:"previous_night"`
	RecoveryIndex       *int `json:"recovery_index"`
	RestingHeartRate    *int `json:"resting_heart_rate"`
	SleepBalance        *int `json:"sleep_balance"`
}

type vendorReadiness struct {
	ID                        string                 `json:"id"`
	Day                       string                 `json:"day"`
	Score                     *int                   `json:"score"`
	TemperatureDeviation      *float64               `json:"temperature_deviation"`
	TemperatureTrendDeviation *float64               `json:"temperature_trend_deviation"`
	Contributors              *readinessContributors `json:"contributors"`
}

type vendorStress struct {
	ID           string  `json:"id"`
	Day          string  `json:"day"`
	StressHigh   *int    `json:"stress_high"`
	RecoveryHigh *int    `json:"recovery_high"`
	DaySummary   *string `json:"day_summary"`
}

type spo2Percentage struct {
	Average *float64 `json:"average"`
}

type vendorSpO2 struct {
	ID                        string          `json:"id"`
	Day                       string          `json:"day"`
	SpO2Percentage            *spo2Percentage `json:"spo2_percentage"`
	BreathingDisturbanceIndex *float64        `json:"breathing_disturbance_index"`
}

type vendorWorkout struct {
	ID               string   `json:"id"`
	Day              string   `json:"day"`
	Activity         string   `json:"activity"`
	StartDatetime    *string  `json:"start_datetime"`
	EndDatetime      *string  `json:"end_datetime"`
	Calories         *float64 `json:"calories"`
	Intensity        *string  `json:"intensity"`
	AverageHeartRate *float64 `json:"average_heart_rate"`
	MaxHeartRate     *float64 `json:"max_heart_rate"`
	Distance         *float64 `json:"distance"`
	Source           *string  `json:"source"`
	Label            *string  `json:"label"`
}

type vendorSleepSession struct {
	ID                 string   `json:"id"`
	Day                string   `json:"day"`
	Type               *string  `json:"type"`
	BedtimeStart       *string  `json:"bedtime_start"`
	BedtimeEnd         *string  `json:"bedtime_end"`
	TotalSleepDuration *int     `json:"total_sleep_duration"`
	AwakeTime          *int     `json:"awake_time"`
	LightSleepDuration *int     `json:"light_sleep_duration"`
	DeepSleepDuration  *int     `json:"deep_sleep_duration"`
	REMSleepDuration   *int     `json:"rem_sleep_duration"`
	RestlessPeriods    *int     `json:"restless_periods"`
	AverageHRV         *float64 `json:"average_hrv"`
	AverageHeartRate   *float64 `json:"average_heart_rate"`
	LowestHeartRate    *int     `json:"lowest_heart_rate"`
	Efficiency         *int     `json:"efficiency"`
	Latency            *int     `json:"latency"`
	AverageBreath      *float64 `json:"average_breath"`
}

type vendorHeartRate struct {
	Timestamp string  `json:"timestamp"`
	BPM       *int    `json:"bpm"`
	Source    *string `json:"source"`
}
