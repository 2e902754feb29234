// ABOUTME: Converts vendor JSON records into typed local rows.
// ABOUTME: Flattens nested sub-objects and keeps the original payload verbatim.
package mapper

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/harperreed/ringhealth/internal/models"
)

// DefaultHeartRateSource is stored when a sample carries no source.
const DefaultHeartRateSource = "oura"

// Map converts one vendor record into a row for the given stream.
// It performs no I/O. A record missing its natural key, or whose documented
// fields have the wrong JSON type, yields a *MalformedRecordError.
func Map(kind models.StreamKind, raw []byte) (models.Row, error) {
	schema, ok := SchemaFor(kind)
	if !ok {
		return nil, fmt.Errorf("map record: unknown stream %q", kind)
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, malformed(kind, "record is not a JSON object", nil)
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, trimmed); err != nil {
		return nil, malformed(kind, "invalid JSON", err)
	}
	meta := models.RecordMeta{
		RawData:       compact.Bytes(),
		SchemaVersion: schema.Version,
	}

	switch kind {
	case models.StreamDailySleep:
		return mapDailySleep(trimmed, meta)
	case models.StreamActivity:
		return mapActivity(trimmed, meta)
	case models.StreamReadiness:
		return mapReadiness(trimmed, meta)
	case models.StreamStress:
		return mapStress(trimmed, meta)
	case models.StreamSpO2:
		return mapSpO2(trimmed, meta)
	case models.StreamWorkouts:
		return mapWorkout(trimmed, meta)
	case models.StreamSleepSessions:
		return mapSleepSession(trimmed, meta)
	case models.StreamHeartRate:
		return mapHeartRate(trimmed, meta)
	}
	return nil, fmt.Errorf("map record: no mapping for stream %q", kind)
}

// MapBatch maps every record, returning the good rows in input order and one
// error per skipped record.
func MapBatch(kind models.StreamKind, raws []models.RawRecord) ([]models.Row, []error) {
	rows := make([]models.Row, 0, len(raws))
	var skipped []error
	for i, raw := range raws {
		row, err := Map(kind, raw)
		if err != nil {
			skipped = append(skipped, fmt.Errorf("record %d: %w", i, err))
			continue
		}
		rows = append(rows, row)
	}
	return rows, skipped
}

// IsMalformed reports whether err is a record-level mapping failure.
func IsMalformed(err error) bool {
	var me *MalformedRecordError
	return errors.As(err, &me)
}

func decode(kind models.StreamKind, raw []byte, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return malformed(kind, "unexpected field shape", err)
	}
	return nil
}

func requireDay(kind models.StreamKind, day string) error {
	if day == "" {
		return malformed(kind, "missing day", nil)
	}
	if !models.IsValidDay(day) {
		return malformed(kind, fmt.Sprintf("day %q is not YYYY-MM-DD", day), nil)
	}
	return nil
}

func mapDailySleep(raw []byte, meta models.RecordMeta) (models.Row, error) {
	var v vendorDailySleep
	if err := decode(models.StreamDailySleep, raw, &v); err != nil {
		return nil, err
	}
	if err := requireDay(models.StreamDailySleep, v.Day); err != nil {
		return nil, err
	}

	row := &models.SleepDay{ID: v.ID, Day: v.Day, Score: v.Score, RecordMeta: meta}
	if c := v.Contributors; c != nil {
		row.DeepSleep = c.DeepSleep
		row.Efficiency = c.Efficiency
		row.Latency = c.Latency
		row.REMSleep = c.REMSleep
		row.Restfulness = c.Restfulness
		row.Timing = c.Timing
		row.TotalSleep = c.TotalSleep
	}
	return row, nil
}

func mapActivity(raw []byte, meta models.RecordMeta) (models.Row, error) {
	var v vendorActivity
	if err := decode(models.StreamActivity, raw, &v); err != nil {
		return nil, err
	}
	if err := requireDay(models.StreamActivity, v.Day); err != nil {
		return nil, err
	}

	return &models.ActivityDay{
		ID:                       v.ID,
		Day:                      v.Day,
		Score:                    v.Score,
		Steps:                    v.Steps,
		ActiveCalories:           v.ActiveCalories,
		TotalCalories:            v.TotalCalories,
		TargetCalories:           v.TargetCalories,
		HighActivityTime:         v.HighActivityTime,
		MediumActivityTime:       v.MediumActivityTime,
		LowActivityTime:          v.LowActivityTime,
		AverageMETMinutes:        v.AverageMETMinutes,
		SedentaryTime:            v.SedentaryTime,
		RestingTime:              v.RestingTime,
		InactivityAlerts:         v.InactivityAlerts,
		HighActivityMETMinutes:   v.HighActivityMETMinutes,
		MediumActivityMETMinutes: v.MediumActivityMETMinutes,
		LowActivityMETMinutes:    v.LowActivityMETMinutes,
		RecordMeta:               meta,
	}, nil
}

func mapReadiness(raw []byte, meta models.RecordMeta) (models.Row, error) {
	var v vendorReadiness
	if err := decode(models.StreamReadiness, raw, &v); err != nil {
		return nil, err
	}
	if err := requireDay(models.StreamReadiness, v.Day); err != nil {
		return nil, err
	}

	row := &models.ReadinessDay{
		ID:                        v.ID,
		Day:                       v.Day,
		Score:                     v.Score,
		TemperatureDeviation:      v.TemperatureDeviation,
		TemperatureTrendDeviation: v.TemperatureTrendDeviation,
		RecordMeta:                meta,
	}
	if c := v.Contributors; c != nil {
		row.ActivityBalance = c.ActivityBalance
		row.BodyTemperature = c.BodyTemperature
		row.HRVBalance = c.HRVBalance
		row.PreviousDayActivity = c.PreviousDayActivity
		row.PreviousNight = c.PreviousNight
		row.RecoveryIndex = c.RecoveryIndex
		row.RestingHeartRate = c.RestingHeartRate
		row.SleepBalance = c.SleepBalance
	}
	return row, nil
}

func mapStress(raw []byte, meta models.RecordMeta) (models.Row, error) {
	var v vendorStress
	if err := decode(models.StreamStress, raw, &v); err != nil {
		return nil, err
	}
	if err := requireDay(models.StreamStress, v.Day); err != nil {
		return nil, err
	}

	return &models.StressDay{
		ID:           v.ID,
		Day:          v.Day,
		StressHigh:   v.StressHigh,
		RecoveryHigh: v.RecoveryHigh,
		DaySummary:   v.DaySummary,
		RecordMeta:   meta,
	}, nil
}

func mapSpO2(raw []byte, meta models.RecordMeta) (models.Row, error) {
	var v vendorSpO2
	if err := decode(models.StreamSpO2, raw, &v); err != nil {
		return nil, err
	}
	if err := requireDay(models.StreamSpO2, v.Day); err != nil {
		return nil, err
	}

	row := &models.SpO2Day{
		ID:                        v.ID,
		Day:                       v.Day,
		BreathingDisturbanceIndex: v.BreathingDisturbanceIndex,
		RecordMeta:                meta,
	}
	if v.SpO2Percentage != nil {
		row.SpO2Average = v.SpO2Percentage.Average
	}
	return row, nil
}

func mapWorkout(raw []byte, meta models.RecordMeta) (models.Row, error) {
	var v vendorWorkout
	if err := decode(models.StreamWorkouts, raw, &v); err != nil {
		return nil, err
	}
	if v.ID == "" {
		return nil, malformed(models.StreamWorkouts, "missing id", nil)
	}
	day := v.Day
	if day == "" {
		day = dayFromTimestamp(v.StartDatetime)
	}
	if err := requireDay(models.StreamWorkouts, day); err != nil {
		return nil, err
	}

	return &models.Workout{
		ID:               v.ID,
		Day:              day,
		Activity:         v.Activity,
		StartDatetime:    v.StartDatetime,
		EndDatetime:      v.EndDatetime,
		Calories:         v.Calories,
		Intensity:        v.Intensity,
		AverageHeartRate: v.AverageHeartRate,
		MaxHeartRate:     v.MaxHeartRate,
		Distance:         v.Distance,
		Source:           v.Source,
		Label:            v.Label,
		RecordMeta:       meta,
	}, nil
}

func mapSleepSession(raw []byte, meta models.RecordMeta) (models.Row, error) {
	var v vendorSleepSession
	if err := decode(models.StreamSleepSessions, raw, &v); err != nil {
		return nil, err
	}
	if v.ID == "" {
		return nil, malformed(models.StreamSleepSessions, "missing id", nil)
	}
	day := v.Day
	if day == "" {
		day = dayFromTimestamp(v.BedtimeEnd)
	}
	if err := requireDay(models.StreamSleepSessions, day); err != nil {
		return nil, err
	}

	return &models.SleepSession{
		ID:                 v.ID,
		Day:                day,
		Type:               v.Type,
		BedtimeStart:       v.BedtimeStart,
		BedtimeEnd:         v.BedtimeEnd,
		TotalSleepDuration: v.TotalSleepDuration,
		AwakeTime:          v.AwakeTime,
		LightSleepDuration: v.LightSleepDuration,
		DeepSleepDuration:  v.DeepSleepDuration,
		REMSleepDuration:   v.REMSleepDuration,
		RestlessPeriods:    v.RestlessPeriods,
		AverageHRV:         v.AverageHRV,
		AverageHeartRate:   v.AverageHeartRate,
		LowestHeartRate:    v.LowestHeartRate,
		Efficiency:         v.Efficiency,
		Latency:            v.Latency,
		AverageBreath:      v.AverageBreath,
		RecordMeta:         meta,
	}, nil
}

func mapHeartRate(raw []byte, meta models.RecordMeta) (models.Row, error) {
	var v vendorHeartRate
	if err := decode(models.StreamHeartRate, raw, &v); err != nil {
		return nil, err
	}
	if v.Timestamp == "" {
		return nil, malformed(models.StreamHeartRate, "missing timestamp", nil)
	}
	if v.BPM == nil {
		return nil, malformed(models.StreamHeartRate, "missing bpm", nil)
	}

	source := DefaultHeartRateSource
	if v.Source != nil && *v.Source != "" {
		source = *v.Source
	}
	// Samples have no columns beyond these three, so the blob is not kept.
	meta.RawData = nil
	return &models.HeartRateSample{
		Timestamp:  v.Timestamp,
		BPM:        *v.BPM,
		Source:     source,
		RecordMeta: meta,
	}, nil
}

// dayFromTimestamp takes the calendar day from an RFC 3339 timestamp.
func dayFromTimestamp(ts *string) string {
	if ts == nil || len(*ts) < len(models.DateLayout) {
		return ""
	}
	return (*ts)[:len(models.DateLayout)]
}
