// ABOUTME: Typed local rows for each ring data stream.
// ABOUTME: Rows carry the mapped columns plus the verbatim vendor payload.
package models

import "time"

// RawRecord is one vendor record exactly as the API returned it.
type RawRecord []byte

// Row is a mapped record ready for the upsert store.
type Row interface {
	Stream() StreamKind
	// Key returns the natural key that identifies the same fact across syncs.
	Key() string
	Meta() *RecordMeta
}

// RecordMeta holds the bookkeeping shared by every synced row.
type RecordMeta struct {
	RawData       []byte
	SchemaVersion int
	SyncedAt      time.Time
}

// Meta returns the row's bookkeeping fields.
func (m *RecordMeta) Meta() *RecordMeta { return m }

// SleepDay is one daily sleep summary.
type SleepDay struct {
	ID          string
	Day         string
	Score       *int
	DeepSleep   *int
	Efficiency  *int
	Latency     *int
	REMSleep    *int
	Restfulness *int
	Timing      *int
	TotalSleep  *int
	RecordMeta
}

func (r *SleepDay) Stream() StreamKind { return StreamDailySleep }
func (r *SleepDay) Key() string        { return r.Day }

// ActivityDay is one daily activity summary.
type ActivityDay struct {
	ID                       string
	Day                      string
	Score                    *int
	Steps                    *int
	ActiveCalories           *int
	TotalCalories            *int
	TargetCalories           *int
	HighActivityTime         *int
	MediumActivityTime       *int
	LowActivityTime          *int
	AverageMETMinutes        *float64
	SedentaryTime            *int
	RestingTime              *int
	InactivityAlerts         *int
	HighActivityMETMinutes   *int
	MediumActivityMETMinutes *int
	LowActivityMETMinutes    *int
	RecordMeta
}

func (r *ActivityDay) Stream() StreamKind { return StreamActivity }
func (r *ActivityDay) Key() string        { return r.Day }

// ReadinessDay is one daily readiness summary with flattened contributors.
type ReadinessDay struct {
	ID                        string
	Day                       string
	Score                     *int
	TemperatureDeviation      *float64
	TemperatureTrendDeviation *float64
	ActivityBalance           *int
	BodyTemperature           *int
	HRVBalance                *int
	PreviousDayActivity       *int
	PreviousNight             *int
	RecoveryIndex             *int
	RestingHeartRate          *int
	SleepBalance              *int
	RecordMeta
}

func (r *ReadinessDay) Stream() StreamKind { return StreamReadiness }
func (r *ReadinessDay) Key() string        { return r.Day }

// StressDay is one daily stress summary.
type StressDay struct {
	ID           string
	Day          string
	StressHigh   *int
	RecoveryHigh *int
	DaySummary   *string
	RecordMeta
}

func (r *StressDay) Stream() StreamKind { return StreamStress }
func (r *StressDay) Key() string        { return r.Day }

// SpO2Day is one daily blood-oxygen summary.
type SpO2Day struct {
	ID                        string
	Day                       string
	SpO2Average               *float64
	BreathingDisturbanceIndex *float64
	RecordMeta
}

func (r *SpO2Day) Stream() StreamKind { return StreamSpO2 }
func (r *SpO2Day) Key() string        { return r.Day }

// Workout is one exercise session recorded by the ring.
type Workout struct {
	ID               string
	Day              string
	Activity         string
	StartDatetime    *string
	EndDatetime      *string
	Calories         *float64
	Intensity        *string
	AverageHeartRate *float64
	MaxHeartRate     *float64
	Distance         *float64
	Source           *string
	Label            *string
	RecordMeta
}

func (r *Workout) Stream() StreamKind { return StreamWorkouts }
func (r *Workout) Key() string        { return r.ID }

// SleepSession is one detailed sleep period. A day may hold several.
type SleepSession struct {
	ID                 string
	Day                string
	Type               *string
	BedtimeStart       *string
	BedtimeEnd         *string
	TotalSleepDuration *int
	AwakeTime          *int
	LightSleepDuration *int
	DeepSleepDuration  *int
	REMSleepDuration   *int
	RestlessPeriods    *int
	AverageHRV         *float64
	AverageHeartRate   *float64
	LowestHeartRate    *int
	Efficiency         *int
	Latency            *int
	AverageBreath      *float64
	RecordMeta
}

func (r *SleepSession) Stream() StreamKind { return StreamSleepSessions }
func (r *SleepSession) Key() string        { return r.ID }

// HeartRateSample is a single heart-rate reading.
type HeartRateSample struct {
	Timestamp string
	BPM       int
	Source    string
	RecordMeta
}

func (r *HeartRateSample) Stream() StreamKind { return StreamHeartRate }
func (r *HeartRateSample) Key() string        { return r.Timestamp + "|" + r.Source }
