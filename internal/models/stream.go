// ABOUTME: StreamKind enum for the ring vendor's data streams.
// ABOUTME: Defines the closed set of streams the sync layer knows how to store.
package models

import (
	"fmt"
	"time"
)

// StreamKind names one category of ring data.
type StreamKind string

const (
	// Daily summaries, keyed by day
	StreamDailySleep StreamKind = "daily_sleep"
	StreamActivity   StreamKind = "activity"
	StreamReadiness  StreamKind = "readiness"
	StreamStress     StreamKind = "stress"
	StreamSpO2       StreamKind = "spo2"

	// Sessions, keyed by vendor id
	StreamSleepSessions StreamKind = "sleep_sessions"
	StreamWorkouts      StreamKind = "workouts"

	// Samples, keyed by timestamp and source
	StreamHeartRate StreamKind = "heart_rate"
)

// AllStreams lists every known stream kind.
var AllStreams = []StreamKind{
	StreamDailySleep, StreamSleepSessions, StreamActivity, StreamReadiness,
	StreamStress, StreamWorkouts, StreamSpO2, StreamHeartRate,
}

// DailyStreams lists the streams with one row per calendar day.
var DailyStreams = []StreamKind{
	StreamDailySleep, StreamActivity, StreamReadiness, StreamStress, StreamSpO2,
}

// IsValidStream checks if a string names a known stream kind.
func IsValidStream(s string) bool {
	for _, k := range AllStreams {
		if string(k) == s {
			return true
		}
	}
	return false
}

// ParseStream converts a string to a StreamKind.
func ParseStream(s string) (StreamKind, error) {
	if !IsValidStream(s) {
		return "", fmt.Errorf("unknown stream: %s", s)
	}
	return StreamKind(s), nil
}

// ParseStreams converts a list of names, rejecting unknown ones and duplicates.
func ParseStreams(names []string) ([]StreamKind, error) {
	seen := make(map[StreamKind]bool, len(names))
	out := make([]StreamKind, 0, len(names))
	for _, n := range names {
		k, err := ParseStream(n)
		if err != nil {
			return nil, err
		}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out, nil
}

// DateLayout is the vendor's calendar-day format.
const DateLayout = "2006-01-02"

// IsValidDay reports whether s is a YYYY-MM-DD calendar date.
func IsValidDay(s string) bool {
	if len(s) != len(DateLayout) {
		return false
	}
	_, err := time.Parse(DateLayout, s)
	return err == nil
}
