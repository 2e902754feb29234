// ABOUTME: Narrator contract: structured health records in, narrative text out.
// ABOUTME: Defines digest types and the input bundle handed to the language model.
package narrative

import (
	"context"
	"errors"
	"fmt"

	"github.com/harperreed/ringhealth/internal/models"
)

// Kind selects what the narrator is asked to write.
type Kind string

const (
	KindDigest Kind = "digest"
	KindChat   Kind = "chat"
	KindGoal   Kind = "goal"
)

// DigestType is the time of day a digest is written for.
type DigestType string

const (
	DigestMorning   DigestType = "morning"
	DigestAfternoon DigestType = "afternoon"
	DigestEvening   DigestType = "evening"
)

// DigestTypes lists every digest type.
var DigestTypes = []DigestType{DigestMorning, DigestAfternoon, DigestEvening}

// ParseDigestType converts a string to a DigestType. Blank means morning.
func ParseDigestType(s string) (DigestType, error) {
	if s == "" {
		return DigestMorning, nil
	}
	for _, t := range DigestTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown digest type %q (want morning, afternoon or evening)", s)
}

// ErrEmptyNarrative is returned when the model produced no text.
var ErrEmptyNarrative = errors.New("narrator returned no text")

// Input is everything the narrator may draw on. Unused sections stay nil.
type Input struct {
	Kind       Kind
	DigestType DigestType
	Date       string

	Sleep     []*models.SleepDay
	Activity  []*models.ActivityDay
	Readiness []*models.ReadinessDay
	Stress    []*models.StressDay
	Workouts  []*models.Workout

	// SpO2 and SleepSessions are set for digests.
	SpO2          []*models.SpO2Day
	SleepSessions []*models.SleepSession

	Meals     []*models.Meal
	Goals     []*models.Goal
	Notes     []*models.Note

	// Goal and Progress are set for KindGoal.
	Goal     *models.Goal
	Progress *Progress

	// Question is set for KindChat.
	Question string
}

// Narrator turns structured records into prose. The caller never parses
// the returned text.
type Narrator interface {
	Narrate(ctx context.Context, in Input) (string, error)
}

// NarratorFunc adapts a function to the Narrator interface.
type NarratorFunc func(ctx context.Context, in Input) (string, error)

// Narrate calls f.
func (f NarratorFunc) Narrate(ctx context.Context, in Input) (string, error) {
	return f(ctx, in)
}
