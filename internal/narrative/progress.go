// ABOUTME: Goal progress metrics computed from synced workouts.
// ABOUTME: Running heart-rate goals compare the first and second half of workouts since the start date.
package narrative

import (
	"math"

	"github.com/harperreed/ringhealth/internal/models"
)

// Trend describes the direction of a goal metric.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendWorsening Trend = "worsening"
	TrendStable    Trend = "stable"
)

// RunningActivity is matched against workout activity names for running goals.
const RunningActivity = "run"

// Progress summarizes a goal's measurable trend.
type Progress struct {
	TotalWorkouts   int   `json:"total_workouts"`
	AverageHR       *int  `json:"average_hr,omitempty"`
	FirstHalfAvgHR  *int  `json:"first_half_avg_hr,omitempty"`
	SecondHalfAvgHR *int  `json:"second_half_avg_hr,omitempty"`
	Trend           Trend `json:"trend,omitempty"`

	// ImprovementPct is the drop from the first-half to the second-half average.
	ImprovementPct *int `json:"improvement_pct,omitempty"`
}

// GoalProgress computes progress for goal from workouts in chronological
// order. Only lower_running_hr goals have metrics; other types return an
// empty Progress. Workouts without an average heart rate are ignored.
func GoalProgress(goal *models.Goal, workouts []*models.Workout) *Progress {
	p := &Progress{}
	if goal == nil || goal.GoalType != models.GoalLowerRunningHR {
		return p
	}

	var hrs []float64
	for _, w := range workouts {
		if w.AverageHeartRate != nil && *w.AverageHeartRate > 0 {
			hrs = append(hrs, *w.AverageHeartRate)
		}
	}
	p.TotalWorkouts = len(hrs)
	if len(hrs) == 0 {
		return p
	}
	p.AverageHR = roundPtr(mean(hrs))

	// A trend needs at least one workout in each half.
	if len(hrs) < 2 {
		return p
	}
	mid := len(hrs) / 2
	first, second := mean(hrs[:mid]), mean(hrs[mid:])
	p.FirstHalfAvgHR = roundPtr(first)
	p.SecondHalfAvgHR = roundPtr(second)

	switch {
	case second < first:
		p.Trend = TrendImproving
	case second > first:
		p.Trend = TrendWorsening
	default:
		p.Trend = TrendStable
	}
	p.ImprovementPct = roundPtr((first - second) / first * 100)
	return p
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func roundPtr(f float64) *int {
	v := int(math.Round(f))
	return &v
}
