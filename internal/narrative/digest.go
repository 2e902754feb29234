// ABOUTME: Digest, chat, and goal analysis built from stored records.
// ABOUTME: Gathers recent rows, asks the narrator for prose, and caches digests per type and day.
package narrative

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/harperreed/ringhealth/internal/logging"
	"github.com/harperreed/ringhealth/internal/metrics"
	"github.com/harperreed/ringhealth/internal/models"
)

// Look-back sizes for each narrative kind.
const (
	digestDays     = 7
	digestWorkouts = 14
	digestMeals    = 10
	digestNotes    = 5

	chatDays     = 7
	chatWorkouts = 10
	chatMeals    = 5

	// goalDays bounds the sleep and readiness rows sent with a goal analysis.
	goalDays = 14
)

// Reader is the slice of storage the narrative builder reads.
type Reader interface {
	ListSleep(ctx context.Context, limit int) ([]*models.SleepDay, error)
	ListActivity(ctx context.Context, limit int) ([]*models.ActivityDay, error)
	ListReadiness(ctx context.Context, limit int) ([]*models.ReadinessDay, error)
	ListStress(ctx context.Context, limit int) ([]*models.StressDay, error)
	ListSpO2(ctx context.Context, limit int) ([]*models.SpO2Day, error)
	ListSleepSessions(ctx context.Context, limit int) ([]*models.SleepSession, error)
	ListWorkouts(ctx context.Context, limit int) ([]*models.Workout, error)
	ListWorkoutsSince(ctx context.Context, day, activity string) ([]*models.Workout, error)
	ListMeals(ctx context.Context, since string, limit int) ([]*models.Meal, error)
	ListNotes(ctx context.Context, since string, limit int) ([]*models.Note, error)
	ListGoals(ctx context.Context, status *models.GoalStatus) ([]*models.Goal, error)
	GetGoal(ctx context.Context, idOrPrefix string) (*models.Goal, error)
}

// DigestResult is a digest and whether it came from the cache.
type DigestResult struct {
	Digest *Digest `json:"digest"`
	Cached bool    `json:"cached"`
}

// GoalReport is a goal with its computed progress and narrative analysis.
type GoalReport struct {
	Goal     *models.Goal `json:"goal"`
	Progress *Progress    `json:"progress"`
	Analysis string       `json:"analysis"`
}

// Service builds narratives. The cache is optional; without one every
// digest is generated fresh.
type Service struct {
	reader   Reader
	narrator Narrator
	cache    *Cache
	loc      *time.Location
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithCache stores digests in c.
func WithCache(c *Cache) Option {
	return func(s *Service) { s.cache = c }
}

// WithLocation sets the zone the digest date is computed in.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a narrative service.
func NewService(reader Reader, narrator Narrator, opts ...Option) (*Service, error) {
	if reader == nil {
		return nil, errors.New("narrative: reader is required")
	}
	if narrator == nil {
		return nil, errors.New("narrative: narrator is required")
	}
	s := &Service{reader: reader, narrator: narrator, loc: time.Local, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Today returns the current date in the service's zone.
func (s *Service) Today() string {
	return s.now().In(s.loc).Format(models.DateLayout)
}

// Generate returns today's digest of type t. A cached digest is reused
// unless regenerate is set.
func (s *Service) Generate(ctx context.Context, t DigestType, regenerate bool) (*DigestResult, error) {
	date := s.Today()
	log := logging.Ctx(ctx).With().Str("digest_type", string(t)).Str("date", date).Logger()

	cacheLabel := "miss"
	if s.cache == nil || regenerate {
		cacheLabel = "bypass"
	}
	if s.cache != nil && !regenerate {
		d, err := s.cache.Get(t, date)
		switch {
		case err == nil:
			metrics.DigestRequests.WithLabelValues(string(t), "hit").Inc()
			log.Debug().Msg("digest cache hit")
			return &DigestResult{Digest: d, Cached: true}, nil
		case !errors.Is(err, ErrDigestNotFound):
			log.Warn().Err(err).Msg("digest cache read failed")
		}
	}
	metrics.DigestRequests.WithLabelValues(string(t), cacheLabel).Inc()

	in, err := s.gather(ctx, digestDays, digestWorkouts, digestMeals, true)
	if err != nil {
		return nil, err
	}
	in.Kind = KindDigest
	in.DigestType = t
	in.Date = date

	content, err := s.narrator.Narrate(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("generate %s digest: %w", t, err)
	}

	d := &Digest{Type: t, Date: date, Content: content, GeneratedAt: s.now().UTC()}
	if s.cache != nil {
		if err := s.cache.Put(d); err != nil {
			log.Warn().Err(err).Msg("digest cache write failed")
		}
	}
	log.Info().Int("length", len(content)).Msg("digest generated")
	return &DigestResult{Digest: d}, nil
}

// Get returns a cached digest without generating one.
func (s *Service) Get(t DigestType, date string) (*Digest, error) {
	if s.cache == nil {
		return nil, ErrDigestNotFound
	}
	return s.cache.Get(t, date)
}

// History lists cached digests, newest first.
func (s *Service) History() ([]*Digest, error) {
	if s.cache == nil {
		return nil, nil
	}
	return s.cache.List()
}

// Ask answers a free-form question about recent data.
func (s *Service) Ask(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", errors.New("question is required")
	}
	in, err := s.gather(ctx, chatDays, chatWorkouts, chatMeals, false)
	if err != nil {
		return "", err
	}
	in.Kind = KindChat
	in.Question = question
	in.Date = s.Today()

	answer, err := s.narrator.Narrate(ctx, in)
	if err != nil {
		return "", fmt.Errorf("answer question: %w", err)
	}
	return answer, nil
}

// AnalyzeGoal computes progress for a goal and asks for a narrative analysis.
func (s *Service) AnalyzeGoal(ctx context.Context, idOrPrefix string) (*GoalReport, error) {
	goal, err := s.reader.GetGoal(ctx, idOrPrefix)
	if err != nil {
		return nil, err
	}

	var workouts []*models.Workout
	if goal.GoalType == models.GoalLowerRunningHR {
		workouts, err = s.reader.ListWorkoutsSince(ctx, goal.StartDate, RunningActivity)
		if err != nil {
			return nil, fmt.Errorf("load workouts: %w", err)
		}
	}
	progress := GoalProgress(goal, workouts)

	in := Input{
		Kind:     KindGoal,
		Date:     s.Today(),
		Goal:     goal,
		Progress: progress,
		Workouts: workouts,
	}
	if goal.GoalType == models.GoalLowerRunningHR {
		sleep, err := s.reader.ListSleep(ctx, goalDays)
		if err != nil {
			return nil, fmt.Errorf("load sleep: %w", err)
		}
		readiness, err := s.reader.ListReadiness(ctx, goalDays)
		if err != nil {
			return nil, fmt.Errorf("load readiness: %w", err)
		}
		in.Sleep = sinceDay(sleep, goal.StartDate)
		in.Readiness = sinceDay(readiness, goal.StartDate)
	}
	analysis, err := s.narrator.Narrate(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("analyze goal: %w", err)
	}
	return &GoalReport{Goal: goal, Progress: progress, Analysis: analysis}, nil
}

// gather loads the recent records shared by digests and chat.
func (s *Service) gather(ctx context.Context, days, workouts, meals int, withJournal bool) (Input, error) {
	var in Input
	var err error

	if in.Sleep, err = s.reader.ListSleep(ctx, days); err != nil {
		return in, fmt.Errorf("load sleep: %w", err)
	}
	if in.Activity, err = s.reader.ListActivity(ctx, days); err != nil {
		return in, fmt.Errorf("load activity: %w", err)
	}
	if in.Readiness, err = s.reader.ListReadiness(ctx, days); err != nil {
		return in, fmt.Errorf("load readiness: %w", err)
	}
	if in.Workouts, err = s.reader.ListWorkouts(ctx, workouts); err != nil {
		return in, fmt.Errorf("load workouts: %w", err)
	}
	if in.Meals, err = s.reader.ListMeals(ctx, "", meals); err != nil {
		return in, fmt.Errorf("load meals: %w", err)
	}
	active := models.GoalActive
	if in.Goals, err = s.reader.ListGoals(ctx, &active); err != nil {
		return in, fmt.Errorf("load goals: %w", err)
	}

	if withJournal {
		if in.Stress, err = s.reader.ListStress(ctx, days); err != nil {
			return in, fmt.Errorf("load stress: %w", err)
		}
		if in.SpO2, err = s.reader.ListSpO2(ctx, days); err != nil {
			return in, fmt.Errorf("load spo2: %w", err)
		}
		if in.SleepSessions, err = s.reader.ListSleepSessions(ctx, days); err != nil {
			return in, fmt.Errorf("load sleep sessions: %w", err)
		}
		if in.Notes, err = s.reader.ListNotes(ctx, "", digestNotes); err != nil {
			return in, fmt.Errorf("load notes: %w", err)
		}
	}
	return in, nil
}

// sinceDay keeps the rows on or after day.
func sinceDay[T interface{ Key() string }](rows []T, day string) []T {
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		if r.Key() >= day {
			out = append(out, r)
		}
	}
	return out
}
