// ABOUTME: Syncer pulls ring data for a date window and reconciles it into the local store.
// ABOUTME: Fetches streams in parallel, writes each stream in its own transaction, then checkpoints.
package sync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/harperreed/ringhealth/internal/logging"
	"github.com/harperreed/ringhealth/internal/mapper"
	"github.com/harperreed/ringhealth/internal/metrics"
	"github.com/harperreed/ringhealth/internal/models"
	"github.com/harperreed/ringhealth/internal/oura"
	"github.com/harperreed/ringhealth/internal/storage"
)

var (
	// ErrNegativeDays is returned when PerformFullSync is asked to look forward.
	ErrNegativeDays = errors.New("days back must not be negative")

	// ErrSyncInProgress is returned when another process holds the sync lock.
	ErrSyncInProgress = errors.New("sync already in progress")
)

// Fetcher returns the raw records of one stream for an inclusive date range.
type Fetcher interface {
	Fetch(ctx context.Context, kind models.StreamKind, startDate, endDate string) ([]models.RawRecord, error)
}

// Store is the slice of the storage layer a sync needs.
type Store interface {
	UpsertBatch(ctx context.Context, kind models.StreamKind, rows []models.Row) (int, error)
	RecordCheckpoint(ctx context.Context, kind models.StreamKind, throughDate string) error
	ListCheckpoints(ctx context.Context) ([]*models.Checkpoint, error)
	FlagRetry(ctx context.Context, kind models.StreamKind, windowEnd, reason string) error
	ClearRetry(ctx context.Context, kind models.StreamKind) error
	ListRetryFlags(ctx context.Context) ([]*models.RetryFlag, error)
	AcquireSyncLock(ctx context.Context, owner string, ttl time.Duration) error
	ReleaseSyncLock(ctx context.Context, owner string) error
	SyncLockHolder(ctx context.Context) (*storage.LockInfo, error)
}

var _ Store = (*storage.DB)(nil)

// Window is the inclusive date range of one sync.
type Window struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Days returns the number of calendar days the window covers.
func (w Window) Days() int {
	start, err1 := time.Parse(models.DateLayout, w.Start)
	end, err2 := time.Parse(models.DateLayout, w.End)
	if err1 != nil || err2 != nil {
		return 0
	}
	return int(end.Sub(start).Hours()/24) + 1
}

// StreamResult is the outcome for one stream.
type StreamResult struct {
	Stream  models.StreamKind `json:"stream"`
	Fetched int               `json:"fetched"`
	Written int               `json:"written"`
	Skipped int               `json:"skipped"` // malformed records dropped
	Empty   bool              `json:"empty,omitempty"`
	Flagged bool              `json:"flagged,omitempty"`
	Err     error             `json:"-"`
}

// Failed reports whether the stream's data did not land.
func (r *StreamResult) Failed() bool {
	return r.Err != nil
}

// Summary aggregates a full sync.
type Summary struct {
	Success       bool                                `json:"success"`
	Window        Window                              `json:"window"`
	SyncedRecords map[models.StreamKind]int           `json:"synced_records"`
	Streams       map[models.StreamKind]*StreamResult `json:"-"`
	CorrelationID string                              `json:"correlation_id"`
	Duration      time.Duration                       `json:"duration"`
	order         []models.StreamKind
}

// Order returns the streams in the order they were synced.
func (s *Summary) Order() []models.StreamKind {
	return s.order
}

// FailedStreams lists streams that failed, sorted by name.
func (s *Summary) FailedStreams() []models.StreamKind {
	var failed []models.StreamKind
	for kind, r := range s.Streams {
		if r.Failed() {
			failed = append(failed, kind)
		}
	}
	sort.Slice(failed, func(i, j int) bool { return failed[i] < failed[j] })
	return failed
}

// Err joins the per-stream errors, or returns nil when every stream landed.
func (s *Summary) Err() error {
	var errs []error
	for _, kind := range s.FailedStreams() {
		errs = append(errs, fmt.Errorf("%s: %w", kind, s.Streams[kind].Err))
	}
	return errors.Join(errs...)
}

// Errors maps each failed stream to its error message.
func (s *Summary) Errors() map[models.StreamKind]string {
	out := make(map[models.StreamKind]string)
	for _, kind := range s.FailedStreams() {
		out[kind] = s.Streams[kind].Err.Error()
	}
	return out
}

// Status is the checkpoint view of the store.
type Status struct {
	Checkpoints []*models.Checkpoint `json:"checkpoints"`
	RetryFlags  []*models.RetryFlag  `json:"retry_flags"`
	Lock        *storage.LockInfo    `json:"lock,omitempty"`
}

// Runner runs and reports on full syncs.
type Runner interface {
	PerformFullSync(ctx context.Context, daysBack int) (*Summary, error)
	Status(ctx context.Context) (*Status, error)
}

var _ Runner = (*Syncer)(nil)

// Syncer manages sync operations for ring data.
type Syncer struct {
	fetcher Fetcher
	store   Store
	config  Config

	// mu serializes runs inside one process; the store lock covers the rest.
	mu sync.Mutex
}

// NewSyncer creates a Syncer. Zero config fields take DefaultConfig values.
func NewSyncer(fetcher Fetcher, store Store, cfg Config) (*Syncer, error) {
	if fetcher == nil {
		return nil, errors.New("sync: nil fetcher")
	}
	if store == nil {
		return nil, errors.New("sync: nil store")
	}
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, fmt.Errorf("sync config: %w", err)
	}
	return &Syncer{fetcher: fetcher, store: store, config: cfg}, nil
}

// WindowFor returns the window a sync of daysBack days would cover right now.
func (s *Syncer) WindowFor(daysBack int) (Window, error) {
	if daysBack < 0 {
		return Window{}, fmt.Errorf("%w: %d", ErrNegativeDays, daysBack)
	}
	today := s.config.Now().In(s.config.Location)
	return Window{
		Start: today.AddDate(0, 0, -daysBack).Format(models.DateLayout),
		End:   today.Format(models.DateLayout),
	}, nil
}

// PerformFullSync fetches every configured stream for the last daysBack days
// plus today and upserts the results. A failing stream is reported in the
// summary without affecting the others. An authentication failure aborts
// the whole run and is returned as the error.
func (s *Syncer) PerformFullSync(ctx context.Context, daysBack int) (*Summary, error) {
	if daysBack < 0 {
		return nil, fmt.Errorf("%w: %d", ErrNegativeDays, daysBack)
	}

	ctx = logging.WithNewCorrelationID(ctx)
	log := logging.Ctx(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	// A caller queued behind a long sync gets the window as of when it runs.
	window, err := s.WindowFor(daysBack)
	if err != nil {
		return nil, err
	}

	owner := uuid.NewString()
	if err := s.store.AcquireSyncLock(ctx, owner, s.config.LockTTL); err != nil {
		if errors.Is(err, storage.ErrLockHeld) {
			log.Warn().Msg("sync lock held by another process")
			return nil, ErrSyncInProgress
		}
		return nil, fmt.Errorf("acquire sync lock: %w", err)
	}
	defer func() {
		if err := s.store.ReleaseSyncLock(context.WithoutCancel(ctx), owner); err != nil {
			log.Error().Err(err).Msg("failed to release sync lock")
		}
	}()

	started := time.Now()
	log.Info().Str("start", window.Start).Str("end", window.End).Int("streams", len(s.config.Streams)).
		Msg("starting full sync")

	fetched := s.fetchAll(ctx, window)

	for i, kind := range s.config.Streams {
		if oura.IsAuth(fetched[i].err) {
			metrics.StreamFailures.WithLabelValues(string(kind), "auth").Inc()
			metrics.RecordSyncRun("failed", time.Since(started))
			log.Error().Err(fetched[i].err).Str("stream", string(kind)).Msg("authentication failed, aborting sync")
			return nil, fmt.Errorf("sync %s: %w", kind, fetched[i].err)
		}
	}

	summary := &Summary{
		Window:        window,
		SyncedRecords: make(map[models.StreamKind]int, len(s.config.Streams)),
		Streams:       make(map[models.StreamKind]*StreamResult, len(s.config.Streams)),
		CorrelationID: logging.CorrelationID(ctx),
		order:         s.config.Streams,
	}
	for i, kind := range s.config.Streams {
		res := s.reconcile(ctx, kind, window, fetched[i])
		summary.Streams[kind] = res
		summary.SyncedRecords[kind] = res.Written
	}

	summary.Success = len(summary.FailedStreams()) == 0
	summary.Duration = time.Since(started)

	result := "success"
	if !summary.Success {
		result = "partial"
		if len(summary.FailedStreams()) == len(s.config.Streams) {
			result = "failed"
		}
	}
	metrics.RecordSyncRun(result, summary.Duration)

	event := log.Info()
	if !summary.Success {
		event = log.Warn().Strs("failed", streamNames(summary.FailedStreams()))
	}
	event.Str("result", result).Dur("duration", summary.Duration).Msg("full sync finished")

	return summary, nil
}

type fetchResult struct {
	records []models.RawRecord
	err     error
}

// fetchAll runs every stream fetch concurrently. Tasks never return an
// error so one failure cannot cancel its siblings.
func (s *Syncer) fetchAll(ctx context.Context, window Window) []fetchResult {
	results := make([]fetchResult, len(s.config.Streams))

	var g errgroup.Group
	g.SetLimit(s.config.Concurrency)
	for i, kind := range s.config.Streams {
		g.Go(func() error {
			records, err := s.fetcher.Fetch(ctx, kind, window.Start, window.End)
			results[i] = fetchResult{records: records, err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// reconcile maps, upserts, and checkpoints one stream.
func (s *Syncer) reconcile(ctx context.Context, kind models.StreamKind, window Window, fr fetchResult) *StreamResult {
	log := logging.Ctx(ctx).With().Str("stream", string(kind)).Logger()
	res := &StreamResult{Stream: kind, Fetched: len(fr.records)}

	if fr.err != nil {
		res.Err = fr.err
		metrics.StreamFailures.WithLabelValues(string(kind), "upstream").Inc()
		log.Warn().Err(fr.err).Msg("fetch failed")
		return res
	}

	if len(fr.records) == 0 {
		res.Empty = true
		s.handleEmpty(ctx, kind, window, res, "empty response")
		return res
	}

	rows, skipped := mapper.MapBatch(kind, fr.records)
	res.Skipped = len(skipped)
	if len(skipped) > 0 {
		metrics.RecordsSkipped.WithLabelValues(string(kind)).Add(float64(len(skipped)))
		for _, err := range skipped {
			log.Warn().Err(err).Msg("skipping malformed record")
		}
	}
	if len(rows) == 0 {
		res.Empty = true
		s.handleEmpty(ctx, kind, window, res, "all records malformed")
		return res
	}

	written, err := s.store.UpsertBatch(ctx, kind, rows)
	if err != nil {
		res.Err = err
		metrics.StreamFailures.WithLabelValues(string(kind), "storage").Inc()
		log.Error().Err(err).Int("rows", len(rows)).Msg("batch rolled back")
		return res
	}

	if err := s.store.RecordCheckpoint(ctx, kind, window.End); err != nil {
		res.Err = err
		metrics.StreamFailures.WithLabelValues(string(kind), "checkpoint").Inc()
		log.Error().Err(err).Msg("failed to record checkpoint")
		return res
	}
	res.Written = written
	metrics.RecordsSynced.WithLabelValues(string(kind)).Add(float64(written))

	if err := s.store.ClearRetry(ctx, kind); err != nil {
		log.Warn().Err(err).Msg("failed to clear retry flag")
	}

	log.Debug().Int("written", written).Int("skipped", res.Skipped).Msg("stream synced")
	return res
}

// handleEmpty applies the empty-response policy. The checkpoint never moves.
func (s *Syncer) handleEmpty(ctx context.Context, kind models.StreamKind, window Window, res *StreamResult, reason string) {
	log := logging.Ctx(ctx)
	if s.config.EmptyPolicy != EmptyFlag {
		log.Debug().Str("stream", string(kind)).Msg("no records, checkpoint unchanged")
		return
	}
	if err := s.store.FlagRetry(ctx, kind, window.End, reason); err != nil {
		res.Err = err
		metrics.StreamFailures.WithLabelValues(string(kind), "storage").Inc()
		log.Error().Err(err).Str("stream", string(kind)).Msg("failed to flag stream for retry")
		return
	}
	res.Flagged = true
	log.Info().Str("stream", string(kind)).Str("reason", reason).Msg("stream flagged for retry")
}

// Status returns every checkpoint, retry flag, and the current lock holder.
func (s *Syncer) Status(ctx context.Context) (*Status, error) {
	return StatusOf(ctx, s.store)
}

// StatusOf reads sync status straight from a store, without a vendor client.
func StatusOf(ctx context.Context, store Store) (*Status, error) {
	checkpoints, err := store.ListCheckpoints(ctx)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	flags, err := store.ListRetryFlags(ctx)
	if err != nil {
		return nil, fmt.Errorf("list retry flags: %w", err)
	}
	lock, err := store.SyncLockHolder(ctx)
	if err != nil {
		return nil, fmt.Errorf("read sync lock: %w", err)
	}
	return &Status{Checkpoints: checkpoints, RetryFlags: flags, Lock: lock}, nil
}

// Streams returns the configured stream kinds in sync order.
func (s *Syncer) Streams() []models.StreamKind {
	return append([]models.StreamKind(nil), s.config.Streams...)
}

func streamNames(kinds []models.StreamKind) []string {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return names
}
