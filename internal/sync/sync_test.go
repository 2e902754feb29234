// ABOUTME: Tests for the full sync orchestrator.
// ABOUTME: Verifies windows, idempotence, failure isolation, empty policies, and locking.

package sync

import (
	"context"
	"errors"
	gosync "sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/ringhealth/internal/models"
	"github.com/harperreed/ringhealth/internal/oura"
	"github.com/harperreed/ringhealth/internal/storage"
)

func TestPerformFullSyncScenario(t *testing.T) {
	syncer, fetcher, store := setupTestSyncer(t)
	ctx := context.Background()

	fetcher.set(models.StreamDailySleep, sleepRecords(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), 7)...)
	fetcher.set(models.StreamWorkouts,
		`{"id":"w-1","day":"2025-01-04","activity":"running","average_heart_rate":148.5}`)

	summary, err := syncer.PerformFullSync(ctx, 6)
	require.NoError(t, err)

	assert.True(t, summary.Success)
	assert.Equal(t, Window{Start: "2025-01-01", End: "2025-01-07"}, summary.Window)
	assert.Equal(t, 7, summary.SyncedRecords[models.StreamDailySleep])
	assert.Equal(t, 1, summary.SyncedRecords[models.StreamWorkouts])
	assert.Equal(t, 0, summary.SyncedRecords[models.StreamActivity])
	assert.Len(t, summary.SyncedRecords, len(models.AllStreams))
	assert.NotEmpty(t, summary.CorrelationID)
	assert.NoError(t, summary.Err())

	for _, kind := range []models.StreamKind{models.StreamDailySleep, models.StreamWorkouts} {
		cp, err := store.GetCheckpoint(ctx, kind)
		require.NoError(t, err)
		assert.Equal(t, "2025-01-07", cp.LastSyncDate)
	}

	// Empty streams leave no checkpoint behind.
	_, err = store.GetCheckpoint(ctx, models.StreamActivity)
	assert.ErrorIs(t, err, storage.ErrNoCheckpoint)
	assert.True(t, summary.Streams[models.StreamActivity].Empty)

	count, err := store.CountRows(ctx, models.StreamDailySleep)
	require.NoError(t, err)
	assert.Equal(t, 7, count)
}

func TestPerformFullSyncWindowSpan(t *testing.T) {
	tests := []struct {
		days      int
		wantStart string
	}{
		{0, "2025-01-07"},
		{1, "2025-01-06"},
		{7, "2024-12-31"},
		{30, "2024-12-08"},
	}

	for _, tt := range tests {
		syncer, fetcher, _ := setupTestSyncer(t, func(c *Config) {
			c.Streams = []models.StreamKind{models.StreamReadiness}
		})

		summary, err := syncer.PerformFullSync(context.Background(), tt.days)
		require.NoError(t, err)
		assert.Equal(t, tt.wantStart, summary.Window.Start)
		assert.Equal(t, "2025-01-07", summary.Window.End)
		assert.Equal(t, tt.days+1, summary.Window.Days())

		require.Len(t, fetcher.calls, 1)
		assert.Equal(t, fetchCall{Kind: models.StreamReadiness, Start: tt.wantStart, End: "2025-01-07"}, fetcher.calls[0])
	}
}

func TestPerformFullSyncUsesConfiguredZone(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	syncer, _, _ := setupTestSyncer(t, func(c *Config) {
		c.Location = tokyo
		c.Now = func() time.Time { return time.Date(2025, 1, 7, 20, 0, 0, 0, time.UTC) }
	})

	w, err := syncer.WindowFor(0)
	require.NoError(t, err)
	assert.Equal(t, "2025-01-08", w.End)
}

func TestPerformFullSyncNegativeDays(t *testing.T) {
	syncer, fetcher, _ := setupTestSyncer(t)

	_, err := syncer.PerformFullSync(context.Background(), -1)
	assert.ErrorIs(t, err, ErrNegativeDays)
	assert.Zero(t, fetcher.callCount())
}

func TestPerformFullSyncIdempotent(t *testing.T) {
	syncer, fetcher, store := setupTestSyncer(t)
	ctx := context.Background()

	fetcher.set(models.StreamDailySleep, sleepRecords(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), 7)...)
	fetcher.set(models.StreamHeartRate,
		`{"timestamp":"2025-01-07T08:00:00+00:00","bpm":55,"source":"rest"}`,
		`{"timestamp":"2025-01-07T08:05:00+00:00","bpm":57}`)

	first, err := syncer.PerformFullSync(ctx, 6)
	require.NoError(t, err)
	before, err := store.ListSleep(ctx, 0)
	require.NoError(t, err)

	second, err := syncer.PerformFullSync(ctx, 6)
	require.NoError(t, err)
	after, err := store.ListSleep(ctx, 0)
	require.NoError(t, err)

	assert.Equal(t, first.SyncedRecords, second.SyncedRecords)
	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].Day, after[i].Day)
		assert.Equal(t, before[i].Score, after[i].Score)
		assert.Equal(t, string(before[i].RawData), string(after[i].RawData))
	}

	hr, err := store.CountRows(ctx, models.StreamHeartRate)
	require.NoError(t, err)
	assert.Equal(t, 2, hr)
}

func TestPerformFullSyncLaterRecordReplaces(t *testing.T) {
	syncer, fetcher, store := setupTestSyncer(t, func(c *Config) {
		c.Streams = []models.StreamKind{models.StreamDailySleep}
	})
	ctx := context.Background()

	fetcher.set(models.StreamDailySleep, `{"id":"a","day":"2025-01-03","score":70,"contributors":{"deep_sleep":60}}`)
	_, err := syncer.PerformFullSync(ctx, 6)
	require.NoError(t, err)

	fetcher.set(models.StreamDailySleep, `{"id":"a","day":"2025-01-03","score":90}`)
	_, err = syncer.PerformFullSync(ctx, 6)
	require.NoError(t, err)

	rows, err := store.ListSleep(ctx, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].Score)
	assert.Equal(t, 90, *rows[0].Score)
	assert.Nil(t, rows[0].DeepSleep, "later record without contributors must clear them")
}

func TestPerformFullSyncSkipsMalformed(t *testing.T) {
	syncer, fetcher, store := setupTestSyncer(t)
	ctx := context.Background()

	records := sleepRecords(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), 4)
	records = append(records, `{"id":"broken","score":80}`)
	fetcher.set(models.StreamDailySleep, records...)

	summary, err := syncer.PerformFullSync(ctx, 6)
	require.NoError(t, err)

	res := summary.Streams[models.StreamDailySleep]
	assert.Equal(t, 5, res.Fetched)
	assert.Equal(t, 4, res.Written)
	assert.Equal(t, 1, res.Skipped)
	assert.True(t, summary.Success, "a malformed record is not a stream failure")

	count, err := store.CountRows(ctx, models.StreamDailySleep)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestPerformFullSyncAllMalformedKeepsCheckpoint(t *testing.T) {
	syncer, fetcher, store := setupTestSyncer(t, func(c *Config) {
		c.Streams = []models.StreamKind{models.StreamStress}
	})
	ctx := context.Background()

	fetcher.set(models.StreamStress, `{"id":"x","day":"01/05/2025"}`)

	summary, err := syncer.PerformFullSync(ctx, 6)
	require.NoError(t, err)
	assert.True(t, summary.Streams[models.StreamStress].Empty)
	assert.Equal(t, 0, summary.SyncedRecords[models.StreamStress])

	_, err = store.GetCheckpoint(ctx, models.StreamStress)
	assert.ErrorIs(t, err, storage.ErrNoCheckpoint)
}

func TestPerformFullSyncIsolatesUpstreamFailure(t *testing.T) {
	syncer, fetcher, store := setupTestSyncer(t)
	ctx := context.Background()

	fetcher.set(models.StreamDailySleep, sleepRecords(time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC), 3)...)
	fetcher.set(models.StreamReadiness, `{"id":"r","day":"2025-01-07","score":88}`)
	fetcher.fail(models.StreamActivity, &oura.UpstreamError{Endpoint: "/usercollection/daily_activity", StatusCode: 502, Message: "bad gateway"})

	summary, err := syncer.PerformFullSync(ctx, 6)
	require.NoError(t, err)

	assert.False(t, summary.Success)
	assert.Equal(t, []models.StreamKind{models.StreamActivity}, summary.FailedStreams())
	assert.Equal(t, 3, summary.SyncedRecords[models.StreamDailySleep])
	assert.Equal(t, 1, summary.SyncedRecords[models.StreamReadiness])

	var ue *oura.UpstreamError
	require.ErrorAs(t, summary.Err(), &ue)
	assert.Equal(t, 502, ue.StatusCode)

	_, err = store.GetCheckpoint(ctx, models.StreamActivity)
	assert.ErrorIs(t, err, storage.ErrNoCheckpoint)
	cp, err := store.GetCheckpoint(ctx, models.StreamReadiness)
	require.NoError(t, err)
	assert.Equal(t, "2025-01-07", cp.LastSyncDate)
}

// failingStore rolls back every batch for one stream.
type failingStore struct {
	*storage.DB
	kind models.StreamKind
}

func (f *failingStore) UpsertBatch(ctx context.Context, kind models.StreamKind, rows []models.Row) (int, error) {
	if kind == f.kind {
		return 0, &storage.StorageError{Op: "upsert", Stream: kind, Err: errors.New("disk full")}
	}
	return f.DB.UpsertBatch(ctx, kind, rows)
}

func TestPerformFullSyncIsolatesStorageFailure(t *testing.T) {
	fetcher := newFakeFetcher()
	db := setupTestStore(t)
	store := &failingStore{DB: db, kind: models.StreamWorkouts}
	ctx := context.Background()

	syncer, err := NewSyncer(fetcher, store, Config{Location: time.UTC, Now: func() time.Time { return fixedNow }})
	require.NoError(t, err)

	fetcher.set(models.StreamWorkouts, `{"id":"w-1","day":"2025-01-04","activity":"running"}`)
	fetcher.set(models.StreamDailySleep, sleepRecords(time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC), 2)...)

	summary, err := syncer.PerformFullSync(ctx, 6)
	require.NoError(t, err)

	assert.False(t, summary.Success)
	var se *storage.StorageError
	require.ErrorAs(t, summary.Streams[models.StreamWorkouts].Err, &se)
	assert.Equal(t, 0, summary.SyncedRecords[models.StreamWorkouts])
	assert.Equal(t, 2, summary.SyncedRecords[models.StreamDailySleep])

	_, err = db.GetCheckpoint(ctx, models.StreamWorkouts)
	assert.ErrorIs(t, err, storage.ErrNoCheckpoint, "checkpoint must not advance past a rolled back batch")
}

func TestPerformFullSyncAuthAborts(t *testing.T) {
	syncer, fetcher, store := setupTestSyncer(t)
	ctx := context.Background()

	fetcher.set(models.StreamDailySleep, sleepRecords(time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC), 2)...)
	fetcher.fail(models.StreamSpO2, &oura.AuthError{StatusCode: 401, Message: "expired"})

	summary, err := syncer.PerformFullSync(ctx, 6)
	require.Error(t, err)
	assert.Nil(t, summary)
	assert.True(t, oura.IsAuth(err))

	count, err := store.CountRows(ctx, models.StreamDailySleep)
	require.NoError(t, err)
	assert.Zero(t, count, "nothing is written when the token is rejected")

	holder, err := store.SyncLockHolder(ctx)
	require.NoError(t, err)
	assert.Nil(t, holder, "lock must be released after an aborted sync")
}

func TestPerformFullSyncFlagPolicy(t *testing.T) {
	syncer, fetcher, store := setupTestSyncer(t, func(c *Config) {
		c.EmptyPolicy = EmptyFlag
		c.Streams = []models.StreamKind{models.StreamSpO2, models.StreamStress}
	})
	ctx := context.Background()

	fetcher.set(models.StreamStress, `{"id":"s","day":"2025-01-07","stress_high":1800}`)

	summary, err := syncer.PerformFullSync(ctx, 2)
	require.NoError(t, err)
	assert.True(t, summary.Success)
	assert.True(t, summary.Streams[models.StreamSpO2].Flagged)
	assert.Equal(t, 0, summary.SyncedRecords[models.StreamSpO2])

	flags, err := store.ListRetryFlags(ctx)
	require.NoError(t, err)
	require.Len(t, flags, 1)
	assert.Equal(t, models.StreamSpO2, flags[0].Stream)
	assert.Equal(t, "2025-01-07", flags[0].WindowEnd)

	_, err = store.GetCheckpoint(ctx, models.StreamSpO2)
	assert.ErrorIs(t, err, storage.ErrNoCheckpoint)

	// Data arriving later clears the flag.
	fetcher.set(models.StreamSpO2, `{"id":"o","day":"2025-01-07","spo2_percentage":{"average":97.1}}`)
	_, err = syncer.PerformFullSync(ctx, 2)
	require.NoError(t, err)

	flags, err = store.ListRetryFlags(ctx)
	require.NoError(t, err)
	assert.Empty(t, flags)
}

func TestPerformFullSyncSkipPolicyWritesNothing(t *testing.T) {
	syncer, _, store := setupTestSyncer(t)
	ctx := context.Background()

	summary, err := syncer.PerformFullSync(ctx, 6)
	require.NoError(t, err)
	assert.True(t, summary.Success)
	for _, kind := range models.AllStreams {
		assert.Equal(t, 0, summary.SyncedRecords[kind], kind)
	}

	checkpoints, err := store.ListCheckpoints(ctx)
	require.NoError(t, err)
	assert.Empty(t, checkpoints)
	flags, err := store.ListRetryFlags(ctx)
	require.NoError(t, err)
	assert.Empty(t, flags)
}

func TestPerformFullSyncForeignLock(t *testing.T) {
	syncer, fetcher, store := setupTestSyncer(t)
	ctx := context.Background()

	require.NoError(t, store.AcquireSyncLock(ctx, "other-process", time.Hour))

	_, err := syncer.PerformFullSync(ctx, 6)
	assert.ErrorIs(t, err, ErrSyncInProgress)
	assert.Zero(t, fetcher.callCount())

	require.NoError(t, store.ReleaseSyncLock(ctx, "other-process"))
	_, err = syncer.PerformFullSync(ctx, 6)
	assert.NoError(t, err)
}

func TestPerformFullSyncSerializesInProcess(t *testing.T) {
	syncer, fetcher, store := setupTestSyncer(t, func(c *Config) {
		c.Streams = []models.StreamKind{models.StreamDailySleep}
	})
	fetcher.set(models.StreamDailySleep, sleepRecords(time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC), 2)...)
	fetcher.block = make(chan struct{})

	var wg gosync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = syncer.PerformFullSync(context.Background(), 1)
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(fetcher.block)
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err, "the second caller waits instead of failing")
	}
	count, err := store.CountRows(context.Background(), models.StreamDailySleep)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestPerformFullSyncWindowComputedAfterWaiting(t *testing.T) {
	var now atomic.Value
	now.Store(fixedNow)
	syncer, _, _ := setupTestSyncer(t, func(c *Config) {
		c.Streams = []models.StreamKind{models.StreamReadiness}
		c.Now = func() time.Time { return now.Load().(time.Time) }
	})

	// Hold the mutex as a running sync would, then let the day roll over.
	syncer.mu.Lock()
	done := make(chan *Summary, 1)
	go func() {
		summary, err := syncer.PerformFullSync(context.Background(), 0)
		assert.NoError(t, err)
		done <- summary
	}()

	time.Sleep(20 * time.Millisecond)
	now.Store(fixedNow.AddDate(0, 0, 1))
	syncer.mu.Unlock()

	summary := <-done
	require.NotNil(t, summary)
	assert.Equal(t, "2025-01-08", summary.Window.End)
}

func TestStatus(t *testing.T) {
	syncer, fetcher, _ := setupTestSyncer(t, func(c *Config) {
		c.EmptyPolicy = EmptyFlag
		c.Streams = []models.StreamKind{models.StreamDailySleep, models.StreamStress}
	})
	ctx := context.Background()

	fetcher.set(models.StreamDailySleep, sleepRecords(time.Date(2025, 1, 7, 0, 0, 0, 0, time.UTC), 1)...)
	_, err := syncer.PerformFullSync(ctx, 0)
	require.NoError(t, err)

	status, err := syncer.Status(ctx)
	require.NoError(t, err)
	require.Len(t, status.Checkpoints, 1)
	assert.Equal(t, models.StreamDailySleep, status.Checkpoints[0].Stream)
	require.Len(t, status.RetryFlags, 1)
	assert.Equal(t, models.StreamStress, status.RetryFlags[0].Stream)
	assert.Nil(t, status.Lock)
}

func TestNewSyncerValidates(t *testing.T) {
	store := setupTestStore(t)

	_, err := NewSyncer(nil, store, Config{})
	assert.Error(t, err)

	_, err = NewSyncer(newFakeFetcher(), store, Config{EmptyPolicy: "retry"})
	assert.Error(t, err)

	_, err = NewSyncer(newFakeFetcher(), store, Config{Streams: []models.StreamKind{"steps"}})
	assert.Error(t, err)

	s, err := NewSyncer(newFakeFetcher(), store, Config{})
	require.NoError(t, err)
	assert.Equal(t, models.AllStreams, s.Streams())
}

func TestParseEmptyPolicy(t *testing.T) {
	p, err := ParseEmptyPolicy("")
	require.NoError(t, err)
	assert.Equal(t, EmptySkip, p)

	p, err = ParseEmptyPolicy("flag")
	require.NoError(t, err)
	assert.Equal(t, EmptyFlag, p)

	_, err = ParseEmptyPolicy("ignore")
	assert.Error(t, err)
}

// End to end through the real HTTP client.
func TestPerformFullSyncWithOuraClient(t *testing.T) {
	srv := newVendorServer(t, map[string]string{
		"/usercollection/daily_sleep": `{"data":[{"id":"a","day":"2025-01-07","score":81}],"next_token":null}`,
		"/usercollection/workout":     `{"data":[{"id":"w","day":"2025-01-06","activity":"running"}],"next_token":null}`,
	})
	client, err := oura.NewClient(oura.Config{Token: "t", BaseURL: srv.URL, MaxRetries: -1})
	require.NoError(t, err)

	store := setupTestStore(t)
	syncer, err := NewSyncer(client, store, Config{Location: time.UTC, Now: func() time.Time { return fixedNow }})
	require.NoError(t, err)

	summary, err := syncer.PerformFullSync(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, summary.Success, "unknown endpoints answer 404 and count as empty: %v", summary.Err())
	assert.Equal(t, 1, summary.SyncedRecords[models.StreamDailySleep])
	assert.Equal(t, 1, summary.SyncedRecords[models.StreamWorkouts])
}
