// ABOUTME: Shared test helpers for sync package tests.
// ABOUTME: Provides a scripted fetcher, a temp store, and syncer construction.

package sync

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/harperreed/ringhealth/internal/models"
	"github.com/harperreed/ringhealth/internal/storage"
)

// fixedNow is 2025-01-07 midday UTC; a 6-day sync covers 2025-01-01..07.
var fixedNow = time.Date(2025, 1, 7, 12, 0, 0, 0, time.UTC)

type fetchCall struct {
	Kind       models.StreamKind
	Start, End string
}

// fakeFetcher returns scripted records or errors per stream.
type fakeFetcher struct {
	mu      gosync.Mutex
	records map[models.StreamKind][]models.RawRecord
	errs    map[models.StreamKind]error
	calls   []fetchCall
	// block, when set, is waited on before answering.
	block chan struct{}
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		records: make(map[models.StreamKind][]models.RawRecord),
		errs:    make(map[models.StreamKind]error),
	}
}

func (f *fakeFetcher) Fetch(ctx context.Context, kind models.StreamKind, start, end string) ([]models.RawRecord, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fetchCall{Kind: kind, Start: start, End: end})
	if err := f.errs[kind]; err != nil {
		return nil, err
	}
	return append([]models.RawRecord{}, f.records[kind]...), nil
}

func (f *fakeFetcher) set(kind models.StreamKind, raws ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	recs := make([]models.RawRecord, len(raws))
	for i, r := range raws {
		recs[i] = models.RawRecord(r)
	}
	f.records[kind] = recs
}

func (f *fakeFetcher) fail(kind models.StreamKind, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[kind] = err
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// setupTestStore opens a fresh database in a temp dir.
func setupTestStore(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "ringhealth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// setupTestSyncer wires a fake fetcher and a temp store with a fixed clock.
func setupTestSyncer(t *testing.T, mutate ...func(*Config)) (*Syncer, *fakeFetcher, *storage.DB) {
	t.Helper()
	fetcher := newFakeFetcher()
	store := setupTestStore(t)

	cfg := Config{
		Location: time.UTC,
		Now:      func() time.Time { return fixedNow },
	}
	for _, m := range mutate {
		m(&cfg)
	}

	syncer, err := NewSyncer(fetcher, store, cfg)
	require.NoError(t, err)
	return syncer, fetcher, store
}

func sleepRecords(start time.Time, n int) []string {
	out := make([]string, n)
	for i := 0; i < n; i++ {
		day := start.AddDate(0, 0, i).Format(models.DateLayout)
		out[i] = fmt.Sprintf(`{"id":"sleep-%d","day":%q,"score":%d,"contributors":{"deep_sleep":%d}}`, i, day, 70+i, 60+i)
	}
	return out
}

// newVendorServer serves fixed bodies per path and 404 for everything else.
func newVendorServer(t *testing.T, bodies map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := bodies[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}
