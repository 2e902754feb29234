// ABOUTME: Tests for the HTTP API using an httptest recorder over a real store.
// ABOUTME: Covers sync control, record reads, journal CRUD, narratives, and metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/ringhealth/internal/mapper"
	"github.com/harperreed/ringhealth/internal/models"
	"github.com/harperreed/ringhealth/internal/narrative"
	"github.com/harperreed/ringhealth/internal/oura"
	"github.com/harperreed/ringhealth/internal/storage"
	ringsync "github.com/harperreed/ringhealth/internal/sync"
)

func newTestDB(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "ringhealth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seed(t *testing.T, db *storage.DB, kind models.StreamKind, payloads ...string) {
	t.Helper()
	raws := make([]models.RawRecord, len(payloads))
	for i, p := range payloads {
		raws[i] = models.RawRecord(p)
	}
	rows, errs := mapper.MapBatch(kind, raws)
	require.Empty(t, errs)
	_, err := db.UpsertBatch(context.Background(), kind, rows)
	require.NoError(t, err)
}

type fakeRunner struct {
	days    int
	summary *ringsync.Summary
	err     error
	ctxErr  error
}

func (f *fakeRunner) PerformFullSync(ctx context.Context, daysBack int) (*ringsync.Summary, error) {
	f.days = daysBack
	f.ctxErr = ctx.Err()
	return f.summary, f.err
}

func (f *fakeRunner) Status(_ context.Context) (*ringsync.Status, error) {
	return &ringsync.Status{Checkpoints: []*models.Checkpoint{{Stream: models.StreamDailySleep, LastSyncDate: "2025-01-07"}}}, nil
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func newHandler(t *testing.T, db *storage.DB, opts ...Option) http.Handler {
	t.Helper()
	srv, err := New(db, opts...)
	require.NoError(t, err)
	return srv.Handler()
}

func TestNew_RequiresRepo(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

func TestHealthzAndMetrics(t *testing.T) {
	h := newHandler(t, newTestDB(t))

	rec := do(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Correlation-ID"))

	rec = do(t, h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ringhealth_")
}

func TestSyncRunOutlivesClient(t *testing.T) {
	runner := &fakeRunner{summary: &ringsync.Summary{Success: true, Streams: map[models.StreamKind]*ringsync.StreamResult{}}}
	h := newHandler(t, newTestDB(t), WithSyncer(runner, 14))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/sync", http.NoBody).WithContext(ctx)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NoError(t, runner.ctxErr)
}

func TestSyncEndpoints(t *testing.T) {
	runner := &fakeRunner{}
	h := newHandler(t, newTestDB(t), WithSyncer(runner, 14))

	runner.summary = &ringsync.Summary{
		Success:       true,
		Window:        ringsync.Window{Start: "2024-12-24", End: "2025-01-07"},
		SyncedRecords: map[models.StreamKind]int{models.StreamDailySleep: 15},
		Streams:       map[models.StreamKind]*ringsync.StreamResult{},
	}
	rec := do(t, h, http.MethodPost, "/api/sync", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 14, runner.days)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, true, body["success"])

	rec = do(t, h, http.MethodPost, "/api/sync?days=3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, runner.days)

	rec = do(t, h, http.MethodPost, "/api/sync?days=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	runner.summary = &ringsync.Summary{
		Window:        ringsync.Window{Start: "2025-01-07", End: "2025-01-07"},
		SyncedRecords: map[models.StreamKind]int{models.StreamStress: 0},
		Streams: map[models.StreamKind]*ringsync.StreamResult{
			models.StreamStress: {Stream: models.StreamStress, Err: errors.New("boom")},
		},
	}
	rec = do(t, h, http.MethodPost, "/api/sync", "")
	assert.Equal(t, http.StatusMultiStatus, rec.Code)
	assert.Contains(t, rec.Body.String(), `"stress":"boom"`)

	runner.err = ringsync.ErrSyncInProgress
	rec = do(t, h, http.MethodPost, "/api/sync", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	runner.err = fmt.Errorf("sync readiness: %w", &oura.AuthError{StatusCode: 401, Message: "invalid token"})
	rec = do(t, h, http.MethodPost, "/api/sync", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/sync", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "2025-01-07")
}

func TestSyncEndpointsDisabled(t *testing.T) {
	h := newHandler(t, newTestDB(t))

	rec := do(t, h, http.MethodPost, "/api/sync", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRecordsAndWorkouts(t *testing.T) {
	db := newTestDB(t)
	seed(t, db, models.StreamReadiness,
		`{"id":"r1","day":"2025-01-01","score":70}`,
		`{"id":"r2","day":"2025-01-02","score":88}`)
	seed(t, db, models.StreamWorkouts, `{"id":"w1","activity":"running","day":"2025-01-02","average_heart_rate":151}`)
	h := newHandler(t, db)

	rec := do(t, h, http.MethodGet, "/api/records/readiness?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.EqualValues(t, 1, body["count"])
	assert.Contains(t, rec.Body.String(), "2025-01-02")

	rec = do(t, h, http.MethodGet, "/api/records/stress", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"records":[]`)

	rec = do(t, h, http.MethodGet, "/api/records/steps", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/records/readiness?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/workouts/w1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"average_heart_rate":151`)

	rec = do(t, h, http.MethodGet, "/api/workouts/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCheckpoints(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.RecordCheckpoint(context.Background(), models.StreamActivity, "2025-01-05"))
	h := newHandler(t, db)

	rec := do(t, h, http.MethodGet, "/api/checkpoints", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "2025-01-05")
}

func TestNotesCRUD(t *testing.T) {
	h := newHandler(t, newTestDB(t))

	rec := do(t, h, http.MethodPost, "/api/notes", `{"content":"slept badly","date":"2025-01-06","note_type":"reflection"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	note := decode[models.Note](t, rec)
	assert.Equal(t, models.NoteReflection, note.NoteType)

	rec = do(t, h, http.MethodPost, "/api/notes", `{"content":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, h, http.MethodPost, "/api/notes", `{"content":"x","date":"06/01/2025"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, h, http.MethodPost, "/api/notes", `{"content":"x","mood":"great"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/notes?since=2025-01-01", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.Note](t, rec), 1)

	rec = do(t, h, http.MethodDelete, "/api/notes/"+note.ID.String()[:8], "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, h, http.MethodDelete, "/api/notes/"+note.ID.String()[:8], "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGoalsCRUD(t *testing.T) {
	h := newHandler(t, newTestDB(t))

	rec := do(t, h, http.MethodPost, "/api/goals", `{"title":"Easier runs","goal_type":"lower_running_hr","target_value":"140"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	goal := decode[models.Goal](t, rec)
	id := goal.ID.String()[:8]

	rec = do(t, h, http.MethodPatch, "/api/goals/"+id, `{"status":"completed","current_value":"138"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[models.Goal](t, rec)
	assert.Equal(t, models.GoalCompleted, updated.Status)

	rec = do(t, h, http.MethodPatch, "/api/goals/"+id, `{"status":"paused"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/goals?status=active", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]models.Goal](t, rec))

	rec = do(t, h, http.MethodGet, "/api/goals?status=bogus", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/goals/"+id+"/analysis", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(t, h, http.MethodDelete, "/api/goals/"+id, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, h, http.MethodGet, "/api/goals/"+id, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMealsCRUD(t *testing.T) {
	h := newHandler(t, newTestDB(t))

	rec := do(t, h, http.MethodPost, "/api/meals", `{"description":"salmon","date":"2025-01-06","time":"19:30"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	meal := decode[models.Meal](t, rec)

	rec = do(t, h, http.MethodPost, "/api/meals", `{"description":"x","time":"7pm"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/meals", "")
	require.Equal(t, http.StatusOK, rec.Code)
	meals := decode[[]models.Meal](t, rec)
	require.Len(t, meals, 1)
	require.NotNil(t, meals[0].Time)
	assert.Equal(t, "19:30", *meals[0].Time)

	rec = do(t, h, http.MethodDelete, "/api/meals/"+meal.ID.String(), "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestNarrativeEndpoints(t *testing.T) {
	db := newTestDB(t)
	cache, err := narrative.OpenInMemoryCache()
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	calls := 0
	narrator := narrative.NarratorFunc(func(_ context.Context, in narrative.Input) (string, error) {
		calls++
		switch in.Kind {
		case narrative.KindChat:
			return "You slept well.", nil
		case narrative.KindGoal:
			return "On track.", nil
		}
		return "Digest for " + string(in.DigestType), nil
	})
	svc, err := narrative.NewService(db, narrator,
		narrative.WithCache(cache),
		narrative.WithLocation(time.UTC),
		narrative.WithClock(func() time.Time { return time.Date(2025, 1, 7, 7, 0, 0, 0, time.UTC) }))
	require.NoError(t, err)
	h := newHandler(t, db, WithNarrative(svc))

	rec := do(t, h, http.MethodGet, "/api/digests/morning", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[narrative.DigestResult](t, rec)
	assert.False(t, res.Cached)
	assert.Equal(t, "Digest for morning", res.Digest.Content)

	rec = do(t, h, http.MethodGet, "/api/digests/morning", "")
	assert.True(t, decode[narrative.DigestResult](t, rec).Cached)
	assert.Equal(t, 1, calls)

	rec = do(t, h, http.MethodGet, "/api/digests/morning?regenerate=true", "")
	assert.False(t, decode[narrative.DigestResult](t, rec).Cached)
	assert.Equal(t, 2, calls)

	rec = do(t, h, http.MethodGet, "/api/digests/evening?date=2025-01-07", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/digests/midnight", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/digests", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]narrative.Digest](t, rec), 1)

	rec = do(t, h, http.MethodPost, "/api/ask", `{"question":"How did I sleep?"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "You slept well.")

	rec = do(t, h, http.MethodPost, "/api/ask", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	goal := models.NewGoal("Easier runs", models.GoalLowerRunningHR)
	require.NoError(t, db.CreateGoal(context.Background(), goal))
	rec = do(t, h, http.MethodGet, "/api/goals/"+goal.ID.String()+"/analysis", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "On track.")
}
