// ABOUTME: Tests for the supervised HTTP and scheduled sync services.
// ABOUTME: Uses fake servers and runners so no sockets or vendor calls are needed.
package scheduler

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thejerf/suture/v4"

	"github.com/harperreed/ringhealth/internal/oura"
	ringsync "github.com/harperreed/ringhealth/internal/sync"
)

type fakeHTTPServer struct {
	listenErr error
	started   chan struct{}
	stop      chan struct{}
	once      sync.Once
	shutdowns atomic.Int32
}

func newFakeHTTPServer() *fakeHTTPServer {
	return &fakeHTTPServer{started: make(chan struct{}, 1), stop: make(chan struct{})}
}

func (f *fakeHTTPServer) ListenAndServe() error {
	select {
	case f.started <- struct{}{}:
	default:
	}
	if f.listenErr != nil {
		return f.listenErr
	}
	<-f.stop
	return http.ErrServerClosed
}

func (f *fakeHTTPServer) Shutdown(context.Context) error {
	f.shutdowns.Add(1)
	f.once.Do(func() { close(f.stop) })
	return nil
}

type countingRunner struct {
	calls atomic.Int32
	err   error
	ran   chan struct{}
}

func newCountingRunner(err error) *countingRunner {
	return &countingRunner{err: err, ran: make(chan struct{}, 16)}
}

func (r *countingRunner) PerformFullSync(context.Context, int) (*ringsync.Summary, error) {
	r.calls.Add(1)
	select {
	case r.ran <- struct{}{}:
	default:
	}
	if r.err != nil {
		return nil, r.err
	}
	return &ringsync.Summary{Success: true, CorrelationID: "test"}, nil
}

func (r *countingRunner) Status(context.Context) (*ringsync.Status, error) {
	return &ringsync.Status{}, nil
}

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for service")
	}
}

func TestServicesImplementSuture(t *testing.T) {
	var _ suture.Service = (*HTTPService)(nil)
	var _ suture.Service = (*SyncService)(nil)
}

func TestHTTPServiceShutsDownOnCancel(t *testing.T) {
	srv := newFakeHTTPServer()
	svc := NewHTTPService(srv, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	waitFor(t, srv.started)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
	}
	assert.Equal(t, int32(1), srv.shutdowns.Load())
}

func TestHTTPServiceReportsListenError(t *testing.T) {
	srv := newFakeHTTPServer()
	srv.listenErr = errors.New("address in use")
	svc := NewHTTPService(srv, 0)

	err := svc.Serve(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "address in use")
	assert.Equal(t, 10*time.Second, svc.shutdownTimeout)
	assert.Equal(t, "http-server", svc.String())
}

func TestNewSyncServiceValidation(t *testing.T) {
	runner := newCountingRunner(nil)

	_, err := NewSyncService(nil, time.Hour, 7)
	assert.Error(t, err)

	_, err = NewSyncService(runner, 0, 7)
	assert.Error(t, err)

	_, err = NewSyncService(runner, time.Hour, -1)
	assert.ErrorIs(t, err, ringsync.ErrNegativeDays)

	svc, err := NewSyncService(runner, time.Hour, 7, WithRunOnStart())
	require.NoError(t, err)
	assert.True(t, svc.runOnStart)
	assert.Equal(t, "scheduled-sync(1h0m0s)", svc.String())
}

func TestSyncServiceTicks(t *testing.T) {
	runner := newCountingRunner(nil)
	svc, err := NewSyncService(runner, 10*time.Millisecond, 7)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	waitFor(t, runner.ran)
	waitFor(t, runner.ran)
	cancel()

	assert.ErrorIs(t, <-done, context.Canceled)
	assert.GreaterOrEqual(t, runner.calls.Load(), int32(2))
}

func TestSyncServiceRunOnStart(t *testing.T) {
	runner := newCountingRunner(nil)
	svc, err := NewSyncService(runner, time.Hour, 7, WithRunOnStart())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	waitFor(t, runner.ran)
	cancel()
	<-done
	assert.Equal(t, int32(1), runner.calls.Load())
}

func TestSyncServiceKeepsRunningOnTransientErrors(t *testing.T) {
	for name, runErr := range map[string]error{
		"busy":     ringsync.ErrSyncInProgress,
		"upstream": errors.New("connection reset"),
	} {
		t.Run(name, func(t *testing.T) {
			svc := &SyncService{runner: newCountingRunner(runErr), interval: time.Hour, daysBack: 7}
			assert.NoError(t, svc.runOnce(context.Background()))
		})
	}
}

func TestSyncServiceStopsOnAuthFailure(t *testing.T) {
	runner := newCountingRunner(&oura.AuthError{StatusCode: 401, Message: "invalid token"})
	svc, err := NewSyncService(runner, time.Hour, 7, WithRunOnStart())
	require.NoError(t, err)

	err = svc.Serve(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, suture.ErrDoNotRestart)
	assert.True(t, oura.IsAuth(err))
}

func TestTreeRunsServices(t *testing.T) {
	runner := newCountingRunner(nil)
	syncSvc, err := NewSyncService(runner, time.Hour, 7, WithRunOnStart())
	require.NoError(t, err)
	srv := newFakeHTTPServer()

	tree := NewTree(TreeConfig{ShutdownTimeout: time.Second})
	tree.AddJob(syncSvc)
	tree.AddAPI(NewHTTPService(srv, time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	waitFor(t, runner.ran)
	waitFor(t, srv.started)
	cancel()

	select {
	case <-errCh:
	case <-time.After(5 * time.Second):
		t.Fatal("tree did not stop")
	}
	assert.Equal(t, int32(1), srv.shutdowns.Load())
}

func TestEventName(t *testing.T) {
	name, _ := eventName(suture.EventBackoff{SupervisorName: "jobs"})
	assert.Equal(t, "backoff", name)

	name, _ = eventName(suture.EventServiceTerminate{Restarting: true})
	assert.Equal(t, "service_terminate", name)
}
