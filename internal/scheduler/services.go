// ABOUTME: Supervised services: the HTTP listener and the periodic sync job.
// ABOUTME: Both stop cleanly when the supervisor cancels their context.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/harperreed/ringhealth/internal/logging"
	"github.com/harperreed/ringhealth/internal/metrics"
	"github.com/harperreed/ringhealth/internal/oura"
	ringsync "github.com/harperreed/ringhealth/internal/sync"
)

// HTTPServer is the part of *http.Server the HTTP service drives.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPService runs an HTTP server under supervision.
type HTTPService struct {
	server          HTTPServer
	shutdownTimeout time.Duration
}

// NewHTTPService wraps server. A non-positive timeout means 10s.
func NewHTTPService(server HTTPServer, shutdownTimeout time.Duration) *HTTPService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPService{server: server, shutdownTimeout: shutdownTimeout}
}

// Serve blocks until the listener fails or ctx is canceled, then shuts down.
func (h *HTTPService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
		defer cancel()
		if err := h.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

func (h *HTTPService) String() string {
	return "http-server"
}

// SyncService runs a full sync on a fixed interval.
type SyncService struct {
	runner     ringsync.Runner
	interval   time.Duration
	daysBack   int
	runOnStart bool
}

// SyncOption configures a SyncService.
type SyncOption func(*SyncService)

// WithRunOnStart runs one sync as soon as the service starts.
func WithRunOnStart() SyncOption {
	return func(s *SyncService) { s.runOnStart = true }
}

// NewSyncService schedules runner every interval over daysBack days.
func NewSyncService(runner ringsync.Runner, interval time.Duration, daysBack int, opts ...SyncOption) (*SyncService, error) {
	if runner == nil {
		return nil, errors.New("sync runner is required")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("sync interval must be positive, got %s", interval)
	}
	if daysBack < 0 {
		return nil, ringsync.ErrNegativeDays
	}
	s := &SyncService{runner: runner, interval: interval, daysBack: daysBack}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Serve ticks until ctx is canceled. An authentication failure stops the
// service for good, since retrying with the same token cannot succeed.
func (s *SyncService) Serve(ctx context.Context) error {
	if s.runOnStart {
		if err := s.runOnce(ctx); err != nil {
			return err
		}
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.runOnce(ctx); err != nil {
				return err
			}
		}
	}
}

func (s *SyncService) runOnce(ctx context.Context) error {
	log := logging.Logger()

	summary, err := s.runner.PerformFullSync(ctx, s.daysBack)
	switch {
	case err == nil:
		metrics.ScheduledSyncs.WithLabelValues("ran").Inc()
		event := log.Info()
		if !summary.Success {
			event = log.Warn().Int("failed_streams", len(summary.FailedStreams()))
		}
		event.Str("correlation_id", summary.CorrelationID).Msg("scheduled sync finished")
		return nil
	case errors.Is(err, ringsync.ErrSyncInProgress):
		metrics.ScheduledSyncs.WithLabelValues("busy").Inc()
		log.Info().Msg("scheduled sync skipped, another sync is running")
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case oura.IsAuth(err):
		metrics.ScheduledSyncs.WithLabelValues("error").Inc()
		log.Error().Err(err).Msg("scheduled sync stopped: authentication failed")
		return fmt.Errorf("%w: %w", suture.ErrDoNotRestart, err)
	default:
		metrics.ScheduledSyncs.WithLabelValues("error").Inc()
		log.Error().Err(err).Msg("scheduled sync failed")
		return nil
	}
}

func (s *SyncService) String() string {
	return fmt.Sprintf("scheduled-sync(%s)", s.interval)
}
