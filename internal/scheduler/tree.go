// ABOUTME: Supervisor tree for the long-running "serve" mode.
// ABOUTME: Restarts crashed services with backoff and logs supervisor events through zerolog.
package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"

	"github.com/harperreed/ringhealth/internal/logging"
	"github.com/harperreed/ringhealth/internal/metrics"
)

// TreeConfig holds restart policy for the supervisor tree.
type TreeConfig struct {
	// FailureThreshold is the failure count that triggers backoff.
	FailureThreshold float64
	// FailureDecay is the decay rate of failures, in seconds.
	FailureDecay float64
	// FailureBackoff is how long to wait once the threshold is crossed.
	FailureBackoff time.Duration
	// ShutdownTimeout bounds how long each service gets to stop.
	ShutdownTimeout time.Duration
}

// DefaultTreeConfig returns the restart policy used by "serve".
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// Tree is a root supervisor with one child per service layer: background
// jobs (scheduled syncs) and the API surface.
type Tree struct {
	root *suture.Supervisor
	jobs *suture.Supervisor
	api  *suture.Supervisor
}

// NewTree builds the supervisor hierarchy. Zero config fields take defaults.
func NewTree(cfg TreeConfig) *Tree {
	def := DefaultTreeConfig()
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.FailureDecay == 0 {
		cfg.FailureDecay = def.FailureDecay
	}
	if cfg.FailureBackoff == 0 {
		cfg.FailureBackoff = def.FailureBackoff
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}

	spec := suture.Spec{
		FailureThreshold: cfg.FailureThreshold,
		FailureDecay:     cfg.FailureDecay,
		FailureBackoff:   cfg.FailureBackoff,
		Timeout:          cfg.ShutdownTimeout,
	}
	rootSpec := spec
	rootSpec.EventHook = eventHook

	root := suture.New("ringhealth", rootSpec)
	jobs := suture.New("jobs", spec)
	api := suture.New("api", spec)
	root.Add(jobs)
	root.Add(api)

	return &Tree{root: root, jobs: jobs, api: api}
}

// AddJob supervises a background service.
func (t *Tree) AddJob(svc suture.Service) suture.ServiceToken {
	return t.jobs.Add(svc)
}

// AddAPI supervises a service that answers callers.
func (t *Tree) AddAPI(svc suture.Service) suture.ServiceToken {
	return t.api.Add(svc)
}

// Serve runs the tree until ctx is canceled.
func (t *Tree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

// ServeBackground runs the tree in a goroutine.
func (t *Tree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

func eventHook(e suture.Event) {
	name, level := eventName(e)
	metrics.SupervisorEvents.WithLabelValues(name).Inc()
	logger := logging.Logger()
	logger.WithLevel(level).
		Str("event", name).
		Fields(e.Map()).
		Msg(e.String())
}

func eventName(e suture.Event) (string, zerolog.Level) {
	switch ev := e.(type) {
	case suture.EventServicePanic:
		return "service_panic", zerolog.ErrorLevel
	case suture.EventServiceTerminate:
		if ev.Restarting {
			return "service_terminate", zerolog.WarnLevel
		}
		return "service_terminate", zerolog.InfoLevel
	case suture.EventBackoff:
		return "backoff", zerolog.WarnLevel
	case suture.EventResume:
		return "resume", zerolog.InfoLevel
	case suture.EventStopTimeout:
		return "stop_timeout", zerolog.ErrorLevel
	default:
		return "unknown", zerolog.InfoLevel
	}
}
