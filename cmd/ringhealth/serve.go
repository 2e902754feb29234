// ABOUTME: CLI command for the long-running HTTP API with scheduled syncs.
// ABOUTME: Both run under a supervisor tree and stop on SIGINT or SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/harperreed/ringhealth/internal/logging"
	"github.com/harperreed/ringhealth/internal/scheduler"
	"github.com/harperreed/ringhealth/internal/server"
)

var (
	serveAddr       string
	serveNoSchedule bool
	serveSyncNow    bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API and run scheduled syncs",
	Long: `Serve a JSON HTTP API over the local database and, when an Oura token is
configured, run a full sync every sync.interval (default 6h).

ROUTES:

  GET    /healthz                     Liveness
  GET    /metrics                     Prometheus metrics
  GET    /api/sync                    Sync status
  POST   /api/sync?days=N             Run a full sync now
  GET    /api/checkpoints             Checkpoints and retry flags
  GET    /api/records/{stream}        Newest records of a stream
  GET    /api/workouts/{id}           One workout
  GET    /api/notes, /api/goals, /api/meals   Journal (POST to add, DELETE /{id})
  GET    /api/digests/{type}          Digest (needs an Anthropic key)
  POST   /api/ask                     Ask a question (needs an Anthropic key)

EXAMPLES:

  ringhealth serve
  ringhealth serve --addr :8080 --sync-now
  ringhealth serve --no-schedule`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := cfg.Server.Addr
		if serveAddr != "" {
			addr = serveAddr
		}

		syncer, err := optionalSyncer()
		if err != nil {
			return err
		}
		svc, closeCache, err := optionalNarrative()
		if err != nil {
			return err
		}
		defer closeCache()

		var opts []server.Option
		if syncer != nil {
			opts = append(opts, server.WithSyncer(syncer, cfg.Sync.DaysBack))
		}
		if svc != nil {
			opts = append(opts, server.WithNarrative(svc))
		}
		api, err := server.New(db, opts...)
		if err != nil {
			return err
		}

		tree := scheduler.NewTree(scheduler.DefaultTreeConfig())
		tree.AddAPI(scheduler.NewHTTPService(&http.Server{
			Addr:              addr,
			Handler:           api.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}, 10*time.Second))

		scheduled := "off"
		if syncer != nil && !serveNoSchedule && cfg.Sync.Interval > 0 {
			var syncOpts []scheduler.SyncOption
			if serveSyncNow {
				syncOpts = append(syncOpts, scheduler.WithRunOnStart())
			}
			job, err := scheduler.NewSyncService(syncer, cfg.Sync.Interval, cfg.Sync.DaysBack, syncOpts...)
			if err != nil {
				return err
			}
			tree.AddJob(job)
			scheduled = cfg.Sync.Interval.String()
		}

		logging.Info().Str("addr", addr).Str("sync_interval", scheduled).Msg("serving")
		success(cmd.OutOrStdout(), "Listening on http://%s (scheduled sync: %s)", addr, scheduled)

		err = tree.Serve(cmd.Context())
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default server.addr)")
	serveCmd.Flags().BoolVar(&serveNoSchedule, "no-schedule", false, "do not run scheduled syncs")
	serveCmd.Flags().BoolVar(&serveSyncNow, "sync-now", false, "run a sync as soon as the server starts")
	rootCmd.AddCommand(serveCmd)
}
