// ABOUTME: CLI commands for syncing ring data from the Oura API.
// ABOUTME: Supports run and status; run exits non-zero when any stream failed.
package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	ringsync "github.com/harperreed/ringhealth/internal/sync"
)

var syncDays int

var syncCmd = &cobra.Command{
	Use:     "sync",
	Aliases: []string{"s"},
	Short:   "Sync ring data from Oura",
	Long: `Sync ring data from the Oura API into the local database.

Each stream is fetched over a date window ending today and written with an
upsert, so re-running a sync never duplicates rows. A stream's checkpoint
only moves forward after its records are stored.

COMMANDS:

  run         Fetch and store every configured stream
  status      Show checkpoints, retry flags, and the sync lock

AUTHENTICATION:

  Set oura.token in the config file, RINGHEALTH_OURA__TOKEN or
  OURA_API_TOKEN to a personal access token.`,
}

var syncRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a full sync",
	Long: `Run a full sync over the last --days days (default from sync.days_back).

A failing stream does not stop the others. The command reports each stream
and exits with an error if any of them failed.

Examples:
  ringhealth sync run
  ringhealth sync run --days 7`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		days := cfg.Sync.DaysBack
		if cmd.Flags().Changed("days") {
			days = syncDays
		}

		syncer, err := newSyncer()
		if err != nil {
			return err
		}

		summary, err := syncer.PerformFullSync(cmd.Context(), days)
		if err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}

		printSummary(cmd.OutOrStdout(), summary)
		if !summary.Success {
			return fmt.Errorf("sync finished with %d failed streams", len(summary.FailedStreams()))
		}
		return nil
	},
}

func printSummary(w io.Writer, s *ringsync.Summary) {
	fmt.Fprintf(w, "Window %s → %s (%d days)\n", s.Window.Start, s.Window.End, s.Window.Days())
	for _, kind := range s.Order() {
		r := s.Streams[kind]
		name := padRight(string(kind), 22)
		switch {
		case r.Failed():
			failure(w, "%s %v", name, r.Err)
		case r.Empty && r.Flagged:
			warn(w, "%s no data, flagged for retry", name)
		case r.Empty:
			fmt.Fprintf(w, "  %s %s\n", name, faint.Sprint("no data"))
		default:
			skipped := ""
			if r.Skipped > 0 {
				skipped = yellow.Sprintf(" (%d malformed skipped)", r.Skipped)
			}
			success(w, "%s %d records%s", name, r.Written, skipped)
		}
	}
	fmt.Fprintf(w, "%s %s\n", faint.Sprint("correlation"), s.CorrelationID)
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync status",
	Long: `Show per-stream checkpoints, streams flagged for retry, and who holds
the sync lock, if anyone.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := cfg.SyncSettings()
		if err != nil {
			return err
		}
		status, err := ringsync.StatusOf(cmd.Context(), db)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		last := make(map[string]string, len(status.Checkpoints))
		for _, c := range status.Checkpoints {
			last[string(c.Stream)] = c.LastSyncDate
		}

		bold.Fprintln(w, "Checkpoints")
		for _, kind := range settings.Streams {
			date, ok := last[string(kind)]
			if !ok {
				date = faint.Sprint("never")
			}
			fmt.Fprintf(w, "  %s %s\n", padRight(string(kind), 22), date)
		}

		if len(status.RetryFlags) > 0 {
			fmt.Fprintln(w)
			bold.Fprintln(w, "Retry flags")
			for _, f := range status.RetryFlags {
				warn(w, "%s %s (window end %s)", padRight(string(f.Stream), 22), f.Reason, f.WindowEnd)
			}
		}

		if status.Lock != nil {
			fmt.Fprintln(w)
			warn(w, "sync running since %s (owner %s, expires %s)",
				status.Lock.AcquiredAt.Format("15:04:05"), shortID(status.Lock.Owner), status.Lock.ExpiresAt.Format("15:04:05"))
		}
		return nil
	},
}

func init() {
	syncRunCmd.Flags().IntVarP(&syncDays, "days", "d", 0, "days back to sync (default sync.days_back)")

	syncCmd.AddCommand(syncRunCmd)
	syncCmd.AddCommand(syncStatusCmd)
	rootCmd.AddCommand(syncCmd)
}
