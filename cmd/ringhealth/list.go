// ABOUTME: CLI command for listing synced ring records.
// ABOUTME: Without a stream it prints row counts; with one it prints the newest payloads.
package main

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/harperreed/ringhealth/internal/models"
)

var listLimit int

var listCmd = &cobra.Command{
	Use:     "list [stream]",
	Aliases: []string{"ls", "l"},
	Short:   "List synced records",
	Long: `List synced ring records.

Without a stream, shows how many rows each stream holds and how far it has
been synced. With a stream, prints its newest records as the JSON Oura
returned, one per line.

STREAMS:

  daily_sleep, sleep_sessions, activity, readiness, stress, workouts,
  spo2, heart_rate

EXAMPLES:

  ringhealth list                     # Row counts per stream
  ringhealth list daily_sleep         # Last 20 sleep days
  ringhealth list workouts -n 5       # Last 5 workouts`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()

		if len(args) == 0 {
			checkpoints, err := db.ListCheckpoints(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list checkpoints: %w", err)
			}
			last := make(map[models.StreamKind]string, len(checkpoints))
			for _, c := range checkpoints {
				last[c.Stream] = c.LastSyncDate
			}
			for _, kind := range models.AllStreams {
				n, err := db.CountRows(cmd.Context(), kind)
				if err != nil {
					return fmt.Errorf("failed to count %s: %w", kind, err)
				}
				through := last[kind]
				if through == "" {
					through = "never synced"
				}
				fmt.Fprintf(w, "%s %6d  %s\n", padRight(string(kind), 22), n, faint.Sprint(through))
			}
			return nil
		}

		kind, err := models.ParseStream(args[0])
		if err != nil {
			return err
		}
		records, err := db.RecentPayloads(cmd.Context(), kind, listLimit)
		if err != nil {
			return fmt.Errorf("failed to list %s: %w", kind, err)
		}
		if len(records) == 0 {
			fmt.Fprintf(w, "No %s records found.\n", kind)
			return nil
		}
		for _, r := range records {
			var buf bytes.Buffer
			if err := json.Compact(&buf, r); err != nil {
				return fmt.Errorf("failed to format record: %w", err)
			}
			fmt.Fprintln(w, buf.String())
		}
		return nil
	},
}

func init() {
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 20, "max number of records")
	rootCmd.AddCommand(listCmd)
}
