// ABOUTME: CLI command for importing a legacy oura-health SQLite database.
// ABOUTME: One-time migration tool for users coming from the older tool.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harperreed/ringhealth/internal/config"
	"github.com/harperreed/ringhealth/internal/storage"
)

var (
	migrateFrom   string
	migrateDryRun bool
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Import a legacy oura-health database",
	Long: `Import data from a legacy oura-health SQLite database.

Stored vendor payloads are re-mapped through the current schema and upserted,
so running the migration twice is safe. Checkpoints only move forward.
Notes, goals, and meals are copied with fresh IDs.

IMPORTANT:

  - The legacy database is opened read-only
  - Run with --dry-run first to see what would be migrated

USAGE:

  ringhealth migrate --from ~/oura-health/oura.db --dry-run
  ringhealth migrate --from ~/oura-health/oura.db`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		if migrateDryRun {
			warn(w, "Dry run mode - no changes will be made")
			fmt.Fprintln(w)
		}

		sum, err := storage.MigrateLegacy(cmd.Context(), config.ExpandPath(migrateFrom), db, migrateDryRun)
		if err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}

		if migrateDryRun {
			fmt.Fprintf(w, "Would migrate from %s:\n", migrateFrom)
		} else {
			success(w, "Migrated from %s", migrateFrom)
		}
		printCounts(w, sum.Records, sum.Malformed, sum.Notes, sum.Goals, sum.Meals)
		fmt.Fprintf(w, "  checkpoints %d\n", sum.Checkpoints)
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Your data is stored at:\n   %s\n", db.Path())
		return nil
	},
}

func init() {
	migrateCmd.Flags().StringVar(&migrateFrom, "from", "", "path to the legacy database")
	migrateCmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "preview migration without making changes")
	_ = migrateCmd.MarkFlagRequired("from")
	rootCmd.AddCommand(migrateCmd)
}
