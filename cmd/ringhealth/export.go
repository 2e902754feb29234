// ABOUTME: CLI commands for exporting and importing ringhealth data.
// ABOUTME: Supports JSON, YAML, and Markdown export formats and JSON import.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/harperreed/ringhealth/internal/models"
)

var (
	exportOutput string
	exportDays   int
)

var exportCmd = &cobra.Command{
	Use:   "export <format>",
	Short: "Export ringhealth data",
	Long: `Export ringhealth data in various formats.

FORMATS:

  json       Full JSON export with raw vendor payloads (suitable for backup/restore)
  yaml       YAML export of checkpoints and journal entries (human-readable)
  markdown   Daily sleep, readiness, and steps table (for sharing)

OPTIONS:

  --output, -o   Write to file instead of stdout
  --days         Days to include in the Markdown table (default 30)

EXAMPLES:

  ringhealth export json                   # Export all data as JSON
  ringhealth export json -o backup.json    # Save to file
  ringhealth export yaml                   # Export as YAML
  ringhealth export markdown --days 14     # Last two weeks as Markdown`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"json", "yaml", "markdown"},
	RunE: func(cmd *cobra.Command, args []string) error {
		format := args[0]
		ctx := cmd.Context()

		var data []byte
		var err error

		switch format {
		case "json":
			data, err = db.ExportJSON(ctx)
		case "yaml":
			data, err = db.ExportYAML(ctx)
		case "markdown":
			var md string
			md, err = db.ExportMarkdown(ctx, exportDays)
			data = []byte(md)
		default:
			return fmt.Errorf("unknown format: %s (use json, yaml, or markdown)", format)
		}

		if err != nil {
			return fmt.Errorf("export failed: %w", err)
		}

		if exportOutput != "" {
			if err := os.WriteFile(exportOutput, data, 0600); err != nil {
				return fmt.Errorf("failed to write file: %w", err)
			}
			success(cmd.OutOrStdout(), "Exported to %s", exportOutput)
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
		}

		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import ringhealth data from JSON",
	Long: `Import ringhealth data from a JSON backup file.

Vendor payloads are re-mapped through the current schema and upserted, so
importing the same file twice leaves one copy of each record. Checkpoints
only move forward. Journal entries keep their IDs; duplicates cause an error.

EXAMPLES:

  ringhealth import backup.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filename := args[0]

		data, err := os.ReadFile(filename)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}

		sum, err := db.ImportJSON(cmd.Context(), data)
		if err != nil {
			return fmt.Errorf("import failed: %w", err)
		}

		w := cmd.OutOrStdout()
		success(w, "Imported from %s", filename)
		printCounts(w, sum.Records, sum.Malformed, sum.Notes, sum.Goals, sum.Meals)
		return nil
	},
}

func printCounts(w io.Writer, records map[models.StreamKind]int, malformed, notes, goals, meals int) {
	for _, kind := range models.AllStreams {
		if n := records[kind]; n > 0 {
			fmt.Fprintf(w, "  %s %d\n", padRight(string(kind), 22), n)
		}
	}
	if malformed > 0 {
		warn(w, "%d malformed records skipped", malformed)
	}
	fmt.Fprintf(w, "  notes %d, goals %d, meals %d\n", notes, goals, meals)
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (default: stdout)")
	exportCmd.Flags().IntVar(&exportDays, "days", 30, "days to include (markdown only)")

	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}
