// ABOUTME: CLI commands for journal notes.
// ABOUTME: Supports add, list, and delete by ID prefix.
package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harperreed/ringhealth/internal/models"
)

var (
	noteDate  string
	noteType  string
	noteSince string
	noteLimit int
)

var noteCmd = &cobra.Command{
	Use:     "note",
	Aliases: []string{"n"},
	Short:   "Keep journal notes",
	Long: `Keep short dated notes next to your ring data.

Notes show up in digests and answers, so a line like "late dinner, two
glasses of wine" helps explain a bad sleep score.

NOTE TYPES:

  general, reflection, symptom, training`,
}

var noteAddCmd = &cobra.Command{
	Use:   "add <text...>",
	Short: "Add a note",
	Long: `Add a note dated today, or the day given by --date.

Examples:
  ringhealth note add "slept badly, late coffee"
  ringhealth note add "left knee sore" --type symptom --date 2025-01-06`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n := models.NewNote(strings.Join(args, " "))
		if noteDate != "" {
			if !models.IsValidDay(noteDate) {
				return fmt.Errorf("invalid date: %s (use YYYY-MM-DD)", noteDate)
			}
			n.WithDate(noteDate)
		}
		if noteType != "" {
			if !models.IsValidNoteType(noteType) {
				return fmt.Errorf("unknown note type: %s (use general, reflection, symptom or training)", noteType)
			}
			n.WithType(models.NoteType(noteType))
		}

		if err := db.CreateNote(cmd.Context(), n); err != nil {
			return fmt.Errorf("failed to create note: %w", err)
		}

		w := cmd.OutOrStdout()
		success(w, "Added %s note", n.NoteType)
		fmt.Fprintf(w, "  %s %s %s\n", faint.Sprint(shortID(n.ID.String())), n.Date, truncate(n.Content, 50))
		return nil
	},
}

var noteListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List notes",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		notes, err := db.ListNotes(cmd.Context(), noteSince, noteLimit)
		if err != nil {
			return fmt.Errorf("failed to list notes: %w", err)
		}

		w := cmd.OutOrStdout()
		if len(notes) == 0 {
			fmt.Fprintln(w, "No notes found.")
			return nil
		}
		for _, n := range notes {
			fmt.Fprintf(w, "%s %s %s %s\n",
				faint.Sprint(shortID(n.ID.String())),
				faint.Sprint(n.Date),
				padRight(string(n.NoteType), 11),
				n.Content)
		}
		return nil
	},
}

var noteDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"del", "rm"},
	Short:   "Delete a note",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := db.DeleteNote(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("failed to delete note: %w", err)
		}
		yellow.Fprintf(cmd.OutOrStdout(), "✗ Deleted note %s\n", args[0])
		return nil
	},
}

func init() {
	noteAddCmd.Flags().StringVar(&noteDate, "date", "", "day the note refers to (YYYY-MM-DD)")
	noteAddCmd.Flags().StringVarP(&noteType, "type", "t", "", "note type (general, reflection, symptom, training)")
	noteListCmd.Flags().StringVar(&noteSince, "since", "", "only notes on or after this date (YYYY-MM-DD)")
	noteListCmd.Flags().IntVarP(&noteLimit, "limit", "n", 20, "max number of results")

	noteCmd.AddCommand(noteAddCmd)
	noteCmd.AddCommand(noteListCmd)
	noteCmd.AddCommand(noteDeleteCmd)
	rootCmd.AddCommand(noteCmd)
}
