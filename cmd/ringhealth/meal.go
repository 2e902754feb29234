// ABOUTME: CLI commands for the meal log.
// ABOUTME: Supports add (with --at), list, and delete by ID prefix.
package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/harperreed/ringhealth/internal/models"
)

var (
	mealAt      string
	mealPortion string
	mealNotes   string
	mealSince   string
	mealLimit   int
)

var mealCmd = &cobra.Command{
	Use:     "meal",
	Aliases: []string{"m"},
	Short:   "Log meals",
	Long: `Log what you eat so digests can relate meals to sleep and readiness.

Examples:
  ringhealth meal add "oatmeal with berries"
  ringhealth meal add "pasta" --at "2025-01-06 20:30" --portion large`,
}

var mealAddCmd = &cobra.Command{
	Use:   "add <description...>",
	Short: "Log a meal",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m := models.NewMeal(strings.Join(args, " "))
		if mealAt != "" {
			t, err := parseTime(mealAt)
			if err != nil {
				return fmt.Errorf("invalid timestamp: %s", mealAt)
			}
			m.Date = t.Format(models.DateLayout)
			if hasClock(mealAt) {
				hhmm := t.Format("15:04")
				m.Time = &hhmm
			} else {
				m.Time = nil
			}
		}
		if mealPortion != "" {
			m.WithPortion(mealPortion)
		}
		if mealNotes != "" {
			m.WithNotes(mealNotes)
		}

		if err := db.CreateMeal(cmd.Context(), m); err != nil {
			return fmt.Errorf("failed to log meal: %w", err)
		}

		w := cmd.OutOrStdout()
		success(w, "Logged meal")
		fmt.Fprintf(w, "  %s %s %s\n", faint.Sprint(shortID(m.ID.String())), m.Date, m.Description)
		return nil
	},
}

var mealListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List meals",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		meals, err := db.ListMeals(cmd.Context(), mealSince, mealLimit)
		if err != nil {
			return fmt.Errorf("failed to list meals: %w", err)
		}

		w := cmd.OutOrStdout()
		if len(meals) == 0 {
			fmt.Fprintln(w, "No meals found.")
			return nil
		}
		for _, m := range meals {
			at := m.Date
			if m.Time != nil {
				at += " " + *m.Time
			}
			extra := ""
			if m.EstimatedPortion != nil {
				extra = faint.Sprintf(" [%s]", *m.EstimatedPortion)
			}
			if m.Notes != nil && *m.Notes != "" {
				extra += faint.Sprintf(" (%s)", truncate(*m.Notes, 30))
			}
			fmt.Fprintf(w, "%s %s %s%s\n",
				faint.Sprint(shortID(m.ID.String())),
				faint.Sprint(padRight(at, 16)),
				m.Description,
				extra)
		}
		return nil
	},
}

var mealDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"del", "rm"},
	Short:   "Delete a meal",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := db.DeleteMeal(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("failed to delete meal: %w", err)
		}
		yellow.Fprintf(cmd.OutOrStdout(), "✗ Deleted meal %s\n", args[0])
		return nil
	},
}

func parseTime(s string) (time.Time, error) {
	formats := []string{
		"2006-01-02 15:04",
		"2006-01-02T15:04",
		"2006-01-02",
		time.RFC3339,
	}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time format")
}

// hasClock reports whether a --at value carried a time of day.
func hasClock(s string) bool {
	return len(s) > len(models.DateLayout)
}

func init() {
	mealAddCmd.Flags().StringVar(&mealAt, "at", "", "when you ate (YYYY-MM-DD HH:MM)")
	mealAddCmd.Flags().StringVarP(&mealPortion, "portion", "p", "", "estimated portion")
	mealAddCmd.Flags().StringVar(&mealNotes, "notes", "", "notes for the meal")
	mealListCmd.Flags().StringVar(&mealSince, "since", "", "only meals on or after this date (YYYY-MM-DD)")
	mealListCmd.Flags().IntVarP(&mealLimit, "limit", "n", 20, "max number of results")

	mealCmd.AddCommand(mealAddCmd)
	mealCmd.AddCommand(mealListCmd)
	mealCmd.AddCommand(mealDeleteCmd)
	rootCmd.AddCommand(mealCmd)
}
