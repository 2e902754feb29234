// ABOUTME: CLI commands for browsing synced workouts.
// ABOUTME: Supports list (with activity and date filters) and show.
package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/harperreed/ringhealth/internal/models"
)

var (
	workoutLimit    int
	workoutActivity string
	workoutSince    string
)

var workoutCmd = &cobra.Command{
	Use:     "workout",
	Aliases: []string{"w"},
	Short:   "Browse synced workouts",
	Long: `Browse workouts synced from Oura.

COMMANDS:

  list     List recent workouts
  show     Show one workout in full

Workouts are keyed by the ID Oura assigns. The first column of 'workout list'
shows an 8-character prefix; 'workout show' needs the full ID.`,
}

var workoutListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent workouts",
	Long: `List recent workouts, newest first.

Examples:
  ringhealth workout list
  ringhealth workout list --activity run --since 2025-01-01`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			workouts []*models.Workout
			err      error
		)
		if workoutActivity != "" || workoutSince != "" {
			if workoutSince != "" && !models.IsValidDay(workoutSince) {
				return fmt.Errorf("invalid date: %s (use YYYY-MM-DD)", workoutSince)
			}
			workouts, err = db.ListWorkoutsSince(cmd.Context(), workoutSince, workoutActivity)
			if err == nil {
				reverse(workouts)
				if workoutLimit > 0 && len(workouts) > workoutLimit {
					workouts = workouts[:workoutLimit]
				}
			}
		} else {
			workouts, err = db.ListWorkouts(cmd.Context(), workoutLimit)
		}
		if err != nil {
			return fmt.Errorf("failed to list workouts: %w", err)
		}

		w := cmd.OutOrStdout()
		if len(workouts) == 0 {
			fmt.Fprintln(w, "No workouts found.")
			return nil
		}
		for _, wo := range workouts {
			fmt.Fprintf(w, "%s %s %s%s\n",
				faint.Sprint(shortID(wo.ID)),
				faint.Sprint(wo.Day),
				padRight(wo.Activity, 14),
				workoutStats(wo))
		}
		return nil
	},
}

var workoutShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show workout details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		wo, err := db.GetWorkout(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("workout not found: %s", args[0])
		}
		printWorkout(cmd.OutOrStdout(), wo)
		return nil
	},
}

func workoutStats(w *models.Workout) string {
	s := ""
	if w.Distance != nil {
		s += fmt.Sprintf(" %.2f km", *w.Distance/1000)
	}
	if w.AverageHeartRate != nil {
		s += fmt.Sprintf(" avg %.0f bpm", *w.AverageHeartRate)
	}
	if w.Calories != nil {
		s += fmt.Sprintf(" %.0f kcal", *w.Calories)
	}
	return s
}

func printWorkout(w io.Writer, wo *models.Workout) {
	bold.Fprintf(w, "%s on %s\n", wo.Activity, wo.Day)
	fmt.Fprintf(w, "  ID: %s\n", wo.ID)
	field := func(label string, v *string) {
		if v != nil && *v != "" {
			fmt.Fprintf(w, "  %s: %s\n", label, *v)
		}
	}
	number := func(label, format string, v *float64) {
		if v != nil {
			fmt.Fprintf(w, "  %s: "+format+"\n", label, *v)
		}
	}
	field("Label", wo.Label)
	field("Start", wo.StartDatetime)
	field("End", wo.EndDatetime)
	field("Intensity", wo.Intensity)
	field("Source", wo.Source)
	number("Distance", "%.0f m", wo.Distance)
	number("Calories", "%.0f kcal", wo.Calories)
	number("Avg HR", "%.0f bpm", wo.AverageHeartRate)
	number("Max HR", "%.0f bpm", wo.MaxHeartRate)
}

func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

func init() {
	workoutListCmd.Flags().IntVarP(&workoutLimit, "limit", "n", 20, "max number of results")
	workoutListCmd.Flags().StringVarP(&workoutActivity, "activity", "a", "", "only this activity (e.g. run, cycling)")
	workoutListCmd.Flags().StringVar(&workoutSince, "since", "", "only workouts on or after this date (YYYY-MM-DD)")

	workoutCmd.AddCommand(workoutListCmd)
	workoutCmd.AddCommand(workoutShowCmd)
	rootCmd.AddCommand(workoutCmd)
}
