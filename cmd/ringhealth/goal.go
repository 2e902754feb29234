// ABOUTME: CLI commands for training and health goals.
// ABOUTME: Supports add, list, update, delete, and analyze (which needs a narrator).
package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/harperreed/ringhealth/internal/models"
	"github.com/harperreed/ringhealth/internal/narrative"
)

var (
	goalType        string
	goalDescription string
	goalTarget      string
	goalTargetDate  string
	goalStartDate   string
	goalStatus      string
	goalCurrent     string
)

var goalCmd = &cobra.Command{
	Use:     "goal",
	Aliases: []string{"g"},
	Short:   "Track goals",
	Long: `Track training and health goals.

Goals of type lower_running_hr get built-in progress tracking: the average
heart rate of running workouts since the goal's start date, split into
halves to show a trend. Other goal types are free-form.

COMMANDS:

  add       Create a goal
  list      List goals, optionally by status
  update    Change a goal's status or current value
  delete    Delete a goal
  analyze   Ask the narrator how a goal is going`,
}

var goalAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add a goal",
	Long: `Add an active goal starting today.

Examples:
  ringhealth goal add "Lower running HR" --type lower_running_hr --target "145 bpm"
  ringhealth goal add "Sleep 8 hours" --type sleep --target-date 2025-03-01`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, d := range []string{goalTargetDate, goalStartDate} {
			if d != "" && !models.IsValidDay(d) {
				return fmt.Errorf("invalid date: %s (use YYYY-MM-DD)", d)
			}
		}

		g := models.NewGoal(args[0], goalType).WithTarget(goalTarget, goalTargetDate)
		if goalDescription != "" {
			g.WithDescription(goalDescription)
		}
		if goalStartDate != "" {
			g.WithStartDate(goalStartDate)
		}

		if err := db.CreateGoal(cmd.Context(), g); err != nil {
			return fmt.Errorf("failed to create goal: %w", err)
		}

		w := cmd.OutOrStdout()
		success(w, "Added goal")
		fmt.Fprintf(w, "  %s %s (%s)\n", faint.Sprint(shortID(g.ID.String())), g.Title, g.GoalType)
		return nil
	},
}

var goalListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List goals",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var status *models.GoalStatus
		if goalStatus != "" {
			if !models.IsValidGoalStatus(goalStatus) {
				return fmt.Errorf("unknown goal status: %s", goalStatus)
			}
			st := models.GoalStatus(goalStatus)
			status = &st
		}

		goals, err := db.ListGoals(cmd.Context(), status)
		if err != nil {
			return fmt.Errorf("failed to list goals: %w", err)
		}

		w := cmd.OutOrStdout()
		if len(goals) == 0 {
			fmt.Fprintln(w, "No goals found.")
			return nil
		}
		for _, g := range goals {
			printGoalLine(w, g)
		}
		return nil
	},
}

func printGoalLine(w io.Writer, g *models.Goal) {
	target := ""
	if g.TargetValue != nil {
		target = " → " + *g.TargetValue
	}
	if g.TargetDate != nil {
		target += " by " + *g.TargetDate
	}
	status := string(g.Status)
	switch g.Status {
	case models.GoalActive:
		status = green.Sprint(status)
	case models.GoalAbandoned:
		status = faint.Sprint(status)
	}
	fmt.Fprintf(w, "%s %s %s%s %s\n",
		faint.Sprint(shortID(g.ID.String())),
		padRight(status, 9),
		g.Title,
		target,
		faint.Sprintf("(%s since %s)", g.GoalType, g.StartDate))
}

var goalUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update a goal's status",
	Long: `Update a goal's status and, optionally, its current value.

Examples:
  ringhealth goal update abc123 --status completed
  ringhealth goal update abc123 --current "148 bpm"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := db.GetGoal(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("goal not found: %s", args[0])
		}

		status := g.Status
		if goalStatus != "" {
			if !models.IsValidGoalStatus(goalStatus) {
				return fmt.Errorf("unknown goal status: %s", goalStatus)
			}
			status = models.GoalStatus(goalStatus)
		}
		var current *string
		if goalCurrent != "" {
			current = &goalCurrent
		}

		if err := db.UpdateGoalStatus(cmd.Context(), g.ID.String(), status, current); err != nil {
			return fmt.Errorf("failed to update goal: %w", err)
		}
		success(cmd.OutOrStdout(), "Updated %s (%s)", g.Title, status)
		return nil
	},
}

var goalDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"del", "rm"},
	Short:   "Delete a goal",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := db.GetGoal(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("goal not found: %s", args[0])
		}
		if err := db.DeleteGoal(cmd.Context(), g.ID.String()); err != nil {
			return fmt.Errorf("failed to delete goal: %w", err)
		}
		yellow.Fprintf(cmd.OutOrStdout(), "✗ Deleted goal %s\n", g.Title)
		return nil
	},
}

var goalAnalyzeCmd = &cobra.Command{
	Use:   "analyze <id>",
	Short: "Analyze progress toward a goal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeCache, err := newNarrative()
		if err != nil {
			return err
		}
		defer closeCache()

		report, err := svc.AnalyzeGoal(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		printGoalLine(w, report.Goal)
		printProgress(w, report.Progress)
		fmt.Fprintln(w)
		fmt.Fprintln(w, report.Analysis)
		return nil
	},
}

func printProgress(w io.Writer, p *narrative.Progress) {
	if p == nil {
		return
	}
	fmt.Fprintf(w, "  Workouts: %d\n", p.TotalWorkouts)
	if p.AverageHR != nil {
		fmt.Fprintf(w, "  Average HR: %d bpm\n", *p.AverageHR)
	}
	if p.FirstHalfAvgHR != nil && p.SecondHalfAvgHR != nil {
		fmt.Fprintf(w, "  Trend: %d → %d bpm (%s)\n", *p.FirstHalfAvgHR, *p.SecondHalfAvgHR, p.Trend)
	}
}

func init() {
	goalAddCmd.Flags().StringVarP(&goalType, "type", "t", "custom", "goal type (lower_running_hr tracks progress)")
	goalAddCmd.Flags().StringVarP(&goalDescription, "description", "d", "", "goal description")
	goalAddCmd.Flags().StringVar(&goalTarget, "target", "", "target value")
	goalAddCmd.Flags().StringVar(&goalTargetDate, "target-date", "", "target date (YYYY-MM-DD)")
	goalAddCmd.Flags().StringVar(&goalStartDate, "start", "", "start date (YYYY-MM-DD, default today)")
	goalListCmd.Flags().StringVarP(&goalStatus, "status", "s", "", "filter by status (active, completed, abandoned)")
	goalUpdateCmd.Flags().StringVarP(&goalStatus, "status", "s", "", "new status (active, completed, abandoned)")
	goalUpdateCmd.Flags().StringVar(&goalCurrent, "current", "", "current value")

	goalCmd.AddCommand(goalAddCmd)
	goalCmd.AddCommand(goalListCmd)
	goalCmd.AddCommand(goalUpdateCmd)
	goalCmd.AddCommand(goalDeleteCmd)
	goalCmd.AddCommand(goalAnalyzeCmd)
	rootCmd.AddCommand(goalCmd)
}
