// ABOUTME: CLI commands for narrative digests and free-form questions.
// ABOUTME: Digests are cached per type and day; --regenerate forces a fresh one.
package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harperreed/ringhealth/internal/narrative"
)

var (
	digestRegenerate bool
	digestDate       string
)

var digestCmd = &cobra.Command{
	Use:   "digest [morning|afternoon|evening]",
	Short: "Write a digest of recent ring data",
	Long: `Write a short narrative digest of the last week of sleep, activity,
readiness, stress, workouts, meals, goals, and notes.

Digests are cached per type and day in the digest cache. Asking again the
same day returns the cached text unless --regenerate is set. Use --date to
read a past digest from the cache without calling the model.

Needs narrative.api_key or ANTHROPIC_API_KEY.

EXAMPLES:

  ringhealth digest                     # Today's morning digest
  ringhealth digest evening
  ringhealth digest --regenerate
  ringhealth digest morning --date 2025-01-06
  ringhealth digest history`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"morning", "afternoon", "evening"},
	RunE: func(cmd *cobra.Command, args []string) error {
		name := ""
		if len(args) == 1 {
			name = args[0]
		}
		t, err := narrative.ParseDigestType(name)
		if err != nil {
			return err
		}

		svc, closeCache, err := newNarrative()
		if err != nil {
			return err
		}
		defer closeCache()

		w := cmd.OutOrStdout()
		if digestDate != "" {
			d, err := svc.Get(t, digestDate)
			if err != nil {
				return fmt.Errorf("no %s digest cached for %s", t, digestDate)
			}
			printDigest(w, d, true)
			return nil
		}

		res, err := svc.Generate(cmd.Context(), t, digestRegenerate)
		if err != nil {
			return fmt.Errorf("failed to write digest: %w", err)
		}
		printDigest(w, res.Digest, res.Cached)
		return nil
	},
}

var digestHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List cached digests",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeCache, err := newNarrative()
		if err != nil {
			return err
		}
		defer closeCache()

		digests, err := svc.History()
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		if len(digests) == 0 {
			fmt.Fprintln(w, "No digests cached.")
			return nil
		}
		for _, d := range digests {
			firstLine, _, _ := strings.Cut(strings.TrimSpace(d.Content), "\n")
			fmt.Fprintf(w, "%s %s %s\n", d.Date, padRight(string(d.Type), 9), faint.Sprint(truncate(firstLine, 60)))
		}
		return nil
	},
}

func printDigest(w io.Writer, d *narrative.Digest, cached bool) {
	header := fmt.Sprintf("%s digest for %s", d.Type, d.Date)
	bold.Fprintln(w, header)
	if cached {
		fmt.Fprintln(w, faint.Sprintf("cached, written %s", d.GeneratedAt.Local().Format("15:04")))
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.TrimSpace(d.Content))
}

var askCmd = &cobra.Command{
	Use:   "ask <question...>",
	Short: "Ask a question about your recent data",
	Long: `Ask a free-form question. The last week of sleep, activity, readiness,
workouts, meals, and active goals is sent along with it.

Examples:
  ringhealth ask "why was my readiness low yesterday?"
  ringhealth ask did late meals hurt my sleep this week`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeCache, err := newNarrative()
		if err != nil {
			return err
		}
		defer closeCache()

		answer, err := svc.Ask(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(answer))
		return nil
	},
}

func init() {
	digestCmd.Flags().BoolVarP(&digestRegenerate, "regenerate", "r", false, "ignore the cache and write a fresh digest")
	digestCmd.Flags().StringVar(&digestDate, "date", "", "read a cached digest for this date (YYYY-MM-DD)")

	digestCmd.AddCommand(digestHistoryCmd)
	rootCmd.AddCommand(digestCmd)
	rootCmd.AddCommand(askCmd)
}
