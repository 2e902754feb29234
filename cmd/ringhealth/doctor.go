// ABOUTME: CLI command that checks config, database, and credentials.
// ABOUTME: Reports every check instead of stopping at the first failure.
package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/harperreed/ringhealth/internal/config"
	"github.com/harperreed/ringhealth/internal/narrative"
	"github.com/harperreed/ringhealth/internal/oura"
)

var doctorOffline bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the ringhealth setup",
	Long: `Check that the config loads, the database opens in WAL mode, and the
Oura token works. With --offline the token is only checked for presence.`,
	Args:        cobra.NoArgs,
	Annotations: map[string]string{skipSetup: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		failed := runDoctor(cmd.Context(), w)
		if failed > 0 {
			return fmt.Errorf("%d checks failed", failed)
		}
		fmt.Fprintln(w)
		success(w, "All checks passed")
		return nil
	},
}

func runDoctor(ctx context.Context, w io.Writer) int {
	failed := 0
	fail := func(format string, args ...any) {
		failed++
		failure(w, format, args...)
	}

	c, err := loadConfig()
	if err != nil {
		fail("config: %v", err)
		return failed
	}
	success(w, "config loaded (%s)", configPath())

	d, err := c.OpenStorage()
	if err != nil {
		fail("database: %v", err)
	} else {
		mode, err := d.JournalMode()
		switch {
		case err != nil:
			fail("database: %v", err)
		case mode != "wal":
			fail("database journal mode is %s, want wal", mode)
		default:
			success(w, "database %s (wal)", d.Path())
		}
		d.Close()
	}

	if err := c.RequireOuraToken(); err != nil {
		fail("oura: %v", err)
	} else if doctorOffline {
		success(w, "oura token present")
	} else {
		client, err := oura.NewClient(c.OuraClient())
		if err != nil {
			fail("oura: %v", err)
		} else {
			pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			info, err := client.PersonalInfo(pingCtx)
			cancel()
			if err != nil {
				fail("oura: %v", err)
			} else {
				success(w, "oura token accepted (user %s)", shortID(info.ID))
			}
		}
	}

	checkNarrative(c, w)
	return failed
}

// checkNarrative reports narrative setup. A missing key is not a failure.
func checkNarrative(c *config.Config, w io.Writer) {
	if _, err := narrative.NewAnthropicNarrator(c.AnthropicSettings()); err != nil {
		warn(w, "narratives disabled: %v", err)
		return
	}
	success(w, "anthropic key present (model %s)", c.Narrative.Model)
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorOffline, "offline", false, "skip the Oura API call")
	rootCmd.AddCommand(doctorCmd)
}
