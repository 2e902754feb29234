// ABOUTME: Root Cobra command for the ringhealth CLI.
// ABOUTME: Loads config and opens the database in PersistentPreRunE, closes it afterwards.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harperreed/ringhealth/internal/config"
	"github.com/harperreed/ringhealth/internal/logging"
	"github.com/harperreed/ringhealth/internal/narrative"
	"github.com/harperreed/ringhealth/internal/oura"
	"github.com/harperreed/ringhealth/internal/storage"
	ringsync "github.com/harperreed/ringhealth/internal/sync"
)

// skipSetup marks commands that must run without a loaded config or open database.
const skipSetup = "skip-setup"

var (
	cfgFile  string
	logLevel string

	cfg *config.Config
	db  *storage.DB
)

var rootCmd = &cobra.Command{
	Use:   "ringhealth",
	Short: "Sync and explore your Oura ring data",
	Long: `Ringhealth copies your Oura ring data into a local SQLite database and
lets you query it, journal alongside it, and ask a language model about it.

WHAT IT SYNCS:

  Daily          sleep, activity, readiness, stress, spo2
  Detailed       sleep sessions, heart rate samples, workouts

QUICK START:

  $ ringhealth config init              # Write a starter config file
  $ export OURA_API_TOKEN=...           # Personal access token from Oura
  $ ringhealth sync run                 # Pull the last 60 days
  $ ringhealth list daily_sleep         # Newest sleep scores
  $ ringhealth sync status              # Checkpoints and retry flags

JOURNAL:

  $ ringhealth note add "slept badly, late coffee"
  $ ringhealth meal add "oatmeal with berries" --at "2025-01-06 08:15"
  $ ringhealth goal add "Lower running HR" --type lower_running_hr

NARRATIVES (needs ANTHROPIC_API_KEY):

  $ ringhealth digest                   # Today's morning digest
  $ ringhealth ask "why was my readiness low yesterday?"

SERVING:

  $ ringhealth serve                    # HTTP API plus scheduled syncs
  $ ringhealth mcp                      # MCP server on stdio

  Claude Desktop config:

  {
    "mcpServers": {
      "ringhealth": { "command": "ringhealth", "args": ["mcp"] }
    }
  }

DATA STORAGE:

  The database lives at ~/.local/share/ringhealth/ringhealth.db unless
  storage.data_dir says otherwise. Config is read from
  ~/.config/ringhealth/config.yaml and RINGHEALTH_* environment variables.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Annotations[skipSetup] == "true" || cmd.Name() == "help" {
			return nil
		}
		return setup()
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return teardown()
	},
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func loadConfig() (*config.Config, error) {
	c, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		c.Log.Level = logLevel
	}
	logging.Init(c.LogSettings())
	return c, nil
}

func setup() error {
	// A failed RunE skips PersistentPostRunE, so a previous run may have left it open.
	if err := teardown(); err != nil {
		return err
	}
	c, err := loadConfig()
	if err != nil {
		return err
	}
	d, err := c.OpenStorage()
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	cfg, db = c, d
	return nil
}

func teardown() error {
	if db == nil {
		return nil
	}
	err := db.Close()
	db = nil
	return err
}

// newSyncer wires the vendor client and the open database into an orchestrator.
func newSyncer() (*ringsync.Syncer, error) {
	if err := cfg.RequireOuraToken(); err != nil {
		return nil, err
	}
	client, err := oura.NewClient(cfg.OuraClient())
	if err != nil {
		return nil, err
	}
	settings, err := cfg.SyncSettings()
	if err != nil {
		return nil, err
	}
	return ringsync.NewSyncer(client, db, settings)
}

// newNarrative builds the narrative service with its on-disk digest cache.
// The returned close func releases the cache.
func newNarrative() (*narrative.Service, func() error, error) {
	narrator, err := narrative.NewAnthropicNarrator(cfg.AnthropicSettings())
	if err != nil {
		return nil, nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, nil, err
	}
	cache, err := narrative.OpenCache(cfg.DigestDir())
	if err != nil {
		return nil, nil, err
	}
	svc, err := narrative.NewService(db, narrator, narrative.WithCache(cache), narrative.WithLocation(loc))
	if err != nil {
		cache.Close()
		return nil, nil, err
	}
	return svc, cache.Close, nil
}

// optionalSyncer returns nil when no token is configured so long-running
// surfaces can still serve stored data.
func optionalSyncer() (*ringsync.Syncer, error) {
	s, err := newSyncer()
	if errors.Is(err, config.ErrMissingToken) {
		logging.Warn().Msg("no oura token configured, sync is disabled")
		return nil, nil
	}
	return s, err
}

// optionalNarrative returns a nil service when no API key is configured.
func optionalNarrative() (*narrative.Service, func() error, error) {
	svc, closeFn, err := newNarrative()
	if errors.Is(err, narrative.ErrNoAPIKey) {
		logging.Info().Msg("no anthropic key configured, narratives are disabled")
		return nil, func() error { return nil }, nil
	}
	return svc, closeFn, err
}

var (
	faint  = color.New(color.Faint)
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed)
	bold   = color.New(color.Bold)
)

func success(w io.Writer, format string, args ...any) {
	green.Fprintf(w, "✓ "+format+"\n", args...)
}

func warn(w io.Writer, format string, args ...any) {
	yellow.Fprintf(w, "⚠ "+format+"\n", args...)
}

func failure(w io.Writer, format string, args ...any) {
	red.Fprintf(w, "✗ "+format+"\n", args...)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func padRight(s string, length int) string {
	if len(s) >= length {
		return s
	}
	return s + strings.Repeat(" ", length-len(s))
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.config/ringhealth/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (trace, debug, info, warn, error)")
}
