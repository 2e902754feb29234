// ABOUTME: CLI commands for the config file: init, show, and path.
// ABOUTME: These run without opening the database.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/harperreed/ringhealth/internal/config"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the config file",
	Long: `Manage the ringhealth config file.

Settings are layered: built-in defaults, then the YAML file, then
RINGHEALTH_* environment variables ("__" separates sections, e.g.
RINGHEALTH_SYNC__DAYS_BACK=30). OURA_API_TOKEN and ANTHROPIC_API_KEY are
read when the namespaced keys are unset.`,
	Annotations: map[string]string{skipSetup: "true"},
}

var configInitCmd = &cobra.Command{
	Use:         "init",
	Short:       "Write a config file with the defaults",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{skipSetup: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath()
		if _, err := os.Stat(path); err == nil && !configForce {
			return fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
		}
		if err := config.Default().Save(path); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
		w := cmd.OutOrStdout()
		success(w, "Wrote %s", path)
		fmt.Fprintln(w, "Set oura.token (or OURA_API_TOKEN) before running 'ringhealth sync run'.")
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:         "show",
	Short:       "Print the effective config with secrets masked",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{skipSetup: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		c.Oura.Token = mask(c.Oura.Token)
		c.Narrative.APIKey = mask(c.Narrative.APIKey)

		out, err := yaml.Marshal(showView(c))
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), string(out))
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:         "path",
	Short:       "Print the config file location",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{skipSetup: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), configPath())
		return nil
	},
}

func configPath() string {
	if cfgFile != "" {
		return config.ExpandPath(cfgFile)
	}
	return config.GetConfigPath()
}

func mask(secret string) string {
	switch {
	case secret == "":
		return ""
	case len(secret) <= 8:
		return "****"
	default:
		return secret[:4] + "****"
	}
}

// showView lays the config out with the koanf key names and readable durations.
func showView(c *config.Config) map[string]any {
	return map[string]any{
		"oura": map[string]any{
			"token":           c.Oura.Token,
			"base_url":        c.Oura.BaseURL,
			"timeout":         c.Oura.Timeout.String(),
			"rate_per_second": c.Oura.RatePerSecond,
			"burst":           c.Oura.Burst,
			"max_retries":     c.Oura.MaxRetries,
		},
		"sync": map[string]any{
			"days_back":    c.Sync.DaysBack,
			"streams":      c.Sync.Streams,
			"empty_policy": c.Sync.EmptyPolicy,
			"concurrency":  c.Sync.Concurrency,
			"lock_ttl":     c.Sync.LockTTL.String(),
			"interval":     c.Sync.Interval.String(),
			"timezone":     c.Sync.Timezone,
		},
		"storage": map[string]any{
			"data_dir":   c.GetDataDir(),
			"db_file":    c.DBPath(),
			"digest_dir": c.DigestDir(),
		},
		"narrative": map[string]any{
			"api_key":    c.Narrative.APIKey,
			"model":      c.Narrative.Model,
			"max_tokens": c.Narrative.MaxTokens,
		},
		"log": map[string]any{
			"level":  c.Log.Level,
			"format": c.Log.Format,
		},
		"server": map[string]any{
			"addr": c.Server.Addr,
		},
	}
}

func init() {
	configInitCmd.Flags().BoolVarP(&configForce, "force", "f", false, "overwrite an existing config file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}
