// ABOUTME: Layered configuration for ringhealth: defaults, YAML file, then environment.
// ABOUTME: Validates settings and builds client, sync, and storage settings from them.

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/harperreed/ringhealth/internal/logging"
	"github.com/harperreed/ringhealth/internal/models"
	"github.com/harperreed/ringhealth/internal/narrative"
	"github.com/harperreed/ringhealth/internal/oura"
	"github.com/harperreed/ringhealth/internal/storage"
	ringsync "github.com/harperreed/ringhealth/internal/sync"
)

const (
	// EnvPrefix prefixes every environment override; "__" separates sections.
	EnvPrefix = "RINGHEALTH_"
	// ConfigPathEnvVar overrides the config file location.
	ConfigPathEnvVar = "RINGHEALTH_CONFIG"

	// Fallbacks read when the namespaced keys are unset.
	OuraTokenEnvVar    = "OURA_API_TOKEN"
	AnthropicKeyEnvVar = "ANTHROPIC_API_KEY"
)

// ErrMissingToken is returned by RequireOuraToken when no token is configured.
var ErrMissingToken = errors.New("oura API token not configured: set oura.token, RINGHEALTH_OURA__TOKEN or OURA_API_TOKEN")

// Config stores ringhealth configuration.
type Config struct {
	Oura      OuraConfig      `koanf:"oura"`
	Sync      SyncConfig      `koanf:"sync"`
	Storage   StorageConfig   `koanf:"storage"`
	Narrative NarrativeConfig `koanf:"narrative"`
	Log       LogConfig       `koanf:"log"`
	Server    ServerConfig    `koanf:"server"`
}

// OuraConfig configures the vendor API client.
type OuraConfig struct {
	Token         string        `koanf:"token"`
	BaseURL       string        `koanf:"base_url" validate:"required,url"`
	Timeout       time.Duration `koanf:"timeout" validate:"gt=0"`
	RatePerSecond float64       `koanf:"rate_per_second" validate:"gte=0"`
	Burst         int           `koanf:"burst" validate:"gte=0"`
	MaxRetries    int           `koanf:"max_retries" validate:"gte=-1,lte=10"`
}

// SyncConfig configures full syncs.
type SyncConfig struct {
	DaysBack    int           `koanf:"days_back" validate:"gte=0,lte=3650"`
	Streams     []string      `koanf:"streams"`
	EmptyPolicy string        `koanf:"empty_policy" validate:"oneof=skip flag"`
	Concurrency int           `koanf:"concurrency" validate:"gte=1,lte=16"`
	LockTTL     time.Duration `koanf:"lock_ttl" validate:"gt=0"`

	// Interval between scheduled syncs under "serve"; 0 disables them.
	Interval time.Duration `koanf:"interval" validate:"gte=0"`
	Timezone string        `koanf:"timezone"`
}

// StorageConfig locates the database and digest cache.
// DataDir supports ~ expansion. Defaults to ~/.local/share/ringhealth.
type StorageConfig struct {
	DataDir   string `koanf:"data_dir"`
	DBFile    string `koanf:"db_file" validate:"required"`
	DigestDir string `koanf:"digest_dir"`
}

// NarrativeConfig configures the LLM collaborator.
type NarrativeConfig struct {
	APIKey    string `koanf:"api_key"`
	Model     string `koanf:"model" validate:"required"`
	MaxTokens int    `koanf:"max_tokens" validate:"gte=256,lte=16384"`
	BaseURL   string `koanf:"base_url" validate:"omitempty,url"`
}

// LogConfig configures zerolog output.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=console json"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr string `koanf:"addr" validate:"required"`
}

// Default returns the built-in settings, applied before any file or env layer.
func Default() *Config {
	return &Config{
		Oura: OuraConfig{
			BaseURL:       oura.DefaultBaseURL,
			Timeout:       30 * time.Second,
			RatePerSecond: 5,
			Burst:         5,
			MaxRetries:    5,
		},
		Sync: SyncConfig{
			DaysBack:    60,
			Streams:     streamNames(models.AllStreams),
			EmptyPolicy: string(ringsync.EmptySkip),
			Concurrency: 4,
			LockTTL:     10 * time.Minute,
			Interval:    6 * time.Hour,
			Timezone:    "Local",
		},
		Storage: StorageConfig{
			DBFile: "ringhealth.db",
		},
		Narrative: NarrativeConfig{
			Model:     "claude-sonnet-4-20250514",
			MaxTokens: 2048,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8477",
		},
	}
}

// GetConfigPath returns the config file path.
func GetConfigPath() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		return ExpandPath(p)
	}
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, _ := os.UserHomeDir()
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "ringhealth", "config.yaml")
}

// Load reads configuration from defaults, the YAML file at path (or
// GetConfigPath when empty; a missing file is fine), and the environment.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path == "" {
		path = GetConfigPath()
	} else {
		path = ExpandPath(path)
	}
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("stat config file %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}
	if err := splitStreams(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.Oura.Token == "" {
		cfg.Oura.Token = os.Getenv(OuraTokenEnvVar)
	}
	if cfg.Narrative.APIKey == "" {
		cfg.Narrative.APIKey = os.Getenv(AnthropicKeyEnvVar)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// envKey maps RINGHEALTH_SYNC__DAYS_BACK to sync.days_back.
func envKey(s string) string {
	if s == ConfigPathEnvVar {
		return ""
	}
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(key, "__", ".")
}

// splitStreams accepts a comma-separated stream list from the environment.
func splitStreams(k *koanf.Koanf) error {
	const key = "sync.streams"
	s, ok := k.Get(key).(string)
	if !ok {
		return nil
	}
	var parts []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if err := k.Set(key, parts); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks field constraints, stream names, and the time zone.
func (c *Config) Validate() error {
	if err := getValidator().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q (got %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}
	if _, err := models.ParseStreams(c.Sync.Streams); err != nil {
		return fmt.Errorf("sync.streams: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// RequireOuraToken fails when no vendor token is configured.
func (c *Config) RequireOuraToken() error {
	if strings.TrimSpace(c.Oura.Token) == "" {
		return ErrMissingToken
	}
	return nil
}

// Location resolves sync.timezone. "Local" and "" mean the system zone.
func (c *Config) Location() (*time.Location, error) {
	switch c.Sync.Timezone {
	case "", "Local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Sync.Timezone)
	if err != nil {
		return nil, fmt.Errorf("sync.timezone: %w", err)
	}
	return loc, nil
}

// GetDataDir returns the configured data directory with ~ expanded,
// defaulting to the standard XDG data directory.
func (c *Config) GetDataDir() string {
	if c.Storage.DataDir == "" {
		return storage.DataDir()
	}
	return ExpandPath(c.Storage.DataDir)
}

// DBPath returns the SQLite database path.
func (c *Config) DBPath() string {
	if filepath.IsAbs(c.Storage.DBFile) {
		return c.Storage.DBFile
	}
	return filepath.Join(c.GetDataDir(), c.Storage.DBFile)
}

// DigestDir returns the digest cache directory.
func (c *Config) DigestDir() string {
	if c.Storage.DigestDir != "" {
		return ExpandPath(c.Storage.DigestDir)
	}
	return filepath.Join(c.GetDataDir(), "digests")
}

// OpenStorage opens the configured database.
func (c *Config) OpenStorage() (*storage.DB, error) {
	return storage.Open(c.DBPath())
}

// OuraClient returns client settings.
func (c *Config) OuraClient() oura.Config {
	return oura.Config{
		Token:         c.Oura.Token,
		BaseURL:       c.Oura.BaseURL,
		Timeout:       c.Oura.Timeout,
		RatePerSecond: c.Oura.RatePerSecond,
		Burst:         c.Oura.Burst,
		MaxRetries:    c.Oura.MaxRetries,
	}
}

// SyncSettings returns orchestrator settings. Call after Validate.
func (c *Config) SyncSettings() (ringsync.Config, error) {
	streams, err := models.ParseStreams(c.Sync.Streams)
	if err != nil {
		return ringsync.Config{}, err
	}
	policy, err := ringsync.ParseEmptyPolicy(c.Sync.EmptyPolicy)
	if err != nil {
		return ringsync.Config{}, err
	}
	loc, err := c.Location()
	if err != nil {
		return ringsync.Config{}, err
	}
	return ringsync.Config{
		Streams:     streams,
		EmptyPolicy: policy,
		Concurrency: c.Sync.Concurrency,
		LockTTL:     c.Sync.LockTTL,
		Location:    loc,
	}, nil
}

// AnthropicSettings returns narrator settings.
func (c *Config) AnthropicSettings() narrative.AnthropicConfig {
	return narrative.AnthropicConfig{
		APIKey:    c.Narrative.APIKey,
		Model:     c.Narrative.Model,
		MaxTokens: c.Narrative.MaxTokens,
		BaseURL:   c.Narrative.BaseURL,
	}
}

// LogSettings returns logger settings.
func (c *Config) LogSettings() logging.Config {
	return logging.Config{Level: c.Log.Level, Format: c.Log.Format}
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if path == "" {
		return ""
	}
	if path == "~" {
		home, _ := os.UserHomeDir()
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// Save writes config to path as YAML, or to GetConfigPath when path is empty.
// Durations are written in their string form.
func (c *Config) Save(path string) error {
	if path == "" {
		path = GetConfigPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	k := koanf.New(".")
	if err := k.Load(structs.Provider(c, "koanf"), nil); err != nil {
		return fmt.Errorf("flatten config: %w", err)
	}
	for _, key := range k.Keys() {
		if d, ok := k.Get(key).(time.Duration); ok {
			if err := k.Set(key, d.String()); err != nil {
				return fmt.Errorf("set %s: %w", key, err)
			}
		}
	}

	data, err := k.Marshal(yaml.Parser())
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

func streamNames(kinds []models.StreamKind) []string {
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	return out
}
