// Package config loads and saves the YAML server configuration.
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// LogConfig controls the structured logger.
type LogConfig struct {
	Debug bool   `yaml:"debug" json:"debug"`
	Dir   string `yaml:"dir" json:"dir"`
}

// SyncConfig controls calendar ingestion.
type SyncConfig struct {
	// DefaultIntervalMin is used for sources that do not set their own interval.
	DefaultIntervalMin int `yaml:"default_interval_min" json:"default_interval_min"`

	// HorizonDays bounds recurrence expansion of calendar events.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days"`

	// FetchTimeout is applied to each calendar download (e.g. "30s").
	FetchTimeout string `yaml:"fetch_timeout" json:"fetch_timeout"`

	// RejectionCooldown is how long a rejected flight is suppressed from
	// re-detection (e.g. "24h").
	RejectionCooldown string `yaml:"rejection_cooldown" json:"rejection_cooldown"`
}

// ReconcileConfig controls tracked-aircraft reconciliation.
type ReconcileConfig struct {
	// Tolerance is the slack applied to each side of a user flight window.
	Tolerance string `yaml:"tolerance" json:"tolerance"`

	// SearchWindow widens the lookup around the edited flight window.
	SearchWindow string `yaml:"search_window" json:"search_window"`
}

// MatchConfig controls how candidates are matched against the flight log.
type MatchConfig struct {
	Tolerance string `yaml:"tolerance" json:"tolerance"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// DataDir holds the SQLite database and the instance lock file.
	DataDir string `yaml:"data_dir" json:"data_dir"`

	// StaticDir is served at / for the frontend bundle.
	StaticDir string `yaml:"static_dir" json:"static_dir"`

	Log       LogConfig       `yaml:"log" json:"log"`
	Sync      SyncConfig      `yaml:"sync" json:"sync"`
	Reconcile ReconcileConfig `yaml:"reconcile" json:"reconcile"`
	Match     MatchConfig     `yaml:"match" json:"match"`
}

const (
	defaultListen             = ":8099"
	defaultDataDir            = "/data"
	defaultStaticDir          = "./static"
	defaultSyncIntervalMin    = 15
	defaultHorizonDays        = 365
	defaultFetchTimeout       = "30s"
	defaultRejectionCooldown  = "24h"
	defaultReconcileTolerance = "1h"
	defaultSearchWindow       = "24h"
	defaultMatchTolerance     = "6h"
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:    defaultListen,
		DataDir:   defaultDataDir,
		StaticDir: defaultStaticDir,
		Sync: SyncConfig{
			DefaultIntervalMin: defaultSyncIntervalMin,
			HorizonDays:        defaultHorizonDays,
			FetchTimeout:       defaultFetchTimeout,
			RejectionCooldown:  defaultRejectionCooldown,
		},
		Reconcile: ReconcileConfig{
			Tolerance:    defaultReconcileTolerance,
			SearchWindow: defaultSearchWindow,
		},
		Match: MatchConfig{
			Tolerance: defaultMatchTolerance,
		},
	}
}

// Normalize fills in missing or invalid values with defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.DataDir == "" {
		c.DataDir = defaultDataDir
	}
	if c.StaticDir == "" {
		c.StaticDir = defaultStaticDir
	}
	if c.Sync.DefaultIntervalMin < 5 {
		c.Sync.DefaultIntervalMin = defaultSyncIntervalMin
	}
	if c.Sync.HorizonDays <= 0 {
		c.Sync.HorizonDays = defaultHorizonDays
	}
	c.Sync.FetchTimeout = normalizeDuration(c.Sync.FetchTimeout, defaultFetchTimeout)
	c.Sync.RejectionCooldown = normalizeDuration(c.Sync.RejectionCooldown, defaultRejectionCooldown)
	c.Reconcile.Tolerance = normalizeDuration(c.Reconcile.Tolerance, defaultReconcileTolerance)
	c.Reconcile.SearchWindow = normalizeDuration(c.Reconcile.SearchWindow, defaultSearchWindow)
	c.Match.Tolerance = normalizeDuration(c.Match.Tolerance, defaultMatchTolerance)
}

// normalizeDuration returns value if it parses as a non-negative duration,
// otherwise fallback.
func normalizeDuration(value, fallback string) string {
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		return fallback
	}
	return value
}

// FetchTimeout returns the parsed calendar fetch timeout.
func (c *Config) FetchTimeout() time.Duration {
	return mustDuration(c.Sync.FetchTimeout, defaultFetchTimeout)
}

// RejectionCooldown returns the parsed rejection cooldown.
func (c *Config) RejectionCooldown() time.Duration {
	return mustDuration(c.Sync.RejectionCooldown, defaultRejectionCooldown)
}

// ReconcileTolerance returns the parsed reconciliation tolerance.
func (c *Config) ReconcileTolerance() time.Duration {
	return mustDuration(c.Reconcile.Tolerance, defaultReconcileTolerance)
}

// ReconcileSearchWindow returns the parsed reconciliation search window.
func (c *Config) ReconcileSearchWindow() time.Duration {
	return mustDuration(c.Reconcile.SearchWindow, defaultSearchWindow)
}

// MatchTolerance returns the parsed flight log match tolerance.
func (c *Config) MatchTolerance() time.Duration {
	return mustDuration(c.Match.Tolerance, defaultMatchTolerance)
}

func mustDuration(value, fallback string) time.Duration {
	if d, err := time.ParseDuration(value); err == nil && d >= 0 {
		return d
	}
	d, _ := time.ParseDuration(fallback)
	return d
}

// Load loads configuration from the given YAML path.
//
// If the file does not exist a default config is written with 0600 perms
// and returned. Otherwise the file is unmarshalled and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return cfg, nil
}

// Save writes the configuration atomically (temp file + rename) with 0600
// permissions, creating the parent directory if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".flight-logger-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Save is a convenience method that delegates to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
