// Package config loads nycingest configuration from defaults, YAML files and
// the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// CurrentVersion is the config schema version written by `config init`.
const CurrentVersion = 1

// ProjectFileName is the per-directory config file.
const ProjectFileName = ".nycingest.yaml"

// Environment variables read by Load.
const (
	EnvAppKey       = "APP_KEY"
	EnvDomain       = "NYCINGEST_DOMAIN"
	EnvDataset      = "NYCINGEST_DATASET"
	EnvIndexName    = "NYCINGEST_INDEX_NAME"
	EnvIndexBackend = "NYCINGEST_INDEX_BACKEND"
	EnvDataDir      = "NYCINGEST_DATA_DIR"
	EnvLogLevel     = "NYCINGEST_LOG_LEVEL"
	EnvTimeout      = "NYCINGEST_TIMEOUT"
)

// Config represents the complete nycingest configuration.
type Config struct {
	Version int           `yaml:"version" json:"version"`
	Source  SourceConfig  `yaml:"source" json:"source"`
	Fetch   FetchConfig   `yaml:"fetch" json:"fetch"`
	Index   IndexConfig   `yaml:"index" json:"index"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// SourceConfig configures the SODA API the records are read from.
type SourceConfig struct {
	// Domain is the Socrata host, e.g. data.cityofnewyork.us.
	Domain string `yaml:"domain" json:"domain"`

	// Dataset is the dataset identifier, e.g. nc67-uf89.
	Dataset string `yaml:"dataset" json:"dataset"`

	// AppKey is the SODA application token. Prefer the APP_KEY variable;
	// it is never printed by `config show`.
	AppKey string `yaml:"app_key,omitempty" json:"-"`

	// Timeout bounds each HTTP request (Go duration, e.g. "30s"). "0" disables it.
	Timeout string `yaml:"timeout" json:"timeout"`

	// Endpoint overrides https://<domain>, e.g. for a local mirror.
	Endpoint string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
}

// FetchConfig holds defaults for the fetch command.
type FetchConfig struct {
	// PageSize is used when --page-size is not given. 0 means the flag is required.
	PageSize int `yaml:"page_size" json:"page_size"`

	// OutputFormat is "values" or "records".
	OutputFormat string `yaml:"output_format" json:"output_format"`
}

// IndexConfig configures the local search index.
type IndexConfig struct {
	Name    string `yaml:"name" json:"name"`
	Backend string `yaml:"backend" json:"backend"`

	// DataDir holds the index files. A leading ~/ is expanded.
	DataDir string `yaml:"data_dir" json:"data_dir"`

	// LockWait is how long a run waits for another run's lock ("0" fails at once).
	LockWait string `yaml:"lock_wait" json:"lock_wait"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
}

// NewConfig returns a Config with default values.
func NewConfig() *Config {
	return &Config{
		Version: CurrentVersion,
		Source: SourceConfig{
			Domain:  "data.cityofnewyork.us",
			Dataset: "nc67-uf89",
			Timeout: "30s",
		},
		Fetch: FetchConfig{
			OutputFormat: "values",
		},
		Index: IndexConfig{
			Name:     "nycproject",
			Backend:  "bleve",
			DataDir:  defaultDataDir(),
			LockWait: "0s",
		},
		Logging: LoggingConfig{
			Level: "warn",
		},
	}
}

// defaultDataDir returns ~/.nycingest/data.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".nycingest", "data")
	}
	return filepath.Join(home, ".nycingest", "data")
}

// GetUserConfigPath returns the path to the user/global configuration file.
// It follows XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/nycingest/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/nycingest/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "nycingest", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "nycingest", "config.yaml")
	}
	return filepath.Join(home, ".config", "nycingest", "config.yaml")
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// Load loads configuration for the given working directory.
// It applies configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/nycingest/config.yaml)
//  3. Project config (.nycingest.yaml in dir)
//  4. Environment variables (APP_KEY, NYCINGEST_*)
//
// Command-line flags are applied on top by the caller.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if path := GetUserConfigPath(); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
	}

	if path := filepath.Join(dir, ProjectFileName); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()
	cfg.Index.DataDir = expandHome(cfg.Index.DataDir)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	mergeString(&c.Source.Domain, other.Source.Domain)
	mergeString(&c.Source.Dataset, other.Source.Dataset)
	mergeString(&c.Source.AppKey, other.Source.AppKey)
	mergeString(&c.Source.Timeout, other.Source.Timeout)
	mergeString(&c.Source.Endpoint, other.Source.Endpoint)

	if other.Fetch.PageSize != 0 {
		c.Fetch.PageSize = other.Fetch.PageSize
	}
	mergeString(&c.Fetch.OutputFormat, other.Fetch.OutputFormat)

	mergeString(&c.Index.Name, other.Index.Name)
	mergeString(&c.Index.Backend, other.Index.Backend)
	mergeString(&c.Index.DataDir, other.Index.DataDir)
	mergeString(&c.Index.LockWait, other.Index.LockWait)

	mergeString(&c.Logging.Level, other.Logging.Level)
}

func mergeString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	// APP_KEY is set-but-empty aware: an exported empty key still overrides
	if v, ok := os.LookupEnv(EnvAppKey); ok {
		c.Source.AppKey = v
	}
	mergeString(&c.Source.Domain, os.Getenv(EnvDomain))
	mergeString(&c.Source.Dataset, os.Getenv(EnvDataset))
	mergeString(&c.Source.Timeout, os.Getenv(EnvTimeout))
	mergeString(&c.Index.Name, os.Getenv(EnvIndexName))
	mergeString(&c.Index.Backend, os.Getenv(EnvIndexBackend))
	mergeString(&c.Index.DataDir, os.Getenv(EnvDataDir))
	mergeString(&c.Logging.Level, os.Getenv(EnvLogLevel))
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Source.Domain) == "" {
		return fmt.Errorf("source.domain must not be empty")
	}
	if strings.TrimSpace(c.Source.Dataset) == "" {
		return fmt.Errorf("source.dataset must not be empty")
	}
	if _, err := parseDuration(c.Source.Timeout); err != nil {
		return fmt.Errorf("source.timeout: %w", err)
	}
	if _, err := parseDuration(c.Index.LockWait); err != nil {
		return fmt.Errorf("index.lock_wait: %w", err)
	}

	if c.Fetch.PageSize < 0 {
		return fmt.Errorf("fetch.page_size must be non-negative, got %d", c.Fetch.PageSize)
	}
	validFormats := map[string]bool{"values": true, "records": true}
	if !validFormats[strings.ToLower(c.Fetch.OutputFormat)] {
		return fmt.Errorf("fetch.output_format must be 'values' or 'records', got %s", c.Fetch.OutputFormat)
	}

	if strings.TrimSpace(c.Index.Name) == "" {
		return fmt.Errorf("index.name must not be empty")
	}
	validBackends := map[string]bool{"bleve": true, "sqlite": true}
	if !validBackends[strings.ToLower(c.Index.Backend)] {
		return fmt.Errorf("index.backend must be 'bleve' or 'sqlite', got %s", c.Index.Backend)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}

	return nil
}

// Timeout returns the parsed source timeout (0 when disabled).
func (c *Config) Timeout() time.Duration {
	d, _ := parseDuration(c.Source.Timeout)
	return d
}

// LockWait returns the parsed lock wait (0 when disabled).
func (c *Config) LockWait() time.Duration {
	d, _ := parseDuration(c.Index.LockWait)
	return d
}

// parseDuration accepts Go durations plus "" and "0".
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("must be non-negative, got %s", s)
	}
	return d, nil
}

// WriteYAML writes the configuration to a YAML file, creating parent
// directories as needed.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Redacted returns a copy safe to print: the app key is masked.
func (c *Config) Redacted() *Config {
	out := *c
	if out.Source.AppKey != "" {
		out.Source.AppKey = "********"
	}
	return &out
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
