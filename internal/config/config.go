// Package config provides configuration loading and structs for the docsink daemon.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug        bool         `yaml:"debug"`
	DatabasePath string       `yaml:"database_path"`
	Server       ServerConfig `yaml:"server"`
	Watch        WatchConfig  `yaml:"watch"`
	Ingest       IngestConfig `yaml:"ingest"`
	Images       ImagesConfig `yaml:"images"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// WatchConfig holds directory watch and queue settings.
type WatchConfig struct {
	Directories      []string `yaml:"directories"`
	Recursive        *bool    `yaml:"recursive"`
	Extensions       []string `yaml:"extensions"`
	ExcludePatterns  []string `yaml:"exclude_patterns"`
	Debounce         Duration `yaml:"debounce"`
	MaxConcurrent    int      `yaml:"max_concurrent"`
	QueueSize        int      `yaml:"queue_size"`
	FailureThreshold int      `yaml:"failure_threshold"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// IngestConfig holds pipeline settings.
type IngestConfig struct {
	MaxFileSizeMB     int      `yaml:"max_file_size_mb"`
	ConversionTimeout Duration `yaml:"conversion_timeout"`
	FormulaEnrichment *bool    `yaml:"formula_enrichment"`
}

// FormulaEnrichmentOrDefault returns whether formula enrichment is on; defaults to true.
func (i *IngestConfig) FormulaEnrichmentOrDefault() bool {
	if i.FormulaEnrichment != nil {
		return *i.FormulaEnrichment
	}
	return true
}

// MaxFileSizeBytes returns the size cap in bytes.
func (i *IngestConfig) MaxFileSizeBytes() int64 {
	return int64(i.MaxFileSizeMB) * 1024 * 1024
}

// ImagesConfig holds image artifact storage settings.
type ImagesConfig struct {
	Enabled        *bool    `yaml:"enabled"`
	BasePath       string   `yaml:"base_path"`
	MaxSizeMB      int      `yaml:"max_size_mb"`
	AllowedFormats []string `yaml:"allowed_formats"`
	CleanupFailed  *bool    `yaml:"cleanup_failed"`
	Scale          float64  `yaml:"scale"`
}

// EnabledOrDefault returns whether image extraction is on; defaults to true.
func (c *ImagesConfig) EnabledOrDefault() bool {
	if c.Enabled != nil {
		return *c.Enabled
	}
	return true
}

// CleanupFailedOrDefault returns whether partial image files are removed; defaults to true.
func (c *ImagesConfig) CleanupFailedOrDefault() bool {
	if c.CleanupFailed != nil {
		return *c.CleanupFailed
	}
	return true
}

// MaxSizeBytes returns the per-image size cap in bytes.
func (c *ImagesConfig) MaxSizeBytes() int64 {
	return int64(c.MaxSizeMB) * 1024 * 1024
}

// Duration wraps time.Duration so YAML values like "750ms" or "5m" parse.
type Duration time.Duration

// UnmarshalYAML parses a duration string; bare numbers are seconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"750ms\": %w", err)
	}
	if s == "" {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		secs, serr := time.ParseDuration(s + "s")
		if serr != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		parsed = secs
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration in Go's string form.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Load reads and parses the config file at path, applies defaults, applies
// DOCSINK_* environment overrides, expands paths, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	applyEnv(&cfg)

	configDir := filepath.Dir(path)
	cfg.DatabasePath = expandPath(cfg.DatabasePath, configDir)
	cfg.Images.BasePath = expandPath(cfg.Images.BasePath, configDir)
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a config with all defaults and env overrides applied,
// for running without a config file.
func Default() *Config {
	var cfg Config
	ApplyDefaults(&cfg)
	applyEnv(&cfg)
	return &cfg
}

// Save writes the config to path, creating parent directories as needed.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate checks the config for values the daemon cannot run with.
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("database_path must not be empty")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Ingest.MaxFileSizeMB < 1 || c.Ingest.MaxFileSizeMB > 1000 {
		return fmt.Errorf("ingest.max_file_size_mb %d out of range (1-1000)", c.Ingest.MaxFileSizeMB)
	}
	if c.Watch.MaxConcurrent < 1 {
		return fmt.Errorf("watch.max_concurrent must be at least 1")
	}
	if c.Watch.QueueSize < 1 {
		return fmt.Errorf("watch.queue_size must be at least 1")
	}
	if c.Images.Scale != 0 && (c.Images.Scale < 0.5 || c.Images.Scale > 4.0) {
		return fmt.Errorf("images.scale %.2f out of range (0.5-4.0)", c.Images.Scale)
	}
	return nil
}

// DefaultPath returns the conventional config location under the user's home.
func DefaultPath() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "docsink", "config.yaml")
	}
	return "config.yaml"
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
