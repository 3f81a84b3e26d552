// Package config loads the YAML configuration file and applies
// environment overrides for the values that carry credentials.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pannadata/matchingest/internal/band"
	"github.com/pannadata/matchingest/internal/consolidate"
	"github.com/pannadata/matchingest/internal/engine"
	"github.com/pannadata/matchingest/internal/fetch"
	"github.com/pannadata/matchingest/internal/logging"
	"github.com/pannadata/matchingest/internal/metrics"
	"github.com/pannadata/matchingest/internal/notify"
	"github.com/pannadata/matchingest/internal/storage"
)

// Duration accepts time.ParseDuration strings ("1s", "500ms") in YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// LimitsConfig holds the fetch pacing and chunking knobs.
type LimitsConfig struct {
	Delay                Duration `yaml:"delay"`
	ChunkSize            int64    `yaml:"chunk_size"`
	MaxConsecutiveMisses int      `yaml:"max_consecutive_misses"`
	FlushEvery           int      `yaml:"flush_every"`
}

// Engine converts the section into an engine configuration.
func (l LimitsConfig) Engine() engine.Config {
	return engine.Config{
		Delay:                time.Duration(l.Delay),
		ChunkSize:            l.ChunkSize,
		MaxConsecutiveMisses: l.MaxConsecutiveMisses,
		FlushEvery:           l.FlushEvery,
	}
}

// SourceConfig configures the remote fetcher.
type SourceConfig struct {
	Mode      string   `yaml:"mode"`
	BaseURL   string   `yaml:"base_url"`
	UserAgent string   `yaml:"user_agent"`
	Timeout   Duration `yaml:"timeout"`
}

// Fetch converts the section into a fetcher configuration.
func (s SourceConfig) Fetch() fetch.SourceConfig {
	return fetch.SourceConfig{
		Mode:      s.Mode,
		BaseURL:   s.BaseURL,
		UserAgent: s.UserAgent,
		Timeout:   time.Duration(s.Timeout),
	}
}

// NotifyConfig configures the optional webhook emitter.
type NotifyConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Endpoint string   `yaml:"endpoint"`
	Timeout  Duration `yaml:"timeout"`
}

// Notify converts the section into an emitter configuration.
func (n NotifyConfig) Notify() notify.Config {
	return notify.Config{
		Enabled:  n.Enabled,
		Endpoint: n.Endpoint,
		Timeout:  time.Duration(n.Timeout),
	}
}

// CatalogConfig configures the optional PostgreSQL lineage catalog.
type CatalogConfig struct {
	DSN       string `yaml:"dsn"`
	Namespace string `yaml:"namespace"`
}

// Config is the full process configuration.
type Config struct {
	ManifestPath    string   `yaml:"manifest_path"`
	Categories      []string `yaml:"categories"`
	DefaultCategory string   `yaml:"default_category"`

	Bands []band.Band `yaml:"bands"`

	Limits      LimitsConfig       `yaml:"limits"`
	Source      SourceConfig       `yaml:"source"`
	Storage     storage.Config     `yaml:"storage"`
	Consolidate consolidate.Config `yaml:"consolidate"`
	Logging     logging.Config     `yaml:"logging"`
	Metrics     metrics.Config     `yaml:"metrics"`
	Catalog     CatalogConfig      `yaml:"catalog"`
	Notify      NotifyConfig       `yaml:"notify"`
}

// Load reads and validates a configuration file. Credentials can be
// supplied via CATALOG_DSN and STORAGE_BUCKET instead of the file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if v := os.Getenv("CATALOG_DSN"); v != "" {
		cfg.Catalog.DSN = v
	}
	if v := os.Getenv("STORAGE_BUCKET"); v != "" {
		cfg.Storage.Bucket = v
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		ManifestPath:    "manifest.csv",
		DefaultCategory: "match_events",
		Storage: storage.Config{
			Backend:  "local",
			LocalDir: "./data",
		},
		Consolidate: consolidate.Config{
			OutDir: "./consolidated",
		},
		Logging: logging.Config{
			Format: "text",
			Level:  "info",
		},
	}
}

func (c *Config) validate() error {
	if len(c.Bands) == 0 {
		return fmt.Errorf("config: at least one band is required")
	}
	if c.ManifestPath == "" {
		return fmt.Errorf("config: manifest_path is required")
	}
	if len(c.Categories) == 0 {
		c.Categories = []string{c.DefaultCategory}
	}
	if c.DefaultCategory == "" {
		c.DefaultCategory = c.Categories[0]
	}
	return nil
}
