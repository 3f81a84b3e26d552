package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleConfig = `
manifest_path: /var/lib/matchingest/manifest.csv
categories: [player_stats, shots]
default_category: player_stats

bands:
  - partition: epl
    season: "2024"
    min_id: 100000
    max_id: 180000
  - partition: laliga
    season: "2024"
    min_id: 200000
    max_id: 260000
    max_consecutive_misses: 40

limits:
  delay: 1500ms
  chunk_size: 250
  max_consecutive_misses: 25
  flush_every: 50

source:
  mode: http
  base_url: https://example.com/matches/{id}
  timeout: 10s

storage:
  backend: local
  local_dir: /var/lib/matchingest/raw
  compress: true

metrics:
  enabled: true
  address: ":9090"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if got := time.Duration(cfg.Limits.Delay); got != 1500*time.Millisecond {
		t.Fatalf("delay = %v, want 1.5s", got)
	}
	if cfg.Limits.ChunkSize != 250 {
		t.Fatalf("chunk_size = %d, want 250", cfg.Limits.ChunkSize)
	}
	if len(cfg.Bands) != 2 {
		t.Fatalf("bands = %d, want 2", len(cfg.Bands))
	}
	if cfg.Bands[1].MaxConsecutiveMisses != 40 {
		t.Fatalf("band miss override = %d, want 40", cfg.Bands[1].MaxConsecutiveMisses)
	}
	if got := time.Duration(cfg.Source.Timeout); got != 10*time.Second {
		t.Fatalf("source timeout = %v, want 10s", got)
	}
	if !cfg.Storage.Compress {
		t.Fatal("storage compress not set")
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Address != ":9090" {
		t.Fatalf("metrics = %+v", cfg.Metrics)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
bands:
  - partition: epl
    season: "2024"
    min_id: 1
    max_id: 10
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ManifestPath != "manifest.csv" {
		t.Fatalf("manifest_path default = %q", cfg.ManifestPath)
	}
	if cfg.Storage.Backend != "local" {
		t.Fatalf("storage backend default = %q", cfg.Storage.Backend)
	}
	if len(cfg.Categories) != 1 || cfg.Categories[0] != cfg.DefaultCategory {
		t.Fatalf("categories default = %v", cfg.Categories)
	}
}

func TestLoadRejectsMissingBands(t *testing.T) {
	if _, err := Load(writeConfig(t, "manifest_path: m.csv\n")); err == nil {
		t.Fatal("expected error for config without bands")
	}
}

func TestLoadEnvOverridesDSN(t *testing.T) {
	t.Setenv("CATALOG_DSN", "postgres://user:pw@db/lineage")
	cfg, err := Load(writeConfig(t, `
bands:
  - partition: epl
    season: "2024"
    min_id: 1
    max_id: 10
catalog:
  dsn: postgres://file-value
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Catalog.DSN != "postgres://user:pw@db/lineage" {
		t.Fatalf("dsn = %q, env override lost", cfg.Catalog.DSN)
	}
}

func TestLoadBadDuration(t *testing.T) {
	_, err := Load(writeConfig(t, `
bands:
  - partition: epl
    season: "2024"
    min_id: 1
    max_id: 10
limits:
  delay: not-a-duration
`))
	if err == nil {
		t.Fatal("expected error for invalid duration")
	}
}
