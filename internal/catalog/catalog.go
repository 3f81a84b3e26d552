// Package catalog records run and consolidation lineage in PostgreSQL.
// The catalog is optional: an empty DSN yields a no-op writer and no
// code path ever fails a run because the catalog is down.
package catalog

import (
	"context"
	"time"
)

// Config configures the lineage catalog.
type Config struct {
	PostgresDSN string
	Namespace   string
}

// RunRecord summarizes one fetch chunk.
type RunRecord struct {
	RunID     string
	Partition string
	Category  string
	Season    string
	Start     int64
	End       int64
	Success   int
	NotFound  int
	Errors    int
	Tripped   bool
	Remaining int64
	StartedAt time.Time
	Duration  time.Duration
}

// ConsolidationRecord summarizes one consolidated artifact build.
type ConsolidationRecord struct {
	Category   string
	Rows       int64
	Partitions int
	Partial    bool
	Path       string
	Producer   string
	BuiltAt    time.Time
}

// Writer persists lineage records.
type Writer interface {
	RecordRun(ctx context.Context, rec RunRecord) error
	RecordConsolidation(ctx context.Context, rec ConsolidationRecord) error
	Close() error
}

// NewWriter creates a catalog writer; a no-op one when no DSN is set.
func NewWriter(cfg Config) (Writer, error) {
	if cfg.PostgresDSN == "" {
		return noopWriter{}, nil
	}
	return NewPostgresWriter(cfg)
}

type noopWriter struct{}

func (noopWriter) RecordRun(_ context.Context, _ RunRecord) error { return nil }
func (noopWriter) RecordConsolidation(_ context.Context, _ ConsolidationRecord) error {
	return nil
}
func (noopWriter) Close() error { return nil }
