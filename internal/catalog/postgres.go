package catalog

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// PostgresWriter implements Writer using PostgreSQL.
type PostgresWriter struct {
	pool *pgxpool.Pool
	cfg  Config
}

// NewPostgresWriter connects to the catalog database and ensures the
// schema exists.
func NewPostgresWriter(cfg Config) (*PostgresWriter, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("parse DSN: %w", err)
	}
	poolCfg.MaxConns = 5
	poolCfg.MinConns = 1
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	w := &PostgresWriter{pool: pool, cfg: cfg}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	slog.Info("connected to lineage catalog", "component", "catalog")
	return w, nil
}

// RecordRun inserts one run summary row.
func (w *PostgresWriter) RecordRun(ctx context.Context, rec RunRecord) error {
	query := `
		INSERT INTO ingest_runs
			(run_id, namespace, partition_key, category, season,
			 range_start, range_end, success_count, notfound_count, error_count,
			 breaker_tripped, gap_remaining, started_at, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (run_id, partition_key) DO NOTHING
	`
	_, err := w.pool.Exec(ctx, query,
		rec.RunID,
		w.cfg.Namespace,
		rec.Partition,
		rec.Category,
		rec.Season,
		rec.Start,
		rec.End,
		rec.Success,
		rec.NotFound,
		rec.Errors,
		rec.Tripped,
		rec.Remaining,
		rec.StartedAt,
		rec.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// RecordConsolidation inserts one consolidation lineage row.
func (w *PostgresWriter) RecordConsolidation(ctx context.Context, rec ConsolidationRecord) error {
	query := `
		INSERT INTO consolidations
			(namespace, category, row_count, partition_count, partial, artifact_path, producer, built_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := w.pool.Exec(ctx, query,
		w.cfg.Namespace,
		rec.Category,
		rec.Rows,
		rec.Partitions,
		rec.Partial,
		rec.Path,
		rec.Producer,
		rec.BuiltAt,
	)
	if err != nil {
		return fmt.Errorf("insert consolidation: %w", err)
	}
	return nil
}

// Close releases database connections.
func (w *PostgresWriter) Close() error {
	w.pool.Close()
	return nil
}
