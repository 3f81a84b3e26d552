// Package consolidate folds the many small per-id records into one
// parquet artifact per category. A rebuild enumerates raw storage and
// rewrites the artifact wholesale, so each artifact carries a sidecar
// manifest describing which partitions it contains; the sidecar is what
// lets a later rebuild refuse to silently drop a partition whose raw
// records are not present locally.
package consolidate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/pannadata/matchingest/internal/catalog"
	"github.com/pannadata/matchingest/internal/metrics"
	"github.com/pannadata/matchingest/internal/notify"
	"github.com/pannadata/matchingest/internal/storage"
)

// ErrIncompletePartitionSet means the local raw records do not cover
// every partition the existing artifact contains, and rebuilding would
// silently truncate it.
var ErrIncompletePartitionSet = errors.New("incomplete partition set")

// Row is the consolidated artifact schema. Payload is the raw record
// body as fetched; consolidation never inspects it.
type Row struct {
	ID        int64  `parquet:"id"`
	Partition string `parquet:"partition"`
	Season    string `parquet:"season"`
	Payload   []byte `parquet:"payload,zstd"`
}

// ArtifactManifest is the sidecar written next to each artifact.
type ArtifactManifest struct {
	Category   string           `json:"category"`
	Rows       int64            `json:"rows"`
	Partitions map[string]int64 `json:"partitions"`
	Producer   string           `json:"producer"`
	CreatedAt  time.Time        `json:"created_at"`
}

// Result reports one completed consolidation.
type Result struct {
	Category   string
	Path       string
	Rows       int64
	Partitions []string
	Partial    bool
	Duration   time.Duration
}

// Config configures artifact output.
type Config struct {
	OutDir string `yaml:"out_dir"`
}

// Deps are the optional collaborators; any of them may be nil.
type Deps struct {
	Metrics *metrics.Metrics
	Catalog catalog.Writer
	Emitter notify.Emitter
	Log     *slog.Logger
}

// Consolidator builds per-category artifacts from raw partitioned
// storage.
type Consolidator struct {
	store    storage.RecordStore
	outDir   string
	producer string
	met      *metrics.Metrics
	cat      catalog.Writer
	emitter  notify.Emitter
	log      *slog.Logger
}

// New creates a consolidator writing artifacts under cfg.OutDir.
func New(store storage.RecordStore, cfg Config, producer string, deps Deps) *Consolidator {
	log := deps.Log
	if log == nil {
		log = slog.With("component", "consolidate")
	}
	return &Consolidator{
		store:    store,
		outDir:   cfg.OutDir,
		producer: producer,
		met:      deps.Metrics,
		cat:      deps.Catalog,
		emitter:  deps.Emitter,
		log:      log,
	}
}

func (c *Consolidator) artifactPath(category string) string {
	return filepath.Join(c.outDir, category+".parquet")
}

func (c *Consolidator) sidecarPath(category string) string {
	return filepath.Join(c.outDir, category+"_manifest.json")
}

// Rebuild replaces the artifact for a category with the full contents
// of raw storage. When a previous artifact exists, the caller must
// either assert with synced that all partitions' raw records are
// present locally, or the local records must cover at least every
// partition and row count the previous artifact holds; otherwise the
// rebuild fails with ErrIncompletePartitionSet rather than shrinking
// the artifact.
func (c *Consolidator) Rebuild(ctx context.Context, category string, synced bool) (*Result, error) {
	start := time.Now()

	rows, counts, err := c.collect(ctx, category, "")
	if err != nil {
		c.met.ObserveConsolidation(category, 0, time.Since(start), err)
		return nil, err
	}

	prev, err := c.readSidecar(category)
	if err != nil {
		return nil, err
	}
	if prev != nil {
		if err := checkCoverage(prev, counts, synced); err != nil {
			c.met.ObserveConsolidation(category, 0, time.Since(start), err)
			return nil, err
		}
		for p, n := range prev.Partitions {
			if counts[p] < n {
				c.log.Warn("artifact partition shrinking",
					"category", category,
					"partition", p,
					"previous_rows", n,
					"new_rows", counts[p],
				)
			}
		}
	}

	res, err := c.write(ctx, category, rows, counts, false, start)
	if err != nil {
		c.met.ObserveConsolidation(category, 0, time.Since(start), err)
		return nil, err
	}
	return res, nil
}

// Merge replaces one partition's rows inside the existing artifact,
// leaving every other partition's rows untouched. It is the safe path
// when only that partition's raw records are present locally.
func (c *Consolidator) Merge(ctx context.Context, category, partition string) (*Result, error) {
	start := time.Now()

	fresh, counts, err := c.collect(ctx, category, partition)
	if err != nil {
		c.met.ObserveConsolidation(category, 0, time.Since(start), err)
		return nil, err
	}

	var rows []Row
	prev, err := c.readSidecar(category)
	if err != nil {
		return nil, err
	}
	if prev != nil {
		existing, err := parquet.ReadFile[Row](c.artifactPath(category))
		if err != nil {
			return nil, fmt.Errorf("read artifact %s: %w", c.artifactPath(category), err)
		}
		for _, r := range existing {
			if r.Partition != partition {
				rows = append(rows, r)
			}
		}
		for p, n := range prev.Partitions {
			if p != partition {
				counts[p] = n
			}
		}
	}
	rows = append(rows, fresh...)
	sortRows(rows)

	res, err := c.write(ctx, category, rows, counts, true, start)
	if err != nil {
		c.met.ObserveConsolidation(category, 0, time.Since(start), err)
		return nil, err
	}
	return res, nil
}

// collect reads every raw record for a category, optionally restricted
// to one partition, deduplicated by (partition, id) and sorted.
func (c *Consolidator) collect(ctx context.Context, category, onlyPartition string) ([]Row, map[string]int64, error) {
	var rows []Row
	counts := make(map[string]int64)
	seen := make(map[string]map[int64]bool)

	err := c.store.Scan(ctx, category, func(partition, season string, id int64) error {
		if onlyPartition != "" && partition != onlyPartition {
			return nil
		}
		if seen[partition] == nil {
			seen[partition] = make(map[int64]bool)
		}
		if seen[partition][id] {
			return nil
		}
		seen[partition][id] = true

		payload, err := c.store.Read(ctx, storage.RecordRef{
			Category:  category,
			Partition: partition,
			Season:    season,
			ID:        id,
		})
		if err != nil {
			return fmt.Errorf("read %s/%s/%d: %w", partition, season, id, err)
		}
		rows = append(rows, Row{ID: id, Partition: partition, Season: season, Payload: payload})
		counts[partition]++
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("scan %s: %w", category, err)
	}
	sortRows(rows)
	return rows, counts, nil
}

func sortRows(rows []Row) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Partition != rows[j].Partition {
			return rows[i].Partition < rows[j].Partition
		}
		return rows[i].ID < rows[j].ID
	})
}

// checkCoverage compares the local partition row counts against the
// previous sidecar. synced waives the check entirely.
func checkCoverage(prev *ArtifactManifest, counts map[string]int64, synced bool) error {
	if synced {
		return nil
	}
	var missing []string
	for p, n := range prev.Partitions {
		if counts[p] == 0 {
			missing = append(missing, p)
		} else if counts[p] < n {
			missing = append(missing, fmt.Sprintf("%s (have %d rows, artifact has %d)", p, counts[p], n))
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("%w: local records missing partitions %v (pass --synced after syncing all partitions, or use --partition for a partial merge)",
			ErrIncompletePartitionSet, missing)
	}
	return nil
}

func (c *Consolidator) readSidecar(category string) (*ArtifactManifest, error) {
	data, err := os.ReadFile(c.sidecarPath(category))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read sidecar: %w", err)
	}
	var m ArtifactManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse sidecar %s: %w", c.sidecarPath(category), err)
	}
	return &m, nil
}

// write produces the artifact and its sidecar, both via
// write-new-then-rename so a crash never leaves a torn artifact.
func (c *Consolidator) write(ctx context.Context, category string, rows []Row, counts map[string]int64, partial bool, start time.Time) (*Result, error) {
	if err := os.MkdirAll(c.outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	path := c.artifactPath(category)
	tmp := path + ".tmp"
	if err := parquet.WriteFile(tmp, rows); err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("write artifact: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("commit artifact: %w", err)
	}

	total := int64(len(rows))
	sidecar := ArtifactManifest{
		Category:   category,
		Rows:       total,
		Partitions: counts,
		Producer:   c.producer,
		CreatedAt:  time.Now().UTC(),
	}
	if err := c.writeSidecar(category, sidecar); err != nil {
		return nil, err
	}

	partitions := make([]string, 0, len(counts))
	for p := range counts {
		partitions = append(partitions, p)
	}
	sort.Strings(partitions)

	res := &Result{
		Category:   category,
		Path:       path,
		Rows:       total,
		Partitions: partitions,
		Partial:    partial,
		Duration:   time.Since(start),
	}

	c.log.Info("consolidation complete",
		"category", category,
		"rows", total,
		"partitions", len(partitions),
		"partial", partial,
		"path", path,
		"duration", res.Duration.String(),
	)
	c.met.ObserveConsolidation(category, total, res.Duration, nil)
	c.recordLineage(ctx, res)
	c.emitEvent(ctx, res)

	return res, nil
}

func (c *Consolidator) emitEvent(ctx context.Context, res *Result) {
	if c.emitter == nil {
		return
	}
	err := c.emitter.Emit(ctx, notify.Event{
		Type:      "consolidation_complete",
		Category:  res.Category,
		Rows:      res.Rows,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		c.log.Warn("webhook emit failed", "error", err)
	}
}

func (c *Consolidator) writeSidecar(category string, m ArtifactManifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal sidecar: %w", err)
	}
	path := c.sidecarPath(category)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write sidecar: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("commit sidecar: %w", err)
	}
	return nil
}

func (c *Consolidator) recordLineage(ctx context.Context, res *Result) {
	if c.cat == nil {
		return
	}
	err := c.cat.RecordConsolidation(ctx, catalog.ConsolidationRecord{
		Category:   res.Category,
		Rows:       res.Rows,
		Partitions: len(res.Partitions),
		Partial:    res.Partial,
		Path:       res.Path,
		Producer:   c.producer,
		BuiltAt:    time.Now().UTC(),
	})
	if err != nil {
		c.log.Warn("consolidation lineage record failed", "error", err)
	}
}
