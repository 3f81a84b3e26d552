// Package engine runs bounded fetch chunks against the remote source,
// one request in flight at a time, and folds the results back into the
// manifest. All resumability lives in the manifest: the engine keeps no
// state of its own between runs.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pannadata/matchingest/internal/band"
	"github.com/pannadata/matchingest/internal/catalog"
	"github.com/pannadata/matchingest/internal/fetch"
	"github.com/pannadata/matchingest/internal/gap"
	"github.com/pannadata/matchingest/internal/manifest"
	"github.com/pannadata/matchingest/internal/metrics"
	"github.com/pannadata/matchingest/internal/notify"
	"github.com/pannadata/matchingest/internal/ratelimit"
	"github.com/pannadata/matchingest/internal/schedule"
	"github.com/pannadata/matchingest/internal/storage"
)

// Config holds the knobs for a single engine run.
type Config struct {
	// Delay is the courtesy floor between request completion and the
	// next request start.
	Delay time.Duration

	// ChunkSize bounds the number of ids attempted per partition per run.
	ChunkSize int64

	// MaxConsecutiveMisses trips the per-partition breaker. A band may
	// override it with its own value.
	MaxConsecutiveMisses int

	// FlushEvery bounds manifest-flush intervals within a chunk. Zero
	// means flush only at chunk end.
	FlushEvery int

	// Force re-fetches ids already present in the manifest (only
	// meaningful together with an override range).
	Force bool

	// RetryUnavailable reopens ids previously marked not-found so they
	// become gaps again.
	RetryUnavailable bool
}

const (
	defaultDelay     = time.Second
	defaultChunkSize = 500
	defaultMisses    = 25
	defaultFlush     = 50
)

func (c *Config) applyDefaults() {
	if c.Delay <= 0 {
		c.Delay = defaultDelay
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = defaultChunkSize
	}
	if c.MaxConsecutiveMisses <= 0 {
		c.MaxConsecutiveMisses = defaultMisses
	}
	if c.FlushEvery < 0 {
		c.FlushEvery = 0
	}
}

// Summary reports the outcome of one chunk for one partition.
type Summary struct {
	Partition string
	Category  string
	Season    string
	Chunk     gap.Gap

	SuccessIDs  []int64
	NotFoundIDs []int64
	ErrorIDs    []int64
	Skipped     int

	Tripped   bool
	Reopened  int
	Remaining int64
	Duration  time.Duration
}

// Complete reports whether the partition's band is fully covered and
// the chunk produced no errors.
func (s *Summary) Complete() bool {
	return s.Remaining == 0 && len(s.ErrorIDs) == 0
}

// Deps are the collaborators the engine drives. Emitter, Catalog and
// Metrics may be nil; Limiter defaults to a fixed delay from Config.
type Deps struct {
	Bands    *band.Set
	Manifest *manifest.Store
	Store    storage.RecordStore
	Fetcher  fetch.Fetcher
	Limiter  ratelimit.Limiter
	Emitter  notify.Emitter
	Catalog  catalog.Writer
	Metrics  *metrics.Metrics
	Log      *slog.Logger
}

// Engine executes fetch chunks sequentially per partition.
type Engine struct {
	cfg     Config
	bands   *band.Set
	man     *manifest.Store
	gaps    *gap.Analyzer
	sched   *schedule.Scheduler
	store   storage.RecordStore
	fetcher fetch.Fetcher
	limiter ratelimit.Limiter
	emitter notify.Emitter
	cat     catalog.Writer
	met     *metrics.Metrics
	log     *slog.Logger
	runID   string
}

// New creates an engine for one run. runID tags log lines, webhook
// events and catalog rows from the same invocation.
func New(cfg Config, deps Deps, runID string) *Engine {
	cfg.applyDefaults()

	limiter := deps.Limiter
	if limiter == nil {
		limiter = ratelimit.NewFixedDelay(cfg.Delay)
	}
	log := deps.Log
	if log == nil {
		log = slog.With("component", "engine")
	}
	analyzer := gap.NewAnalyzer(deps.Bands, deps.Manifest)

	return &Engine{
		cfg:     cfg,
		bands:   deps.Bands,
		man:     deps.Manifest,
		gaps:    analyzer,
		sched:   schedule.New(analyzer),
		store:   deps.Store,
		fetcher: deps.Fetcher,
		limiter: limiter,
		emitter: deps.Emitter,
		cat:     deps.Catalog,
		met:     deps.Metrics,
		log:     log,
		runID:   runID,
	}
}

// RunAll processes every partition in band order, one chunk each.
// A cancelled context stops between partitions; per-partition errors are
// carried in the summaries rather than aborting the run.
func (e *Engine) RunAll(ctx context.Context, category string) ([]*Summary, error) {
	var summaries []*Summary
	for _, partition := range e.bands.Partitions() {
		if err := ctx.Err(); err != nil {
			return summaries, err
		}
		s, err := e.RunChunk(ctx, partition, category, nil)
		if s != nil {
			summaries = append(summaries, s)
		}
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return summaries, err
			}
			e.log.Error("partition run failed", "partition", partition, "error", err)
		}
	}
	return summaries, nil
}

// RunChunk fetches one bounded chunk for a partition. A non-nil
// override bypasses gap selection entirely. Cancellation mid-chunk
// flushes the entries completed so far before returning.
func (e *Engine) RunChunk(ctx context.Context, partition, category string, override *gap.Gap) (*Summary, error) {
	b, err := e.bands.Get(partition)
	if err != nil {
		return nil, err
	}

	log := e.log.With("run_id", e.runID, "partition", partition, "category", category)

	summary := &Summary{
		Partition: partition,
		Category:  category,
		Season:    b.Season,
	}

	if e.cfg.RetryUnavailable {
		n, err := e.man.ReopenUnavailable(partition)
		if err != nil {
			return nil, fmt.Errorf("reopen unavailable: %w", err)
		}
		summary.Reopened = n
		if n > 0 {
			log.Info("reopened unavailable ids", "count", n)
		}
	}

	var chunk gap.Gap
	if override != nil {
		chunk = schedule.Override(override.Start, override.End)
	} else {
		next, err := e.sched.NextChunk(partition, e.cfg.ChunkSize)
		if err != nil {
			return nil, err
		}
		if next == nil {
			summary.Remaining = 0
			log.Info("partition complete", "band", b.MinID, "band_end", b.MaxID)
			return summary, nil
		}
		chunk = *next
	}
	summary.Chunk = chunk

	maxMisses := e.cfg.MaxConsecutiveMisses
	if b.MaxConsecutiveMisses > 0 {
		maxMisses = b.MaxConsecutiveMisses
	}

	log.Info("starting chunk",
		"start", chunk.Start,
		"end", chunk.End,
		"size", chunk.Len(),
		"max_consecutive_misses", maxMisses,
	)

	startTime := time.Now()
	var pending []manifest.Entry
	misses := 0
	var runErr error

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		if err := e.man.Append(pending, e.cfg.Force); err != nil {
			return fmt.Errorf("manifest append: %w", err)
		}
		e.met.ObserveFlush(partition)
		pending = pending[:0]
		return nil
	}

loop:
	for id := chunk.Start; id <= chunk.End; id++ {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		if !e.cfg.Force && e.man.Contains(id, partition) {
			summary.Skipped++
			continue
		}

		if err := e.limiter.Wait(ctx); err != nil {
			runErr = err
			break
		}
		out := e.fetcher.Fetch(ctx, id)
		e.limiter.Done()
		e.met.ObserveFetch(partition, out.Kind.String())

		switch out.Kind {
		case fetch.Success:
			ref := storage.RecordRef{
				Category:  category,
				Partition: partition,
				Season:    b.Season,
				ID:        id,
			}
			if err := e.store.Write(ctx, ref, out.Payload); err != nil {
				log.Warn("record write failed", "id", id, "error", err)
				summary.ErrorIDs = append(summary.ErrorIDs, id)
				continue
			}
			summary.SuccessIDs = append(summary.SuccessIDs, id)
			pending = append(pending, manifest.Entry{
				ID:        id,
				Partition: partition,
				Category:  category,
				Season:    b.Season,
				FetchedAt: time.Now().UTC(),
			})
			misses = 0

		case fetch.NotFound:
			summary.NotFoundIDs = append(summary.NotFoundIDs, id)
			pending = append(pending, manifest.Entry{
				ID:          id,
				Partition:   partition,
				Category:    category,
				Season:      b.Season,
				FetchedAt:   time.Now().UTC(),
				Unavailable: true,
			})
			misses++
			if misses >= maxMisses {
				summary.Tripped = true
				e.met.ObserveBreakerTrip(partition)
				log.Info("circuit breaker tripped",
					"id", id,
					"consecutive_misses", misses,
				)
				break loop
			}

		case fetch.TransientError:
			summary.ErrorIDs = append(summary.ErrorIDs, id)
			log.Warn("transient fetch error", "id", id, "error", out.Err)
		}

		if e.cfg.FlushEvery > 0 && len(pending) >= e.cfg.FlushEvery {
			if err := flush(); err != nil {
				return summary, err
			}
			log.Info("progress",
				"id", id,
				"success", len(summary.SuccessIDs),
				"notfound", len(summary.NotFoundIDs),
				"errors", len(summary.ErrorIDs),
			)
		}
	}

	if err := flush(); err != nil {
		return summary, err
	}

	remaining, err := e.gaps.Remaining(partition)
	if err != nil {
		return summary, err
	}
	summary.Remaining = remaining
	summary.Duration = time.Since(startTime)

	e.met.SetGapRemaining(partition, remaining)
	e.met.SetManifestEntries(e.man.Len())
	e.met.ObserveChunk(partition, summary.Duration)

	log.Info("chunk complete",
		"success", len(summary.SuccessIDs),
		"notfound", len(summary.NotFoundIDs),
		"errors", len(summary.ErrorIDs),
		"skipped", summary.Skipped,
		"tripped", summary.Tripped,
		"remaining", remaining,
		"duration", summary.Duration.String(),
	)

	e.emitSummary(ctx, summary)
	e.recordRun(ctx, summary, startTime)

	return summary, runErr
}

func (e *Engine) emitSummary(ctx context.Context, s *Summary) {
	if e.emitter == nil {
		return
	}
	err := e.emitter.Emit(ctx, notify.Event{
		Type:      "chunk_complete",
		RunID:     e.runID,
		Partition: s.Partition,
		Category:  s.Category,
		Start:     s.Chunk.Start,
		End:       s.Chunk.End,
		Success:   len(s.SuccessIDs),
		NotFound:  len(s.NotFoundIDs),
		Errors:    len(s.ErrorIDs),
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		e.log.Warn("webhook emit failed", "error", err)
	}
}

func (e *Engine) recordRun(ctx context.Context, s *Summary, startedAt time.Time) {
	if e.cat == nil {
		return
	}
	err := e.cat.RecordRun(ctx, catalog.RunRecord{
		RunID:     e.runID,
		Partition: s.Partition,
		Category:  s.Category,
		Season:    s.Season,
		Start:     s.Chunk.Start,
		End:       s.Chunk.End,
		Success:   len(s.SuccessIDs),
		NotFound:  len(s.NotFoundIDs),
		Errors:    len(s.ErrorIDs),
		Tripped:   s.Tripped,
		Remaining: s.Remaining,
		StartedAt: startedAt.UTC(),
		Duration:  s.Duration,
	})
	if err != nil {
		e.log.Warn("catalog record failed", "error", err)
	}
}
