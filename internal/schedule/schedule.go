// Package schedule turns gap analysis into bounded, resumable work
// chunks. The scheduler holds no state between calls: all resumability
// comes from the manifest, so a restarted process asks for the next
// chunk and lands exactly where the previous run stopped.
package schedule

import (
	"github.com/pannadata/matchingest/internal/gap"
)

// Scheduler selects the next bounded chunk of missing ids.
type Scheduler struct {
	gaps *gap.Analyzer
}

// New creates a scheduler over the given analyzer.
func New(gaps *gap.Analyzer) *Scheduler {
	return &Scheduler{gaps: gaps}
}

// NextChunk returns the first (lowest-id) gap for the partition,
// truncated to at most maxChunk ids. Nil means the band is fully
// covered and backfill for the partition is complete.
func (s *Scheduler) NextChunk(partition string, maxChunk int64) (*gap.Gap, error) {
	gaps, err := s.gaps.GapsFor(partition)
	if err != nil {
		return nil, err
	}
	if len(gaps) == 0 {
		return nil, nil
	}

	chunk := gaps[0]
	if maxChunk > 0 && chunk.Len() > maxChunk {
		chunk.End = chunk.Start + maxChunk - 1
	}
	return &chunk, nil
}

// Override builds an explicit chunk bypassing gap computation, used for
// manual re-scrapes of a known-bad range. The range need not be a
// subset of any gap.
func Override(start, end int64) gap.Gap {
	if end < start {
		start, end = end, start
	}
	return gap.Gap{Start: start, End: end}
}
