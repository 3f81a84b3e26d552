package schedule

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/pannadata/matchingest/internal/band"
	"github.com/pannadata/matchingest/internal/gap"
	"github.com/pannadata/matchingest/internal/manifest"
)

func fixture(t *testing.T, b band.Band) (*Scheduler, *manifest.Store) {
	t.Helper()

	bands, err := band.NewSet([]band.Band{b})
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	man, err := manifest.Open(filepath.Join(t.TempDir(), "manifest.csv"), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return New(gap.NewAnalyzer(bands, man)), man
}

func markFetched(t *testing.T, man *manifest.Store, partition string, from, to int64) {
	t.Helper()
	var entries []manifest.Entry
	for id := from; id <= to; id++ {
		entries = append(entries, manifest.Entry{
			ID:        id,
			Partition: partition,
			Category:  "player_stats",
			Season:    "2024-2025",
			FetchedAt: time.Now().UTC(),
		})
	}
	if err := man.Append(entries, false); err != nil {
		t.Fatalf("Append: %v", err)
	}
}

func TestNextChunkTruncates(t *testing.T) {
	s, _ := fixture(t, band.Band{Partition: "EPL", MinID: 100, MaxID: 199})

	chunk, err := s.NextChunk("EPL", 10)
	if err != nil {
		t.Fatalf("NextChunk: %v", err)
	}
	if chunk == nil {
		t.Fatal("expected a chunk")
	}
	if chunk.Start != 100 || chunk.End != 109 {
		t.Errorf("chunk = %v, want [100,109]", chunk)
	}
}

func TestNextChunkNilWhenCovered(t *testing.T) {
	s, man := fixture(t, band.Band{Partition: "EPL", MinID: 100, MaxID: 104})
	markFetched(t, man, "EPL", 100, 104)

	chunk, err := s.NextChunk("EPL", 10)
	if err != nil {
		t.Fatalf("NextChunk: %v", err)
	}
	if chunk != nil {
		t.Errorf("covered band should yield nil chunk, got %v", chunk)
	}
}

func TestConsecutiveChunksCoverGapExactly(t *testing.T) {
	s, man := fixture(t, band.Band{Partition: "EPL", MinID: 100, MaxID: 109})

	// First run: chunk of 5, all fetched.
	first, err := s.NextChunk("EPL", 5)
	if err != nil {
		t.Fatalf("NextChunk: %v", err)
	}
	if first.Start != 100 || first.End != 104 {
		t.Fatalf("first chunk = %v, want [100,104]", first)
	}
	markFetched(t, man, "EPL", first.Start, first.End)

	// Resumed run: next chunk starts exactly after the last flushed id.
	second, err := s.NextChunk("EPL", 5)
	if err != nil {
		t.Fatalf("NextChunk: %v", err)
	}
	if second.Start != 105 || second.End != 109 {
		t.Fatalf("second chunk = %v, want [105,109]", second)
	}
	markFetched(t, man, "EPL", second.Start, second.End)

	done, err := s.NextChunk("EPL", 5)
	if err != nil {
		t.Fatalf("NextChunk: %v", err)
	}
	if done != nil {
		t.Errorf("expected full coverage after two chunks, got %v", done)
	}
}

func TestNextChunkSkipsToLowestGap(t *testing.T) {
	s, man := fixture(t, band.Band{Partition: "EPL", MinID: 100, MaxID: 120})
	markFetched(t, man, "EPL", 100, 105)

	chunk, err := s.NextChunk("EPL", 100)
	if err != nil {
		t.Fatalf("NextChunk: %v", err)
	}
	if chunk.Start != 106 || chunk.End != 120 {
		t.Errorf("chunk = %v, want [106,120]", chunk)
	}
}

func TestOverrideNormalizesRange(t *testing.T) {
	g := Override(220, 210)
	if g.Start != 210 || g.End != 220 {
		t.Errorf("Override = %v, want [210,220]", g)
	}
}
