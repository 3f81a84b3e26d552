package gap

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/pannadata/matchingest/internal/band"
	"github.com/pannadata/matchingest/internal/manifest"
)

func analyzer(t *testing.T, b band.Band, known []int64) *Analyzer {
	t.Helper()

	bands, err := band.NewSet([]band.Band{b})
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}

	man, err := manifest.Open(filepath.Join(t.TempDir(), "manifest.csv"), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	entries := make([]manifest.Entry, 0, len(known))
	for _, id := range known {
		entries = append(entries, manifest.Entry{
			ID:        id,
			Partition: b.Partition,
			Category:  "player_stats",
			Season:    b.Season,
			FetchedAt: time.Now().UTC(),
		})
	}
	if len(entries) > 0 {
		if err := man.Append(entries, false); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	return NewAnalyzer(bands, man)
}

func assertGaps(t *testing.T, got []Gap, want []Gap) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("gaps = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("gaps = %v, want %v", got, want)
		}
	}
}

func TestGapsSparseManifest(t *testing.T) {
	a := analyzer(t, band.Band{Partition: "EPL", MinID: 100, MaxID: 110}, []int64{101, 102, 105})

	gaps, err := a.GapsFor("EPL")
	if err != nil {
		t.Fatalf("GapsFor: %v", err)
	}
	assertGaps(t, gaps, []Gap{{100, 100}, {103, 104}, {106, 110}})
}

func TestGapsEmptyManifestSpansBand(t *testing.T) {
	a := analyzer(t, band.Band{Partition: "EPL", MinID: 500, MaxID: 520}, nil)

	gaps, err := a.GapsFor("EPL")
	if err != nil {
		t.Fatalf("GapsFor: %v", err)
	}
	assertGaps(t, gaps, []Gap{{500, 520}})
}

func TestGapsFullCoverage(t *testing.T) {
	a := analyzer(t, band.Band{Partition: "EPL", MinID: 10, MaxID: 12}, []int64{10, 11, 12})

	gaps, err := a.GapsFor("EPL")
	if err != nil {
		t.Fatalf("GapsFor: %v", err)
	}
	if len(gaps) != 0 {
		t.Errorf("fully covered band should yield no gaps, got %v", gaps)
	}
}

func TestGapsIgnoreIDsOutsideBand(t *testing.T) {
	a := analyzer(t, band.Band{Partition: "EPL", MinID: 100, MaxID: 105}, []int64{50, 102, 900})

	gaps, err := a.GapsFor("EPL")
	if err != nil {
		t.Fatalf("GapsFor: %v", err)
	}
	assertGaps(t, gaps, []Gap{{100, 101}, {103, 105}})
}

func TestGapsUnionEqualsBand(t *testing.T) {
	b := band.Band{Partition: "EPL", MinID: 1, MaxID: 40}
	known := []int64{1, 2, 7, 8, 9, 15, 40}
	a := analyzer(t, b, known)

	gaps, err := a.GapsFor("EPL")
	if err != nil {
		t.Fatalf("GapsFor: %v", err)
	}

	covered := make(map[int64]bool)
	for _, id := range known {
		covered[id] = true
	}
	var prevEnd int64 = b.MinID - 1
	for _, g := range gaps {
		if g.Start <= prevEnd {
			t.Fatalf("gap %v overlaps or is out of order (prev end %d)", g, prevEnd)
		}
		prevEnd = g.End
		for id := g.Start; id <= g.End; id++ {
			if covered[id] {
				t.Fatalf("gap %v covers known id %d", g, id)
			}
			covered[id] = true
		}
	}
	for id := b.MinID; id <= b.MaxID; id++ {
		if !covered[id] {
			t.Fatalf("id %d neither known nor in any gap", id)
		}
	}
}

func TestRemaining(t *testing.T) {
	a := analyzer(t, band.Band{Partition: "EPL", MinID: 100, MaxID: 110}, []int64{101, 102, 105})

	remaining, err := a.Remaining("EPL")
	if err != nil {
		t.Fatalf("Remaining: %v", err)
	}
	if remaining != 8 {
		t.Errorf("Remaining = %d, want 8", remaining)
	}
}
