// Package gap computes the missing-id ranges within a partition's band.
//
// Gaps are derived, never stored: each call recomputes from the current
// manifest so concurrent appends earlier in the same process are always
// visible. The invariant is that the union of the returned gaps and the
// manifest's known ids equals the full band, with gaps pairwise
// non-overlapping and sorted ascending.
package gap

import (
	"fmt"

	"github.com/pannadata/matchingest/internal/band"
	"github.com/pannadata/matchingest/internal/manifest"
)

// Gap is a maximal inclusive range of ids absent from the manifest.
type Gap struct {
	Start int64
	End   int64
}

// Len returns the number of ids in the gap.
func (g Gap) Len() int64 {
	return g.End - g.Start + 1
}

func (g Gap) String() string {
	return fmt.Sprintf("[%d,%d]", g.Start, g.End)
}

// Analyzer derives gaps from the configured bands and the manifest.
type Analyzer struct {
	bands *band.Set
	man   *manifest.Store
}

// NewAnalyzer builds an analyzer over explicit configuration; bands are
// passed in at construction, never read from ambient process state.
func NewAnalyzer(bands *band.Set, man *manifest.Store) *Analyzer {
	return &Analyzer{bands: bands, man: man}
}

// GapsFor returns the missing ranges for one partition, sorted
// ascending. An empty result means the band is fully covered.
func (a *Analyzer) GapsFor(partition string) ([]Gap, error) {
	b, err := a.bands.Get(partition)
	if err != nil {
		return nil, err
	}
	if b.Size() == 0 {
		return nil, nil
	}

	known := a.man.KnownIDs(partition)

	// Single ascending scan over the sorted known ids: each stretch
	// between prev+1 and the next known id (clamped to the band) is a
	// maximal gap.
	var gaps []Gap
	cursor := b.MinID
	for _, id := range known {
		if id < b.MinID || id > b.MaxID {
			continue
		}
		if id > cursor {
			gaps = append(gaps, Gap{Start: cursor, End: id - 1})
		}
		if id >= cursor {
			cursor = id + 1
		}
	}
	if cursor <= b.MaxID {
		gaps = append(gaps, Gap{Start: cursor, End: b.MaxID})
	}
	return gaps, nil
}

// Remaining returns the total count of missing ids for a partition.
func (a *Analyzer) Remaining(partition string) (int64, error) {
	gaps, err := a.GapsFor(partition)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, g := range gaps {
		total += g.Len()
	}
	return total, nil
}
