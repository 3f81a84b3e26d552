// Package band holds the static per-partition id range configuration.
//
// A band describes the inclusive integer id range considered valid to
// probe for one partition (a league). Bands are supplied by
// configuration, never derived from the manifest, and ids from
// different partitions may interleave freely within the global id
// space.
package band

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownPartition is returned when no band is configured for a partition key.
var ErrUnknownPartition = errors.New("no band configured for partition")

// ErrInvalidBand is returned when a band's configuration is unusable.
var ErrInvalidBand = errors.New("invalid band configuration")

// Band defines the probe range for a single partition.
type Band struct {
	Partition string `yaml:"partition"`
	Season    string `yaml:"season"`
	MinID     int64  `yaml:"min_id"`
	MaxID     int64  `yaml:"max_id"`

	// MaxConsecutiveMisses overrides the global circuit-breaker limit
	// for this partition. 0 means use the global value.
	MaxConsecutiveMisses int `yaml:"max_consecutive_misses,omitempty"`
}

// Contains returns true if the id falls within this band's bounds.
func (b Band) Contains(id int64) bool {
	return id >= b.MinID && id <= b.MaxID
}

// Size returns the number of ids in the band.
func (b Band) Size() int64 {
	if b.MaxID < b.MinID {
		return 0
	}
	return b.MaxID - b.MinID + 1
}

// Set is a keyed collection of bands, one per partition. Each partition
// carries its own range and its own circuit-breaker state downstream;
// there is no global cursor.
type Set struct {
	byPartition map[string]Band
	order       []string
}

// NewSet validates the given bands and builds a keyed set.
func NewSet(bands []Band) (*Set, error) {
	if len(bands) == 0 {
		return nil, fmt.Errorf("%w: at least one band must be configured", ErrInvalidBand)
	}

	byPartition := make(map[string]Band, len(bands))
	order := make([]string, 0, len(bands))
	for _, b := range bands {
		if b.Partition == "" {
			return nil, fmt.Errorf("%w: band with empty partition key", ErrInvalidBand)
		}
		if b.MaxID < b.MinID {
			return nil, fmt.Errorf("%w: partition %q has max_id %d below min_id %d",
				ErrInvalidBand, b.Partition, b.MaxID, b.MinID)
		}
		if _, dup := byPartition[b.Partition]; dup {
			return nil, fmt.Errorf("%w: partition %q configured twice", ErrInvalidBand, b.Partition)
		}
		byPartition[b.Partition] = b
		order = append(order, b.Partition)
	}

	sort.Strings(order)
	return &Set{byPartition: byPartition, order: order}, nil
}

// Get returns the band for a partition key.
func (s *Set) Get(partition string) (Band, error) {
	b, ok := s.byPartition[partition]
	if !ok {
		return Band{}, fmt.Errorf("%w: %q", ErrUnknownPartition, partition)
	}
	return b, nil
}

// Partitions returns all configured partition keys in sorted order.
func (s *Set) Partitions() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}
