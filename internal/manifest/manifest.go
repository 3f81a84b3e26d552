// Package manifest maintains the durable record of every id confirmed
// fetched (or confirmed absent at the source). The manifest is the only
// state the engine needs to resume: gap computation subtracts its ids
// from the configured bands, so stopping and restarting at any point
// picks up from the correct position automatically.
//
// The file format is a flat CSV table with a header row. It is
// self-describing, loadable with nothing but this package, and can be
// reconstructed from the raw partitioned outputs if lost or corrupted.
package manifest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"
)

// ErrCorrupt marks a manifest file that could not be parsed. Callers
// treat this as an empty manifest plus a warning; rebuild-from-storage
// is the recovery path.
var ErrCorrupt = errors.New("manifest file is corrupt")

var header = []string{"id", "partition", "category", "season", "fetched_at", "unavailable"}

// Entry records one probed id. Unavailable entries mark ids the source
// answered NotFound for: they are treated as covered during gap
// analysis so they are never probed again unless explicitly reopened.
type Entry struct {
	ID          int64
	Partition   string
	Category    string
	Season      string
	FetchedAt   time.Time
	Unavailable bool
}

// Store is the durable manifest. Every Append persists to disk with an
// atomic write-new-then-rename, so a crash mid-backfill loses at most
// the in-flight chunk.
type Store struct {
	path string
	log  *slog.Logger

	mu      sync.Mutex
	entries map[int64]Entry
}

// Open loads the manifest at path, creating parent directories as
// needed. A corrupt or unreadable file is surfaced as a warning and
// treated as an empty manifest.
func Open(path string, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "manifest")

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create manifest directory: %w", err)
	}

	s := &Store{
		path:    path,
		log:     log,
		entries: make(map[int64]Entry),
	}

	if err := s.load(); err != nil {
		log.Warn("manifest unreadable, starting empty; run rebuild-manifest to recover",
			"path", path, "error", err)
		s.entries = make(map[int64]Entry)
	}
	return s, nil
}

// load reads the CSV file into memory. Missing file means empty manifest.
func (s *Store) load() error {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if len(records) == 0 {
		return nil
	}
	if len(records[0]) != len(header) || records[0][0] != "id" {
		return fmt.Errorf("%w: unexpected header %v", ErrCorrupt, records[0])
	}

	for i, rec := range records[1:] {
		e, err := parseRow(rec)
		if err != nil {
			return fmt.Errorf("%w: row %d: %v", ErrCorrupt, i+2, err)
		}
		s.entries[e.ID] = e
	}
	return nil
}

func parseRow(rec []string) (Entry, error) {
	if len(rec) != len(header) {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", len(header), len(rec))
	}
	id, err := strconv.ParseInt(rec[0], 10, 64)
	if err != nil {
		return Entry{}, fmt.Errorf("parse id %q: %v", rec[0], err)
	}
	fetchedAt, err := time.Parse(time.RFC3339, rec[4])
	if err != nil {
		return Entry{}, fmt.Errorf("parse fetched_at %q: %v", rec[4], err)
	}
	unavailable, err := strconv.ParseBool(rec[5])
	if err != nil {
		return Entry{}, fmt.Errorf("parse unavailable %q: %v", rec[5], err)
	}
	return Entry{
		ID:          id,
		Partition:   rec[1],
		Category:    rec[2],
		Season:      rec[3],
		FetchedAt:   fetchedAt,
		Unavailable: unavailable,
	}, nil
}

// Contains reports whether the id is recorded for the given partition.
// Unavailable entries count: a NotFound probe is never repeated.
func (s *Store) Contains(id int64, partition string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	return ok && e.Partition == partition
}

// KnownIDs returns the sorted ids recorded for a partition, including
// unavailable ones. Gap analysis subtracts these from the band.
func (s *Store) KnownIDs(partition string) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]int64, 0, len(s.entries))
	for id, e := range s.entries {
		if e.Partition == partition {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Len returns the total number of entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Entries returns a copy of all entries sorted by id.
func (s *Store) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Append merges new entries and persists the manifest. Ids already
// present are skipped unless force is set, in which case the entry is
// replaced wholesale. Appending an id twice leaves the id set
// unchanged. The write is atomic: the manifest on disk is always either
// the previous complete version or the new complete version.
func (s *Store) Append(entries []Entry, force bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := false
	for _, e := range entries {
		if prev, ok := s.entries[e.ID]; ok && !force {
			// Promotion from unavailable to fetched is always applied:
			// the source started answering for this id.
			if !prev.Unavailable || e.Unavailable {
				continue
			}
		}
		s.entries[e.ID] = e
		changed = true
	}
	if !changed {
		return nil
	}
	return s.persistLocked()
}

// ReopenUnavailable removes unavailable markers for a partition so the
// ids reappear in gap computation and are probed again on the next run.
// Returns the number of entries cleared.
func (s *Store) ReopenUnavailable(partition string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cleared := 0
	for id, e := range s.entries {
		if e.Partition == partition && e.Unavailable {
			delete(s.entries, id)
			cleared++
		}
	}
	if cleared == 0 {
		return 0, nil
	}
	return cleared, s.persistLocked()
}

// Replace swaps the full entry set, used by rebuild-from-storage.
func (s *Store) Replace(entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[int64]Entry, len(entries))
	for _, e := range entries {
		s.entries[e.ID] = e
	}
	return s.persistLocked()
}

// persistLocked writes the full table atomically. Callers hold s.mu.
func (s *Store) persistLocked() error {
	ids := make([]int64, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	tempPath := s.path + ".tmp"
	f, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("create temp manifest: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		os.Remove(tempPath)
		return fmt.Errorf("write manifest header: %w", err)
	}
	for _, id := range ids {
		e := s.entries[id]
		row := []string{
			strconv.FormatInt(e.ID, 10),
			e.Partition,
			e.Category,
			e.Season,
			e.FetchedAt.UTC().Format(time.RFC3339),
			strconv.FormatBool(e.Unavailable),
		}
		if err := w.Write(row); err != nil {
			f.Close()
			os.Remove(tempPath)
			return fmt.Errorf("write manifest row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		os.Remove(tempPath)
		return fmt.Errorf("flush manifest: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("close temp manifest: %w", err)
	}

	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("rename manifest: %w", err)
	}
	return nil
}

// Scanner enumerates raw partitioned records. Implemented by the
// storage layer; declared here so rebuild depends only on what it uses.
type Scanner interface {
	Scan(ctx context.Context, category string, fn func(partition, season string, id int64) error) error
}

// Rebuild reconstructs the manifest purely from the raw partitioned
// outputs and replaces the store's contents. This is the recovery path
// for a lost or corrupt manifest: the raw store is the source of truth.
func Rebuild(ctx context.Context, s *Store, scan Scanner, categories []string) (int, error) {
	now := time.Now().UTC()
	var rebuilt []Entry

	for _, category := range categories {
		err := scan.Scan(ctx, category, func(partition, season string, id int64) error {
			rebuilt = append(rebuilt, Entry{
				ID:        id,
				Partition: partition,
				Category:  category,
				Season:    season,
				FetchedAt: now,
			})
			return nil
		})
		if err != nil {
			return 0, fmt.Errorf("scan category %s: %w", category, err)
		}
	}

	if err := s.Replace(rebuilt); err != nil {
		return 0, fmt.Errorf("persist rebuilt manifest: %w", err)
	}
	s.log.Info("manifest rebuilt from raw storage", "entries", len(rebuilt), "categories", len(categories))
	return len(rebuilt), nil
}
