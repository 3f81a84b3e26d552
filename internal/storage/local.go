package storage

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LocalStore keeps records on the local filesystem.
type LocalStore struct {
	baseDir string
	prefix  string
	codec   *codec
}

// NewLocalStore creates a local filesystem store rooted at baseDir.
func NewLocalStore(baseDir, prefix string, compress bool) (*LocalStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("create base directory %s: %w", baseDir, err)
	}
	c, err := newCodec(compress)
	if err != nil {
		return nil, err
	}
	return &LocalStore{baseDir: baseDir, prefix: prefix, codec: c}, nil
}

func (s *LocalStore) path(ref RecordRef) string {
	return filepath.Join(s.baseDir, filepath.FromSlash(ref.Key(s.prefix, s.codec.enabled)))
}

// Write persists the payload atomically using temp file + rename.
func (s *LocalStore) Write(ctx context.Context, ref RecordRef, payload []byte) error {
	path := s.path(ref)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create directory %s: %w", filepath.Dir(path), err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, s.codec.encode(payload), 0644); err != nil {
		return fmt.Errorf("write temp file %s: %w", tempPath, err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("rename %s to %s: %w", tempPath, path, err)
	}
	return nil
}

// Read returns the stored payload.
func (s *LocalStore) Read(ctx context.Context, ref RecordRef) ([]byte, error) {
	data, err := os.ReadFile(s.path(ref))
	if err != nil {
		return nil, fmt.Errorf("read record %s: %w", ref, err)
	}
	return s.codec.decode(data)
}

// Exists checks whether the record is present.
func (s *LocalStore) Exists(ctx context.Context, ref RecordRef) (bool, error) {
	_, err := os.Stat(s.path(ref))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// Scan walks the category directory and reports every record found.
func (s *LocalStore) Scan(ctx context.Context, category string, fn func(partition, season string, id int64) error) error {
	root := filepath.Join(s.baseDir, filepath.FromSlash(s.prefix+category))
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return nil
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		partition, season, id, ok := parseRecordKey(filepath.ToSlash(rel))
		if !ok {
			return nil
		}
		return fn(partition, season, id)
	})
}

// Partitions lists the partition directories under a category.
func (s *LocalStore) Partitions(ctx context.Context, category string) ([]string, error) {
	root := filepath.Join(s.baseDir, filepath.FromSlash(s.prefix+category))
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read category directory %s: %w", root, err)
	}

	var partitions []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			partitions = append(partitions, e.Name())
		}
	}
	sort.Strings(partitions)
	return partitions, nil
}

// Close releases codec resources.
func (s *LocalStore) Close() error {
	s.codec.close()
	return nil
}
