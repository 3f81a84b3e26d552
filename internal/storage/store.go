// Package storage persists raw fetched payloads in a partitioned
// layout and enumerates them for manifest rebuilds and consolidation.
// The engine treats payloads as opaque bytes; the layout
// {category}/{partition}/{season}/{id} is the only contract.
package storage

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"
)

// RecordRef identifies one raw record.
type RecordRef struct {
	Category  string
	Partition string
	Season    string
	ID        int64
}

// Key returns the storage key for this record.
func (r RecordRef) Key(prefix string, compressed bool) string {
	name := strconv.FormatInt(r.ID, 10) + ".json"
	if compressed {
		name += ".zst"
	}
	return prefix + path.Join(r.Category, r.Partition, r.Season, name)
}

func (r RecordRef) String() string {
	return fmt.Sprintf("%s/%s/%s/%d", r.Category, r.Partition, r.Season, r.ID)
}

// RecordStore abstracts the raw partitioned record storage.
type RecordStore interface {
	// Write persists a payload, overwriting any previous record.
	Write(ctx context.Context, ref RecordRef, payload []byte) error

	// Read returns the stored payload.
	Read(ctx context.Context, ref RecordRef) ([]byte, error)

	// Exists checks whether the record is present.
	Exists(ctx context.Context, ref RecordRef) (bool, error)

	// Scan enumerates every record of a category across all partitions
	// and seasons.
	Scan(ctx context.Context, category string, fn func(partition, season string, id int64) error) error

	// Partitions lists the partition keys present under a category.
	Partitions(ctx context.Context, category string) ([]string, error)

	// Close releases any resources.
	Close() error
}

// Config configures the storage backend.
type Config struct {
	Backend string `yaml:"backend"` // "local" | "gcs" | "s3"

	// Local filesystem
	LocalDir string `yaml:"local_dir"`

	// Object stores
	Bucket     string `yaml:"bucket"`
	S3Endpoint string `yaml:"s3_endpoint"` // custom endpoint for B2/MinIO/R2
	S3Region   string `yaml:"s3_region"`

	// Common
	Prefix   string `yaml:"prefix"`   // key prefix within bucket or local dir
	Compress bool   `yaml:"compress"` // zstd-compress payloads at rest
}

// New creates a storage backend based on configuration.
func New(cfg Config) (RecordStore, error) {
	switch cfg.Backend {
	case "", "local":
		if cfg.LocalDir == "" {
			return nil, fmt.Errorf("local_dir required for local backend")
		}
		return NewLocalStore(cfg.LocalDir, cfg.Prefix, cfg.Compress)
	case "gcs":
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("bucket required for gcs backend")
		}
		return NewBlobStore(fmt.Sprintf("gs://%s", cfg.Bucket), cfg.Prefix, cfg.Compress)
	case "s3":
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("bucket required for s3 backend")
		}
		url := fmt.Sprintf("s3://%s?region=%s", cfg.Bucket, cfg.S3Region)
		if cfg.S3Endpoint != "" {
			url += "&endpoint=" + cfg.S3Endpoint + "&s3ForcePathStyle=true"
		}
		return NewBlobStore(url, cfg.Prefix, cfg.Compress)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Backend)
	}
}

// parseRecordKey extracts the record coordinates from a key relative to
// the prefix. Keys that do not match the record layout are skipped.
func parseRecordKey(rel string) (partition, season string, id int64, ok bool) {
	parts := strings.Split(rel, "/")
	if len(parts) != 3 {
		return "", "", 0, false
	}
	name := parts[2]
	name = strings.TrimSuffix(name, ".zst")
	if !strings.HasSuffix(name, ".json") {
		return "", "", 0, false
	}
	id, err := strconv.ParseInt(strings.TrimSuffix(name, ".json"), 10, 64)
	if err != nil {
		return "", "", 0, false
	}
	return parts[0], parts[1], id, true
}
