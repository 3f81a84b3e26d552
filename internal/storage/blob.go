package storage

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/gcsblob" // GCS driver
	_ "gocloud.dev/blob/s3blob"  // S3 driver (also B2, R2, MinIO)
)

// BlobStore keeps records in an object store behind gocloud.dev/blob.
type BlobStore struct {
	bucket *blob.Bucket
	url    string
	prefix string
	codec  *codec
}

// NewBlobStore opens a bucket by URL (gs://... or s3://...).
func NewBlobStore(url, prefix string, compress bool) (*BlobStore, error) {
	ctx := context.Background()

	bucket, err := blob.OpenBucket(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", url, err)
	}
	c, err := newCodec(compress)
	if err != nil {
		bucket.Close()
		return nil, err
	}
	return &BlobStore{bucket: bucket, url: url, prefix: prefix, codec: c}, nil
}

// Write persists the payload. Object stores publish atomically on
// writer close, so no temp-and-rename dance is needed.
func (s *BlobStore) Write(ctx context.Context, ref RecordRef, payload []byte) error {
	key := ref.Key(s.prefix, s.codec.enabled)

	w, err := s.bucket.NewWriter(ctx, key, nil)
	if err != nil {
		return fmt.Errorf("create writer for %s: %w", key, err)
	}
	if _, err := w.Write(s.codec.encode(payload)); err != nil {
		w.Close()
		return fmt.Errorf("write record %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close writer for %s: %w", key, err)
	}
	return nil
}

// Read returns the stored payload.
func (s *BlobStore) Read(ctx context.Context, ref RecordRef) ([]byte, error) {
	key := ref.Key(s.prefix, s.codec.enabled)

	r, err := s.bucket.NewReader(ctx, key, nil)
	if err != nil {
		return nil, fmt.Errorf("open record %s: %w", key, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read record %s: %w", key, err)
	}
	return s.codec.decode(data)
}

// Exists checks whether the record is present.
func (s *BlobStore) Exists(ctx context.Context, ref RecordRef) (bool, error) {
	return s.bucket.Exists(ctx, ref.Key(s.prefix, s.codec.enabled))
}

// Scan lists every record key under the category prefix.
func (s *BlobStore) Scan(ctx context.Context, category string, fn func(partition, season string, id int64) error) error {
	prefix := s.prefix + category + "/"
	iter := s.bucket.List(&blob.ListOptions{Prefix: prefix})
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("list %s: %w", prefix, err)
		}
		partition, season, id, ok := parseRecordKey(strings.TrimPrefix(obj.Key, prefix))
		if !ok {
			continue
		}
		if err := fn(partition, season, id); err != nil {
			return err
		}
	}
}

// Partitions lists the partition keys present under a category.
func (s *BlobStore) Partitions(ctx context.Context, category string) ([]string, error) {
	seen := make(map[string]bool)
	err := s.Scan(ctx, category, func(partition, _ string, _ int64) error {
		seen[partition] = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	partitions := make([]string, 0, len(seen))
	for p := range seen {
		partitions = append(partitions, p)
	}
	sort.Strings(partitions)
	return partitions, nil
}

// Close releases the bucket connection.
func (s *BlobStore) Close() error {
	s.codec.close()
	if s.bucket != nil {
		return s.bucket.Close()
	}
	return nil
}
