package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "raw/", false)
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	ref := RecordRef{Category: "player_stats", Partition: "EPL", Season: "2024-2025", ID: 2300101}
	payload := []byte(`{"match_id":2300101}`)

	exists, err := store.Exists(ctx, ref)
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if exists {
		t.Fatal("record should not exist before write")
	}

	if err := store.Write(ctx, ref, payload); err != nil {
		t.Fatalf("Write: %v", err)
	}

	exists, err = store.Exists(ctx, ref)
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if !exists {
		t.Fatal("record should exist after write")
	}

	got, err := store.Read(ctx, ref)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("Read = %q, want %q", got, payload)
	}
}

func TestLocalStoreCompressedRoundTrip(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "", true)
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	ref := RecordRef{Category: "shots", Partition: "La_Liga", Season: "2023-2024", ID: 42}
	payload := bytes.Repeat([]byte(`{"x":0.5,"y":0.3}`), 100)

	if err := store.Write(ctx, ref, payload); err != nil {
		t.Fatalf("Write: %v", err)
	}

	// The on-disk file must carry the .zst suffix.
	onDisk := store.path(ref)
	if filepath.Ext(onDisk) != ".zst" {
		t.Errorf("compressed record path = %s, want .zst suffix", onDisk)
	}
	raw, err := os.ReadFile(onDisk)
	if err != nil {
		t.Fatalf("read raw file: %v", err)
	}
	if bytes.Equal(raw, payload) {
		t.Error("payload should be compressed at rest")
	}

	got, err := store.Read(ctx, ref)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Error("decompressed payload mismatch")
	}
}

func TestLocalStoreScanAndPartitions(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "", false)
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	refs := []RecordRef{
		{Category: "player_stats", Partition: "EPL", Season: "2024-2025", ID: 101},
		{Category: "player_stats", Partition: "EPL", Season: "2023-2024", ID: 102},
		{Category: "player_stats", Partition: "La_Liga", Season: "2024-2025", ID: 501},
		{Category: "shots", Partition: "EPL", Season: "2024-2025", ID: 900},
	}
	for _, ref := range refs {
		if err := store.Write(ctx, ref, []byte("{}")); err != nil {
			t.Fatalf("Write %v: %v", ref, err)
		}
	}

	found := make(map[int64]string)
	err = store.Scan(ctx, "player_stats", func(partition, season string, id int64) error {
		found[id] = partition + "/" + season
		return nil
	})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	want := map[int64]string{
		101: "EPL/2024-2025",
		102: "EPL/2023-2024",
		501: "La_Liga/2024-2025",
	}
	if len(found) != len(want) {
		t.Fatalf("Scan found %v, want %v", found, want)
	}
	for id, loc := range want {
		if found[id] != loc {
			t.Errorf("Scan[%d] = %s, want %s", id, found[id], loc)
		}
	}

	partitions, err := store.Partitions(ctx, "player_stats")
	if err != nil {
		t.Fatalf("Partitions: %v", err)
	}
	if len(partitions) != 2 || partitions[0] != "EPL" || partitions[1] != "La_Liga" {
		t.Errorf("Partitions = %v, want [EPL La_Liga]", partitions)
	}

	// A category with no records is not an error.
	partitions, err = store.Partitions(ctx, "lineups")
	if err != nil {
		t.Fatalf("Partitions: %v", err)
	}
	if len(partitions) != 0 {
		t.Errorf("expected no partitions for empty category, got %v", partitions)
	}
}

func TestParseRecordKey(t *testing.T) {
	cases := []struct {
		rel       string
		ok        bool
		partition string
		season    string
		id        int64
	}{
		{"EPL/2024-2025/2300101.json", true, "EPL", "2024-2025", 2300101},
		{"EPL/2024-2025/2300101.json.zst", true, "EPL", "2024-2025", 2300101},
		{"EPL/2300101.json", false, "", "", 0},
		{"EPL/2024-2025/notes.txt", false, "", "", 0},
		{"EPL/2024-2025/abc.json", false, "", "", 0},
	}

	for _, tc := range cases {
		partition, season, id, ok := parseRecordKey(tc.rel)
		if ok != tc.ok {
			t.Errorf("parseRecordKey(%q) ok = %v, want %v", tc.rel, ok, tc.ok)
			continue
		}
		if ok && (partition != tc.partition || season != tc.season || id != tc.id) {
			t.Errorf("parseRecordKey(%q) = %s/%s/%d", tc.rel, partition, season, id)
		}
	}
}
