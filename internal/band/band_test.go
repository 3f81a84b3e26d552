package band

import (
	"errors"
	"testing"
)

func TestNewSetValidation(t *testing.T) {
	cases := []struct {
		name  string
		bands []Band
		ok    bool
	}{
		{
			name: "valid pair",
			bands: []Band{
				{Partition: "EPL", Season: "2024-2025", MinID: 2300000, MaxID: 2300620},
				{Partition: "La_Liga", Season: "2024-2025", MinID: 2310000, MaxID: 2310500},
			},
			ok: true,
		},
		{
			name:  "empty set",
			bands: nil,
			ok:    false,
		},
		{
			name: "inverted range",
			bands: []Band{
				{Partition: "EPL", MinID: 100, MaxID: 10},
			},
			ok: false,
		},
		{
			name: "duplicate partition",
			bands: []Band{
				{Partition: "EPL", MinID: 1, MaxID: 10},
				{Partition: "EPL", MinID: 20, MaxID: 30},
			},
			ok: false,
		},
		{
			name: "missing partition key",
			bands: []Band{
				{MinID: 1, MaxID: 10},
			},
			ok: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewSet(tc.bands)
			if tc.ok && err != nil {
				t.Fatalf("expected valid set, got %v", err)
			}
			if !tc.ok {
				if err == nil {
					t.Fatal("expected error")
				}
				if !errors.Is(err, ErrInvalidBand) {
					t.Fatalf("expected ErrInvalidBand, got %v", err)
				}
			}
		})
	}
}

func TestSetGetUnknownPartition(t *testing.T) {
	s, err := NewSet([]Band{{Partition: "EPL", MinID: 1, MaxID: 10}})
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}

	if _, err := s.Get("Serie_A"); !errors.Is(err, ErrUnknownPartition) {
		t.Fatalf("expected ErrUnknownPartition, got %v", err)
	}
}

func TestBandContainsAndSize(t *testing.T) {
	b := Band{Partition: "EPL", MinID: 100, MaxID: 110}

	if !b.Contains(100) || !b.Contains(110) {
		t.Error("bounds should be inclusive")
	}
	if b.Contains(99) || b.Contains(111) {
		t.Error("ids outside the range should not be contained")
	}
	if got := b.Size(); got != 11 {
		t.Errorf("Size() = %d, want 11", got)
	}
}

func TestPartitionsSorted(t *testing.T) {
	s, err := NewSet([]Band{
		{Partition: "Serie_A", MinID: 1, MaxID: 2},
		{Partition: "Bundesliga", MinID: 3, MaxID: 4},
		{Partition: "EPL", MinID: 5, MaxID: 6},
	})
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}

	got := s.Partitions()
	want := []string{"Bundesliga", "EPL", "Serie_A"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Partitions() = %v, want %v", got, want)
		}
	}
}
