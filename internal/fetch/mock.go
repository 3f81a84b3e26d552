package fetch

import (
	"context"
	"fmt"
)

// MockFetcher synthesizes deterministic outcomes without touching the
// network, so the binary and its tests are safe to run offline. Ids
// listed in missing answer NotFound; everything else succeeds with a
// small synthetic payload.
type MockFetcher struct {
	missing map[int64]bool
}

// NewMockFetcher creates a mock fetcher. The missing set may be nil.
func NewMockFetcher(missing []int64) *MockFetcher {
	m := make(map[int64]bool, len(missing))
	for _, id := range missing {
		m[id] = true
	}
	return &MockFetcher{missing: m}
}

// Fetch returns a synthetic outcome for the id.
func (f *MockFetcher) Fetch(ctx context.Context, id int64) Outcome {
	if err := ctx.Err(); err != nil {
		return Outcome{Kind: TransientError, Err: err}
	}
	if f.missing[id] {
		return Outcome{Kind: NotFound}
	}
	payload := fmt.Appendf(nil, `{"id":%d,"mock":true}`, id)
	return Outcome{Kind: Success, Payload: payload}
}
