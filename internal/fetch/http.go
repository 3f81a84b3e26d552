package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Fetcher probes a single id against the remote source.
type Fetcher interface {
	Fetch(ctx context.Context, id int64) Outcome
}

// SourceConfig configures the remote source adapter.
type SourceConfig struct {
	Mode      string // "http" | "mock"
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
}

// New creates a fetcher based on configuration. The default is the
// offline-safe mock so the binary can be exercised without a target.
func New(cfg SourceConfig) (Fetcher, error) {
	switch cfg.Mode {
	case "http":
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("base_url required for http source")
		}
		return NewHTTPFetcher(cfg), nil
	case "", "mock":
		return NewMockFetcher(nil), nil
	default:
		return nil, fmt.Errorf("unknown source mode: %s", cfg.Mode)
	}
}

// HTTPFetcher probes ids over plain HTTP GET. A 200 is a Success with
// the response body as payload, a 404 or 410 is a NotFound, anything
// else (including transport errors) is a TransientError.
type HTTPFetcher struct {
	baseURL   string
	userAgent string
	client    *http.Client
}

// NewHTTPFetcher creates an HTTP fetcher. The base URL may contain a
// "{id}" placeholder; without one the id is appended as a path segment.
func NewHTTPFetcher(cfg SourceConfig) *HTTPFetcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPFetcher{
		baseURL:   cfg.BaseURL,
		userAgent: cfg.UserAgent,
		client:    &http.Client{Timeout: timeout},
	}
}

func (f *HTTPFetcher) url(id int64) string {
	if strings.Contains(f.baseURL, "{id}") {
		return strings.ReplaceAll(f.baseURL, "{id}", fmt.Sprintf("%d", id))
	}
	return fmt.Sprintf("%s/%d", strings.TrimRight(f.baseURL, "/"), id)
}

// Fetch probes one id.
func (f *HTTPFetcher) Fetch(ctx context.Context, id int64) Outcome {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url(id), nil)
	if err != nil {
		return Outcome{Kind: TransientError, Err: fmt.Errorf("build request for id %d: %w", id, err)}
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return Outcome{Kind: TransientError, Err: fmt.Errorf("fetch id %d: %w", id, err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return Outcome{Kind: TransientError, Err: fmt.Errorf("read body for id %d: %w", id, err)}
		}
		return Outcome{Kind: Success, Payload: body}
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return Outcome{Kind: NotFound}
	default:
		return Outcome{Kind: TransientError, Err: fmt.Errorf("fetch id %d: unexpected status %d", id, resp.StatusCode)}
	}
}
