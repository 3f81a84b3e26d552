// Package notify emits ingestion events to an optional webhook so
// downstream consumers (dashboards, consolidation triggers) learn about
// finished chunks without polling the manifest.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Event describes one completed unit of work.
type Event struct {
	Type      string    `json:"type"` // "chunk_complete" | "consolidation_complete"
	RunID     string    `json:"run_id,omitempty"`
	Partition string    `json:"partition,omitempty"`
	Category  string    `json:"category"`
	Start     int64     `json:"start,omitempty"`
	End       int64     `json:"end,omitempty"`
	Success   int       `json:"success"`
	NotFound  int       `json:"notfound"`
	Errors    int       `json:"errors"`
	Rows      int64     `json:"rows,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Emitter delivers events.
type Emitter interface {
	Emit(ctx context.Context, evt Event) error
	Close() error
}

// Config configures event emission.
type Config struct {
	Enabled  bool
	Endpoint string
	Timeout  time.Duration
}

// NewEmitter creates an emitter based on configuration.
func NewEmitter(cfg Config, log *slog.Logger) Emitter {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "notify")

	if !cfg.Enabled || cfg.Endpoint == "" {
		return &noopEmitter{}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	log.Info("webhook emitter enabled", "endpoint", cfg.Endpoint)
	return &httpEmitter{
		endpoint: cfg.Endpoint,
		client:   &http.Client{Timeout: timeout},
		log:      log,
	}
}

// httpEmitter POSTs events as JSON with bounded retries. Delivery is
// best-effort: a failed emission is logged, never fails the run.
type httpEmitter struct {
	endpoint string
	client   *http.Client
	log      *slog.Logger
}

const emitAttempts = 3

func (e *httpEmitter) Emit(ctx context.Context, evt Event) error {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= emitAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}
		lastErr = e.post(ctx, body)
		if lastErr == nil {
			return nil
		}
		e.log.Warn("event delivery failed", "attempt", attempt, "error", lastErr)
	}
	return fmt.Errorf("emit event after %d attempts: %w", emitAttempts, lastErr)
}

func (e *httpEmitter) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (e *httpEmitter) Close() error { return nil }

// noopEmitter discards all events.
type noopEmitter struct{}

func (n *noopEmitter) Emit(_ context.Context, _ Event) error { return nil }
func (n *noopEmitter) Close() error                          { return nil }
