package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
)

func classifierServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		id, err := strconv.ParseInt(parts[len(parts)-1], 10, 64)
		if err != nil {
			http.Error(w, "bad id", http.StatusBadRequest)
			return
		}
		switch {
		case id%3 == 0:
			http.NotFound(w, r)
		case id%5 == 0:
			http.Error(w, "upstream down", http.StatusBadGateway)
		default:
			fmt.Fprintf(w, `{"match_id":%d}`, id)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPFetcherClassifiesOutcomes(t *testing.T) {
	srv := classifierServer(t)
	f := NewHTTPFetcher(SourceConfig{BaseURL: srv.URL + "/matches"})

	tests := []struct {
		id   int64
		want Kind
	}{
		{1, Success},
		{3, NotFound},
		{5, TransientError},
	}
	for _, tt := range tests {
		out := f.Fetch(context.Background(), tt.id)
		if out.Kind != tt.want {
			t.Errorf("id %d: kind = %s, want %s", tt.id, out.Kind, tt.want)
		}
	}

	out := f.Fetch(context.Background(), 1)
	if string(out.Payload) != `{"match_id":1}` {
		t.Fatalf("payload = %s", out.Payload)
	}
	out = f.Fetch(context.Background(), 5)
	if out.Err == nil {
		t.Fatal("transient outcome carries no error")
	}
}

func TestHTTPFetcherIDPlaceholder(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte("{}"))
	}))
	t.Cleanup(srv.Close)

	f := NewHTTPFetcher(SourceConfig{BaseURL: srv.URL + "/feeds/{id}/events"})
	if out := f.Fetch(context.Background(), 42); out.Kind != Success {
		t.Fatalf("kind = %s", out.Kind)
	}
	if gotPath != "/feeds/42/events" {
		t.Fatalf("path = %q, want /feeds/42/events", gotPath)
	}
}

func TestHTTPFetcherUserAgent(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte("{}"))
	}))
	t.Cleanup(srv.Close)

	f := NewHTTPFetcher(SourceConfig{BaseURL: srv.URL, UserAgent: "matchingest/test"})
	f.Fetch(context.Background(), 1)
	if gotUA != "matchingest/test" {
		t.Fatalf("user agent = %q", gotUA)
	}
}

func TestHTTPFetcherUnreachableIsTransient(t *testing.T) {
	f := NewHTTPFetcher(SourceConfig{BaseURL: "http://127.0.0.1:1/matches"})
	out := f.Fetch(context.Background(), 7)
	if out.Kind != TransientError {
		t.Fatalf("kind = %s, want %s", out.Kind, TransientError)
	}
}

func TestMockFetcher(t *testing.T) {
	f := NewMockFetcher([]int64{2})
	if out := f.Fetch(context.Background(), 1); out.Kind != Success || len(out.Payload) == 0 {
		t.Fatalf("id 1: %+v", out)
	}
	if out := f.Fetch(context.Background(), 2); out.Kind != NotFound {
		t.Fatalf("id 2: kind = %s, want %s", out.Kind, NotFound)
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	if _, err := New(SourceConfig{Mode: "http"}); err == nil {
		t.Fatal("http mode without base_url accepted")
	}
	if _, err := New(SourceConfig{Mode: "carrier-pigeon"}); err == nil {
		t.Fatal("unknown mode accepted")
	}
	if f, err := New(SourceConfig{}); err != nil || f == nil {
		t.Fatalf("default mode: %v", err)
	}
}
