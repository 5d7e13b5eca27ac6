package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
)

func newTestGoogle(t *testing.T, handler http.HandlerFunc) *Google {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	g := NewGoogle("key", "cx", nil)
	g.HTTPClient = server.Client()
	g.APIURL = server.URL
	return g
}

func TestGoogleSearchPages(t *testing.T) {
	t.Parallel()

	var starts []string
	g := newTestGoogle(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("key") != "key" || q.Get("cx") != "cx" {
			t.Errorf("missing credentials in query: %s", r.URL.RawQuery)
		}
		if q.Get("q") != "ai scholarship" {
			t.Errorf("unexpected query %q", q.Get("q"))
		}
		starts = append(starts, q.Get("start"))

		num, _ := strconv.Atoi(q.Get("num"))
		start, _ := strconv.Atoi(q.Get("start"))
		if start == 0 {
			start = 1
		}

		type item struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		}
		var items []item
		for i := 0; i < num; i++ {
			n := start + i
			items = append(items, item{
				Title:   fmt.Sprintf("Result %d", n),
				Link:    fmt.Sprintf("https://example.org/%d", n),
				Snippet: "snippet",
			})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"items": items})
	})

	hits, err := g.Search(context.Background(), "ai scholarship", 15)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(hits) != 15 {
		t.Fatalf("expected 15 hits, got %d", len(hits))
	}
	if hits[0].URL != "https://example.org/1" || hits[14].URL != "https://example.org/15" {
		t.Fatalf("unexpected hit order: first %q last %q", hits[0].URL, hits[14].URL)
	}
	if hits[0].Query != "ai scholarship" {
		t.Fatalf("expected query on hit, got %q", hits[0].Query)
	}
	if len(starts) != 2 || starts[0] != "" || starts[1] != "11" {
		t.Fatalf("unexpected paging: %v", starts)
	}
}

func TestGoogleSearchStopsOnShortPage(t *testing.T) {
	t.Parallel()

	calls := 0
	g := newTestGoogle(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte(`{"items":[{"title":"Only","link":"https://example.org/only"},{"title":"No link","link":""}]}`))
	})

	hits, err := g.Search(context.Background(), "ai", 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single request, got %d", calls)
	}
	if len(hits) != 1 || hits[0].Title != "Only" {
		t.Fatalf("unexpected hits: %+v", hits)
	}
}

func TestGoogleSearchStatusError(t *testing.T) {
	t.Parallel()

	g := newTestGoogle(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"Quota exceeded for quota metric 'Queries'"}}`))
	})

	_, err := g.Search(context.Background(), "ai", 10)
	if err == nil {
		t.Fatal("expected error")
	}

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %T", err)
	}
	if !statusErr.RateLimited() {
		t.Fatalf("expected rate limited error, got status %d", statusErr.StatusCode)
	}
	if statusErr.Message != "Quota exceeded for quota metric 'Queries'" {
		t.Fatalf("unexpected message %q", statusErr.Message)
	}
}

func TestGoogleSearchRequiresCredentials(t *testing.T) {
	t.Parallel()

	g := NewGoogle("", "cx", nil)
	if _, err := g.Search(context.Background(), "ai", 10); err == nil {
		t.Fatal("expected error for missing api key")
	}
}
