package search

import (
	"context"
	"fmt"
	"net/http"
)

// Hit is a single search result. It has no identity beyond its URL.
type Hit struct {
	Title   string `json:"title" yaml:"title"`
	URL     string `json:"url" yaml:"url"`
	Snippet string `json:"snippet" yaml:"snippet"`
	Query   string `json:"query,omitempty" yaml:"query,omitempty"`
}

// Searcher returns ordered hits for a query.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]Hit, error)
}

// StatusError is returned when the search provider answers with a non-200 status.
type StatusError struct {
	Provider   string
	StatusCode int
	Status     string
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s search: bad status %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s search: bad status: %s", e.Provider, e.Status)
}

// RateLimited reports whether the provider refused the request because of quota.
func (e *StatusError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode == http.StatusForbidden
}
