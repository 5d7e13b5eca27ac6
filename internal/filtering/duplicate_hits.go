package filtering

import (
	"context"

	"go.uber.org/zap"

	"github.com/spigell/scholarship-hunter/internal/ingest"
	"github.com/spigell/scholarship-hunter/internal/search"
)

type duplicateHitsFilter struct {
	disabled bool
	reason   string
}

// NewDuplicateHits creates a filter that keeps only the first hit for every normalized URL.
func NewDuplicateHits() Filter {
	return &duplicateHitsFilter{}
}

func (f *duplicateHitsFilter) Name() string { return "duplicate_hits" }

func (f *duplicateHitsFilter) Disable(reason string) {
	f.disabled = true
	f.reason = reason
}

func (f *duplicateHitsFilter) IsEnabled() bool { return !f.disabled }

func (f *duplicateHitsFilter) Validate(*Config) error { return nil }

func (f *duplicateHitsFilter) Apply(_ context.Context, deps Deps, hits []search.Hit) ([]search.Hit, Step, error) {
	seen := make(map[string]struct{}, len(hits))
	left, dropped := keep(hits, func(hit search.Hit) bool {
		key := ingest.NormalizeURL(hit.URL)
		if _, ok := seen[key]; ok {
			return false
		}
		seen[key] = struct{}{}
		return true
	})

	if deps.Logger != nil && len(dropped) > 0 {
		deps.Logger.Debug("excluding repeated hits", zap.Strings("urls", dropped))
	}

	return left, Step{Initial: len(hits), Dropped: len(dropped), Left: len(left)}, nil
}

func (f *duplicateHitsFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason}
}
