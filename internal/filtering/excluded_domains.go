package filtering

import (
	"context"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/scholarship-hunter/internal/search"
)

type excludedDomainsFilter struct {
	domains []string
}

// NewExcludedDomains creates a filter that removes hits hosted on configured domains or their subdomains.
func NewExcludedDomains() Filter {
	return &excludedDomainsFilter{}
}

func (f *excludedDomainsFilter) Name() string { return "excluded_domains" }

func (f *excludedDomainsFilter) Disable(string) {}

func (f *excludedDomainsFilter) IsEnabled() bool { return true }

func (f *excludedDomainsFilter) Validate(cfg *Config) error {
	f.domains = nil
	if cfg == nil {
		return nil
	}
	for _, d := range cfg.ExcludedDomains {
		d = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(d)), "www.")
		if d != "" {
			f.domains = append(f.domains, d)
		}
	}
	return nil
}

func (f *excludedDomainsFilter) Apply(_ context.Context, deps Deps, hits []search.Hit) ([]search.Hit, Step, error) {
	if len(f.domains) == 0 {
		return hits, Step{Initial: len(hits), Dropped: 0, Left: len(hits)}, nil
	}

	left, dropped := keep(hits, func(hit search.Hit) bool {
		return !f.matches(hit.URL)
	})

	if deps.Logger != nil && len(dropped) > 0 {
		deps.Logger.Info("excluding hits by domain",
			zap.Strings("excluded_domains", f.domains),
			zap.Strings("excluded_urls", dropped),
			zap.Int("hits_left", len(left)),
		)
	}

	return left, Step{Initial: len(hits), Dropped: len(dropped), Left: len(left)}, nil
}

func (f *excludedDomainsFilter) matches(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, d := range f.domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func (f *excludedDomainsFilter) Status() Status {
	details := map[string]string{}
	if len(f.domains) > 0 {
		details["domains"] = strings.Join(f.domains, ",")
	}
	return Status{Name: f.Name(), Enabled: true, Details: details}
}
