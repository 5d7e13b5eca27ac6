package filtering

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/scholarship-hunter/internal/search"
)

// Filter represents a single filtering step applied to search hits before they are fetched.
type Filter interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Validate(cfg *Config) error
	Apply(ctx context.Context, deps Deps, hits []search.Hit) ([]search.Hit, Step, error)
}

// Deps aggregates dependencies shared across all filtering steps.
type Deps struct {
	Logger *zap.Logger
}

// Step describes the result of executing a filtering step.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// Config contains configuration settings consumed by the filters.
type Config struct {
	ExcludedDomains []string
	ExcludeFile     string
}

// Status represents runtime information about a filter.
type Status struct {
	Name    string
	Enabled bool
	Reason  string
	Details map[string]string
}

// statusProvider is implemented by filters that can supply detailed status information.
type statusProvider interface {
	Status() Status
}

// Default returns the standard chain in the order it is applied.
func Default() []Filter {
	return []Filter{
		NewDuplicateHits(),
		NewExcludedDomains(),
		NewExcludeFile(),
	}
}

// DisableByName marks a filter with the provided name as disabled while keeping it in the list.
func DisableByName(steps []Filter, name, reason string) {
	for _, step := range steps {
		if step.Name() == name {
			step.Disable(reason)
		}
	}
}

// Validate prepares every enabled filter with cfg. It touches no hits, so
// callers can run it before searching.
func Validate(cfg *Config, steps []Filter) error {
	for _, step := range steps {
		if !step.IsEnabled() {
			continue
		}
		if err := step.Validate(cfg); err != nil {
			return fmt.Errorf("%s: %w", step.Name(), err)
		}
	}
	return nil
}

// Run validates the supplied filters with cfg, then applies them.
func Run(ctx context.Context, cfg *Config, deps Deps, steps []Filter, hits []search.Hit) ([]search.Hit, error) {
	if err := Validate(cfg, steps); err != nil {
		return nil, err
	}
	return Apply(ctx, deps, steps, hits)
}

// Apply executes already validated filters sequentially and returns the hits left.
func Apply(ctx context.Context, deps Deps, steps []Filter, hits []search.Hit) ([]search.Hit, error) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	for _, step := range steps {
		if !step.IsEnabled() {
			logger.Info("filter disabled", zap.String("name", step.Name()))
			continue
		}

		next, info, err := step.Apply(ctx, deps, hits)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}

		logger.Info("filter step",
			zap.String("name", step.Name()),
			zap.Int("initial", info.Initial),
			zap.Int("dropped", info.Dropped),
			zap.Int("left", info.Left),
		)

		hits = next
	}

	return hits, nil
}

// Describe returns status entries for the provided filters.
func Describe(steps []Filter) []Status {
	statuses := make([]Status, 0, len(steps))
	for _, step := range steps {
		if reporter, ok := step.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}

		statuses = append(statuses, Status{
			Name:    step.Name(),
			Enabled: step.IsEnabled(),
		})
	}
	return statuses
}

// keep returns the hits accepted by fn and the URLs of the dropped ones.
func keep(hits []search.Hit, fn func(search.Hit) bool) ([]search.Hit, []string) {
	left := make([]search.Hit, 0, len(hits))
	var dropped []string
	for _, hit := range hits {
		if fn(hit) {
			left = append(left, hit)
			continue
		}
		dropped = append(dropped, hit.URL)
	}
	return left, dropped
}
