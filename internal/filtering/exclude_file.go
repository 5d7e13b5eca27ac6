package filtering

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/scholarship-hunter/internal/ingest"
	"github.com/spigell/scholarship-hunter/internal/search"
)

type excludeFileFilter struct {
	path     string
	excluded map[string]struct{}
}

// NewExcludeFile creates a filter that removes hits listed in the exclude file.
// The file holds one URL per line; blank lines and lines starting with # are ignored.
func NewExcludeFile() Filter {
	return &excludeFileFilter{}
}

func (f *excludeFileFilter) Name() string { return "exclude_file" }

func (f *excludeFileFilter) Disable(string) {}

func (f *excludeFileFilter) IsEnabled() bool { return true }

// Validate loads the file so a missing or unreadable one is reported before any hit exists.
func (f *excludeFileFilter) Validate(cfg *Config) error {
	f.path, f.excluded = "", nil
	if cfg != nil {
		f.path = strings.TrimSpace(cfg.ExcludeFile)
	}
	if f.path == "" {
		return nil
	}

	excluded, err := readExcludedURLs(f.path)
	if err != nil {
		return fmt.Errorf("getting excluded urls from file: %w", err)
	}
	f.excluded = excluded
	return nil
}

func (f *excludeFileFilter) Apply(_ context.Context, deps Deps, hits []search.Hit) ([]search.Hit, Step, error) {
	if f.path == "" {
		return hits, Step{Initial: len(hits), Dropped: 0, Left: len(hits)}, nil
	}

	left, dropped := keep(hits, func(hit search.Hit) bool {
		_, ok := f.excluded[ingest.NormalizeURL(hit.URL)]
		return !ok
	})

	if deps.Logger != nil && len(dropped) > 0 {
		deps.Logger.Info("excluding hits based on exclude file",
			zap.String("path", f.path),
			zap.Strings("excluded_urls", dropped),
			zap.Int("hits_left", len(left)),
		)
	}

	return left, Step{Initial: len(hits), Dropped: len(dropped), Left: len(left)}, nil
}

func readExcludedURLs(path string) (map[string]struct{}, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	urls := make(map[string]struct{})
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls[ingest.NormalizeURL(line)] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return urls, nil
}

func (f *excludeFileFilter) Status() Status {
	details := map[string]string{}
	if f.path != "" {
		details["path"] = f.path
	}
	return Status{Name: f.Name(), Enabled: true, Details: details}
}
