package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/mmcdole/gofeed"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/spigell/scholarship-hunter/internal/utils"
)

const maxSnippetLength = 300

// RSS searches a fixed list of scholarship feeds. An item matches a query when
// at least half of the query terms occur in its title or description.
type RSS struct {
	feeds  []string
	parser *gofeed.Parser
	logger *zap.Logger
}

func NewRSS(feeds []string, timeout time.Duration, logger *zap.Logger) *RSS {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	parser := gofeed.NewParser()
	parser.Client = &http.Client{Timeout: timeout}
	parser.UserAgent = userAgent

	cleaned := make([]string, 0, len(feeds))
	for _, f := range feeds {
		if f = strings.TrimSpace(f); f != "" {
			cleaned = append(cleaned, f)
		}
	}

	return &RSS{feeds: cleaned, parser: parser, logger: logger}
}

// Search fails only when every feed fails; single feed errors are logged.
func (r *RSS) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	if len(r.feeds) == 0 {
		return nil, errors.New("no rss feeds configured")
	}

	terms := queryTerms(query)
	if len(terms) == 0 {
		return nil, errors.New("search query must not be empty")
	}
	need := (len(terms) + 1) / 2

	var (
		hits   []Hit
		errs   error
		failed int
	)

	for _, feedURL := range r.feeds {
		feed, err := r.parser.ParseURLWithContext(feedURL, ctx)
		if err != nil {
			failed++
			errs = multierr.Append(errs, fmt.Errorf("feed %s: %w", feedURL, err))
			r.logger.Warn("reading rss feed failed", zap.String("feed", feedURL), zap.Error(err))
			continue
		}

		for _, item := range feed.Items {
			if item == nil || strings.TrimSpace(item.Link) == "" {
				continue
			}

			if countTerms(words(item.Title+" "+item.Description), terms) < need {
				continue
			}

			hits = append(hits, Hit{
				Title:   strings.TrimSpace(item.Title),
				URL:     strings.TrimSpace(item.Link),
				Snippet: utils.TruncateForLog(item.Description, maxSnippetLength),
				Query:   query,
			})

			if limit > 0 && len(hits) >= limit {
				return hits, nil
			}
		}
	}

	if failed == len(r.feeds) {
		return nil, fmt.Errorf("all rss feeds failed: %w", errs)
	}

	return hits, nil
}

func queryTerms(query string) []string {
	seen := make(map[string]struct{})
	var terms []string
	for _, f := range strings.FieldsFunc(strings.ToLower(query), splitWord) {
		if _, ok := seen[f]; ok || len([]rune(f)) < 2 {
			continue
		}
		seen[f] = struct{}{}
		terms = append(terms, f)
	}
	return terms
}

func splitWord(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func words(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.FieldsFunc(strings.ToLower(text), splitWord) {
		set[w] = struct{}{}
	}
	return set
}

func countTerms(set map[string]struct{}, terms []string) int {
	n := 0
	for _, t := range terms {
		if _, ok := set[t]; ok {
			n++
		}
	}
	return n
}
