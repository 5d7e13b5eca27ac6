package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/spigell/scholarship-hunter/internal/ai"
	"github.com/spigell/scholarship-hunter/internal/cv"
	"github.com/spigell/scholarship-hunter/internal/filtering"
	"github.com/spigell/scholarship-hunter/internal/ingest"
	"github.com/spigell/scholarship-hunter/internal/logger"
	"github.com/spigell/scholarship-hunter/internal/search"
	"github.com/spigell/scholarship-hunter/internal/store"
	"github.com/spigell/scholarship-hunter/internal/utils"
)

// ErrSetup marks failures that prevent a run from starting.
var ErrSetup = errors.New("run setup failed")

// Outcomes produced by the runner itself. The rest come from ingest.
const (
	OutcomeFetchError    = "fetch_error"
	OutcomeClassifyError = "classify_error"
	OutcomeFiltered      = "filtered"
)

var wait = utils.WaitFor

// Fetcher returns the visible text of a page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Recorder receives the totals of a finished run.
type Recorder interface {
	Observe(hits int, outcomes map[string]int, duration time.Duration)
	Push(ctx context.Context) error
}

type Config struct {
	Queries      []string
	MaxResults   int
	CVPath       string
	RequestDelay time.Duration
	// Precheck compares the hit URL and title with the table before fetching.
	Precheck   bool
	ReportFile string
	Filters    filtering.Config
	Ingest     ingest.Config
}

type Deps struct {
	Searcher   search.Searcher
	Fetcher    Fetcher
	Classifier ai.Classifier
	Store      store.Store
	Approver   ingest.Approver
	Filters    []filtering.Filter
	Metrics    Recorder
	Logger     *zap.Logger
	Now        func() time.Time
}

// HitResult is the outcome recorded for one search hit.
type HitResult struct {
	Query       string `yaml:"query,omitempty"`
	Title       string `yaml:"title"`
	URL         string `yaml:"url"`
	Outcome     string `yaml:"outcome"`
	ProgramName string `yaml:"program_name,omitempty"`
	MatchScore  int    `yaml:"match_score,omitempty"`
	Match       string `yaml:"match,omitempty"`
	Error       string `yaml:"error,omitempty"`
}

// Summary describes a whole run.
type Summary struct {
	RunID      string         `yaml:"run_id"`
	StartedAt  time.Time      `yaml:"started_at"`
	FinishedAt time.Time      `yaml:"finished_at"`
	Queries    int            `yaml:"queries"`
	Hits       int            `yaml:"hits"`
	Processed  int            `yaml:"processed"`
	Outcomes   map[string]int `yaml:"outcomes"`
	Results    []HitResult    `yaml:"results,omitempty"`
	SearchErr  string         `yaml:"search_error,omitempty"`
}

// Accepted returns the number of rows appended in the run.
func (s *Summary) Accepted() int {
	return s.Outcomes[string(ingest.OutcomeAccepted)]
}

func (s *Summary) add(r HitResult) {
	s.Results = append(s.Results, r)
	s.Outcomes[r.Outcome]++
	s.Processed++
}

type Runner struct {
	cfg  Config
	deps Deps
}

func New(cfg Config, deps Deps) *Runner {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Approver == nil {
		deps.Approver = ingest.AutoApprove{}
	}
	return &Runner{cfg: cfg, deps: deps}
}

// Run executes one full pass: search, filter, then fetch, classify and ingest
// every hit in order. A failed search ends the run early with nothing
// processed and no error. Setup failures return ErrSetup; a cancelled
// context or an operator stop returns the partial summary with the error.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	summary := &Summary{
		RunID:     uuid.NewString(),
		StartedAt: r.deps.Now(),
		Queries:   len(r.cfg.Queries),
		Outcomes:  make(map[string]int),
	}
	log := logger.WithRunID(r.deps.Logger, summary.RunID)

	log.Info("run started", zap.Strings("queries", r.cfg.Queries))

	cvText, err := cv.Load(r.cfg.CVPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSetup, err)
	}

	records, err := r.deps.Store.ReadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: read existing records: %w", ErrSetup, err)
	}
	log.Info("loaded existing records", zap.Int("count", len(records)))

	pipeline := ingest.New(r.cfg.Ingest, records, r.deps.Store,
		ingest.WithLogger(log),
		ingest.WithApprover(r.deps.Approver),
		ingest.WithClock(r.deps.Now),
	)

	if err := filtering.Validate(&r.cfg.Filters, r.deps.Filters); err != nil {
		return nil, fmt.Errorf("%w: filters: %w", ErrSetup, err)
	}

	hits, err := r.search(ctx, log)
	if err != nil {
		summary.SearchErr = err.Error()
		return r.finish(ctx, log, summary), nil
	}
	summary.Hits = len(hits)

	left, err := filtering.Apply(ctx, filtering.Deps{Logger: log}, r.deps.Filters, hits)
	if err != nil {
		return nil, fmt.Errorf("%w: filter hits: %w", ErrSetup, err)
	}
	if dropped := len(hits) - len(left); dropped > 0 {
		summary.Outcomes[OutcomeFiltered] = dropped
	}

	for i, hit := range left {
		if i > 0 {
			if err := wait(ctx, r.cfg.RequestDelay); err != nil {
				log.Warn("run interrupted", zap.Error(err))
				r.finish(ctx, log, summary)
				return summary, err
			}
		}

		result := r.process(ctx, log, pipeline, cvText, hit)
		summary.add(result)
		if result.Outcome == string(ingest.OutcomeStopped) {
			log.Warn("run stopped before all hits were processed", zap.Int("left", len(left)-i-1))
			r.finish(ctx, log, summary)
			return summary, ingest.ErrStopped
		}
	}

	return r.finish(ctx, log, summary), nil
}

func (r *Runner) search(ctx context.Context, log *zap.Logger) ([]search.Hit, error) {
	var hits []search.Hit
	for _, query := range r.cfg.Queries {
		found, err := r.deps.Searcher.Search(ctx, query, r.cfg.MaxResults)
		if err != nil {
			fields := []zap.Field{zap.String("query", query), zap.Error(err)}
			var statusErr *search.StatusError
			if errors.As(err, &statusErr) && statusErr.RateLimited() {
				fields = append(fields, zap.String("hint", "search quota is probably exhausted; try again tomorrow"))
			}
			log.Error("search failed, nothing will be processed", fields...)
			return nil, err
		}

		log.Info("search finished", zap.String("query", query), zap.Int("hits", len(found)))
		hits = append(hits, found...)
	}
	return hits, nil
}

func (r *Runner) process(ctx context.Context, log *zap.Logger, pipeline *ingest.Pipeline, cvText string, hit search.Hit) HitResult {
	result := HitResult{Query: hit.Query, Title: hit.Title, URL: hit.URL}
	hitLog := logger.WithHit(log, hit.Query, hit.URL)

	if r.cfg.Precheck {
		if match, dup := pipeline.Known(hit.URL, hit.Title); dup {
			hitLog.Info("skipping hit", zap.String("reason", string(ingest.OutcomeDuplicate)),
				zap.String("match", string(match.Kind)),
				zap.String("existing_url", match.Record.URL),
			)
			result.Outcome = string(ingest.OutcomeDuplicate)
			result.Match = string(match.Kind)
			return result
		}
	}

	text, err := r.deps.Fetcher.Fetch(ctx, hit.URL)
	if err == nil && strings.TrimSpace(text) == "" {
		err = errors.New("page has no text")
	}
	if err != nil {
		hitLog.Warn("skipping hit", zap.String("reason", OutcomeFetchError), zap.Error(err))
		result.Outcome = OutcomeFetchError
		result.Error = err.Error()
		return result
	}

	assessment, err := r.deps.Classifier.Classify(ctx, text, hit.URL, cvText)
	if err != nil {
		hitLog.Warn("skipping hit", zap.String("reason", OutcomeClassifyError), zap.Error(err))
		result.Outcome = OutcomeClassifyError
		result.Error = err.Error()
		return result
	}

	res := pipeline.Ingest(ctx, r.candidate(hit, assessment))

	result.Outcome = string(res.Outcome)
	result.ProgramName = assessment.ProgramName
	result.MatchScore = assessment.MatchScore
	if res.Match != nil {
		result.Match = string(res.Match.Kind)
	}
	if res.Err != nil {
		result.Error = res.Err.Error()
	}
	return result
}

func (r *Runner) candidate(hit search.Hit, a *ai.Assessment) ingest.Candidate {
	name := a.ProgramName
	if strings.TrimSpace(name) == "" {
		name = hit.Title
	}

	c := ingest.Candidate{
		URL:           hit.URL,
		ProgramName:   name,
		DeadlineText:  a.Deadline,
		MatchScore:    a.MatchScore,
		Notes:         a.Notes,
		IsScholarship: a.IsScholarship,
		FoundDate:     r.deps.Now(),
	}
	if deadline, ok := ingest.ParseDeadline(a.Deadline); ok {
		c.Deadline = &deadline
	}
	return c
}

func (r *Runner) finish(ctx context.Context, log *zap.Logger, summary *Summary) *Summary {
	summary.FinishedAt = r.deps.Now()

	fields := []zap.Field{
		zap.Int("hits", summary.Hits),
		zap.Int("processed", summary.Processed),
		zap.Int("accepted", summary.Accepted()),
		zap.Duration("duration", summary.FinishedAt.Sub(summary.StartedAt)),
	}
	for outcome, n := range summary.Outcomes {
		fields = append(fields, zap.Int(outcome, n))
	}
	log.Info("run finished", fields...)

	if r.deps.Metrics != nil {
		r.deps.Metrics.Observe(summary.Hits, summary.Outcomes, summary.FinishedAt.Sub(summary.StartedAt))
		// A cancelled run still gets its metrics out.
		if err := r.deps.Metrics.Push(context.WithoutCancel(ctx)); err != nil {
			log.Warn("pushing metrics failed", zap.Error(err))
		}
	}

	if r.cfg.ReportFile != "" {
		if err := WriteReport(r.cfg.ReportFile, summary); err != nil {
			log.Warn("writing run report failed", zap.String("path", r.cfg.ReportFile), zap.Error(err))
		} else {
			log.Info("run report written", zap.String("path", r.cfg.ReportFile))
		}
	}

	return summary
}

// WriteReport stores the summary as YAML.
func WriteReport(path string, summary *Summary) error {
	data, err := yaml.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
