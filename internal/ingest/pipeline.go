package ingest

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/scholarship-hunter/internal/store"
)

const (
	DefaultFuzzyThreshold = 85
	dateLayout            = "2006-01-02"
	unknownValue          = store.Unknown
)

// Outcome is the decision taken for a single candidate.
type Outcome string

const (
	OutcomeAccepted       Outcome = "accepted"
	OutcomeDuplicate      Outcome = "duplicate"
	OutcomeBelowThreshold Outcome = "below_threshold"
	OutcomeNotScholarship Outcome = "not_scholarship"
	OutcomeAppendError    Outcome = "append_error"
	OutcomeRejected       Outcome = "rejected_by_user"
	OutcomeStopped        Outcome = "stopped"
)

// MatchKind tells how a duplicate was detected.
type MatchKind string

const (
	MatchURL  MatchKind = "url"
	MatchName MatchKind = "name"
)

// Candidate is a classified search hit that is not persisted yet.
type Candidate struct {
	URL         string
	ProgramName string
	// Deadline is nil when unknown. DeadlineText keeps the classifier's
	// original value when it could not be parsed.
	Deadline      *time.Time
	DeadlineText  string
	MatchScore    int
	Notes         string
	IsScholarship bool
	FoundDate     time.Time
}

// Match points at the existing record a candidate duplicates.
type Match struct {
	Kind       MatchKind
	Record     store.Record
	Similarity int
}

// Result is what happened to a candidate.
type Result struct {
	Outcome Outcome
	Record  store.Record
	Match   *Match
	Err     error
}

// Config holds the dedup knobs.
type Config struct {
	// FuzzyThreshold is inclusive: a name similarity equal to it is a duplicate.
	FuzzyThreshold int
	// MinMatchScore drops candidates scoring strictly below it.
	MinMatchScore int
	Similarity    Similarity
}

// Pipeline decides whether candidates are duplicates of persisted records and
// appends the rest. It works on the snapshot it was built with and never
// re-reads the store; appended records are added to that snapshot.
type Pipeline struct {
	cfg      Config
	store    store.Store
	records  []store.Record
	urls     []string
	approver Approver
	logger   *zap.Logger
	now      func() time.Time
}

type Option func(*Pipeline)

func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func WithApprover(a Approver) Option {
	return func(p *Pipeline) {
		if a != nil {
			p.approver = a
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// New builds a pipeline over a snapshot of the table. The snapshot slice is
// copied.
func New(cfg Config, snapshot []store.Record, st store.Store, opts ...Option) *Pipeline {
	if cfg.FuzzyThreshold <= 0 {
		cfg.FuzzyThreshold = DefaultFuzzyThreshold
	}
	if cfg.Similarity == nil {
		cfg.Similarity = IndelRatio
	}

	p := &Pipeline{
		cfg:      cfg,
		store:    st,
		records:  make([]store.Record, 0, len(snapshot)),
		urls:     make([]string, 0, len(snapshot)),
		approver: AutoApprove{},
		logger:   zap.NewNop(),
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(p)
	}

	for _, rec := range snapshot {
		p.remember(rec)
	}

	return p
}

// Len returns the number of records the pipeline dedups against.
func (p *Pipeline) Len() int {
	return len(p.records)
}

// Known checks a URL and a program name against the snapshot. An exact
// normalized URL match wins; otherwise the first record whose name
// similarity reaches the threshold is returned.
func (p *Pipeline) Known(rawURL, name string) (Match, bool) {
	if key := NormalizeURL(rawURL); key != "" {
		for i, existing := range p.urls {
			if existing == key {
				return Match{Kind: MatchURL, Record: p.records[i], Similarity: 100}, true
			}
		}
	}

	candidate := normalizeName(name)
	if candidate == "" {
		return Match{}, false
	}

	for _, rec := range p.records {
		existing := normalizeName(rec.ProgramName)
		if existing == "" {
			continue
		}
		if score := p.cfg.Similarity.Ratio(candidate, existing); score >= p.cfg.FuzzyThreshold {
			return Match{Kind: MatchName, Record: rec, Similarity: score}, true
		}
	}

	return Match{}, false
}

// Ingest runs a candidate through the score gate, the duplicate check and the
// append. It never returns an error: failures are reported in the Result so
// the caller can continue with the next candidate.
func (p *Pipeline) Ingest(ctx context.Context, c Candidate) Result {
	fields := []zap.Field{
		zap.String("url", c.URL),
		zap.String("program_name", c.ProgramName),
		zap.Int("match_score", c.MatchScore),
	}

	if !c.IsScholarship {
		p.logger.Info("skipping candidate", append(fields, zap.String("reason", string(OutcomeNotScholarship)))...)
		return Result{Outcome: OutcomeNotScholarship}
	}

	if c.MatchScore < p.cfg.MinMatchScore {
		p.logger.Info("skipping candidate", append(fields,
			zap.String("reason", string(OutcomeBelowThreshold)),
			zap.Int("minimum_match_score", p.cfg.MinMatchScore),
		)...)
		return Result{Outcome: OutcomeBelowThreshold}
	}

	if match, dup := p.Known(c.URL, c.ProgramName); dup {
		p.logger.Info("skipping candidate", append(fields,
			zap.String("reason", string(OutcomeDuplicate)),
			zap.String("match", string(match.Kind)),
			zap.Int("similarity", match.Similarity),
			zap.String("existing_url", match.Record.URL),
			zap.String("existing_program_name", match.Record.ProgramName),
		)...)
		return Result{Outcome: OutcomeDuplicate, Match: &match}
	}

	rec := p.Record(c)

	approved, err := p.approver.Approve(ctx, rec)
	if errors.Is(err, ErrStopped) {
		p.logger.Info("stopping at operator request", fields...)
		return Result{Outcome: OutcomeStopped, Record: rec, Err: err}
	}
	if err != nil || !approved {
		p.logger.Info("skipping candidate", append(fields,
			zap.String("reason", string(OutcomeRejected)),
			zap.Error(err),
		)...)
		return Result{Outcome: OutcomeRejected, Record: rec, Err: err}
	}

	if err := p.store.Append(ctx, rec); err != nil {
		p.logger.Warn("skipping candidate", append(fields,
			zap.String("reason", string(OutcomeAppendError)),
			zap.Error(err),
		)...)
		return Result{Outcome: OutcomeAppendError, Record: rec, Err: err}
	}

	p.remember(rec)

	p.logger.Info("saved scholarship", fields...)
	return Result{Outcome: OutcomeAccepted, Record: rec}
}

// Record builds the row persisted for an accepted candidate.
func (p *Pipeline) Record(c Candidate) store.Record {
	found := c.FoundDate
	if found.IsZero() {
		found = p.now()
	}

	deadline := unknownValue
	if c.Deadline != nil && !c.Deadline.IsZero() {
		deadline = c.Deadline.Format(dateLayout)
	}

	notes := strings.TrimSpace(c.Notes)
	if c.Deadline == nil && !IsPlaceholderDeadline(c.DeadlineText) {
		extra := "Deadline: " + strings.TrimSpace(c.DeadlineText)
		if notes == "" {
			notes = extra
		} else {
			notes = notes + " " + extra
		}
	}

	return store.Record{
		DateFound:   found.Format(dateLayout),
		ProgramName: orUnknown(c.ProgramName),
		Deadline:    deadline,
		URL:         orUnknown(c.URL),
		MatchScore:  clampScore(c.MatchScore),
		Notes:       orUnknown(notes),
		Status:      store.StatusNew,
	}
}

func (p *Pipeline) remember(rec store.Record) {
	p.records = append(p.records, rec)
	p.urls = append(p.urls, NormalizeURL(rec.URL))
}

func orUnknown(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return unknownValue
	}
	return s
}

func clampScore(score int) int {
	switch {
	case score < 0:
		return 0
	case score > 100:
		return 100
	default:
		return score
	}
}
