package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gopkg.in/yaml.v3"

	"github.com/spigell/scholarship-hunter/internal/ai"
	"github.com/spigell/scholarship-hunter/internal/filtering"
	"github.com/spigell/scholarship-hunter/internal/ingest"
	"github.com/spigell/scholarship-hunter/internal/search"
	"github.com/spigell/scholarship-hunter/internal/store"
)

type fakeSearcher struct {
	hits  map[string][]search.Hit
	err   error
	calls int
}

func (f *fakeSearcher) Search(_ context.Context, query string, _ int) ([]search.Hit, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.hits[query], nil
}

type fakeFetcher struct {
	pages map[string]string
	errs  map[string]error
	calls []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (string, error) {
	f.calls = append(f.calls, url)
	if err := f.errs[url]; err != nil {
		return "", err
	}
	return f.pages[url], nil
}

type fakeClassifier struct {
	results map[string]*ai.Assessment
	err     error
}

func (f *fakeClassifier) Classify(_ context.Context, _, url, cvText string) (*ai.Assessment, error) {
	if cvText == "" {
		return nil, errors.New("cv missing")
	}
	if f.err != nil {
		return nil, f.err
	}
	if a, ok := f.results[url]; ok {
		return a, nil
	}
	return &ai.Assessment{IsScholarship: true, ProgramName: programNames[url], MatchScore: 90, Deadline: "2027-01-15"}, nil
}

var programNames = map[string]string{
	"https://uni1.example.org/scholarship": "MIT AI Scholarship",
	"https://uni2.example.org/scholarship": "DAAD EPOS Development Studies",
	"https://uni3.example.org/scholarship": "Chevening Award",
	"https://uni4.example.org/scholarship": "Erasmus Mundus Joint Master",
	"https://uni5.example.org/scholarship": "Fulbright Foreign Student Program",
}

type memoryStore struct {
	mu      sync.Mutex
	records []store.Record
	readErr error
}

func (m *memoryStore) ReadAll(context.Context) ([]store.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	return append([]store.Record(nil), m.records...), nil
}

func (m *memoryStore) Append(_ context.Context, rec store.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

type fakeRecorder struct {
	hits     int
	outcomes map[string]int
	pushed   bool
}

func (f *fakeRecorder) Observe(hits int, outcomes map[string]int, _ time.Duration) {
	f.hits = hits
	f.outcomes = outcomes
}

func (f *fakeRecorder) Push(context.Context) error {
	f.pushed = true
	return nil
}

func writeCV(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cv.txt")
	if err := os.WriteFile(path, []byte("MSc applicant, machine learning"), 0o600); err != nil {
		t.Fatalf("write cv: %v", err)
	}
	return path
}

func fixedNow() time.Time {
	return time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
}

func fiveHits() []search.Hit {
	hits := make([]search.Hit, 0, 5)
	for i := 1; i <= 5; i++ {
		hits = append(hits, search.Hit{
			Title: fmt.Sprintf("Hit %d", i),
			URL:   fmt.Sprintf("https://uni%d.example.org/scholarship", i),
			Query: "ai scholarship",
		})
	}
	return hits
}

func TestRunContinuesAfterFetchError(t *testing.T) {
	t.Parallel()

	hits := fiveHits()
	searcher := &fakeSearcher{hits: map[string][]search.Hit{"ai scholarship": hits}}
	fetcher := &fakeFetcher{
		pages: map[string]string{},
		errs:  map[string]error{hits[2].URL: errors.New("HTTP 503")},
	}
	for _, h := range hits {
		fetcher.pages[h.URL] = "page about " + h.Title
	}
	st := &memoryStore{}
	recorder := &fakeRecorder{}

	r := New(Config{
		Queries:    []string{"ai scholarship"},
		MaxResults: 10,
		CVPath:     writeCV(t),
		Precheck:   true,
		Ingest:     ingestConfig(),
	}, Deps{
		Searcher:   searcher,
		Fetcher:    fetcher,
		Classifier: &fakeClassifier{},
		Store:      st,
		Filters:    filtering.Default(),
		Metrics:    recorder,
		Now:        fixedNow,
	})

	summary, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(st.records) != 4 {
		t.Fatalf("expected 4 appended rows, got %d", len(st.records))
	}
	if summary.Accepted() != 4 || summary.Outcomes[OutcomeFetchError] != 1 {
		t.Fatalf("unexpected outcomes: %v", summary.Outcomes)
	}
	if summary.Hits != 5 || summary.Processed != 5 {
		t.Fatalf("expected 5 hits processed, got hits=%d processed=%d", summary.Hits, summary.Processed)
	}
	if summary.Results[2].Outcome != OutcomeFetchError || summary.Results[2].Error != "HTTP 503" {
		t.Fatalf("unexpected result for failing hit: %+v", summary.Results[2])
	}
	if got := st.records[0]; got.DateFound != "2026-10-18" || got.Deadline != "2027-01-15" || got.Status != store.StatusNew {
		t.Fatalf("unexpected persisted record: %+v", got)
	}
	if summary.RunID == "" {
		t.Fatal("expected run id")
	}
	if !recorder.pushed || recorder.hits != 5 || recorder.outcomes["accepted"] != 4 {
		t.Fatalf("unexpected metrics: %+v", recorder)
	}
}

func TestRunMissingCVIsFatal(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{}
	st := &memoryStore{}

	r := New(Config{
		Queries: []string{"ai scholarship"},
		CVPath:  filepath.Join(t.TempDir(), "missing.txt"),
	}, Deps{
		Searcher:   searcher,
		Fetcher:    &fakeFetcher{},
		Classifier: &fakeClassifier{},
		Store:      st,
	})

	summary, err := r.Run(context.Background())
	if !errors.Is(err, ErrSetup) {
		t.Fatalf("expected ErrSetup, got %v", err)
	}
	if summary != nil {
		t.Fatalf("expected no summary on setup failure")
	}
	if searcher.calls != 0 {
		t.Fatalf("expected no searches, got %d", searcher.calls)
	}
	if len(st.records) != 0 {
		t.Fatalf("expected no rows, got %d", len(st.records))
	}
}

func TestRunStoreReadFailureIsFatal(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{}
	r := New(Config{
		Queries: []string{"ai scholarship"},
		CVPath:  writeCV(t),
	}, Deps{
		Searcher:   searcher,
		Fetcher:    &fakeFetcher{},
		Classifier: &fakeClassifier{},
		Store:      &memoryStore{readErr: errors.New("permission denied")},
	})

	if _, err := r.Run(context.Background()); !errors.Is(err, ErrSetup) {
		t.Fatalf("expected ErrSetup, got %v", err)
	}
	if searcher.calls != 0 {
		t.Fatalf("expected no searches, got %d", searcher.calls)
	}
}

func TestRunBadExcludeFileFailsBeforeSearch(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{hits: map[string][]search.Hit{"ai scholarship": fiveHits()}}
	fetcher := &fakeFetcher{}
	r := New(Config{
		Queries: []string{"ai scholarship"},
		CVPath:  writeCV(t),
		Filters: filtering.Config{ExcludeFile: filepath.Join(t.TempDir(), "missing.txt")},
		Ingest:  ingestConfig(),
	}, Deps{
		Searcher:   searcher,
		Fetcher:    fetcher,
		Classifier: &fakeClassifier{},
		Store:      &memoryStore{},
		Filters:    filtering.Default(),
	})

	summary, err := r.Run(context.Background())
	if !errors.Is(err, ErrSetup) {
		t.Fatalf("expected ErrSetup, got %v", err)
	}
	if summary != nil {
		t.Fatal("expected no summary on setup failure")
	}
	if searcher.calls != 0 {
		t.Fatalf("expected no searches, got %d", searcher.calls)
	}
	if len(fetcher.calls) != 0 {
		t.Fatalf("expected no fetches, got %v", fetcher.calls)
	}
}

func TestRunSearchFailureProcessesNothing(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	fetcher := &fakeFetcher{}
	st := &memoryStore{}

	r := New(Config{
		Queries: []string{"ai scholarship", "ml scholarship"},
		CVPath:  writeCV(t),
	}, Deps{
		Searcher:   &fakeSearcher{err: &search.StatusError{Provider: "google", StatusCode: 429, Status: "429 Too Many Requests"}},
		Fetcher:    fetcher,
		Classifier: &fakeClassifier{},
		Store:      st,
		Logger:     zap.New(core),
	})

	summary, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("expected clean exit, got %v", err)
	}
	if summary.Processed != 0 || summary.SearchErr == "" {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if len(fetcher.calls) != 0 || len(st.records) != 0 {
		t.Fatalf("expected nothing fetched or stored")
	}

	entries := logs.FilterMessage("search failed, nothing will be processed").All()
	if len(entries) != 1 || entries[0].Level != zapcore.ErrorLevel {
		t.Fatalf("expected one error entry, got %d", len(entries))
	}
	if _, ok := entries[0].ContextMap()["hint"]; !ok {
		t.Fatalf("expected quota hint on rate limited search")
	}
}

func TestRunSkipsKnownHitsBeforeFetch(t *testing.T) {
	t.Parallel()

	hits := fiveHits()[:2]
	st := &memoryStore{records: []store.Record{{
		DateFound:   "2026-10-01",
		ProgramName: "Hit 1",
		URL:         "https://other.example.org",
		Status:      store.StatusNew,
	}}}
	fetcher := &fakeFetcher{pages: map[string]string{hits[0].URL: "x", hits[1].URL: "y"}}

	r := New(Config{
		Queries:  []string{"ai scholarship"},
		CVPath:   writeCV(t),
		Precheck: true,
		Ingest:   ingestConfig(),
	}, Deps{
		Searcher:   &fakeSearcher{hits: map[string][]search.Hit{"ai scholarship": hits}},
		Fetcher:    fetcher,
		Classifier: &fakeClassifier{},
		Store:      st,
		Now:        fixedNow,
	})

	summary, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(fetcher.calls) != 1 || fetcher.calls[0] != hits[1].URL {
		t.Fatalf("expected only the unknown hit to be fetched, got %v", fetcher.calls)
	}
	if summary.Outcomes["duplicate"] != 1 || summary.Results[0].Match != "name" {
		t.Fatalf("unexpected outcomes: %v, %+v", summary.Outcomes, summary.Results[0])
	}
}

func TestRunGatesAndClassifierErrors(t *testing.T) {
	t.Parallel()

	hits := fiveHits()[:3]
	classifier := &fakeClassifier{results: map[string]*ai.Assessment{
		hits[0].URL: {IsScholarship: false, Reason: "not funded"},
		hits[1].URL: {IsScholarship: true, ProgramName: "Low", MatchScore: 40},
	}}
	fetcher := &fakeFetcher{pages: map[string]string{hits[0].URL: "a", hits[1].URL: "b", hits[2].URL: ""}}
	st := &memoryStore{}

	r := New(Config{
		Queries: []string{"ai scholarship"},
		CVPath:  writeCV(t),
		Ingest:  ingestConfig(),
	}, Deps{
		Searcher:   &fakeSearcher{hits: map[string][]search.Hit{"ai scholarship": hits}},
		Fetcher:    fetcher,
		Classifier: classifier,
		Store:      st,
	})

	summary, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"not_scholarship", "below_threshold", OutcomeFetchError}
	for i, outcome := range want {
		if summary.Results[i].Outcome != outcome {
			t.Fatalf("hit %d: expected %s, got %s", i, outcome, summary.Results[i].Outcome)
		}
	}
	if len(st.records) != 0 {
		t.Fatalf("expected nothing stored, got %d", len(st.records))
	}

	failing := New(Config{
		Queries: []string{"ai scholarship"},
		CVPath:  writeCV(t),
	}, Deps{
		Searcher:   &fakeSearcher{hits: map[string][]search.Hit{"ai scholarship": hits[:1]}},
		Fetcher:    &fakeFetcher{pages: map[string]string{hits[0].URL: "a"}},
		Classifier: &fakeClassifier{err: errors.New("quota exceeded")},
		Store:      &memoryStore{},
	})

	summary, err = failing.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Outcomes[OutcomeClassifyError] != 1 {
		t.Fatalf("expected classify error outcome, got %v", summary.Outcomes)
	}
}

type stopAfter struct {
	left int
}

func (s *stopAfter) Approve(context.Context, store.Record) (bool, error) {
	if s.left == 0 {
		return false, ingest.ErrStopped
	}
	s.left--
	return true, nil
}

func TestRunStopsWhenOperatorQuits(t *testing.T) {
	t.Parallel()

	hits := fiveHits()
	fetcher := &fakeFetcher{pages: map[string]string{}}
	for _, h := range hits {
		fetcher.pages[h.URL] = "text"
	}
	st := &memoryStore{}
	recorder := &fakeRecorder{}

	r := New(Config{
		Queries: []string{"ai scholarship"},
		CVPath:  writeCV(t),
		Ingest:  ingestConfig(),
	}, Deps{
		Searcher:   &fakeSearcher{hits: map[string][]search.Hit{"ai scholarship": hits}},
		Fetcher:    fetcher,
		Classifier: &fakeClassifier{},
		Store:      st,
		Approver:   &stopAfter{left: 1},
		Metrics:    recorder,
	})

	summary, err := r.Run(context.Background())
	if !errors.Is(err, ingest.ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
	if len(st.records) != 1 || len(fetcher.calls) != 2 {
		t.Fatalf("expected 1 row and 2 fetches, got %d rows and %v", len(st.records), fetcher.calls)
	}
	if summary.Processed != 2 || summary.Outcomes["stopped"] != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if !recorder.pushed {
		t.Fatal("expected metrics to be pushed for a stopped run")
	}
}

func TestRunWaitsBetweenHitsAndWritesReport(t *testing.T) {
	var waits []time.Duration
	orig := wait
	wait = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	t.Cleanup(func() { wait = orig })

	hits := fiveHits()[:3]
	fetcher := &fakeFetcher{pages: map[string]string{}}
	for _, h := range hits {
		fetcher.pages[h.URL] = "text"
	}
	reportPath := filepath.Join(t.TempDir(), "report.yaml")

	r := New(Config{
		Queries:      []string{"ai scholarship"},
		CVPath:       writeCV(t),
		RequestDelay: 2 * time.Second,
		ReportFile:   reportPath,
		Ingest:       ingestConfig(),
	}, Deps{
		Searcher:   &fakeSearcher{hits: map[string][]search.Hit{"ai scholarship": hits}},
		Fetcher:    fetcher,
		Classifier: &fakeClassifier{},
		Store:      &memoryStore{},
	})

	if _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(waits) != 2 || waits[0] != 2*time.Second {
		t.Fatalf("expected 2 waits of 2s, got %v", waits)
	}

	data, err := os.ReadFile(reportPath)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	var report Summary
	if err := yaml.Unmarshal(data, &report); err != nil {
		t.Fatalf("parse report: %v", err)
	}
	if report.Processed != 3 || report.Outcomes["accepted"] != 3 || len(report.Results) != 3 {
		t.Fatalf("unexpected report: %+v", report)
	}
}
