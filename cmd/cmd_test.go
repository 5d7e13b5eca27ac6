package cmd

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/manifoldco/promptui"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/spigell/scholarship-hunter/internal/ingest"
	"github.com/spigell/scholarship-hunter/internal/store"
)

func TestPromptApprover(t *testing.T) {
	t.Parallel()

	answers := []string{PromptNo, PromptYesToAll}
	asked := 0
	p := newPromptApprover(zap.NewNop())
	p.run = func(string) (string, error) {
		answer := answers[asked]
		asked++
		return answer, nil
	}

	rec := store.Record{ProgramName: "MIT AI", MatchScore: 90}

	if ok, err := p.Approve(context.Background(), rec); err != nil || ok {
		t.Fatalf("expected rejection, got %v %v", ok, err)
	}
	if ok, err := p.Approve(context.Background(), rec); err != nil || !ok {
		t.Fatalf("expected approval, got %v %v", ok, err)
	}
	if ok, _ := p.Approve(context.Background(), rec); !ok {
		t.Fatalf("expected approval after yes to all")
	}
	if asked != 2 {
		t.Fatalf("expected no prompt after yes to all, asked %d times", asked)
	}

	p.all = false
	p.run = func(string) (string, error) { return "", errors.New("terminal is gone") }
	if _, err := p.Approve(context.Background(), rec); err == nil || errors.Is(err, ingest.ErrStopped) {
		t.Fatalf("expected a plain prompt error, got %v", err)
	}

	for _, stop := range []error{promptui.ErrInterrupt, promptui.ErrEOF} {
		p.run = func(string) (string, error) { return "", stop }
		if _, err := p.Approve(context.Background(), rec); !errors.Is(err, ingest.ErrStopped) {
			t.Fatalf("expected %v to stop the run, got %v", stop, err)
		}
	}
}

func TestSelectRecords(t *testing.T) {
	t.Parallel()

	records := []store.Record{
		{ProgramName: "A", DateFound: "2026-10-01", Deadline: "unknown", MatchScore: 70, Status: store.StatusNew},
		{ProgramName: "B", DateFound: "2026-10-03", Deadline: "2026-12-01", MatchScore: 95, Status: store.StatusApplied},
		{ProgramName: "C", DateFound: "2026-10-02", Deadline: "2026-11-01", MatchScore: 40, Status: store.StatusNew},
		{ProgramName: "D", DateFound: "2026-10-04", Deadline: "2027-01-01", MatchScore: 80, Status: store.StatusNew},
	}

	names := func(rs []store.Record) string {
		var b strings.Builder
		for _, r := range rs {
			b.WriteString(r.ProgramName)
		}
		return b.String()
	}

	tests := []struct {
		opts listOptions
		want string
	}{
		{opts: listOptions{}, want: "DBCA"},
		{opts: listOptions{Sort: "score"}, want: "BDAC"},
		{opts: listOptions{Sort: "deadline"}, want: "CBDA"},
		{opts: listOptions{MinScore: 50, Status: "new", Sort: "score"}, want: "DA"},
	}

	for _, tt := range tests {
		got, err := selectRecords(records, tt.opts)
		if err != nil {
			t.Fatalf("%+v: unexpected error: %v", tt.opts, err)
		}
		if names(got) != tt.want {
			t.Fatalf("%+v: expected %s, got %s", tt.opts, tt.want, names(got))
		}
	}

	if _, err := selectRecords(records, listOptions{Sort: "name"}); err == nil {
		t.Fatal("expected error for unsupported sort key")
	}
}

func TestPrintRecords(t *testing.T) {
	t.Parallel()

	records := []store.Record{{
		DateFound:   "2026-10-18",
		ProgramName: "MIT AI Scholarship",
		Deadline:    "2026-12-31",
		URL:         "https://mit.edu/ai",
		MatchScore:  87,
		Notes:       "Strong fit",
		Status:      store.StatusNew,
	}}

	var table bytes.Buffer
	if err := printRecords(&table, records, "table"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(table.String()), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], store.ColumnDateFound) || !strings.Contains(lines[1], "MIT AI Scholarship") {
		t.Fatalf("unexpected table output:\n%s", table.String())
	}

	var out bytes.Buffer
	if err := printRecords(&out, records, "yaml"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var decoded []store.Record
	if err := yaml.Unmarshal(out.Bytes(), &decoded); err != nil {
		t.Fatalf("parse yaml: %v", err)
	}
	if len(decoded) != 1 || decoded[0] != records[0] {
		t.Fatalf("unexpected yaml round trip: %+v", decoded)
	}

	if err := printRecords(&out, records, "xml"); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestConfigValidateCollectsAllProblems(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		Search: SearchConfig{Provider: "google"},
		Dedup:  DedupConfig{Similarity: "jaro", FuzzyThreshold: 120},
		Store:  StoreConfig{Backend: "sheets"},
	}

	errs := multierr.Errors(cfg.validate())
	if len(errs) != 7 {
		t.Fatalf("expected 7 problems, got %d: %v", len(errs), errs)
	}

	ok := &Config{
		CVPath: "cv.txt",
		Search: SearchConfig{Provider: "rss", Queries: []string{"ai"}, RSS: RSSConfig{Feeds: []string{"https://feeds.example.org"}}},
		Dedup:  DedupConfig{Similarity: "levenshtein", FuzzyThreshold: 85},
		Store:  StoreConfig{Backend: "sqlite", SQLite: SQLiteConfig{Path: "x.db"}},
	}
	if err := ok.validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}
