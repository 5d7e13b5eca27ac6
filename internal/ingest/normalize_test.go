package ingest

import "testing"

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{name: "case and trailing slash", input: "https://Example.com/page/", expect: "https://example.com/page"},
		{name: "already normal", input: "https://example.com/page", expect: "https://example.com/page"},
		{name: "whitespace", input: "  https://EXAMPLE.com/a  ", expect: "https://example.com/a"},
		{name: "scheme case", input: "HTTPS://example.com", expect: "https://example.com"},
		{name: "root slash", input: "https://example.com/", expect: "https://example.com"},
		{name: "path case kept", input: "https://example.com/Apply", expect: "https://example.com/Apply"},
		{name: "query kept", input: "https://example.com/p/?utm=1", expect: "https://example.com/p?utm=1"},
		{name: "fragment dropped", input: "https://example.com/p#top", expect: "https://example.com/p"},
		{name: "empty", input: "   ", expect: ""},
		{name: "not a url", input: "Example.com/Page/", expect: "example.com/page"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := NormalizeURL(tt.input); got != tt.expect {
				t.Fatalf("expected %q, got %q", tt.expect, got)
			}
		})
	}
}

func TestParseDeadline(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input  string
		ok     bool
		expect string
	}{
		{input: "2026-03-01", ok: true, expect: "2026-03-01"},
		{input: "March 1, 2026", ok: true, expect: "2026-03-01"},
		{input: "1 March 2026", ok: true, expect: "2026-03-01"},
		{input: "Not specified", ok: false},
		{input: "", ok: false},
		{input: "rolling admissions", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			got, ok := ParseDeadline(tt.input)
			if ok != tt.ok {
				t.Fatalf("expected ok=%v, got %v", tt.ok, ok)
			}
			if ok && got.Format(dateLayout) != tt.expect {
				t.Fatalf("expected %s, got %s", tt.expect, got.Format(dateLayout))
			}
		})
	}
}
