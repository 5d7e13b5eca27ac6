package ingest

import (
	"net/url"
	"strings"
	"time"
)

// NormalizeURL returns the comparison key of a URL: surrounding whitespace
// trimmed, scheme and host lowercased, fragment and trailing slash removed.
// Path and query keep their case.
func NormalizeURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	u, err := url.Parse(trimmed)
	if err != nil || u.Host == "" {
		return strings.TrimRight(strings.ToLower(trimmed), "/")
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = strings.TrimRight(u.RawPath, "/")

	return u.String()
}

func normalizeName(name string) string {
	name = strings.ToLower(strings.Join(strings.Fields(name), " "))
	if name == strings.ToLower(unknownValue) {
		return ""
	}
	return name
}

var deadlineLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	time.RFC3339,
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"2 January 2006",
	"2 Jan 2006",
	"02.01.2006",
}

var noDeadline = map[string]struct{}{
	"":              {},
	"unknown":       {},
	"not specified": {},
	"not available": {},
	"n/a":           {},
	"na":            {},
	"none":          {},
	"tbd":           {},
}

// ParseDeadline reads a deadline produced by the classifier. ok is false when
// the value is not a recognizable date; known placeholders such as
// "Not specified" also return ok=false.
func ParseDeadline(raw string) (deadline time.Time, ok bool) {
	value := strings.TrimSpace(raw)
	if _, skip := noDeadline[strings.ToLower(value)]; skip {
		return time.Time{}, false
	}

	for _, layout := range deadlineLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}

// IsPlaceholderDeadline reports whether raw carries no deadline information at all.
func IsPlaceholderDeadline(raw string) bool {
	_, ok := noDeadline[strings.ToLower(strings.TrimSpace(raw))]
	return ok
}
