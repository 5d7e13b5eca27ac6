package secrets

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"
)

// Kind names one of the places a Source can hold a secret.
type Kind int

const (
	KindFile Kind = iota
	KindBase64
	KindValue
)

// DefaultPrecedence is used when Source.Precedence is empty.
var DefaultPrecedence = []Kind{KindFile, KindBase64, KindValue}

// Source lists the places a secret may come from. The first non-empty one in
// Precedence order is used; the others are ignored.
type Source struct {
	// Name appears in error messages, e.g. "gemini api key".
	Name string
	// Value is the secret itself, usually from an environment variable.
	Value string
	// Base64 is the secret encoded with standard base64. Service account
	// JSON is often passed this way through CI variables.
	Base64 string
	// File is a path to a file holding the secret.
	File string
	// Precedence overrides DefaultPrecedence. Kinds left out are never read.
	Precedence []Kind
}

// Load resolves the secret and trims surrounding whitespace. A source that is
// set but yields an empty secret is an error, as is a Source with nothing set.
func Load(src Source) (string, error) {
	name := strings.TrimSpace(src.Name)
	if name == "" {
		name = "secret"
	}

	raw, origin, err := src.read(name)
	if err != nil {
		return "", err
	}

	secret := strings.TrimSpace(raw)
	switch {
	case secret != "":
		return secret, nil
	case origin == "":
		return "", fmt.Errorf("%s is not configured", name)
	default:
		return "", fmt.Errorf("%s from %s is empty", name, origin)
	}
}

// read returns the raw secret and a description of where it came from. The
// origin is empty when no source is set.
func (s Source) read(name string) (string, string, error) {
	order := s.Precedence
	if len(order) == 0 {
		order = DefaultPrecedence
	}

	for _, kind := range order {
		switch kind {
		case KindFile:
			path := strings.TrimSpace(s.File)
			if path == "" {
				continue
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return "", "", fmt.Errorf("reading %s from file %q: %w", name, path, err)
			}
			return string(data), fmt.Sprintf("file %q", path), nil
		case KindBase64:
			encoded := strings.TrimSpace(s.Base64)
			if encoded == "" {
				continue
			}
			data, err := base64.StdEncoding.DecodeString(encoded)
			if err != nil {
				return "", "", fmt.Errorf("decoding base64 %s: %w", name, err)
			}
			return string(data), "base64 value", nil
		case KindValue:
			if s.Value != "" {
				return s.Value, "inline value", nil
			}
		}
	}

	return "", "", nil
}
