package cv

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrEmpty is returned when the CV file has no content.
var ErrEmpty = errors.New("cv file is empty")

// Load reads the reference CV used for every classification in a run.
func Load(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", errors.New("cv path is not configured")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading cv %q: %w", path, err)
	}

	text := strings.TrimSpace(strings.ToValidUTF8(string(data), ""))
	if text == "" {
		return "", fmt.Errorf("%w: %s", ErrEmpty, path)
	}

	return text, nil
}
