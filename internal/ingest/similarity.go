package ingest

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// Similarity scores two program names on a 0-100 scale.
type Similarity interface {
	Ratio(a, b string) int
}

// SimilarityFunc adapts a plain function to Similarity.
type SimilarityFunc func(a, b string) int

func (f SimilarityFunc) Ratio(a, b string) int { return f(a, b) }

var (
	// IndelRatio is 200*LCS/(len(a)+len(b)), i.e. an edit distance that only
	// allows insertions and deletions, normalized to 0-100.
	IndelRatio Similarity = SimilarityFunc(indelRatio)
	// LevenshteinRatio is 100*(1 - distance/max(len(a), len(b))).
	LevenshteinRatio Similarity = SimilarityFunc(levenshteinRatio)
)

// SimilarityByName resolves a configured similarity function.
func SimilarityByName(name string) (Similarity, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "indel", "ratio":
		return IndelRatio, nil
	case "levenshtein":
		return LevenshteinRatio, nil
	default:
		return nil, fmt.Errorf("unknown similarity %q", name)
	}
}

func indelRatio(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}

	lcs := longestCommonSubsequence(ra, rb)
	return int(math.Round(200 * float64(lcs) / float64(total)))
}

func longestCommonSubsequence(a, b []rune) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				curr[j] = prev[j-1] + 1
			case prev[j] >= curr[j-1]:
				curr[j] = prev[j]
			default:
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}

func levenshteinRatio(a, b string) int {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	if la == 0 || lb == 0 {
		return 0
	}

	longest := max(la, lb)
	distance := levenshtein.ComputeDistance(a, b)
	return int(math.Round(100 * (1 - float64(distance)/float64(longest))))
}
