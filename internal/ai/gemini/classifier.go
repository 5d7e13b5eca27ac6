package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/spigell/scholarship-hunter/internal/ai"
	"github.com/spigell/scholarship-hunter/internal/utils"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
}

//go:embed prompt.md
var promptTemplate string

const (
	defaultMaxLogLength = 200
	systemInstruction   = "You are an expert scholarship advisor. You answer with a single JSON object and nothing else."
)

// Classifier asks Gemini whether a page is a scholarship worth applying to.
type Classifier struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

var _ ai.Classifier = (*Classifier)(nil)

func NewClassifier(generator contentGenerator, logger *zap.Logger, maxLogLength int) *Classifier {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Classifier{
		generator: generator,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

func (c *Classifier) Classify(ctx context.Context, pageText, url, cvText string) (*ai.Assessment, error) {
	if strings.TrimSpace(cvText) == "" {
		return nil, errors.New("cv text is required")
	}
	if strings.TrimSpace(pageText) == "" {
		return nil, errors.New("page text is required")
	}

	prompt := buildPrompt(cvText, pageText, url)

	c.logger.Debug("gemini generate content request",
		zap.String("url", url),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, c.maxLogLen)),
	)

	raw, err := c.generator.GenerateContent(ctx, systemInstruction, prompt)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("gemini generate content response",
		zap.String("url", url),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, c.maxLogLen)),
	)

	assessment, err := parseResponse(raw)
	if err != nil {
		return nil, err
	}

	assessment.Raw = raw
	return assessment, nil
}

func buildPrompt(cvText, pageText, url string) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "CV:\n{{CV}}\n\nPage:\n{{PAGE_TEXT}}\n\nURL: {{URL}}\n\nJSON Response:"
	}
	// Page text goes in last so its content is never expanded.
	prompt := strings.ReplaceAll(template, "{{URL}}", url)
	prompt = strings.ReplaceAll(prompt, "{{CV}}", strings.TrimSpace(cvText))
	return strings.ReplaceAll(prompt, "{{PAGE_TEXT}}", strings.TrimSpace(pageText))
}

func parseResponse(raw string) (*ai.Assessment, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}

	flag, ok := data["is_scholarship"]
	if !ok {
		flag = data["is_match"]
	}

	score := coerceFloat(data["match_score"])
	if math.IsNaN(score) {
		score = 0
	}
	score = math.Max(0, math.Min(100, math.Round(score)))

	return &ai.Assessment{
		IsScholarship: coerceBool(flag),
		ProgramName:   coerceString(data["program_name"]),
		Deadline:      coerceString(data["deadline"]),
		OfficialURL:   coerceString(data["official_url"]),
		MatchScore:    int(score),
		Notes:         coerceString(data["notes"]),
		Reason:        coerceString(data["reason"]),
	}, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	raw = strings.TrimSpace(raw)

	if start, end := strings.Index(raw, "{"), strings.LastIndex(raw, "}"); start >= 0 && end > start {
		raw = raw[start : end+1]
	}
	return raw
}

func coerceBool(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		lower := strings.ToLower(strings.TrimSpace(val))
		return lower == "true" || lower == "yes"
	case float64:
		return val != 0
	default:
		return false
	}
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case string:
		trimmed := strings.TrimSuffix(strings.TrimSpace(val), "%")
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		if v == nil {
			return ""
		}
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}
