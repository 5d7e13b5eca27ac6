package logger

import (
	"strings"

	"go.uber.org/zap"
)

// Field keys shared by every package that logs about a run.
const (
	FieldRunID    = "run_id"
	FieldQuery    = "query"
	FieldURL      = "url"
	FieldProvider = "ai_provider"
	FieldModel    = "ai_model"
)

// nonEmpty turns key/value pairs into string fields, skipping pairs whose
// value is blank after trimming.
func nonEmpty(pairs ...string) []zap.Field {
	fields := make([]zap.Field, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		if value := strings.TrimSpace(pairs[i+1]); value != "" {
			fields = append(fields, zap.String(pairs[i], value))
		}
	}
	return fields
}

func with(logger *zap.Logger, fields []zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(fields) == 0 {
		return logger
	}
	return logger.With(fields...)
}

// WithRunID tags every entry of a run with its identifier.
func WithRunID(logger *zap.Logger, runID string) *zap.Logger {
	return with(logger, nonEmpty(FieldRunID, runID))
}

// WithHit tags entries about a single search hit.
func WithHit(logger *zap.Logger, query, url string) *zap.Logger {
	return with(logger, nonEmpty(FieldQuery, query, FieldURL, url))
}

// WithCommonFields attaches the AI provider and model. A nil logger yields a no-op one.
func WithCommonFields(logger *zap.Logger, provider, model string) *zap.Logger {
	return with(logger, nonEmpty(FieldProvider, provider, FieldModel, model))
}
