package store

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Status is the lifecycle state of a persisted record. Only StatusNew is
// ever written by the bot, the rest is edited by a human.
type Status string

const (
	StatusNew      Status = "New"
	StatusReviewed Status = "Reviewed"
	StatusApplied  Status = "Applied"
	StatusExpired  Status = "Expired"
)

// Unknown is written for every field the classifier could not extract.
const Unknown = "unknown"

const (
	ColumnDateFound   = "Date Found"
	ColumnProgramName = "Program Name"
	ColumnDeadline    = "Application Deadline"
	ColumnURL         = "Official URL"
	ColumnMatchScore  = "Match Score"
	ColumnNotes       = "Notes"
	ColumnStatus      = "Status"
)

// Headers are the table columns in storage order.
var Headers = []string{
	ColumnDateFound,
	ColumnProgramName,
	ColumnDeadline,
	ColumnURL,
	ColumnMatchScore,
	ColumnNotes,
	ColumnStatus,
}

// Record is one row of the scholarships table.
type Record struct {
	DateFound   string `mapstructure:"Date Found" json:"date_found" yaml:"date_found"`
	ProgramName string `mapstructure:"Program Name" json:"program_name" yaml:"program_name"`
	Deadline    string `mapstructure:"Application Deadline" json:"deadline" yaml:"deadline"`
	URL         string `mapstructure:"Official URL" json:"url" yaml:"url"`
	MatchScore  int    `mapstructure:"Match Score" json:"match_score" yaml:"match_score"`
	Notes       string `mapstructure:"Notes" json:"notes" yaml:"notes"`
	Status      Status `mapstructure:"Status" json:"status" yaml:"status"`
}

// Store is a row oriented table. It does not enforce uniqueness of any column.
type Store interface {
	ReadAll(ctx context.Context) ([]Record, error)
	Append(ctx context.Context, record Record) error
}

// Row returns the record cells in Headers order.
func (r Record) Row() []any {
	return []any{
		r.DateFound,
		r.ProgramName,
		r.Deadline,
		r.URL,
		strconv.Itoa(r.MatchScore),
		r.Notes,
		string(r.Status),
	}
}

// DecodeRows converts raw table rows into records. When the first row holds
// the known column titles it is used as a header, otherwise the columns are
// read positionally.
func DecodeRows(rows [][]any) ([]Record, error) {
	if len(rows) == 0 {
		return []Record{}, nil
	}

	headers := Headers
	data := rows
	if isHeaderRow(rows[0]) {
		headers = make([]string, len(rows[0]))
		for i, cell := range rows[0] {
			headers[i] = strings.TrimSpace(cellString(cell))
		}
		data = rows[1:]
	}

	records := make([]Record, 0, len(data))
	for idx, row := range data {
		if isEmptyRow(row) {
			continue
		}

		values := make(map[string]any, len(headers))
		for i, header := range headers {
			if header == "" || i >= len(row) {
				continue
			}
			if header == ColumnMatchScore {
				values[header] = ParseScore(row[i])
				continue
			}
			values[header] = strings.TrimSpace(cellString(row[i]))
		}

		var record Record
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           &record,
			WeaklyTypedInput: true,
		})
		if err != nil {
			return nil, err
		}
		if err := decoder.Decode(values); err != nil {
			return nil, fmt.Errorf("decode row %d: %w", idx+1, err)
		}

		records = append(records, record)
	}

	return records, nil
}

// ParseScore reads a match score cell. Values like "85", "85%", "85.4" and
// numeric cells are accepted; anything else yields 0.
func ParseScore(v any) int {
	switch val := v.(type) {
	case int:
		return val
	case int64:
		return int(val)
	case float64:
		return int(math.Round(val))
	case string:
		trimmed := strings.TrimSuffix(strings.TrimSpace(val), "%")
		if trimmed == "" {
			return 0
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(trimmed), 64)
		if err != nil {
			return 0
		}
		return int(math.Round(f))
	default:
		return 0
	}
}

func isHeaderRow(row []any) bool {
	for _, cell := range row {
		if strings.EqualFold(strings.TrimSpace(cellString(cell)), ColumnURL) {
			return true
		}
	}
	return false
}

func isEmptyRow(row []any) bool {
	for _, cell := range row {
		if strings.TrimSpace(cellString(cell)) != "" {
			return false
		}
	}
	return true
}

func cellString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}
