package sheets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"

	"github.com/spigell/scholarship-hunter/internal/store"
)

const (
	defaultWorksheet = "Scholarships"
	defaultRows      = 1000
	defaultCols      = 10
	// RAW keeps scraped text from being evaluated as formulas.
	valueInputOption = "RAW"
)

var scopes = []string{
	gsheets.SpreadsheetsScope,
	"https://www.googleapis.com/auth/drive",
}

// Config describes the spreadsheet backing the table.
type Config struct {
	SpreadsheetID string
	Worksheet     string
	// Credentials is the service account JSON document.
	Credentials []byte
}

// Store keeps scholarship records in a Google Sheets worksheet.
type Store struct {
	svc           *gsheets.Service
	spreadsheetID string
	worksheet     string
	logger        *zap.Logger
}

// New connects to the spreadsheet and makes sure the worksheet with the
// table headers exists.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Store, error) {
	if len(cfg.Credentials) == 0 {
		return nil, errors.New("google sheets credentials are required")
	}

	svc, err := gsheets.NewService(ctx,
		option.WithCredentialsJSON(cfg.Credentials),
		option.WithScopes(scopes...),
	)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	s, err := NewWithService(svc, cfg, logger)
	if err != nil {
		return nil, err
	}

	if err := s.ensureWorksheet(ctx); err != nil {
		return nil, err
	}

	s.logger.Info("connected to google sheets",
		zap.String("spreadsheet_id", s.spreadsheetID),
		zap.String("worksheet", s.worksheet),
	)

	return s, nil
}

// NewWithService builds a store around an existing service without touching
// the spreadsheet.
func NewWithService(svc *gsheets.Service, cfg Config, logger *zap.Logger) (*Store, error) {
	id := strings.TrimSpace(cfg.SpreadsheetID)
	if id == "" {
		return nil, errors.New("spreadsheet id is required")
	}

	worksheet := strings.TrimSpace(cfg.Worksheet)
	if worksheet == "" {
		worksheet = defaultWorksheet
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Store{
		svc:           svc,
		spreadsheetID: id,
		worksheet:     worksheet,
		logger:        logger,
	}, nil
}

// ReadAll returns every data row of the worksheet.
func (s *Store) ReadAll(ctx context.Context) ([]store.Record, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, s.tableRange()).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read worksheet %q: %w", s.worksheet, err)
	}

	records, err := store.DecodeRows(resp.Values)
	if err != nil {
		return nil, fmt.Errorf("decode worksheet %q: %w", s.worksheet, err)
	}

	s.logger.Debug("loaded rows from google sheets", zap.Int("count", len(records)))
	return records, nil
}

// Append adds the record as a new row at the end of the table.
func (s *Store) Append(ctx context.Context, record store.Record) error {
	return s.appendRow(ctx, record.Row())
}

func (s *Store) appendRow(ctx context.Context, row []any) error {
	body := &gsheets.ValueRange{Values: [][]any{row}}

	_, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, s.tableRange(), body).
		ValueInputOption(valueInputOption).
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append row to %q: %w", s.worksheet, err)
	}

	return nil
}

func (s *Store) ensureWorksheet(ctx context.Context) error {
	spreadsheet, err := s.svc.Spreadsheets.Get(s.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("open spreadsheet: %w", err)
	}

	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties != nil && sheet.Properties.Title == s.worksheet {
			return nil
		}
	}

	req := &gsheets.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheets.Request{{
			AddSheet: &gsheets.AddSheetRequest{
				Properties: &gsheets.SheetProperties{
					Title: s.worksheet,
					GridProperties: &gsheets.GridProperties{
						RowCount:    defaultRows,
						ColumnCount: defaultCols,
					},
				},
			},
		}},
	}

	if _, err := s.svc.Spreadsheets.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("create worksheet %q: %w", s.worksheet, err)
	}

	headers := make([]any, 0, len(store.Headers))
	for _, h := range store.Headers {
		headers = append(headers, h)
	}

	if err := s.appendRow(ctx, headers); err != nil {
		return fmt.Errorf("write headers: %w", err)
	}

	s.logger.Info("created worksheet", zap.String("worksheet", s.worksheet))
	return nil
}

func (s *Store) tableRange() string {
	return fmt.Sprintf("'%s'!A:G", strings.ReplaceAll(s.worksheet, "'", "''"))
}
