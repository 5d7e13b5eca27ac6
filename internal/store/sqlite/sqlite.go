package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/spigell/scholarship-hunter/internal/store"
)

// Store keeps scholarship records in a local SQLite file. It is meant for
// local runs and dry runs against a scratch table.
type Store struct {
	db *sql.DB
}

// New opens the database.
// DSN format:
//   - "sqlite:///path/to/file.db"
//   - "/path/to/file.db" (without prefix)
//   - ":memory:" (in-memory database)
func New(dsn string) (*Store, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("empty SQLite DSN")
	}

	if strings.HasPrefix(strings.ToLower(dsn), "sqlite://") {
		dsn = dsn[len("sqlite://"):]
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// A single connection keeps ":memory:" databases consistent.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	// No uniqueness constraint: dedup is owned by the ingestion pipeline.
	stmt := `CREATE TABLE IF NOT EXISTS scholarships(
		date_found TEXT NOT NULL,
		program_name TEXT NOT NULL,
		deadline TEXT NOT NULL,
		url TEXT NOT NULL,
		match_score INTEGER NOT NULL,
		notes TEXT NOT NULL,
		status TEXT NOT NULL
	);`
	_, err := s.db.ExecContext(ctx, stmt)
	return err
}

// ReadAll returns all rows in insertion order.
func (s *Store) ReadAll(ctx context.Context) ([]store.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date_found, program_name, deadline, url, match_score, notes, status
		FROM scholarships ORDER BY rowid;`)
	if err != nil {
		return nil, fmt.Errorf("query scholarships: %w", err)
	}
	defer rows.Close()

	records := make([]store.Record, 0)
	for rows.Next() {
		var (
			rec    store.Record
			status string
		)
		if err := rows.Scan(&rec.DateFound, &rec.ProgramName, &rec.Deadline, &rec.URL, &rec.MatchScore, &rec.Notes, &status); err != nil {
			return nil, fmt.Errorf("scan scholarship: %w", err)
		}
		rec.Status = store.Status(status)
		records = append(records, rec)
	}

	return records, rows.Err()
}

// Append inserts the record as a new row.
func (s *Store) Append(ctx context.Context, rec store.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scholarships(date_found, program_name, deadline, url, match_score, notes, status)
		VALUES(?, ?, ?, ?, ?, ?, ?);`,
		rec.DateFound, rec.ProgramName, rec.Deadline, rec.URL, rec.MatchScore, rec.Notes, string(rec.Status))
	if err != nil {
		return fmt.Errorf("insert scholarship: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
