// Package sqlstore implements storage.Driver over database/sql. The sqlite and
// postgres packages open the connection and pick the dialect.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/papercomputeco/ssechat/pkg/storage"
	"github.com/papercomputeco/ssechat/pkg/turn"
)

// Dialect holds the SQL differences between backends.
type Dialect struct {
	Name string

	// Placeholder returns the bind parameter for the n-th argument, 1-based.
	Placeholder func(n int) string

	// TurnType is the column type used for the turn JSON document.
	TurnType string
}

var (
	SQLite = Dialect{
		Name:        "sqlite",
		Placeholder: func(int) string { return "?" },
		TurnType:    "TEXT",
	}

	Postgres = Dialect{
		Name:        "postgres",
		Placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
		TurnType:    "JSONB",
	}
)

// Store implements storage.Driver on a *sql.DB.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// New wraps db and creates the turns table if it is missing.
func New(ctx context.Context, db *sql.DB, dialect Dialect) (*Store, error) {
	s := &Store{db: db, dialect: dialect}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS turns (
	id           TEXT PRIMARY KEY,
	source       TEXT NOT NULL,
	path         TEXT NOT NULL DEFAULT '',
	started_at   BIGINT NOT NULL,
	completed_at BIGINT NOT NULL,
	error        TEXT NOT NULL DEFAULT '',
	turn         %s
)`, s.dialect.TurnType),
		`CREATE INDEX IF NOT EXISTS turns_completed_at ON turns (completed_at)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create %s schema: %w", s.dialect.Name, err)
		}
	}
	return nil
}

func (s *Store) bind(query string) string {
	n := 0
	var b strings.Builder
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString(s.dialect.Placeholder(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Put stores a record. Returns true if the record was newly inserted.
func (s *Store) Put(ctx context.Context, rec *storage.Record) (bool, error) {
	if rec == nil {
		return false, errors.New("cannot store nil record")
	}
	if rec.ID == "" {
		return false, errors.New("cannot store record without an id")
	}

	doc, err := json.Marshal(rec.Turn)
	if err != nil {
		return false, fmt.Errorf("failed to marshal turn: %w", err)
	}

	res, err := s.db.ExecContext(ctx, s.bind(`INSERT INTO turns
	(id, source, path, started_at, completed_at, error, turn)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (id) DO NOTHING`),
		rec.ID, rec.Source, rec.Path,
		rec.StartedAt.UnixNano(), rec.CompletedAt.UnixNano(),
		rec.Error, string(doc),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert turn %s: %w", rec.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check insert of turn %s: %w", rec.ID, err)
	}
	return n > 0, nil
}

const selectColumns = `SELECT id, source, path, started_at, completed_at, error, turn FROM turns`

// Get retrieves a record by its ID.
func (s *Store) Get(ctx context.Context, id string) (*storage.Record, error) {
	row := s.db.QueryRowContext(ctx, s.bind(selectColumns+` WHERE id = ?`), id)

	rec, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.NotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get turn %s: %w", id, err)
	}
	return rec, nil
}

// List returns records, most recently completed first.
func (s *Store) List(ctx context.Context, limit int) ([]*storage.Record, error) {
	query := selectColumns + ` ORDER BY completed_at DESC, id ASC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, s.bind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list turns: %w", err)
	}
	defer rows.Close()

	records := []*storage.Record{}
	for rows.Next() {
		rec, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list turns: %w", err)
	}
	return records, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying database.
func (s *Store) DB() *sql.DB {
	return s.db
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(row scanner) (*storage.Record, error) {
	var (
		rec                storage.Record
		started, completed int64
		doc                []byte
	)

	if err := row.Scan(&rec.ID, &rec.Source, &rec.Path, &started, &completed, &rec.Error, &doc); err != nil {
		return nil, err
	}

	rec.StartedAt = time.Unix(0, started).UTC()
	rec.CompletedAt = time.Unix(0, completed).UTC()

	if len(doc) > 0 && string(doc) != "null" {
		rec.Turn = &turn.Result{}
		if err := json.Unmarshal(doc, rec.Turn); err != nil {
			return nil, fmt.Errorf("failed to unmarshal turn %s: %w", rec.ID, err)
		}
	}
	return &rec, nil
}
