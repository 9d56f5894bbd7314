package record

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS design_records (
    id          TEXT PRIMARY KEY,
    timestamp   TEXT NOT NULL,
    body        TEXT NOT NULL,
    valid_coils INTEGER NOT NULL,
    total_coils INTEGER NOT NULL,
    created_at  TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS design_records_timestamp ON design_records (timestamp);
`

// OpenSQLite opens (creating if needed) the embedded database at dbPath.
func OpenSQLite(dbPath string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?cache=shared&mode=rwc&_pragma=busy_timeout=5000", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// SQLiteStore indexes records in an embedded SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore applies the schema and returns a ready store.
func NewSQLiteStore(ctx context.Context, db *sql.DB) (*SQLiteStore, error) {
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Save(ctx context.Context, r *Record) error {
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
        INSERT INTO design_records (id, timestamp, body, valid_coils, total_coils)
        VALUES (?, ?, ?, ?, ?)
    `, r.ID, r.Timestamp, string(body), len(r.Validation.ValidCoils), len(r.CoilCoordinates))
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT body FROM design_records WHERE id = ?`, id)
	return scanSQLRecord(row)
}

func (s *SQLiteStore) Latest(ctx context.Context) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT body FROM design_records
        ORDER BY timestamp DESC, rowid DESC
        LIMIT 1
    `)
	return scanSQLRecord(row)
}

func (s *SQLiteStore) List(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT body FROM design_records ORDER BY timestamp, rowid`)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	out := []Summary{}
	for rows.Next() {
		r, err := scanSQLRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r.Summary())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return out, nil
}

type sqlScanner interface {
	Scan(dest ...any) error
}

func scanSQLRecord(row sqlScanner) (*Record, error) {
	var body string
	if err := row.Scan(&body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan record: %w", err)
	}
	var r Record
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return &r, nil
}
