package record

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS design_records (
    seq         BIGSERIAL UNIQUE,
    id          TEXT PRIMARY KEY,
    timestamp   TEXT NOT NULL,
    body        JSONB NOT NULL,
    valid_coils INTEGER NOT NULL,
    total_coils INTEGER NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS design_records_timestamp ON design_records (timestamp);
`

// DBTX is the part of a pgx pool or connection the store needs.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore indexes records in a shared Postgres database.
type PostgresStore struct {
	db DBTX
}

func NewPostgresStore(ctx context.Context, db DBTX) (*PostgresStore, error) {
	if _, err := db.Exec(ctx, postgresSchema); err != nil {
		return nil, fmt.Errorf("apply postgres schema: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Save(ctx context.Context, r *Record) error {
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	_, err = s.db.Exec(ctx, `
        INSERT INTO design_records (id, timestamp, body, valid_coils, total_coils)
        VALUES ($1, $2, $3, $4, $5)
    `, r.ID, r.Timestamp, body, len(r.Validation.ValidCoils), len(r.CoilCoordinates))
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Record, error) {
	return scanPgRecord(s.db.QueryRow(ctx, `SELECT body FROM design_records WHERE id = $1`, id))
}

func (s *PostgresStore) Latest(ctx context.Context) (*Record, error) {
	return scanPgRecord(s.db.QueryRow(ctx, `
        SELECT body FROM design_records
        ORDER BY timestamp DESC, seq DESC
        LIMIT 1
    `))
}

func (s *PostgresStore) List(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.Query(ctx, `SELECT body FROM design_records ORDER BY timestamp, seq`)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	out := []Summary{}
	for rows.Next() {
		r, err := scanPgRecord(rows)
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

func scanPgRecord(row pgx.Row) (*Record, error) {
	var body []byte
	if err := row.Scan(&body); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan record: %w", err)
	}
	var r Record
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return &r, nil
}
