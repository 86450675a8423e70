package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore keeps transcription records in Postgres, reached through the
// pgx stdlib driver.
type PostgresStore struct {
	db *sql.DB
}

func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres db: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres db: %w", err)
	}

	schema := `CREATE TABLE IF NOT EXISTS transcriptions (
        id BIGSERIAL PRIMARY KEY,
        file_name TEXT NOT NULL,
        language TEXT,
        model TEXT NOT NULL,
        task TEXT NOT NULL,
        format TEXT NOT NULL,
        preview TEXT NOT NULL,
        content TEXT,
        created_at TEXT NOT NULL
    )`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Insert(ctx context.Context, rec Record) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(
		ctx,
		`INSERT INTO transcriptions (file_name, language, model, task, format, preview, content, created_at)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		rec.FileName,
		nullableString(rec.Language),
		rec.Model,
		rec.Task,
		rec.Format,
		rec.Preview,
		nullableString(rec.Content),
		time.Now().UTC().Format(time.RFC3339Nano),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert transcription: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) ListRecent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, file_name, language, model, task, format, preview, content, created_at
         FROM transcriptions ORDER BY id DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list transcriptions: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan transcription: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transcriptions: %w", err)
	}
	return records, nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id int64) (Record, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, file_name, language, model, task, format, preview, content, created_at
         FROM transcriptions WHERE id = $1`,
		id,
	)

	rec, err := scanRecord(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("get transcription %d: %w", id, err)
	}
	return rec, nil
}

func (s *PostgresStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
