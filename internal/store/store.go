// Package store persists transcription records for later retrieval. Two
// backends exist: an embedded SQLite database and Postgres.
package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound is returned when no record exists for the requested id.
var ErrNotFound = errors.New("transcription record not found")

// Record is one persisted transcription. Preview holds the first part of the
// transcript for listings; Content optionally carries the full subtitle body.
type Record struct {
	ID        int64     `json:"id"`
	FileName  string    `json:"file_name"`
	Language  string    `json:"language"`
	Model     string    `json:"model"`
	Task      string    `json:"task"`
	Format    string    `json:"format"`
	Preview   string    `json:"preview"`
	Content   string    `json:"content,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Store interface {
	Insert(ctx context.Context, rec Record) (int64, error)
	// ListRecent returns up to limit records, newest first.
	ListRecent(ctx context.Context, limit int) ([]Record, error)
	GetByID(ctx context.Context, id int64) (Record, error)
	Close() error
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func scanRecord(scan func(dest ...any) error) (Record, error) {
	var rec Record
	var language, content sql.NullString
	var createdAt string

	if err := scan(&rec.ID, &rec.FileName, &language, &rec.Model, &rec.Task, &rec.Format, &rec.Preview, &content, &createdAt); err != nil {
		return Record{}, err
	}

	rec.Language = language.String
	rec.Content = content.String
	if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		rec.CreatedAt = ts
	}
	return rec, nil
}
