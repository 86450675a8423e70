package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := OpenSQLite(filepath.Join(t.TempDir(), "records.db"))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s
}

func TestSQLiteInsertAndGet(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.Insert(ctx, Record{
		FileName: "talk.mp4",
		Language: "en",
		Model:    "base",
		Task:     "transcribe",
		Format:   "srt",
		Preview:  "Hello world",
		Content:  "1\n00:00:00,000 --> 00:00:01,500\nHello\n\n",
	})
	require.NoError(t, err)
	require.Positive(t, id)

	rec, err := s.GetByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "talk.mp4", rec.FileName)
	require.Equal(t, "en", rec.Language)
	require.Equal(t, "srt", rec.Format)
	require.Equal(t, "Hello world", rec.Preview)
	require.Contains(t, rec.Content, "Hello")
	require.False(t, rec.CreatedAt.IsZero())
}

func TestSQLiteGetMissing(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	_, err := s.GetByID(context.Background(), 42)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteListRecentNewestFirst(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"a.mp3", "b.mp3", "c.mp3"} {
		_, err := s.Insert(ctx, Record{FileName: name, Model: "base", Task: "transcribe", Format: "txt", Preview: name})
		require.NoError(t, err)
	}

	records, err := s.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "c.mp3", records[0].FileName)
	require.Equal(t, "b.mp3", records[1].FileName)
}

func TestSQLiteNullableLanguage(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.Insert(ctx, Record{FileName: "x.wav", Model: "tiny", Task: "translate", Format: "vtt", Preview: "p"})
	require.NoError(t, err)

	rec, err := s.GetByID(ctx, id)
	require.NoError(t, err)
	require.Empty(t, rec.Language)
	require.Empty(t, rec.Content)
}
