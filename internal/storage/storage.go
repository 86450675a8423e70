// Package storage persists generated subtitle files to a remote object store.
// Two interchangeable backends exist; both key objects by file id plus format
// extension. Persistence is best-effort from the pipeline's point of view and
// never blocks the local subtitle deliverable.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when the requested object does not exist remotely.
var ErrNotFound = errors.New("subtitle file not found in storage")

// Metadata is opaque key/value data stored alongside the object.
type Metadata map[string]string

// Handle identifies an uploaded object for later download or deletion.
type Handle struct {
	FileID      string
	DownloadURL string
}

type Gateway interface {
	Upload(ctx context.Context, content, formatExt, originalName string, meta Metadata) (Handle, error)
	Download(ctx context.Context, fileID, formatExt string) (string, error)
	Delete(ctx context.Context, fileID, formatExt string) error
}
