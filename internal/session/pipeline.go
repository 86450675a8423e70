package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"subtitler/internal/media"
	"subtitler/internal/storage"
	"subtitler/internal/store"
	"subtitler/internal/subtitle"
	"subtitler/internal/transcribe"
)

// Pipeline runs the upload -> transcribe -> format -> persist workflow over a
// session. Each operation holds the session lock for its full duration: the
// state machine is not safe under concurrent transitions, so mutations on one
// session are serialized while different sessions proceed in parallel. The
// engine call blocks for the full duration of decoding and inference.
type Pipeline struct {
	engine   transcribe.Engine
	preparer *media.Preparer
	gateway  storage.Gateway
	records  store.Store
	// storeContent persists the full subtitle body alongside the metadata
	// record instead of the preview only.
	storeContent bool
	uploadDir    string
	logger       *zap.Logger
}

type Options struct {
	Engine   transcribe.Engine
	Preparer *media.Preparer
	// Gateway may be nil when remote storage is not configured.
	Gateway storage.Gateway
	// Records may be nil when no metadata database is configured.
	Records      store.Store
	StoreContent bool
	UploadDir    string
	Logger       *zap.Logger
}

func NewPipeline(opts Options) (*Pipeline, error) {
	if opts.Engine == nil {
		return nil, errors.New("pipeline requires a transcription engine")
	}
	if strings.TrimSpace(opts.UploadDir) == "" {
		return nil, errors.New("pipeline requires an upload directory")
	}
	if err := os.MkdirAll(opts.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory %s: %w", opts.UploadDir, err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	preparer := opts.Preparer
	if preparer == nil {
		preparer = media.NewPreparer(logger)
	}

	return &Pipeline{
		engine:       opts.Engine,
		preparer:     preparer,
		gateway:      opts.Gateway,
		records:      opts.Records,
		storeContent: opts.StoreContent,
		uploadDir:    opts.UploadDir,
		logger:       logger,
	}, nil
}

// Upload validates the filename and saves a server-side copy under a freshly
// generated unique name. A new upload supersedes the previous one; the old
// copy and any stale transcription result are discarded (last write wins).
func (p *Pipeline) Upload(sess *Session, originalName string, src io.Reader) error {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	name := strings.TrimSpace(filepath.Base(originalName))
	if name == "" || name == "." {
		return fmt.Errorf("%w: no file selected", ErrValidation)
	}
	if !media.AllowedExtension(name) {
		return fmt.Errorf("%w: file type not allowed, supported types: %s", ErrValidation, strings.Join(media.AllowedExtensions(), ", "))
	}

	ext := strings.ToLower(filepath.Ext(name))
	savedPath := filepath.Join(p.uploadDir, uuid.NewString()+ext)

	dst, err := os.Create(savedPath)
	if err != nil {
		return fmt.Errorf("save upload: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(savedPath)
		return fmt.Errorf("save upload: %w", err)
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(savedPath)
		return fmt.Errorf("save upload: %w", err)
	}

	if sess.uploadPath != "" {
		p.removeLocal(sess.uploadPath)
	}
	sess.uploadPath = savedPath
	sess.originalName = name
	sess.result = nil

	p.logger.Info("file uploaded", zap.String("filename", name), zap.String("saved_as", savedPath))
	return nil
}

// Transcribe runs the audio preparer and the engine over the uploaded file.
// On failure the session keeps its prior state so the user can retry without
// re-uploading.
func (p *Pipeline) Transcribe(ctx context.Context, sess *Session, model, language string, task transcribe.Task) (*transcribe.Result, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.uploadPath == "" {
		return nil, fmt.Errorf("%w: no file has been uploaded yet", ErrState)
	}

	audioPath, cleanup, err := p.preparer.Prepare(ctx, sess.uploadPath)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	p.logger.Info("starting transcription",
		zap.String("model", model),
		zap.String("language", language),
		zap.String("task", string(task)),
	)

	result, err := p.engine.Transcribe(ctx, transcribe.Request{
		AudioPath: audioPath,
		Model:     model,
		Language:  language,
		Task:      task,
	})
	if err != nil {
		return nil, err
	}

	sess.result = &result
	sess.model = model
	sess.task = task

	p.logger.Info("transcription completed", zap.Int("segments", len(result.Segments)), zap.String("language", result.Language))
	return &result, nil
}

// Download renders the last transcription result into the requested format.
// When a storage gateway is configured the document is also uploaded remotely;
// a storage failure is logged and swallowed, the local document is returned
// regardless. The metadata record insert follows the same rule.
func (p *Pipeline) Download(ctx context.Context, sess *Session, format subtitle.Format) (subtitle.Document, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.result == nil {
		return subtitle.Document{}, fmt.Errorf("%w: no transcription found, please transcribe a file first", ErrState)
	}

	doc, err := subtitle.Render(*sess.result, format, sess.originalName)
	if err != nil {
		return subtitle.Document{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	if p.gateway != nil {
		handle, err := p.gateway.Upload(ctx, doc.Content, format.Extension(), sess.originalName, storage.Metadata{
			"original_filename": sess.originalName,
			"model":             sess.model,
			"task":              string(sess.task),
			"language":          sess.result.Language,
		})
		if err != nil {
			p.logger.Warn("remote subtitle upload failed; continuing with local download", zap.Error(err))
		} else {
			sess.remote = &RemoteHandle{FileID: handle.FileID, Format: format}
		}
	}

	if p.records != nil {
		rec := store.Record{
			FileName: sess.originalName,
			Language: sess.result.Language,
			Model:    sess.model,
			Task:     string(sess.task),
			Format:   format.Extension(),
			Preview:  Preview(sess.result.Text),
		}
		if p.storeContent {
			rec.Content = doc.Content
		}
		if _, err := p.records.Insert(ctx, rec); err != nil {
			p.logger.Warn("metadata record insert failed", zap.Error(err))
		}
	}

	return doc, nil
}

// CompleteDownload deletes the retained remote file. A deletion failure is
// returned to the caller and the handle stays on record for a later retry.
func (p *Pipeline) CompleteDownload(ctx context.Context, sess *Session) error {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.remote == nil || p.gateway == nil {
		return nil
	}

	fileID := sess.remote.FileID
	if err := p.gateway.Delete(ctx, fileID, sess.remote.Format.Extension()); err != nil {
		return fmt.Errorf("delete remote subtitle file %s: %w", fileID, err)
	}
	sess.remote = nil

	p.logger.Info("remote subtitle file deleted", zap.String("file_id", fileID))
	return nil
}

// Clear discards all session state. Local and remote cleanup are best-effort;
// failures are logged, never raised. Clearing an empty session is a no-op.
func (p *Pipeline) Clear(ctx context.Context, sess *Session) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.uploadPath != "" {
		p.removeLocal(sess.uploadPath)
	}
	if sess.remote != nil && p.gateway != nil {
		if err := p.gateway.Delete(ctx, sess.remote.FileID, sess.remote.Format.Extension()); err != nil {
			p.logger.Warn("remote subtitle cleanup failed", zap.String("file_id", sess.remote.FileID), zap.Error(err))
		}
	}

	sess.uploadPath = ""
	sess.originalName = ""
	sess.result = nil
	sess.model = ""
	sess.task = ""
	sess.remote = nil
}

func (p *Pipeline) removeLocal(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		p.logger.Warn("failed to remove uploaded file", zap.String("path", path), zap.Error(err))
	}
}

// Preview shortens a transcript for listings and status responses.
func Preview(text string) string {
	const maxRunes = 500
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return text
	}
	return string(runes[:maxRunes]) + "..."
}
