// Package server exposes the subtitle pipeline over HTTP. Each browser
// session is identified by a cookie and mapped to its own job session.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"subtitler/internal/session"
	"subtitler/internal/store"
)

const sessionCookie = "subtitler_session"

type Server struct {
	pipeline *session.Pipeline
	sessions session.Store
	// records backs the history endpoints; nil when no database is
	// configured.
	records        store.Store
	defaultModel   string
	maxUploadBytes int64
	logger         *zap.Logger

	httpServer *http.Server
}

type Options struct {
	Bind           string
	Pipeline       *session.Pipeline
	Sessions       session.Store
	Records        store.Store
	DefaultModel   string
	MaxUploadBytes int64
	Logger         *zap.Logger
}

func New(opts Options) (*Server, error) {
	if opts.Pipeline == nil {
		return nil, errors.New("server requires a pipeline")
	}

	sessions := opts.Sessions
	if sessions == nil {
		sessions = session.NewMemoryStore()
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	defaultModel := opts.DefaultModel
	if defaultModel == "" {
		defaultModel = "base"
	}

	maxUploadBytes := opts.MaxUploadBytes
	if maxUploadBytes <= 0 {
		maxUploadBytes = 200 * 1024 * 1024
	}

	s := &Server{
		pipeline:       opts.Pipeline,
		sessions:       sessions,
		records:        opts.Records,
		defaultModel:   defaultModel,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}

	s.httpServer = &http.Server{
		Addr:              opts.Bind,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, nil
}

// Handler builds the route table. Mutating routes are POST-only; the options
// and history routes are read-only.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /upload", s.handleUpload)
	mux.HandleFunc("POST /transcribe", s.handleTranscribe)
	mux.HandleFunc("POST /download", s.handleDownload)
	mux.HandleFunc("POST /clear", s.handleClear)
	mux.HandleFunc("POST /download-complete", s.handleDownloadComplete)
	mux.HandleFunc("GET /api/options", s.handleOptions)
	mux.HandleFunc("GET /api/transcriptions", s.handleListTranscriptions)
	mux.HandleFunc("GET /api/transcriptions/{id}", s.handleGetTranscription)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return mux
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("bind", s.httpServer.Addr))
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	}
}

// sessionFor returns the job session bound to the request's cookie, minting a
// fresh session id when none exists yet.
func (s *Server) sessionFor(w http.ResponseWriter, r *http.Request) *session.Session {
	if cookie, err := r.Cookie(sessionCookie); err == nil && cookie.Value != "" {
		return s.sessions.GetOrCreate(cookie.Value)
	}

	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return s.sessions.GetOrCreate(id)
}
