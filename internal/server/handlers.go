package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"subtitler/internal/media"
	"subtitler/internal/session"
	"subtitler/internal/store"
	"subtitler/internal/subtitle"
	"subtitler/internal/transcribe"
)

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("file too large, maximum allowed size is %dMB", s.maxUploadBytes/(1024*1024)))
			return
		}
		writeError(w, http.StatusBadRequest, "no file part in the request")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no file part in the request")
		return
	}
	defer file.Close()

	sess := s.sessionFor(w, r)
	if err := s.pipeline.Upload(sess, header.Filename, file); err != nil {
		s.writeFailure(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":  "file uploaded successfully",
		"filename": sess.OriginalName(),
		"status":   "ready",
	})
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "malformed form data")
		return
	}

	model := r.FormValue("model")
	if model == "" {
		model = s.defaultModel
	}
	language := transcribe.SanitizeLanguage(r.FormValue("language"))

	task, err := transcribe.ParseTask(r.FormValue("task"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess := s.sessionFor(w, r)
	result, err := s.pipeline.Transcribe(r.Context(), sess, model, language, task)
	if err != nil {
		s.writeFailure(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "completed",
		"message":  "transcription completed successfully",
		"language": result.Language,
		"preview":  session.Preview(result.Text),
	})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "malformed form data")
		return
	}

	format, err := subtitle.ParseFormat(r.FormValue("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess := s.sessionFor(w, r)
	doc, err := s.pipeline.Download(r.Context(), sess, format)
	if err != nil {
		s.writeFailure(w, err)
		return
	}

	w.Header().Set("Content-Type", doc.Format.MIMEType()+"; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(doc.Content)); err != nil {
		s.logger.Warn("failed to write subtitle response", zap.Error(err))
	}
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	sess := s.sessionFor(w, r)
	s.pipeline.Clear(r.Context(), sess)
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "message": "session cleared"})
}

func (s *Server) handleDownloadComplete(w http.ResponseWriter, r *http.Request) {
	sess := s.sessionFor(w, r)
	if err := s.pipeline.CompleteDownload(r.Context(), sess); err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success"})
}

func (s *Server) handleOptions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"models":    transcribe.Models(),
		"languages": transcribe.Languages,
		"formats":   []string{string(subtitle.SRT), string(subtitle.VTT), string(subtitle.TXT)},
	})
}

func (s *Server) handleListTranscriptions(w http.ResponseWriter, r *http.Request) {
	if s.records == nil {
		writeError(w, http.StatusServiceUnavailable, "metadata store is not configured")
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	records, err := s.records.ListRecent(r.Context(), limit)
	if err != nil {
		s.logger.Error("list transcriptions failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list transcriptions")
		return
	}
	if records == nil {
		records = []store.Record{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"transcriptions": records})
}

func (s *Server) handleGetTranscription(w http.ResponseWriter, r *http.Request) {
	if s.records == nil {
		writeError(w, http.StatusServiceUnavailable, "metadata store is not configured")
		return
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "id must be an integer")
		return
	}

	rec, err := s.records.GetByID(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "transcription record not found")
		return
	}
	if err != nil {
		s.logger.Error("get transcription failed", zap.Int64("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load transcription")
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// writeFailure maps pipeline errors onto the HTTP taxonomy: bad input and
// out-of-sequence requests are client errors, engine failures surface their
// diagnostic text as server errors.
func (s *Server) writeFailure(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrValidation), errors.Is(err, session.ErrState):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, media.ErrExtraction), errors.Is(err, transcribe.ErrTranscription):
		s.logger.Error("pipeline failure", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		s.logger.Error("unexpected failure", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
