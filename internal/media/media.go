// Package media normalizes uploaded media files into transcription-ready
// audio and owns the upload extension allow-list.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// ErrExtraction wraps a failed ffmpeg run; the wrapped message carries the
// tool's diagnostic output.
var ErrExtraction = errors.New("audio extraction failed")

// allowedExtensions is the set of media types accepted for upload.
var allowedExtensions = map[string]struct{}{
	"mp3":  {},
	"mp4":  {},
	"wav":  {},
	"avi":  {},
	"mov":  {},
	"flac": {},
	"ogg":  {},
	"m4a":  {},
	"webm": {},
}

// videoExtensions marks container formats that need their audio stream
// extracted before transcription.
var videoExtensions = map[string]struct{}{
	".mp4":  {},
	".avi":  {},
	".mov":  {},
	".webm": {},
}

// AllowedExtension reports whether the filename carries an extension from the
// upload allow-list. A name without any extension is rejected.
func AllowedExtension(filename string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if ext == "" {
		return false
	}
	_, ok := allowedExtensions[ext]
	return ok
}

func AllowedExtensions() []string {
	exts := make([]string, 0, len(allowedExtensions))
	for ext := range allowedExtensions {
		exts = append(exts, ext)
	}
	return exts
}

// IsVideo reports whether the path's container format is a video container.
func IsVideo(path string) bool {
	_, ok := videoExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Preparer turns an input media file into an audio file the engine accepts.
type Preparer struct {
	// FFmpeg is the ffmpeg executable name or path; "ffmpeg" by default.
	FFmpeg string
	Logger *zap.Logger
}

func NewPreparer(logger *zap.Logger) *Preparer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Preparer{FFmpeg: "ffmpeg", Logger: logger}
}

// Prepare returns a path to a transcription-ready audio file for the given
// media file. Video containers are transcoded to mono 16 kHz 16-bit PCM in a
// fresh temporary file; anything else passes through unchanged. The returned
// cleanup func removes the temporary file when one was created and must be
// called on every exit path.
func (p *Preparer) Prepare(ctx context.Context, path string) (string, func(), error) {
	if !IsVideo(path) {
		return path, func() {}, nil
	}

	tmp, err := os.CreateTemp("", "subtitler-audio-*.wav")
	if err != nil {
		return "", nil, fmt.Errorf("create temp audio file: %w", err)
	}
	audioPath := tmp.Name()
	if err := tmp.Close(); err != nil {
		_ = os.Remove(audioPath)
		return "", nil, fmt.Errorf("close temp audio file: %w", err)
	}

	cleanup := func() {
		if err := os.Remove(audioPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			p.log().Warn("failed to remove extracted audio", zap.String("path", audioPath), zap.Error(err))
		}
	}

	args := extractArgs(path, audioPath)
	cmd := exec.CommandContext(ctx, p.ffmpeg(), args...)
	var stderr bytes.Buffer
	cmd.Stdout = &bytes.Buffer{}
	cmd.Stderr = &stderr

	p.log().Debug("extracting audio", zap.String("input", path), zap.Strings("args", args))
	if err := cmd.Run(); err != nil {
		cleanup()
		errText := strings.TrimSpace(stderr.String())
		if errText != "" {
			return "", nil, fmt.Errorf("%w: %v (%s)", ErrExtraction, err, errText)
		}
		return "", nil, fmt.Errorf("%w: %v", ErrExtraction, err)
	}

	return audioPath, cleanup, nil
}

// extractArgs builds the ffmpeg invocation: drop video, mono, 16 kHz, pcm_s16le.
func extractArgs(input, output string) []string {
	return []string{
		"-nostdin", "-hide_banner", "-loglevel", "error",
		"-i", input,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", "16000",
		"-ac", "1",
		"-y",
		output,
	}
}

func (p *Preparer) ffmpeg() string {
	if strings.TrimSpace(p.FFmpeg) == "" {
		return "ffmpeg"
	}
	return p.FFmpeg
}

func (p *Preparer) log() *zap.Logger {
	if p.Logger == nil {
		return zap.NewNop()
	}
	return p.Logger
}
