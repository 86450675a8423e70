// Package transcribe defines the transcription engine contract consumed by the
// job pipeline and provides its two backends: an OpenAI-compatible API client
// and a local whisper-cli wrapper.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrTranscription wraps every engine-side failure. No retries happen at this
// layer; a failure is surfaced to the caller as-is.
var ErrTranscription = errors.New("transcription failed")

type Task string

const (
	TaskTranscribe Task = "transcribe"
	TaskTranslate  Task = "translate"
)

func ParseTask(input string) (Task, error) {
	switch strings.TrimSpace(strings.ToLower(input)) {
	case "", string(TaskTranscribe):
		return TaskTranscribe, nil
	case string(TaskTranslate):
		return TaskTranslate, nil
	default:
		return "", fmt.Errorf("unknown task %q (supported: transcribe, translate)", input)
	}
}

// Segment is a time-bounded span of the transcript. Start and End are seconds
// from the beginning of the audio; End >= Start >= 0. Engine output is trusted
// as-is, no overlap resolution is performed.
type Segment struct {
	Start float64
	End   float64
	Text  string
}

// Result is the structured output of one engine invocation. Segments are
// ordered by ascending Start. Language carries the detected language code when
// the caller did not supply one.
type Result struct {
	Text     string
	Segments []Segment
	Language string
}

type Request struct {
	AudioPath string
	Model     string
	// Language is passed through verbatim when non-empty; empty means
	// auto-detect.
	Language string
	Task     Task
}

type Engine interface {
	Transcribe(ctx context.Context, req Request) (Result, error)
}

// SanitizeLanguage normalizes a user-supplied language hint. "auto" and blank
// both mean auto-detect and map to the empty string.
func SanitizeLanguage(input string) string {
	trimmed := strings.TrimSpace(strings.ToLower(input))
	if trimmed == "auto" {
		return ""
	}
	return trimmed
}
