// Package subtitle converts transcription results into subtitle documents.
// Every conversion is a pure function of the ordered segment list (plus the
// optional full-text string for TXT) and the chosen output format.
package subtitle

import (
	"fmt"
	"path/filepath"
	"strings"

	"subtitler/internal/transcribe"
)

type Format string

const (
	SRT Format = "srt"
	VTT Format = "vtt"
	TXT Format = "txt"
)

// DefaultBaseName is used when the upload's original filename is unknown.
const DefaultBaseName = "subtitles"

func ParseFormat(input string) (Format, error) {
	switch strings.TrimSpace(strings.ToLower(input)) {
	case "", string(SRT):
		return SRT, nil
	case string(VTT):
		return VTT, nil
	case string(TXT):
		return TXT, nil
	default:
		return "", fmt.Errorf("unsupported subtitle format: %s", input)
	}
}

func (f Format) Extension() string {
	return string(f)
}

// MIMEType returns the content type served for the format. SRT and TXT are
// delivered as plain text; only VTT has its own registered type.
func (f Format) MIMEType() string {
	if f == VTT {
		return "text/vtt"
	}
	return "text/plain"
}

// Document is a rendered subtitle file. It is derived deterministically from a
// transcription result and never mutated after creation.
type Document struct {
	Format   Format
	Content  string
	Filename string
}

// Render converts a transcription result into the requested format. The
// suggested filename is the original upload's stem (one trailing extension
// stripped) plus the format extension.
func Render(res transcribe.Result, format Format, originalName string) (Document, error) {
	var content string
	switch format {
	case SRT:
		content = renderSRT(res.Segments)
	case VTT:
		content = renderVTT(res.Segments)
	case TXT:
		content = renderTXT(res)
	default:
		return Document{}, fmt.Errorf("unsupported subtitle format: %s", format)
	}

	return Document{
		Format:   format,
		Content:  content,
		Filename: baseName(originalName) + "." + format.Extension(),
	}, nil
}

// renderSRT emits one four-line block per segment: the 1-based cue number,
// the timestamp range, the trimmed text, and a blank separator. Segments with
// empty trimmed text keep their block so cue numbering stays continuous.
func renderSRT(segments []transcribe.Segment) string {
	var b strings.Builder
	for i, seg := range segments {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n",
			i+1,
			Timestamp(seg.Start),
			Timestamp(seg.End),
			strings.TrimSpace(seg.Text),
		)
	}
	return b.String()
}

// renderVTT emits the WEBVTT header followed by one cue block per segment.
// No cue identifiers are written.
func renderVTT(segments []transcribe.Segment) string {
	var b strings.Builder
	b.WriteString("WEBVTT\n\n")
	for _, seg := range segments {
		fmt.Fprintf(&b, "%s --> %s\n%s\n\n",
			vttTimestamp(seg.Start),
			vttTimestamp(seg.End),
			strings.TrimSpace(seg.Text),
		)
	}
	return b.String()
}

// renderTXT prefers the engine's aggregate transcript verbatim and falls back
// to joining the trimmed segment texts when no aggregate exists.
func renderTXT(res transcribe.Result) string {
	if res.Text != "" {
		return res.Text
	}

	lines := make([]string, 0, len(res.Segments))
	for _, seg := range res.Segments {
		lines = append(lines, strings.TrimSpace(seg.Text))
	}
	return strings.Join(lines, "\n")
}

// Timestamp renders a time value in seconds as an SRT timestamp,
// HH:MM:SS,mmm. The value is rounded at microsecond resolution and then
// truncated to whole milliseconds, so repeated float arithmetic cannot drift
// the rendered value.
func Timestamp(seconds float64) string {
	us := int64(seconds*1e6 + 0.5)
	if us < 0 {
		us = 0
	}
	ms := us / 1000

	hours := ms / 3_600_000
	ms -= hours * 3_600_000
	minutes := ms / 60_000
	ms -= minutes * 60_000
	secs := ms / 1000
	ms -= secs * 1000

	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, secs, ms)
}

// vttTimestamp derives the VTT rendering by separator substitution so the two
// formats can never numerically disagree.
func vttTimestamp(seconds float64) string {
	return strings.Replace(Timestamp(seconds), ",", ".", 1)
}

func baseName(originalName string) string {
	name := strings.TrimSpace(filepath.Base(originalName))
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	if stem == "" || stem == "." || stem == string(filepath.Separator) {
		return DefaultBaseName
	}
	return stem
}
