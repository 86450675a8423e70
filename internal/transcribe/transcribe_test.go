package transcribe

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseTask(t *testing.T) {
	t.Parallel()

	task, err := ParseTask("")
	require.NoError(t, err)
	require.Equal(t, TaskTranscribe, task)

	task, err = ParseTask("Translate")
	require.NoError(t, err)
	require.Equal(t, TaskTranslate, task)

	_, err = ParseTask("summarize")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown task")
}

func TestSanitizeLanguage(t *testing.T) {
	t.Parallel()

	require.Equal(t, "", SanitizeLanguage(""))
	require.Equal(t, "", SanitizeLanguage("auto"))
	require.Equal(t, "", SanitizeLanguage(" AUTO "))
	require.Equal(t, "de", SanitizeLanguage(" De "))
}

func TestModelCatalogIsStable(t *testing.T) {
	t.Parallel()

	models := Models()
	require.Len(t, models, 5)
	require.Equal(t, "tiny", models[0].Name)
	require.Equal(t, "large-v3", models[4].Name)

	// Mutating the returned slice must not leak into the catalog.
	models[0].Name = "mutated"
	require.Equal(t, "tiny", Models()[0].Name)
}

func TestLanguageCodesSorted(t *testing.T) {
	t.Parallel()

	codes := LanguageCodes()
	require.Len(t, codes, len(Languages))
	for i := 1; i < len(codes); i++ {
		require.Less(t, codes[i-1], codes[i])
	}
	require.Contains(t, codes, "en")
	require.Contains(t, codes, "fa")
}

func TestParseWhisperReport(t *testing.T) {
	t.Parallel()

	report := []byte(`{
		"result": {"language": "en"},
		"transcription": [
			{"offsets": {"from": 0, "to": 1500}, "text": " Hello"},
			{"offsets": {"from": 1500, "to": 3250}, "text": " world"}
		]
	}`)

	result, err := parseWhisperReport(report)
	require.NoError(t, err)
	require.Equal(t, "en", result.Language)
	require.Equal(t, "Hello world", result.Text)
	require.Len(t, result.Segments, 2)
	require.Equal(t, 0.0, result.Segments[0].Start)
	require.Equal(t, 1.5, result.Segments[0].End)
	require.Equal(t, 1.5, result.Segments[1].Start)
	require.Equal(t, 3.25, result.Segments[1].End)
	require.Equal(t, " world", result.Segments[1].Text)
}

func TestParseWhisperReportRejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := parseWhisperReport([]byte("not json"))
	require.Error(t, err)
}
