package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"subtitler/internal/session"
	"subtitler/internal/store"
	"subtitler/internal/transcribe"
)

type stubEngine struct {
	result transcribe.Result
	err    error
}

func (e *stubEngine) Transcribe(_ context.Context, _ transcribe.Request) (transcribe.Result, error) {
	if e.err != nil {
		return transcribe.Result{}, e.err
	}
	return e.result, nil
}

type memRecords struct {
	records []store.Record
}

func (m *memRecords) Insert(_ context.Context, rec store.Record) (int64, error) {
	rec.ID = int64(len(m.records) + 1)
	m.records = append(m.records, rec)
	return rec.ID, nil
}

func (m *memRecords) ListRecent(_ context.Context, limit int) ([]store.Record, error) {
	out := make([]store.Record, 0, limit)
	for i := len(m.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.records[i])
	}
	return out, nil
}

func (m *memRecords) GetByID(_ context.Context, id int64) (store.Record, error) {
	for _, rec := range m.records {
		if rec.ID == id {
			return rec, nil
		}
	}
	return store.Record{}, store.ErrNotFound
}

func (m *memRecords) Close() error { return nil }

var stubResult = transcribe.Result{
	Text:     "Hello world",
	Language: "en",
	Segments: []transcribe.Segment{
		{Start: 0.0, End: 1.5, Text: "Hello"},
		{Start: 1.5, End: 3.25, Text: "world"},
	},
}

type testEnv struct {
	server *httptest.Server
	client *http.Client
}

func newTestEnv(t *testing.T, engine transcribe.Engine, records store.Store, maxUploadBytes int64) *testEnv {
	t.Helper()

	pipeline, err := session.NewPipeline(session.Options{
		Engine:    engine,
		Records:   records,
		UploadDir: t.TempDir(),
	})
	require.NoError(t, err)

	srv, err := New(Options{
		Pipeline:       pipeline,
		Records:        records,
		MaxUploadBytes: maxUploadBytes,
	})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &testEnv{server: ts, client: &http.Client{Jar: jar}}
}

func (e *testEnv) upload(t *testing.T, filename, content string) *http.Response {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = io.WriteString(part, content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	resp, err := e.client.Post(e.server.URL+"/upload", writer.FormDataContentType(), &body)
	require.NoError(t, err)
	return resp
}

func (e *testEnv) postForm(t *testing.T, path string, form url.Values) *http.Response {
	t.Helper()
	resp, err := e.client.PostForm(e.server.URL+path, form)
	require.NoError(t, err)
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()

	var payload map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	return payload
}

func TestUploadTranscribeDownloadFlow(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, &stubEngine{result: stubResult}, nil, 0)

	resp := env.upload(t, "talk.mp3", "fake audio")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	payload := decodeJSON(t, resp)
	require.Equal(t, "ready", payload["status"])
	require.Equal(t, "talk.mp3", payload["filename"])

	resp = env.postForm(t, "/transcribe", url.Values{"model": {"base"}, "task": {"transcribe"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	payload = decodeJSON(t, resp)
	require.Equal(t, "completed", payload["status"])
	require.Equal(t, "Hello world", payload["preview"])

	resp = env.postForm(t, "/download", url.Values{"format": {"srt"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/plain; charset=utf-8", resp.Header.Get("Content-Type"))
	require.Contains(t, resp.Header.Get("Content-Disposition"), `"talk.srt"`)

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, "1\n00:00:00,000 --> 00:00:01,500\nHello\n\n2\n00:00:01,500 --> 00:00:03,250\nworld\n\n", string(body))

	resp = env.postForm(t, "/clear", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeJSON(t, resp)

	resp = env.postForm(t, "/download", url.Values{"format": {"srt"}})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	decodeJSON(t, resp)
}

func TestDownloadVTTMimeType(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, &stubEngine{result: stubResult}, nil, 0)
	env.upload(t, "talk.mp3", "fake audio").Body.Close()
	env.postForm(t, "/transcribe", nil).Body.Close()

	resp := env.postForm(t, "/download", url.Values{"format": {"vtt"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/vtt; charset=utf-8", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(body), "WEBVTT\n\n"))
}

func TestTranscribeWithoutUploadIsBadRequest(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, &stubEngine{result: stubResult}, nil, 0)
	resp := env.postForm(t, "/transcribe", url.Values{"model": {"base"}})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	payload := decodeJSON(t, resp)
	require.Contains(t, payload["error"], "no file has been uploaded")
}

func TestUploadRejectsDisallowedType(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, &stubEngine{result: stubResult}, nil, 0)
	resp := env.upload(t, "video.exe", "MZ")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	payload := decodeJSON(t, resp)
	require.Contains(t, payload["error"], "file type not allowed")
}

func TestUploadTooLargeIs413(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, &stubEngine{result: stubResult}, nil, 1024)
	resp := env.upload(t, "talk.mp3", strings.Repeat("x", 64*1024))
	require.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)

	payload := decodeJSON(t, resp)
	require.Contains(t, payload["error"], "file too large")
}

func TestDownloadUnsupportedFormat(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, &stubEngine{result: stubResult}, nil, 0)
	resp := env.postForm(t, "/download", url.Values{"format": {"ass"}})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	payload := decodeJSON(t, resp)
	require.Contains(t, payload["error"], "unsupported subtitle format")
}

func TestTranscribeEngineFailureIs500(t *testing.T) {
	t.Parallel()

	engine := &stubEngine{err: fmt.Errorf("%w: cuda out of memory", transcribe.ErrTranscription)}
	env := newTestEnv(t, engine, nil, 0)
	env.upload(t, "talk.mp3", "fake audio").Body.Close()

	resp := env.postForm(t, "/transcribe", nil)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	payload := decodeJSON(t, resp)
	require.Contains(t, payload["error"], "cuda out of memory")
}

func TestSessionsAreIndependent(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, &stubEngine{result: stubResult}, nil, 0)
	env.upload(t, "talk.mp3", "fake audio").Body.Close()

	// A second client with its own cookie jar has no upload on record.
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	other := &http.Client{Jar: jar}

	resp, err := other.PostForm(env.server.URL+"/transcribe", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestOptionsEndpoint(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, &stubEngine{result: stubResult}, nil, 0)
	resp, err := env.client.Get(env.server.URL + "/api/options")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	payload := decodeJSON(t, resp)
	require.Len(t, payload["models"], 5)
	require.Contains(t, payload["languages"].(map[string]any), "en")
	require.ElementsMatch(t, []any{"srt", "vtt", "txt"}, payload["formats"])
}

func TestTranscriptionHistoryEndpoints(t *testing.T) {
	t.Parallel()

	records := &memRecords{}
	env := newTestEnv(t, &stubEngine{result: stubResult}, records, 0)

	env.upload(t, "talk.mp3", "fake audio").Body.Close()
	env.postForm(t, "/transcribe", nil).Body.Close()
	env.postForm(t, "/download", url.Values{"format": {"srt"}}).Body.Close()

	resp, err := env.client.Get(env.server.URL + "/api/transcriptions?limit=5")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	payload := decodeJSON(t, resp)
	listed := payload["transcriptions"].([]any)
	require.Len(t, listed, 1)

	resp, err = env.client.Get(env.server.URL + "/api/transcriptions/1")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	payload = decodeJSON(t, resp)
	require.Equal(t, "talk.mp3", payload["file_name"])
	require.Equal(t, "srt", payload["format"])

	resp, err = env.client.Get(env.server.URL + "/api/transcriptions/99")
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestHistoryWithoutStoreIsUnavailable(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, &stubEngine{result: stubResult}, nil, 0)
	resp, err := env.client.Get(env.server.URL + "/api/transcriptions")
	require.NoError(t, err)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	resp.Body.Close()
}
