package storage

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBucketGatewayUploadDownloadDelete(t *testing.T) {
	t.Parallel()

	objects := map[string]string{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		switch r.Method {
		case http.MethodPost:
			body, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			objects[r.URL.Path] = string(body)
			w.WriteHeader(http.StatusOK)
		case http.MethodGet:
			content, ok := objects[r.URL.Path]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			io.WriteString(w, content)
		case http.MethodDelete:
			if _, ok := objects[r.URL.Path]; !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			delete(objects, r.URL.Path)
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer server.Close()

	gw, err := NewBucketGateway(BucketOptions{BaseURL: server.URL, Bucket: "subs", Token: "secret"})
	require.NoError(t, err)
	gw.newID = func() string { return "fixed-id" }

	ctx := context.Background()
	handle, err := gw.Upload(ctx, "WEBVTT\n\n", "vtt", "talk.mp4", Metadata{"task": "transcribe"})
	require.NoError(t, err)
	require.Equal(t, "fixed-id", handle.FileID)
	require.Contains(t, handle.DownloadURL, "/storage/v1/object/public/subs/fixed-id.vtt")

	content, err := gw.Download(ctx, "fixed-id", "vtt")
	require.NoError(t, err)
	require.Equal(t, "WEBVTT\n\n", content)

	require.NoError(t, gw.Delete(ctx, "fixed-id", "vtt"))

	_, err = gw.Download(ctx, "fixed-id", "vtt")
	require.ErrorIs(t, err, ErrNotFound)

	err = gw.Delete(ctx, "fixed-id", "vtt")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestBucketGatewayRequiresConfig(t *testing.T) {
	t.Parallel()

	_, err := NewBucketGateway(BucketOptions{BaseURL: "", Token: "secret"})
	require.Error(t, err)

	_, err = NewBucketGateway(BucketOptions{BaseURL: "https://example.supabase.co", Token: ""})
	require.Error(t, err)
}

func TestGofileGatewayUploadAndDelete(t *testing.T) {
	t.Parallel()

	var deletedID string
	mux := http.NewServeMux()
	mux.HandleFunc("/getServer", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"status": "ok", "data": map[string]string{"server": "store1"}})
	})
	mux.HandleFunc("/uploadFile", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		require.Equal(t, "token-1", r.FormValue("token"))
		require.Equal(t, "subtitles_temp", r.FormValue("folderName"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		require.Equal(t, "talk.srt", header.Filename)

		json.NewEncoder(w).Encode(map[string]any{
			"status": "ok",
			"data":   map[string]string{"fileId": "abc123", "downloadPage": "https://gofile.io/d/abc123"},
		})
	})
	mux.HandleFunc("/deleteContent", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		deletedID = r.FormValue("contentId")
		json.NewEncoder(w).Encode(map[string]any{"status": "ok", "data": map[string]string{}})
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	gw, err := NewGofileGateway(GofileOptions{APIBase: server.URL, Token: "token-1"})
	require.NoError(t, err)
	gw.uploadURLFor = func(string) string { return server.URL + "/uploadFile" }

	ctx := context.Background()
	handle, err := gw.Upload(ctx, "1\n00:00:00,000 --> 00:00:01,000\nhi\n\n", "srt", "talk.mp4", nil)
	require.NoError(t, err)
	require.Equal(t, "abc123", handle.FileID)
	require.Equal(t, "https://gofile.io/d/abc123", handle.DownloadURL)

	require.NoError(t, gw.Delete(ctx, "abc123", "srt"))
	require.Equal(t, "abc123", deletedID)
}

func TestGofileGatewayErrorStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"status": "error-auth"})
	}))
	defer server.Close()

	gw, err := NewGofileGateway(GofileOptions{APIBase: server.URL, Token: "bad"})
	require.NoError(t, err)

	err = gw.Delete(context.Background(), "abc", "srt")
	require.Error(t, err)
	require.Contains(t, err.Error(), "error-auth")
}
