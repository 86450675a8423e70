package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// GofileGateway stores subtitle files on gofile.io. The service picks an
// upload server per request; deletion is keyed by content id alone, the
// format argument is accepted for interface parity and ignored.
type GofileGateway struct {
	apiBase string
	token   string
	folder  string
	client  *http.Client
	logger  *zap.Logger

	// uploadURLFor is swapped in tests to avoid the live upload hosts.
	uploadURLFor func(server string) string
}

type GofileOptions struct {
	APIBase string
	Token   string
	// Folder names the remote folder uploads are grouped under.
	Folder string
	Client *http.Client
	Logger *zap.Logger
}

const defaultGofileAPI = "https://api.gofile.io"

func NewGofileGateway(opts GofileOptions) (*GofileGateway, error) {
	if strings.TrimSpace(opts.Token) == "" {
		return nil, fmt.Errorf("gofile storage requires an account token")
	}

	apiBase := strings.TrimRight(strings.TrimSpace(opts.APIBase), "/")
	if apiBase == "" {
		apiBase = defaultGofileAPI
	}

	folder := strings.TrimSpace(opts.Folder)
	if folder == "" {
		folder = "subtitles_temp"
	}

	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &GofileGateway{
		apiBase: apiBase,
		token:   opts.Token,
		folder:  folder,
		client:  client,
		logger:  logger,
		uploadURLFor: func(server string) string {
			return fmt.Sprintf("https://%s.gofile.io/uploadFile", server)
		},
	}, nil
}

type gofileEnvelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func (g *GofileGateway) Upload(ctx context.Context, content, formatExt, originalName string, meta Metadata) (Handle, error) {
	server, err := g.bestServer(ctx)
	if err != nil {
		return Handle{}, err
	}

	baseName := originalName
	if idx := strings.LastIndex(baseName, "."); idx > 0 {
		baseName = baseName[:idx]
	}
	uploadName := baseName + "." + formatExt

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", uploadName)
	if err != nil {
		return Handle{}, fmt.Errorf("build upload form: %w", err)
	}
	if _, err := io.WriteString(part, content); err != nil {
		return Handle{}, fmt.Errorf("build upload form: %w", err)
	}

	description := ""
	if len(meta) > 0 {
		encoded, err := json.Marshal(meta)
		if err != nil {
			return Handle{}, fmt.Errorf("encode upload metadata: %w", err)
		}
		description = string(encoded)
	}
	fields := map[string]string{
		"token":       g.token,
		"folderId":    "createFolder",
		"folderName":  g.folder,
		"description": description,
	}
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return Handle{}, fmt.Errorf("build upload form: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return Handle{}, fmt.Errorf("build upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.uploadURLFor(server), &body)
	if err != nil {
		return Handle{}, fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var data struct {
		FileID       string `json:"fileId"`
		DownloadPage string `json:"downloadPage"`
	}
	if err := g.do(req, &data); err != nil {
		return Handle{}, fmt.Errorf("gofile upload: %w", err)
	}

	g.logger.Info("subtitle file uploaded", zap.String("file_id", data.FileID), zap.String("backend", "gofile"))
	return Handle{FileID: data.FileID, DownloadURL: data.DownloadPage}, nil
}

// Download is not offered by the gofile API for raw content; stored files are
// reachable through their download page only.
func (g *GofileGateway) Download(ctx context.Context, fileID, formatExt string) (string, error) {
	return "", fmt.Errorf("gofile backend cannot fetch raw content for %s: %w", fileID, ErrNotFound)
}

func (g *GofileGateway) Delete(ctx context.Context, fileID, formatExt string) error {
	form := url.Values{}
	form.Set("token", g.token)
	form.Set("contentId", fileID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.apiBase+"/deleteContent", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create delete request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	if err := g.do(req, nil); err != nil {
		return fmt.Errorf("gofile delete: %w", err)
	}

	g.logger.Info("subtitle file deleted", zap.String("file_id", fileID), zap.String("backend", "gofile"))
	return nil
}

func (g *GofileGateway) bestServer(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.apiBase+"/getServer", nil)
	if err != nil {
		return "", fmt.Errorf("create server request: %w", err)
	}

	var data struct {
		Server string `json:"server"`
	}
	if err := g.do(req, &data); err != nil {
		return "", fmt.Errorf("gofile server selection: %w", err)
	}
	if data.Server == "" {
		return "", fmt.Errorf("gofile server selection: empty server in response")
	}
	return data.Server, nil
}

func (g *GofileGateway) do(req *http.Request, out any) error {
	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, readBody(resp.Body))
	}

	var envelope gofileEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if envelope.Status != "ok" {
		return fmt.Errorf("api status %q", envelope.Status)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("decode response data: %w", err)
		}
	}
	return nil
}
