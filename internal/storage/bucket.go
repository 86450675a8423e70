package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BucketGateway talks to a Supabase-style object storage REST API. Objects
// live under one bucket and are named <file id>.<format extension>.
type BucketGateway struct {
	baseURL string
	bucket  string
	token   string
	client  *http.Client
	logger  *zap.Logger
	newID   func() string
}

type BucketOptions struct {
	BaseURL string
	Bucket  string
	Token   string
	Client  *http.Client
	Logger  *zap.Logger
}

const defaultBucket = "subtitle_files"

func NewBucketGateway(opts BucketOptions) (*BucketGateway, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("bucket storage requires a base URL")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("invalid storage base URL: %w", err)
	}
	if strings.TrimSpace(opts.Token) == "" {
		return nil, fmt.Errorf("bucket storage requires an access token")
	}

	bucket := strings.TrimSpace(opts.Bucket)
	if bucket == "" {
		bucket = defaultBucket
	}

	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &BucketGateway{
		baseURL: base,
		bucket:  bucket,
		token:   opts.Token,
		client:  client,
		logger:  logger,
		newID:   func() string { return uuid.NewString() },
	}, nil
}

func (g *BucketGateway) Upload(ctx context.Context, content, formatExt, originalName string, meta Metadata) (Handle, error) {
	fileID := g.newID()
	objectName := fileID + "." + formatExt

	fields := Metadata{
		"original_filename": originalName,
		"format":            formatExt,
	}
	for k, v := range meta {
		fields[k] = v
	}
	metaJSON, err := json.Marshal(fields)
	if err != nil {
		return Handle{}, fmt.Errorf("encode object metadata: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.objectURL(objectName), strings.NewReader(content))
	if err != nil {
		return Handle{}, fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.token)
	req.Header.Set("Content-Type", "text/"+formatExt)
	req.Header.Set("X-Upsert", "true")
	req.Header.Set("X-Metadata", string(metaJSON))

	resp, err := g.client.Do(req)
	if err != nil {
		return Handle{}, fmt.Errorf("upload object: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return Handle{}, fmt.Errorf("upload object: unexpected status %d: %s", resp.StatusCode, readBody(resp.Body))
	}

	g.logger.Info("subtitle file uploaded", zap.String("file_id", fileID), zap.String("bucket", g.bucket))
	return Handle{
		FileID:      fileID,
		DownloadURL: fmt.Sprintf("%s/storage/v1/object/public/%s/%s", g.baseURL, g.bucket, objectName),
	}, nil
}

func (g *BucketGateway) Download(ctx context.Context, fileID, formatExt string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.objectURL(fileID+"."+formatExt), nil)
	if err != nil {
		return "", fmt.Errorf("create download request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.token)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download object: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return "", ErrNotFound
	default:
		return "", fmt.Errorf("download object: unexpected status %d: %s", resp.StatusCode, readBody(resp.Body))
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read object body: %w", err)
	}
	return string(content), nil
}

func (g *BucketGateway) Delete(ctx context.Context, fileID, formatExt string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, g.objectURL(fileID+"."+formatExt), nil)
	if err != nil {
		return fmt.Errorf("create delete request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.token)

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return ErrNotFound
	default:
		return fmt.Errorf("delete object: unexpected status %d: %s", resp.StatusCode, readBody(resp.Body))
	}
}

func (g *BucketGateway) objectURL(objectName string) string {
	return fmt.Sprintf("%s/storage/v1/object/%s/%s", g.baseURL, g.bucket, objectName)
}

func readBody(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, 2048))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(body))
}
