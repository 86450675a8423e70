package transcribe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"subtitler/internal/download"
)

const DefaultModel = "base"

type modelFile struct {
	FileName string
	URL      string
	SHA256   string
}

var modelFiles = map[string]modelFile{
	"tiny": {
		FileName: "ggml-tiny.bin",
		URL:      "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-tiny.bin",
		SHA256:   "be07e048e1e599ad46341c8d2a135645097a538221678b7acdd1b1919c6e1b21",
	},
	"base": {
		FileName: "ggml-base.bin",
		URL:      "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-base.bin",
		SHA256:   "60ed5bc3dd14eea856493d334349b405782ddcaf0028d4b5df4088345fba2efe",
	},
	"small": {
		FileName: "ggml-small.bin",
		URL:      "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-small.bin",
		SHA256:   "1be3a9b2063867b937e64e2ec7483364a79917e157fa98c5d94b5c1fffea987b",
	},
	"medium": {
		FileName: "ggml-medium.bin",
		URL:      "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-medium.bin",
		SHA256:   "6c14d5adee5f86394037b4e4e8b59f1673b6cee10e3cf0b11bbdbee79c156208",
	},
	"large-v3": {
		FileName: "ggml-large-v3.bin",
		URL:      "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-large-v3.bin",
		SHA256:   "64d182b440b98d5203c4f9bd541544d84c605196c4f7b845dfa11fb23594d1e2",
	},
}

// ModelPath resolves a catalog model name to its on-disk file below modelDir.
// A name containing a path separator or a .bin suffix is treated as a custom
// model path and returned after a stat check.
func ModelPath(name, modelDir string) (string, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultModel
	}

	if file, ok := modelFiles[name]; ok {
		path := filepath.Join(modelDir, file.FileName)
		_, err := os.Stat(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("stat model path: %w", err)
		}
		return path, errors.Is(err, os.ErrNotExist), nil
	}

	if !strings.ContainsRune(name, os.PathSeparator) && !strings.HasSuffix(strings.ToLower(name), ".bin") {
		names := make([]string, 0, len(modelFiles))
		for known := range modelFiles {
			names = append(names, known)
		}
		sort.Strings(names)
		return "", false, fmt.Errorf("unknown model %q (known models: %s)", name, strings.Join(names, ", "))
	}

	custom := filepath.Clean(name)
	if _, err := os.Stat(custom); err != nil {
		return "", false, fmt.Errorf("custom model path: %w", err)
	}
	return custom, false, nil
}

func (e *LocalEngine) ensureModel(ctx context.Context, name string) (string, error) {
	if err := os.MkdirAll(e.ModelDir, 0o755); err != nil {
		return "", fmt.Errorf("create model directory %s: %w", e.ModelDir, err)
	}

	path, missing, err := ModelPath(name, e.ModelDir)
	if err != nil {
		return "", err
	}
	if !missing {
		return path, nil
	}

	if !e.AutoDownload {
		return "", fmt.Errorf("model %q is missing at %s and auto-download is disabled", name, path)
	}

	file := modelFiles[strings.TrimSpace(nameOrDefault(name))]
	e.log().Info("model not found, downloading", zap.String("model", name), zap.String("destination", path))
	if err := download.DownloadFile(ctx, download.Options{
		URL:            file.URL,
		Destination:    path,
		ExpectedSHA256: file.SHA256,
		NoProgress:     e.NoProgress,
		Logger:         e.log(),
	}); err != nil {
		return "", fmt.Errorf("download model %q: %w", name, err)
	}

	return path, nil
}

func nameOrDefault(name string) string {
	if strings.TrimSpace(name) == "" {
		return DefaultModel
	}
	return name
}
