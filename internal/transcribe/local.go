package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"
)

// LocalEngine shells out to a whisper-cli binary (whisper.cpp). The engine
// writes its JSON report next to a temporary output base and the report is
// parsed into a Result.
type LocalEngine struct {
	Executable string
	ModelDir   string
	// AutoDownload fetches a missing model file before the first use.
	AutoDownload bool
	NoProgress   bool
	Logger       *zap.Logger
}

type LocalOptions struct {
	Executable   string
	ModelDir     string
	AutoDownload bool
	NoProgress   bool
	Logger       *zap.Logger
}

func NewLocalEngine(opts LocalOptions) (*LocalEngine, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	executable := strings.TrimSpace(opts.Executable)
	if executable == "" {
		executable = os.Getenv("SUBTITLER_WHISPER_PATH")
	}
	if executable == "" {
		found, err := exec.LookPath("whisper-cli")
		if err != nil {
			return nil, fmt.Errorf("whisper-cli not found in PATH; install whisper.cpp or set engine.executable")
		}
		executable = found
	}
	if err := ensureExecutable(executable); err != nil {
		return nil, fmt.Errorf("whisper-cli is not executable: %w", err)
	}

	modelDir := strings.TrimSpace(opts.ModelDir)
	if modelDir == "" {
		return nil, errors.New("model directory is required for the local engine")
	}

	return &LocalEngine{
		Executable:   executable,
		ModelDir:     modelDir,
		AutoDownload: opts.AutoDownload,
		NoProgress:   opts.NoProgress,
		Logger:       logger,
	}, nil
}

func (e *LocalEngine) Transcribe(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.AudioPath) == "" {
		return Result{}, fmt.Errorf("%w: audio path is required", ErrTranscription)
	}

	model, err := e.ensureModel(ctx, req.Model)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrTranscription, err)
	}

	outBase := filepath.Join(os.TempDir(), fmt.Sprintf("subtitler-%d", time.Now().UnixNano()))
	jsonOut := outBase + ".json"
	defer os.Remove(jsonOut)

	args := []string{"-m", model, "-f", req.AudioPath, "-oj", "-of", outBase}
	if lang := SanitizeLanguage(req.Language); lang != "" {
		args = append(args, "-l", lang)
	}
	if req.Task == TaskTranslate {
		args = append(args, "-tr")
	}

	cmd := exec.CommandContext(ctx, e.Executable, args...)
	var stderr bytes.Buffer
	cmd.Stdout = &bytes.Buffer{}
	cmd.Stderr = &stderr

	e.log().Debug("running whisper-cli", zap.String("engine", e.Executable), zap.Strings("args", args))
	if err := cmd.Run(); err != nil {
		errText := strings.TrimSpace(stderr.String())
		if errText != "" {
			return Result{}, fmt.Errorf("%w: whisper-cli: %v (%s)", ErrTranscription, err, errText)
		}
		return Result{}, fmt.Errorf("%w: whisper-cli: %v", ErrTranscription, err)
	}

	report, err := os.ReadFile(jsonOut)
	if err != nil {
		return Result{}, fmt.Errorf("%w: read whisper-cli report: %v", ErrTranscription, err)
	}

	result, err := parseWhisperReport(report)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrTranscription, err)
	}
	return result, nil
}

// whisperReport mirrors the JSON file whisper-cli emits with -oj. Offsets are
// milliseconds from the start of the audio.
type whisperReport struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

func parseWhisperReport(data []byte) (Result, error) {
	var report whisperReport
	if err := json.Unmarshal(data, &report); err != nil {
		return Result{}, fmt.Errorf("parse whisper-cli report: %w", err)
	}

	result := Result{
		Language: report.Result.Language,
		Segments: make([]Segment, 0, len(report.Transcription)),
	}

	var full strings.Builder
	for _, entry := range report.Transcription {
		result.Segments = append(result.Segments, Segment{
			Start: float64(entry.Offsets.From) / 1000.0,
			End:   float64(entry.Offsets.To) / 1000.0,
			Text:  entry.Text,
		})
		full.WriteString(entry.Text)
	}
	result.Text = strings.TrimSpace(full.String())

	return result, nil
}

func (e *LocalEngine) log() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

func ensureExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	if runtime.GOOS != "windows" && info.Mode()&0o111 == 0 {
		return fmt.Errorf("%s is not executable", path)
	}
	return nil
}
