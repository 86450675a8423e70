package transcribe

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIEngine talks to an OpenAI-compatible transcription API. The verbose
// JSON response format is requested so the result carries timed segments, not
// just the flat transcript.
type OpenAIEngine struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

type OpenAIOptions struct {
	APIKey  string
	BaseURL string
	// Model overrides the per-request model name; hosted endpoints usually
	// accept only "whisper-1" regardless of the catalog choice.
	Model  string
	Logger *zap.Logger
}

func NewOpenAIEngine(opts OpenAIOptions) (*OpenAIEngine, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("openai engine requires an API key")
	}

	cfg := openai.DefaultConfig(opts.APIKey)
	if strings.TrimSpace(opts.BaseURL) != "" {
		cfg.BaseURL = opts.BaseURL
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = openai.Whisper1
	}

	return &OpenAIEngine{client: openai.NewClientWithConfig(cfg), model: model, logger: logger}, nil
}

func (e *OpenAIEngine) Transcribe(ctx context.Context, req Request) (Result, error) {
	audioReq := openai.AudioRequest{
		Model:    e.model,
		FilePath: req.AudioPath,
		Format:   openai.AudioResponseFormatVerboseJSON,
		Language: SanitizeLanguage(req.Language),
	}

	e.logger.Info("submitting audio to transcription API",
		zap.String("audio", req.AudioPath),
		zap.String("model", e.model),
		zap.String("task", string(req.Task)),
	)

	var resp openai.AudioResponse
	var err error
	if req.Task == TaskTranslate {
		resp, err = e.client.CreateTranslation(ctx, audioReq)
	} else {
		resp, err = e.client.CreateTranscription(ctx, audioReq)
	}
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrTranscription, err)
	}

	result := Result{
		Text:     strings.TrimSpace(resp.Text),
		Language: resp.Language,
		Segments: make([]Segment, 0, len(resp.Segments)),
	}
	for _, seg := range resp.Segments {
		result.Segments = append(result.Segments, Segment{
			Start: seg.Start,
			End:   seg.End,
			Text:  seg.Text,
		})
	}

	return result, nil
}
