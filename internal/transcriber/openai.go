package transcriber

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"scribe/internal/logging"
)

// OpenAIConfig holds configuration for OpenAI-compatible transcription endpoints.
type OpenAIConfig struct {
	APIKey         string
	BaseURL        string // default: "https://api.openai.com/v1"
	Model          string // default: "whisper-1"
	Language       string
	TimeoutSeconds int
}

// OpenAI uploads each file to an /audio/transcriptions endpoint and requests
// verbose JSON so segment timings are returned.
type OpenAI struct {
	cfg        OpenAIConfig
	client     *openai.Client
	httpClient *http.Client
	logger     *slog.Logger
	closed     atomic.Bool
}

// NewOpenAI creates an OpenAI backend with defaults applied.
func NewOpenAI(cfg OpenAIConfig, logger *slog.Logger) *OpenAI {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = openai.Whisper1
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 300
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	httpClient := &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.BaseURL
	clientCfg.HTTPClient = httpClient

	return &OpenAI{
		cfg:        cfg,
		client:     openai.NewClientWithConfig(clientCfg),
		httpClient: httpClient,
		logger:     logger,
	}
}

// Name identifies the backend and model for logs and the journal.
func (o *OpenAI) Name() string { return "openai/" + o.cfg.Model }

// Close releases pooled connections. Later calls to Transcribe fail with ErrClosed.
func (o *OpenAI) Close() error {
	o.closed.Store(true)
	o.httpClient.CloseIdleConnections()
	return nil
}

// Transcribe uploads path and converts the verbose JSON response.
func (o *OpenAI) Transcribe(ctx context.Context, path string) (Result, error) {
	if o.closed.Load() {
		return Result{}, ErrClosed
	}
	req := openai.AudioRequest{
		Model:    o.cfg.Model,
		FilePath: path,
		Format:   openai.AudioResponseFormatVerboseJSON,
		Language: o.cfg.Language,
	}

	started := time.Now()
	resp, err := o.client.CreateTranscription(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("openai transcription: %w", err)
	}
	o.logger.Debug("openai transcription returned",
		logging.String(logging.FieldFile, path),
		logging.Int("segments", len(resp.Segments)),
		logging.Duration("latency", time.Since(started)),
	)

	segments := make([]Segment, 0, len(resp.Segments))
	for _, seg := range resp.Segments {
		segments = append(segments, Segment{
			StartMS: secondsToMS(seg.Start),
			EndMS:   secondsToMS(seg.End),
			Text:    strings.TrimSpace(seg.Text),
		})
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		text = joinSegmentText(segments)
	}
	return Result{Text: text, Segments: segments, Language: resp.Language}, nil
}

// HealthCheck lists models to confirm the endpoint is reachable and the key is accepted.
func (o *OpenAI) HealthCheck(ctx context.Context) error {
	models, err := o.client.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("openai list models: %w", err)
	}
	for _, model := range models.Models {
		if model.ID == o.cfg.Model {
			return nil
		}
	}
	return fmt.Errorf("model %q not listed by %s", o.cfg.Model, o.cfg.BaseURL)
}
