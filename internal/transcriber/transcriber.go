package transcriber

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"scribe/internal/config"
	"scribe/internal/logging"
	"scribe/internal/subtitles"
)

// ErrClosed is returned by Transcribe after Close.
var ErrClosed = errors.New("transcriber closed")

// Segment is a timed span of recognized text.
type Segment = subtitles.Segment

// Result is the model output for one file. Segments are in model order.
type Result struct {
	Text     string
	Segments []Segment
	// Language is the language the model reports, when it reports one.
	Language string
}

// Transcriber converts a media file into text and timed segments.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (Result, error)
	Name() string
	Close() error
}

// New builds the backend selected by cfg.Transcription.Backend.
func New(cfg *config.Config, logger *slog.Logger) (Transcriber, error) {
	if cfg == nil {
		return nil, errors.New("transcriber: config is required")
	}
	logger = logging.NewComponentLogger(logger, "transcriber")

	var backend Transcriber
	switch cfg.Transcription.Backend {
	case config.BackendWhisperX:
		backend = NewWhisperX(WhisperXConfig{
			Binary:      cfg.UVXBinary(),
			Model:       cfg.Transcription.Model,
			Language:    cfg.Transcription.Language,
			CUDAEnabled: cfg.Transcription.CUDAEnabled,
			VADMethod:   cfg.Transcription.VADMethod,
			HFToken:     cfg.Transcription.HFToken,
		}, logger)
	case config.BackendOpenAI:
		backend = NewOpenAI(OpenAIConfig{
			APIKey:         cfg.OpenAI.APIKey,
			BaseURL:        cfg.OpenAI.BaseURL,
			Model:          cfg.OpenAI.Model,
			Language:       cfg.Transcription.Language,
			TimeoutSeconds: cfg.OpenAI.TimeoutSeconds,
		}, logger)
	default:
		return nil, fmt.Errorf("transcriber: unsupported backend %q", cfg.Transcription.Backend)
	}

	if cfg.Transcription.Serialize {
		backend = Serialize(backend)
	}
	logger.Info("transcriber ready",
		logging.String("backend", backend.Name()),
		logging.Bool("serialized", cfg.Transcription.Serialize),
		logging.String(logging.FieldEventType, "transcriber_ready"),
	)
	return backend, nil
}

// secondsToMS converts model seconds to whole milliseconds.
func secondsToMS(sec float64) int64 {
	if sec <= 0 || math.IsNaN(sec) {
		return 0
	}
	return int64(math.Round(sec * 1000))
}

// joinSegmentText builds a transcript from segment texts when the model
// reports no full text.
func joinSegmentText(segments []Segment) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}
