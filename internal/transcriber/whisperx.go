package transcriber

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync/atomic"

	"scribe/internal/language"
	"scribe/internal/logging"
)

// WhisperX command-line settings.
const (
	CUDAIndexURL      = "https://download.pytorch.org/whl/cu128"
	PypiIndexURL      = "https://pypi.org/simple"
	DefaultModel      = "base"
	BatchSize         = "4"
	SegmentResolution = "sentence"
	OutputFormat      = "json"
	CPUDevice         = "cpu"
	CUDADevice        = "cuda"
	CPUComputeType    = "float32"
	VADMethodPyannote = "pyannote"
	VADMethodSilero   = "silero"
)

// CommandRunner executes an external command. Tests substitute it to avoid launching WhisperX.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// WhisperXConfig captures runtime settings for the WhisperX backend.
type WhisperXConfig struct {
	// Binary launches WhisperX; defaults to uvx.
	Binary      string
	Model       string
	Language    string
	CUDAEnabled bool
	VADMethod   string
	HFToken     string
}

// WhisperX runs `uvx whisperx` once per file and reads its JSON output.
// The model weights are cached by uv/huggingface between calls, so the
// process-level handle is the configuration plus that cache.
type WhisperX struct {
	cfg    WhisperXConfig
	runner CommandRunner
	logger *slog.Logger
	closed atomic.Bool
}

// NewWhisperX creates a WhisperX backend with the given configuration.
func NewWhisperX(cfg WhisperXConfig, logger *slog.Logger) *WhisperX {
	if cfg.Binary == "" {
		cfg.Binary = "uvx"
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.VADMethod == "" {
		cfg.VADMethod = VADMethodSilero
	}
	w := &WhisperX{cfg: cfg, logger: logger}
	if w.logger == nil {
		w.logger = logging.NewNop()
	}
	w.runner = w.exec
	return w
}

// WithCommandRunner sets a custom command runner (for testing).
func (w *WhisperX) WithCommandRunner(runner CommandRunner) {
	if runner != nil {
		w.runner = runner
	}
}

// Name identifies the backend and model for logs and the journal.
func (w *WhisperX) Name() string {
	return "whisperx/" + w.cfg.Model
}

// Close marks the backend closed. Later calls to Transcribe fail with ErrClosed.
func (w *WhisperX) Close() error {
	w.closed.Store(true)
	return nil
}

// Transcribe runs WhisperX on path inside a private output directory.
func (w *WhisperX) Transcribe(ctx context.Context, path string) (Result, error) {
	if w.closed.Load() {
		return Result{}, ErrClosed
	}
	if strings.TrimSpace(path) == "" {
		return Result{}, fmt.Errorf("whisperx: source path required")
	}

	outputDir, err := os.MkdirTemp("", "scribe-whisperx-")
	if err != nil {
		return Result{}, fmt.Errorf("whisperx: create output dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(outputDir); err != nil {
			w.logger.Debug("whisperx output cleanup failed", logging.String("dir", outputDir), logging.Error(err))
		}
	}()

	args := w.buildArgs(path, outputDir)
	w.logger.Debug("launching whisperx",
		logging.String(logging.FieldFile, path),
		logging.String("command", w.cfg.Binary+" "+strings.Join(redactArgs(args), " ")),
	)
	if err := w.runner(ctx, w.cfg.Binary, args...); err != nil {
		return Result{}, fmt.Errorf("whisperx: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	payload, err := loadWhisperXPayload(filepath.Join(outputDir, base+".json"))
	if err != nil {
		return Result{}, fmt.Errorf("whisperx: %w", err)
	}

	segments := make([]Segment, 0, len(payload.Segments))
	for _, seg := range payload.Segments {
		segments = append(segments, Segment{
			StartMS: secondsToMS(seg.Start),
			EndMS:   secondsToMS(seg.End),
			Text:    strings.TrimSpace(seg.Text),
		})
	}
	return Result{
		Text:     joinSegmentText(segments),
		Segments: segments,
		Language: payload.Language,
	}, nil
}

func (w *WhisperX) exec(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec

	// Torch 2.6 changed torch.load default to weights_only=true, breaking WhisperX/pyannote.
	if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
		cmd.Env = append(os.Environ(), "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
	}
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, tail(strings.TrimSpace(string(output)), 512))
	}
	return nil
}

func (w *WhisperX) buildArgs(source, outputDir string) []string {
	args := make([]string, 0, 24)
	if w.cfg.CUDAEnabled {
		args = append(args,
			"--index-url", CUDAIndexURL,
			"--extra-index-url", PypiIndexURL,
		)
	} else {
		args = append(args, "--index-url", PypiIndexURL)
	}

	args = append(args,
		"whisperx",
		source,
		"--model", w.cfg.Model,
		"--batch_size", BatchSize,
		"--output_dir", outputDir,
		"--output_format", OutputFormat,
		"--segment_resolution", SegmentResolution,
		"--vad_method", w.cfg.VADMethod,
	)
	if w.cfg.VADMethod == VADMethodPyannote && w.cfg.HFToken != "" {
		args = append(args, "--hf_token", w.cfg.HFToken)
	}
	if lang := language.ToISO2(w.cfg.Language); lang != "" {
		args = append(args, "--language", lang)
	}
	if w.cfg.CUDAEnabled {
		args = append(args, "--device", CUDADevice)
	} else {
		args = append(args, "--device", CPUDevice, "--compute_type", CPUComputeType)
	}
	return args
}

type whisperXSegment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type whisperXPayload struct {
	Segments []whisperXSegment `json:"segments"`
	Language string            `json:"language"`
}

func loadWhisperXPayload(path string) (whisperXPayload, error) {
	var payload whisperXPayload
	data, err := os.ReadFile(path)
	if err != nil {
		return payload, fmt.Errorf("read output: %w", err)
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return payload, fmt.Errorf("parse whisperx json: %w", err)
	}
	return payload, nil
}

func redactArgs(args []string) []string {
	out := append([]string(nil), args...)
	for i := 0; i < len(out)-1; i++ {
		if out[i] == "--hf_token" {
			out[i+1] = "***"
		}
	}
	return out
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
