package testsupport

import (
	"path/filepath"
	"testing"

	"scribe/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options. The directories
// themselves are not created; call cfg.EnsureDirectories when a test needs them.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.InputDir = filepath.Join(base, "input")
	cfgVal.Paths.ArchiveDir = filepath.Join(base, "archive")
	cfgVal.Paths.TranscriptDir = filepath.Join(base, "output", "txt")
	cfgVal.Paths.SubtitleDir = filepath.Join(base, "output", "srt")
	cfgVal.Paths.QuarantineDir = filepath.Join(base, "quarantine")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Workflow.MaxWorkers = 2
	cfgVal.Workflow.RetryDelaySeconds = 0
	cfgVal.Workflow.ProbeMedia = false

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithWorkers overrides the worker count.
func WithWorkers(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Workflow.MaxWorkers = n
	}
}

// WithFailurePolicy sets the failure policy and attempt limit.
func WithFailurePolicy(policy string, maxAttempts int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Workflow.FailurePolicy = policy
		b.cfg.Workflow.MaxAttempts = maxAttempts
	}
}

// WithoutTranscript disables the plain-text transcript output.
func WithoutTranscript() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Transcription.WriteTranscript = false
	}
}

// WithDirectories creates every configured directory before the test runs.
func WithDirectories() ConfigOption {
	return func(b *configBuilder) {
		if err := b.cfg.EnsureDirectories(); err != nil {
			b.t.Fatalf("ensure directories: %v", err)
		}
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.InputDir)
}
