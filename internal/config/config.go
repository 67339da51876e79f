package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Transcription backends.
const (
	BackendWhisperX = "whisperx"
	BackendOpenAI   = "openai"
)

// Watcher implementations.
const (
	WatcherNative = "native"
	WatcherPoll   = "poll"
)

// Failure policies applied to a source file whose job failed.
const (
	FailureLeave      = "leave"
	FailureRetry      = "retry"
	FailureQuarantine = "quarantine"
)

// Paths contains directory configuration.
type Paths struct {
	InputDir      string `toml:"input_dir"`
	ArchiveDir    string `toml:"archive_dir"`
	TranscriptDir string `toml:"transcript_dir"`
	SubtitleDir   string `toml:"subtitle_dir"`
	QuarantineDir string `toml:"quarantine_dir"`
	LogDir        string `toml:"log_dir"`
}

// Transcription contains settings for the speech-to-text collaborator.
type Transcription struct {
	// Backend selects the model collaborator ("whisperx" or "openai").
	Backend string `toml:"backend"`
	// Model is the whisper model variant (e.g. "base", "large-v3").
	Model string `toml:"model"`
	// Language is an optional language hint; empty lets the model detect it.
	Language string `toml:"language"`
	// CUDAEnabled selects the GPU device for the whisperx backend.
	CUDAEnabled bool   `toml:"cuda_enabled"`
	VADMethod   string `toml:"vad_method"`
	HFToken     string `toml:"hf_token"`
	// WriteTranscript controls whether the plain-text transcript is written.
	WriteTranscript bool `toml:"write_transcript"`
	// Serialize allows at most one inference at a time across all workers.
	Serialize bool `toml:"serialize"`
}

// OpenAI contains configuration for OpenAI-compatible transcription endpoints.
type OpenAI struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Workflow contains configuration for the watcher, dispatcher and failure handling.
type Workflow struct {
	MaxWorkers      int    `toml:"max_workers"`
	Watcher         string `toml:"watcher"`
	PollInterval    int    `toml:"poll_interval"`
	Recursive       bool   `toml:"recursive"`
	ProcessExisting bool   `toml:"process_existing"`
	// SettleSeconds waits for a file's size to stop changing before it is transcribed.
	SettleSeconds int `toml:"settle_seconds"`
	// ProbeMedia rejects files without an audio stream using ffprobe, when installed.
	ProbeMedia        bool   `toml:"probe_media"`
	FailurePolicy     string `toml:"failure_policy"`
	MaxAttempts       int    `toml:"max_attempts"`
	RetryDelaySeconds int    `toml:"retry_delay_seconds"`
}

// Notifications configures ntfy alerts.
type Notifications struct {
	// NtfyTopic is the full topic URL; empty disables notifications.
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	// OnSuccess also announces every completed file, not only failures and run summaries.
	OnSuccess bool `toml:"on_success"`
}

// Journal contains configuration for the job outcome journal.
type Journal struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"` // Default: <log_dir>/journal.db
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for scribe.
//
// Configuration sections by subsystem:
//   - Paths: input, archive, output and log directories
//   - Transcription: model backend, variant, device and transcript toggle
//   - OpenAI: OpenAI-compatible endpoint settings for the openai backend
//   - Workflow: worker count, watcher selection and failure policy
//   - Journal: SQLite outcome journal
//   - Notifications: ntfy alerts for failures and run summaries
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Transcription Transcription `toml:"transcription"`
	OpenAI        OpenAI        `toml:"openai"`
	Workflow      Workflow      `toml:"workflow"`
	Journal       Journal       `toml:"journal"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/scribe/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.Finalize(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// Finalize normalizes and validates the configuration. Callers that modify a
// loaded config (for example from command-line flags) run it again.
func (c *Config) Finalize() error {
	if err := c.normalize(); err != nil {
		return err
	}
	return c.Validate()
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("scribe.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the input, archive, output and log directories.
// The quarantine directory is only created when the quarantine policy is active.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Paths.InputDir,
		c.Paths.ArchiveDir,
		c.Paths.TranscriptDir,
		c.Paths.SubtitleDir,
		c.Paths.LogDir,
	}
	if c.Workflow.FailurePolicy == FailureQuarantine {
		dirs = append(dirs, c.Paths.QuarantineDir)
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// ManagedDirs lists the directories scribe writes into. Walks of the input
// tree skip them so outputs nested under input_dir are never picked up.
func (c *Config) ManagedDirs() []string {
	return []string{
		c.Paths.ArchiveDir,
		c.Paths.TranscriptDir,
		c.Paths.SubtitleDir,
		c.Paths.QuarantineDir,
		c.Paths.LogDir,
	}
}

// JournalPath returns the location of the SQLite outcome journal.
func (c *Config) JournalPath() string {
	if strings.TrimSpace(c.Journal.Path) != "" {
		return c.Journal.Path
	}
	return filepath.Join(c.Paths.LogDir, "journal.db")
}

// LockPath returns the single-instance lock file used by watch mode.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.LogDir, "scribe.lock")
}

// UVXBinary returns the executable used to launch WhisperX.
func (c *Config) UVXBinary() string {
	return "uvx"
}

// FFprobeBinary returns the ffprobe executable used for media probing.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

// FFmpegBinary returns the ffmpeg executable WhisperX uses to decode media.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Marshal renders the configuration as TOML.
func (c *Config) Marshal() ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}
