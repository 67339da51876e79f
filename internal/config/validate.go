package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateTranscription(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if c.Paths.InputDir == "" {
		return errors.New("paths.input_dir must be set")
	}
	if c.Paths.ArchiveDir == "" {
		return errors.New("paths.archive_dir must be set")
	}
	// Archiving into the watched directory would re-trigger the watcher.
	if samePath(c.Paths.InputDir, c.Paths.ArchiveDir) {
		return errors.New("paths.archive_dir must differ from paths.input_dir")
	}
	if c.Workflow.FailurePolicy == FailureQuarantine && samePath(c.Paths.InputDir, c.Paths.QuarantineDir) {
		return errors.New("paths.quarantine_dir must differ from paths.input_dir")
	}
	return nil
}

func (c *Config) validateTranscription() error {
	switch c.Transcription.Backend {
	case BackendWhisperX:
		switch c.Transcription.VADMethod {
		case "silero", "pyannote":
		default:
			return fmt.Errorf("transcription.vad_method: unsupported value %q (use silero or pyannote)", c.Transcription.VADMethod)
		}
	case BackendOpenAI:
		if strings.TrimSpace(c.OpenAI.APIKey) == "" && isOfficialOpenAI(c.OpenAI.BaseURL) {
			return errors.New("openai.api_key is required when transcription.backend is openai. Set OPENAI_API_KEY or point openai.base_url at a local server")
		}
	default:
		return fmt.Errorf("transcription.backend: unsupported value %q (use whisperx or openai)", c.Transcription.Backend)
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.max_workers":   c.Workflow.MaxWorkers,
		"workflow.poll_interval": c.Workflow.PollInterval,
		"workflow.max_attempts":  c.Workflow.MaxAttempts,
	}); err != nil {
		return err
	}
	switch c.Workflow.Watcher {
	case WatcherNative, WatcherPoll:
	default:
		return fmt.Errorf("workflow.watcher: unsupported value %q (use native or poll)", c.Workflow.Watcher)
	}
	switch c.Workflow.FailurePolicy {
	case FailureLeave, FailureRetry, FailureQuarantine:
	default:
		return fmt.Errorf("workflow.failure_policy: unsupported value %q (use leave, retry or quarantine)", c.Workflow.FailurePolicy)
	}
	return nil
}

func (c *Config) validateNotifications() error {
	topic := c.Notifications.NtfyTopic
	if topic == "" {
		return nil
	}
	if !strings.HasPrefix(topic, "http://") && !strings.HasPrefix(topic, "https://") {
		return fmt.Errorf("notifications.ntfy_topic: %q must be a full http(s) URL", topic)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}

func samePath(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return filepath.Clean(a) == filepath.Clean(b)
}

func isOfficialOpenAI(baseURL string) bool {
	return strings.Contains(strings.ToLower(baseURL), "api.openai.com")
}
