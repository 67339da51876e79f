package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"scribe/internal/config"
	"scribe/internal/deps"
	"scribe/internal/transcriber"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckDirectories checks every directory scribe reads from or writes to.
// The quarantine directory is only checked under the quarantine policy.
func CheckDirectories(cfg *config.Config) []Result {
	results := []Result{
		CheckDirectoryAccess("Input directory", cfg.Paths.InputDir),
		CheckDirectoryAccess("Archive directory", cfg.Paths.ArchiveDir),
		CheckDirectoryAccess("Transcript directory", cfg.Paths.TranscriptDir),
		CheckDirectoryAccess("Subtitle directory", cfg.Paths.SubtitleDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}
	if cfg.Workflow.FailurePolicy == config.FailureQuarantine {
		results = append(results, CheckDirectoryAccess("Quarantine directory", cfg.Paths.QuarantineDir))
	}
	return results
}

// CheckSystemDeps evaluates the external programs the configuration runs.
// ffprobe is optional: without it jobs skip the audio stream check.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	var reqs []deps.Requirement
	if cfg.Transcription.Backend == config.BackendWhisperX {
		reqs = append(reqs,
			deps.Requirement{
				Name:        "uvx",
				Command:     cfg.UVXBinary(),
				Description: "Required for WhisperX-driven transcription",
			},
			deps.Requirement{
				Name:        "FFmpeg",
				Command:     cfg.FFmpegBinary(),
				Description: "Used by WhisperX to decode audio and video",
			},
		)
	}
	if cfg.Workflow.ProbeMedia {
		reqs = append(reqs, deps.Requirement{
			Name:        "ffprobe",
			Command:     cfg.FFprobeBinary(),
			Description: "Checks files for an audio stream before transcription",
			Optional:    true,
		})
	}
	if len(reqs) == 0 {
		return nil
	}
	return deps.CheckBinaries(reqs)
}

// CheckHFToken reports whether a Hugging Face token is available for pyannote VAD.
func CheckHFToken(token string) Result {
	const name = "Hugging Face token"
	if strings.TrimSpace(token) == "" {
		return Result{Name: name, Detail: "missing (set transcription.hf_token or HF_TOKEN for pyannote VAD)"}
	}
	return Result{Name: name, Passed: true, Detail: "present"}
}

// CheckOpenAIKey validates the key requirement without contacting the endpoint.
func CheckOpenAIKey(cfg *config.Config) Result {
	const name = "OpenAI endpoint"
	if strings.TrimSpace(cfg.OpenAI.APIKey) == "" {
		if strings.Contains(strings.ToLower(cfg.OpenAI.BaseURL), "api.openai.com") {
			return Result{Name: name, Detail: "API key missing"}
		}
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (no key, local server assumed)", cfg.OpenAI.BaseURL)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (key present)", cfg.OpenAI.BaseURL)}
}

// CheckOpenAI verifies that the endpoint is reachable and the key is valid.
// It uses a 30-second timeout and a single attempt.
func CheckOpenAI(ctx context.Context, cfg *config.Config) Result {
	const name = "OpenAI endpoint"
	if keyCheck := CheckOpenAIKey(cfg); !keyCheck.Passed {
		return keyCheck
	}

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client := transcriber.NewOpenAI(transcriber.OpenAIConfig{
		APIKey:         cfg.OpenAI.APIKey,
		BaseURL:        cfg.OpenAI.BaseURL,
		Model:          cfg.OpenAI.Model,
		TimeoutSeconds: 30,
	}, nil)
	defer client.Close()

	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeNetworkError(err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (reachable, model %s)", cfg.OpenAI.BaseURL, cfg.OpenAI.Model)}
}

func summarizeNetworkError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (endpoint unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (endpoint unreachable)"
	}
	return err.Error()
}
