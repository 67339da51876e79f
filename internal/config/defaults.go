package config

const (
	defaultInputDir            = "~/scribe/input"
	defaultArchiveDir          = "~/scribe/archive"
	defaultTranscriptDir       = "~/scribe/output/txt"
	defaultSubtitleDir         = "~/scribe/output/srt"
	defaultQuarantineDir       = "~/scribe/quarantine"
	defaultLogDir              = "~/.local/share/scribe/logs"
	defaultBackend             = BackendWhisperX
	defaultWhisperXModel       = "base"
	defaultVADMethod           = "silero"
	defaultOpenAIBaseURL       = "https://api.openai.com/v1"
	defaultOpenAIModel         = "whisper-1"
	defaultOpenAITimeout       = 300
	defaultMaxWorkers          = 10
	defaultWatcher             = WatcherNative
	defaultPollInterval        = 1
	defaultFailurePolicy       = FailureLeave
	defaultMaxAttempts         = 3
	defaultRetryDelaySeconds   = 30
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultLogRetentionDays    = 30
	defaultJournalEnabled      = true
	defaultWriteTranscript     = true
	defaultTranscriptionSerial = false
	defaultProbeMedia          = true
	defaultNtfyTimeout         = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			InputDir:      defaultInputDir,
			ArchiveDir:    defaultArchiveDir,
			TranscriptDir: defaultTranscriptDir,
			SubtitleDir:   defaultSubtitleDir,
			QuarantineDir: defaultQuarantineDir,
			LogDir:        defaultLogDir,
		},
		Transcription: Transcription{
			Backend:         defaultBackend,
			Model:           defaultWhisperXModel,
			VADMethod:       defaultVADMethod,
			WriteTranscript: defaultWriteTranscript,
			Serialize:       defaultTranscriptionSerial,
		},
		OpenAI: OpenAI{
			BaseURL:        defaultOpenAIBaseURL,
			Model:          defaultOpenAIModel,
			TimeoutSeconds: defaultOpenAITimeout,
		},
		Workflow: Workflow{
			MaxWorkers:        defaultMaxWorkers,
			Watcher:           defaultWatcher,
			PollInterval:      defaultPollInterval,
			FailurePolicy:     defaultFailurePolicy,
			MaxAttempts:       defaultMaxAttempts,
			RetryDelaySeconds: defaultRetryDelaySeconds,
			ProbeMedia:        defaultProbeMedia,
		},
		Journal: Journal{
			Enabled: defaultJournalEnabled,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyTimeout,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
