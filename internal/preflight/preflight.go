package preflight

import (
	"context"

	"scribe/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
	// Optional failures degrade a feature without blocking processing.
	Optional bool `json:"optional,omitempty"`
}

// Options selects the slower checks.
type Options struct {
	// Network enables the OpenAI endpoint probe.
	Network bool
}

// RunAll executes every check that applies to cfg.
func RunAll(ctx context.Context, cfg *config.Config, opts Options) []Result {
	if cfg == nil {
		return nil
	}

	results := CheckDirectories(cfg)

	for _, status := range CheckSystemDeps(cfg) {
		r := Result{Name: status.Name, Passed: status.Available, Optional: status.Optional}
		if status.Available {
			r.Detail = status.Path
		} else {
			r.Detail = status.Detail
		}
		results = append(results, r)
	}

	switch cfg.Transcription.Backend {
	case config.BackendWhisperX:
		if cfg.Transcription.VADMethod == "pyannote" {
			results = append(results, CheckHFToken(cfg.Transcription.HFToken))
		}
	case config.BackendOpenAI:
		if opts.Network {
			results = append(results, CheckOpenAI(ctx, cfg))
		} else {
			results = append(results, CheckOpenAIKey(cfg))
		}
	}
	return results
}

// Failed returns the non-optional results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed && !r.Optional {
			failed = append(failed, r)
		}
	}
	return failed
}
