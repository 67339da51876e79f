package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"scribe/internal/config"
	"scribe/internal/deps"
	"scribe/internal/language"
	"scribe/internal/preflight"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check directories, external tools and backend credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			fmt.Fprintln(out, renderStatusLine("Config", statusInfo, ctx.configPath, colorize))
			fmt.Fprintln(out, renderStatusLine("Backend", statusInfo, backendLabel(cfg), colorize))
			fmt.Fprintln(out, renderStatusLine("Language", statusInfo, language.DisplayName(cfg.Transcription.Language), colorize))

			results := preflight.RunAll(cmd.Context(), cfg, preflight.Options{Network: !offline})
			for _, r := range results {
				kind := statusOK
				switch {
				case r.Passed:
				case r.Optional:
					kind = statusWarn
				default:
					kind = statusError
				}
				fmt.Fprintln(out, renderStatusLine(r.Name, kind, r.Detail, colorize))
			}

			if cfg.Transcription.Backend == config.BackendWhisperX {
				versionCtx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
				defer cancel()
				if version, err := deps.ProbeVersion(versionCtx, cfg.FFmpegBinary(), "-version"); err == nil {
					fmt.Fprintln(out, renderStatusLine("FFmpeg version", statusInfo, version, colorize))
				}
			}

			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d check(s) failed", len(failed))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "Skip the OpenAI endpoint probe")
	return cmd
}

func backendLabel(cfg *config.Config) string {
	if cfg.Transcription.Backend == config.BackendOpenAI {
		return fmt.Sprintf("openai (%s at %s)", cfg.OpenAI.Model, cfg.OpenAI.BaseURL)
	}
	device := "cpu"
	if cfg.Transcription.CUDAEnabled {
		device = "cuda"
	}
	return fmt.Sprintf("whisperx (%s, %s)", cfg.Transcription.Model, device)
}
