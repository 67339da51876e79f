package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"scribe/internal/config"
	"scribe/internal/daemon"
	"scribe/internal/daemonrun"
	"scribe/internal/job"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var processExisting bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the input directory and transcribe new files until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("process-existing") {
				cfg.Workflow.ProcessExisting = processExisting
			}
			summary, err := daemonrun.Watch(cmd.Context(), cfg, daemonrun.Options{NewModel: newTranscriber})
			if err != nil {
				if errors.Is(err, daemon.ErrAlreadyRunning) {
					return fmt.Errorf("%w (lock: %s)", err, cfg.LockPath())
				}
				return err
			}
			printSummary(cmd.OutOrStdout(), summary)
			return nil
		},
	}
	cmd.Flags().BoolVar(&processExisting, "process-existing", false, "Queue files already present in the input directory")
	return cmd
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var outputDir string

	cmd := &cobra.Command{
		Use:   "run [DIR]",
		Short: "Transcribe every media file under DIR once, then exit",
		Long: "run walks DIR (default: paths.input_dir) recursively and transcribes each .mp4, .mp3 and .wav file.\n" +
			"With --output, transcripts, subtitles and archived sources are written under one directory mirroring the input tree.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig(cmd)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				cfg, err = withInputDir(cfg, args[0])
				if err != nil {
					return err
				}
			}
			summary, err := daemonrun.Batch(cmd.Context(), cfg, daemonrun.Options{
				OutputDir: outputDir,
				NewModel:  newTranscriber,
			})
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), summary)
			if failed := summary.Unresolved(); len(failed) > 0 {
				return fmt.Errorf("%d file(s) failed", len(failed))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Write all outputs and archived sources under this directory")
	return cmd
}

func withInputDir(cfg *config.Config, dir string) (*config.Config, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return cfg, nil
	}
	expanded, err := config.ExpandPath(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve input directory: %w", err)
	}
	clone := *cfg
	clone.Paths.InputDir = expanded
	if err := clone.Validate(); err != nil {
		return nil, err
	}
	return &clone, nil
}

func printSummary(out io.Writer, summary job.Summary) {
	fmt.Fprintf(out, "Total number of files processed: %d\n", summary.Processed)
	failed := summary.Unresolved()
	if len(failed) == 0 {
		return
	}
	fmt.Fprintf(out, "Failed: %d\n", len(failed))
	for _, o := range failed {
		fmt.Fprintf(out, "  %s: %v\n", o.File.Path, o.Err)
	}
}
