package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	flags := &overrideFlags{}

	ctx := newCommandContext(&configFlag, flags)

	rootCmd := &cobra.Command{
		Use:           "scribe",
		Short:         "Transcribe media dropped into a watched folder",
		Long:          "scribe watches a directory for .mp4, .mp3 and .wav files, writes a plain-text transcript and an SRT subtitle file for each, then archives the source.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig(cmd)
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	pf.StringVar(&flags.input, "input", "", "Directory to watch or walk (paths.input_dir)")
	pf.StringVar(&flags.archive, "archive", "", "Directory receiving processed sources (paths.archive_dir)")
	pf.IntVar(&flags.workers, "workers", 0, "Maximum concurrent jobs (workflow.max_workers)")
	pf.StringVar(&flags.backend, "backend", "", "Transcription backend: whisperx or openai")
	pf.StringVar(&flags.model, "model", "", "Model name for the selected backend")
	pf.BoolVar(&flags.txt, "txt", false, "Write the plain-text transcript")
	pf.BoolVar(&flags.noTxt, "no-txt", false, "Skip the plain-text transcript")
	pf.StringVar(&flags.watcher, "watcher", "", "Watcher implementation: native or poll")
	pf.BoolVar(&flags.recursive, "recursive", false, "Watch subdirectories of the input directory")
	pf.StringVar(&flags.failurePolicy, "failure-policy", "", "What to do with failed sources: leave, retry or quarantine")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	rootCmd.MarkFlagsMutuallyExclusive("txt", "no-txt")

	rootCmd.AddCommand(newWatchCommand(ctx))
	rootCmd.AddCommand(newRunCommand(ctx))
	rootCmd.AddCommand(newHistoryCommand(ctx))
	rootCmd.AddCommand(newDoctorCommand(ctx))
	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newStopCommand(ctx))
	rootCmd.AddCommand(newLogsCommand(ctx))
	rootCmd.AddCommand(newTestNotifyCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}
