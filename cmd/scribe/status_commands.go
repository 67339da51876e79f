package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"scribe/internal/daemonctl"
	"scribe/internal/journal"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report whether a watch process is running",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig(cmd)
			if err != nil {
				return err
			}
			status, err := daemonctl.ProcessInfo(cfg)
			if err != nil {
				return err
			}

			var stats *journal.Stats
			if cfg.Journal.Enabled {
				if store, err := journal.Open(cfg); err == nil {
					reqCtx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
					if s, err := store.Stats(reqCtx); err == nil {
						stats = &s
					}
					cancel()
					_ = store.Close()
				}
			}

			if asJSON {
				return printJSON(cmd.OutOrStdout(), struct {
					daemonctl.ProcessStatus
					InputDir string         `json:"input_dir"`
					Journal  *journal.Stats `json:"journal,omitempty"`
				}{ProcessStatus: status, InputDir: cfg.Paths.InputDir, Journal: stats})
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			if status.Running {
				fmt.Fprintln(out, renderStatusLine("Watch", statusOK, fmt.Sprintf("running (pid %d)", status.PID), colorize))
			} else {
				fmt.Fprintln(out, renderStatusLine("Watch", statusWarn, "not running", colorize))
			}
			fmt.Fprintln(out, renderStatusLine("Input", statusInfo, cfg.Paths.InputDir, colorize))
			fmt.Fprintln(out, renderStatusLine("Workers", statusInfo, fmt.Sprintf("%d", cfg.Workflow.MaxWorkers), colorize))
			if stats != nil {
				fmt.Fprintln(out, renderStatusLine("Journal", statusInfo,
					fmt.Sprintf("%d succeeded, %d failed", stats.Succeeded, stats.Failed), colorize))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newStopCommand(ctx *commandContext) *cobra.Command {
	var grace time.Duration

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the running watch process after it drains queued jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			result, err := daemonctl.StopAndTerminate(cfg, grace)
			if err != nil {
				if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
					fmt.Fprintln(out, "scribe is not running")
					return nil
				}
				return err
			}
			switch {
			case result.ForcedKill:
				fmt.Fprintf(out, "Killed scribe (pid %d) after %s\n", result.PID, grace)
			case result.Graceful:
				fmt.Fprintf(out, "Stopped scribe (pid %d)\n", result.PID)
			default:
				fmt.Fprintf(out, "Signalled scribe (pid %d)\n", result.PID)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&grace, "grace", 5*time.Minute, "How long to wait for queued jobs to drain before killing the process")
	return cmd
}
