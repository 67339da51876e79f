package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"scribe/internal/config"
	"scribe/internal/journal"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent job outcomes from the journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig(cmd)
			if err != nil {
				return err
			}
			store, err := openJournal(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			reqCtx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			entries, err := store.Recent(reqCtx, limit)
			if err != nil {
				return err
			}
			stats, err := store.Stats(reqCtx)
			if err != nil {
				return err
			}

			if asJSON {
				return printJSON(cmd.OutOrStdout(), struct {
					Entries []journal.Entry `json:"entries"`
					Stats   journal.Stats   `json:"stats"`
				}{Entries: entries, Stats: stats})
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No jobs recorded")
				return nil
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Started", "File", "Attempt", "Result", "Segments", "Duration", "Detail"},
				historyRows(entries),
				3, 5, 6,
			))
			fmt.Fprintf(out, "%d recorded, %d succeeded, %d failed, average %s\n",
				stats.Total, stats.Succeeded, stats.Failed, stats.AverageDuration.Round(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of entries to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")

	cmd.AddCommand(newHistoryClearCommand(ctx))
	return cmd
}

func newHistoryClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every journal entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig(cmd)
			if err != nil {
				return err
			}
			store, err := openJournal(cfg)
			if err != nil {
				return err
			}
			defer store.Close()
			removed, err := store.Clear(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d journal entries\n", removed)
			return nil
		},
	}
}

func openJournal(cfg *config.Config) (*journal.Store, error) {
	if !cfg.Journal.Enabled {
		return nil, fmt.Errorf("journal is disabled (journal.enabled = false)")
	}
	store, err := journal.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return store, nil
}

func historyRows(entries []journal.Entry) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		result := "ok"
		detail := filepath.Base(e.SubtitlePath)
		if !e.Success {
			result = "failed"
			detail = e.Error
			if e.QuarantinePath != "" {
				detail += " (quarantined)"
			}
		}
		rows = append(rows, []string{
			e.StartedAt.Local().Format("2006-01-02 15:04:05"),
			e.Name,
			strconv.Itoa(e.Attempt),
			result,
			strconv.Itoa(e.Segments),
			e.Duration.Round(time.Millisecond).String(),
			detail,
		})
	}
	return rows
}
