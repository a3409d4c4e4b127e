package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"reelcap/internal/history"
)

func newHistoryCommand(cmdCtx *commandContext) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect past capture jobs",
	}

	historyCmd.AddCommand(newHistoryListCommand(cmdCtx))
	historyCmd.AddCommand(newHistoryShowCommand(cmdCtx))
	historyCmd.AddCommand(newHistoryClearCommand(cmdCtx))

	return historyCmd
}

func withHistoryStore(cmdCtx *commandContext, fn func(*history.Store) error) error {
	cfg, err := cmdCtx.ensureConfig()
	if err != nil {
		return err
	}
	store, err := history.Open(cfg.HistoryDBPath())
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer store.Close()
	return fn(store)
}

func newHistoryListCommand(cmdCtx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent capture jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistoryStore(cmdCtx, func(store *history.Store) error {
				jobs, err := store.List(cmd.Context(), limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(jobs) == 0 {
					fmt.Fprintln(out, "No capture jobs recorded")
					return nil
				}

				rows := make([][]string, 0, len(jobs))
				for _, job := range jobs {
					rows = append(rows, []string{
						strconv.FormatInt(job.ID, 10),
						job.CreatedAt.Local().Format("2006-01-02 15:04"),
						truncate(job.URL, 42),
						job.Format,
						string(job.Status),
						fmt.Sprintf("%.0f%%", job.ProgressPercent),
					})
				}
				table := renderTable(
					[]string{"ID", "Created", "URL", "Format", "Status", "Progress"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
				)
				fmt.Fprintln(out, table)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of jobs to show")
	return cmd
}

func newHistoryShowCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one capture job in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid job id %q", args[0])
			}
			return withHistoryStore(cmdCtx, func(store *history.Store) error {
				job, err := store.GetByID(cmd.Context(), id)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Job %d (%s)\n", job.ID, job.RequestID)
				fmt.Fprintf(out, "  URL:        %s\n", job.URL)
				fmt.Fprintf(out, "  Format:     %s\n", job.Format)
				fmt.Fprintf(out, "  Status:     %s\n", job.Status)
				fmt.Fprintf(out, "  Recording:  %d fps, %d ms\n", job.FrameRate, job.DurationMs)
				if job.SurfaceWidth > 0 {
					fmt.Fprintf(out, "  Surface:    %dx%d\n", job.SurfaceWidth, job.SurfaceHeight)
				}
				if job.FitStrategy != "" {
					fmt.Fprintf(out, "  Fit:        %s\n", job.FitStrategy)
				}
				if job.OutputPath != "" {
					fmt.Fprintf(out, "  Output:     %s\n", job.OutputPath)
				}
				if job.FallbackPath != "" {
					fmt.Fprintf(out, "  Fallback:   %s\n", job.FallbackPath)
				}
				if job.ErrorMessage != "" {
					fmt.Fprintf(out, "  Error:      %s\n", job.ErrorMessage)
				}
				fmt.Fprintf(out, "  Progress:   %s (%.0f%%) %s\n", job.ProgressStage, job.ProgressPercent, job.ProgressMessage)
				fmt.Fprintf(out, "  Created:    %s\n", job.CreatedAt.Local().Format("2006-01-02 15:04:05"))
				fmt.Fprintf(out, "  Updated:    %s\n", job.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
				return nil
			})
		},
	}
}

func newHistoryClearCommand(cmdCtx *commandContext) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove finished capture jobs from the history",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistoryStore(cmdCtx, func(store *history.Store) error {
				removed, err := store.Clear(cmd.Context(), all)
				if err != nil {
					return err
				}
				label := "finished jobs"
				if all {
					label = "jobs"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d %s\n", removed, label)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Remove every job, not just finished ones")
	return cmd
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
