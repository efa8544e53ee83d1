package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"hyperdrive/pkg/config"
	"hyperdrive/pkg/jobs"
	"hyperdrive/pkg/ui"
	"hyperdrive/pkg/ui/tui"
)

var (
	listLimit     int
	itemsPage     int
	itemsPerPage  int
	itemsFlagged  bool
	staleAfter    time.Duration
	watchInterval time.Duration
	watchLimit    int
)

// jobsCmd groups job inspection commands
var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect queued and finished jobs",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withQueue(cmd, func(ctx context.Context, cfg *config.Config, q *jobs.Queue) error {
			list, err := q.List(ctx, listLimit)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				ui.PrintInfo("Jobs", "none")
				return nil
			}
			for _, job := range list {
				fmt.Fprintf(ui.Out, "%-8s  %-16s  %-20s  %s  %s\n",
					job.ID,
					"@"+job.Username,
					ui.StatusColor(job.Status),
					ui.Bar(job.Progress, 10),
					ui.Dim(job.CreatedAt.Local().Format("2006-01-02 15:04")))
			}
			return nil
		})
	},
}

var jobsGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show a job's status and summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withQueue(cmd, func(ctx context.Context, cfg *config.Config, q *jobs.Queue) error {
			job, err := q.Get(ctx, args[0])
			if err != nil {
				return err
			}
			ui.PrintJob(job)
			return nil
		})
	},
}

var jobsItemsCmd = &cobra.Command{
	Use:   "items <id>",
	Short: "Page through a finished job's items",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withQueue(cmd, func(ctx context.Context, cfg *config.Config, q *jobs.Queue) error {
			job, err := q.Get(ctx, args[0])
			if err != nil {
				return err
			}
			if job.Status != jobs.StatusCompleted {
				return fmt.Errorf("job %s is %s", job.ID, job.Status)
			}

			page := jobs.PageItems(job, itemsPage, itemsPerPage, itemsFlagged)
			ui.PrintHighlight(fmt.Sprintf("@%s: page %d/%d, %d items, %d flagged",
				page.Username, page.Page, page.TotalPages, page.TotalItems, page.TotalFlagged))
			for _, it := range page.Items {
				marker := " "
				if it.Flagged {
					marker = ui.Magenta("*")
				}
				kind := ""
				if it.IsRepost {
					kind = ui.Dim(" RT @" + it.OriginalAuthor)
				}
				fmt.Fprintf(ui.Out, "%s [%d] %s%s\n", marker, it.Index, ui.Dim(it.Date), kind)
				fmt.Fprintf(ui.Out, "    %s\n", strings.ReplaceAll(it.Text, "\n", "\n    "))
				if it.Flagged && it.FlagReason != "" {
					fmt.Fprintf(ui.Out, "    %s\n", ui.Yellow("-> "+it.FlagReason))
				}
			}
			return nil
		})
	},
}

var jobsStaleCmd = &cobra.Command{
	Use:   "stale",
	Short: "Report running jobs whose worker stopped heartbeating",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withQueue(cmd, func(ctx context.Context, cfg *config.Config, q *jobs.Queue) error {
			after := staleAfter
			if after <= 0 {
				after = cfg.Worker.StaleAfter
			}
			stale, err := q.Stale(ctx, after)
			if err != nil {
				return err
			}
			if len(stale) == 0 {
				ui.PrintSuccess("No stale jobs")
				return nil
			}
			for _, job := range stale {
				ui.PrintWarning(fmt.Sprintf("%s @%s on %s", job.ID, job.Username, job.WorkerID), job.CurrentStep)
			}
			return nil
		})
	},
}

// workersCmd lists worker heartbeats
var workersCmd = &cobra.Command{
	Use:   "workers",
	Short: "List registered workers and their last heartbeat",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withQueue(cmd, func(ctx context.Context, cfg *config.Config, q *jobs.Queue) error {
			workers, err := q.Workers(ctx)
			if err != nil {
				return err
			}
			if len(workers) == 0 {
				ui.PrintInfo("Workers", "none registered")
				return nil
			}
			now := time.Now()
			for _, hb := range workers {
				age := now.Sub(hb.Timestamp).Truncate(time.Second)
				line := fmt.Sprintf("%-20s %-5s %-8s %s ago", hb.WorkerID, hb.State, hb.CurrentJob, age)
				if age > cfg.Worker.StaleAfter {
					ui.PrintWarning(line + " (stale)")
					continue
				}
				fmt.Fprintln(ui.Out, line)
			}
			return nil
		})
	},
}

// watchCmd opens the live dashboard
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live dashboard of jobs and workers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withQueue(cmd, func(ctx context.Context, cfg *config.Config, q *jobs.Queue) error {
			return tui.Run(ctx, &tui.QueueSource{Queue: q, Limit: watchLimit}, tui.Options{
				Interval:   watchInterval,
				StaleAfter: cfg.Worker.StaleAfter,
			})
		})
	},
}

func init() {
	rootCmd.AddCommand(jobsCmd, workersCmd, watchCmd)
	jobsCmd.AddCommand(jobsListCmd, jobsGetCmd, jobsItemsCmd, jobsStaleCmd)

	jobsListCmd.Flags().IntVarP(&listLimit, "limit", "n", 20, "maximum jobs to list (0 for all)")

	jobsItemsCmd.Flags().IntVar(&itemsPage, "page", 1, "page number")
	jobsItemsCmd.Flags().IntVar(&itemsPerPage, "per-page", 20, "items per page")
	jobsItemsCmd.Flags().BoolVar(&itemsFlagged, "flagged-first", true, "list flagged items first")

	jobsStaleCmd.Flags().DurationVar(&staleAfter, "older-than", 0, "heartbeat age that counts as stale (default worker.stale_after)")

	watchCmd.Flags().DurationVar(&watchInterval, "interval", 2*time.Second, "refresh interval")
	watchCmd.Flags().IntVar(&watchLimit, "limit", 15, "jobs shown")
}
