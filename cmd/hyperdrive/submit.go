package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"hyperdrive/pkg/config"
	"hyperdrive/pkg/jobs"
	"hyperdrive/pkg/ui"
)

var (
	submitSince    string
	submitUntil    string
	submitNoTweets bool
	submitReposts  bool
	submitReplies  bool
	submitPrompt   string
)

// submitCmd queues a scrape-and-analyze job
var submitCmd = &cobra.Command{
	Use:   "submit <username>",
	Short: "Queue a job for a user",
	Long: `Queue a scrape-and-analyze job for a user.

Dates are YYYY-MM-DD. Without --since and --until the worker scrapes the
default span ending today. Original posts are collected unless --no-tweets
is given; reposts and replies are opt-in.`,
	Example: `  hyperdrive submit alice
  hyperdrive submit @alice --since 2024-01-01 --until 2024-03-01 --retweets
  hyperdrive submit alice --prompt "Focus on product announcements."`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withQueue(cmd, func(ctx context.Context, cfg *config.Config, q *jobs.Queue) error {
			job, err := q.Submit(ctx, jobs.Params{
				Username:        args[0],
				StartDate:       submitSince,
				EndDate:         submitUntil,
				IncludeTweets:   !submitNoTweets,
				IncludeRetweets: submitReposts,
				IncludeReplies:  submitReplies,
				CustomPrompt:    submitPrompt,
			})
			if err != nil {
				return err
			}

			ui.PrintSuccess(fmt.Sprintf("Queued job %s for @%s", job.ID, job.Username))
			if n, err := q.QueueLength(ctx); err == nil {
				ui.PrintInfo("Queue length", fmt.Sprint(n))
			}
			ui.PrintInfo("Follow", "hyperdrive jobs get "+job.ID)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(submitCmd)
	submitCmd.Flags().StringVar(&submitSince, "since", "", "first day to scrape (YYYY-MM-DD)")
	submitCmd.Flags().StringVar(&submitUntil, "until", "", "last day to scrape (YYYY-MM-DD)")
	submitCmd.Flags().BoolVar(&submitNoTweets, "no-tweets", false, "skip original posts")
	submitCmd.Flags().BoolVar(&submitReposts, "retweets", false, "include reposts from the timeline")
	submitCmd.Flags().BoolVar(&submitReplies, "replies", false, "include replies")
	submitCmd.Flags().StringVar(&submitPrompt, "prompt", "", "extra instructions for the analysis")
}
