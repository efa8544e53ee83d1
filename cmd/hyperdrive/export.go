package main

import (
	"context"

	"github.com/spf13/cobra"

	"hyperdrive/pkg/config"
	"hyperdrive/pkg/export"
	"hyperdrive/pkg/jobs"
	"hyperdrive/pkg/logger"
	"hyperdrive/pkg/ui"
)

var exportDir string

// exportCmd writes a completed job to disk
var exportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Write a completed job to a JSON file",
	Long: `Write a completed job's summary, highlighted items and every collected
item to <dir>/<username>_<id>.json. Existing exports are overwritten.`,
	Example: `  hyperdrive export ab12cd34
  hyperdrive export ab12cd34 --dir ./reports`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withQueue(cmd, func(ctx context.Context, cfg *config.Config, q *jobs.Queue) error {
			job, err := q.Get(ctx, args[0])
			if err != nil {
				return err
			}

			dir := exportDir
			if dir == "" {
				dir = cfg.Export.Directory
			}
			m, err := export.NewManager(dir, logger.GetLogger())
			if err != nil {
				return err
			}
			path, err := m.Export(job)
			if err != nil {
				return err
			}
			ui.PrintSuccess("Exported " + job.ID)
			ui.PrintInfo("File", path)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&exportDir, "dir", "o", "", "output directory (default export.directory)")
}
