package main

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"hyperdrive/pkg/config"
	"hyperdrive/pkg/jobs"
	"hyperdrive/pkg/logger"
	"hyperdrive/pkg/retry"
	"hyperdrive/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	logFormat  string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "hyperdrive",
	Short: "Distributed scrape-and-analyze job runner",
	Long: `hyperdrive collects a user's posts through a Nitter proxy, survives
rate limits by rotating the egress identity and restarting the proxy, and
summarizes the corpus with a text-completion service.

Jobs are submitted to a shared queue (Redis or SQLite) and processed by
one or more workers:

  hyperdrive submit alice --since 2024-01-01 --until 2024-02-01
  hyperdrive worker --concurrency 2
  hyperdrive watch`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.PrintError("Error", err.Error())
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is .hyperdrive.yaml or ~/.config/hyperdrive/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (console, json)")

	rootCmd.SetVersionTemplate(`hyperdrive {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// loadConfig loads configuration with the global flags plus extra command
// flags merged on top, then initializes the global logger.
func loadConfig(extra map[string]interface{}) (*config.Config, error) {
	flags := map[string]interface{}{
		"log-level":  logLevel,
		"log-format": logFormat,
	}
	for k, v := range extra {
		flags[k] = v
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, err
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}

// openQueue opens the configured job store, retrying while it is unreachable
func openQueue(ctx context.Context, cfg *config.Config) (*jobs.Queue, error) {
	rc := retry.DefaultConfig()
	rc.Name = "open job store"
	backend, err := retry.DoWithResult(ctx, func(ctx context.Context) (jobs.Backend, error) {
		return jobs.OpenBackend(ctx, &cfg.Queue)
	}, rc)
	if err != nil {
		return nil, fmt.Errorf("failed to open job store: %w", err)
	}
	return jobs.NewQueue(backend, logger.GetLogger()), nil
}

// withQueue loads config, opens the queue and runs fn against it
func withQueue(cmd *cobra.Command, fn func(ctx context.Context, cfg *config.Config, q *jobs.Queue) error) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	q, err := openQueue(ctx, cfg)
	if err != nil {
		return err
	}
	defer q.Close()
	return fn(ctx, cfg, q)
}
