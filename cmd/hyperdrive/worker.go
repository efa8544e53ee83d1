package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"hyperdrive/internal/command"
	"hyperdrive/pkg/analysis"
	"hyperdrive/pkg/auth"
	"hyperdrive/pkg/config"
	"hyperdrive/pkg/identity"
	"hyperdrive/pkg/llm"
	"hyperdrive/pkg/logger"
	"hyperdrive/pkg/nitter"
	"hyperdrive/pkg/proxy"
	"hyperdrive/pkg/ratelimit"
	"hyperdrive/pkg/recovery"
	"hyperdrive/pkg/scraper"
	"hyperdrive/pkg/ui"
	"hyperdrive/pkg/worker"
)

var (
	workerID          string
	workerConcurrency int
)

// workerCmd runs the worker pool
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run workers that process queued jobs",
	Long: `Run one or more workers against the shared job queue.

Each worker claims a pending job, scrapes reposts from the user's timeline
and originals from date-windowed search, sends the collected items to the
analysis service and stores the result. Rate limits are handled by rotating
the egress identity and restarting the proxy.

Stop with Ctrl+C; a job in flight is marked failed with "worker shutdown".`,
	Example: `  # Single worker using config defaults
  hyperdrive worker

  # Three workers named scraper-1..scraper-3
  hyperdrive worker --id scraper --concurrency 3`,
	RunE: runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
	workerCmd.Flags().StringVar(&workerID, "id", "", "worker id (default is worker.id or the hostname)")
	workerCmd.Flags().IntVar(&workerConcurrency, "concurrency", 0, "number of workers in this process")
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(map[string]interface{}{
		"worker-id":   workerID,
		"concurrency": workerConcurrency,
	})
	if err != nil {
		return err
	}
	log := logger.GetLogger()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	queue, err := openQueue(ctx, cfg)
	if err != nil {
		return err
	}
	defer queue.Close()

	model, err := newModel(ctx, cfg)
	if err != nil {
		return err
	}

	runner := command.NewExecRunner(log)
	src := identity.FromConfig(&cfg.Identity, runner, log)

	var cache proxy.CacheFlusher
	if cfg.Proxy.CacheRedisAddr != "" {
		rc := proxy.NewRedisCache(cfg.Proxy.CacheRedisAddr)
		defer rc.Close()
		cache = rc
	}
	ctl := proxy.NewComposeController(&cfg.Proxy, runner, cache, log)

	limiter := ratelimit.NewHostLimiter(cfg.Proxy.RequestsPerSecond, cfg.Proxy.Burst)
	client := nitter.NewClient(&cfg.Proxy, limiter, log)

	newResetter := func(maxResets int) recovery.Resetter {
		return recovery.NewCoordinator(src, ctl, client, recovery.OptionsFromConfig(cfg, maxResets))
	}

	scrapeOpts := scraper.OptionsFromConfig(cfg)
	scrapeOpts.Logger = log
	chunkOpts := analysis.OptionsFromConfig(&cfg.Analysis)
	chunkOpts.Logger = log
	chunker := analysis.NewChunker(model, chunkOpts)

	ids := worker.IDs(baseWorkerID(cfg), cfg.Worker.Concurrency)
	pool := worker.NewPool(ids, func(id string) *worker.Worker {
		sc := scraper.NewCorpusScraper(client, client.BaseURL(), newResetter, scrapeOpts)
		opts := worker.OptionsFromConfig(cfg, id)
		opts.Logger = log
		return worker.New(queue, sc, chunker, src, opts)
	}, log)

	ui.PrintBanner()
	ui.PrintInfo("Proxy", client.BaseURL())
	ui.PrintInfo("Queue", cfg.Queue.Backend)
	ui.PrintInfo("Analysis", fmt.Sprintf("%s/%s", model.Provider(), model.Model()))
	ui.PrintInfo("Workers", fmt.Sprintf("%v", ids))
	if cfg.Identity.Enabled {
		ui.PrintInfo("Identity pool", fmt.Sprintf("%d countries", len(cfg.Identity.Countries)))
	} else {
		ui.PrintWarning("Identity rotation disabled; rate limits are retried through proxy restarts only")
	}

	return pool.Run(ctx)
}

// newModel builds the completion model, resolving the API key from config
// first and the credential store second
func newModel(ctx context.Context, cfg *config.Config) (*llm.Model, error) {
	var keys auth.KeySource
	if auth.NeedsKey(cfg.Analysis.Provider) && cfg.Analysis.APIKey == "" {
		manager, err := auth.NewManager("")
		if err != nil {
			return nil, fmt.Errorf("failed to initialize credential manager: %w", err)
		}
		keys = manager
	}

	apiKey, err := auth.ResolveAPIKey(&cfg.Analysis, keys)
	if err != nil {
		return nil, fmt.Errorf("no API key for %s (run 'hyperdrive auth set %s'): %w",
			cfg.Analysis.Provider, cfg.Analysis.Provider, err)
	}
	return llm.NewModel(ctx, &cfg.Analysis, apiKey)
}

// baseWorkerID returns the configured id, falling back to the hostname
func baseWorkerID(cfg *config.Config) string {
	if cfg.Worker.ID != "" {
		return cfg.Worker.ID
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "worker"
	}
	return "worker-" + host
}
