package proxy

import (
	"context"

	"hyperdrive/internal/command"
	"hyperdrive/pkg/config"
	"hyperdrive/pkg/logger"
)

// DefaultCacheContainer is the proxy's Redis container flushed when no
// cache address is configured
const DefaultCacheContainer = "nitter-redis"

// Controller manages the lifecycle and cache of the scraping proxy
type Controller interface {
	Stop(ctx context.Context) error
	Start(ctx context.Context) error
	FlushCache(ctx context.Context) error
}

// CacheFlusher empties the proxy's cache
type CacheFlusher interface {
	Flush(ctx context.Context) error
}

// ComposeController restarts the proxy through the docker CLI. In compose
// mode Stop and Start map to `docker compose stop|start <service>`. In
// container mode Stop restarts the named container and Start does nothing.
type ComposeController struct {
	runner    command.Runner
	docker    string
	dir       string
	service   string
	container string
	cache     CacheFlusher
	logger    logger.Logger
}

// NewComposeController creates a controller from proxy config. cache may be
// nil, in which case the cache container is flushed with `docker exec`.
func NewComposeController(cfg *config.ProxyConfig, runner command.Runner, cache CacheFlusher, log logger.Logger) *ComposeController {
	if log == nil {
		log = logger.GetLogger()
	}
	docker := cfg.DockerBinary
	if docker == "" {
		docker = "docker"
	}
	return &ComposeController{
		runner:    runner,
		docker:    docker,
		dir:       cfg.ComposeDir,
		service:   cfg.ComposeService,
		container: cfg.ContainerName,
		cache:     cache,
		logger:    log,
	}
}

// ContainerMode reports whether the proxy is restarted by container name
func (c *ComposeController) ContainerMode() bool {
	return c.container != ""
}

func (c *ComposeController) Stop(ctx context.Context) error {
	if c.ContainerMode() {
		c.logger.InfoWithFields("restarting proxy container", map[string]interface{}{
			"container": c.container,
		})
		_, err := c.runner.Run(ctx, "", c.docker, "restart", c.container)
		return err
	}
	_, err := c.runner.Run(ctx, c.dir, c.docker, "compose", "stop", c.service)
	return err
}

func (c *ComposeController) Start(ctx context.Context) error {
	if c.ContainerMode() {
		return nil
	}
	_, err := c.runner.Run(ctx, c.dir, c.docker, "compose", "start", c.service)
	return err
}

func (c *ComposeController) FlushCache(ctx context.Context) error {
	if c.cache != nil {
		return c.cache.Flush(ctx)
	}
	_, err := c.runner.Run(ctx, "", c.docker, "exec", DefaultCacheContainer, "redis-cli", "FLUSHALL")
	return err
}
