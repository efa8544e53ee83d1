package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for hyperdrive
type Config struct {
	// Scraping proxy (Nitter) endpoint and request settings
	Proxy ProxyConfig `yaml:"proxy" json:"proxy"`

	// Egress identity rotation
	Identity IdentityConfig `yaml:"identity" json:"identity"`

	// Rate-limit reset protocol
	Recovery RecoveryConfig `yaml:"recovery" json:"recovery"`

	// Windowing and pagination limits
	Scrape ScrapeConfig `yaml:"scrape" json:"scrape"`

	// Job store and queue
	Queue QueueConfig `yaml:"queue" json:"queue"`

	// Text-completion analysis
	Analysis AnalysisConfig `yaml:"analysis" json:"analysis"`

	// Worker loop
	Worker WorkerConfig `yaml:"worker" json:"worker"`

	// Export of finished jobs
	Export ExportConfig `yaml:"export" json:"export"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// ProxyConfig describes the scraping proxy and how to control it
type ProxyConfig struct {
	BaseURL           string        `yaml:"base_url" json:"base_url"`
	UserAgent         string        `yaml:"user_agent" json:"user_agent"`
	RequestTimeout    time.Duration `yaml:"request_timeout" json:"request_timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second" json:"requests_per_second"`
	Burst             int           `yaml:"burst" json:"burst"`

	// CacheRedisAddr is the proxy's own Redis, flushed during a reset
	CacheRedisAddr string `yaml:"cache_redis_addr" json:"cache_redis_addr"`

	// Lifecycle control. When ContainerName is set the proxy is restarted with
	// `docker restart`, otherwise compose stop/start is used in ComposeDir.
	DockerBinary   string `yaml:"docker_binary" json:"docker_binary"`
	ComposeDir     string `yaml:"compose_dir" json:"compose_dir"`
	ComposeService string `yaml:"compose_service" json:"compose_service"`
	ContainerName  string `yaml:"container_name" json:"container_name"`
}

// IdentityConfig holds identity-rotation (VPN) settings
type IdentityConfig struct {
	Enabled   bool     `yaml:"enabled" json:"enabled"`
	CLIPath   string   `yaml:"cli_path" json:"cli_path"`
	Countries []string `yaml:"countries" json:"countries"`
	LockPath  string   `yaml:"lock_path" json:"lock_path"`
}

// RecoveryConfig holds reset protocol timings and caps
type RecoveryConfig struct {
	Warmup            time.Duration `yaml:"warmup" json:"warmup"`
	ProbeAttempts     int           `yaml:"probe_attempts" json:"probe_attempts"`
	ProbeInterval     time.Duration `yaml:"probe_interval" json:"probe_interval"`
	StepTimeout       time.Duration `yaml:"step_timeout" json:"step_timeout"`
	SearchMaxResets   int           `yaml:"search_max_resets" json:"search_max_resets"`
	TimelineMaxResets int           `yaml:"timeline_max_resets" json:"timeline_max_resets"`
}

// ScrapeConfig holds windowing and pagination settings
type ScrapeConfig struct {
	PageDelay              time.Duration `yaml:"page_delay" json:"page_delay"`
	ChunkDays              int           `yaml:"chunk_days" json:"chunk_days"`
	DefaultSpanDays        int           `yaml:"default_span_days" json:"default_span_days"`
	MaxItems               int           `yaml:"max_items" json:"max_items"`
	MaxReposts             int           `yaml:"max_reposts" json:"max_reposts"`
	EmptyPageThreshold     int           `yaml:"empty_page_threshold" json:"empty_page_threshold"`
	TimelineEmptyThreshold int           `yaml:"timeline_empty_threshold" json:"timeline_empty_threshold"`
}

// QueueConfig selects and configures the job store backend
type QueueConfig struct {
	Backend      string        `yaml:"backend" json:"backend"` // redis or sqlite
	RedisURL     string        `yaml:"redis_url" json:"redis_url"`
	KeyPrefix    string        `yaml:"key_prefix" json:"key_prefix"`
	SQLitePath   string        `yaml:"sqlite_path" json:"sqlite_path"`
	ClaimTimeout time.Duration `yaml:"claim_timeout" json:"claim_timeout"`
}

// AnalysisConfig holds completion-service settings
type AnalysisConfig struct {
	Provider          string        `yaml:"provider" json:"provider"`
	Model             string        `yaml:"model" json:"model"`
	APIKey            string        `yaml:"api_key" json:"-"`
	ServerURL         string        `yaml:"server_url" json:"server_url"`
	MaxTokensPerChunk int           `yaml:"max_tokens_per_chunk" json:"max_tokens_per_chunk"`
	CharsPerToken     int           `yaml:"chars_per_token" json:"chars_per_token"`
	CallTimeout       time.Duration `yaml:"call_timeout" json:"call_timeout"`
}

// WorkerConfig holds worker loop settings
type WorkerConfig struct {
	ID             string        `yaml:"id" json:"id"`
	Concurrency    int           `yaml:"concurrency" json:"concurrency"`
	ErrorBackoff   time.Duration `yaml:"error_backoff" json:"error_backoff"`
	StaleAfter     time.Duration `yaml:"stale_after" json:"stale_after"`
	ToggleIdentity bool          `yaml:"toggle_identity" json:"toggle_identity"`
}

// ExportConfig holds the output location for job exports
type ExportConfig struct {
	Directory string `yaml:"directory" json:"directory"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"` // console or json
	File   string `yaml:"file" json:"file"`
}

// DefaultCountries is the identity pool cycled by resets
var DefaultCountries = []string{
	"us", "gb", "de", "nl", "se", "ch", "ca", "fr", "jp", "au",
	"sg", "br", "it", "es", "pl", "fi", "no", "dk", "at", "be",
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Proxy: ProxyConfig{
			BaseURL:           "http://localhost:8080",
			UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
			RequestTimeout:    30 * time.Second,
			RequestsPerSecond: 4,
			Burst:             1,
			DockerBinary:      "docker",
			ComposeDir:        ".",
			ComposeService:    "nitter",
		},
		Identity: IdentityConfig{
			Enabled:   true,
			CLIPath:   "/usr/bin/mullvad",
			Countries: append([]string(nil), DefaultCountries...),
			LockPath:  filepath.Join(os.TempDir(), "hyperdrive-identity.lock"),
		},
		Recovery: RecoveryConfig{
			Warmup:            8 * time.Second,
			ProbeAttempts:     5,
			ProbeInterval:     2 * time.Second,
			StepTimeout:       60 * time.Second,
			SearchMaxResets:   50,
			TimelineMaxResets: 1000,
		},
		Scrape: ScrapeConfig{
			PageDelay:              500 * time.Millisecond,
			ChunkDays:              30,
			DefaultSpanDays:        365,
			MaxItems:               5000,
			MaxReposts:             5000,
			EmptyPageThreshold:     3,
			TimelineEmptyThreshold: 5,
		},
		Queue: QueueConfig{
			Backend:      "redis",
			RedisURL:     "redis://localhost:6379",
			KeyPrefix:    "hyperdrive",
			SQLitePath:   "hyperdrive.db",
			ClaimTimeout: 5 * time.Second,
		},
		Analysis: AnalysisConfig{
			Provider:          "googleai",
			Model:             "gemini-2.0-flash",
			MaxTokensPerChunk: 750_000,
			CharsPerToken:     4,
			CallTimeout:       5 * time.Minute,
		},
		Worker: WorkerConfig{
			Concurrency:    1,
			ErrorBackoff:   5 * time.Second,
			StaleAfter:     2 * time.Minute,
			ToggleIdentity: true,
		},
		Export: ExportConfig{
			Directory: "./exports",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	// Legacy names used by existing deployments
	setString(&c.Proxy.BaseURL, "NITTER_URL")
	setString(&c.Proxy.CacheRedisAddr, "NITTER_REDIS_HOST")
	setString(&c.Queue.RedisURL, "REDIS_URL")
	setString(&c.Analysis.APIKey, "GEMINI_API_KEY")

	setString(&c.Proxy.BaseURL, "HYPERDRIVE_PROXY_URL")
	setString(&c.Proxy.CacheRedisAddr, "HYPERDRIVE_PROXY_REDIS")
	setString(&c.Proxy.ComposeDir, "HYPERDRIVE_COMPOSE_DIR")
	setString(&c.Proxy.ContainerName, "HYPERDRIVE_PROXY_CONTAINER")
	setString(&c.Identity.CLIPath, "HYPERDRIVE_IDENTITY_CLI")
	if v := os.Getenv("HYPERDRIVE_IDENTITY_COUNTRIES"); v != "" {
		c.Identity.Countries = splitList(v)
	}
	errs = append(errs, setBool(&c.Identity.Enabled, "HYPERDRIVE_IDENTITY_ENABLED"))

	setString(&c.Queue.Backend, "HYPERDRIVE_QUEUE_BACKEND")
	setString(&c.Queue.RedisURL, "HYPERDRIVE_REDIS_URL")
	setString(&c.Queue.SQLitePath, "HYPERDRIVE_SQLITE_PATH")

	setString(&c.Analysis.Provider, "HYPERDRIVE_LLM_PROVIDER")
	setString(&c.Analysis.Model, "HYPERDRIVE_LLM_MODEL")
	setString(&c.Analysis.APIKey, "HYPERDRIVE_LLM_API_KEY")
	setString(&c.Analysis.ServerURL, "HYPERDRIVE_LLM_SERVER_URL")

	errs = append(errs,
		setInt(&c.Scrape.MaxItems, "HYPERDRIVE_MAX_ITEMS"),
		setInt(&c.Scrape.ChunkDays, "HYPERDRIVE_CHUNK_DAYS"),
		setInt(&c.Worker.Concurrency, "HYPERDRIVE_WORKER_CONCURRENCY"),
		setDuration(&c.Scrape.PageDelay, "HYPERDRIVE_PAGE_DELAY"),
	)
	setString(&c.Worker.ID, "HYPERDRIVE_WORKER_ID")

	setString(&c.Logging.Level, "HYPERDRIVE_LOG_LEVEL")
	setString(&c.Logging.Format, "HYPERDRIVE_LOG_FORMAT")
	setString(&c.Logging.File, "HYPERDRIVE_LOG_FILE")

	return errors.Join(errs...)
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, strings.ToLower(p))
		}
	}
	return out
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".hyperdrive.yaml",
		".hyperdrive.yml",
		filepath.Join(home, ".config", "hyperdrive", "config.yaml"),
		filepath.Join(home, ".config", "hyperdrive", "config.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Proxy.BaseURL == "" {
		errs = append(errs, errors.New("proxy base URL is required"))
	}
	if c.Proxy.RequestTimeout <= 0 {
		errs = append(errs, errors.New("proxy request timeout must be positive"))
	}
	if c.Proxy.RequestsPerSecond <= 0 {
		errs = append(errs, errors.New("proxy requests per second must be positive"))
	}

	if c.Identity.Enabled && len(c.Identity.Countries) == 0 {
		errs = append(errs, errors.New("identity pool must not be empty"))
	}

	if c.Recovery.ProbeAttempts <= 0 {
		errs = append(errs, errors.New("probe attempts must be positive"))
	}
	if c.Recovery.SearchMaxResets < 0 || c.Recovery.TimelineMaxResets < 0 {
		errs = append(errs, errors.New("reset caps cannot be negative"))
	}

	if c.Scrape.ChunkDays <= 0 {
		errs = append(errs, errors.New("chunk days must be positive"))
	}
	if c.Scrape.MaxItems <= 0 {
		errs = append(errs, errors.New("max items must be positive"))
	}
	if c.Scrape.EmptyPageThreshold <= 0 || c.Scrape.TimelineEmptyThreshold <= 0 {
		errs = append(errs, errors.New("empty page thresholds must be positive"))
	}

	switch strings.ToLower(c.Queue.Backend) {
	case "redis":
		if c.Queue.RedisURL == "" {
			errs = append(errs, errors.New("redis URL is required for the redis backend"))
		}
	case "sqlite":
		if c.Queue.SQLitePath == "" {
			errs = append(errs, errors.New("sqlite path is required for the sqlite backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown queue backend %q", c.Queue.Backend))
	}
	if c.Queue.ClaimTimeout <= 0 {
		errs = append(errs, errors.New("claim timeout must be positive"))
	}

	validProviders := map[string]bool{"googleai": true, "openai": true, "anthropic": true, "ollama": true}
	if !validProviders[strings.ToLower(c.Analysis.Provider)] {
		errs = append(errs, fmt.Errorf("unsupported analysis provider %q", c.Analysis.Provider))
	}
	if c.Analysis.MaxTokensPerChunk <= 0 || c.Analysis.CharsPerToken <= 0 {
		errs = append(errs, errors.New("analysis budget must be positive"))
	}

	if c.Worker.Concurrency <= 0 {
		errs = append(errs, errors.New("worker concurrency must be positive"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}
	if f := strings.ToLower(c.Logging.Format); f != "console" && f != "json" {
		errs = append(errs, errors.New("invalid log format"))
	}

	return errors.Join(errs...)
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["proxy-url"].(string); ok && v != "" {
		c.Proxy.BaseURL = v
	}
	if v, ok := flags["redis-url"].(string); ok && v != "" {
		c.Queue.RedisURL = v
	}
	if v, ok := flags["backend"].(string); ok && v != "" {
		c.Queue.Backend = v
	}
	if v, ok := flags["worker-id"].(string); ok && v != "" {
		c.Worker.ID = v
	}
	if v, ok := flags["concurrency"].(int); ok && v > 0 {
		c.Worker.Concurrency = v
	}
	if v, ok := flags["max-items"].(int); ok && v > 0 {
		c.Scrape.MaxItems = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := flags["log-format"].(string); ok && v != "" {
		c.Logging.Format = v
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// .env files are optional
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".hyperdrive.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
