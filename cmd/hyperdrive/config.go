package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"hyperdrive/pkg/config"
	"hyperdrive/pkg/ui"
)

var configForce bool

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage hyperdrive configuration files.

Configuration is loaded from, highest priority first:
  - Command line flags
  - Environment variables (HYPERDRIVE_*, NITTER_URL, REDIS_URL, ...)
  - .env files
  - Configuration file
  - Default values`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with every default",
	Long: `Write a configuration file holding every option at its default value.

The file is written to --config, or .hyperdrive.yaml in the current
directory.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the configuration after merging every source. The analysis API key
is masked.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configShowCmd, configValidateCmd)
	configInitCmd.Flags().BoolVarP(&configForce, "force", "f", false, "overwrite an existing file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = ".hyperdrive.yaml"
	}

	if _, err := os.Stat(path); err == nil && !configForce {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", path)
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}

	ui.PrintSuccess("Configuration file created: " + path)
	fmt.Fprintln(ui.Out, "\nNext steps:")
	fmt.Fprintln(ui.Out, "1. Set proxy.base_url and queue.redis_url (or queue.backend: sqlite)")
	fmt.Fprintln(ui.Out, "2. Store an API key with 'hyperdrive auth set'")
	fmt.Fprintln(ui.Out, "3. Run 'hyperdrive config validate'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}

	display := *cfg
	display.Analysis.APIKey = maskKey(display.Analysis.APIKey)

	data, err := yaml.Marshal(&display)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Fprintln(ui.Out)
	fmt.Fprint(ui.Out, string(data))
	if configFile != "" {
		ui.PrintInfo("\nConfiguration file", configFile)
	}
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}

	var warnings []string
	if cfg.Identity.Enabled {
		if _, err := os.Stat(cfg.Identity.CLIPath); cfg.Identity.CLIPath != "" && err != nil {
			warnings = append(warnings, fmt.Sprintf("identity CLI not found: %s", cfg.Identity.CLIPath))
		}
	}
	if cfg.Proxy.ComposeDir == "" && cfg.Proxy.ContainerName == "" {
		warnings = append(warnings, "neither proxy.compose_dir nor proxy.container_name is set; proxy restarts use the working directory")
	}
	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			return fmt.Errorf("cannot create log directory: %w", err)
		}
	}

	for _, w := range warnings {
		ui.PrintWarning(w)
	}
	ui.PrintSuccess("Configuration is valid")

	fmt.Fprintln(ui.Out, "\nConfiguration summary:")
	fmt.Fprintf(ui.Out, "  Proxy: %s\n", cfg.Proxy.BaseURL)
	fmt.Fprintf(ui.Out, "  Queue backend: %s\n", cfg.Queue.Backend)
	fmt.Fprintf(ui.Out, "  Analysis: %s/%s\n", cfg.Analysis.Provider, cfg.Analysis.Model)
	fmt.Fprintf(ui.Out, "  Identity rotation: %t (%d countries)\n", cfg.Identity.Enabled, len(cfg.Identity.Countries))
	fmt.Fprintf(ui.Out, "  Workers per process: %d\n", cfg.Worker.Concurrency)
	fmt.Fprintf(ui.Out, "  Log level: %s\n", cfg.Logging.Level)
	return nil
}

func maskKey(s string) string {
	switch {
	case s == "":
		return ""
	case len(s) <= 8:
		return "***"
	default:
		return s[:4] + "..." + s[len(s)-4:]
	}
}
