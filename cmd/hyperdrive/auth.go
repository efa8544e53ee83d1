package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"hyperdrive/pkg/auth"
	"hyperdrive/pkg/config"
	"hyperdrive/pkg/ui"
)

var authYes bool

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage analysis service API keys",
	Long: `Manage the API keys workers use to call the analysis service.

Keys are stored per provider using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (read only)

A key set in the configuration file or HYPERDRIVE_LLM_API_KEY takes
precedence over stored keys.`,
}

var authSetCmd = &cobra.Command{
	Use:   "set [provider]",
	Short: "Store an API key",
	Example: `  # Key for the configured provider
  hyperdrive auth set

  # Key for a specific provider
  hyperdrive auth set openai`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAuthSet,
}

var authShowCmd = &cobra.Command{
	Use:   "show",
	Short: "List stored keys (masked)",
	Args:  cobra.NoArgs,
	RunE:  runAuthShow,
}

var authDeleteCmd = &cobra.Command{
	Use:   "delete [provider]",
	Short: "Remove a stored key",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAuthDelete,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authSetCmd, authShowCmd, authDeleteCmd)
	authDeleteCmd.Flags().BoolVarP(&authYes, "yes", "y", false, "do not ask for confirmation")
}

// providerArg returns the provider named on the command line or the
// configured one
func providerArg(args []string) string {
	if len(args) > 0 {
		return strings.ToLower(strings.TrimSpace(args[0]))
	}
	if cfg, err := loadConfig(nil); err == nil {
		return cfg.Analysis.Provider
	}
	return config.DefaultConfig().Analysis.Provider
}

func runAuthSet(cmd *cobra.Command, args []string) error {
	provider := providerArg(args)
	if !auth.NeedsKey(provider) {
		ui.PrintInfo(provider, "no API key needed")
		return nil
	}

	manager, err := auth.NewManager("")
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	auth.ShowKeyGuide(ui.Out, provider)

	if existing, _ := manager.Retrieve(provider); existing != nil {
		if !confirm(fmt.Sprintf("A key for %s is already stored. Replace it?", provider)) {
			return nil
		}
	}

	fmt.Fprint(ui.Out, "API key: ")
	key, err := readPassword()
	if err != nil {
		return fmt.Errorf("failed to read API key: %w", err)
	}

	cred := &auth.Credential{Provider: provider, APIKey: key}
	if err := manager.Store(cred); err != nil {
		return err
	}

	ui.PrintSuccess("Key stored for " + provider)
	ui.PrintInfo("Key", auth.Sanitize(cred).APIKey)
	if auth.IsKeyringAvailable() {
		ui.PrintInfo("Store", "system keychain")
	} else {
		ui.PrintInfo("Store", "encrypted file")
	}
	return nil
}

func runAuthShow(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager("")
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	creds, err := manager.List()
	if err != nil {
		return err
	}
	if len(creds) == 0 {
		ui.PrintInfo("Stored keys", "none, use 'hyperdrive auth set' to add one")
		return nil
	}

	ui.PrintHighlight("Stored keys")
	for _, cred := range creds {
		s := auth.Sanitize(cred)
		modified := "from environment"
		if !s.LastModified.IsZero() {
			modified = s.LastModified.Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(ui.Out, "  %-10s %s  %s\n", s.Provider, s.APIKey, ui.Dim(modified))
	}
	return nil
}

func runAuthDelete(cmd *cobra.Command, args []string) error {
	provider := providerArg(args)

	manager, err := auth.NewManager("")
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	if !authYes && !confirm(fmt.Sprintf("Remove the stored key for %s?", provider)) {
		return nil
	}

	if err := manager.Delete(provider); err != nil {
		if errors.Is(err, auth.ErrCredentialsNotFound) {
			ui.PrintWarning("No stored key for " + provider)
			return nil
		}
		return err
	}
	ui.PrintSuccess("Key removed for " + provider)
	return nil
}

// confirm asks a yes/no question on stdin, defaulting to no
func confirm(question string) bool {
	fmt.Fprintf(ui.Out, "%s (y/N): ", question)
	reader := bufio.NewReader(os.Stdin)
	input, _ := reader.ReadString('\n')
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y")
}

// readPassword reads a secret from stdin without echoing
func readPassword() (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		secret, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(ui.Out)
		if err == nil {
			return strings.TrimSpace(string(secret)), nil
		}
	}

	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
