package identity

import (
	"context"
	"strings"

	"hyperdrive/internal/command"
	"hyperdrive/pkg/config"
	"hyperdrive/pkg/logger"
)

// Source controls the egress identity (VPN exit) the proxy is reached through
type Source interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	SetLocation(ctx context.Context, country string) error
	Reconnect(ctx context.Context) error
	Status(ctx context.Context) (string, error)
}

// MullvadCLI drives the Mullvad command-line client
type MullvadCLI struct {
	path   string
	runner command.Runner
	logger logger.Logger
}

// NewMullvadCLI creates a Source backed by the mullvad binary at path
func NewMullvadCLI(path string, runner command.Runner, log logger.Logger) *MullvadCLI {
	if log == nil {
		log = logger.GetLogger()
	}
	return &MullvadCLI{path: path, runner: runner, logger: log}
}

func (m *MullvadCLI) run(ctx context.Context, args ...string) (string, error) {
	out, err := m.runner.Run(ctx, "", m.path, args...)
	return strings.TrimSpace(string(out)), err
}

func (m *MullvadCLI) Connect(ctx context.Context) error {
	_, err := m.run(ctx, "connect")
	return err
}

func (m *MullvadCLI) Disconnect(ctx context.Context) error {
	_, err := m.run(ctx, "disconnect")
	return err
}

// SetLocation selects the relay country used by the next connection
func (m *MullvadCLI) SetLocation(ctx context.Context, country string) error {
	_, err := m.run(ctx, "relay", "set", "location", country)
	return err
}

// Reconnect reconnects and waits for the tunnel to come up
func (m *MullvadCLI) Reconnect(ctx context.Context) error {
	_, err := m.run(ctx, "reconnect", "--wait")
	return err
}

func (m *MullvadCLI) Status(ctx context.Context) (string, error) {
	return m.run(ctx, "status")
}

// Disabled is a Source that does nothing, for hosts without a VPN
type Disabled struct{}

func (Disabled) Connect(context.Context) error             { return nil }
func (Disabled) Disconnect(context.Context) error          { return nil }
func (Disabled) SetLocation(context.Context, string) error { return nil }
func (Disabled) Reconnect(context.Context) error           { return nil }
func (Disabled) Status(context.Context) (string, error)    { return "disabled", nil }

// FromConfig returns the configured Source
func FromConfig(cfg *config.IdentityConfig, runner command.Runner, log logger.Logger) Source {
	if !cfg.Enabled {
		return Disabled{}
	}
	return NewMullvadCLI(cfg.CLIPath, runner, log)
}
