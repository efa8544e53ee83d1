package tui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
)

// Run shows the dashboard until the user quits or ctx is cancelled
func Run(ctx context.Context, source Source, opts Options) error {
	model := NewModel(ctx, source, opts)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	_, err := program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
