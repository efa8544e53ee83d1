package identity

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hyperdrive/internal/command"
	"hyperdrive/pkg/config"
	"hyperdrive/pkg/logger"
)

func TestMullvadCLICommands(t *testing.T) {
	runner := &command.RecordingRunner{
		Output: func(c command.Call) ([]byte, error) {
			if len(c.Args) > 0 && c.Args[0] == "status" {
				return []byte("Connected to se-got-wg-001\n"), nil
			}
			return nil, nil
		},
	}
	m := NewMullvadCLI("/usr/bin/mullvad", runner, logger.NewTestLogger())
	ctx := context.Background()

	require.NoError(t, m.Connect(ctx))
	require.NoError(t, m.SetLocation(ctx, "se"))
	require.NoError(t, m.Reconnect(ctx))
	require.NoError(t, m.Disconnect(ctx))
	status, err := m.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Connected to se-got-wg-001", status)

	assert.Equal(t, []string{
		"/usr/bin/mullvad connect",
		"/usr/bin/mullvad relay set location se",
		"/usr/bin/mullvad reconnect --wait",
		"/usr/bin/mullvad disconnect",
		"/usr/bin/mullvad status",
	}, runner.Lines())
}

func TestFromConfig(t *testing.T) {
	cfg := config.DefaultConfig().Identity
	cfg.Enabled = false
	src := FromConfig(&cfg, &command.RecordingRunner{}, nil)
	assert.IsType(t, Disabled{}, src)

	status, err := src.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "disabled", status)

	cfg.Enabled = true
	assert.IsType(t, &MullvadCLI{}, FromConfig(&cfg, &command.RecordingRunner{}, nil))
}

func TestLockExcludesSecondHolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locks", "identity.lock")
	l := NewLock(path)

	release, err := l.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	_, err = NewLock(path).Acquire(ctx)
	assert.Error(t, err, "second holder must wait while the lock is held")

	require.NoError(t, release())

	release2, err := NewLock(path).Acquire(context.Background())
	require.NoError(t, err)
	assert.NoError(t, release2())
}

func TestEmptyLockPathNeverBlocks(t *testing.T) {
	l := NewLock("")
	r1, err := l.Acquire(context.Background())
	require.NoError(t, err)
	r2, err := l.Acquire(context.Background())
	require.NoError(t, err)
	assert.NoError(t, r1())
	assert.NoError(t, r2())
}
