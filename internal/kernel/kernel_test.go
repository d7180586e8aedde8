package kernel

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/dnx-rtos/kernel/internal/demo/nulldev"
	_ "github.com/dnx-rtos/kernel/internal/demo/programs"
	_ "github.com/dnx-rtos/kernel/internal/demo/ramfs"
	"github.com/dnx-rtos/kernel/internal/kernel/process"
	"github.com/dnx-rtos/kernel/internal/kernel/register"
)

func bootTestSystem(t *testing.T) *System {
	t.Helper()
	cfg := DefaultConfig()
	cfg.DiagDBPath = filepath.Join(t.TempDir(), "diag.db")

	sys, err := Boot(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { sys.Shutdown() })
	return sys
}

func TestBootMountsRootAndRegistersDrivers(t *testing.T) {
	sys := bootTestSystem(t)

	assert.NotEqual(t, 0, len(sys.Drivers.Names()))
	assert.Contains(t, sys.Drivers.Names(), "nulldev")

	_, err := sys.VFS.Stat("/")
	assert.NoError(t, err)
}

func TestSpawnRunsRegisteredProgramToCompletion(t *testing.T) {
	sys := bootTestSystem(t)

	proc, err := sys.Spawn(process.PID(0), []string{"sum", "1", "2", "3"}, "/")
	require.NoError(t, err)

	code, err := proc.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, code)
}

func TestSpawnUnknownProgramFails(t *testing.T) {
	sys := bootTestSystem(t)

	_, err := sys.Spawn(process.PID(0), []string{"no-such-program"}, "/")
	assert.Error(t, err)
}

func TestRegisteredProgramNamesIncludeDemoSet(t *testing.T) {
	bootTestSystem(t)

	names := register.ProgramNames()
	assert.Contains(t, names, "echo")
	assert.Contains(t, names, "sum")
	assert.Contains(t, names, "false")
}
