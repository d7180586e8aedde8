package process

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpawnWaitExitCode(t *testing.T) {
	table := NewTable()
	p := table.Spawn(0, []string{"worker"}, "/", func(ctx context.Context, proc *Process) {
		proc.Exit(7)
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	code, err := p.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, code)
}

func TestSpawnDefaultExitCodeIsZero(t *testing.T) {
	table := NewTable()
	p := table.Spawn(0, []string{"noop"}, "/", func(ctx context.Context, proc *Process) {})

	code, err := p.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, code)
}

func TestTableGetAndRemove(t *testing.T) {
	table := NewTable()
	p := table.Spawn(0, []string{"x"}, "/", func(ctx context.Context, proc *Process) {
		<-ctx.Done()
	})

	got, ok := table.Get(p.PID())
	require.True(t, ok)
	assert.Same(t, p, got)

	p.Kill()
	_, _ = p.Wait(context.Background())
	table.Remove(p.PID())
	_, ok = table.Get(p.PID())
	assert.False(t, ok)
}

func TestTokenizeArgvHonorsQuotes(t *testing.T) {
	argv := TokenizeArgv(`cp "my file.txt" dest`)
	assert.Equal(t, []string{"cp", "my file.txt", "dest"}, argv)
}

func TestCwdGetSet(t *testing.T) {
	table := NewTable()
	p := table.Spawn(0, nil, "/home", func(ctx context.Context, proc *Process) {
		<-ctx.Done()
	})
	defer p.Kill()
	assert.Equal(t, "/home", p.Cwd())
	p.SetCwd("/tmp")
	assert.Equal(t, "/tmp", p.Cwd())
}

func TestCPUSamplerTracksUsage(t *testing.T) {
	s := NewCPUSampler()
	s.Sample(PID(1), 0.42)
	assert.InDelta(t, 0.42, s.UsageFraction(PID(1)), 0.0001)
	assert.Equal(t, 0.0, s.UsageFraction(PID(2)))
}
