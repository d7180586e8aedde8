package syscall

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dnx-rtos/kernel/internal/kernel/process"
)

func runDispatcher(t *testing.T, d *Dispatcher) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go d.Run(ctx)
	return cancel
}

func TestSubmitRoutesToRegisteredHandler(t *testing.T) {
	d := NewDispatcher(nil)
	d.Register(ProcessGetPID, func(ctx context.Context, p *process.Process, args []interface{}) (interface{}, error) {
		return p.PID(), nil
	})
	cancel := runDispatcher(t, d)
	defer cancel()

	table := process.NewTable()
	proc := table.Spawn(0, []string{"x"}, "/", func(ctx context.Context, p *process.Process) { <-ctx.Done() })
	defer proc.Kill()

	ctx, done := context.WithTimeout(context.Background(), time.Second)
	defer done()
	v, err := d.Submit(ctx, ProcessGetPID, proc)
	require.NoError(t, err)
	assert.Equal(t, proc.PID(), v)
}

func TestSubmitUnregisteredNumberFails(t *testing.T) {
	d := NewDispatcher(nil)
	cancel := runDispatcher(t, d)
	defer cancel()

	ctx, done := context.WithTimeout(context.Background(), time.Second)
	defer done()
	_, err := d.Submit(ctx, ProcessGetPID, nil)
	assert.Error(t, err)
}

func TestHandlerPanicRecoveredAsError(t *testing.T) {
	d := NewDispatcher(nil)
	d.Register(Mount, func(ctx context.Context, p *process.Process, args []interface{}) (interface{}, error) {
		panic("boom")
	})
	cancel := runDispatcher(t, d)
	defer cancel()

	ctx, done := context.WithTimeout(context.Background(), time.Second)
	defer done()
	_, err := d.Submit(ctx, Mount, nil)
	assert.Error(t, err)
}

func TestSubmitBlocksWhenQueueFullThenCancels(t *testing.T) {
	d := NewDispatcher(nil) // no Run goroutine started: nothing drains the queue
	for i := 0; i < queueDepth; i++ {
		go func() { _, _ = d.Submit(context.Background(), ProcessGetPID, nil) }()
	}
	time.Sleep(20 * time.Millisecond) // let the fillers occupy every queue slot

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := d.Submit(ctx, ProcessGetPID, nil)
	assert.Error(t, err)
}

func TestNumberString(t *testing.T) {
	assert.Equal(t, "open", Open.String())
}
