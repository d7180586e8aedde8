package ktask

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndWait(t *testing.T) {
	done := make(chan struct{})
	task := Create("worker", PriorityNormal, 1024, func(ctx context.Context) {
		close(done)
	})
	require.NoError(t, task.Wait(context.Background()))
	select {
	case <-done:
	default:
		t.Fatal("task body did not run before Wait returned")
	}
}

func TestDestroyCancelsContext(t *testing.T) {
	started := make(chan struct{})
	canceled := make(chan struct{})
	task := Create("cancelable", PriorityNormal, 1024, func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		close(canceled)
	})
	<-started
	task.Destroy()
	select {
	case <-canceled:
	case <-time.After(time.Second):
		t.Fatal("Destroy did not cancel the task's context")
	}
}

func TestPrioritySetGet(t *testing.T) {
	task := Create("prio", PriorityLowest, 1024, func(ctx context.Context) { <-ctx.Done() })
	defer task.Destroy()
	task.PrioritySet(PriorityHighest)
	assert.Equal(t, PriorityHighest, task.PriorityGet())
}

func TestSemaphore(t *testing.T) {
	sem, err := NewSemaphore(2, 0)
	require.NoError(t, err)
	sem.Signal()
	sem.Signal()
	assert.Equal(t, 2, sem.Value())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, sem.Wait(ctx))
	assert.Equal(t, 1, sem.Value())
}

func TestSemaphoreWaitTimesOut(t *testing.T) {
	sem, err := NewSemaphore(1, 0)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = sem.Wait(ctx)
	assert.Error(t, err)
}

func TestMutexRecursive(t *testing.T) {
	mu := NewMutex(MutexRecursive)
	ctx := context.Background()
	require.NoError(t, mu.Lock(ctx, 1))
	require.NoError(t, mu.Lock(ctx, 1))
	mu.Unlock(1)
	mu.Unlock(1)
}

func TestMutexUnlockByNonOwnerPanics(t *testing.T) {
	mu := NewMutex(MutexRecursive)
	require.NoError(t, mu.Lock(context.Background(), 1))
	assert.Panics(t, func() { mu.Unlock(2) })
}

func TestFlagWaitForBits(t *testing.T) {
	f := NewFlag()
	go func() {
		time.Sleep(10 * time.Millisecond)
		f.Set(0x3)
	}()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	bits, err := f.Wait(ctx, 0x3)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x3), bits&0x3)
}

func TestQueueSendReceive(t *testing.T) {
	q := NewQueue(2, 8)
	ctx := context.Background()
	require.NoError(t, q.Send(ctx, "a"))
	require.NoError(t, q.Send(ctx, "b"))
	assert.Equal(t, 0, q.SpaceAvailable())

	v, err := q.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", v)
}

func TestQueueReset(t *testing.T) {
	q := NewQueue(2, 8)
	require.NoError(t, q.Send(context.Background(), "x"))
	q.Reset()
	assert.Equal(t, 0, q.Len())
}

func TestSleepMsRespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := SleepMs(ctx, 1000)
	assert.Error(t, err)
}

func TestCriticalSectionSerializes(t *testing.T) {
	var counter int
	var wg sync.WaitGroup
	wg.Add(2)
	for i := 0; i < 2; i++ {
		go func() {
			defer wg.Done()
			CriticalSectionBegin()
			counter++
			CriticalSectionEnd()
		}()
	}
	wg.Wait()
	assert.Equal(t, 2, counter)
}
