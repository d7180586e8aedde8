package ktask

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// MutexType distinguishes recursive from normal mutexes --
// kwrapper.h's enum mutex_type.
type MutexType int

const (
	MutexNormal MutexType = iota
	MutexRecursive
)

// Mutex wraps sync.Mutex with a recursive mode, grounded on
// _mutex_create(type,...)/_mutex_lock/_mutex_unlock. Go's sync.Mutex has no
// native recursive variant, so MutexRecursive tracks the owning goroutine's
// task id and a depth counter instead -- the same trick FreeRTOS's own
// recursive mutex uses internally (owner handle + nesting count).
type Mutex struct {
	typ   MutexType
	mu    sync.Mutex
	state sync.Mutex // guards owner and depth
	owner uint64     // valid only for MutexRecursive, 0 == unheld
	depth int
}

func NewMutex(typ MutexType) *Mutex {
	return &Mutex{typ: typ}
}

// Lock acquires the mutex, blocking until ctx is done or, for a timed wait,
// the deadline on ctx expires -- _mutex_lock(mutex, timeout).
func (m *Mutex) Lock(ctx context.Context, owner uint64) error {
	if m.typ == MutexRecursive {
		m.state.Lock()
		if m.owner == owner && m.depth > 0 {
			m.depth++
			m.state.Unlock()
			return nil
		}
		m.state.Unlock()
	}

	done := make(chan struct{})
	go func() {
		m.mu.Lock()
		close(done)
	}()
	select {
	case <-done:
		if m.typ == MutexRecursive {
			m.state.Lock()
			m.owner = owner
			m.depth = 1
			m.state.Unlock()
		}
		return nil
	case <-ctx.Done():
		// The lock may still be granted concurrently with cancellation;
		// spin off a releaser so the goroutine above doesn't leak the
		// lock forever once it does acquire it.
		go func() {
			<-done
			m.mu.Unlock()
		}()
		return errors.Wrap(ctx.Err(), "ktask: mutex lock")
	}
}

// Unlock releases the mutex -- _mutex_unlock. Unlocking a mutex the caller
// doesn't hold is a programmer error and panics, matching the original's
// "must be called by the owning task" contract.
func (m *Mutex) Unlock(owner uint64) {
	if m.typ == MutexRecursive {
		m.state.Lock()
		if m.owner != owner {
			m.state.Unlock()
			panic("ktask: recursive mutex unlocked by non-owner")
		}
		m.depth--
		if m.depth > 0 {
			m.state.Unlock()
			return
		}
		m.owner = 0
		m.state.Unlock()
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()
}
