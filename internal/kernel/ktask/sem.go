package ktask

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"

	"github.com/dnx-rtos/kernel/internal/kernel/kerrors"
)

// Semaphore is a counting semaphore, grounded on kwrapper.h's
// _semaphore_create(max, initial, ...)/_semaphore_wait/_semaphore_signal.
// golang.org/x/sync/semaphore.Weighted already implements a weighted
// counting semaphore with context-aware acquire, so this type is a thin
// unit-weight adapter giving it the facade's create/wait/signal/get-value
// vocabulary. current is tracked separately with atomics since Weighted
// exposes no query of its own.
type Semaphore struct {
	w       *semaphore.Weighted
	max     int64
	current int64
	mu      sync.Mutex
}

// NewSemaphore creates a semaphore with the given max count and initial
// value, matching _semaphore_create's (max, initial) argument order.
func NewSemaphore(max, initial int) (*Semaphore, error) {
	if max <= 0 || initial < 0 || initial > max {
		return nil, kerrors.New("ktask.NewSemaphore", kerrors.KindInvalidArgument)
	}
	s := &Semaphore{w: semaphore.NewWeighted(int64(max)), max: int64(max), current: int64(initial)}
	if held := int64(max) - int64(initial); held > 0 {
		if err := s.w.Acquire(context.Background(), held); err != nil {
			return nil, errors.Wrap(err, "ktask: semaphore init")
		}
	}
	return s, nil
}

// Wait blocks (optionally with a timeout via ctx) until a unit is
// available, decrementing the count -- _semaphore_wait.
func (s *Semaphore) Wait(ctx context.Context) error {
	if err := s.w.Acquire(ctx, 1); err != nil {
		return errors.Wrap(err, "ktask: semaphore wait")
	}
	atomic.AddInt64(&s.current, -1)
	return nil
}

// Signal releases a unit, incrementing the count up to max --
// _semaphore_signal. Signaling past max is a programmer error in the
// original and panics here rather than silently clamping.
func (s *Semaphore) Signal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current >= s.max {
		panic("ktask: semaphore signaled past max count")
	}
	s.current++
	s.w.Release(1)
}

// Value reports the current count -- _semaphore_get_value.
func (s *Semaphore) Value() int {
	return int(atomic.LoadInt64(&s.current))
}
