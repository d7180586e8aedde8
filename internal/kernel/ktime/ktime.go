// Package ktime is the kernel's wall-clock layer, grounded on
// kernel/time.c (original_source): kernel uptime comes for free from
// ktask.Ticks(), but wall-clock time additionally needs a settable,
// possibly RTC-backed "now" that drifts independently of process restarts.
package ktime

import (
	"sync"
	"time"

	"github.com/dnx-rtos/kernel/internal/kernel/ktask"
)

// Source is the pluggable backing clock -- on real hardware this is an RTC
// device behind a file handle (time.c opens "RTC" through the VFS); on a
// hosted build it is simply the host clock, but the interface keeps tests
// able to substitute a fake one.
type Source interface {
	Now() time.Time
}

type systemSource struct{}

func (systemSource) Now() time.Time { return time.Now() }

// Clock tracks wall-clock time as an offset from a Source, so SetTime can
// rebase the kernel's idea of "now" (e.g. after an NTP sync or a user
// `date` call) without needing a writable RTC in tests.
type Clock struct {
	mu     sync.RWMutex
	src    Source
	offset time.Duration // added to src.Now() to produce Now()
	bootMs uint64        // ktask.Ticks() value at the moment offset was fixed
}

// New builds a Clock against the host system clock.
func New() *Clock {
	return &Clock{src: systemSource{}}
}

// NewWithSource builds a Clock against a caller-supplied Source, for tests.
func NewWithSource(src Source) *Clock {
	return &Clock{src: src}
}

// Now returns the kernel's current wall-clock time.
func (c *Clock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.src.Now().Add(c.offset)
}

// SetTime rebases the clock so that Now() returns t at the instant of the
// call, mirroring settimeofday-style RTC writes in the original.
func (c *Clock) SetTime(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offset = t.Sub(c.src.Now())
	c.bootMs = ktask.Ticks()
}

// UptimeSinceRebase reports how long the clock has held its current offset, in
// milliseconds -- the hosted analogue of time.c's last_sec/last_msec/usec
// bookkeeping, which exists there to detect RTC read staleness between
// successive samples.
func (c *Clock) UptimeSinceRebase() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(ktask.Ticks()-c.bootMs) * time.Millisecond
}
