package ktime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeSource struct{ now time.Time }

func (f *fakeSource) Now() time.Time { return f.now }

func TestSetTimeRebasesOffset(t *testing.T) {
	src := &fakeSource{now: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)}
	clk := NewWithSource(src)

	target := time.Date(2030, 6, 15, 12, 0, 0, 0, time.UTC)
	clk.SetTime(target)
	assert.WithinDuration(t, target, clk.Now(), time.Millisecond)

	src.now = src.now.Add(5 * time.Second)
	assert.WithinDuration(t, target.Add(5*time.Second), clk.Now(), time.Millisecond)
}

func TestUptimeSinceRebaseGrowsAfterSetTime(t *testing.T) {
	clk := NewWithSource(&fakeSource{now: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)})
	clk.SetTime(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	first := clk.UptimeSinceRebase()
	time.Sleep(5 * time.Millisecond)
	second := clk.UptimeSinceRebase()
	assert.GreaterOrEqual(t, second, first)
}
