package util

import (
	"sync/atomic"
	"time"
)

// Clock abstracts the execution environment's notion of time so settlement
// timestamps are injectable in tests.
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// FakeClock returns a fixed instant and advances only when told to.
type FakeClock struct {
	unix atomic.Int64
}

func NewFakeClock(unix int64) *FakeClock {
	c := &FakeClock{}
	c.unix.Store(unix)
	return c
}

func (c *FakeClock) Now() time.Time          { return time.Unix(c.unix.Load(), 0) }
func (c *FakeClock) Advance(d time.Duration) { c.unix.Add(int64(d / time.Second)) }
