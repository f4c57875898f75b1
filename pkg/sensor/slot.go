package sensor

import (
	"sync"
	"sync/atomic"
	"time"
)

// Source is drained by the poll loop once per cycle.
type Source interface {
	DrainStart() (uint32, bool)
	DrainFinish() (uint32, bool)
}

// Slot hands one timestamp from a single producer (edge capture)
// to the poll loop. A newer capture replaces one not yet drained.
type Slot struct {
	pending uint32
	lock    sync.Mutex
	ts      uint32
}

// Capture stores ts and raises the pending flag. Producer side.
func (s *Slot) Capture(ts uint32) {
	s.lock.Lock()
	s.ts = ts
	atomic.StoreUint32(&s.pending, 1)
	s.lock.Unlock()
}

// Drain returns the pending timestamp and clears the flag.
// The lock is held only for the copy.
func (s *Slot) Drain() (uint32, bool) {
	if atomic.LoadUint32(&s.pending) == 0 {
		return 0, false
	}
	s.lock.Lock()
	ts := s.ts
	atomic.StoreUint32(&s.pending, 0)
	s.lock.Unlock()
	return ts, true
}

// Pending reports whether a capture is waiting.
func (s *Slot) Pending() bool {
	return atomic.LoadUint32(&s.pending) != 0
}

// Inputs is the start/finish slot pair.
type Inputs struct {
	Start  Slot
	Finish Slot
}

// DrainStart implements Source.
func (in *Inputs) DrainStart() (uint32, bool) {
	return in.Start.Drain()
}

// DrainFinish implements Source.
func (in *Inputs) DrainFinish() (uint32, bool) {
	return in.Finish.Drain()
}

// TickDuration is the resolution of sensor timestamps.
const TickDuration = 100 * time.Microsecond

// Ticker produces sensor timestamps.
type Ticker interface {
	Ticks() uint32
}

// TickClock counts TickDuration units since creation, starting at 1
// so a timestamp is never 0.
type TickClock struct {
	epoch time.Time
}

// NewTickClock creates a TickClock.
func NewTickClock() *TickClock {
	return &TickClock{epoch: time.Now().Add(-TickDuration)}
}

// Ticks implements Ticker.
func (c *TickClock) Ticks() uint32 {
	return uint32(time.Since(c.epoch) / TickDuration)
}

// NowMs returns the clock in milliseconds.
func (c *TickClock) NowMs() uint32 {
	return uint32(time.Since(c.epoch) / time.Millisecond)
}
