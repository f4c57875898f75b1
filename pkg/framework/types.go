package framework

import (
	"context"
	"time"
)

// Named is an abstraction for things with a name.
type Named interface {
	Name() string
}

// Runnable defines a generic interface for background runners.
type Runnable interface {
	Run(context.Context) error
}

// RunFunc is the func form of Runnable.
type RunFunc func(context.Context) error

// Run implements Runnable.
func (f RunFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Controller defines the logic polled once per loop iteration.
// A Controller must never block.
type Controller interface {
	Control(ControlContext) error
}

// ControlFunc defines the func form of Controller.
type ControlFunc func(ControlContext) error

// Control implements Controller.
func (f ControlFunc) Control(ctx ControlContext) error {
	return f(ctx)
}

// Clock provides a millisecond time base. The value wraps around
// at 2^32, so elapsed time must be computed with unsigned subtraction.
type Clock interface {
	NowMs() uint32
}

// ClockFunc is the func form of Clock.
type ClockFunc func() uint32

// NowMs implements Clock.
func (f ClockFunc) NowMs() uint32 {
	return f()
}

type monotonicClock struct {
	epoch time.Time
}

// NewMonotonicClock creates a Clock counting milliseconds since now.
func NewMonotonicClock() Clock {
	return &monotonicClock{epoch: time.Now()}
}

func (c *monotonicClock) NowMs() uint32 {
	return uint32(time.Since(c.epoch) / time.Millisecond)
}

// ElapsedMs returns the milliseconds passed from since to now.
func ElapsedMs(now, since uint32) uint32 {
	return now - since
}

// ControlContext provides the context of current control
// iteration.
type ControlContext interface {
	// Context retrieves context.Context.
	Context() context.Context
	// NowMs is the time sampled when this iteration started.
	NowMs() uint32
	// PriorityLevel gets the current priority level.
	PriorityLevel() int
	// PostRun injects post-run one-shot hooks at current
	// priority level. If called in post-run hooks, new hooks
	// are installed for next iteration.
	PostRun(hooks ...Controller)

	LoopControl
}

// PriorityLevels is the total levels of priorities.
const PriorityLevels int = 16

// Predefine priority levels
const (
	PrLvTop    int = 0
	PrLvHigh   int = 4
	PrLvNormal int = 8
	PrLvLow    int = 12
	PrLvIdle   int = PriorityLevels - 1

	// PrLvSense is the alias of priority level for draining sensors.
	PrLvSense = PrLvHigh
	// PrLvControl is the alias of priority level for protocol handling.
	PrLvControl = PrLvNormal
	// PrLvAcuate is the alias of priority level for outputs (display, pushes).
	PrLvAcuate = PrLvLow
	// PrLvPostProc is the alias of priority level for post-processing.
	PrLvPostProc = PrLvIdle - 1
)

// LoopControl exposes access to the polling loop.
type LoopControl interface {
	// PostRunAt injects one-shot post-run controller hooks at
	// specified priority level.
	PostRunAt(priorityLevel int, controllers ...Controller)
	// TriggerNext schedules the next iteration to be executed
	// immediately after the current iteration.
	TriggerNext()
}
