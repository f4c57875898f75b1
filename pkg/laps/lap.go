package laps

import "fmt"

const (
	// Capacity is the number of lap slots in the ring.
	Capacity = 32
	// MaxSimultaneousRiders bounds the laps running at once in multi-rider runs.
	MaxSimultaneousRiders = 10
	// Invalid marks a slot that must be skipped.
	Invalid uint32 = 0xFFFFFFFF
	// TicksPerMs is the number of timestamp ticks (100µs) per millisecond.
	TicksPerMs = 10
)

// Lap is one start to finish interval. Timestamps are in ticks,
// 0 means unset.
type Lap struct {
	Start uint32
	End   uint32
}

// IsValid reports whether the slot has not been invalidated.
func (l Lap) IsValid() bool {
	return l.Start != Invalid && l.End != Invalid
}

// IsEmpty reports whether nothing was recorded in the slot.
func (l Lap) IsEmpty() bool {
	return l.Start == 0 && l.End == 0
}

// IsRunning reports whether the lap has started but not finished.
func (l Lap) IsRunning() bool {
	return l.IsValid() && l.Start != 0 && l.End == 0
}

// IsFinished reports whether both timestamps are set.
func (l Lap) IsFinished() bool {
	return l.IsValid() && l.End != 0
}

// DurationMs returns the lap duration in milliseconds, or 0
// if the lap is not finished.
func (l Lap) DurationMs() uint32 {
	if !l.IsFinished() {
		return 0
	}
	return (l.End - l.Start) / TicksPerMs
}

func (l Lap) String() string {
	switch {
	case !l.IsValid():
		return "invalid"
	case l.IsEmpty():
		return "empty"
	case l.IsFinished():
		return fmt.Sprintf("%d-%d (%dms)", l.Start, l.End, l.DurationMs())
	default:
		return fmt.Sprintf("%d-", l.Start)
	}
}

// Index addresses a slot in the ring.
type Index uint8

// NoIndex is the unset cursor value.
const NoIndex Index = Capacity

// IsSet reports whether the index refers to a slot.
func (i Index) IsSet() bool {
	return i < Capacity
}

// Next returns the following slot, wrapping at Capacity.
// The slot after NoIndex is 0.
func (i Index) Next() Index {
	if !i.IsSet() {
		return 0
	}
	return (i + 1) % Capacity
}
