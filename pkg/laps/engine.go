package laps

import (
	"fmt"

	"github.com/golang/glog"
)

// Discipline selects how start and finish events are attributed to laps.
type Discipline int

// Disciplines.
const (
	// NoTiming ignores all events.
	NoTiming Discipline = iota
	// LapTimer uses one sensor, each event closes the open lap and opens the next.
	LapTimer
	// SingleSensorRun uses one sensor, events alternate between start and finish.
	SingleSensorRun
	// DualSensorRun uses separate start and finish sensors for one competitor.
	DualSensorRun
	// MultiRider uses separate sensors and lets several competitors run at once,
	// finishing in start order.
	MultiRider
)

func (d Discipline) String() string {
	switch d {
	case NoTiming:
		return "none"
	case LapTimer:
		return "lap-timer"
	case SingleSensorRun:
		return "single-sensor-run"
	case DualSensorRun:
		return "dual-sensor-run"
	case MultiRider:
		return "multi-rider"
	}
	return fmt.Sprintf("discipline(%d)", int(d))
}

// Engine owns the lap ring and its cursors.
// It is driven from the poll loop and is not safe for concurrent use.
type Engine struct {
	discipline Discipline
	laps       [Capacity]Lap

	current     Index // oldest open lap
	previous    Index // most recently finished lap
	lastStarted Index // most recently opened lap

	finished  bool
	started   bool
	startedAt Index
}

// NewEngine creates an Engine running the given discipline.
func NewEngine(d Discipline) *Engine {
	e := &Engine{discipline: d}
	e.Reset()
	return e
}

// Discipline returns the active discipline.
func (e *Engine) Discipline() Discipline {
	return e.discipline
}

// SetDiscipline switches discipline. All recorded laps are dropped
// when the discipline changes.
func (e *Engine) SetDiscipline(d Discipline) {
	if d == e.discipline {
		return
	}
	glog.V(2).Infof("laps: discipline %s -> %s", e.discipline, d)
	e.discipline = d
	e.Reset()
}

// Reset clears every slot and cursor.
func (e *Engine) Reset() {
	e.laps = [Capacity]Lap{}
	e.current, e.previous, e.lastStarted = NoIndex, NoIndex, NoIndex
	e.finished, e.started, e.startedAt = false, false, NoIndex
	switch e.discipline {
	case SingleSensorRun, DualSensorRun:
		e.current = 0
	}
}

// OnStart applies a start sensor event. Single sensor disciplines
// receive all their events here.
func (e *Engine) OnStart(ts uint32) {
	switch e.discipline {
	case LapTimer:
		e.nextLap(ts)
	case SingleSensorRun:
		if e.current.IsSet() && e.laps[e.current].IsRunning() {
			e.finishRun(ts)
		} else {
			e.startRun(ts)
		}
	case DualSensorRun:
		e.startRun(ts)
	case MultiRider:
		e.startRider(ts)
	}
}

// OnFinish applies a finish sensor event.
func (e *Engine) OnFinish(ts uint32) {
	switch e.discipline {
	case LapTimer:
		if e.isOpen(e.current) {
			e.close(e.current, ts)
		}
	case SingleSensorRun, DualSensorRun:
		e.finishRun(ts)
	case MultiRider:
		e.finishRider(ts)
	}
}

func (e *Engine) nextLap(ts uint32) {
	if e.isOpen(e.current) {
		e.close(e.current, ts)
	}
	e.current = e.nextSlot(e.current)
	e.open(e.current, ts)
}

func (e *Engine) startRun(ts uint32) {
	if !e.current.IsSet() || !e.laps[e.current].IsValid() {
		e.prepareRun()
	}
	if e.laps[e.current].Start == 0 {
		e.open(e.current, ts)
	}
}

func (e *Engine) finishRun(ts uint32) {
	if !e.current.IsSet() || !e.laps[e.current].IsRunning() {
		return
	}
	e.close(e.current, ts)
	e.prepareRun()
}

// prepareRun moves current to a cleared slot waiting for the next start.
func (e *Engine) prepareRun() {
	e.current = e.nextSlot(e.current)
	e.laps[e.current] = Lap{}
}

func (e *Engine) startRider(ts uint32) {
	busy := e.ridersOut()
	if busy >= MaxSimultaneousRiders {
		glog.V(2).Infof("laps: start at %d dropped, %d riders out", ts, busy)
		return
	}
	i := e.lastStarted.Next()
	for n := 0; n < Capacity; n++ {
		if busy > 0 && i == e.current {
			glog.V(2).Infof("laps: start at %d dropped, no free slot", ts)
			return
		}
		if e.laps[i].IsValid() {
			break
		}
		i = i.Next()
	}
	e.open(i, ts)
	e.lastStarted = i
	if busy == 0 {
		e.current = i
	}
}

func (e *Engine) finishRider(ts uint32) {
	if !e.current.IsSet() || !e.lastStarted.IsSet() {
		return
	}
	i := e.current
	for !e.isOpen(i) {
		if i == e.lastStarted {
			e.current = i
			return
		}
		i = i.Next()
	}
	e.close(i, ts)
	e.current = i
	for e.current != e.lastStarted && !e.isOpen(e.current) {
		e.current = e.current.Next()
	}
}

// ridersOut counts open laps from current through lastStarted.
func (e *Engine) ridersOut() int {
	if !e.current.IsSet() || !e.lastStarted.IsSet() {
		return 0
	}
	var n int
	i := e.current
	for step := 0; step < Capacity; step++ {
		if e.isOpen(i) {
			n++
		}
		if i == e.lastStarted {
			break
		}
		i = i.Next()
	}
	return n
}

// isOpen reports whether slot i holds a started, unfinished lap.
// Lap timer and multi rider slots are only ever reached through an
// opening event, so a zero start timestamp is a real start there.
func (e *Engine) isOpen(i Index) bool {
	if !i.IsSet() {
		return false
	}
	l := e.laps[i]
	switch e.discipline {
	case LapTimer, MultiRider:
		return l.IsValid() && l.End == 0
	}
	return l.IsRunning()
}

// nextSlot returns the first valid slot after from. When every slot
// is invalidated the one right after from is reused.
func (e *Engine) nextSlot(from Index) Index {
	i := from.Next()
	for n := 0; n < Capacity; n++ {
		if e.laps[i].IsValid() {
			return i
		}
		i = i.Next()
	}
	return from.Next()
}

func (e *Engine) open(i Index, ts uint32) {
	e.laps[i] = Lap{Start: ts}
	e.started, e.startedAt = true, i
}

func (e *Engine) close(i Index, ts uint32) {
	e.laps[i].End = ts
	e.previous = i
	e.finished = true
}

// Current returns the oldest open lap.
func (e *Engine) Current() (Index, bool) {
	return e.current, e.current.IsSet()
}

// Previous returns the most recently finished lap.
func (e *Engine) Previous() (Index, bool) {
	return e.previous, e.previous.IsSet()
}

// LastStarted returns the most recently started lap in multi rider runs.
func (e *Engine) LastStarted() (Index, bool) {
	return e.lastStarted, e.lastStarted.IsSet()
}

// Lap returns a copy of slot i.
func (e *Engine) Lap(i Index) Lap {
	if !i.IsSet() {
		return Lap{}
	}
	return e.laps[i]
}

// Laps returns a copy of the whole ring.
func (e *Engine) Laps() [Capacity]Lap {
	return e.laps
}

// DurationMs returns the duration of a finished lap, 0 otherwise.
func (e *Engine) DurationMs(i Index) uint32 {
	return e.Lap(i).DurationMs()
}

// RunningCount returns the number of laps currently open.
func (e *Engine) RunningCount() int {
	if e.discipline == MultiRider {
		return e.ridersOut()
	}
	if e.isOpen(e.current) {
		return 1
	}
	return 0
}

// IsFirstLap reports a lap is open and none has finished yet.
func (e *Engine) IsFirstLap() bool {
	return !e.previous.IsSet() && e.RunningCount() > 0
}

// Invalidate marks slot i to be skipped. History in other slots is kept.
func (e *Engine) Invalidate(i Index) {
	if !i.IsSet() {
		return
	}
	glog.V(2).Infof("laps: slot %d invalidated (%s)", i, e.laps[i])
	e.laps[i] = Lap{Start: Invalid, End: Invalid}
}

// TakeFinished returns the lap finished since the last call.
func (e *Engine) TakeFinished() (Index, bool) {
	if !e.finished {
		return NoIndex, false
	}
	e.finished = false
	return e.previous, true
}

// TakeStarted returns the lap opened since the last call.
func (e *Engine) TakeStarted() (Index, bool) {
	if !e.started {
		return NoIndex, false
	}
	e.started = false
	return e.startedAt, e.startedAt.IsSet()
}
