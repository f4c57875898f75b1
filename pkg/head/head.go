// Package head assembles a timing head: sensors feed the lap engine,
// the dispatcher answers the companion and results reach the display
// and the broker.
package head

import (
	"fmt"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"

	bmsgs "github.com/robotalks/laptimer/pkg/bridge/msgs"
	"github.com/robotalks/laptimer/pkg/comm"
	"github.com/robotalks/laptimer/pkg/devices"
	"github.com/robotalks/laptimer/pkg/dispatch"
	fx "github.com/robotalks/laptimer/pkg/framework"
	"github.com/robotalks/laptimer/pkg/laps"
	"github.com/robotalks/laptimer/pkg/msgs"
	"github.com/robotalks/laptimer/pkg/sensor"
)

const (
	// ResultHoldMs is how long a finished lap stays on the display.
	ResultHoldMs = uint32(5000)
	// MaxSightingsPerCycle bounds sightings applied per loop iteration.
	MaxSightingsPerCycle = 8
)

// Publisher receives lap events and status updates.
type Publisher interface {
	PublishLap(*bmsgs.LapEvent) paho.Token
	PublishStatus(*bmsgs.HeadStatus) paho.Token
}

// Head owns every component of a timing head.
type Head struct {
	ID     string
	Clock  fx.Clock
	Source sensor.Source

	Engine     *laps.Engine
	Devices    *devices.Table
	Framer     *comm.Framer
	Dispatcher *dispatch.Dispatcher

	Display   Display
	Publisher Publisher
	Sightings <-chan devices.Sighting

	opMode     laps.OperationMode
	sensorMode laps.SensorMode

	status     bmsgs.HeadStatus
	statusSent bool

	adders  []fx.LoopAdder
	runners []fx.Runnable
}

// New creates a Head talking over t, with no operation selected.
func New(id string, t comm.Transport, src sensor.Source, clock fx.Clock, sensors laps.SensorMode) *Head {
	h := &Head{
		ID:         id,
		Clock:      clock,
		Source:     src,
		Engine:     laps.NewEngine(laps.NoTiming),
		Devices:    devices.NewTable(),
		Framer:     comm.NewFramer(t, clock),
		Display:    LogDisplay{},
		sensorMode: sensors,
	}
	h.Dispatcher = dispatch.New(h.Framer, h.Engine, h.Devices, h, clock)
	h.Dispatcher.UniqueID = UniqueID(id)
	if adder, ok := t.(fx.LoopAdder); ok {
		h.adders = append(h.adders, adder)
	}
	return h
}

// AddRunnable registers background runners started with the loop.
func (h *Head) AddRunnable(runners ...fx.Runnable) {
	h.runners = append(h.runners, runners...)
}

// OperationMode implements dispatch.Host.
func (h *Head) OperationMode() laps.OperationMode {
	return h.opMode
}

// SensorMode implements dispatch.Host.
func (h *Head) SensorMode() laps.SensorMode {
	return h.sensorMode
}

// SetOperationMode implements dispatch.Host. An accepted mode resets
// the lap engine.
func (h *Head) SetOperationMode(mode laps.OperationMode) error {
	if !laps.ModeAllowed(mode, h.sensorMode) {
		return fmt.Errorf("operation mode %s not allowed with %s", mode, h.sensorMode)
	}
	glog.Infof("head: operation mode %s -> %s", h.opMode, mode)
	h.opMode = mode
	h.Engine.SetDiscipline(laps.DisciplineFor(mode, h.sensorMode))
	h.Engine.Reset()
	return nil
}

// AddToLoop implements fx.LoopAdder.
func (h *Head) AddToLoop(loop *fx.Loop) {
	loop.Add(h.adders...)
	loop.AddRunnable(h.runners...)
	loop.AddController(fx.PrLvSense, fx.ControlFunc(h.sense))
	loop.AddController(fx.PrLvControl, fx.ControlFunc(h.observe), h.Dispatcher)
	loop.AddController(fx.PrLvAcuate, fx.ControlFunc(h.results))
}

// sense drains at most one start then one finish event.
func (h *Head) sense(fx.ControlContext) error {
	switch h.opMode {
	case laps.ConnectedTimestampCollector:
		h.collect()
	case laps.NoOperation:
		h.Source.DrainStart()
		h.Source.DrainFinish()
	default:
		if ts, ok := h.Source.DrainStart(); ok {
			h.Engine.OnStart(ts)
		}
		if ts, ok := h.Source.DrainFinish(); ok {
			h.Engine.OnFinish(ts)
		}
	}
	return nil
}

// collect forwards one sensor event once the previous one was pushed.
// Events stay in their slot until then, start before finish.
func (h *Head) collect() {
	if !h.Dispatcher.ReadyForTimestamp() {
		return
	}
	if ts, ok := h.Source.DrainStart(); ok {
		h.Dispatcher.PushTimestamp(msgs.TimeValue{Value: ts / laps.TicksPerMs, Kind: msgs.TimeStartSensor})
		return
	}
	if ts, ok := h.Source.DrainFinish(); ok {
		h.Dispatcher.PushTimestamp(msgs.TimeValue{Value: ts / laps.TicksPerMs, Kind: msgs.TimeFinishSensor})
	}
}

func (h *Head) observe(fx.ControlContext) error {
	for i := 0; i < MaxSightingsPerCycle; i++ {
		select {
		case s, ok := <-h.Sightings:
			if !ok {
				h.Sightings = nil
				return nil
			}
			h.Dispatcher.Observe(s)
		default:
			return nil
		}
	}
	return nil
}

func (h *Head) results(fx.ControlContext) error {
	if i, ok := h.Engine.TakeStarted(); ok {
		h.Display.ResetRunning(h.Engine.Lap(i).Start / laps.TicksPerMs)
	}
	if i, ok := h.Engine.TakeFinished(); ok {
		h.finished(i)
	}
	if h.Dispatcher.HasPendingDisplayUpdate() {
		h.Display.ShowResult(h.Dispatcher.TakeDisplayUpdate(), ResultHoldMs)
	}
	h.publishStatus()
	return nil
}

func (h *Head) finished(i laps.Index) {
	lap := h.Engine.Lap(i)
	if !lap.IsFinished() {
		return
	}
	ms := lap.DurationMs()
	glog.Infof("head: lap %d finished in %dms", i, ms)
	h.Dispatcher.PushTimestamp(msgs.TimeValue{Value: ms, Kind: msgs.TimeLastLap})
	h.Display.ShowResult(ms, ResultHoldMs)
	if h.Publisher != nil {
		h.Publisher.PublishLap(&bmsgs.LapEvent{
			Index:      uint32(i),
			StartTicks: lap.Start,
			EndTicks:   lap.End,
			DurationMs: ms,
			Discipline: h.Engine.Discipline().String(),
		})
	}
}

func (h *Head) publishStatus() {
	if h.Publisher == nil {
		return
	}
	st := bmsgs.HeadStatus{
		HeadId:         h.ID,
		OperationMode:  uint32(h.opMode),
		SensorMode:     uint32(h.sensorMode),
		Online:         true,
		RunningLaps:    uint32(h.Engine.RunningCount()),
		AllowedDevices: uint32(h.Devices.AllowedLen()),
	}
	if h.statusSent && st == h.status {
		return
	}
	h.status, h.statusSent = st, true
	h.Publisher.PublishStatus(&st)
}
