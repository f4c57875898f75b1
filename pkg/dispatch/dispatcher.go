// Package dispatch answers commands received by the framer and pushes
// unsolicited updates while the link is idle.
package dispatch

import (
	"github.com/golang/glog"

	"github.com/robotalks/laptimer/pkg/comm"
	"github.com/robotalks/laptimer/pkg/devices"
	fx "github.com/robotalks/laptimer/pkg/framework"
	"github.com/robotalks/laptimer/pkg/laps"
	"github.com/robotalks/laptimer/pkg/msgs"
)

// Intervals in milliseconds.
const (
	DefaultTimePushIntervalMs = uint32(1000)
	DefaultScanDurationMs     = uint32(5000)
	DefaultProgressIntervalMs = uint32(500)
)

// Host owns the operation mode.
type Host interface {
	OperationMode() laps.OperationMode
	SensorMode() laps.SensorMode
	// SetOperationMode applies a mode requested by the companion.
	SetOperationMode(laps.OperationMode) error
}

// Dispatcher maps commands to actions and builds their responses.
// It is polled from the loop and is not safe for concurrent use.
type Dispatcher struct {
	Framer  *comm.Framer
	Engine  *laps.Engine
	Devices *devices.Table
	Host    Host
	Clock   fx.Clock

	DeviceTypes msgs.DeviceType
	UniqueID    [msgs.UniqueIDSize]byte

	// zero disables the periodic pushes.
	TimePushIntervalMs    uint32
	ClosestPushIntervalMs uint32
	CleanupIntervalMs     uint32

	ScanDurationMs     uint32
	ProgressIntervalMs uint32

	pending   *comm.Frame
	last      bool
	answering bool
	pager     *Pager

	scanning     bool
	scanStart    uint32
	lastProgress uint32

	latest        msgs.TimeValue
	latestUpdated bool

	display        uint32
	displayUpdated bool

	lastTimePush    uint32
	lastClosestPush uint32
	lastCleanup     uint32
}

// New creates a Dispatcher with default intervals.
func New(framer *comm.Framer, engine *laps.Engine, table *devices.Table, host Host, clock fx.Clock) *Dispatcher {
	now := clock.NowMs()
	return &Dispatcher{
		Framer:                framer,
		Engine:                engine,
		Devices:               table,
		Host:                  host,
		Clock:                 clock,
		DeviceTypes:           msgs.DeviceTimer,
		TimePushIntervalMs:    DefaultTimePushIntervalMs,
		ClosestPushIntervalMs: devices.DefaultClosestPushInterval,
		CleanupIntervalMs:     devices.DefaultCleanupIntervalMs,
		ScanDurationMs:        DefaultScanDurationMs,
		ProgressIntervalMs:    DefaultProgressIntervalMs,
		lastTimePush:          now,
		lastClosestPush:       now,
		lastCleanup:           now,
	}
}

// Control implements fx.Controller.
func (d *Dispatcher) Control(fx.ControlContext) error {
	d.Poll()
	return nil
}

// Poll runs the framer, handles a received command, continues a
// listing or pushes updates, then sends what is ready.
func (d *Dispatcher) Poll() {
	d.Framer.Poll()
	now := d.Clock.NowMs()
	if d.answering && d.Framer.State() == comm.StateIdle {
		glog.Warning("dispatch: link reset, response abandoned")
		d.abandon()
	}
	if d.Framer.CommandAvailable() {
		d.process(d.Framer.TakeCommand(), now)
	}
	d.work(now)
	d.send()
}

// PushTimestamp records v as the latest timestamp, pushed to the
// companion when the link is idle.
func (d *Dispatcher) PushTimestamp(v msgs.TimeValue) {
	d.latest, d.latestUpdated = v, true
}

// ReadyForTimestamp reports the previous pushed timestamp went out.
func (d *Dispatcher) ReadyForTimestamp() bool {
	return !d.latestUpdated
}

// Latest returns the latest timestamp.
func (d *Dispatcher) Latest() msgs.TimeValue {
	return d.latest
}

// HasPendingDisplayUpdate reports a displayed value pushed by the companion.
func (d *Dispatcher) HasPendingDisplayUpdate() bool {
	return d.displayUpdated
}

// TakeDisplayUpdate returns the pushed displayed value once.
func (d *Dispatcher) TakeDisplayUpdate() uint32 {
	d.displayUpdated = false
	return d.display
}

// Scanning reports a detected device scan admits unknown devices.
func (d *Dispatcher) Scanning() bool {
	return d.scanning
}

// Observe records a beacon sighting. Unknown devices are only
// admitted during a scan.
func (d *Dispatcher) Observe(s devices.Sighting) bool {
	if d.Devices == nil {
		return false
	}
	return d.Devices.Observe(s, d.Clock.NowMs(), d.scanning)
}

func (d *Dispatcher) process(f *comm.Frame, now uint32) {
	if d.pending != nil {
		glog.V(2).Infof("dispatch: pending %s replaced", d.pending)
	}
	d.pending, d.pager, d.scanning = nil, nil, false

	cmd, err := Decode(f)
	if err != nil {
		glog.Warningf("dispatch: %s: %v", f, err)
		d.respond(f.Type, msgs.StatusBadLength, nil)
		return
	}
	glog.V(2).Infof("dispatch: %s", f)
	switch c := cmd.(type) {
	case NoOperation:
		d.Framer.Release()
	case AddAllowedDevice:
		d.respond(f.Type, d.deviceStatus(d.allow(c.Entry)), nil)
	case RemoveAllowedDevice:
		d.respond(f.Type, d.deviceStatus(d.remove(c.Address)), nil)
	case ListAllowedDevices:
		d.startListing(d.allowedPager())
	case ListDetectedDevices:
		if d.Devices == nil {
			d.respond(f.Type, msgs.StatusNotFound, nil)
			return
		}
		d.answering = true
		d.scanning, d.scanStart, d.lastProgress = true, now, now
	case GetClosestDevice:
		d.respondClosest(now)
	case GetLatestTimestamp:
		d.respondLatest()
	case GetAllLaps:
		d.startListing(d.lapPager())
	case GetCurrentTime:
		d.respondTime(now)
	case UpdateDisplayedTime:
		d.display, d.displayUpdated = c.Ms, true
		d.respond(f.Type, msgs.StatusOK, nil)
	case UpdateOperationMode:
		if err := d.Host.SetOperationMode(c.Mode); err != nil {
			glog.Warningf("dispatch: mode %s rejected: %v", c.Mode, err)
			d.respond(f.Type, msgs.StatusNotFound, nil)
			return
		}
		d.respond(f.Type, msgs.StatusOK, []byte{byte(d.Host.OperationMode())})
	case GetIdentification:
		id := msgs.Identification{
			Types:         d.DeviceTypes,
			OperationMode: uint8(d.Host.OperationMode()),
			SensorMode:    uint8(d.Host.SensorMode()),
			UniqueID:      d.UniqueID,
		}
		d.respond(f.Type, msgs.StatusOK, id.Append(nil))
	case Unknown:
		glog.Warningf("dispatch: unknown command %s", c.Cmd)
		d.respond(f.Type, msgs.StatusNotFound, nil)
	}
}

func (d *Dispatcher) allow(e devices.AllowedEntry) error {
	if d.Devices == nil {
		return devices.ErrFull
	}
	return d.Devices.Allow(e)
}

func (d *Dispatcher) remove(addr devices.Address) error {
	if d.Devices == nil {
		return devices.ErrNotFound
	}
	return d.Devices.Remove(addr)
}

func (d *Dispatcher) deviceStatus(err error) uint16 {
	switch err {
	case nil:
		return msgs.StatusOK
	case devices.ErrFull:
		return msgs.StatusFull
	}
	return msgs.StatusNotFound
}

func (d *Dispatcher) respond(cmd comm.CommandType, status uint16, data []byte) {
	d.pending = &comm.Frame{Status: status, Type: cmd, Data: data}
	d.last, d.answering = true, true
}

func (d *Dispatcher) respondTime(now uint32) {
	v := msgs.TimeValue{Value: now, Kind: msgs.TimeNone}
	d.respond(comm.CmdGetCurrentTime, msgs.StatusOK, v.Append(nil))
}

func (d *Dispatcher) respondLatest() {
	if d.latest.Kind == msgs.TimeNone {
		d.respond(comm.CmdGetLatestTimestamp, msgs.StatusNotFound, nil)
		return
	}
	d.latestUpdated = false
	d.respond(comm.CmdGetLatestTimestamp, msgs.StatusOK, d.latest.Append(nil))
}

func (d *Dispatcher) respondClosest(now uint32) {
	if d.Devices == nil {
		d.respond(comm.CmdGetClosestDevice, msgs.StatusNotFound, nil)
		return
	}
	dev, ok := d.Devices.Closest(now)
	if !ok {
		d.respond(comm.CmdGetClosestDevice, msgs.StatusNotFound, nil)
		return
	}
	d.respond(comm.CmdGetClosestDevice, msgs.StatusOK, dev.Append(nil))
}

func (d *Dispatcher) startListing(p *Pager) {
	if p == nil {
		return
	}
	d.pager, d.answering = p, true
}

func (d *Dispatcher) lapPager() *Pager {
	ring := d.Engine.Laps()
	recorded := func(l laps.Lap) bool { return l.IsValid() && !l.IsEmpty() }
	var count int
	for _, l := range ring {
		if recorded(l) {
			count++
		}
	}
	return NewPager(comm.CmdGetAllLaps, msgs.LapEntrySize, count, laps.Capacity, func(i int, b []byte) []byte {
		if l := ring[i]; recorded(l) {
			return msgs.LapEntry{Index: uint8(i), Start: l.Start, End: l.End}.Append(b)
		}
		return b
	})
}

func (d *Dispatcher) allowedPager() *Pager {
	if d.Devices == nil {
		d.respond(comm.CmdListAllowedDevices, msgs.StatusNotFound, nil)
		return nil
	}
	return NewPager(comm.CmdListAllowedDevices, devices.EntrySize, d.Devices.AllowedLen(), devices.MaxDevices, func(i int, b []byte) []byte {
		if dev, used, allowed := d.Devices.At(i); used && allowed {
			return dev.Append(b)
		}
		return b
	})
}

func (d *Dispatcher) detectedPager() *Pager {
	return NewPager(comm.CmdListDetectedDevices, devices.EntrySize, d.Devices.Len(), devices.MaxDevices, func(i int, b []byte) []byte {
		if dev, used, _ := d.Devices.At(i); used {
			return dev.Append(b)
		}
		return b
	})
}

func (d *Dispatcher) work(now uint32) {
	if d.CleanupIntervalMs > 0 && d.Devices != nil && fx.ElapsedMs(now, d.lastCleanup) >= d.CleanupIntervalMs {
		d.lastCleanup = now
		if n := d.Devices.Cleanup(now); n > 0 {
			glog.V(2).Infof("dispatch: %d inactive devices cleaned", n)
		}
	}
	switch {
	case d.scanning:
		d.scan(now)
	case d.pager != nil:
		if d.pending == nil && d.Framer.CanSendResponse() {
			d.pending, d.last = d.pager.Next()
		}
	case !d.answering && d.pending == nil && d.Framer.State() == comm.StateIdle:
		d.idle(now)
	}
}

func (d *Dispatcher) scan(now uint32) {
	elapsed := fx.ElapsedMs(now, d.scanStart)
	if elapsed >= d.ScanDurationMs {
		d.scanning = false
		d.pager = d.detectedPager()
		return
	}
	if d.pending == nil && fx.ElapsedMs(now, d.lastProgress) >= d.ProgressIntervalMs {
		d.lastProgress = now
		p := msgs.Progress{
			Percent: uint8(elapsed * 100 / d.ScanDurationMs),
			Count:   uint8(d.Devices.Len()),
		}
		d.pending = &comm.Frame{Status: msgs.StatusProgress, Type: comm.CmdListDetectedDevices, Data: p.Append(nil)}
		d.last = false
	}
}

func (d *Dispatcher) idle(now uint32) {
	switch {
	case d.latestUpdated:
		d.latestUpdated = false
		d.push(comm.CmdGetLatestTimestamp, d.latest.Append(nil))
	case d.TimePushIntervalMs > 0 && fx.ElapsedMs(now, d.lastTimePush) >= d.TimePushIntervalMs:
		d.lastTimePush = now
		d.push(comm.CmdGetCurrentTime, msgs.TimeValue{Value: now}.Append(nil))
	case d.ClosestPushIntervalMs > 0 && d.Devices != nil && fx.ElapsedMs(now, d.lastClosestPush) >= d.ClosestPushIntervalMs:
		d.lastClosestPush = now
		if dev, ok := d.Devices.Closest(now); ok {
			d.push(comm.CmdGetClosestDevice, dev.Append(nil))
		}
	}
}

func (d *Dispatcher) push(cmd comm.CommandType, data []byte) {
	d.pending = &comm.Frame{Status: msgs.StatusOK, Type: cmd, Data: data}
	d.last = true
}

func (d *Dispatcher) send() {
	if d.pending == nil || !d.Framer.CanSendResponse() {
		return
	}
	if err := d.Framer.SendResponse(d.pending, d.last); err != nil {
		glog.Errorf("dispatch: send %s: %v", d.pending, err)
		d.abandon()
		return
	}
	d.pending = nil
	if d.last {
		d.answering, d.pager = false, nil
	}
}

func (d *Dispatcher) abandon() {
	d.pending, d.pager = nil, nil
	d.answering, d.scanning = false, false
}
