// Package devices keeps the table of beacons allowed to be timed and
// the ones detected around the head.
package devices

import (
	"errors"

	"github.com/golang/glog"

	fx "github.com/robotalks/laptimer/pkg/framework"
)

// MaxDevices is the capacity of the table.
const MaxDevices = 64

// Defaults for Table.
const (
	RSSISamples                = 8
	DefaultActiveTimeoutMs     = uint32(3000)
	DefaultMaxPathLoss         = 60
	DefaultCleanupIntervalMs   = uint32(10000)
	DefaultClosestPushInterval = uint32(2000)
)

// Errors of table operations.
var (
	ErrDuplicate = errors.New("device already allowed")
	ErrFull      = errors.New("device table full")
	ErrNotFound  = errors.New("device not found")
)

type entry struct {
	Device
	used       bool
	allowed    bool
	seen       bool
	correction int8
	lastRSSI   int16
	firstSeen  uint32
	lastSeen   uint32
}

func (e *entry) reset() {
	if !e.allowed {
		*e = entry{}
		return
	}
	*e = entry{
		Device:     Device{Address: e.Address},
		used:       true,
		allowed:    true,
		correction: e.correction,
	}
}

// Table is a fixed capacity device table. Slots are addressed by
// index so listings can resume between packets.
type Table struct {
	ActiveTimeoutMs uint32
	MaxPathLoss     int

	entries [MaxDevices]entry
}

// NewTable creates an empty Table.
func NewTable() *Table {
	return &Table{
		ActiveTimeoutMs: DefaultActiveTimeoutMs,
		MaxPathLoss:     DefaultMaxPathLoss,
	}
}

func (t *Table) find(addr Address) (found, free int) {
	found, free = -1, -1
	for n := range t.entries {
		e := &t.entries[n]
		if !e.used {
			if free < 0 {
				free = n
			}
		} else if e.Address == addr {
			return n, free
		}
	}
	return
}

// Allow adds an allowed device. A detected device with the same
// address becomes allowed.
func (t *Table) Allow(a AllowedEntry) error {
	found, free := t.find(a.Address)
	if found >= 0 {
		e := &t.entries[found]
		if e.allowed {
			return ErrDuplicate
		}
		e.allowed, e.correction = true, a.Correction
		glog.Infof("devices: detected %s allowed", a.Address)
		return nil
	}
	if free < 0 {
		return ErrFull
	}
	t.entries[free] = entry{
		Device:     Device{Address: a.Address},
		used:       true,
		allowed:    true,
		correction: a.Correction,
	}
	glog.Infof("devices: %s allowed", a.Address)
	return nil
}

// Remove removes a device.
func (t *Table) Remove(addr Address) error {
	found, _ := t.find(addr)
	if found < 0 {
		return ErrNotFound
	}
	t.entries[found] = entry{}
	glog.Infof("devices: %s removed", addr)
	return nil
}

// Clear removes all devices.
func (t *Table) Clear() {
	t.entries = [MaxDevices]entry{}
}

// Observe records a sighting. Unknown devices are added only when
// admit is set. It reports whether the sighting was recorded.
func (t *Table) Observe(s Sighting, now uint32, admit bool) bool {
	found, free := t.find(s.Address)
	if found < 0 {
		if !admit || free < 0 {
			return false
		}
		found = free
		t.entries[found] = entry{Device: Device{Address: s.Address}, used: true}
		glog.V(2).Infof("devices: %s detected", s.Address)
	}
	e := &t.entries[found]
	e.MeasuredPower = s.MeasuredPower - int16(e.correction)
	e.lastRSSI = s.RSSI
	if !e.seen {
		e.RSSI = s.RSSI
		e.firstSeen = now
	} else {
		e.RSSI = int16((int(e.RSSI)*(RSSISamples-1) + int(s.RSSI)) / RSSISamples)
	}
	e.seen, e.lastSeen = true, now
	return true
}

// Len returns the number of used slots.
func (t *Table) Len() int {
	return t.count(func(e *entry) bool { return true })
}

// AllowedLen returns the number of allowed devices.
func (t *Table) AllowedLen() int {
	return t.count(func(e *entry) bool { return e.allowed })
}

func (t *Table) count(pred func(*entry) bool) (n int) {
	for i := range t.entries {
		if e := &t.entries[i]; e.used && pred(e) {
			n++
		}
	}
	return
}

// At returns the device in slot i.
func (t *Table) At(i int) (d Device, used, allowed bool) {
	if i < 0 || i >= MaxDevices {
		return
	}
	e := &t.entries[i]
	return e.Device, e.used, e.allowed
}

// IsActive reports the device in slot i was seen recently and close
// enough to be considered present.
func (t *Table) IsActive(i int, now uint32) bool {
	if i < 0 || i >= MaxDevices {
		return false
	}
	return t.active(&t.entries[i], now)
}

func (t *Table) active(e *entry, now uint32) bool {
	return e.used && e.seen &&
		fx.ElapsedMs(now, e.lastSeen) < t.ActiveTimeoutMs &&
		e.PathLoss() < t.MaxPathLoss
}

// Closest returns the active allowed device with the smallest path loss.
func (t *Table) Closest(now uint32) (Device, bool) {
	var closest *entry
	for i := range t.entries {
		e := &t.entries[i]
		if !e.allowed || !t.active(e, now) {
			continue
		}
		if closest == nil || e.PathLoss() < closest.PathLoss() {
			closest = e
		}
	}
	if closest == nil {
		return Device{}, false
	}
	return closest.Device, true
}

// Cleanup forgets devices not seen recently. Allowed devices keep
// their slot with the signal data cleared. It returns the number of
// slots reset.
func (t *Table) Cleanup(now uint32) (n int) {
	for i := range t.entries {
		e := &t.entries[i]
		if !e.used || !e.seen || t.active(e, now) {
			continue
		}
		glog.V(2).Infof("devices: %s inactive", e.Address)
		e.reset()
		n++
	}
	return
}
