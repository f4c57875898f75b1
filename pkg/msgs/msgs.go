// Package msgs defines the payload layouts shared by the timing head
// and its companion.
package msgs

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrShortPayload indicates a payload smaller than its structure.
var ErrShortPayload = errors.New("payload too short")

// Response status values.
const (
	StatusOK        uint16 = 0x0000
	StatusPage      uint16 = 0x0001
	StatusProgress  uint16 = 0x0008
	StatusBadLength uint16 = 0xFEFE
	StatusFull      uint16 = 0xFFFE
	StatusNotFound  uint16 = 0xFFFF
)

// StatusText describes a status value.
func StatusText(status uint16) string {
	switch status {
	case StatusOK:
		return "ok"
	case StatusPage:
		return "page"
	case StatusProgress:
		return "progress"
	case StatusBadLength:
		return "payload too short"
	case StatusFull:
		return "capacity exceeded"
	case StatusNotFound:
		return "not found"
	}
	return fmt.Sprintf("status %#04x", status)
}

// TimeKind tells what a time value refers to.
type TimeKind uint8

// Time kinds.
const (
	TimeNone TimeKind = iota
	TimeStartSensor
	TimeFinishSensor
	TimeLastLap
	TimeCurrentLapDisplay
)

func (k TimeKind) String() string {
	switch k {
	case TimeNone:
		return "none"
	case TimeStartSensor:
		return "start"
	case TimeFinishSensor:
		return "finish"
	case TimeLastLap:
		return "last-lap"
	case TimeCurrentLapDisplay:
		return "display"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// TimeValueSize is the encoded size of TimeValue.
const TimeValueSize = 5

// TimeValue is a millisecond value with its kind.
type TimeValue struct {
	Value uint32
	Kind  TimeKind
}

// Append appends the encoding to b.
func (v TimeValue) Append(b []byte) []byte {
	b = AppendUint32(b, v.Value)
	return append(b, byte(v.Kind))
}

// DecodeTimeValue decodes a TimeValue.
func DecodeTimeValue(p []byte) (v TimeValue, err error) {
	if len(p) < TimeValueSize {
		return v, ErrShortPayload
	}
	v.Value = binary.LittleEndian.Uint32(p)
	v.Kind = TimeKind(p[4])
	return v, nil
}

// AppendUint32 appends a little endian uint32.
func AppendUint32(b []byte, v uint32) []byte {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return append(b, buf[:]...)
}

// DecodeUint32 decodes a little endian uint32.
func DecodeUint32(p []byte) (uint32, error) {
	if len(p) < 4 {
		return 0, ErrShortPayload
	}
	return binary.LittleEndian.Uint32(p), nil
}

// LapEntrySize is the encoded size of LapEntry.
const LapEntrySize = 9

// LapEntry is one recorded slot in a lap listing, timestamps in ticks.
type LapEntry struct {
	Index uint8
	Start uint32
	End   uint32
}

// Append appends the encoding to b.
func (e LapEntry) Append(b []byte) []byte {
	b = append(b, e.Index)
	b = AppendUint32(b, e.Start)
	return AppendUint32(b, e.End)
}

// DecodeLapEntry decodes a LapEntry.
func DecodeLapEntry(p []byte) (e LapEntry, err error) {
	if len(p) < LapEntrySize {
		return e, ErrShortPayload
	}
	e.Index = p[0]
	e.Start = binary.LittleEndian.Uint32(p[1:])
	e.End = binary.LittleEndian.Uint32(p[5:])
	return e, nil
}

// PageHeaderSize is the size of the header of every list packet.
const PageHeaderSize = 2

// PageHeader starts every list packet.
type PageHeader struct {
	Packet uint8
	Total  uint8
}

// Append appends the encoding to b.
func (h PageHeader) Append(b []byte) []byte {
	return append(b, h.Packet, h.Total)
}

// DecodePage splits a list packet into header and entries.
func DecodePage(p []byte) (h PageHeader, entries []byte, err error) {
	if len(p) < PageHeaderSize {
		return h, nil, ErrShortPayload
	}
	return PageHeader{Packet: p[0], Total: p[1]}, p[PageHeaderSize:], nil
}

// Progress is reported while a device scan is running.
type Progress struct {
	Percent uint8
	Count   uint8
}

// Append appends the encoding to b.
func (p Progress) Append(b []byte) []byte {
	return append(b, p.Percent, p.Count)
}

// DecodeProgress decodes a Progress.
func DecodeProgress(p []byte) (Progress, error) {
	if len(p) < 2 {
		return Progress{}, ErrShortPayload
	}
	return Progress{Percent: p[0], Count: p[1]}, nil
}

// DeviceType is the capability bitmask in identification.
type DeviceType uint8

// Device types.
const (
	DeviceTimer DeviceType = 1 << iota
	DeviceIdentifier
	DeviceDisplay
	DeviceStartRelease
)

// Has reports whether all bits of t are set.
func (d DeviceType) Has(t DeviceType) bool {
	return d&t == t
}

// UniqueIDSize is the size of the unique id in identification.
const UniqueIDSize = 8

// IdentificationSize is the encoded size of Identification.
const IdentificationSize = 3 + UniqueIDSize

// Identification answers GetIdentification.
type Identification struct {
	Types         DeviceType
	OperationMode uint8
	SensorMode    uint8
	UniqueID      [UniqueIDSize]byte
}

// Append appends the encoding to b.
func (id Identification) Append(b []byte) []byte {
	b = append(b, byte(id.Types), id.OperationMode, id.SensorMode)
	return append(b, id.UniqueID[:]...)
}

// DecodeIdentification decodes an Identification.
func DecodeIdentification(p []byte) (id Identification, err error) {
	if len(p) < IdentificationSize {
		return id, ErrShortPayload
	}
	id.Types = DeviceType(p[0])
	id.OperationMode, id.SensorMode = p[1], p[2]
	copy(id.UniqueID[:], p[3:])
	return id, nil
}
