package devices

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/robotalks/laptimer/pkg/msgs"
)

// Wire sizes.
const (
	AddressSize      = 6
	EntrySize        = AddressSize + 4
	AllowedEntrySize = AddressSize + 1
)

// ErrInvalidAddress is returned by ParseAddress.
var ErrInvalidAddress = errors.New("invalid device address")

// Address is a beacon hardware address.
type Address [AddressSize]byte

func (a Address) String() string {
	parts := make([]string, AddressSize)
	for n, b := range a {
		parts[n] = hex.EncodeToString([]byte{b})
	}
	return strings.Join(parts, ":")
}

// IsZero reports an all zero address.
func (a Address) IsZero() bool {
	return a == Address{}
}

// ParseAddress parses "aa:bb:cc:dd:ee:ff", separators are optional.
func ParseAddress(s string) (a Address, err error) {
	s = strings.NewReplacer(":", "", "-", "").Replace(s)
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != AddressSize {
		return a, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	copy(a[:], raw)
	return a, nil
}

// Device is the wire form of a known device.
type Device struct {
	Address       Address
	RSSI          int16
	MeasuredPower int16
}

// PathLoss is the attenuation between the reference power at 1m and
// the received signal, larger means further away.
func (d Device) PathLoss() int {
	return int(d.MeasuredPower) - int(d.RSSI)
}

// Append appends the encoding to b.
func (d Device) Append(b []byte) []byte {
	b = append(b, d.Address[:]...)
	var buf [4]byte
	binary.LittleEndian.PutUint16(buf[0:], uint16(d.RSSI))
	binary.LittleEndian.PutUint16(buf[2:], uint16(d.MeasuredPower))
	return append(b, buf[:]...)
}

// DecodeDevice decodes a Device.
func DecodeDevice(p []byte) (d Device, err error) {
	if len(p) < EntrySize {
		return d, msgs.ErrShortPayload
	}
	copy(d.Address[:], p)
	d.RSSI = int16(binary.LittleEndian.Uint16(p[AddressSize:]))
	d.MeasuredPower = int16(binary.LittleEndian.Uint16(p[AddressSize+2:]))
	return d, nil
}

// AllowedEntry is the payload of AddAllowedDevice. Correction is
// subtracted from the measured power a beacon advertises.
type AllowedEntry struct {
	Address    Address
	Correction int8
}

// Append appends the encoding to b.
func (e AllowedEntry) Append(b []byte) []byte {
	b = append(b, e.Address[:]...)
	return append(b, byte(e.Correction))
}

// DecodeAllowedEntry decodes an AllowedEntry.
func DecodeAllowedEntry(p []byte) (e AllowedEntry, err error) {
	if len(p) < AllowedEntrySize {
		return e, msgs.ErrShortPayload
	}
	copy(e.Address[:], p)
	e.Correction = int8(p[AddressSize])
	return e, nil
}

// DecodeAddress decodes the address at the start of p.
func DecodeAddress(p []byte) (a Address, err error) {
	if len(p) < AddressSize {
		return a, msgs.ErrShortPayload
	}
	copy(a[:], p)
	return a, nil
}

// Sighting is one received beacon advertisement.
type Sighting struct {
	Address       Address
	RSSI          int16
	MeasuredPower int16
}
