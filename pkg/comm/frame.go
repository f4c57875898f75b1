package comm

import (
	"encoding/binary"
	"fmt"
)

const (
	// SyncByte starts every command frame.
	SyncByte byte = 0xFF
	// MaxDataLength is the largest payload of a frame.
	MaxDataLength = 128
	// HeaderSize covers data length, crc, status and command type.
	HeaderSize = 8
	// MaxFrameSize is the largest command frame including the sync byte.
	MaxFrameSize = 1 + HeaderSize + MaxDataLength
)

// CommandType identifies a command and the responses to it.
type CommandType uint16

// Command types.
const (
	CmdNoOperation         CommandType = 0
	CmdAddAllowedDevice    CommandType = 1
	CmdRemoveAllowedDevice CommandType = 2
	CmdListAllowedDevices  CommandType = 3
	CmdListDetectedDevices CommandType = 4
	CmdGetClosestDevice    CommandType = 5
	CmdGetLatestTimestamp  CommandType = 101
	CmdGetAllLaps          CommandType = 102
	CmdGetCurrentTime      CommandType = 103
	CmdUpdateDisplayedTime CommandType = 104
	CmdUpdateOperationMode CommandType = 105
	CmdGetIdentification   CommandType = 255
)

var commandNames = map[CommandType]string{
	CmdNoOperation:         "NoOperation",
	CmdAddAllowedDevice:    "AddAllowedDevice",
	CmdRemoveAllowedDevice: "RemoveAllowedDevice",
	CmdListAllowedDevices:  "ListAllowedDevices",
	CmdListDetectedDevices: "ListDetectedDevices",
	CmdGetClosestDevice:    "GetClosestDevice",
	CmdGetLatestTimestamp:  "GetLatestTimestamp",
	CmdGetAllLaps:          "GetAllLaps",
	CmdGetCurrentTime:      "GetCurrentTime",
	CmdUpdateDisplayedTime: "UpdateDisplayedTime",
	CmdUpdateOperationMode: "UpdateOperationMode",
	CmdGetIdentification:   "GetIdentification",
}

func (t CommandType) String() string {
	if name, ok := commandNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Command(%d)", uint16(t))
}

// IsKnown reports whether t is in the command catalog.
func (t CommandType) IsKnown() bool {
	_, ok := commandNames[t]
	return ok
}

// Frame is a command or a response. Command frames carry a leading
// SyncByte on the wire, responses don't.
type Frame struct {
	Status uint16
	Type   CommandType
	Data   []byte
}

// CRC computes the checksum over status, command type and data.
func (f *Frame) CRC() uint16 {
	var hdr [4]byte
	binary.LittleEndian.PutUint16(hdr[0:], f.Status)
	binary.LittleEndian.PutUint16(hdr[2:], uint16(f.Type))
	return UpdateCRC(UpdateCRC(CRCInit, hdr[:]), f.Data)
}

func (f *Frame) appendTo(b []byte) ([]byte, error) {
	if len(f.Data) > MaxDataLength {
		return b, ErrDataTooLong
	}
	var hdr [HeaderSize]byte
	binary.LittleEndian.PutUint16(hdr[0:], uint16(len(f.Data)))
	binary.LittleEndian.PutUint16(hdr[2:], f.CRC())
	binary.LittleEndian.PutUint16(hdr[4:], f.Status)
	binary.LittleEndian.PutUint16(hdr[6:], uint16(f.Type))
	return append(append(b, hdr[:]...), f.Data...), nil
}

// AppendCommand appends the command encoding to b.
func (f *Frame) AppendCommand(b []byte) ([]byte, error) {
	return f.appendTo(append(b, SyncByte))
}

// AppendResponse appends the response encoding to b.
func (f *Frame) AppendResponse(b []byte) ([]byte, error) {
	return f.appendTo(b)
}

func (f *Frame) String() string {
	return fmt.Sprintf("%s status=%#04x len=%d", f.Type, f.Status, len(f.Data))
}

// DeclaredLength returns the data length field of an encoded header,
// p starts at the length field.
func DeclaredLength(p []byte) (int, bool) {
	if len(p) < 2 {
		return 0, false
	}
	return int(binary.LittleEndian.Uint16(p)), true
}

// ParseFrame decodes one frame starting at the data length field.
// It returns the number of bytes used. ErrIncomplete means more
// bytes are needed.
func ParseFrame(p []byte) (*Frame, int, error) {
	length, ok := DeclaredLength(p)
	if !ok {
		return nil, 0, ErrIncomplete
	}
	if length > MaxDataLength {
		return nil, 0, ErrDataTooLong
	}
	size := HeaderSize + length
	if len(p) < size {
		return nil, 0, ErrIncomplete
	}
	f := &Frame{
		Status: binary.LittleEndian.Uint16(p[4:]),
		Type:   CommandType(binary.LittleEndian.Uint16(p[6:])),
		Data:   append([]byte(nil), p[HeaderSize:size]...),
	}
	if crc := binary.LittleEndian.Uint16(p[2:]); Checksum(p[4:size]) != crc {
		return f, size, ErrChecksum
	}
	return f, size, nil
}
