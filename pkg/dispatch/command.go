package dispatch

import (
	"github.com/robotalks/laptimer/pkg/comm"
	"github.com/robotalks/laptimer/pkg/devices"
	"github.com/robotalks/laptimer/pkg/laps"
	"github.com/robotalks/laptimer/pkg/msgs"
)

// Command is a decoded command frame.
type Command interface {
	Type() comm.CommandType
}

// NoOperation is the idle marker, it is never answered.
type NoOperation struct{}

// AddAllowedDevice adds a device to the allowed list.
type AddAllowedDevice struct {
	Entry devices.AllowedEntry
}

// RemoveAllowedDevice removes a device.
type RemoveAllowedDevice struct {
	Address devices.Address
}

// ListAllowedDevices lists the allowed devices.
type ListAllowedDevices struct{}

// ListDetectedDevices scans for devices, then lists all known devices.
type ListDetectedDevices struct{}

// GetClosestDevice requests the closest active allowed device.
type GetClosestDevice struct{}

// GetLatestTimestamp requests the latest recorded time value.
type GetLatestTimestamp struct{}

// GetAllLaps lists the lap ring.
type GetAllLaps struct{}

// GetCurrentTime requests the head's clock.
type GetCurrentTime struct{}

// UpdateDisplayedTime pushes a value to the display.
type UpdateDisplayedTime struct {
	Ms uint32
}

// UpdateOperationMode changes the operation mode.
type UpdateOperationMode struct {
	Mode laps.OperationMode
}

// GetIdentification requests identification and capabilities.
type GetIdentification struct{}

// Unknown is any command type outside the catalog.
type Unknown struct {
	Cmd comm.CommandType
}

// Type implements Command.
func (NoOperation) Type() comm.CommandType { return comm.CmdNoOperation }

// Type implements Command.
func (AddAllowedDevice) Type() comm.CommandType { return comm.CmdAddAllowedDevice }

// Type implements Command.
func (RemoveAllowedDevice) Type() comm.CommandType { return comm.CmdRemoveAllowedDevice }

// Type implements Command.
func (ListAllowedDevices) Type() comm.CommandType { return comm.CmdListAllowedDevices }

// Type implements Command.
func (ListDetectedDevices) Type() comm.CommandType { return comm.CmdListDetectedDevices }

// Type implements Command.
func (GetClosestDevice) Type() comm.CommandType { return comm.CmdGetClosestDevice }

// Type implements Command.
func (GetLatestTimestamp) Type() comm.CommandType { return comm.CmdGetLatestTimestamp }

// Type implements Command.
func (GetAllLaps) Type() comm.CommandType { return comm.CmdGetAllLaps }

// Type implements Command.
func (GetCurrentTime) Type() comm.CommandType { return comm.CmdGetCurrentTime }

// Type implements Command.
func (UpdateDisplayedTime) Type() comm.CommandType { return comm.CmdUpdateDisplayedTime }

// Type implements Command.
func (UpdateOperationMode) Type() comm.CommandType { return comm.CmdUpdateOperationMode }

// Type implements Command.
func (GetIdentification) Type() comm.CommandType { return comm.CmdGetIdentification }

// Type implements Command.
func (c Unknown) Type() comm.CommandType { return c.Cmd }

// Decode converts a validated frame into a Command. Payloads shorter
// than the structure of the command fail with msgs.ErrShortPayload.
func Decode(f *comm.Frame) (Command, error) {
	switch f.Type {
	case comm.CmdNoOperation:
		return NoOperation{}, nil
	case comm.CmdAddAllowedDevice:
		entry, err := devices.DecodeAllowedEntry(f.Data)
		if err != nil {
			return nil, err
		}
		return AddAllowedDevice{Entry: entry}, nil
	case comm.CmdRemoveAllowedDevice:
		addr, err := devices.DecodeAddress(f.Data)
		if err != nil {
			return nil, err
		}
		return RemoveAllowedDevice{Address: addr}, nil
	case comm.CmdListAllowedDevices:
		return ListAllowedDevices{}, nil
	case comm.CmdListDetectedDevices:
		return ListDetectedDevices{}, nil
	case comm.CmdGetClosestDevice:
		return GetClosestDevice{}, nil
	case comm.CmdGetLatestTimestamp:
		return GetLatestTimestamp{}, nil
	case comm.CmdGetAllLaps:
		return GetAllLaps{}, nil
	case comm.CmdGetCurrentTime:
		return GetCurrentTime{}, nil
	case comm.CmdUpdateDisplayedTime:
		ms, err := msgs.DecodeUint32(f.Data)
		if err != nil {
			return nil, err
		}
		return UpdateDisplayedTime{Ms: ms}, nil
	case comm.CmdUpdateOperationMode:
		if len(f.Data) < 1 {
			return nil, msgs.ErrShortPayload
		}
		return UpdateOperationMode{Mode: laps.OperationMode(f.Data[0])}, nil
	case comm.CmdGetIdentification:
		return GetIdentification{}, nil
	}
	return Unknown{Cmd: f.Type}, nil
}

// Encode builds the command frame for c, the inverse of Decode.
func Encode(c Command) *comm.Frame {
	f := &comm.Frame{Type: c.Type()}
	switch c := c.(type) {
	case AddAllowedDevice:
		f.Data = c.Entry.Append(nil)
	case RemoveAllowedDevice:
		f.Data = append([]byte(nil), c.Address[:]...)
	case UpdateDisplayedTime:
		f.Data = msgs.AppendUint32(nil, c.Ms)
	case UpdateOperationMode:
		f.Data = []byte{byte(c.Mode)}
	}
	return f
}
