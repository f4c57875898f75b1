// Package msgs defines the messages a timing head publishes to the broker.
package msgs

import (
	"github.com/golang/protobuf/proto"
)

// LapEvent reports a finished lap.
type LapEvent struct {
	HeadId     string `protobuf:"bytes,1,opt,name=head_id,proto3" json:"head_id,omitempty"`
	Index      uint32 `protobuf:"varint,2,opt,name=index,proto3" json:"index,omitempty"`
	StartTicks uint32 `protobuf:"varint,3,opt,name=start_ticks,proto3" json:"start_ticks,omitempty"`
	EndTicks   uint32 `protobuf:"varint,4,opt,name=end_ticks,proto3" json:"end_ticks,omitempty"`
	DurationMs uint32 `protobuf:"varint,5,opt,name=duration_ms,proto3" json:"duration_ms,omitempty"`
	Discipline string `protobuf:"bytes,6,opt,name=discipline,proto3" json:"discipline,omitempty"`
}

// ProtoMessage implements proto.Message.
func (m *LapEvent) ProtoMessage() {}

// Reset implements proto.Message.
func (m *LapEvent) Reset() { *m = LapEvent{} }

// String implements proto.Message.
func (m *LapEvent) String() string { return proto.CompactTextString(m) }

// HeadStatus is the retained status of a head.
type HeadStatus struct {
	HeadId         string `protobuf:"bytes,1,opt,name=head_id,proto3" json:"head_id,omitempty"`
	OperationMode  uint32 `protobuf:"varint,2,opt,name=operation_mode,proto3" json:"operation_mode,omitempty"`
	SensorMode     uint32 `protobuf:"varint,3,opt,name=sensor_mode,proto3" json:"sensor_mode,omitempty"`
	Online         bool   `protobuf:"varint,4,opt,name=online,proto3" json:"online,omitempty"`
	RunningLaps    uint32 `protobuf:"varint,5,opt,name=running_laps,proto3" json:"running_laps,omitempty"`
	AllowedDevices uint32 `protobuf:"varint,6,opt,name=allowed_devices,proto3" json:"allowed_devices,omitempty"`
}

// ProtoMessage implements proto.Message.
func (m *HeadStatus) ProtoMessage() {}

// Reset implements proto.Message.
func (m *HeadStatus) Reset() { *m = HeadStatus{} }

// String implements proto.Message.
func (m *HeadStatus) String() string { return proto.CompactTextString(m) }
