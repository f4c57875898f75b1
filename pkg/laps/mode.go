package laps

import "fmt"

// OperationMode selects what the timing head does with sensor events.
type OperationMode uint8

// Operation modes as carried on the wire.
const (
	NoOperation OperationMode = iota
	Laptimer
	ConnectedTimestampCollector
	SingleRun
	MultiRun
)

var operationModeNames = map[OperationMode]string{
	NoOperation:                 "none",
	Laptimer:                    "laptimer",
	ConnectedTimestampCollector: "collector",
	SingleRun:                   "singlerun",
	MultiRun:                    "multirun",
}

func (m OperationMode) String() string {
	if name, ok := operationModeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

// ParseOperationMode parses the name returned by String.
func ParseOperationMode(s string) (OperationMode, error) {
	for m, name := range operationModeNames {
		if name == s {
			return m, nil
		}
	}
	return NoOperation, fmt.Errorf("unknown operation mode %q", s)
}

// SensorMode describes how many sensors are wired.
type SensorMode uint8

// Sensor modes.
const (
	NoSensor SensorMode = iota
	SingleSensor
	DualSensor
)

func (m SensorMode) String() string {
	switch m {
	case NoSensor:
		return "none"
	case SingleSensor:
		return "single"
	case DualSensor:
		return "dual"
	}
	return fmt.Sprintf("sensor(%d)", uint8(m))
}

// ParseSensorMode parses the name returned by String.
func ParseSensorMode(s string) (SensorMode, error) {
	for _, m := range []SensorMode{NoSensor, SingleSensor, DualSensor} {
		if m.String() == s {
			return m, nil
		}
	}
	return NoSensor, fmt.Errorf("unknown sensor mode %q", s)
}

// ModeAllowed reports whether op can run with the given sensors.
func ModeAllowed(op OperationMode, sensors SensorMode) bool {
	switch op {
	case Laptimer:
		return sensors == SingleSensor
	case MultiRun:
		return sensors == DualSensor
	case ConnectedTimestampCollector, SingleRun:
		return true
	}
	return false
}

// DisciplineFor maps a mode pair to the discipline driving the engine.
// Combinations without lap timing return NoTiming.
func DisciplineFor(op OperationMode, sensors SensorMode) Discipline {
	switch {
	case op == Laptimer && sensors == SingleSensor:
		return LapTimer
	case op == SingleRun && sensors == SingleSensor:
		return SingleSensorRun
	case op == SingleRun && sensors == DualSensor:
		return DualSensorRun
	case op == MultiRun && sensors == DualSensor:
		return MultiRider
	}
	return NoTiming
}
