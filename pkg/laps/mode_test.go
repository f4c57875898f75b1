package laps

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestModeAllowed(t *testing.T) {
	cases := []struct {
		op      OperationMode
		sensors SensorMode
		allowed bool
		d       Discipline
	}{
		{NoOperation, SingleSensor, false, NoTiming},
		{Laptimer, SingleSensor, true, LapTimer},
		{Laptimer, DualSensor, false, NoTiming},
		{ConnectedTimestampCollector, NoSensor, true, NoTiming},
		{ConnectedTimestampCollector, DualSensor, true, NoTiming},
		{SingleRun, SingleSensor, true, SingleSensorRun},
		{SingleRun, DualSensor, true, DualSensorRun},
		{MultiRun, SingleSensor, false, NoTiming},
		{MultiRun, DualSensor, true, MultiRider},
		{OperationMode(42), DualSensor, false, NoTiming},
	}
	for _, c := range cases {
		require.Equalf(t, c.allowed, ModeAllowed(c.op, c.sensors), "%s/%s", c.op, c.sensors)
		require.Equalf(t, c.d, DisciplineFor(c.op, c.sensors), "%s/%s", c.op, c.sensors)
	}
}

func TestParseModes(t *testing.T) {
	for _, m := range []OperationMode{NoOperation, Laptimer, ConnectedTimestampCollector, SingleRun, MultiRun} {
		parsed, err := ParseOperationMode(m.String())
		require.NoError(t, err)
		require.Equal(t, m, parsed)
	}
	_, err := ParseOperationMode("sprint")
	require.Error(t, err)

	s, err := ParseSensorMode("dual")
	require.NoError(t, err)
	require.Equal(t, DualSensor, s)
	_, err = ParseSensorMode("triple")
	require.Error(t, err)
}
