package msgs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTimeValueLayout(t *testing.T) {
	v := TimeValue{Value: 0x01020304, Kind: TimeLastLap}
	encoded := v.Append(nil)
	require.Equal(t, []byte{4, 3, 2, 1, 3}, encoded)
	decoded, err := DecodeTimeValue(encoded)
	require.NoError(t, err)
	require.Equal(t, v, decoded)

	_, err = DecodeTimeValue(encoded[:4])
	require.Equal(t, ErrShortPayload, err)
}

func TestLapEntryLayout(t *testing.T) {
	e := LapEntry{Index: 31, Start: 10000, End: 0xFFFFFFFF}
	encoded := e.Append(nil)
	require.Len(t, encoded, LapEntrySize)
	require.Equal(t, []byte{31, 0x10, 0x27, 0, 0, 0xff, 0xff, 0xff, 0xff}, encoded)
	decoded, err := DecodeLapEntry(encoded)
	require.NoError(t, err)
	require.Equal(t, e, decoded)
}

func TestPageAndProgress(t *testing.T) {
	b := PageHeader{Packet: 1, Total: 3}.Append(nil)
	b = append(b, 0xaa)
	h, entries, err := DecodePage(b)
	require.NoError(t, err)
	require.Equal(t, PageHeader{Packet: 1, Total: 3}, h)
	require.Equal(t, []byte{0xaa}, entries)
	_, _, err = DecodePage(b[:1])
	require.Error(t, err)

	p, err := DecodeProgress(Progress{Percent: 40, Count: 5}.Append(nil))
	require.NoError(t, err)
	require.Equal(t, Progress{Percent: 40, Count: 5}, p)
}

func TestIdentificationLayout(t *testing.T) {
	id := Identification{
		Types:         DeviceTimer | DeviceDisplay,
		OperationMode: 4,
		SensorMode:    2,
		UniqueID:      [UniqueIDSize]byte{1, 2, 3, 4, 5, 6, 7, 8},
	}
	encoded := id.Append(nil)
	require.Equal(t, []byte{5, 4, 2, 1, 2, 3, 4, 5, 6, 7, 8}, encoded)
	decoded, err := DecodeIdentification(encoded)
	require.NoError(t, err)
	require.Equal(t, id, decoded)
	require.True(t, decoded.Types.Has(DeviceDisplay))
	require.False(t, decoded.Types.Has(DeviceIdentifier))
}

func TestStatusText(t *testing.T) {
	require.Equal(t, "ok", StatusText(StatusOK))
	require.Equal(t, "not found", StatusText(StatusNotFound))
	require.Equal(t, "status 0x1234", StatusText(0x1234))
}
