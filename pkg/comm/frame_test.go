package comm

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChecksumVectors(t *testing.T) {
	require.Equal(t, uint16(0xFFFF), Checksum(nil))
	require.Equal(t, uint16(0xE1F0), Checksum([]byte{0x00}))
	require.Equal(t, uint16(0xE10F), Checksum([]byte{0xFF}))

	data := []byte("start/finish")
	require.Equal(t, Checksum(data), UpdateCRC(UpdateCRC(CRCInit, data[:5]), data[5:]))
}

func randomFrame(rnd *rand.Rand, size int) *Frame {
	f := &Frame{
		Status: uint16(rnd.Intn(0x10000)),
		Type:   CommandType(rnd.Intn(0x10000)),
		Data:   make([]byte, size),
	}
	rnd.Read(f.Data)
	return f
}

func TestFrameRoundTripAllLengths(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	for size := 0; size <= MaxDataLength; size++ {
		f := randomFrame(rnd, size)
		encoded, err := f.AppendResponse(nil)
		require.NoError(t, err)
		require.Len(t, encoded, HeaderSize+size)
		decoded, n, err := ParseFrame(encoded)
		require.NoErrorf(t, err, "size %d", size)
		require.Equal(t, len(encoded), n)
		require.Equal(t, f.Status, decoded.Status)
		require.Equal(t, f.Type, decoded.Type)
		require.Equal(t, f.Data, decoded.Data)
	}
}

func requireFlipsDetected(t *testing.T, encoded []byte, bit int) {
	corrupted := append([]byte(nil), encoded...)
	corrupted[bit/8] ^= 1 << uint(bit%8)
	_, _, err := ParseFrame(corrupted)
	require.Equalf(t, ErrChecksum, err, "bit %d of %d bytes", bit, len(encoded))
}

func TestChecksumDetectsSingleBitFlips(t *testing.T) {
	rnd := rand.New(rand.NewSource(2))
	// the length field is excluded: flipping it changes the frame boundary.
	for size := 0; size <= 4; size++ {
		encoded, err := randomFrame(rnd, size).AppendResponse(nil)
		require.NoError(t, err)
		for bit := 2 * 8; bit < len(encoded)*8; bit++ {
			requireFlipsDetected(t, encoded, bit)
		}
	}
	for _, size := range []int{64, 127, MaxDataLength} {
		encoded, err := randomFrame(rnd, size).AppendResponse(nil)
		require.NoError(t, err)
		for n := 0; n < 256; n++ {
			requireFlipsDetected(t, encoded, 16+rnd.Intn((len(encoded)-2)*8))
		}
	}
}

func TestFrameCommandLayout(t *testing.T) {
	f := &Frame{Status: 0x0102, Type: CmdGetCurrentTime, Data: []byte{0xaa, 0xbb}}
	encoded, err := f.AppendCommand(nil)
	require.NoError(t, err)
	crc := f.CRC()
	require.Equal(t, []byte{
		SyncByte,
		0x02, 0x00,
		byte(crc), byte(crc >> 8),
		0x02, 0x01,
		103, 0x00,
		0xaa, 0xbb,
	}, encoded)
	require.Equal(t, Checksum(encoded[5:]), crc)
}

func TestParseFrameErrors(t *testing.T) {
	_, _, err := ParseFrame([]byte{0x02})
	require.Equal(t, ErrIncomplete, err)
	_, _, err = ParseFrame([]byte{0x02, 0x00, 0, 0, 0, 0, 0, 0, 1})
	require.Equal(t, ErrIncomplete, err)
	_, _, err = ParseFrame([]byte{MaxDataLength + 1, 0x00})
	require.Equal(t, ErrDataTooLong, err)

	_, err = (&Frame{Data: make([]byte, MaxDataLength+1)}).AppendResponse(nil)
	require.Equal(t, ErrDataTooLong, err)
}

func TestCommandTypeNames(t *testing.T) {
	require.Equal(t, "GetAllLaps", CmdGetAllLaps.String())
	require.True(t, CmdGetIdentification.IsKnown())
	require.False(t, CommandType(77).IsKnown())
	require.Equal(t, "Command(77)", CommandType(77).String())
}
