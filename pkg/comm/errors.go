package comm

import "errors"

var (
	// ErrIncomplete indicates more bytes are needed to decode a frame.
	ErrIncomplete = errors.New("incomplete frame")
	// ErrDataTooLong indicates a declared or supplied payload above MaxDataLength.
	ErrDataTooLong = errors.New("frame data too long")
	// ErrChecksum indicates the received crc doesn't match the frame.
	ErrChecksum = errors.New("frame checksum mismatch")
)
