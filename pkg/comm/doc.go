// Package comm implements the timing head's serial command protocol.
package comm

// Commands travel from the companion to the head as frames starting
// with a sync byte, followed by a little endian header
// {data_length, crc, status, cmd_type} and up to 128 data bytes.
// Responses use the same header without the sync byte.
//
// The crc covers status, cmd_type and data. Frames failing the check
// are dropped silently and the companion is expected to retry after its
// own timeout. The link is half duplex: while a command is answered,
// inbound bytes are discarded.
