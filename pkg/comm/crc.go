package comm

var crcTable = [16]uint16{
	0x0000, 0x1021, 0x2042, 0x3063, 0x4084, 0x50a5, 0x60c6, 0x70e7,
	0x8108, 0x9129, 0xa14a, 0xb16b, 0xc18c, 0xd1ad, 0xe1ce, 0xf1ef,
}

// CRCInit is the initial checksum value.
const CRCInit uint16 = 0xFFFF

// UpdateCRC feeds p into crc, high nibble first. This is a nibble-wise
// CCITT polynomial and does not match the common byte-wise CRC-16 variants.
func UpdateCRC(crc uint16, p []byte) uint16 {
	for _, b := range p {
		crc = (crc<<4 | uint16(b>>4)) ^ crcTable[crc>>12]
		crc = (crc<<4 | uint16(b&0x0f)) ^ crcTable[crc>>12]
	}
	return crc
}

// Checksum computes the checksum of p.
func Checksum(p []byte) uint16 {
	return UpdateCRC(CRCInit, p)
}
