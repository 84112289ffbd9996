package cdc

// The extended frame length field is one byte for values below 0x80.
// Larger values are two bytes: the first carries the high bits with the
// top bit set as a continuation marker, the second carries the low
// byte. Values above 0x7FFF cannot be represented.

// appendLength appends the variable-width encoding of v to dst.
// v must not exceed MaxExtendedPayload.
func appendLength(dst []byte, v uint16) []byte {
	if v > 0x7F {
		return append(dst, byte(v>>8)|0x80, byte(v))
	}
	return append(dst, byte(v))
}

// lengthWidth reports how many bytes the length field occupies given
// its first byte.
func lengthWidth(first byte) int {
	if first&0x80 != 0 {
		return 2
	}
	return 1
}

// readLength decodes a variable-width length field from the start of
// data. It returns the value and the number of bytes consumed, or
// ok=false if data is too short.
func readLength(data []byte) (v uint16, n int, ok bool) {
	if len(data) == 0 {
		return 0, 0, false
	}
	if data[0]&0x80 == 0 {
		return uint16(data[0]), 1, true
	}
	if len(data) < 2 {
		return 0, 0, false
	}
	return uint16(data[0]&0x7F)<<8 | uint16(data[1]), 2, true
}
