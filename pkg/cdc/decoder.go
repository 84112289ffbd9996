// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Tetrad Robotics

package cdc

import "errors"

// Decode control-flow results. ErrIncomplete means more bytes are
// needed and is not a failure. Checksum and header errors are recovered
// by resynchronizing on the next header constant; neither is fatal to a
// stream.
var (
	ErrIncomplete         = errors.New("cdc: incomplete frame")
	ErrChecksumMismatch   = errors.New("cdc: checksum mismatch")
	ErrUnrecognizedHeader = errors.New("cdc: unrecognized header")
)

// Decode attempts to decode a single frame from the start of data.
// It returns the decoded packet and the number of bytes consumed.
//
// Leading bytes that cannot begin a frame are skipped: consumed may be
// non-zero even when an error is returned, and callers must discard
// exactly that many bytes before retrying. The error is one of:
//
//   - nil: a frame was decoded; consumed covers garbage plus the frame.
//   - ErrIncomplete: keep reading; consumed covers any skipped garbage.
//   - ErrChecksumMismatch: a framed packet failed its checksum; the
//     offending header is consumed so the scan resynchronizes past it.
//   - ErrUnrecognizedHeader: no header constant occurs in data; all
//     bytes that cannot start a future frame are consumed.
func Decode(data []byte) (*Packet, int, error) {
	start := indexHeader(data)
	if start < 0 {
		if len(data) == 0 {
			return nil, 0, ErrIncomplete
		}
		// Keep a trailing first header byte: it may complete once more
		// bytes arrive.
		consumed := len(data)
		if data[consumed-1] == BasicHeader[0] {
			consumed--
		}
		if consumed == 0 {
			return nil, 0, ErrIncomplete
		}
		return nil, consumed, ErrUnrecognizedHeader
	}

	rest := data[start:]
	if len(rest) < 4 {
		return nil, start, ErrIncomplete
	}

	// A basic frame can never carry command 0xB8: that byte position is
	// reserved to keep the extended marker unambiguous.
	if rest[2] == ExtendedMarker[0] && rest[3] == ExtendedMarker[1] {
		return decodeExtended(rest, start)
	}
	return decodeBasic(rest, start)
}

func decodeBasic(rest []byte, start int) (*Packet, int, error) {
	payloadLen := int(rest[3])
	total := 4 + payloadLen + 1
	if len(rest) < total {
		return nil, start, ErrIncomplete
	}

	if byte(Checksum(rest[:total-1])) != rest[total-1] {
		// Skip the header so the next scan resynchronizes past it.
		return nil, start + 2, ErrChecksumMismatch
	}

	payload := make([]byte, payloadLen)
	copy(payload, rest[4:4+payloadLen])

	return &Packet{
		Kind:      KindBasic,
		CommandID: rest[2],
		Payload:   payload,
		Checksum:  uint16(rest[total-1]),
	}, start + total, nil
}

func decodeExtended(rest []byte, start int) (*Packet, int, error) {
	if len(rest) < 7 {
		return nil, start, ErrIncomplete
	}

	payloadLen, lenWidth, ok := readLength(rest[6:])
	if !ok {
		return nil, start, ErrIncomplete
	}

	total := 6 + lenWidth + int(payloadLen) + 2
	if len(rest) < total {
		return nil, start, ErrIncomplete
	}

	crc := uint16(rest[total-2])<<8 | uint16(rest[total-1])
	if Checksum(rest[:total-2]) != crc {
		return nil, start + 2, ErrChecksumMismatch
	}

	payload := make([]byte, payloadLen)
	copy(payload, rest[6+lenWidth:total-2])

	return &Packet{
		Kind:         KindExtended,
		CommandID:    rest[4],
		ExtCommandID: rest[5],
		Payload:      payload,
		Checksum:     crc,
	}, start + total, nil
}

// indexHeader returns the offset of the first header constant in data,
// or -1 if none occurs.
func indexHeader(data []byte) int {
	for i := 0; i+1 < len(data); i++ {
		if data[i] == BasicHeader[0] && data[i+1] == BasicHeader[1] {
			return i
		}
	}
	return -1
}

// Decoder accumulates raw transport bytes until they decode. It is the
// shared buffering strategy for both the continuous serial stream and
// chunked BLE notifications: feed whatever arrived with Write, then
// drain frames with Next.
//
// A Decoder is owned by a single goroutine; it performs no locking.
type Decoder struct {
	buf   []byte
	stats Statistics
}

// NewDecoder creates an empty stream decoder.
func NewDecoder() *Decoder {
	return &Decoder{buf: make([]byte, 0, 512)}
}

// Write appends raw bytes to the decode buffer. It never fails; it
// implements io.Writer so transports can copy into it directly.
func (d *Decoder) Write(p []byte) (int, error) {
	d.buf = append(d.buf, p...)
	return len(p), nil
}

// Next decodes the next frame from the buffer.
//
// It returns ErrIncomplete when the buffer is drained and more bytes
// are needed. Checksum and header errors are returned once per
// occurrence after the offending bytes have been discarded; callers
// treat them as stream noise and keep calling Next.
func (d *Decoder) Next() (*Packet, error) {
	pkt, consumed, err := Decode(d.buf)
	if consumed > 0 {
		d.buf = append(d.buf[:0], d.buf[consumed:]...)
	}

	switch err {
	case nil:
		d.stats.Packets++
	case ErrChecksumMismatch:
		d.stats.ChecksumErrors++
	case ErrUnrecognizedHeader:
		d.stats.HeaderErrors++
		d.stats.DiscardedBytes += uint64(consumed)
	}
	return pkt, err
}

// Buffered returns the number of undecoded bytes held.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Reset discards all buffered bytes.
func (d *Decoder) Reset() {
	d.buf = d.buf[:0]
}

// Stats returns a snapshot of the decoder's counters.
func (d *Decoder) Stats() Statistics {
	return d.stats
}
