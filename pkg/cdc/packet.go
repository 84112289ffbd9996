// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Tetrad Robotics

package cdc

// Kind discriminates the two frame shapes.
type Kind int

const (
	// KindBasic is the original CDC frame: two-byte header, command
	// byte, one-byte length, payload, one-byte checksum trailer.
	KindBasic Kind = iota

	// KindExtended is the CDC2 frame: four-byte header, command byte,
	// extended command byte, variable-width length, payload, big-endian
	// CRC-16.
	KindExtended
)

func (k Kind) String() string {
	switch k {
	case KindBasic:
		return "CDC"
	case KindExtended:
		return "CDC2"
	default:
		return "unknown"
	}
}

// Packet is one decoded protocol frame. Packets are ephemeral: built,
// sent or parsed, and discarded. They are never retained across
// exchanges.
type Packet struct {
	Kind         Kind
	CommandID    byte
	ExtCommandID byte // extended frames only

	// Payload is the frame payload as it appears on the wire. For
	// extended replies the first payload byte is the device's ack code;
	// see AckCode.
	Payload []byte

	// Checksum is the integrity field as decoded from the wire: the
	// full CRC-16 for extended frames, the single trailer byte
	// (zero-extended) for basic frames.
	Checksum uint16
}

// Ack returns the acknowledgement code of an extended reply, or
// (0, false) when the packet carries none.
func (p *Packet) Ack() (AckCode, bool) {
	if p.Kind != KindExtended || len(p.Payload) == 0 {
		return 0, false
	}
	return AckCode(p.Payload[0]), true
}

// Body returns the payload with the acknowledgement byte stripped for
// extended replies, and the whole payload otherwise.
func (p *Packet) Body() []byte {
	if _, ok := p.Ack(); ok {
		return p.Payload[1:]
	}
	return p.Payload
}
