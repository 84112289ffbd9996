// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Tetrad Robotics

package cdc

import "fmt"

// EncodeBasic encodes a basic CDC frame: header, command byte, one-byte
// payload length, payload, and the one-byte checksum trailer (the low
// byte of the CRC-16 over everything before it).
func EncodeBasic(commandID byte, payload []byte) ([]byte, error) {
	if len(payload) > MaxBasicPayload {
		return nil, fmt.Errorf("cdc: basic payload too large: %d bytes (max %d)", len(payload), MaxBasicPayload)
	}

	buf := make([]byte, 0, basicOverhead+len(payload))
	buf = append(buf, BasicHeader[0], BasicHeader[1], commandID, byte(len(payload)))
	buf = append(buf, payload...)
	buf = append(buf, byte(Checksum(buf)))
	return buf, nil
}

// EncodeExtended encodes an extended CDC2 frame: four-byte header,
// command byte, extended command byte, variable-width payload length,
// payload, and the big-endian CRC-16 over the whole frame including the
// header.
func EncodeExtended(commandID, extCommandID byte, payload []byte) ([]byte, error) {
	if len(payload) > MaxExtendedPayload {
		return nil, fmt.Errorf("cdc: extended payload too large: %d bytes (max %d)", len(payload), MaxExtendedPayload)
	}

	buf := make([]byte, 0, extendedOverhead+2+len(payload))
	buf = append(buf, BasicHeader[0], BasicHeader[1], ExtendedMarker[0], ExtendedMarker[1])
	buf = append(buf, commandID, extCommandID)
	buf = appendLength(buf, uint16(len(payload)))
	buf = append(buf, payload...)

	crc := Checksum(buf)
	buf = append(buf, byte(crc>>8), byte(crc))
	return buf, nil
}

// Encode re-encodes a Packet to wire format.
func Encode(p *Packet) ([]byte, error) {
	switch p.Kind {
	case KindBasic:
		return EncodeBasic(p.CommandID, p.Payload)
	case KindExtended:
		return EncodeExtended(p.CommandID, p.ExtCommandID, p.Payload)
	default:
		return nil, fmt.Errorf("cdc: unknown packet kind %d", p.Kind)
	}
}
