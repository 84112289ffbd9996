// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Tetrad Robotics

// Package cdc implements the CDC/CDC2 binary packet protocol spoken by
// Tetrad robotics controllers over USB serial and BLE GATT links.
//
// The package provides packet encoding/decoding for both the basic CDC
// frame and the extended CDC2 frame, CRC validation, and stream
// resynchronization. Transport and request/response handling live in
// pkg/transport and pkg/link.
package cdc

// Frame header constants. Every basic frame starts with the two-byte
// header; extended frames start with the same two bytes followed by the
// two-byte extended marker.
var (
	BasicHeader    = [2]byte{0xC9, 0x36}
	ExtendedMarker = [2]byte{0xB8, 0x47}
)

// Packet size limits
const (
	MaxBasicPayload    = 0xFF   // basic length field is a single byte
	MaxExtendedPayload = 0x7FFF // extended length field is a variable-width u16

	basicOverhead    = 5 // header(2) + cmd(1) + len(1) + trailer(1)
	extendedOverhead = 8 // header(4) + cmd(1) + ext(1) + crc(2), excluding length field
)

// Basic CDC command identifiers
const (
	CommandQuery1        = 0x21
	CommandDeviceName    = 0x44
	CommandExtended      = 0x56 // carrier for all CDC2 exchanges
	CommandController    = 0x58
	CommandSystemVersion = 0xA4
)

// CDC2 extended command identifiers, carried inside CommandExtended
// frames.
const (
	ExtFileControl    = 0x10
	ExtFileInit       = 0x11
	ExtFileExit       = 0x12
	ExtFileWrite      = 0x13
	ExtFileRead       = 0x14
	ExtFileLink       = 0x15
	ExtFileDirCount   = 0x16
	ExtFileDirEntry   = 0x17
	ExtFileLoad       = 0x18
	ExtFileMetadata   = 0x19
	ExtFileSetInfo    = 0x1A
	ExtFileErase      = 0x1B
	ExtFileUserStat   = 0x1C
	ExtFileCleanup    = 0x1E
	ExtFileFormat     = 0x1F
	ExtSystemFlags    = 0x20
	ExtDeviceStatus   = 0x21
	ExtSystemStatus   = 0x22
	ExtLogStatus      = 0x24
	ExtLogRead        = 0x25
	ExtRadioStatus    = 0x26
	ExtUserRead       = 0x27
	ExtUserProgram    = 0x29
	ExtKVLoad         = 0x2E
	ExtKVSave         = 0x2F
	ExtCatalogInfo14  = 0x31
	ExtCatalogInfo58  = 0x32
)
