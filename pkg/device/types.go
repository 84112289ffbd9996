// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Tetrad Robotics

// Package device is the typed command catalog: system queries, the
// on-device filesystem, program control, and the key/value store, each
// expressed as a link.Command with little-endian payload structs.
package device

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrShortReply means the device answered with fewer payload bytes
	// than the reply layout requires.
	ErrShortReply = errors.New("device: reply truncated")

	// ErrFileNotFound is returned by metadata queries for a file the
	// device does not have.
	ErrFileNotFound = errors.New("device: file not found")
)

// Version is the four-byte firmware version quad used throughout the
// protocol.
type Version struct {
	Major uint8
	Minor uint8
	Build uint8
	Beta  uint8
}

// IsZero reports whether the version is all zeroes, which the firmware
// uses for "not applicable".
func (v Version) IsZero() bool {
	return v == Version{}
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d-b%d", v.Major, v.Minor, v.Build, v.Beta)
}

// ProductType identifies which controller model answered.
type ProductType uint8

const (
	ProductBrain      ProductType = 0x10
	ProductController ProductType = 0x11
)

func (p ProductType) String() string {
	switch p {
	case ProductBrain:
		return "brain"
	case ProductController:
		return "controller"
	default:
		return fmt.Sprintf("product(0x%02X)", uint8(p))
	}
}

// ProductFlags reports how a handheld controller is tethered to the
// brain.
type ProductFlags uint8

const (
	FlagConnectedCable    ProductFlags = 1 << 0
	FlagConnectedWireless ProductFlags = 1 << 1
)

// Timestamps on the wire count seconds since 2000-01-01 UTC rather
// than the Unix epoch.
const j2000Epoch = 946684800

// J2000Timestamp converts a wall clock time into the protocol's epoch.
func J2000Timestamp(t time.Time) uint32 {
	return uint32(t.Unix() - j2000Epoch)
}

// FileOperation selects the transfer direction of a file session.
type FileOperation uint8

const (
	OperationWrite FileOperation = 1
	OperationRead  FileOperation = 2
)

// TransferTarget is the memory region a transfer addresses.
type TransferTarget uint8

const (
	TargetDDR   TransferTarget = 0
	TargetQSPI  TransferTarget = 1
	TargetCBUF  TransferTarget = 2
	TargetVBUF  TransferTarget = 3
	TargetDDRC  TransferTarget = 4
	TargetDDRE  TransferTarget = 5
	TargetFlash TransferTarget = 6
	TargetRadio TransferTarget = 7
	TargetA1    TransferTarget = 13
	TargetB1    TransferTarget = 14
	TargetB2    TransferTarget = 15
)

// FileVendor namespaces the on-device filesystem.
type FileVendor uint8

const (
	VendorUser      FileVendor = 1
	VendorSys       FileVendor = 15
	VendorDev1      FileVendor = 16
	VendorDev2      FileVendor = 24
	VendorDev3      FileVendor = 32
	VendorDev4      FileVendor = 40
	VendorDev5      FileVendor = 48
	VendorDev6      FileVendor = 56
	VendorVM        FileVendor = 64
	VendorFactory   FileVendor = 240
	VendorUndefined FileVendor = 241
)

// InitOption modifies a transfer init.
type InitOption uint8

const (
	InitNone      InitOption = 0
	InitOverwrite InitOption = 1
)

// ExitAction tells the device what to do once a transfer completes.
type ExitAction uint8

const (
	ExitDoNothing     ExitAction = 0
	ExitRunProgram    ExitAction = 1
	ExitHalt          ExitAction = 2
	ExitShowRunScreen ExitAction = 3
)

// LoadAction starts or stops a stored program.
type LoadAction uint8

const (
	LoadRun  LoadAction = 0
	LoadStop LoadAction = 128
)

// ExtensionType marks how a stored file's contents are wrapped.
type ExtensionType uint8

const (
	ExtensionBinary    ExtensionType = 0x00
	ExtensionVM        ExtensionType = 0x61
	ExtensionEncrypted ExtensionType = 0x73
)

// Filenames and the key/value store use fixed-capacity NUL-terminated
// string fields.
const (
	FileNameCapacity = 23
	kvKeyCapacity    = 31
	kvValueCapacity  = 255
)

// FileMetadata is the 12-byte descriptor stored alongside every file.
type FileMetadata struct {
	Extension     string // up to 3 characters
	ExtensionType ExtensionType
	Timestamp     uint32 // J2000 seconds
	Version       Version
}

func (m *FileMetadata) append(dst []byte) []byte {
	var ext [3]byte
	copy(ext[:], m.Extension)
	dst = append(dst, ext[:]...)
	dst = append(dst, byte(m.ExtensionType))
	dst = binary.LittleEndian.AppendUint32(dst, m.Timestamp)
	return appendVersion(dst, m.Version)
}

func appendVersion(dst []byte, v Version) []byte {
	return append(dst, v.Major, v.Minor, v.Build, v.Beta)
}

// appendFixedString writes s into a capacity-byte field followed by a
// NUL terminator, zero padded.
func appendFixedString(dst []byte, s string, capacity int) ([]byte, error) {
	if len(s) > capacity {
		return nil, fmt.Errorf("device: string %q exceeds %d bytes", s, capacity)
	}
	field := make([]byte, capacity+1)
	copy(field, s)
	return append(dst, field...), nil
}

// cstring returns the bytes before the first NUL.
func cstring(data []byte) string {
	if i := bytes.IndexByte(data, 0); i >= 0 {
		data = data[:i]
	}
	return string(data)
}

// reader consumes little-endian reply payloads. The first underflow
// latches err; callers check it once after all fields are read.
type reader struct {
	data []byte
	err  error
}

func (r *reader) take(n int) []byte {
	if r.err != nil || len(r.data) < n {
		r.err = ErrShortReply
		return make([]byte, n)
	}
	out := r.data[:n]
	r.data = r.data[n:]
	return out
}

func (r *reader) u8() uint8 {
	return r.take(1)[0]
}

func (r *reader) u16() uint16 {
	return binary.LittleEndian.Uint16(r.take(2))
}

func (r *reader) u32() uint32 {
	return binary.LittleEndian.Uint32(r.take(4))
}

func (r *reader) version() Version {
	b := r.take(4)
	return Version{Major: b[0], Minor: b[1], Build: b[2], Beta: b[3]}
}

func (r *reader) metadata() FileMetadata {
	ext := r.take(3)
	return FileMetadata{
		Extension:     cstring(ext),
		ExtensionType: ExtensionType(r.u8()),
		Timestamp:     r.u32(),
		Version:       r.version(),
	}
}

func (r *reader) remaining() int {
	return len(r.data)
}
