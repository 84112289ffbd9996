// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Tetrad Robotics

package device

import (
	"encoding/binary"
	"fmt"

	"github.com/tetrad-robotics/brainlink/pkg/cdc"
)

func extendedPacket(extID byte, payload []byte) *cdc.Packet {
	return &cdc.Packet{
		Kind:         cdc.KindExtended,
		CommandID:    cdc.CommandExtended,
		ExtCommandID: extID,
		Payload:      payload,
	}
}

// Query1 probes a freshly attached device for bootloader details. It is
// the first exchange of a session because the bootloader answers it
// even before the runtime is up.
type Query1 struct {
	Version1   uint32
	Version2   uint32
	BootSource uint8
	Count      uint8 // times the device has answered this query
}

func (c *Query1) Request() (*cdc.Packet, error) {
	return &cdc.Packet{Kind: cdc.KindBasic, CommandID: cdc.CommandQuery1}, nil
}

func (c *Query1) HandleReply(reply *cdc.Packet) error {
	r := &reader{data: reply.Payload}
	c.Version1 = r.u32()
	c.Version2 = r.u32()
	c.BootSource = r.u8()
	c.Count = r.u8()
	return r.err
}

// SystemVersion reports the firmware version and which product
// answered.
type SystemVersion struct {
	Version Version
	Product ProductType
	Flags   ProductFlags
}

func (c *SystemVersion) Request() (*cdc.Packet, error) {
	return &cdc.Packet{Kind: cdc.KindBasic, CommandID: cdc.CommandSystemVersion}, nil
}

func (c *SystemVersion) HandleReply(reply *cdc.Packet) error {
	r := &reader{data: reply.Payload}
	c.Version = r.version()
	c.Product = ProductType(r.take(2)[1])
	c.Flags = ProductFlags(r.u8())
	return r.err
}

// DeviceName fetches the user-assigned device name.
type DeviceName struct {
	Name string
}

func (c *DeviceName) Request() (*cdc.Packet, error) {
	return &cdc.Packet{Kind: cdc.KindBasic, CommandID: cdc.CommandDeviceName}, nil
}

func (c *DeviceName) HandleReply(reply *cdc.Packet) error {
	c.Name = cstring(reply.Payload)
	return nil
}

// SystemFlags reads the live status word: radio, battery, and program
// state packed into a bitmask plus three derived bytes.
type SystemFlags struct {
	Flags          uint32
	CurrentProgram uint8 // zero when no program is running

	battery uint8
	radio   uint8
}

func (c *SystemFlags) Request() (*cdc.Packet, error) {
	return extendedPacket(cdc.ExtSystemFlags, nil), nil
}

func (c *SystemFlags) HandleReply(reply *cdc.Packet) error {
	r := &reader{data: reply.Body()}
	c.Flags = r.u32()
	c.battery = r.u8()
	c.radio = r.u8()
	c.CurrentProgram = r.u8()
	return r.err
}

// Percent fields are packed two per byte in steps of eight.

func (c *SystemFlags) BatteryPercent() int {
	return int(c.battery>>4) * 8
}

func (c *SystemFlags) ControllerBatteryPercent() int {
	return int(c.battery&0x0F) * 8
}

func (c *SystemFlags) RadioQuality() int {
	return int(c.radio>>4) * 8
}

func (c *SystemFlags) PartnerBatteryPercent() int {
	return int(c.radio&0x0F) * 8
}

// SystemDetails is the extra status block present when talking to a
// brain directly rather than through a controller.
type SystemDetails struct {
	SerialNumber  uint32
	BootFlags     uint32
	SystemFlags   uint32
	GoldenVersion Version
	NXPVersion    Version // zero when the device did not report it
}

// SystemStatus reads the per-CPU firmware versions and, on a direct
// brain link, the detailed boot block.
type SystemStatus struct {
	SystemVersion Version // zero when connected through a controller
	CPU0Version   Version
	CPU1Version   Version
	TouchVersion  Version
	Details       *SystemDetails
}

func (c *SystemStatus) Request() (*cdc.Packet, error) {
	return extendedPacket(cdc.ExtSystemStatus, nil), nil
}

func (c *SystemStatus) HandleReply(reply *cdc.Packet) error {
	r := &reader{data: reply.Body()}
	r.u8() // reserved
	c.SystemVersion = r.version()
	c.CPU0Version = r.version()
	c.CPU1Version = r.version()

	// The touch firmware version is byte-reversed on the wire.
	t := r.take(4)
	c.TouchVersion = Version{Major: t[3], Minor: t[2], Build: t[1], Beta: t[0]}

	if r.err == nil && r.remaining() >= 12 {
		details := &SystemDetails{
			SerialNumber:  r.u32(),
			BootFlags:     r.u32(),
			SystemFlags:   r.u32(),
			GoldenVersion: r.version(),
		}
		if r.remaining() >= 4 {
			details.NXPVersion = r.version()
		}
		c.Details = details
	}
	return r.err
}

// FileInit opens a file transfer session. The reply carries the window
// size the device is willing to accept per write.
type FileInit struct {
	Operation   FileOperation
	Target      TransferTarget
	Vendor      FileVendor
	Options     InitOption
	FileSize    uint32
	LoadAddress uint32
	CRC         uint32 // CRC-32 of the full file for writes
	Metadata    FileMetadata
	Name        string

	WindowSize     uint16
	DeviceFileSize uint32
	DeviceCRC      uint32
}

func (c *FileInit) Request() (*cdc.Packet, error) {
	payload := []byte{
		byte(c.Operation), byte(c.Target), byte(c.Vendor), byte(c.Options),
	}
	payload = binary.LittleEndian.AppendUint32(payload, c.FileSize)
	payload = binary.LittleEndian.AppendUint32(payload, c.LoadAddress)
	payload = binary.LittleEndian.AppendUint32(payload, c.CRC)
	payload = c.Metadata.append(payload)

	payload, err := appendFixedString(payload, c.Name, FileNameCapacity)
	if err != nil {
		return nil, err
	}
	return extendedPacket(cdc.ExtFileInit, payload), nil
}

func (c *FileInit) HandleReply(reply *cdc.Packet) error {
	r := &reader{data: reply.Body()}
	c.WindowSize = r.u16()
	c.DeviceFileSize = r.u32()
	// The file CRC alone is sent big endian.
	c.DeviceCRC = binary.BigEndian.Uint32(r.take(4))
	return r.err
}

// FileWrite pushes one window of data into an open write session. The
// chunk must be padded to a four-byte boundary.
type FileWrite struct {
	Address uint32
	Data    []byte
}

func (c *FileWrite) Request() (*cdc.Packet, error) {
	if len(c.Data)%4 != 0 {
		return nil, fmt.Errorf("device: write chunk of %d bytes is not 4-byte aligned", len(c.Data))
	}
	payload := binary.LittleEndian.AppendUint32(nil, c.Address)
	payload = append(payload, c.Data...)
	return extendedPacket(cdc.ExtFileWrite, payload), nil
}

func (c *FileWrite) HandleReply(reply *cdc.Packet) error {
	return nil
}

// FileRead pulls one window of data from an open read session.
type FileRead struct {
	Address uint32
	Size    uint16

	ReplyAddress uint32
	Data         []byte
}

func (c *FileRead) Request() (*cdc.Packet, error) {
	payload := binary.LittleEndian.AppendUint32(nil, c.Address)
	payload = binary.LittleEndian.AppendUint16(payload, c.Size)
	return extendedPacket(cdc.ExtFileRead, payload), nil
}

func (c *FileRead) HandleReply(reply *cdc.Packet) error {
	r := &reader{data: reply.Body()}
	c.ReplyAddress = r.u32()
	c.Data = append([]byte(nil), r.take(r.remaining())...)
	return r.err
}

// FileExit closes a transfer session, optionally running the uploaded
// program.
type FileExit struct {
	Action ExitAction
}

func (c *FileExit) Request() (*cdc.Packet, error) {
	return extendedPacket(cdc.ExtFileExit, []byte{byte(c.Action)}), nil
}

func (c *FileExit) HandleReply(reply *cdc.Packet) error {
	return nil
}

// FileLink declares that a file requires another file to be loaded
// first.
type FileLink struct {
	Vendor       FileVendor
	Option       uint8
	RequiredFile string
}

func (c *FileLink) Request() (*cdc.Packet, error) {
	payload := []byte{byte(c.Vendor), c.Option}
	payload, err := appendFixedString(payload, c.RequiredFile, FileNameCapacity)
	if err != nil {
		return nil, err
	}
	return extendedPacket(cdc.ExtFileLink, payload), nil
}

func (c *FileLink) HandleReply(reply *cdc.Packet) error {
	return nil
}

// Firmware expects this option byte on erase requests.
const EraseOptionDefault = 128

// FileErase removes a file.
type FileErase struct {
	Vendor FileVendor
	Option uint8
	Name   string
}

func (c *FileErase) Request() (*cdc.Packet, error) {
	payload := []byte{byte(c.Vendor), c.Option}
	payload, err := appendFixedString(payload, c.Name, FileNameCapacity)
	if err != nil {
		return nil, err
	}
	return extendedPacket(cdc.ExtFileErase, payload), nil
}

func (c *FileErase) HandleReply(reply *cdc.Packet) error {
	return nil
}

// FileStat fetches the stored metadata of a single file.
type FileStat struct {
	Vendor FileVendor
	Option uint8
	Name   string

	LinkedVendor FileVendor // zero when the file has no link
	Size         uint32
	LoadAddress  uint32
	CRC          uint32
	Metadata     FileMetadata
}

func (c *FileStat) Request() (*cdc.Packet, error) {
	payload := []byte{byte(c.Vendor), c.Option}
	payload, err := appendFixedString(payload, c.Name, FileNameCapacity)
	if err != nil {
		return nil, err
	}
	return extendedPacket(cdc.ExtFileMetadata, payload), nil
}

func (c *FileStat) HandleReply(reply *cdc.Packet) error {
	r := &reader{data: reply.Body()}

	vid := r.u8()
	if r.err != nil {
		return r.err
	}
	// 255 means no such file; the rest of the payload is filler.
	if vid == 255 {
		return ErrFileNotFound
	}
	c.LinkedVendor = FileVendor(vid)

	c.Size = r.u32()
	if c.Size == 0xFFFFFFFF {
		return ErrFileNotFound
	}
	c.LoadAddress = r.u32()
	c.CRC = r.u32()
	c.Metadata = r.metadata()
	return r.err
}

// FileLoad runs or stops a stored program.
type FileLoad struct {
	Vendor FileVendor
	Action LoadAction
	Name   string
}

func (c *FileLoad) Request() (*cdc.Packet, error) {
	payload := []byte{byte(c.Vendor), byte(c.Action)}
	payload, err := appendFixedString(payload, c.Name, FileNameCapacity)
	if err != nil {
		return nil, err
	}
	return extendedPacket(cdc.ExtFileLoad, payload), nil
}

func (c *FileLoad) HandleReply(reply *cdc.Packet) error {
	return nil
}

// KVLoad reads a value from the device's key/value store.
type KVLoad struct {
	Key   string
	Value string
}

func (c *KVLoad) Request() (*cdc.Packet, error) {
	payload, err := appendFixedString(nil, c.Key, kvKeyCapacity)
	if err != nil {
		return nil, err
	}
	return extendedPacket(cdc.ExtKVLoad, payload), nil
}

func (c *KVLoad) HandleReply(reply *cdc.Packet) error {
	c.Value = cstring(reply.Body())
	return nil
}

// KVSave writes a value into the device's key/value store.
type KVSave struct {
	Key   string
	Value string
}

func (c *KVSave) Request() (*cdc.Packet, error) {
	if len(c.Value) > kvValueCapacity {
		return nil, fmt.Errorf("device: value of %d bytes exceeds %d", len(c.Value), kvValueCapacity)
	}
	payload, err := appendFixedString(nil, c.Key, kvKeyCapacity)
	if err != nil {
		return nil, err
	}
	payload = append(payload, c.Value...)
	payload = append(payload, 0)
	return extendedPacket(cdc.ExtKVSave, payload), nil
}

func (c *KVSave) HandleReply(reply *cdc.Packet) error {
	return nil
}
