// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Tetrad Robotics

package device

import (
	"context"
	"fmt"
	"time"

	"github.com/tetrad-robotics/brainlink/pkg/cdc"
	"github.com/tetrad-robotics/brainlink/pkg/link"
)

// Where user programs load by default.
const ColdStartAddress = 0x03800000

// The device never accepts more than this per write, whatever window
// it advertises.
const maxWriteChunk = 4096

const (
	uploadExchangeTimeout = 2 * time.Second
	// The exit exchange erases and verifies; it takes longer.
	uploadExitTimeout = 10 * time.Second
)

// UploadOptions describes one file upload. Name is required; zero
// values elsewhere select the usual user-program defaults.
type UploadOptions struct {
	Name string
	Data []byte

	// LoadAddress defaults to ColdStartAddress.
	LoadAddress uint32

	// Target defaults to TargetQSPI.
	Target TransferTarget

	// Vendor defaults to VendorUser.
	Vendor FileVendor

	// Extension defaults to "bin".
	Extension string

	// After defaults to ExitDoNothing.
	After ExitAction

	// Progress, when set, is called before every write with bytes sent
	// so far and the total.
	Progress func(sent, total int)
}

// Upload pushes a file onto the device: a transfer init advertising the
// file's CRC-32, aligned chunked writes sized to the device's window,
// and an exit carrying the post-transfer action.
func Upload(ctx context.Context, conn *link.Connection, opts UploadOptions) error {
	if opts.Name == "" {
		return fmt.Errorf("device: upload requires a file name")
	}
	if opts.LoadAddress == 0 {
		opts.LoadAddress = ColdStartAddress
	}
	if opts.Target == TargetDDR {
		opts.Target = TargetQSPI
	}
	if opts.Vendor == 0 {
		opts.Vendor = VendorUser
	}
	if opts.Extension == "" {
		opts.Extension = "bin"
	}

	init := &FileInit{
		Operation:   OperationWrite,
		Target:      opts.Target,
		Vendor:      opts.Vendor,
		Options:     InitOverwrite,
		FileSize:    uint32(len(opts.Data)),
		LoadAddress: opts.LoadAddress,
		CRC:         cdc.Checksum32(opts.Data),
		Metadata: FileMetadata{
			Extension: opts.Extension,
			Timestamp: J2000Timestamp(time.Now()),
			Version:   Version{Major: 1},
		},
		Name: opts.Name,
	}
	if err := conn.Execute(ctx, init, uploadExchangeTimeout); err != nil {
		return fmt.Errorf("device: transfer init: %w", err)
	}

	chunkSize := maxWriteChunk
	if init.WindowSize > 0 && int(init.WindowSize) < chunkSize {
		chunkSize = int(init.WindowSize)
	}
	// Writes must land on four-byte boundaries.
	chunkSize &^= 3
	if chunkSize == 0 {
		chunkSize = 4
	}

	total := len(opts.Data)
	for sent := 0; sent < total; sent += chunkSize {
		if opts.Progress != nil {
			opts.Progress(sent, total)
		}

		end := sent + chunkSize
		if end > total {
			end = total
		}
		chunk := opts.Data[sent:end]
		if pad := len(chunk) % 4; pad != 0 {
			padded := make([]byte, len(chunk)+4-pad)
			copy(padded, chunk)
			chunk = padded
		}

		write := &FileWrite{Address: opts.LoadAddress + uint32(sent), Data: chunk}
		if err := conn.Execute(ctx, write, uploadExchangeTimeout); err != nil {
			return fmt.Errorf("device: write at 0x%08X: %w", write.Address, err)
		}
	}
	if opts.Progress != nil {
		opts.Progress(total, total)
	}

	exit := &FileExit{Action: opts.After}
	if err := conn.Execute(ctx, exit, uploadExitTimeout); err != nil {
		return fmt.Errorf("device: transfer exit: %w", err)
	}
	return nil
}

// Download reads a stored file back from the device using chunked
// reads sized to the advertised window.
func Download(ctx context.Context, conn *link.Connection, vendor FileVendor, name string) ([]byte, error) {
	// The read loop addresses the file's storage location, which only a
	// metadata query reveals.
	stat := &FileStat{Vendor: vendor, Name: name}
	if err := conn.Execute(ctx, stat, uploadExchangeTimeout); err != nil {
		return nil, fmt.Errorf("device: stat %s: %w", name, err)
	}

	init := &FileInit{
		Operation:   OperationRead,
		Target:      TargetQSPI,
		Vendor:      vendor,
		LoadAddress: stat.LoadAddress,
		Name:        name,
	}
	if err := conn.Execute(ctx, init, uploadExchangeTimeout); err != nil {
		return nil, fmt.Errorf("device: transfer init: %w", err)
	}

	chunkSize := maxWriteChunk
	if init.WindowSize > 0 && int(init.WindowSize) < chunkSize {
		chunkSize = int(init.WindowSize)
	}
	chunkSize &^= 3
	if chunkSize == 0 {
		chunkSize = 4
	}

	total := int(init.DeviceFileSize)
	data := make([]byte, 0, total)
	for len(data) < total {
		n := total - len(data)
		if n > chunkSize {
			n = chunkSize
		}
		// Read sizes are rounded up to the alignment boundary.
		aligned := (n + 3) &^ 3

		read := &FileRead{
			Address: init.LoadAddress + uint32(len(data)),
			Size:    uint16(aligned),
		}
		if err := conn.Execute(ctx, read, uploadExchangeTimeout); err != nil {
			return nil, fmt.Errorf("device: read at 0x%08X: %w", read.Address, err)
		}
		if len(read.Data) < n {
			return nil, ErrShortReply
		}
		data = append(data, read.Data[:n]...)
	}

	exit := &FileExit{Action: ExitDoNothing}
	if err := conn.Execute(ctx, exit, uploadExitTimeout); err != nil {
		return nil, fmt.Errorf("device: transfer exit: %w", err)
	}

	if crc := cdc.Checksum32(data); init.DeviceCRC != 0 && crc != init.DeviceCRC {
		return nil, fmt.Errorf("device: download CRC mismatch: got 0x%08X want 0x%08X", crc, init.DeviceCRC)
	}
	return data, nil
}
