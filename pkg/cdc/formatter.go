// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Tetrad Robotics

package cdc

import (
	"fmt"
	"strings"
)

var basicCommandNames = map[byte]string{
	CommandQuery1:        "QUERY1",
	CommandDeviceName:    "DEVICE_NAME",
	CommandExtended:      "EXTENDED",
	CommandController:    "CONTROLLER",
	CommandSystemVersion: "SYSTEM_VERSION",
}

var extCommandNames = map[byte]string{
	ExtFileControl:   "FILE_CONTROL",
	ExtFileInit:      "FILE_INIT",
	ExtFileExit:      "FILE_EXIT",
	ExtFileWrite:     "FILE_WRITE",
	ExtFileRead:      "FILE_READ",
	ExtFileLink:      "FILE_LINK",
	ExtFileDirCount:  "FILE_DIR_COUNT",
	ExtFileDirEntry:  "FILE_DIR_ENTRY",
	ExtFileLoad:      "FILE_LOAD",
	ExtFileMetadata:  "FILE_METADATA",
	ExtFileSetInfo:   "FILE_SET_INFO",
	ExtFileErase:     "FILE_ERASE",
	ExtFileUserStat:  "FILE_USER_STAT",
	ExtFileCleanup:   "FILE_CLEANUP",
	ExtFileFormat:    "FILE_FORMAT",
	ExtSystemFlags:   "SYSTEM_FLAGS",
	ExtDeviceStatus:  "DEVICE_STATUS",
	ExtSystemStatus:  "SYSTEM_STATUS",
	ExtLogStatus:     "LOG_STATUS",
	ExtLogRead:       "LOG_READ",
	ExtRadioStatus:   "RADIO_STATUS",
	ExtUserRead:      "USER_READ",
	ExtUserProgram:   "USER_PROGRAM",
	ExtKVLoad:        "KV_LOAD",
	ExtKVSave:        "KV_SAVE",
	ExtCatalogInfo14: "CATALOG_INFO_14",
	ExtCatalogInfo58: "CATALOG_INFO_58",
}

// CommandName returns the symbolic name of a basic command identifier.
func CommandName(id byte) string {
	if name, ok := basicCommandNames[id]; ok {
		return name
	}
	return fmt.Sprintf("0x%02X", id)
}

// ExtCommandName returns the symbolic name of an extended command
// identifier.
func ExtCommandName(id byte) string {
	if name, ok := extCommandNames[id]; ok {
		return name
	}
	return fmt.Sprintf("0x%02X", id)
}

// FormatPacket renders a packet on a single line for log output.
func FormatPacket(p *Packet) string {
	var b strings.Builder

	if p.Kind == KindExtended {
		fmt.Fprintf(&b, "CDC2 %-16s cmd=0x%02X ext=0x%02X",
			ExtCommandName(p.ExtCommandID), p.CommandID, p.ExtCommandID)
		if ack, ok := p.Ack(); ok && ack.Known() {
			fmt.Fprintf(&b, " %s", ack)
		}
	} else {
		fmt.Fprintf(&b, "CDC  %-16s cmd=0x%02X", CommandName(p.CommandID), p.CommandID)
	}

	body := p.Body()
	fmt.Fprintf(&b, " len=%d", len(body))
	if len(body) > 0 {
		fmt.Fprintf(&b, " %s", HexDump(body, 24))
	}
	return b.String()
}

// HexDump renders up to limit bytes of data as spaced hex, with an
// ellipsis when truncated. A limit of 0 dumps everything.
func HexDump(data []byte, limit int) string {
	truncated := false
	if limit > 0 && len(data) > limit {
		data = data[:limit]
		truncated = true
	}

	var b strings.Builder
	b.WriteByte('[')
	for i, v := range data {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%02X", v)
	}
	if truncated {
		b.WriteString(" ..")
	}
	b.WriteByte(']')
	return b.String()
}
