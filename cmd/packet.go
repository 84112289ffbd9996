// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Tetrad Robotics

package cmd

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tetrad-robotics/brainlink/pkg/cdc"
)

var packetCmd = &cobra.Command{
	Use:   "packet [hex bytes...]",
	Short: "Encode or decode frames offline",
	Long: `Decode hex-encoded wire bytes without a device attached.

Bytes may be given as one or more hex arguments, with or without
spaces. With no arguments, encode and dump a few sample frames instead.

Examples:
  brainlink packet c93621003b
  brainlink packet "c9 36 b8 47 56 20 00 89 47"`,
	RunE: runPacket,
}

func init() {
	rootCmd.AddCommand(packetCmd)
}

func runPacket(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return dumpSampleFrames()
	}

	cleaned := strings.NewReplacer(" ", "", ":", "", "0x", "").Replace(strings.ToLower(strings.Join(args, "")))
	data, err := hex.DecodeString(cleaned)
	if err != nil {
		return fmt.Errorf("bad hex input: %w", err)
	}

	dec := cdc.NewDecoder()
	dec.Write(data)
	for {
		pkt, err := dec.Next()
		if errors.Is(err, cdc.ErrIncomplete) {
			break
		}
		if err != nil {
			fmt.Printf("[NOISE] %v\n", err)
			continue
		}
		fmt.Println(cdc.FormatPacket(pkt))
	}

	if n := dec.Buffered(); n > 0 {
		fmt.Printf("(%d trailing bytes do not form a complete frame)\n", n)
	}
	return nil
}

func dumpSampleFrames() error {
	samples := []struct {
		name string
		pkt  *cdc.Packet
	}{
		{"system version query", &cdc.Packet{Kind: cdc.KindBasic, CommandID: cdc.CommandSystemVersion}},
		{"device name query", &cdc.Packet{Kind: cdc.KindBasic, CommandID: cdc.CommandDeviceName}},
		{"system flags query", &cdc.Packet{
			Kind: cdc.KindExtended, CommandID: cdc.CommandExtended, ExtCommandID: cdc.ExtSystemFlags,
		}},
		{"file erase", &cdc.Packet{
			Kind: cdc.KindExtended, CommandID: cdc.CommandExtended, ExtCommandID: cdc.ExtFileErase,
			Payload: append([]byte{1, 128}, make([]byte, 24)...),
		}},
	}

	for _, s := range samples {
		frame, err := cdc.Encode(s.pkt)
		if err != nil {
			return err
		}
		fmt.Printf("%-22s %s\n", s.name, cdc.HexDump(frame, 0))
	}
	return nil
}
