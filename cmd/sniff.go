// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Tetrad Robotics

package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/tetrad-robotics/brainlink/pkg/capture"
	"github.com/tetrad-robotics/brainlink/pkg/cdc"
	"github.com/tetrad-robotics/brainlink/pkg/transport"
)

var (
	sniffCaptureFile string
	sniffReplayFile  string
	sniffStats       bool
)

var sniffCmd = &cobra.Command{
	Use:   "sniff",
	Short: "Decode and print device-bound wire traffic",
	Long: `Continuously decode host-bound frames and print one line per
packet. Stream noise (checksum failures, resyncs) is reported inline.

With --capture, raw traffic is also appended to a CBOR capture file.
With --replay, frames are decoded from a capture file instead of a live
connection.`,
	RunE: runSniff,
}

func init() {
	rootCmd.AddCommand(sniffCmd)
	sniffCmd.Flags().StringVar(&sniffCaptureFile, "capture", "", "Write raw traffic to a capture file")
	sniffCmd.Flags().StringVar(&sniffReplayFile, "replay", "", "Decode a capture file instead of a live link")
	sniffCmd.Flags().BoolVar(&sniffStats, "stats", false, "Print stream statistics on exit")
}

func runSniff(cmd *cobra.Command, args []string) error {
	var (
		tr   transport.Transport
		info string
		err  error
	)
	if sniffReplayFile != "" {
		f, err := os.Open(sniffReplayFile)
		if err != nil {
			return err
		}
		defer f.Close()
		tr = capture.NewReplay(f)
		info = fmt.Sprintf("Replay: %s", sniffReplayFile)
	} else {
		tr, info, err = openTransport()
		if err != nil {
			return err
		}
	}
	defer tr.Close()

	if sniffCaptureFile != "" {
		f, err := os.Create(sniffCaptureFile)
		if err != nil {
			return err
		}
		defer f.Close()
		tr = capture.NewTap(tr, capture.NewWriter(f))
	}

	fmt.Printf("Brainlink - Wire Sniffer\n")
	fmt.Printf("Connection: %s\n", info)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	dec := cdc.NewDecoder()
	buf := make([]byte, 4096)

	for {
		select {
		case <-interrupt:
			if sniffStats {
				fmt.Printf("\n%s\n", dec.Stats())
			}
			return nil
		default:
		}

		n, err := tr.Receive(buf, 250*time.Millisecond)
		if errors.Is(err, transport.ErrReceiveTimeout) {
			continue
		}
		if errors.Is(err, transport.ErrClosed) {
			if sniffStats {
				fmt.Printf("\n%s\n", dec.Stats())
			}
			return nil
		}
		if err != nil {
			return err
		}

		dec.Write(buf[:n])
		for {
			pkt, err := dec.Next()
			if errors.Is(err, cdc.ErrIncomplete) {
				break
			}
			if err != nil {
				fmt.Printf("%s [NOISE] %v\n", time.Now().Format("15:04:05.000"), err)
				continue
			}
			fmt.Printf("%s %s\n", time.Now().Format("15:04:05.000"), cdc.FormatPacket(pkt))
		}
	}
}
