// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Tetrad Robotics

package cmd

import (
	"os"

	"github.com/loopholelabs/logging"
	"github.com/loopholelabs/logging/types"
	"github.com/spf13/cobra"
)

var (
	// Connection flags
	portName   string
	bleAddress string
	bridgeURL  string

	// Per-exchange response deadline in milliseconds
	timeoutMS int

	verbose bool

	log types.RootLogger
)

var rootCmd = &cobra.Command{
	Use:   "brainlink",
	Short: "CDC/CDC2 protocol tool for Tetrad robotics controllers",
	Long: `Brainlink - talk to Tetrad robotics controllers over USB serial,
Bluetooth LE, or a WebSocket bridge.

Provides device discovery, system queries, program upload, live wire
sniffing, and a status dashboard.

Connection modes:
  Serial:    --port /dev/ttyACM0 (or auto-detected when omitted)
  BLE:       --ble AA:BB:CC:DD:EE:FF
  WebSocket: --url ws://host/path

BLE links that demand a PIN read it from the BRAINLINK_PIN environment
variable, or prompt interactively if it is not set. The PIN is shown on
the device screen during pairing.`,
	Version: "0.4.0",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log = logging.New(logging.Zerolog, "brainlink", os.Stderr)
		if verbose {
			log.SetLevel(types.DebugLevel)
		} else {
			log.SetLevel(types.InfoLevel)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().StringVar(&bleAddress, "ble", "", "BLE device address")
	rootCmd.PersistentFlags().StringVarP(&bridgeURL, "url", "u", "", "WebSocket bridge URL (ws:// or wss://)")
	rootCmd.PersistentFlags().IntVar(&timeoutMS, "timeout", 1000, "Response timeout per exchange (ms)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
