// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Tetrad Robotics

package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"tinygo.org/x/bluetooth"

	"github.com/tetrad-robotics/brainlink/pkg/transport"
)

var devicesScanBLE bool

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List connected controllers",
	Long: `List controllers attached over USB, and optionally scan for
controllers advertising over Bluetooth LE.`,
	RunE: runDevices,
}

func init() {
	rootCmd.AddCommand(devicesCmd)
	devicesCmd.Flags().BoolVar(&devicesScanBLE, "scan", false, "Also scan for BLE devices (5s)")
}

func runDevices(cmd *cobra.Command, args []string) error {
	found, err := transport.FindSerialDevices()
	if err != nil {
		return err
	}

	if len(found) == 0 {
		fmt.Println("No USB controllers found")
	}
	for _, d := range found {
		fmt.Printf("%-16s %-10s serial=%s\n", d.Port, d.Kind, d.Serial)
	}

	if !devicesScanBLE {
		return nil
	}

	adapter := bluetooth.DefaultAdapter
	if err := adapter.Enable(); err != nil {
		return fmt.Errorf("enable BLE adapter: %w", err)
	}

	fmt.Println("\nScanning for BLE devices...")
	devices, err := transport.ScanBLE(adapter, 5*time.Second)
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		fmt.Println("No BLE controllers found")
	}
	for _, d := range devices {
		fmt.Printf("%-20s %-24s rssi=%d\n", d.Address.String(), d.Name, d.RSSI)
	}
	return nil
}
