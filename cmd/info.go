// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Tetrad Robotics

package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tetrad-robotics/brainlink/pkg/device"
	"github.com/tetrad-robotics/brainlink/pkg/link"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Query device identity and status",
	Long: `Connect to a controller and print its name, firmware versions,
battery and radio state, and (on a direct brain link) the boot details.`,
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	conn, info, err := openConnection(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("Connection: %s\n\n", info)

	name := &device.DeviceName{}
	if err := conn.Execute(ctx, name, responseTimeout()); err != nil {
		return fmt.Errorf("device name: %w", err)
	}
	fmt.Printf("Name:     %s\n", name.Name)

	version := &device.SystemVersion{}
	if err := conn.Execute(ctx, version, responseTimeout()); err != nil {
		return fmt.Errorf("system version: %w", err)
	}
	fmt.Printf("Product:  %s\n", version.Product)
	fmt.Printf("Firmware: %s\n", version.Version)

	flags := &device.SystemFlags{}
	if err := conn.Execute(ctx, flags, responseTimeout()); err != nil {
		return fmt.Errorf("system flags: %w", err)
	}
	fmt.Printf("Battery:  %d%%\n", flags.BatteryPercent())
	if version.Product == device.ProductController {
		fmt.Printf("Radio:    %d%%\n", flags.RadioQuality())
	}
	if flags.CurrentProgram != 0 {
		fmt.Printf("Program:  %d\n", flags.CurrentProgram)
	}

	status := &device.SystemStatus{}
	err = conn.Execute(ctx, status, responseTimeout())
	var nack *link.NackError
	if errors.As(err, &nack) {
		// Older firmware refuses this query; everything above already
		// printed.
		return nil
	}
	if err != nil {
		return fmt.Errorf("system status: %w", err)
	}

	fmt.Printf("CPU0:     %s\n", status.CPU0Version)
	fmt.Printf("CPU1:     %s\n", status.CPU1Version)
	fmt.Printf("Touch:    %s\n", status.TouchVersion)
	if status.Details != nil {
		fmt.Printf("Serial#:  %08X\n", status.Details.SerialNumber)
		fmt.Printf("Golden:   %s\n", status.Details.GoldenVersion)
	}
	return nil
}
