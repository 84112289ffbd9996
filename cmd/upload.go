// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Tetrad Robotics

package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/spf13/cobra"

	"github.com/tetrad-robotics/brainlink/pkg/device"
)

var (
	uploadName    string
	uploadRun     bool
	uploadAddress uint32
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload a program binary to the device",
	Long: `Upload a binary into the device's user filesystem.

The transfer is CRC-checked end to end: the device verifies the
whole-file CRC-32 announced at init before accepting the upload.`,
	Args: cobra.ExactArgs(1),
	RunE: runUpload,
}

func init() {
	rootCmd.AddCommand(uploadCmd)
	uploadCmd.Flags().StringVar(&uploadName, "name", "", "Name on the device (default: source file name)")
	uploadCmd.Flags().BoolVar(&uploadRun, "run", false, "Run the program after upload")
	uploadCmd.Flags().Uint32Var(&uploadAddress, "address", 0, "Load address override")
}

func runUpload(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	name := uploadName
	if name == "" {
		name = filepath.Base(args[0])
	}
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	if ext == "" {
		ext = "bin"
	}

	ctx := context.Background()
	conn, info, err := openConnection(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("Connection: %s\n", info)
	fmt.Printf("Uploading %s (%d bytes) as %q\n", args[0], len(data), name)

	after := device.ExitDoNothing
	if uploadRun {
		after = device.ExitRunProgram
	}

	bar := progress.New(progress.WithDefaultGradient())
	err = device.Upload(ctx, conn, device.UploadOptions{
		Name:        name,
		Data:        data,
		LoadAddress: uploadAddress,
		Extension:   ext,
		After:       after,
		Progress: func(sent, total int) {
			fmt.Printf("\r%s", bar.ViewAs(float64(sent)/float64(total)))
		},
	})
	fmt.Println()
	if err != nil {
		return err
	}

	fmt.Println("Upload complete")
	return nil
}
