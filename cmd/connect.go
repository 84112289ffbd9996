// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Tetrad Robotics

package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"
	"tinygo.org/x/bluetooth"

	"github.com/tetrad-robotics/brainlink/pkg/device"
	"github.com/tetrad-robotics/brainlink/pkg/link"
	"github.com/tetrad-robotics/brainlink/pkg/transport"
)

func responseTimeout() time.Duration {
	return time.Duration(timeoutMS) * time.Millisecond
}

// openTransport opens whichever link the flags select. With no flags it
// auto-detects the first USB controller on the bus.
func openTransport() (transport.Transport, string, error) {
	switch {
	case bridgeURL != "":
		tr, err := transport.DialBridge(bridgeURL, log)
		if err != nil {
			return nil, "", err
		}
		return tr, fmt.Sprintf("WebSocket: %s", bridgeURL), nil

	case bleAddress != "":
		return openBLE()

	default:
		name := portName
		if name == "" {
			found, err := transport.FindSerialDevices()
			if err != nil {
				return nil, "", err
			}
			if len(found) == 0 {
				return nil, "", fmt.Errorf("no controller found; specify --port, --ble, or --url")
			}
			name = found[0].Port
		}

		tr, err := transport.OpenSerial(name, log)
		if err != nil {
			return nil, "", err
		}
		return tr, fmt.Sprintf("Serial: %s", name), nil
	}
}

func openBLE() (transport.Transport, string, error) {
	adapter := bluetooth.DefaultAdapter
	if err := adapter.Enable(); err != nil {
		return nil, "", fmt.Errorf("enable BLE adapter: %w", err)
	}

	addr, err := transport.ParseAddress(bleAddress)
	if err != nil {
		return nil, "", err
	}

	b, err := transport.DialBLE(adapter, addr, log)
	if err != nil {
		return nil, "", err
	}

	if !b.Ready() {
		if err := b.RequestPairing(); err != nil {
			b.Close()
			return nil, "", err
		}
		pin, err := getPIN()
		if err != nil {
			b.Close()
			return nil, "", err
		}
		if err := b.AuthenticatePIN(pin); err != nil {
			b.Close()
			return nil, "", err
		}
	}

	return b, fmt.Sprintf("BLE: %s", bleAddress), nil
}

// getPIN retrieves the pairing PIN from the environment or prompts for
// it with echo disabled.
func getPIN() (string, error) {
	if pin := os.Getenv("BRAINLINK_PIN"); pin != "" {
		return pin, nil
	}

	fmt.Fprint(os.Stderr, "PIN (shown on device screen): ")

	pinBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fall back to plain input when not attached to a terminal.
		reader := bufio.NewReader(os.Stdin)
		pin, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("read PIN: %w", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(pin), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(pinBytes), nil
}

// openConnection opens a transport and runs the session handshake over
// it.
func openConnection(ctx context.Context) (*link.Connection, string, error) {
	tr, info, err := openTransport()
	if err != nil {
		return nil, "", err
	}

	conn := link.New(tr, log)
	if err := link.Handshake(ctx, conn, &device.Query1{}, responseTimeout()); err != nil {
		conn.Close()
		return nil, "", fmt.Errorf("handshake: %w", err)
	}
	return conn, info, nil
}
