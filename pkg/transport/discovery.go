// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Tetrad Robotics

package transport

import (
	"fmt"
	"strings"
	"time"

	"go.bug.st/serial/enumerator"
	"tinygo.org/x/bluetooth"
)

// USB identifiers the controllers enumerate with.
const (
	usbVendorID      = "2888"
	usbProductBrain  = "0501"
	usbProductRemote = "0503"
)

// DeviceKind distinguishes the two controller models on the bus.
type DeviceKind int

const (
	KindUnknown DeviceKind = iota
	KindBrain              // primary robot controller
	KindRemote             // handheld remote over its own radio link
)

func (k DeviceKind) String() string {
	switch k {
	case KindBrain:
		return "brain"
	case KindRemote:
		return "remote"
	default:
		return "unknown"
	}
}

// SerialDevice describes one discovered USB serial endpoint.
type SerialDevice struct {
	Port   string
	Kind   DeviceKind
	Serial string
}

// FindSerialDevices enumerates USB serial ports and returns those whose
// VID/PID match a known controller. The brain exposes two CDC
// interfaces; both appear here and either accepts commands.
func FindSerialDevices() ([]SerialDevice, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("transport: enumerate serial ports: %w", err)
	}

	var devices []SerialDevice
	for _, port := range ports {
		if !port.IsUSB || !strings.EqualFold(port.VID, usbVendorID) {
			continue
		}

		kind := KindUnknown
		switch strings.ToLower(port.PID) {
		case usbProductBrain:
			kind = KindBrain
		case usbProductRemote:
			kind = KindRemote
		default:
			continue
		}

		devices = append(devices, SerialDevice{
			Port:   port.Name,
			Kind:   kind,
			Serial: port.SerialNumber,
		})
	}
	return devices, nil
}

// BLEDevice describes one advertising controller seen during a scan.
type BLEDevice struct {
	Address bluetooth.Address
	Name    string
	RSSI    int16
}

// ScanBLE scans for controllers advertising the protocol service and
// returns every distinct device seen before the timeout. A zero timeout
// scans until the first match.
func ScanBLE(adapter *bluetooth.Adapter, timeout time.Duration) ([]BLEDevice, error) {
	service := mustUUID(GATTService)

	var (
		devices []BLEDevice
		seen    = map[string]bool{}
	)

	if timeout > 0 {
		timer := time.AfterFunc(timeout, func() {
			adapter.StopScan()
		})
		defer timer.Stop()
	}

	err := adapter.Scan(func(a *bluetooth.Adapter, result bluetooth.ScanResult) {
		if !result.AdvertisementPayload.HasServiceUUID(service) {
			return
		}
		key := result.Address.String()
		if seen[key] {
			return
		}
		seen[key] = true

		devices = append(devices, BLEDevice{
			Address: result.Address,
			Name:    result.LocalName(),
			RSSI:    result.RSSI,
		})
		if timeout == 0 {
			a.StopScan()
		}
	})
	if err != nil {
		return nil, fmt.Errorf("transport: ble scan: %w", err)
	}
	return devices, nil
}
