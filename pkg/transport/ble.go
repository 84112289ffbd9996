// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Tetrad Robotics

package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/loopholelabs/logging/types"
	"tinygo.org/x/bluetooth"
)

// GATT UUIDs advertised by the controllers. The device notifies
// host-bound bytes on the data TX characteristic and accepts
// device-bound bytes on data RX; the pairing characteristic gates both
// behind a four-digit PIN shown on the device screen.
const (
	GATTService = "08590f7e-db05-467e-8757-72f6faeb13d5"

	gattDataTx  = "08590f7e-db05-467e-8757-72f6faeb1306"
	gattDataRx  = "08590f7e-db05-467e-8757-72f6faeb13f5"
	gattPairing = "08590f7e-db05-467e-8757-72f6faeb13e5"
)

// Reading this magic from the pairing characteristic means the device
// wants a PIN exchange before it will talk.
const pairingMagic uint32 = 0xDEADFACE

// Fallback write size when MTU negotiation is unavailable: the 23-byte
// BLE default minus the 3-byte ATT header.
const defaultChunkSize = 20

var (
	// ErrPairingRejected is returned when the device does not accept
	// the offered PIN.
	ErrPairingRejected = errors.New("transport: device rejected the PIN")

	// ErrNotPaired is returned by Send/Receive before the PIN exchange
	// has completed on a device that demands one.
	ErrNotPaired = errors.New("transport: PIN exchange not completed")
)

// BLE is the Bluetooth Low Energy backend. Writes are fragmented to the
// negotiated MTU and reassembled by firmware; reads arrive as discrete
// notification payloads which are concatenated before frame decoding.
type BLE struct {
	device  bluetooth.Device
	dataRx  bluetooth.DeviceCharacteristic // host → device
	dataTx  bluetooth.DeviceCharacteristic // device → host
	pairing bluetooth.DeviceCharacteristic

	chunkSize     int
	notifications chan []byte
	pending       []byte

	authenticated atomic.Bool
	closed        atomic.Bool
	log           types.Logger
}

func mustUUID(s string) bluetooth.UUID {
	u, err := bluetooth.ParseUUID(s)
	if err != nil {
		panic(fmt.Sprintf("transport: bad UUID literal %q: %v", s, err))
	}
	return u
}

// DialBLE connects to a device, discovers the protocol service and
// characteristics, and subscribes to host-bound notifications. If the
// device does not demand a PIN exchange the transport is immediately
// ready; otherwise the caller must complete RequestPairing and
// Authenticate before command traffic flows.
func DialBLE(adapter *bluetooth.Adapter, addr bluetooth.Address, log types.Logger) (*BLE, error) {
	device, err := adapter.Connect(addr, bluetooth.ConnectionParams{})
	if err != nil {
		return nil, fmt.Errorf("transport: ble connect %s: %w", addr.String(), err)
	}

	services, err := device.DiscoverServices([]bluetooth.UUID{mustUUID(GATTService)})
	if err != nil || len(services) == 0 {
		device.Disconnect()
		return nil, fmt.Errorf("transport: protocol service not found on %s: %w", addr.String(), err)
	}

	chars, err := services[0].DiscoverCharacteristics([]bluetooth.UUID{
		mustUUID(gattDataTx), mustUUID(gattDataRx), mustUUID(gattPairing),
	})
	if err != nil {
		device.Disconnect()
		return nil, fmt.Errorf("transport: characteristic discovery: %w", err)
	}

	b := &BLE{
		device:        device,
		chunkSize:     defaultChunkSize,
		notifications: make(chan []byte, 64),
		log:           log,
	}

	found := 0
	for _, c := range chars {
		switch c.UUID() {
		case mustUUID(gattDataTx):
			b.dataTx = c
			found++
		case mustUUID(gattDataRx):
			b.dataRx = c
			found++
		case mustUUID(gattPairing):
			b.pairing = c
			found++
		}
	}
	if found != 3 {
		device.Disconnect()
		return nil, fmt.Errorf("transport: expected 3 protocol characteristics, found %d", found)
	}

	if mtu, err := b.dataRx.GetMTU(); err == nil && int(mtu) > 3 {
		b.chunkSize = int(mtu) - 3
	}

	err = b.dataTx.EnableNotifications(func(buf []byte) {
		// The stack reuses the notification buffer; copy before queuing.
		data := make([]byte, len(buf))
		copy(data, buf)
		select {
		case b.notifications <- data:
		default:
			if b.log != nil {
				b.log.Warn().Int("bytes", len(data)).Msg("ble notification queue full, dropping")
			}
		}
	})
	if err != nil {
		device.Disconnect()
		return nil, fmt.Errorf("transport: enable notifications: %w", err)
	}

	required, err := b.pairingRequired()
	if err != nil {
		device.Disconnect()
		return nil, err
	}
	b.authenticated.Store(!required)

	if log != nil {
		log.Debug().
			Str("address", addr.String()).
			Int("chunk_size", b.chunkSize).
			Bool("pin_required", required).
			Msg("ble link established")
	}
	return b, nil
}

// ParseAddress converts a textual MAC address into a dialable BLE
// address.
func ParseAddress(s string) (bluetooth.Address, error) {
	mac, err := bluetooth.ParseMAC(s)
	if err != nil {
		return bluetooth.Address{}, fmt.Errorf("transport: bad BLE address %q: %w", s, err)
	}
	return bluetooth.Address{MACAddress: bluetooth.MACAddress{MAC: mac}}, nil
}

func (b *BLE) pairingRequired() (bool, error) {
	buf := make([]byte, 4)
	n, err := b.pairing.Read(buf)
	if err != nil {
		return false, fmt.Errorf("transport: read pairing state: %w", err)
	}
	return n == 4 && binary.BigEndian.Uint32(buf) == pairingMagic, nil
}

// RequestPairing asks the device to display its PIN. The device shows
// four digits on screen until Authenticate succeeds or the link drops.
func (b *BLE) RequestPairing() error {
	if b.closed.Load() {
		return ErrClosed
	}
	if _, err := b.pairing.WriteWithoutResponse([]byte{0xFF, 0xFF, 0xFF, 0xFF}); err != nil {
		return fmt.Errorf("transport: pairing request: %w", err)
	}
	return nil
}

// Authenticate offers a four-digit PIN. On acceptance the transport
// becomes ready for command traffic.
func (b *BLE) Authenticate(pin [4]byte) error {
	if b.closed.Load() {
		return ErrClosed
	}
	if _, err := b.pairing.WriteWithoutResponse(pin[:]); err != nil {
		return fmt.Errorf("transport: pin write: %w", err)
	}

	// The characteristic keeps reporting the magic until the device
	// accepts the PIN.
	required, err := b.pairingRequired()
	if err != nil {
		return err
	}
	if required {
		return ErrPairingRejected
	}

	b.authenticated.Store(true)
	if b.log != nil {
		b.log.Debug().Msg("ble pairing accepted")
	}
	return nil
}

// AuthenticatePIN parses a four-digit PIN string and authenticates.
func (b *BLE) AuthenticatePIN(code string) error {
	if len(code) != 4 {
		return fmt.Errorf("transport: PIN must be 4 digits, got %q", code)
	}
	var pin [4]byte
	for i, r := range code {
		if r < '0' || r > '9' {
			return fmt.Errorf("transport: PIN must be 4 digits, got %q", code)
		}
		pin[i] = byte(r - '0')
	}
	return b.Authenticate(pin)
}

// Ready reports whether the PIN exchange (if any) has completed.
func (b *BLE) Ready() bool {
	return b.authenticated.Load()
}

func (b *BLE) Send(p []byte) error {
	if b.closed.Load() {
		return ErrClosed
	}
	if !b.authenticated.Load() {
		return ErrNotPaired
	}

	// Firmware reassembles fragments; each GATT write carries at most
	// one MTU worth of payload.
	for len(p) > 0 {
		n := len(p)
		if n > b.chunkSize {
			n = b.chunkSize
		}
		if _, err := b.dataRx.WriteWithoutResponse(p[:n]); err != nil {
			return fmt.Errorf("transport: ble write: %w", err)
		}
		p = p[n:]
	}
	return nil
}

func (b *BLE) Receive(p []byte, timeout time.Duration) (int, error) {
	if b.closed.Load() {
		return 0, ErrClosed
	}
	if !b.authenticated.Load() {
		return 0, ErrNotPaired
	}

	if len(b.pending) == 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		select {
		case data := <-b.notifications:
			b.pending = data
		case <-timer.C:
			return 0, ErrReceiveTimeout
		}
	}

	n := copy(p, b.pending)
	b.pending = b.pending[n:]
	return n, nil
}

func (b *BLE) Connected() bool {
	return !b.closed.Load()
}

func (b *BLE) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	if b.log != nil {
		b.log.Debug().Msg("ble link closed")
	}
	return b.device.Disconnect()
}
