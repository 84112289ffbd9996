// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Tetrad Robotics

package transport

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/loopholelabs/logging/types"
	"go.bug.st/serial"
)

// Controllers enumerate as CDC-ACM devices at a fixed rate.
const SerialBaudRate = 115200

// Serial is the USB virtual serial port backend: a continuous byte
// stream with no message boundaries.
type Serial struct {
	port   serial.Port
	name   string
	closed atomic.Bool
	log    types.Logger
}

// OpenSerial opens the named port at the protocol's fixed 115200 8N1
// settings. The logger is optional.
func OpenSerial(portName string, log types.Logger) (*Serial, error) {
	mode := &serial.Mode{
		BaudRate: SerialBaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("transport: open %s: %w", portName, err)
	}

	if log != nil {
		log.Debug().Str("port", portName).Int("baud", SerialBaudRate).Msg("serial port opened")
	}
	return &Serial{port: port, name: portName, log: log}, nil
}

// Name returns the device path of the open port.
func (s *Serial) Name() string {
	return s.name
}

func (s *Serial) Send(p []byte) error {
	if s.closed.Load() {
		return ErrClosed
	}
	for len(p) > 0 {
		n, err := s.port.Write(p)
		if err != nil {
			return fmt.Errorf("transport: serial write: %w", err)
		}
		p = p[n:]
	}
	return s.port.Drain()
}

func (s *Serial) Receive(p []byte, timeout time.Duration) (int, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	if err := s.port.SetReadTimeout(timeout); err != nil {
		return 0, fmt.Errorf("transport: serial set timeout: %w", err)
	}

	n, err := s.port.Read(p)
	if err != nil {
		return n, fmt.Errorf("transport: serial read: %w", err)
	}
	// A zero-byte read means the driver timeout expired.
	if n == 0 {
		return 0, ErrReceiveTimeout
	}
	return n, nil
}

func (s *Serial) Connected() bool {
	return !s.closed.Load()
}

func (s *Serial) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	if s.log != nil {
		s.log.Debug().Str("port", s.name).Msg("serial port closed")
	}
	return s.port.Close()
}
