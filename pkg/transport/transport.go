// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Tetrad Robotics

// Package transport provides the byte-oriented links a protocol
// connection runs over: USB serial, BLE GATT, and a WebSocket bridge
// for simulators. Each backend owns its framing quirks (continuous
// stream, MTU-chunked notifications, discrete messages) and exposes the
// same contract upward.
package transport

import (
	"errors"
	"time"
)

// Transport moves raw protocol bytes between host and device. A
// Transport is owned by exactly one connection; its lifetime ends when
// that connection closes it.
type Transport interface {
	// Send writes the whole buffer to the device.
	Send(p []byte) error

	// Receive blocks until at least one byte is available or the
	// timeout elapses, returning ErrReceiveTimeout in the latter case.
	// It may return fewer bytes than a full protocol frame; callers
	// accumulate.
	Receive(p []byte, timeout time.Duration) (int, error)

	// Connected reports link liveness.
	Connected() bool

	// Close releases the underlying I/O resource. Safe to call more
	// than once.
	Close() error
}

// Handshaker is implemented by transports that require an
// authentication exchange before command traffic is permitted. The
// connection layer refuses commands until Ready reports true.
type Handshaker interface {
	Ready() bool
}

var (
	// ErrReceiveTimeout signals that no bytes arrived within the
	// receive deadline. The link itself is still healthy.
	ErrReceiveTimeout = errors.New("transport: receive timeout")

	// ErrClosed is returned by operations on a closed transport.
	ErrClosed = errors.New("transport: closed")
)
