// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Tetrad Robotics

package link

import (
	"errors"
	"fmt"

	"github.com/tetrad-robotics/brainlink/pkg/cdc"
)

var (
	// ErrBusy is returned when a command is issued while another is
	// still awaiting its response. The link is half duplex; callers
	// serialize.
	ErrBusy = errors.New("link: command already in flight")

	// ErrNotConnected is returned after the transport has failed or the
	// connection was closed.
	ErrNotConnected = errors.New("link: not connected")

	// ErrNotReady is returned while the transport's authentication
	// exchange is still pending.
	ErrNotReady = errors.New("link: transport not ready")

	// ErrTimeout is returned when no matching response arrived within
	// the command deadline. The connection stays usable.
	ErrTimeout = errors.New("link: response timeout")
)

// NackError is a device refusal: the command reached the device and it
// answered with a negative acknowledgement.
type NackError struct {
	Code cdc.AckCode
}

func (e *NackError) Error() string {
	return fmt.Sprintf("link: device refused command: %s", e.Code)
}

// TransportError wraps a link-layer failure. The connection transitions
// to Disconnected when one occurs.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("link: transport failure: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
