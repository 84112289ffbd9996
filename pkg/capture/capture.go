// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Tetrad Robotics

// Package capture records raw wire traffic to a CBOR stream and plays
// it back, either record by record or as a Transport for offline
// decoding.
package capture

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/tetrad-robotics/brainlink/pkg/transport"
)

// Direction tags which way a frame travelled.
type Direction uint8

const (
	HostToDevice Direction = 1
	DeviceToHost Direction = 2
)

func (d Direction) String() string {
	switch d {
	case HostToDevice:
		return "tx"
	case DeviceToHost:
		return "rx"
	default:
		return "??"
	}
}

// Record is one captured slice of the byte stream. Records preserve
// read boundaries, not protocol frame boundaries; a frame may span
// records.
type Record struct {
	Timestamp int64     `cbor:"1,keyasint"` // unix nanoseconds
	Direction Direction `cbor:"2,keyasint"`
	Raw       []byte    `cbor:"3,keyasint"`
}

// Time returns the record timestamp as wall clock time.
func (r *Record) Time() time.Time {
	return time.Unix(0, r.Timestamp)
}

// Writer appends records to a CBOR stream. Safe for concurrent use.
type Writer struct {
	mu  sync.Mutex
	enc *cbor.Encoder
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{enc: cbor.NewEncoder(w)}
}

// Record stamps and appends one captured slice.
func (w *Writer) Record(dir Direction, raw []byte) error {
	rec := Record{
		Timestamp: time.Now().UnixNano(),
		Direction: dir,
		Raw:       append([]byte(nil), raw...),
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(&rec); err != nil {
		return fmt.Errorf("capture: encode record: %w", err)
	}
	return nil
}

// Reader iterates a CBOR capture stream.
type Reader struct {
	dec *cbor.Decoder
}

func NewReader(r io.Reader) *Reader {
	return &Reader{dec: cbor.NewDecoder(r)}
}

// Next returns the next record, or io.EOF at the end of the stream.
func (r *Reader) Next() (*Record, error) {
	var rec Record
	if err := r.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("capture: decode record: %w", err)
	}
	return &rec, nil
}

// Tap wraps a live transport and records everything that crosses it.
type Tap struct {
	transport.Transport
	w *Writer
}

func NewTap(tr transport.Transport, w *Writer) *Tap {
	return &Tap{Transport: tr, w: w}
}

func (t *Tap) Send(p []byte) error {
	if err := t.Transport.Send(p); err != nil {
		return err
	}
	return t.w.Record(HostToDevice, p)
}

func (t *Tap) Receive(p []byte, timeout time.Duration) (int, error) {
	n, err := t.Transport.Receive(p, timeout)
	if n > 0 {
		if recErr := t.w.Record(DeviceToHost, p[:n]); recErr != nil {
			return n, recErr
		}
	}
	return n, err
}

// Replay presents the device-bound half of a capture as a Transport, so
// the decoding pipeline can run over recorded traffic. Sends are
// accepted and dropped.
type Replay struct {
	r    *Reader
	done bool
}

func NewReplay(r io.Reader) *Replay {
	return &Replay{r: NewReader(r)}
}

func (r *Replay) Send(p []byte) error {
	return nil
}

func (r *Replay) Receive(p []byte, timeout time.Duration) (int, error) {
	for {
		rec, err := r.r.Next()
		if errors.Is(err, io.EOF) {
			r.done = true
			return 0, transport.ErrClosed
		}
		if err != nil {
			return 0, err
		}
		if rec.Direction != DeviceToHost || len(rec.Raw) == 0 {
			continue
		}
		if len(rec.Raw) > len(p) {
			return 0, fmt.Errorf("capture: record of %d bytes exceeds read buffer", len(rec.Raw))
		}
		return copy(p, rec.Raw), nil
	}
}

func (r *Replay) Connected() bool {
	return !r.done
}

func (r *Replay) Close() error {
	r.done = true
	return nil
}
