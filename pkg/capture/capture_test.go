// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Tetrad Robotics

package capture

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tetrad-robotics/brainlink/pkg/cdc"
)

func TestWriteReadRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	require.NoError(t, w.Record(HostToDevice, []byte{0xC9, 0x36, 0x21, 0x00}))
	require.NoError(t, w.Record(DeviceToHost, []byte{0x01, 0x02}))

	r := NewReader(&buf)

	rec, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, HostToDevice, rec.Direction)
	assert.Equal(t, []byte{0xC9, 0x36, 0x21, 0x00}, rec.Raw)
	assert.WithinDuration(t, time.Now(), rec.Time(), time.Minute)

	rec, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, DeviceToHost, rec.Direction)

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReplay_DecodesRecordedFrames(t *testing.T) {
	frame1, err := cdc.EncodeBasic(cdc.CommandQuery1, []byte{1, 2, 3, 4})
	require.NoError(t, err)
	frame2, err := cdc.EncodeExtended(cdc.CommandExtended, cdc.ExtSystemFlags,
		[]byte{byte(cdc.AckOK), 0xAA})
	require.NoError(t, err)

	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.Record(HostToDevice, []byte{0xFF}))
	// Split a frame across two records; the decoder must reassemble.
	require.NoError(t, w.Record(DeviceToHost, frame1[:3]))
	require.NoError(t, w.Record(DeviceToHost, frame1[3:]))
	require.NoError(t, w.Record(DeviceToHost, frame2))

	replay := NewReplay(&buf)
	dec := cdc.NewDecoder()
	var packets []*cdc.Packet

	readBuf := make([]byte, 4096)
	for replay.Connected() {
		n, err := replay.Receive(readBuf, time.Second)
		if err != nil {
			break
		}
		dec.Write(readBuf[:n])
		for {
			pkt, err := dec.Next()
			if err != nil {
				break
			}
			packets = append(packets, pkt)
		}
	}

	require.Len(t, packets, 2)
	assert.Equal(t, byte(cdc.CommandQuery1), packets[0].CommandID)
	assert.Equal(t, []byte{1, 2, 3, 4}, packets[0].Payload)
	assert.Equal(t, cdc.KindExtended, packets[1].Kind)
	assert.Equal(t, byte(cdc.ExtSystemFlags), packets[1].ExtCommandID)
}

type nullTransport struct {
	rx []byte
}

func (n *nullTransport) Send(p []byte) error { return nil }
func (n *nullTransport) Receive(p []byte, timeout time.Duration) (int, error) {
	c := copy(p, n.rx)
	n.rx = nil
	return c, nil
}
func (n *nullTransport) Connected() bool { return true }
func (n *nullTransport) Close() error    { return nil }

func TestTap_RecordsBothDirections(t *testing.T) {
	var buf bytes.Buffer
	tap := NewTap(&nullTransport{rx: []byte{0xAA, 0xBB}}, NewWriter(&buf))

	require.NoError(t, tap.Send([]byte{0x01}))
	readBuf := make([]byte, 16)
	n, err := tap.Receive(readBuf, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	r := NewReader(&buf)
	rec, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, HostToDevice, rec.Direction)
	assert.Equal(t, []byte{0x01}, rec.Raw)

	rec, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, DeviceToHost, rec.Direction)
	assert.Equal(t, []byte{0xAA, 0xBB}, rec.Raw)
}
