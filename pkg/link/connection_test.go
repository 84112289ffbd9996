// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Tetrad Robotics

package link

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tetrad-robotics/brainlink/pkg/cdc"
	"github.com/tetrad-robotics/brainlink/pkg/transport"
)

// mockTransport is a scripted in-memory link. Tests feed device-side
// bytes with push, or install an onSend hook to answer requests.
type mockTransport struct {
	mu      sync.Mutex
	rx      bytes.Buffer
	sent    [][]byte
	onSend  func(frame []byte)
	sendErr error
	closed  bool
	notify  chan struct{}
}

func newMockTransport() *mockTransport {
	return &mockTransport{notify: make(chan struct{}, 1)}
}

func (m *mockTransport) push(b []byte) {
	m.mu.Lock()
	m.rx.Write(b)
	m.mu.Unlock()
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

func (m *mockTransport) Send(p []byte) error {
	m.mu.Lock()
	frame := append([]byte(nil), p...)
	m.sent = append(m.sent, frame)
	err := m.sendErr
	hook := m.onSend
	m.mu.Unlock()
	if err != nil {
		return err
	}
	if hook != nil {
		hook(frame)
	}
	return nil
}

func (m *mockTransport) Receive(p []byte, timeout time.Duration) (int, error) {
	deadline := time.After(timeout)
	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return 0, transport.ErrClosed
		}
		if m.rx.Len() > 0 {
			n, _ := m.rx.Read(p)
			m.mu.Unlock()
			return n, nil
		}
		m.mu.Unlock()

		select {
		case <-m.notify:
		case <-deadline:
			return 0, transport.ErrReceiveTimeout
		}
	}
}

func (m *mockTransport) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.closed
}

func (m *mockTransport) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	select {
	case m.notify <- struct{}{}:
	default:
	}
	return nil
}

func (m *mockTransport) sentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// gatedTransport refuses traffic until its handshake flag is set.
type gatedTransport struct {
	*mockTransport
	ready bool
}

func (g *gatedTransport) Ready() bool {
	return g.ready
}

func basicRequest(t *testing.T, commandID byte, payload []byte) *cdc.Packet {
	t.Helper()
	return &cdc.Packet{Kind: cdc.KindBasic, CommandID: commandID, Payload: payload}
}

func extendedRequest(t *testing.T, extID byte, payload []byte) *cdc.Packet {
	t.Helper()
	return &cdc.Packet{
		Kind:         cdc.KindExtended,
		CommandID:    cdc.CommandExtended,
		ExtCommandID: extID,
		Payload:      payload,
	}
}

func TestExecute_BasicExchange(t *testing.T) {
	tr := newMockTransport()
	tr.onSend = func(frame []byte) {
		reply, err := cdc.EncodeBasic(cdc.CommandSystemVersion, []byte{1, 2, 3, 4, 5, 6, 7, 8})
		require.NoError(t, err)
		tr.push(reply)
	}

	conn := New(tr, nil)
	cmd := &Raw{Packet: basicRequest(t, cdc.CommandSystemVersion, nil)}
	require.NoError(t, conn.Execute(context.Background(), cmd, time.Second))

	require.NotNil(t, cmd.Reply)
	assert.Equal(t, cdc.KindBasic, cmd.Reply.Kind)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, cmd.Reply.Payload)
	assert.Equal(t, StateConnected, conn.State())
}

func TestExecute_ExtendedExchange(t *testing.T) {
	tr := newMockTransport()
	tr.onSend = func(frame []byte) {
		reply, err := cdc.EncodeExtended(cdc.CommandExtended, cdc.ExtSystemFlags,
			[]byte{byte(cdc.AckOK), 0xAA, 0xBB})
		require.NoError(t, err)
		tr.push(reply)
	}

	conn := New(tr, nil)
	cmd := &Raw{Packet: extendedRequest(t, cdc.ExtSystemFlags, nil)}
	require.NoError(t, conn.Execute(context.Background(), cmd, time.Second))

	require.NotNil(t, cmd.Reply)
	ack, ok := cmd.Reply.Ack()
	require.True(t, ok)
	assert.True(t, ack.OK())
	assert.Equal(t, []byte{0xAA, 0xBB}, cmd.Reply.Body())
}

func TestExecute_Busy(t *testing.T) {
	tr := newMockTransport()
	conn := New(tr, nil)

	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		cmd := &Raw{Packet: basicRequest(t, cdc.CommandQuery1, nil)}
		close(started)
		done <- conn.Execute(context.Background(), cmd, 2*time.Second)
	}()

	<-started
	require.Eventually(t, func() bool {
		return conn.State() == StateAwaitingResponse
	}, time.Second, time.Millisecond)

	cmd := &Raw{Packet: basicRequest(t, cdc.CommandQuery1, nil)}
	assert.ErrorIs(t, conn.Execute(context.Background(), cmd, time.Second), ErrBusy)

	reply, err := cdc.EncodeBasic(cdc.CommandQuery1, nil)
	require.NoError(t, err)
	tr.push(reply)
	require.NoError(t, <-done)
}

func TestExecute_Timeout(t *testing.T) {
	tr := newMockTransport()
	conn := New(tr, nil)

	cmd := &Raw{Packet: basicRequest(t, cdc.CommandQuery1, nil)}
	err := conn.Execute(context.Background(), cmd, 50*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, StateConnected, conn.State())

	// The connection is still usable after a timeout.
	tr.onSend = func(frame []byte) {
		reply, err := cdc.EncodeBasic(cdc.CommandQuery1, nil)
		require.NoError(t, err)
		tr.push(reply)
	}
	cmd = &Raw{Packet: basicRequest(t, cdc.CommandQuery1, nil)}
	assert.NoError(t, conn.Execute(context.Background(), cmd, time.Second))
}

func TestExecute_Nack(t *testing.T) {
	codes := []cdc.AckCode{
		cdc.NackGeneral,
		cdc.NackPacketCRC,
		cdc.NackProgramCRC,
		cdc.NackFileStorageFull,
	}

	for _, code := range codes {
		t.Run(code.String(), func(t *testing.T) {
			tr := newMockTransport()
			tr.onSend = func(frame []byte) {
				reply, err := cdc.EncodeExtended(cdc.CommandExtended, cdc.ExtFileInit,
					[]byte{byte(code)})
				require.NoError(t, err)
				tr.push(reply)
			}

			conn := New(tr, nil)
			cmd := &Raw{Packet: extendedRequest(t, cdc.ExtFileInit, nil)}
			err := conn.Execute(context.Background(), cmd, time.Second)

			var nack *NackError
			require.ErrorAs(t, err, &nack)
			assert.Equal(t, code, nack.Code)
			assert.Equal(t, StateConnected, conn.State())
			assert.Equal(t, uint64(1), conn.Stats().Nacks)
		})
	}
}

func TestExecute_NoiseBeforeReply(t *testing.T) {
	tr := newMockTransport()
	tr.onSend = func(frame []byte) {
		reply, err := cdc.EncodeBasic(cdc.CommandDeviceName, []byte("huxley"))
		require.NoError(t, err)
		noise := append([]byte{0x00, 0xFF, 0x13, 0xC9}, reply...)
		tr.push(noise)
	}

	conn := New(tr, nil)
	cmd := &Raw{Packet: basicRequest(t, cdc.CommandDeviceName, nil)}
	require.NoError(t, conn.Execute(context.Background(), cmd, time.Second))
	assert.Equal(t, []byte("huxley"), cmd.Reply.Payload)
	assert.Equal(t, uint64(1), conn.Stats().Packets)
}

func TestExecute_StrayDiscarded(t *testing.T) {
	tr := newMockTransport()
	tr.onSend = func(frame []byte) {
		stray, err := cdc.EncodeBasic(cdc.CommandController, []byte{0x01})
		require.NoError(t, err)
		reply, err := cdc.EncodeBasic(cdc.CommandQuery1, []byte{0x02})
		require.NoError(t, err)
		tr.push(append(stray, reply...))
	}

	conn := New(tr, nil)
	cmd := &Raw{Packet: basicRequest(t, cdc.CommandQuery1, nil)}
	require.NoError(t, conn.Execute(context.Background(), cmd, time.Second))
	assert.Equal(t, []byte{0x02}, cmd.Reply.Payload)
}

func TestExecute_NotReady(t *testing.T) {
	tr := &gatedTransport{mockTransport: newMockTransport()}
	conn := New(tr, nil)

	cmd := &Raw{Packet: basicRequest(t, cdc.CommandQuery1, nil)}
	assert.ErrorIs(t, conn.Execute(context.Background(), cmd, time.Second), ErrNotReady)
	assert.Zero(t, tr.sentCount())

	tr.ready = true
	tr.onSend = func(frame []byte) {
		reply, err := cdc.EncodeBasic(cdc.CommandQuery1, nil)
		require.NoError(t, err)
		tr.push(reply)
	}
	assert.NoError(t, conn.Execute(context.Background(), cmd, time.Second))
}

func TestExecute_TransportFailure(t *testing.T) {
	tr := newMockTransport()
	tr.sendErr = errors.New("wire fell out")

	conn := New(tr, nil)
	cmd := &Raw{Packet: basicRequest(t, cdc.CommandQuery1, nil)}
	err := conn.Execute(context.Background(), cmd, time.Second)

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, StateDisconnected, conn.State())
	assert.False(t, tr.Connected())

	assert.ErrorIs(t, conn.Execute(context.Background(), cmd, time.Second), ErrNotConnected)
}

func TestExecute_CancelThenDrain(t *testing.T) {
	tr := newMockTransport()
	conn := New(tr, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cmd := &Raw{Packet: basicRequest(t, cdc.CommandSystemVersion, nil)}
	err := conn.Execute(ctx, cmd, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateDraining, conn.State())
	assert.Nil(t, cmd.Reply)

	// The abandoned command's reply arrives late. The next exchange
	// must absorb it rather than mistake it for its own response.
	late, err := cdc.EncodeBasic(cdc.CommandSystemVersion, []byte{9, 9, 9, 9})
	require.NoError(t, err)
	tr.push(late)

	tr.onSend = func(frame []byte) {
		reply, err := cdc.EncodeBasic(cdc.CommandSystemVersion, []byte{1, 1, 1, 1})
		require.NoError(t, err)
		tr.push(reply)
	}
	cmd = &Raw{Packet: basicRequest(t, cdc.CommandSystemVersion, nil)}
	require.NoError(t, conn.Execute(context.Background(), cmd, time.Second))
	assert.Equal(t, []byte{1, 1, 1, 1}, cmd.Reply.Payload)
}

func TestExecute_AfterClose(t *testing.T) {
	tr := newMockTransport()
	conn := New(tr, nil)
	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())

	cmd := &Raw{Packet: basicRequest(t, cdc.CommandQuery1, nil)}
	assert.ErrorIs(t, conn.Execute(context.Background(), cmd, time.Second), ErrNotConnected)
}

func TestHandshake_RetriesTimeout(t *testing.T) {
	tr := newMockTransport()
	attempts := 0
	tr.onSend = func(frame []byte) {
		attempts++
		if attempts < 3 {
			return // let it time out
		}
		reply, err := cdc.EncodeBasic(cdc.CommandQuery1, nil)
		require.NoError(t, err)
		tr.push(reply)
	}

	conn := New(tr, nil)
	cmd := &Raw{Packet: basicRequest(t, cdc.CommandQuery1, nil)}
	require.NoError(t, Handshake(context.Background(), conn, cmd, 50*time.Millisecond))
	assert.Equal(t, 3, attempts)
}

func TestHandshake_RetriesPacketCRCNack(t *testing.T) {
	tr := newMockTransport()
	attempts := 0
	tr.onSend = func(frame []byte) {
		attempts++
		var reply []byte
		var err error
		if attempts < 2 {
			reply, err = cdc.EncodeExtended(cdc.CommandExtended, cdc.ExtSystemStatus,
				[]byte{byte(cdc.NackPacketCRC)})
		} else {
			reply, err = cdc.EncodeExtended(cdc.CommandExtended, cdc.ExtSystemStatus,
				[]byte{byte(cdc.AckOK), 0x01})
		}
		require.NoError(t, err)
		tr.push(reply)
	}

	conn := New(tr, nil)
	cmd := &Raw{Packet: extendedRequest(t, cdc.ExtSystemStatus, nil)}
	require.NoError(t, Handshake(context.Background(), conn, cmd, time.Second))
	assert.Equal(t, 2, attempts)
}

func TestHandshake_RealRefusalNotRetried(t *testing.T) {
	tr := newMockTransport()
	attempts := 0
	tr.onSend = func(frame []byte) {
		attempts++
		reply, err := cdc.EncodeExtended(cdc.CommandExtended, cdc.ExtSystemStatus,
			[]byte{byte(cdc.NackGeneral)})
		require.NoError(t, err)
		tr.push(reply)
	}

	conn := New(tr, nil)
	cmd := &Raw{Packet: extendedRequest(t, cdc.ExtSystemStatus, nil)}
	err := Handshake(context.Background(), conn, cmd, time.Second)

	var nack *NackError
	require.ErrorAs(t, err, &nack)
	assert.Equal(t, cdc.NackGeneral, nack.Code)
	assert.Equal(t, 1, attempts)
}
