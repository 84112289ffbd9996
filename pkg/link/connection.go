// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Tetrad Robotics

// Package link drives the half-duplex command/response discipline over
// a transport: one command in flight, responses matched to their
// request by command identifier, device refusals surfaced as typed
// errors, and abandoned exchanges drained before the next command.
package link

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/loopholelabs/logging/types"

	"github.com/tetrad-robotics/brainlink/pkg/cdc"
	"github.com/tetrad-robotics/brainlink/pkg/transport"
)

// State is the connection lifecycle position.
type State int

const (
	StateDisconnected State = iota
	StateConnected
	StateAwaitingResponse
	StateDraining
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	case StateAwaitingResponse:
		return "awaiting-response"
	case StateDraining:
		return "draining"
	default:
		return "invalid"
	}
}

const (
	// Receive calls are chunked so cancellation is observed promptly
	// even under a long command deadline.
	receivePoll = 250 * time.Millisecond

	// How long a reply to an abandoned exchange is still expected on
	// the wire before the drain gives up on it.
	drainGrace = 500 * time.Millisecond

	drainPoll = 50 * time.Millisecond
)

// An abandoned exchange whose reply may still arrive. The next command
// drains these before sending.
type staleExchange struct {
	kind         cdc.Kind
	commandID    byte
	extCommandID byte
	deadline     time.Time
}

// Connection owns a Transport and runs commands over it. All methods
// are safe for concurrent use; a second Execute while one is in flight
// fails fast with ErrBusy rather than queueing.
type Connection struct {
	mu    sync.Mutex
	state State
	stale []staleExchange

	tr  transport.Transport
	dec *cdc.Decoder
	buf []byte

	nacks uint64
	log   types.Logger
}

// New wraps an open transport. The connection takes ownership: Close
// and transport failures both close it.
func New(tr transport.Transport, log types.Logger) *Connection {
	return &Connection{
		state: StateConnected,
		tr:    tr,
		dec:   cdc.NewDecoder(),
		buf:   make([]byte, 4096),
		log:   log,
	}
}

// State returns the current lifecycle position.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Stats returns decode statistics accumulated over the connection's
// lifetime, including NACKs observed by Execute.
func (c *Connection) Stats() cdc.Statistics {
	c.mu.Lock()
	defer c.mu.Unlock()
	stats := c.dec.Stats()
	stats.Nacks = c.nacks
	return stats
}

// Close tears down the transport. Idempotent.
func (c *Connection) Close() error {
	c.mu.Lock()
	c.state = StateDisconnected
	c.mu.Unlock()
	return c.tr.Close()
}

// Execute sends the command's request and blocks until its response
// arrives, the timeout elapses, or ctx is cancelled. Responses to other
// commands are discarded. A cancelled exchange leaves the connection
// draining; the next Execute absorbs the late reply before sending.
func (c *Connection) Execute(ctx context.Context, cmd Command, timeout time.Duration) error {
	c.mu.Lock()
	switch c.state {
	case StateDisconnected:
		c.mu.Unlock()
		return ErrNotConnected
	case StateAwaitingResponse:
		c.mu.Unlock()
		return ErrBusy
	}
	if !c.tr.Connected() {
		c.state = StateDisconnected
		c.mu.Unlock()
		return ErrNotConnected
	}
	if h, ok := c.tr.(transport.Handshaker); ok && !h.Ready() {
		c.mu.Unlock()
		return ErrNotReady
	}

	stale := c.stale
	c.stale = nil
	c.state = StateAwaitingResponse
	c.mu.Unlock()

	if len(stale) > 0 {
		if err := c.drainStale(stale); err != nil {
			return err
		}
	}

	return c.exchange(ctx, cmd, timeout)
}

func (c *Connection) exchange(ctx context.Context, cmd Command, timeout time.Duration) error {
	request, err := cmd.Request()
	if err != nil {
		c.setState(StateConnected)
		return err
	}
	frame, err := cdc.Encode(request)
	if err != nil {
		c.setState(StateConnected)
		return err
	}

	if err := c.tr.Send(frame); err != nil {
		return c.fail(err)
	}

	deadline := time.Now().Add(timeout)
	for {
		if err := ctx.Err(); err != nil {
			c.abandon(request)
			return err
		}

		reply, err := c.nextPacket(deadline)
		if err != nil {
			if errors.Is(err, ErrTimeout) {
				c.setState(StateConnected)
				if c.log != nil {
					c.log.Debug().
						Str("command", cdc.CommandName(request.CommandID)).
						Msg("response timeout")
				}
				return ErrTimeout
			}
			return c.fail(err)
		}
		if reply == nil {
			continue
		}

		if !matches(request, reply) {
			if c.log != nil {
				c.log.Debug().
					Str("command", cdc.CommandName(reply.CommandID)).
					Msg("discarding stray packet")
			}
			continue
		}

		if ack, ok := reply.Ack(); ok && !ack.OK() {
			c.mu.Lock()
			c.nacks++
			c.state = StateConnected
			c.mu.Unlock()
			return &NackError{Code: ack}
		}

		err = cmd.HandleReply(reply)
		c.setState(StateConnected)
		return err
	}
}

// nextPacket returns the next decodable packet, reading more bytes when
// the buffer runs dry. A nil packet with nil error means a noise event
// was consumed; the caller loops. ErrTimeout means the deadline passed
// with no packet.
func (c *Connection) nextPacket(deadline time.Time) (*cdc.Packet, error) {
	pkt, err := c.dec.Next()
	if pkt != nil {
		return pkt, nil
	}
	if err != nil && !errors.Is(err, cdc.ErrIncomplete) {
		// Checksum or header noise was discarded; counted in stats.
		if c.log != nil {
			c.log.Debug().Err(err).Msg("decode noise")
		}
		return nil, nil
	}

	remaining := time.Until(deadline)
	if remaining <= 0 {
		return nil, ErrTimeout
	}
	poll := receivePoll
	if remaining < poll {
		poll = remaining
	}

	n, err := c.tr.Receive(c.buf, poll)
	if err != nil {
		if errors.Is(err, transport.ErrReceiveTimeout) {
			return nil, nil
		}
		return nil, err
	}
	c.dec.Write(c.buf[:n])
	return nil, nil
}

// drainStale absorbs replies to abandoned exchanges so they cannot be
// mistaken for the next command's response. It reads until every stale
// reply was seen or its grace deadline passed.
func (c *Connection) drainStale(stale []staleExchange) error {
	for len(stale) > 0 {
		last := stale[0].deadline
		for _, s := range stale[1:] {
			if s.deadline.After(last) {
				last = s.deadline
			}
		}
		if !time.Now().Before(last) {
			break
		}

		pkt, err := c.nextPacket(last)
		if err != nil {
			if errors.Is(err, ErrTimeout) {
				break
			}
			return c.fail(err)
		}
		if pkt == nil {
			continue
		}

		kept := stale[:0]
		matched := false
		for _, s := range stale {
			if !matched && s.kind == pkt.Kind &&
				s.commandID == pkt.CommandID && s.extCommandID == pkt.ExtCommandID {
				matched = true
				continue
			}
			kept = append(kept, s)
		}
		stale = kept
		if c.log != nil && matched {
			c.log.Debug().Str("command", cdc.CommandName(pkt.CommandID)).Msg("drained stale reply")
		}
	}

	// Entries that never answered within their grace are dropped.
	return nil
}

func (c *Connection) abandon(request *cdc.Packet) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stale = append(c.stale, staleExchange{
		kind:         request.Kind,
		commandID:    request.CommandID,
		extCommandID: request.ExtCommandID,
		deadline:     time.Now().Add(drainGrace),
	})
	c.state = StateDraining
}

func (c *Connection) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// fail marks the connection dead and closes the transport. Further
// commands return ErrNotConnected.
func (c *Connection) fail(err error) error {
	c.mu.Lock()
	c.state = StateDisconnected
	c.mu.Unlock()
	c.tr.Close()
	if c.log != nil {
		c.log.Error().Err(err).Msg("transport failure, connection closed")
	}
	return &TransportError{Err: err}
}

// Handshake runs the first exchange of a session, retrying while the
// device is still settling after enumeration. Only timeouts and frame
// corruption are retried; real refusals surface immediately.
func Handshake(ctx context.Context, c *Connection, cmd Command, timeout time.Duration) error {
	const attempts = 5

	var err error
	for i := 0; i < attempts; i++ {
		err = c.Execute(ctx, cmd, timeout)
		if err == nil {
			return nil
		}

		var nack *NackError
		if errors.Is(err, ErrTimeout) ||
			(errors.As(err, &nack) && nack.Code == cdc.NackPacketCRC) {
			continue
		}
		return err
	}
	return err
}
