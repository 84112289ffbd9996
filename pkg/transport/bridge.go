// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Tetrad Robotics

package transport

import (
	"fmt"
	"net"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/loopholelabs/logging/types"
)

// Bridge tunnels protocol bytes over a WebSocket, for simulators and
// remote serial bridges that expose a device as a network endpoint.
// Each binary message carries an arbitrary slice of the byte stream;
// message boundaries carry no meaning.
type Bridge struct {
	conn    *websocket.Conn
	url     string
	pending []byte

	writeMu sync.Mutex
	closed  atomic.Bool
	log     types.Logger
}

// DialBridge connects to a ws:// or wss:// endpoint.
func DialBridge(rawURL string, log types.Logger) (*Bridge, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("transport: bad bridge URL %q: %w", rawURL, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("transport: bridge URL %q: scheme must be ws or wss", rawURL)
	}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("transport: bridge dial %s: %w", rawURL, err)
	}

	if log != nil {
		log.Debug().Str("url", rawURL).Msg("bridge connected")
	}
	return &Bridge{conn: conn, url: rawURL, log: log}, nil
}

// URL returns the endpoint the bridge is connected to.
func (b *Bridge) URL() string {
	return b.url
}

func (b *Bridge) Send(p []byte) error {
	if b.closed.Load() {
		return ErrClosed
	}
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	if err := b.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return fmt.Errorf("transport: bridge write: %w", err)
	}
	return nil
}

func (b *Bridge) Receive(p []byte, timeout time.Duration) (int, error) {
	if b.closed.Load() {
		return 0, ErrClosed
	}

	deadline := time.Now().Add(timeout)
	for len(b.pending) == 0 {
		if err := b.conn.SetReadDeadline(deadline); err != nil {
			return 0, fmt.Errorf("transport: bridge set deadline: %w", err)
		}
		kind, data, err := b.conn.ReadMessage()
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				return 0, ErrReceiveTimeout
			}
			return 0, fmt.Errorf("transport: bridge read: %w", err)
		}
		// Text and control frames are bridge chatter, not device bytes.
		if kind != websocket.BinaryMessage {
			continue
		}
		b.pending = data
	}

	n := copy(p, b.pending)
	b.pending = b.pending[n:]
	return n, nil
}

func (b *Bridge) Connected() bool {
	return !b.closed.Load()
}

func (b *Bridge) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	b.writeMu.Lock()
	b.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	b.writeMu.Unlock()
	if b.log != nil {
		b.log.Debug().Str("url", b.url).Msg("bridge closed")
	}
	return b.conn.Close()
}
