// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Tetrad Robotics

package cdc

import (
	"bytes"
	"testing"
)

// FuzzDecode feeds arbitrary byte streams through the frame decoder.
// The decoder must never panic, must always make progress on
// non-incomplete results, and anything it accepts must re-encode to a
// decodable frame.
func FuzzDecode(f *testing.F) {
	seed, _ := EncodeBasic(CommandQuery1, nil)
	f.Add(seed)
	seed, _ = EncodeExtended(CommandExtended, ExtSystemStatus, []byte{0x76, 0x01, 0x02})
	f.Add(seed)
	f.Add([]byte{0xC9, 0x36, 0xB8, 0x47})
	f.Add([]byte{0x00, 0xC9, 0x36, 0x21, 0x00})
	f.Add(bytes.Repeat([]byte{0xC9}, 32))

	f.Fuzz(func(t *testing.T, data []byte) {
		pkt, consumed, err := Decode(data)

		if consumed < 0 || consumed > len(data) {
			t.Fatalf("consumed %d bytes of %d", consumed, len(data))
		}
		if err != nil && err != ErrIncomplete && consumed == 0 {
			t.Fatalf("no progress on error %v", err)
		}
		if err != nil {
			return
		}

		reencoded, encErr := Encode(pkt)
		if encErr != nil {
			t.Fatalf("decoded packet failed to re-encode: %v", encErr)
		}
		again, n, decErr := Decode(reencoded)
		if decErr != nil || n != len(reencoded) {
			t.Fatalf("re-encoded frame failed to decode: n=%d err=%v", n, decErr)
		}
		if again.Kind != pkt.Kind || again.CommandID != pkt.CommandID ||
			again.ExtCommandID != pkt.ExtCommandID || !bytes.Equal(again.Payload, pkt.Payload) {
			t.Fatalf("round trip mismatch: %+v != %+v", again, pkt)
		}
	})
}

// FuzzDecoderStream slices an input stream at an arbitrary position and
// verifies the streaming decoder produces the same packets as decoding
// the whole buffer at once.
func FuzzDecoderStream(f *testing.F) {
	frame, _ := EncodeExtended(CommandExtended, ExtSystemFlags, []byte{0x76, 0xAA})
	f.Add(frame, 3)
	f.Add(append([]byte{0x00, 0x01}, frame...), 5)

	f.Fuzz(func(t *testing.T, data []byte, split int) {
		if split < 0 || split > len(data) {
			return
		}

		whole := NewDecoder()
		whole.Write(data)
		var wantPackets []*Packet
		for {
			pkt, err := whole.Next()
			if err == ErrIncomplete {
				break
			}
			if pkt != nil {
				wantPackets = append(wantPackets, pkt)
			}
		}

		split2 := NewDecoder()
		split2.Write(data[:split])
		var gotPackets []*Packet
		for {
			pkt, err := split2.Next()
			if err == ErrIncomplete {
				break
			}
			if pkt != nil {
				gotPackets = append(gotPackets, pkt)
			}
		}
		split2.Write(data[split:])
		for {
			pkt, err := split2.Next()
			if err == ErrIncomplete {
				break
			}
			if pkt != nil {
				gotPackets = append(gotPackets, pkt)
			}
		}

		if len(wantPackets) != len(gotPackets) {
			t.Fatalf("packet count mismatch: whole=%d split=%d", len(wantPackets), len(gotPackets))
		}
		for i := range wantPackets {
			if wantPackets[i].CommandID != gotPackets[i].CommandID ||
				!bytes.Equal(wantPackets[i].Payload, gotPackets[i].Payload) {
				t.Fatalf("packet %d mismatch", i)
			}
		}
	})
}
