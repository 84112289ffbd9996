// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Tetrad Robotics

package link

import (
	"github.com/tetrad-robotics/brainlink/pkg/cdc"
)

// Command is one request/response exchange. Request builds the outgoing
// packet; HandleReply decodes the matched response into the command's
// own result fields. A Command is used for a single Execute call.
type Command interface {
	Request() (*cdc.Packet, error)
	HandleReply(reply *cdc.Packet) error
}

// Raw is the trivial Command: send a prebuilt packet, keep the reply.
// The sniff and packet tools use it to speak the protocol without a
// typed command.
type Raw struct {
	Packet *cdc.Packet
	Reply  *cdc.Packet
}

func (r *Raw) Request() (*cdc.Packet, error) {
	return r.Packet, nil
}

func (r *Raw) HandleReply(reply *cdc.Packet) error {
	r.Reply = reply
	return nil
}

// matches reports whether a decoded packet answers the given request.
// Responses echo the command identifiers of the request; anything else
// on the wire is a stale or unsolicited frame.
func matches(request, reply *cdc.Packet) bool {
	if request.Kind != reply.Kind || request.CommandID != reply.CommandID {
		return false
	}
	if request.Kind == cdc.KindExtended && request.ExtCommandID != reply.ExtCommandID {
		return false
	}
	return true
}
