// Copyright 2023 The evr Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mrf describes the UDP register-access protocol of MRF
// 230-series timing boards.
//
// Every register access is one 12-byte datagram, answered by the
// board with a datagram of the same shape. Multi-byte fields are
// transmitted in network byte order.
package mrf // import "github.com/aismail2/evr/mrf"

import (
	"encoding/binary"

	"golang.org/x/xerrors"
)

// MsgLen is the wire size, in bytes, of a register-access message.
const MsgLen = 12

// Message access kinds.
const (
	AccessRead  uint8 = 1
	AccessWrite uint8 = 2
)

// Message is one register access on the wire.
type Message struct {
	Access    uint8  // read or write
	Status    uint8  // filled by the board on reply
	Data      uint16 // register value
	Address   uint32 // Base + register offset
	Reference uint32 // reserved, always 0
}

// MarshalBinary encodes the message into its 12-byte wire form.
func (msg *Message) MarshalBinary() ([]byte, error) {
	buf := make([]byte, MsgLen)
	buf[0] = msg.Access
	buf[1] = msg.Status
	binary.BigEndian.PutUint16(buf[2:4], msg.Data)
	binary.BigEndian.PutUint32(buf[4:8], msg.Address)
	binary.BigEndian.PutUint32(buf[8:12], msg.Reference)
	return buf, nil
}

// UnmarshalBinary decodes the message from its 12-byte wire form.
func (msg *Message) UnmarshalBinary(p []byte) error {
	if len(p) != MsgLen {
		return xerrors.Errorf("mrf: invalid message length %d (want %d)", len(p), MsgLen)
	}
	msg.Access = p[0]
	msg.Status = p[1]
	msg.Data = binary.BigEndian.Uint16(p[2:4])
	msg.Address = binary.BigEndian.Uint32(p[4:8])
	msg.Reference = binary.BigEndian.Uint32(p[8:12])
	return nil
}

// Read returns a read-access message for the given register offset.
func Read(reg uint16) Message {
	return Message{
		Access:  AccessRead,
		Address: Base + uint32(reg),
	}
}

// Write returns a write-access message carrying v for the given
// register offset.
func Write(reg uint16, v uint16) Message {
	return Message{
		Access:  AccessWrite,
		Data:    v,
		Address: Base + uint32(reg),
	}
}
