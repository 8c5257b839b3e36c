// Copyright 2023 The evr Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package evr230

import (
	"fmt"
	"time"

	"github.com/aismail2/evr/mrf"
)

// xfer sends one register-access message and waits for the board's
// reply, retransmitting on timeout or malformed replies. UDP offers
// no delivery guarantee, so every access is retried up to numRetries
// times with a fresh read deadline each attempt.
//
// The device mutex must be held by the caller.
func (dev *Device) xfer(req mrf.Message) (mrf.Message, error) {
	var rep mrf.Message

	op := "read"
	if req.Access == mrf.AccessWrite {
		op = "write"
	}
	reg := uint16(req.Address - mrf.Base)

	buf, err := req.MarshalBinary()
	if err != nil {
		return rep, fmt.Errorf("evr230: could not marshal %s of register 0x%02x: %w", op, reg, err)
	}

	var last error
	rx := make([]byte, 2*mrf.MsgLen)
	for attempt := 0; attempt < dev.retries; attempt++ {
		_, err := dev.conn.Write(buf)
		if err != nil {
			last = err
			continue
		}
		err = dev.conn.SetReadDeadline(time.Now().Add(dev.timeout))
		if err != nil {
			last = err
			continue
		}
		n, err := dev.conn.Read(rx)
		if err != nil {
			last = err
			continue
		}
		err = rep.UnmarshalBinary(rx[:n])
		if err != nil {
			last = err
			continue
		}
		if rep.Address != req.Address {
			last = fmt.Errorf("reply for register 0x%02x", uint16(rep.Address-mrf.Base))
			continue
		}
		return rep, nil
	}
	return rep, &CommError{Op: op, Reg: reg, Attempts: dev.retries, Err: last}
}

// readReg reads the 16-bit register at the given offset.
func (dev *Device) readReg(reg uint16) (uint16, error) {
	rep, err := dev.xfer(mrf.Read(reg))
	if err != nil {
		return 0, err
	}
	return rep.Data, nil
}

// writeReg writes v to the 16-bit register at the given offset,
// without reading it back.
func (dev *Device) writeReg(reg, v uint16) error {
	_, err := dev.xfer(mrf.Write(reg, v))
	return err
}

// writeRegChecked writes v to the register at the given offset and
// reads it back to verify the write took effect.
func (dev *Device) writeRegChecked(reg, v uint16) error {
	err := dev.writeReg(reg, v)
	if err != nil {
		return err
	}
	got, err := dev.readReg(reg)
	if err != nil {
		return err
	}
	if got != v {
		return &VerifyError{Reg: reg, Want: v, Got: got}
	}
	return nil
}

// writeReg32 writes a 32-bit quantity over the register pair at reg
// (high half) and reg+2 (low half), then verifies both halves.
func (dev *Device) writeReg32(reg uint16, v uint32) error {
	hi := uint16(v >> 16)
	lo := uint16(v)
	err := dev.writeReg(reg, hi)
	if err != nil {
		return err
	}
	err = dev.writeReg(reg+2, lo)
	if err != nil {
		return err
	}
	got, err := dev.readReg(reg)
	if err != nil {
		return err
	}
	if got != hi {
		return &VerifyError{Reg: reg, Want: hi, Got: got}
	}
	got, err = dev.readReg(reg + 2)
	if err != nil {
		return err
	}
	if got != lo {
		return &VerifyError{Reg: reg + 2, Want: lo, Got: got}
	}
	return nil
}

// readReg32 reads the 32-bit quantity spread over the register pair
// at reg (high half) and reg+2 (low half).
func (dev *Device) readReg32(reg uint16) (uint32, error) {
	hi, err := dev.readReg(reg)
	if err != nil {
		return 0, err
	}
	lo, err := dev.readReg(reg + 2)
	if err != nil {
		return 0, err
	}
	return uint32(hi)<<16 | uint32(lo), nil
}
