// Copyright 2023 The evr Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package evr230

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a device name is not known to the
// registry.
var ErrNotFound = errors.New("evr230: device not found")

// ArgError is returned when an operation is called with an
// out-of-range or malformed argument. No register access is
// performed.
type ArgError struct {
	Reason string
}

func (e *ArgError) Error() string {
	return "evr230: invalid argument: " + e.Reason
}

func argErrorf(format string, args ...interface{}) error {
	return &ArgError{Reason: fmt.Sprintf(format, args...)}
}

// CommError is returned when a register access got no well-formed
// reply after exhausting all retransmissions.
type CommError struct {
	Op       string // "read" or "write"
	Reg      uint16 // register offset
	Attempts int
	Err      error // last underlying error, if any
}

func (e *CommError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf(
			"evr230: could not %s register 0x%02x after %d attempts: %v",
			e.Op, e.Reg, e.Attempts, e.Err,
		)
	}
	return fmt.Sprintf(
		"evr230: could not %s register 0x%02x after %d attempts",
		e.Op, e.Reg, e.Attempts,
	)
}

func (e *CommError) Unwrap() error { return e.Err }

// VerifyError is returned when a write was acknowledged by the
// transport but the read-back value does not match what was written.
type VerifyError struct {
	Reg  uint16 // register offset
	Want uint16
	Got  uint16
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf(
		"evr230: register 0x%02x read-back mismatch: got=0x%04x, want=0x%04x",
		e.Reg, e.Got, e.Want,
	)
}
