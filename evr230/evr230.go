// Copyright 2023 The evr Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package evr230 controls VME-EVR-230/RF event receivers over UDP.
//
// A Registry holds the set of configured devices. Every hardware
// operation resolves a device by name, serializes register access
// with the device mutex and converts between physical units
// (microseconds) and hardware clock cycles.
package evr230 // import "github.com/aismail2/evr/evr230"

import "time"

const (
	// NameLen bounds the length of a device name.
	NameLen = 30

	// MaxDevices bounds the number of devices a Registry can hold.
	MaxDevices = 10

	// MaxClockMHz is the rated maximum event clock of the EVR-230.
	MaxClockMHz = 125
)

const (
	numRetries   = 3               // attempts per register access
	replyTimeout = 1 * time.Second // reply timeout per attempt
)
