// Copyright 2023 The evr Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mrf

// Base is the register base address of the VME-EVR-230/RF.
const Base uint32 = 0x7a000000

// Register offsets from Base. Registers are 16 bits wide; 32-bit
// quantities (pulse delay, pulse width) are split over two adjacent
// registers, high half first.
const (
	CONTROL        uint16 = 0x00
	MAP_ADDRESS    uint16 = 0x02
	MAP_DATA       uint16 = 0x04
	PULSE_ENABLE   uint16 = 0x06
	LEVEL_ENABLE   uint16 = 0x08
	TRIGGER_ENABLE uint16 = 0x0a
	PDP_ENABLE     uint16 = 0x18
	PULSE_SELECT   uint16 = 0x1a
	DBUS_ENABLE    uint16 = 0x24
	PULSE_PRESCALE uint16 = 0x28
	FIRMWARE       uint16 = 0x2e
	FP_TTL0        uint16 = 0x40
	USEC_DIVIDER   uint16 = 0x4e
	EXTERNAL_EVENT uint16 = 0x50
	PULSE_POLARITY uint16 = 0x68
	PULSE_DELAY    uint16 = 0x6c
	PULSE_WIDTH    uint16 = 0x70
	PRESCALER_0    uint16 = 0x74
	FP_UNIV0       uint16 = 0x90
	CML4_ENABLE    uint16 = 0xb0
	CML4_HP        uint16 = 0xb4
	CML4_LP        uint16 = 0xb6
)

// Control register bits.
const (
	CTRL_EVR_ENABLE uint16 = 0x8000
	CTRL_MAP_ENABLE uint16 = 0x0200
	CTRL_FLUSH      uint16 = 0x0080
	CTRL_RX_VIO     uint16 = 0x0001
)

// CML enable register bits.
const (
	CML_FREQ_MODE uint16 = 0x0010
	CML_ENABLE    uint16 = 0x0001
)

// Channel counts and indexing constants.
const (
	NumPulsers    = 14 // plain one-shot pulsers (OTP)
	NumPDP        = 4  // prescaled pulsers
	NumPrescalers = 3
	NumLevels     = 8
	NumTriggers   = 8
	NumDBus       = 8
	NumTTL        = 7
	NumUNIV       = 4
	NumCML        = 3 // CML channels 4, 5 and 6

	// PulseSelectOTP is the offset added to a pulser index when
	// writing the pulse-select register; PDP channels are selected
	// with their bare index.
	PulseSelectOTP = 16

	// MaxOutputSource bounds the front-panel multiplexer source codes.
	MaxOutputSource = 63

	cmlStride = 0x20
)

// Default front-panel multiplexer source codes.
const (
	FP_MUX_PDP0 uint16 = 0
	FP_MUX_PDP1 uint16 = 1
	FP_MUX_PDP2 uint16 = 2
	FP_MUX_PDP3 uint16 = 3
)

// TTL returns the front-panel TTL output mapping register for output
// i (0..6).
func TTL(i int) uint16 { return FP_TTL0 + 2*uint16(i) }

// UNIV returns the front-panel universal output mapping register for
// output i (0..3).
func UNIV(i int) uint16 { return FP_UNIV0 + 2*uint16(i) }

// Prescaler returns the register of prescaler i (0..2).
func Prescaler(i int) uint16 { return PRESCALER_0 + 2*uint16(i) }

// CMLEnable returns the enable register of CML channel i (0..2,
// counting from CML4).
func CMLEnable(i int) uint16 { return CML4_ENABLE + cmlStride*uint16(i) }

// CMLHP returns the high-half prescaler register of CML channel i.
func CMLHP(i int) uint16 { return CML4_HP + cmlStride*uint16(i) }

// CMLLP returns the low-half prescaler register of CML channel i.
func CMLLP(i int) uint16 { return CML4_LP + cmlStride*uint16(i) }
