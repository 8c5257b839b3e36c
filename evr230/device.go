// Copyright 2023 The evr Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package evr230

import (
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/aismail2/evr/mrf"
)

// Device is one VME-EVR-230/RF event receiver reachable over UDP.
//
// All exported methods are safe for concurrent use: register accesses
// for one device are serialized with the device mutex, so a multi-step
// operation (select, write, verify) is never interleaved with another.
type Device struct {
	name  string
	addr  string // host:port of the board's UDP endpoint
	clock uint16 // event clock, in MHz

	msg *log.Logger

	mu   sync.Mutex
	conn net.Conn

	retries int
	timeout time.Duration
}

func newDevice(name, addr string, clock uint16, msg *log.Logger) *Device {
	return &Device{
		name:    name,
		addr:    addr,
		clock:   clock,
		msg:     msg,
		retries: numRetries,
		timeout: replyTimeout,
	}
}

// Name returns the device name.
func (dev *Device) Name() string { return dev.name }

// Addr returns the host:port of the device's UDP endpoint.
func (dev *Device) Addr() string { return dev.addr }

// init connects to the board and drives it to a known idle state:
// receiver disabled, event clock programmed, all level, trigger and
// distributed-bus outputs off, polarity reset, all pulse generators
// disabled and zeroed, front-panel universal outputs routed to their
// matching prescaled pulsers, external event cleared, event mapping
// RAM flushed.
func (dev *Device) init() error {
	err := dev.Connect()
	if err != nil {
		return err
	}

	dev.msg.Printf("initializing %q (%s, %d MHz)...", dev.name, dev.addr, dev.clock)

	err = dev.Enable(false)
	if err != nil {
		return fmt.Errorf("evr230: could not disable %q: %w", dev.name, err)
	}
	err = dev.SetClock(dev.clock)
	if err != nil {
		return fmt.Errorf("evr230: could not set clock of %q: %w", dev.name, err)
	}
	for i := 0; i < mrf.NumLevels; i++ {
		err = dev.EnableLevel(i, false)
		if err != nil {
			return fmt.Errorf("evr230: could not disable level %d of %q: %w", i, dev.name, err)
		}
	}
	for i := 0; i < mrf.NumTriggers; i++ {
		err = dev.EnableTrigger(i, false)
		if err != nil {
			return fmt.Errorf("evr230: could not disable trigger %d of %q: %w", i, dev.name, err)
		}
	}
	for i := 0; i < mrf.NumDBus; i++ {
		err = dev.EnableDBus(i, false)
		if err != nil {
			return fmt.Errorf("evr230: could not disable dbus %d of %q: %w", i, dev.name, err)
		}
	}
	err = dev.ResetPolarity()
	if err != nil {
		return fmt.Errorf("evr230: could not reset polarity of %q: %w", dev.name, err)
	}
	for i := 0; i < mrf.NumPDP; i++ {
		err = dev.resetPDP(i)
		if err != nil {
			return fmt.Errorf("evr230: could not reset pdp %d of %q: %w", i, dev.name, err)
		}
	}
	for i := 0; i < mrf.NumPulsers; i++ {
		err = dev.resetPulser(i)
		if err != nil {
			return fmt.Errorf("evr230: could not reset pulser %d of %q: %w", i, dev.name, err)
		}
	}
	for i := 0; i < mrf.NumUNIV; i++ {
		err = dev.SetUNIVSource(i, mrf.FP_MUX_PDP0+uint16(i))
		if err != nil {
			return fmt.Errorf("evr230: could not route univ output %d of %q: %w", i, dev.name, err)
		}
	}
	err = dev.SetExternalEvent(0)
	if err != nil {
		return fmt.Errorf("evr230: could not clear external event of %q: %w", dev.name, err)
	}
	err = dev.Flush()
	if err != nil {
		return fmt.Errorf("evr230: could not flush event map of %q: %w", dev.name, err)
	}

	dev.msg.Printf("initializing %q (%s, %d MHz)... [done]", dev.name, dev.addr, dev.clock)
	return nil
}

// Connect opens the UDP socket of the device without touching its
// registers.
func (dev *Device) Connect() error {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	if dev.conn != nil {
		return nil
	}
	conn, err := net.Dial("udp", dev.addr)
	if err != nil {
		return fmt.Errorf("evr230: could not connect to %q: %w", dev.addr, err)
	}
	dev.conn = conn
	return nil
}

// Close releases the UDP socket of the device.
func (dev *Device) Close() error {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	if dev.conn == nil {
		return nil
	}
	err := dev.conn.Close()
	dev.conn = nil
	return err
}

// Enable switches the whole receiver on or off. Enabling also turns
// on the event mapping RAM. The enable bit is read back to verify the
// board state.
func (dev *Device) Enable(on bool) error {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	var v uint16
	if on {
		v = mrf.CTRL_EVR_ENABLE | mrf.CTRL_MAP_ENABLE
	}
	err := dev.writeReg(mrf.CONTROL, v)
	if err != nil {
		return err
	}
	got, err := dev.readReg(mrf.CONTROL)
	if err != nil {
		return err
	}
	if got&mrf.CTRL_EVR_ENABLE != v&mrf.CTRL_EVR_ENABLE {
		return &VerifyError{Reg: mrf.CONTROL, Want: v, Got: got}
	}
	return nil
}

// IsEnabled reports whether the receiver is enabled.
func (dev *Device) IsEnabled() (bool, error) {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	ctrl, err := dev.readReg(mrf.CONTROL)
	if err != nil {
		return false, err
	}
	return ctrl&mrf.CTRL_EVR_ENABLE != 0, nil
}

// Flush clears the event mapping RAM. The flush bit is self-clearing
// on the board, so the write is not read back.
func (dev *Device) Flush() error {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	return dev.writeReg(mrf.CONTROL, mrf.CTRL_FLUSH)
}

// SetClock programs the event clock of the device, in MHz.
func (dev *Device) SetClock(mhz uint16) error {
	if mhz == 0 || mhz > MaxClockMHz {
		return argErrorf("clock %d MHz out of range [1, %d]", mhz, MaxClockMHz)
	}

	dev.mu.Lock()
	defer dev.mu.Unlock()

	err := dev.writeRegChecked(mrf.USEC_DIVIDER, mhz)
	if err != nil {
		return err
	}
	dev.clock = mhz
	return nil
}

// Clock returns the event clock of the device, in MHz, as read from
// the board.
func (dev *Device) Clock() (uint16, error) {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	return dev.readReg(mrf.USEC_DIVIDER)
}

// FirmwareVersion returns the firmware revision of the board.
func (dev *Device) FirmwareVersion() (uint16, error) {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	return dev.readReg(mrf.FIRMWARE)
}

// RXViolation reports whether the board flagged an event-link receive
// violation.
func (dev *Device) RXViolation() (bool, error) {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	ctrl, err := dev.readReg(mrf.CONTROL)
	if err != nil {
		return false, err
	}
	return ctrl&mrf.CTRL_RX_VIO != 0, nil
}

// ResetRXViolation clears the event-link receive violation flag,
// leaving the rest of the control register untouched.
func (dev *Device) ResetRXViolation() error {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	ctrl, err := dev.readReg(mrf.CONTROL)
	if err != nil {
		return err
	}
	err = dev.writeReg(mrf.CONTROL, ctrl&^mrf.CTRL_RX_VIO)
	if err != nil {
		return err
	}
	got, err := dev.readReg(mrf.CONTROL)
	if err != nil {
		return err
	}
	if got&mrf.CTRL_RX_VIO != 0 {
		return &VerifyError{Reg: mrf.CONTROL, Want: ctrl &^ mrf.CTRL_RX_VIO, Got: got}
	}
	return nil
}

// SetExternalEvent programs the event code sent on the external event
// input. Event 0 disables the input.
func (dev *Device) SetExternalEvent(ev uint8) error {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	return dev.writeRegChecked(mrf.EXTERNAL_EVENT, uint16(ev))
}

// ExternalEvent returns the event code of the external event input.
func (dev *Device) ExternalEvent() (uint8, error) {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	v, err := dev.readReg(mrf.EXTERNAL_EVENT)
	if err != nil {
		return 0, err
	}
	return uint8(v), nil
}

// ReadRegister reads an arbitrary 16-bit register, for engineering
// diagnostics.
func (dev *Device) ReadRegister(reg uint16) (uint16, error) {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	return dev.readReg(reg)
}

// WriteRegister writes an arbitrary 16-bit register and verifies the
// write, for engineering diagnostics.
func (dev *Device) WriteRegister(reg, v uint16) error {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	return dev.writeRegChecked(reg, v)
}

// setEnableBit sets or clears bit i of the enable register at reg
// with a read-modify-write, then verifies the bit state.
//
// The device mutex must be held by the caller.
func (dev *Device) setEnableBit(reg uint16, i int, on bool) error {
	v, err := dev.readReg(reg)
	if err != nil {
		return err
	}
	bit := uint16(1) << uint(i)
	if on {
		v |= bit
	} else {
		v &^= bit
	}
	err = dev.writeReg(reg, v)
	if err != nil {
		return err
	}
	got, err := dev.readReg(reg)
	if err != nil {
		return err
	}
	if got&bit != v&bit {
		return &VerifyError{Reg: reg, Want: v, Got: got}
	}
	return nil
}

// enableBit reports the state of bit i of the enable register at reg.
//
// The device mutex must be held by the caller.
func (dev *Device) enableBit(reg uint16, i int) (bool, error) {
	v, err := dev.readReg(reg)
	if err != nil {
		return false, err
	}
	return v&(1<<uint(i)) != 0, nil
}

// EnableLevel switches the level output i (0..7) on or off.
func (dev *Device) EnableLevel(i int, on bool) error {
	if i < 0 || i >= mrf.NumLevels {
		return argErrorf("level %d out of range [0, %d)", i, mrf.NumLevels)
	}

	dev.mu.Lock()
	defer dev.mu.Unlock()

	return dev.setEnableBit(mrf.LEVEL_ENABLE, i, on)
}

// IsLevelEnabled reports whether the level output i (0..7) is on.
func (dev *Device) IsLevelEnabled(i int) (bool, error) {
	if i < 0 || i >= mrf.NumLevels {
		return false, argErrorf("level %d out of range [0, %d)", i, mrf.NumLevels)
	}

	dev.mu.Lock()
	defer dev.mu.Unlock()

	return dev.enableBit(mrf.LEVEL_ENABLE, i)
}

// EnableTrigger switches the trigger output i (0..7) on or off.
func (dev *Device) EnableTrigger(i int, on bool) error {
	if i < 0 || i >= mrf.NumTriggers {
		return argErrorf("trigger %d out of range [0, %d)", i, mrf.NumTriggers)
	}

	dev.mu.Lock()
	defer dev.mu.Unlock()

	return dev.setEnableBit(mrf.TRIGGER_ENABLE, i, on)
}

// IsTriggerEnabled reports whether the trigger output i (0..7) is on.
func (dev *Device) IsTriggerEnabled(i int) (bool, error) {
	if i < 0 || i >= mrf.NumTriggers {
		return false, argErrorf("trigger %d out of range [0, %d)", i, mrf.NumTriggers)
	}

	dev.mu.Lock()
	defer dev.mu.Unlock()

	return dev.enableBit(mrf.TRIGGER_ENABLE, i)
}

// EnableDBus switches the distributed-bus output i (0..7) on or off.
func (dev *Device) EnableDBus(i int, on bool) error {
	if i < 0 || i >= mrf.NumDBus {
		return argErrorf("dbus %d out of range [0, %d)", i, mrf.NumDBus)
	}

	dev.mu.Lock()
	defer dev.mu.Unlock()

	return dev.setEnableBit(mrf.DBUS_ENABLE, i, on)
}

// IsDBusEnabled reports whether the distributed-bus output i (0..7)
// is on.
func (dev *Device) IsDBusEnabled(i int) (bool, error) {
	if i < 0 || i >= mrf.NumDBus {
		return false, argErrorf("dbus %d out of range [0, %d)", i, mrf.NumDBus)
	}

	dev.mu.Lock()
	defer dev.mu.Unlock()

	return dev.enableBit(mrf.DBUS_ENABLE, i)
}
