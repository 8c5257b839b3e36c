// Copyright 2023 The evr Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package evr230

import (
	"math"

	"github.com/aismail2/evr/mrf"
)

// selectPulse selects a pulse generator for subsequent accesses to
// the shared delay, width and prescale registers. The selection is
// read back before any dependent register is touched.
//
// The device mutex must be held by the caller.
func (dev *Device) selectPulse(sel uint16) error {
	return dev.writeRegChecked(mrf.PULSE_SELECT, sel)
}

// EnablePulser switches the one-shot pulser i (0..13) on or off.
func (dev *Device) EnablePulser(i int, on bool) error {
	if i < 0 || i >= mrf.NumPulsers {
		return argErrorf("pulser %d out of range [0, %d)", i, mrf.NumPulsers)
	}

	dev.mu.Lock()
	defer dev.mu.Unlock()

	return dev.setEnableBit(mrf.PULSE_ENABLE, i, on)
}

// IsPulserEnabled reports whether the one-shot pulser i (0..13) is on.
func (dev *Device) IsPulserEnabled(i int) (bool, error) {
	if i < 0 || i >= mrf.NumPulsers {
		return false, argErrorf("pulser %d out of range [0, %d)", i, mrf.NumPulsers)
	}

	dev.mu.Lock()
	defer dev.mu.Unlock()

	return dev.enableBit(mrf.PULSE_ENABLE, i)
}

// SetPulserDelay programs the delay of the one-shot pulser i (0..13),
// in microseconds. One-shot pulsers count undivided event-clock
// cycles, so the delay must fit a 32-bit cycle count at the current
// event clock.
func (dev *Device) SetPulserDelay(i int, usec float64) error {
	if i < 0 || i >= mrf.NumPulsers {
		return argErrorf("pulser %d out of range [0, %d)", i, mrf.NumPulsers)
	}

	dev.mu.Lock()
	defer dev.mu.Unlock()

	if usec < 0 || usec > math.MaxUint32/float64(dev.clock) {
		return argErrorf("pulser delay %v us out of range at %d MHz", usec, dev.clock)
	}
	cycles := uint32(usec * float64(dev.clock))

	err := dev.selectPulse(uint16(i + mrf.PulseSelectOTP))
	if err != nil {
		return err
	}
	return dev.writeReg32(mrf.PULSE_DELAY, cycles)
}

// PulserDelay returns the delay of the one-shot pulser i (0..13), in
// microseconds.
func (dev *Device) PulserDelay(i int) (float64, error) {
	if i < 0 || i >= mrf.NumPulsers {
		return 0, argErrorf("pulser %d out of range [0, %d)", i, mrf.NumPulsers)
	}

	dev.mu.Lock()
	defer dev.mu.Unlock()

	err := dev.selectPulse(uint16(i + mrf.PulseSelectOTP))
	if err != nil {
		return 0, err
	}
	cycles, err := dev.readReg32(mrf.PULSE_DELAY)
	if err != nil {
		return 0, err
	}
	return float64(cycles) / float64(dev.clock), nil
}

// SetPulserWidth programs the width of the one-shot pulser i (0..13),
// in microseconds. The width counter of one-shot pulsers is 16 bits
// wide.
func (dev *Device) SetPulserWidth(i int, usec float64) error {
	if i < 0 || i >= mrf.NumPulsers {
		return argErrorf("pulser %d out of range [0, %d)", i, mrf.NumPulsers)
	}

	dev.mu.Lock()
	defer dev.mu.Unlock()

	if usec < 0 || usec > math.MaxUint16/float64(dev.clock) {
		return argErrorf("pulser width %v us out of range at %d MHz", usec, dev.clock)
	}
	cycles := uint16(usec * float64(dev.clock))

	err := dev.selectPulse(uint16(i + mrf.PulseSelectOTP))
	if err != nil {
		return err
	}
	return dev.writeRegChecked(mrf.PULSE_WIDTH+2, cycles)
}

// PulserWidth returns the width of the one-shot pulser i (0..13), in
// microseconds.
func (dev *Device) PulserWidth(i int) (float64, error) {
	if i < 0 || i >= mrf.NumPulsers {
		return 0, argErrorf("pulser %d out of range [0, %d)", i, mrf.NumPulsers)
	}

	dev.mu.Lock()
	defer dev.mu.Unlock()

	err := dev.selectPulse(uint16(i + mrf.PulseSelectOTP))
	if err != nil {
		return 0, err
	}
	cycles, err := dev.readReg(mrf.PULSE_WIDTH + 2)
	if err != nil {
		return 0, err
	}
	return float64(cycles) / float64(dev.clock), nil
}

// resetPulser drives the one-shot pulser i to its idle state.
func (dev *Device) resetPulser(i int) error {
	err := dev.EnablePulser(i, false)
	if err != nil {
		return err
	}
	err = dev.SetPulserDelay(i, 0)
	if err != nil {
		return err
	}
	return dev.SetPulserWidth(i, 0)
}

// EnablePDP switches the prescaled pulser i (0..3) on or off.
func (dev *Device) EnablePDP(i int, on bool) error {
	if i < 0 || i >= mrf.NumPDP {
		return argErrorf("pdp %d out of range [0, %d)", i, mrf.NumPDP)
	}

	dev.mu.Lock()
	defer dev.mu.Unlock()

	return dev.setEnableBit(mrf.PDP_ENABLE, i, on)
}

// IsPDPEnabled reports whether the prescaled pulser i (0..3) is on.
func (dev *Device) IsPDPEnabled(i int) (bool, error) {
	if i < 0 || i >= mrf.NumPDP {
		return false, argErrorf("pdp %d out of range [0, %d)", i, mrf.NumPDP)
	}

	dev.mu.Lock()
	defer dev.mu.Unlock()

	return dev.enableBit(mrf.PDP_ENABLE, i)
}

// SetPDPPrescaler programs the clock prescaler of the prescaled
// pulser i (0..3).
func (dev *Device) SetPDPPrescaler(i int, v uint16) error {
	if i < 0 || i >= mrf.NumPDP {
		return argErrorf("pdp %d out of range [0, %d)", i, mrf.NumPDP)
	}

	dev.mu.Lock()
	defer dev.mu.Unlock()

	err := dev.selectPulse(uint16(i))
	if err != nil {
		return err
	}
	return dev.writeRegChecked(mrf.PULSE_PRESCALE, v)
}

// PDPPrescaler returns the clock prescaler of the prescaled pulser i
// (0..3).
func (dev *Device) PDPPrescaler(i int) (uint16, error) {
	if i < 0 || i >= mrf.NumPDP {
		return 0, argErrorf("pdp %d out of range [0, %d)", i, mrf.NumPDP)
	}

	dev.mu.Lock()
	defer dev.mu.Unlock()

	err := dev.selectPulse(uint16(i))
	if err != nil {
		return 0, err
	}
	return dev.readReg(mrf.PULSE_PRESCALE)
}

// SetPDPDelay programs the delay of the prescaled pulser i (0..3), in
// microseconds. The prescaler currently programmed on the board
// scales the counter, so it is read back in the same critical section
// before converting to cycles. A prescaler of 0 counts as 1.
func (dev *Device) SetPDPDelay(i int, usec float64) error {
	if i < 0 || i >= mrf.NumPDP {
		return argErrorf("pdp %d out of range [0, %d)", i, mrf.NumPDP)
	}
	if usec < 0 {
		return argErrorf("pdp delay %v us out of range", usec)
	}

	dev.mu.Lock()
	defer dev.mu.Unlock()

	err := dev.selectPulse(uint16(i))
	if err != nil {
		return err
	}
	presc, err := dev.readReg(mrf.PULSE_PRESCALE)
	if err != nil {
		return err
	}
	if presc == 0 {
		presc = 1
	}
	if usec > math.MaxUint32/float64(dev.clock)*float64(presc) {
		return argErrorf("pdp delay %v us out of range at %d MHz (prescaler %d)", usec, dev.clock, presc)
	}
	cycles := uint32(usec * float64(dev.clock) / float64(presc))
	return dev.writeReg32(mrf.PULSE_DELAY, cycles)
}

// PDPDelay returns the delay of the prescaled pulser i (0..3), in
// microseconds.
func (dev *Device) PDPDelay(i int) (float64, error) {
	if i < 0 || i >= mrf.NumPDP {
		return 0, argErrorf("pdp %d out of range [0, %d)", i, mrf.NumPDP)
	}

	dev.mu.Lock()
	defer dev.mu.Unlock()

	err := dev.selectPulse(uint16(i))
	if err != nil {
		return 0, err
	}
	presc, err := dev.readReg(mrf.PULSE_PRESCALE)
	if err != nil {
		return 0, err
	}
	if presc == 0 {
		presc = 1
	}
	cycles, err := dev.readReg32(mrf.PULSE_DELAY)
	if err != nil {
		return 0, err
	}
	return float64(cycles) * float64(presc) / float64(dev.clock), nil
}

// SetPDPWidth programs the width of the prescaled pulser i (0..3), in
// microseconds. Unlike one-shot pulsers, the width counter of
// prescaled pulsers is 32 bits wide.
func (dev *Device) SetPDPWidth(i int, usec float64) error {
	if i < 0 || i >= mrf.NumPDP {
		return argErrorf("pdp %d out of range [0, %d)", i, mrf.NumPDP)
	}
	if usec < 0 {
		return argErrorf("pdp width %v us out of range", usec)
	}

	dev.mu.Lock()
	defer dev.mu.Unlock()

	err := dev.selectPulse(uint16(i))
	if err != nil {
		return err
	}
	presc, err := dev.readReg(mrf.PULSE_PRESCALE)
	if err != nil {
		return err
	}
	if presc == 0 {
		presc = 1
	}
	if usec > math.MaxUint32/float64(dev.clock)*float64(presc) {
		return argErrorf("pdp width %v us out of range at %d MHz (prescaler %d)", usec, dev.clock, presc)
	}
	cycles := uint32(usec * float64(dev.clock) / float64(presc))
	return dev.writeReg32(mrf.PULSE_WIDTH, cycles)
}

// PDPWidth returns the width of the prescaled pulser i (0..3), in
// microseconds.
func (dev *Device) PDPWidth(i int) (float64, error) {
	if i < 0 || i >= mrf.NumPDP {
		return 0, argErrorf("pdp %d out of range [0, %d)", i, mrf.NumPDP)
	}

	dev.mu.Lock()
	defer dev.mu.Unlock()

	err := dev.selectPulse(uint16(i))
	if err != nil {
		return 0, err
	}
	presc, err := dev.readReg(mrf.PULSE_PRESCALE)
	if err != nil {
		return 0, err
	}
	if presc == 0 {
		presc = 1
	}
	cycles, err := dev.readReg32(mrf.PULSE_WIDTH)
	if err != nil {
		return 0, err
	}
	return float64(cycles) * float64(presc) / float64(dev.clock), nil
}

// resetPDP drives the prescaled pulser i to its idle state.
func (dev *Device) resetPDP(i int) error {
	err := dev.EnablePDP(i, false)
	if err != nil {
		return err
	}
	err = dev.SetPDPPrescaler(i, 1)
	if err != nil {
		return err
	}
	err = dev.SetPDPDelay(i, 0)
	if err != nil {
		return err
	}
	return dev.SetPDPWidth(i, 0)
}

// SetPrescaler programs the front-panel clock prescaler i (0..2).
func (dev *Device) SetPrescaler(i int, v uint16) error {
	if i < 0 || i >= mrf.NumPrescalers {
		return argErrorf("prescaler %d out of range [0, %d)", i, mrf.NumPrescalers)
	}

	dev.mu.Lock()
	defer dev.mu.Unlock()

	return dev.writeRegChecked(mrf.Prescaler(i), v)
}

// Prescaler returns the front-panel clock prescaler i (0..2).
func (dev *Device) Prescaler(i int) (uint16, error) {
	if i < 0 || i >= mrf.NumPrescalers {
		return 0, argErrorf("prescaler %d out of range [0, %d)", i, mrf.NumPrescalers)
	}

	dev.mu.Lock()
	defer dev.mu.Unlock()

	return dev.readReg(mrf.Prescaler(i))
}
