// Copyright 2023 The evr Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package evr230

import "github.com/aismail2/evr/mrf"

// SetTTLSource routes the front-panel TTL output i (0..6) to the
// given multiplexer source code (0..63).
func (dev *Device) SetTTLSource(i int, src uint16) error {
	if i < 0 || i >= mrf.NumTTL {
		return argErrorf("ttl output %d out of range [0, %d)", i, mrf.NumTTL)
	}
	if src > mrf.MaxOutputSource {
		return argErrorf("ttl source %d out of range [0, %d]", src, mrf.MaxOutputSource)
	}

	dev.mu.Lock()
	defer dev.mu.Unlock()

	return dev.writeRegChecked(mrf.TTL(i), src)
}

// TTLSource returns the multiplexer source code of the front-panel
// TTL output i (0..6).
func (dev *Device) TTLSource(i int) (uint16, error) {
	if i < 0 || i >= mrf.NumTTL {
		return 0, argErrorf("ttl output %d out of range [0, %d)", i, mrf.NumTTL)
	}

	dev.mu.Lock()
	defer dev.mu.Unlock()

	return dev.readReg(mrf.TTL(i))
}

// SetUNIVSource routes the front-panel universal output i (0..3) to
// the given multiplexer source code (0..63).
func (dev *Device) SetUNIVSource(i int, src uint16) error {
	if i < 0 || i >= mrf.NumUNIV {
		return argErrorf("univ output %d out of range [0, %d)", i, mrf.NumUNIV)
	}
	if src > mrf.MaxOutputSource {
		return argErrorf("univ source %d out of range [0, %d]", src, mrf.MaxOutputSource)
	}

	dev.mu.Lock()
	defer dev.mu.Unlock()

	return dev.writeRegChecked(mrf.UNIV(i), src)
}

// UNIVSource returns the multiplexer source code of the front-panel
// universal output i (0..3).
func (dev *Device) UNIVSource(i int) (uint16, error) {
	if i < 0 || i >= mrf.NumUNIV {
		return 0, argErrorf("univ output %d out of range [0, %d)", i, mrf.NumUNIV)
	}

	dev.mu.Lock()
	defer dev.mu.Unlock()

	return dev.readReg(mrf.UNIV(i))
}

// EnableCML switches the CML output i (0..2, counting from CML4) on
// or off. Enabling selects frequency mode.
func (dev *Device) EnableCML(i int, on bool) error {
	if i < 0 || i >= mrf.NumCML {
		return argErrorf("cml output %d out of range [0, %d)", i, mrf.NumCML)
	}

	dev.mu.Lock()
	defer dev.mu.Unlock()

	var v uint16
	if on {
		v = mrf.CML_FREQ_MODE | mrf.CML_ENABLE
	}
	return dev.writeRegChecked(mrf.CMLEnable(i), v)
}

// IsCMLEnabled reports whether the CML output i (0..2) is on.
func (dev *Device) IsCMLEnabled(i int) (bool, error) {
	if i < 0 || i >= mrf.NumCML {
		return false, argErrorf("cml output %d out of range [0, %d)", i, mrf.NumCML)
	}

	dev.mu.Lock()
	defer dev.mu.Unlock()

	v, err := dev.readReg(mrf.CMLEnable(i))
	if err != nil {
		return false, err
	}
	return v&mrf.CML_ENABLE != 0, nil
}

// SetCMLPrescaler programs the frequency prescaler of the CML output
// i (0..2). The count is split evenly over the high and low half
// period registers, so it is bounded by twice a 16-bit register.
func (dev *Device) SetCMLPrescaler(i int, v uint32) error {
	if i < 0 || i >= mrf.NumCML {
		return argErrorf("cml output %d out of range [0, %d)", i, mrf.NumCML)
	}
	if v > 2*0xffff {
		return argErrorf("cml prescaler %d out of range [0, %d]", v, 2*0xffff)
	}

	dev.mu.Lock()
	defer dev.mu.Unlock()

	hi := uint16(v / 2)
	lo := uint16(v - uint32(v/2))
	err := dev.writeRegChecked(mrf.CMLHP(i), hi)
	if err != nil {
		return err
	}
	return dev.writeRegChecked(mrf.CMLLP(i), lo)
}

// CMLPrescaler returns the frequency prescaler of the CML output i
// (0..2).
func (dev *Device) CMLPrescaler(i int) (uint32, error) {
	if i < 0 || i >= mrf.NumCML {
		return 0, argErrorf("cml output %d out of range [0, %d)", i, mrf.NumCML)
	}

	dev.mu.Lock()
	defer dev.mu.Unlock()

	hi, err := dev.readReg(mrf.CMLHP(i))
	if err != nil {
		return 0, err
	}
	lo, err := dev.readReg(mrf.CMLLP(i))
	if err != nil {
		return 0, err
	}
	return uint32(hi) + uint32(lo), nil
}

// ResetPolarity restores the active-high polarity of all pulse
// outputs.
func (dev *Device) ResetPolarity() error {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	err := dev.writeRegChecked(mrf.PULSE_POLARITY, 0)
	if err != nil {
		return err
	}
	return dev.writeRegChecked(mrf.PULSE_POLARITY+2, 0)
}
