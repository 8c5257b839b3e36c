// Copyright 2023 The evr Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package evr230

import "github.com/aismail2/evr/mrf"

// SetMap programs the mapping RAM entry of the given event code: the
// action word names the pulse generators fired when the event is
// received. The event code is latched on the address register and
// verified before the data register is written.
func (dev *Device) SetMap(event uint8, actions uint16) error {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	err := dev.writeRegChecked(mrf.MAP_ADDRESS, uint16(event))
	if err != nil {
		return err
	}
	return dev.writeRegChecked(mrf.MAP_DATA, actions)
}

// Map returns the mapping RAM entry of the given event code.
func (dev *Device) Map(event uint8) (uint16, error) {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	err := dev.writeRegChecked(mrf.MAP_ADDRESS, uint16(event))
	if err != nil {
		return 0, err
	}
	return dev.readReg(mrf.MAP_DATA)
}
