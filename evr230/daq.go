// Copyright 2023 The evr Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package evr230

import (
	"fmt"

	"github.com/go-daq/tdaq"
)

// DAQ drives a Registry through the standard run-control state
// machine: /config registers the devices from the configuration file,
// /init programs them to their idle state, /start and /stop switch
// event reception on and off.
type DAQ struct {
	reg *Registry
	cfg string // path to the YAML device configuration
}

// NewDAQ creates a run-control bridge for the given registry and
// device configuration file.
func NewDAQ(reg *Registry, cfg string) *DAQ {
	return &DAQ{reg: reg, cfg: cfg}
}

// OnConfig loads the device configuration and registers the devices.
func (daq *DAQ) OnConfig(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /config command...")
	cfg, err := LoadConfigFile(daq.cfg)
	if err != nil {
		ctx.Msg.Errorf("could not load config %q: %+v", daq.cfg, err)
		return fmt.Errorf("could not load config %q: %w", daq.cfg, err)
	}
	err = daq.reg.ConfigureFrom(cfg)
	if err != nil {
		ctx.Msg.Errorf("could not configure devices: %+v", err)
		return fmt.Errorf("could not configure devices: %w", err)
	}
	return nil
}

// OnInit initializes all configured devices.
func (daq *DAQ) OnInit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /init command...")
	err := daq.reg.InitializeAll()
	if err != nil {
		ctx.Msg.Errorf("could not initialize devices: %+v", err)
		return fmt.Errorf("could not initialize devices: %w", err)
	}
	return nil
}

// OnReset drives all devices back to their idle state.
func (daq *DAQ) OnReset(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /reset command...")
	err := daq.reg.InitializeAll()
	if err != nil {
		ctx.Msg.Errorf("could not reset devices: %+v", err)
		return fmt.Errorf("could not reset devices: %w", err)
	}
	return nil
}

// OnStart enables event reception on all devices.
func (daq *DAQ) OnStart(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /start command...")
	return daq.enable(ctx, true)
}

// OnStop disables event reception on all devices.
func (daq *DAQ) OnStop(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /stop command...")
	return daq.enable(ctx, false)
}

// OnQuit releases the device sockets.
func (daq *DAQ) OnQuit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /quit command...")
	return daq.reg.Close()
}

func (daq *DAQ) enable(ctx tdaq.Context, on bool) error {
	for _, name := range daq.reg.Names() {
		dev, err := daq.reg.Open(name)
		if err != nil {
			return err
		}
		err = dev.Enable(on)
		if err != nil {
			ctx.Msg.Errorf("could not switch %q (on=%v): %+v", name, on, err)
			return fmt.Errorf("could not switch %q (on=%v): %w", name, on, err)
		}
	}
	return nil
}
