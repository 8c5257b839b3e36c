// Copyright 2023 The evr Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package evr230

import (
	"fmt"
	"log"
	"net"
	"os"
	"sort"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Registry holds the set of configured event receivers, keyed by
// name.
type Registry struct {
	msg *log.Logger

	mu   sync.RWMutex
	devs map[string]*Device
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger devices report to.
func WithLogger(msg *log.Logger) Option {
	return func(reg *Registry) {
		reg.msg = msg
	}
}

// NewRegistry creates an empty device registry.
func NewRegistry(opts ...Option) *Registry {
	reg := &Registry{
		msg:  log.New(os.Stdout, "evr: ", 0),
		devs: make(map[string]*Device, MaxDevices),
	}
	for _, opt := range opts {
		opt(reg)
	}
	return reg
}

// Configure registers a new device under the given name. The device
// is not contacted: Initialize connects and programs it.
func (reg *Registry) Configure(name, host string, port, clock int) error {
	if name == "" {
		return argErrorf("empty device name")
	}
	if len(name) > NameLen {
		return argErrorf("device name %q too long (max %d)", name, NameLen)
	}
	if host == "" {
		return argErrorf("empty host for device %q", name)
	}
	if port <= 0 || port > 65535 {
		return argErrorf("port %d out of range for device %q", port, name)
	}
	if clock <= 0 || clock > MaxClockMHz {
		return argErrorf("clock %d MHz out of range for device %q", clock, name)
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	_, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return argErrorf("could not resolve %q for device %q: %v", addr, name, err)
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	if _, dup := reg.devs[name]; dup {
		return argErrorf("device %q already configured", name)
	}
	if len(reg.devs) >= MaxDevices {
		return argErrorf("too many devices (max %d)", MaxDevices)
	}

	reg.devs[name] = newDevice(name, addr, uint16(clock), reg.msg)
	reg.msg.Printf("configured device %q (%s, %d MHz)", name, addr, clock)
	return nil
}

// Open returns the device registered under the given name.
func (reg *Registry) Open(name string) (*Device, error) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	dev, ok := reg.devs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return dev, nil
}

// Names returns the names of all registered devices, sorted.
func (reg *Registry) Names() []string {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	names := make([]string, 0, len(reg.devs))
	for name := range reg.devs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Initialize connects to the named device and drives it to a known
// idle state.
func (reg *Registry) Initialize(name string) error {
	dev, err := reg.Open(name)
	if err != nil {
		return err
	}
	return dev.init()
}

// InitializeAll initializes all registered devices concurrently. A
// failing device does not prevent the others from initializing; the
// first error is returned once all devices have been attempted.
func (reg *Registry) InitializeAll() error {
	var grp errgroup.Group
	for _, name := range reg.Names() {
		dev, err := reg.Open(name)
		if err != nil {
			return err
		}
		grp.Go(func() error {
			err := dev.init()
			if err != nil {
				reg.msg.Printf("could not initialize %q: %+v", dev.Name(), err)
			}
			return err
		})
	}
	return grp.Wait()
}

// Close releases the sockets of all registered devices.
func (reg *Registry) Close() error {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	var first error
	for _, dev := range reg.devs {
		err := dev.Close()
		if err != nil && first == nil {
			first = err
		}
	}
	return first
}
