// Copyright 2023 The evr Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package evrsim simulates the UDP register interface of a
// VME-EVR-230/RF event receiver.
//
// The simulator models the register indirections of the real board:
// the pulse-select register routes the shared delay, width and
// prescale registers to a per-pulser bank, and the map-address
// register routes the map-data register to the event mapping RAM.
// It is used to exercise the control layer without hardware.
package evrsim // import "github.com/aismail2/evr/evrsim"

import (
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"sync"

	"github.com/aismail2/evr/mrf"
)

// Server is a simulated event receiver bound to a UDP endpoint.
type Server struct {
	msg  *log.Logger
	conn *net.UDPConn

	mu     sync.Mutex
	regs   map[uint16]uint16 // flat registers
	pulses map[uint16]*pulse // banked pulse registers, by select code
	ram    map[uint8]uint16  // event mapping RAM
	nreq   int               // datagrams received
	drop   int               // datagrams to swallow without replying
}

// pulse is the register bank of one pulse generator.
type pulse struct {
	delayHi  uint16
	delayLo  uint16
	widthHi  uint16
	widthLo  uint16
	prescale uint16
}

// Option configures a simulated device.
type Option func(*Server)

// WithLogger sets the logger the simulator reports to.
func WithLogger(msg *log.Logger) Option {
	return func(srv *Server) {
		srv.msg = msg
	}
}

// WithFirmware presets the firmware revision register.
func WithFirmware(v uint16) Option {
	return func(srv *Server) {
		srv.regs[mrf.FIRMWARE] = v
	}
}

// New binds a simulated device to the given UDP address. Use
// "127.0.0.1:0" to let the kernel pick a free port, and Addr to
// retrieve it.
func New(addr string, opts ...Option) (*Server, error) {
	udp, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("evrsim: could not resolve %q: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", udp)
	if err != nil {
		return nil, fmt.Errorf("evrsim: could not listen on %q: %w", addr, err)
	}

	srv := &Server{
		msg:    log.New(os.Stdout, "evrsim: ", 0),
		conn:   conn,
		regs:   make(map[uint16]uint16),
		pulses: make(map[uint16]*pulse),
		ram:    make(map[uint8]uint16),
	}
	srv.regs[mrf.FIRMWARE] = 0x2300
	for _, opt := range opts {
		opt(srv)
	}
	return srv, nil
}

// Addr returns the host:port the simulator listens on.
func (srv *Server) Addr() string {
	return srv.conn.LocalAddr().String()
}

// Serve answers register accesses until Close is called.
func (srv *Server) Serve() error {
	buf := make([]byte, 2*mrf.MsgLen)
	for {
		n, peer, err := srv.conn.ReadFromUDP(buf)
		if err != nil {
			if isClosed(err) {
				return nil
			}
			return fmt.Errorf("evrsim: could not read request: %w", err)
		}

		var req mrf.Message
		err = req.UnmarshalBinary(buf[:n])
		if err != nil {
			srv.msg.Printf("dropping malformed request from %v: %+v", peer, err)
			continue
		}

		rep, ok := srv.handle(req)
		if !ok {
			continue
		}
		out, err := rep.MarshalBinary()
		if err != nil {
			return fmt.Errorf("evrsim: could not marshal reply: %w", err)
		}
		_, err = srv.conn.WriteToUDP(out, peer)
		if err != nil {
			if isClosed(err) {
				return nil
			}
			return fmt.Errorf("evrsim: could not send reply: %w", err)
		}
	}
}

// Close shuts the simulator down.
func (srv *Server) Close() error {
	return srv.conn.Close()
}

// handle applies one register access and builds the reply. The reply
// is withheld when a drop is pending.
func (srv *Server) handle(req mrf.Message) (mrf.Message, bool) {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	srv.nreq++
	if srv.drop > 0 {
		srv.drop--
		return mrf.Message{}, false
	}

	rep := req
	reg := uint16(req.Address - mrf.Base)
	switch req.Access {
	case mrf.AccessRead:
		rep.Data = srv.load(reg)
	case mrf.AccessWrite:
		srv.store(reg, req.Data)
	default:
		rep.Status = 0xff
	}
	return rep, true
}

func (srv *Server) load(reg uint16) uint16 {
	switch reg {
	case mrf.PULSE_DELAY, mrf.PULSE_DELAY + 2,
		mrf.PULSE_WIDTH, mrf.PULSE_WIDTH + 2,
		mrf.PULSE_PRESCALE:
		p := srv.pulse()
		switch reg {
		case mrf.PULSE_DELAY:
			return p.delayHi
		case mrf.PULSE_DELAY + 2:
			return p.delayLo
		case mrf.PULSE_WIDTH:
			return p.widthHi
		case mrf.PULSE_WIDTH + 2:
			return p.widthLo
		default:
			return p.prescale
		}
	case mrf.MAP_DATA:
		return srv.ram[uint8(srv.regs[mrf.MAP_ADDRESS])]
	default:
		return srv.regs[reg]
	}
}

func (srv *Server) store(reg, v uint16) {
	switch reg {
	case mrf.CONTROL:
		if v&mrf.CTRL_FLUSH != 0 {
			srv.ram = make(map[uint8]uint16)
		}
		// the flush bit self-clears
		srv.regs[mrf.CONTROL] = v &^ mrf.CTRL_FLUSH
	case mrf.FIRMWARE:
		// read-only
	case mrf.PULSE_DELAY:
		srv.pulse().delayHi = v
	case mrf.PULSE_DELAY + 2:
		srv.pulse().delayLo = v
	case mrf.PULSE_WIDTH:
		srv.pulse().widthHi = v
	case mrf.PULSE_WIDTH + 2:
		srv.pulse().widthLo = v
	case mrf.PULSE_PRESCALE:
		srv.pulse().prescale = v
	case mrf.MAP_DATA:
		srv.ram[uint8(srv.regs[mrf.MAP_ADDRESS])] = v
	default:
		srv.regs[reg] = v
	}
}

// pulse returns the register bank selected by the pulse-select
// register.
func (srv *Server) pulse() *pulse {
	sel := srv.regs[mrf.PULSE_SELECT]
	p, ok := srv.pulses[sel]
	if !ok {
		p = &pulse{}
		srv.pulses[sel] = p
	}
	return p
}

// Requests returns the number of datagrams received so far, dropped
// ones included.
func (srv *Server) Requests() int {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	return srv.nreq
}

// Drop makes the simulator swallow the next n requests without
// replying, to exercise client retransmission.
func (srv *Server) Drop(n int) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	srv.drop = n
}

// SetRXViolation sets or clears the event-link violation flag of the
// control register.
func (srv *Server) SetRXViolation(on bool) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if on {
		srv.regs[mrf.CONTROL] |= mrf.CTRL_RX_VIO
	} else {
		srv.regs[mrf.CONTROL] &^= mrf.CTRL_RX_VIO
	}
}

// Reg returns the current value of a flat register, for inspection in
// tests.
func (srv *Server) Reg(reg uint16) uint16 {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	return srv.load(reg)
}

func isClosed(err error) bool {
	return errors.Is(err, net.ErrClosed)
}
