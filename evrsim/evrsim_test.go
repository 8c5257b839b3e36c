// Copyright 2023 The evr Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package evrsim

import (
	"io"
	"log"
	"net"
	"testing"
	"time"

	"github.com/aismail2/evr/mrf"
)

type client struct {
	t    *testing.T
	conn net.Conn
}

func newClient(t *testing.T, opts ...Option) (*client, *Server) {
	t.Helper()

	opts = append(opts, WithLogger(log.New(io.Discard, "", 0)))
	srv, err := New("127.0.0.1:0", opts...)
	if err != nil {
		t.Fatalf("could not create simulator: %+v", err)
	}
	go srv.Serve()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := net.Dial("udp", srv.Addr())
	if err != nil {
		t.Fatalf("could not dial simulator: %+v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	return &client{t: t, conn: conn}, srv
}

func (c *client) xfer(msg mrf.Message) (mrf.Message, bool) {
	c.t.Helper()

	raw, err := msg.MarshalBinary()
	if err != nil {
		c.t.Fatalf("could not marshal request: %+v", err)
	}
	_, err = c.conn.Write(raw)
	if err != nil {
		c.t.Fatalf("could not send request: %+v", err)
	}

	err = c.conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if err != nil {
		c.t.Fatalf("could not set deadline: %+v", err)
	}
	buf := make([]byte, 2*mrf.MsgLen)
	n, err := c.conn.Read(buf)
	if err != nil {
		return mrf.Message{}, false
	}

	var rep mrf.Message
	err = rep.UnmarshalBinary(buf[:n])
	if err != nil {
		c.t.Fatalf("could not unmarshal reply: %+v", err)
	}
	return rep, true
}

func (c *client) write(reg, v uint16) {
	c.t.Helper()
	_, ok := c.xfer(mrf.Write(reg, v))
	if !ok {
		c.t.Fatalf("no reply to write of register 0x%02x", reg)
	}
}

func (c *client) read(reg uint16) uint16 {
	c.t.Helper()
	rep, ok := c.xfer(mrf.Read(reg))
	if !ok {
		c.t.Fatalf("no reply to read of register 0x%02x", reg)
	}
	return rep.Data
}

func TestFlatRegisters(t *testing.T) {
	c, _ := newClient(t)

	c.write(mrf.USEC_DIVIDER, 125)
	if got, want := c.read(mrf.USEC_DIVIDER), uint16(125); got != want {
		t.Fatalf("invalid register value: got=%d, want=%d", got, want)
	}

	// the firmware register is read-only.
	fw := c.read(mrf.FIRMWARE)
	c.write(mrf.FIRMWARE, 0x1111)
	if got, want := c.read(mrf.FIRMWARE), fw; got != want {
		t.Fatalf("firmware register not read-only: got=0x%04x, want=0x%04x", got, want)
	}
}

func TestPulseBanks(t *testing.T) {
	c, _ := newClient(t)

	// the shared delay register is banked by the select register.
	c.write(mrf.PULSE_SELECT, 3)
	c.write(mrf.PULSE_DELAY+2, 111)
	c.write(mrf.PULSE_SELECT, 19)
	c.write(mrf.PULSE_DELAY+2, 222)

	c.write(mrf.PULSE_SELECT, 3)
	if got, want := c.read(mrf.PULSE_DELAY+2), uint16(111); got != want {
		t.Fatalf("invalid bank-3 delay: got=%d, want=%d", got, want)
	}
	c.write(mrf.PULSE_SELECT, 19)
	if got, want := c.read(mrf.PULSE_DELAY+2), uint16(222); got != want {
		t.Fatalf("invalid bank-19 delay: got=%d, want=%d", got, want)
	}
}

func TestMapRAM(t *testing.T) {
	c, _ := newClient(t)

	c.write(mrf.MAP_ADDRESS, 2)
	c.write(mrf.MAP_DATA, 0x0203)
	c.write(mrf.MAP_ADDRESS, 7)
	c.write(mrf.MAP_DATA, 0x0001)

	c.write(mrf.MAP_ADDRESS, 2)
	if got, want := c.read(mrf.MAP_DATA), uint16(0x0203); got != want {
		t.Fatalf("invalid map entry: got=0x%04x, want=0x%04x", got, want)
	}

	// flushing clears the RAM and does not latch the flush bit.
	c.write(mrf.CONTROL, mrf.CTRL_FLUSH)
	if got, want := c.read(mrf.CONTROL)&mrf.CTRL_FLUSH, uint16(0); got != want {
		t.Fatalf("flush bit latched: got=0x%04x", got)
	}
	if got, want := c.read(mrf.MAP_DATA), uint16(0); got != want {
		t.Fatalf("map entry not flushed: got=0x%04x, want=0x%04x", got, want)
	}
}

func TestDrop(t *testing.T) {
	c, srv := newClient(t)

	srv.Drop(1)
	_, ok := c.xfer(mrf.Read(mrf.CONTROL))
	if ok {
		t.Fatalf("expected a dropped reply")
	}
	_, ok = c.xfer(mrf.Read(mrf.CONTROL))
	if !ok {
		t.Fatalf("expected a reply")
	}
	if got, want := srv.Requests(), 2; got != want {
		t.Fatalf("invalid request count: got=%d, want=%d", got, want)
	}
}

func TestMalformedRequest(t *testing.T) {
	c, _ := newClient(t)

	_, err := c.conn.Write([]byte{0x01, 0x02, 0x03})
	if err != nil {
		t.Fatalf("could not send malformed request: %+v", err)
	}

	// a well-formed request still gets served.
	if got, want := c.read(mrf.CONTROL), uint16(0); got != want {
		t.Fatalf("invalid register value: got=%d, want=%d", got, want)
	}
}

func TestRXViolationFlag(t *testing.T) {
	c, srv := newClient(t)

	srv.SetRXViolation(true)
	if got := c.read(mrf.CONTROL) & mrf.CTRL_RX_VIO; got == 0 {
		t.Fatalf("missing violation flag")
	}
	srv.SetRXViolation(false)
	if got := c.read(mrf.CONTROL) & mrf.CTRL_RX_VIO; got != 0 {
		t.Fatalf("violation flag not cleared")
	}
}
