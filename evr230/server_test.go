// Copyright 2023 The evr Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package evr230

import (
	"encoding/json"
	"net"
	"strings"
	"testing"
)

func TestServerFail(t *testing.T) {
	reg := NewRegistry(WithLogger(discard()))
	err := Serve(":invalid", reg)
	if err == nil {
		t.Fatal("expected an error")
	}
}

func TestServer(t *testing.T) {
	sim := newTestSim(t)
	host, port := hostPortOf(t, sim.Addr())

	reg := NewRegistry(WithLogger(discard()))
	srv, err := newServer("127.0.0.1:0", reg)
	if err != nil {
		t.Fatalf("could not create server: %+v", err)
	}
	srv.msg = discard()
	go srv.serve()
	defer srv.close()

	conn, err := net.Dial("tcp", srv.ctl.Addr().String())
	if err != nil {
		t.Fatalf("could not dial server: %+v", err)
	}
	defer conn.Close()

	var (
		enc = json.NewEncoder(conn)
		dec = json.NewDecoder(conn)
	)

	send := func(name string, args interface{}) (string, json.RawMessage) {
		t.Helper()
		err := enc.Encode(struct {
			Name string      `json:"name"`
			Args interface{} `json:"args,omitempty"`
		}{name, args})
		if err != nil {
			t.Fatalf("could not send %q request: %+v", name, err)
		}
		var rep struct {
			Msg  string          `json:"msg"`
			Data json.RawMessage `json:"data"`
		}
		err = dec.Decode(&rep)
		if err != nil {
			t.Fatalf("could not decode %q reply: %+v", name, err)
		}
		return rep.Msg, rep.Data
	}

	msg, _ := send("configure", []DeviceConfig{
		{Name: "evr1", Host: host, Port: port, Clock: 125},
	})
	if got, want := msg, "ok"; got != want {
		t.Fatalf("invalid configure reply: got=%q, want=%q", got, want)
	}

	msg, data := send("list", nil)
	if got, want := msg, "ok"; got != want {
		t.Fatalf("invalid list reply: got=%q, want=%q", got, want)
	}
	var names []string
	err = json.Unmarshal(data, &names)
	if err != nil {
		t.Fatalf("could not decode list data: %+v", err)
	}
	if got, want := len(names), 1; got != want {
		t.Fatalf("invalid device count: got=%d, want=%d", got, want)
	}

	msg, _ = send("initialize", []string{})
	if got, want := msg, "ok"; got != want {
		t.Fatalf("invalid initialize reply: got=%q, want=%q", got, want)
	}

	msg, data = send("status", cmdArgs{Device: "evr1"})
	if got, want := msg, "ok"; got != want {
		t.Fatalf("invalid status reply: got=%q, want=%q", got, want)
	}
	var status struct {
		Name        string `json:"name"`
		Enabled     bool   `json:"enabled"`
		Clock       uint16 `json:"clock_mhz"`
		Firmware    uint16 `json:"firmware"`
		RXViolation bool   `json:"rx_violation"`
	}
	err = json.Unmarshal(data, &status)
	if err != nil {
		t.Fatalf("could not decode status data: %+v", err)
	}
	if status.Enabled {
		t.Fatalf("device enabled after initialize")
	}
	if got, want := status.Clock, uint16(125); got != want {
		t.Fatalf("invalid status clock: got=%d, want=%d", got, want)
	}

	msg, _ = send("enable", cmdArgs{Device: "evr1", On: true})
	if got, want := msg, "ok"; got != want {
		t.Fatalf("invalid enable reply: got=%q, want=%q", got, want)
	}

	msg, _ = send("set-pulser-delay", cmdArgs{Device: "evr1", Channel: 3, Usec: 10})
	if got, want := msg, "ok"; got != want {
		t.Fatalf("invalid set-pulser-delay reply: got=%q, want=%q", got, want)
	}

	msg, _ = send("set-map", cmdArgs{Device: "evr1", Event: 2, Actions: 0x0203})
	if got, want := msg, "ok"; got != want {
		t.Fatalf("invalid set-map reply: got=%q, want=%q", got, want)
	}
	msg, data = send("get-map", cmdArgs{Device: "evr1", Event: 2})
	if got, want := msg, "ok"; got != want {
		t.Fatalf("invalid get-map reply: got=%q, want=%q", got, want)
	}
	var actions uint16
	err = json.Unmarshal(data, &actions)
	if err != nil {
		t.Fatalf("could not decode get-map data: %+v", err)
	}
	if got, want := actions, uint16(0x0203); got != want {
		t.Fatalf("invalid event map: got=0x%04x, want=0x%04x", got, want)
	}

	msg, data = send("read-reg", cmdArgs{Device: "evr1", Reg: 0x4e})
	if got, want := msg, "ok"; got != want {
		t.Fatalf("invalid read-reg reply: got=%q, want=%q", got, want)
	}
	var divider uint16
	err = json.Unmarshal(data, &divider)
	if err != nil {
		t.Fatalf("could not decode read-reg data: %+v", err)
	}
	if got, want := divider, uint16(125); got != want {
		t.Fatalf("invalid clock divider: got=%d, want=%d", got, want)
	}

	msg, _ = send("enable", cmdArgs{Device: "evr2", On: true})
	if !strings.Contains(msg, "device not found") {
		t.Fatalf("invalid unknown-device reply: got=%q", msg)
	}

	msg, _ = send("frobnicate", cmdArgs{Device: "evr1"})
	if !strings.Contains(msg, `unknown command "frobnicate"`) {
		t.Fatalf("invalid unknown-command reply: got=%q", msg)
	}

	msg, _ = send("set-pulser-delay", cmdArgs{Device: "evr1", Channel: 42, Usec: 10})
	if !strings.Contains(msg, "out of range") {
		t.Fatalf("invalid out-of-range reply: got=%q", msg)
	}

	msg, _ = send("quit", nil)
	if got, want := msg, "ok"; got != want {
		t.Fatalf("invalid quit reply: got=%q, want=%q", got, want)
	}
}
