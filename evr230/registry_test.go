// Copyright 2023 The evr Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package evr230

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"reflect"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/aismail2/evr/evrsim"
	"github.com/aismail2/evr/mrf"
)

func discard() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func newTestSim(t *testing.T) *evrsim.Server {
	t.Helper()

	srv, err := evrsim.New("127.0.0.1:0", evrsim.WithLogger(discard()))
	if err != nil {
		t.Fatalf("could not create simulator: %+v", err)
	}
	go srv.Serve()
	t.Cleanup(func() { _ = srv.Close() })
	return srv
}

func hostPortOf(t *testing.T, addr string) (string, int) {
	t.Helper()

	host, p, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("could not split %q: %+v", addr, err)
	}
	port, err := strconv.Atoi(p)
	if err != nil {
		t.Fatalf("could not parse port %q: %+v", p, err)
	}
	return host, port
}

func TestRegistryConfigure(t *testing.T) {
	for _, tc := range []struct {
		name  string
		dev   string
		host  string
		port  int
		clock int
		want  string
	}{
		{
			name: "empty-name",
			host: "localhost", port: 2000, clock: 125,
			want: "evr230: invalid argument: empty device name",
		},
		{
			name: "long-name",
			dev:  strings.Repeat("x", NameLen+1),
			host: "localhost", port: 2000, clock: 125,
			want: fmt.Sprintf(
				"evr230: invalid argument: device name %q too long (max %d)",
				strings.Repeat("x", NameLen+1), NameLen,
			),
		},
		{
			name: "empty-host",
			dev:  "evr1", port: 2000, clock: 125,
			want: `evr230: invalid argument: empty host for device "evr1"`,
		},
		{
			name: "bad-port",
			dev:  "evr1", host: "localhost", port: 70000, clock: 125,
			want: `evr230: invalid argument: port 70000 out of range for device "evr1"`,
		},
		{
			name: "zero-port",
			dev:  "evr1", host: "localhost", port: 0, clock: 125,
			want: `evr230: invalid argument: port 0 out of range for device "evr1"`,
		},
		{
			name: "bad-clock",
			dev:  "evr1", host: "localhost", port: 2000, clock: 126,
			want: `evr230: invalid argument: clock 126 MHz out of range for device "evr1"`,
		},
		{
			name: "zero-clock",
			dev:  "evr1", host: "localhost", port: 2000, clock: 0,
			want: `evr230: invalid argument: clock 0 MHz out of range for device "evr1"`,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			reg := NewRegistry(WithLogger(discard()))
			err := reg.Configure(tc.dev, tc.host, tc.port, tc.clock)
			if err == nil {
				t.Fatal("expected an error")
			}
			var argErr *ArgError
			if !errors.As(err, &argErr) {
				t.Fatalf("invalid error type: %+v", err)
			}
			if got, want := err.Error(), tc.want; got != want {
				t.Fatalf("invalid error:\ngot= %q\nwant=%q", got, want)
			}
		})
	}
}

func TestRegistryDuplicate(t *testing.T) {
	reg := NewRegistry(WithLogger(discard()))

	err := reg.Configure("evr1", "localhost", 2000, 125)
	if err != nil {
		t.Fatalf("could not configure device: %+v", err)
	}
	err = reg.Configure("evr1", "localhost", 2001, 125)
	if err == nil {
		t.Fatal("expected an error")
	}
	var argErr *ArgError
	if !errors.As(err, &argErr) {
		t.Fatalf("invalid error type: %+v", err)
	}
}

func TestRegistryCapacity(t *testing.T) {
	reg := NewRegistry(WithLogger(discard()))

	for i := 0; i < MaxDevices; i++ {
		err := reg.Configure(fmt.Sprintf("evr%d", i), "localhost", 2000+i, 125)
		if err != nil {
			t.Fatalf("could not configure device %d: %+v", i, err)
		}
	}
	err := reg.Configure("one-too-many", "localhost", 3000, 125)
	if err == nil {
		t.Fatal("expected an error")
	}
	if got, want := err.Error(), fmt.Sprintf("evr230: invalid argument: too many devices (max %d)", MaxDevices); got != want {
		t.Fatalf("invalid error:\ngot= %q\nwant=%q", got, want)
	}
}

func TestRegistryOpen(t *testing.T) {
	reg := NewRegistry(WithLogger(discard()))

	err := reg.Configure("evr1", "localhost", 2000, 125)
	if err != nil {
		t.Fatalf("could not configure device: %+v", err)
	}

	dev, err := reg.Open("evr1")
	if err != nil {
		t.Fatalf("could not open device: %+v", err)
	}
	if got, want := dev.Name(), "evr1"; got != want {
		t.Fatalf("invalid device name: got=%q, want=%q", got, want)
	}

	_, err = reg.Open("evr2")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("invalid error: %+v", err)
	}
}

func TestRegistryNames(t *testing.T) {
	reg := NewRegistry(WithLogger(discard()))

	for _, name := range []string{"linac", "booster", "ring"} {
		err := reg.Configure(name, "localhost", 2000, 125)
		if err != nil {
			t.Fatalf("could not configure device %q: %+v", name, err)
		}
	}

	if got, want := reg.Names(), []string{"booster", "linac", "ring"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("invalid names: got=%q, want=%q", got, want)
	}
}

func TestRegistryInitializeAll(t *testing.T) {
	sim1 := newTestSim(t)
	sim2 := newTestSim(t)

	reg := NewRegistry(WithLogger(discard()))
	for i, sim := range []*evrsim.Server{sim1, sim2} {
		host, port := hostPortOf(t, sim.Addr())
		err := reg.Configure(fmt.Sprintf("evr%d", i+1), host, port, 100+i)
		if err != nil {
			t.Fatalf("could not configure device %d: %+v", i, err)
		}
	}

	err := reg.InitializeAll()
	if err != nil {
		t.Fatalf("could not initialize devices: %+v", err)
	}

	if got, want := sim1.Reg(mrf.USEC_DIVIDER), uint16(100); got != want {
		t.Fatalf("invalid evr1 clock: got=%d, want=%d", got, want)
	}
	if got, want := sim2.Reg(mrf.USEC_DIVIDER), uint16(101); got != want {
		t.Fatalf("invalid evr2 clock: got=%d, want=%d", got, want)
	}

	err = reg.Close()
	if err != nil {
		t.Fatalf("could not close registry: %+v", err)
	}
}

func TestRegistryInitializeAllPartialFailure(t *testing.T) {
	sim := newTestSim(t)

	// a simulator that is gone before initialization.
	gone, err := evrsim.New("127.0.0.1:0", evrsim.WithLogger(discard()))
	if err != nil {
		t.Fatalf("could not create simulator: %+v", err)
	}
	goneHost, gonePort := hostPortOf(t, gone.Addr())
	_ = gone.Close()

	reg := NewRegistry(WithLogger(discard()))
	host, port := hostPortOf(t, sim.Addr())
	err = reg.Configure("good", host, port, 125)
	if err != nil {
		t.Fatalf("could not configure device: %+v", err)
	}
	err = reg.Configure("dead", goneHost, gonePort, 125)
	if err != nil {
		t.Fatalf("could not configure device: %+v", err)
	}

	// shorten the dead device's timeout to keep the test fast.
	dead, err := reg.Open("dead")
	if err != nil {
		t.Fatalf("could not open device: %+v", err)
	}
	dead.timeout = 50 * time.Millisecond

	err = reg.InitializeAll()
	if err == nil {
		t.Fatal("expected an error")
	}

	// the healthy device was still initialized.
	if got, want := sim.Reg(mrf.USEC_DIVIDER), uint16(125); got != want {
		t.Fatalf("invalid clock: got=%d, want=%d", got, want)
	}
}
