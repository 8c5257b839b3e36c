// Copyright 2023 The evr Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package evr230

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strings"
)

// server exposes a Registry over a TCP control socket. Requests and
// replies are newline-free JSON documents:
//
//	{"name": "set-pulser-delay", "args": {"device": "evr1", "channel": 3, "usec": 10}}
//	{"msg": "ok"}
type server struct {
	ctl net.Listener
	msg *log.Logger
	reg *Registry
}

// Serve listens on addr and answers control requests against the
// registry until the listener fails.
func Serve(addr string, reg *Registry) error {
	srv, err := newServer(addr, reg)
	if err != nil {
		return fmt.Errorf("evr230: could not create control server: %w", err)
	}
	return srv.serve()
}

func newServer(addr string, reg *Registry) (*server, error) {
	ctl, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("could not listen on %q: %w", addr, err)
	}
	return &server{
		ctl: ctl,
		msg: log.New(os.Stdout, "evr-svc: ", 0),
		reg: reg,
	}, nil
}

func (srv *server) serve() error {
	defer srv.close()

	for {
		conn, err := srv.ctl.Accept()
		if err != nil {
			return fmt.Errorf("could not accept connection: %w", err)
		}

		err = srv.handle(conn)
		if err != nil {
			srv.msg.Printf("could not serve connection: %+v", err)
			continue
		}
	}
}

type cmdArgs struct {
	Device  string  `json:"device"`
	Channel int     `json:"channel"`
	On      bool    `json:"on"`
	Usec    float64 `json:"usec"`
	Value   uint32  `json:"value"`
	Event   uint8   `json:"event"`
	Actions uint16  `json:"actions"`
	Reg     uint16  `json:"reg"`
}

func (srv *server) handle(conn net.Conn) error {
	defer conn.Close()
	srv.msg.Printf("serving %v...", conn.RemoteAddr())
	defer srv.msg.Printf("serving %v... [done]", conn.RemoteAddr())

	for {
		var req struct {
			Name string           `json:"name"`
			Args *json.RawMessage `json:"args"`
		}

		err := json.NewDecoder(conn).Decode(&req)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			srv.msg.Printf("could not decode command request: %+v", err)
			srv.reply(conn, nil, err)
			continue
		}
		srv.msg.Printf("received request: name=%q", req.Name)

		switch strings.ToLower(req.Name) {
		case "configure":
			var args []DeviceConfig
			err = srv.decode(req.Args, &args)
			if err != nil {
				srv.reply(conn, nil, err)
				continue
			}
			err = srv.reg.ConfigureFrom(Config{Devices: args})
			srv.reply(conn, nil, err)

		case "initialize":
			var args []string
			err = srv.decode(req.Args, &args)
			if err != nil {
				srv.reply(conn, nil, err)
				continue
			}
			switch len(args) {
			case 0:
				err = srv.reg.InitializeAll()
			default:
				for _, name := range args {
					err = srv.reg.Initialize(name)
					if err != nil {
						break
					}
				}
			}
			srv.reply(conn, nil, err)

		case "list":
			srv.reply(conn, srv.reg.Names(), nil)

		case "quit":
			srv.reply(conn, nil, nil)
			return nil

		default:
			data, err := srv.run(strings.ToLower(req.Name), req.Args)
			srv.reply(conn, data, err)
		}
	}
}

// run dispatches a per-device operation.
func (srv *server) run(name string, raw *json.RawMessage) (interface{}, error) {
	var args cmdArgs
	err := srv.decode(raw, &args)
	if err != nil {
		return nil, err
	}
	dev, err := srv.reg.Open(args.Device)
	if err != nil {
		return nil, err
	}

	switch name {
	case "enable":
		return nil, dev.Enable(args.On)
	case "flush":
		return nil, dev.Flush()
	case "set-clock":
		return nil, dev.SetClock(uint16(args.Value))
	case "set-external-event":
		return nil, dev.SetExternalEvent(args.Event)
	case "reset-rx-violation":
		return nil, dev.ResetRXViolation()
	case "status":
		return srv.status(dev)
	case "enable-pulser":
		return nil, dev.EnablePulser(args.Channel, args.On)
	case "set-pulser-delay":
		return nil, dev.SetPulserDelay(args.Channel, args.Usec)
	case "set-pulser-width":
		return nil, dev.SetPulserWidth(args.Channel, args.Usec)
	case "enable-pdp":
		return nil, dev.EnablePDP(args.Channel, args.On)
	case "set-pdp-prescaler":
		return nil, dev.SetPDPPrescaler(args.Channel, uint16(args.Value))
	case "set-pdp-delay":
		return nil, dev.SetPDPDelay(args.Channel, args.Usec)
	case "set-pdp-width":
		return nil, dev.SetPDPWidth(args.Channel, args.Usec)
	case "set-prescaler":
		return nil, dev.SetPrescaler(args.Channel, uint16(args.Value))
	case "enable-level":
		return nil, dev.EnableLevel(args.Channel, args.On)
	case "enable-trigger":
		return nil, dev.EnableTrigger(args.Channel, args.On)
	case "enable-dbus":
		return nil, dev.EnableDBus(args.Channel, args.On)
	case "set-ttl-source":
		return nil, dev.SetTTLSource(args.Channel, uint16(args.Value))
	case "set-univ-source":
		return nil, dev.SetUNIVSource(args.Channel, uint16(args.Value))
	case "enable-cml":
		return nil, dev.EnableCML(args.Channel, args.On)
	case "set-cml-prescaler":
		return nil, dev.SetCMLPrescaler(args.Channel, args.Value)
	case "set-map":
		return nil, dev.SetMap(args.Event, args.Actions)
	case "get-map":
		return dev.Map(args.Event)
	case "read-reg":
		return dev.ReadRegister(args.Reg)
	case "write-reg":
		return nil, dev.WriteRegister(args.Reg, uint16(args.Value))
	default:
		srv.msg.Printf("unknown command name=%q", name)
		return nil, fmt.Errorf("unknown command %q", name)
	}
}

// status gathers the global state of a device.
func (srv *server) status(dev *Device) (interface{}, error) {
	enabled, err := dev.IsEnabled()
	if err != nil {
		return nil, err
	}
	clock, err := dev.Clock()
	if err != nil {
		return nil, err
	}
	fw, err := dev.FirmwareVersion()
	if err != nil {
		return nil, err
	}
	vio, err := dev.RXViolation()
	if err != nil {
		return nil, err
	}
	return struct {
		Name        string `json:"name"`
		Enabled     bool   `json:"enabled"`
		Clock       uint16 `json:"clock_mhz"`
		Firmware    uint16 `json:"firmware"`
		RXViolation bool   `json:"rx_violation"`
	}{dev.Name(), enabled, clock, fw, vio}, nil
}

func (srv *server) decode(raw *json.RawMessage, args interface{}) error {
	if raw == nil {
		return nil
	}
	err := json.Unmarshal(*raw, args)
	if err != nil {
		srv.msg.Printf("could not decode command payload: %+v", err)
		return err
	}
	return nil
}

func (srv *server) reply(conn net.Conn, data interface{}, err error) {
	rep := struct {
		Msg  string      `json:"msg"`
		Data interface{} `json:"data,omitempty"`
	}{"ok", data}
	if err != nil {
		rep.Msg = fmt.Sprintf("%+v", err)
	}

	_ = json.NewEncoder(conn).Encode(rep)
}

func (srv *server) close() {
	_ = srv.ctl.Close()
}
