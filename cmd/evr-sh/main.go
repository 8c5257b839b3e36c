// Copyright 2023 The evr Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command evr-sh is an interactive shell to an evr-srv control
// socket.
//
// Example session:
//
//	evr> list
//	evr> status evr1
//	evr> enable evr1 on
//	evr> set-pulser-delay evr1 3 10
//	evr> set-map evr1 2 0x0203
package main // import "github.com/aismail2/evr/cmd/evr-sh"

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"
)

func main() {
	log.SetPrefix("evr-sh: ")
	log.SetFlags(0)

	addr := flag.String("addr", "localhost:8877", "address of the evr-srv control socket")

	flag.Parse()

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		log.Fatalf("could not dial %q: %+v", *addr, err)
	}
	defer conn.Close()

	sh := &shell{
		conn: conn,
		dec:  json.NewDecoder(conn),
		enc:  json.NewEncoder(conn),
		term: liner.NewLiner(),
	}
	defer sh.close()

	sh.term.SetCtrlCAborts(true)
	sh.loadHistory()

	sh.loop()
}

type shell struct {
	conn net.Conn
	dec  *json.Decoder
	enc  *json.Encoder
	term *liner.State
}

type cmdArgs struct {
	Device  string  `json:"device,omitempty"`
	Channel int     `json:"channel,omitempty"`
	On      bool    `json:"on,omitempty"`
	Usec    float64 `json:"usec,omitempty"`
	Value   uint32  `json:"value,omitempty"`
	Event   uint8   `json:"event,omitempty"`
	Actions uint16  `json:"actions,omitempty"`
	Reg     uint16  `json:"reg,omitempty"`
}

func (sh *shell) loop() {
	for {
		line, err := sh.term.Prompt("evr> ")
		if err != nil {
			if err == io.EOF || err == liner.ErrPromptAborted {
				fmt.Println()
				return
			}
			log.Printf("could not read line: %+v", err)
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		sh.term.AppendHistory(line)

		quit, err := sh.run(line)
		if err != nil {
			log.Printf("error: %+v", err)
		}
		if quit {
			return
		}
	}
}

func (sh *shell) run(line string) (bool, error) {
	toks := strings.Fields(line)
	name := strings.ToLower(toks[0])
	toks = toks[1:]

	switch name {
	case "help":
		usage()
		return false, nil
	case "quit", "exit":
		return true, sh.send("quit", nil)
	case "list":
		return false, sh.send("list", nil)
	case "initialize":
		return false, sh.send("initialize", toks)
	case "status", "flush", "reset-rx-violation":
		if len(toks) != 1 {
			return false, fmt.Errorf("usage: %s DEVICE", name)
		}
		return false, sh.send(name, cmdArgs{Device: toks[0]})
	case "enable":
		if len(toks) != 2 {
			return false, fmt.Errorf("usage: enable DEVICE on|off")
		}
		on, err := parseOnOff(toks[1])
		if err != nil {
			return false, err
		}
		return false, sh.send(name, cmdArgs{Device: toks[0], On: on})
	case "set-clock":
		if len(toks) != 2 {
			return false, fmt.Errorf("usage: set-clock DEVICE MHZ")
		}
		v, err := parseUint(toks[1])
		if err != nil {
			return false, err
		}
		return false, sh.send(name, cmdArgs{Device: toks[0], Value: v})
	case "set-external-event", "get-map":
		if len(toks) != 2 {
			return false, fmt.Errorf("usage: %s DEVICE EVENT", name)
		}
		ev, err := parseUint(toks[1])
		if err != nil {
			return false, err
		}
		return false, sh.send(name, cmdArgs{Device: toks[0], Event: uint8(ev)})
	case "set-map":
		if len(toks) != 3 {
			return false, fmt.Errorf("usage: set-map DEVICE EVENT ACTIONS")
		}
		ev, err := parseUint(toks[1])
		if err != nil {
			return false, err
		}
		act, err := parseUint(toks[2])
		if err != nil {
			return false, err
		}
		return false, sh.send(name, cmdArgs{Device: toks[0], Event: uint8(ev), Actions: uint16(act)})
	case "enable-pulser", "enable-pdp", "enable-level",
		"enable-trigger", "enable-dbus", "enable-cml":
		if len(toks) != 3 {
			return false, fmt.Errorf("usage: %s DEVICE CHANNEL on|off", name)
		}
		ch, err := strconv.Atoi(toks[1])
		if err != nil {
			return false, err
		}
		on, err := parseOnOff(toks[2])
		if err != nil {
			return false, err
		}
		return false, sh.send(name, cmdArgs{Device: toks[0], Channel: ch, On: on})
	case "set-pulser-delay", "set-pulser-width",
		"set-pdp-delay", "set-pdp-width":
		if len(toks) != 3 {
			return false, fmt.Errorf("usage: %s DEVICE CHANNEL USEC", name)
		}
		ch, err := strconv.Atoi(toks[1])
		if err != nil {
			return false, err
		}
		usec, err := strconv.ParseFloat(toks[2], 64)
		if err != nil {
			return false, err
		}
		return false, sh.send(name, cmdArgs{Device: toks[0], Channel: ch, Usec: usec})
	case "peek":
		if len(toks) != 2 {
			return false, fmt.Errorf("usage: peek DEVICE REG")
		}
		reg, err := parseUint(toks[1])
		if err != nil {
			return false, err
		}
		return false, sh.send("read-reg", cmdArgs{Device: toks[0], Reg: uint16(reg)})
	case "poke":
		if len(toks) != 3 {
			return false, fmt.Errorf("usage: poke DEVICE REG VALUE")
		}
		reg, err := parseUint(toks[1])
		if err != nil {
			return false, err
		}
		v, err := parseUint(toks[2])
		if err != nil {
			return false, err
		}
		return false, sh.send("write-reg", cmdArgs{Device: toks[0], Reg: uint16(reg), Value: v})
	case "set-pdp-prescaler", "set-prescaler", "set-ttl-source",
		"set-univ-source", "set-cml-prescaler":
		if len(toks) != 3 {
			return false, fmt.Errorf("usage: %s DEVICE CHANNEL VALUE", name)
		}
		ch, err := strconv.Atoi(toks[1])
		if err != nil {
			return false, err
		}
		v, err := parseUint(toks[2])
		if err != nil {
			return false, err
		}
		return false, sh.send(name, cmdArgs{Device: toks[0], Channel: ch, Value: v})
	default:
		return false, fmt.Errorf("unknown command %q (try \"help\")", name)
	}
}

func (sh *shell) send(name string, args interface{}) error {
	req := struct {
		Name string      `json:"name"`
		Args interface{} `json:"args,omitempty"`
	}{name, args}

	err := sh.enc.Encode(req)
	if err != nil {
		return fmt.Errorf("could not send request: %w", err)
	}

	var rep struct {
		Msg  string          `json:"msg"`
		Data json.RawMessage `json:"data"`
	}
	err = sh.dec.Decode(&rep)
	if err != nil {
		return fmt.Errorf("could not decode reply: %w", err)
	}

	fmt.Printf("%s\n", rep.Msg)
	if len(rep.Data) > 0 {
		fmt.Printf("%s\n", rep.Data)
	}
	return nil
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "true", "1":
		return true, nil
	case "off", "false", "0":
		return false, nil
	}
	return false, fmt.Errorf("invalid switch %q (want on|off)", s)
}

func parseUint(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

func usage() {
	fmt.Print(`commands:
  list
  initialize [DEVICE...]
  status DEVICE
  enable DEVICE on|off
  flush DEVICE
  set-clock DEVICE MHZ
  set-external-event DEVICE EVENT
  reset-rx-violation DEVICE
  set-map DEVICE EVENT ACTIONS
  get-map DEVICE EVENT
  enable-{pulser,pdp,level,trigger,dbus,cml} DEVICE CHANNEL on|off
  set-{pulser,pdp}-{delay,width} DEVICE CHANNEL USEC
  set-{pdp-prescaler,prescaler,ttl-source,univ-source,cml-prescaler} DEVICE CHANNEL VALUE
  peek DEVICE REG
  poke DEVICE REG VALUE
  quit
`)
}

func (sh *shell) loadHistory() {
	f, err := os.Open(historyFile())
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = sh.term.ReadHistory(f)
}

func (sh *shell) close() {
	f, err := os.Create(historyFile())
	if err == nil {
		_, _ = sh.term.WriteHistory(f)
		f.Close()
	}
	_ = sh.term.Close()
}

func historyFile() string {
	dir, err := os.UserHomeDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, ".evr_history")
}
