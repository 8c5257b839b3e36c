// Copyright 2023 The evr Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command evr-daq exposes a set of event receivers as a TDAQ process,
// so run control can configure, initialize, start and stop event
// reception alongside the rest of the acquisition.
package main // import "github.com/aismail2/evr/cmd/evr-daq"

import (
	"context"
	"log"
	"os"

	"github.com/aismail2/evr/evr230"
	"github.com/go-daq/tdaq"
	"github.com/go-daq/tdaq/flags"
)

func main() {
	log.SetPrefix("evr-daq: ")
	log.SetFlags(0)

	cmd := flags.New()
	if len(cmd.Args) != 1 {
		log.Fatalf("missing path to device configuration file")
	}

	reg := evr230.NewRegistry(
		evr230.WithLogger(log.New(os.Stdout, "evr-daq: ", 0)),
	)
	daq := evr230.NewDAQ(reg, cmd.Args[0])

	srv := tdaq.New(cmd, os.Stdout)
	srv.CmdHandle("/config", daq.OnConfig)
	srv.CmdHandle("/init", daq.OnInit)
	srv.CmdHandle("/reset", daq.OnReset)
	srv.CmdHandle("/start", daq.OnStart)
	srv.CmdHandle("/stop", daq.OnStop)
	srv.CmdHandle("/quit", daq.OnQuit)

	err := srv.Run(context.Background())
	if err != nil {
		log.Panicf("error: %+v", err)
	}
}
