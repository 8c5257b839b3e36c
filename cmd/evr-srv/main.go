// Copyright 2023 The evr Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command evr-srv serves a TCP control socket for a set of event
// receivers, described either by a YAML configuration file or by the
// facility database inventory.
package main // import "github.com/aismail2/evr/cmd/evr-srv"

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/aismail2/evr/conddb"
	"github.com/aismail2/evr/evr230"
)

func main() {
	log.SetPrefix("evr-srv: ")
	log.SetFlags(0)

	var (
		addr   = flag.String("addr", ":8877", "[ip]:port to listen on")
		cfg    = flag.String("cfg", "", "path to the YAML device configuration")
		dbname = flag.String("db", "", "facility database holding the device inventory")
		doInit = flag.Bool("init", false, "initialize all devices at startup")
	)

	flag.Parse()

	run(*addr, *cfg, *dbname, *doInit)
}

func run(addr, cfg, dbname string, doInit bool) {
	reg := evr230.NewRegistry(
		evr230.WithLogger(log.New(os.Stdout, "evr-srv: ", 0)),
	)

	switch {
	case cfg != "":
		c, err := evr230.LoadConfigFile(cfg)
		if err != nil {
			log.Fatalf("could not load config %q: %+v", cfg, err)
		}
		err = reg.ConfigureFrom(c)
		if err != nil {
			log.Fatalf("could not configure devices: %+v", err)
		}
	case dbname != "":
		err := configureFromDB(reg, dbname)
		if err != nil {
			log.Fatalf("could not configure devices from db %q: %+v", dbname, err)
		}
	}

	if doInit {
		err := reg.InitializeAll()
		if err != nil {
			log.Fatalf("could not initialize devices: %+v", err)
		}
	}

	log.Printf("running control server on %q...", addr)
	err := evr230.Serve(addr, reg)
	if err != nil {
		log.Fatalf("could not serve %q: %+v", addr, err)
	}
}

func configureFromDB(reg *evr230.Registry, dbname string) error {
	db, err := conddb.Open(dbname)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	devs, err := db.Devices(ctx)
	if err != nil {
		return err
	}
	for _, dev := range devs {
		err = reg.Configure(dev.Name, dev.Host, dev.Port, dev.Clock)
		if err != nil {
			return err
		}
	}
	return nil
}
