// Copyright 2023 The evr Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command evr-sim runs a simulated event receiver on a UDP endpoint,
// for exercising the control layer without hardware.
package main // import "github.com/aismail2/evr/cmd/evr-sim"

import (
	"flag"
	"log"

	"github.com/aismail2/evr/evrsim"
)

func main() {
	log.SetPrefix("evr-sim: ")
	log.SetFlags(0)

	var (
		addr = flag.String("addr", "0.0.0.0:2000", "[ip]:port to listen on")
		fw   = flag.Int("fw", 0x2300, "firmware revision to report")
	)

	flag.Parse()

	srv, err := evrsim.New(*addr, evrsim.WithFirmware(uint16(*fw)))
	if err != nil {
		log.Fatalf("could not create simulator: %+v", err)
	}
	defer srv.Close()

	log.Printf("serving %q...", srv.Addr())
	err = srv.Serve()
	if err != nil {
		log.Fatalf("could not serve: %+v", err)
	}
}
