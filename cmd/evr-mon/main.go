// Copyright 2023 The evr Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command evr-mon watches a set of event receivers for event-link
// receive violations and sends mail alerts when one is flagged.
package main // import "github.com/aismail2/evr/cmd/evr-mon"

import (
	"crypto/tls"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aismail2/evr/evr230"
	mail "gopkg.in/gomail.v2"
)

func main() {
	log.SetPrefix("evr-mon: ")
	log.SetFlags(0)

	var (
		cfg   = flag.String("cfg", "", "path to the YAML device configuration")
		freq  = flag.Duration("freq", 30*time.Second, "probing interval")
		reset = flag.Bool("reset", false, "clear violations after alerting")
	)

	flag.Parse()

	if *cfg == "" {
		log.Fatalf("missing path to device configuration file")
	}

	run(*cfg, *freq, *reset)
}

func run(cfg string, freq time.Duration, reset bool) {
	c, err := evr230.LoadConfigFile(cfg)
	if err != nil {
		log.Fatalf("could not load config %q: %+v", cfg, err)
	}

	reg := evr230.NewRegistry(
		evr230.WithLogger(log.New(os.Stdout, "evr-mon: ", 0)),
	)
	err = reg.ConfigureFrom(c)
	if err != nil {
		log.Fatalf("could not configure devices: %+v", err)
	}

	mon := &monitor{
		reg:    reg,
		freq:   freq,
		reset:  reset,
		alerts: make(map[string]int),
	}
	mon.run()
}

type monitor struct {
	reg    *evr230.Registry
	freq   time.Duration
	reset  bool
	alerts map[string]int // alerts sent so far, per device
}

func (mon *monitor) run() {
	tick := time.NewTicker(mon.freq)
	defer tick.Stop()

	log.Printf("monitoring %d device(s) every %v...", len(mon.reg.Names()), mon.freq)
	for range tick.C {
		for _, name := range mon.reg.Names() {
			err := mon.probe(name)
			if err != nil {
				log.Printf("could not probe %q: %+v", name, err)
			}
		}
	}
}

func (mon *monitor) probe(name string) error {
	dev, err := mon.reg.Open(name)
	if err != nil {
		return err
	}
	err = dev.Connect()
	if err != nil {
		return err
	}

	vio, err := dev.RXViolation()
	if err != nil {
		return err
	}
	if !vio {
		return nil
	}

	mon.alert(dev)
	if mon.reset {
		err = dev.ResetRXViolation()
		if err != nil {
			return fmt.Errorf("could not reset violation on %q: %w", name, err)
		}
	}
	return nil
}

func (mon *monitor) alert(dev *evr230.Device) {
	log.Printf("device %q flagged an event-link violation", dev.Name())
	mon.alerts[dev.Name()]++

	const maxAlerts = 5
	if mon.alerts[dev.Name()] < maxAlerts {
		mon.alertMail(dev)
	}
}

var (
	alertMailUsr  = os.Getenv("MAIL_USERNAME")
	alertMailPwd  = os.Getenv("MAIL_PASSWORD")
	alertMailSrv  = os.Getenv("MAIL_SERVER")
	alertMailPort = atoi(os.Getenv("MAIL_PORT"))
	alertMailTgts = strings.Split(os.Getenv("MAIL_TGTS"), ",")
)

func (mon *monitor) alertMail(dev *evr230.Device) {
	if alertMailUsr == "" || alertMailPwd == "" ||
		alertMailSrv == "" || alertMailPort == 0 ||
		len(alertMailTgts) == 0 {
		log.Printf("could not send mail alert: missing credentials")
		return
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", alertMailUsr)
	msg.SetHeader("Bcc", alertMailTgts...)
	msg.SetHeader("Subject", fmt.Sprintf("[evr-mon] event-link violation: %q", dev.Name()))
	msg.SetBody("text/plain", fmt.Sprintf("device: %q\naddr: %s\nfreq: %v",
		dev.Name(), dev.Addr(), mon.freq,
	))

	dial := mail.NewDialer(alertMailSrv, alertMailPort, alertMailUsr, alertMailPwd)
	dial.TLSConfig = &tls.Config{
		InsecureSkipVerify: true,
	}
	err := dial.DialAndSend(msg)
	if err != nil {
		log.Printf("could not send mail alert: %+v", err)
	}
}

func atoi(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v
}
