// Copyright 2023 The evr Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package evr230

import (
	"reflect"
	"strings"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	const raw = `
devices:
  - name: evr1
    host: 10.2.5.20
    port: 2000
    clock_mhz: 125
  - name: evr2
    host: 10.2.5.21
    port: 2000
    clock_mhz: 100
`
	cfg, err := LoadConfig(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("could not load config: %+v", err)
	}

	want := Config{Devices: []DeviceConfig{
		{Name: "evr1", Host: "10.2.5.20", Port: 2000, Clock: 125},
		{Name: "evr2", Host: "10.2.5.21", Port: 2000, Clock: 100},
	}}
	if got, want := cfg, want; !reflect.DeepEqual(got, want) {
		t.Fatalf("invalid config:\ngot= %#v\nwant=%#v", got, want)
	}

	reg := NewRegistry(WithLogger(discard()))
	err = reg.ConfigureFrom(cfg)
	if err != nil {
		t.Fatalf("could not configure from config: %+v", err)
	}
	if got, want := reg.Names(), []string{"evr1", "evr2"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("invalid names: got=%q, want=%q", got, want)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	_, err := LoadConfig(strings.NewReader("devices: {not: [a, list"))
	if err == nil {
		t.Fatal("expected an error")
	}
}

func TestLoadConfigFileMissing(t *testing.T) {
	_, err := LoadConfigFile("testdata/does-not-exist.yml")
	if err == nil {
		t.Fatal("expected an error")
	}
}
