// Copyright 2023 The evr Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package evr230

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Config describes a set of devices to register, as loaded from a
// YAML configuration file:
//
//	devices:
//	  - name: evr1
//	    host: 10.2.5.20
//	    port: 2000
//	    clock_mhz: 125
type Config struct {
	Devices []DeviceConfig `yaml:"devices"`
}

// DeviceConfig describes one device entry of a Config.
type DeviceConfig struct {
	Name  string `yaml:"name"`
	Host  string `yaml:"host"`
	Port  int    `yaml:"port"`
	Clock int    `yaml:"clock_mhz"`
}

// LoadConfig decodes a YAML device configuration.
func LoadConfig(r io.Reader) (Config, error) {
	var cfg Config
	err := yaml.NewDecoder(r).Decode(&cfg)
	if err != nil {
		return cfg, fmt.Errorf("evr230: could not decode config: %w", err)
	}
	return cfg, nil
}

// LoadConfigFile decodes the YAML device configuration at the given
// path.
func LoadConfigFile(name string) (Config, error) {
	f, err := os.Open(name)
	if err != nil {
		return Config{}, fmt.Errorf("evr230: could not open config file: %w", err)
	}
	defer f.Close()
	return LoadConfig(f)
}

// ConfigureFrom registers every device of the configuration with the
// registry.
func (reg *Registry) ConfigureFrom(cfg Config) error {
	for _, dev := range cfg.Devices {
		err := reg.Configure(dev.Name, dev.Host, dev.Port, dev.Clock)
		if err != nil {
			return err
		}
	}
	return nil
}
