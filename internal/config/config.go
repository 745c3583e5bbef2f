// Package config loads the server's startup configuration from a TOML
// file: which NIC to bind the bus to, which core the real-time thread is
// pinned to, the cycle period, and the HTTP listen address. txrx_core is
// parsed into Ethercat.TxRxCore, but nothing in the server reads it: TX/RX
// runs on the real-time thread.
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/runtimevic/fieldbusd/x/mathx"
)

// Config is the root of the TOML document.
type Config struct {
	Ethercat Ethercat `toml:"ethercat"`
	HTTP     HTTP     `toml:"http"`
}

type Ethercat struct {
	Interface   string `toml:"interface"`
	CyclePeriod string `toml:"cycle_period"`
	RTCore      int    `toml:"rt_core"`
	TxRxCore    int    `toml:"txrx_core"`
}

type HTTP struct {
	ListenAddr string `toml:"listen_addr"`
}

// minCyclePeriod and maxCyclePeriod bound what a config file may request;
// anything outside this range almost certainly indicates a unit mistake
// (seconds instead of microseconds) rather than an intentional setting.
const (
	minCyclePeriod = 50 * time.Microsecond
	maxCyclePeriod = 10 * time.Millisecond
)

var defaults = Config{
	Ethercat: Ethercat{
		Interface:   "eth0",
		CyclePeriod: "300us",
		RTCore:      2,
		TxRxCore:    3,
	},
	HTTP: HTTP{ListenAddr: ":8080"},
}

// Load reads and validates the TOML file at path.
func Load(path string) (Config, error) {
	cfg := defaults
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.Ethercat.Interface == "" {
		return fmt.Errorf("config: ethercat.interface must not be empty")
	}
	if _, err := c.CyclePeriod(); err != nil {
		return err
	}
	return nil
}

// CyclePeriod parses and clamps the configured cycle period into the
// sane range, so an extreme value degrades to a safe bound rather than
// producing a real-time loop that spins at an absurd rate. A value that
// does not parse as a duration is an error.
func (c Config) CyclePeriod() (time.Duration, error) {
	d, err := time.ParseDuration(c.Ethercat.CyclePeriod)
	if err != nil {
		return 0, fmt.Errorf("config: ethercat.cycle_period: %w", err)
	}
	return mathx.Clamp(d, minCyclePeriod, maxCyclePeriod), nil
}
