// Copyright 2020 thinkgos (thinkgo@aliyun.com).  All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

// Package coordinator runs the long-lived reconnect loop that turns one
// gateway's byte stream into application events, energy tallies, and a
// persisted infrastructure snapshot.
package coordinator

import (
	"errors"
	"time"

	"github.com/tigotap/tigotap/energy"
)

// DefaultTCPPort is the gateway bridge's default listening port.
const DefaultTCPPort = 502

// Reconnect/watchdog bounds, matching the reference client's defaults.
const (
	ReconnectDelayMin     = 1 * time.Second
	ReconnectDelayMax     = 5 * time.Minute
	ReconnectTimeoutMin   = 5 * time.Second
	ReconnectTimeoutMax   = 1 * time.Hour
	PersistenceDebounceMin = 1 * time.Second
	PersistenceDebounceMax = 1 * time.Hour
)

// Config defines one gateway connection's coordinator behavior. The
// default is applied for each unspecified value, the same way
// cs104.Config works.
type Config struct {
	// Host/Port select a TCP source; Device selects a serial source
	// instead. Exactly one of Host or Device must be set.
	Host string
	Port int
	Device string
	Baud   int

	// ReconnectDelay is how long to wait between reconnect attempts.
	// range [1s, 5m], default 5s.
	ReconnectDelay time.Duration

	// ReconnectRetries bounds the number of reconnect attempts; 0 means
	// unlimited, matching the reference client.
	ReconnectRetries int

	// ReconnectTimeout is how long the connection may go without
	// receiving any bytes before it's considered dead and reconnected.
	// range [5s, 1h], default 60s.
	ReconnectTimeout time.Duration

	// PersistenceDebounce bounds how often the infrastructure/energy
	// snapshot is written to the store.
	// range [1s, 1h], default 10s.
	PersistenceDebounce time.Duration

	// Energy is the gap-handling configuration passed to every
	// per-barcode energy.Accumulate call.
	Energy energy.GapConfig

	// BarcodeAllowList, when non-empty, restricts module tracking to
	// nodes whose resolved barcode appears in it; other barcodes are
	// recorded as discovered. An empty list tracks every node.
	BarcodeAllowList []string
}

// Valid applies the default for each unspecified value and validates
// the Host/Device exclusivity.
func (c *Config) Valid() error {
	if c == nil {
		return errors.New("coordinator: invalid pointer")
	}
	if c.Host == "" && c.Device == "" {
		return errors.New("coordinator: either Host or Device must be set")
	}
	if c.Host != "" && c.Device != "" {
		return errors.New("coordinator: Host and Device are mutually exclusive")
	}

	if c.Host != "" && c.Port == 0 {
		c.Port = DefaultTCPPort
	}

	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = 5 * time.Second
	} else if c.ReconnectDelay < ReconnectDelayMin || c.ReconnectDelay > ReconnectDelayMax {
		return errors.New("coordinator: ReconnectDelay not in [1s, 5m]")
	}

	if c.ReconnectTimeout == 0 {
		c.ReconnectTimeout = 60 * time.Second
	} else if c.ReconnectTimeout < ReconnectTimeoutMin || c.ReconnectTimeout > ReconnectTimeoutMax {
		return errors.New("coordinator: ReconnectTimeout not in [5s, 1h]")
	}

	if c.PersistenceDebounce == 0 {
		c.PersistenceDebounce = 10 * time.Second
	} else if c.PersistenceDebounce < PersistenceDebounceMin || c.PersistenceDebounce > PersistenceDebounceMax {
		return errors.New("coordinator: PersistenceDebounce not in [1s, 1h]")
	}

	if c.Energy == (energy.GapConfig{}) {
		c.Energy = energy.DefaultGapConfig()
	}

	return nil
}

// DefaultConfig returns a Config with every default applied for a TCP
// source at host.
func DefaultConfig(host string) Config {
	cfg := Config{
		Host:                host,
		Port:                DefaultTCPPort,
		ReconnectDelay:      5 * time.Second,
		ReconnectTimeout:    60 * time.Second,
		PersistenceDebounce: 10 * time.Second,
		Energy:              energy.DefaultGapConfig(),
	}
	return cfg
}
