// Copyright (c) 2025 vtrunkd authors
// Licensed under AGPL-3.0 - see LICENSE file for details
// WireGuard® is a registered trademark of Jason A. Donenfeld.

// Package config loads and validates vtrunkd's configuration. It treats
// configuration loading as an external collaborator to the datapath,
// built thin and kept entirely separate from internal/session,
// internal/linkmgr, and internal/health, which consume the validated
// Config it produces.
package config

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"
)

const maxMTU = 65535

// defaultHealthIntervalMS is the effective default used when
// HealthCheckIntervalMS is omitted, so a configured timeout can still be
// validated against an interval even when none was given explicitly.
const defaultHealthIntervalMS = 1000

// LinkConfig is one entry in the ordered link list.
type LinkConfig struct {
	Name     string `yaml:"name"`
	Bind     string `yaml:"bind,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty"`
	Weight   int    `yaml:"weight"`
}

// Config is vtrunkd's structured configuration object.
type Config struct {
	MTU        int    `yaml:"mtu"`
	BufferSize int    `yaml:"buffer_size"`
	IfaceName  string `yaml:"interface"`
	Address    string `yaml:"address"`
	Netmask    string `yaml:"netmask"`

	PrivateKey          string `yaml:"private_key"`
	PeerPublicKey       string `yaml:"peer_public_key"`
	PresharedKey        string `yaml:"preshared_key,omitempty"`
	PersistentKeepalive int    `yaml:"persistent_keepalive_seconds,omitempty"`

	BondingMode         string `yaml:"bonding_mode"`
	ErrorBackoffSeconds int    `yaml:"error_backoff_seconds,omitempty"`

	HealthCheckEnabled    bool `yaml:"health_check_enabled"`
	HealthCheckIntervalMS int  `yaml:"health_check_interval_ms,omitempty"`
	HealthCheckTimeoutMS  int  `yaml:"health_check_timeout_ms"`

	Links []LinkConfig `yaml:"links"`
}

// Load parses YAML from r into a Config, rejecting unknown fields,
// applies defaults, and validates the result.
func Load(r io.Reader) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.HealthCheckIntervalMS == 0 {
		c.HealthCheckIntervalMS = defaultHealthIntervalMS
	}
	if c.ErrorBackoffSeconds == 0 {
		c.ErrorBackoffSeconds = 1
	}
	if c.BufferSize == 0 {
		c.BufferSize = c.MTU
	}
}

// EffectiveHealthInterval returns the interval that is actually in force,
// including the default applied when none was configured.
func (c Config) EffectiveHealthInterval() time.Duration {
	ms := c.HealthCheckIntervalMS
	if ms == 0 {
		ms = defaultHealthIntervalMS
	}
	return time.Duration(ms) * time.Millisecond
}

// Validate rejects a structurally invalid configuration, naming the
// offending field: MTU range, buffer vs. MTU, timeout vs. interval, at
// least one link, and per-link weight positivity.
func (c Config) Validate() error {
	if c.MTU <= 0 || c.MTU > maxMTU {
		return fmt.Errorf("config: mtu %d out of range (1-%d)", c.MTU, maxMTU)
	}
	if c.BufferSize < c.MTU {
		return fmt.Errorf("config: buffer_size %d smaller than mtu %d", c.BufferSize, c.MTU)
	}
	if c.IfaceName == "" {
		return fmt.Errorf("config: interface name required")
	}
	if c.PrivateKey == "" {
		return fmt.Errorf("config: private_key required")
	}
	if c.PeerPublicKey == "" {
		return fmt.Errorf("config: peer_public_key required")
	}
	switch c.BondingMode {
	case "aggregate", "bonding", "redundant", "failover":
	default:
		return fmt.Errorf("config: unknown bonding_mode %q", c.BondingMode)
	}
	// "timeout > effective interval" is a structural property of the
	// config object, not a rule that only matters once health_check_enabled
	// is true — a config naming an invalid timeout is rejected whether or
	// not the feature is switched on. A config that never names a timeout
	// at all (HealthCheckTimeoutMS == 0) has nothing to validate here.
	if c.HealthCheckEnabled || c.HealthCheckTimeoutMS != 0 {
		interval := c.EffectiveHealthInterval()
		timeout := time.Duration(c.HealthCheckTimeoutMS) * time.Millisecond
		if timeout <= interval {
			return fmt.Errorf("config: health_check_timeout_ms (%d) must be greater than effective interval_ms (%d)",
				c.HealthCheckTimeoutMS, interval.Milliseconds())
		}
	}
	if len(c.Links) == 0 {
		return fmt.Errorf("config: at least one link is required")
	}
	for i, l := range c.Links {
		if l.Name == "" {
			return fmt.Errorf("config: links[%d]: name required", i)
		}
		if l.Weight <= 0 {
			return fmt.Errorf("config: links[%d] (%s): weight must be positive", i, l.Name)
		}
	}
	return nil
}
