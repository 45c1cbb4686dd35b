/*
Copyright (c) The Bond Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package config loads and validates the on-disk YAML configuration for
// a bond-sender/bond-receiver daemon, the way cmd/ptp4u/main.go loads
// its server config: defaults, then a YAML file laid over them,
// validated before the session is ever constructed.
package config

import (
	"fmt"
	"os"
	"time"

	yaml "gopkg.in/yaml.v2"

	"github.com/bondwire/bond/session"
)

// PathConfig describes one bonded UDP path to dial at startup.
type PathConfig struct {
	ID         uint16 `yaml:"id"`
	LocalBind  string `yaml:"local_bind"`
	RemoteAddr string `yaml:"remote_addr"`
	DSCP       int    `yaml:"dscp"`
	Iface      string `yaml:"iface"`
}

// Validate checks PathConfig is sane in isolation; cross-path checks
// (duplicate ids) are Config.Validate's job.
func (p *PathConfig) Validate() error {
	if p.LocalBind == "" {
		return fmt.Errorf("local_bind must be specified")
	}
	if p.RemoteAddr == "" {
		return fmt.Errorf("remote_addr must be specified")
	}
	if p.DSCP < 0 || p.DSCP > 63 {
		return fmt.Errorf("dscp must be 0-63")
	}
	return nil
}

// Config is the full on-disk configuration for one bond daemon. Field
// names intentionally mirror session.Config so translation in
// SessionConfig is a straight copy, not a remap.
type Config struct {
	Role string `yaml:"role"` // "sender" or "receiver"

	SessionID uint64 `yaml:"session_id"`
	MTU       uint16 `yaml:"mtu"`

	BufPoolCapacity int           `yaml:"buf_pool_capacity"`
	CodingWindow    int           `yaml:"coding_window"`
	RepairHorizon   time.Duration `yaml:"repair_horizon"`

	JitterWindowSize int `yaml:"jitter_window_size"`

	KeepaliveInterval         time.Duration `yaml:"keepalive_interval"`
	KeepaliveFailureThreshold int           `yaml:"keepalive_failure_threshold"`
	DrainWindow               time.Duration `yaml:"drain_window"`
	ProbeSuppressionInterval  time.Duration `yaml:"probe_suppression_interval"`

	BanditSeed int64 `yaml:"bandit_seed"`

	Paths []PathConfig `yaml:"paths"`

	LogLevel       string `yaml:"log_level"`
	MetricsAddress string `yaml:"metrics_address"`
	DebugAddress   string `yaml:"debug_address"`
}

// DefaultConfig returns a Config seeded from session.DefaultConfig plus
// the daemon-only fields.
func DefaultConfig() *Config {
	sc := session.DefaultConfig()
	return &Config{
		Role:                      "sender",
		MTU:                       1400,
		BufPoolCapacity:           sc.BufPoolCapacity,
		CodingWindow:              sc.CodingWindow,
		RepairHorizon:             sc.RepairHorizon,
		JitterWindowSize:          sc.JitterWindowSize,
		KeepaliveInterval:         sc.KeepaliveInterval,
		KeepaliveFailureThreshold: sc.KeepaliveFailureThreshold,
		DrainWindow:               sc.DrainWindow,
		ProbeSuppressionInterval:  sc.ProbeSuppressionInterval,
		BanditSeed:                sc.BanditSeed,
		LogLevel:                  "info",
		MetricsAddress:            ":9900",
		DebugAddress:              "",
	}
}

// Validate rejects an out-of-range or incomplete Config before any
// goroutine starts, per the no-partial-initialization rule.
func (c *Config) Validate() error {
	if c.Role != "sender" && c.Role != "receiver" {
		return fmt.Errorf("role must be %q or %q", "sender", "receiver")
	}
	if c.MTU == 0 {
		return fmt.Errorf("mtu must be positive")
	}
	if c.BufPoolCapacity <= 0 {
		return fmt.Errorf("buf_pool_capacity must be positive")
	}
	if c.CodingWindow <= 0 {
		return fmt.Errorf("coding_window must be positive")
	}
	if c.RepairHorizon <= 0 {
		return fmt.Errorf("repair_horizon must be positive")
	}
	if c.JitterWindowSize < 0 {
		return fmt.Errorf("jitter_window_size must be 0 or positive")
	}
	if c.KeepaliveInterval <= 0 {
		return fmt.Errorf("keepalive_interval must be positive")
	}
	if c.KeepaliveFailureThreshold <= 0 {
		return fmt.Errorf("keepalive_failure_threshold must be positive")
	}
	if c.DrainWindow <= 0 {
		return fmt.Errorf("drain_window must be positive")
	}
	if c.ProbeSuppressionInterval <= 0 {
		return fmt.Errorf("probe_suppression_interval must be positive")
	}
	if len(c.Paths) == 0 {
		return fmt.Errorf("at least one path must be specified")
	}
	seen := make(map[uint16]bool, len(c.Paths))
	for i := range c.Paths {
		if err := c.Paths[i].Validate(); err != nil {
			return fmt.Errorf("path %d: %w", i, err)
		}
		if seen[c.Paths[i].ID] {
			return fmt.Errorf("path %d: duplicate path id %d", i, c.Paths[i].ID)
		}
		seen[c.Paths[i].ID] = true
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	return nil
}

// SessionConfig translates c into the session.Config the caller passes
// to session.NewSender/NewReceiver. It assumes c has already been
// validated.
func (c *Config) SessionConfig() session.Config {
	return session.Config{
		SessionID:                 c.SessionID,
		MTU:                       c.MTU,
		BufPoolCapacity:           c.BufPoolCapacity,
		CodingWindow:              c.CodingWindow,
		RepairHorizon:             c.RepairHorizon,
		JitterWindowSize:          c.JitterWindowSize,
		KeepaliveInterval:         c.KeepaliveInterval,
		KeepaliveFailureThreshold: c.KeepaliveFailureThreshold,
		DrainWindow:               c.DrainWindow,
		ProbeSuppressionInterval:  c.ProbeSuppressionInterval,
		BanditSeed:                c.BanditSeed,
	}
}

// Load reads and validates a Config from a YAML file at path, rejecting
// any key the schema does not recognize.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %q: %w", path, err)
	}

	if err := RejectUnknownFields(data, Config{}); err != nil {
		return nil, fmt.Errorf("config: %q: %w", path, err)
	}

	c := DefaultConfig()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("config: parsing %q: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config: validating %q: %w", path, err)
	}
	return c, nil
}
