// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package symconfig holds the run-time tunables of syz-symcc.
// The tunables are optional: a zero-length config results in the defaults.
package symconfig

import (
	"fmt"
	"time"

	"github.com/symcc/syz-symcc/pkg/config"
)

type Config struct {
	// Wall-clock bound for one symbolic execution, in seconds (90 by default).
	SymccTimeout int `json:"symcc_timeout" yaml:"symcc_timeout"`
	// Grace period after the timeout before the backend is killed with SIGKILL, in seconds (15 by default).
	SymccKillAfter int `json:"symcc_kill_after" yaml:"symcc_kill_after"`
	// Sleep between checks of an exhausted fuzzer queue, in seconds (5 by default).
	PollInterval int `json:"poll_interval" yaml:"poll_interval"`
	// Minimal time between flushes of the stats file, in seconds (60 by default).
	StatsInterval int `json:"stats_interval" yaml:"stats_interval"`
	// Sleep between attempts to load the fuzzer configuration with -wait, in seconds (5 by default).
	SyncInterval int `json:"sync_interval" yaml:"sync_interval"`
	// Wall-clock timeout wrapper, "timeout" from coreutils by default.
	TimeoutBin string `json:"timeout_bin" yaml:"timeout_bin"`
	// Address to serve prometheus metrics on (e.g. "localhost:56741"). Disabled if empty.
	HTTP string `json:"http" yaml:"http"`
}

func Default() *Config {
	return &Config{
		SymccTimeout:   90,
		SymccKillAfter: 15,
		PollInterval:   5,
		StatsInterval:  60,
		SyncInterval:   5,
		TimeoutBin:     "timeout",
	}
}

// LoadFile loads the config from filename on top of the defaults.
func LoadFile(filename string) (*Config, error) {
	cfg := Default()
	if err := config.LoadFile(filename, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("bad config %v: %w", filename, err)
	}
	return cfg, nil
}

func (cfg *Config) Validate() error {
	for _, v := range []struct {
		name string
		val  int
	}{
		{"symcc_timeout", cfg.SymccTimeout},
		{"symcc_kill_after", cfg.SymccKillAfter},
		{"poll_interval", cfg.PollInterval},
		{"stats_interval", cfg.StatsInterval},
		{"sync_interval", cfg.SyncInterval},
	} {
		if v.val <= 0 {
			return fmt.Errorf("%v must be positive, got %v", v.name, v.val)
		}
	}
	if cfg.TimeoutBin == "" {
		return fmt.Errorf("timeout_bin must not be empty")
	}
	return nil
}

func seconds(v int) time.Duration {
	return time.Duration(v) * time.Second
}

func (cfg *Config) Timeout() time.Duration {
	return seconds(cfg.SymccTimeout)
}

func (cfg *Config) KillAfter() time.Duration {
	return seconds(cfg.SymccKillAfter)
}

func (cfg *Config) Poll() time.Duration {
	return seconds(cfg.PollInterval)
}

func (cfg *Config) StatsPeriod() time.Duration {
	return seconds(cfg.StatsInterval)
}

func (cfg *Config) SyncPeriod() time.Duration {
	return seconds(cfg.SyncInterval)
}
