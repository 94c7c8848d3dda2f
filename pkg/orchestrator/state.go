// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package orchestrator drives the collaboration between the fuzzer and the symbolic backend:
// it picks the most promising fuzzer test case, runs the backend on it and files the generated
// test cases that exhibit new coverage back where the fuzzer can pick them up.
package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/symcc/syz-symcc/pkg/corpus"
	"github.com/symcc/syz-symcc/pkg/cover"
	"github.com/symcc/syz-symcc/pkg/osutil"
)

const (
	QueueDir   = "queue"
	HangsDir   = "hangs"
	CrashesDir = "crashes"
	StatsFile  = "stats"
)

// State is the mutable run-time state of the helper.
// It is owned by a single Loop and is not safe for concurrent use.
type State struct {
	Dir string
	// The cumulative coverage of all test cases generated so far.
	coverage *cover.Map
	// The fuzzer test cases that have been analyzed so far.
	processed map[string]bool
	// New and useful test cases.
	queue *corpus.Dir
	// Inputs that made the target time out.
	hangs *corpus.Dir
	// New test cases that crash.
	crashes   *corpus.Dir
	stats     *Stats
	statsFile *os.File
}

// Initialize creates the run directory dir with all required subdirectories.
// dir must not exist yet.
func Initialize(dir string, stats *Stats) (*State, error) {
	if err := osutil.Mkdir(dir); err != nil {
		return nil, fmt.Errorf("failed to create SymCC's directory %v: %w", dir, err)
	}
	queue, err := corpus.NewDir(filepath.Join(dir, QueueDir))
	if err != nil {
		return nil, fmt.Errorf("failed to create SymCC's queue: %w", err)
	}
	hangs, err := corpus.NewDir(filepath.Join(dir, HangsDir))
	if err != nil {
		return nil, err
	}
	crashes, err := corpus.NewDir(filepath.Join(dir, CrashesDir))
	if err != nil {
		return nil, err
	}
	statsFile, err := os.Create(filepath.Join(dir, StatsFile))
	if err != nil {
		return nil, err
	}
	return &State{
		Dir:       dir,
		coverage:  cover.New(),
		processed: make(map[string]bool),
		queue:     queue,
		hangs:     hangs,
		crashes:   crashes,
		stats:     stats,
		statsFile: statsFile,
	}, nil
}

func (st *State) Coverage() *cover.Map {
	return st.coverage
}

func (st *State) Processed(input string) bool {
	return st.processed[input]
}

func (st *State) NumProcessed() int {
	return len(st.processed)
}

// FlushStats appends the current statistics to the stats file.
func (st *State) FlushStats() error {
	if err := st.stats.Log(st.statsFile); err != nil {
		return fmt.Errorf("failed to log run-time statistics: %w", err)
	}
	return nil
}

func (st *State) Close() error {
	return st.statsFile.Close()
}
