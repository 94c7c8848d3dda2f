// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/symcc/syz-symcc/pkg/afl"
	"github.com/symcc/syz-symcc/pkg/log"
	"github.com/symcc/syz-symcc/pkg/osutil"
	"github.com/symcc/syz-symcc/pkg/symcc"
)

// Executor runs the symbolic backend on one input.
// It is implemented by *symcc.SymCC.
type Executor interface {
	Run(input, outputDir string) (*symcc.Result, error)
}

// Fuzzer selects the fuzzer's test cases and classifies generated ones by coverage.
// It is implemented by *afl.Config.
type Fuzzer interface {
	BestNewTestcase(seen map[string]bool) (string, bool, error)
	RunShowmap(bitmapFile, testcase string) (afl.ShowmapResult, error)
}

const (
	DefaultPollInterval  = 5 * time.Second
	DefaultStatsInterval = 60 * time.Second
)

type Options struct {
	// PollInterval is how long to sleep when there is nothing to do.
	PollInterval time.Duration
	// StatsInterval is how often the statistics are flushed to the stats file.
	StatsInterval time.Duration
	// BitmapFile receives the cumulative coverage map whenever it changes
	// (consumed by the backend for branch pruning). Not written if empty.
	BitmapFile string
}

// Loop processes fuzzer test cases one at a time.
type Loop struct {
	state     *State
	fuzzer    Fuzzer
	executor  Executor
	opts      Options
	now       func() time.Time
	lastFlush time.Time
	// The cumulative map has changed since it was last saved to BitmapFile.
	bitmapDirty bool
}

func NewLoop(state *State, fuzzer Fuzzer, executor Executor, opts Options) *Loop {
	if opts.PollInterval == 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.StatsInterval == 0 {
		opts.StatsInterval = DefaultStatsInterval
	}
	return &Loop{
		state:     state,
		fuzzer:    fuzzer,
		executor:  executor,
		opts:      opts,
		now:       time.Now,
		lastFlush: time.Now(),
	}
}

// Run processes test cases until ctx is cancelled and flushes the statistics one last time.
// Cancellation is noticed only between test cases: a running backend is never interrupted.
func (l *Loop) Run(ctx context.Context) error {
	for ctx.Err() == nil {
		l.Step(ctx)
	}
	log.Logf(0, "shutting down: %v", l.state.stats.Summary())
	return l.state.FlushStats()
}

// Step processes the best new test case, if any, or sleeps for the poll interval.
func (l *Loop) Step(ctx context.Context) {
	input, ok, err := l.fuzzer.BestNewTestcase(l.state.processed)
	switch {
	case err != nil:
		log.Errorf("failed to check for new test cases: %v", err)
		l.sleep(ctx)
	case !ok:
		log.Logf(1, "waiting for new test cases...")
		l.sleep(ctx)
	default:
		l.TestInput(input)
	}
	if now := l.now(); now.Sub(l.lastFlush) > l.opts.StatsInterval {
		if err := l.state.FlushStats(); err != nil {
			log.Errorf("%v", err)
		}
		log.Logf(0, "%v", l.state.stats.Summary())
		l.lastFlush = now
	}
}

func (l *Loop) sleep(ctx context.Context) {
	t := time.NewTimer(l.opts.PollInterval)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// TestInput runs a single input through the backend and processes the new test cases it generates.
// The input is never processed again, even if processing fails.
func (l *Loop) TestInput(input string) {
	if err := l.testInput(input); err != nil {
		log.Errorf("failed to process %v: %v", input, err)
	}
	l.state.processed[input] = true
}

func (l *Loop) testInput(input string) error {
	log.Logf(0, "running on input %v", input)
	if l.opts.BitmapFile != "" && !osutil.IsExist(l.opts.BitmapFile) {
		if err := l.state.coverage.Save(l.opts.BitmapFile); err != nil {
			return fmt.Errorf("failed to create the pruning bitmap: %w", err)
		}
	}
	tmpDir, err := os.MkdirTemp("", "syz-symcc-")
	if err != nil {
		return fmt.Errorf("failed to create a temporary directory for this execution of SymCC: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	res, err := l.executor.Run(input, filepath.Join(tmpDir, "output"))
	if err != nil {
		return fmt.Errorf("failed to run SymCC: %w", err)
	}
	l.state.stats.AddExecution(res)
	numNew := 0
	for _, testcase := range res.TestCases {
		// A failure evaluating one generated test case must not stop the others.
		result, err := l.processTestcase(testcase, input, tmpDir)
		if err != nil {
			log.Errorf("failed to check whether test case %v is interesting: %v", testcase, err)
			continue
		}
		if result == testcaseNew {
			log.Logf(1, "test case is interesting")
			numNew++
		}
	}
	l.state.stats.generated.Add(len(res.TestCases))
	l.state.stats.setCoverage(l.state.coverage.Count())
	log.Logf(0, "generated %v test cases (%v new), coverage %v",
		len(res.TestCases), numNew, l.state.coverage.Count())
	if l.bitmapDirty && l.opts.BitmapFile != "" {
		if err := l.state.coverage.Save(l.opts.BitmapFile); err != nil {
			log.Errorf("failed to update the pruning bitmap: %v", err)
		} else {
			l.bitmapDirty = false
		}
	}

	if res.Killed {
		log.Logf(0, "the target process was killed (probably timeout or out of memory); archiving to %v",
			l.state.hangs.Path)
		if _, err := l.state.hangs.Copy(input, input); err != nil {
			return fmt.Errorf("failed to archive the test case: %w", err)
		}
		l.state.stats.hangs.Add(1)
	}
	return nil
}

// testcaseResult is the disposition of a generated test case.
type testcaseResult int

const (
	testcaseUninteresting testcaseResult = iota
	testcaseNew
	testcaseHang
	testcaseCrash
	testcaseIgnored
)

// processTestcase checks if the test case provides new coverage, crashes or times out,
// and copies it to the corresponding location.
func (l *Loop) processTestcase(testcase, parent, tmpDir string) (testcaseResult, error) {
	log.Logf(1, "processing test case %v", testcase)
	res, err := l.fuzzer.RunShowmap(filepath.Join(tmpDir, "testcase_bitmap"), testcase)
	if err != nil {
		return testcaseIgnored, err
	}
	switch res.Outcome {
	case afl.Success:
		if !l.state.coverage.Merge(res.Map) {
			return testcaseUninteresting, nil
		}
		l.bitmapDirty = true
		if _, err := l.state.queue.Copy(testcase, parent); err != nil {
			return testcaseNew, fmt.Errorf("failed to enqueue the new test case: %w", err)
		}
		l.state.stats.queued.Add(1)
		return testcaseNew, nil
	case afl.Hang:
		log.Logf(0, "ignoring new test case %v because afl-showmap timed out on it", testcase)
		return testcaseHang, nil
	case afl.Crash:
		log.Logf(0, "test case %v crashes afl-showmap; it is probably interesting", testcase)
		if _, err := l.state.crashes.Copy(testcase, parent); err != nil {
			return testcaseCrash, err
		}
		l.state.stats.crashes.Add(1)
		if _, err := l.state.queue.Copy(testcase, parent); err != nil {
			return testcaseCrash, fmt.Errorf("failed to enqueue the new test case: %w", err)
		}
		l.state.stats.queued.Add(1)
		return testcaseCrash, nil
	case afl.Ignore:
		log.Logf(1, "ignoring test case %v: afl-showmap result is indeterminate", testcase)
		return testcaseIgnored, nil
	}
	return testcaseIgnored, fmt.Errorf("unknown afl-showmap outcome %v", res.Outcome)
}
