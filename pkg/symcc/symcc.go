// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package symcc runs a SymCC-instrumented target on one input and collects the test cases it generates.
package symcc

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/symcc/syz-symcc/pkg/afl"
	"github.com/symcc/syz-symcc/pkg/log"
	"github.com/symcc/syz-symcc/pkg/osutil"
	"golang.org/x/sys/unix"
)

const (
	InputFileName  = ".cur_input"
	BitmapFileName = "bitmap"

	DefaultTimeout   = 90 * time.Second
	DefaultKillAfter = 15 * time.Second

	// Exit code of coreutils timeout if the command timed out.
	timedOutExitCode = 124
	// How long to wait for stderr after the target exits (grandchildren may keep it open).
	stderrWaitDelay = 10 * time.Second
)

type Options struct {
	// UseBitmap passes the cumulative coverage map to the backend for branch pruning.
	UseBitmap bool
	// TimeoutBin is the wall-clock wrapper (coreutils timeout by default).
	TimeoutBin string
	Timeout    time.Duration
	// KillAfter is the grace period between SIGTERM and SIGKILL.
	KillAfter time.Duration
}

// SymCC is the run-time configuration of the instrumented target.
// It owns a single workbench input file, so at most one Run may be in progress at a time.
type SymCC struct {
	useStandardInput bool
	useBitmap        bool
	bitmap           string
	inputFile        string
	command          []string
	timeoutBin       string
	timeout          time.Duration
	killAfter        time.Duration
}

// Result of a single execution.
type Result struct {
	// TestCases are the generated inputs (in no particular order).
	TestCases []string
	// Killed is set if the target was killed (timeout, out of memory, signal).
	Killed bool
	// Time is the total wall time of the execution.
	Time time.Duration
	// SolverTime is the time spent in the SMT solver, if the backend reported it
	// (Qsym backend only). It never exceeds Time.
	SolverTime      time.Duration
	SolverTimeKnown bool
}

// New creates a configuration for running command, which may contain the "@@" input placeholder.
// The workbench input file and the bitmap live in dir.
func New(dir string, command []string, opts Options) *SymCC {
	if opts.TimeoutBin == "" {
		opts.TimeoutBin = "timeout"
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.KillAfter == 0 {
		opts.KillAfter = DefaultKillAfter
	}
	inputFile := filepath.Join(dir, InputFileName)
	return &SymCC{
		useStandardInput: !slices.Contains(command, afl.InputPlaceholder),
		useBitmap:        opts.UseBitmap,
		bitmap:           filepath.Join(dir, BitmapFileName),
		inputFile:        inputFile,
		command:          afl.InsertInputFile(command, inputFile),
		timeoutBin:       opts.TimeoutBin,
		timeout:          opts.Timeout,
		killAfter:        opts.KillAfter,
	}
}

// BitmapFile returns where the backend expects the pruning bitmap, if enabled.
func (s *SymCC) BitmapFile() string {
	return s.bitmap
}

func (s *SymCC) UsesBitmap() bool {
	return s.useBitmap
}

func (s *SymCC) String() string {
	return fmt.Sprintf("SymCC{command: %q, stdin: %v, bitmap: %v (%v), timeout: %v+%v}",
		s.command, s.useStandardInput, s.bitmap, s.useBitmap, s.timeout, s.killAfter)
}

// Run runs the target on input and writes the new test cases into outputDir,
// which must not exist yet.
// The solver time is extracted from the Qsym backend logs, which is somewhat brittle:
// a missing or inconsistent report is tolerated.
func (s *SymCC) Run(input, outputDir string) (*Result, error) {
	if err := osutil.CopyFile(input, s.inputFile); err != nil {
		return nil, fmt.Errorf("failed to copy the test case %v to our workbench at %v: %w",
			input, s.inputFile, err)
	}
	if err := osutil.Mkdir(outputDir); err != nil {
		return nil, fmt.Errorf("failed to create the output directory %v for SymCC: %w", outputDir, err)
	}

	args := append([]string{"-k", formatSeconds(s.killAfter), formatSeconds(s.timeout)}, s.command...)
	cmd := osutil.Command(s.timeoutBin, args...)
	cmd.Env = append(os.Environ(),
		"SYMCC_ENABLE_LINEARIZATION=1",
		"SYMCC_OUTPUT_DIR="+outputDir,
	)
	if s.useBitmap {
		cmd.Env = append(cmd.Env, "SYMCC_AFL_COVERAGE_MAP="+s.bitmap)
	}
	if log.V(1) {
		cmd.Stdout = log.VerboseWriter(1)
	}
	stderr := new(bytes.Buffer) // SMT logs
	cmd.Stderr = stderr
	cmd.WaitDelay = stderrWaitDelay
	var stdin io.WriteCloser
	if s.useStandardInput {
		var err error
		if stdin, err = cmd.StdinPipe(); err != nil {
			return nil, fmt.Errorf("%w: %w", osutil.ErrProcess, err)
		}
	} else {
		cmd.Env = append(cmd.Env, "SYMCC_INPUT_FILE="+s.inputFile)
	}

	if log.V(1) {
		log.Logf(1, "running SymCC as follows: %q", cmd.Args)
	}
	start := time.Now()
	if err := osutil.Start(cmd); err != nil {
		if stdin != nil {
			stdin.Close()
		}
		return nil, err
	}
	if stdin != nil {
		if err := osutil.FeedFile(stdin, s.inputFile); err != nil {
			log.Logf(1, "failed to pipe the test input to SymCC: %v", err)
		}
	}
	if err := osutil.Wait(cmd); err != nil {
		return nil, err
	}
	res := &Result{
		Time:   time.Since(start),
		Killed: killed(osutil.ProcessExitStatus(cmd.ProcessState)),
	}

	files, err := osutil.ListDir(outputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read the generated test cases at %v: %w", outputDir, err)
	}
	for _, file := range files {
		res.TestCases = append(res.TestCases, filepath.Join(outputDir, file))
	}

	if solverTime, ok := ParseSolverTime(stderr.Bytes()); ok {
		if solverTime > res.Time {
			log.Warnf("backend reported inaccurate solver time: %v > %v", solverTime, res.Time)
			solverTime = res.Time
		}
		res.SolverTime, res.SolverTimeKnown = solverTime, true
	}
	return res, nil
}

func killed(status osutil.ExitStatus) bool {
	if status.Signaled {
		log.Warnf("SymCC received signal %v", osutil.SignalName(status.Signal))
		return true
	}
	log.Logf(1, "SymCC returned code %v", status.Code)
	// As per the man page of timeout: 124 on timeout, 128+9 if the command had to be killed.
	return status.Code == timedOutExitCode || status.Code == osutil.SignalExitCode(unix.SIGKILL)
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}

var (
	smtLogPrefix    = []byte("[STAT] SMT:")
	solvingTimeRe   = regexp.MustCompile(`"solving_time": (\d+)`)
	maxMicroseconds = uint64(math.MaxInt64 / int64(time.Microsecond))
)

// ParseSolverTime extracts the solver time from the SMT statistics that the Qsym backend prints.
// The backend reports the cumulative time, so the last report is the one we want.
func ParseSolverTime(output []byte) (time.Duration, bool) {
	lines := bytes.Split(output, []byte{'\n'})
	for i := len(lines) - 1; i >= 0; i-- {
		line := lines[i]
		if !utf8.Valid(line) || !bytes.HasPrefix(bytes.TrimLeftFunc(line, unicode.IsSpace), smtLogPrefix) {
			continue
		}
		match := solvingTimeRe.FindSubmatch(line)
		if match == nil {
			continue
		}
		us, err := strconv.ParseUint(string(match[1]), 10, 64)
		if err != nil {
			continue
		}
		return time.Duration(min(us, maxMicroseconds)) * time.Microsecond, true
	}
	return 0, false
}
