// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package afl

import (
	"fmt"
	"io"
	"os"

	"github.com/symcc/syz-symcc/pkg/cover"
	"github.com/symcc/syz-symcc/pkg/log"
	"github.com/symcc/syz-symcc/pkg/osutil"
)

// Outcome is the classification of a test case by afl-showmap.
type Outcome int

const (
	// Success means the map was created; ShowmapResult.Map holds it.
	Success Outcome = iota
	// Hang means the target timed out or failed to execute.
	Hang
	// Crash means the target crashed.
	Crash
	// Ignore means the disposition is unknown (afl-showmap failed or produced garbage).
	// The test case is dropped, but it is neither a hang nor a crash.
	Ignore
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Hang:
		return "hang"
	case Crash:
		return "crash"
	case Ignore:
		return "ignore"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

type ShowmapResult struct {
	Outcome Outcome
	Map     *cover.Map
}

// afl-showmap exit codes.
const (
	showmapOK    = 0
	showmapHang  = 1
	showmapCrash = 2
)

// RunShowmap runs the test case through afl-showmap and stores the bitmap in bitmapFile.
// Errors are returned only if afl-showmap could not be run at all.
func (cfg *Config) RunShowmap(bitmapFile, testcase string) (ShowmapResult, error) {
	var args []string
	if cfg.UseQemuMode {
		args = append(args, qemuModeFlag)
	}
	args = append(args, "-t", "5000", "-m", "none", "-b", "-o", bitmapFile, separator)
	args = append(args, InsertInputFile(cfg.TargetCommand, testcase)...)
	cmd := osutil.Command(cfg.ShowMap, args...)
	// Required for AFL++, which otherwise sizes the map from the target.
	cmd.Env = append(os.Environ(), fmt.Sprintf("AFL_MAP_SIZE=%v", cover.MapSize))
	var stdin io.WriteCloser
	if cfg.UseStandardInput {
		var err error
		if stdin, err = cmd.StdinPipe(); err != nil {
			return ShowmapResult{}, fmt.Errorf("%w: %w", osutil.ErrProcess, err)
		}
	}
	if log.V(1) {
		log.Logf(1, "running afl-showmap as follows: %q", cmd.Args)
		cmd.Stdout = log.VerboseWriter(1)
	}
	if err := osutil.Start(cmd); err != nil {
		if stdin != nil {
			stdin.Close()
		}
		return ShowmapResult{}, err
	}
	if stdin != nil {
		if err := osutil.FeedFile(stdin, testcase); err != nil {
			// The target may legitimately exit without consuming the whole input.
			log.Logf(1, "failed to pipe the test input to afl-showmap: %v", err)
		}
	}
	if err := osutil.Wait(cmd); err != nil {
		return ShowmapResult{}, err
	}
	status := osutil.ProcessExitStatus(cmd.ProcessState)
	log.Logf(1, "afl-showmap returned %v", status)
	switch status.Code {
	case showmapOK:
		m, err := cover.Load(bitmapFile)
		if err != nil {
			log.Logf(0, "failed to read the bitmap that afl-showmap should have generated at %v: %v",
				bitmapFile, err)
			return ShowmapResult{Outcome: Ignore}, nil
		}
		return ShowmapResult{Outcome: Success, Map: m}, nil
	case showmapHang:
		return ShowmapResult{Outcome: Hang}, nil
	case showmapCrash:
		return ShowmapResult{Outcome: Crash}, nil
	default:
		return ShowmapResult{Outcome: Ignore}, nil
	}
}
