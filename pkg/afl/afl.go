// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package afl extracts what we need to know about a running AFL instance from its output directory
// and wraps afl-showmap, which classifies test cases against the fuzzer's instrumentation.
package afl

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/symcc/syz-symcc/pkg/corpus"
	"github.com/symcc/syz-symcc/pkg/log"
	"github.com/symcc/syz-symcc/pkg/osutil"
)

const (
	// InputPlaceholder is replaced with the input file name in target command lines.
	InputPlaceholder = "@@"

	statsFileName = "fuzzer_stats"
	queueDirName  = "queue"
	showmapName   = "afl-showmap"

	commandLineKey = "command_line"
	separator      = "--"
	inputFileFlag  = "-f"
	qemuModeFlag   = "-Q"
)

var ErrConfig = errors.New("bad fuzzer configuration")

// Config describes the fuzzer instance. It is loaded once during startup and is not changed afterwards.
type Config struct {
	// ShowMap is the afl-showmap binary installed next to the fuzzer.
	ShowMap string
	// TargetCommand is the fuzzer's invocation of the target (everything after "--").
	TargetCommand []string
	// UseStandardInput is set if the target reads the input from stdin.
	UseStandardInput bool
	// UseQemuMode is set if the fuzzer runs an uninstrumented target in QEMU mode.
	UseQemuMode bool
	// Queue is the fuzzer's queue of test cases.
	Queue string
}

// Load reads the fuzzer configuration from the instance's output directory.
func Load(fuzzerOutput string) (*Config, error) {
	statsFile := filepath.Join(fuzzerOutput, statsFileName)
	data, err := os.ReadFile(statsFile)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read the fuzzer's stats: %w", ErrConfig, err)
	}
	commandLine, ok := ParseStats(data)[commandLineKey]
	if !ok {
		return nil, fmt.Errorf("%w: %v does not contain %v", ErrConfig, statsFile, commandLineKey)
	}
	command := strings.Fields(commandLine)
	sep := slices.Index(command, separator)
	if sep < 1 || sep == len(command)-1 {
		return nil, fmt.Errorf("%w: the fuzzer command %q is unexpectedly short", ErrConfig, commandLine)
	}
	fuzzerArgs, target := command[:sep], command[sep+1:]
	useStdin := !slices.Contains(target, InputPlaceholder) && !slices.Contains(fuzzerArgs, inputFileFlag)
	return &Config{
		ShowMap:          filepath.Join(filepath.Dir(fuzzerArgs[0]), showmapName),
		TargetCommand:    target,
		UseStandardInput: useStdin,
		UseQemuMode:      slices.Contains(fuzzerArgs, qemuModeFlag),
		Queue:            filepath.Join(fuzzerOutput, queueDirName),
	}, nil
}

// LoadWait is like Load, but waits until the fuzzer has written its stats and created its queue.
func LoadWait(ctx context.Context, fuzzerOutput string, interval time.Duration) (*Config, error) {
	for {
		cfg, err := Load(fuzzerOutput)
		if err == nil && !osutil.IsDir(cfg.Queue) {
			err = fmt.Errorf("the fuzzer queue %v does not exist", cfg.Queue)
		}
		if err == nil {
			return cfg, nil
		}
		log.Logf(0, "waiting for the fuzzer at %v: %v", fuzzerOutput, err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
	}
}

// ParseStats parses "key : value" lines of the fuzzer_stats file.
// The first occurrence of a key wins.
func ParseStats(data []byte) map[string]string {
	res := make(map[string]string)
	s := bufio.NewScanner(bytes.NewReader(data))
	s.Buffer(nil, 1<<20)
	for s.Scan() {
		key, val, ok := strings.Cut(s.Text(), ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if _, dup := res[key]; !dup {
			res[key] = strings.TrimSpace(val)
		}
	}
	return res
}

// InsertInputFile replaces the first "@@" in the command with the input file.
func InsertInputFile(command []string, file string) []string {
	res := slices.Clone(command)
	if i := slices.Index(res, InputPlaceholder); i != -1 {
		res[i] = file
	}
	return res
}

// BestNewTestcase returns the most promising test case in the fuzzer's queue that is not in seen.
func (cfg *Config) BestNewTestcase(seen map[string]bool) (string, bool, error) {
	names, err := osutil.ListDir(cfg.Queue)
	if err != nil {
		return "", false, fmt.Errorf("failed to read the fuzzer's queue at %v: %w", cfg.Queue, err)
	}
	var candidates []string
	for _, name := range names {
		file := filepath.Join(cfg.Queue, name)
		if seen[file] || !osutil.IsRegular(file) {
			continue
		}
		candidates = append(candidates, file)
	}
	best, ok := corpus.Best(candidates)
	return best, ok, nil
}
