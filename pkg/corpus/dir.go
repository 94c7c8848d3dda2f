// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package corpus manages AFL-style test case directories and the order
// in which fuzzer inputs are picked for symbolic execution.
package corpus

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/symcc/syz-symcc/pkg/log"
	"github.com/symcc/syz-symcc/pkg/osutil"
)

const (
	idPrefix = "id:"
	idLen    = 6
)

var ErrBadName = errors.New("test case name does not contain an AFL id")

// Dir is a directory of test cases named "id:NNNNNN,src:MMMMMM",
// where NNNNNN is a sequence number local to the directory
// and MMMMMM is the id of the input the test case was derived from.
// Dir owns the sequence: nobody else may create "id:" files in it.
type Dir struct {
	Path string
	next uint64
}

// NewDir creates a new test case directory at path. The parent directory must exist.
func NewDir(path string) (*Dir, error) {
	if err := osutil.Mkdir(path); err != nil {
		return nil, fmt.Errorf("failed to create directory %v: %w", path, err)
	}
	return &Dir{Path: path}, nil
}

// Len returns the number of test cases copied to the directory.
func (dir *Dir) Len() uint64 {
	return dir.next
}

// LineageID extracts the 6-character id from an AFL test case name.
func LineageID(file string) (string, error) {
	name := filepath.Base(file)
	if !strings.HasPrefix(name, idPrefix) {
		return "", fmt.Errorf("%w: %v does not start with %q", ErrBadName, file, idPrefix)
	}
	if len(name) < len(idPrefix)+idLen {
		return "", fmt.Errorf("%w: %v is too short", ErrBadName, file)
	}
	return name[len(idPrefix) : len(idPrefix)+idLen], nil
}

// Copy copies testcase into the directory under the next sequence number,
// recording parent's id as the source. It returns the path of the new file.
func (dir *Dir) Copy(testcase, parent string) (string, error) {
	src, err := LineageID(parent)
	if err != nil {
		return "", err
	}
	target := filepath.Join(dir.Path, fmt.Sprintf("%v%06d,src:%v", idPrefix, dir.next, src))
	log.Logf(1, "creating test case %v", target)
	if err := osutil.CopyFile(testcase, target); err != nil {
		return "", fmt.Errorf("failed to copy the test case %v to %v: %w", testcase, dir.Path, err)
	}
	dir.next++
	return target, nil
}
