// Copyright 2017 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package osutil

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
)

const (
	DefaultDirPerm  = 0755
	DefaultFilePerm = 0644
)

// ErrProcess is wrapped by all failures to spawn or wait for a child process.
var ErrProcess = errors.New("process error")

// Command is similar to os/exec.Command, but also sets PDEATHSIG on linux,
// so supervised children do not outlive the helper.
func Command(bin string, args ...string) *exec.Cmd {
	cmd := exec.Command(bin, args...)
	setPdeathsig(cmd)
	return cmd
}

// Start starts cmd and wraps any failure into ErrProcess.
func Start(cmd *exec.Cmd) error {
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: failed to start %v %+v: %w", ErrProcess, cmd.Path, cmd.Args, err)
	}
	return nil
}

// Wait waits for cmd to finish.
// Unsuccessful exit statuses are not errors: the caller inspects cmd.ProcessState.
// Stdio still held open by orphaned grandchildren after cmd.WaitDelay is not an error either.
func Wait(cmd *exec.Cmd) error {
	err := cmd.Wait()
	var exitErr *exec.ExitError
	if err == nil || errors.As(err, &exitErr) || errors.Is(err, exec.ErrWaitDelay) {
		return nil
	}
	return fmt.Errorf("%w: failed to wait for %v: %w", ErrProcess, cmd.Path, err)
}

// FeedFile copies the file into w and closes w.
// The child owning the other end of w must already be started: a pipe has a bounded
// capacity and writing into it before the reader exists blocks forever.
func FeedFile(w io.WriteCloser, file string) error {
	f, err := os.Open(file)
	if err != nil {
		w.Close()
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	if err1 := w.Close(); err == nil {
		err = err1
	}
	return err
}

// IsExist returns true if the file name exists.
func IsExist(name string) bool {
	_, err := os.Stat(name)
	return err == nil
}

// IsDir returns true if name exists and is a directory.
func IsDir(name string) bool {
	st, err := os.Stat(name)
	return err == nil && st.IsDir()
}

// IsRegular returns true if name exists and is a regular file (symlinks are followed).
func IsRegular(name string) bool {
	st, err := os.Stat(name)
	return err == nil && st.Mode().IsRegular()
}

func MkdirAll(dir string) error {
	return os.MkdirAll(dir, DefaultDirPerm)
}

// Mkdir creates dir and fails if it already exists.
func Mkdir(dir string) error {
	return os.Mkdir(dir, DefaultDirPerm)
}

func WriteFile(filename string, data []byte) error {
	return os.WriteFile(filename, data, DefaultFilePerm)
}

// WriteFileAtomic writes data to a hidden temp file next to filename and renames it into place,
// so concurrent readers never observe a partially written file.
func WriteFileAtomic(filename string, data []byte) error {
	tmpFile := tempName(filename)
	if err := WriteFile(tmpFile, data); err != nil {
		os.Remove(tmpFile)
		return err
	}
	return os.Rename(tmpFile, filename)
}

// CopyFile atomically copies oldFile to newFile preserving permissions and modification time.
func CopyFile(oldFile, newFile string) error {
	oldf, err := os.Open(oldFile)
	if err != nil {
		return err
	}
	defer oldf.Close()
	stat, err := oldf.Stat()
	if err != nil {
		return err
	}
	tmpFile := tempName(newFile)
	newf, err := os.OpenFile(tmpFile, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, stat.Mode()&os.ModePerm)
	if err != nil {
		return err
	}
	defer newf.Close()
	if _, err := io.Copy(newf, oldf); err != nil {
		os.Remove(tmpFile)
		return err
	}
	if err := newf.Close(); err != nil {
		os.Remove(tmpFile)
		return err
	}
	if err := os.Chtimes(tmpFile, stat.ModTime(), stat.ModTime()); err != nil {
		os.Remove(tmpFile)
		return err
	}
	return os.Rename(tmpFile, newFile)
}

// The dot prefix hides temp files from tools that pick up every "id:*" file in a directory.
func tempName(file string) string {
	return filepath.Join(filepath.Dir(file), "."+filepath.Base(file)+".tmp")
}

// ListDir returns names of all files in a directory.
func ListDir(dir string) ([]string, error) {
	f, err := os.Open(dir)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return f.Readdirnames(-1)
}
