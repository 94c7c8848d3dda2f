// Copyright 2022 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package testutil

import (
	golog "log"
	"math/rand"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"
	"time"
)

func IterCount() int {
	iters := 1000
	if testing.Short() {
		iters /= 10
	}
	return iters
}

func RandSource(t *testing.T) rand.Source {
	seed := time.Now().UnixNano()
	if fixed := os.Getenv("SYZ_SEED"); fixed != "" {
		seed, _ = strconv.ParseInt(fixed, 0, 64)
	}
	if os.Getenv("CI") != "" {
		seed = 0 // required for deterministic coverage reports
	}
	t.Logf("seed=%v", seed)
	return rand.NewSource(seed)
}

// RandBytes returns n random bytes where roughly one in sparsity bytes is non-zero,
// which resembles real coverage maps better than uniformly random data.
func RandBytes(r *rand.Rand, n, sparsity int) []byte {
	data := make([]byte, n)
	for i := range data {
		if r.Intn(sparsity) == 0 {
			data[i] = byte(r.Intn(255) + 1)
		}
	}
	return data
}

// ShellScript writes an executable /bin/sh script with the given body into dir
// and returns its path. The test is skipped if there is no sh on the machine.
func ShellScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skipf("no sh: %v", err)
	}
	file := filepath.Join(dir, name)
	if err := os.WriteFile(file, []byte("#!"+sh+"\n"+body+"\n"), 0755); err != nil {
		t.Fatal(err)
	}
	return file
}

// RequireBinary skips the test if bin is not in PATH and returns its location otherwise.
func RequireBinary(t *testing.T, bin string) string {
	t.Helper()
	path, err := exec.LookPath(bin)
	if err != nil {
		t.Skipf("no %v: %v", bin, err)
	}
	return path
}

type Writer struct {
	testing.TB
}

func (w *Writer) Write(data []byte) (int, error) {
	w.TB.Logf("%s", data)
	return len(data), nil
}

// RouteLogs redirects the standard logger (and thus pkg/log) into the test log until the test ends.
func RouteLogs(t testing.TB) {
	golog.SetOutput(&Writer{t})
	t.Cleanup(func() { golog.SetOutput(os.Stderr) })
}
