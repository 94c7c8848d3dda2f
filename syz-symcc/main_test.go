// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/symcc/syz-symcc/pkg/afl"
	"github.com/symcc/syz-symcc/pkg/osutil"
	"github.com/symcc/syz-symcc/pkg/stat"
	"github.com/symcc/syz-symcc/pkg/symconfig"
	"github.com/symcc/syz-symcc/pkg/testutil"
)

func TestPrepareDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "symcc")
	assert.NoError(t, prepareDir(dir, false))

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "queue"), 0755))
	assert.Error(t, prepareDir(dir, false))
	assert.DirExists(t, dir)

	assert.NoError(t, prepareDir(dir, true))
	assert.NoDirExists(t, dir)
}

const testFuzzerStats = "start_time        : 1700000000\n" +
	"command_line      : /afl/afl-fuzz -i in -o out -- /bin/target @@\n"

// setFlags points the command line flags at a fresh AFL output directory.
func setFlags(t *testing.T, wait bool) string {
	output := t.TempDir()
	oldOutput, oldFuzzer, oldName, oldWait := *flagOutput, *flagFuzzer, *flagName, *flagWait
	*flagOutput, *flagFuzzer, *flagName, *flagWait = output, "afl", "symcc", wait
	t.Cleanup(func() {
		*flagOutput, *flagFuzzer, *flagName, *flagWait = oldOutput, oldFuzzer, oldName, oldWait
	})
	return output
}

func TestRunStartupChecks(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, output string)
		err   string
	}{
		{
			name: "no output dir",
			setup: func(t *testing.T, output string) {
				require.NoError(t, os.RemoveAll(output))
			},
			err: "the directory",
		},
		{
			name:  "no queue",
			setup: func(t *testing.T, output string) {},
			err:   "the AFL queue",
		},
		{
			name: "no stats",
			setup: func(t *testing.T, output string) {
				require.NoError(t, os.MkdirAll(filepath.Join(output, "afl", "queue"), 0755))
			},
			err: "failed to read the fuzzer's stats",
		},
		{
			name: "leftover run",
			setup: func(t *testing.T, output string) {
				require.NoError(t, os.MkdirAll(filepath.Join(output, "afl", "queue"), 0755))
				require.NoError(t, osutil.WriteFile(filepath.Join(output, "afl", "fuzzer_stats"),
					[]byte(testFuzzerStats)))
				require.NoError(t, os.MkdirAll(filepath.Join(output, "symcc", "queue"), 0755))
			},
			err: "already exists",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			testutil.RouteLogs(t)
			output := setFlags(t, false)
			test.setup(t, output)
			err := run(context.Background(), symconfig.Default(), []string{"/bin/target", "@@"})
			assert.ErrorContains(t, err, test.err)
		})
	}
}

func TestLoadFuzzer(t *testing.T) {
	testutil.RouteLogs(t)
	output := setFlags(t, false)
	fuzzerDir := filepath.Join(output, "afl")
	require.NoError(t, os.MkdirAll(filepath.Join(fuzzerDir, "queue"), 0755))
	_, err := loadFuzzer(context.Background(), fuzzerDir, symconfig.Default())
	assert.ErrorIs(t, err, afl.ErrConfig)

	require.NoError(t, osutil.WriteFile(filepath.Join(fuzzerDir, "fuzzer_stats"), []byte(testFuzzerStats)))
	cfg, err := loadFuzzer(context.Background(), fuzzerDir, symconfig.Default())
	require.NoError(t, err)
	assert.Equal(t, []string{"/bin/target", "@@"}, cfg.TargetCommand)
	assert.Equal(t, filepath.Join(fuzzerDir, "queue"), cfg.Queue)
}

func TestLoadFuzzerWaitCancelled(t *testing.T) {
	testutil.RouteLogs(t)
	output := setFlags(t, true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := loadFuzzer(ctx, filepath.Join(output, "afl"), symconfig.Default())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMux(t *testing.T) {
	stats := stat.NewSet()
	stats.New("executions", "Executions", stat.Prometheus("syz_symcc_test_executions")).Add(3)
	srv := httptest.NewServer(newMux(stats))
	defer srv.Close()

	get := func(path string) (int, string) {
		resp, err := srv.Client().Get(srv.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp.StatusCode, string(body)
	}
	code, body := get("/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "syz_symcc_test_executions 3")

	code, body = get("/")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "executions:")

	code, _ = get("/log")
	assert.Equal(t, http.StatusOK, code)

	code, _ = get("/nonexistent")
	assert.Equal(t, http.StatusNotFound, code)
}
