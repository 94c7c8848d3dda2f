// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// syz-symcc makes SymCC collaborate with AFL. It repeatedly picks the most promising test case
// from the fuzzer's queue, runs the SymCC-instrumented target on it and copies the generated
// test cases that exhibit new coverage into its own queue, which the fuzzer syncs from.
//
// Usage:
//
//	syz-symcc -a fuzzer1 -o afl_out -n symcc [-v] [-wait] [-prune] -- ./target_symcc @@
//
// The tunables file passed with -config is JSON or YAML:
//
//	symcc_timeout: 90
//	symcc_kill_after: 15
//	poll_interval: 5
//	stats_interval: 60
//	sync_interval: 5
//	timeout_bin: timeout
//	http: localhost:6060
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"

	"github.com/symcc/syz-symcc/pkg/afl"
	"github.com/symcc/syz-symcc/pkg/log"
	"github.com/symcc/syz-symcc/pkg/orchestrator"
	"github.com/symcc/syz-symcc/pkg/osutil"
	"github.com/symcc/syz-symcc/pkg/stat"
	"github.com/symcc/syz-symcc/pkg/symcc"
	"github.com/symcc/syz-symcc/pkg/symconfig"
	"github.com/symcc/syz-symcc/pkg/tool"
	"golang.org/x/sync/errgroup"
)

var (
	flagFuzzer  = flag.String("a", "", "the name of the fuzzer to work with")
	flagOutput  = flag.String("o", "", "the AFL output directory")
	flagName    = flag.String("n", "", "name to use for SymCC")
	flagVerbose = flag.Bool("v", false, "enable verbose logging")
	flagWait    = flag.Bool("wait", false, "wait for the fuzzer to create its queue and stats")
	flagRestart = flag.Bool("restart", false, "remove the SymCC directory left by a previous run")
	flagPrune   = flag.Bool("prune", false, "let SymCC prune branches using the cumulative coverage map")
	flagConfig  = flag.String("config", "", "tunables file (optional)")
	flagHTTP    = flag.String("http", "", "serve metrics on this address (overrides the tunables file)")
)

func main() {
	defer tool.Init()()
	if *flagVerbose {
		log.SetVerbosity(1)
	}
	command := flag.Args()
	if *flagFuzzer == "" || *flagOutput == "" || *flagName == "" || len(command) == 0 {
		fmt.Fprintf(os.Stderr, "usage: syz-symcc -a fuzzer -o afl_out -n name [flags] -- program [args]\n")
		flag.PrintDefaults()
		os.Exit(1)
	}
	cfg := symconfig.Default()
	if *flagConfig != "" {
		var err error
		if cfg, err = symconfig.LoadFile(*flagConfig); err != nil {
			tool.Fail(err)
		}
	}
	if *flagHTTP != "" {
		cfg.HTTP = *flagHTTP
	}
	log.EnableLogCaching(1000, 1<<20)

	ctx, shutdown := context.WithCancel(context.Background())
	defer shutdown()
	osutil.HandleInterrupts(shutdown)
	if err := run(ctx, cfg, command); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal(err)
	}
}

func run(ctx context.Context, cfg *symconfig.Config, command []string) error {
	if !osutil.IsDir(*flagOutput) {
		return fmt.Errorf("the directory %v does not exist", *flagOutput)
	}
	aflConfig, err := loadFuzzer(ctx, filepath.Join(*flagOutput, *flagFuzzer), cfg)
	if err != nil {
		return err
	}
	symccDir := filepath.Join(*flagOutput, *flagName)
	if err := prepareDir(symccDir, *flagRestart); err != nil {
		return err
	}

	backend := symcc.New(symccDir, command, symcc.Options{
		UseBitmap:  *flagPrune,
		TimeoutBin: cfg.TimeoutBin,
		Timeout:    cfg.Timeout(),
		KillAfter:  cfg.KillAfter(),
	})
	log.Logf(1, "SymCC configuration: %v", backend)
	log.Logf(1, "AFL configuration: %+v", aflConfig)

	stats := stat.NewSet()
	state, err := orchestrator.Initialize(symccDir, orchestrator.NewStats(stats))
	if err != nil {
		return err
	}
	defer state.Close()
	opts := orchestrator.Options{
		PollInterval:  cfg.Poll(),
		StatsInterval: cfg.StatsPeriod(),
	}
	if backend.UsesBitmap() {
		opts.BitmapFile = backend.BitmapFile()
	}
	loop := orchestrator.NewLoop(state, aflConfig, backend, opts)

	var ln net.Listener
	if cfg.HTTP != "" {
		if ln, err = net.Listen("tcp", cfg.HTTP); err != nil {
			return fmt.Errorf("failed to listen on %v: %w", cfg.HTTP, err)
		}
		log.Logf(0, "serving metrics on http://%v/metrics", ln.Addr())
	}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return loop.Run(ctx)
	})
	if ln != nil {
		srv := &http.Server{Handler: newMux(stats)}
		g.Go(func() error {
			if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			return srv.Shutdown(context.Background())
		})
	}
	return g.Wait()
}

// loadFuzzer reads the fuzzer configuration. With -wait it retries until the fuzzer is up.
func loadFuzzer(ctx context.Context, fuzzerDir string, cfg *symconfig.Config) (*afl.Config, error) {
	if *flagWait {
		return afl.LoadWait(ctx, fuzzerDir, cfg.SyncPeriod())
	}
	queue := filepath.Join(fuzzerDir, "queue")
	if !osutil.IsDir(queue) {
		return nil, fmt.Errorf("the AFL queue %v does not exist", queue)
	}
	return afl.Load(fuzzerDir)
}

// prepareDir checks that the SymCC directory is not left over from a previous run.
// Resuming is not supported, but with restart the old directory is removed.
func prepareDir(dir string, restart bool) error {
	if !osutil.IsExist(dir) {
		return nil
	}
	if !restart {
		return fmt.Errorf("%v already exists; we do not currently support resuming (see -restart)", dir)
	}
	log.Logf(0, "removing %v left by a previous run", dir)
	return os.RemoveAll(dir)
}
