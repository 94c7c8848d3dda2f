// Copyright 2020 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package tool contains various helper utilitites useful for implementation of command line tools.
package tool

import (
	"flag"
	"fmt"
	"os"
)

// Init parses command line flags and sets up -cpuprofile/-memprofile handling.
// The returned function must be called before the program exits.
func Init() func() {
	cpuprof := flag.String("cpuprofile", "", "write CPU profile to this file")
	memprof := flag.String("memprofile", "", "write memory profile to this file")
	flag.Parse()
	stop, err := installProfiling(*cpuprof, *memprof)
	if err != nil {
		Fail(err)
	}
	return stop
}

func Failf(msg string, args ...any) {
	fmt.Fprintf(os.Stderr, msg+"\n", args...)
	os.Exit(1)
}

func Fail(err error) {
	Failf("%v", err)
}
