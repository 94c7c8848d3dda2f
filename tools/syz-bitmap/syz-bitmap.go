// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// syz-bitmap prints coverage of AFL bitmap files (e.g. the bitmap left by syz-symcc -prune
// or files produced by afl-showmap -b) and optionally writes their union.
//
// Usage:
//
//	syz-bitmap [-o merged.bitmap] bitmap.file*
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/symcc/syz-symcc/pkg/cover"
	"github.com/symcc/syz-symcc/pkg/tool"
)

func main() {
	var (
		flagOutput = flag.String("o", "", "write the merged bitmap to this file (optional)")
	)
	defer tool.Init()()
	if flag.NArg() == 0 {
		tool.Failf("usage: syz-bitmap [-o merged.bitmap] bitmap.file*")
	}
	merged, err := mergeFiles(flag.Args(), os.Stdout)
	if err != nil {
		tool.Fail(err)
	}
	if *flagOutput != "" {
		if err := merged.Save(*flagOutput); err != nil {
			tool.Fail(err)
		}
	}
}

func mergeFiles(files []string, w io.Writer) (*cover.Map, error) {
	merged := cover.New()
	for _, file := range files {
		m, err := cover.Load(file)
		if err != nil {
			return nil, err
		}
		changed := merged.Merge(m)
		fmt.Fprintf(w, "%v: %v bytes covered, new coverage: %v\n", file, m.Count(), changed)
	}
	fmt.Fprintf(w, "total: %v bytes covered\n", merged.Count())
	return merged, nil
}
