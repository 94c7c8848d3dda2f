// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package main

import (
	"fmt"
	"net/http"

	"github.com/symcc/syz-symcc/pkg/log"
	"github.com/symcc/syz-symcc/pkg/stat"
)

func newMux(stats *stat.Set) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", stats.Handler())
	mux.HandleFunc("/log", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprint(w, log.CachedLogOutput())
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		for _, ui := range stats.Collect(stat.All) {
			fmt.Fprintf(w, "%-24v %v\n", ui.Name+":", ui.Value)
		}
	})
	return mux
}
