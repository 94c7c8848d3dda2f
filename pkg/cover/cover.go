// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package cover implements the AFL edge coverage bitmap.
// Every byte of the map corresponds to one control flow edge and holds a set of hit-count buckets.
// A map only ever grows: merging is bitwise OR, so coverage, once observed, is never forgotten.
package cover

import (
	"errors"
	"fmt"
	"os"

	"github.com/symcc/syz-symcc/pkg/osutil"
)

// MapSize is the size of the bitmap produced by afl-showmap -b.
const MapSize = 1 << 16

var ErrBadSize = errors.New("coverage map has wrong size")

type Map struct {
	data [MapSize]byte
}

// New returns an empty map.
func New() *Map {
	return new(Map)
}

// FromBytes creates a map from a raw bitmap (e.g. afl-showmap -b output).
func FromBytes(data []byte) (*Map, error) {
	if len(data) != MapSize {
		return nil, fmt.Errorf("%w: %v bytes, want %v", ErrBadSize, len(data), MapSize)
	}
	m := New()
	copy(m.data[:], data)
	return m, nil
}

// Load reads a raw bitmap from file.
func Load(file string) (*Map, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	m, err := FromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", file, err)
	}
	return m, nil
}

// Save atomically writes the map to file so that a concurrently running backend never reads a torn map.
func (m *Map) Save(file string) error {
	return osutil.WriteFileAtomic(file, m.data[:])
}

// Merge ORs other into m and reports whether m has changed,
// i.e. whether other contains a previously unseen edge or hit-count bucket.
func (m *Map) Merge(other *Map) bool {
	changed := false
	for i, v := range other.data {
		if known := m.data[i]; known|v != known {
			m.data[i] = known | v
			changed = true
		}
	}
	return changed
}

// Count returns the number of edges with non-zero coverage.
func (m *Map) Count() int {
	n := 0
	for _, v := range m.data {
		if v != 0 {
			n++
		}
	}
	return n
}

func (m *Map) Bytes() []byte {
	return m.data[:]
}

func (m *Map) Clone() *Map {
	c := *m
	return &c
}

func (m *Map) Equal(other *Map) bool {
	return m.data == other.data
}
