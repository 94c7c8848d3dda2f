// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package cover

import (
	"bytes"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/symcc/syz-symcc/pkg/testutil"
)

func randMap(t *testing.T, r *rand.Rand) *Map {
	m, err := FromBytes(testutil.RandBytes(r, MapSize, 1+r.Intn(1000)))
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func orMaps(maps ...*Map) *Map {
	res := New()
	for _, m := range maps {
		for i, v := range m.data {
			res.data[i] |= v
		}
	}
	return res
}

func TestMergeIsOr(t *testing.T) {
	r := rand.New(testutil.RandSource(t))
	for i := 0; i < testutil.IterCount()/10; i++ {
		a, b := randMap(t, r), randMap(t, r)
		before := a.Clone()
		changed := a.Merge(b)
		if want := orMaps(before, b); !a.Equal(want) {
			t.Fatalf("merge result is not bytewise OR")
		}
		if changed == a.Equal(before) {
			t.Fatalf("merge returned %v, but the map changed=%v", changed, !a.Equal(before))
		}
	}
}

func TestMergeCommutativeAssociative(t *testing.T) {
	r := rand.New(testutil.RandSource(t))
	for i := 0; i < testutil.IterCount()/10; i++ {
		a, b, c := randMap(t, r), randMap(t, r), randMap(t, r)

		ab := a.Clone()
		ab.Merge(b)
		ba := b.Clone()
		ba.Merge(a)
		if !ab.Equal(ba) {
			t.Fatalf("merge is not commutative")
		}

		abc1 := ab.Clone()
		abc1.Merge(c)
		bc := b.Clone()
		bc.Merge(c)
		abc2 := a.Clone()
		abc2.Merge(bc)
		if !abc1.Equal(abc2) {
			t.Fatalf("merge is not associative")
		}
	}
}

func TestMergeIdempotent(t *testing.T) {
	r := rand.New(testutil.RandSource(t))
	m := randMap(t, r)
	before := m.Clone()
	if m.Merge(m.Clone()) {
		t.Fatalf("merging a map into itself reported new coverage")
	}
	if m.Merge(m) {
		t.Fatalf("merging a map into itself reported new coverage")
	}
	if !m.Equal(before) {
		t.Fatalf("merging a map into itself changed it")
	}
	if New().Merge(New()) {
		t.Fatalf("merging empty maps reported new coverage")
	}
}

func TestMergeBuckets(t *testing.T) {
	m := New()
	other := New()
	other.data[10] = 0x1
	if !m.Merge(other) {
		t.Fatalf("new edge not detected")
	}
	if m.Merge(other) {
		t.Fatalf("known edge reported as new")
	}
	other.data[10] = 0x4
	if !m.Merge(other) {
		t.Fatalf("new hit-count bucket not detected")
	}
	if m.data[10] != 0x5 || m.Count() != 1 {
		t.Fatalf("bad map state: byte=%#x count=%v", m.data[10], m.Count())
	}
}

func TestLoadSave(t *testing.T) {
	dir := t.TempDir()
	r := rand.New(testutil.RandSource(t))
	m := randMap(t, r)
	file := filepath.Join(dir, "bitmap")
	if err := m.Save(file); err != nil {
		t.Fatal(err)
	}
	m1, err := Load(file)
	if err != nil {
		t.Fatal(err)
	}
	if !m.Equal(m1) || !bytes.Equal(m.Bytes(), m1.Bytes()) {
		t.Fatalf("loaded map differs")
	}

	for _, size := range []int{0, MapSize - 1, MapSize + 1} {
		bad := filepath.Join(dir, "bad")
		if err := os.WriteFile(bad, make([]byte, size), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(bad); !errors.Is(err, ErrBadSize) {
			t.Errorf("size %v: want ErrBadSize, got %v", size, err)
		}
	}
	if _, err := Load(filepath.Join(dir, "missing")); err == nil || errors.Is(err, ErrBadSize) {
		t.Errorf("want a file system error for a missing file, got %v", err)
	}
}
