// Copyright 2015 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package osutil

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "id:000000")
	data := []byte("some data\x00\xff")
	if err := WriteFile(src, data); err != nil {
		t.Fatal(err)
	}
	if err := CopyFile(src, dst); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("copied data differs: %q", got)
	}
	files, err := ListDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Fatalf("temp files left behind: %v", files)
	}
	if err := CopyFile(filepath.Join(dir, "missing"), dst); err == nil {
		t.Fatalf("copying a missing file succeeded")
	}
}

func TestWriteFileAtomic(t *testing.T) {
	file := filepath.Join(t.TempDir(), "bitmap")
	for _, data := range [][]byte{[]byte("first"), []byte("second")} {
		if err := WriteFileAtomic(file, data); err != nil {
			t.Fatal(err)
		}
		got, err := os.ReadFile(file)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, data) {
			t.Fatalf("got %q, want %q", got, data)
		}
	}
}

func TestFeedFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "input")
	if err := WriteFile(src, []byte("input")); err != nil {
		t.Fatal(err)
	}
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	if err := FeedFile(w, src); err != nil {
		t.Fatal(err)
	}
	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(r); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "input" {
		t.Fatalf("got %q", buf.String())
	}
}
