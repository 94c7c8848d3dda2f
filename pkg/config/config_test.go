// Copyright 2016 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package config

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/symcc/syz-symcc/pkg/osutil"
)

type testConfig struct {
	Foo int      `json:"foo" yaml:"foo"`
	Bar string   `json:"bar" yaml:"bar"`
	Qux []string `json:"qux" yaml:"qux"`
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		output testConfig
		err    bool
	}{
		{"a.json", `{"foo": 42}`, testConfig{Foo: 42}, false},
		{"b.json", "# comment\n{\n\t# another one\n\t\"bar\": \"baz\"\n}", testConfig{Bar: "baz"}, false},
		{"c.json", `{"foobar": 42}`, testConfig{}, true},
		{"d.json", `{"foo": "str"}`, testConfig{}, true},
		{"e.yaml", "foo: 1\nqux: [aaa, bbb]\n", testConfig{Foo: 1, Qux: []string{"aaa", "bbb"}}, false},
		{"f.yml", "# comment\nbar: baz\n", testConfig{Bar: "baz"}, false},
		{"g.yaml", "foobar: 1\n", testConfig{}, true},
		{"h.json", "", testConfig{}, false},
		{"i.json", "# nothing but a comment\n", testConfig{}, false},
		{"j.yaml", "", testConfig{}, false},
	}
	dir := t.TempDir()
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			file := filepath.Join(dir, test.name)
			if err := osutil.WriteFile(file, []byte(test.input)); err != nil {
				t.Fatal(err)
			}
			var cfg testConfig
			err := LoadFile(file, &cfg)
			if test.err {
				if err == nil {
					t.Fatalf("loading succeeded, want error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(test.output, cfg); diff != "" {
				t.Fatal(diff)
			}
		})
	}
}

func TestLoadMissing(t *testing.T) {
	var cfg testConfig
	if err := LoadFile("", &cfg); err == nil {
		t.Fatalf("empty file name accepted")
	}
	if err := LoadFile(filepath.Join(t.TempDir(), "none.json"), &cfg); err == nil {
		t.Fatalf("missing file accepted")
	}
}

func TestSave(t *testing.T) {
	file := filepath.Join(t.TempDir(), "cfg.json")
	want := testConfig{Foo: 7, Bar: "x", Qux: []string{"y"}}
	if err := SaveFile(file, want); err != nil {
		t.Fatal(err)
	}
	var got testConfig
	if err := LoadFile(file, &got); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatal(diff)
	}
}
