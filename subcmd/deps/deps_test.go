// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package deps

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"go.chromium.org/infra/build/missingdeps/toolsupport/ninjautil/ninjautiltest"
)

func TestDepsRun(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	t.Chdir(dir)
	err := os.WriteFile(filepath.Join(dir, "build.ninja"), []byte(`
rule cc
  command = cc -c ${in} -o ${out}
  deps = gcc
build b.o: cc b.cc
build a.o: cc a.cc
`), 0644)
	if err != nil {
		t.Fatal(err)
	}
	err = ninjautiltest.WriteDepsLog(filepath.Join(dir, ".ninja_deps"),
		ninjautiltest.DepsRecord{Output: "b.o", Mtime: time.Unix(0, 2), Inputs: []string{"b.cc", "b.h"}},
		ninjautiltest.DepsRecord{Output: "a.o", Mtime: time.Unix(0, 1), Inputs: []string{"a.cc"}},
	)
	if err != nil {
		t.Fatal(err)
	}

	for _, tc := range []struct {
		name string
		raw  bool
		args []string
		want string
	}{
		{
			name: "raw",
			raw:  true,
			want: "a.o: #deps 1, deps mtime 1 (UNKNOWN)\n    a.cc\n\n" +
				"b.o: #deps 2, deps mtime 2 (UNKNOWN)\n    b.cc\n    b.h\n\n",
		},
		{
			name: "raw-args",
			raw:  true,
			args: []string{"b.o", "c.o"},
			want: "b.o: #deps 2, deps mtime 2 (UNKNOWN)\n    b.cc\n    b.h\n\n",
		},
		{
			name: "manifest",
			args: []string{"b.o"},
			// b.o doesn't exist.
			want: "b.o: #deps 2, deps mtime 2 (STALE)\n    b.cc\n    b.h\n\n",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c := &depsRun{}
			c.init()
			c.raw = tc.raw
			var buf bytes.Buffer
			err := c.run(ctx, &buf, tc.args)
			if err != nil {
				t.Fatalf("run(%q)=%v; want nil error", tc.args, err)
			}
			if diff := cmp.Diff(tc.want, buf.String()); diff != "" {
				t.Errorf("run(%q) diff -want +got:\n%s", tc.args, diff)
			}
		})
	}
}

func TestDepsRun_builddir(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	t.Chdir(dir)
	err := os.WriteFile(filepath.Join(dir, "build.ninja"), []byte(`
builddir = out
rule cc
  command = cc -c ${in} -o ${out}
  deps = gcc
build b.o: cc b.cc
`), 0644)
	if err != nil {
		t.Fatal(err)
	}
	err = ninjautiltest.WriteDepsLog(filepath.Join(dir, "out/.ninja_deps"),
		ninjautiltest.DepsRecord{Output: "b.o", Mtime: time.Unix(0, 2), Inputs: []string{"b.cc", "b.h"}},
	)
	if err != nil {
		t.Fatal(err)
	}
	c := &depsRun{}
	c.init()
	var buf bytes.Buffer
	err = c.run(ctx, &buf, []string{"b.o"})
	if err != nil {
		t.Fatalf("run=%v; want nil error", err)
	}
	want := "b.o: #deps 2, deps mtime 2 (STALE)\n    b.cc\n    b.h\n\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("run diff -want +got:\n%s", diff)
	}
}
