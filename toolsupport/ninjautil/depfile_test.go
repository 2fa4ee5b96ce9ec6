// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package ninjautil

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"
)

func TestState_LoadDepfile(t *testing.T) {
	state := mustLoadManifest(t, `
rule cc
  command = clang -MD -MF ${out}.d -c ${in} -o ${out}
  depfile = ${out}.d
rule stamp
  command = touch ${out}

build obj/foo.o | obj/foo.extra: cc ../../foo.cc
build obj/bar.o: cc ../../bar.cc
build foo.stamp: stamp obj/foo.o
`)
	for _, tc := range []struct {
		name    string
		target  string
		files   fstest.MapFS
		want    []string
		wantErr bool
	}{
		{
			name:   "ok",
			target: "obj/foo.o",
			files: fstest.MapFS{
				"obj/foo.o.d": {Data: []byte("obj/foo.o: ../../foo.cc ./gen/foo.h \\\n  gen/../gen/bar.h\n")},
			},
			want: []string{"../../foo.cc", "gen/foo.h", "gen/bar.h"},
		},
		{
			name:   "implicit-output",
			target: "obj/foo.o",
			files: fstest.MapFS{
				"obj/foo.o.d": {Data: []byte("obj/foo.o obj/foo.extra: ../../foo.cc\n")},
			},
			want: []string{"../../foo.cc"},
		},
		{
			name:   "no-depfile-binding",
			target: "foo.stamp",
			files:  fstest.MapFS{},
		},
		{
			name:   "not-exist",
			target: "obj/bar.o",
			files:  fstest.MapFS{},
		},
		{
			name:   "wrong-output",
			target: "obj/bar.o",
			files: fstest.MapFS{
				"obj/bar.o.d": {Data: []byte("obj/baz.o: ../../bar.cc\n")},
			},
			wantErr: true,
		},
		{
			name:   "undeclared-output",
			target: "obj/bar.o",
			files: fstest.MapFS{
				"obj/bar.o.d": {Data: []byte("obj/bar.o obj/bar.extra: ../../bar.cc\n")},
			},
			wantErr: true,
		},
		{
			name:   "no-colon",
			target: "obj/bar.o",
			files: fstest.MapFS{
				"obj/bar.o.d": {Data: []byte("obj/bar.o ../../bar.cc\n")},
			},
			wantErr: true,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			edge := inEdge(t, state, tc.target)
			var got []string
			err := state.LoadDepfile(context.Background(), tc.files, edge, func(path string) bool {
				got = append(got, path)
				return true
			})
			if (err != nil) != tc.wantErr {
				t.Errorf("LoadDepfile(%q)=%v; want err=%t", tc.target, err, tc.wantErr)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("LoadDepfile(%q) diff -want +got:\n%s", tc.target, diff)
			}
		})
	}
}

func TestState_LoadDepfile_stop(t *testing.T) {
	state := mustLoadManifest(t, `
rule cc
  command = clang -c ${in} -o ${out}
  depfile = ${out}.d
build foo.o: cc foo.cc
`)
	fsys := fstest.MapFS{
		"foo.o.d": {Data: []byte("foo.o: foo.cc a.h b.h\n")},
	}
	var got []string
	err := state.LoadDepfile(context.Background(), fsys, inEdge(t, state, "foo.o"), func(path string) bool {
		got = append(got, path)
		return path != "a.h"
	})
	if err == nil {
		t.Errorf("LoadDepfile=nil; want error")
	}
	if diff := cmp.Diff([]string{"foo.cc", "a.h"}, got); diff != "" {
		t.Errorf("LoadDepfile diff -want +got:\n%s", diff)
	}
}
