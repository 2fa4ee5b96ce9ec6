// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package ninjautil

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"go.chromium.org/infra/build/missingdeps/toolsupport/ninjautil/ninjautiltest"
)

func writeDepsLog(t *testing.T, version int, records ...ninjautiltest.DepsRecord) string {
	t.Helper()
	w := ninjautiltest.NewDepsLogWriter(version)
	for _, r := range records {
		w.Record(r)
	}
	fname := filepath.Join(t.TempDir(), ".ninja_deps")
	err := os.WriteFile(fname, w.Bytes(), 0644)
	if err != nil {
		t.Fatal(err)
	}
	return fname
}

func TestDepsLog_Get(t *testing.T) {
	ctx := context.Background()
	t1 := time.Unix(1, 0)
	t2 := time.Unix(2, 0)
	for _, version := range []int{DepsLogVersion3, DepsLogVersion4} {
		fname := writeDepsLog(t, version,
			ninjautiltest.DepsRecord{Output: "out.o", Mtime: t1, Inputs: []string{"foo.h", "bar.h"}},
			ninjautiltest.DepsRecord{Output: "out2.o", Mtime: t2, Inputs: []string{"foo.h", "bar2.h"}},
		)
		dl, err := NewDepsLog(ctx, fname)
		if err != nil {
			t.Fatalf("NewDepsLog(ctx, %s)=_, %v; want nil error", fname, err)
		}
		if got := dl.Version(); got != version {
			t.Errorf("dl.Version()=%d; want %d", got, version)
		}
		deps, mtime, err := dl.Get(ctx, "out.o")
		if err != nil {
			t.Errorf(`v%d: dl.Get(ctx, "out.o")=_, _, %v; want nil error`, version, err)
		}
		if diff := cmp.Diff([]string{"foo.h", "bar.h"}, deps); diff != "" {
			t.Errorf(`v%d: dl.Get(ctx, "out.o") diff -want +got:\n%s`, version, diff)
		}
		if !mtime.Equal(t1) {
			t.Errorf(`v%d: dl.Get(ctx, "out.o")=_, %v, _; want _, %v, _`, version, mtime, t1)
		}
		deps, mtime, err = dl.Get(ctx, "out2.o")
		if err != nil {
			t.Errorf(`v%d: dl.Get(ctx, "out2.o")=_, _, %v; want nil error`, version, err)
		}
		if diff := cmp.Diff([]string{"foo.h", "bar2.h"}, deps); diff != "" {
			t.Errorf(`v%d: dl.Get(ctx, "out2.o") diff -want +got:\n%s`, version, diff)
		}
		if !mtime.Equal(t2) {
			t.Errorf(`v%d: dl.Get(ctx, "out2.o")=_, %v, _; want _, %v, _`, version, mtime, t2)
		}

		// foo.h is known as a path, but has no deps record.
		_, _, err = dl.Get(ctx, "foo.h")
		if !errors.Is(err, ErrNoDepsLog) {
			t.Errorf(`v%d: dl.Get(ctx, "foo.h")=_, _, %v; want %v`, version, err, ErrNoDepsLog)
		}
		_, _, err = dl.Get(ctx, "unknown.o")
		if !errors.Is(err, ErrNoDepsLog) {
			t.Errorf(`v%d: dl.Get(ctx, "unknown.o")=_, _, %v; want %v`, version, err, ErrNoDepsLog)
		}
		if diff := cmp.Diff([]string{"out.o", "out2.o"}, dl.RecordedTargets()); diff != "" {
			t.Errorf("v%d: dl.RecordedTargets() diff -want +got:\n%s", version, diff)
		}
	}
}

func TestDepsLog_override(t *testing.T) {
	ctx := context.Background()
	t1 := time.Unix(1, 0)
	t3 := time.Unix(3, 0)
	fname := writeDepsLog(t, DepsLogVersion4,
		ninjautiltest.DepsRecord{Output: "out.o", Mtime: t1, Inputs: []string{"foo.h", "bar.h"}},
		ninjautiltest.DepsRecord{Output: "out.o", Mtime: t3, Inputs: []string{"foo.h"}},
	)
	dl, err := NewDepsLog(ctx, fname)
	if err != nil {
		t.Fatalf("NewDepsLog(ctx, %s)=_, %v; want nil error", fname, err)
	}
	deps, mtime, err := dl.Get(ctx, "out.o")
	want := []string{"foo.h"}
	if !cmp.Equal(deps, want) || !mtime.Equal(t3) || err != nil {
		t.Errorf(`dl.Get(ctx, "out.o")=%v, %v, %v; want %v, %v, %v`, deps, mtime, err, want, t3, nil)
	}
}

func TestDepsLog_broken(t *testing.T) {
	ctx := context.Background()
	t1 := time.Unix(1, 0)
	t2 := time.Unix(2, 0)
	fname := writeDepsLog(t, DepsLogVersion4,
		ninjautiltest.DepsRecord{Output: "out.o", Mtime: t1, Inputs: []string{"foo.h", "bar.h"}},
		ninjautiltest.DepsRecord{Output: "out2.o", Mtime: t2, Inputs: []string{"foo.h", "bar2.h"}},
	)
	fi, err := os.Stat(fname)
	if err != nil {
		t.Fatal(err)
	}
	if fi.Size() != 144 {
		t.Errorf("deps log size=%d; want 144", fi.Size())
	}
	// break the last deps record.
	err = os.Truncate(fname, 143)
	if err != nil {
		t.Fatalf("truncate(143)=%v; want nil error", err)
	}
	dl, err := NewDepsLog(ctx, fname)
	if err != nil {
		t.Fatalf("NewDepsLog(ctx, %q)=_, %v; want nil error", fname, err)
	}
	deps, _, err := dl.Get(ctx, "out.o")
	if err != nil || !cmp.Equal(deps, []string{"foo.h", "bar.h"}) {
		t.Errorf(`dl.Get(ctx, "out.o")=%v, _, %v; want [foo.h bar.h], nil`, deps, err)
	}
	_, _, err = dl.Get(ctx, "out2.o")
	if !errors.Is(err, ErrNoDepsLog) {
		t.Errorf(`dl.Get(ctx, "out2.o")=_, _, %v; want %v`, err, ErrNoDepsLog)
	}
}

func TestDepsLog_notExist(t *testing.T) {
	ctx := context.Background()
	fname := filepath.Join(t.TempDir(), ".ninja_deps")
	dl, err := NewDepsLog(ctx, fname)
	if err != nil {
		t.Fatalf("NewDepsLog(ctx, %q)=_, %v; want nil error", fname, err)
	}
	_, _, err = dl.Get(ctx, "out.o")
	if !errors.Is(err, ErrNoDepsLog) {
		t.Errorf(`dl.Get(ctx, "out.o")=_, _, %v; want %v`, err, ErrNoDepsLog)
	}
	if got := dl.RecordedTargets(); len(got) != 0 {
		t.Errorf("dl.RecordedTargets()=%q; want empty", got)
	}
}

func TestDepsLog_badHeader(t *testing.T) {
	ctx := context.Background()
	for _, tc := range []struct {
		name    string
		content []byte
	}{
		{
			name:    "signature",
			content: []byte("# ninjalog\n\x04\x00\x00\x00"),
		},
		{
			name:    "no-version",
			content: []byte("# ninjadeps\n"),
		},
		{
			name:    "version",
			content: []byte("# ninjadeps\n\x02\x00\x00\x00"),
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			fname := filepath.Join(t.TempDir(), ".ninja_deps")
			err := os.WriteFile(fname, tc.content, 0644)
			if err != nil {
				t.Fatal(err)
			}
			_, err = NewDepsLog(ctx, fname)
			if err == nil {
				t.Errorf("NewDepsLog(ctx, %q)=_, nil; want error", fname)
			}
		})
	}
}
