// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package missingdeps

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"go.chromium.org/infra/build/missingdeps/toolsupport/ninjautil"
)

// pathExistsSlow computes reachability without memo.
func pathExistsSlow(state *ninjautil.State, from, to ninjautil.EdgeID) bool {
	for _, in := range state.Edge(to).Inputs() {
		e, ok := state.Node(in).InEdge()
		if !ok {
			continue
		}
		if e == from || pathExistsSlow(state, from, e) {
			return true
		}
	}
	return false
}

func TestReachability(t *testing.T) {
	state := loadState(t, `
rule gen
  command = gen ${out}
rule cc
  command = cc ${in} -o ${out}

build a.h: gen
build b.o: cc b.cc | a.h
build c.o: cc c.cc || b.o
build d.o: cc d.cc
build e: phony c.o d.o
build f: cc f.cc |@ e
`)
	edge := func(path string) ninjautil.EdgeID {
		t.Helper()
		e, ok := state.Node(lookup(t, state, path)).InEdge()
		if !ok {
			t.Fatalf("no edge for %s", path)
		}
		return e
	}
	r := newReachability(state)
	for _, tc := range []struct {
		from, to string
		want     bool
	}{
		{from: "a.h", to: "b.o", want: true},
		{from: "a.h", to: "c.o", want: true},
		{from: "a.h", to: "e", want: true},
		{from: "b.o", to: "e", want: true},
		{from: "d.o", to: "e", want: true},
		{from: "d.o", to: "c.o", want: false},
		{from: "b.o", to: "a.h", want: false},
		{from: "e", to: "e", want: false},
		// validations are not dependencies.
		{from: "e", to: "f", want: false},
		{from: "a.h", to: "f", want: false},
	} {
		// query twice to check memoized result.
		for i := 0; i < 2; i++ {
			got := r.pathExists(edge(tc.from), edge(tc.to))
			if got != tc.want {
				t.Errorf("#%d pathExists(%s, %s)=%t; want %t", i, tc.from, tc.to, got, tc.want)
			}
		}
	}
}

func TestReachability_consistentWithoutMemo(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	var sb strings.Builder
	sb.WriteString("rule r\n  command = r ${in} ${out}\n")
	const numEdges = 60
	for i := 0; i < numEdges; i++ {
		fmt.Fprintf(&sb, "build out%d: r src%d", i, i)
		for j := 0; j < i; j++ {
			if rnd.Intn(10) == 0 {
				fmt.Fprintf(&sb, " out%d", j)
			}
		}
		if i > 0 && rnd.Intn(3) == 0 {
			fmt.Fprintf(&sb, " || out%d", rnd.Intn(i))
		}
		sb.WriteString("\n")
	}
	state := loadState(t, sb.String())

	r := newReachability(state)
	// query in random order so that memo is filled in various orders.
	pairs := make([][2]ninjautil.EdgeID, 0, numEdges*numEdges)
	for from := 1; from <= state.NumEdges(); from++ {
		for to := 1; to <= state.NumEdges(); to++ {
			pairs = append(pairs, [2]ninjautil.EdgeID{ninjautil.EdgeID(from), ninjautil.EdgeID(to)})
		}
	}
	rnd.Shuffle(len(pairs), func(i, j int) { pairs[i], pairs[j] = pairs[j], pairs[i] })
	for _, p := range pairs {
		got := r.pathExists(p[0], p[1])
		want := pathExistsSlow(state, p[0], p[1])
		if got != want {
			t.Errorf("pathExists(%d, %d)=%t; want %t", p[0], p[1], got, want)
		}
	}
}
