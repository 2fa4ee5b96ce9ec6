// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package missingdeps

import (
	"go.chromium.org/infra/build/missingdeps/toolsupport/ninjautil"
)

type edgePair struct {
	from, to ninjautil.EdgeID
}

// reachability answers whether an edge transitively uses outputs of
// another edge through inputs declared in the manifest.
// Deps from deps log or depfile are never followed.
//
// Results are memoized for the lifetime of reachability, so the graph
// must not change while it is used. The graph must be acyclic.
type reachability struct {
	state *ninjautil.State
	memo  map[edgePair]bool
}

func newReachability(state *ninjautil.State) *reachability {
	return &reachability{
		state: state,
		memo:  make(map[edgePair]bool),
	}
}

type reachFrame struct {
	edge ninjautil.EdgeID
	next int // index of the next input to check.
}

// pathExists reports whether to uses an output of from, directly or
// via other edges.
func (r *reachability) pathExists(from, to ninjautil.EdgeID) bool {
	if v, ok := r.memo[edgePair{from, to}]; ok {
		return v
	}
	stack := []reachFrame{{edge: to}}
	for len(stack) > 0 {
		top := len(stack) - 1
		inputs := r.state.Edge(stack[top].edge).Inputs()
		found := false
		var child ninjautil.EdgeID
		for !found && child == 0 && stack[top].next < len(inputs) {
			in := inputs[stack[top].next]
			stack[top].next++
			e, ok := r.state.Node(in).InEdge()
			if !ok {
				continue
			}
			if e == from {
				found = true
				continue
			}
			v, ok := r.memo[edgePair{from, e}]
			switch {
			case !ok:
				child = e
			case v:
				found = true
			}
		}
		if child != 0 {
			stack = append(stack, reachFrame{edge: child})
			continue
		}
		if found {
			// every edge on the stack uses the edge above it.
			for _, f := range stack {
				r.memo[edgePair{from, f.edge}] = true
			}
			return true
		}
		r.memo[edgePair{from, stack[top].edge}] = false
		stack = stack[:top]
	}
	return false
}
