// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package missingdeps finds missing dependencies in a ninja build graph.
//
// A missing dependency is an input of a step recorded in deps log or
// depfile, which is generated by another step that the step doesn't
// depend on through inputs declared in the manifest.
// Such a step may run before its input is generated in a clean
// build directory, or may not be rebuilt when the input is changed.
package missingdeps

import (
	"context"
	"fmt"
	"io"
	"io/fs"

	"go.chromium.org/infra/build/missingdeps/toolsupport/ninjautil"
)

// BuildNinja is the manifest path. Dependencies on it are not
// considered missing, since regenerating the manifest reruns every
// step that depends on it.
const BuildNinja = "build.ninja"

// Scanner scans the build graph for missing deps.
// A Scanner holds a scan session; it is not safe for concurrent use.
type Scanner struct {
	state    *ninjautil.State
	delegate Delegate
	loader   depsLoader
	reach    *reachability

	seen             []bool
	numSeen          int
	nodesMissingDeps map[ninjautil.NodeID]bool
	generatedNodes   map[ninjautil.NodeID]bool
	generatorRules   map[*ninjautil.Rule]bool

	missingDepPathCount int
}

// New creates a scanner of state, reporting missing deps to delegate.
// Deps of edges with "deps" binding are read from depsLog, and depfiles
// of other edges are read from fsys, which should be rooted at the
// build directory.
func New(state *ninjautil.State, delegate Delegate, depsLog DepsLog, fsys fs.FS) *Scanner {
	return &Scanner{
		state:    state,
		delegate: delegate,
		loader: depsLoader{
			state:   state,
			depsLog: depsLog,
			fsys:    fsys,
		},
		reach:            newReachability(state),
		seen:             make([]bool, state.NumNodes()+1),
		nodesMissingDeps: make(map[ninjautil.NodeID]bool),
		generatedNodes:   make(map[ninjautil.NodeID]bool),
		generatorRules:   make(map[*ninjautil.Rule]bool),
	}
}

// ProcessNode scans the node and all nodes it transitively depends on.
// Each node is processed at most once in the scanner.
func (s *Scanner) ProcessNode(ctx context.Context, id ninjautil.NodeID) {
	node := s.state.Node(id)
	if node == nil {
		return
	}
	edgeID, ok := node.InEdge()
	if !ok {
		return
	}
	if s.seen[id] {
		return
	}
	s.seen[id] = true
	s.numSeen++

	edge := s.state.Edge(edgeID)
	for _, in := range edge.Inputs() {
		s.ProcessNode(ctx, in)
	}
	deps := s.loader.load(ctx, node, edge)
	if len(deps) == 0 {
		return
	}
	s.ProcessNodeDeps(id, deps)
}

// ProcessNodeDeps checks deps of the node, and reports deps whose
// generator is not reachable from the node's edge.
func (s *Scanner) ProcessNodeDeps(id ninjautil.NodeID, deps []Dep) {
	node := s.state.Node(id)
	if node == nil {
		return
	}
	edgeID, ok := node.InEdge()
	if !ok {
		return
	}
	var depEdges []ninjautil.EdgeID
	seenEdges := make(map[ninjautil.EdgeID]bool)
	for _, dep := range deps {
		if dep.Path == BuildNinja {
			return
		}
		depNode := s.state.Node(dep.Node)
		if depNode == nil {
			continue
		}
		e, ok := depNode.InEdge()
		if !ok || seenEdges[e] {
			continue
		}
		seenEdges[e] = true
		depEdges = append(depEdges, e)
	}

	var missing []ninjautil.EdgeID
	for _, e := range depEdges {
		if !s.reach.pathExists(e, edgeID) {
			missing = append(missing, e)
		}
	}
	if len(missing) == 0 {
		return
	}
	ruleNames := make(map[string]bool)
	for _, e := range missing {
		rule := s.state.Edge(e).Rule()
		for _, dep := range deps {
			depNode := s.state.Node(dep.Node)
			if depNode == nil {
				continue
			}
			if de, ok := depNode.InEdge(); !ok || de != e {
				continue
			}
			s.generatedNodes[dep.Node] = true
			s.generatorRules[rule] = true
			ruleNames[rule.Name()] = true
			s.delegate.OnMissingDep(node, dep.Path, rule)
		}
	}
	s.missingDepPathCount += len(ruleNames)
	s.nodesMissingDeps[id] = true
}

// HadMissingDeps reports whether any missing dep was found.
func (s *Scanner) HadMissingDeps() bool {
	return len(s.nodesMissingDeps) > 0
}

// Stats is statistics of a scan.
type Stats struct {
	// NodesProcessed is the number of processed nodes.
	NodesProcessed int
	// MissingDepPaths counts distinct generator rules per target.
	MissingDepPaths int
	// NodesMissingDeps is the number of targets that have missing deps.
	NodesMissingDeps int
	// GeneratedNodes is the number of generated inputs used without deps.
	GeneratedNodes int
	// GeneratorRules is the number of rules generating such inputs.
	GeneratorRules int
}

// Stats returns the statistics of the scan so far.
func (s *Scanner) Stats() Stats {
	return Stats{
		NodesProcessed:   s.numSeen,
		MissingDepPaths:  s.missingDepPathCount,
		NodesMissingDeps: len(s.nodesMissingDeps),
		GeneratedNodes:   len(s.generatedNodes),
		GeneratorRules:   len(s.generatorRules),
	}
}

// PrintStats prints the summary of the scan to w.
func (s *Scanner) PrintStats(w io.Writer) {
	st := s.Stats()
	fmt.Fprintf(w, "Processed %d nodes.\n", st.NodesProcessed)
	if !s.HadMissingDeps() {
		fmt.Fprintln(w, "No missing dependencies on generated files found.")
		return
	}
	fmt.Fprintf(w, "Error: There are %d missing dependency paths.\n", st.MissingDepPaths)
	fmt.Fprintf(w, "%d targets had depfile dependencies on %d distinct generated inputs (from %d rules) without a non-depfile dep path to the generator.\n",
		st.NodesMissingDeps, st.GeneratedNodes, st.GeneratorRules)
	fmt.Fprintln(w, "There might be build flakiness if any of the targets listed above are built alone, or not late enough, in a clean output directory.")
}
