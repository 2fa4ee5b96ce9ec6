// Copyright 2023 The Chromium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package ninjautil

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
)

// State holds the build graph of a ninja manifest.
//
// Nodes and edges are stored in arenas, and referred by NodeID and EdgeID.
// Index 0 of both arenas is reserved as invalid, so zero value means none.
// State is not modified once the manifest is loaded.
type State struct {
	nodes []Node
	edges []Edge
	paths map[string]NodeID

	bindings  *BindingEnv
	pools     map[string]*Pool
	defaults  []NodeID
	filenames []string
}

// NewState creates new empty State.
func NewState() *State {
	s := &State{
		// 0: invalid node/edge.
		nodes:    make([]Node, 1),
		edges:    make([]Edge, 1),
		paths:    make(map[string]NodeID),
		bindings: newBindingEnv(nil),
		pools:    make(map[string]*Pool),
	}
	s.pools[consolePool.name] = consolePool
	return s
}

// Node returns the node for id, or nil if id is invalid.
func (s *State) Node(id NodeID) *Node {
	if id <= 0 || int(id) >= len(s.nodes) {
		return nil
	}
	return &s.nodes[id]
}

// Edge returns the edge for id, or nil if id is invalid.
func (s *State) Edge(id EdgeID) *Edge {
	if id <= 0 || int(id) >= len(s.edges) {
		return nil
	}
	return &s.edges[id]
}

// NumNodes returns the number of nodes.
func (s *State) NumNodes() int { return len(s.nodes) - 1 }

// NumEdges returns the number of edges.
func (s *State) NumEdges() int { return len(s.edges) - 1 }

// LookupNode looks up the node by canonicalized path.
func (s *State) LookupNode(path string) (NodeID, bool) {
	id, ok := s.paths[path]
	return id, ok
}

// AllNodes returns all nodes' ids in the order they were added.
func (s *State) AllNodes() []NodeID {
	ids := make([]NodeID, 0, s.NumNodes())
	for i := 1; i < len(s.nodes); i++ {
		ids = append(ids, NodeID(i))
	}
	return ids
}

// Filenames returns the manifest filenames loaded.
func (s *State) Filenames() []string { return s.filenames }

// Lookup looks up a top-level variable such as "builddir".
func (s *State) Lookup(name string) string {
	return s.bindings.Lookup(name)
}

// DepsLogPath returns the path of the deps log, ".ninja_deps" in
// $builddir.
func (s *State) DepsLogPath() string {
	builddir := s.Lookup("builddir")
	if builddir == "" {
		return ".ninja_deps"
	}
	return filepath.Join(builddir, ".ninja_deps")
}

// LookupPool looks up the pool by name.
func (s *State) LookupPool(name string) (*Pool, bool) {
	p, ok := s.pools[name]
	return p, ok
}

func (s *State) addPool(p *Pool) {
	s.pools[p.name] = p
}

// node gets or creates the node for path.
func (s *State) node(path string) NodeID {
	if id, ok := s.paths[path]; ok {
		return id
	}
	id := NodeID(len(s.nodes))
	s.nodes = append(s.nodes, Node{id: id, path: path})
	s.paths[path] = id
	return id
}

func (s *State) addEdge(rule *Rule, env *BindingEnv) *Edge {
	id := EdgeID(len(s.edges))
	s.edges = append(s.edges, Edge{
		id:    id,
		state: s,
		rule:  rule,
		pool:  defaultPool,
		env:   env,
	})
	return &s.edges[id]
}

// addOut adds path as an output of the edge.
// It returns false if the path is already generated by other edge.
func (s *State) addOut(edge *Edge, path string) bool {
	id := s.node(path)
	n := &s.nodes[id]
	if n.inEdge != 0 {
		return false
	}
	n.inEdge = edge.id
	edge.outputs = append(edge.outputs, id)
	return true
}

func (s *State) addIn(edge *Edge, path string) {
	id := s.node(path)
	n := &s.nodes[id]
	n.outs = append(n.outs, edge.id)
	edge.inputs = append(edge.inputs, id)
}

func (s *State) addValidation(edge *Edge, path string) {
	id := s.node(path)
	edge.validations = append(edge.validations, id)
}

func (s *State) addDefault(path string) error {
	id, ok := s.paths[path]
	if !ok {
		return fmt.Errorf("unknown target %q", path)
	}
	s.defaults = append(s.defaults, id)
	return nil
}

// RootNodes returns root nodes, i.e. outputs that are not used as input
// of any edge.
func (s *State) RootNodes() ([]NodeID, error) {
	var roots []NodeID
	for i := 1; i < len(s.edges); i++ {
		for _, out := range s.edges[i].outputs {
			if len(s.nodes[out].outs) == 0 {
				roots = append(roots, out)
			}
		}
	}
	if len(s.edges) > 1 && len(roots) == 0 {
		return nil, errors.New("could not determine root nodes of build graph")
	}
	return roots, nil
}

// DefaultNodes returns default targets, or root nodes if no defaults.
func (s *State) DefaultNodes() ([]NodeID, error) {
	if len(s.defaults) > 0 {
		return slices.Clone(s.defaults), nil
	}
	return s.RootNodes()
}

// TargetError is an error of unknown target.
type TargetError struct {
	Target   string
	Suggests []string
}

func (e TargetError) Error() string {
	if len(e.Suggests) > 0 {
		return fmt.Sprintf("unknown target %q, did you mean %q?", e.Target, e.Suggests[0])
	}
	return fmt.Sprintf("unknown target %q", e.Target)
}

// Targets returns target nodes for args.
// If args is empty, it returns default nodes.
// "<path>^" means the first output of the first edge that uses <path>.
func (s *State) Targets(args []string) ([]NodeID, error) {
	if len(args) == 0 {
		return s.DefaultNodes()
	}
	nodes := make([]NodeID, 0, len(args))
	for _, t := range args {
		path, caret := strings.CutSuffix(t, "^")
		path = CanonicalizePath(path)
		id, ok := s.paths[path]
		if !ok {
			return nil, TargetError{Target: t, Suggests: s.spellcheck(path)}
		}
		if caret {
			n := &s.nodes[id]
			if len(n.outs) == 0 {
				return nil, fmt.Errorf("%q has no out edge", path)
			}
			edge := &s.edges[n.outs[0]]
			if len(edge.outputs) == 0 {
				return nil, fmt.Errorf("out edge of %q has no output", path)
			}
			id = edge.outputs[0]
		}
		nodes = append(nodes, id)
	}
	return nodes, nil
}

// maxValidEditDistance is a threshold of edit distance to suggest a target.
const maxValidEditDistance = 3

// spellcheck returns paths close to path.
func (s *State) spellcheck(path string) []string {
	best := maxValidEditDistance + 1
	var suggests []string
	for i := 1; i < len(s.nodes); i++ {
		p := s.nodes[i].path
		d := editDistance(path, p, maxValidEditDistance)
		switch {
		case d < best:
			best = d
			suggests = []string{p}
		case d == best && d <= maxValidEditDistance:
			suggests = append(suggests, p)
		}
	}
	return suggests
}
