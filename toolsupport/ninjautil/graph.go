// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package ninjautil

import (
	"strings"
)

// NodeID identifies a node in State. zero is invalid.
type NodeID int32

// EdgeID identifies an edge in State. zero is invalid.
type EdgeID int32

// Node represents a node (target file) in build graph.
type Node struct {
	id     NodeID
	path   string
	inEdge EdgeID // the edge that generates the file for this node.
	outs   []EdgeID
}

func (n *Node) String() string { return n.path }

// ID returns the id of the node.
func (n *Node) ID() NodeID { return n.id }

// Path is the path of the node.
func (n *Node) Path() string { return n.path }

// InEdge returns in-edge of the node.
func (n *Node) InEdge() (EdgeID, bool) {
	return n.inEdge, n.inEdge != 0
}

// OutEdges returns out-edges of the node.
func (n *Node) OutEdges() []EdgeID {
	return n.outs
}

// Edge represents an edge (action) in build graph.
type Edge struct {
	id    EdgeID
	state *State
	rule  *Rule
	pool  *Pool
	env   *BindingEnv

	inputs      []NodeID
	outputs     []NodeID
	validations []NodeID

	// https://ninja-build.org/manual.html#ref_dependencies
	implicitDeps  int
	orderOnlyDeps int
	// https://ninja-build.org/manual.html#ref_outputs
	implicitOuts int
}

// ID returns the id of the edge.
func (e *Edge) ID() EdgeID { return e.id }

// Rule returns a rule of the edge.
func (e *Edge) Rule() *Rule { return e.rule }

// Pool returns a pool associated to the edge.
func (e *Edge) Pool() *Pool { return e.pool }

// Inputs returns all input nodes of the edge, i.e. explicit, implicit
// and order-only inputs. Validations are not included.
func (e *Edge) Inputs() []NodeID { return e.inputs }

// Ins returns explicit input nodes (for $in) of the edge.
func (e *Edge) Ins() []NodeID {
	n := len(e.inputs) - e.implicitDeps - e.orderOnlyDeps
	return e.inputs[:n]
}

// TriggerInputs returns inputs nodes of the edge that would trigger
// the edge command. i.e. not including order_only inputs.
func (e *Edge) TriggerInputs() []NodeID {
	return e.inputs[:len(e.inputs)-e.orderOnlyDeps]
}

// Outputs returns output nodes of the edge.
func (e *Edge) Outputs() []NodeID { return e.outputs }

// Validations returns validation nodes of the edge.
func (e *Edge) Validations() []NodeID { return e.validations }

// IsPhony returns true iff phony edge.
func (e *Edge) IsPhony() bool {
	return e.rule == phonyRule
}

// Binding returns binding value in the edge.
// Paths in $in and $out are not shell escaped.
func (e *Edge) Binding(name string) string {
	env := edgeEnv{edge: e}
	return env.Lookup(name)
}

// BindingBool returns true if binding is defined in the edge.
func (e *Edge) BindingBool(name string) bool {
	return e.Binding(name) != ""
}

// edgeEnv is an Env to evaluate rule bindings for an edge.
type edgeEnv struct {
	edge      *Edge
	lookups   []string
	recursive bool
}

func (e *edgeEnv) Lookup(key string) string {
	sep := " "
	// Handle special in/out keys.
	// https://ninja-build.org/manual.html#ref_rule
	switch key {
	case "in_newline":
		sep = "\n"
		fallthrough
	case "in":
		return e.pathList(e.edge.Ins(), sep)
	case "out":
		n := len(e.edge.outputs) - e.edge.implicitOuts
		return e.pathList(e.edge.outputs[:n], sep)
	}
	if e.recursive {
		for _, s := range e.lookups {
			if s == key {
				// cycle in rule variables. ninja refuses such manifest
				// when it evaluates the command, so treat as empty here.
				return ""
			}
		}
	}
	val, ok := e.edge.rule.Binding(key)
	if ok {
		e.lookups = append(e.lookups, key)
		defer func() { e.lookups = e.lookups[:len(e.lookups)-1] }()
	}
	e.recursive = true
	var eval *EvalString
	if ok {
		eval = &val
	}
	return e.edge.env.lookupWithFallback(key, eval, e)
}

func (e *edgeEnv) pathList(nodes []NodeID, sep string) string {
	s := make([]string, 0, len(nodes))
	for _, id := range nodes {
		s = append(s, e.edge.state.Node(id).Path())
	}
	return strings.Join(s, sep)
}

// Rule represents a build rule.
// Further reading: https://ninja-build.org/manual.html#_rules
type Rule struct {
	name     string
	bindings map[string]EvalString
}

func newRule(name string) *Rule {
	return &Rule{
		name:     name,
		bindings: make(map[string]EvalString),
	}
}

// The special phony rule allows aliasing for other targets.
// Further reading: https://ninja-build.org/manual.html#_the_literal_phony_literal_rule
var phonyRule = newRule("phony")

func (r *Rule) String() string { return r.name }

// Name returns rule's name.
func (r *Rule) Name() string { return r.name }

// Binding returns binding in the rule.
func (r *Rule) Binding(key string) (EvalString, bool) {
	v, ok := r.bindings[key]
	return v, ok
}

func (r *Rule) addBinding(key string, val EvalString) {
	r.bindings[key] = val
}

func (r *Rule) hasBinding(key string) bool {
	_, ok := r.bindings[key]
	return ok
}

// Pool is a ninja pool.
// Further reading: https://ninja-build.org/manual.html#ref_pool
type Pool struct {
	name  string
	depth int
}

// Name returns pool's name.
func (p *Pool) Name() string { return p.name }

// Depth returns pool's depth.
func (p *Pool) Depth() int { return p.depth }

var (
	defaultPool = &Pool{name: ""}
	consolePool = &Pool{name: "console", depth: 1}
)

// BindingEnv is a scope of variables and rules.
type BindingEnv struct {
	vars   map[string]string
	rules  map[string]*Rule
	parent *BindingEnv
}

func newBindingEnv(parent *BindingEnv) *BindingEnv {
	return &BindingEnv{
		vars:   make(map[string]string),
		rules:  make(map[string]*Rule),
		parent: parent,
	}
}

// Lookup looks up the variable in the scope and its parents.
func (b *BindingEnv) Lookup(key string) string {
	if v, ok := b.vars[key]; ok {
		return v
	}
	if b.parent != nil {
		return b.parent.Lookup(key)
	}
	return ""
}

func (b *BindingEnv) addBinding(key, val string) {
	b.vars[key] = val
}

// lookupWithFallback looks up the variable in this scope first,
// then evaluates eval in env if given, then looks up parents.
func (b *BindingEnv) lookupWithFallback(key string, eval *EvalString, env Env) string {
	if v, ok := b.vars[key]; ok {
		return v
	}
	if eval != nil {
		return eval.Evaluate(env)
	}
	if b.parent != nil {
		return b.parent.Lookup(key)
	}
	return ""
}

func (b *BindingEnv) addRule(rule *Rule) {
	b.rules[rule.name] = rule
}

// lookupRule looks up rules in the binding env.
func (b *BindingEnv) lookupRule(name string) (*Rule, bool) {
	if r, ok := b.rules[name]; ok {
		return r, true
	}
	if b.parent != nil {
		return b.parent.lookupRule(name)
	}
	if name == phonyRule.name {
		return phonyRule, true
	}
	return nil, false
}

// lookupRuleCurrentScope looks up rules in the current scope in the binding env.
func (b *BindingEnv) lookupRuleCurrentScope(name string) (*Rule, bool) {
	r, ok := b.rules[name]
	return r, ok
}
