// Copyright 2023 The Chromium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package ninjautil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
)

// ManifestParser parses Ninja manifests. (i.e. .ninja files)
type ManifestParser struct {
	state *State
	env   *BindingEnv
	lexer *lexer

	// wd is the directory where the manifest is loaded,
	// i.e. the build directory. paths are relative to this.
	wd string
}

// NewManifestParser creates a new manifest parser.
func NewManifestParser(state *State) *ManifestParser {
	return &ManifestParser{
		state: state,
		env:   state.bindings,
	}
}

// SetWd sets a working directory to use when loading manifests.
func (p *ManifestParser) SetWd(wd string) {
	p.wd = wd
}

// Load loads the Ninja manifest given an fname, relative to the working
// directory.
func (p *ManifestParser) Load(ctx context.Context, fname string) error {
	buf, err := os.ReadFile(filepath.Join(p.wd, fname))
	if err != nil {
		return err
	}
	return p.parse(ctx, &lexer{fname: fname, buf: buf})
}

func (p *ManifestParser) parse(ctx context.Context, l *lexer) error {
	p.state.filenames = append(p.state.filenames, l.fname)
	p.lexer = l
	for {
		l.skipBlankLines()
		if l.eof() {
			return nil
		}
		if l.buf[l.pos] == ' ' {
			return l.errorf("unexpected indent")
		}
		keyword := l.ident()
		var err error
		switch keyword {
		case "build":
			err = p.parseEdge()
		case "rule":
			err = p.parseRule()
		case "pool":
			err = p.parsePool()
		case "default":
			err = p.parseDefault()
		case "include":
			err = p.parseFileInclude(ctx, false)
		case "subninja":
			err = p.parseFileInclude(ctx, true)
		case "":
			err = l.errorf("unexpected %q", l.excerpt())
		default:
			var val EvalString
			val, err = p.parseLetValue()
			if err == nil {
				// TODO(ukai): check ninja version if name == "ninja_required_version"
				p.env.addBinding(keyword, val.Evaluate(p.env))
			}
		}
		if err != nil {
			return err
		}
	}
}

// parseLetValue parses "= value" after a variable name.
func (p *ManifestParser) parseLetValue() (EvalString, error) {
	err := p.lexer.expect("=")
	if err != nil {
		return EvalString{}, err
	}
	return p.lexer.varValue()
}

// parseLet parses "name = value" in an indented line.
func (p *ManifestParser) parseLet() (string, EvalString, error) {
	name := p.lexer.ident()
	if name == "" {
		return "", EvalString{}, p.lexer.errorf("expected variable name, got %q", p.lexer.excerpt())
	}
	val, err := p.parseLetValue()
	return name, val, err
}

func (p *ManifestParser) parsePool() error {
	name := p.lexer.ident()
	if name == "" {
		return p.lexer.errorf("expected pool name")
	}
	err := p.lexer.newline()
	if err != nil {
		return err
	}
	if _, ok := p.state.LookupPool(name); ok {
		return p.lexer.errorf("duplicate pool %q", name)
	}
	depth := -1
	for p.lexer.indented() {
		key, value, err := p.parseLet()
		if err != nil {
			return err
		}
		if key != "depth" {
			return p.lexer.errorf("unexpected variable %q", key)
		}
		ds := value.Evaluate(p.env)
		depth, err = strconv.Atoi(ds)
		if err != nil || depth < 0 {
			return p.lexer.errorf("invalid pool depth %q", ds)
		}
	}
	if depth < 0 {
		return p.lexer.errorf("expected 'depth =' line")
	}
	p.state.addPool(&Pool{name: name, depth: depth})
	return nil
}

func (p *ManifestParser) parseRule() error {
	name := p.lexer.ident()
	if name == "" {
		return p.lexer.errorf("expected rule name")
	}
	err := p.lexer.newline()
	if err != nil {
		return err
	}
	if _, found := p.env.lookupRuleCurrentScope(name); found || name == phonyRule.name {
		return p.lexer.errorf("duplicate rule %q", name)
	}
	rule := newRule(name)
	for p.lexer.indented() {
		key, value, err := p.parseLet()
		if err != nil {
			return err
		}
		rule.addBinding(key, value)
	}
	if rule.hasBinding("rspfile") != rule.hasBinding("rspfile_content") {
		return p.lexer.errorf("rspfile and rspfile_content need to be both specified")
	}
	if !rule.hasBinding("command") {
		return p.lexer.errorf("expected 'command =' line")
	}
	p.env.addRule(rule)
	return nil
}

// pathList reads paths until a non path token.
func (p *ManifestParser) pathList(paths []EvalString) ([]EvalString, int, error) {
	n := 0
	for {
		path, err := p.lexer.path()
		if err != nil {
			return nil, 0, err
		}
		if path.empty() {
			return paths, n, nil
		}
		paths = append(paths, path)
		n++
	}
}

func (p *ManifestParser) parseEdge() error {
	outs, _, err := p.pathList(nil)
	if err != nil {
		return err
	}
	implicitOuts := 0
	if p.lexer.peek("|") {
		outs, implicitOuts, err = p.pathList(outs)
		if err != nil {
			return err
		}
	}
	if len(outs) == 0 {
		return p.lexer.errorf("expected path")
	}
	err = p.lexer.expect(":")
	if err != nil {
		return err
	}
	ruleName := p.lexer.ident()
	if ruleName == "" {
		return p.lexer.errorf("expected build command name")
	}
	rule, ok := p.env.lookupRule(ruleName)
	if !ok {
		return p.lexer.errorf("unknown build rule %q", ruleName)
	}
	ins, _, err := p.pathList(nil)
	if err != nil {
		return err
	}
	implicit := 0
	if p.lexer.peek("|") {
		ins, implicit, err = p.pathList(ins)
		if err != nil {
			return err
		}
	}
	orderOnly := 0
	if p.lexer.peek("||") {
		ins, orderOnly, err = p.pathList(ins)
		if err != nil {
			return err
		}
	}
	var validations []EvalString
	if p.lexer.peek("|@") {
		validations, _, err = p.pathList(nil)
		if err != nil {
			return err
		}
	}
	err = p.lexer.newline()
	if err != nil {
		return err
	}

	env := p.env
	if p.lexer.indented() {
		env = newBindingEnv(p.env)
		for {
			key, val, err := p.parseLet()
			if err != nil {
				return err
			}
			env.addBinding(key, val.Evaluate(env))
			if !p.lexer.indented() {
				break
			}
		}
	}

	edge := p.state.addEdge(rule, env)
	if poolName := edge.Binding("pool"); poolName != "" {
		pool, ok := p.state.LookupPool(poolName)
		if !ok {
			return p.lexer.errorf("unknown pool name %q", poolName)
		}
		edge.pool = pool
	}
	edge.outputs = make([]NodeID, 0, len(outs))
	for _, out := range outs {
		path := CanonicalizePath(out.Evaluate(env))
		if path == "" {
			return p.lexer.errorf("empty path")
		}
		if !p.state.addOut(edge, path) {
			return p.lexer.errorf("multiple rules generate %s", path)
		}
	}
	edge.implicitOuts = implicitOuts
	edge.inputs = make([]NodeID, 0, len(ins))
	for _, in := range ins {
		path := CanonicalizePath(in.Evaluate(env))
		if path == "" {
			return p.lexer.errorf("empty path")
		}
		p.state.addIn(edge, path)
	}
	edge.implicitDeps = implicit
	edge.orderOnlyDeps = orderOnly
	for _, v := range validations {
		path := CanonicalizePath(v.Evaluate(env))
		if path == "" {
			return p.lexer.errorf("empty path")
		}
		p.state.addValidation(edge, path)
	}
	if edge.BindingBool("dyndep") {
		log.Warnf("%s: dyndep is not supported for %s", p.lexer.fname, p.state.Node(edge.outputs[0]))
	}
	return nil
}

func (p *ManifestParser) parseDefault() error {
	paths, _, err := p.pathList(nil)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return p.lexer.errorf("expected target name")
	}
	for _, v := range paths {
		path := CanonicalizePath(v.Evaluate(p.env))
		err := p.state.addDefault(path)
		if err != nil {
			return p.lexer.errorf("%v", err)
		}
	}
	return p.lexer.newline()
}

func (p *ManifestParser) parseFileInclude(ctx context.Context, newScope bool) error {
	s, err := p.lexer.path()
	if err != nil {
		return err
	}
	if s.empty() {
		return p.lexer.errorf("expected path")
	}
	path := s.Evaluate(p.env)
	err = p.lexer.newline()
	if err != nil {
		return err
	}

	op := "include"
	subparser := NewManifestParser(p.state)
	subparser.wd = p.wd
	if newScope {
		subparser.env = newBindingEnv(p.env)
		op = "subninja"
	} else {
		subparser.env = p.env
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("interrupted in ninja build parser: %w", context.Cause(ctx))
	default:
	}
	start := time.Now()
	err = subparser.Load(ctx, path)
	if err != nil {
		log.Errorf("Failed %s %s %s: %v", op, path, time.Since(start), err)
		return fmt.Errorf("%s: %w", p.lexer.errorf("%s %s", op, path), err)
	}
	log.Debugf("%s %s %s", op, path, time.Since(start))
	return nil
}
