// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package missingdeps

import (
	"fmt"
	"io"

	"go.chromium.org/infra/build/missingdeps/toolsupport/ninjautil"
)

// Delegate receives missing deps found by Scanner.
type Delegate interface {
	// OnMissingDep is called for node that uses path generated by
	// generator rule without a non-depfile dependency path to it.
	OnMissingDep(node *ninjautil.Node, path string, generator *ninjautil.Rule)
}

// Printer is a Delegate that prints each missing dep to W.
type Printer struct {
	W io.Writer
}

// OnMissingDep prints missing dep in a line.
func (p Printer) OnMissingDep(node *ninjautil.Node, path string, generator *ninjautil.Rule) {
	fmt.Fprintf(p.W, "Missing dep: %s uses %s (generated by %s)\n", node.Path(), path, generator.Name())
}

// MissingDep is a missing dep reported to Delegate.
type MissingDep struct {
	Target string `json:"target"`
	Path   string `json:"path"`
	Rule   string `json:"rule"`
}

// Collector is a Delegate that collects missing deps.
type Collector struct {
	Deps []MissingDep
}

// OnMissingDep records missing dep.
func (c *Collector) OnMissingDep(node *ninjautil.Node, path string, generator *ninjautil.Rule) {
	c.Deps = append(c.Deps, MissingDep{
		Target: node.Path(),
		Path:   path,
		Rule:   generator.Name(),
	})
}

// Delegates is a Delegate that dispatches to all delegates in order.
type Delegates []Delegate

// OnMissingDep calls OnMissingDep of each delegate.
func (ds Delegates) OnMissingDep(node *ninjautil.Node, path string, generator *ninjautil.Rule) {
	for _, d := range ds {
		d.OnMissingDep(node, path, generator)
	}
}
