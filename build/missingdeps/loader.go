// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package missingdeps

import (
	"context"
	"errors"
	"io/fs"
	"time"

	"github.com/charmbracelet/log"

	"go.chromium.org/infra/build/missingdeps/toolsupport/ninjautil"
)

// DepsLog is a read-only deps log, e.g. *ninjautil.DepsLog.
type DepsLog interface {
	// Get returns recorded deps of the output.
	Get(ctx context.Context, output string) ([]string, time.Time, error)
}

// Dep is a dependency of a node, recorded in deps log or depfile.
type Dep struct {
	Path string
	// Node is the node of Path in the build graph, or zero if
	// the build graph doesn't know the path.
	Node ninjautil.NodeID
}

// depsLoader resolves deps of nodes from deps log or depfile.
// It never writes to deps log.
type depsLoader struct {
	state   *ninjautil.State
	depsLog DepsLog
	fsys    fs.FS
}

// load returns deps of the node generated by the edge.
// errors are logged and result in no deps.
func (l depsLoader) load(ctx context.Context, node *ninjautil.Node, edge *ninjautil.Edge) []Dep {
	if edge.Binding("deps") != "" {
		return l.fromDepsLog(ctx, node)
	}
	return l.fromDepfile(ctx, node, edge)
}

func (l depsLoader) fromDepsLog(ctx context.Context, node *ninjautil.Node) []Dep {
	if l.depsLog == nil {
		return nil
	}
	paths, _, err := l.depsLog.Get(ctx, node.Path())
	if err != nil {
		if !errors.Is(err, ninjautil.ErrNoDepsLog) {
			log.Debugf("deps log %s: %v", node.Path(), err)
		}
		return nil
	}
	deps := make([]Dep, 0, len(paths))
	for _, p := range paths {
		deps = append(deps, l.dep(p))
	}
	return deps
}

func (l depsLoader) fromDepfile(ctx context.Context, node *ninjautil.Node, edge *ninjautil.Edge) []Dep {
	if l.fsys == nil {
		return nil
	}
	var deps []Dep
	err := l.state.LoadDepfile(ctx, l.fsys, edge, func(path string) bool {
		deps = append(deps, l.dep(path))
		return true
	})
	if err != nil {
		log.Debugf("depfile for %s: %v", node.Path(), err)
		return nil
	}
	return deps
}

func (l depsLoader) dep(path string) Dep {
	id, _ := l.state.LookupNode(path)
	return Dep{Path: path, Node: id}
}
