// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package ninjautil

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"slices"

	"github.com/charmbracelet/log"

	"go.chromium.org/infra/build/missingdeps/toolsupport/makeutil"
)

// DepfileHandler is called for each input path found in a depfile.
// path is canonicalized as manifest paths are, so it can be looked up
// by State.LookupNode.
// It returns false to stop loading the depfile.
type DepfileHandler func(path string) bool

// LoadDepfile loads the depfile of the edge from fsys, and calls handler
// for each input in the depfile.
// It doesn't modify the state.
//
// It returns nil without calling handler if the edge has no depfile
// binding, or the depfile doesn't exist.
func (s *State) LoadDepfile(ctx context.Context, fsys fs.FS, edge *Edge, handler DepfileHandler) error {
	fname := edge.Binding("depfile")
	if fname == "" {
		return nil
	}
	fname = CanonicalizePath(fname)
	deps, err := makeutil.ParseDepsFile(ctx, fsys, fname)
	if errors.Is(err, fs.ErrNotExist) {
		log.Debugf("depfile %s doesn't exist", fname)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load depfile %s: %w", fname, err)
	}
	if len(deps.Outputs) == 0 {
		return fmt.Errorf("%s: no outputs declared", fname)
	}
	outs := make([]string, 0, len(edge.outputs))
	for _, id := range edge.outputs {
		outs = append(outs, s.nodes[id].path)
	}
	// The first output must be the primary output of the edge.
	// edges always have at least one output.
	if primary := CanonicalizePath(deps.Outputs[0]); primary != outs[0] {
		return fmt.Errorf("%s: expected depfile to mention %q, got %q", fname, outs[0], primary)
	}
	for _, out := range deps.Outputs[1:] {
		out = CanonicalizePath(out)
		if !slices.Contains(outs, out) {
			return fmt.Errorf("%s: depfile mentions %q as an output, but no such output was declared", fname, out)
		}
	}
	for _, in := range deps.Inputs {
		path := CanonicalizePath(in)
		if !handler(path) {
			return fmt.Errorf("%s: stopped at %s", fname, path)
		}
	}
	return nil
}
