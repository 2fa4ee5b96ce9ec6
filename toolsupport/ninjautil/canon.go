// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package ninjautil

import (
	"path/filepath"
	"strings"
)

// CanonicalizePath canonicalizes path as ninja does.
//
// It removes "." components, folds "dir/.." pairs, and collapses
// repeated slashes. Leading ".." components are kept, as they refer
// outside of the build directory (e.g. "../../foo.cc").
// On Windows, backslashes are converted to slashes.
func CanonicalizePath(path string) string {
	if path == "" {
		return ""
	}
	path = filepath.ToSlash(path)
	if isCanonical(path) {
		return path
	}
	abs := path[0] == '/'
	comps := make([]string, 0, strings.Count(path, "/")+1)
	for _, c := range strings.Split(path, "/") {
		switch c {
		case "", ".":
			continue
		case "..":
			if len(comps) > 0 && comps[len(comps)-1] != ".." {
				comps = comps[:len(comps)-1]
				continue
			}
		}
		comps = append(comps, c)
	}
	s := strings.Join(comps, "/")
	if abs {
		return "/" + s
	}
	if s == "" {
		return "."
	}
	return s
}

// isCanonical reports whether path has no component to clean up.
func isCanonical(path string) bool {
	rest := strings.TrimPrefix(path, "/")
	if rest == "" {
		return true
	}
	seenName := false
	for _, c := range strings.Split(rest, "/") {
		switch c {
		case "", ".":
			return false
		case "..":
			// ".." is canonical only as leading components.
			if seenName {
				return false
			}
		default:
			seenName = true
		}
	}
	return true
}
