// Copyright 2023 The Chromium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package makeutil provides utilities for make.
package makeutil

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
)

// Deps is a parsed depfile.
type Deps struct {
	// Outputs are targets in the order they first appear.
	Outputs []string
	// Inputs are prerequisites in the order they first appear.
	Inputs []string
}

// ErrNoColon is returned when a depfile has targets without ':'.
var ErrNoColon = errors.New("expected ':' in depfile")

// ParseDepsFile parses *.d file in fname on fsys.
// fname that fsys can't open, i.e. absolute or starting with "..",
// is read from the OS filesystem, relative to the current directory.
func ParseDepsFile(ctx context.Context, fsys fs.FS, fname string) (Deps, error) {
	if fname == "" {
		return Deps{}, nil
	}
	b, err := readFile(fsys, fname)
	if err != nil {
		return Deps{}, err
	}
	deps, err := Parse(b)
	if err != nil {
		return Deps{}, fmt.Errorf("%s: %w", fname, err)
	}
	log.Debugf("deps %s => %q: %q", fname, deps.Outputs, deps.Inputs)
	return deps, nil
}

func readFile(fsys fs.FS, fname string) ([]byte, error) {
	osname := filepath.FromSlash(fname)
	if fs.ValidPath(fname) && !filepath.IsAbs(osname) {
		return fs.ReadFile(fsys, fname)
	}
	return os.ReadFile(osname)
}

// ParseDeps parses deps and returns a list of inputs.
// It returns nil for malformed deps.
func ParseDeps(b []byte) []string {
	deps, err := Parse(b)
	if err != nil {
		return nil
	}
	return deps.Inputs
}

// Parse parses deps contents.
//
//	<output> ...: <input> ...
//
// A rule ends at an unescaped newline. '\'+newline is a continuation.
// '\'+space is escaped space (not separator).
func Parse(b []byte) (Deps, error) {
	var deps Deps
	s := b
	for len(s) > 0 {
		var targets, inputs []string
		var hasColon bool
		targets, inputs, hasColon, s = nextRule(s)
		if len(targets) == 0 && len(inputs) == 0 {
			continue
		}
		if !hasColon {
			return Deps{}, ErrNoColon
		}
		// A target that was seen as an input is a phony rule
		// generated by -MP. Ignore the whole rule.
		poisoned := false
		for _, t := range targets {
			if slices.Contains(deps.Inputs, t) {
				poisoned = true
				break
			}
		}
		if poisoned {
			continue
		}
		for _, t := range targets {
			if !slices.Contains(deps.Outputs, t) {
				deps.Outputs = append(deps.Outputs, t)
			}
		}
		for _, in := range inputs {
			if !slices.Contains(deps.Inputs, in) {
				deps.Inputs = append(deps.Inputs, in)
			}
		}
	}
	return deps, nil
}

// nextRule parses one rule in s, and returns targets, inputs,
// whether ':' was found and the rest of s.
func nextRule(s []byte) ([]string, []string, bool, []byte) {
	var targets, inputs []string
	hasColon := false
	for {
		token, colon, eol, rest := nextToken(s)
		s = rest
		switch {
		case token == "":
		case hasColon:
			inputs = append(inputs, token)
		default:
			targets = append(targets, token)
		}
		if colon {
			hasColon = true
		}
		if eol || len(s) == 0 {
			return targets, inputs, hasColon, s
		}
	}
}

// nextToken returns next token, whether the token ends with ':' separator,
// whether the token ends the rule, and the rest of s.
func nextToken(s []byte) (string, bool, bool, []byte) {
	// skip spaces and continuations.
	i := 0
skipSpaces:
	for i < len(s) {
		switch {
		case s[i] == ' ' || s[i] == '\t':
			i++
		case s[i] == '\\' && i+1 < len(s) && s[i+1] == '\n':
			i += 2
		case s[i] == '\\' && i+2 < len(s) && s[i+1] == '\r' && s[i+2] == '\n':
			i += 3
		default:
			break skipSpaces
		}
	}
	s = s[i:]
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch ch {
		case '\r':
			if i+1 < len(s) && s[i+1] == '\n' {
				return sb.String(), false, true, s[i+2:]
			}
			sb.WriteByte(ch)
		case '\n':
			return sb.String(), false, true, s[i+1:]
		case ' ', '\t':
			return sb.String(), false, false, s[i+1:]
		case ':':
			if i+1 == len(s) || isSeparator(s[i+1]) {
				return sb.String(), true, false, s[i+1:]
			}
			sb.WriteByte(ch)
		case '$':
			if i+1 < len(s) && s[i+1] == '$' {
				i++
			}
			sb.WriteByte('$')
		case '\\':
			if i+1 >= len(s) {
				sb.WriteByte(ch)
				continue
			}
			switch s[i+1] {
			case ' ', '#', ':':
				i++
				sb.WriteByte(s[i])
			case '\n':
				// '\'+newline is space
				return sb.String(), false, false, s[i+2:]
			case '\r':
				if i+2 < len(s) && s[i+2] == '\n' {
					return sb.String(), false, false, s[i+3:]
				}
				sb.WriteByte(ch)
			default:
				sb.WriteByte(ch)
			}
		default:
			sb.WriteByte(ch)
		}
	}
	return sb.String(), false, true, nil
}

func isSeparator(ch byte) bool {
	switch ch {
	case ' ', '\t', '\r', '\n':
		return true
	}
	return false
}
