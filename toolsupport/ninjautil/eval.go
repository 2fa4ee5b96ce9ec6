// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package ninjautil

import (
	"bytes"
	"errors"
	"strings"
)

// Env implementations provide a scope for looking up bindings.
// Bindings are more commonly known as variables for Ninja users.
// Further reading: https://ninja-build.org/manual.html#_variables
type Env interface {
	// Lookup looks up the binding in the environment.
	Lookup(string) string
}

type evalTokenType int

const (
	evalLiteral evalTokenType = iota
	evalVariable
)

type evalToken struct {
	t evalTokenType
	s string
}

// EvalString represents a sequence of Ninja literals or variables which can be
// evaluated in an Env.
type EvalString struct {
	tokens []evalToken
}

func (e EvalString) empty() bool {
	return len(e.tokens) == 0
}

func (e *EvalString) add(t evalTokenType, s []byte) {
	if len(s) == 0 {
		return
	}
	if t == evalLiteral && len(e.tokens) > 0 && e.tokens[len(e.tokens)-1].t == evalLiteral {
		e.tokens[len(e.tokens)-1].s += string(s)
		return
	}
	e.tokens = append(e.tokens, evalToken{t: t, s: string(s)})
}

// Evaluate evaluates the eval string in the env.
func (e EvalString) Evaluate(env Env) string {
	if len(e.tokens) == 1 && e.tokens[0].t == evalLiteral {
		return e.tokens[0].s
	}
	var sb strings.Builder
	for _, t := range e.tokens {
		switch t.t {
		case evalLiteral:
			sb.WriteString(t.s)
		case evalVariable:
			if env != nil {
				sb.WriteString(env.Lookup(t.s))
			}
		}
	}
	return sb.String()
}

// RawString returns a raw string of eval string.
func (e EvalString) RawString() string {
	var sb strings.Builder
	for _, t := range e.tokens {
		switch t.t {
		case evalLiteral:
			sb.WriteString(t.s)
		case evalVariable:
			sb.WriteString("${")
			sb.WriteString(t.s)
			sb.WriteString("}")
		}
	}
	return sb.String()
}

var errBadEscape = errors.New("bad $-escape (literal $ must be written as $$)")

// parseEvalString parses buf as EvalString, and returns the number of
// consumed bytes.
// For path, it stops at ' ', ':', '|' or newline.
// Otherwise, it stops at newline. The newline is not consumed.
func parseEvalString(buf []byte, path bool) (EvalString, int, error) {
	var es EvalString
	var lit []byte
	flush := func() {
		es.add(evalLiteral, lit)
		lit = lit[:0]
	}
	i := 0
	for i < len(buf) {
		ch := buf[i]
		switch ch {
		case '\n':
			flush()
			return es, i, nil
		case '\r':
			if i+1 < len(buf) && buf[i+1] == '\n' {
				flush()
				return es, i, nil
			}
		case ' ', ':', '|':
			if path {
				flush()
				return es, i, nil
			}
		case '$':
			if i+1 >= len(buf) {
				return EvalString{}, 0, errBadEscape
			}
			next := buf[i+1]
			switch {
			case next == '$' || next == ' ' || next == ':':
				lit = append(lit, next)
				i += 2
				continue
			case next == '\n' || (next == '\r' && i+2 < len(buf) && buf[i+2] == '\n'):
				if path {
					// "$\n" is whitespace between paths.
					flush()
					return es, i, nil
				}
				// line continuation. leading spaces of the next line are skipped.
				i += 2
				if next == '\r' {
					i++
				}
				for i < len(buf) && buf[i] == ' ' {
					i++
				}
				continue
			case next == '{':
				j := bytes.IndexByte(buf[i+2:], '}')
				if j < 0 {
					return EvalString{}, 0, errors.New("unclosed ${")
				}
				name := buf[i+2 : i+2+j]
				for _, c := range name {
					if !varnameChar.contains(c) {
						return EvalString{}, 0, errBadEscape
					}
				}
				flush()
				es.add(evalVariable, name)
				i += 2 + j + 1
				continue
			case simpleVarnameChar.contains(next):
				j := i + 1
				for j < len(buf) && simpleVarnameChar.contains(buf[j]) {
					j++
				}
				flush()
				es.add(evalVariable, buf[i+1:j])
				i = j
				continue
			}
			return EvalString{}, 0, errBadEscape
		}
		lit = append(lit, ch)
		i++
	}
	flush()
	return es, i, nil
}
