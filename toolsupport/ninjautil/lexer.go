// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package ninjautil

import (
	"bytes"
	"fmt"
)

type charmap [8]uint32

func (m *charmap) set(ch byte) {
	(*m)[ch>>5] |= 1 << uint(ch&31)
}

func (m *charmap) contains(ch byte) bool {
	return (*m)[ch>>5]&(1<<uint(ch&31)) != 0
}

// [a-zA-Z0-9_.-]
var varnameChar charmap

// [a-zA-Z0-9_-]
var simpleVarnameChar charmap

func init() {
	for _, r := range [][2]byte{{'a', 'z'}, {'A', 'Z'}, {'0', '9'}} {
		for ch := r[0]; ch <= r[1]; ch++ {
			varnameChar.set(ch)
			simpleVarnameChar.set(ch)
		}
	}
	for _, ch := range []byte("_-") {
		varnameChar.set(ch)
		simpleVarnameChar.set(ch)
	}
	varnameChar.set('.')
}

// lexer reads a ninja manifest.
// It is line oriented: every statement starts at the beginning of a line,
// and bindings of rule/build/pool are indented lines following it.
type lexer struct {
	fname string
	buf   []byte
	pos   int
}

// errorf returns an error with the file name and line number of the current position.
func (l *lexer) errorf(format string, args ...any) error {
	line := 1 + bytes.Count(l.buf[:min(l.pos, len(l.buf))], []byte("\n"))
	return fmt.Errorf("%s:%d: %s", l.fname, line, fmt.Sprintf(format, args...))
}

func (l *lexer) eof() bool {
	return l.pos >= len(l.buf)
}

// skipBlankLines skips empty lines and comment lines.
// It must be called at the beginning of a line.
func (l *lexer) skipBlankLines() {
	for !l.eof() {
		i := l.pos
		for i < len(l.buf) && l.buf[i] == ' ' {
			i++
		}
		switch {
		case i == len(l.buf):
			l.pos = i
			return
		case l.buf[i] == '#':
			j := bytes.IndexByte(l.buf[i:], '\n')
			if j < 0 {
				l.pos = len(l.buf)
				return
			}
			l.pos = i + j + 1
		case l.buf[i] == '\n':
			l.pos = i + 1
		case l.buf[i] == '\r' && i+1 < len(l.buf) && l.buf[i+1] == '\n':
			l.pos = i + 2
		default:
			return
		}
	}
}

// indented reports whether the next non blank line is indented,
// and if so, moves the position after the indent.
func (l *lexer) indented() bool {
	l.skipBlankLines()
	if l.eof() || l.buf[l.pos] != ' ' {
		return false
	}
	l.skipSpaces()
	return true
}

// skipSpaces skips spaces and "$\n" line continuations.
// Tab is not considered as whitespace in ninja.
func (l *lexer) skipSpaces() {
	for !l.eof() {
		switch {
		case l.buf[l.pos] == ' ':
			l.pos++
		case bytes.HasPrefix(l.buf[l.pos:], []byte("$\n")):
			l.pos += 2
		case bytes.HasPrefix(l.buf[l.pos:], []byte("$\r\n")):
			l.pos += 3
		default:
			return
		}
	}
}

// ident reads an identifier ([a-zA-Z0-9_.-]+).
// It returns empty string if no identifier is found.
func (l *lexer) ident() string {
	l.skipSpaces()
	s := l.pos
	for !l.eof() && varnameChar.contains(l.buf[l.pos]) {
		l.pos++
	}
	return string(l.buf[s:l.pos])
}

// peek checks if the next token (after spaces) is tok, and consumes it if so.
func (l *lexer) peek(tok string) bool {
	l.skipSpaces()
	if !bytes.HasPrefix(l.buf[l.pos:], []byte(tok)) {
		return false
	}
	if tok == "|" && l.pos+1 < len(l.buf) {
		// don't confuse with "||" or "|@".
		switch l.buf[l.pos+1] {
		case '|', '@':
			return false
		}
	}
	l.pos += len(tok)
	return true
}

// expect consumes tok, or returns an error.
func (l *lexer) expect(tok string) error {
	if !l.peek(tok) {
		return l.errorf("expected %q, got %q", tok, l.excerpt())
	}
	return nil
}

// newline consumes the end of the current line.
func (l *lexer) newline() error {
	l.skipSpaces()
	switch {
	case l.eof():
		return nil
	case l.buf[l.pos] == '\n':
		l.pos++
		return nil
	case bytes.HasPrefix(l.buf[l.pos:], []byte("\r\n")):
		l.pos += 2
		return nil
	}
	return l.errorf("expected newline, got %q", l.excerpt())
}

// path reads a path. It returns an empty EvalString at the end of paths.
func (l *lexer) path() (EvalString, error) {
	l.skipSpaces()
	es, n, err := parseEvalString(l.buf[l.pos:], true)
	if err != nil {
		return EvalString{}, l.errorf("%v", err)
	}
	l.pos += n
	return es, nil
}

// varValue reads a value of binding until the end of line,
// and consumes the newline.
func (l *lexer) varValue() (EvalString, error) {
	l.skipSpaces()
	es, n, err := parseEvalString(l.buf[l.pos:], false)
	if err != nil {
		return EvalString{}, l.errorf("%v", err)
	}
	l.pos += n
	return es, l.newline()
}

// excerpt returns text at the current position for error messages.
func (l *lexer) excerpt() string {
	if l.eof() {
		return "EOF"
	}
	s := l.buf[l.pos:]
	if i := bytes.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 32 {
		s = append(s[:32:32], "..."...)
	}
	return string(s)
}
