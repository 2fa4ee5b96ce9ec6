// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package ninjautiltest provides helpers to create ninja files in tests.
package ninjautiltest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DepsRecord is a deps record to write in a deps log.
type DepsRecord struct {
	Output string
	Mtime  time.Time
	Inputs []string
}

// DepsLogWriter writes ninja deps log in memory.
// It is used to create deps log fixtures, since missingdeps
// never writes deps log.
type DepsLogWriter struct {
	version int
	buf     bytes.Buffer
	pathIdx map[string]int
}

// NewDepsLogWriter creates a writer of deps log in version (3 or 4).
func NewDepsLogWriter(version int) *DepsLogWriter {
	w := &DepsLogWriter{
		version: version,
		pathIdx: make(map[string]int),
	}
	w.buf.WriteString("# ninjadeps\n")
	binary.Write(&w.buf, binary.LittleEndian, int32(version))
	return w
}

// Record records deps of the output.
func (w *DepsLogWriter) Record(r DepsRecord) {
	i := w.pathID(filepath.ToSlash(r.Output))
	var ids []int
	for _, in := range r.Inputs {
		ids = append(ids, w.pathID(filepath.ToSlash(in)))
	}
	// header: size, high bit set.
	// array of 4-byte integers
	//   output path id
	//   output path mtime (v3: seconds, v4: nanoseconds in low, high)
	//   input path id
	size := 4 + 4 + 4*len(ids)
	if w.version >= 4 {
		size += 4
	}
	header := uint32(size) | (1 << 31)
	binary.Write(&w.buf, binary.LittleEndian, header)
	binary.Write(&w.buf, binary.LittleEndian, int32(i))
	if w.version >= 4 {
		ns := uint64(r.Mtime.UnixNano())
		binary.Write(&w.buf, binary.LittleEndian, uint32(ns))
		binary.Write(&w.buf, binary.LittleEndian, uint32(ns>>32))
	} else {
		binary.Write(&w.buf, binary.LittleEndian, int32(r.Mtime.Unix()))
	}
	for _, id := range ids {
		binary.Write(&w.buf, binary.LittleEndian, int32(id))
	}
}

// pathID returns the id of the path, writing a path record if it is new.
func (w *DepsLogWriter) pathID(path string) int {
	if i, ok := w.pathIdx[path]; ok {
		return i
	}
	i := len(w.pathIdx)
	w.pathIdx[path] = i
	pathSize := len(path)
	padding := (4 - pathSize%4) % 4 // Pad path to 4 byte boundary.
	size := pathSize + padding + 4
	// header: size
	// path record
	//  string name of the path
	//  up to 3 padding bytes to align on 4 byte boundaries
	//  one's complement of the expected index of the record
	binary.Write(&w.buf, binary.LittleEndian, int32(size))
	w.buf.WriteString(path)
	w.buf.Write(make([]byte, padding))
	binary.Write(&w.buf, binary.LittleEndian, int32(^i))
	return i
}

// Bytes returns the contents of the deps log.
func (w *DepsLogWriter) Bytes() []byte {
	return w.buf.Bytes()
}

// WriteDepsLog writes a deps log file in version 4 with records,
// creating its directory if needed.
func WriteDepsLog(fname string, records ...DepsRecord) error {
	w := NewDepsLogWriter(4)
	for _, r := range records {
		w.Record(r)
	}
	err := os.MkdirAll(filepath.Dir(fname), 0755)
	if err != nil {
		return fmt.Errorf("write deps log %s: %w", fname, err)
	}
	err = os.WriteFile(fname, w.Bytes(), 0644)
	if err != nil {
		return fmt.Errorf("write deps log %s: %w", fname, err)
	}
	return nil
}
