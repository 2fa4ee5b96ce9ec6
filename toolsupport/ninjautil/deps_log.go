// Copyright 2023 The Chromium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package ninjautil

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// ErrNoDepsLog is returned by DepsLog.Get when the output has no deps record.
var ErrNoDepsLog = errors.New("no deps log entry")

// DepsLog is a read-only in-memory representation of ninja's depslog.
// Format:
// https://github.com/ninja-build/ninja/blob/87111bff382655075f2577c591745a335f0103c7/src/deps_log.h
type DepsLog struct {
	fname   string
	version int

	mu      sync.Mutex
	paths   []string
	pathIdx map[string]int
	deps    []*depsRecord
}

// DepsLogSignature is the first line of a deps log file.
const DepsLogSignature = "# ninjadeps\n"

const (
	// DepsLogVersion3 records mtime in seconds as int32.
	DepsLogVersion3 = 3
	// DepsLogVersion4 records mtime in nanoseconds as two uint32s.
	DepsLogVersion4 = 4
)

// MaxDepsLogRecordSize is the max size of a record. (512kB)
const MaxDepsLogRecordSize = 1<<19 - 1

// record length.
// high bit indicates record type.
//
//	unset - path record
//	set   - deps record
type recordHeader uint32

func (h recordHeader) isDepsRecord() bool {
	return h&(1<<31) != 0
}

func (h recordHeader) recordSize() int {
	return int(h & 0x7FFFFFFF)
}

type depsRecord struct {
	mtime  time.Time
	inputs []int
}

// NewDepsLog reads a deps log.
// If fname doesn't exist, it returns an empty deps log.
// If there are read errors in records, returns a deps log truncated at the
// first broken record, like ninja does.
func NewDepsLog(ctx context.Context, fname string) (*DepsLog, error) {
	if fname == "" {
		return nil, errors.New("no ninja_deps")
	}
	d := &DepsLog{fname: fname, pathIdx: make(map[string]int)}
	buf, err := os.ReadFile(fname)
	if errors.Is(err, os.ErrNotExist) {
		log.Infof("ninja_deps %s doesn't exist", fname)
		return d, nil
	}
	if err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(buf, []byte(DepsLogSignature)) {
		return nil, fmt.Errorf("%s: wrong signature", fname)
	}
	buf = buf[len(DepsLogSignature):]
	if len(buf) < 4 {
		return nil, fmt.Errorf("%s: no version", fname)
	}
	d.version = int(int32(binary.LittleEndian.Uint32(buf)))
	switch d.version {
	case DepsLogVersion3, DepsLogVersion4:
	default:
		return nil, fmt.Errorf("%s: unsupported version %d", fname, d.version)
	}
	offset := len(DepsLogSignature) + 4
	err = d.load(buf[4:])
	if err != nil {
		log.Warnf("ninja_deps %s truncated: %v", fname, err)
	}
	log.Debugf("ninja_deps %s version=%d offset=%d => paths=%d, deps=%d", fname, d.version, offset, len(d.paths), len(d.deps))
	return d, nil
}

// load reads records from buf until the end or the first broken record.
func (d *DepsLog) load(buf []byte) error {
	offset := 0
	for offset < len(buf) {
		if len(buf)-offset < 4 {
			return fmt.Errorf("short header at %d", offset)
		}
		header := recordHeader(binary.LittleEndian.Uint32(buf[offset:]))
		size := header.recordSize()
		if size > MaxDepsLogRecordSize {
			return fmt.Errorf("too large record %d at %d", size, offset)
		}
		if size%4 != 0 {
			return fmt.Errorf("unaligned record %d at %d", size, offset)
		}
		if len(buf)-offset-4 < size {
			return fmt.Errorf("short record %d at %d", size, offset)
		}
		rec := buf[offset+4 : offset+4+size]
		var err error
		if header.isDepsRecord() {
			err = d.loadDeps(rec)
		} else {
			err = d.loadPath(rec)
		}
		if err != nil {
			return fmt.Errorf("record at %d: %w", offset, err)
		}
		offset += 4 + size
	}
	return nil
}

// loadDeps reads a dependency record.
// array of 4-byte integers
//
//	output path id
//	output path mtime (v3: int32 seconds, v4: low, high uint32 nanoseconds)
//	input path id, ...
func (d *DepsLog) loadDeps(rec []byte) error {
	hdr := 8
	if d.version == DepsLogVersion4 {
		hdr = 12
	}
	if len(rec) < hdr {
		return fmt.Errorf("too short deps record %d", len(rec))
	}
	outID := int(int32(binary.LittleEndian.Uint32(rec)))
	if outID < 0 || outID >= len(d.paths) {
		return fmt.Errorf("bad output id=%d (paths=%d)", outID, len(d.paths))
	}
	var mtime time.Time
	switch d.version {
	case DepsLogVersion3:
		mtime = time.Unix(int64(int32(binary.LittleEndian.Uint32(rec[4:]))), 0)
	default:
		lo := uint64(binary.LittleEndian.Uint32(rec[4:]))
		hi := uint64(binary.LittleEndian.Uint32(rec[8:]))
		mtime = time.Unix(0, int64(hi<<32|lo))
	}
	rec = rec[hdr:]
	deps := &depsRecord{mtime: mtime, inputs: make([]int, 0, len(rec)/4)}
	for i := 0; i < len(rec); i += 4 {
		id := int(int32(binary.LittleEndian.Uint32(rec[i:])))
		if id < 0 || id >= len(d.paths) {
			return fmt.Errorf("bad path id=%d (paths=%d)", id, len(d.paths))
		}
		deps.inputs = append(deps.inputs, id)
	}
	d.update(outID, deps)
	return nil
}

// loadPath reads a path record.
//
//	string name of the path
//	up to 3 padding bytes to align on 4 byte boundaries
//	one's complement of the expected index of the record (4 bytes)
func (d *DepsLog) loadPath(rec []byte) error {
	if len(rec) < 4 {
		return fmt.Errorf("too short path record %d", len(rec))
	}
	pathSize := len(rec) - 4
	for i := 0; i < 3 && pathSize > 0 && rec[pathSize-1] == 0; i++ {
		pathSize--
	}
	checksum := int32(binary.LittleEndian.Uint32(rec[len(rec)-4:]))
	if expectedID := ^checksum; int(expectedID) != len(d.paths) {
		return fmt.Errorf("failed to match checksum %x -> %d != %d", uint32(checksum), expectedID, len(d.paths))
	}
	path := string(rec[:pathSize])
	d.pathIdx[path] = len(d.paths)
	d.paths = append(d.paths, path)
	return nil
}

// update sets the deps of the output. later records override earlier ones.
func (d *DepsLog) update(outID int, deps *depsRecord) {
	if outID >= len(d.deps) {
		if outID < cap(d.deps) {
			d.deps = d.deps[:outID+1]
		} else {
			// manually manage resizing, append would allocate ~1.5x what is needed
			// this is problematic because we need to handle lots of filenames
			newCap := ((outID + 100) / 100) * 100
			newDeps := make([]*depsRecord, outID+1, newCap)
			copy(newDeps, d.deps)
			d.deps = newDeps
		}
	}
	d.deps[outID] = deps
}

// Version returns the format version of the deps log.
func (d *DepsLog) Version() int {
	if d == nil {
		return 0
	}
	return d.version
}

// Get returns deps log for the output.
// It returns ErrNoDepsLog if the output has no deps record.
func (d *DepsLog) Get(ctx context.Context, output string) ([]string, time.Time, error) {
	var mtime time.Time
	if d == nil {
		return nil, mtime, errors.New("no deps log")
	}
	output = filepath.ToSlash(output)
	d.mu.Lock()
	defer d.mu.Unlock()
	i, found := d.pathIdx[output]
	if !found || i >= len(d.deps) || d.deps[i] == nil {
		return nil, mtime, ErrNoDepsLog
	}
	deps := d.deps[i]
	inputs := make([]string, 0, len(deps.inputs))
	for _, id := range deps.inputs {
		inputs = append(inputs, d.paths[id])
	}
	return inputs, deps.mtime, nil
}

// RecordedTargets returns outputs that have deps records, sorted.
func (d *DepsLog) RecordedTargets() []string {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	var targets []string
	for i, deps := range d.deps {
		if deps == nil {
			continue
		}
		targets = append(targets, d.paths[i])
	}
	sort.Strings(targets)
	return targets
}
