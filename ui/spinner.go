// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package ui

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

// DurationThreshold is the duration below which a finished spinner is
// erased rather than reported.
const DurationThreshold = 1 * time.Second

// Spinner shows progress of a long operation.
type Spinner interface {
	// Start starts the spinner with the specified formatted string.
	Start(format string, args ...any)
	// Stop stops the spinner, outputting an error if provided.
	Stop(err error)
	// Done finishes the spinner with message.
	Done(format string, args ...any)
}

// NewSpinner returns a spinner on stderr if it is a terminal,
// or a spinner reporting to the log otherwise.
func NewSpinner() Spinner {
	if IsTerminal() {
		return &termSpinner{width: width()}
	}
	return &logSpinner{}
}

type termSpinner struct {
	quit, done chan struct{}
	started    time.Time
	n          int
	msg        string
	width      int
}

func (s *termSpinner) Start(format string, args ...any) {
	s.started = time.Now()
	s.msg = fmt.Sprintf(format, args...)
	if s.width > 20 {
		s.msg = elideMiddle(s.msg, s.width-12)
	}
	fmt.Fprintf(os.Stderr, "%s... ", s.msg)
	s.quit = make(chan struct{})
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		for {
			select {
			case <-s.quit:
				return
			case <-time.After(1 * time.Second):
				const chars = `/-\|`
				fmt.Fprintf(os.Stderr, "\b%c", chars[s.n])
				s.n++
				if s.n >= len(chars) {
					s.n = 0
				}
			}
		}
	}()
}

func (s *termSpinner) Stop(err error) {
	close(s.quit)
	<-s.done
	d := time.Since(s.started)
	if err != nil {
		fmt.Fprintf(os.Stderr, "\r\033[K%6s %s failed %v\n", FormatDuration(d), s.msg, err)
		return
	}
	if d < DurationThreshold {
		// omit if duration is too short
		fmt.Fprintf(os.Stderr, "\r\033[K")
		return
	}
	fmt.Fprintf(os.Stderr, "\r\033[K%6s %s\n", FormatDuration(d), s.msg)
}

func (s *termSpinner) Done(format string, args ...any) {
	close(s.quit)
	<-s.done
	msg := fmt.Sprintf(format, args...)
	d := time.Since(s.started)
	fmt.Fprintf(os.Stderr, "\r\033[K%6s %s %s\n", FormatDuration(d), s.msg, msg)
}

// logSpinner reports to the log, since it can't animate.
type logSpinner struct {
	started time.Time
}

func (l *logSpinner) Start(format string, args ...any) {
	l.started = time.Now()
	log.Infof(format, args...)
}

func (l *logSpinner) Stop(err error) {
	if err != nil {
		log.Warnf("-> failed %s %v", time.Since(l.started), err)
		return
	}
	log.Infof("-> done %s", time.Since(l.started))
}

func (l *logSpinner) Done(format string, args ...any) {
	log.Infof("-> %s %s", StripANSIEscapeCodes(fmt.Sprintf(format, args...)), time.Since(l.started))
}
