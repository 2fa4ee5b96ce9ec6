// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package deps provides deps subcommand to show the deps log.
package deps

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/maruel/subcommands"
	"go.chromium.org/luci/common/cli"

	"go.chromium.org/infra/build/missingdeps/toolsupport/ninjautil"
)

const depsUsage = `show dependencies stored in the deps log

 $ missingdeps deps -C <dir> [<targets>]

print dependencies for targets stored in the deps log.

----
<target>: #deps <num>, deps mtime <mtime> ([STALE|VALID|UNKNOWN])
    <deps>
    ...

----
`

// Cmd returns the Command for the `deps` subcommand provided by this package.
func Cmd() *subcommands.Command {
	return &subcommands.Command{
		UsageLine: "deps [-C <dir>] [<targets>...]",
		ShortDesc: "show dependencies stored in the deps log",
		LongDesc:  depsUsage,
		CommandRun: func() subcommands.CommandRun {
			c := &depsRun{}
			c.init()
			return c
		},
	}
}

type depsRun struct {
	subcommands.CommandRunBase

	dir         string
	fname       string
	depsLogFile string
	raw         bool
}

func (c *depsRun) init() {
	c.Flags.StringVar(&c.dir, "C", ".", "ninja running directory to find deps log")
	c.Flags.StringVar(&c.fname, "f", "build.ninja", "input build filename (relative to -C)")
	c.Flags.StringVar(&c.depsLogFile, "deps_log", "", "deps log filename (relative to -C). default: $builddir/.ninja_deps, or .ninja_deps with -raw")
	c.Flags.BoolVar(&c.raw, "raw", false, "just check deps log. (no build.ninja needed)")
}

func (c *depsRun) Run(a subcommands.Application, args []string, env subcommands.Env) int {
	ctx := cli.GetContext(a, c, env)
	err := c.run(ctx, os.Stdout, args)
	if err != nil {
		switch {
		case errors.Is(err, flag.ErrHelp):
			fmt.Fprintf(os.Stderr, "%v\n%s\n", err, depsUsage)
		default:
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

func (c *depsRun) run(ctx context.Context, out io.Writer, args []string) error {
	err := os.Chdir(c.dir)
	if err != nil {
		return err
	}
	var state *ninjautil.State
	depsLogFile := c.depsLogFile
	if !c.raw {
		state = ninjautil.NewState()
		p := ninjautil.NewManifestParser(state)
		err = p.Load(ctx, c.fname)
		if err != nil {
			return err
		}
		if depsLogFile == "" {
			depsLogFile = state.DepsLogPath()
		}
	}
	if depsLogFile == "" {
		depsLogFile = ".ninja_deps"
	}
	depsLog, err := ninjautil.NewDepsLog(ctx, depsLogFile)
	if err != nil {
		return err
	}

	targets := args
	if c.raw {
		if len(targets) == 0 {
			targets = depsLog.RecordedTargets()
		}
	} else {
		targets, err = depsTargets(state, args)
		if err != nil {
			return err
		}
	}
	w := bufio.NewWriter(out)
	for _, target := range targets {
		deps, depsTime, err := depsLog.Get(ctx, target)
		if err != nil {
			if errors.Is(err, ninjautil.ErrNoDepsLog) {
				continue
			}
			fmt.Fprintf(w, "%s: deps log error: %v\n", target, err)
			continue
		}
		state := "UNKNOWN"
		if !c.raw {
			state = "STALE"
			fi, err := os.Stat(filepath.FromSlash(target))
			if err != nil {
				// log and ignore stat error
				log.Warnf("%v", err)
			} else if !fi.ModTime().After(depsTime) {
				state = "VALID"
			}
		}
		fmt.Fprintf(w, "%s: #deps %d, deps mtime %d (%s)\n",
			target, len(deps), depsTime.UnixNano(), state)
		for _, d := range deps {
			fmt.Fprintf(w, "    %s\n", d)
		}
		fmt.Fprintln(w)
	}
	return w.Flush()
}

func depsTargets(state *ninjautil.State, args []string) ([]string, error) {
	var nodes []ninjautil.NodeID
	if len(args) > 0 {
		var err error
		nodes, err = state.Targets(args)
		if err != nil {
			return nil, err
		}
	} else {
		// for empty args, not use "defaults", but use all nodes.
		nodes = state.AllNodes()
	}
	targets := make([]string, 0, len(nodes))
	for _, id := range nodes {
		targets = append(targets, state.Node(id).Path())
	}
	if len(args) == 0 {
		slices.SortFunc(targets, strings.Compare)
	}
	return targets, nil
}
