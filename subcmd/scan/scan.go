// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package scan provides scan subcommand to find missing deps.
package scan

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/maruel/subcommands"
	"go.chromium.org/luci/common/cli"
	"golang.org/x/sync/errgroup"

	"go.chromium.org/infra/build/missingdeps/build/missingdeps"
	"go.chromium.org/infra/build/missingdeps/toolsupport/ninjautil"
	"go.chromium.org/infra/build/missingdeps/ui"
)

const usage = `find missing dependencies on generated files

 $ missingdeps scan -C <dir> [<targets>...]

scans the build graph of <targets> (default targets if none) after
a build, and reports inputs recorded in deps log or depfile that are
generated by a step without a non-depfile dependency path to it.

exit status is 0 if no missing deps found, 3 if any missing deps
found, 1 on errors.
`

// Exit codes of scan.
const (
	ExitOK          = 0
	ExitError       = 1
	ExitUsage       = 2
	ExitMissingDeps = 3
)

// Cmd returns the Command for the `scan` subcommand provided by this package.
func Cmd() *subcommands.Command {
	return &subcommands.Command{
		UsageLine: "scan [-C <dir>] [<targets>...]",
		ShortDesc: "find missing dependencies on generated files",
		LongDesc:  usage,
		CommandRun: func() subcommands.CommandRun {
			c := &run{}
			c.init()
			return c
		},
	}
}

type run struct {
	subcommands.CommandRunBase

	dir         string
	fname       string
	depsLogFile string
	jsonFile    string
	verbose     bool
}

func (c *run) init() {
	c.Flags.StringVar(&c.dir, "C", ".", "ninja running directory")
	c.Flags.StringVar(&c.fname, "f", "build.ninja", "input build filename (relative to -C)")
	c.Flags.StringVar(&c.depsLogFile, "deps_log", "", "deps log filename (relative to -C). default: $builddir/.ninja_deps")
	c.Flags.StringVar(&c.jsonFile, "json", "", "write missing deps as JSON to the file (relative to the current directory, not -C)")
	c.Flags.BoolVar(&c.verbose, "v", false, "verbose logging")
}

func (c *run) Run(a subcommands.Application, args []string, env subcommands.Env) int {
	ctx := cli.GetContext(a, c, env)
	if c.verbose {
		log.SetLevel(log.DebugLevel)
	}
	ui.Init()
	defer ui.Restore()

	started := time.Now()
	hadMissingDeps, err := c.run(ctx, args)
	if err != nil {
		switch {
		case errors.Is(err, flag.ErrHelp):
			fmt.Fprintf(os.Stderr, "%v\n%s\n", err, usage)
			return ExitUsage
		default:
			fmt.Fprintf(os.Stderr, "%s: %v\n", ui.SGR(ui.Red, "Error"), err)
			return ExitError
		}
	}
	if hadMissingDeps {
		fmt.Fprintf(os.Stderr, "%6s %s\n", ui.FormatDuration(time.Since(started)), ui.SGR(ui.Red, "missing deps found"))
		return ExitMissingDeps
	}
	fmt.Fprintf(os.Stderr, "%6s %s\n", ui.FormatDuration(time.Since(started)), ui.SGR(ui.Green, "no missing deps"))
	return ExitOK
}

func (c *run) run(ctx context.Context, args []string) (bool, error) {
	if c.fname == "" {
		return false, fmt.Errorf("no build filename: %w", flag.ErrHelp)
	}
	jsonFile := c.jsonFile
	if jsonFile != "" {
		var err error
		jsonFile, err = filepath.Abs(jsonFile)
		if err != nil {
			return false, err
		}
	}
	err := os.Chdir(c.dir)
	if err != nil {
		return false, err
	}
	wd, err := os.Getwd()
	if err != nil {
		return false, err
	}

	state, depsLog, err := c.load(ctx)
	if err != nil {
		return false, err
	}
	roots, err := state.Targets(args)
	if err != nil {
		return false, err
	}

	var collector missingdeps.Collector
	w := bufio.NewWriter(os.Stdout)
	delegate := missingdeps.Delegates{missingdeps.Printer{W: w}, &collector}
	scanner := missingdeps.New(state, delegate, depsLog, os.DirFS(wd))
	for _, root := range roots {
		select {
		case <-ctx.Done():
			return false, fmt.Errorf("interrupted: %w", context.Cause(ctx))
		default:
		}
		scanner.ProcessNode(ctx, root)
	}
	scanner.PrintStats(w)
	err = w.Flush()
	if err != nil {
		return false, err
	}
	log.Debugf("stats %+v", scanner.Stats())
	if jsonFile != "" {
		err = writeJSON(jsonFile, collector.Deps)
		if err != nil {
			return false, err
		}
	}
	return scanner.HadMissingDeps(), nil
}

// load loads the manifest and deps log.
// If the deps log is given by flag, it is loaded concurrently with
// the manifest. Otherwise, it is loaded from $builddir after the
// manifest is loaded.
func (c *run) load(ctx context.Context) (*ninjautil.State, *ninjautil.DepsLog, error) {
	state := ninjautil.NewState()
	var depsLog *ninjautil.DepsLog
	spin := ui.NewSpinner()
	spin.Start("loading %s", c.fname)
	eg, gctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		p := ninjautil.NewManifestParser(state)
		return p.Load(gctx, c.fname)
	})
	if c.depsLogFile != "" {
		eg.Go(func() error {
			var err error
			depsLog, err = ninjautil.NewDepsLog(gctx, c.depsLogFile)
			return err
		})
	}
	err := eg.Wait()
	if err != nil {
		spin.Stop(err)
		return nil, nil, err
	}
	if depsLog == nil {
		depsLog, err = ninjautil.NewDepsLog(ctx, state.DepsLogPath())
		if err != nil {
			spin.Stop(err)
			return nil, nil, err
		}
	}
	spin.Done("nodes=%d edges=%d", state.NumNodes(), state.NumEdges())
	return state, depsLog, nil
}

func writeJSON(fname string, deps []missingdeps.MissingDep) error {
	if deps == nil {
		deps = []missingdeps.MissingDep{}
	}
	buf, err := json.MarshalIndent(deps, "", " ")
	if err != nil {
		return err
	}
	buf = append(buf, '\n')
	err = os.WriteFile(fname, buf, 0644)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", fname, err)
	}
	return nil
}
