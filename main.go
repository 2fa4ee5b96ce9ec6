// Copyright 2023 The Chromium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Missingdeps finds missing dependencies on generated files in a ninja build.
package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/maruel/subcommands"
	"go.chromium.org/luci/common/cli"
	"go.chromium.org/luci/common/system/signals"

	"go.chromium.org/infra/build/missingdeps/subcmd/deps"
	"go.chromium.org/infra/build/missingdeps/subcmd/help"
	"go.chromium.org/infra/build/missingdeps/subcmd/scan"
	"go.chromium.org/infra/build/missingdeps/subcmd/version"
)

const versionStr = "missingdeps v1.0.0"

func getApplication() *cli.Application {
	return &cli.Application{
		Name:  "missingdeps",
		Title: "Find missing dependencies on generated files in a ninja build",
		Context: func(ctx context.Context) context.Context {
			ctx, cancel := context.WithCancel(ctx)
			signals.HandleInterrupt(cancel)
			return ctx
		},
		Commands: []*subcommands.Command{
			scan.Cmd(),
			deps.Cmd(),
			help.Cmd(),
			version.Cmd(versionStr),
		},
	}
}

func main() {
	os.Exit(missingdepsMain(os.Args[1:]))
}

func missingdepsMain(args []string) int {
	// stdout carries the report, so logs go to stderr.
	log.SetOutput(os.Stderr)
	log.SetLevel(log.WarnLevel)

	// Print a stack trace when a panic occurs.
	defer func() {
		if r := recover(); r != nil {
			const size = 64 << 10
			buf := make([]byte, size)
			buf = buf[:runtime.Stack(buf, false)]
			log.Fatalf("panic: %v\n%s", r, buf)
		}
	}()

	// Print build information to the log.
	buildinfo, ok := debug.ReadBuildInfo()
	if ok {
		log.Debugf("main module: %s %s", moduleInfo(&buildinfo.Main), vcsInfo(buildinfo))
	}
	return subcommands.Run(getApplication(), args)
}

func moduleInfo(m *debug.Module) string {
	if m == nil {
		return "<nil>"
	}
	return fmt.Sprintf("path:%s version:%s sum:%s replace:%s", m.Path, m.Version, m.Sum, moduleInfo(m.Replace))
}

func vcsInfo(buildinfo *debug.BuildInfo) string {
	m := make(map[string]string)
	for _, bs := range buildinfo.Settings {
		if strings.HasPrefix(bs.Key, "vcs.") {
			m[bs.Key] = bs.Value
		}
	}
	return fmt.Sprintf("vcs[revision=%s time=%s modified=%s]", m["vcs.revision"], m["vcs.time"], m["vcs.modified"])
}
