// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package ninjautil

import "testing"

func TestCanonicalizePath(t *testing.T) {
	for _, tc := range []struct {
		path string
		want string
	}{
		{path: "", want: ""},
		{path: "foo.h", want: "foo.h"},
		{path: "./foo.h", want: "foo.h"},
		{path: "./foo/./bar.h", want: "foo/bar.h"},
		{path: "./x/foo/../bar.h", want: "x/bar.h"},
		{path: "./x/foo/../../bar.h", want: "bar.h"},
		{path: "foo//bar", want: "foo/bar"},
		{path: "foo//.//..///bar", want: "bar"},
		{path: "./x/../foo/../../bar.h", want: "../bar.h"},
		{path: "../../foo/foo.cc", want: "../../foo/foo.cc"},
		{path: "foo/./.", want: "foo"},
		{path: "foo/bar/..", want: "foo"},
		{path: "foo/.hidden_bar", want: "foo/.hidden_bar"},
		{path: "/foo", want: "/foo"},
		{path: "//foo", want: "/foo"},
		{path: "/", want: "/"},
		{path: "..", want: ".."},
		{path: "../", want: ".."},
		{path: "./", want: "."},
		{path: "foo/..", want: "."},
		{path: "gen/", want: "gen"},
	} {
		got := CanonicalizePath(tc.path)
		if got != tc.want {
			t.Errorf("CanonicalizePath(%q)=%q; want %q", tc.path, got, tc.want)
		}
	}
}
