// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package ninjautil

// editDistance returns Levenshtein distance between s1 and s2.
// If limit > 0 and the distance exceeds limit, it returns limit+1
// without computing the exact distance.
func editDistance(s1, s2 string, limit int) int {
	prev := make([]int, len(s2)+1)
	cur := make([]int, len(s2)+1)
	for x := range prev {
		prev[x] = x
	}
	for y := 1; y <= len(s1); y++ {
		cur[0] = y
		rowMin := cur[0]
		for x := 1; x <= len(s2); x++ {
			subst := prev[x-1]
			if s1[y-1] != s2[x-1] {
				subst++
			}
			cur[x] = min(subst, prev[x]+1, cur[x-1]+1)
			rowMin = min(rowMin, cur[x])
		}
		if limit > 0 && rowMin > limit {
			return limit + 1
		}
		prev, cur = cur, prev
	}
	d := prev[len(s2)]
	if limit > 0 && d > limit {
		return limit + 1
	}
	return d
}
