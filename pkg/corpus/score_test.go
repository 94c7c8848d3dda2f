// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package corpus

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreOrdering(t *testing.T) {
	lowest := MinScore()
	better := []Score{
		{NewCoverage: true, NegSize: lowest.NegSize},
		{DerivedFromSeed: true, NegSize: lowest.NegSize},
		{NegSize: -4},
		{NegSize: lowest.NegSize, Name: "foo"},
	}
	for _, s := range better {
		assert.Equal(t, 1, Compare(s, lowest), "%+v", s)
		assert.Equal(t, -1, Compare(lowest, s), "%+v", s)
	}
	assert.Equal(t, 0, Compare(lowest, MinScore()))

	// Priorities: coverage > seed > size > name.
	assert.Equal(t, 1, Compare(Score{NewCoverage: true, NegSize: -1000}, Score{DerivedFromSeed: true, NegSize: -1}))
	assert.Equal(t, 1, Compare(Score{DerivedFromSeed: true, NegSize: -1000}, Score{NegSize: -1}))
	assert.Equal(t, 1, Compare(Score{NegSize: -1, Name: "a"}, Score{NegSize: -2, Name: "b"}))
	assert.Equal(t, 1, Compare(Score{NegSize: -1, Name: "b"}, Score{NegSize: -1, Name: "a"}))
}

func TestCompareIsTotalOrder(t *testing.T) {
	scores := []Score{
		MinScore(),
		{NegSize: -10, Name: "a"},
		{NegSize: -10, Name: "b"},
		{NegSize: 0, Name: "a"},
		{DerivedFromSeed: true, NegSize: -100, Name: "c"},
		{NewCoverage: true, NegSize: -100, Name: "d"},
		{NewCoverage: true, DerivedFromSeed: true, NegSize: -1000, Name: "e"},
	}
	for _, a := range scores {
		for _, b := range scores {
			assert.Equal(t, -Compare(b, a), Compare(a, b), "antisymmetry %+v %+v", a, b)
			for _, c := range scores {
				if Compare(a, b) > 0 && Compare(b, c) > 0 {
					assert.Equal(t, 1, Compare(a, c), "transitivity %+v %+v %+v", a, b, c)
				}
			}
		}
	}
	var shuffled []Score
	for _, i := range []int{3, 0, 6, 1, 5, 2, 4} {
		shuffled = append(shuffled, scores[i])
	}
	sort.Slice(shuffled, func(i, j int) bool { return Compare(shuffled[i], shuffled[j]) < 0 })
	assert.Equal(t, scores, shuffled)
}

func writeFile(t *testing.T, dir, name string, size int) string {
	file := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(file, make([]byte, size), 0644))
	return file
}

func TestScoreFile(t *testing.T) {
	dir := t.TempDir()
	s := ScoreFile(writeFile(t, dir, "id:000001,src:000000,time:10,op:havoc,rep:2,+cov", 100))
	assert.Equal(t, Score{NewCoverage: true, NegSize: -100, Name: "id:000001,src:000000,time:10,op:havoc,rep:2,+cov"}, s)
	s = ScoreFile(writeFile(t, dir, "id:000000,time:0,orig:seed", 3))
	assert.Equal(t, Score{DerivedFromSeed: true, NegSize: -3, Name: "id:000000,time:0,orig:seed"}, s)
	assert.Equal(t, MinScore(), ScoreFile(filepath.Join(dir, "vanished")))

	// An unreadable file sorts below an empty one.
	empty := ScoreFile(writeFile(t, dir, "id:000002", 0))
	assert.Equal(t, 1, Compare(empty, ScoreFile(filepath.Join(dir, "vanished"))))
}

func TestBest(t *testing.T) {
	dir := t.TempDir()
	_, ok := Best(nil)
	assert.False(t, ok)

	big := writeFile(t, dir, "id:000000,src:000000,+cov", 100)
	small := writeFile(t, dir, "id:000001,src:000000", 10)
	best, ok := Best([]string{small, big})
	assert.True(t, ok)
	assert.Equal(t, big, best, "new coverage beats size")

	smaller := writeFile(t, dir, "id:000002,src:000000", 5)
	best, _ = Best([]string{small, smaller})
	assert.Equal(t, smaller, best)

	vanished := filepath.Join(dir, "id:000003")
	best, _ = Best([]string{vanished, small})
	assert.Equal(t, small, best)
	best, ok = Best([]string{vanished})
	assert.True(t, ok)
	assert.Equal(t, vanished, best, "a lone candidate is returned even if it can't be scored")
}
