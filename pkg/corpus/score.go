// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package corpus

import (
	"cmp"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/symcc/syz-symcc/pkg/log"
)

const (
	// AFL appends this to names of inputs that hit new edges (not just new hit counts).
	newCoverageSuffix = "+cov"
	// AFL names inputs derived directly from seeds "id:NNNNNN,orig:name".
	seedMarker = "orig:"
)

// Score orders fuzzer inputs by how promising they are for symbolic execution.
// Fields are listed in the order of their priority.
type Score struct {
	NewCoverage     bool
	DerivedFromSeed bool
	// NegSize is the negated file size: smaller files are cheaper to execute symbolically.
	NegSize int64
	// Name breaks exact ties deterministically.
	Name string
}

// MinScore is lower than the score of any existing file.
func MinScore() Score {
	return Score{NegSize: math.MinInt64}
}

// ScoreFile scores the file at path. Files that can't be stat'ed get MinScore.
func ScoreFile(path string) Score {
	st, err := os.Stat(path)
	if err != nil {
		// Has the file disappeared?
		log.Warnf("failed to score test case %v: %v", path, err)
		return MinScore()
	}
	name := filepath.Base(path)
	return Score{
		NewCoverage:     strings.HasSuffix(name, newCoverageSuffix),
		DerivedFromSeed: strings.Contains(name, seedMarker),
		NegSize:         -st.Size(),
		Name:            name,
	}
}

// Compare returns -1, 0 or +1 if a is worse than, equal to or better than b.
func Compare(a, b Score) int {
	if c := compareBool(a.NewCoverage, b.NewCoverage); c != 0 {
		return c
	}
	if c := compareBool(a.DerivedFromSeed, b.DerivedFromSeed); c != 0 {
		return c
	}
	if c := cmp.Compare(a.NegSize, b.NegSize); c != 0 {
		return c
	}
	return cmp.Compare(a.Name, b.Name)
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case a:
		return 1
	default:
		return -1
	}
}

// Best returns the highest scored of the files, or false if there are none.
func Best(files []string) (string, bool) {
	best, bestScore := "", MinScore()
	for i, file := range files {
		score := ScoreFile(file)
		if i == 0 || Compare(score, bestScore) > 0 {
			best, bestScore = file, score
		}
	}
	return best, len(files) != 0
}
