// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package blocksort computes the Burrows-Wheeler permutation of a block:
// the sorted order of all rotations of the block's bytes. Two algorithms
// share the work. The main sort radix-buckets byte pairs and quicksorts
// the buckets with a comparator that walks the suffixes, falling back to
// a coarse per-position rank ("quadrant") when long prefixes tie. Highly
// repetitive blocks defeat that comparator; a budget counter detects the
// pathology and the whole block is redone with a Manber-Myers doubling
// sort that is immune to repetition.
package blocksort

import (
	"github.com/cosnicolaou/libbzip2/internal/assert"
	"github.com/cosnicolaou/libbzip2/internal/verbose"
)

const (
	radix = 2
	qSort = 12
	shell = 18

	// Overshoot is the padding appended past the block so the main
	// comparator can read ahead without bounds checks; the first
	// Overshoot bytes of the block are replicated there.
	Overshoot = radix + qSort + shell + 2

	// FtabLen is the size of the byte-pair frequency table. The extra
	// entry makes ftab[b+1]-ftab[b] a valid bucket width for every b.
	FtabLen = 65537
)

// Sort fills ptr with the BWT permutation of block[:nblock] and returns
// the index of the unrotated block in that ordering. block must have
// room for nblock+Overshoot bytes (the tail is clobbered), quadrant for
// nblock+Overshoot halves and ftab for FtabLen words; both are scratch.
// workFactor tunes how long the main sort persists before handing a
// repetitive block to the fallback.
func Sort(ptr []uint32, block []byte, quadrant []uint16, ftab []uint32, nblock, verbosity, workFactor int) int {
	if nblock < 10000 {
		fallbackSort(ptr, block, ftab, nblock, verbosity)
	} else {
		// (wfact-1) / 3 puts the default-factor-30 transition point at
		// very roughly the same place as with v0.1 and v0.9.0. Not that
		// it particularly matters any more, since the resulting
		// compressed stream is the same regardless of which sort is
		// used.
		wfact := workFactor
		if wfact < 1 {
			wfact = 1
		}
		if wfact > 100 {
			wfact = 100
		}
		budgetInit := nblock * ((wfact - 1) / 3)
		budget := budgetInit

		mainSort(ptr, block, quadrant, ftab, nblock, verbosity, &budget)
		verbose.F(verbosity, 3, "      %d work, %d block, ratio %5.2f\n",
			budgetInit-budget, nblock,
			float64(budgetInit-budget)/float64(maxInt(nblock, 1)))
		if budget < 0 {
			verbose.F(verbosity, 2, "    too repetitive; using fallback sorting algorithm\n")
			fallbackSort(ptr, block, ftab, nblock, verbosity)
		}
	}

	origPtr := -1
	for i := 0; i < nblock; i++ {
		if ptr[i] == 0 {
			origPtr = i
			break
		}
	}
	assert.H(origPtr != -1, 1003)
	return origPtr
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
