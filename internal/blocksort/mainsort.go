// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package blocksort

import (
	"github.com/cosnicolaou/libbzip2/internal/assert"
	"github.com/cosnicolaou/libbzip2/internal/verbose"
)

// setMask flags a byte-pair bucket as fully sorted. Bucket counts never
// exceed the 900k block cap so bit 21 is free for the flag.
const setMask = uint32(1) << 21
const clearMask = ^setMask

// mainGtU reports whether the rotation starting at i1 sorts after the
// one starting at i2. The first 12 bytes are compared directly; after
// that each step also consults the quadrant ranks, which resolve long
// shared prefixes without walking them, and decrements the budget so a
// hopeless comparison storm can abort the whole sort.
func mainGtU(i1, i2 uint32, block []byte, quadrant []uint16, nblock uint32, budget *int) bool {
	for k := 0; k < 12; k++ {
		c1, c2 := block[i1], block[i2]
		if c1 != c2 {
			return c1 > c2
		}
		i1++
		i2++
	}

	k := int32(nblock) + 8
	for {
		for u := 0; u < 8; u++ {
			c1, c2 := block[i1], block[i2]
			if c1 != c2 {
				return c1 > c2
			}
			s1, s2 := quadrant[i1], quadrant[i2]
			if s1 != s2 {
				return s1 > s2
			}
			i1++
			i2++
		}
		if i1 >= nblock {
			i1 -= nblock
		}
		if i2 >= nblock {
			i2 -= nblock
		}
		k -= 8
		*budget = *budget - 1
		if k < 0 {
			return false
		}
	}
}

var incs = [14]int32{1, 4, 13, 40, 121, 364, 1093, 3280,
	9841, 29524, 88573, 265720, 797161, 2391484}

// mainSimpleSort shell-sorts ptr[lo..hi] by suffix order at depth d.
func mainSimpleSort(ptr []uint32, block []byte, quadrant []uint16, nblock int, lo, hi, d int, budget *int) {
	bigN := hi - lo + 1
	if bigN < 2 {
		return
	}
	hp := 0
	for incs[hp] < int32(bigN) {
		hp++
	}
	hp--

	for ; hp >= 0; hp-- {
		h := int(incs[hp])
		i := lo + h
		for {
			// Three insertions per budget check.
			for rep := 0; rep < 3; rep++ {
				if i > hi {
					break
				}
				v := ptr[i]
				j := i
				for mainGtU(ptr[j-h]+uint32(d), v+uint32(d), block, quadrant, uint32(nblock), budget) {
					ptr[j] = ptr[j-h]
					j -= h
					if j <= lo+h-1 {
						break
					}
				}
				ptr[j] = v
				i++
			}
			if i > hi {
				break
			}
			if *budget < 0 {
				return
			}
		}
	}
}

func mmed3(a, b, c byte) byte {
	if a > b {
		a, b = b, a
	}
	if b > c {
		b = c
		if a > b {
			b = a
		}
	}
	return b
}

const (
	mainQSortSmallThresh = 20
	mainQSortDepthThresh = radix + qSort
	mainQSortStackSize   = 100
)

// mainQSort3 is a stack-driven three-way quicksort over ptr[loSt..hiSt]
// comparing block bytes at the current depth, with median-of-3 pivots.
// Equal-to-pivot entries collect at both ends of the range and are
// swapped inward once the scan meets; only the middle range descends
// with depth+1.
func mainQSort3(ptr []uint32, block []byte, quadrant []uint16, nblock int, loSt, hiSt, dSt int, budget *int) {
	var stackLo, stackHi, stackD [mainQSortStackSize]int32
	var nextLo, nextHi, nextD [3]int32

	sp := 0
	stackLo[sp] = int32(loSt)
	stackHi[sp] = int32(hiSt)
	stackD[sp] = int32(dSt)
	sp++

	for sp > 0 {
		assert.H(sp < mainQSortStackSize-2, 1001)

		sp--
		lo := int(stackLo[sp])
		hi := int(stackHi[sp])
		d := int(stackD[sp])

		if hi-lo < mainQSortSmallThresh || d > mainQSortDepthThresh {
			mainSimpleSort(ptr, block, quadrant, nblock, lo, hi, d, budget)
			if *budget < 0 {
				return
			}
			continue
		}

		med := int32(mmed3(
			block[ptr[lo]+uint32(d)],
			block[ptr[hi]+uint32(d)],
			block[ptr[(lo+hi)>>1]+uint32(d)],
		))

		ltLo, unLo := lo, lo
		gtHi, unHi := hi, hi
		for {
			for unLo <= unHi {
				n := int32(block[ptr[unLo]+uint32(d)]) - med
				if n == 0 {
					ptr[unLo], ptr[ltLo] = ptr[ltLo], ptr[unLo]
					ltLo++
					unLo++
					continue
				}
				if n > 0 {
					break
				}
				unLo++
			}
			for unLo <= unHi {
				n := int32(block[ptr[unHi]+uint32(d)]) - med
				if n == 0 {
					ptr[unHi], ptr[gtHi] = ptr[gtHi], ptr[unHi]
					gtHi--
					unHi--
					continue
				}
				if n < 0 {
					break
				}
				unHi--
			}
			if unLo > unHi {
				break
			}
			ptr[unLo], ptr[unHi] = ptr[unHi], ptr[unLo]
			unLo++
			unHi--
		}

		if gtHi < ltLo {
			// All keys equalled the pivot: nothing to partition, just
			// descend one byte deeper over the whole range.
			stackLo[sp] = int32(lo)
			stackHi[sp] = int32(hi)
			stackD[sp] = int32(d + 1)
			sp++
			continue
		}

		n := min(ltLo-lo, unLo-ltLo)
		vswap(ptr, lo, unLo-n, n)
		m := min(hi-gtHi, gtHi-unHi)
		vswap(ptr, unLo, hi-m+1, m)

		n = lo + unLo - ltLo - 1
		m = hi - (gtHi - unHi) + 1

		nextLo[0], nextHi[0], nextD[0] = int32(lo), int32(n), int32(d)
		nextLo[1], nextHi[1], nextD[1] = int32(m), int32(hi), int32(d)
		nextLo[2], nextHi[2], nextD[2] = int32(n+1), int32(m-1), int32(d+1)

		// Push the largest range first so the stack stays logarithmic.
		if nextHi[0]-nextLo[0] < nextHi[1]-nextLo[1] {
			swap3(&nextLo, &nextHi, &nextD, 0, 1)
		}
		if nextHi[1]-nextLo[1] < nextHi[2]-nextLo[2] {
			swap3(&nextLo, &nextHi, &nextD, 1, 2)
		}
		if nextHi[0]-nextLo[0] < nextHi[1]-nextLo[1] {
			swap3(&nextLo, &nextHi, &nextD, 0, 1)
		}

		for k := 0; k < 3; k++ {
			stackLo[sp] = nextLo[k]
			stackHi[sp] = nextHi[k]
			stackD[sp] = nextD[k]
			sp++
		}
	}
}

func vswap(ptr []uint32, p1, p2, n int) {
	for ; n > 0; n-- {
		ptr[p1], ptr[p2] = ptr[p2], ptr[p1]
		p1++
		p2++
	}
}

func swap3(lo, hi, d *[3]int32, i, j int) {
	lo[i], lo[j] = lo[j], lo[i]
	hi[i], hi[j] = hi[j], hi[i]
	d[i], d[j] = d[j], d[i]
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// mainSort orders ptr by full rotation order. Positions are first
// radix-placed by their leading byte pair; big buckets are then handled
// smallest first, quicksorting each small bucket not already settled.
// Once a big bucket ss is fully ordered, one scan of it settles every
// bucket (c,ss) of the not-yet-done primaries c, and the positions of ss
// gain quadrant ranks for the comparator.
func mainSort(ptr []uint32, block []byte, quadrant []uint16, ftab []uint32, nblock, verbosity int, budget *int) {
	var (
		runningOrder       [256]int32
		bigDone            [256]bool
		copyStart, copyEnd [256]int32
	)

	verbose.F(verbosity, 4, "        main sort initialise ...\n")

	for i := range ftab {
		ftab[i] = 0
	}
	j := uint32(block[0]) << 8
	for i := nblock - 1; i >= 0; i-- {
		quadrant[i] = 0
		j = j>>8 | uint32(block[i])<<8
		ftab[j]++
	}

	for i := 0; i < Overshoot; i++ {
		block[nblock+i] = block[i]
		quadrant[nblock+i] = 0
	}

	verbose.F(verbosity, 4, "        bucket sorting ...\n")
	for i := 1; i <= 65536; i++ {
		ftab[i] += ftab[i-1]
	}

	s := uint32(block[0]) << 8
	for i := nblock - 1; i >= 0; i-- {
		s = s>>8&0xff | uint32(block[i])<<8
		ftab[s]--
		ptr[ftab[s]] = uint32(i)
	}

	for i := 0; i <= 255; i++ {
		bigDone[i] = false
		runningOrder[i] = int32(i)
	}

	// Shell-sort the big buckets by ascending size so the cheap ones
	// seed the copy step for the expensive ones.
	bigFreq := func(b int32) uint32 {
		return ftab[(b+1)<<8] - ftab[b<<8]
	}
	h := 1
	for h <= 256 {
		h = 3*h + 1
	}
	for h != 1 {
		h /= 3
		for i := h; i <= 255; i++ {
			vv := runningOrder[i]
			j := i
			for bigFreq(runningOrder[j-h]) > bigFreq(vv) {
				runningOrder[j] = runningOrder[j-h]
				j -= h
				if j <= h-1 {
					break
				}
			}
			runningOrder[j] = vv
		}
	}

	numQSorted := 0
	for i := 0; i <= 255; i++ {
		ss := runningOrder[i]

		// Quicksort the small buckets (ss,j) not already settled by an
		// earlier copy step.
		for j := int32(0); j <= 255; j++ {
			if j == ss {
				continue
			}
			sb := ss<<8 + j
			if ftab[sb]&setMask == 0 {
				lo := int(ftab[sb] & clearMask)
				hi := int(ftab[sb+1]&clearMask) - 1
				if hi > lo {
					verbose.F(verbosity, 4,
						"        qsort [%#x, %#x]   done %d   this %d\n",
						ss, j, numQSorted, hi-lo+1)
					mainQSort3(ptr, block, quadrant, nblock, lo, hi, radix, budget)
					numQSorted += hi - lo + 1
					if *budget < 0 {
						return
					}
				}
			}
			ftab[sb] |= setMask
		}

		assert.H(!bigDone[ss], 1006)

		// The copy step: walk the sorted big bucket ss from both ends;
		// each position's predecessor byte c lands at the next free slot
		// of bucket (c,ss), which thereby comes out sorted too.
		for j := int32(0); j <= 255; j++ {
			copyStart[j] = int32(ftab[j<<8+ss] & clearMask)
			copyEnd[j] = int32(ftab[j<<8+ss+1]&clearMask) - 1
		}
		for j := int32(ftab[ss<<8] & clearMask); j < copyStart[ss]; j++ {
			k := int32(ptr[j]) - 1
			if k < 0 {
				k += int32(nblock)
			}
			c1 := block[k]
			if !bigDone[c1] {
				ptr[copyStart[c1]] = uint32(k)
				copyStart[c1]++
			}
		}
		for j := int32(ftab[(ss+1)<<8]&clearMask) - 1; j > copyEnd[ss]; j-- {
			k := int32(ptr[j]) - 1
			if k < 0 {
				k += int32(nblock)
			}
			c1 := block[k]
			if !bigDone[c1] {
				ptr[copyEnd[c1]] = uint32(k)
				copyEnd[c1]--
			}
		}

		// The two scans must meet exactly, except in the extremely rare
		// case that the block consists of a single repeated byte, when
		// bucket (ss,ss) is the whole block. Missing in 1.0.0/1.0.1;
		// demonstrated by roughly 48.5 million copies of byte 251.
		assert.H(copyStart[ss]-1 == copyEnd[ss] ||
			(copyStart[ss] == 0 && copyEnd[ss] == int32(nblock)-1), 1007)

		for j := int32(0); j <= 255; j++ {
			ftab[j<<8+ss] |= setMask
		}
		bigDone[ss] = true

		if i < 255 {
			// Refresh the quadrant ranks for every position in bucket
			// ss: the coarse rank within the bucket, squeezed to 16
			// bits. Positions inside the overshoot replicate theirs so
			// the comparator can overrun.
			bbStart := int32(ftab[ss<<8] & clearMask)
			bbSize := int32(ftab[(ss+1)<<8]&clearMask) - bbStart
			shifts := uint(0)
			for bbSize>>shifts > 65534 {
				shifts++
			}
			for j := bbSize - 1; j >= 0; j-- {
				a2update := int32(ptr[bbStart+j])
				qVal := uint16(j >> shifts)
				quadrant[a2update] = qVal
				if a2update < Overshoot {
					quadrant[int(a2update)+nblock] = qVal
				}
			}
			assert.H((bbSize-1)>>shifts <= 65535, 1002)
		}
	}

	verbose.F(verbosity, 4, "        %d pointers, %d sorted, %d scanned\n",
		nblock, numQSorted, nblock-numQSorted)
}
