// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package blocksort

import (
	"github.com/cosnicolaou/libbzip2/internal/assert"
	"github.com/cosnicolaou/libbzip2/internal/verbose"
)

// The fallback is a Manber-Myers style doubling sort over equivalence
// classes: positions are bucketed by one byte, then repeatedly refined
// by the class H positions ahead for doubling H. Its running time does
// not depend on the block's repetitiveness, which is exactly when the
// main sort gives up. Also used outright for tiny blocks.

func fallbackSimpleSort(fmap []uint32, eclass []uint32, lo, hi int32) {
	if lo == hi {
		return
	}
	if hi-lo > 3 {
		for i := hi - 4; i >= lo; i-- {
			tmp := fmap[i]
			ecTmp := eclass[tmp]
			j := i + 4
			for ; j <= hi && ecTmp > eclass[fmap[j]]; j += 4 {
				fmap[j-4] = fmap[j]
			}
			fmap[j-4] = tmp
		}
	}
	for i := hi - 1; i >= lo; i-- {
		tmp := fmap[i]
		ecTmp := eclass[tmp]
		j := i + 1
		for ; j <= hi && ecTmp > eclass[fmap[j]]; j++ {
			fmap[j-1] = fmap[j]
		}
		fmap[j-1] = tmp
	}
}

const (
	fallbackQSortSmallThresh = 10
	fallbackQSortStackSize   = 100
)

func fallbackQSort3(fmap []uint32, eclass []uint32, loSt, hiSt int32) {
	var stackLo, stackHi [fallbackQSortStackSize]int32

	// Random-ish partitioning. Median of 3 sometimes fails to avoid bad
	// cases; this is cheaper and works. The constants 7621 and 32768 are
	// from Sedgewick's algorithms book, chapter 35.
	r := uint32(0)

	sp := 0
	stackLo[sp] = loSt
	stackHi[sp] = hiSt
	sp++

	for sp > 0 {
		assert.H(sp < fallbackQSortStackSize-1, 1004)

		sp--
		lo := stackLo[sp]
		hi := stackHi[sp]

		if hi-lo < fallbackQSortSmallThresh {
			fallbackSimpleSort(fmap, eclass, lo, hi)
			continue
		}

		r = (r*7621 + 1) % 32768
		var med uint32
		switch r % 3 {
		case 0:
			med = eclass[fmap[lo]]
		case 1:
			med = eclass[fmap[(lo+hi)>>1]]
		default:
			med = eclass[fmap[hi]]
		}

		ltLo, unLo := lo, lo
		gtHi, unHi := hi, hi
		for {
			for unLo <= unHi {
				ec := eclass[fmap[unLo]]
				if ec > med {
					break
				}
				if ec == med {
					fmap[unLo], fmap[ltLo] = fmap[ltLo], fmap[unLo]
					ltLo++
				}
				unLo++
			}
			for unLo <= unHi {
				ec := eclass[fmap[unHi]]
				if ec < med {
					break
				}
				if ec == med {
					fmap[unHi], fmap[gtHi] = fmap[gtHi], fmap[unHi]
					gtHi--
				}
				unHi--
			}
			if unLo > unHi {
				break
			}
			fmap[unLo], fmap[unHi] = fmap[unHi], fmap[unLo]
			unLo++
			unHi--
		}

		if gtHi < ltLo {
			continue
		}

		n := minI32(ltLo-lo, unLo-ltLo)
		fvswap(fmap, lo, unLo-n, n)
		m := minI32(hi-gtHi, gtHi-unHi)
		fvswap(fmap, unLo, hi-m+1, m)

		n = lo + unLo - ltLo - 1
		m = hi - (gtHi - unHi) + 1

		if n-lo > hi-m {
			stackLo[sp], stackHi[sp] = lo, n
			sp++
			stackLo[sp], stackHi[sp] = m, hi
			sp++
		} else {
			stackLo[sp], stackHi[sp] = m, hi
			sp++
			stackLo[sp], stackHi[sp] = lo, n
			sp++
		}
	}
}

func fvswap(fmap []uint32, p1, p2, n int32) {
	for ; n > 0; n-- {
		fmap[p1], fmap[p2] = fmap[p2], fmap[p1]
		p1++
		p2++
	}
}

func minI32(a, b int32) int32 {
	if a < b {
		return a
	}
	return b
}

// fallbackSort sorts block's rotations into fmap. bhtab is a bit array
// (one bit per position plus sentinels) marking bucket boundaries; the
// caller's ftab storage is reused for it.
func fallbackSort(fmap []uint32, block []byte, bhtab []uint32, nblock, verbosity int) {
	var ftab [257]int32

	eclass := make([]uint32, nblock)

	setBH := func(zz int32) { bhtab[zz>>5] |= 1 << uint(zz&31) }
	clearBH := func(zz int32) { bhtab[zz>>5] &^= 1 << uint(zz&31) }
	issetBH := func(zz int32) bool { return bhtab[zz>>5]&(1<<uint(zz&31)) != 0 }
	wordBH := func(zz int32) uint32 { return bhtab[zz>>5] }
	unalignedBH := func(zz int32) bool { return zz&0x1f != 0 }

	// Initial 1-char radix sort to generate initial fmap and initial
	// bucket-header bits.
	verbose.F(verbosity, 4, "        bucket sorting ...\n")
	for i := 0; i < nblock; i++ {
		ftab[block[i]]++
	}
	for i := 1; i < 257; i++ {
		ftab[i] += ftab[i-1]
	}
	for i := 0; i < nblock; i++ {
		j := block[i]
		ftab[j]--
		fmap[ftab[j]] = uint32(i)
	}

	for i := 0; i < 2+nblock/32; i++ {
		bhtab[i] = 0
	}
	for i := 0; i < 256; i++ {
		setBH(ftab[i])
	}

	// Sentinel bits for block-end detection.
	for i := int32(0); i < 32; i++ {
		setBH(int32(nblock) + 2*i)
		clearBH(int32(nblock) + 2*i + 1)
	}

	// The log(N) refinement loop.
	H := int32(1)
	for {
		verbose.F(verbosity, 4, "        depth %6d has ", H)
		j := int32(0)
		for i := int32(0); i < int32(nblock); i++ {
			if issetBH(i) {
				j = i
			}
			k := int32(fmap[i]) - H
			if k < 0 {
				k += int32(nblock)
			}
			eclass[k] = uint32(j)
		}

		nNotDone := int32(0)
		r := int32(-1)
		for {
			// Find the next non-singleton bucket.
			k := r + 1
			for issetBH(k) && unalignedBH(k) {
				k++
			}
			if issetBH(k) {
				for wordBH(k) == 0xffffffff {
					k += 32
				}
				for issetBH(k) {
					k++
				}
			}
			l := k - 1
			if l >= int32(nblock) {
				break
			}
			for !issetBH(k) && unalignedBH(k) {
				k++
			}
			if !issetBH(k) {
				for wordBH(k) == 0 {
					k += 32
				}
				for !issetBH(k) {
					k++
				}
			}
			r = k - 1
			if r >= int32(nblock) {
				break
			}

			// Now [l, r] bracket the current bucket.
			if r > l {
				nNotDone += r - l + 1
				fallbackQSort3(fmap, eclass, l, r)

				// Scan the bucket and generate header bits.
				cc := int32(-1)
				for i := l; i <= r; i++ {
					cc1 := int32(eclass[fmap[i]])
					if cc != cc1 {
						setBH(i)
						cc = cc1
					}
				}
			}
		}

		verbose.F(verbosity, 4, "%6d unresolved strings\n", nNotDone)
		H *= 2
		if H > int32(nblock) || nNotDone == 0 {
			break
		}
	}

	// The reference implementation reconstructs the block here because
	// its eclass aliases the block bytes; ours owns eclass separately,
	// so the block is still intact.
}
