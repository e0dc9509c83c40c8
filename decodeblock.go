// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package libbzip2

import (
	"github.com/cosnicolaou/libbzip2/internal/huffman"
	"github.com/cosnicolaou/libbzip2/internal/verbose"
)

// decode is the resumable block parser. Each case of the state switch
// performs one field's suspendable bit-level reads (a loop of them for
// the bitmaps, the selector list and multi-bit symbols); when input
// runs out mid-read the method returns Ok with every local saved in the
// state, and the next call resumes at the same point. The machine covers the
// stream magic, block headers, coding tables and MTF symbol loop; the
// byte-producing half lives in unRLE.
func (d *decoderState) decode(z *Stream) Status {
	for {
		switch d.state {
		case stMagic1:
			uc, ok := d.getByte(z)
			if !ok {
				return Ok
			}
			if uc != 'B' {
				return DataErrorMagic
			}
			d.state = stMagic2

		case stMagic2:
			uc, ok := d.getByte(z)
			if !ok {
				return Ok
			}
			if uc != 'Z' {
				return DataErrorMagic
			}
			d.state = stMagic3

		case stMagic3:
			uc, ok := d.getByte(z)
			if !ok {
				return Ok
			}
			if uc != 'h' {
				return DataErrorMagic
			}
			d.state = stMagic4

		case stMagic4:
			uc, ok := d.getByte(z)
			if !ok {
				return Ok
			}
			if uc < '1' || uc > '9' {
				return DataErrorMagic
			}
			d.blockSize100k = int32(uc - '0')
			n := 100000 * int(d.blockSize100k)
			alloc := z.allocator()
			if d.small {
				d.ll16 = alloc.AllocHalves(n)
				d.ll4 = alloc.AllocBytes((1 + n) >> 1)
				if d.ll16 == nil || d.ll4 == nil {
					if d.ll16 != nil {
						alloc.Free(d.ll16)
						d.ll16 = nil
					}
					if d.ll4 != nil {
						alloc.Free(d.ll4)
						d.ll4 = nil
					}
					return MemError
				}
			} else {
				d.tt = alloc.AllocWords(n)
				if d.tt == nil {
					return MemError
				}
			}
			d.state = stBlkHdr1

		case stBlkHdr1:
			uc, ok := d.getByte(z)
			if !ok {
				return Ok
			}
			switch {
			case uc == 0x17:
				d.state = stEndHdr2
			case uc != 0x31:
				return DataError
			default:
				d.state = stBlkHdr2
			}

		case stBlkHdr2, stBlkHdr3, stBlkHdr4, stBlkHdr5, stBlkHdr6:
			want := blockMagic[d.state-stBlkHdr1]
			uc, ok := d.getByte(z)
			if !ok {
				return Ok
			}
			if uc != want {
				return DataError
			}
			if d.state == stBlkHdr6 {
				d.currBlockNo++
				verbose.F(d.verbosity, 2, "\n    [%d: huff+mtf ", d.currBlockNo)
				d.storedBlockCRC = 0
				d.state = stBCRC1
			} else {
				d.state++
			}

		case stBCRC1, stBCRC2, stBCRC3, stBCRC4:
			uc, ok := d.getByte(z)
			if !ok {
				return Ok
			}
			d.storedBlockCRC = d.storedBlockCRC<<8 | uint32(uc)
			if d.state == stBCRC4 {
				d.state = stRandBit
			} else {
				d.state++
			}

		case stRandBit:
			b, ok := d.getBit(z)
			if !ok {
				return Ok
			}
			d.blockRandomised = b == 1
			d.origPtr = 0
			d.state = stOrigPtr1

		case stOrigPtr1, stOrigPtr2, stOrigPtr3:
			uc, ok := d.getByte(z)
			if !ok {
				return Ok
			}
			d.origPtr = d.origPtr<<8 | int32(uc)
			if d.state != stOrigPtr3 {
				d.state++
				continue
			}
			if d.origPtr < 0 || d.origPtr > 10+100000*d.blockSize100k {
				return DataError
			}
			d.i = 0
			d.state = stMapping1

		case stMapping1:
			for d.i < 16 {
				b, ok := d.getBit(z)
				if !ok {
					return Ok
				}
				d.inUse16[d.i] = b == 1
				d.i++
			}
			for i := range d.inUse {
				d.inUse[i] = false
			}
			d.i, d.j = 0, 0
			d.state = stMapping2

		case stMapping2:
			for d.i < 16 {
				if !d.inUse16[d.i] {
					d.i++
					continue
				}
				for d.j < 16 {
					b, ok := d.getBit(z)
					if !ok {
						return Ok
					}
					if b == 1 {
						d.inUse[d.i*16+d.j] = true
					}
					d.j++
				}
				d.i++
				d.j = 0
			}
			d.makeMaps()
			if d.nInUse == 0 {
				return DataError
			}
			d.alphaSize = d.nInUse + 2
			d.state = stSelector1

		case stSelector1:
			v, ok := d.getBits(z, 3)
			if !ok {
				return Ok
			}
			d.nGroups = int32(v)
			if d.nGroups < 2 || d.nGroups > 6 {
				return DataError
			}
			d.state = stSelector2

		case stSelector2:
			v, ok := d.getBits(z, 15)
			if !ok {
				return Ok
			}
			d.nSelectors = int32(v)
			if d.nSelectors < 1 {
				return DataError
			}
			d.i, d.j = 0, 0
			d.state = stSelector3

		case stSelector3:
			// The selector list is MTF coded in unary; selectors beyond
			// the table cap are parsed but dropped.
			for d.i < d.nSelectors {
				for {
					b, ok := d.getBit(z)
					if !ok {
						return Ok
					}
					if b == 0 {
						break
					}
					d.j++
					if d.j >= d.nGroups {
						return DataError
					}
				}
				if d.i < maxSelectors {
					d.selectorMtf[d.i] = uint8(d.j)
				}
				d.i++
				d.j = 0
			}
			if d.nSelectors > maxSelectors {
				d.nSelectors = maxSelectors
			}
			var pos [maxGroups]uint8
			for v := int32(0); v < d.nGroups; v++ {
				pos[v] = uint8(v)
			}
			for i := int32(0); i < d.nSelectors; i++ {
				v := d.selectorMtf[i]
				tmp := pos[v]
				for v > 0 {
					pos[v] = pos[v-1]
					v--
				}
				pos[0] = tmp
				d.selector[i] = tmp
			}
			d.t = 0
			d.state = stCoding1

		case stCoding1:
			if d.t >= d.nGroups {
				d.startMTFDecode()
				if !d.updateGroupPos() {
					return DataError
				}
				d.zn = d.gMinlen
				d.state = stMTF1
				continue
			}
			v, ok := d.getBits(z, 5)
			if !ok {
				return Ok
			}
			d.curr = int32(v)
			d.i = 0
			d.state = stCoding2

		case stCoding2:
			if d.i >= d.alphaSize {
				d.t++
				d.state = stCoding1
				continue
			}
			if d.curr < 1 || d.curr > 20 {
				return DataError
			}
			b, ok := d.getBit(z)
			if !ok {
				return Ok
			}
			if b == 0 {
				d.length[d.t][d.i] = uint8(d.curr)
				d.i++
				continue
			}
			d.state = stCoding3

		case stCoding3:
			b, ok := d.getBit(z)
			if !ok {
				return Ok
			}
			if b == 0 {
				d.curr++
			} else {
				d.curr--
			}
			d.state = stCoding2

		case stMTF1, stMTF2:
			resolved, r := d.huffSym(z, stMTF1, stMTF2)
			if r != Ok {
				return r
			}
			if !resolved {
				return Ok
			}
			if r, done := d.handleMainSym(); done {
				return r
			}

		case stMTF3, stMTF4:
			resolved, r := d.huffSym(z, stMTF3, stMTF4)
			if r != Ok {
				return r
			}
			if !resolved {
				return Ok
			}
			if r, done := d.handleRunSym(); done {
				return r
			}

		case stMTF5, stMTF6:
			resolved, r := d.huffSym(z, stMTF5, stMTF6)
			if r != Ok {
				return r
			}
			if !resolved {
				return Ok
			}
			if r, done := d.handleMainSym(); done {
				return r
			}

		case stEndHdr2, stEndHdr3, stEndHdr4, stEndHdr5, stEndHdr6:
			want := eosMagic[d.state-stEndHdr2+1]
			uc, ok := d.getByte(z)
			if !ok {
				return Ok
			}
			if uc != want {
				return DataError
			}
			if d.state == stEndHdr6 {
				d.storedCombinedCRC = 0
				d.state = stCCRC1
			} else {
				d.state++
			}

		case stCCRC1, stCCRC2, stCCRC3, stCCRC4:
			uc, ok := d.getByte(z)
			if !ok {
				return Ok
			}
			d.storedCombinedCRC = d.storedCombinedCRC<<8 | uint32(uc)
			if d.state == stCCRC4 {
				d.state = stIdle
				return StreamEnd
			}
			d.state++

		default:
			return SequenceError
		}
	}
}

// startMTFDecode builds the per-group decode tables and resets the MTF
// and run bookkeeping for the symbol loop.
func (d *decoderState) startMTFDecode() {
	for t := int32(0); t < d.nGroups; t++ {
		minLen, maxLen := int32(32), int32(0)
		for _, l := range d.length[t][:d.alphaSize] {
			if int32(l) > maxLen {
				maxLen = int32(l)
			}
			if int32(l) < minLen {
				minLen = int32(l)
			}
		}
		huffman.DecodeTables(
			d.limit[t][:], d.base[t][:], d.perm[t][:], d.length[t][:],
			int(minLen), int(maxLen), int(d.alphaSize))
		d.minLens[t] = minLen
	}

	d.eob = d.nInUse + 1
	d.nblockMAX = 100000 * d.blockSize100k
	d.groupNo = -1
	d.groupPos = 0
	for i := range d.unzftab {
		d.unzftab[i] = 0
	}

	kk := int32(4096 - 1)
	for ii := int32(16 - 1); ii >= 0; ii-- {
		for jj := int32(16 - 1); jj >= 0; jj-- {
			d.mtfa[kk] = uint8(ii*16 + jj)
			kk--
		}
		d.mtfbase[ii] = kk + 1
	}

	d.nblock = 0
}

// updateGroupPos advances to the next 50-symbol group's table when the
// current group is spent. It fails only when the stream undersupplies
// selectors.
func (d *decoderState) updateGroupPos() bool {
	if d.groupPos == 0 {
		d.groupNo++
		if d.groupNo >= d.nSelectors {
			return false
		}
		d.groupPos = 50
		d.gSel = int32(d.selector[d.groupNo])
		d.gMinlen = d.minLens[d.gSel]
	}
	d.groupPos--
	return true
}

// huffSym reads one canonical-coded symbol, one bit at a time past the
// initial gMinlen bits. first is the state for the initial read, more
// for each extension bit; suspension resumes mid-symbol. On resolution
// nextSym is set.
func (d *decoderState) huffSym(z *Stream, first, more int) (resolved bool, r Status) {
	if d.state == more {
		b, ok := d.getBit(z)
		if !ok {
			return false, Ok
		}
		d.zvec = d.zvec<<1 | b
	} else {
		v, ok := d.getBits(z, d.zn)
		if !ok {
			return false, Ok
		}
		d.zvec = int32(v)
		d.state = more
	}
	for {
		if d.zn > 20 {
			return false, DataError
		}
		if d.zvec <= d.limit[d.gSel][d.zn] {
			idx := d.zvec - d.base[d.gSel][d.zn]
			if idx < 0 || idx >= huffman.MaxAlphaSize {
				return false, DataError
			}
			d.nextSym = d.perm[d.gSel][idx]
			return true, Ok
		}
		d.zn++
		b, ok := d.getBit(z)
		if !ok {
			return false, Ok
		}
		d.zvec = d.zvec<<1 | b
	}
}

// handleMainSym consumes a resolved symbol outside a zero-run: the end
// of block, the start of a run, or a literal MTF index. done reports
// that decode should return r to the caller; otherwise the state names
// the next read.
func (d *decoderState) handleMainSym() (r Status, done bool) {
	switch {
	case d.nextSym == d.eob:
		return d.finishMTF(), true
	case d.nextSym <= 1:
		d.es = -1
		d.n = 1
		return d.accumulateRun()
	default:
		return d.literalSym()
	}
}

// handleRunSym consumes a resolved symbol while a zero-run is pending:
// RUNA/RUNB extend it, anything else flushes it first.
func (d *decoderState) handleRunSym() (r Status, done bool) {
	if d.nextSym <= 1 {
		return d.accumulateRun()
	}

	d.es++
	uc := d.seqToUnseq[d.mtfa[d.mtfbase[0]]]
	d.unzftab[uc] += d.es
	for ; d.es > 0; d.es-- {
		if d.nblock >= d.nblockMAX {
			return DataError, true
		}
		if d.small {
			d.ll16[d.nblock] = uint16(uc)
		} else {
			d.tt[d.nblock] = uint32(uc)
		}
		d.nblock++
	}

	if d.nextSym == d.eob {
		return d.finishMTF(), true
	}
	return d.literalSym()
}

// accumulateRun folds the current RUNA/RUNB symbol into the pending
// zero-run; run lengths are base-2 with RUNA worth n and RUNB worth 2n
// at each doubling step. The 2M cap prevents overflow.
func (d *decoderState) accumulateRun() (Status, bool) {
	if d.n >= 2*1024*1024 {
		return DataError, true
	}
	if d.nextSym == 0 {
		d.es += d.n
	} else {
		d.es += 2 * d.n
	}
	d.n *= 2
	if !d.updateGroupPos() {
		return DataError, true
	}
	d.zn = d.gMinlen
	d.state = stMTF3
	return Ok, false
}

// literalSym decodes the MTF index nextSym-1 through the segmented
// table: indexes below 16 bubble within the front segment; larger ones
// bubble their segment's prefix and rotate one symbol across each lower
// segment base. When the front base reaches the table start everything
// is repacked at the high end.
func (d *decoderState) literalSym() (Status, bool) {
	if d.nblock >= d.nblockMAX {
		return DataError, true
	}
	nn := uint32(d.nextSym - 1)
	var uc uint8
	if nn < 16 {
		pp := d.mtfbase[0]
		uc = d.mtfa[uint32(pp)+nn]
		for nn > 3 {
			z := int32(uint32(pp) + nn)
			d.mtfa[z] = d.mtfa[z-1]
			d.mtfa[z-1] = d.mtfa[z-2]
			d.mtfa[z-2] = d.mtfa[z-3]
			d.mtfa[z-3] = d.mtfa[z-4]
			nn -= 4
		}
		for nn > 0 {
			d.mtfa[uint32(pp)+nn] = d.mtfa[uint32(pp)+nn-1]
			nn--
		}
		d.mtfa[pp] = uc
	} else {
		lno := int32(nn / 16)
		off := int32(nn % 16)
		pp := d.mtfbase[lno] + off
		uc = d.mtfa[pp]
		for pp > d.mtfbase[lno] {
			d.mtfa[pp] = d.mtfa[pp-1]
			pp--
		}
		d.mtfbase[lno]++
		for lno > 0 {
			d.mtfbase[lno]--
			d.mtfa[d.mtfbase[lno]] = d.mtfa[d.mtfbase[lno-1]+16-1]
			lno--
		}
		d.mtfbase[0]--
		d.mtfa[d.mtfbase[0]] = uc
		if d.mtfbase[0] == 0 {
			kk := int32(4096 - 1)
			for ii := int32(16 - 1); ii >= 0; ii-- {
				for jj := int32(16 - 1); jj >= 0; jj-- {
					d.mtfa[kk] = d.mtfa[d.mtfbase[ii]+jj]
					kk--
				}
				d.mtfbase[ii] = kk + 1
			}
		}
	}

	d.unzftab[d.seqToUnseq[uc]]++
	if d.small {
		d.ll16[d.nblock] = uint16(d.seqToUnseq[uc])
	} else {
		d.tt[d.nblock] = uint32(d.seqToUnseq[uc])
	}
	d.nblock++

	if !d.updateGroupPos() {
		return DataError, true
	}
	d.zn = d.gMinlen
	d.state = stMTF5
	return Ok, false
}

// finishMTF validates the decoded block, runs the inverse BWT, and arms
// the output cursor.
func (d *decoderState) finishMTF() Status {
	if d.origPtr < 0 || d.origPtr >= d.nblock {
		return DataError
	}
	for i := 0; i <= 255; i++ {
		if d.unzftab[i] < 0 || d.unzftab[i] > d.nblock {
			return DataError
		}
	}

	d.cftab[0] = 0
	for i := 1; i <= 256; i++ {
		d.cftab[i] = d.unzftab[i-1]
	}
	for i := 1; i <= 256; i++ {
		d.cftab[i] += d.cftab[i-1]
	}
	for i := 0; i <= 256; i++ {
		if d.cftab[i] < 0 || d.cftab[i] > d.nblock {
			return DataError
		}
	}
	for i := 1; i <= 256; i++ {
		if d.cftab[i-1] > d.cftab[i] {
			return DataError
		}
	}

	d.stateOutLen = 0
	d.stateOutCh = 0
	d.calculatedBlockCRC = 0xffffffff
	d.state = stOutput
	verbose.F(d.verbosity, 2, "rt+rld")

	if d.small {
		copy(d.cftabCopy[:], d.cftab[:])

		// Stamp each position's final slot, then reverse the links so
		// they chain forward from origPtr.
		for i := int32(0); i < d.nblock; i++ {
			uc := byte(d.ll16[i])
			d.llSet(i, uint32(d.cftabCopy[uc]))
			d.cftabCopy[uc]++
		}

		i := d.origPtr
		j := d.llGet(i)
		for {
			tmp := d.llGet(int32(j))
			d.llSet(int32(j), uint32(i))
			i = int32(j)
			j = tmp
			if i == d.origPtr {
				break
			}
		}

		d.tPos = uint32(d.origPtr)
	} else {
		for i := int32(0); i < d.nblock; i++ {
			uc := byte(d.tt[i])
			d.tt[d.cftab[uc]] |= uint32(i) << 8
			d.cftab[uc]++
		}
		d.tPos = d.tt[d.origPtr] >> 8
	}

	d.nblockUsed = 0
	if d.blockRandomised {
		d.rNToGo = 0
		d.rTPos = 0
	}
	// Prime the cursor with the first byte.
	b, bad := d.nextBWTByte()
	if bad {
		return DataError
	}
	d.k0 = int32(b)
	return Ok
}
