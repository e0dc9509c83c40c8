// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package libbzip2

import (
	"github.com/cosnicolaou/libbzip2/internal/bitstream"
	"github.com/cosnicolaou/libbzip2/internal/crc"
	"github.com/cosnicolaou/libbzip2/internal/huffman"
	"github.com/cosnicolaou/libbzip2/internal/randtable"
	"github.com/cosnicolaou/libbzip2/internal/verbose"
)

// Decoder states. Every suspension point of the block parser is a named
// state; values match the reference so traces line up.
const (
	stIdle   = 1
	stOutput = 2

	stMagic1 = 10 + iota - 2
	stMagic2
	stMagic3
	stMagic4
	stBlkHdr1
	stBlkHdr2
	stBlkHdr3
	stBlkHdr4
	stBlkHdr5
	stBlkHdr6
	stBCRC1
	stBCRC2
	stBCRC3
	stBCRC4
	stRandBit
	stOrigPtr1
	stOrigPtr2
	stOrigPtr3
	stMapping1
	stMapping2
	stSelector1
	stSelector2
	stSelector3
	stCoding1
	stCoding2
	stCoding3
	stMTF1
	stMTF2
	stMTF3
	stMTF4
	stMTF5
	stMTF6
	stEndHdr2
	stEndHdr3
	stEndHdr4
	stEndHdr5
	stEndHdr6
	stCCRC1
	stCCRC2
	stCCRC3
	stCCRC4
)

type decoderState struct {
	strm *Stream // owning session; operations reject any other

	state     int
	verbosity int
	small     bool

	br bitstream.Reader

	blockSize100k int32
	currBlockNo   int32

	storedBlockCRC        uint32
	storedCombinedCRC     uint32
	calculatedBlockCRC    uint32
	calculatedCombinedCRC uint32

	blockRandomised bool
	origPtr         int32

	// Inverse-BWT working storage: exactly one of tt or ll16/ll4 is
	// live, fixed by the small flag at init and allocated lazily when
	// the stream header reveals the block size.
	tt   []uint32
	ll16 []uint16
	ll4  []uint8

	tPos uint32
	k0   int32

	unzftab   [256]int32
	cftab     [257]int32
	cftabCopy [257]int32

	nInUse     int32
	inUse      [256]bool
	inUse16    [16]bool
	seqToUnseq [256]uint8

	// Segmented inverse-MTF table: 16 segments of 16 symbols, each with
	// a movable base, compacted when the first base hits zero.
	mtfa    [4096]uint8
	mtfbase [16]int32

	selector    [maxSelectors]uint8
	selectorMtf [maxSelectors]uint8
	length      [maxGroups][huffman.MaxAlphaSize]uint8
	limit       [maxGroups][huffman.MaxCodeLen]int32
	base        [maxGroups][huffman.MaxCodeLen]int32
	perm        [maxGroups][huffman.MaxAlphaSize]int32
	minLens     [maxGroups]int32

	// Inverse RLE-1 output cursor.
	stateOutCh  byte
	stateOutLen int32
	nblockUsed  int32
	rNToGo      int32
	rTPos       int32

	// Saved locals of the resumable block parser.
	i, j, t    int32
	alphaSize  int32
	nGroups    int32
	nSelectors int32
	eob        int32
	groupNo    int32
	groupPos   int32
	nextSym    int32
	nblockMAX  int32
	nblock     int32
	es         int32
	n          int32
	curr       int32
	zn         int32
	zvec       int32
	gSel       int32
	gMinlen    int32
}

// DecompressInit prepares z for decompression. small selects the
// half-memory inverse BWT, trading speed for 2.5 bytes of working
// storage per block byte instead of 4.
func (z *Stream) DecompressInit(verbosity int, small bool) Status {
	if z == nil {
		return ParamError
	}
	if verbosity < 0 || verbosity > 4 {
		return ParamError
	}
	d := &decoderState{
		strm:      z,
		state:     stMagic1,
		verbosity: verbosity,
		small:     small,
	}
	z.TotalInLo32, z.TotalInHi32 = 0, 0
	z.TotalOutLo32, z.TotalOutHi32 = 0, 0
	z.state = d
	return Ok
}

func (d *decoderState) getBits(z *Stream, n int32) (uint32, bool) {
	for d.br.Live() < int(n) {
		b, ok := z.readByte()
		if !ok {
			return 0, false
		}
		d.br.Fill(b)
	}
	return d.br.Take(int(n)), true
}

func (d *decoderState) getByte(z *Stream) (byte, bool) {
	v, ok := d.getBits(z, 8)
	return byte(v), ok
}

func (d *decoderState) getBit(z *Stream) (int32, bool) {
	v, ok := d.getBits(z, 1)
	return int32(v), ok
}

func (d *decoderState) makeMaps() {
	d.nInUse = 0
	for i := 0; i < 256; i++ {
		if d.inUse[i] {
			d.seqToUnseq[d.nInUse] = uint8(i)
			d.nInUse++
		}
	}
}

// Packed-nibble accessors for the small-mode linked indices: the low 16
// bits live in ll16, the high 4 in half of an ll4 byte.
func (d *decoderState) llGet(i int32) uint32 {
	return uint32(d.ll16[i]) | uint32(d.ll4[i>>1])>>uint(i<<2&0x4)&0xf<<16
}

func (d *decoderState) llSet(i int32, v uint32) {
	d.ll16[i] = uint16(v)
	if i&1 == 0 {
		d.ll4[i>>1] = d.ll4[i>>1]&0xf0 | uint8(v>>16)
	} else {
		d.ll4[i>>1] = d.ll4[i>>1]&0x0f | uint8(v>>16)<<4
	}
}

func indexIntoF(indx int32, cftab *[257]int32) int32 {
	nb, na := int32(0), int32(256)
	for {
		mid := (nb + na) >> 1
		if indx >= cftab[mid] {
			nb = mid
		} else {
			na = mid
		}
		if na-nb == 1 {
			return nb
		}
	}
}

// nextBWTByte follows the inverse-BWT linked list one step, applying
// the legacy de-randomisation mask when the block asks for it. corrupt
// reports an index escaping the block, which can only happen on bad
// input.
func (d *decoderState) nextBWTByte() (byte, bool) {
	if d.tPos >= uint32(100000*d.blockSize100k) {
		return 0, true
	}
	var b byte
	if d.small {
		b = byte(indexIntoF(int32(d.tPos), &d.cftab))
		d.tPos = d.llGet(int32(d.tPos))
	} else {
		d.tPos = d.tt[d.tPos]
		b = byte(d.tPos)
		d.tPos >>= 8
	}
	d.nblockUsed++
	if d.blockRandomised {
		if d.rNToGo == 0 {
			d.rNToGo = randtable.Nums[d.rTPos]
			d.rTPos++
			if d.rTPos == 512 {
				d.rTPos = 0
			}
		}
		d.rNToGo--
		if d.rNToGo == 1 {
			b ^= 1
		}
	}
	return b, false
}

// unRLE drains the block through the inverse RLE-1 cursor into the
// caller's output. Four equal bytes from the BWT output are followed by
// a count of extra repeats. It stops when output fills or the block's
// bytes are used up; corrupt input is reported rather than overrun.
func (d *decoderState) unRLE(z *Stream) (corrupt bool) {
	for {
		// Emit the pending run.
		for d.stateOutLen > 0 {
			if !z.writeByte(d.stateOutCh) {
				return false
			}
			d.calculatedBlockCRC = crc.UpdateByte(d.calculatedBlockCRC, d.stateOutCh)
			d.stateOutLen--
		}

		if d.nblockUsed == d.nblock+1 {
			return false
		}
		if d.nblockUsed > d.nblock+1 {
			return true
		}

		d.stateOutLen = 1
		d.stateOutCh = byte(d.k0)
		k1, bad := d.nextBWTByte()
		if bad {
			return true
		}
		if d.nblockUsed == d.nblock+1 {
			continue
		}
		if int32(k1) != d.k0 {
			d.k0 = int32(k1)
			continue
		}

		d.stateOutLen = 2
		if k1, bad = d.nextBWTByte(); bad {
			return true
		}
		if d.nblockUsed == d.nblock+1 {
			continue
		}
		if int32(k1) != d.k0 {
			d.k0 = int32(k1)
			continue
		}

		d.stateOutLen = 3
		if k1, bad = d.nextBWTByte(); bad {
			return true
		}
		if d.nblockUsed == d.nblock+1 {
			continue
		}
		if int32(k1) != d.k0 {
			d.k0 = int32(k1)
			continue
		}

		// Four equal bytes: the next byte is the extra repeat count.
		if k1, bad = d.nextBWTByte(); bad {
			return true
		}
		d.stateOutLen = int32(k1) + 4
		if k1, bad = d.nextBWTByte(); bad {
			return true
		}
		d.k0 = int32(k1)
	}
}

// Decompress drives the decoder against the session's buffers. It
// returns Ok when either buffer runs dry with the stream incomplete,
// StreamEnd on a verified stream trailer, and an error code otherwise.
// Suspension is invisible: the state machine resumes exactly where it
// stopped.
func (z *Stream) Decompress() Status {
	if z == nil {
		return ParamError
	}
	d, ok := z.state.(*decoderState)
	if !ok || d == nil {
		return ParamError
	}
	if d.strm != z {
		return ParamError
	}

	for {
		switch {
		case d.state == stIdle:
			return SequenceError

		case d.state == stOutput:
			if d.unRLE(z) {
				return DataError
			}
			if d.nblockUsed != d.nblock+1 || d.stateOutLen != 0 {
				return Ok
			}
			d.calculatedBlockCRC = crc.Finish(d.calculatedBlockCRC)
			verbose.F(d.verbosity, 3, " {0x%08x, 0x%08x}", d.storedBlockCRC, d.calculatedBlockCRC)
			verbose.F(d.verbosity, 2, "]")
			if d.calculatedBlockCRC != d.storedBlockCRC {
				return DataError
			}
			d.calculatedCombinedCRC = crc.Combine(d.calculatedCombinedCRC, d.calculatedBlockCRC)
			d.state = stBlkHdr1

		default:
			r := d.decode(z)
			if r == StreamEnd {
				verbose.F(d.verbosity, 3,
					"\n    combined CRCs: stored = 0x%08x, computed = 0x%08x",
					d.storedCombinedCRC, d.calculatedCombinedCRC)
				if d.calculatedCombinedCRC != d.storedCombinedCRC {
					return DataError
				}
				return StreamEnd
			}
			if d.state != stOutput {
				return r
			}
		}
	}
}

// DecompressEnd releases the session's buffers and idles the session.
func (z *Stream) DecompressEnd() Status {
	if z == nil {
		return ParamError
	}
	d, ok := z.state.(*decoderState)
	if !ok || d == nil {
		return ParamError
	}
	if d.strm != z {
		return ParamError
	}
	alloc := z.allocator()
	if d.tt != nil {
		alloc.Free(d.tt)
	}
	if d.ll16 != nil {
		alloc.Free(d.ll16)
	}
	if d.ll4 != nil {
		alloc.Free(d.ll4)
	}
	z.state = nil
	return Ok
}
