// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package libbzip2

import (
	"github.com/cosnicolaou/libbzip2/internal/assert"
	"github.com/cosnicolaou/libbzip2/internal/blocksort"
	"github.com/cosnicolaou/libbzip2/internal/crc"
	"github.com/cosnicolaou/libbzip2/internal/huffman"
	"github.com/cosnicolaou/libbzip2/internal/verbose"
)

func (s *encoderState) makeMaps() {
	s.nInUse = 0
	for i := 0; i < 256; i++ {
		if s.inUse[i] {
			s.unseqToSeq[i] = uint8(s.nInUse)
			s.nInUse++
		}
	}
}

// generateMTFValues walks the block in BWT order, move-to-front coding
// each byte. Runs of MTF index zero become base-2 sequences of the RUNA
// and RUNB symbols (zPend+1 written from the least significant bit);
// other indices are shifted up by one and the end-of-block symbol
// appended. Symbol frequencies accumulate for the table builder.
func (s *encoderState) generateMTFValues() {
	var yy [256]uint8

	s.makeMaps()
	eob := s.nInUse + 1
	for i := 0; i <= eob; i++ {
		s.mtfFreq[i] = 0
	}

	wr := 0
	zPend := 0
	for i := 0; i < s.nInUse; i++ {
		yy[i] = uint8(i)
	}

	for i := 0; i < s.nblock; i++ {
		j := int(s.ptr[i]) - 1
		if j < 0 {
			j += s.nblock
		}
		llI := s.unseqToSeq[s.block[j]]
		if yy[0] == llI {
			zPend++
			continue
		}
		if zPend > 0 {
			wr = s.writeRun(zPend, wr)
			zPend = 0
		}
		// Slide the MTF list down to the incoming symbol.
		rtmp := yy[1]
		yy[1] = yy[0]
		k := 1
		for llI != rtmp {
			k++
			rtmp, yy[k] = yy[k], rtmp
		}
		yy[0] = rtmp
		s.mtfv[wr] = uint16(k + 1)
		wr++
		s.mtfFreq[k+1]++
	}

	if zPend > 0 {
		wr = s.writeRun(zPend, wr)
	}

	s.mtfv[wr] = uint16(eob)
	wr++
	s.mtfFreq[eob]++
	s.nMTF = wr
}

func (s *encoderState) writeRun(zPend, wr int) int {
	zPend--
	for {
		if zPend&1 != 0 {
			s.mtfv[wr] = 1 // RUNB
			wr++
			s.mtfFreq[1]++
		} else {
			s.mtfv[wr] = 0 // RUNA
			wr++
			s.mtfFreq[0]++
		}
		if zPend < 2 {
			break
		}
		zPend = (zPend - 2) / 2
	}
	return wr
}

// sendMTFValues picks 2..6 Huffman tables for the block, iteratively
// refines them against 50-symbol groups of the MTF output, and emits the
// block's coding tables and payload.
func (s *encoderState) sendMTFValues() {
	var (
		cost  [maxGroups]uint16
		fave  [maxGroups]int32
		rfreq [maxGroups][huffman.MaxAlphaSize]int32
	)

	verbose.F(s.verbosity, 3,
		"      %d in block, %d after MTF & 1-2 coding, %d+2 syms in use\n",
		s.nblock, s.nMTF, s.nInUse)

	alphaSize := s.nInUse + 2
	for t := 0; t < maxGroups; t++ {
		for v := 0; v < alphaSize; v++ {
			s.length[t][v] = 15
		}
	}

	assert.H(s.nMTF > 0, 3001)
	var nGroups int
	switch {
	case s.nMTF < 200:
		nGroups = 2
	case s.nMTF < 600:
		nGroups = 3
	case s.nMTF < 1200:
		nGroups = 4
	case s.nMTF < 2400:
		nGroups = 5
	default:
		nGroups = 6
	}

	// Seed the tables from contiguous alphabet ranges of roughly equal
	// total frequency: in range gets length 0, out of range the
	// unused sentinel 15.
	remF := s.nMTF
	gs := 0
	for nPart := nGroups; nPart > 0; nPart-- {
		tFreq := remF / nPart
		ge := gs - 1
		aFreq := 0
		for aFreq < tFreq && ge < alphaSize-1 {
			ge++
			aFreq += int(s.mtfFreq[ge])
		}
		if ge > gs && nPart != nGroups && nPart != 1 && (nGroups-nPart)%2 == 1 {
			aFreq -= int(s.mtfFreq[ge])
			ge--
		}
		verbose.F(s.verbosity, 3,
			"      initial group %d, [%d .. %d], has %d syms (%4.1f%%)\n",
			nPart, gs, ge, aFreq, 100.0*float64(aFreq)/float64(s.nMTF))
		for v := 0; v < alphaSize; v++ {
			if v >= gs && v <= ge {
				s.length[nPart-1][v] = 0
			} else {
				s.length[nPart-1][v] = 15
			}
		}
		gs = ge + 1
		remF -= aFreq
	}

	var lenPack [huffman.MaxAlphaSize][3]uint32
	nSelectors := 0
	for iter := 0; iter < 4; iter++ {
		for t := 0; t < nGroups; t++ {
			fave[t] = 0
		}
		for t := 0; t < nGroups; t++ {
			for v := 0; v < alphaSize; v++ {
				rfreq[t][v] = 0
			}
		}

		if nGroups == 6 {
			// Pack two tables' lengths per word so one scan of a
			// 50-symbol group costs all six tables at once.
			for v := 0; v < alphaSize; v++ {
				lenPack[v][0] = uint32(s.length[1][v])<<16 | uint32(s.length[0][v])
				lenPack[v][1] = uint32(s.length[3][v])<<16 | uint32(s.length[2][v])
				lenPack[v][2] = uint32(s.length[5][v])<<16 | uint32(s.length[4][v])
			}
		}

		nSelectors = 0
		totc := 0
		for gs := 0; gs < s.nMTF; {
			ge := gs + 50 - 1
			if ge >= s.nMTF {
				ge = s.nMTF - 1
			}

			if nGroups == 6 && ge-gs+1 == 50 {
				var cost01, cost23, cost45 uint32
				for i := gs; i <= ge; i++ {
					icv := s.mtfv[i]
					cost01 += lenPack[icv][0]
					cost23 += lenPack[icv][1]
					cost45 += lenPack[icv][2]
				}
				cost[0] = uint16(cost01 & 0xffff)
				cost[1] = uint16(cost01 >> 16)
				cost[2] = uint16(cost23 & 0xffff)
				cost[3] = uint16(cost23 >> 16)
				cost[4] = uint16(cost45 & 0xffff)
				cost[5] = uint16(cost45 >> 16)
			} else {
				for t := 0; t < nGroups; t++ {
					cost[t] = 0
				}
				for i := gs; i <= ge; i++ {
					icv := s.mtfv[i]
					for t := 0; t < nGroups; t++ {
						cost[t] += uint16(s.length[t][icv])
					}
				}
			}

			bc, bt := int32(999999999), -1
			for t := 0; t < nGroups; t++ {
				if int32(cost[t]) < bc {
					bc = int32(cost[t])
					bt = t
				}
			}
			totc += int(bc)
			fave[bt]++
			s.selector[nSelectors] = uint8(bt)
			nSelectors++

			for i := gs; i <= ge; i++ {
				rfreq[bt][s.mtfv[i]]++
			}
			gs = ge + 1
		}

		if s.verbosity >= 3 {
			verbose.F(s.verbosity, 3, "      pass %d: size is %d, grp uses are ", iter+1, totc/8)
			for t := 0; t < nGroups; t++ {
				verbose.F(s.verbosity, 3, "%d ", fave[t])
			}
			verbose.F(s.verbosity, 3, "\n")
		}

		for t := 0; t < nGroups; t++ {
			huffman.MakeCodeLengths(s.length[t][:], rfreq[t][:], alphaSize, 17)
		}
	}

	assert.H(nGroups < 8, 3002)
	assert.H(nSelectors < 32768 && nSelectors <= maxSelectors, 3003)

	// The selector list is itself MTF coded; selectors repeat heavily.
	var pos [maxGroups]uint8
	for i := 0; i < nGroups; i++ {
		pos[i] = uint8(i)
	}
	for i := 0; i < nSelectors; i++ {
		llI := s.selector[i]
		j := 0
		tmp := pos[j]
		for llI != tmp {
			j++
			tmp, pos[j] = pos[j], tmp
		}
		pos[0] = tmp
		s.selectorMtf[i] = uint8(j)
	}

	for t := 0; t < nGroups; t++ {
		minLen, maxLen := 32, 0
		for i := 0; i < alphaSize; i++ {
			if int(s.length[t][i]) > maxLen {
				maxLen = int(s.length[t][i])
			}
			if int(s.length[t][i]) < minLen {
				minLen = int(s.length[t][i])
			}
		}
		assert.H(maxLen <= 17, 3004)
		assert.H(minLen >= 1, 3005)
		huffman.AssignCodes(s.code[t][:], s.length[t][:], minLen, maxLen, alphaSize)
	}

	// Symbol map: a bitmap of used 16-byte ranges, then a bitmap per
	// used range.
	var inUse16 [16]bool
	for i := 0; i < 16; i++ {
		for j := 0; j < 16; j++ {
			if s.inUse[i*16+j] {
				inUse16[i] = true
			}
		}
	}

	nBytes := len(s.bw.Bytes())
	for i := 0; i < 16; i++ {
		if inUse16[i] {
			s.bw.WriteBits(1, 1)
		} else {
			s.bw.WriteBits(1, 0)
		}
	}
	for i := 0; i < 16; i++ {
		if !inUse16[i] {
			continue
		}
		for j := 0; j < 16; j++ {
			if s.inUse[i*16+j] {
				s.bw.WriteBits(1, 1)
			} else {
				s.bw.WriteBits(1, 0)
			}
		}
	}
	verbose.F(s.verbosity, 3, "      bytes: mapping %d, ", len(s.bw.Bytes())-nBytes)

	nBytes = len(s.bw.Bytes())
	s.bw.WriteBits(3, uint32(nGroups))
	s.bw.WriteBits(15, uint32(nSelectors))
	for i := 0; i < nSelectors; i++ {
		for j := uint8(0); j < s.selectorMtf[i]; j++ {
			s.bw.WriteBits(1, 1)
		}
		s.bw.WriteBits(1, 0)
	}
	verbose.F(s.verbosity, 3, "selectors %d, ", len(s.bw.Bytes())-nBytes)

	// Per table: 5-bit starting length, then a unary delta per symbol.
	nBytes = len(s.bw.Bytes())
	for t := 0; t < nGroups; t++ {
		curr := int(s.length[t][0])
		s.bw.WriteBits(5, uint32(curr))
		for i := 0; i < alphaSize; i++ {
			for curr < int(s.length[t][i]) {
				s.bw.WriteBits(2, 2)
				curr++
			}
			for curr > int(s.length[t][i]) {
				s.bw.WriteBits(2, 3)
				curr--
			}
			s.bw.WriteBits(1, 0)
		}
	}
	verbose.F(s.verbosity, 3, "code lengths %d, ", len(s.bw.Bytes())-nBytes)

	nBytes = len(s.bw.Bytes())
	selCtr := 0
	for gs := 0; gs < s.nMTF; {
		ge := gs + 50 - 1
		if ge >= s.nMTF {
			ge = s.nMTF - 1
		}
		assert.H(int(s.selector[selCtr]) < nGroups, 3006)
		sel := s.selector[selCtr]
		for i := gs; i <= ge; i++ {
			v := s.mtfv[i]
			s.bw.WriteBits(int(s.length[sel][v]), uint32(s.code[sel][v]))
		}
		gs = ge + 1
		selCtr++
	}
	assert.H(selCtr == nSelectors, 3007)
	verbose.F(s.verbosity, 3, "codes %d\n", len(s.bw.Bytes())-nBytes)
}

// compressBlock sorts and entropy-codes the current block into the bit
// buffer, prefixing the stream header on the first block and appending
// the stream trailer after the last.
func (s *encoderState) compressBlock(isLast bool) {
	if s.nblock > 0 {
		s.blockCRC = crc.Finish(s.blockCRC)
		s.combinedCRC = crc.Combine(s.combinedCRC, s.blockCRC)
		if s.blockNo > 1 {
			s.bw.Truncate()
			s.outPos = 0
		}
		verbose.F(s.verbosity, 2,
			"    block %d: crc = 0x%08x, combined CRC = 0x%08x, size = %d\n",
			s.blockNo, s.blockCRC, s.combinedCRC, s.nblock)
		s.origPtr = blocksort.Sort(
			s.ptr, s.block[:s.nblock+blocksort.Overshoot],
			s.quadrant, s.ftab, s.nblock, s.verbosity, s.workFactor)
	}

	if s.blockNo == 1 {
		s.bw.Init()
		s.bw.WriteByte('B')
		s.bw.WriteByte('Z')
		s.bw.WriteByte('h')
		s.bw.WriteByte(byte('0' + s.blockSize100k))
	}

	if s.nblock > 0 {
		for _, b := range blockMagic {
			s.bw.WriteByte(b)
		}
		s.bw.WriteUint32(s.blockCRC)
		s.bw.WriteBits(1, 0) // never randomised
		s.bw.WriteBits(24, uint32(s.origPtr))
		s.generateMTFValues()
		s.sendMTFValues()
	}

	if isLast {
		for _, b := range eosMagic {
			s.bw.WriteByte(b)
		}
		s.bw.WriteUint32(s.combinedCRC)
		verbose.F(s.verbosity, 2, "    final combined CRC = 0x%08x\n   ", s.combinedCRC)
		s.bw.Finish()
	}
}
