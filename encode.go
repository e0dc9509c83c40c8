// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package libbzip2

import (
	"github.com/cosnicolaou/libbzip2/internal/bitstream"
	"github.com/cosnicolaou/libbzip2/internal/blocksort"
	"github.com/cosnicolaou/libbzip2/internal/crc"
	"github.com/cosnicolaou/libbzip2/internal/huffman"
)

const (
	// maxSelectors caps the per-block selector list: one selector per 50
	// MTF symbols of the largest possible block, plus slack.
	maxSelectors = 2 + 900000/50
	maxGroups    = 6
)

// Encoder phases. mode tracks the action protocol, state whether the
// session is filling a block or draining compressed bytes.
const (
	modeIdle      = 1
	modeRunning   = 2
	modeFlushing  = 3
	modeFinishing = 4

	stateOutput = 1
	stateInput  = 2
)

type encoderState struct {
	strm *Stream // owning session; operations reject any other

	mode          int
	state         int
	availInExpect uint32

	blockSize100k int
	verbosity     int
	workFactor    int

	// Block-sized buffers, allocated once at init.
	ptr      []uint32 // BWT pointer order
	block    []byte   // input bytes after RLE-1, plus sort overshoot
	quadrant []uint16 // sort comparator ranks
	ftab     []uint32 // byte-pair frequencies / bucket bounds
	mtfv     []uint16 // MTF+RLE-2 symbols

	bw     bitstream.Writer // packed compressed bits
	outPos int              // prefix of bw already handed to the caller

	blockNo   int
	nblock    int
	nblockMAX int
	origPtr   int

	// Live RLE-1 run; stateInCh of 256 means empty.
	stateInCh  uint32
	stateInLen int32

	blockCRC    uint32
	combinedCRC uint32

	inUse      [256]bool
	nInUse     int
	unseqToSeq [256]uint8

	nMTF        int
	mtfFreq     [huffman.MaxAlphaSize]int32
	selector    [maxSelectors]uint8
	selectorMtf [maxSelectors]uint8
	length      [maxGroups][huffman.MaxAlphaSize]uint8
	code        [maxGroups][huffman.MaxAlphaSize]int32
}

// CompressInit prepares z for compression with the given block factor
// (1..9, units of 100000 bytes), verbosity (0..4) and work factor
// (0..250, 0 meaning the default of 30).
func (z *Stream) CompressInit(blockSize100k, verbosity, workFactor int) Status {
	if z == nil ||
		blockSize100k < 1 || blockSize100k > 9 ||
		verbosity < 0 || verbosity > 4 ||
		workFactor < 0 || workFactor > 250 {
		return ParamError
	}
	if workFactor == 0 {
		workFactor = 30
	}

	alloc := z.allocator()
	n := 100000 * blockSize100k
	s := &encoderState{
		strm:          z,
		blockSize100k: blockSize100k,
		verbosity:     verbosity,
		workFactor:    workFactor,
	}
	s.ptr = alloc.AllocWords(n)
	s.block = alloc.AllocBytes(n + blocksort.Overshoot)
	s.quadrant = alloc.AllocHalves(n + blocksort.Overshoot)
	s.ftab = alloc.AllocWords(blocksort.FtabLen)
	s.mtfv = alloc.AllocHalves(n + 1)
	if s.ptr == nil || s.block == nil || s.quadrant == nil || s.ftab == nil || s.mtfv == nil {
		if s.ptr != nil {
			alloc.Free(s.ptr)
		}
		if s.block != nil {
			alloc.Free(s.block)
		}
		if s.quadrant != nil {
			alloc.Free(s.quadrant)
		}
		if s.ftab != nil {
			alloc.Free(s.ftab)
		}
		if s.mtfv != nil {
			alloc.Free(s.mtfv)
		}
		return MemError
	}

	s.blockNo = 0
	s.state = stateInput
	s.mode = modeRunning
	s.combinedCRC = 0
	s.nblockMAX = n - 19

	z.TotalInLo32, z.TotalInHi32 = 0, 0
	z.TotalOutLo32, z.TotalOutHi32 = 0, 0

	s.initRL()
	s.prepareNewBlock()
	z.state = s
	return Ok
}

func (s *encoderState) initRL() {
	s.stateInCh = 256
	s.stateInLen = 0
}

func (s *encoderState) isemptyRL() bool {
	return !(s.stateInCh < 256 && s.stateInLen > 0)
}

func (s *encoderState) prepareNewBlock() {
	s.nblock = 0
	s.bw.Truncate()
	s.outPos = 0
	s.blockCRC = crc.BlockInit
	for i := range s.inUse {
		s.inUse[i] = false
	}
	s.blockNo++
}

// addPairToBlock empties the live RLE-1 run into the block: runs of up
// to 3 literally, longer ones as 4 copies plus a count byte. The count
// byte joins the in-use map like any other block byte.
func (s *encoderState) addPairToBlock() {
	ch := byte(s.stateInCh)
	for i := int32(0); i < s.stateInLen; i++ {
		s.blockCRC = crc.UpdateByte(s.blockCRC, ch)
	}
	s.inUse[ch] = true
	switch s.stateInLen {
	case 1:
		s.block[s.nblock] = ch
		s.nblock++
	case 2:
		s.block[s.nblock] = ch
		s.block[s.nblock+1] = ch
		s.nblock += 2
	case 3:
		s.block[s.nblock] = ch
		s.block[s.nblock+1] = ch
		s.block[s.nblock+2] = ch
		s.nblock += 3
	default:
		s.inUse[s.stateInLen-4] = true
		s.block[s.nblock] = ch
		s.block[s.nblock+1] = ch
		s.block[s.nblock+2] = ch
		s.block[s.nblock+3] = ch
		s.block[s.nblock+4] = byte(s.stateInLen - 4)
		s.nblock += 5
	}
}

func (s *encoderState) flushRL() {
	if s.stateInCh < 256 {
		s.addPairToBlock()
	}
	s.initRL()
}

func (s *encoderState) addCharToBlock(zchh byte) {
	ch32 := uint32(zchh)
	switch {
	case ch32 != s.stateInCh && s.stateInLen == 1:
		// Fast path for the common no-run case.
		ch := byte(s.stateInCh)
		s.blockCRC = crc.UpdateByte(s.blockCRC, ch)
		s.inUse[ch] = true
		s.block[s.nblock] = ch
		s.nblock++
		s.stateInCh = ch32
	case ch32 != s.stateInCh || s.stateInLen == 255:
		if s.stateInCh < 256 {
			s.addPairToBlock()
		}
		s.stateInCh = ch32
		s.stateInLen = 1
	default:
		s.stateInLen++
	}
}

func (s *encoderState) copyInputUntilStop(z *Stream) bool {
	progress := false
	bounded := s.mode != modeRunning
	for s.nblock < s.nblockMAX && len(z.In) > 0 {
		if bounded && s.availInExpect == 0 {
			break
		}
		progress = true
		b, _ := z.readByte()
		s.addCharToBlock(b)
		if bounded {
			s.availInExpect--
		}
	}
	return progress
}

func (s *encoderState) copyOutputUntilStop(z *Stream) bool {
	progress := false
	buf := s.bw.Bytes()
	for len(z.Out) > 0 && s.outPos < len(buf) {
		progress = true
		z.writeByte(buf[s.outPos])
		s.outPos++
	}
	return progress
}

// handleCompress alternates filling the block from the caller's input
// (applying RLE-1) with draining the packed compressed bits into the
// caller's output, until one of the two runs dry.
func (s *encoderState) handleCompress(z *Stream) bool {
	progressIn, progressOut := false, false
	for {
		if s.state == stateOutput {
			if s.copyOutputUntilStop(z) {
				progressOut = true
			}
			if s.outPos < len(s.bw.Bytes()) {
				break
			}
			if s.mode == modeFinishing && s.availInExpect == 0 && s.isemptyRL() {
				break
			}
			s.prepareNewBlock()
			s.state = stateInput
			if s.mode == modeFlushing && s.availInExpect == 0 && s.isemptyRL() {
				break
			}
		}
		if s.state != stateInput {
			continue
		}
		if s.copyInputUntilStop(z) {
			progressIn = true
		}
		if s.mode != modeRunning && s.availInExpect == 0 {
			s.flushRL()
			s.compressBlock(s.mode == modeFinishing)
			s.state = stateOutput
		} else if s.nblock >= s.nblockMAX {
			s.compressBlock(false)
			s.state = stateOutput
		} else if len(z.In) == 0 {
			break
		}
	}
	return progressIn || progressOut
}

// Compress drives the encoder one step per the action protocol (see
// Action). It never blocks: exhausted input or full output suspends the
// step with all state retained.
func (z *Stream) Compress(action Action) Status {
	if z == nil {
		return ParamError
	}
	s, ok := z.state.(*encoderState)
	if !ok || s == nil {
		return ParamError
	}
	if s.strm != z {
		return ParamError
	}

	for {
		switch s.mode {
		case modeIdle:
			return SequenceError

		case modeRunning:
			switch action {
			case Run:
				if s.handleCompress(z) {
					return RunOk
				}
				return SequenceError
			case Flush:
				s.availInExpect = uint32(len(z.In))
				s.mode = modeFlushing
			case Finish:
				s.availInExpect = uint32(len(z.In))
				s.mode = modeFinishing
			default:
				return ParamError
			}

		case modeFlushing:
			if action != Flush {
				return SequenceError
			}
			if s.availInExpect != uint32(len(z.In)) {
				return SequenceError
			}
			s.handleCompress(z)
			if s.availInExpect > 0 || !s.isemptyRL() || s.outPos < len(s.bw.Bytes()) {
				return FlushOk
			}
			s.mode = modeRunning
			return RunOk

		case modeFinishing:
			if action != Finish {
				return SequenceError
			}
			if s.availInExpect != uint32(len(z.In)) {
				return SequenceError
			}
			if !s.handleCompress(z) {
				return SequenceError
			}
			if s.availInExpect > 0 || !s.isemptyRL() || s.outPos < len(s.bw.Bytes()) {
				return FinishOk
			}
			s.mode = modeIdle
			return StreamEnd

		default:
			return Ok
		}
	}
}

// CompressEnd releases the session's buffers and idles the session.
func (z *Stream) CompressEnd() Status {
	if z == nil {
		return ParamError
	}
	s, ok := z.state.(*encoderState)
	if !ok || s == nil {
		return ParamError
	}
	if s.strm != z {
		return ParamError
	}
	alloc := z.allocator()
	alloc.Free(s.ptr)
	alloc.Free(s.block)
	alloc.Free(s.quadrant)
	alloc.Free(s.ftab)
	alloc.Free(s.mtfv)
	z.state = nil
	return Ok
}
