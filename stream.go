// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package libbzip2 implements the bzip2 compressed data format: a
// byte-exact encoder and decoder for .bz2 streams, compatible with the
// reference implementation. The low-level API mirrors the reference
// library's session model: a Stream carries the caller's input and
// output buffers and a direction-specific state that is driven
// incrementally by Compress and Decompress, never blocking; NewReader
// and NewWriter wrap it for ordinary io use.
package libbzip2

import (
	"fmt"
)

// Action selects what a Compress step should do.
type Action int

const (
	// Run moves as much data as the buffers allow.
	Run Action = iota
	// Flush forces out everything supplied so far before returning to
	// normal running.
	Flush
	// Finish ends the stream: remaining input is compressed, the stream
	// trailer emitted, and the session returns to idle.
	Finish
)

// Status is a stable return code shared with the reference library's
// ABI. Non-negative values report progress; negative values are errors.
type Status int

const (
	Ok        Status = 0
	RunOk     Status = 1
	FlushOk   Status = 2
	FinishOk  Status = 3
	StreamEnd Status = 4

	SequenceError  Status = -1
	ParamError     Status = -2
	MemError       Status = -3
	DataError      Status = -4
	DataErrorMagic Status = -5
	IOError        Status = -6
	UnexpectedEOF  Status = -7
	OutbuffFull    Status = -8
	ConfigError    Status = -9
)

var statusNames = map[Status]string{
	Ok:             "OK",
	RunOk:          "RUN_OK",
	FlushOk:        "FLUSH_OK",
	FinishOk:       "FINISH_OK",
	StreamEnd:      "STREAM_END",
	SequenceError:  "SEQUENCE_ERROR",
	ParamError:     "PARAM_ERROR",
	MemError:       "MEM_ERROR",
	DataError:      "DATA_ERROR",
	DataErrorMagic: "DATA_ERROR_MAGIC",
	IOError:        "IO_ERROR",
	UnexpectedEOF:  "UNEXPECTED_EOF",
	OutbuffFull:    "OUTBUFF_FULL",
	ConfigError:    "CONFIG_ERROR",
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Err returns nil for non-negative statuses and a StructuralError
// otherwise.
func (s Status) Err() error {
	if s >= 0 {
		return nil
	}
	return StructuralError(s.String())
}

// A StructuralError is returned when a bzip2 stream is found to be
// syntactically invalid, or when the session is misused.
type StructuralError string

func (s StructuralError) Error() string {
	return "bzip2 data invalid: " + string(s)
}

// Stream is one compression or decompression session. In and Out are
// the caller's buffers: each step consumes from the front of In and
// appends to the front of Out, reslicing both, and suspends rather than
// blocks when either is exhausted. The total counters are kept as two
// 32-bit halves for wire compatibility with the reference ABI.
type Stream struct {
	In  []byte
	Out []byte

	TotalInLo32  uint32
	TotalInHi32  uint32
	TotalOutLo32 uint32
	TotalOutHi32 uint32

	// Allocator provides the block-sized buffers the session owns; nil
	// selects the default heap allocator.
	Allocator Allocator

	state interface{} // *encoderState or *decoderState
}

// TotalIn returns the total number of input bytes consumed.
func (z *Stream) TotalIn() uint64 {
	return uint64(z.TotalInHi32)<<32 | uint64(z.TotalInLo32)
}

// TotalOut returns the total number of output bytes produced.
func (z *Stream) TotalOut() uint64 {
	return uint64(z.TotalOutHi32)<<32 | uint64(z.TotalOutLo32)
}

func (z *Stream) readByte() (byte, bool) {
	if len(z.In) == 0 {
		return 0, false
	}
	b := z.In[0]
	z.In = z.In[1:]
	z.TotalInLo32++
	if z.TotalInLo32 == 0 {
		z.TotalInHi32++
	}
	return b, true
}

func (z *Stream) writeByte(b byte) bool {
	if len(z.Out) == 0 {
		return false
	}
	z.Out[0] = b
	z.Out = z.Out[1:]
	z.TotalOutLo32++
	if z.TotalOutLo32 == 0 {
		z.TotalOutHi32++
	}
	return true
}

func (z *Stream) allocator() Allocator {
	if z.Allocator == nil {
		return HeapAllocator{}
	}
	return z.Allocator
}

// Allocator provides the heap for the block-sized arrays a session
// owns. The library calls it serially from whichever goroutine drives
// the session; a nil return from any Alloc method is reported to the
// caller as MemError with all prior allocations released. The default
// and a caller-supplied allocator are distinct implementations of the
// same interface, so the mismatched alloc/free pairing the reference
// ABI had to guard against cannot be expressed.
type Allocator interface {
	AllocBytes(n int) []byte
	AllocWords(n int) []uint32
	AllocHalves(n int) []uint16
	// Free releases a slice previously returned by one of the Alloc
	// methods.
	Free(p interface{})
}

// HeapAllocator is the default Allocator, backed by the Go heap.
type HeapAllocator struct{}

func (HeapAllocator) AllocBytes(n int) []byte    { return make([]byte, n) }
func (HeapAllocator) AllocWords(n int) []uint32  { return make([]uint32, n) }
func (HeapAllocator) AllocHalves(n int) []uint16 { return make([]uint16, n) }
func (HeapAllocator) Free(interface{})           {}
