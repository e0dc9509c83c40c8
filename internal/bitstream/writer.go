// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package bitstream provides the bit-level plumbing shared by the
// encoder and decoder. bzip2 bitstreams pack 8 bits into a byte with the
// most significant bit first, that is, the bitstream can be visualized
// as flowing from left to right.
package bitstream

// Writer accumulates an MSB-first bitstream into a growing byte buffer.
// Bits collect in a 32-bit register and spill into the buffer a byte at
// a time once at least 8 are present. The register persists across
// Truncate so that block boundaries need not be byte aligned.
type Writer struct {
	buf    []byte
	bsBuff uint32
	bsLive int
}

// Init clears both the buffer and the bit register. It is only called at
// the start of a stream; between blocks the register carries over.
func (w *Writer) Init() {
	w.buf = w.buf[:0]
	w.bsBuff = 0
	w.bsLive = 0
}

// WriteBits appends the low n bits of v, most significant first.
// n must be at most 24.
func (w *Writer) WriteBits(n int, v uint32) {
	for w.bsLive >= 8 {
		w.buf = append(w.buf, byte(w.bsBuff>>24))
		w.bsBuff <<= 8
		w.bsLive -= 8
	}
	w.bsBuff |= v << uint(32-w.bsLive-n)
	w.bsLive += n
}

// WriteByte appends one byte.
func (w *Writer) WriteByte(c byte) {
	w.WriteBits(8, uint32(c))
}

// WriteUint32 appends u big-endian.
func (w *Writer) WriteUint32(u uint32) {
	w.WriteBits(8, u>>24&0xff)
	w.WriteBits(8, u>>16&0xff)
	w.WriteBits(8, u>>8&0xff)
	w.WriteBits(8, u&0xff)
}

// Finish flushes the register, padding the final byte with zero bits on
// the right.
func (w *Writer) Finish() {
	for w.bsLive > 0 {
		w.buf = append(w.buf, byte(w.bsBuff>>24))
		w.bsBuff <<= 8
		w.bsLive -= 8
	}
}

// Bytes returns the bytes spilled so far.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Truncate discards the spilled bytes but keeps the bit register, so the
// next block continues at the current bit position.
func (w *Writer) Truncate() {
	w.buf = w.buf[:0]
}
