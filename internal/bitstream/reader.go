// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package bitstream

// Reader is the decoder's bit register. Unlike an io.Reader-backed
// design it never pulls bytes itself: the caller feeds it one input byte
// at a time via Fill and the decoder suspends when no byte is available,
// which is what makes the decompression state machine resumable across
// arbitrary input chunk boundaries.
type Reader struct {
	bsBuff uint32
	bsLive int
}

// Live returns the number of buffered bits.
func (r *Reader) Live() int {
	return r.bsLive
}

// Fill appends one input byte below the buffered bits. At most 24 bits
// may be buffered when Fill is called.
func (r *Reader) Fill(b byte) {
	r.bsBuff = r.bsBuff<<8 | uint32(b)
	r.bsLive += 8
}

// Take removes and returns the top n buffered bits. The caller must have
// ensured Live() >= n.
func (r *Reader) Take(n int) uint32 {
	v := r.bsBuff >> uint(r.bsLive-n) & (1<<uint(n) - 1)
	r.bsLive -= n
	return v
}

// Reset discards any buffered bits.
func (r *Reader) Reset() {
	r.bsBuff = 0
	r.bsLive = 0
}
