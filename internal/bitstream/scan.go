// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package bitstream

// Pattern48 packs a 6-byte magic number into the low 48 bits of a
// uint64 for bit-aligned scanning.
func Pattern48(magic [6]byte) uint64 {
	var p uint64
	for _, b := range magic {
		p = p<<8 | uint64(b)
	}
	return p
}

// Scan finds the first bit-aligned occurrence of a 48-bit pattern in
// buf, treating buf as an MSB-first bitstream. It returns the offset of
// the byte containing the first bit of the pattern and the bit offset
// within that byte, or (-1, -1). That is, if the pattern starts at the
// 3rd bit of the third byte, the byte offset is 2 and the bit offset
// is 2.
func Scan(pattern uint64, buf []byte) (int, int) {
	const mask = 1<<48 - 1
	var w uint64
	for i := 0; i < len(buf); i++ {
		w = w<<8 | uint64(buf[i])
		n := 8 * (i + 1) // bits consumed so far
		// A candidate ending inside buf[i] starts at bit n-48-s. Check
		// the earliest start first so the leftmost match wins.
		for s := 7; s >= 0; s-- {
			if n < 48+s {
				continue
			}
			if w>>uint(s)&mask == pattern {
				p := n - 48 - s
				return p / 8, p % 8
			}
		}
	}
	return -1, -1
}
