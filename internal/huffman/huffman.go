// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package huffman builds the canonical prefix codes used by the bzip2
// block coder: length assignment on the encoder side, and the
// limit/base/perm tables that drive the decoder's bit-at-a-time symbol
// reader.
package huffman

import (
	"github.com/cosnicolaou/libbzip2/internal/assert"
)

const (
	// MaxAlphaSize is the largest alphabet a table can code: 256 byte
	// values plus RUNB and the end-of-block symbol.
	MaxAlphaSize = 258
	// MaxCodeLen bounds code lengths the decoder will follow. The
	// encoder emits at most 17 bits, the decoder tolerates 20; the
	// tables leave room beyond both.
	MaxCodeLen = 23
)

// Node weights pack a scaled frequency in the upper 24 bits and the
// subtree depth in the low 8. The depth acts as a tie-break that keeps
// trees shallow when weights collide.
func weightOf(w int64) int64 { return w & ^int64(0xff) }
func depthOf(w int64) int64  { return w & 0xff }

func addWeights(w1, w2 int64) int64 {
	d1, d2 := depthOf(w1), depthOf(w2)
	if d1 < d2 {
		d1 = d2
	}
	return weightOf(w1) + weightOf(w2) | (1 + d1)
}

func upHeap(heap *[MaxAlphaSize + 2]int32, weight *[MaxAlphaSize * 2]int64, z int32) {
	tmp := heap[z]
	for weight[tmp] < weight[heap[z>>1]] {
		heap[z] = heap[z>>1]
		z >>= 1
	}
	heap[z] = tmp
}

func downHeap(heap *[MaxAlphaSize + 2]int32, weight *[MaxAlphaSize * 2]int64, nHeap, z int32) {
	tmp := heap[z]
	for {
		yy := z << 1
		if yy > nHeap {
			break
		}
		if yy < nHeap && weight[heap[yy+1]] < weight[heap[yy]] {
			yy++
		}
		if weight[tmp] < weight[heap[yy]] {
			break
		}
		heap[z] = heap[yy]
		z = yy
	}
	heap[z] = tmp
}

// MakeCodeLengths assigns canonical code lengths for alphaSize symbols
// with the given frequencies, none exceeding maxLen. Zero frequencies
// are treated as one so every symbol gets a code. If the first tree
// exceeds maxLen anywhere, every weight is rescaled towards one and the
// tree rebuilt; the loop terminates because rescaling strictly reduces
// weight disparities.
func MakeCodeLengths(lengths []uint8, freq []int32, alphaSize, maxLen int) {
	var (
		heap   [MaxAlphaSize + 2]int32
		weight [MaxAlphaSize * 2]int64
		parent [MaxAlphaSize * 2]int32
	)

	for i := 0; i < alphaSize; i++ {
		f := freq[i]
		if f == 0 {
			f = 1
		}
		weight[i+1] = int64(f) << 8
	}

	for {
		nNodes := int32(alphaSize)
		nHeap := int32(0)

		heap[0] = 0
		weight[0] = 0
		parent[0] = -2

		for i := int32(1); i <= int32(alphaSize); i++ {
			parent[i] = -1
			nHeap++
			heap[nHeap] = i
			upHeap(&heap, &weight, nHeap)
		}
		assert.H(nHeap < MaxAlphaSize+2, 2001)

		for nHeap > 1 {
			n1 := heap[1]
			heap[1] = heap[nHeap]
			nHeap--
			downHeap(&heap, &weight, nHeap, 1)
			n2 := heap[1]
			heap[1] = heap[nHeap]
			nHeap--
			downHeap(&heap, &weight, nHeap, 1)
			nNodes++
			parent[n1] = nNodes
			parent[n2] = nNodes
			weight[nNodes] = addWeights(weight[n1], weight[n2])
			parent[nNodes] = -1
			nHeap++
			heap[nHeap] = nNodes
			upHeap(&heap, &weight, nHeap)
		}
		assert.H(nNodes < MaxAlphaSize*2, 2002)

		tooLong := false
		for i := 1; i <= alphaSize; i++ {
			j := 0
			k := int32(i)
			for parent[k] >= 0 {
				k = parent[k]
				j++
			}
			lengths[i-1] = uint8(j)
			if j > maxLen {
				tooLong = true
			}
		}
		if !tooLong {
			return
		}

		for i := 1; i <= alphaSize; i++ {
			j := weight[i] >> 8
			j = 1 + j/2
			weight[i] = j << 8
		}
	}
}

// AssignCodes derives the canonical codes from the lengths: symbols of
// each length, shortest first, receive consecutive integers, with the
// running value doubled between lengths.
func AssignCodes(code []int32, lengths []uint8, minLen, maxLen, alphaSize int) {
	vec := int32(0)
	for n := minLen; n <= maxLen; n++ {
		for i := 0; i < alphaSize; i++ {
			if int(lengths[i]) == n {
				code[i] = vec
				vec++
			}
		}
		vec <<= 1
	}
}

// DecodeTables builds the decoder's view of a canonical code. Reading
// bit by bit into zvec starting at length minLen: once zvec <= limit[n]
// the symbol is perm[zvec-base[n]]; otherwise read another bit and try
// length n+1.
func DecodeTables(limit, base, perm []int32, lengths []uint8, minLen, maxLen, alphaSize int) {
	pp := 0
	for i := minLen; i <= maxLen; i++ {
		for j := 0; j < alphaSize; j++ {
			if int(lengths[j]) == i {
				perm[pp] = int32(j)
				pp++
			}
		}
	}

	for i := 0; i < MaxCodeLen; i++ {
		base[i] = 0
	}
	for i := 0; i < alphaSize; i++ {
		base[lengths[i]+1]++
	}
	for i := 1; i < MaxCodeLen; i++ {
		base[i] += base[i-1]
	}

	for i := 0; i < MaxCodeLen; i++ {
		limit[i] = 0
	}
	vec := int32(0)
	for i := minLen; i <= maxLen; i++ {
		vec += base[i+1] - base[i]
		limit[i] = vec - 1
		vec <<= 1
	}
	for i := minLen + 1; i <= maxLen; i++ {
		base[i] = (limit[i-1]+1)<<1 - base[i]
	}
}
