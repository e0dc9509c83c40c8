// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package huffman

import (
	"math/rand"
	"testing"
)

func TestUniformLengths(t *testing.T) {
	lengths := make([]uint8, 4)
	freq := []int32{10, 10, 10, 10}
	MakeCodeLengths(lengths, freq, 4, 17)
	for i, l := range lengths {
		if got, want := l, uint8(2); got != want {
			t.Errorf("symbol %d: got length %d, want %d", i, got, want)
		}
	}
}

func TestSkewedLengths(t *testing.T) {
	// A two-symbol alphabet always yields 1-bit codes however skewed.
	lengths := make([]uint8, 2)
	MakeCodeLengths(lengths, []int32{1000000, 1}, 2, 17)
	if lengths[0] != 1 || lengths[1] != 1 {
		t.Errorf("got %v, want [1 1]", lengths)
	}
}

func kraftSum(lengths []uint8) float64 {
	sum := 0.0
	for _, l := range lengths {
		sum += 1.0 / float64(int(1)<<l)
	}
	return sum
}

func TestMakeCodeLengthsProperties(t *testing.T) {
	gen := rand.New(rand.NewSource(0x1234))
	for trial := 0; trial < 50; trial++ {
		alphaSize := 2 + gen.Intn(MaxAlphaSize-1)
		freq := make([]int32, alphaSize)
		for i := range freq {
			// Heavy skew to force the rescale path now and then.
			if gen.Intn(4) == 0 {
				freq[i] = int32(gen.Intn(1 << 20))
			} else {
				freq[i] = int32(gen.Intn(8))
			}
		}
		lengths := make([]uint8, alphaSize)
		MakeCodeLengths(lengths, freq, alphaSize, 17)

		for i, l := range lengths {
			if l < 1 || l > 17 {
				t.Fatalf("trial %d: symbol %d: length %d out of range", trial, i, l)
			}
		}
		// A complete prefix code satisfies Kraft with equality.
		if got := kraftSum(lengths); got != 1.0 {
			t.Fatalf("trial %d: kraft sum %v, want 1.0", trial, got)
		}
	}
}

// decodeOne mirrors the decoder's bit-at-a-time symbol loop.
func decodeOne(bits []byte, pos int, limit, base, perm []int32, minLen int) (sym int32, next int, ok bool) {
	zn := minLen
	zvec := int32(0)
	for i := 0; i < zn; i++ {
		zvec = zvec<<1 | int32(bits[pos+i])
	}
	pos += zn
	for {
		if zn > 20 {
			return 0, pos, false
		}
		if zvec <= limit[zn] {
			idx := zvec - base[zn]
			if idx < 0 || idx >= MaxAlphaSize {
				return 0, pos, false
			}
			return perm[idx], pos, true
		}
		zn++
		zvec = zvec<<1 | int32(bits[pos])
		pos++
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	gen := rand.New(rand.NewSource(0x5678))
	for trial := 0; trial < 20; trial++ {
		alphaSize := 2 + gen.Intn(MaxAlphaSize-1)
		freq := make([]int32, alphaSize)
		for i := range freq {
			freq[i] = int32(gen.Intn(1000))
		}
		lengths := make([]uint8, alphaSize)
		MakeCodeLengths(lengths, freq, alphaSize, 17)

		minLen, maxLen := 32, 0
		for _, l := range lengths {
			if int(l) < minLen {
				minLen = int(l)
			}
			if int(l) > maxLen {
				maxLen = int(l)
			}
		}

		code := make([]int32, alphaSize)
		AssignCodes(code, lengths, minLen, maxLen, alphaSize)

		limit := make([]int32, MaxCodeLen)
		base := make([]int32, MaxCodeLen)
		perm := make([]int32, MaxAlphaSize)
		DecodeTables(limit, base, perm, lengths, minLen, maxLen, alphaSize)

		// Encode a random symbol sequence bit by bit, then decode it.
		syms := make([]int32, 200)
		var bits []byte
		for i := range syms {
			s := int32(gen.Intn(alphaSize))
			syms[i] = s
			for b := int(lengths[s]) - 1; b >= 0; b-- {
				bits = append(bits, byte(code[s]>>uint(b)&1))
			}
		}

		pos := 0
		for i, want := range syms {
			got, next, ok := decodeOne(bits, pos, limit, base, perm, minLen)
			if !ok {
				t.Fatalf("trial %d: symbol %d: decode failed", trial, i)
			}
			if got != want {
				t.Fatalf("trial %d: symbol %d: got %d, want %d", trial, i, got, want)
			}
			pos = next
		}
	}
}
