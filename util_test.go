// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package libbzip2

import (
	"math/rand"
)

// Seed for the pseudorandom generator used by deterministic fixtures.
const randSeed = 0x1234

func genPredictableRandomData(size int) []byte {
	gen := rand.New(rand.NewSource(randSeed))
	out := make([]byte, size)
	for i := range out {
		out[i] = byte(gen.Intn(256))
	}
	return out
}

// genCompressibleText produces deterministic text-like data that spans
// several compressed blocks at small block factors.
func genCompressibleText(size int) []byte {
	gen := rand.New(rand.NewSource(randSeed))
	words := []string{"the", "quick", "brown", "fox", "jumps", "over",
		"a", "lazy", "dog", "while", "compressing", "blocks"}
	out := make([]byte, 0, size)
	for len(out) < size {
		out = append(out, words[gen.Intn(len(words))]...)
		out = append(out, ' ')
	}
	return out[:size]
}

func compressAll(t testingT, data []byte, blockSize100k int) []byte {
	dst := make([]byte, CompressBound(len(data)))
	n, st := BuffToBuffCompress(dst, data, blockSize100k, 0, 0)
	if st != Ok {
		t.Fatalf("compress: got %v, want %v", st, Ok)
	}
	return dst[:n]
}

func decompressAll(t testingT, data []byte, sizeHint int) []byte {
	dst := make([]byte, sizeHint)
	n, st := BuffToBuffDecompress(dst, data, false, 0)
	if st != Ok {
		t.Fatalf("decompress: got %v, want %v", st, Ok)
	}
	return dst[:n]
}

// testingT is the subset of *testing.T the helpers need.
type testingT interface {
	Fatalf(format string, args ...interface{})
}
