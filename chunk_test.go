// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package libbzip2

import (
	"bytes"
	"testing"
)

// compressChunked streams data through a session inSize input bytes and
// outSize output bytes at a time.
func compressChunked(t *testing.T, data []byte, blockSize100k, inSize, outSize int) []byte {
	z := &Stream{}
	if st := z.CompressInit(blockSize100k, 0, 0); st != Ok {
		t.Fatalf("init: got %v", st)
	}
	var out []byte
	outBuf := make([]byte, outSize)

	remaining := data
	for len(remaining) > 0 {
		n := inSize
		if n > len(remaining) {
			n = len(remaining)
		}
		z.In = remaining[:n]
		remaining = remaining[n:]
		for len(z.In) > 0 {
			z.Out = outBuf
			if st := z.Compress(Run); st != RunOk {
				t.Fatalf("run: got %v", st)
			}
			out = append(out, outBuf[:outSize-len(z.Out)]...)
		}
	}
	for {
		z.Out = outBuf
		st := z.Compress(Finish)
		if st != FinishOk && st != StreamEnd {
			t.Fatalf("finish: got %v", st)
		}
		out = append(out, outBuf[:outSize-len(z.Out)]...)
		if st == StreamEnd {
			break
		}
	}
	z.CompressEnd()
	return out
}

// decompressChunked mirrors compressChunked for the decoder.
func decompressChunked(t *testing.T, data []byte, inSize, outSize int) []byte {
	z := &Stream{}
	if st := z.DecompressInit(0, false); st != Ok {
		t.Fatalf("init: got %v", st)
	}
	var out []byte
	outBuf := make([]byte, outSize)

	remaining := data
	for {
		if len(z.In) == 0 && len(remaining) > 0 {
			n := inSize
			if n > len(remaining) {
				n = len(remaining)
			}
			z.In = remaining[:n]
			remaining = remaining[n:]
		}
		z.Out = outBuf
		st := z.Decompress()
		produced := outSize - len(z.Out)
		out = append(out, outBuf[:produced]...)
		if st == StreamEnd {
			break
		}
		if st != Ok {
			t.Fatalf("decompress: got %v", st)
		}
		if produced == 0 && len(z.In) == 0 && len(remaining) == 0 {
			t.Fatalf("input exhausted before stream end")
		}
	}
	z.DecompressEnd()
	return out
}

// Session boundaries must not change a single output bit, whatever the
// chunking of either side: bit, RLE, CRC and block state all persist
// across suspension.
func TestChunkIndependence(t *testing.T) {
	data := genCompressibleText(250000)
	oneShot := compressAll(t, data, 1)

	for _, sizes := range []struct{ in, out int }{
		{1, 1},
		{7, 13},
		{4096, 8192},
		{1 << 20, 1},
		{1, 1 << 20},
	} {
		got := compressChunked(t, data, 1, sizes.in, sizes.out)
		if !bytes.Equal(got, oneShot) {
			t.Errorf("in %d out %d: compressed bytes differ from one-shot",
				sizes.in, sizes.out)
		}
	}

	for _, sizes := range []struct{ in, out int }{
		{1, 1},
		{13, 7},
		{8192, 4096},
	} {
		got := decompressChunked(t, oneShot, sizes.in, sizes.out)
		if !bytes.Equal(got, data) {
			t.Errorf("in %d out %d: decompressed bytes differ from input",
				sizes.in, sizes.out)
		}
	}
}

func TestFlushPreservesData(t *testing.T) {
	data := genCompressibleText(120000)
	z := &Stream{}
	if st := z.CompressInit(1, 0, 0); st != Ok {
		t.Fatalf("init: got %v", st)
	}
	var out []byte
	outBuf := make([]byte, 4096)

	// Feed a third, flush, feed the rest, finish.
	z.In = data[:40000]
	for {
		z.Out = outBuf
		st := z.Compress(Flush)
		if st != FlushOk && st != RunOk {
			t.Fatalf("flush: got %v", st)
		}
		out = append(out, outBuf[:len(outBuf)-len(z.Out)]...)
		if st == RunOk {
			break
		}
	}
	z.In = data[40000:]
	for {
		z.Out = outBuf
		st := z.Compress(Finish)
		if st != FinishOk && st != StreamEnd {
			t.Fatalf("finish: got %v", st)
		}
		out = append(out, outBuf[:len(outBuf)-len(z.Out)]...)
		if st == StreamEnd {
			break
		}
	}
	z.CompressEnd()

	got := decompressAll(t, out, len(data)+16)
	if !bytes.Equal(got, data) {
		t.Errorf("flush round trip mismatch")
	}
}
