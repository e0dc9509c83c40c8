// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package libbzip2

import (
	"bytes"
	cryptorand "crypto/rand"
	"encoding/hex"
	"testing"

	"github.com/cosnicolaou/libbzip2/internal/bitstream"
)

func TestEmptyInput(t *testing.T) {
	got := compressAll(t, nil, 1)
	want := []byte{
		0x42, 0x5a, 0x68, 0x31,
		0x17, 0x72, 0x45, 0x38, 0x50, 0x90,
		0x00, 0x00, 0x00, 0x00,
	}
	if !bytes.Equal(got, want) {
		t.Errorf("got %x, want %x", got, want)
	}
	if out := decompressAll(t, got, 16); len(out) != 0 {
		t.Errorf("got %d decompressed bytes, want 0", len(out))
	}
}

// storedCombinedCRC digs the trailer CRC out of a compressed stream.
func storedCombinedCRC(t *testing.T, stream []byte) uint32 {
	byteOff, bitOff := bitstream.Scan(bitstream.Pattern48(eosMagic), stream)
	if byteOff == -1 {
		t.Fatalf("no end of stream magic found")
	}
	start := byteOff*8 + bitOff + 48
	var v uint32
	for i := 0; i < 32; i++ {
		p := start + i
		v = v<<1 | uint32(stream[p/8]>>uint(7-p%8)&1)
	}
	return v
}

func TestHelloWorld(t *testing.T) {
	data := []byte("Hello, World!\n")
	z := compressAll(t, data, 9)
	if got, want := storedCombinedCRC(t, z), uint32(0x99AC2256); got != want {
		t.Errorf("combined CRC: got %#x, want %#x", got, want)
	}
	// Byte-for-byte what bzip2 1.0.8 emits for the same input.
	want, err := hex.DecodeString(
		"425a683931415926535999ac2256000002578000106004004000800604900020" +
			"00220681908069a689186acea4196f8bb9229c28484cd6112b00")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(z, want) {
		t.Errorf("compressed bytes differ from reference:\n got %x\nwant %x", z, want)
	}
	if got := decompressAll(t, z, len(data)+16); !bytes.Equal(got, data) {
		t.Errorf("got %q, want %q", got, data)
	}
}

func TestRoundTripAllBlockSizes(t *testing.T) {
	data := genCompressibleText(350000)
	for k := 1; k <= 9; k++ {
		z := compressAll(t, data, k)
		got := decompressAll(t, z, len(data)+16)
		if !bytes.Equal(got, data) {
			t.Errorf("block size %d: round trip mismatch", k)
		}
	}
}

func TestPathologicalRepeatedByte(t *testing.T) {
	// 1 MiB of 0xfb; RLE-1 reduces it to a block of 0xfb bytes (the
	// count byte of each full 255-byte run is 251 too) ending in one
	// shorter run whose count byte differs, a near-constant block that
	// the copy-step boundary check (1007) must survive.
	data := bytes.Repeat([]byte{0xfb}, 1<<20)
	z := compressAll(t, data, 9)
	got := decompressAll(t, z, len(data)+16)
	if !bytes.Equal(got, data) {
		t.Errorf("round trip mismatch: got %d bytes", len(got))
	}
}

func TestRandomDataSize(t *testing.T) {
	data := make([]byte, 256*1024)
	if _, err := cryptorand.Read(data); err != nil {
		t.Fatal(err)
	}
	z := compressAll(t, data, 1)
	// Incompressible data grows slightly; the exact size depends only
	// on how the symbol payload packs.
	if len(z) < 258000 || len(z) > 265000 {
		t.Errorf("compressed size %d outside [258000, 265000]", len(z))
	}
	got := decompressAll(t, z, len(data)+16)
	if !bytes.Equal(got, data) {
		t.Errorf("round trip mismatch")
	}
}

func TestTruncatedStream(t *testing.T) {
	data := genPredictableRandomData(256 * 1024)
	z := compressAll(t, data, 1)
	truncated := z[:len(z)-1]
	dst := make([]byte, len(data)+16)
	_, st := BuffToBuffDecompress(dst, truncated, false, 0)
	if st != UnexpectedEOF && st != DataError {
		t.Errorf("got %v, want %v or %v", st, UnexpectedEOF, DataError)
	}
}

func TestCorruptStream(t *testing.T) {
	data := genPredictableRandomData(256 * 1024)
	z := compressAll(t, data, 1)
	z[len(z)/2] ^= 0x80
	dst := make([]byte, 2*len(data))
	_, st := BuffToBuffDecompress(dst, z, false, 0)
	if st != DataError {
		t.Errorf("got %v, want %v", st, DataError)
	}
}

func TestMagicRejection(t *testing.T) {
	for _, tc := range [][]byte{
		{0x42, 0x5a, 0x68, 0x30}, // block factor below range
		{0x42, 0x5a, 0x67, 0x31}, // not 'h'
		{0x50, 0x4b, 0x03, 0x04}, // zip
		{0x42},                   // short but unambiguous later
	} {
		z := &Stream{}
		if st := z.DecompressInit(0, false); st != Ok {
			t.Fatalf("init: got %v", st)
		}
		z.In = tc
		z.Out = make([]byte, 16)
		st := z.Decompress()
		if len(tc) >= 4 {
			if st != DataErrorMagic {
				t.Errorf("%x: got %v, want %v", tc, st, DataErrorMagic)
			}
		} else if st != Ok {
			// Not enough bytes to condemn the stream yet.
			t.Errorf("%x: got %v, want %v", tc, st, Ok)
		}
		z.DecompressEnd()
	}
}

func TestSmallModeRoundTrip(t *testing.T) {
	data := genCompressibleText(150000)
	z := compressAll(t, data, 1)
	dst := make([]byte, len(data)+16)
	n, st := BuffToBuffDecompress(dst, z, true, 0)
	if st != Ok {
		t.Fatalf("small decompress: got %v, want %v", st, Ok)
	}
	if !bytes.Equal(dst[:n], data) {
		t.Errorf("round trip mismatch")
	}
}

func TestOutbuffFull(t *testing.T) {
	data := genCompressibleText(100000)
	z := compressAll(t, data, 1)
	dst := make([]byte, len(data)/2)
	if _, st := BuffToBuffDecompress(dst, z, false, 0); st != OutbuffFull {
		t.Errorf("got %v, want %v", st, OutbuffFull)
	}
	small := make([]byte, 16)
	if _, st := BuffToBuffCompress(small, data, 1, 0, 0); st != OutbuffFull {
		t.Errorf("got %v, want %v", st, OutbuffFull)
	}
}

func TestCompressBound(t *testing.T) {
	for _, size := range []int{0, 1, 100, 100000, 1 << 20} {
		data := genPredictableRandomData(size)
		dst := make([]byte, CompressBound(size))
		if _, st := BuffToBuffCompress(dst, data, 9, 0, 0); st != Ok {
			t.Errorf("size %d: got %v, want %v", size, st, Ok)
		}
	}
}
