// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package bitstream

import (
	"bytes"
	"math/rand"
	"testing"
)

func TestWriterBitOrder(t *testing.T) {
	var w Writer
	w.Init()
	w.WriteBits(1, 1)
	w.WriteBits(2, 0)
	w.WriteBits(5, 0x1f)
	w.Finish()
	if got, want := w.Bytes(), []byte{0x9f}; !bytes.Equal(got, want) {
		t.Errorf("got %x, want %x", got, want)
	}

	w.Init()
	w.WriteByte(0xab)
	w.WriteUint32(0x31415926)
	w.WriteBits(4, 0xc)
	w.Finish()
	if got, want := w.Bytes(), []byte{0xab, 0x31, 0x41, 0x59, 0x26, 0xc0}; !bytes.Equal(got, want) {
		t.Errorf("got %x, want %x", got, want)
	}
}

func TestWriterTruncateKeepsRegister(t *testing.T) {
	var w Writer
	w.Init()
	w.WriteBits(4, 0xf)
	w.Truncate() // nothing spilled yet
	w.WriteBits(4, 0x0)
	w.WriteByte(0x55)
	w.Finish()
	if got, want := w.Bytes(), []byte{0xf0, 0x55}; !bytes.Equal(got, want) {
		t.Errorf("got %x, want %x", got, want)
	}
}

func TestReaderWriterRoundTrip(t *testing.T) {
	gen := rand.New(rand.NewSource(0x1234))
	type item struct {
		n int
		v uint32
	}
	items := make([]item, 1000)
	var w Writer
	w.Init()
	for i := range items {
		n := 1 + gen.Intn(24)
		v := uint32(gen.Int63()) & (1<<uint(n) - 1)
		items[i] = item{n, v}
		w.WriteBits(n, v)
	}
	w.Finish()

	var r Reader
	buf := w.Bytes()
	pos := 0
	for i, it := range items {
		for r.Live() < it.n {
			r.Fill(buf[pos])
			pos++
		}
		if got, want := r.Take(it.n), it.v; got != want {
			t.Fatalf("item %d (%d bits): got %#x, want %#x", i, it.n, got, want)
		}
	}
}

func TestScanAligned(t *testing.T) {
	magic := [6]byte{0x31, 0x41, 0x59, 0x26, 0x53, 0x59}
	pat := Pattern48(magic)
	buf := append([]byte{0xde, 0xad, 0xbe, 0xef}, magic[:]...)
	buf = append(buf, 0x42)
	byteOff, bitOff := Scan(pat, buf)
	if got, want := byteOff, 4; got != want {
		t.Errorf("byte offset: got %v, want %v", got, want)
	}
	if got, want := bitOff, 0; got != want {
		t.Errorf("bit offset: got %v, want %v", got, want)
	}
}

func TestScanUnaligned(t *testing.T) {
	magic := [6]byte{0x31, 0x41, 0x59, 0x26, 0x53, 0x59}
	pat := Pattern48(magic)
	for shift := 0; shift < 8; shift++ {
		// Lay down `shift` one-bits, then the magic, then padding.
		var w Writer
		w.Init()
		w.WriteBits(8, 0) // a zero byte the pattern cannot start in
		for i := 0; i < shift; i++ {
			w.WriteBits(1, 1)
		}
		for _, b := range magic {
			w.WriteByte(b)
		}
		w.WriteUint32(0xffffffff)
		w.Finish()

		byteOff, bitOff := Scan(pat, w.Bytes())
		if got, want := byteOff, 1; got != want {
			t.Errorf("shift %d: byte offset: got %v, want %v", shift, got, want)
		}
		if got, want := bitOff, shift; got != want {
			t.Errorf("shift %d: bit offset: got %v, want %v", shift, got, want)
		}
	}
}

func TestScanAbsent(t *testing.T) {
	pat := Pattern48([6]byte{0x31, 0x41, 0x59, 0x26, 0x53, 0x59})
	if byteOff, bitOff := Scan(pat, []byte{1, 2, 3, 4, 5, 6, 7, 8}); byteOff != -1 || bitOff != -1 {
		t.Errorf("got (%v, %v), want (-1, -1)", byteOff, bitOff)
	}
	if byteOff, _ := Scan(pat, nil); byteOff != -1 {
		t.Errorf("got %v, want -1", byteOff)
	}
}
