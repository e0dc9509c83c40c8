// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package libbzip2

import (
	"bytes"
	gobzip2 "compress/bzip2"
	"io"
	"io/ioutil"
	"testing"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	data := genCompressibleText(300000)
	var buf bytes.Buffer
	zw, err := NewWriter(&buf, BlockSize(1))
	if err != nil {
		t.Fatal(err)
	}
	// Uneven write sizes exercise block boundaries.
	for off := 0; off < len(data); {
		n := 1000 + off%7777
		if off+n > len(data) {
			n = len(data) - off
		}
		if _, err := zw.Write(data[off : off+n]); err != nil {
			t.Fatal(err)
		}
		off += n
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	zr, err := NewReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	got, err := ioutil.ReadAll(zr)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("round trip mismatch: got %d bytes, want %d", len(got), len(data))
	}
}

// The stdlib decoder is an independent implementation; anything it
// rejects or decodes differently is an encoder bug.
func TestWriterAgainstStdlib(t *testing.T) {
	for _, data := range [][]byte{
		nil,
		[]byte("Hello, World!\n"),
		genCompressibleText(250000),
		genPredictableRandomData(65536),
		bytes.Repeat([]byte{0xfb}, 300000),
		bytes.Repeat([]byte("ab"), 100000),
	} {
		var buf bytes.Buffer
		zw, err := NewWriter(&buf, BlockSize(2))
		if err != nil {
			t.Fatal(err)
		}
		if _, err := zw.Write(data); err != nil {
			t.Fatal(err)
		}
		if err := zw.Close(); err != nil {
			t.Fatal(err)
		}
		got, err := ioutil.ReadAll(gobzip2.NewReader(&buf))
		if err != nil {
			t.Fatalf("stdlib rejected our stream: %v", err)
		}
		if !bytes.Equal(got, data) {
			t.Errorf("stdlib decode mismatch: got %d bytes, want %d", len(got), len(data))
		}
	}
}

func TestWriterFlush(t *testing.T) {
	data := genCompressibleText(120000)
	var buf bytes.Buffer
	zw, err := NewWriter(&buf, BlockSize(1))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := zw.Write(data[:50000]); err != nil {
		t.Fatal(err)
	}
	if err := zw.Flush(); err != nil {
		t.Fatal(err)
	}
	mark := buf.Len()
	if mark == 0 {
		t.Errorf("flush produced no output")
	}
	if _, err := zw.Write(data[50000:]); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	zr, err := NewReader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	got, err := ioutil.ReadAll(zr)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("round trip with flush mismatch")
	}
}

func TestReaderMultistream(t *testing.T) {
	first := genCompressibleText(80000)
	second := []byte("and a second stream\n")
	var buf bytes.Buffer
	for _, data := range [][]byte{first, second} {
		zw, err := NewWriter(&buf, BlockSize(1))
		if err != nil {
			t.Fatal(err)
		}
		if _, err := zw.Write(data); err != nil {
			t.Fatal(err)
		}
		if err := zw.Close(); err != nil {
			t.Fatal(err)
		}
	}

	zr, err := NewReader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	got, err := ioutil.ReadAll(zr)
	if err != nil {
		t.Fatal(err)
	}
	want := append(append([]byte{}, first...), second...)
	if !bytes.Equal(got, want) {
		t.Errorf("multistream: got %d bytes, want %d", len(got), len(want))
	}
}

func TestReaderTrailingGarbage(t *testing.T) {
	data := []byte("payload\n")
	var buf bytes.Buffer
	zw, err := NewWriter(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := zw.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	buf.Write([]byte{0x00, 0x11, 0x22})

	zr, err := NewReader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	got, err := ioutil.ReadAll(zr)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("got %q, want %q", got, data)
	}
}

func TestReaderTruncated(t *testing.T) {
	data := genCompressibleText(50000)
	var buf bytes.Buffer
	zw, err := NewWriter(&buf, BlockSize(1))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := zw.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	truncated := buf.Bytes()[:buf.Len()/2]

	zr, err := NewReader(bytes.NewReader(truncated))
	if err != nil {
		t.Fatal(err)
	}
	_, err = ioutil.ReadAll(zr)
	if err != io.ErrUnexpectedEOF {
		t.Errorf("got %v, want %v", err, io.ErrUnexpectedEOF)
	}
}

// Every stream the stdlib encoder cannot produce: decode our own output
// through the session layer in small mode via the Reader option.
func TestReaderSmallMode(t *testing.T) {
	data := genCompressibleText(150000)
	var buf bytes.Buffer
	zw, err := NewWriter(&buf, BlockSize(1))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := zw.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	zr, err := NewReader(&buf, Small(true))
	if err != nil {
		t.Fatal(err)
	}
	got, err := ioutil.ReadAll(zr)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("small mode round trip mismatch")
	}
}
