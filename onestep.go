// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package libbzip2

// CompressBound returns a destination size sufficient for BuffToBuffCompress
// to succeed on any input of length n: the input plus 1% plus 600 bytes
// for stream and block overheads.
func CompressBound(n int) int {
	return n + n/100 + 600
}

// BuffToBuffCompress compresses src into dst in one shot, returning the
// number of bytes written. If dst is too small it returns OutbuffFull
// and dst's contents are unspecified.
func BuffToBuffCompress(dst, src []byte, blockSize100k, verbosity, workFactor int) (int, Status) {
	if blockSize100k < 1 || blockSize100k > 9 ||
		verbosity < 0 || verbosity > 4 ||
		workFactor < 0 || workFactor > 250 {
		return 0, ParamError
	}
	z := &Stream{}
	if r := z.CompressInit(blockSize100k, verbosity, workFactor); r != Ok {
		return 0, r
	}
	z.In = src
	z.Out = dst
	r := z.Compress(Finish)
	switch {
	case r == FinishOk:
		z.CompressEnd()
		return 0, OutbuffFull
	case r != StreamEnd:
		z.CompressEnd()
		return 0, r
	}
	n := len(dst) - len(z.Out)
	z.CompressEnd()
	return n, Ok
}

// BuffToBuffDecompress decompresses a complete stream from src into
// dst, returning the number of bytes written. A src that ends before
// the stream trailer yields UnexpectedEOF; a dst too small for the
// decompressed data yields OutbuffFull.
func BuffToBuffDecompress(dst, src []byte, small bool, verbosity int) (int, Status) {
	if verbosity < 0 || verbosity > 4 {
		return 0, ParamError
	}
	z := &Stream{}
	if r := z.DecompressInit(verbosity, small); r != Ok {
		return 0, r
	}
	z.In = src
	z.Out = dst
	r := z.Decompress()
	switch {
	case r == Ok:
		z.DecompressEnd()
		if len(z.Out) > 0 {
			return 0, UnexpectedEOF
		}
		return 0, OutbuffFull
	case r != StreamEnd:
		z.DecompressEnd()
		return 0, r
	}
	n := len(dst) - len(z.Out)
	z.DecompressEnd()
	return n, Ok
}
