// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"io/ioutil"

	"github.com/cosnicolaou/libbzip2/internal/bitstream"
)

var (
	blockMagic = [6]byte{0x31, 0x41, 0x59, 0x26, 0x53, 0x59}
	eosMagic   = [6]byte{0x17, 0x72, 0x45, 0x38, 0x50, 0x90}
)

// readBitsAt extracts n (<= 32) bits starting at the given bit offset.
func readBitsAt(buf []byte, bitOff, n int) uint32 {
	var v uint32
	for i := 0; i < n; i++ {
		p := bitOff + i
		bit := buf[p/8] >> uint(7-p%8) & 1
		v = v<<1 | uint32(bit)
	}
	return v
}

// inspectOne lists the bit offset and stored CRC of every block in a
// stream, using the bit-aligned magic scanner; block payloads are not
// decoded, so damaged streams can still be mapped.
func inspectOne(ctx context.Context, name string) error {
	rd, _, inDone, err := openInput(ctx, name)
	if err != nil {
		return err
	}
	defer inDone(ctx) //nolint:errcheck

	buf, err := ioutil.ReadAll(rd)
	if err != nil {
		return err
	}
	if len(buf) < 4 || buf[0] != 'B' || buf[1] != 'Z' || buf[2] != 'h' ||
		buf[3] < '1' || buf[3] > '9' {
		return fmt.Errorf("not a bzip2 stream")
	}
	fmt.Printf("%v: block size %d00k\n", name, buf[3]-'0')

	blockPat := bitstream.Pattern48(blockMagic)
	eosPat := bitstream.Pattern48(eosMagic)

	pos := 4 * 8 // past the stream header, in bits
	for n := 1; ; n++ {
		rest := buf[pos/8:]
		byteOff, bitOff := bitstream.Scan(blockPat, rest)
		if byteOff == -1 {
			break
		}
		start := pos/8*8 + byteOff*8 + bitOff
		crc := readBitsAt(buf, start+48, 32)
		fmt.Printf("  block %d: offset %d bits, crc 0x%08x\n", n, start, crc)
		pos = start + 48
	}

	rest := buf[pos/8:]
	if byteOff, bitOff := bitstream.Scan(eosPat, rest); byteOff != -1 {
		start := pos/8*8 + byteOff*8 + bitOff
		crc := readBitsAt(buf, start+48, 32)
		fmt.Printf("  end of stream: offset %d bits, combined crc 0x%08x\n", start, crc)
	}
	return nil
}
