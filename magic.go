// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package libbzip2

var (
	// fileMagic starts every stream, followed by the ASCII block factor.
	fileMagic = [3]byte{0x42, 0x5a, 0x68} // "BZh"

	// blockMagic introduces each compressed block.
	blockMagic = [6]byte{0x31, 0x41, 0x59, 0x26, 0x53, 0x59}

	// eosMagic introduces the stream trailer.
	eosMagic = [6]byte{0x17, 0x72, 0x45, 0x38, 0x50, 0x90}
)
