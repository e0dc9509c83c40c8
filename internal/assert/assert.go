// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package assert implements the internal consistency checks of the
// codec. The sort, the Huffman builder and the selector bookkeeping all
// encode invariants that must hold on well-formed internal data; a
// violation means a bug in this library (or failing hardware), not bad
// input, so it is not surfaced as a recoverable error.
package assert

import (
	"fmt"
	"os"
)

// H verifies an internal invariant. On failure it prints a diagnostic
// naming the numbered check and terminates the process, matching the
// reference library's behaviour.
func H(cond bool, errcode int) {
	if cond {
		return
	}
	fmt.Fprintf(os.Stderr, "\n\nlibbzip2: internal error number %d.\n"+
		"This is a bug in libbzip2. Please report it, ideally together\n"+
		"with the input that triggered it.\n\n", errcode)
	if errcode == 1007 {
		fmt.Fprint(os.Stderr, "*** A special note about internal error number 1007 ***\n\n"+
			"Experience suggests that a common cause of i.e. 1007\n"+
			"is unreliable memory or other hardware. The 1007 assertion\n"+
			"just happens to cross-check the results of huge numbers of\n"+
			"memory reads/writes, and so acts (unintendedly) as a stress\n"+
			"test of your memory system. Try compressing the input again\n"+
			"and running a memory test if the failure moves around.\n\n")
	}
	os.Exit(3)
}
