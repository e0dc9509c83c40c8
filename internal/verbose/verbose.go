// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package verbose routes the codec's diagnostic prints through a single
// sink so that embedded builds can silence them.
package verbose

import (
	"fmt"
	"io"
	"os"
	"sync"
)

var (
	mu  sync.Mutex
	out io.Writer = os.Stderr
)

// SetOutput redirects diagnostic output; nil discards it.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

// F prints when the session verbosity is at least min.
func F(verbosity, min int, format string, args ...interface{}) {
	if verbosity < min {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	if out != nil {
		fmt.Fprintf(out, format, args...)
	}
}
