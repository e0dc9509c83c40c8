// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package libbzip2

import (
	"io"

	"github.com/cosnicolaou/libbzip2/internal/verbose"
)

// SetDiagnosticOutput redirects the diagnostic prints produced at
// non-zero verbosity levels; nil discards them. The default is
// os.Stderr. All sessions share the one sink.
func SetDiagnosticOutput(w io.Writer) {
	verbose.SetOutput(w)
}
