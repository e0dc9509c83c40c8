// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package libbzip2

import (
	"io"
)

type writerOpts struct {
	blockSize100k int
	workFactor    int
	verbosity     int
}

// WriterOption represents an option to NewWriter.
type WriterOption func(*writerOpts)

// BlockSize sets the block factor, 1..9 in units of 100000 bytes.
// Larger blocks compress better and cost more memory.
func BlockSize(k int) WriterOption {
	return func(o *writerOpts) {
		o.blockSize100k = k
	}
}

// WorkFactor tunes how hard the main sort tries before falling back on
// repetitive input; 0 selects the default of 30.
func WorkFactor(wf int) WriterOption {
	return func(o *writerOpts) {
		o.workFactor = wf
	}
}

// WriterVerbosity sets the diagnostic level, 0 (silent) to 4.
func WriterVerbosity(v int) WriterOption {
	return func(o *writerOpts) {
		o.verbosity = v
	}
}

// Writer is an io.WriteCloser that bzip2-compresses to an underlying
// writer. It is a thin driver of the low-level session: all codec state
// lives there, so output is byte-identical no matter how writes are
// chunked.
type Writer struct {
	w      io.Writer
	z      *Stream
	buf    []byte
	err    error
	closed bool
}

// NewWriter returns a Writer compressing to w at the default block
// factor of 9.
func NewWriter(w io.Writer, opts ...WriterOption) (*Writer, error) {
	o := writerOpts{blockSize100k: 9}
	for _, fn := range opts {
		fn(&o)
	}
	z := &Stream{}
	if r := z.CompressInit(o.blockSize100k, o.verbosity, o.workFactor); r != Ok {
		return nil, r.Err()
	}
	return &Writer{
		w:   w,
		z:   z,
		buf: make([]byte, 32*1024),
	}, nil
}

func (w *Writer) drain() error {
	if n := len(w.buf) - len(w.z.Out); n > 0 {
		if _, err := w.w.Write(w.buf[:n]); err != nil {
			return err
		}
	}
	return nil
}

// Write implements io.Writer.
func (w *Writer) Write(p []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	if w.closed {
		w.err = SequenceError.Err()
		return 0, w.err
	}
	if len(p) == 0 {
		return 0, nil
	}
	w.z.In = p
	for len(w.z.In) > 0 {
		w.z.Out = w.buf
		if r := w.z.Compress(Run); r != RunOk {
			w.err = r.Err()
			return len(p) - len(w.z.In), w.err
		}
		if err := w.drain(); err != nil {
			w.err = err
			return len(p) - len(w.z.In), err
		}
	}
	return len(p), nil
}

// Flush forces all data written so far out to the underlying writer,
// ending the current block. Flushing degrades compression; it exists
// for record boundaries, not routine use.
func (w *Writer) Flush() error {
	if w.err != nil {
		return w.err
	}
	if w.closed {
		w.err = SequenceError.Err()
		return w.err
	}
	for {
		w.z.Out = w.buf
		r := w.z.Compress(Flush)
		if r != FlushOk && r != RunOk {
			w.err = r.Err()
			return w.err
		}
		if err := w.drain(); err != nil {
			w.err = err
			return err
		}
		if r == RunOk {
			return nil
		}
	}
}

// Close finishes the stream, writing the trailer, and releases the
// session. It does not close the underlying writer.
func (w *Writer) Close() error {
	if w.closed {
		return w.err
	}
	if w.err != nil {
		return w.err
	}
	for {
		w.z.Out = w.buf
		r := w.z.Compress(Finish)
		if r != FinishOk && r != StreamEnd {
			w.err = r.Err()
			return w.err
		}
		if err := w.drain(); err != nil {
			w.err = err
			return err
		}
		if r == StreamEnd {
			break
		}
	}
	w.z.CompressEnd()
	w.closed = true
	return nil
}
