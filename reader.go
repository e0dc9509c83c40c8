// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package libbzip2

import (
	"io"
)

type readerOpts struct {
	small     bool
	verbosity int
}

// ReaderOption represents an option to NewReader.
type ReaderOption func(*readerOpts)

// Small selects the half-memory decompression mode, trading speed for
// 2.5 bytes of working storage per block byte instead of 4.
func Small(small bool) ReaderOption {
	return func(o *readerOpts) {
		o.small = small
	}
}

// ReaderVerbosity sets the diagnostic level, 0 (silent) to 4.
func ReaderVerbosity(v int) ReaderOption {
	return func(o *readerOpts) {
		o.verbosity = v
	}
}

// Reader is an io.Reader that decompresses bzip2 data from an
// underlying reader. Streams concatenated back to back decompress as
// one continuous output, as bzip2 itself behaves. After a stream ends,
// trailing bytes whose first byte is not 'B' end the read with io.EOF;
// trailing bytes that begin with 'B' are decoded as a further stream
// and yield its error if they are not one.
type Reader struct {
	r       io.Reader
	z       *Stream
	opts    readerOpts
	buf     []byte
	err     error
	between bool // a stream trailer was verified; probing for another
}

// NewReader returns a Reader decompressing from r.
func NewReader(r io.Reader, opts ...ReaderOption) (*Reader, error) {
	o := readerOpts{}
	for _, fn := range opts {
		fn(&o)
	}
	z := &Stream{}
	if st := z.DecompressInit(o.verbosity, o.small); st != Ok {
		return nil, st.Err()
	}
	return &Reader{
		r:    r,
		z:    z,
		opts: o,
		buf:  make([]byte, 32*1024),
	}, nil
}

// fill tops up the session's input window, reporting false at EOF of
// the underlying reader.
func (r *Reader) fill() (bool, error) {
	if len(r.z.In) > 0 {
		return true, nil
	}
	for {
		n, err := r.r.Read(r.buf)
		if n > 0 {
			r.z.In = r.buf[:n]
			return true, nil
		}
		if err != nil {
			if err == io.EOF {
				return false, nil
			}
			return false, err
		}
	}
}

// Read implements io.Reader.
func (r *Reader) Read(p []byte) (int, error) {
	if r.err != nil {
		return 0, r.err
	}
	if len(p) == 0 {
		return 0, nil
	}
	for {
		if r.between {
			// The previous stream ended cleanly. Input whose next byte
			// is not 'B' is taken as trailing garbage and ignored, as
			// the reference tooling ignores trailing garbage; anything
			// else is decoded as another stream.
			ok, err := r.fill()
			if err != nil {
				r.err = err
				return 0, err
			}
			if !ok || r.z.In[0] != 'B' {
				r.err = io.EOF
				return 0, io.EOF
			}
			if st := r.z.DecompressInit(r.opts.verbosity, r.opts.small); st != Ok {
				r.err = st.Err()
				return 0, r.err
			}
			r.between = false
		}

		r.z.Out = p
		st := r.z.Decompress()
		n := len(p) - len(r.z.Out)

		if st == StreamEnd {
			r.z.DecompressEnd()
			r.between = true
			if n > 0 {
				return n, nil
			}
			continue
		}
		if st < 0 {
			r.err = st.Err()
			return n, r.err
		}
		if n > 0 {
			return n, nil
		}
		if len(r.z.In) == 0 {
			ok, err := r.fill()
			if err != nil {
				r.err = err
				return 0, err
			}
			if !ok {
				// Mid-stream EOF of the underlying reader.
				r.err = io.ErrUnexpectedEOF
				return 0, r.err
			}
		}
	}
}
