// Copyright (C) 2018 Storj Labs, Inc.
// See LICENSE for copying information.

package workerauth

import (
	"io"
	"io/ioutil"
	"os"

	"github.com/calebcase/tmpfile"
)

// inlineCorkThreshold is the point past which corkBuffer spills from
// memory to a backing file. Most challenge documents (a handful of
// <option> elements) never cross it.
const inlineCorkThreshold = 8 << 10 // 8KiB

// corkBuffer is the Go analogue of the original's talloc-arena-backed
// str_st (spec.md §9's "manual arena allocation" note): a single buffer
// a response document is staged into before being flushed to the wire in
// one corked write (§4.3's "writes are buffered and flushed atomically").
//
// Below inlineCorkThreshold it behaves like an in-memory buffer; past it,
// it spills to an unlinked tmpfile so a pathological number of
// certificate groups can't pin an unbounded amount of heap per
// in-flight request.
type corkBuffer struct {
	dir    string
	inline []byte
	spill  *os.File
	length int
}

func newCorkBuffer(dir string) *corkBuffer {
	return &corkBuffer{dir: dir}
}

// Write appends p, spilling to a backing file the first time length
// would exceed inlineCorkThreshold.
func (b *corkBuffer) Write(p []byte) (int, error) {
	if b.spill == nil && b.length+len(p) > inlineCorkThreshold {
		f, err := tmpfile.New(b.dir)
		if err != nil {
			return 0, Error.Wrap(err)
		}
		if _, err := f.Write(b.inline); err != nil {
			f.Close()
			return 0, Error.Wrap(err)
		}
		b.spill = f
		b.inline = nil
	}

	var n int
	var err error
	if b.spill != nil {
		n, err = b.spill.Write(p)
	} else {
		b.inline = append(b.inline, p...)
		n = len(p)
	}
	b.length += n
	return n, err
}

// Len returns the number of bytes written so far (for Content-Length).
func (b *corkBuffer) Len() int { return b.length }

// Bytes returns the full contents, reading the spill file back if one
// was created. Only meant to be called once, after all writes.
func (b *corkBuffer) Bytes() ([]byte, error) {
	if b.spill == nil {
		return b.inline, nil
	}
	if _, err := b.spill.Seek(0, io.SeekStart); err != nil {
		return nil, Error.Wrap(err)
	}
	data, err := ioutil.ReadAll(b.spill)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return data, nil
}

// Close releases the backing file, if any.
func (b *corkBuffer) Close() error {
	if b.spill == nil {
		return nil
	}
	return b.spill.Close()
}
