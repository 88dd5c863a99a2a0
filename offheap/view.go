// Copyright 2024 Francis Michael Stephens. All rights reserved.  Use of this
// source code is governed by an MIT license that can be found in the LICENSE
// file.

package offheap

import "encoding/binary"

// A ReadView is a bounded window over the payload bytes of a value slice.
// Index 0 is the first payload byte. Every accessor panics if any byte of
// the access lies outside [0, Len()), there is no way to read past the
// payload through a view.
//
// Multi-byte accessors are little-endian.
type ReadView struct {
	b []byte
}

func newReadView(payload []byte) ReadView {
	return ReadView{b: payload}
}

func (v ReadView) Len() int {
	return len(v.b)
}

func (v ReadView) ByteAt(i int) byte {
	return v.b[i]
}

func (v ReadView) Uint32At(i int) uint32 {
	return binary.LittleEndian.Uint32(v.b[i : i+4])
}

func (v ReadView) Int32At(i int) int32 {
	return int32(v.Uint32At(i))
}

func (v ReadView) Uint64At(i int) uint64 {
	return binary.LittleEndian.Uint64(v.b[i : i+8])
}

func (v ReadView) Int64At(i int) int64 {
	return int64(v.Uint64At(i))
}

// CopyTo copies the payload into dst, returning the number of bytes
// copied.
func (v ReadView) CopyTo(dst []byte) int {
	return copy(dst, v.b)
}

// A WriteView is a ReadView whose bytes may also be written.
type WriteView struct {
	ReadView
}

func newWriteView(payload []byte) WriteView {
	return WriteView{ReadView: newReadView(payload)}
}

func (v WriteView) SetByteAt(i int, x byte) {
	v.b[i] = x
}

func (v WriteView) PutUint32At(i int, x uint32) {
	binary.LittleEndian.PutUint32(v.b[i:i+4], x)
}

func (v WriteView) PutInt32At(i int, x int32) {
	v.PutUint32At(i, uint32(x))
}

func (v WriteView) PutUint64At(i int, x uint64) {
	binary.LittleEndian.PutUint64(v.b[i:i+8], x)
}

func (v WriteView) PutInt64At(i int, x int64) {
	v.PutUint64At(i, uint64(x))
}

// CopyFrom copies src into the payload, returning the number of bytes
// copied.
func (v WriteView) CopyFrom(src []byte) int {
	return copy(v.b, src)
}

// Bytes returns the payload bytes without copying.
//
// Care must be taken not to retain the returned slice beyond the mutator
// or lock scope it was obtained under.
func (v WriteView) Bytes() []byte {
	return v.b
}
