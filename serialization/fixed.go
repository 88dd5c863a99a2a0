// Copyright 2024 Francis Michael Stephens. All rights reserved.  Use of this
// source code is governed by an MIT license that can be found in the LICENSE
// file.

// Serializers consumed by the offheap verbs. The fixed-width ones here
// never allocate; Msgpack trades allocation for generality.
package serialization

import "encoding/binary"

// Uint32 serialises a uint32 as 4 little-endian bytes.
type Uint32 struct{}

func (Uint32) Size(v uint32) int {
	return 4
}

func (Uint32) Serialize(v uint32, buf []byte) {
	binary.LittleEndian.PutUint32(buf, v)
}

func (Uint32) Deserialize(buf []byte) uint32 {
	return binary.LittleEndian.Uint32(buf)
}

// Int64 serialises an int64 as 8 little-endian bytes.
type Int64 struct{}

func (Int64) Size(v int64) int {
	return 8
}

func (Int64) Serialize(v int64, buf []byte) {
	binary.LittleEndian.PutUint64(buf, uint64(v))
}

func (Int64) Deserialize(buf []byte) int64 {
	return int64(binary.LittleEndian.Uint64(buf))
}

// Bytes serialises a byte slice as itself.
type Bytes struct{}

func (Bytes) Size(v []byte) int {
	return len(v)
}

func (Bytes) Serialize(v []byte, buf []byte) {
	copy(buf, v)
}

func (Bytes) Deserialize(buf []byte) []byte {
	out := make([]byte, len(buf))
	copy(out, buf)
	return out
}
