// Copyright 2024 Francis Michael Stephens. All rights reserved.  Use of this
// source code is governed by an MIT license that can be found in the LICENSE
// file.

package offheap

import "github.com/cespare/xxhash/v2"

// A Serializer converts values of type T to and from raw payload bytes.
// Implementations are consumed by Put and by callers reading through
// views; the serialization package provides ready-made ones.
type Serializer[T any] interface {
	// Size reports the serialised byte length of v.
	Size(v T) int

	// Serialize writes v into buf. buf is exactly Size(v) bytes.
	Serialize(v T, buf []byte)

	// Deserialize reads a value back out of buf.
	Deserialize(buf []byte) T
}

// A Hasher maps key bytes to a hash value. The value subsystem never
// hashes; the interface is carried through ThreadContext for the
// collaborators which do.
type Hasher interface {
	Hash(b []byte) uint64
}

// XXHasher is the default Hasher.
type XXHasher struct{}

func (XXHasher) Hash(b []byte) uint64 {
	return xxhash.Sum64(b)
}
