// Copyright 2024 Francis Michael Stephens. All rights reserved.  Use of this
// source code is governed by an MIT license that can be found in the LICENSE
// file.

package serialization

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Msgpack serialises any msgpack-encodable T. Unlike the fixed-width
// serializers it allocates during encoding, so it belongs on values whose
// shape is too rich for a fixed layout, not on the hottest paths.
type Msgpack[T any] struct{}

func (Msgpack[T]) Size(v T) int {
	buf, err := msgpack.Marshal(v)
	if err != nil {
		panic(fmt.Errorf("cannot size unencodable value: %w", err))
	}
	return len(buf)
}

func (Msgpack[T]) Serialize(v T, buf []byte) {
	encoded, err := msgpack.Marshal(v)
	if err != nil {
		panic(fmt.Errorf("cannot serialize value: %w", err))
	}
	if len(encoded) != len(buf) {
		panic(fmt.Errorf("value encoded to %d bytes, buffer is %d", len(encoded), len(buf)))
	}
	copy(buf, encoded)
}

func (Msgpack[T]) Deserialize(buf []byte) T {
	var v T
	if err := msgpack.Unmarshal(buf, &v); err != nil {
		panic(fmt.Errorf("cannot deserialize value: %w", err))
	}
	return v
}
