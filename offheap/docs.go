// Copyright 2024 Francis Michael Stephens. All rights reserved.  Use of this
// source code is governed by an MIT license that can be found in the LICENSE
// file.

// # Usage
//
// The offheap package is the concurrent value-slice core of an embedded
// ordered key-value map. It manages variable-size values living in
// manually mapped memory regions, invisible to the garbage collector, and
// coordinates concurrent readers and writers over those values without
// ever copying them onto the managed heap.
//
// Memory is organised as blocks, large mapped regions owned by a
// blockpool.Pool. Allocators hand out slices of block memory:
//
//	pool := blockpool.New(blockpool.Config{})
//	values := offheap.NewSyncRecycle(pool)
//
//	var s offheap.Slice
//	if err := values.Allocate(&s, 12, true); err != nil {
//		// out of memory
//	}
//
// A Slice is a plain value descriptor, it can be copied and shared across
// goroutines freely. Every value slice starts with a small header holding
// a lock word and a generation tag; all access to the payload goes through
// the verbs, which take the lock in the right mode and expose the bytes as
// a bounds-checked view:
//
//	sum, res := offheap.Read(&s, func(v offheap.ReadView) int32 {
//		return v.Int32At(0) + v.Int32At(4) + v.Int32At(8)
//	})
//
//	res = offheap.Compute(&s, func(v offheap.WriteView) {
//		v.PutInt32At(0, v.Int32At(0)+1)
//	})
//
// Verbs report one of three results. True means the operation ran against
// a live value. False means the value was logically deleted, treat the key
// as absent. Retry means the descriptor is stale: the slot was deleted and
// recycled under a new generation, re-lookup the value and try again.
// Put has a fourth result, Moved, when the new value does not fit in the
// slice; later verbs on a moved slice report Retry.
// Generations are what make recycling safe, a slice freed back to a
// SyncRecycle allocator may be handed out again at the same block offset,
// and only the generation tag tells an old descriptor from the new
// allocation.
//
// Two allocator flavours share one interface. SeqExpand only ever bumps
// forward, nothing is recycled, which suits immutable key bytes. The
// SyncRecycle flavour rounds sizes to power-of-two classes and keeps
// per-class free lists.
//
// The package never allocates on the managed heap during a verb. Callers
// on hot paths keep their descriptors in a ThreadContext so that the whole
// read-modify-write cycle is allocation free.
package offheap
