// Copyright 2024 Francis Michael Stephens. All rights reserved.  Use of this
// source code is governed by an MIT license that can be found in the LICENSE
// file.

package offheap

// The value verbs. Every verb runs the same attach protocol before it
// touches payload bytes:
//
//  1. resolve the descriptor to its bytes through the owning allocator
//  2. compare the descriptor's generation to the header's; a mismatch
//     means the slot was recycled under the caller's feet -> Retry
//  3. observe the header state; DELETED -> False
//  4. acquire the lock in the verb's mode and re-check the generation now
//     that the lock pins the slot
//
// Locks are released by defer, so a panicking user closure (including a
// view bounds violation) unwinds past the verb with the header restored.

// attachValue resolves a value descriptor and validates generation and
// liveness. It does not lock.
func attachValue(s *Slice) (view []byte, h *header, res Result) {
	if s.alloc == nil || s.blockID == 0 {
		panic("slice is not associated with an allocation")
	}
	view = s.alloc.Attach(s)
	h = headerOf(view)

	if h.generation() != s.gen {
		return nil, nil, Retry
	}
	if h.state()&deletedBit != 0 {
		return nil, nil, False
	}
	return view, h, True
}

// Read acquires the value in read mode and applies reader to a bounded
// read-only view of the payload. Returns the reader's result alongside
// True, or the zero T with False/Retry.
func Read[T any](s *Slice, reader func(ReadView) T) (T, Result) {
	var result T
	res := Transform(&result, s, reader)
	return result, res
}

// Transform is Read writing its result through out, for callers which
// reuse a result record across calls.
func Transform[T any](out *T, s *Slice, reader func(ReadView) T) Result {
	view, h, res := attachValue(s)
	if res != True {
		return res
	}

	switch h.lockRead() {
	case lockDeleted:
		return False
	case lockMoved:
		return Retry
	}
	defer h.unlockRead()

	if h.generation() != s.gen {
		return Retry
	}

	*out = reader(newReadView(view[HeaderSize:]))
	return True
}

// Put serialises value into the slice's payload in place. If the
// serialised size exceeds the payload the slice is marked moved and Moved
// is returned; the caller owns allocating a replacement slice, Put never
// allocates.
func Put[T any](s *Slice, value T, ser Serializer[T]) Result {
	if s.readOnly {
		panic("put on a read-only slice")
	}

	view, h, res := attachValue(s)
	if res != True {
		return res
	}

	switch h.lockWrite() {
	case lockDeleted:
		return False
	case lockMoved:
		return Retry
	}
	defer h.unlockWrite()

	if h.generation() != s.gen {
		return Retry
	}

	payload := view[HeaderSize:]
	size := ser.Size(value)
	if size > len(payload) {
		h.markMoved()
		return Moved
	}

	ser.Serialize(value, payload[:size])
	return True
}

// Compute acquires the value in write mode and applies mutator to a
// bounded writable view of the payload. In-place read-modify-write
// without redefining the value's shape.
func Compute(s *Slice, mutator func(WriteView)) Result {
	if s.readOnly {
		panic("compute on a read-only slice")
	}

	view, h, res := attachValue(s)
	if res != True {
		return res
	}

	switch h.lockWrite() {
	case lockDeleted:
		return False
	case lockMoved:
		return Retry
	}
	defer h.unlockWrite()

	if h.generation() != s.gen {
		return Retry
	}

	mutator(newWriteView(view[HeaderSize:]))
	return True
}

// Delete logically deletes the value and hands the slice back to its
// allocator for recycling. A second Delete of the same generation returns
// False. Holders of the descriptor observe False until the slot is
// recycled, and Retry after.
func Delete(s *Slice) Result {
	if s.readOnly {
		panic("delete on a read-only slice")
	}

	_, h, res := attachValue(s)
	if res != True {
		return res
	}

	switch h.lockWrite() {
	case lockDeleted:
		return False
	case lockMoved:
		return Retry
	}

	if h.generation() != s.gen {
		h.unlockWrite()
		return Retry
	}

	// DELETED must be observable before the slice can reach a free
	// list, so the transition happens under the write lock.
	h.markDeleted()
	h.unlockWrite()

	s.alloc.Free(*s)
	return True
}
