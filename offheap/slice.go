// Copyright 2024 Francis Michael Stephens. All rights reserved.  Use of this
// source code is governed by an MIT license that can be found in the LICENSE
// file.

package offheap

import "fmt"

// Flavor identifies the allocator family a slice was handed out by.
type Flavor uint8

const (
	FlavorSeqExpand Flavor = iota + 1
	FlavorSyncRecycle
)

// GenNone is the generation of a slice which has no recycling generation,
// either because it has never been associated with an allocation or
// because it came from a SeqExpand allocator.
const GenNone uint32 = 0

// An Allocator hands out slices of block memory and resolves them back to
// their bytes.
type Allocator interface {
	// Allocate populates out with a fresh slice holding userLength
	// payload bytes. If isValue the slice is prefixed with a value
	// header, initialised FREE under a fresh generation (always GenNone
	// for SeqExpand, which never recycles). Fails with an error wrapping
	// ErrOutOfMemory.
	Allocate(out *Slice, userLength int, isValue bool) error

	// Free hands a slice back for reuse. A value slice must be
	// logically deleted before it is freed.
	Free(s Slice)

	// Attach resolves a slice to its underlying bytes, header included,
	// without copying.
	Attach(s *Slice) []byte

	// Allocated reports the cumulative bytes handed out.
	Allocated() uint64

	// Stats reports an allocation statistics snapshot.
	Stats() Stats
}

// A Slice is a value-type descriptor of a byte range inside a block. The
// bytes live in the block; the descriptor is freely copyable and sharing
// it across threads never transfers ownership of the bytes. The authority
// to mutate the payload is the header's write lock, not the descriptor.
//
// A Slice holding a recycled allocation may be stale: the allocator may
// have handed the same (block, offset) to someone else under a new
// generation. Staleness is detected on every operation and reported as
// Retry.
type Slice struct {
	alloc       Allocator
	blockID     uint32
	offset      uint32
	length      uint32
	allocLength uint32
	gen         uint32
	flavor      Flavor
	value       bool
	readOnly    bool
}

func (s *Slice) IsNil() bool {
	return s.blockID == 0
}

func (s *Slice) BlockID() uint32 {
	return s.blockID
}

func (s *Slice) Offset() uint32 {
	return s.offset
}

// Length is the full byte length of the slice, header included for value
// slices.
func (s *Slice) Length() int {
	return int(s.length)
}

// PayloadLength is the user-visible byte length of a value slice.
func (s *Slice) PayloadLength() int {
	if !s.value {
		return int(s.length)
	}
	return int(s.length) - HeaderSize
}

// AllocatedLength is the size of the allocation backing this slice, which
// may exceed Length because recycling allocators round sizes up to a
// class.
func (s *Slice) AllocatedLength() int {
	return int(s.allocLength)
}

func (s *Slice) Generation() uint32 {
	return s.gen
}

func (s *Slice) Flavor() Flavor {
	return s.flavor
}

func (s *Slice) IsReadOnly() bool {
	return s.readOnly
}

// Duplicate returns a copy of the descriptor. The copy references the same
// bytes.
func (s *Slice) Duplicate() Slice {
	return *s
}

// ReadOnly returns a copy of the descriptor which rejects the mutating
// verbs.
func (s *Slice) ReadOnly() Slice {
	dup := *s
	dup.readOnly = true
	return dup
}

// Reset disassociates the descriptor from any allocation.
func (s *Slice) Reset() {
	*s = Slice{}
}

// AssociateAllocation restamps the descriptor's generation, and length if
// length is non-negative. Used by an index layer to stamp a descriptor
// before publication.
func (s *Slice) AssociateAllocation(gen uint32, length int) {
	s.gen = gen
	if length >= 0 {
		s.length = uint32(length)
		if s.allocLength < s.length {
			s.allocLength = s.length
		}
	}
}

// header resolves the descriptor to its in-block value header. Panics on a
// descriptor which does not reference a value allocation.
func (s *Slice) header() *header {
	if s.alloc == nil || s.blockID == 0 {
		panic("slice is not associated with an allocation")
	}
	if !s.value {
		panic(fmt.Errorf("slice %d@%d has no value header", s.blockID, s.offset))
	}
	return headerOf(s.alloc.Attach(s))
}

// LockRead acquires the header in read mode. Returns False if the value is
// logically deleted, Retry if the descriptor is stale and True once the
// lock is held. On True the caller must pair with UnlockRead.
func (s *Slice) LockRead() Result {
	h := s.header()
	if h.generation() != s.gen {
		return Retry
	}
	switch h.lockRead() {
	case lockDeleted:
		return False
	case lockMoved:
		return Retry
	}
	// The slot may have been recycled between the generation check and
	// the lock acquisition. Re-check now that the lock pins it.
	if h.generation() != s.gen {
		h.unlockRead()
		return Retry
	}
	return True
}

func (s *Slice) UnlockRead() {
	s.header().unlockRead()
}

// LockWrite acquires the header in write mode, waiting out readers.
// Result semantics match LockRead.
func (s *Slice) LockWrite() Result {
	if s.readOnly {
		panic("write lock on a read-only slice")
	}
	h := s.header()
	if h.generation() != s.gen {
		return Retry
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
	return True
}

func (s *Slice) UnlockWrite() {
	s.header().unlockWrite()
}

// LogicalDelete transitions the header to DELETED under the write lock the
// caller already holds. The header stays DELETED until the allocator
// recycles the slot under a new generation.
func (s *Slice) LogicalDelete() {
	s.header().markDeleted()
}
