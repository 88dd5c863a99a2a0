// Copyright 2024 Francis Michael Stephens. All rights reserved.  Use of this
// source code is governed by an MIT license that can be found in the LICENSE
// file.

package offheap

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"unsafe"
)

// HeaderSize is the fixed prefix of every value slice. Key slices have no
// header.
const HeaderSize = 8

// The lock word encodes the header state machine in a single uint32 so
// that every transition is one compare-and-swap.
//
//	bit 31     WRITE
//	bit 30     DELETED
//	bit 29     MOVED
//	bit 28     FREED       (slice is sitting in a free list)
//	bits 0-27  reader count
//
// FREE is the all-zero word. DELETED, MOVED and FREED are terminal for a
// given generation; the word only returns to FREE when the allocator
// reinitialises the header under a new generation.
const (
	lockFree   uint32 = 0
	writeBit   uint32 = 1 << 31
	deletedBit uint32 = 1 << 30
	movedBit   uint32 = 1 << 29
	freedBit   uint32 = 1 << 28
	readerMask uint32 = freedBit - 1
)

// Readers and writers spin this many CAS attempts before yielding to the
// scheduler. Critical sections are short, values are small, so a failed
// CAS usually succeeds within a few retries.
const spinLimit = 64

type lockOutcome uint8

const (
	lockAcquired lockOutcome = iota
	lockDeleted
	lockMoved
)

// header is the in-block prefix of a value slice. It is never allocated on
// the Go heap, headerOf reinterprets the first HeaderSize bytes of a
// slice's view. Allocations are word aligned so the atomics are always
// aligned.
type header struct {
	lock atomic.Uint32
	gen  atomic.Uint32
}

func headerOf(view []byte) *header {
	if len(view) < HeaderSize {
		panic(fmt.Errorf("view of %d bytes is too small to hold a value header", len(view)))
	}
	return (*header)(unsafe.Pointer(&view[0]))
}

// init stamps a fresh generation and opens the slice. Called only by
// allocators, before the slice is visible to any other thread.
func (h *header) init(gen uint32) {
	h.gen.Store(gen)
	h.lock.Store(lockFree)
}

func (h *header) generation() uint32 {
	return h.gen.Load()
}

func (h *header) state() uint32 {
	return h.lock.Load()
}

// lockRead takes the header in read mode, waiting out any active writer.
func (h *header) lockRead() lockOutcome {
	spins := 0
	for {
		cur := h.lock.Load()
		switch {
		case cur&deletedBit != 0:
			return lockDeleted
		case cur&(movedBit|freedBit) != 0:
			return lockMoved
		case cur&writeBit != 0:
			// writer active, wait for it to release
		default:
			if cur&readerMask == readerMask {
				panic("reader count overflow")
			}
			if h.lock.CompareAndSwap(cur, cur+1) {
				return lockAcquired
			}
		}
		if spins++; spins >= spinLimit {
			runtime.Gosched()
			spins = 0
		}
	}
}

func (h *header) unlockRead() {
	for {
		cur := h.lock.Load()
		if cur&readerMask == 0 {
			panic("unlockRead without a matching lockRead")
		}
		if h.lock.CompareAndSwap(cur, cur-1) {
			return
		}
	}
}

// lockWrite takes the header in write mode. Writers only acquire from
// FREE, there is no upgrade from read mode.
func (h *header) lockWrite() lockOutcome {
	spins := 0
	for {
		cur := h.lock.Load()
		switch {
		case cur&deletedBit != 0:
			return lockDeleted
		case cur&(movedBit|freedBit) != 0:
			return lockMoved
		case cur == lockFree:
			if h.lock.CompareAndSwap(lockFree, writeBit) {
				return lockAcquired
			}
		}
		if spins++; spins >= spinLimit {
			runtime.Gosched()
			spins = 0
		}
	}
}

// unlockWrite releases write mode, leaving any terminal bits set by
// markDeleted or markMoved in place. The CAS publishes every payload write
// performed under the lock to the next acquirer.
func (h *header) unlockWrite() {
	for {
		cur := h.lock.Load()
		if cur&writeBit == 0 {
			panic("unlockWrite without a matching lockWrite")
		}
		if h.lock.CompareAndSwap(cur, cur&^writeBit) {
			return
		}
	}
}

// markDeleted transitions to DELETED. The caller must hold the write lock.
func (h *header) markDeleted() {
	h.setUnderWrite(deletedBit)
}

// markMoved transitions to MOVED. The caller must hold the write lock.
func (h *header) markMoved() {
	h.setUnderWrite(movedBit)
}

// markFreed records that the slice has been handed back to a free list.
// The header must already be DELETED.
func (h *header) markFreed() {
	for {
		cur := h.lock.Load()
		if cur&deletedBit == 0 {
			panic("attempted to free a slice which is not logically deleted")
		}
		if cur&freedBit != 0 {
			panic("attempted to free a freed slice")
		}
		if h.lock.CompareAndSwap(cur, cur|freedBit) {
			return
		}
	}
}

func (h *header) setUnderWrite(bit uint32) {
	for {
		cur := h.lock.Load()
		if cur&writeBit == 0 {
			panic("header transition requires the write lock")
		}
		if h.lock.CompareAndSwap(cur, cur|bit) {
			return
		}
	}
}
