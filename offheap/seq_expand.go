// Copyright 2024 Francis Michael Stephens. All rights reserved.  Use of this
// source code is governed by an MIT license that can be found in the LICENSE
// file.

package offheap

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/fmstephe/slicestore/offheap/internal/blockpool"
)

// SeqExpand is the append-only allocator. It bumps through blocks and
// never recycles, Free is a no-op. Used for immutable data such as keys,
// which are written once and never change size.
type SeqExpand struct {
	pool    *blockpool.Pool
	current atomic.Pointer[blockpool.Block]

	// growLock serialises mapping a replacement block when the current
	// one is exhausted
	growLock sync.Mutex

	allocs    atomic.Uint64
	allocated atomic.Uint64
}

func NewSeqExpand(pool *blockpool.Pool) *SeqExpand {
	return &SeqExpand{
		pool: pool,
	}
}

func (a *SeqExpand) Allocate(out *Slice, userLength int, isValue bool) error {
	if userLength < 0 {
		panic(fmt.Errorf("negative allocation length %d", userLength))
	}

	total := uint32(userLength)
	if isValue {
		total += HeaderSize
	}
	if total > a.pool.BlockSize() {
		return fmt.Errorf("%w: %d bytes exceeds block size %d", ErrOutOfMemory, total, a.pool.BlockSize())
	}

	for {
		block := a.current.Load()
		if block != nil {
			if offset, ok := block.Bump(total); ok {
				a.finish(out, block.ID(), offset, total, isValue)
				return nil
			}
		}
		if err := a.grow(block); err != nil {
			return fmt.Errorf("%w: %s", ErrOutOfMemory, err)
		}
	}
}

// Free is a no-op, SeqExpand never recycles.
func (a *SeqExpand) Free(s Slice) {}

func (a *SeqExpand) Attach(s *Slice) []byte {
	return a.pool.View(s.blockID, s.offset, s.length)
}

func (a *SeqExpand) Allocated() uint64 {
	return a.allocated.Load()
}

func (a *SeqExpand) Stats() Stats {
	return Stats{
		Allocs:         a.allocs.Load(),
		AllocatedBytes: a.allocated.Load(),
		Blocks:         a.pool.Blocks(),
	}
}

func (a *SeqExpand) finish(out *Slice, blockID, offset, total uint32, isValue bool) {
	a.allocs.Add(1)
	a.allocated.Add(uint64(total))

	*out = Slice{
		alloc:       a,
		blockID:     blockID,
		offset:      offset,
		length:      total,
		allocLength: total,
		gen:         GenNone,
		flavor:      FlavorSeqExpand,
		value:       isValue,
	}

	if isValue {
		headerOf(a.Attach(out)).init(GenNone)
	}
}

// grow maps a replacement block for an exhausted one. exhausted is the
// block the caller observed as full, nil on first allocation. If another
// goroutine already replaced it there is nothing to do.
func (a *SeqExpand) grow(exhausted *blockpool.Block) error {
	a.growLock.Lock()
	defer a.growLock.Unlock()

	if a.current.Load() != exhausted {
		return nil
	}

	block, err := a.pool.Grow()
	if err != nil {
		return err
	}
	a.current.Store(block)
	return nil
}
