// Copyright 2024 Francis Michael Stephens. All rights reserved.  Use of this
// source code is governed by an MIT license that can be found in the LICENSE
// file.

package offheap

import (
	"fmt"
	"math/bits"
	"sync"
	"sync/atomic"

	"github.com/fmstephe/flib/fmath"
	"github.com/fmstephe/slicestore/offheap/internal/blockpool"
	"go.uber.org/zap"
)

// sizeClasses is one per power of two up to 2^31, the largest length a
// uint32 descriptor can express.
const sizeClasses = 32

// SyncRecycle is the recycling allocator for mutable values. Allocation
// sizes are rounded up to a power-of-two class; freed slices are kept on a
// per-class list and reused ahead of fresh block bytes.
//
// Reuse hands out the same (block, offset) under an incremented
// generation. Holders of descriptors stamped with the old generation fail
// their next attach and observe Retry, this is the ABA guard.
type SyncRecycle struct {
	pool    *blockpool.Pool
	logger  *zap.Logger
	current atomic.Pointer[blockpool.Block]

	// growLock serialises mapping a replacement block
	growLock sync.Mutex

	// freeLock protects freeLists
	freeLock  sync.Mutex
	freeLists [sizeClasses][]Slice

	allocs    atomic.Uint64
	frees     atomic.Uint64
	reused    atomic.Uint64
	allocated atomic.Uint64
}

func NewSyncRecycle(pool *blockpool.Pool) *SyncRecycle {
	return NewSyncRecycleLogged(pool, zap.NewNop())
}

func NewSyncRecycleLogged(pool *blockpool.Pool, logger *zap.Logger) *SyncRecycle {
	return &SyncRecycle{
		pool:   pool,
		logger: logger,
	}
}

// Allocate hands out a value slice with userLength payload bytes, reusing
// a freed slice of the matching size class when one is available. The
// header is initialised FREE under a fresh generation before Allocate
// returns.
//
// SyncRecycle only manages value slices. Safe reclamation relies on the
// header, which non-value slices don't have.
func (a *SyncRecycle) Allocate(out *Slice, userLength int, isValue bool) error {
	if !isValue {
		panic("SyncRecycle only allocates value slices")
	}
	if userLength < 0 {
		panic(fmt.Errorf("negative allocation length %d", userLength))
	}

	total := uint32(userLength) + HeaderSize
	classSize := uint32(fmath.NxtPowerOfTwo(int64(total)))
	if classSize > a.pool.BlockSize() {
		a.logger.Warn("allocation exceeds block size",
			zap.Uint32("classSize", classSize),
			zap.Uint32("blockSize", a.pool.BlockSize()),
		)
		return fmt.Errorf("%w: %d bytes exceeds block size %d", ErrOutOfMemory, classSize, a.pool.BlockSize())
	}

	if recycled, ok := a.popFree(classFor(classSize)); ok {
		a.reused.Add(1)
		a.finish(out, recycled.blockID, recycled.offset, total, classSize, a.nextGen(&recycled))
		return nil
	}

	blockID, offset, err := a.bump(classSize)
	if err != nil {
		return err
	}
	a.finish(out, blockID, offset, total, classSize, GenNone+1)
	return nil
}

// Free hands a deleted slice back to its size-class list. The slice must
// already be logically deleted, a slice is never reused while any header
// state other than DELETED is observable. Freeing a live or already-freed
// slice is a programming error and panics.
func (a *SyncRecycle) Free(s Slice) {
	h := headerOf(a.Attach(&s))
	if h.generation() != s.gen {
		panic(fmt.Errorf("attempted to free allocation (gen %d) using stale slice (gen %d)", h.generation(), s.gen))
	}
	h.markFreed()

	a.freeLock.Lock()
	class := classFor(s.allocLength)
	a.freeLists[class] = append(a.freeLists[class], s)
	a.freeLock.Unlock()

	a.frees.Add(1)
}

func (a *SyncRecycle) Attach(s *Slice) []byte {
	return a.pool.View(s.blockID, s.offset, s.length)
}

func (a *SyncRecycle) Allocated() uint64 {
	return a.allocated.Load()
}

func (a *SyncRecycle) Stats() Stats {
	return Stats{
		Allocs:         a.allocs.Load(),
		Frees:          a.frees.Load(),
		Reused:         a.reused.Load(),
		AllocatedBytes: a.allocated.Load(),
		Blocks:         a.pool.Blocks(),
	}
}

func (a *SyncRecycle) popFree(class int) (Slice, bool) {
	a.freeLock.Lock()
	defer a.freeLock.Unlock()

	list := a.freeLists[class]
	if len(list) == 0 {
		return Slice{}, false
	}

	s := list[len(list)-1]
	a.freeLists[class] = list[:len(list)-1]
	return s, true
}

// nextGen derives the generation for a recycled slot from the one stamped
// in its header. Wrapping is tolerated, the GenNone sentinel is skipped.
func (a *SyncRecycle) nextGen(recycled *Slice) uint32 {
	gen := headerOf(a.Attach(recycled)).generation() + 1
	if gen == GenNone {
		gen++
	}
	return gen
}

func (a *SyncRecycle) finish(out *Slice, blockID, offset, total, classSize, gen uint32) {
	a.allocs.Add(1)
	a.allocated.Add(uint64(classSize))

	*out = Slice{
		alloc:       a,
		blockID:     blockID,
		offset:      offset,
		length:      total,
		allocLength: classSize,
		gen:         gen,
		flavor:      FlavorSyncRecycle,
		value:       true,
	}

	headerOf(a.Attach(out)).init(gen)
}

func (a *SyncRecycle) bump(classSize uint32) (blockID, offset uint32, err error) {
	for {
		block := a.current.Load()
		if block != nil {
			if offset, ok := block.Bump(classSize); ok {
				return block.ID(), offset, nil
			}
		}
		if err := a.grow(block); err != nil {
			return 0, 0, fmt.Errorf("%w: %s", ErrOutOfMemory, err)
		}
	}
}

func (a *SyncRecycle) grow(exhausted *blockpool.Block) error {
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

func classFor(classSize uint32) int {
	return bits.Len32(classSize) - 1
}
