// Copyright 2024 Francis Michael Stephens. All rights reserved.  Use of this
// source code is governed by an MIT license that can be found in the LICENSE
// file.

package offheap

import (
	"testing"

	"github.com/fmstephe/slicestore/offheap/internal/blockpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// Small blocks keep the tests honest about block exhaustion and growth.
func newTestRecycle(t *testing.T) *SyncRecycle {
	pool := blockpool.New(blockpool.Config{BlockSize: 1 << 7})
	t.Cleanup(func() { pool.Destroy() })
	return NewSyncRecycle(pool)
}

func Test_SyncRecycle_AllocateInitialisesHeader(t *testing.T) {
	values := newTestRecycle(t)

	var s Slice
	require.NoError(t, values.Allocate(&s, 12, true))

	assert.False(t, s.IsNil())
	assert.Equal(t, FlavorSyncRecycle, s.Flavor())
	assert.Equal(t, 12, s.PayloadLength())
	assert.Equal(t, 12+HeaderSize, s.Length())
	// 12 + 8 header rounds up to the 32 byte class
	assert.Equal(t, 32, s.AllocatedLength())
	assert.Equal(t, uint32(1), s.Generation())

	h := headerOf(values.Attach(&s))
	assert.Equal(t, lockFree, h.state())
	assert.Equal(t, uint32(1), h.generation())
}

func Test_SyncRecycle_ReuseSameSlotNewGeneration(t *testing.T) {
	values := newTestRecycle(t)

	var s Slice
	require.NoError(t, values.Allocate(&s, 12, true))
	blockID, offset := s.BlockID(), s.Offset()

	require.Equal(t, True, Delete(&s))

	// Same size class, so the freed slot must be handed out again
	var reused Slice
	require.NoError(t, values.Allocate(&reused, 10, true))

	assert.Equal(t, blockID, reused.BlockID())
	assert.Equal(t, offset, reused.Offset())
	assert.Equal(t, uint32(2), reused.Generation())
	assert.Equal(t, 10, reused.PayloadLength())

	stats := values.Stats()
	assert.Equal(t, uint64(2), stats.Allocs)
	assert.Equal(t, uint64(1), stats.Frees)
	assert.Equal(t, uint64(1), stats.Reused)
}

func Test_SyncRecycle_DifferentClassDoesNotReuse(t *testing.T) {
	values := newTestRecycle(t)

	var s Slice
	require.NoError(t, values.Allocate(&s, 12, true))
	offset := s.Offset()

	require.Equal(t, True, Delete(&s))

	// 50 + 8 header lands in the 64 byte class, not the freed 32
	var other Slice
	require.NoError(t, values.Allocate(&other, 50, true))
	assert.NotEqual(t, offset, other.Offset())
}

func Test_SyncRecycle_FreeOfLiveSlice_Panics(t *testing.T) {
	values := newTestRecycle(t)

	var s Slice
	require.NoError(t, values.Allocate(&s, 12, true))

	assert.Panics(t, func() { values.Free(s) })
}

func Test_SyncRecycle_DoubleFree_Panics(t *testing.T) {
	values := newTestRecycle(t)

	var s Slice
	require.NoError(t, values.Allocate(&s, 12, true))

	require.Equal(t, True, s.LockWrite())
	s.LogicalDelete()
	s.UnlockWrite()

	values.Free(s)
	assert.Panics(t, func() { values.Free(s) })
}

func Test_SyncRecycle_StaleFree_Panics(t *testing.T) {
	values := newTestRecycle(t)

	var s Slice
	require.NoError(t, values.Allocate(&s, 12, true))
	stale := s.Duplicate()
	stale.AssociateAllocation(99, -1)

	assert.Panics(t, func() { values.Free(stale) })
}

func Test_SyncRecycle_KeyAllocation_Panics(t *testing.T) {
	values := newTestRecycle(t)

	var s Slice
	assert.Panics(t, func() { values.Allocate(&s, 12, false) })
}

func Test_SyncRecycle_OutOfMemory(t *testing.T) {
	values := newTestRecycle(t)

	var s Slice
	err := values.Allocate(&s, 1<<10, true)
	require.ErrorIs(t, err, ErrOutOfMemory)
}

func Test_SyncRecycle_BlockLimit(t *testing.T) {
	pool := blockpool.New(blockpool.Config{BlockSize: 1 << 7, MaxBlocks: 1})
	t.Cleanup(func() { pool.Destroy() })
	values := NewSyncRecycle(pool)

	// Fill the single 128 byte block with 32 byte classes
	var s Slice
	for i := 0; i < 4; i++ {
		require.NoError(t, values.Allocate(&s, 12, true))
	}

	err := values.Allocate(&s, 12, true)
	require.ErrorIs(t, err, ErrOutOfMemory)
}

func Test_SyncRecycle_AllocatorAccounting(t *testing.T) {
	values := newTestRecycle(t)

	sizes := []int{1, 8, 12, 24, 50}
	total := 0
	for _, size := range sizes {
		var s Slice
		require.NoError(t, values.Allocate(&s, size, true))
		total += size + HeaderSize
	}

	// Allocated is at least the sum of payloads plus headers; class
	// rounding only ever adds
	assert.GreaterOrEqual(t, values.Allocated(), uint64(total))
}

// For any (block, offset) the generations observed by successful
// allocations are strictly increasing, no matter how allocs and deletes
// interleave.
func Test_SyncRecycle_GenerationMonotonic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		pool := blockpool.New(blockpool.Config{BlockSize: 1 << 10})
		defer pool.Destroy()
		values := NewSyncRecycle(pool)

		type slot struct {
			blockID uint32
			offset  uint32
		}
		lastGen := map[slot]uint32{}
		live := []Slice{}

		t.Repeat(map[string]func(*rapid.T){
			"allocate": func(t *rapid.T) {
				length := rapid.IntRange(0, 40).Draw(t, "length")
				var s Slice
				if err := values.Allocate(&s, length, true); err != nil {
					t.Skip("out of memory")
				}
				key := slot{s.BlockID(), s.Offset()}
				if prev, ok := lastGen[key]; ok {
					if s.Generation() <= prev {
						t.Fatalf("slot %v generation went from %d to %d", key, prev, s.Generation())
					}
				}
				lastGen[key] = s.Generation()
				live = append(live, s)
			},
			"delete": func(t *rapid.T) {
				if len(live) == 0 {
					t.Skip("nothing live")
				}
				i := rapid.IntRange(0, len(live)-1).Draw(t, "victim")
				s := live[i]
				live = append(live[:i], live[i+1:]...)
				if res := Delete(&s); res != True {
					t.Fatalf("delete of live slice returned %v", res)
				}
			},
		})
	})
}
