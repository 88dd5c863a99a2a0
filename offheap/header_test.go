// Copyright 2024 Francis Michael Stephens. All rights reserved.  Use of this
// source code is governed by an MIT license that can be found in the LICENSE
// file.

package offheap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHeader() *header {
	h := headerOf(make([]byte, HeaderSize))
	h.init(1)
	return h
}

func Test_Header_ReadersShareTheLock(t *testing.T) {
	h := newTestHeader()

	require.Equal(t, lockAcquired, h.lockRead())
	require.Equal(t, lockAcquired, h.lockRead())
	require.Equal(t, lockAcquired, h.lockRead())
	assert.Equal(t, uint32(3), h.state()&readerMask)

	h.unlockRead()
	h.unlockRead()
	h.unlockRead()
	assert.Equal(t, lockFree, h.state())
}

func Test_Header_WriteOnlyFromFree(t *testing.T) {
	h := newTestHeader()

	require.Equal(t, lockAcquired, h.lockWrite())
	assert.Equal(t, writeBit, h.state())
	h.unlockWrite()
	assert.Equal(t, lockFree, h.state())
}

func Test_Header_DeletedIsTerminal(t *testing.T) {
	h := newTestHeader()

	require.Equal(t, lockAcquired, h.lockWrite())
	h.markDeleted()
	h.unlockWrite()

	assert.Equal(t, lockDeleted, h.lockRead())
	assert.Equal(t, lockDeleted, h.lockWrite())

	// Only an allocator reinit under a new generation reopens the slot
	h.init(2)
	assert.Equal(t, lockAcquired, h.lockRead())
	h.unlockRead()
}

func Test_Header_MovedIsTerminal(t *testing.T) {
	h := newTestHeader()

	require.Equal(t, lockAcquired, h.lockWrite())
	h.markMoved()
	h.unlockWrite()

	assert.Equal(t, lockMoved, h.lockRead())
	assert.Equal(t, lockMoved, h.lockWrite())
}

func Test_Header_UnlockWithoutLock_Panics(t *testing.T) {
	h := newTestHeader()

	assert.Panics(t, func() { h.unlockRead() })
	assert.Panics(t, func() { h.unlockWrite() })
}

func Test_Header_TerminalTransitionsRequireWriteLock(t *testing.T) {
	h := newTestHeader()

	assert.Panics(t, func() { h.markDeleted() })
	assert.Panics(t, func() { h.markMoved() })
}

func Test_Header_MarkFreedRequiresDeleted(t *testing.T) {
	h := newTestHeader()

	assert.Panics(t, func() { h.markFreed() })

	require.Equal(t, lockAcquired, h.lockWrite())
	h.markDeleted()
	h.unlockWrite()

	h.markFreed()
	// A second free of the same generation is a programming error
	assert.Panics(t, func() { h.markFreed() })
}
