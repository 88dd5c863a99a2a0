// Copyright 2024 Francis Michael Stephens. All rights reserved.  Use of this
// source code is governed by an MIT license that can be found in the LICENSE
// file.

package offheap

// A ThreadContext bundles the reusable per-thread scratch state so that
// hot paths never allocate descriptors per call. It is passed explicitly,
// nothing here is thread-local; a context must not be shared between
// concurrently running goroutines.
type ThreadContext struct {
	// Value is the reusable value-slice descriptor.
	Value Slice

	// Key is the reusable key-slice descriptor.
	Key Slice

	// Hasher used by collaborators which hash keys.
	Hasher Hasher

	scratch []byte
}

func NewThreadContext() *ThreadContext {
	return &ThreadContext{
		Hasher: XXHasher{},
	}
}

// Scratch returns a reusable buffer of at least n bytes. The buffer is
// only valid until the next Scratch call on this context.
func (c *ThreadContext) Scratch(n int) []byte {
	if cap(c.scratch) < n {
		c.scratch = make([]byte, n)
	}
	return c.scratch[:n]
}

// Reset disassociates both descriptors, keeping the scratch buffer.
func (c *ThreadContext) Reset() {
	c.Value.Reset()
	c.Key.Reset()
}
