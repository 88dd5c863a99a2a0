// Copyright 2024 Francis Michael Stephens. All rights reserved.  Use of this
// source code is governed by an MIT license that can be found in the LICENSE
// file.

package blockpool

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

const DefaultBlockSize = 1 << 20

var ErrBlockLimit = errors.New("block limit reached")

type Config struct {
	// Capacity of each mapped block in bytes. Defaults to
	// DefaultBlockSize.
	BlockSize uint32

	// Maximum number of blocks this pool will map. 0 means unlimited.
	MaxBlocks int

	// Defaults to zap.NewNop(). The pool never logs on an allocation
	// fast path.
	Logger *zap.Logger
}

func (c Config) withDefaults() Config {
	if c.BlockSize == 0 {
		c.BlockSize = DefaultBlockSize
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

// A Pool owns a growing set of mapped blocks. Blocks are identified by a
// non-zero uint32 id, assigned in mapping order starting at 1. A block id
// is stable for the lifetime of the pool.
type Pool struct {
	conf Config

	// blocksLock protects blocks
	// Resolving an existing block only needs a read lock
	// Mapping a new block requires a write lock
	blocksLock sync.RWMutex
	blocks     []*Block
}

func New(conf Config) *Pool {
	return &Pool{
		conf: conf.withDefaults(),
	}
}

func (p *Pool) BlockSize() uint32 {
	return p.conf.BlockSize
}

// Grow maps a new block and returns it. Fails with ErrBlockLimit once
// MaxBlocks blocks have been mapped.
func (p *Pool) Grow() (*Block, error) {
	p.blocksLock.Lock()
	defer p.blocksLock.Unlock()

	if p.conf.MaxBlocks > 0 && len(p.blocks) >= p.conf.MaxBlocks {
		p.conf.Logger.Warn("block pool exhausted",
			zap.Int("maxBlocks", p.conf.MaxBlocks),
		)
		return nil, fmt.Errorf("%w: %d blocks mapped", ErrBlockLimit, len(p.blocks))
	}

	block := newBlock(uint32(len(p.blocks)+1), p.conf.BlockSize)
	p.blocks = append(p.blocks, block)

	p.conf.Logger.Info("mapped new block",
		zap.Uint32("blockID", block.ID()),
		zap.Uint32("capacity", block.Capacity()),
	)

	return block, nil
}

// Block resolves a block id. Panics on an id this pool never assigned,
// there is no legitimate way to hold one.
func (p *Pool) Block(blockID uint32) *Block {
	p.blocksLock.RLock()
	defer p.blocksLock.RUnlock()

	if blockID == 0 || int(blockID) > len(p.blocks) {
		panic(fmt.Errorf("unknown block id %d", blockID))
	}
	return p.blocks[blockID-1]
}

// View resolves (blockID, offset, length) to the referenced bytes without
// copying. Panics if the range does not lie inside the block.
func (p *Pool) View(blockID, offset, length uint32) []byte {
	block := p.Block(blockID)

	if uint64(offset)+uint64(length) > uint64(len(block.data)) {
		panic(fmt.Errorf("view [%d:%d) outside block %d of %d bytes",
			offset, offset+length, blockID, len(block.data)))
	}
	return block.data[offset : offset+length : offset+length]
}

func (p *Pool) Blocks() int {
	p.blocksLock.RLock()
	defer p.blocksLock.RUnlock()
	return len(p.blocks)
}

// Destroy unmaps every block. After this call returns the pool, and every
// slice handed out from it, is unusable.
func (p *Pool) Destroy() error {
	p.blocksLock.Lock()
	defer p.blocksLock.Unlock()
	defer func() {
		p.blocks = nil
	}()

	for _, block := range p.blocks {
		if err := block.destroy(); err != nil {
			// This is pretty unrecoverable - so we just give up.
			return err
		}
	}

	p.conf.Logger.Info("block pool destroyed", zap.Int("blocks", len(p.blocks)))

	return nil
}
