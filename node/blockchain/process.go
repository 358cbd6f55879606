// Copyright (c) 2023 The mimbled developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"fmt"
	"time"

	"gitlab.com/mimblenet/mimbled/node/chaindata"
	"gitlab.com/mimblenet/mimbled/types/chainhash"
	"gitlab.com/mimblenet/mimbled/types/wire"
)

// maxOrphanBlocks is the maximum number of orphan blocks buffered while
// waiting for their parents.
const maxOrphanBlocks = 100

// orphanBlock is a block whose parent is not yet known, held until the
// parent arrives or the entry expires.
type orphanBlock struct {
	block      *wire.MsgBlock
	expiration time.Time
}

// addOrphanBlock buffers a block whose parent is missing.  Expired
// entries are dropped first, and the oldest entry is evicted when the
// pool is full.
func (b *BlockChain) addOrphanBlock(block *wire.MsgBlock) {
	b.orphanLock.Lock()
	defer b.orphanLock.Unlock()

	now := b.timeNow()
	for hash, entry := range b.orphans {
		if now.After(entry.expiration) {
			b.removeOrphanLocked(hash)
		}
	}

	if len(b.orphans) >= maxOrphanBlocks {
		var oldest chainhash.Hash
		oldestExpiration := now.Add(b.params.OrphanExpiry * 2)
		for hash, entry := range b.orphans {
			if entry.expiration.Before(oldestExpiration) {
				oldestExpiration = entry.expiration
				oldest = hash
			}
		}
		b.removeOrphanLocked(oldest)
	}

	hash := block.BlockHash()
	b.orphans[hash] = &orphanBlock{
		block:      block,
		expiration: now.Add(b.params.OrphanExpiry),
	}
	b.prevOrphans[block.Header.PrevBlock] = append(
		b.prevOrphans[block.Header.PrevBlock], b.orphans[hash])

	log.Debug().Str("hash", hash.String()).
		Str("missingParent", block.Header.PrevBlock.String()).
		Int("poolSize", len(b.orphans)).
		Msg("buffered orphan block")
}

// removeOrphanLocked deletes an orphan entry from both maps.  Call with
// the orphan lock held.
func (b *BlockChain) removeOrphanLocked(hash chainhash.Hash) {
	entry, ok := b.orphans[hash]
	if !ok {
		return
	}
	delete(b.orphans, hash)

	prevHash := entry.block.Header.PrevBlock
	siblings := b.prevOrphans[prevHash]
	for i := range siblings {
		if siblings[i] == entry {
			siblings = append(siblings[:i], siblings[i+1:]...)
			break
		}
	}
	if len(siblings) == 0 {
		delete(b.prevOrphans, prevHash)
	} else {
		b.prevOrphans[prevHash] = siblings
	}
}

// takeOrphanChildren removes and returns all orphans waiting on the
// given parent hash.
func (b *BlockChain) takeOrphanChildren(parent *chainhash.Hash) []*wire.MsgBlock {
	b.orphanLock.Lock()
	defer b.orphanLock.Unlock()

	entries := b.prevOrphans[*parent]
	if len(entries) == 0 {
		return nil
	}
	blocks := make([]*wire.MsgBlock, 0, len(entries))
	for _, entry := range entries {
		blocks = append(blocks, entry.block)
		delete(b.orphans, entry.block.BlockHash())
	}
	delete(b.prevOrphans, *parent)
	return blocks
}

// processOrphans accepts any buffered orphans whose parent chain was
// just completed by acceptedHash, recursively.  Rule violations in an
// orphan reject only that orphan's branch of the pool and are logged,
// not returned.  Call with the chain lock held.
func (b *BlockChain) processOrphans(acceptedHash *chainhash.Hash, flags BehaviorFlags) {
	processHashes := []chainhash.Hash{*acceptedHash}
	for len(processHashes) > 0 {
		parentHash := processHashes[0]
		processHashes = processHashes[1:]

		for _, block := range b.takeOrphanChildren(&parentHash) {
			prevNode := b.index.LookupNode(&parentHash)
			if prevNode == nil {
				continue
			}
			_, err := b.maybeAcceptBlock(prevNode, block, flags)
			hash := block.BlockHash()
			if err != nil {
				log.Warn().Err(err).Str("hash", hash.String()).
					Msg("rejected buffered orphan block")
				continue
			}
			processHashes = append(processHashes, hash)
		}
	}
}

// ProcessBlock is the main workhorse for handling insertion of new
// blocks into the chain.  It includes functionality such as rejecting
// duplicates, buffering blocks that arrive before their parents, and
// fork choice along the heaviest chain.
//
// The first return value indicates whether the block is now part of the
// main chain, the second whether it was buffered as an orphan.
// Processing the same block twice returns an ErrDuplicateBlock rule
// error and leaves the state untouched.
func (b *BlockChain) ProcessBlock(block *wire.MsgBlock, flags BehaviorFlags) (bool, bool, error) {
	b.chainLock.Lock()
	defer b.chainLock.Unlock()

	hash := block.BlockHash()
	if b.index.HaveBlock(&hash) {
		str := fmt.Sprintf("already have block %v", hash)
		return false, false, chaindata.NewRuleError(chaindata.ErrDuplicateBlock, str)
	}
	b.orphanLock.RLock()
	_, isKnownOrphan := b.orphans[hash]
	b.orphanLock.RUnlock()
	if isKnownOrphan {
		str := fmt.Sprintf("already have block (orphan) %v", hash)
		return false, false, chaindata.NewRuleError(chaindata.ErrDuplicateBlock, str)
	}
	if _, bad := b.invalid[hash]; bad {
		str := fmt.Sprintf("block %v is part of a rejected branch", hash)
		return false, false, chaindata.NewRuleError(chaindata.ErrReorgFailed, str)
	}
	if _, bad := b.invalid[block.Header.PrevBlock]; bad {
		str := fmt.Sprintf("block %v builds on rejected block %v",
			hash, block.Header.PrevBlock)
		return false, false, chaindata.NewRuleError(chaindata.ErrReorgFailed, str)
	}

	prevNode := b.index.LookupNode(&block.Header.PrevBlock)
	if prevNode == nil {
		b.addOrphanBlock(block)
		return false, true, nil
	}

	isMainChain, err := b.maybeAcceptBlock(prevNode, block, flags)
	if err != nil {
		return false, false, err
	}

	b.processOrphans(&hash, flags)
	return isMainChain, false, nil
}
