// Copyright (c) 2023 The mimbled developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"sort"
	"sync"
	"time"

	"gitlab.com/mimblenet/mimbled/types/chainhash"
	"gitlab.com/mimblenet/mimbled/types/pow"
	"gitlab.com/mimblenet/mimbled/types/wire"
)

// blockNode represents a block within the block index.  Nodes link to
// their parent in memory while the blocks themselves live in the store,
// so old block bodies can be dropped independently of header-chain
// logic.
type blockNode struct {
	parent *blockNode
	hash   chainhash.Hash
	header wire.BlockHeader

	// cumulative difficulty of the chain ending in this node.  Fork
	// choice compares these values.
	totalDifficulty pow.Difficulty
}

func newBlockNode(header *wire.BlockHeader, parent *blockNode) *blockNode {
	node := &blockNode{
		parent:          parent,
		hash:            header.BlockHash(),
		header:          *header,
		totalDifficulty: header.TotalDifficulty,
	}
	return node
}

// height returns the block height of the node.
func (node *blockNode) height() uint64 {
	return node.header.Height
}

// Ancestor returns the ancestor block node at the provided height.  It
// returns nil when the height is above the node's own.
func (node *blockNode) Ancestor(height uint64) *blockNode {
	if height > node.height() {
		return nil
	}
	n := node
	for n != nil && n.height() != height {
		n = n.parent
	}
	return n
}

// CalcPastMedianTime calculates the median time of the previous
// several blocks prior to, and including, the passed node.
func (node *blockNode) CalcPastMedianTime(numBlocks int) time.Time {
	timestamps := make([]int64, 0, numBlocks)
	for n := node; n != nil && len(timestamps) < numBlocks; n = n.parent {
		timestamps = append(timestamps, n.header.Timestamp.Unix())
	}
	sort.Slice(timestamps, func(i, j int) bool {
		return timestamps[i] < timestamps[j]
	})
	return time.Unix(timestamps[len(timestamps)/2], 0)
}

// blockIndex provides facilities for keeping track of an in-memory
// index of the block chain, including all known forks.
type blockIndex struct {
	sync.RWMutex
	index map[chainhash.Hash]*blockNode
}

func newBlockIndex() *blockIndex {
	return &blockIndex{index: make(map[chainhash.Hash]*blockNode)}
}

// HaveBlock returns whether or not the block index contains the
// provided hash.
func (bi *blockIndex) HaveBlock(hash *chainhash.Hash) bool {
	bi.RLock()
	_, hasBlock := bi.index[*hash]
	bi.RUnlock()
	return hasBlock
}

// LookupNode returns the block node identified by the provided hash.
// It will return nil if there is no entry for the hash.
func (bi *blockIndex) LookupNode(hash *chainhash.Hash) *blockNode {
	bi.RLock()
	node := bi.index[*hash]
	bi.RUnlock()
	return node
}

// AddNode adds the provided node to the block index.
func (bi *blockIndex) AddNode(node *blockNode) {
	bi.Lock()
	bi.index[node.hash] = node
	bi.Unlock()
}
