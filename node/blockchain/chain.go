// Copyright (c) 2023 The mimbled developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package blockchain implements rules for the acceptance of blocks and
// transactions into the chain, the authenticated chain state behind
// them, and fork choice between competing branches.
package blockchain

import (
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"

	"gitlab.com/mimblenet/mimbled/database"
	"gitlab.com/mimblenet/mimbled/node/chaindata"
	"gitlab.com/mimblenet/mimbled/types/chaincfg"
	"gitlab.com/mimblenet/mimbled/types/chainhash"
	"gitlab.com/mimblenet/mimbled/types/pow"
	"gitlab.com/mimblenet/mimbled/types/wire"
)

// reorgHorizon is how many recent main chain states are kept available
// for rewind.  A reorganization reaching deeper than this is refused;
// the accumulator snapshots needed to restore such an old state are no
// longer held.
const reorgHorizon = 128

// BestState houses information about the current best block and other
// info related to the state of the main chain as it exists from the
// point of view of the current best block.  Values are copied out under
// the chain lock, so callers always observe a consistent state.
type BestState struct {
	Hash            chainhash.Hash
	Height          uint64
	TotalDifficulty pow.Difficulty
	Roots           Roots
	MedianTime      time.Time
}

// Config is a descriptor which specifies the blockchain instance
// configuration.
type Config struct {
	// Params identifies the network the chain is associated with.
	Params *chaincfg.Params

	// DB is the content-addressed store blocks persist into.
	DB database.BlockStore

	// Hashset optionally supplies the accumulator set to build on.
	// When nil an in-memory one is used.
	Hashset *TxHashset

	// TimeSource optionally overrides the clock used for future
	// timestamp bounds.
	TimeSource func() time.Time
}

// BlockChain provides functions for working with the chain: accepting
// blocks, selecting between forks, and answering queries about the
// resulting state.  It is safe for concurrent access.
type BlockChain struct {
	params  *chaincfg.Params
	db      database.BlockStore
	timeNow func() time.Time

	// chainLock protects the chain state below.  Mutation happens only
	// through block connection and reorganization, with the lock held
	// for the whole operation, so readers never observe a partially
	// applied block.
	chainLock sync.RWMutex
	index     *blockIndex
	bestNode  *blockNode
	hashset   *TxHashset

	// snapshots holds the hashset state after each recent main chain
	// block, keyed by block hash, enabling rewinds without replaying
	// from genesis.
	snapshots map[chainhash.Hash]HashsetSnapshot

	// invalid marks branches that failed replay during reorganization
	// so they are not retried.
	invalid map[chainhash.Hash]struct{}

	orphanLock  sync.RWMutex
	orphans     map[chainhash.Hash]*orphanBlock
	prevOrphans map[chainhash.Hash][]*orphanBlock
}

// New constructs a chain instance anchored at the network's genesis
// block.
func New(config *Config) (*BlockChain, error) {
	if config.Params == nil {
		return nil, errors.New("blockchain.New: params are required")
	}
	if config.DB == nil {
		return nil, errors.New("blockchain.New: block store is required")
	}

	hashset := config.Hashset
	if hashset == nil {
		hashset = NewMemoryTxHashset()
	}
	// The index starts at genesis, so any state the backends carried
	// over from an earlier run no longer matches it and would wedge
	// block connection.
	if outputSize, kernelSize := hashset.Sizes(); outputSize != 0 || kernelSize != 0 {
		log.Warn().Uint64("outputSize", outputSize).
			Uint64("kernelSize", kernelSize).
			Msg("discarding carried-over accumulator state, resyncing from genesis")
		if err := hashset.Reset(); err != nil {
			return nil, errors.Wrap(err, "reset accumulators")
		}
	}
	timeNow := config.TimeSource
	if timeNow == nil {
		timeNow = time.Now
	}

	b := &BlockChain{
		params:      config.Params,
		db:          config.DB,
		timeNow:     timeNow,
		index:       newBlockIndex(),
		hashset:     hashset,
		snapshots:   make(map[chainhash.Hash]HashsetSnapshot),
		invalid:     make(map[chainhash.Hash]struct{}),
		orphans:     make(map[chainhash.Hash]*orphanBlock),
		prevOrphans: make(map[chainhash.Hash][]*orphanBlock),
	}

	genesis := config.Params.GenesisBlock
	if err := config.DB.PutBlock(genesis); err != nil {
		return nil, errors.Wrap(err, "store genesis block")
	}
	genesisNode := newBlockNode(&genesis.Header, nil)
	b.index.AddNode(genesisNode)
	b.bestNode = genesisNode
	b.snapshots[genesisNode.hash] = hashset.Snapshot()

	log.Info().Str("genesis", genesisNode.hash.String()).
		Str("network", config.Params.Name).Msg("chain initialized")
	return b, nil
}

// isMainChain reports whether node is part of the chain ending in the
// current best block.  Call with the chain lock held.
func (b *BlockChain) isMainChain(node *blockNode) bool {
	return b.bestNode.Ancestor(node.height()) == node
}

// connectBlock applies a block extending the current best chain.  Call
// with the chain lock held.
func (b *BlockChain) connectBlock(node *blockNode, block *wire.MsgBlock) error {
	if err := b.checkConnectBlock(node.parent, block); err != nil {
		return err
	}
	if err := b.hashset.Apply(block); err != nil {
		return err
	}
	b.bestNode = node
	b.snapshots[node.hash] = b.hashset.Snapshot()
	b.pruneSnapshots()

	log.Debug().Str("hash", node.hash.String()).
		Uint64("height", node.height()).
		Uint64("totalDifficulty", uint64(node.totalDifficulty)).
		Msg("connected block")
	return nil
}

// pruneSnapshots discards rewind states older than the reorg horizon.
// Call with the chain lock held.
func (b *BlockChain) pruneSnapshots() {
	if b.bestNode.height() < reorgHorizon {
		return
	}
	cutoff := b.bestNode.height() - reorgHorizon
	for hash := range b.snapshots {
		node := b.index.LookupNode(&hash)
		if node != nil && node.height() < cutoff {
			delete(b.snapshots, hash)
		}
	}
}

// reorganizeChain switches the best chain to end in newNode: the state
// is rewound to the fork point and the new branch replayed block by
// block.  The operation is all-or-nothing; if any replay step fails the
// prior best state is restored, the offending branch is marked invalid,
// and an ErrReorgFailed rule error is returned.  Call with the chain
// lock held.
func (b *BlockChain) reorganizeChain(newNode *blockNode) error {
	fork := newNode.parent
	for fork != nil && !b.isMainChain(fork) {
		fork = fork.parent
	}
	if fork == nil {
		return chaindata.NewRuleError(chaindata.ErrReorgFailed,
			"no common ancestor with the main chain")
	}
	forkSnap, ok := b.snapshots[fork.hash]
	if !ok {
		str := fmt.Sprintf("reorganization to %v reaches below the horizon "+
			"(fork at height %d)", newNode.hash, fork.height())
		return chaindata.NewRuleError(chaindata.ErrReorgFailed, str)
	}

	var attach []*blockNode
	for n := newNode; n != fork; n = n.parent {
		attach = append(attach, n)
	}
	for i, j := 0, len(attach)-1; i < j; i, j = i+1, j-1 {
		attach[i], attach[j] = attach[j], attach[i]
	}

	prevBest := b.bestNode
	prevState := b.hashset.Snapshot()

	if err := b.hashset.Rewind(forkSnap); err != nil {
		return chaindata.AssertError(fmt.Sprintf(
			"rewind to fork %v failed: %v", fork.hash, err))
	}

	for _, node := range attach {
		block, err := b.db.GetBlock(&node.hash)
		if err == nil {
			err = b.checkConnectBlock(node.parent, block)
		}
		if err == nil {
			err = b.hashset.Apply(block)
		}
		if err != nil {
			if rerr := b.hashset.Rewind(prevState); rerr != nil {
				return chaindata.AssertError(fmt.Sprintf(
					"failed to restore state after aborted reorganization: %v",
					rerr))
			}
			b.markBranchInvalid(node, newNode)
			str := fmt.Sprintf("replay of block %v failed: %v", node.hash, err)
			return chaindata.NewRuleError(chaindata.ErrReorgFailed, str)
		}
		b.snapshots[node.hash] = b.hashset.Snapshot()
	}

	for n := prevBest; n != fork; n = n.parent {
		delete(b.snapshots, n.hash)
	}
	b.bestNode = newNode
	b.pruneSnapshots()

	log.Info().Str("newTip", newNode.hash.String()).
		Uint64("height", newNode.height()).
		Uint64("forkHeight", fork.height()).
		Str("oldTip", prevBest.hash.String()).
		Msg("chain reorganized")
	return nil
}

// markBranchInvalid records the nodes from first through tip inclusive
// as permanently rejected.  Call with the chain lock held.
func (b *BlockChain) markBranchInvalid(first, tip *blockNode) {
	for n := tip; n != nil; n = n.parent {
		b.invalid[n.hash] = struct{}{}
		if n == first {
			break
		}
	}
}

// maybeAcceptBlock runs all validation against a block whose parent is
// known, adds it to the index and store, and extends or reorganizes the
// chain as fork choice dictates.  The return value indicates whether
// the block ended up on the main chain.  Call with the chain lock held.
func (b *BlockChain) maybeAcceptBlock(prevNode *blockNode, block *wire.MsgBlock,
	flags BehaviorFlags) (bool, error) {

	if err := b.checkBlockHeaderContext(&block.Header, prevNode, flags); err != nil {
		return false, err
	}
	if err := chaindata.CheckBlockBodySanity(block, prevNode.header.TotalOffset,
		b.params); err != nil {
		return false, err
	}

	node := newBlockNode(&block.Header, prevNode)

	if prevNode == b.bestNode {
		// Store before connecting.  The NRD ancestor walk and reorg
		// replay read bodies back from the store, so the in-memory
		// state must never get ahead of it.  A stored block that then
		// fails to connect is harmless; the store is content addressed.
		if err := b.db.PutBlock(block); err != nil {
			return false, errors.Wrap(err, "store block")
		}
		if err := b.connectBlock(node, block); err != nil {
			return false, err
		}
		b.index.AddNode(node)
		return true, nil
	}

	// The block extends a side chain.  Store it; whether the state
	// switches over depends on cumulative difficulty.
	if err := b.db.PutBlock(block); err != nil {
		return false, errors.Wrap(err, "store block")
	}
	b.index.AddNode(node)

	if node.totalDifficulty <= b.bestNode.totalDifficulty {
		log.Debug().Str("hash", node.hash.String()).
			Uint64("height", node.height()).
			Msg("block extends a side chain")
		return false, nil
	}
	if err := b.reorganizeChain(node); err != nil {
		return false, err
	}
	return true, nil
}

// BestSnapshot returns state about the current best chain tip.
func (b *BlockChain) BestSnapshot() BestState {
	b.chainLock.RLock()
	defer b.chainLock.RUnlock()

	roots, err := b.hashset.Roots()
	if err != nil {
		// Root computation over an intact accumulator cannot fail; a
		// broken backend would have failed block connection first.
		panic(err)
	}
	return BestState{
		Hash:            b.bestNode.hash,
		Height:          b.bestNode.height(),
		TotalDifficulty: b.bestNode.totalDifficulty,
		Roots:           roots,
		MedianTime:      b.bestNode.CalcPastMedianTime(b.params.MedianTimeBlocks),
	}
}

// CurrentRoots returns the three accumulator roots of the current best
// state.
func (b *BlockChain) CurrentRoots() Roots {
	return b.BestSnapshot().Roots
}

// HaveBlock reports whether the chain already has the given block,
// either in the index or buffered as an orphan.
func (b *BlockChain) HaveBlock(hash *chainhash.Hash) bool {
	if b.index.HaveBlock(hash) {
		return true
	}
	b.orphanLock.RLock()
	_, isOrphan := b.orphans[*hash]
	b.orphanLock.RUnlock()
	return isOrphan
}

// UtxoView returns a copy of the live output index at the current best
// state.
func (b *BlockChain) UtxoView() *chaindata.OutputView {
	b.chainLock.RLock()
	defer b.chainLock.RUnlock()
	return b.hashset.View().Clone()
}

// ValidateTransaction checks a transaction against the full rule set
// minus header and proof of work concerns, resolving its inputs against
// the current best state.  This is the admission check the transaction
// pool runs.
func (b *BlockChain) ValidateTransaction(tx *wire.MsgTx) error {
	if err := chaindata.CheckTransactionSanity(tx, b.params); err != nil {
		return err
	}

	b.chainLock.RLock()
	defer b.chainLock.RUnlock()

	nextHeight := b.bestNode.height() + 1
	if err := chaindata.CheckInputs(b.hashset.View(), &tx.Body, nextHeight,
		b.params); err != nil {
		return err
	}
	for i := range tx.Body.Kernels {
		if err := chaindata.CheckKernelLockHeight(&tx.Body.Kernels[i],
			nextHeight); err != nil {
			return err
		}
	}
	return b.checkNRDKernels(b.bestNode, &tx.Body, nextHeight)
}

// StageBlockBody computes the accumulator commitments a header
// confirming the body at the next height must declare.  Block template
// producers fill headers with the result.
func (b *BlockChain) StageBlockBody(body *wire.TxBody) (Roots, uint64, uint64, error) {
	b.chainLock.Lock()
	defer b.chainLock.Unlock()
	return b.hashset.StageBody(body, b.bestNode.height()+1)
}
