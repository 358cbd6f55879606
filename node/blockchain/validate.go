// Copyright (c) 2023 The mimbled developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"fmt"

	"gitlab.com/mimblenet/mimbled/node/chaindata"
	"gitlab.com/mimblenet/mimbled/pedersen"
	"gitlab.com/mimblenet/mimbled/types/pow"
	"gitlab.com/mimblenet/mimbled/types/wire"
)

// BehaviorFlags is a bitmask defining tweaks to the normal behavior
// when performing chain processing and consensus rules checks.
type BehaviorFlags uint32

const (
	// BFFastAdd may be set to indicate the block's expensive checks can
	// be avoided because the block is already known to fit into the
	// chain, as during a replay of blocks validated before.
	BFFastAdd BehaviorFlags = 1 << iota

	// BFNoPoWCheck may be set to indicate the proof of work check which
	// ensures a block's solution is a valid cycle under the required
	// target should not be performed.
	BFNoPoWCheck

	// BFNone is a convenience value to specifically indicate no flags.
	BFNone BehaviorFlags = 0
)

// checkProofOfWork verifies the header's solution: the declared graph
// size must select a variant the network accepts, the nonces must form
// a valid cycle in the seeded graph, and the solution's scaled
// difficulty must meet the header's target.
func (b *BlockChain) checkProofOfWork(header *wire.BlockHeader, flags BehaviorFlags) error {
	variant, err := b.params.GraphVariant(header.PoW.EdgeBits)
	if err != nil {
		str := fmt.Sprintf("block %v declares graph size %d: %v",
			header.BlockHash(), header.PoW.EdgeBits, err)
		return chaindata.NewRuleError(chaindata.ErrInvalidPoW, str)
	}

	if flags&BFNoPoWCheck == 0 {
		seed := header.PoWSeed()
		if err := pow.VerifyCycle(seed, variant, pow.ProofNonces, &header.PoW); err != nil {
			str := fmt.Sprintf("block %v solution invalid: %v",
				header.BlockHash(), err)
			return chaindata.NewRuleError(chaindata.ErrInvalidPoW, str)
		}
		scaled := header.PoW.ScaledDifficulty(b.powScale(header))
		if scaled < header.Target {
			str := fmt.Sprintf("block %v scaled difficulty %d below target %d",
				header.BlockHash(), scaled, header.Target)
			return chaindata.NewRuleError(chaindata.ErrInvalidPoW, str)
		}
	}
	return nil
}

// checkBlockHeaderContext performs the validation rules on a header
// that depend on its position within the chain: linkage, timestamp
// bounds and the retargeting commitments.
func (b *BlockChain) checkBlockHeaderContext(header *wire.BlockHeader,
	prevNode *blockNode, flags BehaviorFlags) error {

	if header.Height != prevNode.height()+1 {
		str := fmt.Sprintf("block %v has height %d, parent at %d",
			header.BlockHash(), header.Height, prevNode.height())
		return chaindata.NewRuleError(chaindata.ErrMalformedData, str)
	}
	if header.Version < 1 {
		str := fmt.Sprintf("block version %d is no longer valid", header.Version)
		return chaindata.NewRuleError(chaindata.ErrBlockVersionTooOld, str)
	}

	medianTime := prevNode.CalcPastMedianTime(b.params.MedianTimeBlocks)
	if !header.Timestamp.After(medianTime) {
		str := fmt.Sprintf("block %v timestamp %v not after median %v",
			header.BlockHash(), header.Timestamp, medianTime)
		return chaindata.NewRuleError(chaindata.ErrInvalidTime, str)
	}
	maxTimestamp := b.timeNow().Add(b.params.MaxTimeOffset)
	if header.Timestamp.After(maxTimestamp) {
		str := fmt.Sprintf("block %v timestamp %v too far in the future",
			header.BlockHash(), header.Timestamp)
		return chaindata.NewRuleError(chaindata.ErrInvalidTime, str)
	}

	if flags&BFFastAdd == 0 {
		wantTarget := b.calcNextRequiredDifficulty(prevNode)
		if header.Target != wantTarget {
			str := fmt.Sprintf("block %v target %d, required %d",
				header.BlockHash(), header.Target, wantTarget)
			return chaindata.NewRuleError(chaindata.ErrUnexpectedDifficulty, str)
		}
		wantScaling := b.calcNextSecondaryScaling(prevNode)
		if header.SecondaryScaling != wantScaling {
			str := fmt.Sprintf("block %v secondary scaling %d, required %d",
				header.BlockHash(), header.SecondaryScaling, wantScaling)
			return chaindata.NewRuleError(chaindata.ErrUnexpectedDifficulty, str)
		}
	}

	wantTotal := prevNode.totalDifficulty + header.Target
	if header.TotalDifficulty != wantTotal {
		str := fmt.Sprintf("block %v cumulative difficulty %d, want %d",
			header.BlockHash(), header.TotalDifficulty, wantTotal)
		return chaindata.NewRuleError(chaindata.ErrUnexpectedDifficulty, str)
	}

	return b.checkProofOfWork(header, flags)
}

// checkNRDKernels enforces the no-recent-duplicate rule for every NRD
// kernel in a body confirming at the given height: an earlier kernel
// with the same excess must not exist within the kernel's relative
// height window, bounded by the protocol window.  The ancestor walk
// starts at prevNode and reads bodies from the block store.
func (b *BlockChain) checkNRDKernels(prevNode *blockNode, body *wire.TxBody,
	height uint64) error {

	var nrd map[pedersen.Commitment]uint64
	for i := range body.Kernels {
		kernel := &body.Kernels[i]
		if kernel.Features != wire.NRDKernel {
			continue
		}
		if nrd == nil {
			nrd = make(map[pedersen.Commitment]uint64)
		}
		window := kernel.LockHeight
		if window > b.params.NRDKernelWindow {
			window = b.params.NRDKernelWindow
		}
		if _, ok := nrd[kernel.Excess]; ok {
			str := fmt.Sprintf("duplicate nrd kernel %v within one block",
				kernel.Excess)
			return chaindata.NewRuleError(chaindata.ErrDuplicateKernel, str)
		}
		nrd[kernel.Excess] = window
	}
	if nrd == nil {
		return nil
	}

	maxWindow := uint64(0)
	for _, window := range nrd {
		if window > maxWindow {
			maxWindow = window
		}
	}

	for node := prevNode; node != nil && node.height() > 0; node = node.parent {
		depth := height - node.height()
		if depth >= maxWindow {
			break
		}
		block, err := b.db.GetBlock(&node.hash)
		if err != nil {
			return err
		}
		for i := range block.Body.Kernels {
			excess := block.Body.Kernels[i].Excess
			window, ok := nrd[excess]
			if ok && depth < window {
				str := fmt.Sprintf("nrd kernel %v repeats excess from height %d "+
					"within window %d", excess, node.height(), window)
				return chaindata.NewRuleError(chaindata.ErrDuplicateKernel, str)
			}
		}
	}
	return nil
}

// checkConnectBlock runs the contextual body checks for connecting a
// block on top of prevNode with the hashset in the matching state:
// input resolution with maturity, kernel lock heights and the NRD
// window.
func (b *BlockChain) checkConnectBlock(prevNode *blockNode, block *wire.MsgBlock) error {
	height := block.Header.Height
	if err := chaindata.CheckInputs(b.hashset.View(), &block.Body, height,
		b.params); err != nil {
		return err
	}
	for i := range block.Body.Kernels {
		if err := chaindata.CheckKernelLockHeight(&block.Body.Kernels[i],
			height); err != nil {
			return err
		}
	}
	return b.checkNRDKernels(prevNode, &block.Body, height)
}
