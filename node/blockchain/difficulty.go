// Copyright (c) 2023 The mimbled developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"math"

	"gitlab.com/mimblenet/mimbled/types/pow"
	"gitlab.com/mimblenet/mimbled/types/wire"
)

// windowEntry carries the header fields the retarget algorithms
// consume.
type windowEntry struct {
	timestamp        int64
	target           pow.Difficulty
	secondaryScaling uint32
	isSecondary      bool
}

// difficultyWindow collects up to window+1 entries ending at node,
// oldest first.  When the chain is younger than the window the series
// is padded at the front by extrapolating the oldest entry backwards at
// the target interval, so early retargets behave as if the chain had
// always run on time.
func (b *BlockChain) difficultyWindow(node *blockNode) []windowEntry {
	need := b.params.DifficultyAdjustWindow + 1
	entries := make([]windowEntry, 0, need)
	for n := node; n != nil && len(entries) < need; n = n.parent {
		entries = append(entries, windowEntry{
			timestamp:        n.header.Timestamp.Unix(),
			target:           n.header.Target,
			secondaryScaling: n.header.SecondaryScaling,
			isSecondary:      b.params.IsSecondary(n.header.PoW.EdgeBits),
		})
	}
	interval := int64(b.params.TargetTimePerBlock.Seconds())
	for len(entries) < need {
		oldest := entries[len(entries)-1]
		oldest.timestamp -= interval
		entries = append(entries, oldest)
	}

	// Reverse into chronological order.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries
}

// calcNextRequiredDifficulty computes the target for the block after
// node.  The observed window timespan is damped toward the expected
// one, then clamped, so a manipulated timestamp series can move the
// target only a bounded factor per retarget.
func (b *BlockChain) calcNextRequiredDifficulty(node *blockNode) pow.Difficulty {
	entries := b.difficultyWindow(node)
	window := uint64(b.params.DifficultyAdjustWindow)
	interval := uint64(b.params.TargetTimePerBlock.Seconds())

	actual := entries[len(entries)-1].timestamp - entries[0].timestamp
	if actual < 1 {
		actual = 1
	}

	var diffSum uint64
	for _, entry := range entries[1:] {
		diffSum += uint64(entry.target)
	}

	expected := window * interval
	damp := b.params.DampFactor
	clamp := b.params.ClampFactor

	damped := ((damp-1)*expected + uint64(actual)) / damp
	adjusted := damped
	if low := expected / clamp; adjusted < low {
		adjusted = low
	}
	if high := expected * clamp; adjusted > high {
		adjusted = high
	}

	next := diffSum * interval / adjusted
	if next < uint64(pow.MinimumDifficulty) {
		next = uint64(pow.MinimumDifficulty)
	}
	return pow.Difficulty(next)
}

// calcNextSecondaryScaling computes the difficulty scale applied to
// secondary proofs for the block after node.  The windowed average
// scale is steered by the share of secondary blocks observed against
// the configured ratio: scarce secondary blocks raise the scale,
// abundant ones lower it.
func (b *BlockChain) calcNextSecondaryScaling(node *blockNode) uint32 {
	entries := b.difficultyWindow(node)

	var scaleSum, secondary uint64
	for _, entry := range entries[1:] {
		scaleSum += uint64(entry.secondaryScaling)
		if entry.isSecondary {
			secondary++
		}
	}
	if secondary == 0 {
		secondary = 1
	}

	window := uint64(b.params.DifficultyAdjustWindow)
	target := window * b.params.SecondaryPoWRatio / 100
	if target == 0 {
		target = 1
	}

	scale := scaleSum * target / (window * secondary)
	if scale < 1 {
		scale = 1
	}
	if scale > math.MaxUint32 {
		scale = math.MaxUint32
	}
	return uint32(scale)
}

// CalcNextRequiredDifficulty calculates the required difficulty for the
// block after the current main chain tip.
func (b *BlockChain) CalcNextRequiredDifficulty() pow.Difficulty {
	b.chainLock.RLock()
	defer b.chainLock.RUnlock()
	return b.calcNextRequiredDifficulty(b.bestNode)
}

// powScale returns the difficulty scale a header's solution is weighed
// with: the chain-adjusted secondary scale for commodity graphs, the
// graph weight for primary ones.
func (b *BlockChain) powScale(header *wire.BlockHeader) uint64 {
	if b.params.IsSecondary(header.PoW.EdgeBits) {
		return uint64(header.SecondaryScaling)
	}
	return pow.GraphWeight(header.PoW.EdgeBits, b.params.MinPrimaryEdgeBits)
}
