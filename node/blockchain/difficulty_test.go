// Copyright (c) 2023 The mimbled developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"gitlab.com/mimblenet/mimbled/types/chaincfg"
	"gitlab.com/mimblenet/mimbled/types/pow"
	"gitlab.com/mimblenet/mimbled/types/wire"
)

// syntheticChain builds an in-memory header chain of count blocks with
// uniform spacing, target and graph size, returning the tip node.
func syntheticChain(params *chaincfg.Params, count int, spacing time.Duration,
	target pow.Difficulty, edgeBits uint8, scaling uint32) *blockNode {

	var parent *blockNode
	timestamp := time.Unix(1_600_000_000, 0)
	total := pow.Difficulty(0)
	for i := 0; i < count; i++ {
		total += target
		header := &wire.BlockHeader{
			Version:          1,
			Height:           uint64(i),
			Timestamp:        timestamp,
			Target:           target,
			TotalDifficulty:  total,
			SecondaryScaling: scaling,
			PoW:              pow.Proof{EdgeBits: edgeBits},
		}
		parent = newBlockNode(header, parent)
		timestamp = timestamp.Add(spacing)
	}
	return parent
}

func TestCalcNextRequiredDifficulty(t *testing.T) {
	params := chaincfg.SimNetParams
	b := &BlockChain{params: &params}
	window := params.DifficultyAdjustWindow + 1
	secondary := params.SecondaryEdgeBits

	tests := []struct {
		name    string
		spacing time.Duration
		target  pow.Difficulty
		want    pow.Difficulty
	}{
		// Blocks arriving on schedule keep the target where it is.
		{"on schedule", time.Minute, 100, 100},

		// A quarter-interval spacing observes a 900s window against an
		// expected 3600s.  Damping yields (2*3600+900)/3 = 2700, inside
		// the clamp bounds, so the next target is 6000*60/2700 = 133.
		{"fast blocks", 15 * time.Second, 100, 133},

		// Four times the interval damps to exactly the upper clamp
		// bound 7200, halving the target.
		{"slow blocks", 4 * time.Minute, 100, 50},

		// An absurdly slow series is clamped to the same bound; the
		// retarget can never cut more than the clamp factor at once.
		{"stalled chain", time.Hour, 100, 50},

		// The target never drops below the floor.
		{"at the floor", 4 * time.Minute, pow.MinimumDifficulty, pow.MinimumDifficulty},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			tip := syntheticChain(&params, window, test.spacing, test.target,
				secondary, params.InitialSecondaryScaling)
			assert.Equal(t, test.want, b.calcNextRequiredDifficulty(tip))
		})
	}
}

func TestCalcNextRequiredDifficultyPadsShortChains(t *testing.T) {
	params := chaincfg.SimNetParams
	b := &BlockChain{params: &params}

	// A chain much shorter than the window is treated as if it had
	// always produced on-schedule blocks at the oldest observed target.
	tip := syntheticChain(&params, 5, time.Minute, 100,
		params.SecondaryEdgeBits, params.InitialSecondaryScaling)
	assert.Equal(t, pow.Difficulty(100), b.calcNextRequiredDifficulty(tip))
}

func TestCalcNextSecondaryScaling(t *testing.T) {
	params := chaincfg.SimNetParams
	b := &BlockChain{params: &params}
	window := params.DifficultyAdjustWindow + 1

	// With every block secondary the share is far above the configured
	// ratio, so the scale is pushed down: 60*100*27/(60*60) = 45.
	allSecondary := syntheticChain(&params, window, time.Minute, 100,
		params.SecondaryEdgeBits, 100)
	assert.Equal(t, uint32(45), b.calcNextSecondaryScaling(allSecondary))

	// With no secondary blocks at all the scale climbs hard:
	// 60*100*27/(60*1) = 2700.
	allPrimary := syntheticChain(&params, window, time.Minute, 100,
		params.MinPrimaryEdgeBits, 100)
	assert.Equal(t, uint32(2700), b.calcNextSecondaryScaling(allPrimary))

	// The scale never adjusts below one.
	floor := syntheticChain(&params, window, time.Minute, 100,
		params.SecondaryEdgeBits, 1)
	assert.Equal(t, uint32(1), b.calcNextSecondaryScaling(floor))
}

func TestPowScaleSelectsVariantWeight(t *testing.T) {
	params := chaincfg.SimNetParams
	b := &BlockChain{params: &params}

	secondaryHeader := &wire.BlockHeader{
		SecondaryScaling: 1856,
		PoW:              pow.Proof{EdgeBits: params.SecondaryEdgeBits},
	}
	assert.Equal(t, uint64(1856), b.powScale(secondaryHeader))

	primaryHeader := &wire.BlockHeader{
		SecondaryScaling: 1856,
		PoW:              pow.Proof{EdgeBits: params.MinPrimaryEdgeBits},
	}
	assert.Equal(t,
		pow.GraphWeight(params.MinPrimaryEdgeBits, params.MinPrimaryEdgeBits),
		b.powScale(primaryHeader))
}
