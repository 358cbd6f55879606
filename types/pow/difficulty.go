// Copyright (c) 2023 The mimbled developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package pow

import (
	"encoding/binary"
	"math"
	"math/big"
)

// Difficulty expresses the amount of work a block proves, defined as
// the expected number of solution attempts needed to find a hash at or
// below the implied target.  Unlike bitcoin-style compact bits it is a
// plain unsigned quantity;  cumulative chain difficulty is the sum of
// per-block difficulties.
type Difficulty uint64

// MinimumDifficulty is the floor any retarget may return.
const MinimumDifficulty Difficulty = 1

var maxUint64 = new(big.Int).SetUint64(math.MaxUint64)

// GraphWeight scales difficulty by graph size: larger graphs take
// proportionally more effort per attempt and get credited for it.
// The weight doubles per extra edge bit and grows linearly with the
// bit count itself.
func GraphWeight(edgeBits, minPrimaryEdgeBits uint8) uint64 {
	if edgeBits < minPrimaryEdgeBits {
		return uint64(edgeBits)
	}
	return (uint64(2) << (edgeBits - minPrimaryEdgeBits)) * uint64(edgeBits)
}

// hash64 folds the packed-solution digest into the 64-bit value the
// difficulty comparison uses.
func (p *Proof) hash64() uint64 {
	digest := p.Hash()
	return binary.BigEndian.Uint64(digest[:8])
}

// ScaledDifficulty converts the solution hash into a difficulty,
// weighted by scale:  difficulty = scale * 2^64 / hash64, saturating
// at the maximum.  A scale-weighted smaller hash therefore proves
// proportionally more work.
func (p *Proof) ScaledDifficulty(scale uint64) Difficulty {
	if scale == 0 {
		scale = 1
	}
	h := p.hash64()
	if h == 0 {
		return Difficulty(math.MaxUint64)
	}

	num := new(big.Int).Lsh(new(big.Int).SetUint64(scale), 64)
	num.Div(num, new(big.Int).SetUint64(h))
	if num.Cmp(maxUint64) > 0 {
		return Difficulty(math.MaxUint64)
	}
	d := Difficulty(num.Uint64())
	if d < MinimumDifficulty {
		return MinimumDifficulty
	}
	return d
}
