// Copyright (c) 2023 The mimbled developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package pow

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/mimblenet/mimbled/types/chainhash"
)

const (
	testEdgeBits  = 12
	testProofSize = ProofNonces
)

// solveForTest searches successive seeds until the brute-force solver
// finds a cycle of the required length.
func solveForTest(t *testing.T, variant GraphVariant) ([32]byte, *Proof) {
	t.Helper()
	for attempt := uint64(0); attempt < 5000; attempt++ {
		var preimage [8]byte
		binary.LittleEndian.PutUint64(preimage[:], attempt)
		seed := [32]byte(chainhash.HashH(preimage[:]))

		nonces, ok := FindCycle(seed, variant, testEdgeBits, testProofSize)
		if !ok {
			continue
		}
		return seed, NewProof(testEdgeBits, nonces)
	}
	t.Fatalf("no %d-cycle found for variant %v", testProofSize, variant)
	return [32]byte{}, nil
}

func TestVerifyCycleBothVariants(t *testing.T) {
	for _, variant := range []GraphVariant{VariantAR, VariantAT} {
		t.Run(variant.String(), func(t *testing.T) {
			seed, proof := solveForTest(t, variant)
			assert.NoError(t, VerifyCycle(seed, variant, testProofSize, proof))

			// The same solution keyed by a different seed describes
			// a different graph and must fail.
			var otherSeed [32]byte
			copy(otherSeed[:], seed[:])
			otherSeed[0] ^= 0x01
			assert.ErrorIs(t, VerifyCycle(otherSeed, variant, testProofSize, proof), ErrInvalidPoW)

			// A solution for one variant is not valid for the other.
			other := VariantAT
			if variant == VariantAT {
				other = VariantAR
			}
			assert.ErrorIs(t, VerifyCycle(seed, other, testProofSize, proof), ErrInvalidPoW)
		})
	}
}

func TestVerifyCycleRejectsMutations(t *testing.T) {
	seed, proof := solveForTest(t, VariantAT)

	t.Run("repeated nonce", func(t *testing.T) {
		bad := NewProof(proof.EdgeBits, append([]uint64{}, proof.Nonces...))
		bad.Nonces[1] = bad.Nonces[0]
		assert.ErrorIs(t, VerifyCycle(seed, VariantAT, testProofSize, bad), ErrInvalidPoW)
	})

	t.Run("altered nonce breaks matching", func(t *testing.T) {
		bad := NewProof(proof.EdgeBits, append([]uint64{}, proof.Nonces...))
		bad.Nonces[3]++
		// Keep ordering intact if the increment collided.
		if bad.Nonces[3] == bad.Nonces[4] {
			bad.Nonces[3] += 2
		}
		assert.ErrorIs(t, VerifyCycle(seed, VariantAT, testProofSize, bad), ErrInvalidPoW)
	})

	t.Run("wrong length", func(t *testing.T) {
		bad := NewProof(proof.EdgeBits, proof.Nonces[:testProofSize-2])
		assert.ErrorIs(t, VerifyCycle(seed, VariantAT, testProofSize, bad), ErrInvalidPoW)
	})

	t.Run("nonce beyond edge mask", func(t *testing.T) {
		bad := NewProof(proof.EdgeBits, append([]uint64{}, proof.Nonces...))
		bad.Nonces[testProofSize-1] = bad.EdgeMask() + 1
		assert.ErrorIs(t, VerifyCycle(seed, VariantAT, testProofSize, bad), ErrInvalidPoW)
	})

	t.Run("edge bits out of bounds", func(t *testing.T) {
		bad := NewProof(MaxEdgeBits+1, append([]uint64{}, proof.Nonces...))
		assert.ErrorIs(t, VerifyCycle(seed, VariantAT, testProofSize, bad), ErrInvalidPoW)
	})
}

func TestPackNoncesRoundTrip(t *testing.T) {
	_, proof := solveForTest(t, VariantAT)

	packed := proof.PackNonces()
	require.Len(t, packed, proof.PackedSize())

	nonces, err := UnpackNonces(packed, proof.EdgeBits, len(proof.Nonces))
	require.NoError(t, err)
	assert.Equal(t, proof.Nonces, nonces)
}

func TestUnpackNoncesRejectsWrongSize(t *testing.T) {
	_, err := UnpackNonces(make([]byte, 3), testEdgeBits, testProofSize)
	assert.ErrorIs(t, err, ErrInvalidPoW)
}

func TestUnpackNoncesRejectsNonZeroPadding(t *testing.T) {
	// 42 nonces at 13 bits span 69 bytes with 6 spare bits in the last
	// one.  A set spare bit would give a second byte encoding of the
	// same solution, so the decoder must refuse it.
	const edgeBits = 13
	nonces := make([]uint64, ProofNonces)
	for i := range nonces {
		nonces[i] = uint64(i)
	}
	packed := NewProof(edgeBits, nonces).PackNonces()

	got, err := UnpackNonces(packed, edgeBits, ProofNonces)
	require.NoError(t, err)
	assert.Equal(t, nonces, got)

	packed[len(packed)-1] |= 0x01
	_, err = UnpackNonces(packed, edgeBits, ProofNonces)
	assert.ErrorIs(t, err, ErrInvalidPoW)
}

func TestScaledDifficultyMonotonicInScale(t *testing.T) {
	_, proof := solveForTest(t, VariantAT)

	d1 := proof.ScaledDifficulty(1)
	d2 := proof.ScaledDifficulty(2)
	assert.GreaterOrEqual(t, uint64(d2), uint64(d1))
	assert.GreaterOrEqual(t, uint64(d1), uint64(MinimumDifficulty))
}

func TestScaledDifficultyBoundary(t *testing.T) {
	_, proof := solveForTest(t, VariantAT)

	// A target exactly at the proven difficulty is met;  one unit
	// stricter is not.
	d := proof.ScaledDifficulty(GraphWeight(proof.EdgeBits, testEdgeBits))
	target := d
	assert.True(t, d >= target, "proof meets its own difficulty")
	if uint64(d) < math.MaxUint64 {
		target = d + 1
		assert.False(t, d >= target, "proof must not meet a stricter target")
	}
}

func TestGraphWeight(t *testing.T) {
	assert.Equal(t, uint64(2*31), GraphWeight(31, 31))
	assert.Equal(t, uint64(4*32), GraphWeight(32, 31))
	// Below the primary floor the weight degrades to the bit count
	// itself, which keeps secondary-variant scaling in header hands.
	assert.Equal(t, uint64(29), GraphWeight(29, 31))
}
