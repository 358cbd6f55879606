// Copyright (c) 2023 The mimbled developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package rangeproof proves that the amount hidden inside a Pedersen
// commitment lies in [0, 2^64) without revealing it.
//
// The construction commits to each of the 64 bits of the amount with
// its own Pedersen commitment and attaches a two-branch Schnorr
// OR-proof per bit showing the bit commitment opens to either 0 or
// 2^i.  The bit commitments are blinded so that they sum back to the
// output commitment, which ties the proof to exactly one output.  All
// Fiat-Shamir challenges are bound to the output commitment and the
// bit index, so a proof lifted from one output can never verify
// against another.
package rangeproof

import (
	"encoding/binary"
	"errors"
	"fmt"
	"runtime"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/errgroup"

	"gitlab.com/mimblenet/mimbled/pedersen"
)

const (
	// ProofBits is the bit width of the committed range.
	ProofBits = 64

	// ringSize is the serialized size of one per-bit OR-proof: two
	// challenges and two responses.
	ringSize = 4 * pedersen.ScalarSize

	// ProofSize is the serialized size of a complete proof.
	ProofSize = ProofBits * (pedersen.CommitmentSize + ringSize)

	// challengeTag domain-separates the Fiat-Shamir challenges.
	challengeTag = "mimbled/rangeproof/v1"
)

// ErrInvalidProof describes a range proof that failed verification or
// could not be decoded.
var ErrInvalidProof = errors.New("invalid range proof")

// ringSignature is the OR-proof for one bit: the verifier recomputes
// both branch nonces from (challenge, response) pairs and checks the
// challenges split the bound hash.
type ringSignature struct {
	c0, c1 secp256k1.ModNScalar
	s0, s1 secp256k1.ModNScalar
}

// Proof is a decoded range proof.
type Proof struct {
	bitCommits [ProofBits]pedersen.Commitment
	rings      [ProofBits]ringSignature
}

// Serialize encodes the proof into its fixed-size wire form.
func (p *Proof) Serialize() []byte {
	out := make([]byte, 0, ProofSize)
	for i := 0; i < ProofBits; i++ {
		out = append(out, p.bitCommits[i][:]...)
		for _, s := range []*secp256k1.ModNScalar{
			&p.rings[i].c0, &p.rings[i].c1, &p.rings[i].s0, &p.rings[i].s1,
		} {
			b := s.Bytes()
			out = append(out, b[:]...)
		}
	}
	return out
}

// ParseProof decodes a serialized proof, rejecting wrong-size input and
// non-canonical scalars.
func ParseProof(raw []byte) (*Proof, error) {
	if len(raw) != ProofSize {
		return nil, ErrInvalidProof
	}
	p := &Proof{}
	offset := 0
	for i := 0; i < ProofBits; i++ {
		commit, err := pedersen.NewCommitment(raw[offset : offset+pedersen.CommitmentSize])
		if err != nil {
			return nil, ErrInvalidProof
		}
		p.bitCommits[i] = commit
		offset += pedersen.CommitmentSize

		for _, s := range []*secp256k1.ModNScalar{
			&p.rings[i].c0, &p.rings[i].c1, &p.rings[i].s0, &p.rings[i].s1,
		} {
			var b [pedersen.ScalarSize]byte
			copy(b[:], raw[offset:offset+pedersen.ScalarSize])
			if overflow := s.SetBytes(&b); overflow != 0 {
				return nil, ErrInvalidProof
			}
			offset += pedersen.ScalarSize
		}
	}
	return p, nil
}

// bitChallenge derives the per-bit Fiat-Shamir challenge, bound to the
// output commitment, the bit index, the bit commitment and both branch
// nonces.
func bitChallenge(commit, bitCommit pedersen.Commitment, bit uint8,
	r0, r1 pedersen.Commitment) secp256k1.ModNScalar {

	h, _ := blake2b.New256(nil)
	h.Write([]byte(challengeTag))
	h.Write(commit[:])
	h.Write([]byte{bit})
	h.Write(bitCommit[:])
	h.Write(r0[:])
	h.Write(r1[:])

	var digest [32]byte
	copy(digest[:], h.Sum(nil))
	var e secp256k1.ModNScalar
	e.SetBytes(&digest)
	return e
}

// weightedH returns 2^bit * H as a Jacobian point.
func weightedH(bit uint8) secp256k1.JacobianPoint {
	var w secp256k1.ModNScalar
	var b [32]byte
	binary.BigEndian.PutUint64(b[24:], 1)
	w.SetBytes(&b)
	for i := uint8(0); i < bit; i++ {
		w.Add(&w)
	}
	var point secp256k1.JacobianPoint
	secp256k1.ScalarMultNonConst(&w, pedersen.GeneratorH(), &point)
	return point
}

// schnorrCommit computes s*G - c*P, the reconstructed branch nonce.
func schnorrCommit(s, c *secp256k1.ModNScalar, p *secp256k1.JacobianPoint) secp256k1.JacobianPoint {
	var sg, cp, result secp256k1.JacobianPoint
	if !s.IsZero() {
		secp256k1.ScalarBaseMultNonConst(s, &sg)
	}
	if !c.IsZero() && !p.Z.IsZero() {
		secp256k1.ScalarMultNonConst(c, p, &cp)
		cp.Y.Normalize()
		cp.Y.Negate(1).Normalize()
	}
	secp256k1.AddNonConst(&sg, &cp, &result)
	return result
}

// Prove builds a range proof for value committed as blind*G + value*H.
func Prove(value uint64, blind *secp256k1.ModNScalar) (*Proof, error) {
	commit := pedersen.Commit(value, blind)
	proof := &Proof{}

	// Split the output blinding factor across the bit commitments so
	// they sum back to the output commitment.
	var blindSum secp256k1.ModNScalar
	bitBlinds := make([]*secp256k1.ModNScalar, ProofBits)
	for i := 0; i < ProofBits-1; i++ {
		r, err := pedersen.NewBlind()
		if err != nil {
			return nil, err
		}
		bitBlinds[i] = r
		blindSum.Add(r)
	}
	bitBlinds[ProofBits-1] = pedersen.SubScalars(blind, &blindSum)

	for i := 0; i < ProofBits; i++ {
		bit := (value >> uint(i)) & 1
		bitValue := uint64(0)
		if bit == 1 {
			bitValue = 1 << uint(i)
		}
		bitCommit := pedersen.Commit(bitValue, bitBlinds[i])
		proof.bitCommits[i] = bitCommit

		// Branch statements: P0 is the bit commitment itself (bit 0),
		// P1 is the bit commitment minus 2^i*H (bit 1).  The prover
		// knows the discrete log of exactly one of them.
		var p0, p1 secp256k1.JacobianPoint
		if err := bitCommit.AsJacobian(&p0); err != nil {
			return nil, err
		}
		wh := weightedH(uint8(i))
		var negWH secp256k1.JacobianPoint = wh
		negWH.Y.Normalize()
		negWH.Y.Negate(1).Normalize()
		secp256k1.AddNonConst(&p0, &negWH, &p1)

		nonce, err := pedersen.NewBlind()
		if err != nil {
			return nil, err
		}
		simC, err := pedersen.NewBlind()
		if err != nil {
			return nil, err
		}
		simS, err := pedersen.NewBlind()
		if err != nil {
			return nil, err
		}

		var realNonce secp256k1.JacobianPoint
		secp256k1.ScalarBaseMultNonConst(nonce, &realNonce)

		var r0, r1 pedersen.Commitment
		ring := &proof.rings[i]
		if bit == 0 {
			// Real branch 0, simulated branch 1.
			r0 = pedersen.FromJacobian(&realNonce)
			simNonce := schnorrCommit(simS, simC, &p1)
			r1 = pedersen.FromJacobian(&simNonce)

			e := bitChallenge(commit, bitCommit, uint8(i), r0, r1)
			ring.c1.Set(simC)
			ring.s1.Set(simS)
			ring.c0 = *pedersen.SubScalars(&e, simC)

			// s0 = nonce + c0*blind
			var tmp secp256k1.ModNScalar
			tmp.Set(&ring.c0)
			tmp.Mul(bitBlinds[i])
			ring.s0.Set(nonce)
			ring.s0.Add(&tmp)
		} else {
			// Real branch 1, simulated branch 0.
			r1 = pedersen.FromJacobian(&realNonce)
			simNonce := schnorrCommit(simS, simC, &p0)
			r0 = pedersen.FromJacobian(&simNonce)

			e := bitChallenge(commit, bitCommit, uint8(i), r0, r1)
			ring.c0.Set(simC)
			ring.s0.Set(simS)
			ring.c1 = *pedersen.SubScalars(&e, simC)

			var tmp secp256k1.ModNScalar
			tmp.Set(&ring.c1)
			tmp.Mul(bitBlinds[i])
			ring.s1.Set(nonce)
			ring.s1.Add(&tmp)
		}
	}

	return proof, nil
}

// Verify checks that proof demonstrates the amount behind commit lies
// in [0, 2^64).  The check is pure: no state is read or written.
func Verify(commit pedersen.Commitment, proof *Proof) error {
	// The bit commitments must sum back to the output commitment,
	// otherwise the proof says nothing about this output.
	sum, err := pedersen.CommitSum(proof.bitCommits[:], []pedersen.Commitment{commit})
	if err != nil {
		return ErrInvalidProof
	}
	if !sum.IsZero() {
		return ErrInvalidProof
	}

	for i := 0; i < ProofBits; i++ {
		bitCommit := proof.bitCommits[i]
		ring := &proof.rings[i]

		var p0, p1 secp256k1.JacobianPoint
		if err := bitCommit.AsJacobian(&p0); err != nil {
			return ErrInvalidProof
		}
		wh := weightedH(uint8(i))
		var negWH secp256k1.JacobianPoint = wh
		negWH.Y.Normalize()
		negWH.Y.Negate(1).Normalize()
		secp256k1.AddNonConst(&p0, &negWH, &p1)

		nonce0 := schnorrCommit(&ring.s0, &ring.c0, &p0)
		nonce1 := schnorrCommit(&ring.s1, &ring.c1, &p1)
		r0 := pedersen.FromJacobian(&nonce0)
		r1 := pedersen.FromJacobian(&nonce1)

		e := bitChallenge(commit, bitCommit, uint8(i), r0, r1)
		var split secp256k1.ModNScalar
		split.Set(&ring.c0)
		split.Add(&ring.c1)
		if !split.Equals(&e) {
			return fmt.Errorf("%w: bit %d challenge mismatch", ErrInvalidProof, i)
		}
	}
	return nil
}

// Item pairs a commitment with its claimed range proof for batch
// verification.
type Item struct {
	Commit pedersen.Commitment
	Proof  *Proof
}

// BatchError reports the first item of a batch that failed, so callers
// can localize a bad proof without re-verifying the whole set.
type BatchError struct {
	Index int
	Err   error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("range proof batch failed at item %d: %v", e.Index, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// VerifyBatch verifies many (commitment, proof) pairs concurrently.
// The batch fails as a whole if any member fails;  the returned
// BatchError carries the index of a failing member.
func VerifyBatch(items []Item) error {
	var group errgroup.Group
	group.SetLimit(runtime.NumCPU())

	for i := range items {
		i := i
		group.Go(func() error {
			if err := Verify(items[i].Commit, items[i].Proof); err != nil {
				return &BatchError{Index: i, Err: err}
			}
			return nil
		})
	}
	return group.Wait()
}
