// Copyright (c) 2023 The mimbled developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package pow

import (
	"errors"
	"fmt"

	"github.com/kkdai/bstream"

	"gitlab.com/mimblenet/mimbled/types/chainhash"
)

const (
	// ProofNonces is the cycle length a solution must exhibit.  It is
	// a protocol constant: shorter cycles are exponentially easier to
	// find, so the length is part of consensus.
	ProofNonces = 42

	// MinEdgeBits is the smallest graph size parameter any variant
	// accepts.
	MinEdgeBits = 10

	// MaxEdgeBits caps the declared graph size.  Verification cost
	// grows with the graph, so the cap bounds the work an adversary
	// can force with a bogus header.
	MaxEdgeBits = 32
)

// ErrInvalidPoW describes a proof of work that failed structural or
// difficulty validation.
var ErrInvalidPoW = errors.New("invalid proof of work")

// Proof is a Cuckoo Cycle solution: the declared graph size parameter
// and the cycle's edge indices in ascending order.
type Proof struct {
	// EdgeBits declares the pseudorandom graph has 2^EdgeBits edges
	// per partition side.
	EdgeBits uint8

	// Nonces are the indices of the edges forming the cycle.
	Nonces []uint64
}

// NewProof returns a proof with the supplied graph size and nonces.
func NewProof(edgeBits uint8, nonces []uint64) *Proof {
	return &Proof{EdgeBits: edgeBits, Nonces: nonces}
}

// EdgeMask returns the mask selecting EdgeBits bits of an edge index.
func (p *Proof) EdgeMask() uint64 {
	return (uint64(1) << p.EdgeBits) - 1
}

// PackedSize returns the byte length of the bit-packed nonce array.
func (p *Proof) PackedSize() int {
	return PackedNonceSize(p.EdgeBits, len(p.Nonces))
}

// PackedNonceSize returns the byte length of count bit-packed nonces of
// edgeBits width each.
func PackedNonceSize(edgeBits uint8, count int) int {
	return (count*int(edgeBits) + 7) / 8
}

// PackNonces serializes the nonces as a bit stream of EdgeBits-wide
// integers.  The packed form is both the wire encoding and the
// difficulty hash preimage, so it must be canonical.
func (p *Proof) PackNonces() []byte {
	w := bstream.NewBStreamWriter(uint8(p.PackedSize()))
	for _, nonce := range p.Nonces {
		w.WriteBits(nonce&p.EdgeMask(), int(p.EdgeBits))
	}
	out := w.Bytes()
	// The writer grows in whole bytes;  trim any spare.
	if len(out) > p.PackedSize() {
		out = out[:p.PackedSize()]
	}
	return out
}

// UnpackNonces decodes count nonces of edgeBits width from packed
// bytes.
func UnpackNonces(packed []byte, edgeBits uint8, count int) ([]uint64, error) {
	want := (count*int(edgeBits) + 7) / 8
	if len(packed) != want {
		return nil, fmt.Errorf("%w: packed nonces are %d bytes, want %d",
			ErrInvalidPoW, len(packed), want)
	}
	// The packed form is the difficulty hash preimage, so there must be
	// exactly one byte encoding per solution.  Bits are written high
	// first, leaving the spare low bits of the final byte, which a
	// canonical encoder zeroes.
	if pad := uint(want*8 - count*int(edgeBits)); pad > 0 {
		if packed[want-1]&(byte(1)<<pad-1) != 0 {
			return nil, fmt.Errorf("%w: non-zero padding in packed nonces",
				ErrInvalidPoW)
		}
	}
	r := bstream.NewBStreamReader(packed)
	nonces := make([]uint64, count)
	for i := 0; i < count; i++ {
		bits, err := r.ReadBits(int(edgeBits))
		if err != nil {
			return nil, fmt.Errorf("%w: truncated nonce stream", ErrInvalidPoW)
		}
		nonces[i] = bits
	}
	return nonces, nil
}

// Hash returns the blake2b digest of the packed solution.  The scaled
// difficulty of a block is derived from this digest, which couples the
// declared graph size to the cycle actually found.
func (p *Proof) Hash() chainhash.Hash {
	return chainhash.HashH(p.PackNonces())
}
