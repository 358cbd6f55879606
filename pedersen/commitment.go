// Copyright (c) 2023 The mimbled developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package pedersen

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"golang.org/x/crypto/blake2b"
)

// CommitmentSize is the length in bytes of a serialized commitment: a
// compressed secp256k1 point.
const CommitmentSize = 33

// ErrInvalidCommitment describes a commitment whose encoding does not
// decode to a point on the curve.  This includes wrong-length input.
var ErrInvalidCommitment = errors.New("invalid commitment encoding")

// Commitment is a serialized Pedersen commitment r*G + v*H.  The zero
// value represents the identity (point at infinity) and only ever
// appears as the result of a fully cancelling sum.
type Commitment [CommitmentSize]byte

// ZeroCommitment is the identity commitment.
var ZeroCommitment Commitment

// hDerivationTag seeds the search for the value generator H.  H must be
// a point nobody knows the discrete log of, so it is produced by
// hashing the encoding of G and mapping the digest to a curve point.
const hDerivationTag = "mimbled/pedersen/H/v1"

var (
	generatorHOnce sync.Once
	generatorH     secp256k1.JacobianPoint
)

// GeneratorH returns the value generator H as a Jacobian point.  The
// returned value is shared; callers must not mutate it.
func GeneratorH() *secp256k1.JacobianPoint {
	generatorHOnce.Do(func() {
		var one secp256k1.ModNScalar
		one.SetInt(1)
		var g secp256k1.JacobianPoint
		secp256k1.ScalarBaseMultNonConst(&one, &g)
		g.ToAffine()
		gBytes := secp256k1.NewPublicKey(&g.X, &g.Y).SerializeCompressed()

		// Hash-and-increment until the digest is the x coordinate of
		// a curve point.  Roughly half the candidates succeed, so the
		// loop terminates almost immediately.
		for ctr := uint32(0); ; ctr++ {
			h, _ := blake2b.New256(nil)
			h.Write([]byte(hDerivationTag))
			h.Write(gBytes)
			var ctrBytes [4]byte
			binary.LittleEndian.PutUint32(ctrBytes[:], ctr)
			h.Write(ctrBytes[:])

			candidate := make([]byte, CommitmentSize)
			candidate[0] = secp256k1.PubKeyFormatCompressedEven
			copy(candidate[1:], h.Sum(nil))

			pub, err := secp256k1.ParsePubKey(candidate)
			if err != nil {
				continue
			}
			pub.AsJacobian(&generatorH)
			return
		}
	})
	return &generatorH
}

// NewCommitment parses a serialized commitment, rejecting encodings
// that are not points on the curve with ErrInvalidCommitment.
func NewCommitment(b []byte) (Commitment, error) {
	var c Commitment
	if len(b) != CommitmentSize {
		return c, ErrInvalidCommitment
	}
	copy(c[:], b)
	if c == ZeroCommitment {
		return c, nil
	}
	if _, err := secp256k1.ParsePubKey(b); err != nil {
		return c, ErrInvalidCommitment
	}
	return c, nil
}

// Commit produces the commitment blind*G + value*H.
func Commit(value uint64, blind *secp256k1.ModNScalar) Commitment {
	var result, valuePart secp256k1.JacobianPoint

	if !blind.IsZero() {
		secp256k1.ScalarBaseMultNonConst(blind, &result)
	}
	if value != 0 {
		var v secp256k1.ModNScalar
		var vBytes [32]byte
		binary.BigEndian.PutUint64(vBytes[24:], value)
		v.SetBytes(&vBytes)
		secp256k1.ScalarMultNonConst(&v, GeneratorH(), &valuePart)
		secp256k1.AddNonConst(&result, &valuePart, &result)
	}

	return FromJacobian(&result)
}

// IsZero reports whether the commitment is the identity element.
func (c *Commitment) IsZero() bool {
	return *c == ZeroCommitment
}

// String returns the hex encoding of the commitment.
func (c Commitment) String() string {
	return fmt.Sprintf("%x", c[:])
}

// AsJacobian sets point to the curve point the commitment encodes.
func (c *Commitment) AsJacobian(point *secp256k1.JacobianPoint) error {
	if c.IsZero() {
		*point = secp256k1.JacobianPoint{}
		return nil
	}
	pub, err := secp256k1.ParsePubKey(c[:])
	if err != nil {
		return ErrInvalidCommitment
	}
	pub.AsJacobian(point)
	return nil
}

func FromJacobian(point *secp256k1.JacobianPoint) Commitment {
	var c Commitment
	if (point.X.IsZero() && point.Y.IsZero()) || point.Z.IsZero() {
		return c
	}
	point.ToAffine()
	copy(c[:], secp256k1.NewPublicKey(&point.X, &point.Y).SerializeCompressed())
	return c
}

// Add returns the commitment a + b.
func Add(a, b Commitment) (Commitment, error) {
	return CommitSum([]Commitment{a, b}, nil)
}

// Negate returns the commitment -a.
func Negate(a Commitment) (Commitment, error) {
	return CommitSum(nil, []Commitment{a})
}

// CommitSum computes sum(positive) - sum(negative) over the curve.  A
// fully cancelling sum yields ZeroCommitment.
func CommitSum(positive, negative []Commitment) (Commitment, error) {
	var sum, point secp256k1.JacobianPoint
	for i := range positive {
		if positive[i].IsZero() {
			continue
		}
		if err := positive[i].AsJacobian(&point); err != nil {
			return ZeroCommitment, err
		}
		secp256k1.AddNonConst(&sum, &point, &sum)
	}
	for i := range negative {
		if negative[i].IsZero() {
			continue
		}
		if err := negative[i].AsJacobian(&point); err != nil {
			return ZeroCommitment, err
		}
		point.Y.Negate(1).Normalize()
		secp256k1.AddNonConst(&sum, &point, &sum)
	}
	return FromJacobian(&sum), nil
}

// CommitValue commits to an amount with a zero blinding factor.  A
// negative amount commits to |amount| and negates the point, which is
// how block validation folds the coinbase reward into the balance
// equation.
func CommitValue(amount int64) (Commitment, error) {
	var zero secp256k1.ModNScalar
	if amount >= 0 {
		return Commit(uint64(amount), &zero), nil
	}
	return Negate(Commit(uint64(-amount), &zero))
}
