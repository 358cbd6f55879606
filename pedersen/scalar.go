// Copyright (c) 2023 The mimbled developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package pedersen

import (
	"errors"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// ScalarSize is the length in bytes of a serialized blinding factor or
// kernel offset.
const ScalarSize = 32

// ErrInvalidScalar describes a 32-byte value that is not a canonical
// scalar modulo the curve group order.
var ErrInvalidScalar = errors.New("invalid scalar encoding")

// ZeroScalar is the all-zeroes serialized scalar.
var ZeroScalar [ScalarSize]byte

// NewBlind generates a cryptographically random blinding factor.
func NewBlind() (*secp256k1.ModNScalar, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	return &priv.Key, nil
}

// ParseScalar decodes a canonical 32-byte big-endian scalar.
func ParseScalar(b [ScalarSize]byte) (*secp256k1.ModNScalar, error) {
	var s secp256k1.ModNScalar
	if overflow := s.SetBytes(&b); overflow != 0 {
		return nil, ErrInvalidScalar
	}
	return &s, nil
}

// SerializeScalar encodes a scalar as 32 big-endian bytes.
func SerializeScalar(s *secp256k1.ModNScalar) [ScalarSize]byte {
	return s.Bytes()
}

// AddScalars returns a + b mod the group order.  It is used to fold
// per-transaction offsets into a block-level total offset.
func AddScalars(a, b *secp256k1.ModNScalar) *secp256k1.ModNScalar {
	var sum secp256k1.ModNScalar
	sum.Set(a)
	sum.Add(b)
	return &sum
}

// SubScalars returns a - b mod the group order.
func SubScalars(a, b *secp256k1.ModNScalar) *secp256k1.ModNScalar {
	var negB secp256k1.ModNScalar
	negB.Set(b)
	negB.Negate()
	return AddScalars(a, &negB)
}
