// Copyright (c) 2023 The mimbled developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package pedersen

import (
	"errors"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/schnorr"
)

// SignatureSize is the length in bytes of a serialized kernel
// signature.
const SignatureSize = 64

// ErrInvalidSignature describes a kernel signature that failed to parse
// or to verify against its excess commitment.
var ErrInvalidSignature = errors.New("invalid excess signature")

// SignMessage produces a Schnorr signature over a 32-byte message hash
// with the supplied secret scalar.  The corresponding public point is
// the kernel excess commitment, which by construction commits to a zero
// amount and is therefore a plain key*G point.
func SignMessage(key *secp256k1.ModNScalar, msg32 []byte) ([SignatureSize]byte, error) {
	var out [SignatureSize]byte
	priv := secp256k1.NewPrivateKey(key)
	sig, err := schnorr.Sign(priv, msg32)
	if err != nil {
		return out, err
	}
	copy(out[:], sig.Serialize())
	return out, nil
}

// VerifyMessage checks a Schnorr signature over msg32 against the
// public point encoded by the excess commitment.
func VerifyMessage(excess Commitment, msg32 []byte, sig [SignatureSize]byte) error {
	if excess.IsZero() {
		return ErrInvalidCommitment
	}
	pub, err := secp256k1.ParsePubKey(excess[:])
	if err != nil {
		return ErrInvalidCommitment
	}
	parsedSig, err := schnorr.ParseSignature(sig[:])
	if err != nil {
		return ErrInvalidSignature
	}
	if !parsedSig.Verify(msg32, pub) {
		return ErrInvalidSignature
	}
	return nil
}
