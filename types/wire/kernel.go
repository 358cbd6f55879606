// Copyright (c) 2023 The mimbled developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"io"

	"golang.org/x/crypto/blake2b"

	"gitlab.com/mimblenet/mimbled/pedersen"
)

// KernelFeatures identifies the kind of transaction kernel and which
// consensus rules apply to it.
type KernelFeatures uint8

const (
	// PlainKernel is an ordinary fee carrying kernel.
	PlainKernel KernelFeatures = 0

	// CoinbaseKernel commits to a block reward.  It carries no fee and
	// no lock height.
	CoinbaseKernel KernelFeatures = 1

	// HeightLockedKernel is a plain kernel whose transaction may not be
	// included in a block below its lock height.
	HeightLockedKernel KernelFeatures = 2

	// NRDKernel is a no-recent-duplicate kernel.  Two kernels with the
	// same excess may not appear within the NRD relative height window.
	NRDKernel KernelFeatures = 3
)

// String returns a human readable name for the feature flag.
func (f KernelFeatures) String() string {
	switch f {
	case PlainKernel:
		return "plain"
	case CoinbaseKernel:
		return "coinbase"
	case HeightLockedKernel:
		return "heightlocked"
	case NRDKernel:
		return "nrd"
	}
	return "unknown"
}

// TxKernel is the signed proof that a transaction balances.  The excess
// commitment is the sum of outputs minus inputs minus the committed
// fee; the signature over the kernel message, verifiable with the
// excess as a public key, proves the excess has no value component.
type TxKernel struct {
	Features   KernelFeatures
	Fee        uint64
	LockHeight uint64
	Excess     pedersen.Commitment
	Signature  [pedersen.SignatureSize]byte
}

// kernelMsgSize is the length of the byte string committed to by the
// kernel signature.
const kernelMsgSize = 1 + 8 + 8 + pedersen.CommitmentSize

// SignatureMessage returns the 32 byte digest the kernel signature
// commits to.  It binds the feature flag, fee, lock height and excess
// so none of them can be altered after signing.
func (k *TxKernel) SignatureMessage() [32]byte {
	var buf [kernelMsgSize]byte
	buf[0] = byte(k.Features)
	littleEndian.PutUint64(buf[1:9], k.Fee)
	littleEndian.PutUint64(buf[9:17], k.LockHeight)
	copy(buf[17:], k.Excess[:])
	return blake2b.Sum256(buf[:])
}

// Verify checks the kernel signature against the excess commitment.
func (k *TxKernel) Verify() error {
	msg := k.SignatureMessage()
	return pedersen.VerifyMessage(k.Excess, msg[:], k.Signature)
}

// SerializeSize returns the number of bytes it would take to serialize
// the kernel.
func (k *TxKernel) SerializeSize() int {
	return kernelMsgSize + pedersen.SignatureSize
}

// BtcEncode encodes k to w.
func (k *TxKernel) BtcEncode(w io.Writer) error {
	return WriteElements(w, k.Features, k.Fee, k.LockHeight, &k.Excess,
		&k.Signature)
}

// BtcDecode decodes k from r.
func (k *TxKernel) BtcDecode(r io.Reader) error {
	return ReadElements(r, &k.Features, &k.Fee, &k.LockHeight, &k.Excess,
		&k.Signature)
}
