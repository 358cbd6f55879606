// Copyright (c) 2023 The mimbled developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"io"

	"gitlab.com/mimblenet/mimbled/pedersen"
)

// OutputFeatures distinguishes regular transfers from newly minted
// coinbase outputs, which carry a maturity rule.
type OutputFeatures uint8

const (
	// PlainOutput is an ordinary transaction output.
	PlainOutput OutputFeatures = 0

	// CoinbaseOutput is an output minted by a block reward.  It may
	// only be spent once it is buried under the coinbase maturity
	// depth.
	CoinbaseOutput OutputFeatures = 1
)

// MaxRangeProofSize bounds the serialized range proof length a decoder
// will accept.
const MaxRangeProofSize = 16 * 1024

// TxOutput is a transaction output: a commitment hiding the amount,
// the feature flag, and the range proof demonstrating the hidden
// amount is not negative.
type TxOutput struct {
	Features   OutputFeatures
	Commitment pedersen.Commitment
	RangeProof []byte
}

// TxInput spends a prior output, referenced by its commitment.
type TxInput struct {
	Commitment pedersen.Commitment
}

// SerializeSize returns the number of bytes it would take to serialize the
// output.
func (o *TxOutput) SerializeSize() int {
	return 1 + pedersen.CommitmentSize +
		VarIntSerializeSize(uint64(len(o.RangeProof))) + len(o.RangeProof)
}

// BtcEncode encodes o to w.
func (o *TxOutput) BtcEncode(w io.Writer) error {
	if err := WriteElements(w, o.Features, &o.Commitment); err != nil {
		return err
	}
	return WriteVarBytes(w, o.RangeProof)
}

// BtcDecode decodes o from r.
func (o *TxOutput) BtcDecode(r io.Reader) error {
	if err := ReadElements(r, &o.Features, &o.Commitment); err != nil {
		return err
	}
	proof, err := ReadVarBytes(r, MaxRangeProofSize, "range proof")
	if err != nil {
		return err
	}
	o.RangeProof = proof
	return nil
}

// IsCoinbase reports whether the output was minted by a block reward.
func (o *TxOutput) IsCoinbase() bool {
	return o.Features == CoinbaseOutput
}

// BtcEncode encodes in to w.
func (in *TxInput) BtcEncode(w io.Writer) error {
	return WriteElement(w, &in.Commitment)
}

// BtcDecode decodes in from r.
func (in *TxInput) BtcDecode(r io.Reader) error {
	return ReadElement(r, &in.Commitment)
}

// compareCommitments establishes the canonical ordering of commitment
// carrying entries within a body.
func compareCommitments(a, b pedersen.Commitment) int {
	return bytes.Compare(a[:], b[:])
}
