// Copyright (c) 2023 The mimbled developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"fmt"
	"io"
	"sort"

	"gitlab.com/mimblenet/mimbled/types/chainhash"
)

// Maximum counts a decoder will accept for the variable length lists of
// a transaction body.  They are generous relative to what fits in a
// block and exist only to bound allocations on malformed input.
const (
	maxInputsPerBody  = 50_000
	maxOutputsPerBody = 50_000
	maxKernelsPerBody = 50_000
)

// TxBody holds the inputs, outputs and kernels shared by transactions
// and blocks.  The three lists are kept in canonical order: inputs and
// outputs ascending by commitment, kernels ascending by excess.
type TxBody struct {
	Inputs  []TxInput
	Outputs []TxOutput
	Kernels []TxKernel
}

// Sort arranges the three lists into canonical order in place.
func (b *TxBody) Sort() {
	sort.Slice(b.Inputs, func(i, j int) bool {
		return compareCommitments(b.Inputs[i].Commitment,
			b.Inputs[j].Commitment) < 0
	})
	sort.Slice(b.Outputs, func(i, j int) bool {
		return compareCommitments(b.Outputs[i].Commitment,
			b.Outputs[j].Commitment) < 0
	})
	sort.Slice(b.Kernels, func(i, j int) bool {
		return compareCommitments(b.Kernels[i].Excess,
			b.Kernels[j].Excess) < 0
	})
}

// IsSorted reports whether all three lists are in canonical order with
// no duplicate entries.
func (b *TxBody) IsSorted() bool {
	for i := 1; i < len(b.Inputs); i++ {
		if compareCommitments(b.Inputs[i-1].Commitment,
			b.Inputs[i].Commitment) >= 0 {
			return false
		}
	}
	for i := 1; i < len(b.Outputs); i++ {
		if compareCommitments(b.Outputs[i-1].Commitment,
			b.Outputs[i].Commitment) >= 0 {
			return false
		}
	}
	for i := 1; i < len(b.Kernels); i++ {
		if compareCommitments(b.Kernels[i-1].Excess,
			b.Kernels[i].Excess) >= 0 {
			return false
		}
	}
	return true
}

// TotalFee sums the fees of all kernels in the body.
func (b *TxBody) TotalFee() uint64 {
	var total uint64
	for i := range b.Kernels {
		total += b.Kernels[i].Fee
	}
	return total
}

// SerializeSize returns the number of bytes it would take to serialize
// the body.
func (b *TxBody) SerializeSize() int {
	n := VarIntSerializeSize(uint64(len(b.Inputs))) +
		VarIntSerializeSize(uint64(len(b.Outputs))) +
		VarIntSerializeSize(uint64(len(b.Kernels)))
	n += len(b.Inputs) * (&TxInput{}).serializeSize()
	for i := range b.Outputs {
		n += b.Outputs[i].SerializeSize()
	}
	for i := range b.Kernels {
		n += b.Kernels[i].SerializeSize()
	}
	return n
}

func (in *TxInput) serializeSize() int {
	return len(in.Commitment)
}

// BtcEncode encodes b to w.
func (b *TxBody) BtcEncode(w io.Writer) error {
	if err := WriteVarInt(w, uint64(len(b.Inputs))); err != nil {
		return err
	}
	if err := WriteVarInt(w, uint64(len(b.Outputs))); err != nil {
		return err
	}
	if err := WriteVarInt(w, uint64(len(b.Kernels))); err != nil {
		return err
	}
	for i := range b.Inputs {
		if err := b.Inputs[i].BtcEncode(w); err != nil {
			return err
		}
	}
	for i := range b.Outputs {
		if err := b.Outputs[i].BtcEncode(w); err != nil {
			return err
		}
	}
	for i := range b.Kernels {
		if err := b.Kernels[i].BtcEncode(w); err != nil {
			return err
		}
	}
	return nil
}

// BtcDecode decodes b from r.
func (b *TxBody) BtcDecode(r io.Reader) error {
	numInputs, err := ReadVarInt(r)
	if err != nil {
		return err
	}
	numOutputs, err := ReadVarInt(r)
	if err != nil {
		return err
	}
	numKernels, err := ReadVarInt(r)
	if err != nil {
		return err
	}
	if numInputs > maxInputsPerBody || numOutputs > maxOutputsPerBody ||
		numKernels > maxKernelsPerBody {
		str := fmt.Sprintf("body element count out of range [%d %d %d]",
			numInputs, numOutputs, numKernels)
		return messageError("TxBody.BtcDecode", str)
	}

	b.Inputs = make([]TxInput, numInputs)
	for i := range b.Inputs {
		if err := b.Inputs[i].BtcDecode(r); err != nil {
			return err
		}
	}
	b.Outputs = make([]TxOutput, numOutputs)
	for i := range b.Outputs {
		if err := b.Outputs[i].BtcDecode(r); err != nil {
			return err
		}
	}
	b.Kernels = make([]TxKernel, numKernels)
	for i := range b.Kernels {
		if err := b.Kernels[i].BtcDecode(r); err != nil {
			return err
		}
	}
	return nil
}

// MsgTx is a full transaction: a body plus the kernel offset, the
// scalar split off the kernel excesses so that transaction
// participants' blinding factors never sum to a public value alone.
type MsgTx struct {
	Offset [32]byte
	Body   TxBody
}

// NewMsgTx returns a transaction with an empty body and a zero offset.
func NewMsgTx() *MsgTx {
	return &MsgTx{}
}

// SerializeSize returns the number of bytes it would take to serialize
// the transaction.
func (tx *MsgTx) SerializeSize() int {
	return len(tx.Offset) + tx.Body.SerializeSize()
}

// BtcEncode encodes tx to w.
func (tx *MsgTx) BtcEncode(w io.Writer) error {
	if err := WriteElement(w, &tx.Offset); err != nil {
		return err
	}
	return tx.Body.BtcEncode(w)
}

// BtcDecode decodes tx from r.
func (tx *MsgTx) BtcDecode(r io.Reader) error {
	if err := ReadElement(r, &tx.Offset); err != nil {
		return err
	}
	return tx.Body.BtcDecode(r)
}

// Serialize encodes the transaction using the canonical encoding.
func (tx *MsgTx) Serialize(w io.Writer) error {
	return tx.BtcEncode(w)
}

// Deserialize decodes a transaction from its canonical encoding.
func (tx *MsgTx) Deserialize(r io.Reader) error {
	return tx.BtcDecode(r)
}

// TxHash generates the hash of the transaction serialization.
func (tx *MsgTx) TxHash() chainhash.Hash {
	buf := bytes.NewBuffer(make([]byte, 0, tx.SerializeSize()))
	_ = tx.Serialize(buf)
	return chainhash.HashH(buf.Bytes())
}
