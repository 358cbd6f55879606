// Copyright (c) 2023 The mimbled developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaindata

import (
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/pkg/errors"

	"gitlab.com/mimblenet/mimbled/pedersen"
	"gitlab.com/mimblenet/mimbled/rangeproof"
	"gitlab.com/mimblenet/mimbled/types/wire"
)

// The helpers below stand in for the wallet collaborator: they build
// outputs, transactions and coinbases with known blinding factors so
// tests can exercise real signatures, proofs and balance arithmetic.

// TestOutput is an output along with the secret material that created
// it.
type TestOutput struct {
	Value  uint64
	Blind  *secp256k1.ModNScalar
	Output wire.TxOutput
}

// NewTestOutput creates an output of the given value with a fresh blind
// and a valid range proof.
func NewTestOutput(value uint64, features wire.OutputFeatures) (*TestOutput, error) {
	blind, err := pedersen.NewBlind()
	if err != nil {
		return nil, err
	}
	commitment := pedersen.Commit(value, blind)
	proof, err := rangeproof.Prove(value, blind)
	if err != nil {
		return nil, err
	}
	return &TestOutput{
		Value: value,
		Blind: blind,
		Output: wire.TxOutput{
			Features:   features,
			Commitment: commitment,
			RangeProof: proof.Serialize(),
		},
	}, nil
}

// signedKernel builds a kernel whose excess commits to excessKey and
// whose signature is valid for it.
func signedKernel(features wire.KernelFeatures, fee, lockHeight uint64,
	excessKey *secp256k1.ModNScalar) (wire.TxKernel, error) {

	kernel := wire.TxKernel{
		Features:   features,
		Fee:        fee,
		LockHeight: lockHeight,
		Excess:     pedersen.Commit(0, excessKey),
	}
	msg := kernel.SignatureMessage()
	sig, err := pedersen.SignMessage(excessKey, msg[:])
	if err != nil {
		return wire.TxKernel{}, err
	}
	kernel.Signature = sig
	return kernel, nil
}

// BuildTestTransaction spends the given outputs into new outputs of the
// given values, paying the difference as fee.  The returned slice holds
// the created outputs with their blinds so they can be spent in turn.
func BuildTestTransaction(spends []*TestOutput, outValues []uint64,
	kernelFeatures wire.KernelFeatures, lockHeight uint64) (*wire.MsgTx, []*TestOutput, error) {

	var inTotal, outTotal uint64
	for _, spend := range spends {
		inTotal += spend.Value
	}
	for _, value := range outValues {
		outTotal += value
	}
	if outTotal > inTotal {
		return nil, nil, errors.New("test transaction overspends")
	}
	fee := inTotal - outTotal

	tx := wire.NewMsgTx()
	blindSum := new(secp256k1.ModNScalar)
	for _, spend := range spends {
		tx.Body.Inputs = append(tx.Body.Inputs, wire.TxInput{
			Commitment: spend.Output.Commitment,
		})
		blindSum = pedersen.SubScalars(blindSum, spend.Blind)
	}

	created := make([]*TestOutput, 0, len(outValues))
	for _, value := range outValues {
		out, err := NewTestOutput(value, wire.PlainOutput)
		if err != nil {
			return nil, nil, err
		}
		created = append(created, out)
		tx.Body.Outputs = append(tx.Body.Outputs, out.Output)
		blindSum = pedersen.AddScalars(blindSum, out.Blind)
	}

	// Split a random offset off the excess so the kernel does not
	// expose the participants' net blind directly.
	offset, err := pedersen.NewBlind()
	if err != nil {
		return nil, nil, err
	}
	excessKey := pedersen.SubScalars(blindSum, offset)
	tx.Offset = pedersen.SerializeScalar(offset)

	kernel, err := signedKernel(kernelFeatures, fee, lockHeight, excessKey)
	if err != nil {
		return nil, nil, err
	}
	tx.Body.Kernels = append(tx.Body.Kernels, kernel)
	tx.Body.Sort()
	return tx, created, nil
}

// BuildTestCoinbase mints a reward plus collected fees: one coinbase
// output and the matching coinbase kernel.
func BuildTestCoinbase(reward, fees uint64) (*TestOutput, wire.TxKernel, error) {
	out, err := NewTestOutput(reward+fees, wire.CoinbaseOutput)
	if err != nil {
		return nil, wire.TxKernel{}, err
	}
	// With no inputs and no extra offset the coinbase excess is the
	// output blind itself: out - reward*H = blind*G.
	kernel, err := signedKernel(wire.CoinbaseKernel, 0, 0, out.Blind)
	if err != nil {
		return nil, wire.TxKernel{}, err
	}
	return out, kernel, nil
}
