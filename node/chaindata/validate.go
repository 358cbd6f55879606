// Copyright (c) 2023 The mimbled developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaindata

import (
	"fmt"
	"math"

	"gitlab.com/mimblenet/mimbled/pedersen"
	"gitlab.com/mimblenet/mimbled/rangeproof"
	"gitlab.com/mimblenet/mimbled/types/chaincfg"
	"gitlab.com/mimblenet/mimbled/types/wire"
)

// checkBodyStructure enforces the structural rules shared by
// transactions and blocks: canonical ordering, no duplicate entries,
// parseable proofs, and no commitment appearing on both sides of the
// body.
func checkBodyStructure(body *wire.TxBody) error {
	if len(body.Kernels) == 0 {
		return NewRuleError(ErrMalformedData, "body has no kernels")
	}
	if !body.IsSorted() {
		return NewRuleError(ErrMalformedData,
			"body entries are not in canonical order")
	}

	for i := range body.Outputs {
		if len(body.Outputs[i].RangeProof) != rangeproof.ProofSize {
			str := fmt.Sprintf("output %v range proof is %d bytes, want %d",
				body.Outputs[i].Commitment,
				len(body.Outputs[i].RangeProof), rangeproof.ProofSize)
			return NewRuleError(ErrMalformedData, str)
		}
	}

	// Cut-through: an output created and spent within the same body
	// must have been cancelled before assembly.
	outputs := make(map[pedersen.Commitment]struct{}, len(body.Outputs))
	for i := range body.Outputs {
		outputs[body.Outputs[i].Commitment] = struct{}{}
	}
	for i := range body.Inputs {
		if _, ok := outputs[body.Inputs[i].Commitment]; ok {
			str := fmt.Sprintf("commitment %v is both created and spent",
				body.Inputs[i].Commitment)
			return NewRuleError(ErrCutThrough, str)
		}
	}
	return nil
}

// checkBodyWeight enforces the consensus weight ceiling.
func checkBodyWeight(body *wire.TxBody, params *chaincfg.Params) error {
	weight := params.TxWeight(body)
	if weight > params.MaxBlockWeight {
		str := fmt.Sprintf("body weight %d exceeds maximum %d",
			weight, params.MaxBlockWeight)
		return NewRuleError(ErrWeightExceeded, str)
	}
	return nil
}

// checkRangeProofs verifies every output's range proof as a batch.
func checkRangeProofs(body *wire.TxBody) error {
	items := make([]rangeproof.Item, 0, len(body.Outputs))
	for i := range body.Outputs {
		proof, err := rangeproof.ParseProof(body.Outputs[i].RangeProof)
		if err != nil {
			str := fmt.Sprintf("output %v range proof malformed: %v",
				body.Outputs[i].Commitment, err)
			return NewRuleError(ErrMalformedData, str)
		}
		items = append(items, rangeproof.Item{
			Commit: body.Outputs[i].Commitment,
			Proof:  proof,
		})
	}
	if err := rangeproof.VerifyBatch(items); err != nil {
		str := fmt.Sprintf("range proof verification failed: %v", err)
		return NewRuleError(ErrInvalidProof, str)
	}
	return nil
}

// VerifyBalance checks that the body's commitments reduce to the
// identity:  sum(outputs) + overage*H - sum(inputs) - sum(excesses) -
// offset*G must be the zero point.  The overage is the net explicit
// value of the body: the total fee for a transaction, fees minus the
// minted reward for a block.
func VerifyBalance(body *wire.TxBody, offset [32]byte, overage int64) error {
	offsetScalar, err := pedersen.ParseScalar(offset)
	if err != nil {
		return NewRuleError(ErrMalformedData,
			"kernel offset is not a canonical scalar")
	}

	positive := make([]pedersen.Commitment, 0, len(body.Outputs)+1)
	for i := range body.Outputs {
		positive = append(positive, body.Outputs[i].Commitment)
	}
	if overage != 0 {
		overageCommit, err := pedersen.CommitValue(overage)
		if err != nil {
			return AssertError(fmt.Sprintf("commit overage %d: %v", overage, err))
		}
		positive = append(positive, overageCommit)
	}

	negative := make([]pedersen.Commitment, 0, len(body.Inputs)+len(body.Kernels)+1)
	for i := range body.Inputs {
		negative = append(negative, body.Inputs[i].Commitment)
	}
	for i := range body.Kernels {
		negative = append(negative, body.Kernels[i].Excess)
	}
	if !offsetScalar.IsZero() {
		negative = append(negative, pedersen.Commit(0, offsetScalar))
	}

	sum, err := pedersen.CommitSum(positive, negative)
	if err != nil {
		str := fmt.Sprintf("commitment sum failed: %v", err)
		return NewRuleError(ErrMalformedData, str)
	}
	if !sum.IsZero() {
		return NewRuleError(ErrBalanceViolation,
			"commitments do not sum to the identity")
	}
	return nil
}

// CheckTransactionSanity performs the context free checks on a
// transaction: structure, weight, fee rate, range proofs, kernel
// signatures and the balance equation.  Input resolution against the
// live output set is contextual and done separately.
func CheckTransactionSanity(tx *wire.MsgTx, params *chaincfg.Params) error {
	body := &tx.Body
	if err := checkBodyStructure(body); err != nil {
		return err
	}
	if len(body.Inputs) == 0 {
		return NewRuleError(ErrMalformedData, "transaction has no inputs")
	}

	// Reward minting is a block prerogative.
	for i := range body.Outputs {
		if body.Outputs[i].Features == wire.CoinbaseOutput {
			str := fmt.Sprintf("transaction output %v carries the coinbase flag",
				body.Outputs[i].Commitment)
			return NewRuleError(ErrInvalidCoinbase, str)
		}
	}
	for i := range body.Kernels {
		if body.Kernels[i].Features == wire.CoinbaseKernel {
			str := fmt.Sprintf("transaction kernel %v carries the coinbase flag",
				body.Kernels[i].Excess)
			return NewRuleError(ErrInvalidCoinbase, str)
		}
	}

	if err := checkBodyWeight(body, params); err != nil {
		return err
	}

	fee := body.TotalFee()
	weight := params.TxWeight(body)
	if fee < params.MinFeeRate*weight {
		str := fmt.Sprintf("fee %d below minimum rate %d for weight %d",
			fee, params.MinFeeRate, weight)
		return NewRuleError(ErrInsufficientFee, str)
	}

	if err := checkRangeProofs(body); err != nil {
		return err
	}
	if err := VerifyKernelBatch(body.Kernels); err != nil {
		return err
	}

	if fee > math.MaxInt64 {
		return NewRuleError(ErrMalformedData, "total fee overflows")
	}
	return VerifyBalance(body, tx.Offset, int64(fee))
}

// CheckBlockBodySanity performs the near context free checks on a
// block body: everything transaction sanity checks plus the coinbase
// rules.  A block mints its reward through exactly one coinbase kernel
// and at least one coinbase output, and its balance overage nets the
// reward against collected fees.  The parent's total kernel offset is
// the only context needed, to isolate this block's own offset from the
// cumulative one the header carries.
func CheckBlockBodySanity(block *wire.MsgBlock, prevTotalOffset [32]byte,
	params *chaincfg.Params) error {

	body := &block.Body

	// The genesis block and only it carries an empty body.
	if block.Header.Height == 0 {
		if len(body.Inputs)+len(body.Outputs)+len(body.Kernels) != 0 {
			return NewRuleError(ErrMalformedData, "genesis body is not empty")
		}
		return nil
	}

	if err := checkBodyStructure(body); err != nil {
		return err
	}
	if err := checkBodyWeight(body, params); err != nil {
		return err
	}

	var coinbaseKernels, coinbaseOutputs int
	for i := range body.Kernels {
		if body.Kernels[i].Features == wire.CoinbaseKernel {
			coinbaseKernels++
		}
	}
	for i := range body.Outputs {
		if body.Outputs[i].Features == wire.CoinbaseOutput {
			coinbaseOutputs++
		}
	}
	if coinbaseKernels != 1 {
		str := fmt.Sprintf("block has %d coinbase kernels, want 1",
			coinbaseKernels)
		return NewRuleError(ErrInvalidCoinbase, str)
	}
	if coinbaseOutputs == 0 {
		return NewRuleError(ErrInvalidCoinbase, "block has no coinbase output")
	}

	if err := checkRangeProofs(body); err != nil {
		return err
	}
	if err := VerifyKernelBatch(body.Kernels); err != nil {
		return err
	}

	for i := range body.Kernels {
		if err := CheckKernelLockHeight(&body.Kernels[i], block.Header.Height); err != nil {
			return err
		}
	}

	// The coinbase output absorbs collected fees, so a block's only
	// explicit value is the minted reward on the input side.
	overage := -int64(params.BlockReward)

	blockOffset, err := blockOffsetFromTotals(block.Header.TotalOffset,
		prevTotalOffset)
	if err != nil {
		return err
	}
	return VerifyBalance(body, blockOffset, overage)
}

// blockOffsetFromTotals recovers a block's own kernel offset from its
// cumulative total and its parent's.
func blockOffsetFromTotals(total, prevTotal [32]byte) ([32]byte, error) {
	totalScalar, err := pedersen.ParseScalar(total)
	if err != nil {
		return [32]byte{}, NewRuleError(ErrMalformedData,
			"total kernel offset is not a canonical scalar")
	}
	prevScalar, err := pedersen.ParseScalar(prevTotal)
	if err != nil {
		return [32]byte{}, NewRuleError(ErrMalformedData,
			"parent total kernel offset is not a canonical scalar")
	}
	return pedersen.SerializeScalar(pedersen.SubScalars(totalScalar, prevScalar)), nil
}
