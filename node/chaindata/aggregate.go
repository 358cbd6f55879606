// Copyright (c) 2023 The mimbled developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaindata

import (
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"gitlab.com/mimblenet/mimbled/pedersen"
	"gitlab.com/mimblenet/mimbled/types/wire"
)

// AggregateTransactions merges transactions into a single equivalent
// one: bodies are concatenated, offsets are summed, and any output
// created by one transaction and spent by another is cancelled out
// (cut-through), leaving only net effects.  Block assembly runs this
// over the selected pool transactions before attaching the reward.
func AggregateTransactions(txs []*wire.MsgTx) (*wire.MsgTx, error) {
	inputs := make(map[pedersen.Commitment]wire.TxInput)
	outputs := make(map[pedersen.Commitment]wire.TxOutput)
	offsetSum := new(secp256k1.ModNScalar)

	agg := wire.NewMsgTx()
	for _, tx := range txs {
		for i := range tx.Body.Inputs {
			commitment := tx.Body.Inputs[i].Commitment
			if _, ok := inputs[commitment]; ok {
				str := fmt.Sprintf("transactions double spend output %v",
					commitment)
				return nil, NewRuleError(ErrDoubleSpend, str)
			}
			inputs[commitment] = tx.Body.Inputs[i]
		}
		for i := range tx.Body.Outputs {
			commitment := tx.Body.Outputs[i].Commitment
			if _, ok := outputs[commitment]; ok {
				str := fmt.Sprintf("transactions duplicate output %v",
					commitment)
				return nil, NewRuleError(ErrMalformedData, str)
			}
			outputs[commitment] = tx.Body.Outputs[i]
		}
		agg.Body.Kernels = append(agg.Body.Kernels, tx.Body.Kernels...)

		offset, err := pedersen.ParseScalar(tx.Offset)
		if err != nil {
			return nil, NewRuleError(ErrMalformedData,
				"transaction offset is not a canonical scalar")
		}
		offsetSum = pedersen.AddScalars(offsetSum, offset)
	}

	// Cut-through: cancel pairs present on both sides.  Kernels and
	// the offset stay untouched, so the aggregate still balances.
	for commitment := range inputs {
		if _, ok := outputs[commitment]; ok {
			delete(inputs, commitment)
			delete(outputs, commitment)
		}
	}

	for _, input := range inputs {
		agg.Body.Inputs = append(agg.Body.Inputs, input)
	}
	for _, output := range outputs {
		agg.Body.Outputs = append(agg.Body.Outputs, output)
	}
	agg.Offset = pedersen.SerializeScalar(offsetSum)
	agg.Body.Sort()
	return agg, nil
}
