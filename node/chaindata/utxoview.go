// Copyright (c) 2023 The mimbled developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaindata

import (
	"fmt"

	"gitlab.com/mimblenet/mimbled/pedersen"
	"gitlab.com/mimblenet/mimbled/types/chaincfg"
	"gitlab.com/mimblenet/mimbled/types/wire"
)

// OutputEntry records a live unspent output: where it sits in the
// output accumulator and enough context to enforce maturity at spend.
type OutputEntry struct {
	// Position is the output's leaf position in the output
	// accumulator.
	Position uint64

	// Height is the height of the block that created the output.
	Height uint64

	// Features is the output's feature flag.
	Features wire.OutputFeatures
}

// IsCoinbase reports whether the entry is a reward output.
func (e *OutputEntry) IsCoinbase() bool {
	return e.Features == wire.CoinbaseOutput
}

// OutputView is the live unspent output index, keyed by commitment.
// The chain owns the canonical view and mutates it only under its
// write lock; clones serve candidate evaluation and reorg restore.
type OutputView struct {
	entries map[pedersen.Commitment]OutputEntry
}

// NewOutputView returns an empty view.
func NewOutputView() *OutputView {
	return &OutputView{entries: make(map[pedersen.Commitment]OutputEntry)}
}

// LookupEntry returns the entry for a commitment, or nil if the output
// is unknown or spent.
func (v *OutputView) LookupEntry(commitment pedersen.Commitment) *OutputEntry {
	entry, ok := v.entries[commitment]
	if !ok {
		return nil
	}
	return &entry
}

// AddOutput records a newly created output.  A commitment can only be
// live once; recreating one that already exists is a consistency
// violation the caller must have excluded.
func (v *OutputView) AddOutput(commitment pedersen.Commitment, entry OutputEntry) error {
	if _, ok := v.entries[commitment]; ok {
		return AssertError(fmt.Sprintf("output %v added twice", commitment))
	}
	v.entries[commitment] = entry
	return nil
}

// SpendOutput removes a live output, returning its entry.
func (v *OutputView) SpendOutput(commitment pedersen.Commitment) (OutputEntry, error) {
	entry, ok := v.entries[commitment]
	if !ok {
		str := fmt.Sprintf("output %v is unknown or already spent", commitment)
		return OutputEntry{}, NewRuleError(ErrUnknownOutput, str)
	}
	delete(v.entries, commitment)
	return entry, nil
}

// Len returns the number of live outputs.
func (v *OutputView) Len() int {
	return len(v.entries)
}

// Clone returns an independent copy of the view.
func (v *OutputView) Clone() *OutputView {
	entries := make(map[pedersen.Commitment]OutputEntry, len(v.entries))
	for commitment, entry := range v.entries {
		entries[commitment] = entry
	}
	return &OutputView{entries: entries}
}

// CheckInputs resolves every input of a body against the view at the
// given spend height.  Inputs must reference distinct live outputs, and
// reward outputs must have reached maturity depth.
func CheckInputs(view *OutputView, body *wire.TxBody, height uint64,
	params *chaincfg.Params) error {

	seen := make(map[pedersen.Commitment]struct{}, len(body.Inputs))
	for i := range body.Inputs {
		commitment := body.Inputs[i].Commitment
		if _, ok := seen[commitment]; ok {
			str := fmt.Sprintf("output %v spent twice", commitment)
			return NewRuleError(ErrDoubleSpend, str)
		}
		seen[commitment] = struct{}{}

		entry := view.LookupEntry(commitment)
		if entry == nil {
			str := fmt.Sprintf("input references unknown or spent output %v",
				commitment)
			return NewRuleError(ErrUnknownOutput, str)
		}
		if entry.IsCoinbase() {
			if height < entry.Height+params.CoinbaseMaturity {
				str := fmt.Sprintf("coinbase output %v spent at height %d, "+
					"mature at %d", commitment,
					height, entry.Height+params.CoinbaseMaturity)
				return NewRuleError(ErrImmatureSpend, str)
			}
		}
	}
	return nil
}
