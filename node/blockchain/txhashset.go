// Copyright (c) 2023 The mimbled developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"bytes"
	"fmt"

	"gitlab.com/mimblenet/mimbled/node/chaindata"
	"gitlab.com/mimblenet/mimbled/node/mmr"
	"gitlab.com/mimblenet/mimbled/types/chainhash"
	"gitlab.com/mimblenet/mimbled/types/wire"
)

// Roots bundles the three accumulator roots a header commits to.
type Roots struct {
	Output     chainhash.Hash
	RangeProof chainhash.Hash
	Kernel     chainhash.Hash
}

// TxHashset holds the three parallel accumulators over the chain's
// outputs, range proofs and kernels, plus the live output index used to
// resolve spends.  Outputs and range proofs share leaf positions;
// kernels are append-only and never pruned.
type TxHashset struct {
	outputs     *mmr.PMMR
	rangeProofs *mmr.PMMR
	kernels     *mmr.PMMR
	view        *chaindata.OutputView
}

// HashsetSnapshot captures a TxHashset state for atomic restore during
// reorganization.
type HashsetSnapshot struct {
	outputs     mmr.Snapshot
	rangeProofs mmr.Snapshot
	kernels     mmr.Snapshot
	view        *chaindata.OutputView
}

// NewTxHashset returns a hashset over the given accumulator backends.
func NewTxHashset(outputs, rangeProofs, kernels mmr.Backend) (*TxHashset, error) {
	outputPMMR, err := mmr.New(outputs)
	if err != nil {
		return nil, err
	}
	rangeProofPMMR, err := mmr.New(rangeProofs)
	if err != nil {
		return nil, err
	}
	kernelPMMR, err := mmr.New(kernels)
	if err != nil {
		return nil, err
	}
	return &TxHashset{
		outputs:     outputPMMR,
		rangeProofs: rangeProofPMMR,
		kernels:     kernelPMMR,
		view:        chaindata.NewOutputView(),
	}, nil
}

// NewMemoryTxHashset returns a hashset over in-memory backends.
func NewMemoryTxHashset() *TxHashset {
	hashset, err := NewTxHashset(mmr.NewMemoryBackend(),
		mmr.NewMemoryBackend(), mmr.NewMemoryBackend())
	if err != nil {
		// Memory backends cannot fail to initialize empty.
		panic(err)
	}
	return hashset
}

// outputLeafData is the output accumulator leaf preimage: the feature
// flag and the commitment, the stable identity of an output.
func outputLeafData(output *wire.TxOutput) []byte {
	data := make([]byte, 0, 1+len(output.Commitment))
	data = append(data, byte(output.Features))
	data = append(data, output.Commitment[:]...)
	return data
}

// kernelLeafData is the kernel accumulator leaf preimage: the full
// kernel serialization.
func kernelLeafData(kernel *wire.TxKernel) ([]byte, error) {
	var buf bytes.Buffer
	if err := kernel.BtcEncode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// View returns the live output index.  Callers must not retain it
// across chain mutations; Clone it for concurrent inspection.
func (ts *TxHashset) View() *chaindata.OutputView {
	return ts.view
}

// Roots returns the three current accumulator roots.
func (ts *TxHashset) Roots() (Roots, error) {
	outputRoot, err := ts.outputs.Root()
	if err != nil {
		return Roots{}, err
	}
	rangeProofRoot, err := ts.rangeProofs.Root()
	if err != nil {
		return Roots{}, err
	}
	kernelRoot, err := ts.kernels.Root()
	if err != nil {
		return Roots{}, err
	}
	return Roots{
		Output:     outputRoot,
		RangeProof: rangeProofRoot,
		Kernel:     kernelRoot,
	}, nil
}

// Sizes returns the output and kernel accumulator sizes.  The range
// proof accumulator always tracks the output one.
func (ts *TxHashset) Sizes() (outputSize, kernelSize uint64) {
	return ts.outputs.Size(), ts.kernels.Size()
}

// Snapshot captures the accumulator sizes, leaf bitmaps and output
// index.
func (ts *TxHashset) Snapshot() HashsetSnapshot {
	return HashsetSnapshot{
		outputs:     ts.outputs.Snapshot(),
		rangeProofs: ts.rangeProofs.Snapshot(),
		kernels:     ts.kernels.Snapshot(),
		view:        ts.view.Clone(),
	}
}

// Reset discards all accumulator contents and the output index,
// truncating the backends to empty.
func (ts *TxHashset) Reset() error {
	if err := ts.outputs.Reset(); err != nil {
		return err
	}
	if err := ts.rangeProofs.Reset(); err != nil {
		return err
	}
	if err := ts.kernels.Reset(); err != nil {
		return err
	}
	ts.view = chaindata.NewOutputView()
	return nil
}

// Rewind restores the hashset to a snapshot.  It must either fully
// succeed or leave the hashset untouched; the accumulators rewind
// backwards only, so a failure on one before any mutation of the
// others aborts cleanly.
func (ts *TxHashset) Rewind(snap HashsetSnapshot) error {
	if err := ts.outputs.Rewind(snap.outputs); err != nil {
		return err
	}
	if err := ts.rangeProofs.Rewind(snap.rangeProofs); err != nil {
		return err
	}
	if err := ts.kernels.Rewind(snap.kernels); err != nil {
		return err
	}
	ts.view = snap.view.Clone()
	return nil
}

// Apply connects a block body: spent outputs are pruned from the
// output and range proof accumulators, new outputs, proofs and kernels
// are appended, and the resulting roots and sizes are compared against
// the header's declared ones.  On any failure the hashset is restored
// to its prior state and the error returned; a block either applies in
// full or not at all.
func (ts *TxHashset) Apply(block *wire.MsgBlock) error {
	undo := ts.Snapshot()
	if err := ts.apply(block); err != nil {
		if rerr := ts.Rewind(undo); rerr != nil {
			return chaindata.AssertError(fmt.Sprintf(
				"failed to restore hashset after rejected block %v: %v",
				block.BlockHash(), rerr))
		}
		return err
	}
	return nil
}

func (ts *TxHashset) apply(block *wire.MsgBlock) error {
	header := &block.Header
	if err := ts.applyBody(&block.Body, header.Height); err != nil {
		return err
	}

	outputSize, kernelSize := ts.Sizes()
	if outputSize != header.OutputMMRSize || kernelSize != header.KernelMMRSize {
		str := fmt.Sprintf("block %v declares accumulator sizes %d/%d, got %d/%d",
			block.BlockHash(), header.OutputMMRSize, header.KernelMMRSize,
			outputSize, kernelSize)
		return chaindata.NewRuleError(chaindata.ErrRootMismatch, str)
	}

	roots, err := ts.Roots()
	if err != nil {
		return err
	}
	if roots.Output != header.OutputRoot ||
		roots.RangeProof != header.RangeProofRoot ||
		roots.Kernel != header.KernelRoot {
		str := fmt.Sprintf("block %v accumulator roots do not match header",
			block.BlockHash())
		return chaindata.NewRuleError(chaindata.ErrRootMismatch, str)
	}
	return nil
}

// StageBody applies a body on top of the current state just long
// enough to learn the roots and sizes a header confirming it must
// declare, then restores the prior state.  Block producers use it to
// fill in header commitments.
func (ts *TxHashset) StageBody(body *wire.TxBody, height uint64) (Roots,
	uint64, uint64, error) {

	undo := ts.Snapshot()
	defer func() {
		if err := ts.Rewind(undo); err != nil {
			panic(fmt.Sprintf("failed to unwind staged body: %v", err))
		}
	}()

	if err := ts.applyBody(body, height); err != nil {
		return Roots{}, 0, 0, err
	}
	roots, err := ts.Roots()
	if err != nil {
		return Roots{}, 0, 0, err
	}
	outputSize, kernelSize := ts.Sizes()
	return roots, outputSize, kernelSize, nil
}

func (ts *TxHashset) applyBody(body *wire.TxBody, height uint64) error {
	for i := range body.Inputs {
		commitment := body.Inputs[i].Commitment
		entry, err := ts.view.SpendOutput(commitment)
		if err != nil {
			return err
		}
		if err := ts.outputs.Prune(entry.Position); err != nil {
			return chaindata.AssertError(fmt.Sprintf(
				"prune output leaf %d: %v", entry.Position, err))
		}
		if err := ts.rangeProofs.Prune(entry.Position); err != nil {
			return chaindata.AssertError(fmt.Sprintf(
				"prune range proof leaf %d: %v", entry.Position, err))
		}
	}

	for i := range body.Outputs {
		output := &body.Outputs[i]
		position, err := ts.outputs.Push(outputLeafData(output))
		if err != nil {
			return err
		}
		if _, err := ts.rangeProofs.Push(output.RangeProof); err != nil {
			return err
		}
		err = ts.view.AddOutput(output.Commitment, chaindata.OutputEntry{
			Position: position,
			Height:   height,
			Features: output.Features,
		})
		if err != nil {
			return err
		}
	}

	for i := range body.Kernels {
		data, err := kernelLeafData(&body.Kernels[i])
		if err != nil {
			return err
		}
		if _, err := ts.kernels.Push(data); err != nil {
			return err
		}
	}
	return nil
}
