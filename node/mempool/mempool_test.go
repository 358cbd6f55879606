// Copyright (c) 2023 The mimbled developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/mimblenet/mimbled/node/chaindata"
	"gitlab.com/mimblenet/mimbled/pedersen"
	"gitlab.com/mimblenet/mimbled/types/chaincfg"
	"gitlab.com/mimblenet/mimbled/types/wire"
)

// fakeChain satisfies the pool's chain backend with a canned
// validation result, so policy tests do not need real chain state.
type fakeChain struct {
	validateErr error
}

func (f *fakeChain) ValidateTransaction(*wire.MsgTx) error {
	return f.validateErr
}

func newTestPool(maxWeight uint64) (*TxPool, *fakeChain) {
	chain := &fakeChain{}
	params := chaincfg.SimNetParams
	pool := New(&Config{
		Params:        &params,
		Chain:         chain,
		MaxPoolWeight: maxWeight,
	})
	return pool, chain
}

// nextCommitment hands out distinct commitments so synthetic
// transactions never collide by accident.
var commitmentCounter byte

func nextCommitment() pedersen.Commitment {
	commitmentCounter++
	var c pedersen.Commitment
	c[0] = 0x08
	c[1] = commitmentCounter
	return c
}

// syntheticTx builds a structurally plausible transaction: the pool
// policy only reads inputs, outputs, kernels and the fee, so no real
// cryptography is needed behind a fake chain.
func syntheticTx(fee uint64, numInputs, numOutputs int) *wire.MsgTx {
	tx := wire.NewMsgTx()
	for i := 0; i < numInputs; i++ {
		tx.Body.Inputs = append(tx.Body.Inputs,
			wire.TxInput{Commitment: nextCommitment()})
	}
	for i := 0; i < numOutputs; i++ {
		tx.Body.Outputs = append(tx.Body.Outputs,
			wire.TxOutput{Commitment: nextCommitment()})
	}
	tx.Body.Kernels = append(tx.Body.Kernels, wire.TxKernel{
		Features: wire.PlainKernel,
		Fee:      fee,
		Excess:   nextCommitment(),
	})
	tx.Body.Sort()
	return tx
}

func TestPoolAcceptAndFetch(t *testing.T) {
	pool, _ := newTestPool(0)
	tx := syntheticTx(500, 1, 2)
	require.NoError(t, pool.MaybeAcceptTransaction(tx))

	hash := tx.TxHash()
	assert.Equal(t, 1, pool.Count())
	assert.True(t, pool.HaveTransaction(&hash))

	got, err := pool.FetchTransaction(&hash)
	require.NoError(t, err)
	assert.Equal(t, tx, got)
	assert.Equal(t, []*wire.MsgTx{tx}, pool.SelectTransactions(1_000_000))
}

func TestPoolRejectsDuplicate(t *testing.T) {
	pool, _ := newTestPool(0)
	tx := syntheticTx(500, 1, 1)
	require.NoError(t, pool.MaybeAcceptTransaction(tx))

	err := pool.MaybeAcceptTransaction(tx)
	assert.True(t, chaindata.IsRuleErrorCode(err, chaindata.ErrDuplicateTx))
	assert.Equal(t, 1, pool.Count())
}

func TestPoolRejectsConflicts(t *testing.T) {
	pool, _ := newTestPool(0)
	tx := syntheticTx(500, 1, 1)
	require.NoError(t, pool.MaybeAcceptTransaction(tx))

	t.Run("same input", func(t *testing.T) {
		conflict := syntheticTx(900, 0, 1)
		conflict.Body.Inputs = append(conflict.Body.Inputs,
			wire.TxInput{Commitment: tx.Body.Inputs[0].Commitment})
		err := pool.MaybeAcceptTransaction(conflict)
		assert.True(t, chaindata.IsRuleErrorCode(err, chaindata.ErrDoubleSpend))
	})

	t.Run("same kernel excess", func(t *testing.T) {
		conflict := syntheticTx(900, 1, 1)
		conflict.Body.Kernels[0].Excess = tx.Body.Kernels[0].Excess
		err := pool.MaybeAcceptTransaction(conflict)
		assert.True(t, chaindata.IsRuleErrorCode(err, chaindata.ErrDuplicateKernel))
	})

	assert.Equal(t, 1, pool.Count())
}

func TestPoolPropagatesChainRejection(t *testing.T) {
	pool, chain := newTestPool(0)
	chain.validateErr = chaindata.NewRuleError(chaindata.ErrUnknownOutput,
		"no such output")

	err := pool.MaybeAcceptTransaction(syntheticTx(500, 1, 1))
	assert.True(t, chaindata.IsRuleErrorCode(err, chaindata.ErrUnknownOutput))
	assert.Equal(t, 0, pool.Count())
}

func TestPoolEvictsLowestFeeRate(t *testing.T) {
	// Each synthetic 1-in/1-out transaction weighs 1+21+3 = 25 units,
	// so the pool holds two entries at most.
	pool, _ := newTestPool(50)

	cheap := syntheticTx(100, 1, 1)
	mid := syntheticTx(500, 1, 1)
	require.NoError(t, pool.MaybeAcceptTransaction(cheap))
	require.NoError(t, pool.MaybeAcceptTransaction(mid))

	// A better paying arrival displaces the cheapest entry.
	rich := syntheticTx(2_000, 1, 1)
	require.NoError(t, pool.MaybeAcceptTransaction(rich))
	assert.Equal(t, 2, pool.Count())
	cheapHash := cheap.TxHash()
	assert.False(t, pool.HaveTransaction(&cheapHash))

	// An arrival paying no more than the would-be victim is refused and
	// the pool keeps what it has.
	stingy := syntheticTx(200, 1, 1)
	err := pool.MaybeAcceptTransaction(stingy)
	assert.True(t, chaindata.IsRuleErrorCode(err, chaindata.ErrInsufficientFee))
	assert.Equal(t, 2, pool.Count())
	midHash := mid.TxHash()
	richHash := rich.TxHash()
	assert.True(t, pool.HaveTransaction(&midHash))
	assert.True(t, pool.HaveTransaction(&richHash))
}

func TestPoolSelectionOrder(t *testing.T) {
	pool, _ := newTestPool(0)

	low := syntheticTx(100, 1, 1)
	high := syntheticTx(900, 1, 1)
	tieFirst := syntheticTx(500, 1, 1)
	tieSecond := syntheticTx(500, 1, 1)
	for _, tx := range []*wire.MsgTx{low, tieFirst, high, tieSecond} {
		require.NoError(t, pool.MaybeAcceptTransaction(tx))
	}

	// Descending fee rate; equal rates fall back to arrival order.
	got := pool.SelectTransactions(1_000_000)
	assert.Equal(t, []*wire.MsgTx{high, tieFirst, tieSecond, low}, got)

	// The weight ceiling cuts selection short.  Three entries of 25
	// units fit under 80.
	got = pool.SelectTransactions(80)
	assert.Equal(t, []*wire.MsgTx{high, tieFirst, tieSecond}, got)
}

func TestPoolPruneConfirmed(t *testing.T) {
	pool, _ := newTestPool(0)

	confirmed := syntheticTx(500, 1, 1)
	conflicted := syntheticTx(300, 1, 1)
	unrelated := syntheticTx(400, 1, 1)
	for _, tx := range []*wire.MsgTx{confirmed, conflicted, unrelated} {
		require.NoError(t, pool.MaybeAcceptTransaction(tx))
	}

	// The block carries the first transaction's kernel and spends the
	// second one's input through some other aggregate.
	block := wire.NewMsgBlock(&wire.BlockHeader{Version: 1, Height: 5})
	block.Body.Kernels = append(block.Body.Kernels, confirmed.Body.Kernels[0])
	block.Body.Inputs = append(block.Body.Inputs, conflicted.Body.Inputs[0])

	pool.PruneConfirmed(block)

	assert.Equal(t, 1, pool.Count())
	unrelatedHash := unrelated.TxHash()
	assert.True(t, pool.HaveTransaction(&unrelatedHash))
}
