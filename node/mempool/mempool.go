// Copyright (c) 2023 The mimbled developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package mempool provides a policy-enforced pool of unconfirmed
// transactions awaiting inclusion in a block.
package mempool

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"gitlab.com/mimblenet/mimbled/node/chaindata"
	"gitlab.com/mimblenet/mimbled/pedersen"
	"gitlab.com/mimblenet/mimbled/types/chaincfg"
	"gitlab.com/mimblenet/mimbled/types/chainhash"
	"gitlab.com/mimblenet/mimbled/types/wire"
)

// feeRateScale keeps fee-per-weight comparisons in integer arithmetic.
const feeRateScale = 1000

// chainBackend is the view of the chain the pool validates candidate
// transactions against.  *blockchain.BlockChain satisfies it.
type chainBackend interface {
	ValidateTransaction(tx *wire.MsgTx) error
}

// Config is a descriptor containing the memory pool configuration.
type Config struct {
	// Params identifies the network the pool serves.
	Params *chaincfg.Params

	// Chain resolves candidate inputs and enforces consensus rules.
	Chain chainBackend

	// MaxPoolWeight is the total body weight the pool may hold.  When
	// an arrival would push past it, the lowest paying entries are
	// evicted first.
	MaxPoolWeight uint64
}

// poolTx is a transaction within the pool along with the metadata the
// admission and selection policies operate on.
type poolTx struct {
	tx       *wire.MsgTx
	hash     chainhash.Hash
	weight   uint64
	fee      uint64
	sequence uint64
	added    time.Time
}

// feeRate returns the scaled fee per weight unit.
func (p *poolTx) feeRate() uint64 {
	return p.fee * feeRateScale / p.weight
}

// TxPool is used as a source of transactions that need to be mined into
// blocks.  It is safe for concurrent access.
type TxPool struct {
	mtx sync.RWMutex
	cfg Config

	pool        map[chainhash.Hash]*poolTx
	spends      map[pedersen.Commitment]*poolTx
	kernels     map[pedersen.Commitment]*poolTx
	totalWeight uint64
	sequence    uint64
}

// New returns a new memory pool for validating and storing standalone
// transactions until they are mined into a block.
func New(cfg *Config) *TxPool {
	return &TxPool{
		cfg:     *cfg,
		pool:    make(map[chainhash.Hash]*poolTx),
		spends:  make(map[pedersen.Commitment]*poolTx),
		kernels: make(map[pedersen.Commitment]*poolTx),
	}
}

// Count returns the number of transactions in the pool.
func (tp *TxPool) Count() int {
	tp.mtx.RLock()
	defer tp.mtx.RUnlock()
	return len(tp.pool)
}

// HaveTransaction reports whether the passed transaction hash exists in
// the pool.
func (tp *TxPool) HaveTransaction(hash *chainhash.Hash) bool {
	tp.mtx.RLock()
	defer tp.mtx.RUnlock()
	_, exists := tp.pool[*hash]
	return exists
}

// FetchTransaction returns the requested transaction from the pool.
func (tp *TxPool) FetchTransaction(hash *chainhash.Hash) (*wire.MsgTx, error) {
	tp.mtx.RLock()
	defer tp.mtx.RUnlock()
	if entry, exists := tp.pool[*hash]; exists {
		return entry.tx, nil
	}
	return nil, fmt.Errorf("transaction %v is not in the pool", hash)
}

// TxHashes returns the hashes of all transactions in the pool.
func (tp *TxPool) TxHashes() []chainhash.Hash {
	tp.mtx.RLock()
	defer tp.mtx.RUnlock()
	hashes := make([]chainhash.Hash, 0, len(tp.pool))
	for hash := range tp.pool {
		hashes = append(hashes, hash)
	}
	return hashes
}

// MaybeAcceptTransaction validates the passed transaction against the
// chain state and the pool policy and adds it on success.  Conflicts
// with transactions already pooled, either spending the same output or
// carrying the same kernel excess, are rejected.
func (tp *TxPool) MaybeAcceptTransaction(tx *wire.MsgTx) error {
	hash := tx.TxHash()

	if err := tp.cfg.Chain.ValidateTransaction(tx); err != nil {
		return err
	}

	tp.mtx.Lock()
	defer tp.mtx.Unlock()

	if _, exists := tp.pool[hash]; exists {
		str := fmt.Sprintf("already have transaction %v", hash)
		return chaindata.NewRuleError(chaindata.ErrDuplicateTx, str)
	}
	for i := range tx.Body.Inputs {
		if spender, ok := tp.spends[tx.Body.Inputs[i].Commitment]; ok {
			str := fmt.Sprintf("output %v already spent by pooled "+
				"transaction %v", tx.Body.Inputs[i].Commitment, spender.hash)
			return chaindata.NewRuleError(chaindata.ErrDoubleSpend, str)
		}
	}
	for i := range tx.Body.Kernels {
		if holder, ok := tp.kernels[tx.Body.Kernels[i].Excess]; ok {
			str := fmt.Sprintf("kernel %v already carried by pooled "+
				"transaction %v", tx.Body.Kernels[i].Excess, holder.hash)
			return chaindata.NewRuleError(chaindata.ErrDuplicateKernel, str)
		}
	}

	entry := &poolTx{
		tx:       tx,
		hash:     hash,
		weight:   tp.cfg.Params.TxWeight(&tx.Body),
		fee:      tx.Body.TotalFee(),
		sequence: tp.sequence,
		added:    time.Now(),
	}
	tp.sequence++

	if err := tp.makeRoom(entry); err != nil {
		return err
	}

	tp.pool[hash] = entry
	for i := range tx.Body.Inputs {
		tp.spends[tx.Body.Inputs[i].Commitment] = entry
	}
	for i := range tx.Body.Kernels {
		tp.kernels[tx.Body.Kernels[i].Excess] = entry
	}
	tp.totalWeight += entry.weight

	log.Debug().Str("hash", hash.String()).
		Uint64("fee", entry.fee).
		Uint64("weight", entry.weight).
		Int("poolSize", len(tp.pool)).
		Msg("accepted transaction")
	return nil
}

// makeRoom evicts the lowest paying entries until the candidate fits
// under the pool weight ceiling.  The candidate is refused when it pays
// no better than what it would displace.  Call with the pool lock held.
func (tp *TxPool) makeRoom(candidate *poolTx) error {
	if tp.cfg.MaxPoolWeight == 0 ||
		tp.totalWeight+candidate.weight <= tp.cfg.MaxPoolWeight {
		return nil
	}

	victims := tp.sortedEntries(func(a, b *poolTx) bool {
		if a.feeRate() != b.feeRate() {
			return a.feeRate() < b.feeRate()
		}
		return a.sequence > b.sequence
	})

	freed := uint64(0)
	needed := tp.totalWeight + candidate.weight - tp.cfg.MaxPoolWeight
	var evict []*poolTx
	for _, victim := range victims {
		if freed >= needed {
			break
		}
		if victim.feeRate() >= candidate.feeRate() {
			str := fmt.Sprintf("pool is full and transaction %v pays no "+
				"more than the entries it would displace", candidate.hash)
			return chaindata.NewRuleError(chaindata.ErrInsufficientFee, str)
		}
		evict = append(evict, victim)
		freed += victim.weight
	}
	if freed < needed {
		str := fmt.Sprintf("transaction %v does not fit the pool", candidate.hash)
		return chaindata.NewRuleError(chaindata.ErrInsufficientFee, str)
	}
	for _, victim := range evict {
		tp.removeLocked(victim)
		log.Debug().Str("hash", victim.hash.String()).
			Msg("evicted transaction for a better paying arrival")
	}
	return nil
}

// sortedEntries returns all pool entries ordered by less.  Call with
// the pool lock held.
func (tp *TxPool) sortedEntries(less func(a, b *poolTx) bool) []*poolTx {
	entries := make([]*poolTx, 0, len(tp.pool))
	for _, entry := range tp.pool {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		return less(entries[i], entries[j])
	})
	return entries
}

// removeLocked deletes an entry and its index records.  Call with the
// pool lock held.
func (tp *TxPool) removeLocked(entry *poolTx) {
	delete(tp.pool, entry.hash)
	for i := range entry.tx.Body.Inputs {
		delete(tp.spends, entry.tx.Body.Inputs[i].Commitment)
	}
	for i := range entry.tx.Body.Kernels {
		delete(tp.kernels, entry.tx.Body.Kernels[i].Excess)
	}
	tp.totalWeight -= entry.weight
}

// RemoveTransaction removes the passed transaction from the pool if it
// is present.
func (tp *TxPool) RemoveTransaction(hash *chainhash.Hash) {
	tp.mtx.Lock()
	defer tp.mtx.Unlock()
	if entry, exists := tp.pool[*hash]; exists {
		tp.removeLocked(entry)
	}
}

// PruneConfirmed drops every pooled transaction the connected block
// confirmed or conflicted with: entries whose kernel excess appears in
// the block and entries spending an output the block spent.
func (tp *TxPool) PruneConfirmed(block *wire.MsgBlock) {
	tp.mtx.Lock()
	defer tp.mtx.Unlock()

	removed := 0
	for i := range block.Body.Kernels {
		if entry, ok := tp.kernels[block.Body.Kernels[i].Excess]; ok {
			tp.removeLocked(entry)
			removed++
		}
	}
	for i := range block.Body.Inputs {
		if entry, ok := tp.spends[block.Body.Inputs[i].Commitment]; ok {
			tp.removeLocked(entry)
			removed++
		}
	}
	if removed > 0 {
		log.Debug().Int("removed", removed).
			Str("block", block.BlockHash().String()).
			Msg("pruned confirmed transactions")
	}
}

// SelectTransactions returns pooled transactions for inclusion in a
// block, greedily by descending fee rate with earlier arrivals winning
// ties, until adding another would exceed maxWeight.  Admission already
// guarantees pooled transactions are mutually conflict free.
func (tp *TxPool) SelectTransactions(maxWeight uint64) []*wire.MsgTx {
	tp.mtx.RLock()
	defer tp.mtx.RUnlock()

	ordered := tp.sortedEntries(func(a, b *poolTx) bool {
		if a.feeRate() != b.feeRate() {
			return a.feeRate() > b.feeRate()
		}
		return a.sequence < b.sequence
	})

	var selected []*wire.MsgTx
	weight := uint64(0)
	for _, entry := range ordered {
		if weight+entry.weight > maxWeight {
			continue
		}
		selected = append(selected, entry.tx)
		weight += entry.weight
	}
	return selected
}
