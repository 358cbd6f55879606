// Copyright (c) 2023 The mimbled developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaincfg

import (
	"errors"
	"time"

	"gitlab.com/mimblenet/mimbled/types/chainhash"
	"gitlab.com/mimblenet/mimbled/types/pow"
	"gitlab.com/mimblenet/mimbled/types/wire"
)

// NetMagic identifies a network instance on the wire.
type NetMagic uint32

const (
	// MainNet represents the main network.
	MainNet NetMagic = 0x6d696d31

	// TestNet represents the public test network.
	TestNet NetMagic = 0x6d696d74

	// SimNet represents the simulation test network used by integration
	// tests.
	SimNet NetMagic = 0x6d696d73
)

// ErrUnsupportedEdgeBits describes a header whose declared graph size is
// neither the secondary size nor a permitted primary size.
var ErrUnsupportedEdgeBits = errors.New("unsupported proof graph size")

// Params defines a network by its consensus parameters.
type Params struct {
	// Name defines a human-readable identifier for the network.
	Name string

	// Net defines the magic bytes used to identify the network.
	Net NetMagic

	// GenesisBlock defines the first block of the chain.
	GenesisBlock *wire.MsgBlock

	// GenesisHash is the starting block hash.
	GenesisHash *chainhash.Hash

	// TargetTimePerBlock is the desired amount of time between blocks.
	TargetTimePerBlock time.Duration

	// DifficultyAdjustWindow is the number of trailing headers the
	// difficulty algorithm averages over.
	DifficultyAdjustWindow int

	// DampFactor softens the observed window timespan toward the
	// expected one before retargeting.
	DampFactor uint64

	// ClampFactor bounds how far the damped timespan may deviate from
	// the expected one in a single retarget.
	ClampFactor uint64

	// MedianTimeBlocks is the number of previous headers whose median
	// timestamp a new header must advance past.
	MedianTimeBlocks int

	// MaxTimeOffset is how far into the future a header timestamp may
	// run ahead of local time.
	MaxTimeOffset time.Duration

	// SecondaryEdgeBits is the single graph size accepted for the
	// commodity-hardware proof variant.
	SecondaryEdgeBits uint8

	// MinPrimaryEdgeBits is the smallest graph size accepted for the
	// trimming-friendly proof variant.
	MinPrimaryEdgeBits uint8

	// InitialSecondaryScaling is the genesis value of the difficulty
	// scale applied to secondary proofs.
	InitialSecondaryScaling uint32

	// SecondaryPoWRatio is the percentage of blocks the scaling
	// adjustment steers toward the secondary variant.
	SecondaryPoWRatio uint64

	// CoinbaseMaturity is the number of blocks a coinbase output must
	// be buried under before it can be spent.
	CoinbaseMaturity uint64

	// BlockReward is the coinbase subsidy in base units.
	BlockReward uint64

	// InputWeight, OutputWeight and KernelWeight are the consensus
	// weight units contributed by each body element.
	InputWeight  uint64
	OutputWeight uint64
	KernelWeight uint64

	// MaxBlockWeight is the block body weight ceiling.
	MaxBlockWeight uint64

	// MinFeeRate is the minimum fee per weight unit a transaction must
	// pay for relay and inclusion.
	MinFeeRate uint64

	// NRDKernelWindow is the relative height window within which a
	// no-recent-duplicate kernel excess must not repeat.
	NRDKernelWindow uint64

	// OrphanExpiry is how long an orphan block is buffered awaiting its
	// parent.
	OrphanExpiry time.Duration
}

// GraphVariant maps a declared graph size to the proof variant the
// network accepts it under.  The secondary size uses the commodity
// friendly construction; primary sizes at or above the floor use the
// trimming friendly one.
func (p *Params) GraphVariant(edgeBits uint8) (pow.GraphVariant, error) {
	switch {
	case edgeBits == p.SecondaryEdgeBits:
		return pow.VariantAR, nil
	case edgeBits >= p.MinPrimaryEdgeBits && edgeBits <= pow.MaxEdgeBits:
		return pow.VariantAT, nil
	}
	return 0, ErrUnsupportedEdgeBits
}

// IsSecondary reports whether the graph size selects the commodity
// friendly variant.
func (p *Params) IsSecondary(edgeBits uint8) bool {
	return edgeBits == p.SecondaryEdgeBits
}

// BodyWeight returns the consensus weight of a body with the given
// element counts.
func (p *Params) BodyWeight(numInputs, numOutputs, numKernels int) uint64 {
	return uint64(numInputs)*p.InputWeight +
		uint64(numOutputs)*p.OutputWeight +
		uint64(numKernels)*p.KernelWeight
}

// TxWeight returns the consensus weight of a transaction body.
func (p *Params) TxWeight(body *wire.TxBody) uint64 {
	return p.BodyWeight(len(body.Inputs), len(body.Outputs), len(body.Kernels))
}

// MainNetParams defines the network parameters for the main network.
var MainNetParams = Params{
	Name:         "mainnet",
	Net:          MainNet,
	GenesisBlock: &genesisBlock,
	GenesisHash:  &genesisHash,

	TargetTimePerBlock:     time.Minute,
	DifficultyAdjustWindow: 60,
	DampFactor:             3,
	ClampFactor:            2,
	MedianTimeBlocks:       11,
	MaxTimeOffset:          12 * time.Minute,

	SecondaryEdgeBits:       29,
	MinPrimaryEdgeBits:      31,
	InitialSecondaryScaling: 1856,
	SecondaryPoWRatio:       45,

	CoinbaseMaturity: 1440,
	BlockReward:      60_000_000_000,

	InputWeight:    1,
	OutputWeight:   21,
	KernelWeight:   3,
	MaxBlockWeight: 40_000,
	MinFeeRate:     500_000,

	NRDKernelWindow: 10_080,
	OrphanExpiry:    10 * time.Minute,
}

// TestNetParams defines the network parameters for the public test
// network.
var TestNetParams = Params{
	Name:         "testnet",
	Net:          TestNet,
	GenesisBlock: &testNetGenesisBlock,
	GenesisHash:  &testNetGenesisHash,

	TargetTimePerBlock:     time.Minute,
	DifficultyAdjustWindow: 60,
	DampFactor:             3,
	ClampFactor:            2,
	MedianTimeBlocks:       11,
	MaxTimeOffset:          12 * time.Minute,

	SecondaryEdgeBits:       29,
	MinPrimaryEdgeBits:      31,
	InitialSecondaryScaling: 1856,
	SecondaryPoWRatio:       45,

	CoinbaseMaturity: 1440,
	BlockReward:      60_000_000_000,

	InputWeight:    1,
	OutputWeight:   21,
	KernelWeight:   3,
	MaxBlockWeight: 40_000,
	MinFeeRate:     500_000,

	NRDKernelWindow: 10_080,
	OrphanExpiry:    10 * time.Minute,
}

// SimNetParams defines the network parameters for the simulation test
// network.  The graph sizes are tiny so tests can solve real cycles,
// and maturity windows are short.
var SimNetParams = Params{
	Name:         "simnet",
	Net:          SimNet,
	GenesisBlock: &simNetGenesisBlock,
	GenesisHash:  &simNetGenesisHash,

	TargetTimePerBlock:     time.Minute,
	DifficultyAdjustWindow: 60,
	DampFactor:             3,
	ClampFactor:            2,
	MedianTimeBlocks:       11,
	MaxTimeOffset:          12 * time.Minute,

	SecondaryEdgeBits:       12,
	MinPrimaryEdgeBits:      13,
	InitialSecondaryScaling: 1,
	SecondaryPoWRatio:       45,

	CoinbaseMaturity: 10,
	BlockReward:      60_000_000_000,

	InputWeight:    1,
	OutputWeight:   21,
	KernelWeight:   3,
	MaxBlockWeight: 40_000,
	MinFeeRate:     0,

	NRDKernelWindow: 20,
	OrphanExpiry:    10 * time.Minute,
}
