// Copyright (c) 2023 The mimbled developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaincfg

import (
	"time"

	"gitlab.com/mimblenet/mimbled/types/chainhash"
	"gitlab.com/mimblenet/mimbled/types/pow"
	"gitlab.com/mimblenet/mimbled/types/wire"
)

// Genesis blocks carry an empty body: the first reward is minted at
// height one.  Their proof of work is a placeholder and is exempted
// from verification by hash.

func genesisHeader(timestamp int64, edgeBits uint8, scaling uint32) wire.BlockHeader {
	return wire.BlockHeader{
		Version:          1,
		Height:           0,
		PrevBlock:        chainhash.ZeroHash,
		Timestamp:        time.Unix(timestamp, 0),
		OutputRoot:       chainhash.ZeroHash,
		RangeProofRoot:   chainhash.ZeroHash,
		KernelRoot:       chainhash.ZeroHash,
		OutputMMRSize:    0,
		KernelMMRSize:    0,
		Target:           pow.MinimumDifficulty,
		TotalDifficulty:  pow.MinimumDifficulty,
		SecondaryScaling: scaling,
		Nonce:            0,
		PoW: pow.Proof{
			EdgeBits: edgeBits,
			Nonces:   make([]uint64, pow.ProofNonces),
		},
	}
}

var genesisBlock = wire.MsgBlock{
	Header: genesisHeader(1674_000_000, 29, 1856),
}

var genesisHash = genesisBlock.BlockHash()

var testNetGenesisBlock = wire.MsgBlock{
	Header: genesisHeader(1672_000_000, 29, 1856),
}

var testNetGenesisHash = testNetGenesisBlock.BlockHash()

var simNetGenesisBlock = wire.MsgBlock{
	Header: genesisHeader(1670_000_000, 12, 1),
}

var simNetGenesisHash = simNetGenesisBlock.BlockHash()
