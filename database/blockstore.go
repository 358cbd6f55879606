// Copyright (c) 2023 The mimbled developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package database provides the content-addressed block store the
// chain persists into.  Blocks are keyed by header hash, so linkage is
// a lookup rather than a live reference and old blocks can be dropped
// independently of header-chain logic.
package database

import (
	"github.com/pkg/errors"

	"gitlab.com/mimblenet/mimbled/types/chainhash"
	"gitlab.com/mimblenet/mimbled/types/wire"
)

// ErrBlockNotFound is returned when the requested block hash has no
// stored block.
var ErrBlockNotFound = errors.New("block not found")

// BlockStore persists blocks by hash.  Implementations must be safe
// for concurrent use.
type BlockStore interface {
	// PutBlock stores a block under its header hash.  Storing the same
	// block twice is a no-op.
	PutBlock(block *wire.MsgBlock) error

	// GetBlock returns the block with the given hash, or
	// ErrBlockNotFound.
	GetBlock(hash *chainhash.Hash) (*wire.MsgBlock, error)

	// GetHeader returns only the header of the block with the given
	// hash, or ErrBlockNotFound.
	GetHeader(hash *chainhash.Hash) (*wire.BlockHeader, error)

	// HasBlock reports whether a block with the given hash is stored.
	HasBlock(hash *chainhash.Hash) (bool, error)
}
