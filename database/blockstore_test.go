// Copyright (c) 2023 The mimbled developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package database

import (
	"testing"
	"time"

	badger "github.com/dgraph-io/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/mimblenet/mimbled/types/chainhash"
	"gitlab.com/mimblenet/mimbled/types/pow"
	"gitlab.com/mimblenet/mimbled/types/wire"
)

func testBlock(t *testing.T, height uint64) *wire.MsgBlock {
	t.Helper()
	return &wire.MsgBlock{
		Header: wire.BlockHeader{
			Version:   1,
			Height:    height,
			PrevBlock: chainhash.HashH([]byte{byte(height)}),
			Timestamp: time.Unix(1674_000_000+int64(height)*60, 0),
			Target:    1000,
			PoW: pow.Proof{
				EdgeBits: 12,
				Nonces:   make([]uint64, pow.ProofNonces),
			},
		},
	}
}

func runBlockStoreTest(t *testing.T, store BlockStore) {
	block := testBlock(t, 7)
	hash := block.BlockHash()

	found, err := store.HasBlock(&hash)
	require.NoError(t, err)
	assert.False(t, found)
	_, err = store.GetBlock(&hash)
	assert.ErrorIs(t, err, ErrBlockNotFound)

	require.NoError(t, store.PutBlock(block))
	// Storing again must be harmless.
	require.NoError(t, store.PutBlock(block))

	found, err = store.HasBlock(&hash)
	require.NoError(t, err)
	assert.True(t, found)

	got, err := store.GetBlock(&hash)
	require.NoError(t, err)
	assert.Equal(t, hash, got.BlockHash())

	header, err := store.GetHeader(&hash)
	require.NoError(t, err)
	assert.Equal(t, block.Header.Height, header.Height)
}

func TestMemoryStore(t *testing.T) {
	runBlockStoreTest(t, NewMemoryStore())
}

func TestBadgerStore(t *testing.T) {
	opts := badger.DefaultOptions(t.TempDir())
	opts.Logger = nil
	db, err := badger.Open(opts)
	require.NoError(t, err)
	defer db.Close()

	runBlockStoreTest(t, NewBadgerStore(db))
}
