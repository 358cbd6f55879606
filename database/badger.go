// Copyright (c) 2023 The mimbled developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package database

import (
	"bytes"

	badger "github.com/dgraph-io/badger"
	"github.com/pkg/errors"

	"gitlab.com/mimblenet/mimbled/types/chainhash"
	"gitlab.com/mimblenet/mimbled/types/wire"
)

// blockKeyPrefix namespaces block records so the database can be shared
// with other stores.
const blockKeyPrefix = 0x42

// BadgerStore is a BlockStore over a badger database.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore returns a block store over db.  The caller owns the
// database handle and its lifecycle.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

func blockKey(hash *chainhash.Hash) []byte {
	key := make([]byte, 1+chainhash.HashSize)
	key[0] = blockKeyPrefix
	copy(key[1:], hash[:])
	return key
}

// PutBlock implements BlockStore.
func (s *BadgerStore) PutBlock(block *wire.MsgBlock) error {
	var buf bytes.Buffer
	if err := block.Serialize(&buf); err != nil {
		return err
	}
	hash := block.BlockHash()
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(blockKey(&hash), buf.Bytes())
	})
	return errors.Wrap(err, "put block")
}

// GetBlock implements BlockStore.
func (s *BadgerStore) GetBlock(hash *chainhash.Hash) (*wire.MsgBlock, error) {
	var block wire.MsgBlock
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(blockKey(hash))
		if err == badger.ErrKeyNotFound {
			return ErrBlockNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return block.Deserialize(bytes.NewReader(val))
		})
	})
	if err != nil {
		return nil, err
	}
	return &block, nil
}

// GetHeader implements BlockStore.
func (s *BadgerStore) GetHeader(hash *chainhash.Hash) (*wire.BlockHeader, error) {
	block, err := s.GetBlock(hash)
	if err != nil {
		return nil, err
	}
	return &block.Header, nil
}

// HasBlock implements BlockStore.
func (s *BadgerStore) HasBlock(hash *chainhash.Hash) (bool, error) {
	var found bool
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(blockKey(hash))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	return found, err
}
