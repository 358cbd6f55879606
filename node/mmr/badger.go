// Copyright (c) 2023 The mimbled developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mmr

import (
	"encoding/binary"

	badger "github.com/dgraph-io/badger"
	"github.com/pkg/errors"

	"gitlab.com/mimblenet/mimbled/types/chainhash"
)

// Key layout: a one byte namespace prefix, then the position.  The
// size record lives under its own prefix so three accumulators can
// share one database.
const (
	badgerHashPrefix = 0x01
	badgerSizePrefix = 0x02
)

// BadgerBackend persists node hashes in a badger database.  Several
// backends with distinct namespaces may share one database handle.
type BadgerBackend struct {
	db        *badger.DB
	namespace byte
	size      uint64
}

// NewBadgerBackend returns a backend over db scoped to namespace.  The
// stored size is loaded eagerly so later calls never miss.
func NewBadgerBackend(db *badger.DB, namespace byte) (*BadgerBackend, error) {
	b := &BadgerBackend{db: db, namespace: namespace}
	err := db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(b.sizeKey())
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) != 8 {
				return errors.New("corrupt mmr size record")
			}
			b.size = binary.LittleEndian.Uint64(val)
			return nil
		})
	})
	if err != nil {
		return nil, errors.Wrap(err, "load mmr size")
	}
	return b, nil
}

func (b *BadgerBackend) hashKey(pos uint64) []byte {
	key := make([]byte, 10)
	key[0] = b.namespace
	key[1] = badgerHashPrefix
	binary.LittleEndian.PutUint64(key[2:], pos)
	return key
}

func (b *BadgerBackend) sizeKey() []byte {
	return []byte{b.namespace, badgerSizePrefix}
}

func (b *BadgerBackend) writeSize(txn *badger.Txn, size uint64) error {
	var val [8]byte
	binary.LittleEndian.PutUint64(val[:], size)
	return txn.Set(b.sizeKey(), val[:])
}

// Append implements Backend.
func (b *BadgerBackend) Append(hashes []chainhash.Hash) error {
	newSize := b.size + uint64(len(hashes))
	err := b.db.Update(func(txn *badger.Txn) error {
		for i := range hashes {
			pos := b.size + uint64(i)
			if err := txn.Set(b.hashKey(pos), hashes[i][:]); err != nil {
				return err
			}
		}
		return b.writeSize(txn, newSize)
	})
	if err != nil {
		return errors.Wrap(err, "append mmr hashes")
	}
	b.size = newSize
	return nil
}

// GetHash implements Backend.
func (b *BadgerBackend) GetHash(pos uint64) (chainhash.Hash, error) {
	if pos >= b.size {
		return chainhash.Hash{}, ErrHashNotFound
	}
	var hash chainhash.Hash
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(b.hashKey(pos))
		if err == badger.ErrKeyNotFound {
			return ErrHashNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return hash.SetBytes(val)
		})
	})
	if err != nil {
		return chainhash.Hash{}, err
	}
	return hash, nil
}

// Truncate implements Backend.
func (b *BadgerBackend) Truncate(size uint64) error {
	if size > b.size {
		return ErrInvalidSize
	}
	err := b.db.Update(func(txn *badger.Txn) error {
		for pos := size; pos < b.size; pos++ {
			if err := txn.Delete(b.hashKey(pos)); err != nil {
				return err
			}
		}
		return b.writeSize(txn, size)
	})
	if err != nil {
		return errors.Wrap(err, "truncate mmr")
	}
	b.size = size
	return nil
}

// Size implements Backend.
func (b *BadgerBackend) Size() (uint64, error) {
	return b.size, nil
}
