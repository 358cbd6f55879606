// Copyright (c) 2023 The mimbled developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package database

import (
	"bytes"
	"sync"

	"gitlab.com/mimblenet/mimbled/types/chainhash"
	"gitlab.com/mimblenet/mimbled/types/wire"
)

// MemoryStore is an in-memory BlockStore.  Blocks are kept in their
// serialized form so callers always receive independent copies.
type MemoryStore struct {
	mu     sync.RWMutex
	blocks map[chainhash.Hash][]byte
}

// NewMemoryStore returns an empty in-memory block store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blocks: make(map[chainhash.Hash][]byte)}
}

// PutBlock implements BlockStore.
func (s *MemoryStore) PutBlock(block *wire.MsgBlock) error {
	var buf bytes.Buffer
	if err := block.Serialize(&buf); err != nil {
		return err
	}
	hash := block.BlockHash()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blocks[hash]; !ok {
		s.blocks[hash] = buf.Bytes()
	}
	return nil
}

// GetBlock implements BlockStore.
func (s *MemoryStore) GetBlock(hash *chainhash.Hash) (*wire.MsgBlock, error) {
	s.mu.RLock()
	raw, ok := s.blocks[*hash]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrBlockNotFound
	}
	var block wire.MsgBlock
	if err := block.Deserialize(bytes.NewReader(raw)); err != nil {
		return nil, err
	}
	return &block, nil
}

// GetHeader implements BlockStore.
func (s *MemoryStore) GetHeader(hash *chainhash.Hash) (*wire.BlockHeader, error) {
	block, err := s.GetBlock(hash)
	if err != nil {
		return nil, err
	}
	return &block.Header, nil
}

// HasBlock implements BlockStore.
func (s *MemoryStore) HasBlock(hash *chainhash.Hash) (bool, error) {
	s.mu.RLock()
	_, ok := s.blocks[*hash]
	s.mu.RUnlock()
	return ok, nil
}
