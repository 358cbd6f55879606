// Copyright (c) 2023 The mimbled developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mmr

import (
	"github.com/pkg/errors"

	"gitlab.com/mimblenet/mimbled/types/chainhash"
)

// ErrHashNotFound is returned by a backend when a position has no
// stored hash.
var ErrHashNotFound = errors.New("mmr hash not found")

// Backend stores node hashes by position.  Implementations need not be
// safe for concurrent use; the PMMR's owner serializes access.
type Backend interface {
	// Append stores hashes at consecutive positions starting at the
	// current size.
	Append(hashes []chainhash.Hash) error

	// GetHash returns the hash stored at pos, or ErrHashNotFound.
	GetHash(pos uint64) (chainhash.Hash, error)

	// Truncate drops every position at or beyond size.
	Truncate(size uint64) error

	// Size returns the number of stored positions.
	Size() (uint64, error)
}

// MemoryBackend keeps node hashes in a slice.  It serves tests and the
// scratch accumulators the chain builds while evaluating candidate
// blocks.
type MemoryBackend struct {
	hashes []chainhash.Hash
}

// NewMemoryBackend returns an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

// Append implements Backend.
func (b *MemoryBackend) Append(hashes []chainhash.Hash) error {
	b.hashes = append(b.hashes, hashes...)
	return nil
}

// GetHash implements Backend.
func (b *MemoryBackend) GetHash(pos uint64) (chainhash.Hash, error) {
	if pos >= uint64(len(b.hashes)) {
		return chainhash.Hash{}, ErrHashNotFound
	}
	return b.hashes[pos], nil
}

// Truncate implements Backend.
func (b *MemoryBackend) Truncate(size uint64) error {
	if size > uint64(len(b.hashes)) {
		return ErrInvalidSize
	}
	b.hashes = b.hashes[:size]
	return nil
}

// Size implements Backend.
func (b *MemoryBackend) Size() (uint64, error) {
	return uint64(len(b.hashes)), nil
}
