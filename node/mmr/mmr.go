// Copyright (c) 2023 The mimbled developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package mmr implements a prunable Merkle Mountain Range, the
// append-only authenticated index the chain keeps over outputs, range
// proofs and kernels.  Every append yields a new root; spent leaves can
// be pruned from proof material while their position stays reserved, so
// the root remains reproducible; a recorded size plus leaf bitmap is
// enough to rewind to any earlier state.
package mmr

import (
	"encoding/binary"
	"math/bits"

	"github.com/bits-and-blooms/bitset"
	"github.com/pkg/errors"

	"gitlab.com/mimblenet/mimbled/types/chainhash"
)

var (
	// ErrPositionOutOfRange is returned for positions at or beyond the
	// current size.
	ErrPositionOutOfRange = errors.New("mmr position out of range")

	// ErrNotLeaf is returned when a leaf-only operation targets an
	// interior node.
	ErrNotLeaf = errors.New("mmr position is not a leaf")

	// ErrPruned is returned when retrieving a leaf that has been
	// pruned.
	ErrPruned = errors.New("mmr leaf is pruned")

	// ErrInvalidSize is returned when a rewind target is not a valid
	// mountain range size or lies beyond the current size.
	ErrInvalidSize = errors.New("invalid mmr size")
)

// hashWithIndex computes the node hash at a position.  Binding the
// position into the hash keeps identical subtrees at different
// positions from colliding.
func hashWithIndex(pos uint64, data ...[]byte) chainhash.Hash {
	buf := make([]byte, 8, 8+2*chainhash.HashSize)
	binary.LittleEndian.PutUint64(buf, pos)
	for _, d := range data {
		buf = append(buf, d...)
	}
	return chainhash.HashH(buf)
}

// peakMapHeight returns the bitmap of peaks preceding pos and the
// height of the node at pos.  The peak bitmap has its least significant
// bit at the smallest preceding peak.
func peakMapHeight(pos uint64) (uint64, uint64) {
	if pos == 0 {
		return 0, 0
	}
	peakSize := ^uint64(0) >> bits.LeadingZeros64(pos)
	var peakMap uint64
	for peakSize != 0 {
		peakMap <<= 1
		if pos >= peakSize {
			pos -= peakSize
			peakMap |= 1
		}
		peakSize >>= 1
	}
	return peakMap, pos
}

// IsLeaf reports whether the node at pos sits at height zero.
func IsLeaf(pos uint64) bool {
	_, height := peakMapHeight(pos)
	return height == 0
}

// PeakPositions returns the positions of the mountain peaks of a range
// of the given size, left to right.
func PeakPositions(size uint64) []uint64 {
	if size == 0 {
		return nil
	}
	var (
		peaks    []uint64
		sumPrev  uint64
		peakSize = ^uint64(0) >> bits.LeadingZeros64(size)
	)
	for peakSize != 0 {
		if size >= sumPrev+peakSize {
			sumPrev += peakSize
			peaks = append(peaks, sumPrev-1)
		}
		peakSize >>= 1
	}
	return peaks
}

// IsValidSize reports whether size describes a complete mountain range.
// A valid size decomposes into strictly shrinking mountains of size
// 2^k - 1; anything else would leave a partially built mountain, which
// Push never does.
func IsValidSize(size uint64) bool {
	if size == ^uint64(0) {
		// A single full mountain of height 63.
		return true
	}
	prev := uint64(0)
	for size > 0 {
		k := bits.Len64(size+1) - 1
		peakSize := uint64(1)<<k - 1
		if prev != 0 && peakSize >= prev {
			return false
		}
		prev = peakSize
		size -= peakSize
	}
	return true
}

// Snapshot captures the state needed to restore a PMMR exactly: the
// range size and the live leaf bitmap at that point.
type Snapshot struct {
	Size    uint64
	Leafset *bitset.BitSet
}

// PMMR is a prunable Merkle Mountain Range over a hash backend.  It is
// not safe for concurrent use; the chain serializes mutation behind its
// own lock.
type PMMR struct {
	backend Backend
	size    uint64
	leafset *bitset.BitSet
}

// New returns a PMMR over the backend's current contents with every
// present leaf live.  Use Restore to attach with a recorded leafset.
func New(backend Backend) (*PMMR, error) {
	size, err := backend.Size()
	if err != nil {
		return nil, errors.Wrap(err, "mmr backend size")
	}
	p := &PMMR{
		backend: backend,
		size:    size,
		leafset: bitset.New(uint(size)),
	}
	for pos := uint64(0); pos < size; pos++ {
		if IsLeaf(pos) {
			p.leafset.Set(uint(pos))
		}
	}
	return p, nil
}

// Restore returns a PMMR over the backend positioned at the snapshot.
func Restore(backend Backend, snap Snapshot) (*PMMR, error) {
	size, err := backend.Size()
	if err != nil {
		return nil, errors.Wrap(err, "mmr backend size")
	}
	if snap.Size > size || !IsValidSize(snap.Size) {
		return nil, ErrInvalidSize
	}
	if err := backend.Truncate(snap.Size); err != nil {
		return nil, errors.Wrap(err, "mmr backend truncate")
	}
	return &PMMR{
		backend: backend,
		size:    snap.Size,
		leafset: snap.Leafset.Clone(),
	}, nil
}

// Size returns the total number of positions, pruned ones included.
func (p *PMMR) Size() uint64 {
	return p.size
}

// LeafCount returns the number of live leaves.
func (p *PMMR) LeafCount() uint64 {
	return uint64(p.leafset.Count())
}

// Push appends a leaf and every interior node it completes, returning
// the new leaf's position.
func (p *PMMR) Push(data []byte) (uint64, error) {
	leafPos := p.size
	current := hashWithIndex(leafPos, data)
	hashes := []chainhash.Hash{current}

	peakMap, height := peakMapHeight(leafPos)
	if height != 0 {
		return 0, errors.Errorf("mmr: push at non-leaf position %d", leafPos)
	}

	// Each peak bit set means the new node has a completed left
	// sibling mountain of that size, so a parent is produced.
	pos := leafPos
	peak := uint64(1)
	for peakMap&peak != 0 {
		leftSibling := pos + 1 - 2*peak
		left, err := p.backend.GetHash(leftSibling)
		if err != nil {
			return 0, errors.Wrapf(err, "mmr hash at %d", leftSibling)
		}
		peak *= 2
		pos++
		current = hashWithIndex(pos, left[:], current[:])
		hashes = append(hashes, current)
	}

	if err := p.backend.Append(hashes); err != nil {
		return 0, errors.Wrap(err, "mmr backend append")
	}
	p.size = pos + 1
	p.leafset.Set(uint(leafPos))
	return leafPos, nil
}

// Root computes the range root by bagging the peaks right to left,
// hashing each intermediate result at the index one past the end.
func (p *PMMR) Root() (chainhash.Hash, error) {
	if p.size == 0 {
		return chainhash.ZeroHash, nil
	}
	peaks := PeakPositions(p.size)
	var root chainhash.Hash
	for i := len(peaks) - 1; i >= 0; i-- {
		peak, err := p.backend.GetHash(peaks[i])
		if err != nil {
			return chainhash.Hash{}, errors.Wrapf(err, "mmr peak at %d", peaks[i])
		}
		if i == len(peaks)-1 {
			root = peak
			continue
		}
		root = hashWithIndex(p.size, peak[:], root[:])
	}
	return root, nil
}

// GetHash returns the node hash at pos.  Interior nodes and pruned
// leaves both resolve; pruned leaves keep their hash so roots stay
// reproducible.
func (p *PMMR) GetHash(pos uint64) (chainhash.Hash, error) {
	if pos >= p.size {
		return chainhash.Hash{}, ErrPositionOutOfRange
	}
	return p.backend.GetHash(pos)
}

// IsPrunedLeaf reports whether pos is a leaf that has been pruned.
func (p *PMMR) IsPrunedLeaf(pos uint64) bool {
	return pos < p.size && IsLeaf(pos) && !p.leafset.Test(uint(pos))
}

// Prune marks the leaf at pos as spent.  The position stays reserved
// and its hash remains proof material for ancestors, but the leaf no
// longer counts as live.
func (p *PMMR) Prune(pos uint64) error {
	if pos >= p.size {
		return ErrPositionOutOfRange
	}
	if !IsLeaf(pos) {
		return ErrNotLeaf
	}
	if !p.leafset.Test(uint(pos)) {
		return ErrPruned
	}
	p.leafset.Clear(uint(pos))
	return nil
}

// Unpruned reports whether the leaf at pos is live.
func (p *PMMR) Unpruned(pos uint64) bool {
	return pos < p.size && p.leafset.Test(uint(pos))
}

// Snapshot captures the current size and a copy of the leaf bitmap.
func (p *PMMR) Snapshot() Snapshot {
	return Snapshot{
		Size:    p.size,
		Leafset: p.leafset.Clone(),
	}
}

// Reset discards the entire range, truncating the backend to empty.
func (p *PMMR) Reset() error {
	return p.Rewind(Snapshot{Size: 0, Leafset: bitset.New(0)})
}

// Rewind restores the range to an earlier snapshot, truncating every
// position appended since and replacing the leaf bitmap.
func (p *PMMR) Rewind(snap Snapshot) error {
	if snap.Size > p.size || !IsValidSize(snap.Size) {
		return ErrInvalidSize
	}
	if err := p.backend.Truncate(snap.Size); err != nil {
		return errors.Wrap(err, "mmr backend truncate")
	}
	p.size = snap.Size
	p.leafset = snap.Leafset.Clone()
	return nil
}
