// Copyright (c) 2023 The mimbled developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mmr

import (
	"fmt"
	"testing"

	badger "github.com/dgraph-io/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPMMR(t *testing.T) *PMMR {
	t.Helper()
	p, err := New(NewMemoryBackend())
	require.NoError(t, err)
	return p
}

func pushLeaves(t *testing.T, p *PMMR, from, to int) {
	t.Helper()
	for i := from; i < to; i++ {
		_, err := p.Push([]byte(fmt.Sprintf("leaf-%03d", i)))
		require.NoError(t, err)
	}
}

func TestPushSizes(t *testing.T) {
	// Total positions after each leaf append, interior nodes included.
	wantSizes := []uint64{1, 3, 4, 7, 8, 10, 11, 15, 16, 18, 19}

	p := newTestPMMR(t)
	for i, want := range wantSizes {
		pos, err := p.Push([]byte{byte(i)})
		require.NoError(t, err)
		assert.Equal(t, want, p.Size(), "after leaf %d", i)
		assert.True(t, IsLeaf(pos))
		assert.True(t, IsValidSize(p.Size()))
	}
	assert.EqualValues(t, len(wantSizes), p.LeafCount())
}

func TestPeakPositions(t *testing.T) {
	tests := []struct {
		size  uint64
		peaks []uint64
	}{
		{size: 0, peaks: nil},
		{size: 1, peaks: []uint64{0}},
		{size: 3, peaks: []uint64{2}},
		{size: 4, peaks: []uint64{2, 3}},
		{size: 7, peaks: []uint64{6}},
		{size: 11, peaks: []uint64{6, 9, 10}},
		{size: 19, peaks: []uint64{14, 17, 18}},
	}
	for _, test := range tests {
		assert.Equal(t, test.peaks, PeakPositions(test.size),
			"size %d", test.size)
	}
}

func TestIsValidSize(t *testing.T) {
	valid := map[uint64]bool{
		0: true, 1: true, 2: false, 3: true, 4: true, 5: false,
		6: false, 7: true, 8: true, 9: false, 10: true, 11: true,
		12: false, 15: true, 16: true, 18: true, 19: true,
	}
	for size, want := range valid {
		assert.Equal(t, want, IsValidSize(size), "size %d", size)
	}
}

func TestRootDeterministic(t *testing.T) {
	a := newTestPMMR(t)
	b := newTestPMMR(t)
	pushLeaves(t, a, 0, 17)
	pushLeaves(t, b, 0, 17)

	rootA, err := a.Root()
	require.NoError(t, err)
	rootB, err := b.Root()
	require.NoError(t, err)
	assert.Equal(t, rootA, rootB)

	// One extra leaf must change the root.
	pushLeaves(t, b, 17, 18)
	rootB, err = b.Root()
	require.NoError(t, err)
	assert.NotEqual(t, rootA, rootB)
}

func TestRootDependsOnLeafOrder(t *testing.T) {
	a := newTestPMMR(t)
	_, err := a.Push([]byte("x"))
	require.NoError(t, err)
	_, err = a.Push([]byte("y"))
	require.NoError(t, err)

	b := newTestPMMR(t)
	_, err = b.Push([]byte("y"))
	require.NoError(t, err)
	_, err = b.Push([]byte("x"))
	require.NoError(t, err)

	rootA, err := a.Root()
	require.NoError(t, err)
	rootB, err := b.Root()
	require.NoError(t, err)
	assert.NotEqual(t, rootA, rootB)
}

func TestPrunePreservesRoot(t *testing.T) {
	p := newTestPMMR(t)
	pushLeaves(t, p, 0, 9)

	before, err := p.Root()
	require.NoError(t, err)

	require.NoError(t, p.Prune(0))
	require.NoError(t, p.Prune(4))

	after, err := p.Root()
	require.NoError(t, err)
	assert.Equal(t, before, after)

	assert.True(t, p.IsPrunedLeaf(0))
	assert.False(t, p.Unpruned(0))
	assert.True(t, p.Unpruned(1))
	assert.EqualValues(t, 7, p.LeafCount())
}

func TestPruneErrors(t *testing.T) {
	p := newTestPMMR(t)
	pushLeaves(t, p, 0, 3)

	// Position 2 is the parent of leaves 0 and 1.
	assert.ErrorIs(t, p.Prune(2), ErrNotLeaf)
	assert.ErrorIs(t, p.Prune(100), ErrPositionOutOfRange)

	require.NoError(t, p.Prune(0))
	assert.ErrorIs(t, p.Prune(0), ErrPruned)
}

func TestSnapshotRewind(t *testing.T) {
	p := newTestPMMR(t)
	pushLeaves(t, p, 0, 6)
	require.NoError(t, p.Prune(1))

	snap := p.Snapshot()
	wantRoot, err := p.Root()
	require.NoError(t, err)

	pushLeaves(t, p, 6, 20)
	require.NoError(t, p.Prune(0))
	require.NoError(t, p.Prune(3))

	require.NoError(t, p.Rewind(snap))
	assert.Equal(t, snap.Size, p.Size())

	gotRoot, err := p.Root()
	require.NoError(t, err)
	assert.Equal(t, wantRoot, gotRoot)

	// Prunes performed after the snapshot are undone, ones before it
	// are kept.
	assert.True(t, p.Unpruned(0))
	assert.False(t, p.Unpruned(1))
	assert.True(t, p.Unpruned(3))
}

func TestRewindRejectsInvalidTargets(t *testing.T) {
	p := newTestPMMR(t)
	pushLeaves(t, p, 0, 4)

	snap := p.Snapshot()
	snap.Size = 2 // two leaves without their parent
	assert.ErrorIs(t, p.Rewind(snap), ErrInvalidSize)

	snap.Size = p.Size() + 7
	assert.ErrorIs(t, p.Rewind(snap), ErrInvalidSize)
}

func TestBadgerBackendPersistence(t *testing.T) {
	dir := t.TempDir()
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	db, err := badger.Open(opts)
	require.NoError(t, err)

	backend, err := NewBadgerBackend(db, 0x10)
	require.NoError(t, err)
	p, err := New(backend)
	require.NoError(t, err)
	pushLeaves(t, p, 0, 8)
	wantRoot, err := p.Root()
	require.NoError(t, err)
	wantSize := p.Size()

	require.NoError(t, db.Close())

	db, err = badger.Open(opts)
	require.NoError(t, err)
	defer db.Close()

	backend, err = NewBadgerBackend(db, 0x10)
	require.NoError(t, err)
	p, err = New(backend)
	require.NoError(t, err)
	assert.Equal(t, wantSize, p.Size())

	gotRoot, err := p.Root()
	require.NoError(t, err)
	assert.Equal(t, wantRoot, gotRoot)

	// A second namespace on the same database is independent.
	other, err := NewBadgerBackend(db, 0x20)
	require.NoError(t, err)
	size, err := other.Size()
	require.NoError(t, err)
	assert.Zero(t, size)
}
