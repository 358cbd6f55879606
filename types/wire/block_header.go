// Copyright (c) 2023 The mimbled developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"io"
	"time"

	"gitlab.com/mimblenet/mimbled/types/chainhash"
	"gitlab.com/mimblenet/mimbled/types/pow"
)

// MaxBlockHeaderPayload is the maximum number of bytes a block header
// can be.  The variable portion is the packed cycle proof, bounded by
// the maximum edge bits.
const MaxBlockHeaderPayload = blockHeaderFixedSize + 1 +
	(pow.ProofNonces*pow.MaxEdgeBits+7)/8

// blockHeaderFixedSize is the serialized size of a header without its
// proof of work solution.
const blockHeaderFixedSize = 2 + 8 + chainhash.HashSize + 8 +
	3*chainhash.HashSize + 8 + 8 + 32 + 8 + 8 + 4 + 8

// BlockHeader describes a block of the chain.  The three roots commit
// to the output, range proof and kernel accumulators after the block is
// applied, and the two sizes record how many accumulator positions
// exist at that point so a prior state can be recovered exactly.
type BlockHeader struct {
	// Version of the block.
	Version uint16

	// Height of this block in the chain, with the genesis block at zero.
	Height uint64

	// Hash of the previous block header in the block chain.
	PrevBlock chainhash.Hash

	// Time the block was created.
	Timestamp time.Time

	// Roots of the output, range proof and kernel accumulators after
	// this block.
	OutputRoot     chainhash.Hash
	RangeProofRoot chainhash.Hash
	KernelRoot     chainhash.Hash

	// Total accumulator sizes after this block.  The range proof
	// accumulator always has the same size as the output one.
	OutputMMRSize uint64
	KernelMMRSize uint64

	// TotalOffset is the sum of kernel offsets of this block and all
	// its ancestors.
	TotalOffset [32]byte

	// Target difficulty the proof of work must meet.
	Target pow.Difficulty

	// TotalDifficulty is the sum of target difficulties from genesis
	// through this block.  Fork choice compares this value.
	TotalDifficulty pow.Difficulty

	// SecondaryScaling is the difficulty scale factor applied to
	// commodity graph solutions.
	SecondaryScaling uint32

	// Nonce used to generate the cycle search seed.
	Nonce uint64

	// PoW is the cuckoo cycle solution.
	PoW pow.Proof
}

// writePrePoW writes every header field that the proof of work search
// commits to.  The solution itself is excluded: the miner varies the
// nonce, derives the seed from these bytes and searches for a cycle.
func (h *BlockHeader) writePrePoW(w io.Writer) error {
	return WriteElements(w,
		h.Version,
		h.Height,
		&h.PrevBlock,
		Int64Time(h.Timestamp),
		&h.OutputRoot,
		&h.RangeProofRoot,
		&h.KernelRoot,
		h.OutputMMRSize,
		h.KernelMMRSize,
		&h.TotalOffset,
		uint64(h.Target),
		uint64(h.TotalDifficulty),
		h.SecondaryScaling,
		h.Nonce,
	)
}

// PrePoWBytes returns the serialized header fields the cycle search
// seed is derived from.
func (h *BlockHeader) PrePoWBytes() []byte {
	buf := bytes.NewBuffer(make([]byte, 0, blockHeaderFixedSize))
	_ = h.writePrePoW(buf)
	return buf.Bytes()
}

// PoWSeed derives the 32 byte seed keying the cycle graph for this
// header.
func (h *BlockHeader) PoWSeed() [32]byte {
	var seed [32]byte
	copy(seed[:], chainhash.HashB(h.PrePoWBytes()))
	return seed
}

// BlockHash computes the block identifier, the hash of the full header
// serialization including the solution.
func (h *BlockHeader) BlockHash() chainhash.Hash {
	buf := bytes.NewBuffer(make([]byte, 0, MaxBlockHeaderPayload))
	_ = h.BtcEncode(buf)
	return chainhash.HashH(buf.Bytes())
}

// BtcEncode encodes h to w.
func (h *BlockHeader) BtcEncode(w io.Writer) error {
	if err := h.writePrePoW(w); err != nil {
		return err
	}
	if err := WriteElement(w, h.PoW.EdgeBits); err != nil {
		return err
	}
	_, err := w.Write(h.PoW.PackNonces())
	return err
}

// BtcDecode decodes h from r.
func (h *BlockHeader) BtcDecode(r io.Reader) error {
	var timestamp Int64Time
	var target, totalDifficulty uint64
	err := ReadElements(r,
		&h.Version,
		&h.Height,
		&h.PrevBlock,
		&timestamp,
		&h.OutputRoot,
		&h.RangeProofRoot,
		&h.KernelRoot,
		&h.OutputMMRSize,
		&h.KernelMMRSize,
		&h.TotalOffset,
		&target,
		&totalDifficulty,
		&h.SecondaryScaling,
		&h.Nonce,
	)
	if err != nil {
		return err
	}
	h.Timestamp = time.Time(timestamp)
	h.Target = pow.Difficulty(target)
	h.TotalDifficulty = pow.Difficulty(totalDifficulty)

	var edgeBits uint8
	if err := ReadElement(r, &edgeBits); err != nil {
		return err
	}
	if edgeBits < pow.MinEdgeBits || edgeBits > pow.MaxEdgeBits {
		str := "proof of work edge bits out of range"
		return messageError("BlockHeader.BtcDecode", str)
	}
	packed := make([]byte, pow.PackedNonceSize(edgeBits, pow.ProofNonces))
	if _, err := io.ReadFull(r, packed); err != nil {
		return err
	}
	nonces, err := pow.UnpackNonces(packed, edgeBits, pow.ProofNonces)
	if err != nil {
		return messageError("BlockHeader.BtcDecode", err.Error())
	}
	h.PoW = pow.Proof{EdgeBits: edgeBits, Nonces: nonces}
	return nil
}

// Serialize encodes the header using the canonical encoding.
func (h *BlockHeader) Serialize(w io.Writer) error {
	return h.BtcEncode(w)
}

// Deserialize decodes a header from its canonical encoding.
func (h *BlockHeader) Deserialize(r io.Reader) error {
	return h.BtcDecode(r)
}

// SerializeSize returns the number of bytes it would take to serialize
// the header.
func (h *BlockHeader) SerializeSize() int {
	return blockHeaderFixedSize + 1 +
		pow.PackedNonceSize(h.PoW.EdgeBits, len(h.PoW.Nonces))
}
