// Copyright (c) 2023 The mimbled developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"io"

	"gitlab.com/mimblenet/mimbled/types/chainhash"
)

// MsgBlock is a full block: a header plus the body of inputs, outputs
// and kernels it confirms.  Unlike a transaction it carries no explicit
// offset; the header's total offset covers it.
type MsgBlock struct {
	Header BlockHeader
	Body   TxBody
}

// NewMsgBlock returns a block with the supplied header and an empty
// body.
func NewMsgBlock(header *BlockHeader) *MsgBlock {
	return &MsgBlock{Header: *header}
}

// BlockHash computes the block identifier.
func (b *MsgBlock) BlockHash() chainhash.Hash {
	return b.Header.BlockHash()
}

// SerializeSize returns the number of bytes it would take to serialize
// the block.
func (b *MsgBlock) SerializeSize() int {
	return b.Header.SerializeSize() + b.Body.SerializeSize()
}

// BtcEncode encodes b to w.
func (b *MsgBlock) BtcEncode(w io.Writer) error {
	if err := b.Header.BtcEncode(w); err != nil {
		return err
	}
	return b.Body.BtcEncode(w)
}

// BtcDecode decodes b from r.
func (b *MsgBlock) BtcDecode(r io.Reader) error {
	if err := b.Header.BtcDecode(r); err != nil {
		return err
	}
	return b.Body.BtcDecode(r)
}

// Serialize encodes the block using the canonical encoding.
func (b *MsgBlock) Serialize(w io.Writer) error {
	return b.BtcEncode(w)
}

// Deserialize decodes a block from its canonical encoding.
func (b *MsgBlock) Deserialize(r io.Reader) error {
	return b.BtcDecode(r)
}
