// Copyright (c) 2023 The mimbled developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/mimblenet/mimbled/pedersen"
	"gitlab.com/mimblenet/mimbled/types/chainhash"
	"gitlab.com/mimblenet/mimbled/types/pow"
)

func testCommitment(t *testing.T, value uint64) pedersen.Commitment {
	t.Helper()
	blind, err := pedersen.NewBlind()
	require.NoError(t, err)
	return pedersen.Commit(value, blind)
}

func testTx(t *testing.T) *MsgTx {
	t.Helper()

	excessKey, err := pedersen.NewBlind()
	require.NoError(t, err)

	kernel := TxKernel{
		Features:   HeightLockedKernel,
		Fee:        7,
		LockHeight: 100,
		Excess:     pedersen.Commit(0, excessKey),
	}
	msg := kernel.SignatureMessage()
	kernel.Signature, err = pedersen.SignMessage(excessKey, msg[:])
	require.NoError(t, err)

	tx := NewMsgTx()
	tx.Offset[3] = 0xaa
	tx.Body = TxBody{
		Inputs: []TxInput{
			{Commitment: testCommitment(t, 50)},
			{Commitment: testCommitment(t, 12)},
		},
		Outputs: []TxOutput{
			{
				Features:   PlainOutput,
				Commitment: testCommitment(t, 55),
				RangeProof: bytes.Repeat([]byte{0x42}, 600),
			},
		},
		Kernels: []TxKernel{kernel},
	}
	tx.Body.Sort()
	return tx
}

func TestTxSerializeRoundTrip(t *testing.T) {
	tx := testTx(t)

	var buf bytes.Buffer
	require.NoError(t, tx.Serialize(&buf))
	assert.Equal(t, tx.SerializeSize(), buf.Len())

	var got MsgTx
	require.NoError(t, got.Deserialize(&buf))
	if !assert.Equal(t, *tx, got) {
		t.Log(spew.Sdump(&got))
	}
	assert.Equal(t, tx.TxHash(), got.TxHash())
}

func TestTxBodySortAndIsSorted(t *testing.T) {
	tx := testTx(t)
	require.True(t, tx.Body.IsSorted())

	// A duplicate entry is not in canonical order even though the byte
	// comparison is non-decreasing.
	dup := tx.Body
	dup.Inputs = append([]TxInput{tx.Body.Inputs[0]}, tx.Body.Inputs...)
	assert.False(t, dup.IsSorted())

	reversed := tx.Body
	reversed.Inputs = []TxInput{tx.Body.Inputs[1], tx.Body.Inputs[0]}
	assert.False(t, reversed.IsSorted())
	reversed.Sort()
	assert.True(t, reversed.IsSorted())
}

func TestKernelSignatureMessageBindsFields(t *testing.T) {
	tx := testTx(t)
	kernel := tx.Body.Kernels[0]
	require.NoError(t, kernel.Verify())

	tampered := kernel
	tampered.Fee++
	assert.Error(t, tampered.Verify())

	tampered = kernel
	tampered.Features = PlainKernel
	assert.Error(t, tampered.Verify())

	tampered = kernel
	tampered.LockHeight = 0
	assert.Error(t, tampered.Verify())
}

func testHeader(t *testing.T) *BlockHeader {
	t.Helper()

	nonces := make([]uint64, pow.ProofNonces)
	for i := range nonces {
		nonces[i] = uint64(i * 31)
	}
	return &BlockHeader{
		Version:          1,
		Height:           1024,
		PrevBlock:        chainhash.HashH([]byte("prev")),
		Timestamp:        time.Unix(0x5f60ec00, 0),
		OutputRoot:       chainhash.HashH([]byte("outputs")),
		RangeProofRoot:   chainhash.HashH([]byte("proofs")),
		KernelRoot:       chainhash.HashH([]byte("kernels")),
		OutputMMRSize:    2001,
		KernelMMRSize:    1050,
		Target:           17_000,
		TotalDifficulty:  93_000_000,
		SecondaryScaling: 1856,
		Nonce:            0xdeadbeef,
		PoW:              pow.Proof{EdgeBits: 29, Nonces: nonces},
	}
}

func TestBlockHeaderSerializeRoundTrip(t *testing.T) {
	header := testHeader(t)

	var buf bytes.Buffer
	require.NoError(t, header.Serialize(&buf))
	assert.Equal(t, header.SerializeSize(), buf.Len())
	assert.LessOrEqual(t, buf.Len(), MaxBlockHeaderPayload)

	var got BlockHeader
	require.NoError(t, got.Deserialize(bytes.NewReader(buf.Bytes())))
	assert.Equal(t, header.BlockHash(), got.BlockHash())
	assert.Equal(t, header.PoW.Nonces, got.PoW.Nonces)
	assert.True(t, header.Timestamp.Equal(got.Timestamp))
}

func TestBlockHeaderPrePoWExcludesSolution(t *testing.T) {
	header := testHeader(t)
	prePoW := header.PrePoWBytes()

	// Changing the solution must not disturb the search seed, while
	// changing the nonce must.
	header.PoW.Nonces[0] ^= 1
	assert.Equal(t, prePoW, header.PrePoWBytes())

	header.Nonce++
	assert.NotEqual(t, prePoW, header.PrePoWBytes())
}

func TestBlockHeaderDecodeRejectsBadEdgeBits(t *testing.T) {
	header := testHeader(t)
	var buf bytes.Buffer
	require.NoError(t, header.Serialize(&buf))

	raw := buf.Bytes()
	raw[blockHeaderFixedSize] = pow.MaxEdgeBits + 1

	var got BlockHeader
	assert.Error(t, got.Deserialize(bytes.NewReader(raw)))
}

func TestBlockHeaderDecodeRejectsPaddedNonces(t *testing.T) {
	header := testHeader(t)
	var buf bytes.Buffer
	require.NoError(t, header.Serialize(&buf))

	// The packed nonces end the encoding and, at 29 edge bits, leave
	// spare low bits in the final byte.  Setting one yields a distinct
	// byte stream for the same header, which decode must not accept.
	raw := buf.Bytes()
	raw[len(raw)-1] |= 0x01

	var got BlockHeader
	assert.Error(t, got.Deserialize(bytes.NewReader(raw)))
}

func TestBlockSerializeRoundTrip(t *testing.T) {
	block := NewMsgBlock(testHeader(t))
	block.Body = testTx(t).Body

	var buf bytes.Buffer
	require.NoError(t, block.Serialize(&buf))
	assert.Equal(t, block.SerializeSize(), buf.Len())

	var got MsgBlock
	require.NoError(t, got.Deserialize(&buf))
	assert.Equal(t, block.BlockHash(), got.BlockHash())
	assert.Equal(t, block.Body, got.Body)
}

func TestVarIntCanonicalEncoding(t *testing.T) {
	// A value below 0xfd must be rejected when encoded with the wider
	// 0xfd discriminant.
	raw := []byte{0xfd, 0x20, 0x00}
	_, err := ReadVarInt(bytes.NewReader(raw))
	assert.Error(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteVarInt(&buf, 0x20))
	assert.Equal(t, []byte{0x20}, buf.Bytes())
}
