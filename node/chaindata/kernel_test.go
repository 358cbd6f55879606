// Copyright (c) 2023 The mimbled developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaindata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/mimblenet/mimbled/pedersen"
	"gitlab.com/mimblenet/mimbled/types/wire"
)

func testKernel(t *testing.T, features wire.KernelFeatures, fee,
	lockHeight uint64) wire.TxKernel {

	t.Helper()
	key, err := pedersen.NewBlind()
	require.NoError(t, err)
	kernel, err := signedKernel(features, fee, lockHeight, key)
	require.NoError(t, err)
	return kernel
}

func TestCheckKernelFeatures(t *testing.T) {
	tests := []struct {
		name       string
		features   wire.KernelFeatures
		fee        uint64
		lockHeight uint64
		wantCode   ErrorCode
		wantErr    bool
	}{
		{name: "plain ok", features: wire.PlainKernel, fee: 2},
		{
			name: "plain with lock height", features: wire.PlainKernel,
			lockHeight: 5, wantErr: true, wantCode: ErrInvalidFeatures,
		},
		{name: "coinbase ok", features: wire.CoinbaseKernel},
		{
			name: "coinbase with fee", features: wire.CoinbaseKernel,
			fee: 1, wantErr: true, wantCode: ErrInvalidCoinbase,
		},
		{
			name: "coinbase with lock height", features: wire.CoinbaseKernel,
			lockHeight: 9, wantErr: true, wantCode: ErrInvalidCoinbase,
		},
		{
			name: "height locked ok", features: wire.HeightLockedKernel,
			fee: 1, lockHeight: 42,
		},
		{
			name:     "height locked without height",
			features: wire.HeightLockedKernel, wantErr: true,
			wantCode: ErrInvalidFeatures,
		},
		{name: "nrd ok", features: wire.NRDKernel, fee: 1, lockHeight: 100},
		{
			name: "nrd without window", features: wire.NRDKernel,
			wantErr: true, wantCode: ErrInvalidFeatures,
		},
		{
			name: "unknown flag", features: wire.KernelFeatures(9),
			wantErr: true, wantCode: ErrInvalidFeatures,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			kernel := testKernel(t, test.features, test.fee, test.lockHeight)
			err := CheckKernelFeatures(&kernel)
			if !test.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, IsRuleErrorCode(err, test.wantCode), "got %v", err)
		})
	}
}

func TestVerifyKernelRejectsBadSignature(t *testing.T) {
	kernel := testKernel(t, wire.PlainKernel, 3, 0)
	require.NoError(t, VerifyKernel(&kernel))

	tampered := kernel
	tampered.Signature[10] ^= 0x40
	err := VerifyKernel(&tampered)
	assert.True(t, IsRuleErrorCode(err, ErrInvalidSignature), "got %v", err)

	// A valid signature over different kernel fields is just as dead.
	tampered = kernel
	tampered.Fee = 4
	err = VerifyKernel(&tampered)
	assert.True(t, IsRuleErrorCode(err, ErrInvalidSignature), "got %v", err)
}

func TestVerifyKernelBatch(t *testing.T) {
	kernels := []wire.TxKernel{
		testKernel(t, wire.PlainKernel, 1, 0),
		testKernel(t, wire.PlainKernel, 2, 0),
		testKernel(t, wire.HeightLockedKernel, 3, 77),
	}
	require.NoError(t, VerifyKernelBatch(kernels))

	kernels[1].Signature[0] ^= 1
	assert.Error(t, VerifyKernelBatch(kernels))
}

func TestCheckKernelLockHeight(t *testing.T) {
	kernel := testKernel(t, wire.HeightLockedKernel, 1, 50)

	err := CheckKernelLockHeight(&kernel, 49)
	assert.True(t, IsRuleErrorCode(err, ErrKernelLockHeight), "got %v", err)
	assert.NoError(t, CheckKernelLockHeight(&kernel, 50))
	assert.NoError(t, CheckKernelLockHeight(&kernel, 51))

	// Only the height locked feature is gated.
	plain := testKernel(t, wire.PlainKernel, 1, 0)
	assert.NoError(t, CheckKernelLockHeight(&plain, 0))
}
