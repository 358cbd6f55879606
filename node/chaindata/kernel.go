// Copyright (c) 2023 The mimbled developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaindata

import (
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"gitlab.com/mimblenet/mimbled/types/wire"
)

// CheckKernelFeatures enforces the stateless rules attached to a kernel
// feature flag.  Contextual rules, lock heights against the chain tip
// and recent-duplicate windows, are enforced by the chain.
func CheckKernelFeatures(kernel *wire.TxKernel) error {
	switch kernel.Features {
	case wire.PlainKernel:
		if kernel.LockHeight != 0 {
			str := fmt.Sprintf("plain kernel %v carries lock height %d",
				kernel.Excess, kernel.LockHeight)
			return NewRuleError(ErrInvalidFeatures, str)
		}

	case wire.CoinbaseKernel:
		if kernel.Fee != 0 {
			str := fmt.Sprintf("coinbase kernel %v carries fee %d",
				kernel.Excess, kernel.Fee)
			return NewRuleError(ErrInvalidCoinbase, str)
		}
		if kernel.LockHeight != 0 {
			str := fmt.Sprintf("coinbase kernel %v carries lock height %d",
				kernel.Excess, kernel.LockHeight)
			return NewRuleError(ErrInvalidCoinbase, str)
		}

	case wire.HeightLockedKernel:
		if kernel.LockHeight == 0 {
			str := fmt.Sprintf("height locked kernel %v has no lock height",
				kernel.Excess)
			return NewRuleError(ErrInvalidFeatures, str)
		}

	case wire.NRDKernel:
		// The lock height field holds the relative no-duplicate window,
		// which must be a positive span.
		if kernel.LockHeight == 0 {
			str := fmt.Sprintf("nrd kernel %v has zero relative height",
				kernel.Excess)
			return NewRuleError(ErrInvalidFeatures, str)
		}

	default:
		str := fmt.Sprintf("kernel %v has unknown feature flag %d",
			kernel.Excess, kernel.Features)
		return NewRuleError(ErrInvalidFeatures, str)
	}
	return nil
}

// VerifyKernel checks a kernel's feature rules and its excess
// signature.
func VerifyKernel(kernel *wire.TxKernel) error {
	if err := CheckKernelFeatures(kernel); err != nil {
		return err
	}
	if err := kernel.Verify(); err != nil {
		str := fmt.Sprintf("kernel %v signature invalid: %v",
			kernel.Excess, err)
		return NewRuleError(ErrInvalidSignature, str)
	}
	return nil
}

// VerifyKernelBatch checks many kernels concurrently.  Signature checks
// share no state, so they fan out across the available CPUs.  The first
// failure is returned; callers wanting to localize it re-check kernels
// individually.
func VerifyKernelBatch(kernels []wire.TxKernel) error {
	var group errgroup.Group
	group.SetLimit(runtime.NumCPU())
	for i := range kernels {
		kernel := &kernels[i]
		group.Go(func() error {
			return VerifyKernel(kernel)
		})
	}
	return group.Wait()
}

// CheckKernelLockHeight enforces the height locked rule against a chain
// height: the kernel's transaction may not be confirmed below the lock.
func CheckKernelLockHeight(kernel *wire.TxKernel, height uint64) error {
	if kernel.Features != wire.HeightLockedKernel {
		return nil
	}
	if height < kernel.LockHeight {
		str := fmt.Sprintf("kernel %v locked until height %d, chain at %d",
			kernel.Excess, kernel.LockHeight, height)
		return NewRuleError(ErrKernelLockHeight, str)
	}
	return nil
}
