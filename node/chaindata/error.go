// Copyright (c) 2023 The mimbled developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaindata

import "fmt"

// ErrorCode identifies a kind of rule violation.
type ErrorCode int

// These constants are used to identify a specific RuleError.
const (
	// ErrMalformedData indicates a block or transaction failed to decode
	// or violated a structural bound such as an element count or sort
	// order.
	ErrMalformedData ErrorCode = iota

	// ErrBalanceViolation indicates the commitment sum of a transaction
	// or block did not reduce to the identity element.
	ErrBalanceViolation

	// ErrInvalidProof indicates a range proof failed verification for
	// its output commitment.
	ErrInvalidProof

	// ErrInvalidSignature indicates a kernel excess signature failed
	// verification.
	ErrInvalidSignature

	// ErrInvalidFeatures indicates a kernel or output carries a feature
	// flag that is unknown or inconsistent with its other fields.
	ErrInvalidFeatures

	// ErrInvalidPoW indicates the proof of work solution is not a valid
	// cycle or does not satisfy the claimed difficulty target.
	ErrInvalidPoW

	// ErrCutThrough indicates a commitment appears as both a created
	// output and a spent input within the same block body.
	ErrCutThrough

	// ErrWeightExceeded indicates the body weight is over the consensus
	// ceiling.
	ErrWeightExceeded

	// ErrInsufficientFee indicates the aggregate fee does not meet the
	// minimum rate for the body weight.
	ErrInsufficientFee

	// ErrPreviousBlockUnknown indicates the referenced parent block is
	// not known.  Callers buffer such blocks as orphans rather than
	// rejecting them outright.
	ErrPreviousBlockUnknown

	// ErrUnknownOutput indicates a spent input does not resolve to a
	// live output in the current chain view.
	ErrUnknownOutput

	// ErrDoubleSpend indicates an output is spent more than once.
	ErrDoubleSpend

	// ErrImmatureSpend indicates a coinbase output is spent before
	// reaching maturity depth.
	ErrImmatureSpend

	// ErrKernelLockHeight indicates a height locked kernel appears
	// below its lock height.
	ErrKernelLockHeight

	// ErrDuplicateKernel indicates a no-recent-duplicate kernel repeats
	// an excess seen within the protocol window.
	ErrDuplicateKernel

	// ErrRootMismatch indicates the accumulator roots after applying a
	// block do not match the roots its header declares.
	ErrRootMismatch

	// ErrDuplicateBlock indicates a block with the same hash has
	// already been processed.
	ErrDuplicateBlock

	// ErrInvalidTime indicates a header timestamp is too far in the
	// future or does not advance past the median of recent headers.
	ErrInvalidTime

	// ErrUnexpectedDifficulty indicates a header's target does not match
	// the value required by the difficulty adjustment.
	ErrUnexpectedDifficulty

	// ErrInvalidCoinbase indicates the coinbase kernel or output rules
	// are violated: wrong count, nonzero fee, or unbalanced reward.
	ErrInvalidCoinbase

	// ErrBlockVersionTooOld indicates the block version is no longer
	// accepted.
	ErrBlockVersionTooOld

	// ErrReorgFailed indicates a chain reorganization could not be
	// completed and state was restored to the prior head.
	ErrReorgFailed

	// ErrDuplicateTx indicates a transaction with the same hash is
	// already present in the pool.
	ErrDuplicateTx
)

var errorCodeStrings = map[ErrorCode]string{
	ErrMalformedData:        "ErrMalformedData",
	ErrBalanceViolation:     "ErrBalanceViolation",
	ErrInvalidProof:         "ErrInvalidProof",
	ErrInvalidSignature:     "ErrInvalidSignature",
	ErrInvalidFeatures:      "ErrInvalidFeatures",
	ErrInvalidPoW:           "ErrInvalidPoW",
	ErrCutThrough:           "ErrCutThrough",
	ErrWeightExceeded:       "ErrWeightExceeded",
	ErrInsufficientFee:      "ErrInsufficientFee",
	ErrPreviousBlockUnknown: "ErrPreviousBlockUnknown",
	ErrUnknownOutput:        "ErrUnknownOutput",
	ErrDoubleSpend:          "ErrDoubleSpend",
	ErrImmatureSpend:        "ErrImmatureSpend",
	ErrKernelLockHeight:     "ErrKernelLockHeight",
	ErrDuplicateKernel:      "ErrDuplicateKernel",
	ErrRootMismatch:         "ErrRootMismatch",
	ErrDuplicateBlock:       "ErrDuplicateBlock",
	ErrInvalidTime:          "ErrInvalidTime",
	ErrUnexpectedDifficulty: "ErrUnexpectedDifficulty",
	ErrInvalidCoinbase:      "ErrInvalidCoinbase",
	ErrBlockVersionTooOld:   "ErrBlockVersionTooOld",
	ErrReorgFailed:          "ErrReorgFailed",
	ErrDuplicateTx:          "ErrDuplicateTx",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s, ok := errorCodeStrings[e]; ok {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// RuleError identifies a rule violation.  It is used to indicate that
// processing of a block or transaction failed due to one of the many
// validation rules.  The caller can use type assertions to determine if
// a failure was specifically due to a rule violation and access the
// ErrorCode field to ascertain the specific reason for the rule
// violation.
type RuleError struct {
	ErrorCode   ErrorCode // Describes the kind of error
	Description string    // Human readable description of the issue
}

// Error satisfies the error interface and prints human-readable errors.
func (e RuleError) Error() string {
	return e.Description
}

// NewRuleError creates a RuleError given a set of arguments.
func NewRuleError(c ErrorCode, desc string) RuleError {
	return RuleError{ErrorCode: c, Description: desc}
}

// IsRuleErrorCode reports whether err is a RuleError carrying the given
// code.
func IsRuleErrorCode(err error, code ErrorCode) bool {
	ruleErr, ok := err.(RuleError)
	return ok && ruleErr.ErrorCode == code
}

// AssertError identifies an error that indicates an internal code
// consistency issue and should be treated as a critical and
// unrecoverable error.
type AssertError string

// Error returns the assertion error as a human-readable string and
// satisfies the error interface.
func (e AssertError) Error() string {
	return "assertion failed: " + string(e)
}
