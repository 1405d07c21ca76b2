// Copyright (c) 2017-2018 The nox developers

// Package errcode enumerates the typed error kinds the organizers and
// facade surface to callers, mirroring spec.md §7. It follows the teacher's
// split between a stable numeric Code (stored, compared, logged) and a
// RuleError wrapper that carries a human-readable description, the same
// shape as core/blockchain/error.go and services/mempool/error.go.
package errcode

import (
	"errors"
	"fmt"
)

// Code identifies a kind of error produced by the blockchain core.
type Code int

const (
	// ServiceStopped indicates that stop() was observed and the in-flight
	// admission was cancelled.
	ServiceStopped Code = iota

	// DuplicateBlock indicates a header or block that is already pooled
	// or indexed.
	DuplicateBlock

	// DuplicateTransaction indicates a transaction already present in the
	// mempool.
	DuplicateTransaction

	// InsufficientWork indicates a header branch that is valid but does
	// not exceed the work of the current candidate chain.
	InsufficientWork

	// InsufficientFee is a non-sticky mempool policy rejection.
	InsufficientFee

	// DustyTransaction is a non-sticky mempool policy rejection.
	DustyTransaction

	// InvalidHeader indicates a header failed check or accept.
	InvalidHeader

	// InvalidBlock indicates a block failed accept or connect. Sticky:
	// once recorded against a block, re-submission short-circuits without
	// re-running connect.
	InvalidBlock

	// InvalidTransaction indicates a mempool transaction failed
	// check/accept/connect. Non-sticky.
	InvalidTransaction

	// OperationFailed indicates an internal invariant breach or a store
	// read failure short of corruption.
	OperationFailed

	// StoreCorrupted is fatal: a partial write occurred during
	// reorganize/update/store. Fatal reports it; the organizers return it
	// to the caller and do not refuse later writes on their own.
	StoreCorrupted
)

var names = map[Code]string{
	ServiceStopped:        "service_stopped",
	DuplicateBlock:        "duplicate_block",
	DuplicateTransaction:  "duplicate_transaction",
	InsufficientWork:      "insufficient_work",
	InsufficientFee:       "insufficient_fee",
	DustyTransaction:      "dusty_transaction",
	InvalidHeader:         "invalid_header",
	InvalidBlock:          "invalid_block",
	InvalidTransaction:    "invalid_transaction",
	OperationFailed:       "operation_failed",
	StoreCorrupted:        "store_corrupted",
}

// String returns the Code in its wire/log name.
func (c Code) String() string {
	if s, ok := names[c]; ok {
		return s
	}
	return fmt.Sprintf("unknown_error_code(%d)", int(c))
}

// Fatal reports whether the code represents an unrecoverable store failure.
func (c Code) Fatal() bool {
	return c == StoreCorrupted
}

// Sticky reports whether the code, once recorded against a header or block,
// permanently disqualifies any path through it (spec.md §3 invariant 5).
// Mempool-only codes (InsufficientFee, DustyTransaction, DuplicateTransaction)
// are never sticky.
func (c Code) Sticky() bool {
	return c == InvalidHeader || c == InvalidBlock
}

// RuleError wraps a Code with a human-readable description, the same shape
// as the teacher's core/blockchain.RuleError.
type RuleError struct {
	Code        Code
	Description string
}

// Error satisfies the error interface.
func (e RuleError) Error() string {
	if e.Description == "" {
		return e.Code.String()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// New constructs a RuleError with the given code and description.
func New(code Code, description string) error {
	return RuleError{Code: code, Description: description}
}

// Newf constructs a RuleError with a formatted description.
func Newf(code Code, format string, args ...interface{}) error {
	return RuleError{Code: code, Description: fmt.Sprintf(format, args...)}
}

// AsCode extracts the Code from err if it is (or wraps) a RuleError,
// otherwise it reports OperationFailed -- the catch-all for unexpected
// internal failures, matching the teacher's AssertError treatment in
// core/blockchain/error.go.
func AsCode(err error) Code {
	if err == nil {
		return -1
	}
	var re RuleError
	if errors.As(err, &re) {
		return re.Code
	}
	return OperationFailed
}
