// Copyright (c) 2017-2018 The nox developers

package validate

import (
	"time"

	"github.com/scristian71/libbitcoin-blockchain/chaincfg"
	"github.com/scristian71/libbitcoin-blockchain/chainstate"
	"github.com/scristian71/libbitcoin-blockchain/errcode"
	"github.com/scristian71/libbitcoin-blockchain/pkg/chainhash"
	"github.com/scristian71/libbitcoin-blockchain/pkg/chainwork"
	"github.com/scristian71/libbitcoin-blockchain/pkg/wire"
)

// MaxTimeOffset bounds how far into the future a header's timestamp may
// claim to be, relative to the caller-supplied wall clock, mirroring
// _examples/Qitmeer-qitmeer/core/blockchain/validate.go's MaxTimeOffsetSeconds.
const MaxTimeOffset = 2 * time.Hour

// HeaderValidator implements spec.md §4.3's two header-applicable phases:
// check (context-free) and accept (against the branch's promoted
// chain-state). It never runs connect -- headers carry no scripts.
//
// Grounded on checkBlockHeaderSanity/checkProofOfWork in
// _examples/Qitmeer-qitmeer/core/blockchain/validate.go, generalized from a
// single BehaviorFlags-gated function into the header-only half of the
// three-phase validator protocol.
type HeaderValidator struct {
	params *chaincfg.Params
}

// NewHeaderValidator returns a HeaderValidator bound to params, which
// supplies the scrypt-PoW toggle and checkpoint list.
func NewHeaderValidator(params *chaincfg.Params) *HeaderValidator {
	return &HeaderValidator{params: params}
}

// Check performs context-free validation: proof-of-work against the
// header's own claimed bits, and timestamp precision/future-skew bounds.
// now is the caller's wall clock, threaded through rather than read
// internally so check stays pure and testable.
func (v *HeaderValidator) Check(header *wire.Header, now time.Time) error {
	target := chainwork.CompactToBig(header.Bits)
	if target.Sign() <= 0 {
		return errcode.New(errcode.InvalidHeader, "claimed bits do not decode to a positive target")
	}

	powHash := header.PowHash(v.params.ScryptProofOfWork)
	hashNum := chainhash.HashToBig(powHash)
	if hashNum.Cmp(target) > 0 {
		return errcode.Newf(errcode.InvalidHeader,
			"block hash %s is higher than expected target %s", powHash, target)
	}

	if !header.Timestamp.Equal(time.Unix(header.Timestamp.Unix(), 0)) {
		return errcode.Newf(errcode.InvalidHeader,
			"timestamp %v has sub-second precision", header.Timestamp)
	}

	if header.Timestamp.After(now.Add(MaxTimeOffset)) {
		return errcode.Newf(errcode.InvalidHeader,
			"timestamp %v is too far in the future", header.Timestamp)
	}

	return nil
}

// Accept validates header against the chain-state of its immediate parent
// (spec.md §4.4 step 4: "chain-state at branch.top derived by promoting
// from the fork-point state along the branch"), at the given height.
// Checkpoint conformance (chaincfg.Params.CheckCheckpoint) resolves
// spec.md §9's checkpoint-difficulty-sanity note.
func (v *HeaderValidator) Accept(header *wire.Header, height uint64, parent *chainstate.State) error {
	if header.Timestamp.Before(parent.MedianTimePast()) || header.Timestamp.Equal(parent.MedianTimePast()) {
		return errcode.Newf(errcode.InvalidHeader,
			"timestamp %v is not after median-time-past %v", header.Timestamp, parent.MedianTimePast())
	}

	if !v.params.CheckCheckpoint(height, header.Hash()) {
		return errcode.Newf(errcode.InvalidHeader,
			"hash at height %d does not match checkpoint", height)
	}

	return nil
}
