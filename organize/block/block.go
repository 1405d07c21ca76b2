// Copyright (c) 2017-2018 The nox developers

// Package block implements spec.md §4.5: the block organizer's validation
// and promotion protocol, grounded on the check/accept/connect sequencing
// of maybeAcceptBlock and connectBestChain in
// _examples/Qitmeer-qitmeer/core/blockchain/accept.go and chain.go,
// re-expressed as one state-driven method instead of their dag-wide
// traversal.
package block

import (
	"context"
	"errors"

	"github.com/scristian71/libbitcoin-blockchain/chain/priolock"
	"github.com/scristian71/libbitcoin-blockchain/chainstate"
	"github.com/scristian71/libbitcoin-blockchain/errcode"
	"github.com/scristian71/libbitcoin-blockchain/pkg/wire"
	"github.com/scristian71/libbitcoin-blockchain/store"
	"github.com/scristian71/libbitcoin-blockchain/validate"
)

// Notification is delivered to block subscribers after a block is
// admitted as a new candidate (spec.md §6).
type Notification struct {
	Height uint64
	Block  *wire.Block
}

// Organizer implements spec.md §4.5's eight steps. It holds references to
// the facade's collaborators without owning them.
type Organizer struct {
	Store     store.Store
	Validator *validate.BlockValidator
	Executor  validate.ScriptExecutor
	Mutex     *priolock.Mutex
	Populator chainstate.Populator
	MaxMoney  uint64

	// IsReorganizable reports whether the candidate chain's work now
	// exceeds the confirmed chain's (spec.md §4.7 is_reorganizable),
	// evaluated under the lock this organizer already holds.
	IsReorganizable func() bool
	// ReorganizeConfirmed swaps the confirmed chain to match the
	// candidate chain from fork_point upward, the facade's
	// reorganize(branch_cache, branch_height) (spec.md §4.5 step 9).
	ReorganizeConfirmed func() error

	Notify  func(Notification)
	Stopped func() bool

	// StopSignal, if set, is closed when the facade's Stop is called.
	// Organize watches it alongside ctx while parked in Validator.Connect
	// so a shutdown interrupts an in-flight script-verification fan-out
	// rather than leaving it to run to completion (spec.md §5).
	StopSignal <-chan struct{}
}

// Organize validates and promotes one block body at height, per spec.md
// §4.5. Stopped is re-checked between every phase so a shutdown observed
// partway through never falls through to a write.
func (o *Organizer) Organize(ctx context.Context, candidate *wire.Block, height uint64) error {
	if err := o.Validator.Check(candidate, o.MaxMoney); err != nil {
		return err
	}

	o.Mutex.LockHigh()
	defer o.Mutex.Unlock()

	if err := o.checkStopped(); err != nil {
		return err
	}

	hash := candidate.Hash()
	state, err := o.Store.GetBlockStateByHash(hash)
	if err != nil {
		return errcode.Newf(errcode.OperationFailed, "get_block_state: %v", err)
	}
	if !state.Has(store.StateIndexed) {
		return errcode.New(errcode.OperationFailed, "block's header is not indexed in the candidate chain")
	}
	if state.Has(store.StateInvalid) {
		return errcode.New(errcode.InvalidBlock, "block is sticky-invalid")
	}

	if !state.Has(store.StateStored) {
		if err := o.Store.Update(candidate, height); err != nil {
			return errcode.Newf(errcode.StoreCorrupted, "update: %v", err)
		}
	}

	if err := o.checkStopped(); err != nil {
		return err
	}

	var parentHeight uint64
	if height > 0 {
		parentHeight = height - 1
	}
	parentState, err := o.Populator.FromHeight(parentHeight, true)
	if err != nil {
		return errcode.Newf(errcode.OperationFailed, "from_height(%d): %v", parentHeight, err)
	}

	if err := o.Validator.Accept(candidate, parentState); err != nil {
		return o.invalidate(candidate, height, err)
	}

	if err := o.checkStopped(); err != nil {
		return err
	}

	utxos, err := o.populateInputs(candidate, parentHeight)
	if err != nil {
		return errcode.Newf(errcode.OperationFailed, "populate_output: %v", err)
	}

	if err := o.connect(ctx, candidate, utxos); err != nil {
		if o.stoppedErr(err) {
			return errcode.New(errcode.ServiceStopped, "organizer stopped during connect")
		}
		return o.invalidate(candidate, height, err)
	}

	if err := o.checkStopped(); err != nil {
		return err
	}

	if err := o.Store.Candidate(candidate); err != nil {
		return errcode.Newf(errcode.StoreCorrupted, "candidate: %v", err)
	}

	if o.IsReorganizable != nil && o.IsReorganizable() {
		if err := o.ReorganizeConfirmed(); err != nil {
			return errcode.Newf(errcode.StoreCorrupted, "reorganize_blocks: %v", err)
		}
	}

	log.Infof("candidate block %s accepted at height %d", hash, height)

	if o.Notify != nil {
		o.Notify(Notification{Height: height, Block: candidate})
	}
	return nil
}

// checkStopped reports errcode.ServiceStopped if the facade has been
// stopped, the gate Organize runs between every phase (spec.md §5/§4.6:
// "must observe stopped() between every phase").
func (o *Organizer) checkStopped() error {
	if o.Stopped != nil && o.Stopped() {
		return errcode.New(errcode.ServiceStopped, "organizer stopped")
	}
	return nil
}

// connect runs Validator.Connect under a context that is also cancelled
// when StopSignal fires, so a parked script-verification fan-out is
// interrupted by Stop rather than left to finish on its own.
func (o *Organizer) connect(ctx context.Context, candidate *wire.Block, utxos [][]*wire.TxOut) error {
	connectCtx := ctx
	if o.StopSignal != nil {
		var cancel context.CancelFunc
		connectCtx, cancel = context.WithCancel(ctx)
		defer cancel()
		go func() {
			select {
			case <-o.StopSignal:
				cancel()
			case <-connectCtx.Done():
			}
		}()
	}
	return o.Validator.Connect(connectCtx, o.Executor, candidate, utxos)
}

// stoppedErr reports whether err reflects a shutdown/cancellation rather
// than a genuine script-verification failure: connect was interrupted, not
// proven invalid, so the caller must not invalidate the block on it.
func (o *Organizer) stoppedErr(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return o.Stopped != nil && o.Stopped()
}

// invalidate marks candidate (and, per the store's contract, every
// candidate ancestor up to it) sticky-invalid, preserving the triggering
// error as the reported code, per spec.md §4.5 step 7.
func (o *Organizer) invalidate(candidate *wire.Block, height uint64, cause error) error {
	if err := o.Store.InvalidateBlock(candidate, height, cause); err != nil {
		log.Errorf("FATAL: invalidate_block failed after %v: %v", cause, err)
		return errcode.Newf(errcode.StoreCorrupted, "invalidate_block: %v", err)
	}
	return errcode.Newf(errcode.InvalidBlock, "%v", cause)
}

// populateInputs resolves, for every non-coinbase transaction's inputs,
// the referenced output via Store.PopulateOutput, returning the per-input
// UTXO slices Validator.Connect fans out over.
func (o *Organizer) populateInputs(candidate *wire.Block, forkHeight uint64) ([][]*wire.TxOut, error) {
	utxos := make([][]*wire.TxOut, len(candidate.Transactions))
	for i, tx := range candidate.Transactions {
		if i == 0 {
			continue
		}
		outs := make([]*wire.TxOut, len(tx.TxIn))
		for j, in := range tx.TxIn {
			out, err := o.Store.PopulateOutput(in, forkHeight, true)
			if err != nil {
				return nil, err
			}
			outs[j] = out
		}
		utxos[i] = outs
	}
	return utxos, nil
}
