// Copyright (c) 2017-2018 The nox developers

// Package tx implements spec.md §4.6: the transaction organizer's mempool
// admission protocol. Grounded on ProcessTransaction/maybeAcceptTransaction
// in _examples/Qitmeer-qitmeer/services/mempool/mempool.go, generalized
// from the teacher's single mempool-wide mutex to the facade's
// low-priority queue (spec.md §5's priority-inversion avoidance: this
// organizer parks on its own calling goroutine awaiting Connect's
// errgroup completion rather than chaining continuations on the priority
// pool).
package tx

import (
	"context"
	"errors"

	"github.com/scristian71/libbitcoin-blockchain/chain/priolock"
	"github.com/scristian71/libbitcoin-blockchain/chainstate"
	"github.com/scristian71/libbitcoin-blockchain/errcode"
	"github.com/scristian71/libbitcoin-blockchain/pkg/wire"
	"github.com/scristian71/libbitcoin-blockchain/pool/txpool"
	"github.com/scristian71/libbitcoin-blockchain/store"
	"github.com/scristian71/libbitcoin-blockchain/validate"
)

// Notification is delivered to transaction subscribers after a
// transaction is admitted to the pool (spec.md §6: "(code, tx)").
type Notification struct {
	Tx *wire.Transaction
}

// Organizer implements spec.md §4.6's eight steps.
type Organizer struct {
	Store     store.Store
	Pool      *txpool.Pool
	Validator *validate.TxValidator
	Executor  validate.ScriptExecutor
	Mutex     *priolock.Mutex
	Populator chainstate.Populator
	MaxMoney  uint64

	// ByteFeeSatoshis / SigopFeeSatoshis / MinimumOutputSatoshis mirror
	// config.Config's mempool policy gates.
	ByteFeeSatoshis       float64
	SigopFeeSatoshis      float64
	MinimumOutputSatoshis uint64

	Notify  func(Notification)
	Stopped func() bool

	// StopSignal, if set, is closed when the facade's Stop is called.
	// Organize watches it alongside ctx while parked in Validator.Connect
	// so a shutdown interrupts an in-flight script-verification fan-out
	// rather than leaving it to run to completion (spec.md §5).
	StopSignal <-chan struct{}
}

// Organize admits one transaction per spec.md §4.6. Stopped is re-checked
// between every phase so a shutdown observed partway through never falls
// through to a write.
func (o *Organizer) Organize(ctx context.Context, candidate *wire.Transaction) error {
	if err := o.Validator.Check(candidate, o.MaxMoney); err != nil {
		return err
	}

	o.Mutex.LockLow()
	defer o.Mutex.Unlock()

	if err := o.checkStopped(); err != nil {
		return err
	}

	hash := candidate.Hash()
	if o.Pool.Exists(hash) {
		return errcode.New(errcode.DuplicateTransaction, "transaction already in pool")
	}

	confirmedHeight, err := o.Store.GetTopHeight(false)
	if err != nil {
		return errcode.Newf(errcode.OperationFailed, "get_top_height: %v", err)
	}
	nextConfirmed, err := o.Populator.FromHeight(confirmedHeight, false)
	if err != nil {
		return errcode.Newf(errcode.OperationFailed, "from_height(%d): %v", confirmedHeight, err)
	}

	if err := o.Validator.Accept(candidate, nextConfirmed); err != nil {
		return err
	}

	if err := o.checkStopped(); err != nil {
		return err
	}

	utxos, err := o.populateInputs(candidate, confirmedHeight)
	if err != nil {
		return errcode.Newf(errcode.OperationFailed, "populate_output: %v", err)
	}

	fees := candidate.Fees()
	if !validate.SufficientFee(candidate, fees, o.ByteFeeSatoshis, o.SigopFeeSatoshis) {
		return errcode.Newf(errcode.InsufficientFee, "paid %d is below required fee", fees)
	}
	if candidate.IsDusty(o.MinimumOutputSatoshis) {
		return errcode.New(errcode.DustyTransaction, "transaction has a dust output")
	}

	if err := o.connect(ctx, candidate, utxos); err != nil {
		if o.stoppedErr(err) {
			return errcode.New(errcode.ServiceStopped, "organizer stopped during connect")
		}
		return errcode.Newf(errcode.InvalidTransaction, "connect: %v", err)
	}

	if err := o.checkStopped(); err != nil {
		return err
	}

	if err := o.Store.Store(candidate); err != nil {
		return errcode.Newf(errcode.StoreCorrupted, "store: %v", err)
	}

	o.Pool.Add(candidate, confirmedHeight+1, fees)
	log.Debugf("accepted transaction %s into mempool (fees %d)", hash, fees)

	if o.Notify != nil {
		o.Notify(Notification{Tx: candidate})
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
func (o *Organizer) connect(ctx context.Context, candidate *wire.Transaction, utxos []*wire.TxOut) error {
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
// than a genuine script-verification failure.
func (o *Organizer) stoppedErr(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return o.Stopped != nil && o.Stopped()
}

func (o *Organizer) populateInputs(candidate *wire.Transaction, forkHeight uint64) ([]*wire.TxOut, error) {
	utxos := make([]*wire.TxOut, len(candidate.TxIn))
	for i, in := range candidate.TxIn {
		out, err := o.Store.PopulateOutput(in, forkHeight, false)
		if err != nil {
			return nil, err
		}
		utxos[i] = out
	}
	return utxos, nil
}
