// Copyright (c) 2017-2018 The nox developers

// Script execution itself is an external collaborator (spec.md §1); this
// file only owns the fan-out discipline spec.md §5 requires: a priority
// pool sized so a writer parked awaiting the one-shot completion signal
// always finds a thread free. Grounded on the bounded-worker dispatch
// pattern in _examples/lightningnetwork-lnd/chainio/dispatcher.go,
// re-expressed with golang.org/x/sync's errgroup/semaphore instead of the
// teacher's hand-rolled channel dispatcher.
package validate

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/scristian71/libbitcoin-blockchain/pkg/wire"
)

// ScriptExecutor verifies a single input's unlocking script against the
// output it claims to spend. It is supplied externally; this package never
// interprets scripts itself.
type ScriptExecutor interface {
	VerifyInput(tx *wire.Transaction, inputIndex int, utxo *wire.TxOut) error
}

// PriorityPool bounds the connect-phase fan-out described in spec.md §5
// ("the priority pool must be sized so that at least one thread is always
// available when a writer needs to park and await script completion").
type PriorityPool struct {
	sem *semaphore.Weighted
}

// NewPriorityPool returns a pool with threads concurrent script-execution
// slots. threads should match config.Config.PriorityPoolThreads.
func NewPriorityPool(threads int) *PriorityPool {
	if threads <= 0 {
		threads = 1
	}
	return &PriorityPool{sem: semaphore.NewWeighted(int64(threads))}
}

// ConnectTransaction fans VerifyInput out across every input of tx and
// awaits a single completion signal (errgroup.Wait), the connect phase of
// spec.md §4.3/§4.6. utxos[i] is the output referenced by tx.TxIn[i],
// resolved by the caller via Store.PopulateOutput before calling Connect.
// Coinbase transactions have nothing to connect.
func (p *PriorityPool) ConnectTransaction(ctx context.Context, executor ScriptExecutor, tx *wire.Transaction, utxos []*wire.TxOut) error {
	if tx.IsCoinBase() {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := range tx.TxIn {
		i := i
		if err := p.sem.Acquire(gctx, 1); err != nil {
			return err
		}
		g.Go(func() error {
			defer p.sem.Release(1)
			return executor.VerifyInput(tx, i, utxos[i])
		})
	}
	return g.Wait()
}

// ConnectBlock fans ConnectTransaction out across every non-coinbase
// transaction in block, sharing this pool's thread budget across the whole
// block, and awaits one completion signal for the block as a whole
// (spec.md §4.5 step 6).
func (p *PriorityPool) ConnectBlock(ctx context.Context, executor ScriptExecutor, block *wire.Block, utxos [][]*wire.TxOut) error {
	g, gctx := errgroup.WithContext(ctx)
	for i, tx := range block.Transactions {
		if i == 0 {
			continue
		}
		tx := tx
		txUtxos := utxos[i]
		g.Go(func() error {
			return p.ConnectTransaction(gctx, executor, tx, txUtxos)
		})
	}
	return g.Wait()
}
