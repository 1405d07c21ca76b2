// Copyright (c) 2017-2018 The nox developers

package validate

import (
	"context"
	"math"
	"time"

	"github.com/scristian71/libbitcoin-blockchain/chainstate"
	"github.com/scristian71/libbitcoin-blockchain/errcode"
	"github.com/scristian71/libbitcoin-blockchain/pkg/wire"
)

// lockTimeThreshold is the value below which Transaction.LockTime is
// interpreted as a block height rather than a unix timestamp, the same
// split txscript.LockTimeThreshold encodes in the teacher.
const lockTimeThreshold = 500000000

// TxValidator implements spec.md §4.3's three phases for transactions.
// Grounded on CheckTransactionSanity (check) and IsFinalizedTransaction
// (accept) in _examples/Qitmeer-qitmeer/core/blockchain/validate.go and
// accept.go; connect is delegated to PriorityPool.ConnectTransaction.
type TxValidator struct {
	pool *PriorityPool
}

// NewTxValidator returns a TxValidator whose connect phase fans out over
// pool.
func NewTxValidator(pool *PriorityPool) *TxValidator {
	return &TxValidator{pool: pool}
}

// Check performs context-free structural validation: non-empty
// inputs/outputs, amounts within maxMoney, no duplicate inputs, and (for
// mempool admission) rejects coinbase transactions outright, mirroring
// spec.md §4.6 step 1.
func (v *TxValidator) Check(tx *wire.Transaction, maxMoney uint64) error {
	if len(tx.TxIn) == 0 {
		return errcode.New(errcode.InvalidTransaction, "transaction has no inputs")
	}
	if len(tx.TxOut) == 0 {
		return errcode.New(errcode.InvalidTransaction, "transaction has no outputs")
	}
	if tx.IsCoinBase() {
		return errcode.New(errcode.InvalidTransaction, "coinbase transactions are not relayed individually")
	}

	var total uint64
	for _, out := range tx.TxOut {
		if out.Value < 0 {
			return errcode.Newf(errcode.InvalidTransaction, "output value %d is negative", out.Value)
		}
		if uint64(out.Value) > maxMoney {
			return errcode.Newf(errcode.InvalidTransaction, "output value %d exceeds max_money %d", out.Value, maxMoney)
		}
		total += uint64(out.Value)
		if total > maxMoney {
			return errcode.Newf(errcode.InvalidTransaction, "total output value exceeds max_money %d", maxMoney)
		}
	}

	if tx.HasDuplicateInputs() {
		return errcode.New(errcode.InvalidTransaction, "transaction contains duplicate inputs")
	}

	return nil
}

// Accept validates tx against state (the chain-state at the confirmed tip
// for mempool admission, spec.md §4.6 step 5): finality of
// locktime/sequence at state.Height+1 and state's median-time-past.
func (v *TxValidator) Accept(tx *wire.Transaction, state *chainstate.State) error {
	if !isFinalTx(tx, state.Height+1, state.MedianTimePast()) {
		return errcode.New(errcode.InvalidTransaction, "transaction is not final")
	}
	return nil
}

// Connect fans script verification out across tx's inputs over the shared
// priority pool, spec.md §4.6 step 7. utxos[i] is the output referenced by
// tx.TxIn[i], already populated by the store via Store.PopulateOutput.
func (v *TxValidator) Connect(ctx context.Context, executor ScriptExecutor, tx *wire.Transaction, utxos []*wire.TxOut) error {
	return v.pool.ConnectTransaction(ctx, executor, tx, utxos)
}

func isFinalTx(tx *wire.Transaction, height uint64, medianTimePast time.Time) bool {
	if tx.LockTime == 0 {
		return true
	}

	var lockTimeOrHeight int64
	if uint64(tx.LockTime) < lockTimeThreshold {
		lockTimeOrHeight = int64(height)
	} else {
		lockTimeOrHeight = medianTimePast.Unix()
	}
	if int64(tx.LockTime) < lockTimeOrHeight {
		return true
	}

	for _, in := range tx.TxIn {
		if in.Sequence != math.MaxUint32 {
			return false
		}
	}
	return true
}
