// Copyright (c) 2017-2018 The nox developers

package validate

import (
	"context"

	"github.com/scristian71/libbitcoin-blockchain/chainstate"
	"github.com/scristian71/libbitcoin-blockchain/errcode"
	"github.com/scristian71/libbitcoin-blockchain/pkg/wire"
)

// MaxBlockSigOps bounds the sigop budget checked in accept, grounded on
// _examples/Qitmeer-qitmeer/core/blockchain/const.go's MaxSigOpsPerBlock
// (1,000,000 / 50 bytes-per-sigop).
const MaxBlockSigOps = 1000000 / 50

// MaxBlockBytes bounds a block's canonical serialized size.
const MaxBlockBytes = 4000000

// BlockValidator implements spec.md §4.3's three phases for blocks.
// Grounded on checkBlockSanity/CheckConnectBlock in
// _examples/Qitmeer-qitmeer/core/blockchain/validate.go; connect is
// delegated to PriorityPool.ConnectBlock.
type BlockValidator struct {
	pool *PriorityPool
}

// NewBlockValidator returns a BlockValidator whose connect phase fans out
// over pool.
func NewBlockValidator(pool *PriorityPool) *BlockValidator {
	return &BlockValidator{pool: pool}
}

// Check performs context-free structural validation: a coinbase-first
// transaction list, size and sigop budgets, and, for every non-coinbase
// member, no duplicate inputs and output amounts within maxMoney. It does
// not run TxValidator.Check, so empty input or output lists are not
// rejected here.
func (v *BlockValidator) Check(block *wire.Block, maxMoney uint64) error {
	if len(block.Transactions) == 0 {
		return errcode.New(errcode.InvalidBlock, "block has no transactions")
	}
	if !block.Transactions[0].IsCoinBase() {
		return errcode.New(errcode.InvalidBlock, "first transaction is not a coinbase")
	}
	for _, tx := range block.Transactions[1:] {
		if tx.IsCoinBase() {
			return errcode.New(errcode.InvalidBlock, "multiple coinbase transactions")
		}
	}

	if block.SerializedSize() > MaxBlockBytes {
		return errcode.Newf(errcode.InvalidBlock, "serialized block size %d exceeds max %d", block.SerializedSize(), MaxBlockBytes)
	}
	if block.SignatureOperations() > MaxBlockSigOps {
		return errcode.Newf(errcode.InvalidBlock, "block sigops %d exceeds max %d", block.SignatureOperations(), MaxBlockSigOps)
	}

	for _, tx := range block.Transactions[1:] {
		if tx.HasDuplicateInputs() {
			return errcode.New(errcode.InvalidBlock, "transaction contains duplicate inputs")
		}
		var total uint64
		for _, out := range tx.TxOut {
			if out.Value < 0 || uint64(out.Value) > maxMoney {
				return errcode.Newf(errcode.InvalidBlock, "output value %d out of range", out.Value)
			}
			total += uint64(out.Value)
			if total > maxMoney {
				return errcode.New(errcode.InvalidBlock, "total output value exceeds max_money")
			}
		}
	}

	return nil
}

// Accept validates block against state, the chain-state at the block's
// parent (spec.md §4.5 step 5): every non-coinbase transaction must be
// final at the block's height and its parent's median-time-past.
func (v *BlockValidator) Accept(block *wire.Block, state *chainstate.State) error {
	height := state.Height + 1
	medianTimePast := state.MedianTimePast()
	for _, tx := range block.Transactions[1:] {
		if !isFinalTx(tx, height, medianTimePast) {
			return errcode.New(errcode.InvalidBlock, "block contains a non-final transaction")
		}
	}
	return nil
}

// Connect fans script verification out across every non-coinbase
// transaction in block over the shared priority pool, awaiting a single
// completion signal for the block (spec.md §4.5 step 6). utxos[i][j] is
// the output referenced by block.Transactions[i].TxIn[j].
func (v *BlockValidator) Connect(ctx context.Context, executor ScriptExecutor, block *wire.Block, utxos [][]*wire.TxOut) error {
	return v.pool.ConnectBlock(ctx, executor, block, utxos)
}
