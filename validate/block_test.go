// Copyright (c) 2017-2018 The nox developers

package validate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/scristian71/libbitcoin-blockchain/chainstate"
	"github.com/scristian71/libbitcoin-blockchain/pkg/chainhash"
	"github.com/scristian71/libbitcoin-blockchain/pkg/wire"
)

func coinbase() *wire.Transaction {
	return &wire.Transaction{
		TxIn:  []*wire.TxIn{{PreviousOutPoint: wire.OutPoint{Hash: chainhash.ZeroHash, Index: 0xffffffff}}},
		TxOut: []*wire.TxOut{{Value: 5000000000}},
	}
}

func TestBlockValidatorCheckRequiresCoinbaseFirst(t *testing.T) {
	block := &wire.Block{Transactions: []*wire.Transaction{plainTx()}}
	v := NewBlockValidator(NewPriorityPool(1))
	assert.Error(t, v.Check(block, 21000000*100000000))
}

func TestBlockValidatorCheckRejectsExtraCoinbase(t *testing.T) {
	block := &wire.Block{Transactions: []*wire.Transaction{coinbase(), coinbase()}}
	v := NewBlockValidator(NewPriorityPool(1))
	assert.Error(t, v.Check(block, 21000000*100000000))
}

func TestBlockValidatorCheckAcceptsOrdinaryBlock(t *testing.T) {
	block := &wire.Block{Transactions: []*wire.Transaction{coinbase(), plainTx()}}
	v := NewBlockValidator(NewPriorityPool(1))
	assert.NoError(t, v.Check(block, 21000000*100000000))
}

func TestBlockValidatorAcceptRejectsNonFinalMember(t *testing.T) {
	tx := plainTx()
	tx.LockTime = 999999999
	block := &wire.Block{Transactions: []*wire.Transaction{coinbase(), tx}}

	v := NewBlockValidator(NewPriorityPool(1))
	state := chainstate.Promote(&chainstate.State{}, &wire.Header{Timestamp: time.Unix(1000, 0)})
	assert.Error(t, v.Accept(block, state))
}

func TestBlockValidatorConnectSkipsCoinbase(t *testing.T) {
	block := &wire.Block{Transactions: []*wire.Transaction{coinbase(), plainTx()}}
	utxos := [][]*wire.TxOut{nil, {{Value: 200}}}

	v := NewBlockValidator(NewPriorityPool(2))
	assert.NoError(t, v.Connect(context.Background(), acceptingExecutor{}, block, utxos))
}
