// Copyright (c) 2017-2018 The nox developers

package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/scristian71/libbitcoin-blockchain/pkg/chainhash"
)

func coinbaseTx() *Transaction {
	return &Transaction{
		Version: 1,
		TxIn: []*TxIn{{
			PreviousOutPoint: OutPoint{Hash: chainhash.ZeroHash, Index: wireNullIndex},
			SignatureScript:  []byte{0x01, 0x02},
		}},
		TxOut: []*TxOut{{Value: 5000000000, PkScript: []byte{0xac}}},
	}
}

func spendingTx(valueIn, valueOut int64) *Transaction {
	return &Transaction{
		Version: 1,
		TxIn: []*TxIn{{
			PreviousOutPoint: OutPoint{Hash: chainhash.Hash{9}, Index: 0},
			SignatureScript:  []byte{0x01},
			ValueIn:          uint64(valueIn),
		}},
		TxOut: []*TxOut{{Value: valueOut, PkScript: []byte{0xac}}},
	}
}

func TestIsCoinBase(t *testing.T) {
	assert.True(t, coinbaseTx().IsCoinBase())
	assert.False(t, spendingTx(100, 90).IsCoinBase())
}

func TestHashIsMemoized(t *testing.T) {
	tx := spendingTx(100, 90)
	first := tx.Hash()
	tx.TxOut[0].Value = 1 // mutate after first Hash(); memoized value must not change
	assert.Equal(t, first, tx.Hash())
}

func TestFeesClampsToZero(t *testing.T) {
	assert.Equal(t, uint64(10), spendingTx(100, 90).Fees())
	assert.Equal(t, uint64(0), spendingTx(50, 90).Fees())
}

func TestIsDusty(t *testing.T) {
	tx := spendingTx(1000, 100)
	assert.True(t, tx.IsDusty(546))
	assert.False(t, tx.IsDusty(50))
}

func TestHasDuplicateInputs(t *testing.T) {
	tx := spendingTx(100, 90)
	tx.TxIn = append(tx.TxIn, &TxIn{PreviousOutPoint: tx.TxIn[0].PreviousOutPoint})
	assert.True(t, tx.HasDuplicateInputs())

	tx2 := spendingTx(100, 90)
	assert.False(t, tx2.HasDuplicateInputs())
}

func TestSignatureOperationsCountsMultisig(t *testing.T) {
	tx := spendingTx(100, 90)
	tx.TxOut[0].PkScript = []byte{0xae} // OP_CHECKMULTISIG
	assert.Equal(t, 2, tx.SignatureOperations()) // 1 input + 1 multisig output
}
