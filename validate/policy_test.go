// Copyright (c) 2017-2018 The nox developers

package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSufficientFeeZeroRatesAcceptAnything(t *testing.T) {
	assert.True(t, SufficientFee(plainTx(), 0, 0, 0))
}

func TestSufficientFeeFloorsAtOne(t *testing.T) {
	tx := plainTx()
	assert.True(t, SufficientFee(tx, 1, 0.0000001, 0))
	assert.False(t, SufficientFee(tx, 0, 0.0000001, 0))
}

func TestSufficientFeeScalesWithSizeAndSigops(t *testing.T) {
	tx := plainTx()
	required := uint64(tx.SerializedSize())*2 + uint64(tx.SignatureOperations())*100
	assert.True(t, SufficientFee(tx, required, 2, 100))
	assert.False(t, SufficientFee(tx, required-1, 2, 100))
}
