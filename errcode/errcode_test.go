// Copyright (c) 2017-2018 The nox developers

package errcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatsCodeAndDescription(t *testing.T) {
	err := New(InvalidHeader, "bad timestamp")
	assert.Equal(t, "invalid_header: bad timestamp", err.Error())
}

func TestErrorOmitsColonWithoutDescription(t *testing.T) {
	err := New(ServiceStopped, "")
	assert.Equal(t, "service_stopped", err.Error())
}

func TestAsCodeExtractsRuleError(t *testing.T) {
	err := Newf(InsufficientFee, "paid %d", 5)
	assert.Equal(t, InsufficientFee, AsCode(err))
}

func TestAsCodeDefaultsToOperationFailed(t *testing.T) {
	assert.Equal(t, OperationFailed, AsCode(assertAnError()))
}

func assertAnError() error {
	return &customError{}
}

type customError struct{}

func (customError) Error() string { return "not a RuleError" }

func TestStickyCodes(t *testing.T) {
	assert.True(t, InvalidHeader.Sticky())
	assert.True(t, InvalidBlock.Sticky())
	assert.False(t, InvalidTransaction.Sticky())
	assert.False(t, InsufficientFee.Sticky())
}

func TestFatalCode(t *testing.T) {
	assert.True(t, StoreCorrupted.Fatal())
	assert.False(t, InvalidBlock.Fatal())
}
