// Copyright (c) 2017-2018 The nox developers

package validate

import (
	"math"

	"github.com/scristian71/libbitcoin-blockchain/pkg/wire"
)

// SufficientFee implements spec.md §4.6's fee formula: if both byteFee and
// sigopFee are zero, any fee is sufficient; otherwise
// price = max(1, floor(byteFee*serializedSize + sigopFee*sigops)) and paid
// must be at least price. Grounded on the per-byte relay-fee floor in
// _examples/Qitmeer-qitmeer/services/mempool/policy.go, generalized to also
// weigh sigops per spec.md's contract.
func SufficientFee(tx *wire.Transaction, paid uint64, byteFee, sigopFee float64) bool {
	if byteFee == 0 && sigopFee == 0 {
		return true
	}

	price := byteFee*float64(tx.SerializedSize()) + sigopFee*float64(tx.SignatureOperations())
	if price < 1 {
		price = 1
	}
	return paid >= uint64(math.Floor(price))
}
