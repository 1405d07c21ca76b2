// Copyright (c) 2017-2018 The nox developers

package wire

import "github.com/scristian71/libbitcoin-blockchain/pkg/chainhash"

// Block is a Header plus its ordered transaction list; the first
// transaction is the coinbase (spec.md §3).
type Block struct {
	Header       Header
	Transactions []*Transaction
}

// Hash returns the block's identity, which is its header hash.
func (b *Block) Hash() chainhash.Hash {
	return b.Header.Hash()
}

// Coinbase returns the block's first transaction, or nil for an empty
// block (rejected by validator.check before this is ever called in
// practice).
func (b *Block) Coinbase() *Transaction {
	if len(b.Transactions) == 0 {
		return nil
	}
	return b.Transactions[0]
}

// SerializedSize returns the sum of the header size and every
// transaction's canonical serialized size.
func (b *Block) SerializedSize() int {
	size := MaxBlockHeaderPayload
	size += varIntLen(uint64(len(b.Transactions)))
	for _, tx := range b.Transactions {
		size += tx.SerializedSize()
	}
	return size
}

// SignatureOperations sums the signature-operation count across every
// transaction in the block, used against the block-level sigop budget in
// validator.accept.
func (b *Block) SignatureOperations() int {
	total := 0
	for _, tx := range b.Transactions {
		total += tx.SignatureOperations()
	}
	return total
}

// Fees sums the fees of every non-coinbase transaction in the block.
func (b *Block) Fees() uint64 {
	var total uint64
	for i, tx := range b.Transactions {
		if i == 0 {
			continue // coinbase claims fees, does not pay them
		}
		total += tx.Fees()
	}
	return total
}
