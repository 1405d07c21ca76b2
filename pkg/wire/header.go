// Copyright (c) 2017-2018 The nox developers

// Package wire defines the consensus data model of spec.md §3: the 80-byte
// header, the block that extends it with a transaction list, and the
// transaction itself, along with their derived properties (hash, work,
// serialized size, signature-operation count, fees).
package wire

import (
	"bytes"
	"encoding/binary"
	"time"

	"github.com/scristian71/libbitcoin-blockchain/pkg/chainhash"
	"github.com/scristian71/libbitcoin-blockchain/pkg/chainwork"
)

// MaxBlockHeaderPayload is the number of bytes a serialized Header occupies:
// Version 4 + PrevBlock 32 + MerkleRoot 32 + Timestamp 4 + Bits 4 + Nonce 4.
const MaxBlockHeaderPayload = 4 + chainhash.HashSize + chainhash.HashSize + 4 + 4 + 4

// Header is the 80-byte consensus object named in spec.md §3.
type Header struct {
	Version    uint32
	PrevBlock  chainhash.Hash
	MerkleRoot chainhash.Hash
	Timestamp  time.Time
	Bits       uint32
	Nonce      uint32
}

// serialize writes the canonical 80-byte encoding used for hashing.
func (h *Header) serialize() []byte {
	buf := make([]byte, MaxBlockHeaderPayload)
	off := 0
	binary.LittleEndian.PutUint32(buf[off:], h.Version)
	off += 4
	copy(buf[off:], h.PrevBlock[:])
	off += chainhash.HashSize
	copy(buf[off:], h.MerkleRoot[:])
	off += chainhash.HashSize
	binary.LittleEndian.PutUint32(buf[off:], uint32(h.Timestamp.Unix()))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], h.Bits)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], h.Nonce)
	return buf
}

// Hash returns the double-SHA256 hash of the header, its block identity.
// It does not depend on the proof-of-work variant; PowHash is the digest
// that switches to blake256 (pkg/chainhash.Blake256HashH).
func (h *Header) Hash() chainhash.Hash {
	return chainhash.DoubleHashH(h.serialize())
}

// PowHash returns the proof-of-work digest used to evaluate the header
// against its claimed Bits, honoring the scrypt/alternate-hash testnet
// toggle. Block identity (Hash) and PoW evaluation are intentionally
// distinct: a network that rotates its PoW function must not change what a
// block is addressed by.
func (h *Header) PowHash(scryptVariant bool) chainhash.Hash {
	if scryptVariant {
		return chainhash.Blake256HashH(h.serialize())
	}
	return h.Hash()
}

// Work returns this header's contribution to accumulated chain work.
func (h *Header) Work() chainwork.Work {
	return chainwork.NewFromBits(h.Bits)
}

// Equal reports whether two headers serialize identically.
func (h *Header) Equal(other *Header) bool {
	if h == nil || other == nil {
		return h == other
	}
	return bytes.Equal(h.serialize(), other.serialize())
}
