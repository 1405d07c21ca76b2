// Copyright (c) 2017-2018 The nox developers

// Package store declares the persistent-store collaborator spec.md §1 and
// §6 treat as external: durable reads/writes over headers, blocks,
// transactions, spends and indexed state flags. This module ships no
// implementation -- the database engine is out of scope (spec.md §1) -- it
// only defines the interface the organizers and facade drive.
//
// The shape follows the teacher's database.DB split between read accessors
// (safe for concurrent callers) and write operations that the facade's
// prioritized mutex serializes (_examples/Qitmeer-qitmeer/core/blockchain
// /dbhelper.go), generalized from Qitmeer's DAG index to the two-chain
// candidate/confirmed model spec.md §3 describes.
package store

import (
	"github.com/scristian71/libbitcoin-blockchain/pkg/chainhash"
	"github.com/scristian71/libbitcoin-blockchain/pkg/wire"
)

// BlockState is a bitmask over the enumeration named in spec.md §3:
// {indexed, stored, valid, invalid, failed, candidate, confirmed}.
type BlockState uint16

const (
	StateIndexed   BlockState = 1 << iota // header is in the candidate index
	StateStored                           // transactions have been persisted
	StateValid                            // passed accept + connect
	StateInvalid                          // sticky: failed validation
	StateFailed                           // store-level failure, not consensus
	StateCandidate                        // spent-marked in the candidate index
	StateConfirmed                        // part of the confirmed chain
)

func (s BlockState) Has(flag BlockState) bool { return s&flag != 0 }

// Store is the persistent backing the chain facade drives under its
// prioritized mutex (spec.md §5 "the store is single-writer, multi-reader
// under the facade's lock").
type Store interface {
	Reader
	Writer
}

// Reader operations are safe for concurrent callers; the organizers also
// call them while holding the facade's write mutex.
type Reader interface {
	// GetHeaderByHeight fetches a header from the candidate or confirmed index by
	// height. candidate selects which of the two chains to read.
	GetHeaderByHeight(height uint64, candidate bool) (*wire.Header, error)
	GetHeaderByHash(hash chainhash.Hash, candidate bool) (*wire.Header, uint64, error)

	GetBlockByHeight(height uint64, candidate bool) (*wire.Block, error)
	GetBlockHash(height uint64, candidate bool) (chainhash.Hash, error)

	GetBlockStateByHeight(height uint64, candidate bool) (BlockState, error)
	GetBlockStateByHash(hash chainhash.Hash) (BlockState, error)

	// GetDownloadable returns the hash of a block at height whose state is
	// (indexed, not stored).
	GetDownloadable(height uint64) (chainhash.Hash, bool, error)
	// GetValidatable returns the hash of a block at height whose state is
	// (stored, not validated).
	GetValidatable(height uint64) (chainhash.Hash, bool, error)

	// PopulateHeader fills cached metadata (height, position) on header
	// prior to validation.
	PopulateHeader(header *wire.Header) error
	// PopulateBlockTransaction fills cached metadata on tx for inclusion
	// in a block at fork_height under the given activation flags.
	PopulateBlockTransaction(tx *wire.Transaction, forks uint32, forkHeight uint64) error
	// PopulatePoolTransaction fills cached metadata on tx for mempool
	// admission under the given activation flags.
	PopulatePoolTransaction(tx *wire.Transaction, forks uint32) error
	// PopulateOutput fetches the output in's PreviousOutPoint references,
	// sets in.ValueIn and in.SpentAtFork relative to forkHeight on the
	// selected chain, and returns the referenced output for the
	// connect-phase script executor to verify against.
	PopulateOutput(in *wire.TxIn, forkHeight uint64, candidate bool) (*wire.TxOut, error)

	// GetTopHeight returns the height of the highest header on the
	// selected chain.
	GetTopHeight(candidate bool) (uint64, error)
}

// Writer operations are issued one at a time under the facade's write
// mutex. Every operation returns an error; any failure during Reorganize
// is fatal (errcode.StoreCorrupted) per spec.md §6.
type Writer interface {
	// Update persists a block's transactions for an already-indexed
	// header at height.
	Update(block *wire.Block, height uint64) error

	// InvalidateHeader marks a single header's validation state.
	InvalidateHeader(hash chainhash.Hash, err error) error
	// InvalidateBlock marks block (and every candidate ancestor up to it)
	// invalid; sticky per spec.md §3 invariant 5.
	InvalidateBlock(block *wire.Block, height uint64, err error) error

	// Candidate marks a validated block's outputs spent in the candidate
	// index.
	Candidate(block *wire.Block) error

	// ReorganizeHeaders atomically rewinds the candidate index to fork
	// and appends incoming, either wholly succeeding or leaving the store
	// untouched.
	ReorganizeHeaders(fork chainhash.Hash, forkHeight uint64, incoming []*wire.Header) error
	// ReorganizeBlocks atomically swaps the confirmed chain to branch
	// starting at branchHeight, either wholly succeeding or leaving the
	// store untouched.
	ReorganizeBlocks(branch []*wire.Block, branchHeight uint64) error

	// Store persists tx as unconfirmed (mempool admission).
	Store(tx *wire.Transaction) error

	// PrimeValidation pushes a validatable identifier onto the
	// downstream validation subscriber.
	PrimeValidation(hash chainhash.Hash, height uint64) error
}
