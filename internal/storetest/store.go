// Copyright (c) 2017-2018 The nox developers

// Package storetest provides an in-memory store.Store for exercising the
// organizers and the chain facade in tests, the same role
// _examples/Qitmeer-qitmeer/testutils plays for the teacher's integration
// suite, scoped down to a single-process fake with no network or database
// dependency.
package storetest

import (
	"sync"

	"github.com/scristian71/libbitcoin-blockchain/pkg/chainhash"
	"github.com/scristian71/libbitcoin-blockchain/pkg/wire"
	"github.com/scristian71/libbitcoin-blockchain/store"
)

type chain struct {
	headers []*wire.Header // index 0 is height 0 (genesis)
	blocks  []*wire.Block  // nil entry means not yet stored
}

// Store is an in-memory store.Store. It keeps two independent chains
// (candidate, confirmed) plus a state bitmask per hash, and deliberately
// performs no consistency checking beyond what Store's contract requires:
// tests drive it directly to set up fixtures.
type Store struct {
	mu sync.Mutex

	candidate chain
	confirmed chain

	states  map[chainhash.Hash]store.BlockState
	outputs map[wire.OutPoint]*wire.TxOut

	// Updated, Invalidated and Candidated record write calls for
	// assertions, mirroring the spy pattern the teacher's own mock
	// backends use in _test.go files.
	Updated      []*wire.Block
	Invalidated  []*wire.Block
	Candidated   []*wire.Block
	Reorganized  [][]*wire.Header
	BlockReorgs  [][]*wire.Block
	Stored       []*wire.Transaction
}

// New returns an empty store seeded with a genesis header at height 0 on
// both chains.
func New(genesis *wire.Header) *Store {
	s := &Store{states: make(map[chainhash.Hash]store.BlockState)}
	s.candidate.headers = append(s.candidate.headers, genesis)
	s.confirmed.headers = append(s.confirmed.headers, genesis)
	s.candidate.blocks = append(s.candidate.blocks, nil)
	s.confirmed.blocks = append(s.confirmed.blocks, nil)
	s.states[genesis.Hash()] = store.StateIndexed | store.StateStored | store.StateValid | store.StateCandidate | store.StateConfirmed
	return s
}

func (s *Store) chainFor(candidate bool) *chain {
	if candidate {
		return &s.candidate
	}
	return &s.confirmed
}

func (s *Store) GetHeaderByHeight(height uint64, candidate bool) (*wire.Header, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.chainFor(candidate)
	if height >= uint64(len(c.headers)) {
		return nil, errNotFound
	}
	return c.headers[height], nil
}

func (s *Store) GetHeaderByHash(hash chainhash.Hash, candidate bool) (*wire.Header, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.chainFor(candidate)
	for h, hdr := range c.headers {
		if hdr.Hash() == hash {
			return hdr, uint64(h), nil
		}
	}
	return nil, 0, errNotFound
}

func (s *Store) GetBlockByHeight(height uint64, candidate bool) (*wire.Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.chainFor(candidate)
	if height >= uint64(len(c.blocks)) || c.blocks[height] == nil {
		return nil, errNotFound
	}
	return c.blocks[height], nil
}

func (s *Store) GetBlockHash(height uint64, candidate bool) (chainhash.Hash, error) {
	h, err := s.GetHeaderByHeight(height, candidate)
	if err != nil {
		return chainhash.Hash{}, err
	}
	return h.Hash(), nil
}

func (s *Store) GetBlockStateByHeight(height uint64, candidate bool) (store.BlockState, error) {
	h, err := s.GetHeaderByHeight(height, candidate)
	if err != nil {
		return 0, err
	}
	return s.GetBlockStateByHash(h.Hash())
}

func (s *Store) GetBlockStateByHash(hash chainhash.Hash) (store.BlockState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[hash], nil
}

func (s *Store) GetDownloadable(height uint64) (chainhash.Hash, bool, error) {
	return chainhash.Hash{}, false, nil
}
func (s *Store) GetValidatable(height uint64) (chainhash.Hash, bool, error) {
	return chainhash.Hash{}, false, nil
}
func (s *Store) PopulateHeader(header *wire.Header) error { return nil }
func (s *Store) PopulateBlockTransaction(tx *wire.Transaction, forks uint32, forkHeight uint64) error {
	return nil
}
func (s *Store) PopulatePoolTransaction(tx *wire.Transaction, forks uint32) error { return nil }

func (s *Store) PopulateOutput(in *wire.TxIn, forkHeight uint64, candidate bool) (*wire.TxOut, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out, ok := s.outputs[in.PreviousOutPoint]
	if !ok {
		return nil, errNotFound
	}
	in.ValueIn = uint64(out.Value)
	return out, nil
}

// SetOutput registers the output a fixture transaction's input should
// resolve to via PopulateOutput.
func (s *Store) SetOutput(outpoint wire.OutPoint, out *wire.TxOut) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outputs == nil {
		s.outputs = make(map[wire.OutPoint]*wire.TxOut)
	}
	s.outputs[outpoint] = out
}

func (s *Store) GetTopHeight(candidate bool) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.chainFor(candidate)
	return uint64(len(c.headers) - 1), nil
}

func (s *Store) Update(block *wire.Block, height uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &s.candidate
	for uint64(len(c.blocks)) <= height {
		c.blocks = append(c.blocks, nil)
	}
	c.blocks[height] = block
	s.states[block.Hash()] |= store.StateStored
	s.Updated = append(s.Updated, block)
	return nil
}

func (s *Store) InvalidateHeader(hash chainhash.Hash, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[hash] |= store.StateInvalid
	return nil
}

func (s *Store) InvalidateBlock(block *wire.Block, height uint64, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[block.Hash()] |= store.StateInvalid
	s.Invalidated = append(s.Invalidated, block)
	return nil
}

func (s *Store) Candidate(block *wire.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[block.Hash()] |= store.StateValid | store.StateCandidate
	s.Candidated = append(s.Candidated, block)
	return nil
}

func (s *Store) ReorganizeHeaders(fork chainhash.Hash, forkHeight uint64, incoming []*wire.Header) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.candidate.headers = s.candidate.headers[:forkHeight+1]
	s.candidate.blocks = s.candidate.blocks[:forkHeight+1]
	for _, h := range incoming {
		s.candidate.headers = append(s.candidate.headers, h)
		s.candidate.blocks = append(s.candidate.blocks, nil)
		s.states[h.Hash()] |= store.StateIndexed
	}
	s.Reorganized = append(s.Reorganized, incoming)
	return nil
}

func (s *Store) ReorganizeBlocks(branch []*wire.Block, branchHeight uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.confirmed.headers = s.confirmed.headers[:branchHeight]
	s.confirmed.blocks = s.confirmed.blocks[:branchHeight]
	for _, b := range branch {
		hdr := b.Header
		s.confirmed.headers = append(s.confirmed.headers, &hdr)
		s.confirmed.blocks = append(s.confirmed.blocks, b)
		s.states[b.Hash()] |= store.StateConfirmed
	}
	s.BlockReorgs = append(s.BlockReorgs, branch)
	return nil
}

func (s *Store) Store(tx *wire.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Stored = append(s.Stored, tx)
	return nil
}

func (s *Store) PrimeValidation(hash chainhash.Hash, height uint64) error { return nil }

var errNotFound = notFoundError{}

type notFoundError struct{}

func (notFoundError) Error() string { return "storetest: not found" }
