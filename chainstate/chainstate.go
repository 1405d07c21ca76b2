// Copyright (c) 2017-2018 The nox developers

// Package chainstate implements the per-height consensus-parameter bundle
// of spec.md §4.8: fork-activation flags, retargeting bits, the
// median-time-past window, height and hash. Consensus constants themselves
// (which bit means what, retargeting math) are the domain of an externally
// supplied chain_state_populator per spec.md §1; this package fixes the
// bundle's shape and the two cheap roll-forward operations (Promote,
// PromoteBranch) plus the cold path (FromHeight) spec.md §4.8 requires,
// grounded on the median-time / version-bits bookkeeping in
// _examples/Qitmeer-qitmeer/core/blockchain/versionbits.go and blocknode.go.
package chainstate

import (
	"sort"
	"time"

	"github.com/scristian71/libbitcoin-blockchain/chaincfg"
	"github.com/scristian71/libbitcoin-blockchain/pkg/chainhash"
	"github.com/scristian71/libbitcoin-blockchain/pkg/wire"
	"github.com/scristian71/libbitcoin-blockchain/store"
)

// State is a ChainState snapshot: the consensus parameters active at a
// given height, shared immutably once constructed (spec.md §3 "Ownership").
type State struct {
	Height    uint64
	Hash      chainhash.Hash
	Bits      uint32
	Timestamp time.Time

	// ActiveForks is a bitmask of which BIP-style activation flags are in
	// effect at this height, populated by the chain_state_populator the
	// way versionbits.go's thresholdConditionChecker resolves deployment
	// state.
	ActiveForks uint32

	// medianTimeWindow holds the timestamps of up to windowSize headers
	// ending at this state's own header, newest first, used to compute
	// MedianTimePast without re-reading the store.
	medianTimeWindow []time.Time

	// windowSize is the configured Params.MedianTimeBlocks this state was
	// built under, carried forward by Promote so a state assembled partway
	// through filling its window (height < MedianTimeBlocks) still caps
	// against the configured size rather than its own, still-growing,
	// length.
	windowSize int
}

// MedianTimePast returns the median of the timestamp window, the value
// validator.accept compares locktime and BIP113 rules against.
func (s *State) MedianTimePast() time.Time {
	if len(s.medianTimeWindow) == 0 {
		return time.Time{}
	}
	sorted := make([]time.Time, len(s.medianTimeWindow))
	copy(sorted, s.medianTimeWindow)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })
	return sorted[len(sorted)/2]
}

// Populator computes chain state from the store, the cold path
// from_height(h) names in spec.md §4.8. It is supplied externally per
// spec.md §1 ("Chain-state computation... is treated as a pure function
// supplied by a chain_state_populator"); this package defines the
// interface and ships storePopulator (NewStorePopulator) as its default,
// mirroring populate_chain_state in
// _examples/original_source/include/bitcoin/blockchain/interface/block_chain.hpp.
type Populator interface {
	FromHeight(height uint64, candidate bool) (*State, error)
}

// storePopulator is the default Populator, reading directly from a Store.
// It reconstructs the median-time window by walking Params.MedianTimeBlocks
// headers backward, and leaves ActiveForks at zero: a real deployment
// supplies its own Populator carrying the network's activation rules, the
// way the teacher's thresholdConditionChecker implementations do per
// deployment bit.
type storePopulator struct {
	reader store.Reader
	params *chaincfg.Params
}

// NewStorePopulator returns the default from_height implementation reading
// through reader under params' median-time window.
func NewStorePopulator(reader store.Reader, params *chaincfg.Params) Populator {
	return &storePopulator{reader: reader, params: params}
}

func (p *storePopulator) FromHeight(height uint64, candidate bool) (*State, error) {
	header, err := p.reader.GetHeaderByHeight(height, candidate)
	if err != nil {
		return nil, err
	}

	window := p.params.MedianTimeBlocks
	if window <= 0 {
		window = 11
	}
	times := make([]time.Time, 0, window)
	times = append(times, header.Timestamp)
	for i := 1; i < window && height >= uint64(i); i++ {
		prior, err := p.reader.GetHeaderByHeight(height-uint64(i), candidate)
		if err != nil {
			break
		}
		times = append(times, prior.Timestamp)
	}

	return &State{
		Height:           height,
		Hash:             header.Hash(),
		Bits:             header.Bits,
		Timestamp:        header.Timestamp,
		medianTimeWindow: times,
		windowSize:       window,
	}, nil
}

// Promote performs the cheap roll-forward of spec.md §4.8: given the state
// at height h and the header at h+1, produce the state at h+1 without
// re-reading the store. Invariant:
// from_height(h+1) == promote(from_height(h), header_at(h+1)).
func Promote(parent *State, header *wire.Header) *State {
	window := make([]time.Time, 0, len(parent.medianTimeWindow)+1)
	window = append(window, header.Timestamp)
	window = append(window, parent.medianTimeWindow...)
	// Cap against the configured window size, not the parent's own
	// length: below height MedianTimeBlocks the window is still filling,
	// so from_height(h+1) carries one more entry than from_height(h) and
	// promote must grow to match rather than freeze at the parent's
	// (shorter) length.
	if cap := parent.windowSize; cap > 0 && len(window) > cap {
		window = window[:cap]
	}

	return &State{
		Height:           parent.Height + 1,
		Hash:             header.Hash(),
		Bits:             header.Bits,
		Timestamp:        header.Timestamp,
		ActiveForks:      parent.ActiveForks,
		medianTimeWindow: window,
		windowSize:       parent.windowSize,
	}
}

// PromoteBranch folds Promote along every header in a branch, in order.
func PromoteBranch(parent *State, headers []*wire.Header) *State {
	state := parent
	for _, h := range headers {
		state = Promote(state, h)
	}
	return state
}
