// Copyright (c) 2017-2018 The nox developers

package chainstate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scristian71/libbitcoin-blockchain/chaincfg"
	"github.com/scristian71/libbitcoin-blockchain/pkg/chainhash"
	"github.com/scristian71/libbitcoin-blockchain/pkg/wire"
	"github.com/scristian71/libbitcoin-blockchain/store"
)

type fakeReader struct {
	headers map[uint64]*wire.Header
}

func (r *fakeReader) GetHeaderByHeight(height uint64, candidate bool) (*wire.Header, error) {
	h, ok := r.headers[height]
	if !ok {
		return nil, assertError{}
	}
	return h, nil
}

type assertError struct{}

func (assertError) Error() string { return "not found" }

func (r *fakeReader) GetHeaderByHash(hash chainhash.Hash, candidate bool) (*wire.Header, uint64, error) {
	return nil, 0, assertError{}
}
func (r *fakeReader) GetBlockByHeight(height uint64, candidate bool) (*wire.Block, error) {
	return nil, assertError{}
}
func (r *fakeReader) GetBlockHash(height uint64, candidate bool) (chainhash.Hash, error) {
	return chainhash.Hash{}, assertError{}
}
func (r *fakeReader) GetBlockStateByHeight(height uint64, candidate bool) (store.BlockState, error) {
	return 0, assertError{}
}
func (r *fakeReader) GetBlockStateByHash(hash chainhash.Hash) (store.BlockState, error) {
	return 0, assertError{}
}
func (r *fakeReader) GetDownloadable(height uint64) (chainhash.Hash, bool, error) {
	return chainhash.Hash{}, false, nil
}
func (r *fakeReader) GetValidatable(height uint64) (chainhash.Hash, bool, error) {
	return chainhash.Hash{}, false, nil
}
func (r *fakeReader) PopulateHeader(header *wire.Header) error { return nil }
func (r *fakeReader) PopulateBlockTransaction(tx *wire.Transaction, forks uint32, forkHeight uint64) error {
	return nil
}
func (r *fakeReader) PopulatePoolTransaction(tx *wire.Transaction, forks uint32) error { return nil }
func (r *fakeReader) PopulateOutput(in *wire.TxIn, forkHeight uint64, candidate bool) (*wire.TxOut, error) {
	return nil, nil
}
func (r *fakeReader) GetTopHeight(candidate bool) (uint64, error) { return 0, nil }

func TestFromHeightBuildsMedianTimeWindow(t *testing.T) {
	reader := &fakeReader{headers: map[uint64]*wire.Header{
		5: {Bits: 0x1d00ffff, Timestamp: time.Unix(1000, 0)},
		4: {Timestamp: time.Unix(900, 0)},
		3: {Timestamp: time.Unix(800, 0)},
	}}
	params := &chaincfg.Params{MedianTimeBlocks: 3}
	pop := NewStorePopulator(reader, params)

	state, err := pop.FromHeight(5, true)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), state.Height)
	assert.Equal(t, time.Unix(900, 0), state.MedianTimePast())
}

func TestPromoteAdvancesHeightAndWindow(t *testing.T) {
	parent := &State{Height: 10, medianTimeWindow: []time.Time{time.Unix(500, 0)}}
	child := Promote(parent, &wire.Header{Bits: 0x1d00ffff, Timestamp: time.Unix(600, 0)})

	assert.Equal(t, uint64(11), child.Height)
	assert.Equal(t, time.Unix(600, 0), child.Timestamp)
}

func TestPromoteMatchesFromHeightBeforeWindowFills(t *testing.T) {
	reader := &fakeReader{headers: map[uint64]*wire.Header{
		0: {Timestamp: time.Unix(100, 0)},
		1: {Timestamp: time.Unix(200, 0)},
		2: {Timestamp: time.Unix(300, 0)},
	}}
	params := &chaincfg.Params{MedianTimeBlocks: 11}
	pop := NewStorePopulator(reader, params)

	fromHeight1, err := pop.FromHeight(1, true)
	require.NoError(t, err)
	fromHeight2, err := pop.FromHeight(2, true)
	require.NoError(t, err)

	promoted := Promote(fromHeight1, reader.headers[2])

	assert.Equal(t, fromHeight2.Height, promoted.Height)
	assert.Equal(t, fromHeight2.MedianTimePast(), promoted.MedianTimePast())
}

func TestPromoteBranchFoldsEveryHeader(t *testing.T) {
	parent := &State{Height: 0}
	branch := []*wire.Header{
		{Timestamp: time.Unix(1, 0)},
		{Timestamp: time.Unix(2, 0)},
		{Timestamp: time.Unix(3, 0)},
	}
	final := PromoteBranch(parent, branch)
	assert.Equal(t, uint64(3), final.Height)
	assert.Equal(t, time.Unix(3, 0), final.Timestamp)
}
