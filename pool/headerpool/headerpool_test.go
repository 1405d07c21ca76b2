// Copyright (c) 2017-2018 The nox developers

package headerpool

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scristian71/libbitcoin-blockchain/pkg/chainhash"
	"github.com/scristian71/libbitcoin-blockchain/pkg/wire"
	"github.com/scristian71/libbitcoin-blockchain/store"
)

// fakeReader answers GetHeaderByHash against a fixed indexed chain, the
// minimal slice of store.Reader headerpool.Pool actually calls.
type fakeReader struct {
	byHash map[chainhash.Hash]uint64
}

func newFakeReader() *fakeReader {
	return &fakeReader{byHash: make(map[chainhash.Hash]uint64)}
}

func (r *fakeReader) index(h *wire.Header, height uint64) {
	r.byHash[h.Hash()] = height
}

func (r *fakeReader) GetHeaderByHash(hash chainhash.Hash, candidate bool) (*wire.Header, uint64, error) {
	height, ok := r.byHash[hash]
	if !ok {
		return nil, 0, assert.AnError
	}
	return &wire.Header{}, height, nil
}

func (r *fakeReader) GetHeaderByHeight(height uint64, candidate bool) (*wire.Header, error) {
	return nil, assert.AnError
}
func (r *fakeReader) GetBlockByHeight(height uint64, candidate bool) (*wire.Block, error) {
	return nil, assert.AnError
}
func (r *fakeReader) GetBlockHash(height uint64, candidate bool) (chainhash.Hash, error) {
	return chainhash.Hash{}, assert.AnError
}
func (r *fakeReader) GetBlockStateByHeight(height uint64, candidate bool) (store.BlockState, error) {
	return 0, assert.AnError
}
func (r *fakeReader) GetBlockStateByHash(hash chainhash.Hash) (store.BlockState, error) {
	return 0, assert.AnError
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

func header(prev chainhash.Hash, nonce uint32) *wire.Header {
	return &wire.Header{PrevBlock: prev, Nonce: nonce, Timestamp: time.Unix(1700000000, 0)}
}

func TestGetBranchWalksToIndexedAncestor(t *testing.T) {
	reader := newFakeReader()
	indexedTip := header(chainhash.ZeroHash, 0)
	reader.index(indexedTip, 10)

	pool := New(reader)

	h1 := header(indexedTip.Hash(), 1)
	h2 := header(h1.Hash(), 2)
	pool.Add(h1, 11)

	branch, err := pool.GetBranch(h2)
	require.NoError(t, err)
	require.False(t, branch.Empty())
	assert.Equal(t, uint64(10), branch.ForkHeight)
	assert.Len(t, branch.Headers, 2)
	assert.Equal(t, h1.Hash(), branch.Headers[0].Hash())
	assert.Equal(t, h2.Hash(), branch.Headers[1].Hash())
}

func TestGetBranchEmptyWhenAlreadyIndexed(t *testing.T) {
	reader := newFakeReader()
	indexed := header(chainhash.ZeroHash, 0)
	reader.index(indexed, 5)
	pool := New(reader)

	branch, err := pool.GetBranch(indexed)
	require.NoError(t, err)
	assert.True(t, branch.Empty())
}

func TestGetBranchEmptyWhenUnconnected(t *testing.T) {
	reader := newFakeReader()
	pool := New(reader)

	orphan := header(chainhash.Hash{0xff}, 1)
	branch, err := pool.GetBranch(orphan)
	require.NoError(t, err)
	assert.True(t, branch.Empty())
}

func TestAddIsIdempotentByHash(t *testing.T) {
	pool := New(newFakeReader())
	h := header(chainhash.ZeroHash, 7)
	pool.Add(h, 1)
	pool.Add(h, 1)
	assert.Equal(t, 1, pool.Len())
}

func TestEvictStaleDropsOldAbandonedEntries(t *testing.T) {
	pool := New(newFakeReader())
	pool.Add(header(chainhash.ZeroHash, 1), 100)

	pool.EvictStale(500, 50) // 100 + 50 < 500
	assert.Equal(t, 0, pool.Len())
}

func TestEvictStaleKeepsRecentEntries(t *testing.T) {
	pool := New(newFakeReader())
	pool.Add(header(chainhash.ZeroHash, 1), 480)

	pool.EvictStale(500, 50) // 480 + 50 >= 500
	assert.Equal(t, 1, pool.Len())
}

func TestBranchWorkSumsEveryHeader(t *testing.T) {
	b := &Branch{Headers: []*wire.Header{
		{Bits: 0x1d00ffff},
		{Bits: 0x1d00ffff},
	}}
	single := (&wire.Header{Bits: 0x1d00ffff}).Work()
	assert.Equal(t, 0, b.Work().Cmp(single.Add(single)))
}
