// Copyright (c) 2017-2018 The nox developers

package block

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scristian71/libbitcoin-blockchain/chain/priolock"
	"github.com/scristian71/libbitcoin-blockchain/chaincfg"
	"github.com/scristian71/libbitcoin-blockchain/chainstate"
	"github.com/scristian71/libbitcoin-blockchain/errcode"
	"github.com/scristian71/libbitcoin-blockchain/internal/storetest"
	"github.com/scristian71/libbitcoin-blockchain/pkg/chainhash"
	"github.com/scristian71/libbitcoin-blockchain/pkg/wire"
	"github.com/scristian71/libbitcoin-blockchain/store"
	"github.com/scristian71/libbitcoin-blockchain/validate"
)

type acceptingExecutor struct{}

func (acceptingExecutor) VerifyInput(tx *wire.Transaction, inputIndex int, utxo *wire.TxOut) error {
	return nil
}

func coinbase() *wire.Transaction {
	return &wire.Transaction{
		TxIn:  []*wire.TxIn{{PreviousOutPoint: wire.OutPoint{Hash: chainhash.ZeroHash, Index: 0xffffffff}}},
		TxOut: []*wire.TxOut{{Value: 5000000000}},
	}
}

func indexedBlock(header *wire.Header, txs ...*wire.Transaction) *wire.Block {
	return &wire.Block{Header: *header, Transactions: txs}
}

func newOrganizer(st *storetest.Store) *Organizer {
	return &Organizer{
		Store:     st,
		Validator: validate.NewBlockValidator(validate.NewPriorityPool(2)),
		Executor:  acceptingExecutor{},
		Mutex:     priolock.New(),
		Populator: chainstate.NewStorePopulator(st, &chaincfg.Params{MedianTimeBlocks: 1}),
		MaxMoney:  21000000 * 100000000,
	}
}

func TestOrganizeAcceptsIndexedBlock(t *testing.T) {
	gen := &wire.Header{Timestamp: time.Unix(1600000000, 0)}
	st := storetest.New(gen)

	h1 := &wire.Header{PrevBlock: gen.Hash(), Timestamp: time.Unix(1600000100, 0)}
	require.NoError(t, st.ReorganizeHeaders(gen.Hash(), 0, []*wire.Header{h1}))

	o := newOrganizer(st)
	blk := indexedBlock(h1, coinbase())

	var got Notification
	o.Notify = func(n Notification) { got = n }

	err := o.Organize(context.Background(), blk, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), got.Height)
	assert.Contains(t, st.Updated, blk)
	assert.Contains(t, st.Candidated, blk)
}

func TestOrganizeRejectsBlockWhoseHeaderIsNotIndexed(t *testing.T) {
	gen := &wire.Header{Timestamp: time.Unix(1600000000, 0)}
	st := storetest.New(gen)
	o := newOrganizer(st)

	orphanHeader := &wire.Header{PrevBlock: gen.Hash(), Timestamp: time.Unix(1600000100, 0)}
	blk := indexedBlock(orphanHeader, coinbase())

	err := o.Organize(context.Background(), blk, 1)
	assert.Error(t, err)
}

func TestOrganizeRejectsBlockMissingCoinbase(t *testing.T) {
	gen := &wire.Header{Timestamp: time.Unix(1600000000, 0)}
	st := storetest.New(gen)

	h1 := &wire.Header{PrevBlock: gen.Hash(), Timestamp: time.Unix(1600000100, 0)}
	require.NoError(t, st.ReorganizeHeaders(gen.Hash(), 0, []*wire.Header{h1}))

	o := newOrganizer(st)
	blk := &wire.Block{Header: *h1} // no transactions at all

	err := o.Organize(context.Background(), blk, 1)
	assert.Error(t, err)
}

func TestOrganizeInvalidatesOnAcceptFailure(t *testing.T) {
	gen := &wire.Header{Timestamp: time.Unix(1600000000, 0)}
	st := storetest.New(gen)

	h1 := &wire.Header{PrevBlock: gen.Hash(), Timestamp: time.Unix(1600000100, 0)}
	require.NoError(t, st.ReorganizeHeaders(gen.Hash(), 0, []*wire.Header{h1}))

	o := newOrganizer(st)
	nonFinal := &wire.Transaction{
		TxIn:     []*wire.TxIn{{PreviousOutPoint: wire.OutPoint{Hash: chainhash.Hash{1}, Index: 0}}},
		TxOut:    []*wire.TxOut{{Value: 100}},
		LockTime: 2000000000,
	}
	blk := indexedBlock(h1, coinbase(), nonFinal)

	err := o.Organize(context.Background(), blk, 1)
	require.Error(t, err)
	assert.Contains(t, st.Invalidated, blk)
}

func TestOrganizeReorganizesConfirmedWhenCandidateOutworksIt(t *testing.T) {
	gen := &wire.Header{Timestamp: time.Unix(1600000000, 0)}
	st := storetest.New(gen)

	h1 := &wire.Header{PrevBlock: gen.Hash(), Timestamp: time.Unix(1600000100, 0)}
	require.NoError(t, st.ReorganizeHeaders(gen.Hash(), 0, []*wire.Header{h1}))

	o := newOrganizer(st)
	var reorganized bool
	o.IsReorganizable = func() bool { return true }
	o.ReorganizeConfirmed = func() error { reorganized = true; return nil }

	blk := indexedBlock(h1, coinbase())
	require.NoError(t, o.Organize(context.Background(), blk, 1))
	assert.True(t, reorganized)
}

func TestOrganizeRejectsStickyInvalidBlock(t *testing.T) {
	gen := &wire.Header{Timestamp: time.Unix(1600000000, 0)}
	st := storetest.New(gen)

	h1 := &wire.Header{PrevBlock: gen.Hash(), Timestamp: time.Unix(1600000100, 0)}
	require.NoError(t, st.ReorganizeHeaders(gen.Hash(), 0, []*wire.Header{h1}))

	blk := indexedBlock(h1, coinbase())
	require.NoError(t, st.InvalidateBlock(blk, 1, assertErr{}))

	o := newOrganizer(st)
	err := o.Organize(context.Background(), blk, 1)
	assert.Error(t, err)
	assert.Equal(t, store.StateInvalid, mustState(t, st, blk.Hash())&store.StateInvalid)
}

func TestOrganizeReturnsServiceStoppedWithoutInvalidatingOnCancelledConnect(t *testing.T) {
	gen := &wire.Header{Timestamp: time.Unix(1600000000, 0)}
	st := storetest.New(gen)

	h1 := &wire.Header{PrevBlock: gen.Hash(), Timestamp: time.Unix(1600000100, 0)}
	require.NoError(t, st.ReorganizeHeaders(gen.Hash(), 0, []*wire.Header{h1}))

	spend := wire.OutPoint{Hash: chainhash.Hash{7}, Index: 0}
	st.SetOutput(spend, &wire.TxOut{Value: 200})

	o := newOrganizer(st)
	spender := &wire.Transaction{
		TxIn:  []*wire.TxIn{{PreviousOutPoint: spend}},
		TxOut: []*wire.TxOut{{Value: 100}},
	}
	blk := indexedBlock(h1, coinbase(), spender)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := o.Organize(ctx, blk, 1)
	require.Error(t, err)
	assert.Equal(t, errcode.ServiceStopped, errcode.AsCode(err))
	assert.NotContains(t, st.Invalidated, blk)
}

type assertErr struct{}

func (assertErr) Error() string { return "invalid" }

func mustState(t *testing.T, st *storetest.Store, hash chainhash.Hash) store.BlockState {
	s, err := st.GetBlockStateByHash(hash)
	require.NoError(t, err)
	return s
}
