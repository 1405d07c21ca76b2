// Copyright (c) 2017-2018 The nox developers

package chain

import (
	"context"
	"testing"
	"time"

	gometrics "github.com/rcrowley/go-metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scristian71/libbitcoin-blockchain/chaincfg"
	"github.com/scristian71/libbitcoin-blockchain/config"
	"github.com/scristian71/libbitcoin-blockchain/internal/storetest"
	"github.com/scristian71/libbitcoin-blockchain/pkg/chainhash"
	"github.com/scristian71/libbitcoin-blockchain/pkg/wire"
	"github.com/scristian71/libbitcoin-blockchain/validate"
)

type acceptingExecutor struct{}

func (acceptingExecutor) VerifyInput(tx *wire.Transaction, inputIndex int, utxo *wire.TxOut) error {
	return nil
}

func testChain(st *storetest.Store) *Chain {
	cfg := config.Default()
	cfg.PriorityPoolThreads = 2
	cfg.TxPoolMaxOrphans = 100
	cfg.TxPoolExpiry = time.Hour
	cfg.MaxMoney = 21000000 * 100000000
	params := &chaincfg.Params{MedianTimeBlocks: 1}
	return New(cfg, params, st, acceptingExecutor{})
}

const easyBits = 0x207fffff

func mined(t *testing.T, parent *wire.Header, offset time.Duration) *wire.Header {
	h := &wire.Header{
		PrevBlock: parent.Hash(),
		Bits:      easyBits,
		Timestamp: parent.Timestamp.Add(offset),
	}
	v := validate.NewHeaderValidator(&chaincfg.Params{})
	for nonce := uint32(0); nonce < 1<<20; nonce++ {
		h.Nonce = nonce
		if v.Check(h, h.Timestamp.Add(time.Hour)) == nil {
			return h
		}
	}
	t.Fatal("failed to mine a header satisfying the easy test target")
	return nil
}

func genesis(t *testing.T) *wire.Header {
	return mined(t, &wire.Header{Timestamp: time.Unix(1600000000, 0)}, 0)
}

func TestChainOrganizeHeaderAdvancesCandidateTopHeight(t *testing.T) {
	gen := genesis(t)
	st := storetest.New(gen)
	c := testChain(st)

	h1 := mined(t, gen, time.Minute)
	require.NoError(t, c.Organize(h1))

	top, err := c.GetTopHeight(true)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), top)
}

func TestChainOrganizeBlockReorganizesConfirmedOnceOutworked(t *testing.T) {
	gen := genesis(t)
	st := storetest.New(gen)
	c := testChain(st)

	h1 := mined(t, gen, time.Minute)
	require.NoError(t, c.Organize(h1))

	blk := &wire.Block{
		Header: *h1,
		Transactions: []*wire.Transaction{{
			TxIn:  []*wire.TxIn{{PreviousOutPoint: wire.OutPoint{Hash: chainhash.ZeroHash, Index: 0xffffffff}}},
			TxOut: []*wire.TxOut{{Value: 5000000000}},
		}},
	}

	require.NoError(t, c.OrganizeBlock(context.Background(), blk, 1))

	confirmedTop, err := c.GetTopHeight(false)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), confirmedTop)

	fpHeight, fpHash := c.ForkPoint()
	assert.Equal(t, uint64(1), fpHeight)
	assert.Equal(t, h1.Hash(), fpHash)
}

func TestChainOrganizeTxAdmitsSpendableTransaction(t *testing.T) {
	gen := genesis(t)
	st := storetest.New(gen)
	c := testChain(st)

	outpoint := wire.OutPoint{Hash: chainhash.Hash{9}, Index: 0}
	st.SetOutput(outpoint, &wire.TxOut{Value: 200})

	txn := &wire.Transaction{
		TxIn:  []*wire.TxIn{{PreviousOutPoint: outpoint}},
		TxOut: []*wire.TxOut{{Value: 100}},
	}

	require.NoError(t, c.OrganizeTx(context.Background(), txn))
}

func TestChainIsReorganizableReflectsAccumulatedWork(t *testing.T) {
	gen := genesis(t)
	st := storetest.New(gen)
	c := testChain(st)

	assert.False(t, c.IsReorganizable())

	h1 := mined(t, gen, time.Minute)
	require.NoError(t, c.Organize(h1))
	assert.True(t, c.IsReorganizable())
}

func TestChainStopPreventsFurtherOrganize(t *testing.T) {
	gen := genesis(t)
	st := storetest.New(gen)
	c := testChain(st)

	c.Stop()
	assert.True(t, c.Stopped())

	h1 := mined(t, gen, time.Minute)
	err := c.Organize(h1)
	assert.Error(t, err)
}

func TestChainSubscribeHeadersReceivesNotification(t *testing.T) {
	gen := genesis(t)
	st := storetest.New(gen)
	c := testChain(st)

	sub := c.SubscribeHeaders()
	defer sub.Unsubscribe()

	h1 := mined(t, gen, time.Minute)
	require.NoError(t, c.Organize(h1))

	select {
	case v := <-sub.C():
		assert.NotNil(t, v)
	default:
		t.Fatal("expected a header notification")
	}
}

func TestChainMetricsCountsAdmissions(t *testing.T) {
	gen := genesis(t)
	st := storetest.New(gen)
	c := testChain(st)

	h1 := mined(t, gen, time.Minute)
	require.NoError(t, c.Organize(h1))

	assert.EqualValues(t, 1, c.Metrics().Get("chain/headers_admitted").(gometrics.Counter).Count())
}
