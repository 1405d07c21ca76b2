// Copyright (c) 2017-2018 The nox developers

// Package chain implements spec.md §4.7: the facade that owns the store
// handle, the prioritized write mutex, the script-validation priority
// pool, the header and transaction pools, the three organizers, their
// subscribers, and the atomic tip cache. Grounded on the BlockChain
// facade's role in
// _examples/Qitmeer-qitmeer/core/blockchain/blockchain.go (ProcessBlock,
// index state, best-chain bookkeeping), generalized from Qitmeer's DAG
// index to the two-chain candidate/confirmed model spec.md §3 describes.
package chain

import (
	"context"
	"sync/atomic"
	"time"

	gometrics "github.com/rcrowley/go-metrics"

	"github.com/scristian71/libbitcoin-blockchain/chain/priolock"
	"github.com/scristian71/libbitcoin-blockchain/chaincfg"
	"github.com/scristian71/libbitcoin-blockchain/chainstate"
	"github.com/scristian71/libbitcoin-blockchain/config"
	"github.com/scristian71/libbitcoin-blockchain/errcode"
	"github.com/scristian71/libbitcoin-blockchain/organize/block"
	"github.com/scristian71/libbitcoin-blockchain/organize/header"
	"github.com/scristian71/libbitcoin-blockchain/organize/tx"
	"github.com/scristian71/libbitcoin-blockchain/pkg/chainhash"
	"github.com/scristian71/libbitcoin-blockchain/pkg/chainwork"
	"github.com/scristian71/libbitcoin-blockchain/pkg/wire"
	"github.com/scristian71/libbitcoin-blockchain/pool/headerpool"
	"github.com/scristian71/libbitcoin-blockchain/pool/txpool"
	"github.com/scristian71/libbitcoin-blockchain/store"
	"github.com/scristian71/libbitcoin-blockchain/validate"
)

// forkPointSnapshot names the highest indexed height at which the
// candidate and confirmed chains agree (spec.md §3 "Two tips").
type forkPointSnapshot struct {
	Height uint64
	Hash   chainhash.Hash
}

// Chain is the facade of spec.md §4.7. The zero value is not usable; build
// one with New.
type Chain struct {
	st        store.Store
	params    *chaincfg.Params
	cfg       *config.Config
	populator chainstate.Populator

	mutex        *priolock.Mutex
	priorityPool *validate.PriorityPool
	executor     validate.ScriptExecutor

	headerPool *headerpool.Pool
	txPool     *txpool.Pool

	headerOrganizer *header.Organizer
	blockOrganizer  *block.Organizer
	txOrganizer     *tx.Organizer

	headerSubs *subscriberSet
	blockSubs  *subscriberSet
	txSubs     *subscriberSet

	stopped int32
	stopCh  chan struct{}

	// metrics counts admission and reorganize events, mirroring the
	// registry shape the teacher builds once per process and hands to
	// every subsystem.
	metrics           gometrics.Registry
	headersAdmitted   gometrics.Counter
	blocksAdmitted    gometrics.Counter
	txsAdmitted       gometrics.Counter
	headerReorgs      gometrics.Counter
	confirmedReorgs   gometrics.Counter

	forkPoint              atomic.Value // forkPointSnapshot
	candidateWork          atomic.Value // chainwork.Work
	confirmedWork          atomic.Value // chainwork.Work
	topCandidateState      atomic.Value // *chainstate.State
	topValidCandidateState atomic.Value // *chainstate.State
	nextConfirmedState     atomic.Value // *chainstate.State
}

// New wires a Chain over st, grounded by params and cfg. executor performs
// the connect-phase script verification spec.md §1 treats as an external
// collaborator.
func New(cfg *config.Config, params *chaincfg.Params, st store.Store, executor validate.ScriptExecutor) *Chain {
	c := &Chain{
		st:           st,
		params:       params,
		cfg:          cfg,
		populator:    chainstate.NewStorePopulator(st, params),
		mutex:        priolock.New(),
		priorityPool: validate.NewPriorityPool(cfg.PriorityPoolThreads),
		executor:     executor,
		headerPool:   headerpool.New(st),
		txPool:       txpool.New(cfg.TxPoolMaxOrphans, cfg.TxPoolExpiry),
		headerSubs:   newSubscriberSet(),
		blockSubs:    newSubscriberSet(),
		txSubs:       newSubscriberSet(),
		metrics:      gometrics.NewRegistry(),
		stopCh:       make(chan struct{}),
	}
	c.headersAdmitted = gometrics.NewRegisteredCounter("chain/headers_admitted", c.metrics)
	c.blocksAdmitted = gometrics.NewRegisteredCounter("chain/blocks_admitted", c.metrics)
	c.txsAdmitted = gometrics.NewRegisteredCounter("chain/txs_admitted", c.metrics)
	c.headerReorgs = gometrics.NewRegisteredCounter("chain/header_reorganizes", c.metrics)
	c.confirmedReorgs = gometrics.NewRegisteredCounter("chain/confirmed_reorganizes", c.metrics)

	c.headerOrganizer = &header.Organizer{
		Store:     st,
		Pool:      c.headerPool,
		Validator: validate.NewHeaderValidator(params),
		Mutex:     c.mutex,
		Populator: c.populator,
		GetWork: func(aboveHeight uint64, cap chainwork.Work) chainwork.Work {
			return c.getWork(aboveHeight, true, &cap)
		},
		Stopped: c.Stopped,
		Notify: func(n header.Notification) {
			c.headersAdmitted.Inc(int64(len(n.Incoming)))
			c.headerReorgs.Inc(1)
			c.refreshTipCaches()
			c.headerPool.EvictStale(n.ForkHeight, c.cfg.HeaderPoolBranchThreshold)
			c.headerSubs.notify(n)
		},
	}

	c.blockOrganizer = &block.Organizer{
		Store:           st,
		Validator:       validate.NewBlockValidator(c.priorityPool),
		Executor:        executor,
		Mutex:           c.mutex,
		Populator:       c.populator,
		MaxMoney:        cfg.MaxMoney,
		IsReorganizable: c.isReorganizableLocked,
		ReorganizeConfirmed: func() error {
			return c.reorganizeConfirmed()
		},
		Notify: func(n block.Notification) {
			c.blocksAdmitted.Inc(1)
			c.refreshTipCaches()
			c.blockSubs.notify(n)
		},
		Stopped:    c.Stopped,
		StopSignal: c.stopCh,
	}

	c.txOrganizer = &tx.Organizer{
		Store:                 st,
		Pool:                  c.txPool,
		Validator:             validate.NewTxValidator(c.priorityPool),
		Executor:              executor,
		Mutex:                 c.mutex,
		Populator:             c.populator,
		MaxMoney:              cfg.MaxMoney,
		ByteFeeSatoshis:       cfg.ByteFeeSatoshis,
		SigopFeeSatoshis:      cfg.SigopFeeSatoshis,
		MinimumOutputSatoshis: cfg.MinimumOutputSatoshis,
		Notify: func(n tx.Notification) {
			c.txsAdmitted.Inc(1)
			c.txSubs.notify(n)
		},
		Stopped:    c.Stopped,
		StopSignal: c.stopCh,
	}

	c.refreshTipCaches()
	return c
}

// Organize admits one header, spec.md §4.4.
func (c *Chain) Organize(candidate *wire.Header) error {
	return c.headerOrganizer.Organize(candidate)
}

// OrganizeBlock admits one block body at height, spec.md §4.5.
func (c *Chain) OrganizeBlock(ctx context.Context, candidate *wire.Block, height uint64) error {
	return c.blockOrganizer.Organize(ctx, candidate, height)
}

// OrganizeTx admits one unconfirmed transaction, spec.md §4.6.
func (c *Chain) OrganizeTx(ctx context.Context, candidate *wire.Transaction) error {
	return c.txOrganizer.Organize(ctx, candidate)
}

// GetTopHeight returns the height of the tip of the selected chain.
func (c *Chain) GetTopHeight(candidate bool) (uint64, error) {
	return c.st.GetTopHeight(candidate)
}

// GetHeader returns the header at height on the selected chain.
func (c *Chain) GetHeader(height uint64, candidate bool) (*wire.Header, error) {
	return c.st.GetHeaderByHeight(height, candidate)
}

// GetBlock returns the block at height on the selected chain.
func (c *Chain) GetBlock(height uint64, candidate bool) (*wire.Block, error) {
	return c.st.GetBlockByHeight(height, candidate)
}

// GetBlockHash returns the hash at height on the selected chain.
func (c *Chain) GetBlockHash(height uint64, candidate bool) (chainhash.Hash, error) {
	return c.st.GetBlockHash(height, candidate)
}

// GetBlockState returns the state flags for the block at height on the
// selected chain.
func (c *Chain) GetBlockState(height uint64, candidate bool) (store.BlockState, error) {
	return c.st.GetBlockStateByHeight(height, candidate)
}

// GetWork returns the accumulated work of the selected chain from
// above_height+1 up to its tip, stopping early once the running sum meets
// cap (spec.md §4.7). A nil cap computes the unbounded sum.
func (c *Chain) GetWork(aboveHeight uint64, candidate bool, cap *chainwork.Work) chainwork.Work {
	return c.getWork(aboveHeight, candidate, cap)
}

func (c *Chain) getWork(aboveHeight uint64, candidate bool, cap *chainwork.Work) chainwork.Work {
	top, err := c.st.GetTopHeight(candidate)
	if err != nil {
		return chainwork.Zero()
	}

	total := chainwork.Zero()
	for h := aboveHeight + 1; h <= top; h++ {
		hdr, err := c.st.GetHeaderByHeight(h, candidate)
		if err != nil {
			break
		}
		total = total.Add(hdr.Work())
		if cap != nil && total.Cmp(*cap) >= 0 {
			break
		}
	}
	return total
}

// ForkPoint returns the highest indexed height at which the candidate and
// confirmed chains agree, along with its hash.
func (c *Chain) ForkPoint() (uint64, chainhash.Hash) {
	fp, _ := c.forkPoint.Load().(forkPointSnapshot)
	return fp.Height, fp.Hash
}

// TopCandidateState returns the cached chain-state at the candidate tip.
func (c *Chain) TopCandidateState() *chainstate.State {
	state, _ := c.topCandidateState.Load().(*chainstate.State)
	return state
}

// TopValidCandidateState returns the cached chain-state at the highest
// validated (connect-passed) candidate block.
func (c *Chain) TopValidCandidateState() *chainstate.State {
	state, _ := c.topValidCandidateState.Load().(*chainstate.State)
	return state
}

// NextConfirmedState returns the cached chain-state at the confirmed tip,
// the view validator.accept runs mempool admissions against. The state is
// not advanced to the next height; TxValidator.Accept evaluates finality
// at its Height+1.
func (c *Chain) NextConfirmedState() *chainstate.State {
	state, _ := c.nextConfirmedState.Load().(*chainstate.State)
	return state
}

// IsReorganizable reports whether the candidate chain's accumulated work
// above fork_point exceeds the confirmed chain's, computed under the
// facade's lock for joint consistency (spec.md §4.7, §9).
func (c *Chain) IsReorganizable() bool {
	c.mutex.LockHigh()
	defer c.mutex.Unlock()
	return c.isReorganizableLocked()
}

// isReorganizableLocked assumes the caller already holds c.mutex; the
// block organizer calls it directly from inside its own held lock rather
// than recursing through IsReorganizable.
func (c *Chain) isReorganizableLocked() bool {
	candidateWork, _ := c.candidateWork.Load().(chainwork.Work)
	confirmedWork, _ := c.confirmedWork.Load().(chainwork.Work)
	return candidateWork.GreaterThan(confirmedWork)
}

// IsCandidatesStale reports whether the candidate tip's timestamp is older
// than config.Config.NotifyLimitHours relative to now.
func (c *Chain) IsCandidatesStale(now time.Time) bool {
	return isStale(c.TopCandidateState(), now, c.cfg.NotifyLimitHours)
}

// IsValidatedStale reports whether the highest validated candidate's
// timestamp is older than the configured threshold.
func (c *Chain) IsValidatedStale(now time.Time) bool {
	return isStale(c.TopValidCandidateState(), now, c.cfg.NotifyLimitHours)
}

// IsBlocksStale reports whether the confirmed tip's timestamp is older
// than the configured threshold.
func (c *Chain) IsBlocksStale(now time.Time) bool {
	return isStale(c.NextConfirmedState(), now, c.cfg.NotifyLimitHours)
}

func isStale(state *chainstate.State, now time.Time, limitHours uint32) bool {
	if state == nil {
		return true
	}
	return now.Sub(state.Timestamp) > time.Duration(limitHours)*time.Hour
}

// Metrics returns the facade's admission/reorganize counters, for an
// embedder to expose however it exposes the rest of its process metrics.
func (c *Chain) Metrics() gometrics.Registry {
	return c.metrics
}

// SubscribeHeaders registers a consumer of header.Notification values.
func (c *Chain) SubscribeHeaders() *Subscription { return c.headerSubs.Subscribe() }

// SubscribeBlocks registers a consumer of block.Notification values.
func (c *Chain) SubscribeBlocks() *Subscription { return c.blockSubs.Subscribe() }

// SubscribeTransactions registers a consumer of tx.Notification values.
func (c *Chain) SubscribeTransactions() *Subscription { return c.txSubs.Subscribe() }

// Stop sets the stopped flag and closes stopCh, which cancels the context
// any in-flight Validator.Connect fan-out is parked on: a write already
// past its connect phase is not rolled back, but a parked script-
// verification wait is interrupted and observes errcode.ServiceStopped
// rather than running to completion. Idempotent.
func (c *Chain) Stop() {
	if atomic.CompareAndSwapInt32(&c.stopped, 0, 1) {
		close(c.stopCh)
	}
}

// Stopped reports whether Stop has been called.
func (c *Chain) Stopped() bool {
	return atomic.LoadInt32(&c.stopped) != 0
}

// Close unsubscribes every subscriber. Callers must join all worker
// threads driving Organize*/script execution before calling Close, per
// spec.md §5.
func (c *Chain) Close() error {
	c.headerSubs.unsubscribeAll()
	c.blockSubs.unsubscribeAll()
	c.txSubs.unsubscribeAll()
	return nil
}

// refreshTipCaches recomputes the atomic tip cache from the store after a
// successful write that may have moved a tip (spec.md §4.7: "after every
// successful write that moves a tip, the corresponding slot is
// recomputed"). Each slot update races independently; spec.md §5
// explicitly accepts the resulting brief cross-slot inconsistency.
func (c *Chain) refreshTipCaches() {
	fp := c.computeForkPoint()
	c.forkPoint.Store(fp)
	c.candidateWork.Store(c.getWork(fp.Height, true, nil))
	c.confirmedWork.Store(c.getWork(fp.Height, false, nil))

	if candTop, err := c.st.GetTopHeight(true); err == nil {
		if state, err := c.populator.FromHeight(candTop, true); err == nil {
			c.topCandidateState.Store(state)
		}
		h := candTop
		for h > 0 {
			bs, err := c.st.GetBlockStateByHeight(h, true)
			if err == nil && bs.Has(store.StateValid) {
				break
			}
			h--
		}
		if state, err := c.populator.FromHeight(h, true); err == nil {
			c.topValidCandidateState.Store(state)
		}
	}
	if confTop, err := c.st.GetTopHeight(false); err == nil {
		if state, err := c.populator.FromHeight(confTop, false); err == nil {
			c.nextConfirmedState.Store(state)
		}
	}
}

// computeForkPoint walks downward from the lower of the two tips until
// the candidate and confirmed hashes agree, the cold recomputation spec.md
// §3's "for all heights h <= fork_point.height, candidate hash = confirmed
// hash" invariant requires after any reorganize.
func (c *Chain) computeForkPoint() forkPointSnapshot {
	candTop, err1 := c.st.GetTopHeight(true)
	confTop, err2 := c.st.GetTopHeight(false)
	if err1 != nil || err2 != nil {
		return forkPointSnapshot{}
	}

	h := confTop
	if candTop < h {
		h = candTop
	}
	for {
		candHash, err1 := c.st.GetBlockHash(h, true)
		confHash, err2 := c.st.GetBlockHash(h, false)
		if err1 == nil && err2 == nil && candHash == confHash {
			return forkPointSnapshot{Height: h, Hash: candHash}
		}
		if h == 0 {
			return forkPointSnapshot{}
		}
		h--
	}
}

// reorganizeConfirmed swaps the confirmed chain to match the candidate
// chain from fork_point upward (spec.md §4.5 step 9), assembling the
// branch of already-validated candidate blocks for the store's single
// atomic ReorganizeBlocks operation.
func (c *Chain) reorganizeConfirmed() error {
	fp, _ := c.forkPoint.Load().(forkPointSnapshot)

	top, err := c.st.GetTopHeight(true)
	if err != nil {
		return err
	}

	var branch []*wire.Block
	for h := fp.Height + 1; h <= top; h++ {
		blk, err := c.st.GetBlockByHeight(h, true)
		if err != nil {
			return err
		}
		branch = append(branch, blk)
	}
	if len(branch) == 0 {
		return nil
	}

	if err := c.st.ReorganizeBlocks(branch, fp.Height+1); err != nil {
		return errcode.Newf(errcode.StoreCorrupted, "reorganize_blocks: %v", err)
	}
	c.confirmedReorgs.Inc(1)

	for _, blk := range branch {
		for _, txn := range blk.Transactions {
			c.txPool.Remove(txn.Hash())
			c.txPool.RemoveDoubleSpends(txn)
		}
	}

	return nil
}
