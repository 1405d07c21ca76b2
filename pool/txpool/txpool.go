// Copyright (c) 2017-2018 The nox developers

// Package txpool implements spec.md §4.2: the in-memory set of admitted,
// unconfirmed transactions. It answers exists(tx) for the tx organizer's
// duplicate check, remembers admitted descriptors until they confirm or
// expire, and evicts by age and by count the way the teacher's mempool
// bounds standalone transactions pending relay.
//
// Grounded on the pool/orphans/outpoints shape of
// _examples/Qitmeer-qitmeer/services/mempool/mempool.go's TxPool, trimmed
// to the subset spec.md §4.2 names: exists, add, remove-on-confirm, and
// configurable size/age eviction. The teacher's orphan-transaction graph
// (maybeAddOrphan/processOrphans) is out of scope here: spec.md §4.6
// requires every input to resolve through the store at accept time, so an
// unconnected transaction is rejected outright rather than parked.
package txpool

import (
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set"

	"github.com/scristian71/libbitcoin-blockchain/pkg/chainhash"
	"github.com/scristian71/libbitcoin-blockchain/pkg/wire"
)

// Desc is a descriptor for a pooled transaction, mirroring the shape of
// the teacher's TxDesc (minus mining-priority fields spec.md has no use
// for: admission order and candidacy are all this pool tracks).
type Desc struct {
	Tx       *wire.Transaction
	Height   uint64 // height at which the transaction was admitted
	Added    time.Time
	Fees     uint64
	Spenders int // not maintained by the pool: Add leaves it 0
}

// Pool is the unconfirmed-transaction set of spec.md §4.2. Safe for
// concurrent reads; writes are expected to run under the facade's
// low-priority queue of the prioritized mutex, the way the teacher's mtx
// serializes AddTransaction/RemoveTransaction.
type Pool struct {
	mu sync.RWMutex

	pool      map[chainhash.Hash]*Desc
	outpoints map[wire.OutPoint]chainhash.Hash

	maxOrphans int
	expiry     time.Duration

	lastUpdated int64 // unix seconds, atomic via mu
}

// New returns an empty transaction pool bounded by maxOrphans entries and
// expiry age, the non-consensus eviction policy spec.md §4.2 leaves
// configurable (config.Config.TxPoolMaxOrphans / TxPoolExpiry).
func New(maxOrphans int, expiry time.Duration) *Pool {
	return &Pool{
		pool:       make(map[chainhash.Hash]*Desc),
		outpoints:  make(map[wire.OutPoint]chainhash.Hash),
		maxOrphans: maxOrphans,
		expiry:     expiry,
	}
}

// Exists reports whether a transaction with this hash is already pooled,
// the duplicate check organize/tx's admission protocol runs before
// accept, mirroring haveTransaction/HaveTransaction.
func (p *Pool) Exists(hash chainhash.Hash) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.pool[hash]
	return ok
}

// Get returns the pooled descriptor by hash, if present.
func (p *Pool) Get(hash chainhash.Hash) (*Desc, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	d, ok := p.pool[hash]
	return d, ok
}

// Add inserts tx into the pool at height with the fees the caller
// computed (organize/tx uses Transaction.Fees), the admission step mirroring addTransaction, and
// evicts oldest-first once maxOrphans is exceeded.
func (p *Pool) Add(tx *wire.Transaction, height uint64, fees uint64) {
	h := tx.Hash()

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.pool[h]; exists {
		return
	}

	desc := &Desc{Tx: tx, Height: height, Added: time.Now(), Fees: fees}
	p.pool[h] = desc
	for _, in := range tx.TxIn {
		p.outpoints[in.PreviousOutPoint] = h
	}
	p.lastUpdated = desc.Added.Unix()

	log.Debugf("accepted transaction %s into pool (%d outputs spent, %d fees)",
		h, len(tx.TxIn), fees)

	p.evictOverCapacityLocked()
}

// Remove drops tx from the pool, called on confirmation (the facade's
// confirmed-chain reorganize removes every transaction of the newly
// confirmed blocks once ReorganizeBlocks succeeds) or on explicit
// eviction, mirroring
// removeTransaction/RemoveTransaction.
func (p *Pool) Remove(hash chainhash.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removeLocked(hash)
}

func (p *Pool) removeLocked(hash chainhash.Hash) {
	desc, ok := p.pool[hash]
	if !ok {
		return
	}
	for _, in := range desc.Tx.TxIn {
		delete(p.outpoints, in.PreviousOutPoint)
	}
	delete(p.pool, hash)
}

// RemoveDoubleSpends removes any pooled transaction that spends an
// outpoint tx itself spends, the cleanup organize/block runs after a
// block confirms so the pool cannot keep transactions double-spending
// newly settled outputs, mirroring RemoveDoubleSpends. A set collects the
// conflicting hashes first since several inputs of tx may point at the
// same pooled conflict, and removeLocked must run on each only once.
func (p *Pool) RemoveDoubleSpends(tx *wire.Transaction) {
	p.mu.Lock()
	defer p.mu.Unlock()

	conflicts := mapset.NewThreadUnsafeSet()
	for _, in := range tx.TxIn {
		if conflictHash, ok := p.outpoints[in.PreviousOutPoint]; ok {
			conflicts.Add(conflictHash)
		}
	}
	for hash := range conflicts.Iter() {
		p.removeLocked(hash.(chainhash.Hash))
	}
}

// PruneExpired evicts every pooled transaction older than expiry relative
// to now, spec.md §4.2's age-bounded eviction, mirroring pruneExpiredTx.
func (p *Pool) PruneExpired(now time.Time) int {
	if p.expiry <= 0 {
		return 0
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	pruned := 0
	for hash, desc := range p.pool {
		if now.Sub(desc.Added) > p.expiry {
			p.removeLocked(hash)
			pruned++
		}
	}
	if pruned > 0 {
		log.Debugf("pruned %d expired transactions from pool", pruned)
	}
	return pruned
}

// evictOverCapacityLocked drops the oldest-admitted transactions once the
// pool exceeds maxOrphans, mirroring the teacher's orphan-count cap in
// limitNumOrphans but applied to the admitted pool itself since spec.md
// §4.2 does not carry a separate orphan graph.
func (p *Pool) evictOverCapacityLocked() {
	if p.maxOrphans <= 0 || len(p.pool) <= p.maxOrphans {
		return
	}

	oldestHash := chainhash.ZeroHash
	var oldestTime time.Time
	for len(p.pool) > p.maxOrphans {
		first := true
		for hash, desc := range p.pool {
			if first || desc.Added.Before(oldestTime) {
				oldestHash = hash
				oldestTime = desc.Added
				first = false
			}
		}
		p.removeLocked(oldestHash)
	}
}

// Count returns the number of pooled transactions, mirroring Count.
func (p *Pool) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.pool)
}

// LastUpdated returns the last time the pool was modified, mirroring
// LastUpdated.
func (p *Pool) LastUpdated() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return time.Unix(p.lastUpdated, 0)
}
