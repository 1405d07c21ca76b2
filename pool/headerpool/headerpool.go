// Copyright (c) 2017-2018 The nox developers

// Package headerpool implements spec.md §4.1: the in-memory graph of
// candidate headers not yet admitted to the indexed chain. It remembers
// headers whose parent is either indexed or also pooled, and can walk any
// pooled header back to its fork point to produce a HeaderBranch.
//
// Grounded on the pooled-entry-plus-expiration shape of
// _examples/Qitmeer-qitmeer/core/blockchain/orphanblock.go, generalized
// from per-block orphans to per-header pool entries addressed by parent
// hash, and on the height-bounded eviction loop in
// core/blockchain/orphan.go.
package headerpool

import (
	"sync"
	"time"

	"github.com/scristian71/libbitcoin-blockchain/pkg/chainhash"
	"github.com/scristian71/libbitcoin-blockchain/pkg/chainwork"
	"github.com/scristian71/libbitcoin-blockchain/pkg/wire"
	"github.com/scristian71/libbitcoin-blockchain/store"
)

// entry is one pooled, not-yet-indexed header.
type entry struct {
	header   *wire.Header
	height   uint64
	received time.Time
}

// Pool is the header pool of spec.md §4.1. It is safe for concurrent
// reads; writes (Add, Evict) are expected to run under the facade's
// prioritized mutex the way the teacher's orphan map is protected by
// orphanLock during ProcessBlock.
type Pool struct {
	mu sync.RWMutex

	// byHash indexes every pooled header by its own hash.
	byHash map[chainhash.Hash]*entry

	// children indexes pooled headers by their parent hash, so Add/evict
	// can walk forward, and get_branch can be answered without scanning
	// the whole pool.
	children map[chainhash.Hash][]chainhash.Hash

	reader store.Reader
}

// New returns an empty header pool backed by reader for resolving fork
// points (indexed ancestors) that are not themselves pooled.
func New(reader store.Reader) *Pool {
	return &Pool{
		byHash:   make(map[chainhash.Hash]*entry),
		children: make(map[chainhash.Hash][]chainhash.Hash),
		reader:   reader,
	}
}

// Add inserts header at height into the pool. Idempotent by hash, per
// spec.md §4.1 ("insert; idempotent by hash... pool insertion never
// fails").
func (p *Pool) Add(header *wire.Header, height uint64) {
	h := header.Hash()

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.byHash[h]; exists {
		return
	}
	p.byHash[h] = &entry{header: header, height: height, received: time.Now()}
	p.children[header.PrevBlock] = append(p.children[header.PrevBlock], h)
	log.Debugf("pooled candidate header %s at height %d", h, height)
}

// Get returns the pooled header by hash, if present.
func (p *Pool) Get(hash chainhash.Hash) (*wire.Header, uint64, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.byHash[hash]
	if !ok {
		return nil, 0, false
	}
	return e.header, e.height, true
}

// Branch is the spec.md §3 HeaderBranch: an ordered sequence of headers
// rooted at a known indexed ancestor (the fork point), strictly extending
// it.
type Branch struct {
	ForkHeight uint64
	ForkHash   chainhash.Hash
	Headers    []*wire.Header
}

// Empty reports whether the branch carries no headers -- the signal that
// the queried header was unknown to the pool or already indexed (spec.md
// §4.1: "If header is already indexed, return empty").
func (b *Branch) Empty() bool {
	return b == nil || len(b.Headers) == 0
}

// Top returns the last (highest) header in the branch.
func (b *Branch) Top() *wire.Header {
	if b.Empty() {
		return nil
	}
	return b.Headers[len(b.Headers)-1]
}

// TopHeight is fork_height + len(headers).
func (b *Branch) TopHeight() uint64 {
	return b.ForkHeight + uint64(len(b.Headers))
}

// Work returns the accumulated work of every header in the branch, the
// quantity the header organizer's consensus rule (spec.md §4.4) compares
// against the current candidate chain's required work.
func (b *Branch) Work() chainwork.Work {
	total := chainwork.Zero()
	for _, h := range b.Headers {
		total = total.Add(h.Work())
	}
	return total
}

// GetBranch walks parent links from header until it reaches an indexed
// header (the fork point) and returns the maximal branch ending at header.
// If header is already indexed (the store resolves it directly), GetBranch
// returns an empty branch: there is nothing new to admit.
func (p *Pool) GetBranch(header *wire.Header) (*Branch, error) {
	target := header.Hash()

	p.mu.RLock()
	if _, indexed := p.byHash[target]; !indexed {
		// Fall through: header might already be in the pool under a
		// different identity check, or might be brand new and not yet
		// added -- get_branch only walks what is reachable via
		// PrevBlock links already in the pool plus this header itself.
	}
	p.mu.RUnlock()

	// If the header's own hash already exists in the candidate index,
	// there is no branch to report.
	if _, _, err := p.reader.GetHeaderByHash(target, true); err == nil {
		return &Branch{}, nil
	}

	chain := []*wire.Header{header}
	cursor := header.PrevBlock

	p.mu.RLock()
	defer p.mu.RUnlock()

	for {
		if parentHeader, parentHeight, err := p.reader.GetHeaderByHash(cursor, true); err == nil {
			// Reached an indexed ancestor: this is the fork point.
			reverse(chain)
			return &Branch{
				ForkHeight: parentHeight,
				ForkHash:   parentHeader.Hash(),
				Headers:    chain,
			}, nil
		}

		parentEntry, ok := p.byHash[cursor]
		if !ok {
			// Parent is neither indexed nor pooled: header does not
			// connect to anything we know, report empty per spec.md
			// §4.1 ("lookup returns empty branch when the header is
			// unknown").
			return &Branch{}, nil
		}
		chain = append(chain, parentEntry.header)
		cursor = parentEntry.header.PrevBlock
	}
}

func reverse(headers []*wire.Header) {
	for i, j := 0, len(headers)-1; i < j; i, j = i+1, j-1 {
		headers[i], headers[j] = headers[j], headers[i]
	}
}

// EvictIndexed removes every pooled entry at or below newTipHeight whose
// hash the store now reports as indexed -- the first half of spec.md
// §4.1's eviction rule, run after a successful header-chain reorganize.
func (p *Pool) EvictIndexed(newTipHeight uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for h, e := range p.byHash {
		if e.height > newTipHeight {
			continue
		}
		if _, _, err := p.reader.GetHeaderByHash(h, true); err == nil {
			p.removeLocked(h, e)
		}
	}
}

// EvictStale drops pool entries on abandoned forks once they fall more
// than branchThreshold heights below forkHeight, resolving spec.md §9's
// open question on eviction policy the way
// core/blockchain/orphan.go time-bounds orphan retention.
func (p *Pool) EvictStale(forkHeight, branchThreshold uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for h, e := range p.byHash {
		if e.height+branchThreshold < forkHeight {
			p.removeLocked(h, e)
		}
	}
}

func (p *Pool) removeLocked(hash chainhash.Hash, e *entry) {
	delete(p.byHash, hash)
	siblings := p.children[e.header.PrevBlock]
	for i, child := range siblings {
		if child == hash {
			p.children[e.header.PrevBlock] = append(siblings[:i], siblings[i+1:]...)
			break
		}
	}
}

// Len returns the number of pooled headers, for metrics/tests.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.byHash)
}
