// Copyright (c) 2017-2018 The nox developers

// Package header implements spec.md §4.4: the header organizer's admission
// protocol. It is expressed as a single Organize method rather than the
// bound-callback chains of
// _examples/original_source/src/organizers/header_organizer.cpp --
// spec.md §9 asks for an explicit state machine over the same suspension
// points, and a single Go function under a held lock is that state machine.
package header

import (
	"time"

	"github.com/scristian71/libbitcoin-blockchain/chain/priolock"
	"github.com/scristian71/libbitcoin-blockchain/chainstate"
	"github.com/scristian71/libbitcoin-blockchain/errcode"
	"github.com/scristian71/libbitcoin-blockchain/pkg/chainwork"
	"github.com/scristian71/libbitcoin-blockchain/pkg/wire"
	"github.com/scristian71/libbitcoin-blockchain/pool/headerpool"
	"github.com/scristian71/libbitcoin-blockchain/store"
	"github.com/scristian71/libbitcoin-blockchain/validate"
)

// Notification is delivered to header subscribers after a successful
// reorganize (spec.md §6: "(code, fork_height, incoming, outgoing)").
type Notification struct {
	ForkHeight uint64
	Incoming   []*wire.Header
	Outgoing   []*wire.Header
}

// GetWork resolves the accumulated work of the candidate chain above
// aboveHeight, stopping early once cap is met -- the facade's
// get_work(above_height, candidate=true, cap) operation (spec.md §4.7).
type GetWork func(aboveHeight uint64, cap chainwork.Work) chainwork.Work

// Organizer implements spec.md §4.4's admission protocol. It holds
// references to the facade's collaborators without owning them (spec.md
// §9 "cyclic references"); the facade constructs and exclusively owns the
// Organizer.
type Organizer struct {
	Store     store.Store
	Pool      *headerpool.Pool
	Validator *validate.HeaderValidator
	Mutex     *priolock.Mutex
	Populator chainstate.Populator
	GetWork   GetWork
	Stopped   func() bool
	Notify    func(Notification)
	Now       func() time.Time
}

// Organize admits one header per spec.md §4.4's nine steps.
func (o *Organizer) Organize(candidate *wire.Header) error {
	if err := o.Validator.Check(candidate, o.now()); err != nil {
		return err
	}

	o.Mutex.LockHigh()
	defer o.Mutex.Unlock()

	if o.Stopped != nil && o.Stopped() {
		return errcode.New(errcode.ServiceStopped, "organizer stopped")
	}

	branch, err := o.Pool.GetBranch(candidate)
	if err != nil {
		return errcode.Newf(errcode.OperationFailed, "get_branch: %v", err)
	}
	if branch.Empty() {
		// GetBranch reports empty both when candidate is already indexed
		// and when its parent connects to nothing known (an orphan). Only
		// the former is idempotent and worth pooling under; re-pooling an
		// orphan at height 0 would let EvictStale drop it immediately.
		if _, height, err := o.Store.GetHeaderByHash(candidate.Hash(), true); err == nil {
			o.Pool.Add(candidate, height)
		}
		return errcode.New(errcode.DuplicateBlock, "header already indexed")
	}

	state, err := o.Populator.FromHeight(branch.ForkHeight, true)
	if err != nil {
		return errcode.Newf(errcode.OperationFailed, "from_height(%d): %v", branch.ForkHeight, err)
	}
	for i, h := range branch.Headers {
		if err := o.Validator.Accept(h, branch.ForkHeight+uint64(i)+1, state); err != nil {
			return err
		}
		state = chainstate.Promote(state, h)
	}

	branchWork := branch.Work()
	requiredWork := o.GetWork(branch.ForkHeight, branchWork)
	if branchWork.Cmp(requiredWork) <= 0 {
		o.Pool.Add(branch.Top(), branch.TopHeight())
		return errcode.New(errcode.InsufficientWork, "branch does not exceed the candidate chain's work")
	}

	outgoing, err := o.outgoingHeaders(branch.ForkHeight)
	if err != nil {
		return errcode.Newf(errcode.OperationFailed, "reading outgoing headers: %v", err)
	}

	if err := o.Store.ReorganizeHeaders(branch.ForkHash, branch.ForkHeight, branch.Headers); err != nil {
		return errcode.Newf(errcode.StoreCorrupted, "reorganize_headers: %v", err)
	}

	o.Pool.EvictIndexed(branch.TopHeight())

	log.Infof("REORGANIZE: candidate chain to height %d via %d new header(s), work %s",
		branch.TopHeight(), len(branch.Headers), branchWork)

	if o.Notify != nil {
		o.Notify(Notification{ForkHeight: branch.ForkHeight, Incoming: branch.Headers, Outgoing: outgoing})
	}
	return nil
}

func (o *Organizer) outgoingHeaders(forkHeight uint64) ([]*wire.Header, error) {
	top, err := o.Store.GetTopHeight(true)
	if err != nil {
		return nil, err
	}
	var outgoing []*wire.Header
	for h := forkHeight + 1; h <= top; h++ {
		hdr, err := o.Store.GetHeaderByHeight(h, true)
		if err != nil {
			break
		}
		outgoing = append(outgoing, hdr)
	}
	return outgoing, nil
}

func (o *Organizer) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}
