// Copyright (c) 2017-2018 The nox developers

// Package priolock implements the facade's prioritized write mutex
// (spec.md §5): two queues, one for the header and block organizers
// (LockHigh), one for the transaction organizer (LockLow). High-priority
// acquirers are serviced ahead of waiting low-priority acquirers; a
// low-priority holder already running is never preempted, but no further
// low-priority acquirer is granted the lock while a high-priority one
// waits. This shields consensus writes from mempool traffic.
//
// No teacher or pack example implements this exact two-queue discipline;
// it is built from sync.Cond in the spirit of the bounded-dispatch style
// in _examples/lightningnetwork-lnd/chainio/dispatcher.go, following
// spec.md §9's instruction to express suspension points explicitly rather
// than via captured callback chains.
package priolock

import "sync"

// Mutex is the facade's two-queue write lock.
type Mutex struct {
	mu          sync.Mutex
	cond        *sync.Cond
	locked      bool
	highWaiting int
}

// New returns an unlocked Mutex.
func New() *Mutex {
	m := &Mutex{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// LockHigh acquires the lock on behalf of the header or block organizer.
// High-priority acquirers never wait behind a low-priority acquirer that
// has not yet been granted the lock.
func (m *Mutex) LockHigh() {
	m.mu.Lock()
	m.highWaiting++
	for m.locked {
		m.cond.Wait()
	}
	m.highWaiting--
	m.locked = true
	m.mu.Unlock()
}

// LockLow acquires the lock on behalf of the transaction organizer. It
// yields to any high-priority acquirer currently waiting.
func (m *Mutex) LockLow() {
	m.mu.Lock()
	for m.locked || m.highWaiting > 0 {
		m.cond.Wait()
	}
	m.locked = true
	m.mu.Unlock()
}

// Unlock releases the lock, regardless of which queue acquired it, and
// wakes every waiter so priority is re-evaluated.
func (m *Mutex) Unlock() {
	m.mu.Lock()
	m.locked = false
	m.mu.Unlock()
	m.cond.Broadcast()
}
