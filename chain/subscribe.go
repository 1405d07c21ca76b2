// Copyright (c) 2017-2018 The nox developers

package chain

import "sync"

// Subscription is a single consumer's view of a notification stream.
// Grounded on the single-callback relay shape of
// _examples/Qitmeer-qitmeer/node/notify.NotifyMgr, generalized from one
// hard-coded method per event kind to a typed channel per subscriber.
type Subscription struct {
	ch          chan interface{}
	unsubscribe func()
}

// C returns the channel notifications arrive on. A nil value marks the
// unsubscribe terminator spec.md §6 describes.
func (s *Subscription) C() <-chan interface{} { return s.ch }

// Unsubscribe removes this subscription and closes its channel without
// sending a nil terminator; only Chain.Close delivers the nil value.
func (s *Subscription) Unsubscribe() { s.unsubscribe() }

// subscriberSet fans notifications out to every live subscription of one
// stream (headers, blocks, or transactions).
type subscriberSet struct {
	mu   sync.Mutex
	subs map[int]chan interface{}
	next int
}

func newSubscriberSet() *subscriberSet {
	return &subscriberSet{subs: make(map[int]chan interface{})}
}

// Subscribe registers a new consumer with a small delivery buffer; a slow
// consumer drops notifications rather than blocking the writer that
// produced them (notifications are best-effort, the write path itself is
// authoritative).
func (s *subscriberSet) Subscribe() *Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.next
	s.next++
	ch := make(chan interface{}, 16)
	s.subs[id] = ch

	return &Subscription{
		ch: ch,
		unsubscribe: func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		},
	}
}

func (s *subscriberSet) notify(v interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- v:
		default:
			log.Warnf("subscriber channel full, dropping notification")
		}
	}
}

// unsubscribeAll broadcasts a nil terminator to every subscriber and
// closes their channels, spec.md §6's "unsubscribe() broadcasts a null
// success terminator to all subscribers."
func (s *subscriberSet) unsubscribeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ch := range s.subs {
		ch <- nil
		close(ch)
		delete(s.subs, id)
	}
}
