// Package feed is the multicast stream of transaction changes.
//
// Publishers never block: each subscriber owns a bounded buffer and, when
// it is full, the oldest undelivered batch is dropped to make room.
package feed

import (
	"sync"

	"github.com/gemwalletcom/gem-android-sub002/internal/core/domain"
	"github.com/gemwalletcom/gem-android-sub002/internal/lifecycle/metrics"
)

const DefaultBuffer = 64

// Feed fans change batches out to subscribers.
type Feed struct {
	mu     sync.Mutex
	buffer int
	nextID int
	subs   map[int]*Subscription
	closed bool
}

// New creates a feed whose subscribers buffer up to size batches.
func New(size int) *Feed {
	if size <= 0 {
		size = DefaultBuffer
	}
	return &Feed{buffer: size, subs: make(map[int]*Subscription)}
}

// Subscription receives batches until Unsubscribe or feed Close.
type Subscription struct {
	feed    *Feed
	id      int
	ch      chan []domain.Transaction
	dropped uint64
}

// C is closed when the subscription ends.
func (s *Subscription) C() <-chan []domain.Transaction {
	return s.ch
}

// Dropped returns how many batches were discarded for this subscriber.
func (s *Subscription) Dropped() uint64 {
	s.feed.mu.Lock()
	defer s.feed.mu.Unlock()
	return s.dropped
}

// Unsubscribe stops delivery and closes C. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.feed.mu.Lock()
	defer s.feed.mu.Unlock()
	if _, ok := s.feed.subs[s.id]; !ok {
		return
	}
	delete(s.feed.subs, s.id)
	close(s.ch)
}

// Subscribe registers a new subscriber. Subscribing to a closed feed
// returns an already closed subscription.
func (f *Feed) Subscribe() *Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub := &Subscription{feed: f, id: f.nextID, ch: make(chan []domain.Transaction, f.buffer)}
	f.nextID++
	if f.closed {
		close(sub.ch)
		return sub
	}
	f.subs[sub.id] = sub
	return sub
}

// Publish delivers a copy of txs to every subscriber without blocking.
func (f *Feed) Publish(txs ...domain.Transaction) {
	if len(txs) == 0 {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sub := range f.subs {
		batch := make([]domain.Transaction, len(txs))
		copy(batch, txs)
		sub.deliver(batch)
	}
}

// deliver runs under the feed lock, so it is the only sender.
func (s *Subscription) deliver(batch []domain.Transaction) {
	for {
		select {
		case s.ch <- batch:
			return
		default:
		}
		select {
		case <-s.ch:
			s.dropped++
			metrics.FeedDropped.Inc()
		default:
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (f *Feed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Close ends every subscription.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for id, sub := range f.subs {
		delete(f.subs, id)
		close(sub.ch)
	}
}
