// Package broadcast fans scan events out to any number of subscribers.
//
// Every subscription owns a bounded backlog. When a subscriber falls behind
// and its backlog is full, the oldest unread event is dropped to make room for
// the newest one. Publish never blocks.
package broadcast

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// DefaultCapacity is the per-subscriber backlog used when New is given zero.
const DefaultCapacity = 16

var (
	// ErrClosed is returned by Publish and Subscribe after Close.
	ErrClosed = errors.New("broadcaster is closed")

	// ErrSubscriptionClosed is returned by Recv once a subscription has ended
	// and its backlog is drained.
	ErrSubscriptionClosed = errors.New("subscription closed")
)

// Stats is a snapshot of broadcaster counters.
type Stats struct {
	Published   uint64 `json:"published"`
	Dropped     uint64 `json:"dropped"`
	Subscribers int    `json:"subscribers"`
}

// Broadcaster is a single producer, many consumer event hub.
type Broadcaster struct {
	capacity int

	mu     sync.RWMutex
	subs   map[string]*Subscription
	closed bool

	published atomic.Uint64
	dropped   atomic.Uint64
}

// New creates a Broadcaster whose subscriptions each hold up to capacity pending events.
func New(capacity int) *Broadcaster {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Broadcaster{
		capacity: capacity,
		subs:     make(map[string]*Subscription),
	}
}

// Publish hands msg to every current subscriber and returns how many received it.
// With no subscribers the event is discarded.
func (b *Broadcaster) Publish(msg []byte) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return 0, ErrClosed
	}
	b.published.Add(1)

	delivered := 0
	for _, sub := range b.subs {
		if sub.push(msg) {
			delivered++
		}
	}
	return delivered, nil
}

// Subscribe registers a new subscription that sees events published from now on.
func (b *Broadcaster) Subscribe() (*Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}

	sub := &Subscription{
		id:       uuid.NewString(),
		owner:    b,
		capacity: b.capacity,
		queue:    make([][]byte, 0, b.capacity),
		notify:   make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	b.subs[sub.id] = sub
	return sub, nil
}

// Subscribers returns the number of live subscriptions.
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Stats returns the current counters. Dropped includes subscriptions that have since ended.
func (b *Broadcaster) Stats() Stats {
	return Stats{
		Published:   b.published.Load(),
		Dropped:     b.dropped.Load(),
		Subscribers: b.Subscribers(),
	}
}

// Close ends every subscription. Subscribers can still drain what they had
// pending before they see ErrSubscriptionClosed.
func (b *Broadcaster) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for id, sub := range b.subs {
		sub.end(false)
		delete(b.subs, id)
	}
	return nil
}

func (b *Broadcaster) remove(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, id)
}
