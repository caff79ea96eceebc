package broadcast

import (
	"context"
	"sync"
	"sync/atomic"
)

// Subscription is one consumer's view of the broadcaster.
type Subscription struct {
	id       string
	owner    *Broadcaster
	capacity int

	mu     sync.Mutex
	queue  [][]byte
	ended  bool
	notify chan struct{}
	done   chan struct{}

	dropped   atomic.Uint64
	delivered atomic.Uint64
}

// ID returns the subscription identifier.
func (s *Subscription) ID() string {
	return s.id
}

// push appends msg, evicting the oldest pending event when the backlog is full.
func (s *Subscription) push(msg []byte) bool {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return false
	}
	if len(s.queue) == s.capacity {
		copy(s.queue, s.queue[1:])
		s.queue[len(s.queue)-1] = msg
		s.dropped.Add(1)
		s.owner.dropped.Add(1)
	} else {
		s.queue = append(s.queue, msg)
	}
	s.mu.Unlock()

	s.signal()
	return true
}

func (s *Subscription) signal() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// TryRecv returns the next pending event without blocking. ok is false when
// nothing is pending. err is ErrSubscriptionClosed once the subscription has
// ended and the backlog is empty.
func (s *Subscription) TryRecv() (msg []byte, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) > 0 {
		n := len(s.queue)
		msg = s.queue[0]
		copy(s.queue, s.queue[1:])
		s.queue[n-1] = nil
		s.queue = s.queue[:n-1]
		s.delivered.Add(1)
		return msg, true, nil
	}
	if s.ended {
		return nil, false, ErrSubscriptionClosed
	}
	return nil, false, nil
}

// Recv blocks until an event is pending, the subscription ends or ctx is done.
func (s *Subscription) Recv(ctx context.Context) ([]byte, error) {
	for {
		msg, ok, err := s.TryRecv()
		if err != nil {
			return nil, err
		}
		if ok {
			return msg, nil
		}

		select {
		case <-s.notify:
		case <-s.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Ready is signalled whenever new events arrive or the subscription ends.
// A signal may cover several events, so callers drain with TryRecv.
func (s *Subscription) Ready() <-chan struct{} {
	return s.notify
}

// Done is closed when the subscription ends, either through Close or because
// the broadcaster was closed.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Dropped returns how many events were evicted from this backlog.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Delivered returns how many events were handed to the consumer.
func (s *Subscription) Delivered() uint64 {
	return s.delivered.Load()
}

// Close unsubscribes and discards anything still pending.
func (s *Subscription) Close() error {
	s.owner.remove(s.id)
	s.end(true)
	return nil
}

func (s *Subscription) end(discard bool) {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	if discard {
		s.queue = nil
	}
	close(s.done)
	s.mu.Unlock()

	s.signal()
}
