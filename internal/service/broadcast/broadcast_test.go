package broadcast

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func recvWithin(t *testing.T, sub *Subscription, d time.Duration) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()

	msg, err := sub.Recv(ctx)
	if err != nil {
		t.Fatalf("Recv failed: %v", err)
	}
	return string(msg)
}

func TestFanOut(t *testing.T) {
	b := New(4)
	defer b.Close()

	subs := make([]*Subscription, 3)
	for i := range subs {
		sub, err := b.Subscribe()
		if err != nil {
			t.Fatalf("Subscribe failed: %v", err)
		}
		subs[i] = sub
	}

	for _, msg := range []string{"e1", "e2"} {
		n, err := b.Publish([]byte(msg))
		if err != nil {
			t.Fatalf("Publish failed: %v", err)
		}
		if n != 3 {
			t.Errorf("expected delivery to 3 subscribers, got %d", n)
		}
	}

	for i, sub := range subs {
		if got := recvWithin(t, sub, time.Second); got != "e1" {
			t.Errorf("subscriber %d: expected e1, got %s", i, got)
		}
		if got := recvWithin(t, sub, time.Second); got != "e2" {
			t.Errorf("subscriber %d: expected e2, got %s", i, got)
		}
		if _, ok, _ := sub.TryRecv(); ok {
			t.Errorf("subscriber %d: received an event twice", i)
		}
		if sub.Delivered() != 2 || sub.Dropped() != 0 {
			t.Errorf("subscriber %d: expected 2 delivered and 0 dropped, got %d/%d", i, sub.Delivered(), sub.Dropped())
		}
	}
}

func TestLateSubscriberIsolation(t *testing.T) {
	b := New(4)
	defer b.Close()

	early, _ := b.Subscribe()
	b.Publish([]byte("before"))

	late, _ := b.Subscribe()
	b.Publish([]byte("after"))

	if got := recvWithin(t, late, time.Second); got != "after" {
		t.Errorf("late subscriber: expected after, got %s", got)
	}
	if got := recvWithin(t, early, time.Second); got != "before" {
		t.Errorf("early subscriber: expected before, got %s", got)
	}
}

func TestDropOldestUnderBackpressure(t *testing.T) {
	b := New(2)
	defer b.Close()

	sub, _ := b.Subscribe()

	done := make(chan struct{})
	go func() {
		for i := 1; i <= 4; i++ {
			b.Publish([]byte(fmt.Sprintf("e%d", i)))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full backlog")
	}

	if got := recvWithin(t, sub, time.Second); got != "e3" {
		t.Errorf("expected e3, got %s", got)
	}
	if got := recvWithin(t, sub, time.Second); got != "e4" {
		t.Errorf("expected newest event e4, got %s", got)
	}
	if sub.Dropped() != 2 {
		t.Errorf("expected 2 dropped, got %d", sub.Dropped())
	}

	stats := b.Stats()
	if stats.Published != 4 || stats.Dropped != 2 || stats.Subscribers != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestSlowSubscriberDoesNotAffectOthers(t *testing.T) {
	b := New(1)
	defer b.Close()

	slow, _ := b.Subscribe()
	fast, _ := b.Subscribe()

	for i := 1; i <= 3; i++ {
		b.Publish([]byte(fmt.Sprintf("e%d", i)))
		if got := recvWithin(t, fast, time.Second); got != fmt.Sprintf("e%d", i) {
			t.Errorf("fast subscriber: unexpected %s", got)
		}
	}

	if fast.Dropped() != 0 {
		t.Errorf("fast subscriber dropped %d events", fast.Dropped())
	}
	if got := recvWithin(t, slow, time.Second); got != "e3" {
		t.Errorf("slow subscriber: expected e3, got %s", got)
	}
}

func TestPublishWithoutSubscribers(t *testing.T) {
	b := New(0)
	defer b.Close()

	n, err := b.Publish([]byte("nobody"))
	if err != nil || n != 0 {
		t.Errorf("expected silent discard, got n=%d err=%v", n, err)
	}

	sub, _ := b.Subscribe()
	if _, ok, _ := sub.TryRecv(); ok {
		t.Error("new subscriber saw a discarded event")
	}
}

func TestCloseDrainsThenEnds(t *testing.T) {
	b := New(4)
	sub, _ := b.Subscribe()

	b.Publish([]byte("last"))
	b.Close()

	select {
	case <-sub.Done():
	default:
		t.Fatal("Done not closed after broadcaster Close")
	}

	if got := recvWithin(t, sub, time.Second); got != "last" {
		t.Errorf("expected pending event to drain, got %s", got)
	}
	if _, err := sub.Recv(context.Background()); !errors.Is(err, ErrSubscriptionClosed) {
		t.Errorf("expected ErrSubscriptionClosed, got %v", err)
	}

	if _, err := b.Publish([]byte("late")); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed from Publish, got %v", err)
	}
	if _, err := b.Subscribe(); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed from Subscribe, got %v", err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}

func TestCloseWakesBlockedReceiver(t *testing.T) {
	b := New(4)
	sub, _ := b.Subscribe()

	errCh := make(chan error, 1)
	go func() {
		_, err := sub.Recv(context.Background())
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	b.Close()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrSubscriptionClosed) {
			t.Errorf("expected ErrSubscriptionClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Recv still blocked after Close")
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New(4)
	defer b.Close()

	sub, _ := b.Subscribe()
	other, _ := b.Subscribe()
	if b.Subscribers() != 2 {
		t.Fatalf("expected 2 subscribers, got %d", b.Subscribers())
	}
	if sub.ID() == other.ID() {
		t.Error("subscription ids must be unique")
	}

	b.Publish([]byte("pending"))
	sub.Close()

	if b.Subscribers() != 1 {
		t.Errorf("expected 1 subscriber after Close, got %d", b.Subscribers())
	}
	if _, err := sub.Recv(context.Background()); !errors.Is(err, ErrSubscriptionClosed) {
		t.Errorf("expected pending events to be discarded on unsubscribe, got %v", err)
	}
	if n, _ := b.Publish([]byte("next")); n != 1 {
		t.Errorf("expected delivery to remaining subscriber only, got %d", n)
	}
}

func TestRecvHonoursContext(t *testing.T) {
	b := New(4)
	defer b.Close()
	sub, _ := b.Subscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := sub.Recv(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}
}

func TestConcurrentSubscribeAndPublish(t *testing.T) {
	b := New(8)
	defer b.Close()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sub, err := b.Subscribe()
			if err != nil {
				t.Errorf("Subscribe failed: %v", err)
				return
			}
			defer sub.Close()
			for j := 0; j < 5; j++ {
				sub.TryRecv()
			}
		}()
	}

	for i := 0; i < 100; i++ {
		b.Publish([]byte("x"))
	}
	wg.Wait()

	if b.Stats().Published != 100 {
		t.Errorf("expected 100 published, got %d", b.Stats().Published)
	}
}
