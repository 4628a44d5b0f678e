package stream

import (
	"context"
	"testing"
	"time"
)

func TestPublishReachesSubscribers(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := s.Subscribe(ctx)
	s.Publish(ServiceEvent{Kind: KindServed, CaseNumber: "34-1234"})

	select {
	case evt := <-ch:
		if evt.Kind != KindServed || evt.CaseNumber != "34-1234" {
			t.Fatalf("unexpected event: %+v", evt)
		}
		if evt.Timestamp.IsZero() {
			t.Fatal("timestamp not stamped")
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestSubscribeClosesOnContextCancel(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())

	ch := s.Subscribe(ctx)
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
}

func TestPublishDropsWhenSubscriberSlow(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_ = s.Subscribe(ctx)
	// fill the buffer past capacity without a reader; must not block
	done := make(chan struct{})
	go func() {
		for i := 0; i < 64; i++ {
			s.Publish(ServiceEvent{Kind: KindViewed})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on slow subscriber")
	}
}
