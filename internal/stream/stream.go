package stream

import (
	"context"
	"sync"
	"time"
)

// Event kinds emitted on the serving stream.
const (
	KindServed   = "served"
	KindViewed   = "viewed"
	KindAccepted = "accepted"
)

// ServiceEvent describes one step of a notice's lifecycle for dashboard
// subscribers (SSE clients on the process-server side).
type ServiceEvent struct {
	Kind         string    `json:"kind"`
	CaseNumber   string    `json:"case_number"`
	AlertTokenID string    `json:"alert_token_id,omitempty"`
	Wallet       string    `json:"wallet,omitempty"`
	Chain        string    `json:"chain,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Stream fan-outs serving events to all active subscribers.
type Stream struct {
	mu   sync.RWMutex
	subs map[int]chan ServiceEvent
	next int
}

// New initialises an empty stream.
func New() *Stream {
	return &Stream{subs: make(map[int]chan ServiceEvent)}
}

// Subscribe registers a subscriber and returns a channel which will receive
// events. The channel is closed when the provided context ends.
func (s *Stream) Subscribe(ctx context.Context) <-chan ServiceEvent {
	ch := make(chan ServiceEvent, 16)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// Publish fan-outs the event to all subscribers.
func (s *Stream) Publish(evt ServiceEvent) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- evt:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}
