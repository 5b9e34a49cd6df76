package sinks

import (
	"context"
	"sync"

	"github.com/siteiq/siteiq/internal/notify"
)

// RefreshSink fans turn events out to per-owner subscribers so a
// history view can refresh its listing when a new turn lands. Delivery
// is best-effort: a subscriber that is not draining its channel misses
// events rather than stalling the hub.
type RefreshSink struct {
	mu     sync.Mutex
	subs   map[string]map[int]chan notify.TurnEvent
	nextID int
	closed bool
}

// NewRefreshSink returns a sink with no subscribers.
func NewRefreshSink() *RefreshSink {
	return &RefreshSink{subs: make(map[string]map[int]chan notify.TurnEvent)}
}

// Subscribe registers interest in events for one owner. The returned
// cancel func must be called when the subscriber goes away; it closes
// the channel.
func (s *RefreshSink) Subscribe(ownerID string) (<-chan notify.TurnEvent, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan notify.TurnEvent, 1)
	if s.closed {
		close(ch)
		return ch, func() {}
	}

	id := s.nextID
	s.nextID++
	if s.subs[ownerID] == nil {
		s.subs[ownerID] = make(map[int]chan notify.TurnEvent)
	}
	s.subs[ownerID][id] = ch

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		owned, ok := s.subs[ownerID]
		if !ok {
			return
		}
		if sub, ok := owned[id]; ok {
			delete(owned, id)
			if len(owned) == 0 {
				delete(s.subs, ownerID)
			}
			close(sub)
		}
	}
	return ch, cancel
}

// Consume delivers the event to every subscriber of its owner without
// blocking. A full subscriber channel drops the event; the next refresh
// fetches the same state anyway.
func (s *RefreshSink) Consume(_ context.Context, evt notify.TurnEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	for _, ch := range s.subs[evt.Owner] {
		select {
		case ch <- evt:
		default:
		}
	}
	return nil
}

// Close drops all subscribers and closes their channels. Subsequent
// Subscribe calls receive an already-closed channel.
func (s *RefreshSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for owner, owned := range s.subs {
		for id, ch := range owned {
			delete(owned, id)
			close(ch)
		}
		delete(s.subs, owner)
	}
	return nil
}
