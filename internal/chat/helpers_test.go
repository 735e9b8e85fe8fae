package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"care-chat/internal/user"
)

type testSubscriber struct {
	id     string
	events chan Event
	err    error
}

func newTestSubscriber(id string) *testSubscriber {
	return &testSubscriber{id: id, events: make(chan Event, 16)}
}

func (s *testSubscriber) ID() string { return s.id }

func (s *testSubscriber) Deliver(ev Event) error {
	if s.err != nil {
		return s.err
	}
	select {
	case s.events <- ev:
		return nil
	default:
		return ErrQueueFull
	}
}

// next waits for one event or reports a timeout.
func (s *testSubscriber) next(timeout time.Duration) (Event, error) {
	select {
	case ev := <-s.events:
		return ev, nil
	case <-time.After(timeout):
		return Event{}, fmt.Errorf("%s: no event within %s", s.id, timeout)
	}
}

func (s *testSubscriber) pending() int { return len(s.events) }

// countingBroadcaster records how often sessions register and unregister.
type countingBroadcaster struct {
	Broadcaster
	subscribes   atomic.Int32
	unsubscribes atomic.Int32
}

func (c *countingBroadcaster) Subscribe(ctx context.Context, roomID string, sub Subscriber) error {
	c.subscribes.Add(1)
	return c.Broadcaster.Subscribe(ctx, roomID, sub)
}

func (c *countingBroadcaster) Unsubscribe(ctx context.Context, roomID string, sub Subscriber) error {
	c.unsubscribes.Add(1)
	return c.Broadcaster.Unsubscribe(ctx, roomID, sub)
}

type staticTokens struct {
	mu     sync.Mutex
	tokens map[string]user.Identity
}

func (s *staticTokens) ValidateToken(token string) (user.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.tokens[token]; ok {
		return id, nil
	}
	return user.Identity{}, errors.New("unknown token")
}

var (
	alice = user.Identity{ID: 1, Username: "alice"}
	bob   = user.Identity{ID: 2, Username: "bob"}
	carol = user.Identity{ID: 3, Username: "carol"}
)

func testEvent(room, content string) Event {
	return Event{RoomID: room, MessageID: 1, SenderID: alice.ID, Content: content, Timestamp: time.Now().UTC()}
}
