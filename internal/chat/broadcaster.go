package chat

import (
	"context"
	"errors"
	"log/slog"
)

// Broadcaster is a publish/subscribe channel scoped by room.
type Broadcaster interface {
	Subscribe(ctx context.Context, roomID string, sub Subscriber) error
	Unsubscribe(ctx context.Context, roomID string, sub Subscriber) error
	// Publish hands ev to every subscriber of roomID. Per-subscriber failures are
	// logged and never returned.
	Publish(ctx context.Context, roomID string, ev Event) error
	// Rooms is the number of rooms with local subscribers.
	Rooms() int
}

// fanOut delivers to a snapshot of the room taken now. Deliver never blocks, so one slow
// member cannot hold up the rest.
func fanOut(logger *slog.Logger, registry *Registry, roomID string, ev Event) (delivered int) {
	for _, sub := range registry.Members(roomID) {
		if err := sub.Deliver(ev); err != nil {
			var de *DeliveryError
			if !errors.As(err, &de) {
				de = &DeliveryError{SubscriberID: sub.ID(), Err: err}
			}
			logger.Warn("delivery failed", "room", roomID, "subscriber", de.SubscriberID, "error", de.Err)
			continue
		}
		delivered++
	}
	return delivered
}

// LocalBroadcaster fans out inside this process only.
type LocalBroadcaster struct {
	registry *Registry
	logger   *slog.Logger
}

func NewLocalBroadcaster(registry *Registry, logger *slog.Logger) *LocalBroadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalBroadcaster{registry: registry, logger: logger}
}

func (b *LocalBroadcaster) Subscribe(_ context.Context, roomID string, sub Subscriber) error {
	b.registry.Join(roomID, sub)
	return nil
}

func (b *LocalBroadcaster) Unsubscribe(_ context.Context, roomID string, sub Subscriber) error {
	b.registry.Leave(roomID, sub)
	return nil
}

func (b *LocalBroadcaster) Publish(_ context.Context, roomID string, ev Event) error {
	fanOut(b.logger, b.registry, roomID, ev)
	return nil
}

func (b *LocalBroadcaster) Rooms() int {
	return b.registry.Rooms()
}
