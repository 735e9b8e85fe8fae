package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisBroadcaster fans out across every process attached to the same Redis. Each process
// keeps one PubSub connection and subscribes to "<prefix><room>" only while it has local
// members in that room.
type RedisBroadcaster struct {
	client   *redis.Client
	pubsub   *redis.PubSub
	prefix   string
	registry *Registry
	logger   *slog.Logger

	// mu keeps registry transitions and SUBSCRIBE/UNSUBSCRIBE in the same order.
	mu   sync.Mutex
	done chan struct{}
}

func NewRedisBroadcaster(client *redis.Client, registry *Registry, prefix string, logger *slog.Logger) *RedisBroadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	if prefix == "" {
		prefix = "chat:"
	}
	b := &RedisBroadcaster{
		client:   client,
		pubsub:   client.Subscribe(context.Background()),
		prefix:   prefix,
		registry: registry,
		logger:   logger,
		done:     make(chan struct{}),
	}
	go b.receive()
	return b
}

func (b *RedisBroadcaster) channel(roomID string) string {
	return b.prefix + roomID
}

func (b *RedisBroadcaster) Subscribe(ctx context.Context, roomID string, sub Subscriber) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if created := b.registry.Join(roomID, sub); !created {
		return nil
	}
	if err := b.pubsub.Subscribe(ctx, b.channel(roomID)); err != nil {
		b.registry.Leave(roomID, sub)
		return fmt.Errorf("redis subscribe %s: %w", roomID, err)
	}
	b.logger.Debug("subscribed to room channel", "room", roomID)
	return nil
}

func (b *RedisBroadcaster) Unsubscribe(ctx context.Context, roomID string, sub Subscriber) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, emptied := b.registry.Leave(roomID, sub); !emptied {
		return nil
	}
	if err := b.pubsub.Unsubscribe(ctx, b.channel(roomID)); err != nil {
		return fmt.Errorf("redis unsubscribe %s: %w", roomID, err)
	}
	b.logger.Debug("unsubscribed from room channel", "room", roomID)
	return nil
}

func (b *RedisBroadcaster) Publish(ctx context.Context, roomID string, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, b.channel(roomID), payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", roomID, err)
	}
	return nil
}

func (b *RedisBroadcaster) Rooms() int {
	return b.registry.Rooms()
}

// receive runs until Close. Events from every node, this one included, arrive here.
func (b *RedisBroadcaster) receive() {
	defer close(b.done)

	for msg := range b.pubsub.Channel() {
		roomID := strings.TrimPrefix(msg.Channel, b.prefix)

		var ev Event
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			b.logger.Error("dropping undecodable redis payload", "channel", msg.Channel, "error", err)
			continue
		}
		fanOut(b.logger, b.registry, roomID, ev)
	}
}

// Close drops the Redis subscription and waits for the receive loop to exit.
func (b *RedisBroadcaster) Close() error {
	err := b.pubsub.Close()
	<-b.done
	return err
}
