package chat

import (
	"errors"
	"fmt"
)

var (
	ErrAuthRequired   = errors.New("chat: authenticated identity required")
	ErrMalformedFrame = errors.New("chat: malformed frame")
	ErrRoomNotFound   = errors.New("chat: room not found")
	ErrQueueFull      = errors.New("chat: outbound queue full")
	ErrSessionClosed  = errors.New("chat: session closed")
	ErrHubClosed      = errors.New("chat: hub is shutting down")
)

// StorageError means a message could not be made durable. Nothing was published for it.
type StorageError struct {
	Room string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("chat: store message in room %q: %v", e.Room, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// DeliveryError is a failed hand-off to one subscriber. It never reaches the publisher.
type DeliveryError struct {
	SubscriberID string
	Err          error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("chat: deliver to %s: %v", e.SubscriberID, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }
