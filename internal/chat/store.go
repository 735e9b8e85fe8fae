package chat

import (
	"context"
	"sync"
	"time"
)

// MessageStore is the durable, append-only log of chat messages keyed by room.
type MessageStore interface {
	// Append makes the message durable before anything is broadcast.
	// Failures are returned as *StorageError.
	Append(ctx context.Context, roomID string, senderID int64, content string) (*Message, error)
	// History returns up to limit most recent messages of a room, oldest first.
	History(ctx context.Context, roomID string, limit int) ([]Message, error)
}

const defaultHistoryLimit = 50

// MemoryStore keeps messages in process. With rooms registered through AddRoom it rejects
// unknown rooms like the Postgres catalog does; without any it accepts every room.
type MemoryStore struct {
	mu       sync.Mutex
	messages map[string][]Message
	rooms    map[string]struct{}
	nextID   int64
	now      func() time.Time
	failWith error
}

func NewMemoryStore(rooms ...string) *MemoryStore {
	s := &MemoryStore{
		messages: make(map[string][]Message),
		now:      time.Now,
	}
	for _, r := range rooms {
		s.AddRoom(r)
	}
	return s
}

func (s *MemoryStore) AddRoom(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rooms == nil {
		s.rooms = make(map[string]struct{})
	}
	s.rooms[roomID] = struct{}{}
}

// FailWith makes every following Append fail with err; nil restores normal behaviour.
func (s *MemoryStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = err
}

func (s *MemoryStore) Append(ctx context.Context, roomID string, senderID int64, content string) (*Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, &StorageError{Room: roomID, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failWith != nil {
		return nil, &StorageError{Room: roomID, Err: s.failWith}
	}
	if s.rooms != nil {
		if _, ok := s.rooms[roomID]; !ok {
			return nil, &StorageError{Room: roomID, Err: ErrRoomNotFound}
		}
	}

	s.nextID++
	m := Message{
		ID:        s.nextID,
		RoomID:    roomID,
		SenderID:  senderID,
		Content:   content,
		CreatedAt: s.now().UTC(),
	}
	s.messages[roomID] = append(s.messages[roomID], m)
	return &m, nil
}

func (s *MemoryStore) History(_ context.Context, roomID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.messages[roomID]
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]Message, len(all))
	copy(out, all)
	return out, nil
}
