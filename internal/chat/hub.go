package chat

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"care-chat/internal/user"
)

// Options tunes every session the hub serves.
type Options struct {
	SendBuffer     int
	MaxMessageSize int64
	WriteWait      time.Duration
	PongWait       time.Duration
	StoreTimeout   time.Duration
}

func (o Options) withDefaults() Options {
	if o.SendBuffer <= 0 {
		o.SendBuffer = 256
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = 64 * 1024
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.StoreTimeout <= 0 {
		o.StoreTimeout = 5 * time.Second
	}
	return o
}

// Must be less than PongWait.
func (o Options) pingPeriod() time.Duration {
	return (o.PongWait * 9) / 10
}

type Stats struct {
	Rooms    int `json:"rooms"`
	Sessions int `json:"sessions"`
}

// Hub wires sessions to the message store and the broadcaster, and tracks them so the
// process can shut down cleanly.
type Hub struct {
	store       MessageStore
	broadcaster Broadcaster
	opts        Options
	logger      *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
	wg       sync.WaitGroup
}

func NewHub(store MessageStore, broadcaster Broadcaster, opts Options, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		store:       store,
		broadcaster: broadcaster,
		opts:        opts.withDefaults(),
		logger:      logger,
		sessions:    make(map[string]*Session),
	}
}

// Serve runs one session on an upgraded connection and returns once both pumps are done.
func (h *Hub) Serve(ctx context.Context, conn *websocket.Conn, roomID string, identity user.Identity) error {
	s, err := newSession(h, conn, roomID, identity)
	if err != nil {
		conn.Close()
		return err
	}
	if !h.track(s) {
		conn.Close()
		return ErrHubClosed
	}
	defer h.wg.Done()

	if err := s.join(ctx); err != nil {
		conn.Close()
		return err
	}

	go s.writePump()
	s.readPump(ctx)
	<-s.writerDone
	return nil
}

func (h *Hub) track(s *Session) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.sessions[s.id] = s
	h.wg.Add(1)
	return true
}

func (h *Hub) forget(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, s.id)
}

func (h *Hub) Stats() Stats {
	h.mu.Lock()
	sessions := len(h.sessions)
	h.mu.Unlock()
	return Stats{Rooms: h.broadcaster.Rooms(), Sessions: sessions}
}

// Shutdown refuses new sessions, closes the live ones and waits for them to finish.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	sessions := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	h.logger.Info("closing sessions", "count", len(sessions))
	for _, s := range sessions {
		s.Close()
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
