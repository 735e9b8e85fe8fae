package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"care-chat/internal/user"
)

type State int32

const (
	StateConnecting State = iota
	StateJoined
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateJoined:
		return "joined"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is the server side of one client socket, bound to one room and one user.
type Session struct {
	id       string
	roomID   string
	identity user.Identity
	conn     *websocket.Conn
	hub      *Hub
	opts     Options
	logger   *slog.Logger

	// Buffered channel of outbound frames. Never closed; done stops the writer.
	send       chan []byte
	state      atomic.Int32
	closeOnce  sync.Once
	done       chan struct{}
	writerDone chan struct{}
}

func newSession(h *Hub, conn *websocket.Conn, roomID string, identity user.Identity) (*Session, error) {
	if identity.IsZero() {
		return nil, ErrAuthRequired
	}
	id := uuid.NewString()
	return &Session{
		id:         id,
		roomID:     roomID,
		identity:   identity,
		conn:       conn,
		hub:        h,
		opts:       h.opts,
		logger:     h.logger.With("session", id, "room", roomID, "user_id", identity.ID),
		send:       make(chan []byte, h.opts.SendBuffer),
		done:       make(chan struct{}),
		writerDone: make(chan struct{}),
	}, nil
}

func (s *Session) ID() string              { return s.id }
func (s *Session) RoomID() string          { return s.roomID }
func (s *Session) Identity() user.Identity { return s.identity }
func (s *Session) State() State            { return State(s.state.Load()) }

// Deliver queues a broadcast event for this client. A full queue means the client has
// stalled; it is evicted instead of slowing down the room.
func (s *Session) Deliver(ev Event) error {
	payload, err := encodeEvent(ev)
	if err != nil {
		return &DeliveryError{SubscriberID: s.id, Err: err}
	}
	if err := s.enqueue(payload); err != nil {
		if errors.Is(err, ErrQueueFull) {
			go s.Close()
		}
		return &DeliveryError{SubscriberID: s.id, Err: err}
	}
	return nil
}

func (s *Session) enqueue(payload []byte) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}

	select {
	case s.send <- payload:
		return nil
	case <-s.done:
		return ErrSessionClosed
	default:
		return ErrQueueFull
	}
}

// reply sends a frame to this client only. A client too far behind to receive it is
// evicted, same as in Deliver.
func (s *Session) reply(v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("encode reply", "error", err)
		return
	}
	if err := s.enqueue(payload); err != nil {
		s.logger.Warn("reply dropped", "error", err)
		if errors.Is(err, ErrQueueFull) {
			s.Close()
		}
	}
}

// join moves CONNECTING -> JOINED. If the session was closed meanwhile the subscription is
// rolled back so nothing dangles.
func (s *Session) join(ctx context.Context) error {
	if err := s.hub.broadcaster.Subscribe(ctx, s.roomID, s); err != nil {
		s.Close()
		return err
	}
	if !s.state.CompareAndSwap(int32(StateConnecting), int32(StateJoined)) {
		s.unsubscribe()
		return ErrSessionClosed
	}
	s.logger.Info("session joined")
	return nil
}

func (s *Session) unsubscribe() {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.WriteWait)
	defer cancel()
	if err := s.hub.broadcaster.Unsubscribe(ctx, s.roomID, s); err != nil {
		s.logger.Error("unsubscribe failed", "error", err)
	}
}

// Close moves the session to CLOSED. Only the first call does anything.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		prev := State(s.state.Swap(int32(StateClosed)))
		if prev == StateJoined {
			s.unsubscribe()
		}
		close(s.done)
		s.hub.forget(s)
		s.logger.Info("session closed")
	})
	return nil
}

// handleFrame stores then publishes. Nothing reaches the room unless the store accepted it.
func (s *Session) handleFrame(ctx context.Context, raw []byte) {
	content, err := parseInbound(raw)
	if err != nil {
		s.logger.Debug("dropping malformed frame", "error", err)
		s.reply(ErrorFrame{Error: "malformed frame"})
		return
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	msg, err := s.hub.store.Append(storeCtx, s.roomID, s.identity.ID, content)
	cancel()
	if err != nil {
		s.logger.Error("message not stored", "error", err)
		s.reply(ErrorFrame{Error: "message could not be stored"})
		return
	}

	if err := s.hub.broadcaster.Publish(ctx, s.roomID, eventFor(msg)); err != nil {
		s.logger.Error("message stored but not published", "message_id", msg.ID, "error", err)
		s.reply(ErrorFrame{Error: "message could not be delivered"})
	}
}

func (s *Session) readPump(ctx context.Context) {
	defer s.Close()

	s.conn.SetReadLimit(s.opts.MaxMessageSize)
	if err := s.conn.SetReadDeadline(time.Now().Add(s.opts.PongWait)); err != nil {
		return
	}
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.opts.PongWait))
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Warn("read failed", "error", err)
			}
			return
		}
		s.handleFrame(ctx, raw)
	}
}

func (s *Session) writePump() {
	ticker := time.NewTicker(s.opts.pingPeriod())
	defer func() {
		ticker.Stop()
		s.conn.Close()
		close(s.writerDone)
	}()

	for {
		select {
		case payload := <-s.send:
			if err := s.write(websocket.TextMessage, payload); err != nil {
				s.logger.Debug("write failed", "error", err)
				s.Close()
				return
			}

		case <-ticker.C:
			if err := s.write(websocket.PingMessage, nil); err != nil {
				s.Close()
				return
			}

		case <-s.done:
			s.flush()
			_ = s.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// flush writes whatever was already queued when the session closed.
func (s *Session) flush() {
	for {
		select {
		case payload := <-s.send:
			if err := s.write(websocket.TextMessage, payload); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (s *Session) write(messageType int, payload []byte) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteWait)); err != nil {
		return err
	}
	return s.conn.WriteMessage(messageType, payload)
}
