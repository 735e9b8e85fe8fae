package chat

import (
	"context"
	"database/sql"
	"errors"
)

// Repository is the Postgres MessageStore. Rooms must exist in chat_rooms.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Append(ctx context.Context, roomID string, senderID int64, content string) (*Message, error) {
	query := `
		INSERT INTO messages (chat_room_id, sender_id, content)
		SELECT id, $2, $3 FROM chat_rooms WHERE room_id = $1
		RETURNING id, created_at
	`
	m := &Message{RoomID: roomID, SenderID: senderID, Content: content}
	err := r.db.QueryRowContext(ctx, query, roomID, senderID, content).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &StorageError{Room: roomID, Err: ErrRoomNotFound}
		}
		return nil, &StorageError{Room: roomID, Err: err}
	}
	m.CreatedAt = m.CreatedAt.UTC()
	return m, nil
}

func (r *Repository) History(ctx context.Context, roomID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	query := `
		SELECT id, sender_id, content, created_at FROM (
			SELECT m.id, m.sender_id, m.content, m.created_at
			FROM messages m
			JOIN chat_rooms c ON m.chat_room_id = c.id
			WHERE c.room_id = $1
			ORDER BY m.created_at DESC, m.id DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC, id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, roomID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		m := Message{RoomID: roomID}
		if err := rows.Scan(&m.ID, &m.SenderID, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.CreatedAt = m.CreatedAt.UTC()
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
