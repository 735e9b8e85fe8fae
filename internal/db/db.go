package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type Database struct {
	Conn *sql.DB
}

func NewDatabase(ctx context.Context, dsn string) (*Database, error) {
	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, err
	}
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(25)
	conn.SetConnMaxLifetime(5 * time.Minute)
	return &Database{Conn: conn}, nil
}

func (d *Database) Close() error {
	return d.Conn.Close()
}

// AutoMigrate creates the tables the relay reads and writes. Users live in the auth service,
// so sender ids are plain integers here.
func (d *Database) AutoMigrate(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS doctors (
            id BIGSERIAL PRIMARY KEY,
            name VARCHAR(255) NOT NULL,
            is_available BOOLEAN NOT NULL DEFAULT TRUE,
            max_patients INT NOT NULL DEFAULT 10,
            current_patient_count INT NOT NULL DEFAULT 0
        )`,

		`CREATE TABLE IF NOT EXISTS patients (
            id BIGSERIAL PRIMARY KEY,
            name VARCHAR(255) NOT NULL,
            assigned_doctor_id BIGINT REFERENCES doctors(id) ON DELETE SET NULL,
            assignment_status VARCHAR(20) NOT NULL DEFAULT 'pending'
        )`,

		`CREATE TABLE IF NOT EXISTS chat_rooms (
            id BIGSERIAL PRIMARY KEY,
            room_id VARCHAR(100) UNIQUE NOT NULL,
            patient_id BIGINT REFERENCES patients(id) ON DELETE CASCADE,
            doctor_id BIGINT REFERENCES doctors(id) ON DELETE CASCADE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,

		`CREATE TABLE IF NOT EXISTS messages (
            id BIGSERIAL PRIMARY KEY,
            chat_room_id BIGINT NOT NULL REFERENCES chat_rooms(id) ON DELETE CASCADE,
            sender_id BIGINT NOT NULL,
            content TEXT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,

		`CREATE INDEX IF NOT EXISTS idx_messages_room_created ON messages(chat_room_id, created_at)`,
	}

	for _, query := range queries {
		if _, err := d.Conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}
