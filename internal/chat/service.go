// Package chat is only the system-message sink the nudge pipeline writes
// into. The durable thread is the idempotency record for message-channel
// nudges; full chat lives elsewhere.
package chat

import (
	"context"
	"time"

	"backend-tripline/internal/db"

	"github.com/google/uuid"
)

type Message struct {
	ID        string    `json:"id"`
	TripID    string    `json:"trip_id"`
	DedupeKey string    `json:"dedupe_key"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

type Service struct {
	db db.Querier
}

func NewService(q db.Querier) *Service {
	return &Service{db: q}
}

// EnsureSystemMessage appends a system message unless one with the same
// dedupe key already exists for the trip. The unique index makes the
// check-and-insert race-safe; two concurrent callers produce one row.
func (s *Service) EnsureSystemMessage(ctx context.Context, tripID, dedupeKey, body string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO trip_messages (id, trip_id, dedupe_key, body)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (trip_id, dedupe_key) DO NOTHING
	`, uuid.NewString(), tripID, dedupeKey, body)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Service) MessageExists(ctx context.Context, tripID, dedupeKey string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM trip_messages WHERE trip_id=$1 AND dedupe_key=$2
		)
	`, tripID, dedupeKey).Scan(&exists)
	return exists, err
}

func (s *Service) Messages(ctx context.Context, tripID string) ([]Message, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, trip_id, dedupe_key, body, created_at
		FROM trip_messages WHERE trip_id=$1
		ORDER BY created_at
	`, tripID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.TripID, &m.DedupeKey, &m.Body, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, nil
}
