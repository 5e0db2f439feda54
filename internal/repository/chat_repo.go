package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"inspecta-backend/internal/models"
)

type ChatRepo struct {
	pool *pgxpool.Pool
}

func NewChatRepo(pool *pgxpool.Pool) *ChatRepo {
	return &ChatRepo{pool: pool}
}

func (r *ChatRepo) Create(ctx context.Context, m *models.ChatMessage) error {
	m.ID = uuid.New()
	return r.pool.QueryRow(ctx, `
		WITH inserted AS (
			INSERT INTO chat_messages (id, domain_id, room, sender_id, body)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING created_at, sender_id
		)
		SELECT i.created_at, COALESCE(NULLIF(u.full_name, ''), u.username)
		FROM inserted i JOIN users u ON u.id = i.sender_id`,
		m.ID, m.DomainID, m.Room, m.SenderID, m.Body,
	).Scan(&m.CreatedAt, &m.SenderName)
}

// ListByRoom returns up to limit messages newest first. A non-nil before
// restricts the page to messages older than that instant.
func (r *ChatRepo) ListByRoom(ctx context.Context, domainID uuid.UUID, room string, before *time.Time, limit int) ([]*models.ChatMessage, error) {
	var w whereClause
	w.add("m.domain_id = ?", domainID)
	w.add("m.room = ?", room)
	if before != nil {
		w.add("m.created_at < ?", *before)
	}
	limitArg := w.next()
	args := append(w.args, clampLimit(limit, 50, 200))

	rows, err := r.pool.Query(ctx, `
		SELECT m.id, m.domain_id, m.room, m.sender_id, COALESCE(NULLIF(u.full_name, ''), u.username), m.body, m.created_at
		FROM chat_messages m
		JOIN users u ON u.id = m.sender_id
		`+w.String()+`
		ORDER BY m.created_at DESC
		LIMIT `+limitArg, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]*models.ChatMessage, 0)
	for rows.Next() {
		m := &models.ChatMessage{}
		if err := rows.Scan(&m.ID, &m.DomainID, &m.Room, &m.SenderID, &m.SenderName, &m.Body, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
