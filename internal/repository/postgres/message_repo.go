package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vedran77/lounge/internal/domain"
)

const messageColumns = `
	m.id, m.seq, m.kind, m.content, m.sender_id, m.room_id, m.recipient_id,
	m.media_url, m.media_type, m.created_at, u.username, u.display_name`

type MessageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepo(pool *pgxpool.Pool) *MessageRepo {
	return &MessageRepo{pool: pool}
}

func (r *MessageRepo) Create(ctx context.Context, msg *domain.Message) error {
	query := `
		INSERT INTO messages (id, kind, content, sender_id, room_id, recipient_id, media_url, media_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING seq`
	return r.pool.QueryRow(ctx, query,
		msg.ID, msg.Kind, msg.Content, msg.SenderID, msg.RoomID, msg.RecipientID,
		msg.MediaURL, msg.MediaType, msg.CreatedAt,
	).Scan(&msg.Seq)
}

func (r *MessageRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	query := `SELECT ` + messageColumns + `
		FROM messages m
		JOIN users u ON m.sender_id = u.id
		WHERE m.id = $1`
	msg, err := scanMessage(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return msg, err
}

func (r *MessageRepo) ListByRoom(ctx context.Context, roomID uuid.UUID, before *uuid.UUID, limit int) ([]domain.Message, error) {
	where := `m.room_id = $1`
	args := []any{roomID}
	if before != nil {
		where += ` AND m.seq < (SELECT seq FROM messages WHERE id = $2)`
		args = append(args, *before)
	}
	return r.list(ctx, where, limit, args...)
}

// ListDirect matches the pair in both directions; room rows never match
// because recipient_id is null for them.
func (r *MessageRepo) ListDirect(ctx context.Context, userA, userB uuid.UUID, before *uuid.UUID, limit int) ([]domain.Message, error) {
	where := `m.room_id IS NULL AND (
			(m.sender_id = $1 AND m.recipient_id = $2) OR
			(m.sender_id = $2 AND m.recipient_id = $1))`
	args := []any{userA, userB}
	if before != nil {
		where += ` AND m.seq < (SELECT seq FROM messages WHERE id = $3)`
		args = append(args, *before)
	}
	return r.list(ctx, where, limit, args...)
}

// list reads the newest rows first and returns them oldest first.
func (r *MessageRepo) list(ctx context.Context, where string, limit int, args ...any) ([]domain.Message, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM messages m
		JOIN users u ON m.sender_id = u.id
		WHERE %s
		ORDER BY m.seq DESC
		LIMIT %d`, messageColumns, where, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func scanMessage(row pgx.Row) (*domain.Message, error) {
	var msg domain.Message
	err := row.Scan(
		&msg.ID, &msg.Seq, &msg.Kind, &msg.Content, &msg.SenderID, &msg.RoomID, &msg.RecipientID,
		&msg.MediaURL, &msg.MediaType, &msg.CreatedAt, &msg.SenderUsername, &msg.SenderDisplayName,
	)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}
