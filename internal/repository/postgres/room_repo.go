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

const roomColumns = `r.id, r.name, r.description, r.category, r.is_private, r.created_by, r.created_at`

type RoomRepo struct {
	pool *pgxpool.Pool
}

func NewRoomRepo(pool *pgxpool.Pool) *RoomRepo {
	return &RoomRepo{pool: pool}
}

func (r *RoomRepo) CreateWithOwner(ctx context.Context, room *domain.Room, owner *domain.RoomMembership) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO rooms (id, name, description, category, is_private, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := tx.Exec(ctx, query,
		room.ID, room.Name, room.Description, room.Category, room.IsPrivate, room.CreatedBy, room.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert room: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO room_members (room_id, user_id, joined_at) VALUES ($1, $2, $3)`,
		owner.RoomID, owner.UserID, owner.JoinedAt,
	); err != nil {
		return fmt.Errorf("insert owner membership: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *RoomRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Room, error) {
	var room domain.Room
	err := r.pool.QueryRow(ctx, `SELECT `+roomColumns+` FROM rooms r WHERE r.id = $1`, id).Scan(
		&room.ID, &room.Name, &room.Description, &room.Category,
		&room.IsPrivate, &room.CreatedBy, &room.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (r *RoomRepo) ListPublic(ctx context.Context) ([]domain.Room, error) {
	return r.listRooms(ctx, `SELECT `+roomColumns+` FROM rooms r WHERE NOT r.is_private ORDER BY r.created_at`)
}

func (r *RoomRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Room, error) {
	query := `
		SELECT ` + roomColumns + `
		FROM rooms r
		JOIN room_members m ON m.room_id = r.id
		WHERE m.user_id = $1
		ORDER BY m.joined_at`
	return r.listRooms(ctx, query, userID)
}

func (r *RoomRepo) listRooms(ctx context.Context, query string, args ...any) ([]domain.Room, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []domain.Room
	for rows.Next() {
		var room domain.Room
		if err := rows.Scan(&room.ID, &room.Name, &room.Description, &room.Category,
			&room.IsPrivate, &room.CreatedBy, &room.CreatedAt); err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

func (r *RoomRepo) AddMember(ctx context.Context, m *domain.RoomMembership) (bool, error) {
	query := `
		INSERT INTO room_members (room_id, user_id, joined_at) VALUES ($1, $2, $3)
		ON CONFLICT (room_id, user_id) DO NOTHING`
	tag, err := r.pool.Exec(ctx, query, m.RoomID, m.UserID, m.JoinedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *RoomRepo) RemoveMember(ctx context.Context, roomID, userID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM room_members WHERE room_id = $1 AND user_id = $2`, roomID, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *RoomRepo) GetMember(ctx context.Context, roomID, userID uuid.UUID) (*domain.RoomMembership, error) {
	query := `SELECT room_id, user_id, joined_at FROM room_members WHERE room_id = $1 AND user_id = $2`
	var m domain.RoomMembership
	err := r.pool.QueryRow(ctx, query, roomID, userID).Scan(&m.RoomID, &m.UserID, &m.JoinedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *RoomRepo) ListMembers(ctx context.Context, roomID uuid.UUID) ([]domain.RoomMember, error) {
	query := `
		SELECT u.id, u.username, u.display_name, u.is_online, u.status, m.joined_at
		FROM room_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.room_id = $1
		ORDER BY m.joined_at, u.id`

	rows, err := r.pool.Query(ctx, query, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []domain.RoomMember
	for rows.Next() {
		var m domain.RoomMember
		if err := rows.Scan(&m.UserID, &m.Username, &m.DisplayName, &m.IsOnline, &m.Status, &m.JoinedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}
