// README: Postgres persistence for users.
package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"sharetray/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, u *User) error {
	var lng, lat *float64
	if u.Location != nil {
		lng, lat = &u.Location.Lng, &u.Location.Lat
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO users (id, name, role, phone, lng, lat, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, string(u.ID), u.Name, string(u.Role), u.Phone, lng, lat, u.PasswordHash, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id types.ID) (*User, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, name, role, phone, lng, lat, password_hash, created_at
		FROM users WHERE id = $1
	`, string(id))
	return scanUser(row)
}

func (s *Store) GetByName(ctx context.Context, name string) (*User, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, name, role, phone, lng, lat, password_hash, created_at
		FROM users WHERE name = $1
	`, name)
	return scanUser(row)
}

func (s *Store) UpdateLocation(ctx context.Context, id types.ID, loc types.Point) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE users SET lng = $2, lat = $3 WHERE id = $1
	`, string(id), loc.Lng, loc.Lat)
	if err != nil {
		return fmt.Errorf("update user location: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ListByRole(ctx context.Context, role types.Role) ([]*User, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, role, phone, lng, lat, password_hash, created_at
		FROM users WHERE role = $1 ORDER BY name, id
	`, string(role))
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func scanUser(row pgx.Row) (*User, error) {
	var (
		u        User
		id, role string
		lng, lat *float64
	)
	err := row.Scan(&id, &u.Name, &role, &u.Phone, &lng, &lat, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.ID = types.ID(id)
	u.Role = types.Role(role)
	if lng != nil && lat != nil {
		u.Location = &types.Point{Lng: *lng, Lat: *lat}
	}
	return &u, nil
}
