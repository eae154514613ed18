// README: Postgres persistence for recipients.
package recipient

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

func (s *Store) Create(ctx context.Context, r *Recipient) error {
	var lng, lat *float64
	if r.Location != nil {
		lng, lat = &r.Location.Lng, &r.Location.Lat
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO recipients (id, name, capacity_kg, lng, lat, contact_phone, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, string(r.ID), r.Name, r.CapacityKg, lng, lat, r.ContactPhone, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert recipient: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Recipient, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, name, capacity_kg, lng, lat, contact_phone, created_at
		FROM recipients WHERE id = $1
	`, string(id))
	return scanRecipient(row)
}

func (s *Store) List(ctx context.Context) ([]*Recipient, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, capacity_kg, lng, lat, contact_phone, created_at
		FROM recipients ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list recipients: %w", err)
	}
	defer rows.Close()

	var out []*Recipient
	for rows.Next() {
		r, err := scanRecipient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) SetCapacity(ctx context.Context, id types.ID, capacityKg float64) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE recipients SET capacity_kg = $2 WHERE id = $1
	`, string(id), capacityKg)
	if err != nil {
		return fmt.Errorf("update recipient capacity: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}

func scanRecipient(row pgx.Row) (*Recipient, error) {
	var (
		r        Recipient
		id       string
		lng, lat *float64
	)
	err := row.Scan(&id, &r.Name, &r.CapacityKg, &lng, &lat, &r.ContactPhone, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan recipient: %w", err)
	}
	r.ID = types.ID(id)
	if lng != nil && lat != nil {
		r.Location = &types.Point{Lng: *lng, Lat: *lat}
	}
	return &r, nil
}
