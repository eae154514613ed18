// README: Postgres persistence for pickups. Visit order and route geometry
// are stored as JSONB documents.
package pickup

import (
	"context"
	"encoding/json"
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

func (s *Store) Create(ctx context.Context, p *Pickup) error {
	donationIDs, err := json.Marshal(p.DonationIDs)
	if err != nil {
		return fmt.Errorf("encode donation ids: %w", err)
	}
	route, err := json.Marshal(p.Route)
	if err != nil {
		return fmt.Errorf("encode route: %w", err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO pickups (
			id, volunteer_id, donation_ids, route, status,
			scheduled_for, estimated_drive_secs, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		string(p.ID),
		string(p.VolunteerID),
		string(donationIDs),
		string(route),
		p.Status,
		p.ScheduledFor,
		p.EstimatedDriveSecs,
		p.CreatedAt,
	)
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Pickup, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, volunteer_id, donation_ids, route, status,
		       scheduled_for, estimated_drive_secs, created_at
		FROM pickups
		WHERE id = $1`, string(id),
	)

	var p Pickup
	var pickupID, volunteerID string
	var donationIDs, route []byte
	err := row.Scan(&pickupID, &volunteerID, &donationIDs, &route, &p.Status,
		&p.ScheduledFor, &p.EstimatedDriveSecs, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.ID = types.ID(pickupID)
	p.VolunteerID = types.ID(volunteerID)
	if err := json.Unmarshal(donationIDs, &p.DonationIDs); err != nil {
		return nil, fmt.Errorf("decode donation ids: %w", err)
	}
	if err := json.Unmarshal(route, &p.Route); err != nil {
		return nil, fmt.Errorf("decode route: %w", err)
	}
	return &p, nil
}

func (s *Store) SetStatus(ctx context.Context, id types.ID, status string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE pickups SET status = $2 WHERE id = $1`,
		string(id), status,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}
