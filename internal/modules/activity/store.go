// README: Postgres persistence for activity events.
package activity

import (
	"context"
	"database/sql"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"sharetray/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Append(ctx context.Context, e *Event) error {
	var actorID *string
	if e.ActorID != nil {
		v := string(*e.ActorID)
		actorID = &v
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO activity_events (actor_id, actor_role, action, resource, ip, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		actorID, e.ActorRole, e.Action, e.Resource, e.IP, e.CreatedAt,
	)
	return err
}

func (s *Store) ListSince(ctx context.Context, since time.Time) ([]*Event, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, actor_id, actor_role, action, resource, ip, created_at
		FROM activity_events
		WHERE created_at >= $1
		ORDER BY id`, since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Event
	for rows.Next() {
		var e Event
		var actorID sql.NullString
		err := rows.Scan(&e.ID, &actorID, &e.ActorRole, &e.Action, &e.Resource, &e.IP, &e.CreatedAt)
		if err != nil {
			return nil, err
		}
		if actorID.Valid {
			id := types.ID(actorID.String)
			e.ActorID = &id
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
