// README: Donation store backed by PostgreSQL. State changes and their audit
// entries are written inside one transaction so history can never drift from
// state.
package donation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"sharetray/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, d *Donation, entry *AuditEntry) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var lng, lat *float64
	if d.Location != nil {
		lng, lat = &d.Location.Lng, &d.Location.Lat
	}
	items, err := json.Marshal(d.Items)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO donations (
			id, donor_id, items, total_weight_kg, pickup_by, lng, lat,
			state, matched_recipient_id, pickup_id, posted_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12
		)`,
		string(d.ID),
		string(d.DonorID),
		items,
		d.TotalWeightKg,
		d.PickupBy,
		lng, lat,
		string(d.State),
		toStringPtr(d.MatchedRecipientID),
		toStringPtr(d.PickupID),
		d.PostedAt,
		d.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if err := insertAudit(ctx, tx, entry); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const donationColumns = `
	id, donor_id, items, total_weight_kg, pickup_by, lng, lat,
	state, matched_recipient_id, pickup_id, posted_at, updated_at`

func (s *Store) Get(ctx context.Context, id types.ID) (*Donation, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+donationColumns+`
		FROM donations
		WHERE id = $1`, string(id),
	)
	return scanDonation(row)
}

func (s *Store) List(ctx context.Context) ([]*Donation, error) {
	return s.queryDonations(ctx, `
		SELECT `+donationColumns+`
		FROM donations
		ORDER BY posted_at, id`)
}

func (s *Store) ListOpen(ctx context.Context) ([]*Donation, error) {
	return s.queryDonations(ctx, `
		SELECT `+donationColumns+`
		FROM donations
		WHERE state = 'posted'
		ORDER BY posted_at, id`)
}

func (s *Store) ListExpirable(ctx context.Context, cutoff time.Time) ([]*Donation, error) {
	return s.queryDonations(ctx, `
		SELECT `+donationColumns+`
		FROM donations
		WHERE state IN ('posted', 'matched')
		  AND pickup_by IS NOT NULL
		  AND pickup_by < $1
		ORDER BY posted_at, id`, cutoff)
}

func (s *Store) ApplyTransition(ctx context.Context, rec TransitionRecord) (bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := rec.Entry.CreatedAt
	tag, err := tx.Exec(ctx, `
		UPDATE donations
		SET state = $1, updated_at = $2
		WHERE id = $3 AND state = $4`,
		string(rec.To), now, string(rec.DonationID), string(rec.From),
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() != 1 {
		return false, nil
	}

	// The transaction row picks up its movement timestamps as the donation
	// advances.
	switch rec.To {
	case StateInTransit:
		_, err = tx.Exec(ctx, `
			UPDATE transactions SET picked_up_at = $1
			WHERE donation_id = $2 AND picked_up_at IS NULL`,
			now, string(rec.DonationID))
	case StateDelivered:
		_, err = tx.Exec(ctx, `
			UPDATE transactions SET delivered_at = $1
			WHERE donation_id = $2 AND delivered_at IS NULL`,
			now, string(rec.DonationID))
	}
	if err != nil {
		return false, err
	}

	if err := insertAudit(ctx, tx, rec.Entry); err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) AppendAudit(ctx context.Context, entry *AuditEntry) error {
	return insertAudit(ctx, s.db, entry)
}

func (s *Store) AuditTrail(ctx context.Context, id types.ID) ([]*AuditEntry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, donation_id, old_state, new_state, actor_id, actor_role, note, created_at
		FROM donation_audit_log
		WHERE donation_id = $1
		ORDER BY id`, string(id),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*AuditEntry
	for rows.Next() {
		var e AuditEntry
		var donationID string
		var oldState, actorID, actorRole sql.NullString
		err := rows.Scan(&e.ID, &donationID, &oldState, &e.NewState, &actorID, &actorRole, &e.Note, &e.CreatedAt)
		if err != nil {
			return nil, err
		}
		e.DonationID = types.ID(donationID)
		if oldState.Valid {
			st := State(oldState.String)
			e.OldState = &st
		}
		if actorID.Valid {
			id := types.ID(actorID.String)
			e.ActorID = &id
		}
		if actorRole.Valid {
			r := types.Role(actorRole.String)
			e.ActorRole = &r
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (s *Store) Match(ctx context.Context, rec MatchRecord) (bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := rec.Entry.CreatedAt
	tag, err := tx.Exec(ctx, `
		UPDATE donations
		SET state = 'matched', matched_recipient_id = $1, updated_at = $2
		WHERE id = $3 AND state = 'posted'`,
		string(rec.RecipientID), now, string(rec.DonationID),
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() != 1 {
		return false, nil
	}

	tag, err = tx.Exec(ctx, `
		UPDATE recipients
		SET capacity_kg = capacity_kg - $1
		WHERE id = $2 AND capacity_kg >= $1`,
		rec.WeightKg, string(rec.RecipientID),
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() != 1 {
		return false, nil
	}

	if err := insertAudit(ctx, tx, rec.Entry); err != nil {
		return false, err
	}
	t := rec.Transaction
	_, err = tx.Exec(ctx, `
		INSERT INTO transactions (id, donation_id, recipient_id, weight_kg, matched_at)
		VALUES ($1, $2, $3, $4, $5)`,
		string(t.ID), string(t.DonationID), string(t.RecipientID), t.WeightKg, t.MatchedAt,
	)
	if err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) SchedulePickup(ctx context.Context, rec ScheduleRecord) (bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for i, id := range rec.DonationIDs {
		entry := rec.Entries[i]
		tag, err := tx.Exec(ctx, `
			UPDATE donations
			SET state = 'pickup_scheduled', pickup_id = $1, updated_at = $2
			WHERE id = $3 AND state = 'matched'`,
			string(rec.PickupID), entry.CreatedAt, string(id),
		)
		if err != nil {
			return false, err
		}
		if tag.RowsAffected() != 1 {
			return false, nil
		}
		if err := insertAudit(ctx, tx, entry); err != nil {
			return false, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) DeliveredStats(ctx context.Context) (DeliveredStats, error) {
	row := s.db.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(total_weight_kg), 0)
		FROM donations
		WHERE state = 'delivered'`,
	)
	var stats DeliveredStats
	if err := row.Scan(&stats.Count, &stats.TotalWeightKg); err != nil {
		return DeliveredStats{}, err
	}
	return stats, nil
}

func (s *Store) ListDeliveredTransactions(ctx context.Context) ([]*Transaction, error) {
	rows, err := s.db.Query(ctx, `
		SELECT t.id, t.donation_id, t.recipient_id, t.weight_kg,
		       t.matched_at, t.picked_up_at, t.delivered_at
		FROM transactions t
		JOIN donations d ON d.id = t.donation_id
		WHERE d.state = 'delivered'
		ORDER BY t.matched_at, t.id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Transaction
	for rows.Next() {
		var t Transaction
		var id, donationID, recipientID string
		var pickedUp, delivered sql.NullTime
		err := rows.Scan(&id, &donationID, &recipientID, &t.WeightKg, &t.MatchedAt, &pickedUp, &delivered)
		if err != nil {
			return nil, err
		}
		t.ID = types.ID(id)
		t.DonationID = types.ID(donationID)
		t.RecipientID = types.ID(recipientID)
		t.PickedUpAt = toTimePtr(pickedUp)
		t.DeliveredAt = toTimePtr(delivered)
		out = append(out, &t)
	}
	return out, rows.Err()
}

// execer is satisfied by both *pgxpool.Pool and pgx.Tx so audit inserts can
// run inside a transaction or stand alone.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertAudit(ctx context.Context, db execer, entry *AuditEntry) error {
	var oldState *string
	if entry.OldState != nil {
		v := string(*entry.OldState)
		oldState = &v
	}
	var actorRole *string
	if entry.ActorRole != nil {
		v := string(*entry.ActorRole)
		actorRole = &v
	}
	_, err := db.Exec(ctx, `
		INSERT INTO donation_audit_log (
			donation_id, old_state, new_state, actor_id, actor_role, note, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		string(entry.DonationID),
		oldState,
		string(entry.NewState),
		toStringPtr(entry.ActorID),
		actorRole,
		entry.Note,
		entry.CreatedAt,
	)
	return err
}

func (s *Store) queryDonations(ctx context.Context, query string, args ...any) ([]*Donation, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Donation
	for rows.Next() {
		d, err := scanDonation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func scanDonation(row pgx.Row) (*Donation, error) {
	var d Donation
	var id, donorID, state string
	var items []byte
	var pickupBy sql.NullTime
	var lng, lat sql.NullFloat64
	var matchedRecipientID, pickupID sql.NullString
	err := row.Scan(
		&id, &donorID, &items, &d.TotalWeightKg, &pickupBy, &lng, &lat,
		&state, &matchedRecipientID, &pickupID, &d.PostedAt, &d.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &d.Items); err != nil {
		return nil, err
	}
	d.ID = types.ID(id)
	d.DonorID = types.ID(donorID)
	d.State = State(state)
	d.PickupBy = toTimePtr(pickupBy)
	if lng.Valid && lat.Valid {
		d.Location = &types.Point{Lng: lng.Float64, Lat: lat.Float64}
	}
	if matchedRecipientID.Valid {
		r := types.ID(matchedRecipientID.String)
		d.MatchedRecipientID = &r
	}
	if pickupID.Valid {
		p := types.ID(pickupID.String)
		d.PickupID = &p
	}
	return &d, nil
}

func toStringPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func toTimePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
