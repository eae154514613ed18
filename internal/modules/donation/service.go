// README: Donation service implements lifecycle transitions, matching writes,
// pickup scheduling, and the expiry sweep. Every state change is persisted
// together with its audit entry in a single store operation.
package donation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"sharetray/internal/modules/recipient"
	"sharetray/internal/types"
)

var (
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrNotFound          = errors.New("donation not found")
	ErrConflict          = errors.New("donation state conflict")
	ErrBadRequest        = errors.New("bad request")
	ErrCapacityExceeded  = errors.New("recipient capacity exceeded")
)

// InvalidTransitionError names both states of a rejected transition. It
// matches ErrInvalidTransition under errors.Is.
type InvalidTransitionError struct {
	From State
	To   State
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %s to %s", e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// TransitionRecord is one atomic state change: the conditional state update
// and its audit entry commit or roll back together.
type TransitionRecord struct {
	DonationID types.ID
	From       State
	To         State
	Entry      *AuditEntry
}

// MatchRecord is the atomic unit written when a donation is matched: state
// update, capacity decrement, audit entry, and the new transaction row.
type MatchRecord struct {
	DonationID  types.ID
	RecipientID types.ID
	WeightKg    float64
	Entry       *AuditEntry
	Transaction *Transaction
}

// ScheduleRecord moves a batch of donations to pickup_scheduled
// all-or-nothing.
type ScheduleRecord struct {
	PickupID    types.ID
	DonationIDs []types.ID
	Entries     []*AuditEntry
}

type Repository interface {
	Create(ctx context.Context, d *Donation, entry *AuditEntry) error
	Get(ctx context.Context, id types.ID) (*Donation, error)
	List(ctx context.Context) ([]*Donation, error)
	ListOpen(ctx context.Context) ([]*Donation, error)
	ListExpirable(ctx context.Context, cutoff time.Time) ([]*Donation, error)
	ApplyTransition(ctx context.Context, rec TransitionRecord) (bool, error)
	AppendAudit(ctx context.Context, entry *AuditEntry) error
	AuditTrail(ctx context.Context, id types.ID) ([]*AuditEntry, error)
	Match(ctx context.Context, rec MatchRecord) (bool, error)
	SchedulePickup(ctx context.Context, rec ScheduleRecord) (bool, error)
}

type RecipientSource interface {
	Get(ctx context.Context, id types.ID) (*recipient.Recipient, error)
}

// RoleResolver reports the role of an actor, nil when the actor is unknown.
type RoleResolver interface {
	ResolveRole(ctx context.Context, id types.ID) (*types.Role, error)
}

type Service struct {
	store      Repository
	recipients RecipientSource
	roles      RoleResolver
	log        *logrus.Logger
}

func NewService(store Repository, recipients RecipientSource, roles RoleResolver, log *logrus.Logger) *Service {
	return &Service{store: store, recipients: recipients, roles: roles, log: log}
}

type CreateCommand struct {
	DonorID  types.ID
	Items    []FoodItem
	PickupBy *time.Time
	Location *types.Point
}

type TransitionCommand struct {
	DonationID types.ID
	To         State
	ActorID    *types.ID
	Note       string
}

type MatchCommand struct {
	DonationID  types.ID
	RecipientID types.ID
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Donation, error) {
	if cmd.DonorID == "" {
		return nil, fmt.Errorf("%w: donor_id is required", ErrBadRequest)
	}
	if len(cmd.Items) == 0 {
		return nil, fmt.Errorf("%w: at least one food item is required", ErrBadRequest)
	}
	items := make([]FoodItem, len(cmd.Items))
	total := 0.0
	for i, it := range cmd.Items {
		if it.Name == "" {
			return nil, fmt.Errorf("%w: item %d has no name", ErrBadRequest, i)
		}
		if it.WeightKg <= 0 {
			return nil, fmt.Errorf("%w: item %q weight_kg must be positive", ErrBadRequest, it.Name)
		}
		if it.Quantity <= 0 {
			it.Quantity = 1
		}
		if it.Perishability == "" {
			it.Perishability = PerishStable
		}
		if !ValidPerishability(it.Perishability) {
			return nil, fmt.Errorf("%w: unknown perishability %q", ErrBadRequest, it.Perishability)
		}
		items[i] = it
		total += it.WeightKg
	}

	now := time.Now().UTC()
	d := &Donation{
		ID:            types.NewID(),
		DonorID:       cmd.DonorID,
		Items:         items,
		TotalWeightKg: total,
		PickupBy:      cmd.PickupBy,
		Location:      cmd.Location,
		State:         StatePosted,
		PostedAt:      now,
		UpdatedAt:     now,
	}
	entry := &AuditEntry{
		DonationID: d.ID,
		OldState:   nil,
		NewState:   StatePosted,
		ActorID:    &cmd.DonorID,
		ActorRole:  s.resolveRole(ctx, &cmd.DonorID),
		Note:       "donation posted",
		CreatedAt:  now,
	}
	if err := s.store.Create(ctx, d, entry); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Donation, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]*Donation, error) {
	return s.store.List(ctx)
}

// ListOpen returns posted donations oldest first.
func (s *Service) ListOpen(ctx context.Context) ([]*Donation, error) {
	return s.store.ListOpen(ctx)
}

func (s *Service) AuditTrail(ctx context.Context, id types.ID) ([]*AuditEntry, error) {
	if _, err := s.store.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.store.AuditTrail(ctx, id)
}

// Transition applies a requested state change. A request for the state the
// donation is already in mutates nothing and records a single audit entry
// with old_state == new_state; an illegal request records nothing and fails.
func (s *Service) Transition(ctx context.Context, cmd TransitionCommand) (*Donation, error) {
	if !ValidState(cmd.To) {
		return nil, fmt.Errorf("%w: unknown state %q", ErrBadRequest, cmd.To)
	}
	d, err := s.store.Get(ctx, cmd.DonationID)
	if err != nil {
		return nil, err
	}

	if cmd.To == d.State {
		note := cmd.Note
		if note == "" {
			note = "idempotent transition"
		}
		from := d.State
		entry := &AuditEntry{
			DonationID: d.ID,
			OldState:   &from,
			NewState:   d.State,
			ActorID:    cmd.ActorID,
			ActorRole:  s.resolveRole(ctx, cmd.ActorID),
			Note:       note,
			CreatedAt:  time.Now().UTC(),
		}
		if err := s.store.AppendAudit(ctx, entry); err != nil {
			return nil, err
		}
		return d, nil
	}

	if !CanTransition(d.State, cmd.To) {
		return nil, &InvalidTransitionError{From: d.State, To: cmd.To}
	}

	from := d.State
	entry := &AuditEntry{
		DonationID: d.ID,
		OldState:   &from,
		NewState:   cmd.To,
		ActorID:    cmd.ActorID,
		ActorRole:  s.resolveRole(ctx, cmd.ActorID),
		Note:       cmd.Note,
		CreatedAt:  time.Now().UTC(),
	}
	ok, err := s.store.ApplyTransition(ctx, TransitionRecord{
		DonationID: d.ID,
		From:       d.State,
		To:         cmd.To,
		Entry:      entry,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	return s.store.Get(ctx, d.ID)
}

// Match assigns a recipient to a posted donation. The state change, the
// capacity decrement, the audit entry, and the transaction row are one
// atomic write: all of them land or none do.
func (s *Service) Match(ctx context.Context, cmd MatchCommand) error {
	d, err := s.store.Get(ctx, cmd.DonationID)
	if err != nil {
		return err
	}
	if !CanTransition(d.State, StateMatched) {
		return &InvalidTransitionError{From: d.State, To: StateMatched}
	}
	r, err := s.recipients.Get(ctx, cmd.RecipientID)
	if err != nil {
		return err
	}
	if r.CapacityKg < d.TotalWeightKg {
		return fmt.Errorf("%w: %.1f kg left, donation weighs %.1f kg", ErrCapacityExceeded, r.CapacityKg, d.TotalWeightKg)
	}

	now := time.Now().UTC()
	from := d.State
	ok, err := s.store.Match(ctx, MatchRecord{
		DonationID:  d.ID,
		RecipientID: r.ID,
		WeightKg:    d.TotalWeightKg,
		Entry: &AuditEntry{
			DonationID: d.ID,
			OldState:   &from,
			NewState:   StateMatched,
			Note:       "auto-match",
			CreatedAt:  now,
		},
		Transaction: &Transaction{
			ID:          types.NewID(),
			DonationID:  d.ID,
			RecipientID: r.ID,
			WeightKg:    d.TotalWeightKg,
			MatchedAt:   now,
		},
	})
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	return nil
}

// SchedulePickup moves every donation on a planned pickup to
// pickup_scheduled. The batch is all-or-nothing: one ineligible donation
// aborts the whole schedule.
func (s *Service) SchedulePickup(ctx context.Context, pickupID types.ID, donationIDs []types.ID, actorID *types.ID) error {
	if len(donationIDs) == 0 {
		return fmt.Errorf("%w: no donations to schedule", ErrBadRequest)
	}
	role := s.resolveRole(ctx, actorID)
	now := time.Now().UTC()
	entries := make([]*AuditEntry, 0, len(donationIDs))
	for _, id := range donationIDs {
		d, err := s.store.Get(ctx, id)
		if err != nil {
			return err
		}
		if !CanTransition(d.State, StatePickupScheduled) {
			return &InvalidTransitionError{From: d.State, To: StatePickupScheduled}
		}
		from := d.State
		entries = append(entries, &AuditEntry{
			DonationID: d.ID,
			OldState:   &from,
			NewState:   StatePickupScheduled,
			ActorID:    actorID,
			ActorRole:  role,
			Note:       fmt.Sprintf("pickup %s planned", pickupID),
			CreatedAt:  now,
		})
	}
	ok, err := s.store.SchedulePickup(ctx, ScheduleRecord{
		PickupID:    pickupID,
		DonationIDs: donationIDs,
		Entries:     entries,
	})
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	return nil
}

// ExpireDue moves donations whose pickup deadline has passed to expired.
// Returns the number of donations expired; individual failures are logged
// and skipped so one bad row does not stall the sweep.
func (s *Service) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	due, err := s.store.ListExpirable(ctx, now)
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, d := range due {
		if !CanTransition(d.State, StateExpired) {
			continue
		}
		from := d.State
		ok, err := s.store.ApplyTransition(ctx, TransitionRecord{
			DonationID: d.ID,
			From:       d.State,
			To:         StateExpired,
			Entry: &AuditEntry{
				DonationID: d.ID,
				OldState:   &from,
				NewState:   StateExpired,
				Note:       "pickup deadline passed",
				CreatedAt:  now,
			},
		})
		if err != nil {
			s.log.WithError(err).WithField("donation_id", d.ID).Warn("expire failed")
			continue
		}
		if ok {
			expired++
		}
	}
	return expired, nil
}

// RunExpiryMonitor sweeps for passed pickup deadlines until ctx is done.
// A non-positive interval disables the monitor.
func (s *Service) RunExpiryMonitor(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.ExpireDue(ctx, time.Now().UTC())
			if err != nil {
				s.log.WithError(err).Warn("expiry sweep failed")
				continue
			}
			if n > 0 {
				s.log.WithField("count", n).Info("donations expired")
			}
		}
	}
}

func (s *Service) resolveRole(ctx context.Context, actorID *types.ID) *types.Role {
	if actorID == nil || s.roles == nil {
		return nil
	}
	role, err := s.roles.ResolveRole(ctx, *actorID)
	if err != nil {
		return nil
	}
	return role
}
