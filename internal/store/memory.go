// README: In-memory store for tests and the dev backend. One mutex guards all
// state, so multi-row operations (transition + audit, match + capacity) are
// atomic the same way the Postgres transactions are.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"sharetray/internal/modules/activity"
	"sharetray/internal/modules/donation"
	"sharetray/internal/modules/pickup"
	"sharetray/internal/modules/recipient"
	"sharetray/internal/modules/tracking"
	"sharetray/internal/modules/user"
	"sharetray/internal/types"
)

type Memory struct {
	mu           sync.Mutex
	users        map[types.ID]*user.User
	recipients   map[types.ID]*recipient.Recipient
	donations    map[types.ID]*donation.Donation
	audits       []*donation.AuditEntry
	auditSeq     int64
	transactions []*donation.Transaction
	pickups      map[types.ID]*pickup.Pickup
	snapshots    []*tracking.Snapshot
	snapshotSeq  int64
	events       []*activity.Event
	eventSeq     int64
}

func NewMemory() *Memory {
	return &Memory{
		users:      map[types.ID]*user.User{},
		recipients: map[types.ID]*recipient.Recipient{},
		donations:  map[types.ID]*donation.Donation{},
		pickups:    map[types.ID]*pickup.Pickup{},
	}
}

// Per-module views. Each one adapts the shared state to the repository
// interface its module expects.

func (m *Memory) Users() *MemoryUsers           { return &MemoryUsers{m: m} }
func (m *Memory) Recipients() *MemoryRecipients { return &MemoryRecipients{m: m} }
func (m *Memory) Donations() *MemoryDonations   { return &MemoryDonations{m: m} }
func (m *Memory) Pickups() *MemoryPickups       { return &MemoryPickups{m: m} }
func (m *Memory) Snapshots() *MemorySnapshots   { return &MemorySnapshots{m: m} }
func (m *Memory) Events() *MemoryEvents         { return &MemoryEvents{m: m} }

type MemoryUsers struct{ m *Memory }

func (s *MemoryUsers) Create(ctx context.Context, u *user.User) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, existing := range s.m.users {
		if existing.Name == u.Name {
			return fmt.Errorf("%w: name %q", user.ErrConflict, u.Name)
		}
	}
	s.m.users[u.ID] = cloneUser(u)
	return nil
}

func (s *MemoryUsers) Get(ctx context.Context, id types.ID) (*user.User, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	u, ok := s.m.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return cloneUser(u), nil
}

func (s *MemoryUsers) GetByName(ctx context.Context, name string) (*user.User, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, u := range s.m.users {
		if u.Name == name {
			return cloneUser(u), nil
		}
	}
	return nil, user.ErrNotFound
}

func (s *MemoryUsers) UpdateLocation(ctx context.Context, id types.ID, pos types.Point) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	u, ok := s.m.users[id]
	if !ok {
		return user.ErrNotFound
	}
	p := pos
	u.Location = &p
	return nil
}

func (s *MemoryUsers) ListByRole(ctx context.Context, role types.Role) ([]*user.User, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var out []*user.User
	for _, u := range s.m.users {
		if u.Role == role {
			out = append(out, cloneUser(u))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

type MemoryRecipients struct{ m *Memory }

func (s *MemoryRecipients) Create(ctx context.Context, r *recipient.Recipient) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.recipients[r.ID] = cloneRecipient(r)
	return nil
}

func (s *MemoryRecipients) Get(ctx context.Context, id types.ID) (*recipient.Recipient, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	r, ok := s.m.recipients[id]
	if !ok {
		return nil, recipient.ErrNotFound
	}
	return cloneRecipient(r), nil
}

func (s *MemoryRecipients) List(ctx context.Context) ([]*recipient.Recipient, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	out := make([]*recipient.Recipient, 0, len(s.m.recipients))
	for _, r := range s.m.recipients {
		out = append(out, cloneRecipient(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryRecipients) SetCapacity(ctx context.Context, id types.ID, capacityKg float64) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	r, ok := s.m.recipients[id]
	if !ok {
		return recipient.ErrNotFound
	}
	r.CapacityKg = capacityKg
	return nil
}

type MemoryDonations struct{ m *Memory }

func (s *MemoryDonations) Create(ctx context.Context, d *donation.Donation, entry *donation.AuditEntry) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, exists := s.m.donations[d.ID]; exists {
		return fmt.Errorf("%w: donation %s exists", donation.ErrConflict, d.ID)
	}
	s.m.donations[d.ID] = cloneDonation(d)
	s.m.appendAuditLocked(entry)
	return nil
}

func (s *MemoryDonations) Get(ctx context.Context, id types.ID) (*donation.Donation, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	d, ok := s.m.donations[id]
	if !ok {
		return nil, donation.ErrNotFound
	}
	return cloneDonation(d), nil
}

func (s *MemoryDonations) List(ctx context.Context) ([]*donation.Donation, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	return s.listLocked(func(*donation.Donation) bool { return true }), nil
}

func (s *MemoryDonations) ListOpen(ctx context.Context) ([]*donation.Donation, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	return s.listLocked(func(d *donation.Donation) bool { return d.State == donation.StatePosted }), nil
}

func (s *MemoryDonations) ListExpirable(ctx context.Context, cutoff time.Time) ([]*donation.Donation, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	return s.listLocked(func(d *donation.Donation) bool {
		if d.State != donation.StatePosted && d.State != donation.StateMatched {
			return false
		}
		return d.PickupBy != nil && d.PickupBy.Before(cutoff)
	}), nil
}

func (s *MemoryDonations) listLocked(keep func(*donation.Donation) bool) []*donation.Donation {
	var out []*donation.Donation
	for _, d := range s.m.donations {
		if keep(d) {
			out = append(out, cloneDonation(d))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PostedAt.Equal(out[j].PostedAt) {
			return out[i].PostedAt.Before(out[j].PostedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *MemoryDonations) ApplyTransition(ctx context.Context, rec donation.TransitionRecord) (bool, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	d, ok := s.m.donations[rec.DonationID]
	if !ok || d.State != rec.From {
		return false, nil
	}
	d.State = rec.To
	d.UpdatedAt = rec.Entry.CreatedAt
	switch rec.To {
	case donation.StateInTransit:
		for _, t := range s.m.transactions {
			if t.DonationID == d.ID && t.PickedUpAt == nil {
				ts := rec.Entry.CreatedAt
				t.PickedUpAt = &ts
			}
		}
	case donation.StateDelivered:
		for _, t := range s.m.transactions {
			if t.DonationID == d.ID && t.DeliveredAt == nil {
				ts := rec.Entry.CreatedAt
				t.DeliveredAt = &ts
			}
		}
	}
	s.m.appendAuditLocked(rec.Entry)
	return true, nil
}

func (s *MemoryDonations) AppendAudit(ctx context.Context, entry *donation.AuditEntry) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.appendAuditLocked(entry)
	return nil
}

func (s *MemoryDonations) AuditTrail(ctx context.Context, id types.ID) ([]*donation.AuditEntry, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var out []*donation.AuditEntry
	for _, e := range s.m.audits {
		if e.DonationID == id {
			out = append(out, cloneAudit(e))
		}
	}
	return out, nil
}

func (s *MemoryDonations) Match(ctx context.Context, rec donation.MatchRecord) (bool, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	d, ok := s.m.donations[rec.DonationID]
	if !ok || d.State != donation.StatePosted {
		return false, nil
	}
	r, ok := s.m.recipients[rec.RecipientID]
	if !ok || r.CapacityKg < rec.WeightKg {
		return false, nil
	}
	rid := rec.RecipientID
	d.State = donation.StateMatched
	d.MatchedRecipientID = &rid
	d.UpdatedAt = rec.Entry.CreatedAt
	r.CapacityKg -= rec.WeightKg
	s.m.appendAuditLocked(rec.Entry)
	s.m.transactions = append(s.m.transactions, cloneTransaction(rec.Transaction))
	return true, nil
}

func (s *MemoryDonations) SchedulePickup(ctx context.Context, rec donation.ScheduleRecord) (bool, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	// Validate the whole batch before touching anything.
	for _, id := range rec.DonationIDs {
		d, ok := s.m.donations[id]
		if !ok || d.State != donation.StateMatched {
			return false, nil
		}
	}
	for i, id := range rec.DonationIDs {
		d := s.m.donations[id]
		pid := rec.PickupID
		d.State = donation.StatePickupScheduled
		d.PickupID = &pid
		d.UpdatedAt = rec.Entries[i].CreatedAt
		s.m.appendAuditLocked(rec.Entries[i])
	}
	return true, nil
}

func (s *MemoryDonations) DeliveredStats(ctx context.Context) (donation.DeliveredStats, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var stats donation.DeliveredStats
	for _, d := range s.m.donations {
		if d.State == donation.StateDelivered {
			stats.Count++
			stats.TotalWeightKg += d.TotalWeightKg
		}
	}
	return stats, nil
}

func (s *MemoryDonations) ListDeliveredTransactions(ctx context.Context) ([]*donation.Transaction, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var out []*donation.Transaction
	for _, t := range s.m.transactions {
		d, ok := s.m.donations[t.DonationID]
		if ok && d.State == donation.StateDelivered {
			out = append(out, cloneTransaction(t))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].MatchedAt.Equal(out[j].MatchedAt) {
			return out[i].MatchedAt.Before(out[j].MatchedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

type MemoryPickups struct{ m *Memory }

func (s *MemoryPickups) Create(ctx context.Context, p *pickup.Pickup) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.pickups[p.ID] = clonePickup(p)
	return nil
}

func (s *MemoryPickups) Get(ctx context.Context, id types.ID) (*pickup.Pickup, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	p, ok := s.m.pickups[id]
	if !ok {
		return nil, pickup.ErrNotFound
	}
	return clonePickup(p), nil
}

func (s *MemoryPickups) SetStatus(ctx context.Context, id types.ID, status string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	p, ok := s.m.pickups[id]
	if !ok {
		return pickup.ErrNotFound
	}
	p.Status = status
	return nil
}

type MemorySnapshots struct{ m *Memory }

func (s *MemorySnapshots) Append(ctx context.Context, snap *tracking.Snapshot) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.snapshotSeq++
	c := *snap
	c.ID = s.m.snapshotSeq
	s.m.snapshots = append(s.m.snapshots, &c)
	return nil
}

func (s *MemorySnapshots) List(ctx context.Context) ([]*tracking.Snapshot, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	out := make([]*tracking.Snapshot, len(s.m.snapshots))
	for i, snap := range s.m.snapshots {
		c := *snap
		out[i] = &c
	}
	return out, nil
}

type MemoryEvents struct{ m *Memory }

func (s *MemoryEvents) Append(ctx context.Context, e *activity.Event) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.eventSeq++
	c := *e
	c.ID = s.m.eventSeq
	c.ActorID = copyPtr(e.ActorID)
	s.m.events = append(s.m.events, &c)
	return nil
}

func (s *MemoryEvents) ListSince(ctx context.Context, since time.Time) ([]*activity.Event, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var out []*activity.Event
	for _, e := range s.m.events {
		if !e.CreatedAt.Before(since) {
			c := *e
			c.ActorID = copyPtr(e.ActorID)
			out = append(out, &c)
		}
	}
	return out, nil
}

func (m *Memory) appendAuditLocked(entry *donation.AuditEntry) {
	m.auditSeq++
	c := cloneAudit(entry)
	c.ID = m.auditSeq
	m.audits = append(m.audits, c)
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneUser(u *user.User) *user.User {
	c := *u
	c.Phone = copyPtr(u.Phone)
	c.Location = copyPtr(u.Location)
	return &c
}

func cloneRecipient(r *recipient.Recipient) *recipient.Recipient {
	c := *r
	c.Location = copyPtr(r.Location)
	c.ContactPhone = copyPtr(r.ContactPhone)
	return &c
}

func cloneDonation(d *donation.Donation) *donation.Donation {
	c := *d
	c.Items = append([]donation.FoodItem(nil), d.Items...)
	c.PickupBy = copyPtr(d.PickupBy)
	c.Location = copyPtr(d.Location)
	c.MatchedRecipientID = copyPtr(d.MatchedRecipientID)
	c.PickupID = copyPtr(d.PickupID)
	return &c
}

func cloneAudit(e *donation.AuditEntry) *donation.AuditEntry {
	c := *e
	c.OldState = copyPtr(e.OldState)
	c.ActorID = copyPtr(e.ActorID)
	c.ActorRole = copyPtr(e.ActorRole)
	return &c
}

func cloneTransaction(t *donation.Transaction) *donation.Transaction {
	c := *t
	c.PickedUpAt = copyPtr(t.PickedUpAt)
	c.DeliveredAt = copyPtr(t.DeliveredAt)
	return &c
}

func clonePickup(p *pickup.Pickup) *pickup.Pickup {
	c := *p
	c.DonationIDs = append([]types.ID(nil), p.DonationIDs...)
	c.Route = append([]pickup.RouteCoordinate(nil), p.Route...)
	c.EstimatedDriveSecs = copyPtr(p.EstimatedDriveSecs)
	return &c
}
