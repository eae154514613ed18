// README: Tracking service keeps volunteer positions fresh: write-through to
// the user record, an append-only snapshot trail, and an optional geo index
// for nearby lookups.
package tracking

import (
	"context"
	"time"

	"sharetray/internal/geo"
	"sharetray/internal/modules/user"
	"sharetray/internal/types"
)

// GeoIndex is the optional Redis-backed position index.
type GeoIndex interface {
	Add(ctx context.Context, userID types.ID, pos types.Point) error
	Nearby(ctx context.Context, pos types.Point, radiusKm float64, limit int) ([]Neighbor, error)
	Remove(ctx context.Context, userID types.ID) error
}

type SnapshotStore interface {
	Append(ctx context.Context, snap *Snapshot) error
}

type UserLocations interface {
	UpdateLocation(ctx context.Context, id types.ID, pos types.Point) error
	ListByRole(ctx context.Context, role types.Role) ([]*user.User, error)
}

type Service struct {
	users     UserLocations
	snapshots SnapshotStore
	index     GeoIndex
}

// NewService wires tracking. index may be nil; Nearby then falls back to
// scanning volunteer records.
func NewService(users UserLocations, snapshots SnapshotStore, index GeoIndex) *Service {
	return &Service{users: users, snapshots: snapshots, index: index}
}

// Record stores a position report in all three places.
func (s *Service) Record(ctx context.Context, userID types.ID, pos types.Point) error {
	if err := s.users.UpdateLocation(ctx, userID, pos); err != nil {
		return err
	}
	if err := s.snapshots.Append(ctx, &Snapshot{
		UserID:     userID,
		Location:   pos,
		RecordedAt: time.Now().UTC(),
	}); err != nil {
		return err
	}
	if s.index != nil {
		return s.index.Add(ctx, userID, pos)
	}
	return nil
}

// Nearby lists volunteers within radiusKm of pos, closest first.
func (s *Service) Nearby(ctx context.Context, pos types.Point, radiusKm float64, limit int) ([]Neighbor, error) {
	if s.index != nil {
		return s.index.Nearby(ctx, pos, radiusKm, limit)
	}

	volunteers, err := s.users.ListByRole(ctx, types.RoleVolunteer)
	if err != nil {
		return nil, err
	}
	located := make([]*user.User, 0, len(volunteers))
	for _, v := range volunteers {
		if v.Location != nil && geo.DistanceKm(pos, *v.Location) <= radiusKm {
			located = append(located, v)
		}
	}
	geo.SortByDistance(located, func(v *user.User) float64 { return geo.DistanceKm(pos, *v.Location) })

	out := make([]Neighbor, 0, len(located))
	for _, v := range located {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, Neighbor{UserID: v.ID, DistanceKm: geo.DistanceKm(pos, *v.Location)})
	}
	return out, nil
}

// Remove drops a volunteer from the geo index, typically on sign-out.
func (s *Service) Remove(ctx context.Context, userID types.ID) error {
	if s.index == nil {
		return nil
	}
	return s.index.Remove(ctx, userID)
}
