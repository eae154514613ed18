// README: Pickup service plans nearest-neighbor routes and schedules volunteer
// runs against the donation lifecycle.
package pickup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sharetray/internal/geo"
	"sharetray/internal/modules/donation"
	"sharetray/internal/modules/user"
	"sharetray/internal/types"
)

var (
	ErrNotFound        = errors.New("pickup not found")
	ErrBadRequest      = errors.New("bad request")
	ErrMissingLocation = errors.New("location unknown")
)

// scheduleLeadTime is how far in the future a freshly planned run is slotted.
const scheduleLeadTime = 30 * time.Minute

type Repository interface {
	Create(ctx context.Context, p *Pickup) error
	Get(ctx context.Context, id types.ID) (*Pickup, error)
	SetStatus(ctx context.Context, id types.ID, status string) error
}

type DonationSource interface {
	Get(ctx context.Context, id types.ID) (*donation.Donation, error)
	SchedulePickup(ctx context.Context, pickupID types.ID, donationIDs []types.ID, actorID *types.ID) error
}

type UserSource interface {
	Get(ctx context.Context, id types.ID) (*user.User, error)
}

// DriveEstimator returns an estimated drive time over the route. Optional.
type DriveEstimator interface {
	EstimateDriveSecs(ctx context.Context, origin types.Point, stops []types.Point) (int, error)
}

type Service struct {
	store     Repository
	donations DonationSource
	users     UserSource
	estimator DriveEstimator
}

// NewService wires the planner. estimator may be nil; routes then carry no
// drive-time estimate.
func NewService(store Repository, donations DonationSource, users UserSource, estimator DriveEstimator) *Service {
	return &Service{store: store, donations: donations, users: users, estimator: estimator}
}

// PlanRoute orders the given donations by repeated nearest-neighbor hops
// starting from the volunteer's current location. Every donation appears in
// the result exactly once.
func (s *Service) PlanRoute(ctx context.Context, volunteerID types.ID, donationIDs []types.ID) ([]RouteStop, error) {
	if len(donationIDs) == 0 {
		return nil, fmt.Errorf("%w: no donations to route", ErrBadRequest)
	}
	volunteer, err := s.users.Get(ctx, volunteerID)
	if err != nil {
		return nil, err
	}
	if volunteer.Location == nil {
		return nil, fmt.Errorf("%w: volunteer %s", ErrMissingLocation, volunteerID)
	}

	type stop struct {
		id  types.ID
		pos types.Point
	}
	remaining := make([]stop, 0, len(donationIDs))
	for _, id := range donationIDs {
		d, err := s.donations.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if d.Location == nil {
			return nil, fmt.Errorf("%w: donation %s", ErrMissingLocation, id)
		}
		remaining = append(remaining, stop{id: d.ID, pos: *d.Location})
	}

	route := make([]RouteStop, 0, len(remaining))
	current := *volunteer.Location
	for len(remaining) > 0 {
		points := make([]types.Point, len(remaining))
		for i, st := range remaining {
			points[i] = st.pos
		}
		idx := geo.NearestIndex(current, points)
		next := remaining[idx]
		route = append(route, RouteStop{
			DonationID: next.id,
			Coordinate: RouteCoordinate{Lat: next.pos.Lat, Lng: next.pos.Lng},
			LegKm:      geo.DistanceKm(current, next.pos),
		})
		current = next.pos
		remaining = append(remaining[:idx], remaining[idx+1:]...)
	}
	return route, nil
}

type ScheduleCommand struct {
	VolunteerID types.ID
	DonationIDs []types.ID
	ActorID     *types.ID
}

// Schedule plans a route, persists the pickup, and moves every donation on it
// to pickup_scheduled. If the donations cannot all be scheduled the pickup is
// marked aborted and the error returned.
func (s *Service) Schedule(ctx context.Context, cmd ScheduleCommand) (*Pickup, error) {
	stops, err := s.PlanRoute(ctx, cmd.VolunteerID, cmd.DonationIDs)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	p := &Pickup{
		ID:           types.NewID(),
		VolunteerID:  cmd.VolunteerID,
		DonationIDs:  make([]types.ID, len(stops)),
		Route:        make([]RouteCoordinate, len(stops)),
		Status:       StatusScheduled,
		ScheduledFor: now.Add(scheduleLeadTime),
		CreatedAt:    now,
	}
	for i, st := range stops {
		p.DonationIDs[i] = st.DonationID
		p.Route[i] = st.Coordinate
	}
	if s.estimator != nil {
		volunteer, err := s.users.Get(ctx, cmd.VolunteerID)
		if err == nil && volunteer.Location != nil {
			points := make([]types.Point, len(stops))
			for i, st := range stops {
				points[i] = types.Point{Lng: st.Coordinate.Lng, Lat: st.Coordinate.Lat}
			}
			if secs, err := s.estimator.EstimateDriveSecs(ctx, *volunteer.Location, points); err == nil {
				p.EstimatedDriveSecs = &secs
			}
		}
	}

	if err := s.store.Create(ctx, p); err != nil {
		return nil, err
	}
	if err := s.donations.SchedulePickup(ctx, p.ID, p.DonationIDs, cmd.ActorID); err != nil {
		_ = s.store.SetStatus(ctx, p.ID, StatusAborted)
		return nil, err
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Pickup, error) {
	return s.store.Get(ctx, id)
}
