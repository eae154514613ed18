// README: Route planner and scheduling tests: nearest-neighbor ordering,
// missing-location failures, and the all-or-nothing schedule.
package pickup_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"sharetray/internal/logging"
	"sharetray/internal/modules/donation"
	"sharetray/internal/modules/pickup"
	"sharetray/internal/modules/recipient"
	"sharetray/internal/modules/user"
	"sharetray/internal/store"
	"sharetray/internal/types"
)

type fixture struct {
	mem       *store.Memory
	donations *donation.Service
	pickups   *pickup.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := store.NewMemory()
	recipients := recipient.NewService(mem.Recipients())
	donations := donation.NewService(mem.Donations(), recipients, nil, logging.Discard())
	pickups := pickup.NewService(mem.Pickups(), donations, mem.Users(), nil)
	return &fixture{mem: mem, donations: donations, pickups: pickups}
}

func (f *fixture) volunteer(t *testing.T, id types.ID, loc *types.Point) {
	t.Helper()
	err := f.mem.Users().Create(context.Background(), &user.User{
		ID:        id,
		Name:      string(id),
		Role:      types.RoleVolunteer,
		Location:  loc,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create volunteer: %v", err)
	}
}

func (f *fixture) post(t *testing.T, loc *types.Point) *donation.Donation {
	t.Helper()
	d, err := f.donations.Create(context.Background(), donation.CreateCommand{
		DonorID:  "donor-1",
		Items:    []donation.FoodItem{{Name: "Tray", WeightKg: 2}},
		Location: loc,
	})
	if err != nil {
		t.Fatalf("create donation: %v", err)
	}
	return d
}

func (f *fixture) matched(t *testing.T, loc *types.Point) *donation.Donation {
	t.Helper()
	ctx := context.Background()
	r, err := recipient.NewService(f.mem.Recipients()).Create(ctx, recipient.CreateCommand{
		Name:       "Pantry " + string(types.NewID()),
		CapacityKg: 100,
	})
	if err != nil {
		t.Fatalf("create recipient: %v", err)
	}
	d := f.post(t, loc)
	if err := f.donations.Match(ctx, donation.MatchCommand{DonationID: d.ID, RecipientID: r.ID}); err != nil {
		t.Fatalf("match: %v", err)
	}
	return d
}

func TestPlanRouteNearestFirst(t *testing.T) {
	f := newFixture(t)
	f.volunteer(t, "vol-1", &types.Point{Lng: 121.002, Lat: 14.603})
	near := f.post(t, &types.Point{Lng: 121.001, Lat: 14.601})
	far := f.post(t, &types.Point{Lng: 121.005, Lat: 14.605})

	// Input order deliberately farthest-first.
	route, err := f.pickups.PlanRoute(context.Background(), "vol-1", []types.ID{far.ID, near.ID})
	if err != nil {
		t.Fatalf("plan route: %v", err)
	}
	if len(route) != 2 {
		t.Fatalf("expected 2 stops, got %d", len(route))
	}
	if route[0].DonationID != near.ID || route[1].DonationID != far.ID {
		t.Fatalf("expected nearest-first order [%s %s], got [%s %s]",
			near.ID, far.ID, route[0].DonationID, route[1].DonationID)
	}
	if route[0].LegKm <= 0 || route[1].LegKm <= 0 {
		t.Errorf("expected positive leg distances, got %.3f and %.3f", route[0].LegKm, route[1].LegKm)
	}
	if route[0].Coordinate.Lat != 14.601 || route[0].Coordinate.Lng != 121.001 {
		t.Errorf("unexpected first coordinate: %+v", route[0].Coordinate)
	}
}

// TestPlanRouteGreedyHops checks that each hop starts from the previous stop,
// not from the volunteer's origin.
func TestPlanRouteGreedyHops(t *testing.T) {
	f := newFixture(t)
	f.volunteer(t, "vol-1", &types.Point{Lng: 121.000, Lat: 14.6})
	a := f.post(t, &types.Point{Lng: 121.001, Lat: 14.6})
	b := f.post(t, &types.Point{Lng: 121.002, Lat: 14.6})
	c := f.post(t, &types.Point{Lng: 121.003, Lat: 14.6})

	route, err := f.pickups.PlanRoute(context.Background(), "vol-1", []types.ID{c.ID, a.ID, b.ID})
	if err != nil {
		t.Fatalf("plan route: %v", err)
	}
	want := []types.ID{a.ID, b.ID, c.ID}
	for i, stop := range route {
		if stop.DonationID != want[i] {
			t.Fatalf("stop %d: expected %s, got %s", i, want[i], stop.DonationID)
		}
	}
}

func TestPlanRouteVisitsEveryDonationOnce(t *testing.T) {
	f := newFixture(t)
	f.volunteer(t, "vol-1", &types.Point{Lng: 121.0, Lat: 14.6})

	ids := make([]types.ID, 0, 5)
	for i := 0; i < 5; i++ {
		d := f.post(t, &types.Point{Lng: 121.0 + float64(i)*0.003, Lat: 14.6 - float64(i)*0.002})
		ids = append(ids, d.ID)
	}

	route, err := f.pickups.PlanRoute(context.Background(), "vol-1", []types.ID{ids[3], ids[0], ids[4], ids[2], ids[1]})
	if err != nil {
		t.Fatalf("plan route: %v", err)
	}
	if len(route) != len(ids) {
		t.Fatalf("expected %d stops, got %d", len(ids), len(route))
	}
	seen := map[types.ID]bool{}
	for _, stop := range route {
		if seen[stop.DonationID] {
			t.Fatalf("donation %s visited twice", stop.DonationID)
		}
		seen[stop.DonationID] = true
	}
	for _, id := range ids {
		if !seen[id] {
			t.Fatalf("donation %s missing from route", id)
		}
	}
}

func TestPlanRouteMissingLocations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.volunteer(t, "nowhere-vol", nil)
	located := f.post(t, &types.Point{Lng: 121.0, Lat: 14.6})
	_, err := f.pickups.PlanRoute(ctx, "nowhere-vol", []types.ID{located.ID})
	if !errors.Is(err, pickup.ErrMissingLocation) {
		t.Fatalf("volunteer without location: expected ErrMissingLocation, got %v", err)
	}

	f.volunteer(t, "vol-1", &types.Point{Lng: 121.0, Lat: 14.6})
	unlocated := f.post(t, nil)
	_, err = f.pickups.PlanRoute(ctx, "vol-1", []types.ID{located.ID, unlocated.ID})
	if !errors.Is(err, pickup.ErrMissingLocation) {
		t.Fatalf("donation without location: expected ErrMissingLocation, got %v", err)
	}
	if !strings.Contains(err.Error(), string(unlocated.ID)) {
		t.Errorf("expected offending donation id in error, got %q", err.Error())
	}
}

func TestPlanRouteUnknownParties(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d := f.post(t, &types.Point{Lng: 121.0, Lat: 14.6})
	if _, err := f.pickups.PlanRoute(ctx, "ghost", []types.ID{d.ID}); !errors.Is(err, user.ErrNotFound) {
		t.Fatalf("unknown volunteer: expected user.ErrNotFound, got %v", err)
	}

	f.volunteer(t, "vol-1", &types.Point{Lng: 121.0, Lat: 14.6})
	if _, err := f.pickups.PlanRoute(ctx, "vol-1", []types.ID{"ghost"}); !errors.Is(err, donation.ErrNotFound) {
		t.Fatalf("unknown donation: expected donation.ErrNotFound, got %v", err)
	}
	if _, err := f.pickups.PlanRoute(ctx, "vol-1", nil); !errors.Is(err, pickup.ErrBadRequest) {
		t.Fatalf("empty donation list: expected ErrBadRequest, got %v", err)
	}
}

func TestScheduleCreatesPickupAndMovesDonations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.volunteer(t, "vol-1", &types.Point{Lng: 121.002, Lat: 14.603})
	d1 := f.matched(t, &types.Point{Lng: 121.001, Lat: 14.601})
	d2 := f.matched(t, &types.Point{Lng: 121.005, Lat: 14.605})

	before := time.Now().UTC()
	p, err := f.pickups.Schedule(ctx, pickup.ScheduleCommand{
		VolunteerID: "vol-1",
		DonationIDs: []types.ID{d2.ID, d1.ID},
	})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if p.Status != pickup.StatusScheduled {
		t.Fatalf("expected scheduled, got %s", p.Status)
	}
	if len(p.DonationIDs) != 2 || p.DonationIDs[0] != d1.ID || p.DonationIDs[1] != d2.ID {
		t.Fatalf("expected route-ordered donation ids, got %v", p.DonationIDs)
	}
	if len(p.Route) != 2 {
		t.Fatalf("expected 2 route coordinates, got %d", len(p.Route))
	}
	lead := p.ScheduledFor.Sub(before)
	if lead < 29*time.Minute || lead > 31*time.Minute {
		t.Errorf("expected scheduled_for about 30 minutes out, got %s", lead)
	}

	for _, id := range []types.ID{d1.ID, d2.ID} {
		d, err := f.donations.Get(ctx, id)
		if err != nil {
			t.Fatalf("get donation: %v", err)
		}
		if d.State != donation.StatePickupScheduled {
			t.Errorf("expected pickup_scheduled, got %s", d.State)
		}
		if d.PickupID == nil || *d.PickupID != p.ID {
			t.Errorf("expected pickup_id %s, got %v", p.ID, d.PickupID)
		}
	}

	// The persisted pickup reads back the same.
	stored, err := f.pickups.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("get pickup: %v", err)
	}
	if stored.VolunteerID != "vol-1" || len(stored.DonationIDs) != 2 {
		t.Fatalf("stored pickup mismatch: %+v", stored)
	}
}

func TestScheduleRejectsUnmatchedDonation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.volunteer(t, "vol-1", &types.Point{Lng: 121.002, Lat: 14.603})
	matched := f.matched(t, &types.Point{Lng: 121.001, Lat: 14.601})
	stillPosted := f.post(t, &types.Point{Lng: 121.005, Lat: 14.605})

	_, err := f.pickups.Schedule(ctx, pickup.ScheduleCommand{
		VolunteerID: "vol-1",
		DonationIDs: []types.ID{matched.ID, stillPosted.ID},
	})
	if !errors.Is(err, donation.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	// The matched donation must not have moved.
	d, err := f.donations.Get(ctx, matched.ID)
	if err != nil {
		t.Fatalf("get donation: %v", err)
	}
	if d.State != donation.StateMatched {
		t.Errorf("expected matched donation untouched, got %s", d.State)
	}
	if d.PickupID != nil {
		t.Errorf("expected no pickup_id, got %v", d.PickupID)
	}
}
