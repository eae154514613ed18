// README: Demo data seeding for local development. Creates a donor, a pantry,
// a volunteer, and one posted donation around central Manila.
package seed

import (
	"context"
	"errors"
	"time"

	"sharetray/internal/modules/donation"
	"sharetray/internal/modules/recipient"
	"sharetray/internal/modules/user"
	"sharetray/internal/types"
)

const demoPassword = "demo1234"

type Result struct {
	DonorID     types.ID `json:"donor_id"`
	RecipientID types.ID `json:"recipient_id"`
	VolunteerID types.ID `json:"volunteer_id"`
	DonationID  types.ID `json:"donation_id"`
}

// Seed inserts the demo fixtures. Existing demo users are reused, so calling
// it twice adds a second donation but no duplicate users.
func Seed(ctx context.Context, users *user.Service, recipients *recipient.Service, donations *donation.Service) (Result, error) {
	var res Result

	donor, err := ensureUser(ctx, users, user.RegisterCommand{
		Name:     "Demo Donor",
		Role:     types.RoleDonor,
		Password: demoPassword,
		Location: &types.Point{Lng: 121.001, Lat: 14.601},
	})
	if err != nil {
		return res, err
	}
	res.DonorID = donor.ID

	volunteer, err := ensureUser(ctx, users, user.RegisterCommand{
		Name:     "Demo Volunteer",
		Role:     types.RoleVolunteer,
		Password: demoPassword,
		Location: &types.Point{Lng: 121.002, Lat: 14.603},
	})
	if err != nil {
		return res, err
	}
	res.VolunteerID = volunteer.ID

	contact := "09170000000"
	pantry, err := recipients.Create(ctx, recipient.CreateCommand{
		Name:         "Demo Pantry",
		CapacityKg:   100,
		Location:     &types.Point{Lng: 121.005, Lat: 14.605},
		ContactPhone: &contact,
	})
	if err != nil {
		return res, err
	}
	res.RecipientID = pantry.ID

	pickupBy := time.Now().UTC().Add(6 * time.Hour)
	d, err := donations.Create(ctx, donation.CreateCommand{
		DonorID: donor.ID,
		Items: []donation.FoodItem{
			{Name: "Cooked Rice", Quantity: 10, WeightKg: 5.0, Perishability: donation.PerishFresh},
		},
		PickupBy: &pickupBy,
		Location: &types.Point{Lng: 121.0015, Lat: 14.602},
	})
	if err != nil {
		return res, err
	}
	res.DonationID = d.ID
	return res, nil
}

func ensureUser(ctx context.Context, users *user.Service, cmd user.RegisterCommand) (*user.User, error) {
	u, err := users.Register(ctx, cmd)
	if errors.Is(err, user.ErrConflict) {
		return users.GetByName(ctx, cmd.Name)
	}
	return u, err
}
