// README: Pickup aggregate and route types for volunteer runs.
package pickup

import (
	"encoding/json"
	"fmt"
	"time"

	"sharetray/internal/types"
)

const (
	StatusScheduled = "scheduled"
	StatusAborted   = "aborted"
)

type Pickup struct {
	ID                 types.ID
	VolunteerID        types.ID
	DonationIDs        []types.ID
	Route              []RouteCoordinate
	Status             string
	ScheduledFor       time.Time
	EstimatedDriveSecs *int
	CreatedAt          time.Time
}

// RouteCoordinate serializes as a [lat, lng] pair, latitude first, which is
// the order navigation clients expect. Stored points keep longitude first.
type RouteCoordinate struct {
	Lat float64
	Lng float64
}

func (c RouteCoordinate) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{c.Lat, c.Lng})
}

func (c *RouteCoordinate) UnmarshalJSON(data []byte) error {
	var pair [2]float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("route coordinate: %w", err)
	}
	c.Lat, c.Lng = pair[0], pair[1]
	return nil
}

// RouteStop is one leg of a planned route: the donation visited and the
// distance travelled from the previous position.
type RouteStop struct {
	DonationID types.ID        `json:"donation_id"`
	Coordinate RouteCoordinate `json:"coordinate"`
	LegKm      float64         `json:"leg_km"`
}
