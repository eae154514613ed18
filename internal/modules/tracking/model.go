// README: Volunteer position tracking types.
package tracking

import (
	"time"

	"sharetray/internal/types"
)

// Snapshot is one persisted position report.
type Snapshot struct {
	ID         int64
	UserID     types.ID
	Location   types.Point
	RecordedAt time.Time
}

// Neighbor is a volunteer found near a query point.
type Neighbor struct {
	UserID     types.ID `json:"user_id"`
	DistanceKm float64  `json:"distance_km"`
}
