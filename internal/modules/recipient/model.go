// README: Recipient organizations (pantries, shelters) that absorb donations.
package recipient

import (
	"time"

	"sharetray/internal/types"
)

type Recipient struct {
	ID           types.ID
	Name         string
	CapacityKg   float64
	Location     *types.Point
	ContactPhone *string
	CreatedAt    time.Time
}
