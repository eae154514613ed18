// README: Common identifier, coordinate, and role value objects used across modules.
package types

import "github.com/google/uuid"

type ID string

// NewID returns a fresh random identifier (UUIDv4 string form).
func NewID() ID {
	return ID(uuid.NewString())
}

// Point is a geographic coordinate. Stored shapes (JSON bodies, DB columns)
// carry it longitude-first, matching GeoJSON coordinate order.
type Point struct {
	Lng float64 `json:"lng"`
	Lat float64 `json:"lat"`
}

type Role string

const (
	RoleDonor     Role = "donor"
	RoleRecipient Role = "recipient"
	RoleVolunteer Role = "volunteer"
	RoleAdmin     Role = "admin"
)

// ValidRole reports whether r is one of the four defined roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleDonor, RoleRecipient, RoleVolunteer, RoleAdmin:
		return true
	}
	return false
}
