// README: User aggregate shared by auth, tracking, and the route planner.
package user

import (
	"time"

	"sharetray/internal/types"
)

type User struct {
	ID           types.ID
	Name         string
	Role         types.Role
	Phone        *string
	Location     *types.Point
	PasswordHash string
	CreatedAt    time.Time
}

// Claims is the verified content of an access token.
type Claims struct {
	UserID types.ID
	Name   string
	Role   types.Role
}
