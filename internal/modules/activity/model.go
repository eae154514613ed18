// README: Activity event types for the admin audit feed.
package activity

import (
	"time"

	"sharetray/internal/types"
)

// Event is one recorded API action.
type Event struct {
	ID        int64
	ActorID   *types.ID
	ActorRole string
	Action    string
	Resource  string
	IP        string
	CreatedAt time.Time
}
