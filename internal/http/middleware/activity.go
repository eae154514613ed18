// README: Activity recorder. Maps mutating routes to action names and records
// who did what for the admin feed.
package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"sharetray/internal/modules/activity"
)

type ActivityRecorder interface {
	Record(ctx context.Context, e activity.Event) error
}

// actionsByRoute names the actions worth recording. Routes not listed are
// not part of the activity feed.
var actionsByRoute = map[string]string{
	"POST /api/auth/register":            "register",
	"POST /api/auth/login":               "login",
	"POST /api/donations":                "create_donation",
	"POST /api/donations/:id/transition": "transition_donation",
	"POST /api/matching/run":             "run_matching",
	"POST /api/pickups":                  "schedule_pickup",
	"POST /api/recipients":               "create_recipient",
	"PUT /api/recipients/:id/capacity":   "update_capacity",
	"POST /api/tracking/location":        "record_location",
	"PUT /api/roles/:role/criteria":      "update_criteria",
}

// RecordActivity records named actions after their handler succeeds.
func RecordActivity(recorder ActivityRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Status() >= 400 {
			return
		}
		action, ok := actionsByRoute[c.Request.Method+" "+c.FullPath()]
		if !ok {
			return
		}
		e := activity.Event{
			Action:   action,
			Resource: c.Request.URL.Path,
			IP:       c.ClientIP(),
		}
		if id, ok := ActorID(c); ok {
			e.ActorID = &id
		}
		if role, ok := ActorRole(c); ok {
			e.ActorRole = string(role)
		}
		_ = recorder.Record(c.Request.Context(), e)
	}
}
