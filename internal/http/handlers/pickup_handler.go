// README: Pickup handlers: preview routes, schedule runs, inspect pickups.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"sharetray/internal/http/middleware"
	"sharetray/internal/modules/pickup"
	"sharetray/internal/types"
)

type PickupHandler struct {
	pickups *pickup.Service
}

func NewPickupHandler(svc *pickup.Service) *PickupHandler {
	return &PickupHandler{pickups: svc}
}

type planRouteReq struct {
	VolunteerID string   `json:"volunteer_id"`
	DonationIDs []string `json:"donation_ids"`
}

func (h *PickupHandler) PlanRoute(c *gin.Context) {
	var req planRouteReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	volunteerID := types.ID(req.VolunteerID)
	if volunteerID == "" {
		if id, ok := middleware.ActorID(c); ok {
			volunteerID = id
		}
	}
	stops, err := h.pickups.PlanRoute(c.Request.Context(), volunteerID, toIDs(req.DonationIDs))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"route": routeJSON(stops)})
}

type schedulePickupReq struct {
	VolunteerID string   `json:"volunteer_id"`
	DonationIDs []string `json:"donation_ids"`
}

func (h *PickupHandler) Schedule(c *gin.Context) {
	var req schedulePickupReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	cmd := pickup.ScheduleCommand{
		VolunteerID: types.ID(req.VolunteerID),
		DonationIDs: toIDs(req.DonationIDs),
	}
	if id, ok := middleware.ActorID(c); ok {
		cmd.ActorID = &id
		if cmd.VolunteerID == "" {
			cmd.VolunteerID = id
		}
	}
	p, err := h.pickups.Schedule(c.Request.Context(), cmd)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, pickupJSON(p))
}

func (h *PickupHandler) Get(c *gin.Context) {
	p, err := h.pickups.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, pickupJSON(p))
}

func pickupJSON(p *pickup.Pickup) gin.H {
	out := gin.H{
		"id":            p.ID,
		"volunteer_id":  p.VolunteerID,
		"donation_ids":  p.DonationIDs,
		"route":         p.Route,
		"status":        p.Status,
		"scheduled_for": p.ScheduledFor,
		"created_at":    p.CreatedAt,
	}
	if p.EstimatedDriveSecs != nil {
		out["estimated_drive_secs"] = *p.EstimatedDriveSecs
	}
	return out
}

func routeJSON(stops []pickup.RouteStop) []gin.H {
	out := make([]gin.H, len(stops))
	for i, st := range stops {
		out[i] = gin.H{
			"donation_id": st.DonationID,
			"coordinate":  st.Coordinate,
			"leg_km":      st.LegKm,
		}
	}
	return out
}

func toIDs(raw []string) []types.ID {
	ids := make([]types.ID, len(raw))
	for i, r := range raw {
		ids[i] = types.ID(r)
	}
	return ids
}
