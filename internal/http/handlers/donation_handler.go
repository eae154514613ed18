// README: Donation handlers: post, list, inspect, audit trail, transitions.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"sharetray/internal/http/middleware"
	"sharetray/internal/modules/donation"
	"sharetray/internal/types"
)

type DonationHandler struct {
	donations *donation.Service
}

func NewDonationHandler(svc *donation.Service) *DonationHandler {
	return &DonationHandler{donations: svc}
}

type createDonationReq struct {
	Items    []donation.FoodItem `json:"items"`
	PickupBy *time.Time          `json:"pickup_by"`
	Location *types.Point        `json:"location"`
}

func (h *DonationHandler) Create(c *gin.Context) {
	var req createDonationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	donorID, ok := middleware.ActorID(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "missing bearer token")
		return
	}
	d, err := h.donations.Create(c.Request.Context(), donation.CreateCommand{
		DonorID:  donorID,
		Items:    req.Items,
		PickupBy: req.PickupBy,
		Location: req.Location,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, donationJSON(d))
}

func (h *DonationHandler) List(c *gin.Context) {
	var list []*donation.Donation
	var err error
	if c.Query("state") == "posted" {
		list, err = h.donations.ListOpen(c.Request.Context())
	} else {
		list, err = h.donations.List(c.Request.Context())
	}
	if err != nil {
		writeDomainError(c, err)
		return
	}
	out := make([]gin.H, len(list))
	for i, d := range list {
		out[i] = donationJSON(d)
	}
	writeJSON(c, http.StatusOK, gin.H{"donations": out})
}

func (h *DonationHandler) Get(c *gin.Context) {
	d, err := h.donations.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, donationJSON(d))
}

func (h *DonationHandler) AuditTrail(c *gin.Context) {
	trail, err := h.donations.AuditTrail(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	out := make([]gin.H, len(trail))
	for i, e := range trail {
		out[i] = auditJSON(e)
	}
	writeJSON(c, http.StatusOK, gin.H{"audit": out})
}

type transitionReq struct {
	To   string `json:"to"`
	Note string `json:"note"`
}

func (h *DonationHandler) Transition(c *gin.Context) {
	var req transitionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	cmd := donation.TransitionCommand{
		DonationID: types.ID(c.Param("id")),
		To:         donation.State(req.To),
		Note:       req.Note,
	}
	if id, ok := middleware.ActorID(c); ok {
		cmd.ActorID = &id
	}
	d, err := h.donations.Transition(c.Request.Context(), cmd)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, donationJSON(d))
}

func donationJSON(d *donation.Donation) gin.H {
	out := gin.H{
		"id":              d.ID,
		"donor_id":        d.DonorID,
		"items":           d.Items,
		"total_weight_kg": d.TotalWeightKg,
		"state":           d.State,
		"posted_at":       d.PostedAt,
		"updated_at":      d.UpdatedAt,
	}
	if d.PickupBy != nil {
		out["pickup_by"] = d.PickupBy
	}
	if d.Location != nil {
		out["location"] = d.Location
	}
	if d.MatchedRecipientID != nil {
		out["matched_recipient_id"] = *d.MatchedRecipientID
	}
	if d.PickupID != nil {
		out["pickup_id"] = *d.PickupID
	}
	return out
}

func auditJSON(e *donation.AuditEntry) gin.H {
	out := gin.H{
		"id":         e.ID,
		"old_state":  e.OldState,
		"new_state":  e.NewState,
		"note":       e.Note,
		"created_at": e.CreatedAt,
	}
	if e.ActorID != nil {
		out["actor_id"] = *e.ActorID
	}
	if e.ActorRole != nil {
		out["actor_role"] = *e.ActorRole
	}
	return out
}
