// README: Recipient handlers: register organizations, adjust capacity.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"sharetray/internal/modules/recipient"
	"sharetray/internal/types"
)

type RecipientHandler struct {
	recipients *recipient.Service
}

func NewRecipientHandler(svc *recipient.Service) *RecipientHandler {
	return &RecipientHandler{recipients: svc}
}

type createRecipientReq struct {
	Name         string       `json:"name"`
	CapacityKg   float64      `json:"capacity_kg"`
	Location     *types.Point `json:"location"`
	ContactPhone *string      `json:"contact_phone"`
}

func (h *RecipientHandler) Create(c *gin.Context) {
	var req createRecipientReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	r, err := h.recipients.Create(c.Request.Context(), recipient.CreateCommand{
		Name:         req.Name,
		CapacityKg:   req.CapacityKg,
		Location:     req.Location,
		ContactPhone: req.ContactPhone,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, recipientJSON(r))
}

func (h *RecipientHandler) List(c *gin.Context) {
	list, err := h.recipients.List(c.Request.Context())
	if err != nil {
		writeDomainError(c, err)
		return
	}
	out := make([]gin.H, len(list))
	for i, r := range list {
		out[i] = recipientJSON(r)
	}
	writeJSON(c, http.StatusOK, gin.H{"recipients": out})
}

func (h *RecipientHandler) Get(c *gin.Context) {
	r, err := h.recipients.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, recipientJSON(r))
}

type setCapacityReq struct {
	CapacityKg float64 `json:"capacity_kg"`
}

func (h *RecipientHandler) SetCapacity(c *gin.Context) {
	var req setCapacityReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	id := types.ID(c.Param("id"))
	if err := h.recipients.SetCapacity(c.Request.Context(), id, req.CapacityKg); err != nil {
		writeDomainError(c, err)
		return
	}
	r, err := h.recipients.Get(c.Request.Context(), id)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, recipientJSON(r))
}

func recipientJSON(r *recipient.Recipient) gin.H {
	out := gin.H{
		"id":          r.ID,
		"name":        r.Name,
		"capacity_kg": r.CapacityKg,
		"created_at":  r.CreatedAt,
	}
	if r.Location != nil {
		out["location"] = r.Location
	}
	if r.ContactPhone != nil {
		out["contact_phone"] = *r.ContactPhone
	}
	return out
}
