// README: Matching handlers: trigger a run.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"sharetray/internal/modules/matching"
)

type MatchingHandler struct {
	matching *matching.Service
}

func NewMatchingHandler(svc *matching.Service) *MatchingHandler {
	return &MatchingHandler{matching: svc}
}

type runMatchingReq struct {
	RadiusKm float64 `json:"radius_km"`
}

func (h *MatchingHandler) Run(c *gin.Context) {
	var req runMatchingReq
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, http.StatusBadRequest, "invalid json")
			return
		}
	}
	assignments, err := h.matching.Run(c.Request.Context(), req.RadiusKm)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"matched":     len(assignments),
		"assignments": assignments,
	})
}
