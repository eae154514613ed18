// README: Tracking handlers: position reports and nearby volunteer lookups.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"sharetray/internal/http/middleware"
	"sharetray/internal/modules/tracking"
	"sharetray/internal/types"
)

const defaultNearbyRadiusKm = 5.0

type TrackingHandler struct {
	tracking *tracking.Service
}

func NewTrackingHandler(svc *tracking.Service) *TrackingHandler {
	return &TrackingHandler{tracking: svc}
}

type recordLocationReq struct {
	Lng float64 `json:"lng"`
	Lat float64 `json:"lat"`
}

func (h *TrackingHandler) Record(c *gin.Context) {
	var req recordLocationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	id, ok := middleware.ActorID(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "missing bearer token")
		return
	}
	pos := types.Point{Lng: req.Lng, Lat: req.Lat}
	if err := h.tracking.Record(c.Request.Context(), id, pos); err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"user_id": id, "location": pos})
}

func (h *TrackingHandler) Nearby(c *gin.Context) {
	lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	if errLng != nil || errLat != nil {
		writeError(c, http.StatusBadRequest, "lng and lat query params are required")
		return
	}
	radiusKm := defaultNearbyRadiusKm
	if raw := c.Query("radius_km"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed <= 0 {
			writeError(c, http.StatusBadRequest, "radius_km must be a positive number")
			return
		}
		radiusKm = parsed
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(c, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	neighbors, err := h.tracking.Nearby(c.Request.Context(), types.Point{Lng: lng, Lat: lat}, radiusKm, limit)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"volunteers": neighbors})
}
