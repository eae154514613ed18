// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"sharetray/internal/modules/donation"
	"sharetray/internal/modules/matching"
	"sharetray/internal/modules/pickup"
	"sharetray/internal/modules/recipient"
	"sharetray/internal/modules/user"
	"sharetray/internal/roles"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

// writeDomainError maps service errors onto HTTP statuses. Services wrap
// their sentinels, so matching goes through errors.Is.
func writeDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, donation.ErrBadRequest),
		errors.Is(err, user.ErrBadRequest),
		errors.Is(err, recipient.ErrBadRequest),
		errors.Is(err, pickup.ErrBadRequest),
		errors.Is(err, roles.ErrUnknownRole):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, user.ErrInvalidCredentials):
		writeError(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, donation.ErrNotFound),
		errors.Is(err, user.ErrNotFound),
		errors.Is(err, recipient.ErrNotFound),
		errors.Is(err, pickup.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, donation.ErrInvalidTransition),
		errors.Is(err, donation.ErrConflict),
		errors.Is(err, donation.ErrCapacityExceeded),
		errors.Is(err, user.ErrConflict),
		errors.Is(err, matching.ErrAlreadyRunning):
		writeError(c, http.StatusConflict, err.Error())
	case errors.Is(err, pickup.ErrMissingLocation):
		writeError(c, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}
