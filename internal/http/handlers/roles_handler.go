// README: Role criteria handlers.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"sharetray/internal/roles"
	"sharetray/internal/types"
)

type RolesHandler struct {
	manager *roles.Manager
}

func NewRolesHandler(manager *roles.Manager) *RolesHandler {
	return &RolesHandler{manager: manager}
}

func (h *RolesHandler) List(c *gin.Context) {
	writeJSON(c, http.StatusOK, gin.H{"criteria": h.manager.All()})
}

func (h *RolesHandler) Get(c *gin.Context) {
	role := types.Role(c.Param("role"))
	criteria, ok := h.manager.Get(role)
	if !ok {
		writeError(c, http.StatusNotFound, "no criteria for role")
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"role": role, "criteria": criteria})
}

type setCriteriaReq struct {
	Criteria []string `json:"criteria"`
}

func (h *RolesHandler) Set(c *gin.Context) {
	var req setCriteriaReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	role := types.Role(c.Param("role"))
	if err := h.manager.Set(role, req.Criteria); err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"role": role, "criteria": req.Criteria})
}
