// README: Auth handlers: register, login, current user.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"sharetray/internal/http/middleware"
	"sharetray/internal/modules/user"
	"sharetray/internal/types"
)

type AuthHandler struct {
	users *user.Service
}

func NewAuthHandler(users *user.Service) *AuthHandler {
	return &AuthHandler{users: users}
}

type registerReq struct {
	Name     string       `json:"name"`
	Password string       `json:"password"`
	Role     string       `json:"role"`
	Phone    *string      `json:"phone"`
	Location *types.Point `json:"location"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req registerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	u, err := h.users.Register(c.Request.Context(), user.RegisterCommand{
		Name:     req.Name,
		Role:     types.Role(req.Role),
		Password: req.Password,
		Phone:    req.Phone,
		Location: req.Location,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, userJSON(u))
}

type loginReq struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	u, token, err := h.users.Login(c.Request.Context(), req.Name, req.Password)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"token": token, "user": userJSON(u)})
}

func (h *AuthHandler) Me(c *gin.Context) {
	id, ok := middleware.ActorID(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "missing bearer token")
		return
	}
	u, err := h.users.Get(c.Request.Context(), id)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, userJSON(u))
}

func userJSON(u *user.User) gin.H {
	out := gin.H{
		"id":         u.ID,
		"name":       u.Name,
		"role":       u.Role,
		"created_at": u.CreatedAt,
	}
	if u.Phone != nil {
		out["phone"] = *u.Phone
	}
	if u.Location != nil {
		out["location"] = u.Location
	}
	return out
}
