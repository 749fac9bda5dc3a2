package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/vovakirdan/parley/internal/auth"
	"github.com/vovakirdan/parley/internal/core"
	"github.com/vovakirdan/parley/internal/store"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// AdminHandlers serves administrator-only endpoints.
type AdminHandlers struct {
	store       store.Store
	hub         *core.Hub
	authService *auth.Service
	log         *zerolog.Logger
}

// NewAdminHandlers creates a new admin handlers instance.
func NewAdminHandlers(st store.Store, hub *core.Hub, authService *auth.Service, logger *zerolog.Logger) *AdminHandlers {
	return &AdminHandlers{store: st, hub: hub, authService: authService, log: logger}
}

// StatsResponse summarizes the system.
type StatsResponse struct {
	Users         int `json:"users"`
	Admins        int `json:"admins"`
	VerifiedUsers int `json:"verifiedUsers"`
	Groups        int `json:"groups"`
	Messages      int `json:"messages"`
	OnlineUsers   int `json:"onlineUsers"`
}

// Pagination describes one page of a listing.
type Pagination struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Pages int `json:"pages"`
}

// UserPageResponse is a page of users.
type UserPageResponse struct {
	Users      []UserResponse `json:"users"`
	Pagination Pagination     `json:"pagination"`
}

// UpdateUserRequest is an administrative user change.
type UpdateUserRequest struct {
	FirstName string     `json:"firstName" binding:"required"`
	LastName  string     `json:"lastName" binding:"required"`
	Country   string     `json:"country"`
	Role      store.Role `json:"role" binding:"required"`
}

// Stats returns entity counts and the number of online users.
// GET /api/admin/stats
func (h *AdminHandlers) Stats(c *gin.Context) {
	stats, err := h.store.Stats(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, StatsResponse{
		Users:         stats.Users,
		Admins:        stats.Admins,
		VerifiedUsers: stats.VerifiedUsers,
		Groups:        stats.Groups,
		Messages:      stats.Messages,
		OnlineUsers:   h.hub.Presence().Count(),
	})
}

// ListUsers pages through every user.
// GET /api/admin/users?page=&limit=
func (h *AdminHandlers) ListUsers(c *gin.Context) {
	page := queryInt(c, "page", 1)
	limit := min(queryInt(c, "limit", defaultPageSize), maxPageSize)

	users, total, err := h.store.PageUsers(c.Request.Context(), (page-1)*limit, limit)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	presence := h.hub.Presence()
	c.JSON(http.StatusOK, UserPageResponse{
		Users: lo.Map(users, func(u *store.User, _ int) UserResponse {
			return newUserResponse(u, presence.IsOnline(u.ID))
		}),
		Pagination: Pagination{Total: total, Page: page, Pages: (total + limit - 1) / limit},
	})
}

// GetUser returns one user.
// GET /api/admin/users/:id
func (h *AdminHandlers) GetUser(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	user, err := h.store.GetUserByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, lookupErr("user not found", err))
		return
	}
	c.JSON(http.StatusOK, newUserResponse(user, h.hub.Presence().IsOnline(user.ID)))
}

// CreateAdmin registers a verified administrator.
// POST /api/admin/users
func (h *AdminHandlers) CreateAdmin(c *gin.Context) {
	identity, _ := identityFrom(c)
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	user, err := h.authService.CreateAdmin(c.Request.Context(), auth.SignupInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Country:   req.Country,
		Password:  req.Password,
	}, identity.FirstName+" "+identity.LastName)
	if err != nil && !errors.Is(err, auth.ErrMailDelivery) {
		respondAuthError(c, h.log, err)
		return
	}
	if err != nil {
		h.log.Warn().Err(err).Str("email", user.Email).Msg("failed to send admin invitation")
	}

	h.log.Info().
		Int64("user_id", user.ID).
		Int64("created_by", identity.ID).
		Msg("admin created")
	c.JSON(http.StatusCreated, newUserResponse(user, false))
}

// UpdateUser changes a user's names, country and role.
// PUT /api/admin/users/:id
func (h *AdminHandlers) UpdateUser(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	user, err := h.authService.UpdateUser(c.Request.Context(), id, auth.UserUpdateInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Country:   req.Country,
		Role:      req.Role,
	})
	if err != nil {
		respondAuthError(c, h.log, err)
		return
	}

	h.log.Info().Int64("user_id", user.ID).Str("role", string(user.Role)).Msg("user updated by admin")
	c.JSON(http.StatusOK, newUserResponse(user, h.hub.Presence().IsOnline(user.ID)))
}

// DeleteUser removes a user and their data, and drops their live connections.
// DELETE /api/admin/users/:id
func (h *AdminHandlers) DeleteUser(c *gin.Context) {
	identity, _ := identityFrom(c)
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if id == identity.ID {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "you cannot delete your own account"})
		return
	}

	if err := h.store.DeleteUser(c.Request.Context(), id); err != nil {
		respondError(c, h.log, lookupErr("user not found", err))
		return
	}
	dropped := h.hub.DisconnectUser(id)

	h.log.Info().
		Int64("user_id", id).
		Int64("deleted_by", identity.ID).
		Int("connections", dropped).
		Msg("user deleted")
	c.JSON(http.StatusOK, MessageResponse{Message: "user deleted"})
}

func queryInt(c *gin.Context, name string, fallback int) int {
	n, err := strconv.Atoi(c.Query(name))
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
