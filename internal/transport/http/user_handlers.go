package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/vovakirdan/parley/internal/auth"
	"github.com/vovakirdan/parley/internal/core"
	"github.com/vovakirdan/parley/internal/store"
)

// UserHandlers provides HTTP handlers for users and private conversations.
type UserHandlers struct {
	store       store.Store
	hub         *core.Hub
	authService *auth.Service
	log         *zerolog.Logger
}

// NewUserHandlers creates a new user handlers instance.
func NewUserHandlers(st store.Store, hub *core.Hub, authService *auth.Service, logger *zerolog.Logger) *UserHandlers {
	return &UserHandlers{store: st, hub: hub, authService: authService, log: logger}
}

// UserResponse represents a user in API responses.
type UserResponse struct {
	ID         int64      `json:"id"`
	FirstName  string     `json:"firstName"`
	LastName   string     `json:"lastName"`
	Email      string     `json:"email"`
	Country    string     `json:"country,omitempty"`
	Role       store.Role `json:"role"`
	IsVerified bool       `json:"isVerified"`
	IsOnline   bool       `json:"isOnline"`
	CreatedAt  time.Time  `json:"createdAt"`
}

func newUserResponse(u *store.User, online bool) UserResponse {
	return UserResponse{
		ID:         u.ID,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Email:      u.Email,
		Country:    u.Country,
		Role:       u.Role,
		IsVerified: u.IsVerified,
		IsOnline:   online,
		CreatedAt:  u.CreatedAt,
	}
}

// UpdateProfileRequest is the body of a profile change.
type UpdateProfileRequest struct {
	FirstName string `json:"firstName" binding:"required"`
	LastName  string `json:"lastName" binding:"required"`
	Country   string `json:"country"`
}

// ChangePasswordRequest is the body of a password change.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required"`
}

// SendMessageRequest is the body of a REST message send.
type SendMessageRequest struct {
	Content string `json:"content"`
}

// Profile returns the authenticated user.
// GET /api/users/profile
func (h *UserHandlers) Profile(c *gin.Context) {
	identity, _ := identityFrom(c)
	user, err := h.store.GetUserByID(c.Request.Context(), identity.ID)
	if err != nil {
		respondError(c, h.log, lookupErr("user not found", err))
		return
	}
	c.JSON(http.StatusOK, newUserResponse(user, h.hub.Presence().IsOnline(user.ID)))
}

// UpdateProfile changes the caller's names and country.
// PUT /api/users/profile
func (h *UserHandlers) UpdateProfile(c *gin.Context) {
	identity, _ := identityFrom(c)
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	user, err := h.authService.UpdateProfile(c.Request.Context(), identity.ID, auth.ProfileInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Country:   req.Country,
	})
	if err != nil {
		respondAuthError(c, h.log, err)
		return
	}

	h.log.Info().Int64("user_id", user.ID).Msg("profile updated")
	c.JSON(http.StatusOK, newUserResponse(user, h.hub.Presence().IsOnline(user.ID)))
}

// ChangePassword replaces the caller's password.
// PUT /api/users/change-password
func (h *UserHandlers) ChangePassword(c *gin.Context) {
	identity, _ := identityFrom(c)
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	err := h.authService.ChangePassword(c.Request.Context(), identity.ID, req.CurrentPassword, req.NewPassword)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "current password is incorrect"})
		return
	}
	if err != nil {
		respondAuthError(c, h.log, err)
		return
	}

	h.log.Info().Int64("user_id", identity.ID).Msg("password changed")
	c.JSON(http.StatusOK, MessageResponse{Message: "password changed"})
}

// ListUsers returns every other user with presence.
// GET /api/users
func (h *UserHandlers) ListUsers(c *gin.Context) {
	identity, _ := identityFrom(c)
	users, err := h.store.ListUsers(c.Request.Context(), identity.ID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	presence := h.hub.Presence()
	c.JSON(http.StatusOK, lo.Map(users, func(u *store.User, _ int) UserResponse {
		return newUserResponse(u, presence.IsOnline(u.ID))
	}))
}

// PrivateHistory returns the conversation with another user and marks their messages read.
// GET /api/users/:userId/messages
func (h *UserHandlers) PrivateHistory(c *gin.Context) {
	identity, _ := identityFrom(c)
	otherID, ok := parseIDParam(c, "userId")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	if _, err := h.store.GetUserByID(ctx, otherID); err != nil {
		respondError(c, h.log, lookupErr("user not found", err))
		return
	}
	messages, err := h.store.ListPrivateMessages(ctx, identity.ID, otherID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if err := h.store.MarkRead(ctx, otherID, identity.ID); err != nil {
		respondError(c, h.log, err)
		return
	}

	out, err := withSenders(ctx, h.store, messages)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, toProtoMessages(out))
}

// SendPrivate stores a direct message and delivers it live.
// POST /api/users/:userId/messages
func (h *UserHandlers) SendPrivate(c *gin.Context) {
	identity, _ := identityFrom(c)
	recipientID, ok := parseIDParam(c, "userId")
	if !ok {
		return
	}
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	msg, err := h.hub.Fanout().SendPrivate(c.Request.Context(), identity, nil, recipientID, req.Content)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, toProtoMessage(msg))
}

func parseIDParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid " + name})
		return 0, false
	}
	return id, true
}

func lookupErr(notFoundMsg string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return &core.CoreError{Code: core.ErrCodeNotFound, Message: notFoundMsg}
	}
	return err
}

// withSenders attaches sender details to stored messages.
func withSenders(ctx context.Context, users store.UserStore, messages []*store.Message) ([]core.Message, error) {
	senderIDs := lo.Uniq(lo.Map(messages, func(m *store.Message, _ int) int64 { return m.SenderID }))
	senders := make(map[int64]core.User, len(senderIDs))
	for _, id := range senderIDs {
		u, err := users.GetUserByID(ctx, id)
		if err != nil {
			return nil, err
		}
		senders[id] = core.User{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName}
	}

	return lo.Map(messages, func(m *store.Message, _ int) core.Message {
		return core.NewMessage(m, senders[m.SenderID])
	}), nil
}
