package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/vovakirdan/parley/internal/core"
	"github.com/vovakirdan/parley/internal/proto"
	"github.com/vovakirdan/parley/internal/store"
)

// GroupHandlers provides HTTP handlers for group management endpoints.
type GroupHandlers struct {
	store store.Store
	hub   *core.Hub
	log   *zerolog.Logger
}

// NewGroupHandlers creates a new group handlers instance.
func NewGroupHandlers(st store.Store, hub *core.Hub, logger *zerolog.Logger) *GroupHandlers {
	return &GroupHandlers{
		store: st,
		hub:   hub,
		log:   logger,
	}
}

// CreateGroupRequest represents the create group request body.
type CreateGroupRequest struct {
	Name        string `json:"name" validate:"required,min=3,max=50"`
	Description string `json:"description" validate:"max=200"`
}

// GroupResponse represents a group in API responses.
type GroupResponse struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatorID   int64     `json:"creatorId"`
	MemberCount int       `json:"memberCount"`
	IsMember    bool      `json:"isMember"`
	CreatedAt   time.Time `json:"createdAt"`
}

// GroupDetailResponse is a group with its members.
type GroupDetailResponse struct {
	GroupResponse
	Members []proto.User `json:"members"`
}

func newGroupResponse(g *store.Group, members []int64, userID int64) GroupResponse {
	return GroupResponse{
		ID:          g.ID,
		Name:        g.Name,
		Description: g.Description,
		CreatorID:   g.CreatorID,
		MemberCount: len(members),
		IsMember:    lo.Contains(members, userID),
		CreatedAt:   g.CreatedAt,
	}
}

// CreateGroup handles group creation. The creator becomes its first member.
// POST /api/groups
func (h *GroupHandlers) CreateGroup(c *gin.Context) {
	identity, _ := identityFrom(c)

	var req CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create group request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Description = strings.TrimSpace(req.Description)
	if err := validate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "group name must be between 3 and 50 characters and description at most 200",
			Code:  core.ErrCodeValidationFailed,
		})
		return
	}

	group := &store.Group{Name: req.Name, Description: req.Description, CreatorID: identity.ID}
	if err := h.store.CreateGroup(c.Request.Context(), group); err != nil {
		if errors.Is(err, store.ErrConflict) {
			c.JSON(http.StatusConflict, ErrorResponse{Error: "group with this name already exists"})
			return
		}
		respondError(c, h.log, err)
		return
	}

	h.log.Info().Int64("group_id", group.ID).Int64("user_id", identity.ID).Msg("group created")
	c.JSON(http.StatusCreated, newGroupResponse(group, []int64{identity.ID}, identity.ID))
}

// ListGroups handles listing all groups.
// GET /api/groups
func (h *GroupHandlers) ListGroups(c *gin.Context) {
	identity, _ := identityFrom(c)
	ctx := c.Request.Context()

	groups, err := h.store.ListGroups(ctx)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	response := make([]GroupResponse, 0, len(groups))
	for _, g := range groups {
		members, err := h.store.ListMembers(ctx, g.ID)
		if err != nil {
			respondError(c, h.log, err)
			return
		}
		response = append(response, newGroupResponse(g, members, identity.ID))
	}
	c.JSON(http.StatusOK, response)
}

// GetGroup returns a group with its members.
// GET /api/groups/:id
func (h *GroupHandlers) GetGroup(c *gin.Context) {
	identity, _ := identityFrom(c)
	groupID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	group, err := h.store.GetGroupByID(ctx, groupID)
	if err != nil {
		respondError(c, h.log, lookupErr("group not found", err))
		return
	}
	memberIDs, err := h.store.ListMembers(ctx, groupID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	members := make([]proto.User, 0, len(memberIDs))
	for _, id := range memberIDs {
		u, err := h.store.GetUserByID(ctx, id)
		if err != nil {
			respondError(c, h.log, err)
			return
		}
		members = append(members, proto.User{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName})
	}

	c.JSON(http.StatusOK, GroupDetailResponse{
		GroupResponse: newGroupResponse(group, memberIDs, identity.ID),
		Members:       members,
	})
}

// JoinGroup enrolls the caller. Live subscribers are notified.
// POST /api/groups/:id/join
func (h *GroupHandlers) JoinGroup(c *gin.Context) {
	identity, _ := identityFrom(c)
	groupID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	group, err := h.hub.Rooms().Join(c.Request.Context(), identity, nil, groupID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, proto.GroupAck{GroupID: group.ID, Name: group.Name})
}

// LeaveGroup removes the caller. The creator cannot leave.
// POST /api/groups/:id/leave
func (h *GroupHandlers) LeaveGroup(c *gin.Context) {
	identity, _ := identityFrom(c)
	groupID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	group, err := h.hub.Rooms().Leave(c.Request.Context(), identity, nil, groupID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, proto.GroupAck{GroupID: group.ID, Name: group.Name})
}

// GroupHistory returns the messages of a group to its members.
// GET /api/groups/:id/messages
func (h *GroupHandlers) GroupHistory(c *gin.Context) {
	identity, _ := identityFrom(c)
	groupID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	if _, err := h.store.GetGroupByID(ctx, groupID); err != nil {
		respondError(c, h.log, lookupErr("group not found", err))
		return
	}
	member, err := h.store.IsMember(ctx, groupID, identity.ID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "you are not a member of this group", Code: core.ErrCodeForbidden})
		return
	}

	messages, err := h.store.ListGroupMessages(ctx, groupID)
	if err != nil {
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

// SendGroupMessage stores a group message and delivers it live.
// POST /api/groups/:id/messages
func (h *GroupHandlers) SendGroupMessage(c *gin.Context) {
	identity, _ := identityFrom(c)
	groupID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	msg, err := h.hub.Fanout().SendGroup(c.Request.Context(), identity, nil, groupID, req.Content)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, toProtoMessage(msg))
}
