package proto

import (
	"encoding/json"
	"time"
)

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Inbound event names.
const (
	InboundPrivateMessage = "privateMessage"
	InboundJoinGroup      = "joinGroup"
	InboundLeaveGroup     = "leaveGroup"
	InboundGroupMessage   = "groupMessage"
)

// Outbound event names.
const (
	EventOnlineUsers     = "onlineUsers"
	EventUserOnline      = "userOnline"
	EventUserOffline     = "userOffline"
	EventPrivateMessage  = "privateMessage"
	EventMessageSent     = "messageSent"
	EventJoinedGroup     = "joinedGroup"
	EventLeftGroup       = "leftGroup"
	EventUserJoinedGroup = "userJoinedGroup"
	EventUserLeftGroup   = "userLeftGroup"
	EventGroupMessage    = "groupMessage"
	EventError           = "error"
)

// PrivateMessageData sends a direct message.
type PrivateMessageData struct {
	RecipientID int64  `json:"recipientId" validate:"required,gt=0"`
	Content     string `json:"content"`
}

// GroupData names the group to join or leave.
type GroupData struct {
	GroupID int64 `json:"groupId" validate:"required,gt=0"`
}

// GroupMessageData is a chat message to a group.
type GroupMessageData struct {
	GroupID int64  `json:"groupId" validate:"required,gt=0"`
	Content string `json:"content"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// User is the public view of a user.
type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// Message is a persisted chat message.
type Message struct {
	ID          int64     `json:"id"`
	Sender      User      `json:"sender"`
	RecipientID *int64    `json:"recipientId,omitempty"`
	GroupID     *int64    `json:"groupId,omitempty"`
	Content     string    `json:"content"`
	IsRead      bool      `json:"isRead"`
	CreatedAt   time.Time `json:"createdAt"`
}

// GroupAck acknowledges a join or leave to the acting connection.
type GroupAck struct {
	GroupID int64  `json:"groupId"`
	Name    string `json:"name"`
}

// GroupMember notifies subscribers about a membership change.
type GroupMember struct {
	GroupID int64 `json:"groupId"`
	User    User  `json:"user"`
}

// Error describes a failed action.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
