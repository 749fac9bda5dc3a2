package core

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventOnlineUsers delivers the presence snapshot to a freshly connected client.
	EventOnlineUsers EventKind = iota
	// EventUserOnline notifies clients that a user came online.
	EventUserOnline
	// EventUserOffline notifies clients that a user went offline.
	EventUserOffline
	// EventPrivateMessage delivers a direct message to the recipient.
	EventPrivateMessage
	// EventMessageSent acknowledges a persisted message to its sender.
	EventMessageSent
	// EventJoinedGroup acknowledges a join to the joining connection.
	EventJoinedGroup
	// EventLeftGroup acknowledges a leave to the leaving connection.
	EventLeftGroup
	// EventUserJoinedGroup notifies group subscribers about a new member.
	EventUserJoinedGroup
	// EventUserLeftGroup notifies group subscribers about a departed member.
	EventUserLeftGroup
	// EventGroupMessage delivers a chat message to group subscribers.
	EventGroupMessage
	// EventError notifies a client about a failed action of its own.
	EventError
)

// GroupRef names a group in acknowledgements and membership events.
type GroupRef struct {
	ID   int64
	Name string
}

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind    EventKind
	UserID  int64   // EventUserOnline, EventUserOffline
	Online  []int64 // EventOnlineUsers
	Group   GroupRef
	User    User
	Message Message
	Error   *CoreError
}
