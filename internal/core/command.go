package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandPrivateMessage sends a direct message to another user.
	CommandPrivateMessage CommandKind = iota
	// CommandJoinGroup enrolls the user in a group and subscribes the connection to it.
	CommandJoinGroup
	// CommandLeaveGroup removes the user from a group and unsubscribes the connection.
	CommandLeaveGroup
	// CommandGroupMessage delivers a chat message to a group.
	CommandGroupMessage

	numCommandKinds
)

func (k CommandKind) String() string {
	switch k {
	case CommandPrivateMessage:
		return "privateMessage"
	case CommandJoinGroup:
		return "joinGroup"
	case CommandLeaveGroup:
		return "leaveGroup"
	case CommandGroupMessage:
		return "groupMessage"
	default:
		return "unknown"
	}
}

// Command represents an action requested by a client.
type Command struct {
	Kind        CommandKind
	RecipientID int64
	GroupID     int64
	Content     string
}
