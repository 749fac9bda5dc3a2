package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when the requested entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a unique constraint would be violated.
	ErrConflict = errors.New("conflict")
	// ErrInvalidMessage is returned when a message does not have exactly one destination.
	ErrInvalidMessage = errors.New("message must have exactly one of recipient or group")
)

// Role is the privilege level of a user.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User represents a user in the system.
type User struct {
	ID                int64
	FirstName         string
	LastName          string
	Email             string
	Country           string
	PasswordHash      string
	Role              Role
	IsVerified        bool
	VerificationToken string
	CreatedAt         time.Time
}

// Group represents a durable group chat.
type Group struct {
	ID          int64
	Name        string
	Description string
	CreatorID   int64
	CreatedAt   time.Time
}

// Message represents a persisted chat message.
// Exactly one of RecipientID and GroupID is set.
type Message struct {
	ID          int64
	SenderID    int64
	RecipientID *int64
	GroupID     *int64
	Content     string
	IsRead      bool
	CreatedAt   time.Time
}

// Validate checks the destination invariant.
func (m *Message) Validate() error {
	if (m.RecipientID == nil) == (m.GroupID == nil) {
		return ErrInvalidMessage
	}
	return nil
}

// Stats aggregates entity counts.
type Stats struct {
	Users         int
	Admins        int
	VerifiedUsers int
	Groups        int
	Messages      int
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser inserts a new user and fills in ID and CreatedAt.
	CreateUser(ctx context.Context, user *User) error

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByEmail retrieves a user by e-mail address.
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// ListUsers returns every user except the given one, ordered by first name.
	ListUsers(ctx context.Context, excludeID int64) ([]*User, error)

	// VerifyUser marks the user owning the verification token as verified.
	VerifyUser(ctx context.Context, token string) (*User, error)

	// SetRole changes the role of the user with the given e-mail.
	SetRole(ctx context.Context, email string, role Role) error

	// UpdateUser writes the user's names, country and role.
	UpdateUser(ctx context.Context, user *User) error

	// SetPassword replaces the password hash of a user.
	SetPassword(ctx context.Context, id int64, passwordHash string) error

	// SetResetToken stores a password reset token valid until expires.
	SetResetToken(ctx context.Context, id int64, token string, expires time.Time) error

	// ResetPassword consumes an unexpired reset token and sets the new hash.
	ResetPassword(ctx context.Context, token, passwordHash string, now time.Time) (*User, error)

	// PageUsers returns users ordered by creation with the total count.
	PageUsers(ctx context.Context, offset, limit int) ([]*User, int, error)

	// DeleteUser removes a user with their messages, memberships and the groups they created.
	DeleteUser(ctx context.Context, id int64) error
}

// GroupStore handles group and durable membership persistence.
type GroupStore interface {
	// CreateGroup inserts a group and enrolls its creator in one transaction.
	CreateGroup(ctx context.Context, group *Group) error

	// GetGroupByID retrieves a group by ID.
	GetGroupByID(ctx context.Context, id int64) (*Group, error)

	// ListGroups returns all groups ordered by name.
	ListGroups(ctx context.Context) ([]*Group, error)

	// AddMember enrolls a user. Adding an existing member is a no-op.
	AddMember(ctx context.Context, groupID, userID int64) error

	// RemoveMember removes a user. Removing a non-member is a no-op.
	RemoveMember(ctx context.Context, groupID, userID int64) error

	// IsMember reports whether the user is a durable member of the group.
	IsMember(ctx context.Context, groupID, userID int64) (bool, error)

	// ListMembers returns member user IDs in join order.
	ListMembers(ctx context.Context, groupID int64) ([]int64, error)
}

// MessageStore handles message persistence.
type MessageStore interface {
	// SaveMessage persists a message and fills in ID and CreatedAt.
	SaveMessage(ctx context.Context, msg *Message) error

	// ListPrivateMessages returns the conversation between two users, oldest first.
	ListPrivateMessages(ctx context.Context, userID, otherID int64) ([]*Message, error)

	// MarkRead flags every unread message from sender to recipient as read.
	MarkRead(ctx context.Context, senderID, recipientID int64) error

	// ListGroupMessages returns the messages of a group, oldest first.
	ListGroupMessages(ctx context.Context, groupID int64) ([]*Message, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	GroupStore
	MessageStore

	// Stats returns entity counts.
	Stats(ctx context.Context) (Stats, error)

	// Close closes the underlying database connection.
	Close() error
}
