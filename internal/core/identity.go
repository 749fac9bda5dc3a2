package core

import "github.com/vovakirdan/parley/internal/store"

// User is the public, denormalized view of a user attached to events.
type User struct {
	ID        int64
	FirstName string
	LastName  string
}

// Identity is an authenticated user snapshotted at handshake time.
type Identity struct {
	ID        int64
	FirstName string
	LastName  string
	Email     string
	Role      store.Role
	Verified  bool
}

// IdentityFromUser snapshots a stored user.
func IdentityFromUser(u *store.User) Identity {
	return Identity{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Role:      u.Role,
		Verified:  u.IsVerified,
	}
}

// User returns the public view of the identity.
func (i Identity) User() User {
	return User{ID: i.ID, FirstName: i.FirstName, LastName: i.LastName}
}

// IsAdmin reports whether the identity carries the admin role.
func (i Identity) IsAdmin() bool {
	return i.Role == store.RoleAdmin
}
