package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/parley/internal/store"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := NewMigrated(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedUser(t *testing.T, s *SQLiteStore, first, email string) *store.User {
	t.Helper()

	user := &store.User{FirstName: first, LastName: "Test", Email: email, PasswordHash: "hash", IsVerified: true}
	require.NoError(t, s.CreateUser(context.Background(), user))
	return user
}

func TestCreateUserRejectsDuplicateEmail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alice := seedUser(t, s, "Alice", "alice@example.com")
	require.NotZero(t, alice.ID)
	require.Equal(t, store.RoleUser, alice.Role)

	err := s.CreateUser(ctx, &store.User{FirstName: "A", LastName: "B", Email: "alice@example.com", PasswordHash: "x"})
	require.ErrorIs(t, err, store.ErrConflict)

	_, err = s.GetUserByID(ctx, 999)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestVerifyUserConsumesToken(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user := &store.User{FirstName: "Bob", LastName: "B", Email: "bob@example.com", PasswordHash: "x", VerificationToken: "tok"}
	require.NoError(t, s.CreateUser(ctx, user))
	require.False(t, user.IsVerified)

	verified, err := s.VerifyUser(ctx, "tok")
	require.NoError(t, err)
	require.True(t, verified.IsVerified)

	_, err = s.VerifyUser(ctx, "tok")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestCreateGroupEnrollsCreator(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	owner := seedUser(t, s, "Owner", "owner@example.com")
	group := &store.Group{Name: "gophers", Description: "all things go", CreatorID: owner.ID}
	require.NoError(t, s.CreateGroup(ctx, group))
	require.NotZero(t, group.ID)

	members, err := s.ListMembers(ctx, group.ID)
	require.NoError(t, err)
	require.Equal(t, []int64{owner.ID}, members)

	err = s.CreateGroup(ctx, &store.Group{Name: "gophers", CreatorID: owner.ID})
	require.ErrorIs(t, err, store.ErrConflict)
}

func TestAddMemberHasSetSemantics(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	owner := seedUser(t, s, "Owner", "owner@example.com")
	member := seedUser(t, s, "Member", "member@example.com")
	group := &store.Group{Name: "room", CreatorID: owner.ID}
	require.NoError(t, s.CreateGroup(ctx, group))

	require.NoError(t, s.AddMember(ctx, group.ID, member.ID))
	require.NoError(t, s.AddMember(ctx, group.ID, member.ID))

	members, err := s.ListMembers(ctx, group.ID)
	require.NoError(t, err)
	require.ElementsMatch(t, []int64{owner.ID, member.ID}, members)

	require.NoError(t, s.RemoveMember(ctx, group.ID, member.ID))
	require.NoError(t, s.RemoveMember(ctx, group.ID, member.ID))

	ok, err := s.IsMember(ctx, group.ID, member.ID)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSaveMessageRequiresExactlyOneDestination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alice := seedUser(t, s, "Alice", "alice@example.com")
	bob := seedUser(t, s, "Bob", "bob@example.com")
	group := &store.Group{Name: "room", CreatorID: alice.ID}
	require.NoError(t, s.CreateGroup(ctx, group))

	neither := &store.Message{SenderID: alice.ID, Content: "hi"}
	require.ErrorIs(t, s.SaveMessage(ctx, neither), store.ErrInvalidMessage)

	both := &store.Message{SenderID: alice.ID, RecipientID: &bob.ID, GroupID: &group.ID, Content: "hi"}
	require.ErrorIs(t, s.SaveMessage(ctx, both), store.ErrInvalidMessage)

	private := &store.Message{SenderID: alice.ID, RecipientID: &bob.ID, Content: "hi bob"}
	require.NoError(t, s.SaveMessage(ctx, private))
	require.NotZero(t, private.ID)
	require.False(t, private.CreatedAt.IsZero())
	require.Nil(t, private.GroupID)

	groupMsg := &store.Message{SenderID: alice.ID, GroupID: &group.ID, Content: "hi all"}
	require.NoError(t, s.SaveMessage(ctx, groupMsg))
	require.Nil(t, groupMsg.RecipientID)

	history, err := s.ListGroupMessages(ctx, group.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, "hi all", history[0].Content)
}

func TestPrivateHistoryAndMarkRead(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alice := seedUser(t, s, "Alice", "alice@example.com")
	bob := seedUser(t, s, "Bob", "bob@example.com")
	carol := seedUser(t, s, "Carol", "carol@example.com")

	for _, m := range []*store.Message{
		{SenderID: alice.ID, RecipientID: &bob.ID, Content: "one"},
		{SenderID: bob.ID, RecipientID: &alice.ID, Content: "two"},
		{SenderID: carol.ID, RecipientID: &bob.ID, Content: "other conversation"},
	} {
		require.NoError(t, s.SaveMessage(ctx, m))
	}

	history, err := s.ListPrivateMessages(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, "one", history[0].Content)
	require.Equal(t, "two", history[1].Content)

	require.NoError(t, s.MarkRead(ctx, alice.ID, bob.ID))

	history, err = s.ListPrivateMessages(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	require.True(t, history[0].IsRead)
	require.False(t, history[1].IsRead)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, store.Stats{Users: 3, VerifiedUsers: 3, Messages: 3}, stats)
}

func TestSetRoleAndListUsers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	carol := seedUser(t, s, "Carol", "carol@example.com")
	seedUser(t, s, "Alice", "alice@example.com")
	seedUser(t, s, "Bob", "bob@example.com")

	require.NoError(t, s.SetRole(ctx, "carol@example.com", store.RoleAdmin))
	promoted, err := s.GetUserByEmail(ctx, "carol@example.com")
	require.NoError(t, err)
	require.Equal(t, store.RoleAdmin, promoted.Role)

	require.ErrorIs(t, s.SetRole(ctx, "nobody@example.com", store.RoleAdmin), store.ErrNotFound)

	others, err := s.ListUsers(ctx, carol.ID)
	require.NoError(t, err)
	require.Len(t, others, 2)
	require.Equal(t, "Alice", others[0].FirstName)
	require.Equal(t, "Bob", others[1].FirstName)
}

func TestUpdateUserAndPassword(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alice := seedUser(t, s, "Alice", "alice@example.com")
	alice.FirstName = "Alicia"
	alice.Country = "Norway"
	alice.Role = store.RoleAdmin
	require.NoError(t, s.UpdateUser(ctx, alice))
	require.NoError(t, s.SetPassword(ctx, alice.ID, "new-hash"))

	got, err := s.GetUserByID(ctx, alice.ID)
	require.NoError(t, err)
	require.Equal(t, "Alicia", got.FirstName)
	require.Equal(t, "Norway", got.Country)
	require.Equal(t, store.RoleAdmin, got.Role)
	require.Equal(t, "new-hash", got.PasswordHash)

	require.ErrorIs(t, s.UpdateUser(ctx, &store.User{ID: 999, Role: store.RoleUser}), store.ErrNotFound)
	require.ErrorIs(t, s.SetPassword(ctx, 999, "x"), store.ErrNotFound)
}

func TestResetPasswordConsumesToken(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	alice := seedUser(t, s, "Alice", "alice@example.com")
	require.NoError(t, s.SetResetToken(ctx, alice.ID, "reset", now.Add(time.Hour)))

	_, err := s.ResetPassword(ctx, "unknown", "x", now)
	require.ErrorIs(t, err, store.ErrNotFound)

	reset, err := s.ResetPassword(ctx, "reset", "fresh-hash", now)
	require.NoError(t, err)
	require.Equal(t, "fresh-hash", reset.PasswordHash)

	_, err = s.ResetPassword(ctx, "reset", "again", now)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestResetPasswordRejectsExpiredToken(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	alice := seedUser(t, s, "Alice", "alice@example.com")
	require.NoError(t, s.SetResetToken(ctx, alice.ID, "stale", now.Add(-time.Minute)))

	_, err := s.ResetPassword(ctx, "stale", "x", now)
	require.ErrorIs(t, err, store.ErrNotFound)

	got, err := s.GetUserByID(ctx, alice.ID)
	require.NoError(t, err)
	require.Equal(t, "hash", got.PasswordHash)
}

func TestPageUsers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"A", "B", "C"} {
		seedUser(t, s, name, name+"@example.com")
	}

	page, total, err := s.PageUsers(ctx, 2, 2)
	require.NoError(t, err)
	require.Equal(t, 3, total)
	require.Len(t, page, 1)
	require.Equal(t, "C", page[0].FirstName)
}

func TestDeleteUserRemovesTheirData(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alice := seedUser(t, s, "Alice", "alice@example.com")
	bob := seedUser(t, s, "Bob", "bob@example.com")

	owned := &store.Group{Name: "alice-room", CreatorID: alice.ID}
	require.NoError(t, s.CreateGroup(ctx, owned))
	shared := &store.Group{Name: "bob-room", CreatorID: bob.ID}
	require.NoError(t, s.CreateGroup(ctx, shared))
	require.NoError(t, s.AddMember(ctx, shared.ID, alice.ID))

	for _, m := range []*store.Message{
		{SenderID: alice.ID, RecipientID: &bob.ID, Content: "hi"},
		{SenderID: bob.ID, RecipientID: &alice.ID, Content: "hey"},
		{SenderID: bob.ID, GroupID: &owned.ID, Content: "in alice's room"},
		{SenderID: bob.ID, GroupID: &shared.ID, Content: "stays"},
	} {
		require.NoError(t, s.SaveMessage(ctx, m))
	}

	require.NoError(t, s.DeleteUser(ctx, alice.ID))
	require.ErrorIs(t, s.DeleteUser(ctx, alice.ID), store.ErrNotFound)

	_, err := s.GetUserByID(ctx, alice.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.GetGroupByID(ctx, owned.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	members, err := s.ListMembers(ctx, shared.ID)
	require.NoError(t, err)
	require.Equal(t, []int64{bob.ID}, members)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Users)
	require.Equal(t, 1, stats.Groups)
	require.Equal(t, 1, stats.Messages)
}
