package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/parley/internal/store"
)

func signupVerified(t *testing.T, svc *Service, mailer *recordingMailer) *store.User {
	t.Helper()

	user, err := svc.Signup(context.Background(), validSignup())
	require.NoError(t, err)
	_, err = svc.VerifyEmail(context.Background(), mailer.token)
	require.NoError(t, err)
	return user
}

func TestForgotAndResetPassword(t *testing.T) {
	svc, mailer, _ := newTestAuthService(t, true)
	ctx := context.Background()
	signupVerified(t, svc, mailer)

	require.NoError(t, svc.ForgotPassword(ctx, "nobody@example.com"))
	require.Empty(t, mailer.resetToken)

	require.NoError(t, svc.ForgotPassword(ctx, " ALICE@example.com "))
	require.NotEmpty(t, mailer.resetToken)

	_, err := svc.ResetPassword(ctx, mailer.resetToken, "weak")
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "got %v", err)

	_, err = svc.ResetPassword(ctx, mailer.resetToken, "N3w!secret")
	require.NoError(t, err)
	_, err = svc.ResetPassword(ctx, mailer.resetToken, "N3w!secret")
	require.ErrorIs(t, err, ErrInvalidReset)

	_, _, err = svc.Login(ctx, "alice@example.com", "Secr3t!pw")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = svc.Login(ctx, "alice@example.com", "N3w!secret")
	require.NoError(t, err)
}

func TestResetPasswordExpires(t *testing.T) {
	svc, mailer, _ := newTestAuthService(t, true)
	ctx := context.Background()
	signupVerified(t, svc, mailer)

	require.NoError(t, svc.ForgotPassword(ctx, "alice@example.com"))
	svc.now = func() time.Time { return time.Now().Add(ResetTokenTTL + time.Minute) }

	_, err := svc.ResetPassword(ctx, mailer.resetToken, "N3w!secret")
	require.ErrorIs(t, err, ErrInvalidReset)
}

func TestChangePassword(t *testing.T) {
	svc, mailer, _ := newTestAuthService(t, true)
	ctx := context.Background()
	user := signupVerified(t, svc, mailer)

	require.ErrorIs(t, svc.ChangePassword(ctx, user.ID, "Wr0ng!pw", "N3w!secret"), ErrInvalidCredentials)
	require.ErrorIs(t, svc.ChangePassword(ctx, 4242, "Secr3t!pw", "N3w!secret"), ErrUserNotFound)
	require.NoError(t, svc.ChangePassword(ctx, user.ID, "Secr3t!pw", "N3w!secret"))

	_, _, err := svc.Login(ctx, "alice@example.com", "N3w!secret")
	require.NoError(t, err)
}

func TestUpdateProfileAndUser(t *testing.T) {
	svc, mailer, _ := newTestAuthService(t, true)
	ctx := context.Background()
	user := signupVerified(t, svc, mailer)

	updated, err := svc.UpdateProfile(ctx, user.ID, ProfileInput{FirstName: " Alicia ", LastName: "Liddell", Country: "NO"})
	require.NoError(t, err)
	require.Equal(t, "Alicia", updated.FirstName)
	require.Equal(t, store.RoleUser, updated.Role)

	_, err = svc.UpdateProfile(ctx, user.ID, ProfileInput{FirstName: "A", LastName: "Liddell"})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "got %v", err)

	_, err = svc.UpdateUser(ctx, user.ID, UserUpdateInput{FirstName: "Alicia", LastName: "Liddell", Role: "root"})
	require.True(t, errors.As(err, &verr), "got %v", err)
	require.Equal(t, "Role", verr.Field)

	promoted, err := svc.UpdateUser(ctx, user.ID, UserUpdateInput{FirstName: "Alicia", LastName: "Liddell", Role: store.RoleAdmin})
	require.NoError(t, err)
	require.Equal(t, store.RoleAdmin, promoted.Role)

	_, err = svc.UpdateUser(ctx, 4242, UserUpdateInput{FirstName: "Nobody", LastName: "Here", Role: store.RoleUser})
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestCreateAdmin(t *testing.T) {
	svc, mailer, _ := newTestAuthService(t, true)
	ctx := context.Background()

	admin, err := svc.CreateAdmin(ctx, validSignup(), "Root Admin")
	require.NoError(t, err)
	require.Equal(t, store.RoleAdmin, admin.Role)
	require.True(t, admin.IsVerified)
	require.Equal(t, "Root Admin", mailer.invitedBy)

	_, _, err = svc.Login(ctx, "alice@example.com", "Secr3t!pw")
	require.NoError(t, err)

	_, err = svc.CreateAdmin(ctx, validSignup(), "Root Admin")
	require.ErrorIs(t, err, ErrUserExists)
}
