package auth

import (
	"context"

	"github.com/rs/zerolog"
)

// Mailer delivers account e-mails.
type Mailer interface {
	SendVerification(ctx context.Context, email, token string) error
	SendPasswordReset(ctx context.Context, email, token string) error
	SendAdminInvitation(ctx context.Context, email, invitedBy string) error
}

// LogMailer writes account links to the log instead of sending mail.
type LogMailer struct {
	BaseURL string
	Log     *zerolog.Logger
}

// SendVerification logs the verification link for the address.
func (m *LogMailer) SendVerification(_ context.Context, email, token string) error {
	m.Log.Info().
		Str("email", email).
		Str("link", m.BaseURL+"/api/auth/verify-email?token="+token).
		Msg("verification mail")
	return nil
}

// SendPasswordReset logs the reset token. It is redeemed with POST /api/auth/reset-password.
func (m *LogMailer) SendPasswordReset(_ context.Context, email, token string) error {
	m.Log.Info().
		Str("email", email).
		Str("token", token).
		Msg("password reset mail")
	return nil
}

func (m *LogMailer) SendAdminInvitation(_ context.Context, email, invitedBy string) error {
	m.Log.Info().
		Str("email", email).
		Str("invited_by", invitedBy).
		Str("link", m.BaseURL+"/api/auth/login").
		Msg("admin invitation mail")
	return nil
}
