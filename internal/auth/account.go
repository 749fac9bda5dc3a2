package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vovakirdan/parley/internal/store"
)

// ResetTokenTTL is how long a password reset token stays valid.
const ResetTokenTTL = time.Hour

var (
	// ErrInvalidReset is returned for unknown, used or expired reset tokens.
	ErrInvalidReset = errors.New("invalid or expired reset token")
	// ErrUserNotFound is returned when an account operation names a missing user.
	ErrUserNotFound = errors.New("user not found")
)

// ProfileInput holds the fields a user may change on their own profile.
type ProfileInput struct {
	FirstName string `validate:"required,min=2,max=50"`
	LastName  string `validate:"required,min=2,max=50"`
	Country   string `validate:"omitempty,min=2,max=50"`
}

// UserUpdateInput is an administrative profile change, role included.
type UserUpdateInput struct {
	FirstName string     `validate:"required,min=2,max=50"`
	LastName  string     `validate:"required,min=2,max=50"`
	Country   string     `validate:"omitempty,min=2,max=50"`
	Role      store.Role `validate:"required,oneof=user admin"`
}

type passwordInput struct {
	Password string `validate:"required,min=6,complexpassword"`
}

func (in *ProfileInput) normalize() {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Country = strings.TrimSpace(in.Country)
}

func (s *Service) loadUser(ctx context.Context, id int64) (*store.User, error) {
	user, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// UpdateProfile changes the caller's names and country.
func (s *Service) UpdateProfile(ctx context.Context, userID int64, in ProfileInput) (*store.User, error) {
	in.normalize()
	if err := validate.Struct(in); err != nil {
		return nil, validationErr(err)
	}

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.FirstName, user.LastName, user.Country = in.FirstName, in.LastName, in.Country
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}

// UpdateUser applies an administrative change, role included.
func (s *Service) UpdateUser(ctx context.Context, userID int64, in UserUpdateInput) (*store.User, error) {
	profile := ProfileInput{FirstName: in.FirstName, LastName: in.LastName, Country: in.Country}
	profile.normalize()
	in.FirstName, in.LastName, in.Country = profile.FirstName, profile.LastName, profile.Country
	if err := validate.Struct(in); err != nil {
		return nil, validationErr(err)
	}

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.FirstName, user.LastName, user.Country, user.Role = in.FirstName, in.LastName, in.Country, in.Role
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}

// ChangePassword replaces the caller's password after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, userID int64, current, next string) error {
	if err := validate.Struct(passwordInput{Password: next}); err != nil {
		return validationErr(err)
	}

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := ComparePassword(user.PasswordHash, current); err != nil {
		return err
	}
	return s.setPassword(ctx, user.ID, next)
}

// ForgotPassword mails a reset token when the address belongs to a user.
// Unknown addresses succeed silently so the answer does not reveal which accounts exist.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return &ValidationError{Field: "Email", Message: fieldMessages["Email"]}
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("get user: %w", err)
	}

	token := uuid.NewString()
	if err := s.store.SetResetToken(ctx, user.ID, token, s.now().Add(ResetTokenTTL)); err != nil {
		return fmt.Errorf("set reset token: %w", err)
	}
	if s.mailer != nil {
		if err := s.mailer.SendPasswordReset(ctx, user.Email, token); err != nil {
			return fmt.Errorf("%w: %v", ErrMailDelivery, err)
		}
	}
	return nil
}

// ResetPassword redeems a reset token for a new password.
func (s *Service) ResetPassword(ctx context.Context, token, password string) (*store.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidReset
	}
	if err := validate.Struct(passwordInput{Password: password}); err != nil {
		return nil, validationErr(err)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	user, err := s.store.ResetPassword(ctx, token, hash, s.now())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidReset
		}
		return nil, fmt.Errorf("reset password: %w", err)
	}
	return user, nil
}

// CreateAdmin registers a verified administrator and sends an invitation.
func (s *Service) CreateAdmin(ctx context.Context, in SignupInput, invitedBy string) (*store.User, error) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = normalizeEmail(in.Email)
	in.Country = strings.TrimSpace(in.Country)
	if err := validate.Struct(in); err != nil {
		return nil, validationErr(err)
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user := &store.User{
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Email:        in.Email,
		Country:      in.Country,
		PasswordHash: hash,
		Role:         store.RoleAdmin,
		IsVerified:   true,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	if s.mailer != nil {
		if err := s.mailer.SendAdminInvitation(ctx, user.Email, invitedBy); err != nil {
			return user, fmt.Errorf("%w: %v", ErrMailDelivery, err)
		}
	}
	return user, nil
}

func (s *Service) setPassword(ctx context.Context, userID int64, password string) error {
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	if err := s.store.SetPassword(ctx, userID, hash); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("set password: %w", err)
	}
	return nil
}
