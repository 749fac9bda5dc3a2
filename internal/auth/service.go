package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/vovakirdan/parley/internal/core"
	"github.com/vovakirdan/parley/internal/store"
)

var (
	// ErrInvalidCredentials is returned when email/password don't match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserExists is returned when trying to register with an existing email.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidToken is returned for bad, expired or orphaned credentials.
	ErrInvalidToken = errors.New("invalid token")
	// ErrNotVerified is returned when an unverified user tries to sign in.
	ErrNotVerified = errors.New("email not verified")
	// ErrInvalidVerification is returned for unknown or used verification tokens.
	ErrInvalidVerification = errors.New("invalid or expired verification token")
	// ErrMailDelivery is returned when the account was created but its mail was not sent.
	ErrMailDelivery = errors.New("account mail not sent")
)

// ValidationError describes rejected signup or login input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// SignupInput is the data needed to register a user.
type SignupInput struct {
	FirstName string `validate:"required,min=2,max=50"`
	LastName  string `validate:"required,min=2,max=50"`
	Email     string `validate:"required,email"`
	Country   string `validate:"omitempty,min=2,max=50"`
	Password  string `validate:"required,min=6,complexpassword"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("complexpassword", func(fl validator.FieldLevel) bool {
		return isPasswordComplex(fl.Field().String())
	})
	return v
}

func isPasswordComplex(s string) bool {
	var hasUpper, hasLower, hasNumber, hasSpecial bool
	for _, char := range s {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsNumber(char):
			hasNumber = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char):
			hasSpecial = true
		}
	}
	return hasUpper && hasLower && hasNumber && hasSpecial
}

var fieldMessages = map[string]string{
	"FirstName": "first name must be between 2 and 50 characters",
	"LastName":  "last name must be between 2 and 50 characters",
	"Email":     "please provide a valid email address",
	"Country":   "country must be between 2 and 50 characters",
	"Role":      "role must be user or admin",
	"Password":  "password must be at least 6 characters and contain an uppercase letter, a lowercase letter, a number and a special character",
}

func validationErr(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	field := verrs[0].Field()
	msg, ok := fieldMessages[field]
	if !ok {
		msg = "invalid " + strings.ToLower(field)
	}
	return &ValidationError{Field: field, Message: msg}
}

// Service provides authentication operations.
type Service struct {
	store           store.UserStore
	jwtConfig       *JWTConfig
	mailer          Mailer
	requireVerified bool
	now             func() time.Time
}

// NewService creates a new authentication service.
func NewService(userStore store.UserStore, jwtConfig *JWTConfig, mailer Mailer, requireVerified bool) *Service {
	return &Service{
		store:           userStore,
		jwtConfig:       jwtConfig,
		mailer:          mailer,
		requireVerified: requireVerified,
		now:             time.Now,
	}
}

// Signup creates an unverified user and mails its verification token.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*store.User, error) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = normalizeEmail(in.Email)
	in.Country = strings.TrimSpace(in.Country)
	if err := validate.Struct(in); err != nil {
		return nil, validationErr(err)
	}

	hashedPassword, err := HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &store.User{
		FirstName:         in.FirstName,
		LastName:          in.LastName,
		Email:             in.Email,
		Country:           in.Country,
		PasswordHash:      hashedPassword,
		Role:              store.RoleUser,
		VerificationToken: uuid.NewString(),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	if s.mailer != nil {
		if err := s.mailer.SendVerification(ctx, user.Email, user.VerificationToken); err != nil {
			return user, fmt.Errorf("%w: %v", ErrMailDelivery, err)
		}
	}
	return user, nil
}

// VerifyEmail consumes a verification token.
func (s *Service) VerifyEmail(ctx context.Context, token string) (*store.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidVerification
	}
	user, err := s.store.VerifyUser(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidVerification
		}
		return nil, fmt.Errorf("verify user: %w", err)
	}
	return user, nil
}

// Login validates credentials and returns a JWT token with the user.
func (s *Service) Login(ctx context.Context, email, password string) (string, *store.User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return "", nil, ErrInvalidCredentials
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("get user: %w", err)
	}

	if errPwd := ComparePassword(user.PasswordHash, password); errPwd != nil {
		return "", nil, ErrInvalidCredentials
	}
	if s.requireVerified && !user.IsVerified {
		return "", nil, ErrNotVerified
	}

	token, err := GenerateToken(s.jwtConfig, user.ID, user.Role)
	if err != nil {
		return "", nil, fmt.Errorf("generate token: %w", err)
	}
	return token, user, nil
}

// Authenticate resolves a bearer token to the identity it names.
func (s *Service) Authenticate(ctx context.Context, token string) (core.Identity, error) {
	claims, err := ValidateToken(s.jwtConfig, token)
	if err != nil {
		return core.Identity{}, ErrInvalidToken
	}

	user, err := s.store.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return core.Identity{}, ErrInvalidToken
		}
		return core.Identity{}, fmt.Errorf("get user: %w", err)
	}
	if s.requireVerified && !user.IsVerified {
		return core.Identity{}, ErrNotVerified
	}
	return core.IdentityFromUser(user), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
