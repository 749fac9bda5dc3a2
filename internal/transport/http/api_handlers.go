package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/parley/internal/auth"
)

// APIHandlers provides HTTP handlers for account endpoints.
type APIHandlers struct {
	authService *auth.Service
	log         *zerolog.Logger
}

// NewAPIHandlers creates a new API handlers instance.
func NewAPIHandlers(authService *auth.Service, logger *zerolog.Logger) *APIHandlers {
	return &APIHandlers{
		authService: authService,
		log:         logger,
	}
}

// SignupRequest represents the signup request body.
type SignupRequest struct {
	FirstName string `json:"firstName" binding:"required"`
	LastName  string `json:"lastName" binding:"required"`
	Email     string `json:"email" binding:"required"`
	Country   string `json:"country"`
	Password  string `json:"password" binding:"required"`
}

// LoginRequest represents the login request body.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// ForgotPasswordRequest asks for a password reset token.
type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required"`
}

// ResetPasswordRequest redeems a reset token.
type ResetPasswordRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// SignupResponse is returned after registration.
type SignupResponse struct {
	Message string       `json:"message"`
	User    UserResponse `json:"user"`
}

// AuthResponse represents the authentication response body.
type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

// MessageResponse carries a human-readable outcome.
type MessageResponse struct {
	Message string `json:"message"`
}

// Signup handles user registration.
// POST /api/auth/signup
func (h *APIHandlers) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid signup request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	user, err := h.authService.Signup(c.Request.Context(), auth.SignupInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Country:   req.Country,
		Password:  req.Password,
	})
	var verr *auth.ValidationError
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrMailDelivery):
		h.log.Warn().Err(err).Str("email", user.Email).Msg("failed to send verification email")
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: verr.Message})
		return
	case errors.Is(err, auth.ErrUserExists):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "user already exists"})
		return
	default:
		h.log.Error().Err(err).Str("email", req.Email).Msg("failed to register user")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Int64("user_id", user.ID).Msg("user registered")
	c.JSON(http.StatusCreated, SignupResponse{
		Message: "user registered, check your email to verify your account",
		User:    newUserResponse(user, false),
	})
}

// VerifyEmail consumes a verification token.
// GET /api/auth/verify-email?token=
func (h *APIHandlers) VerifyEmail(c *gin.Context) {
	user, err := h.authService.VerifyEmail(c.Request.Context(), c.Query("token"))
	if err != nil {
		if errors.Is(err, auth.ErrInvalidVerification) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid or expired verification token"})
			return
		}
		h.log.Error().Err(err).Msg("failed to verify email")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Int64("user_id", user.ID).Msg("email verified")
	c.JSON(http.StatusOK, MessageResponse{Message: "email verified, you can now log in"})
}

// Login handles user login.
// POST /api/auth/login
func (h *APIHandlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid login request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	token, user, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid credentials"})
		case errors.Is(err, auth.ErrNotVerified):
			c.JSON(http.StatusForbidden, ErrorResponse{Error: "please verify your email before logging in"})
		default:
			h.log.Error().Err(err).Msg("failed to login")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		}
		return
	}

	h.log.Info().Int64("user_id", user.ID).Msg("user logged in")
	c.JSON(http.StatusOK, AuthResponse{Token: token, User: newUserResponse(user, false)})
}

// ForgotPassword mails a reset token. The answer is the same whether or not the address exists.
// POST /api/auth/forgot-password
func (h *APIHandlers) ForgotPassword(c *gin.Context) {
	var req ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "email is required"})
		return
	}

	if err := h.authService.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		if errors.Is(err, auth.ErrMailDelivery) {
			h.log.Warn().Err(err).Msg("failed to send password reset email")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "error sending password reset email"})
			return
		}
		respondAuthError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "if a user with that email exists, a password reset link has been sent"})
}

// ResetPassword sets a new password from a reset token.
// POST /api/auth/reset-password
func (h *APIHandlers) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "token and new password are required"})
		return
	}

	user, err := h.authService.ResetPassword(c.Request.Context(), req.Token, req.Password)
	if err != nil {
		respondAuthError(c, h.log, err)
		return
	}
	h.log.Info().Int64("user_id", user.ID).Msg("password reset")
	c.JSON(http.StatusOK, MessageResponse{Message: "password reset successful, you can now log in with your new password"})
}
