package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/parley/internal/auth"
	"github.com/vovakirdan/parley/internal/core"
)

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

var statusByCode = map[string]int{
	core.ErrCodeAuthenticationFailed: http.StatusUnauthorized,
	core.ErrCodeNotFound:             http.StatusNotFound,
	core.ErrCodeForbidden:            http.StatusForbidden,
	core.ErrCodeValidationFailed:     http.StatusBadRequest,
	ErrCodeInvalidMessage:            http.StatusBadRequest,
	ErrCodeRateLimited:               http.StatusTooManyRequests,
}

// respondError writes a domain error. Anything that is not a client mistake is
// logged and reported as an internal error.
func respondError(c *gin.Context, logger *zerolog.Logger, err error) {
	var ce *core.CoreError
	if errors.As(err, &ce) {
		if status, ok := statusByCode[ce.Code]; ok {
			c.JSON(status, ErrorResponse{Error: ce.Message, Code: ce.Code})
			return
		}
	}

	logger.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error", Code: core.ErrCodePersistenceFailed})
}

var statusByAuthErr = []struct {
	err     error
	status  int
	message string
}{
	{auth.ErrInvalidCredentials, http.StatusUnauthorized, "invalid credentials"},
	{auth.ErrNotVerified, http.StatusForbidden, "please verify your email before logging in"},
	{auth.ErrUserExists, http.StatusConflict, "user already exists"},
	{auth.ErrUserNotFound, http.StatusNotFound, "user not found"},
	{auth.ErrInvalidVerification, http.StatusBadRequest, "invalid or expired verification token"},
	{auth.ErrInvalidReset, http.StatusBadRequest, "invalid or expired reset token"},
}

// respondAuthError writes an account error from the auth service.
func respondAuthError(c *gin.Context, logger *zerolog.Logger, err error) {
	var verr *auth.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: verr.Message, Code: core.ErrCodeValidationFailed})
		return
	}
	for _, m := range statusByAuthErr {
		if errors.Is(err, m.err) {
			c.JSON(m.status, ErrorResponse{Error: m.message})
			return
		}
	}
	respondError(c, logger, err)
}
