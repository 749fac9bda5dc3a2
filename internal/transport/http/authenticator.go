//go:generate go run go.uber.org/mock/mockgen -source=authenticator.go -destination=../../mocks/mock_authenticator.go -package=mocks
package http

import (
	"context"
	"strings"

	"github.com/vovakirdan/parley/internal/core"
)

// Authenticator resolves a bearer credential to an identity.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (core.Identity, error)
}

// bearerToken extracts the token from an "Authorization: Bearer <token>" header value.
func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
