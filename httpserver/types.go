package httpserver

import (
	"context"
	"time"
)

// TokenValidator validates bearer tokens presented to the server.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*TokenClaims, error)
}

// TokenClaims represents the claims extracted from a validated JWT token.
type TokenClaims struct {
	Subject           string    // Subject (sub) - user identifier
	Issuer            string    // Issuer (iss) - token issuer
	Audience          []string  // Audience (aud) - intended recipients
	Expiry            time.Time // Expiry time (exp)
	IssuedAt          time.Time // Issued at (iat), zero when absent
	Scopes            []string  // Scopes - extracted from "scope" or "scp" claim
	Email             string    // Email - optional user email
	PreferredUsername string    // preferred_username, as issued by Keycloak
}

// Username returns the preferred username, falling back to the subject.
func (c *TokenClaims) Username() string {
	if c.PreferredUsername != "" {
		return c.PreferredUsername
	}
	return c.Subject
}

// Logger is an interface for optional logging in the validator and middleware.
type Logger interface {
	Printf(format string, args ...any)
}
