package session

import (
	"context"
	"time"
)

// Static is a session with a fixed bearer token and no known expiry.
// Remote modules use it when they run standalone during development.
type Static struct {
	token string
}

// NewStatic returns a session that always presents token.
func NewStatic(token string) *Static {
	return &Static{token: token}
}

// Authenticated reports whether a token was configured.
func (s *Static) Authenticated() bool { return s.token != "" }

// Token returns the configured token.
func (s *Static) Token() string { return s.token }

// Expiry returns the zero time: the token never expires.
func (s *Static) Expiry() time.Time { return time.Time{} }

// UpdateToken never refreshes.
func (s *Static) UpdateToken(context.Context, time.Duration) (bool, error) { return false, nil }

// Login is a no-op.
func (s *Static) Login() {}
