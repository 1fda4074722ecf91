package session

import (
	"context"
	"errors"
	"time"
)

// ForceRefresh asks UpdateToken to refresh even when the cached expiry says
// the token is still valid.
const ForceRefresh time.Duration = -1

// ErrAuthRefreshFailed is returned when the identity provider rejects a token
// refresh. The session's Login entry point has been triggered by the time a
// caller sees it.
var ErrAuthRefreshFailed = errors.New("session: token refresh failed")

// Session is the identity-provider collaborator shared by the host and every
// client it builds. Implementations own the token; consumers only read it and
// ask for refreshes.
type Session interface {
	// Authenticated reports whether the session currently holds a token.
	Authenticated() bool

	// Token returns the current access token.
	Token() string

	// Expiry returns the exp claim of the current token. The zero time means
	// the expiry is unknown.
	Expiry() time.Time

	// UpdateToken makes sure the token stays valid for at least minValidity,
	// refreshing it when needed. It reports whether a refresh happened.
	// A negative minValidity (ForceRefresh) always refreshes.
	UpdateToken(ctx context.Context, minValidity time.Duration) (bool, error)

	// Login triggers the provider's re-authentication entry point.
	Login()
}

// Logger is an interface for optional logging in session implementations.
type Logger interface {
	Printf(format string, args ...any)
}
