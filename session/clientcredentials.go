package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// ClientCredentials is a Session for service identities. Tokens come from the
// OAuth2 client credentials grant, so there is no interactive login: Login
// drops the cached token and the next refresh fetches a new one.
//
// Before the first fetch the session reports an expiry in the past, which
// makes callers refresh before their first request.
// It is safe for concurrent access.
type ClientCredentials struct {
	options

	config *clientcredentials.Config
	ctx    context.Context // carries values such as oauth2.HTTPClient

	mu    sync.RWMutex
	token *oauth2.Token

	fetchMu sync.Mutex
}

// NewClientCredentials creates a client credentials session.
//
// Parameters:
//   - ctx: Context whose values (e.g. oauth2.HTTPClient) are used for token requests
//   - tokenURL: OAuth2 token endpoint (e.g., "https://sso.example.com/realms/main/protocol/openid-connect/token")
//   - clientID: OAuth2 client identifier
//   - clientSecret: OAuth2 client secret
//   - scopes: Space-separated list of OAuth2 scopes (e.g., "openid profile email")
func NewClientCredentials(ctx context.Context, tokenURL, clientID, clientSecret, scopes string, opts ...Option) (*ClientCredentials, error) {
	if tokenURL == "" {
		return nil, errors.New("session: token URL is required")
	}
	if clientID == "" {
		return nil, errors.New("session: client ID is required")
	}
	if clientSecret == "" {
		return nil, errors.New("session: client secret is required")
	}

	if ctx == nil {
		ctx = context.Background()
	} else {
		ctx = context.WithoutCancel(ctx)
	}

	return &ClientCredentials{
		options: newOptions(opts),
		config: &clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     tokenURL,
			// Split scopes by whitespace to avoid sending a single concatenated scope.
			Scopes: strings.Fields(scopes),
		},
		ctx: ctx,
	}, nil
}

// Authenticated reports true: the client credentials are the identity.
func (c *ClientCredentials) Authenticated() bool {
	return true
}

// Token returns the cached access token, or "" before the first fetch.
func (c *ClientCredentials) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token == nil {
		return ""
	}
	return c.token.AccessToken
}

// Expiry returns the expiry of the cached token. Without a token it returns
// the Unix epoch.
func (c *ClientCredentials) Expiry() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.expiryLocked()
}

func (c *ClientCredentials) expiryLocked() time.Time {
	if c.token == nil {
		return time.Unix(0, 0)
	}
	return tokenExpiry(c.token)
}

// UpdateToken fetches a new token when the cached one expires within
// minValidity, or unconditionally when minValidity is negative.
// This method is thread-safe and uses double-checked locking.
func (c *ClientCredentials) UpdateToken(ctx context.Context, minValidity time.Duration) (bool, error) {
	if minValidity >= 0 && c.validFor(minValidity) {
		return false, nil
	}

	c.fetchMu.Lock()
	defer c.fetchMu.Unlock()

	if minValidity >= 0 && c.validFor(minValidity) {
		return false, nil
	}

	if ctx == nil {
		ctx = c.ctx
	}
	fetchCtx, cancel := context.WithTimeout(mergeValues(c.ctx, ctx), c.refreshTimeout)
	defer cancel()

	token, err := c.config.Token(fetchCtx)
	if err != nil {
		c.logf("session: client credentials token fetch failed: %v", err)
		return false, fmt.Errorf("session: client credentials token fetch: %w", err)
	}

	c.mu.Lock()
	c.token = token
	c.mu.Unlock()

	c.logf("session: obtained new access token (expires: %s)", tokenExpiry(token).Format(time.RFC3339))
	return true, nil
}

// Login forgets the cached token and invokes the LoginFunc, if any.
func (c *ClientCredentials) Login() {
	c.mu.Lock()
	c.token = nil
	c.mu.Unlock()

	c.logf("session: client credentials rejected, token discarded")
	if c.login != nil {
		c.login()
	}
}

func (c *ClientCredentials) validFor(d time.Duration) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.token == nil || c.token.AccessToken == "" {
		return false
	}
	exp := c.expiryLocked()
	if exp.IsZero() {
		return true
	}
	return exp.Sub(c.now()) >= d
}
