package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// ErrNoRefreshToken is returned by Provider.UpdateToken when the session has
// no refresh token to exchange.
var ErrNoRefreshToken = errors.New("session: no refresh token available")

// LoginFunc starts an interactive re-authentication. It is expected to call
// Provider.SetToken once the user has signed in again.
type LoginFunc func()

// Provider is a Session backed by an OpenID Connect provider. It keeps the
// current token pair and renews it with the refresh_token grant.
// It is safe for concurrent access.
type Provider struct {
	options

	config *oauth2.Config
	ctx    context.Context // carries values such as oauth2.HTTPClient

	mu           sync.RWMutex
	token        *oauth2.Token
	expiry       time.Time
	refreshToken string

	refreshMu sync.Mutex // serializes refresh_token exchanges
}

// options are shared by Provider and ClientCredentials.
type options struct {
	refreshTimeout time.Duration
	login          LoginFunc
	logger         Logger
	now            func() time.Time
}

func newOptions(opts []Option) options {
	o := options{
		refreshTimeout: 10 * time.Second,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o *options) logf(format string, args ...any) {
	if o.logger != nil {
		o.logger.Printf(format, args...)
	}
}

// Option is a functional option for configuring Provider and ClientCredentials.
type Option func(*options)

// WithLogger sets a custom logger for refresh and login events.
// If not set, no logging will occur.
func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLoggingEnabled enables logging using the default Go log package.
func WithLoggingEnabled() Option {
	return func(o *options) {
		o.logger = log.Default()
	}
}

// WithLoginFunc sets the re-authentication entry point invoked by Login.
func WithLoginFunc(fn LoginFunc) Option {
	return func(o *options) {
		o.login = fn
	}
}

// WithRefreshTimeout bounds a single token exchange. Default is 10 seconds.
func WithRefreshTimeout(timeout time.Duration) Option {
	return func(o *options) {
		o.refreshTimeout = timeout
	}
}

// Discover resolves the authorization and token endpoints of issuer through
// OpenID Connect discovery and returns an oauth2.Config for a public client.
//
// Parameters:
//   - ctx: Context for the discovery request
//   - issuer: Issuer URL (e.g., "https://sso.example.com/realms/main")
//   - clientID: OAuth2 client identifier
//   - scopes: Space-separated list of scopes; "openid" is added when missing
func Discover(ctx context.Context, issuer, clientID, scopes string) (*oauth2.Config, error) {
	if issuer == "" {
		return nil, errors.New("session: issuer is required")
	}
	if clientID == "" {
		return nil, errors.New("session: client ID is required")
	}

	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("session: oidc discovery failed: %w", err)
	}

	scopeList := strings.Fields(scopes)
	hasOpenID := false
	for _, s := range scopeList {
		if s == oidc.ScopeOpenID {
			hasOpenID = true
			break
		}
	}
	if !hasOpenID {
		scopeList = append([]string{oidc.ScopeOpenID}, scopeList...)
	}

	return &oauth2.Config{
		ClientID: clientID,
		Endpoint: provider.Endpoint(),
		Scopes:   scopeList,
	}, nil
}

// NewProvider creates a session around an OAuth2 config and an initial token.
// A nil token yields an unauthenticated session that becomes authenticated
// once SetToken is called.
func NewProvider(ctx context.Context, config *oauth2.Config, token *oauth2.Token, opts ...Option) (*Provider, error) {
	if config == nil {
		return nil, errors.New("session: oauth2 config is required")
	}

	// Refreshes must not die with the caller that happened to trigger them.
	if ctx == nil {
		ctx = context.Background()
	} else {
		ctx = context.WithoutCancel(ctx)
	}

	p := &Provider{
		options: newOptions(opts),
		config:  config,
		ctx:     ctx,
	}

	if token != nil {
		p.SetToken(token)
	}

	return p, nil
}

// SetToken replaces the current token, typically after an interactive login.
// A token carrying only a refresh token leaves the session unauthenticated
// until the first UpdateToken; nil clears everything.
func (p *Provider) SetToken(token *oauth2.Token) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if token == nil {
		p.token, p.expiry, p.refreshToken = nil, time.Time{}, ""
		return
	}
	if token.RefreshToken != "" {
		p.refreshToken = token.RefreshToken
	}
	if token.AccessToken == "" {
		p.token, p.expiry = nil, time.Time{}
		return
	}

	p.token = token
	p.expiry = tokenExpiry(token)
}

// Authenticated reports whether the provider holds an access token.
func (p *Provider) Authenticated() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.token != nil
}

// Token returns the current access token or "" when unauthenticated.
func (p *Provider) Token() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.token == nil {
		return ""
	}
	return p.token.AccessToken
}

// Expiry returns the exp claim of the current access token.
func (p *Provider) Expiry() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.expiry
}

// UpdateToken refreshes the token when it expires within minValidity, or
// unconditionally when minValidity is negative.
func (p *Provider) UpdateToken(ctx context.Context, minValidity time.Duration) (bool, error) {
	if minValidity >= 0 && p.validFor(minValidity) {
		return false, nil
	}

	p.refreshMu.Lock()
	defer p.refreshMu.Unlock()

	// Double-check after acquiring the lock (another goroutine might have refreshed)
	if minValidity >= 0 && p.validFor(minValidity) {
		return false, nil
	}

	p.mu.RLock()
	refreshToken := p.refreshToken
	p.mu.RUnlock()

	if refreshToken == "" {
		return false, ErrNoRefreshToken
	}

	if ctx == nil {
		ctx = p.ctx
	}
	refreshCtx, cancel := context.WithTimeout(mergeValues(p.ctx, ctx), p.refreshTimeout)
	defer cancel()

	// An empty access token forces the token source to use the refresh token.
	src := p.config.TokenSource(refreshCtx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := src.Token()
	if err != nil {
		p.logf("session: token refresh failed: %v", err)
		return false, fmt.Errorf("session: refresh token exchange: %w", err)
	}

	p.SetToken(token)
	p.logf("session: refreshed access token (expires: %s)", p.Expiry().Format(time.RFC3339))

	return true, nil
}

// Login invokes the configured LoginFunc.
func (p *Provider) Login() {
	p.logf("session: re-authentication requested")
	if p.login != nil {
		p.login()
	}
}

// validFor reports whether the token remains valid for at least d.
// Tokens without a known expiry are treated as valid.
func (p *Provider) validFor(d time.Duration) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.token == nil {
		return false
	}
	if p.expiry.IsZero() {
		return true
	}
	return p.expiry.Sub(p.now()) >= d
}

// tokenExpiry prefers the exp claim of a JWT access token and falls back to
// the expiry reported by the token endpoint.
func tokenExpiry(token *oauth2.Token) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token.AccessToken, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time
		}
	}
	return token.Expiry
}

// mergeValues returns ctx, falling back to base for the oauth2 HTTP client
// when ctx does not carry one.
func mergeValues(base, ctx context.Context) context.Context {
	if ctx.Value(oauth2.HTTPClient) != nil {
		return context.WithoutCancel(ctx)
	}
	if client := base.Value(oauth2.HTTPClient); client != nil {
		return context.WithValue(context.WithoutCancel(ctx), oauth2.HTTPClient, client)
	}
	return context.WithoutCancel(ctx)
}
