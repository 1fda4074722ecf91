package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
)

// ErrKeysUnavailable is returned by ValidateToken while the JWKS or the
// introspection endpoint cannot be reached. The middleware answers it with
// 503 instead of 401.
var ErrKeysUnavailable = errors.New("httpserver: signing keys unavailable")

// DefaultKeyRetryInterval is the minimum time between attempts to fetch a
// JWKS that failed to load.
const DefaultKeyRetryInterval = 5 * time.Second

var validMethods = []string{
	jwt.SigningMethodRS256.Name,
	jwt.SigningMethodRS384.Name,
	jwt.SigningMethodRS512.Name,
	jwt.SigningMethodES256.Name,
	jwt.SigningMethodES384.Name,
	jwt.SigningMethodES512.Name,
}

// JWTTokenValidator validates JWT tokens against the JWKS of an OIDC provider.
// The key set is fetched at construction; if that fails, it is fetched again
// on demand, at most once per retry interval.
type JWTTokenValidator struct {
	jwksURL  string
	issuer   string
	audience string
	options  keyfunc.Options
	logger   Logger

	mu            sync.Mutex
	jwks          *keyfunc.JWKS
	lastAttempt   time.Time
	retryInterval time.Duration
}

// NewJWTTokenValidator creates a new JWT token validator.
//
// Parameters:
//   - jwksURL: URL to the JWKS endpoint (e.g., "https://sso.example.com/realms/main/protocol/openid-connect/certs")
//   - issuer: Expected token issuer (iss claim)
//   - audience: Expected token audience (aud claim); empty disables the check
//   - httpClient: HTTP client for fetching JWKS (optional, uses http.DefaultClient if nil)
//   - cacheTTL: Duration to cache JWKS before refreshing (0 uses default of 1 hour)
//   - logger: Optional logger for debugging (can be nil)
//
// A JWKS that cannot be fetched yet is not an error: it is logged and
// ValidateToken reports ErrKeysUnavailable until a later fetch succeeds.
func NewJWTTokenValidator(jwksURL, issuer, audience string, httpClient *http.Client, cacheTTL time.Duration, logger Logger) (*JWTTokenValidator, error) {
	if jwksURL == "" {
		return nil, errors.New("httpserver: JWKS URL is required")
	}
	if issuer == "" {
		return nil, errors.New("httpserver: issuer is required")
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if cacheTTL == 0 {
		cacheTTL = time.Hour
	}

	v := &JWTTokenValidator{
		jwksURL:       jwksURL,
		issuer:        issuer,
		audience:      audience,
		logger:        logger,
		retryInterval: DefaultKeyRetryInterval,
	}
	v.options = keyfunc.Options{
		RefreshErrorHandler: func(err error) {
			v.logf("httpserver: JWKS refresh error: %v", err)
		},
		RefreshInterval:   cacheTTL,
		RefreshRateLimit:  time.Minute * 5,
		RefreshTimeout:    time.Second * 10,
		RefreshUnknownKID: true,
		Client:            httpClient,
	}

	if _, err := v.keys(); err != nil {
		v.logf("httpserver: JWKS could not be fetched at startup, authentication will fail until it is: %v", err)
	}
	return v, nil
}

// keys returns the key set, fetching it if it has not been loaded yet.
func (v *JWTTokenValidator) keys() (*keyfunc.JWKS, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.jwks != nil {
		return v.jwks, nil
	}
	if !v.lastAttempt.IsZero() && time.Since(v.lastAttempt) < v.retryInterval {
		return nil, ErrKeysUnavailable
	}
	v.lastAttempt = time.Now()

	jwks, err := keyfunc.Get(v.jwksURL, v.options)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeysUnavailable, err)
	}
	v.jwks = jwks
	v.logf("httpserver: loaded JWKS from %s", v.jwksURL)
	return jwks, nil
}

// ValidateToken validates a JWT token and extracts its claims.
//
// Signature, expiry and not-before are checked by the JWT parser; issuer and,
// if configured, audience are checked here. An expired token yields an error
// matching jwt.ErrTokenExpired.
func (v *JWTTokenValidator) ValidateToken(_ context.Context, tokenString string) (*TokenClaims, error) {
	jwks, err := v.keys()
	if err != nil {
		return nil, err
	}

	token, err := jwt.Parse(tokenString, jwks.Keyfunc, jwt.WithValidMethods(validMethods), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("httpserver: token validation failed: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("httpserver: token is invalid")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("httpserver: failed to extract token claims")
	}

	iss, err := claims.GetIssuer()
	if err != nil || iss != v.issuer {
		return nil, fmt.Errorf("httpserver: invalid issuer: expected %s, got %s", v.issuer, iss)
	}

	aud, err := claims.GetAudience()
	if err != nil {
		return nil, fmt.Errorf("httpserver: invalid audience claim: %w", err)
	}
	if v.audience != "" && !slices.Contains(aud, v.audience) {
		return nil, fmt.Errorf("httpserver: invalid audience: expected %s in %v", v.audience, aud)
	}

	sub, err := claims.GetSubject()
	if err != nil {
		return nil, fmt.Errorf("httpserver: invalid subject claim: %w", err)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, errors.New("httpserver: invalid expiry claim")
	}

	tokenClaims := &TokenClaims{
		Subject:  sub,
		Issuer:   iss,
		Audience: aud,
		Expiry:   exp.Time,
		Scopes:   extractScopes(claims),
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		tokenClaims.IssuedAt = iat.Time
	}
	if email, ok := claims["email"].(string); ok {
		tokenClaims.Email = email
	}
	if name, ok := claims["preferred_username"].(string); ok {
		tokenClaims.PreferredUsername = name
	}

	v.logf("httpserver: validated token for subject %s with scopes %v", sub, tokenClaims.Scopes)
	return tokenClaims, nil
}

// Close stops the background JWKS refresh.
func (v *JWTTokenValidator) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.jwks != nil {
		v.jwks.EndBackground()
	}
}

func (v *JWTTokenValidator) logf(format string, args ...any) {
	if v.logger != nil {
		v.logger.Printf(format, args...)
	}
}

// extractScopes reads "scope" or "scp", as a space-separated string or an array.
func extractScopes(claims jwt.MapClaims) []string {
	for _, key := range []string{"scope", "scp"} {
		switch raw := claims[key].(type) {
		case string:
			return strings.Fields(raw)
		case []any:
			scopes := make([]string, 0, len(raw))
			for _, s := range raw {
				if str, ok := s.(string); ok {
					scopes = append(scopes, str)
				}
			}
			return scopes
		}
	}
	return []string{}
}
