package httpserver

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
)

// ValidatorBuilder provides a fluent interface for constructing a
// JWTTokenValidator for an OIDC issuer.
type ValidatorBuilder struct {
	issuerURL  string
	audience   string
	jwksURL    string
	discovery  bool
	cacheTTL   time.Duration
	httpClient *http.Client
	logger     Logger
}

// NewValidatorBuilder creates a new validator builder for issuerURL
// (e.g., "https://sso.example.com/realms/main").
//
// Defaults:
//   - JWKS URL is {issuerURL}/protocol/openid-connect/certs (Keycloak layout)
//   - no audience check
//   - cache TTL of 1 hour
//   - HTTP client with a 10s timeout and TLS 1.2+
func NewValidatorBuilder(issuerURL string) *ValidatorBuilder {
	return &ValidatorBuilder{
		issuerURL: issuerURL,
		cacheTTL:  time.Hour,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					MinVersion: tls.VersionTLS12,
				},
			},
		},
	}
}

// WithAudience requires tokens to carry audience in their aud claim.
func (b *ValidatorBuilder) WithAudience(audience string) *ValidatorBuilder {
	b.audience = audience
	return b
}

// WithJWKSURL sets the JWKS endpoint explicitly. It takes precedence over
// discovery.
func (b *ValidatorBuilder) WithJWKSURL(url string) *ValidatorBuilder {
	b.jwksURL = url
	return b
}

// WithDiscovery resolves the JWKS endpoint from the issuer's
// /.well-known/openid-configuration document at Build time.
func (b *ValidatorBuilder) WithDiscovery() *ValidatorBuilder {
	b.discovery = true
	return b
}

// WithCacheTTL sets the duration for caching JWKS keys before automatic refresh.
func (b *ValidatorBuilder) WithCacheTTL(ttl time.Duration) *ValidatorBuilder {
	b.cacheTTL = ttl
	return b
}

// WithHTTPClient sets the HTTP client used for discovery and JWKS fetches.
func (b *ValidatorBuilder) WithHTTPClient(client *http.Client) *ValidatorBuilder {
	b.httpClient = client
	return b
}

// WithLogger sets a logger for validation and JWKS refresh events.
func (b *ValidatorBuilder) WithLogger(logger Logger) *ValidatorBuilder {
	b.logger = logger
	return b
}

// Build constructs the validator. Discovery, when enabled, must succeed; an
// unreachable JWKS endpoint does not fail Build (see NewJWTTokenValidator).
func (b *ValidatorBuilder) Build(ctx context.Context) (*JWTTokenValidator, error) {
	if b.issuerURL == "" {
		return nil, errors.New("httpserver: issuer URL is required")
	}

	jwksURL, err := b.resolveJWKSURL(ctx)
	if err != nil {
		return nil, err
	}

	validator, err := NewJWTTokenValidator(jwksURL, b.issuerURL, b.audience, b.httpClient, b.cacheTTL, b.logger)
	if err != nil {
		return nil, fmt.Errorf("httpserver: failed to build validator: %w", err)
	}
	return validator, nil
}

func (b *ValidatorBuilder) resolveJWKSURL(ctx context.Context) (string, error) {
	if b.jwksURL != "" {
		return b.jwksURL, nil
	}

	if !b.discovery {
		jwksURL := deriveJWKSURL(b.issuerURL)
		if b.logger != nil {
			b.logger.Printf("httpserver: using derived JWKS URL: %s", jwksURL)
		}
		return jwksURL, nil
	}

	if b.httpClient != nil {
		ctx = oidc.ClientContext(ctx, b.httpClient)
	}
	provider, err := oidc.NewProvider(ctx, b.issuerURL)
	if err != nil {
		return "", fmt.Errorf("httpserver: OIDC discovery: %w", err)
	}

	var meta struct {
		JWKSURI string `json:"jwks_uri"`
	}
	if err := provider.Claims(&meta); err != nil {
		return "", fmt.Errorf("httpserver: OIDC discovery: %w", err)
	}
	if meta.JWKSURI == "" {
		return "", errors.New("httpserver: OIDC discovery: jwks_uri missing")
	}
	if b.logger != nil {
		b.logger.Printf("httpserver: discovered JWKS URL: %s", meta.JWKSURI)
	}
	return meta.JWKSURI, nil
}

// deriveJWKSURL returns the Keycloak certs endpoint of a realm issuer URL.
func deriveJWKSURL(issuerURL string) string {
	return strings.TrimSuffix(issuerURL, "/") + "/protocol/openid-connect/certs"
}
