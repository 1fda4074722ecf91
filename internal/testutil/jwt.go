package testutil

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TestKeyID is the kid used for every signed test token.
const TestKeyID = "test-key-1"

// CreateJWKSServer serves a JWKS document holding publicKey under TestKeyID.
func CreateJWKSServer(tb testing.TB, publicKey *rsa.PublicKey) *httptest.Server {
	tb.Helper()

	jwks := map[string]any{
		"keys": []map[string]any{
			{
				"kty": "RSA",
				"kid": TestKeyID,
				"use": "sig",
				"alg": "RS256",
				"n":   base64.RawURLEncoding.EncodeToString(publicKey.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(publicKey.E)).Bytes()),
			},
		},
	}

	return NewLocalHTTPServer(tb, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(jwks)
	}))
}

// JWTTestSetup holds a signing key and a JWKS endpoint publishing it.
type JWTTestSetup struct {
	PrivateKey *rsa.PrivateKey
	JWKSServer *httptest.Server
	Issuer     string
	Audience   string
}

// NewJWTTestSetup generates a key pair and starts a JWKS server for it.
func NewJWTTestSetup(tb testing.TB) *JWTTestSetup {
	tb.Helper()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		tb.Fatalf("failed to generate RSA key pair: %v", err)
	}

	return &JWTTestSetup{
		PrivateKey: privateKey,
		JWKSServer: CreateJWKSServer(tb, &privateKey.PublicKey),
		Issuer:     "https://sso.example.com/realms/main",
		Audience:   "filestorage",
	}
}

// JWKSURL returns the URL of the JWKS endpoint.
func (s *JWTTestSetup) JWKSURL() string {
	return s.JWKSServer.URL
}

// Token signs a token for subject that expires at exp.
func (s *JWTTestSetup) Token(tb testing.TB, subject string, exp time.Time) string {
	tb.Helper()

	return NewJWTClaims(s.Issuer, s.Audience, subject).
		WithExpiry(exp).
		SignToken(tb, s.PrivateKey)
}

// JWTClaims provides a builder pattern for creating test JWT claims.
type JWTClaims struct {
	claims jwt.MapClaims
}

// NewJWTClaims creates a new JWTClaims builder with default valid claims.
func NewJWTClaims(issuer, audience, subject string) *JWTClaims {
	return &JWTClaims{
		claims: jwt.MapClaims{
			"iss": issuer,
			"aud": []string{audience},
			"sub": subject,
			"exp": time.Now().Add(time.Hour).Unix(),
			"iat": time.Now().Add(-time.Minute).Unix(),
		},
	}
}

// WithExpiry sets a custom expiry time.
func (c *JWTClaims) WithExpiry(exp time.Time) *JWTClaims {
	c.claims["exp"] = exp.Unix()
	return c
}

// WithScope sets the scope claim (space-separated string).
func (c *JWTClaims) WithScope(scope string) *JWTClaims {
	c.claims["scope"] = scope
	return c
}

// WithCustomClaim adds a custom claim.
func (c *JWTClaims) WithCustomClaim(key string, value any) *JWTClaims {
	c.claims[key] = value
	return c
}

// WithoutClaim removes a specific claim.
func (c *JWTClaims) WithoutClaim(key string) *JWTClaims {
	delete(c.claims, key)
	return c
}

// SignToken signs the claims with RS256 and returns the compact token.
func (c *JWTClaims) SignToken(tb testing.TB, privateKey *rsa.PrivateKey) string {
	tb.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, c.claims)
	token.Header["kid"] = TestKeyID

	tokenString, err := token.SignedString(privateKey)
	if err != nil {
		tb.Fatalf("failed to sign token: %v", err)
	}

	return tokenString
}

// UnsignedToken returns an unsigned JWT ("alg": "none") carrying exp. Useful
// where only the claims are read.
func UnsignedToken(tb testing.TB, exp time.Time) string {
	tb.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"exp": exp.Unix()})
	s, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		tb.Fatalf("failed to build unsigned token: %v", err)
	}
	return s
}
