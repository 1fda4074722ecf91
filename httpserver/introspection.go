package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInactiveToken is returned when the introspection endpoint reports the
// token as not active.
var ErrInactiveToken = errors.New("httpserver: token is inactive")

// IntrospectionValidator validates opaque access tokens through RFC 7662
// token introspection. Keycloak serves the endpoint at
// <issuer>/protocol/openid-connect/token/introspect.
type IntrospectionValidator struct {
	endpoint     string
	issuer       string
	audience     string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	logger       Logger
}

// NewIntrospectionValidator creates a validator calling endpoint with the
// given client credentials. An empty audience disables the aud check.
func NewIntrospectionValidator(endpoint, issuer, audience, clientID, clientSecret string, httpClient *http.Client, logger Logger) (*IntrospectionValidator, error) {
	switch {
	case endpoint == "":
		return nil, errors.New("httpserver: introspection URL is required")
	case issuer == "":
		return nil, errors.New("httpserver: issuer is required")
	case clientID == "":
		return nil, errors.New("httpserver: introspection client ID is required")
	case clientSecret == "":
		return nil, errors.New("httpserver: introspection client secret is required")
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &IntrospectionValidator{
		endpoint:     endpoint,
		issuer:       issuer,
		audience:     audience,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   httpClient,
		logger:       logger,
	}, nil
}

// ValidateToken asks the introspection endpoint about token and maps the
// answer to TokenClaims.
func (v *IntrospectionValidator) ValidateToken(ctx context.Context, token string) (*TokenClaims, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrMissingToken
	}

	raw, err := v.introspect(ctx, token)
	if err != nil {
		return nil, err
	}

	claims, err := v.claims(raw)
	if err != nil {
		return nil, err
	}

	if v.logger != nil {
		v.logger.Printf("httpserver: introspected token for subject %s with scopes %v", claims.Subject, claims.Scopes)
	}
	return claims, nil
}

func (v *IntrospectionValidator) introspect(ctx context.Context, token string) (map[string]any, error) {
	form := url.Values{}
	form.Set("token", token)
	form.Set("token_type_hint", "access_token")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("httpserver: introspection request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(v.clientID, v.clientSecret)

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: introspection: %w", ErrKeysUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read introspection response: %w", ErrKeysUnavailable, err)
	}

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, fmt.Errorf("%w: introspection endpoint returned status %d", ErrKeysUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("httpserver: introspection endpoint returned status %d", resp.StatusCode)
	}

	var raw map[string]any
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("httpserver: invalid introspection response: %w", err)
	}

	if active, _ := raw["active"].(bool); !active {
		return nil, ErrInactiveToken
	}
	return raw, nil
}

func (v *IntrospectionValidator) claims(raw map[string]any) (*TokenClaims, error) {
	issuer := v.issuer
	if iss := claimString(raw, "iss"); iss != "" {
		if iss != v.issuer {
			return nil, fmt.Errorf("httpserver: invalid issuer: expected %s, got %s", v.issuer, iss)
		}
		issuer = iss
	}

	audience := claimStrings(raw["aud"])
	if v.audience != "" && len(audience) > 0 && !slices.Contains(audience, v.audience) {
		return nil, fmt.Errorf("httpserver: invalid audience: expected %s in %v", v.audience, audience)
	}

	subject := firstNonEmpty(claimString(raw, "sub"), claimString(raw, "client_id"), claimString(raw, "username"))
	if subject == "" {
		return nil, errors.New("httpserver: token has no subject")
	}

	claims := &TokenClaims{
		Subject:           subject,
		Issuer:            issuer,
		Audience:          audience,
		Scopes:            extractScopes(jwt.MapClaims(raw)),
		Email:             claimString(raw, "email"),
		PreferredUsername: firstNonEmpty(claimString(raw, "preferred_username"), claimString(raw, "username")),
	}

	if exp, ok := raw["exp"]; ok {
		t, err := unixTime(exp)
		if err != nil {
			return nil, fmt.Errorf("httpserver: invalid exp claim: %w", err)
		}
		if !t.After(time.Now()) {
			return nil, fmt.Errorf("httpserver: %w", jwt.ErrTokenExpired)
		}
		claims.Expiry = t
	}
	if iat, ok := raw["iat"]; ok {
		t, err := unixTime(iat)
		if err != nil {
			return nil, fmt.Errorf("httpserver: invalid iat claim: %w", err)
		}
		claims.IssuedAt = t
	}

	return claims, nil
}

func claimString(claims map[string]any, key string) string {
	s, _ := claims[key].(string)
	return strings.TrimSpace(s)
}

func claimStrings(raw any) []string {
	switch v := raw.(type) {
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func unixTime(raw any) (time.Time, error) {
	switch v := raw.(type) {
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			f, ferr := v.Float64()
			if ferr != nil {
				return time.Time{}, err
			}
			n = int64(f)
		}
		return time.Unix(n, 0), nil
	case float64:
		return time.Unix(int64(v), 0), nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return time.Time{}, err
		}
		return time.Unix(n, 0), nil
	default:
		return time.Time{}, fmt.Errorf("unexpected type %T", raw)
	}
}
