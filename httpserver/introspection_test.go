package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/AmmannChristian/go-shellauth/internal/testutil"
	"github.com/golang-jwt/jwt/v5"
)

const introspectionIssuer = "https://sso.example.com/realms/main"

// introspectionServer answers every token with body, after checking the
// client credentials and the form.
func introspectionServer(t *testing.T, status int, body string) string {
	t.Helper()
	server := testutil.NewLocalHTTPServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, secret, ok := r.BasicAuth()
		if !ok || id != "filestorage-api" || secret != "s3cret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if err := r.ParseForm(); err != nil || r.PostForm.Get("token") == "" || r.PostForm.Get("token_type_hint") != "access_token" {
			t.Errorf("unexpected introspection form: %v", r.PostForm)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	return server.URL
}

func newIntrospection(t *testing.T, endpoint, audience string) *IntrospectionValidator {
	t.Helper()
	v, err := NewIntrospectionValidator(endpoint, introspectionIssuer, audience, "filestorage-api", "s3cret", nil, nil)
	if err != nil {
		t.Fatalf("NewIntrospectionValidator failed: %v", err)
	}
	return v
}

func TestNewIntrospectionValidator_Validation(t *testing.T) {
	tests := []struct {
		name                             string
		endpoint, issuer, client, secret string
	}{
		{name: "missing endpoint", issuer: introspectionIssuer, client: "c", secret: "s"},
		{name: "missing issuer", endpoint: "https://sso.example.com/introspect", client: "c", secret: "s"},
		{name: "missing client", endpoint: "https://sso.example.com/introspect", issuer: introspectionIssuer, secret: "s"},
		{name: "missing secret", endpoint: "https://sso.example.com/introspect", issuer: introspectionIssuer, client: "c"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewIntrospectionValidator(tt.endpoint, tt.issuer, "", tt.client, tt.secret, nil, nil); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestIntrospectionValidator_ActiveToken(t *testing.T) {
	exp := time.Now().Add(time.Hour).Unix()
	body := fmt.Sprintf(`{"active":true,"sub":"user-1","iss":%q,"aud":["filestorage","account"],"exp":%d,"iat":%d,"scope":"openid files:read","preferred_username":"alice","email":"alice@example.com"}`,
		introspectionIssuer, exp, time.Now().Unix())
	logger := &mockLogger{}

	v, err := NewIntrospectionValidator(introspectionServer(t, http.StatusOK, body), introspectionIssuer, "filestorage", "filestorage-api", "s3cret", nil, logger)
	if err != nil {
		t.Fatalf("NewIntrospectionValidator failed: %v", err)
	}

	claims, err := v.ValidateToken(context.Background(), "opaque-token")
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.Subject != "user-1" || claims.Username() != "alice" || claims.Email != "alice@example.com" {
		t.Errorf("unexpected identity claims: %+v", claims)
	}
	if claims.Expiry.Unix() != exp {
		t.Errorf("expected expiry %d, got %d", exp, claims.Expiry.Unix())
	}
	if len(claims.Scopes) != 2 || claims.Scopes[1] != "files:read" {
		t.Errorf("unexpected scopes %v", claims.Scopes)
	}
	if msgs := logger.getMessages(); len(msgs) != 1 || !strings.Contains(msgs[0], "user-1") {
		t.Errorf("expected introspection to be logged, got %v", msgs)
	}
}

func TestIntrospectionValidator_SubjectFallback(t *testing.T) {
	v := newIntrospection(t, introspectionServer(t, http.StatusOK, `{"active":true,"client_id":"svc-reports"}`), "")

	claims, err := v.ValidateToken(context.Background(), "opaque-token")
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.Subject != "svc-reports" || claims.Issuer != introspectionIssuer {
		t.Errorf("expected client_id subject and configured issuer, got %+v", claims)
	}
}

func TestIntrospectionValidator_Rejections(t *testing.T) {
	past := time.Now().Add(-time.Minute).Unix()

	tests := []struct {
		name     string
		status   int
		body     string
		audience string
		wantIs   error
	}{
		{name: "inactive", status: http.StatusOK, body: `{"active":false}`, wantIs: ErrInactiveToken},
		{name: "expired", status: http.StatusOK, body: fmt.Sprintf(`{"active":true,"sub":"u","exp":%d}`, past), wantIs: jwt.ErrTokenExpired},
		{name: "wrong issuer", status: http.StatusOK, body: `{"active":true,"sub":"u","iss":"https://evil.example.com"}`},
		{name: "wrong audience", status: http.StatusOK, body: `{"active":true,"sub":"u","aud":"other"}`, audience: "filestorage"},
		{name: "no subject", status: http.StatusOK, body: `{"active":true}`},
		{name: "malformed", status: http.StatusOK, body: `{"active":`},
		{name: "client rejected", status: http.StatusForbidden, body: `{}`},
		{name: "endpoint failing", status: http.StatusBadGateway, body: `{}`, wantIs: ErrKeysUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newIntrospection(t, introspectionServer(t, tt.status, tt.body), tt.audience)

			_, err := v.ValidateToken(context.Background(), "opaque-token")
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantIs != nil && !errors.Is(err, tt.wantIs) {
				t.Errorf("expected %v, got %v", tt.wantIs, err)
			}
			if tt.wantIs == nil && errors.Is(err, ErrKeysUnavailable) {
				t.Errorf("rejection should not look like an outage: %v", err)
			}
		})
	}
}

func TestIntrospectionValidator_EndpointUnreachable(t *testing.T) {
	server := testutil.NewLocalHTTPServer(t, http.NotFoundHandler())
	endpoint := server.URL
	server.Close()

	v := newIntrospection(t, endpoint, "")
	if _, err := v.ValidateToken(context.Background(), "opaque-token"); !errors.Is(err, ErrKeysUnavailable) {
		t.Errorf("expected ErrKeysUnavailable, got %v", err)
	}
}

func TestIntrospectionValidator_EmptyToken(t *testing.T) {
	v := newIntrospection(t, "https://sso.example.com/introspect", "")
	if _, err := v.ValidateToken(context.Background(), "  "); !errors.Is(err, ErrMissingToken) {
		t.Errorf("expected ErrMissingToken, got %v", err)
	}
}
