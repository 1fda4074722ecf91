package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/AmmannChristian/go-shellauth/internal/testutil"
)

func TestNewValidatorBuilder_Defaults(t *testing.T) {
	builder := NewValidatorBuilder("https://sso.example.com/realms/main")

	if builder.cacheTTL != time.Hour {
		t.Errorf("expected default cache TTL of 1 hour, got %v", builder.cacheTTL)
	}
	if builder.httpClient == nil {
		t.Error("expected HTTP client to be initialized")
	}
	if builder.audience != "" {
		t.Error("audience check should be off by default")
	}
}

func TestValidatorBuilder_Options(t *testing.T) {
	client := &http.Client{Timeout: 5 * time.Second}
	logger := &mockLogger{}

	builder := NewValidatorBuilder("https://sso.example.com/realms/main").
		WithAudience("filestorage").
		WithJWKSURL("https://sso.example.com/keys").
		WithCacheTTL(30 * time.Minute).
		WithHTTPClient(client).
		WithLogger(logger).
		WithDiscovery()

	if builder.audience != "filestorage" || builder.jwksURL != "https://sso.example.com/keys" {
		t.Errorf("unexpected builder %+v", builder)
	}
	if builder.cacheTTL != 30*time.Minute || builder.httpClient != client || builder.logger != logger || !builder.discovery {
		t.Errorf("unexpected builder %+v", builder)
	}
}

func TestValidatorBuilder_Build_MissingIssuer(t *testing.T) {
	if _, err := NewValidatorBuilder("").Build(context.Background()); err == nil {
		t.Error("expected error for missing issuer")
	}
}

func TestDeriveJWKSURL(t *testing.T) {
	tests := []struct {
		issuer string
		want   string
	}{
		{"https://sso.example.com/realms/main", "https://sso.example.com/realms/main/protocol/openid-connect/certs"},
		{"https://sso.example.com/realms/main/", "https://sso.example.com/realms/main/protocol/openid-connect/certs"},
	}

	for _, tt := range tests {
		if got := deriveJWKSURL(tt.issuer); got != tt.want {
			t.Errorf("deriveJWKSURL(%q) = %q, want %q", tt.issuer, got, tt.want)
		}
	}
}

func TestValidatorBuilder_Build_ExplicitJWKSURL(t *testing.T) {
	setup := testutil.NewJWTTestSetup(t)

	v, err := NewValidatorBuilder(setup.Issuer).WithJWKSURL(setup.JWKSURL()).Build(context.Background())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(v.Close)

	if _, err := v.ValidateToken(context.Background(), setup.Token(t, "u", time.Now().Add(time.Hour))); err != nil {
		t.Errorf("ValidateToken failed: %v", err)
	}
}

func TestValidatorBuilder_Build_Discovery(t *testing.T) {
	setup := testutil.NewJWTTestSetup(t)

	mux := http.NewServeMux()
	server := testutil.NewLocalHTTPServer(t, mux)
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"issuer":                 server.URL,
			"authorization_endpoint": server.URL + "/auth",
			"token_endpoint":         server.URL + "/token",
			"jwks_uri":               setup.JWKSURL(),
		})
	})

	logger := &mockLogger{}
	v, err := NewValidatorBuilder(server.URL).WithDiscovery().WithLogger(logger).Build(context.Background())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(v.Close)

	if v.jwksURL != setup.JWKSURL() {
		t.Errorf("expected discovered JWKS URL %s, got %s", setup.JWKSURL(), v.jwksURL)
	}
	found := false
	for _, msg := range logger.getMessages() {
		if strings.Contains(msg, "discovered JWKS URL") {
			found = true
		}
	}
	if !found {
		t.Error("expected discovery to be logged")
	}
}

func TestValidatorBuilder_Build_DiscoveryFailure(t *testing.T) {
	server := testutil.NewLocalHTTPServer(t, http.NotFoundHandler())

	if _, err := NewValidatorBuilder(server.URL).WithDiscovery().Build(context.Background()); err == nil {
		t.Error("expected error when discovery fails")
	}
}
