package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/AmmannChristian/go-shellauth/internal/testutil"
	"golang.org/x/oauth2"
)

type stubLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *stubLogger) Printf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf(format, args...))
}

func (l *stubLogger) getMessages() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	msgs := make([]string, len(l.messages))
	copy(msgs, l.messages)
	return msgs
}

func newTestConfig(tokenURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID: "main-ui",
		Endpoint: oauth2.Endpoint{TokenURL: tokenURL, AuthStyle: oauth2.AuthStyleInParams},
		Scopes:   []string{"openid"},
	}
}

func TestNewProvider_NilConfig(t *testing.T) {
	_, err := NewProvider(context.Background(), nil, nil)
	if err == nil {
		t.Fatal("expected error for nil config")
	}
	if err.Error() != "session: oauth2 config is required" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNewProvider_NilToken(t *testing.T) {
	p, err := NewProvider(context.Background(), newTestConfig("https://sso.example.com/token"), nil)
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}

	if p.Authenticated() {
		t.Error("provider without token should not be authenticated")
	}
	if p.Token() != "" {
		t.Errorf("expected empty token, got %q", p.Token())
	}
	if !p.Expiry().IsZero() {
		t.Errorf("expected zero expiry, got %v", p.Expiry())
	}
}

func TestProvider_ExpiryFromJWTClaim(t *testing.T) {
	exp := time.Now().Add(10 * time.Minute).Truncate(time.Second)
	access := testutil.UnsignedToken(t, exp)

	p, err := NewProvider(context.Background(), newTestConfig("https://sso.example.com/token"), &oauth2.Token{
		AccessToken:  access,
		RefreshToken: "rt-1",
		Expiry:       time.Now().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}

	if !p.Expiry().Equal(exp) {
		t.Errorf("expected expiry %v from exp claim, got %v", exp, p.Expiry())
	}
	if p.Token() != access {
		t.Error("token should be the access token")
	}
}

func TestProvider_ExpiryFallsBackToTokenExpiry(t *testing.T) {
	expiry := time.Now().Add(5 * time.Minute)

	p, err := NewProvider(context.Background(), newTestConfig("https://sso.example.com/token"), &oauth2.Token{
		AccessToken: "opaque-token",
		Expiry:      expiry,
	})
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}

	if !p.Expiry().Equal(expiry) {
		t.Errorf("expected expiry %v, got %v", expiry, p.Expiry())
	}
}

func TestProvider_UpdateToken(t *testing.T) {
	tests := []struct {
		name          string
		expiresIn     time.Duration
		minValidity   time.Duration
		wantRefreshed bool
	}{
		{
			name:          "still valid",
			expiresIn:     time.Hour,
			minValidity:   30 * time.Second,
			wantRefreshed: false,
		},
		{
			name:          "expiring soon",
			expiresIn:     10 * time.Second,
			minValidity:   30 * time.Second,
			wantRefreshed: true,
		},
		{
			name:          "forced while valid",
			expiresIn:     time.Hour,
			minValidity:   ForceRefresh,
			wantRefreshed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			authServer := testutil.NewMockOAuth2Server(t, nil)

			p, err := NewProvider(authServer.Ctx, newTestConfig(authServer.URL+"/token"), &oauth2.Token{
				AccessToken:  "initial-token",
				RefreshToken: "rt-1",
				Expiry:       time.Now().Add(tt.expiresIn),
			})
			if err != nil {
				t.Fatalf("NewProvider failed: %v", err)
			}

			refreshed, err := p.UpdateToken(context.Background(), tt.minValidity)
			if err != nil {
				t.Fatalf("UpdateToken failed: %v", err)
			}

			if refreshed != tt.wantRefreshed {
				t.Errorf("expected refreshed=%v, got %v", tt.wantRefreshed, refreshed)
			}

			requests := len(authServer.Requests())
			if tt.wantRefreshed {
				if requests != 1 {
					t.Fatalf("expected 1 token request, got %d", requests)
				}
				form := authServer.Forms()[0]
				if !strings.Contains(form, "grant_type=refresh_token") {
					t.Errorf("expected refresh_token grant, got %s", form)
				}
				if !strings.Contains(form, "refresh_token=rt-1") {
					t.Errorf("expected refresh token in form, got %s", form)
				}
				if p.Token() != "mock-access-token" {
					t.Errorf("expected refreshed token, got %q", p.Token())
				}
			} else if requests != 0 {
				t.Errorf("expected no token request, got %d", requests)
			}
		})
	}
}

func TestProvider_UpdateToken_NoRefreshToken(t *testing.T) {
	p, err := NewProvider(context.Background(), newTestConfig("https://sso.example.com/token"), &oauth2.Token{
		AccessToken: "initial-token",
		Expiry:      time.Now().Add(5 * time.Second),
	})
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}

	_, err = p.UpdateToken(context.Background(), 30*time.Second)
	if !errors.Is(err, ErrNoRefreshToken) {
		t.Errorf("expected ErrNoRefreshToken, got %v", err)
	}
}

func TestProvider_RefreshTokenOnly(t *testing.T) {
	authServer := testutil.NewMockOAuth2Server(t, nil)

	p, err := NewProvider(authServer.Ctx, newTestConfig(authServer.URL+"/token"), &oauth2.Token{RefreshToken: "rt-only"})
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}
	if p.Authenticated() {
		t.Fatal("a refresh token alone should not authenticate the session")
	}

	refreshed, err := p.UpdateToken(context.Background(), ForceRefresh)
	if err != nil {
		t.Fatalf("UpdateToken failed: %v", err)
	}
	if !refreshed || !p.Authenticated() || p.Token() != "mock-access-token" {
		t.Errorf("expected session to be authenticated after refresh, got %v, %q", refreshed, p.Token())
	}
	if form := authServer.Forms()[0]; !strings.Contains(form, "refresh_token=rt-only") {
		t.Errorf("expected stored refresh token to be sent, got %s", form)
	}
}

func TestProvider_UpdateToken_EndpointRejects(t *testing.T) {
	authServer := testutil.NewMockOAuth2Server(t, func(req *http.Request) (*http.Response, error) {
		resp := testutil.Response(req, http.StatusBadRequest, `{"error":"invalid_grant"}`)
		resp.Header.Set("Content-Type", "application/json")
		return resp, nil
	})
	logger := &stubLogger{}

	p, err := NewProvider(authServer.Ctx, newTestConfig(authServer.URL+"/token"), &oauth2.Token{
		AccessToken:  "initial-token",
		RefreshToken: "rt-1",
		Expiry:       time.Now().Add(time.Hour),
	}, WithLogger(logger))
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}

	refreshed, err := p.UpdateToken(context.Background(), ForceRefresh)
	if err == nil {
		t.Fatal("expected error when token endpoint rejects the refresh")
	}
	if refreshed {
		t.Error("refreshed should be false on failure")
	}
	if p.Token() != "initial-token" {
		t.Errorf("token should be unchanged, got %q", p.Token())
	}

	msgs := logger.getMessages()
	if len(msgs) == 0 || !strings.Contains(msgs[0], "token refresh failed") {
		t.Errorf("expected refresh failure to be logged, got %v", msgs)
	}
}

func TestProvider_UpdateToken_ConcurrentCallersRefreshOnce(t *testing.T) {
	authServer := testutil.NewMockOAuth2Server(t, nil)

	p, err := NewProvider(authServer.Ctx, newTestConfig(authServer.URL+"/token"), &oauth2.Token{
		AccessToken:  "initial-token",
		RefreshToken: "rt-1",
		Expiry:       time.Now().Add(5 * time.Second),
	})
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.UpdateToken(context.Background(), 30*time.Second); err != nil {
				t.Errorf("UpdateToken failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := len(authServer.Requests()); got != 1 {
		t.Errorf("expected exactly 1 token request, got %d", got)
	}
}

func TestProvider_LoginAndSetToken(t *testing.T) {
	logins := 0
	var p *Provider
	p, err := NewProvider(context.Background(), newTestConfig("https://sso.example.com/token"), nil,
		WithLoginFunc(func() {
			logins++
			p.SetToken(&oauth2.Token{AccessToken: "after-login", Expiry: time.Now().Add(time.Hour)})
		}),
	)
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}

	p.Login()

	if logins != 1 {
		t.Errorf("expected login func to be called once, got %d", logins)
	}
	if !p.Authenticated() || p.Token() != "after-login" {
		t.Errorf("expected session to hold the new token, got %q", p.Token())
	}

	p.SetToken(nil)
	if p.Authenticated() {
		t.Error("SetToken(nil) should clear the session")
	}
}

func TestProvider_WithLoggingEnabled(t *testing.T) {
	p, err := NewProvider(context.Background(), newTestConfig("https://sso.example.com/token"), nil, WithLoggingEnabled())
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}
	if p.logger == nil {
		t.Error("logger should be set")
	}
}

func TestDiscover_Validation(t *testing.T) {
	if _, err := Discover(context.Background(), "", "client", "openid"); err == nil {
		t.Error("expected error for empty issuer")
	}
	if _, err := Discover(context.Background(), "https://sso.example.com", "", "openid"); err == nil {
		t.Error("expected error for empty client ID")
	}
}

func TestDiscover(t *testing.T) {
	var issuer string
	server := testutil.NewLocalHTTPServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/.well-known/openid-configuration" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{
			"issuer": %q,
			"authorization_endpoint": %q,
			"token_endpoint": %q,
			"jwks_uri": %q,
			"id_token_signing_alg_values_supported": ["RS256"]
		}`, issuer, issuer+"/auth", issuer+"/token", issuer+"/certs")
	}))
	issuer = server.URL

	cfg, err := Discover(context.Background(), issuer, "main-ui", "profile email")
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}

	if cfg.Endpoint.TokenURL != issuer+"/token" {
		t.Errorf("unexpected token URL: %s", cfg.Endpoint.TokenURL)
	}
	if cfg.Endpoint.AuthURL != issuer+"/auth" {
		t.Errorf("unexpected auth URL: %s", cfg.Endpoint.AuthURL)
	}
	if len(cfg.Scopes) != 3 || cfg.Scopes[0] != "openid" {
		t.Errorf("expected openid to be prepended, got %v", cfg.Scopes)
	}
}
