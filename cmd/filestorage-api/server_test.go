package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/AmmannChristian/go-shellauth/internal/config"
	"github.com/AmmannChristian/go-shellauth/internal/testutil"
)

func testConfig(t *testing.T, setup *testutil.JWTTestSetup) config.API {
	t.Helper()
	return config.API{
		Addr:            "127.0.0.1:0",
		FilesDir:        t.TempDir(),
		MaxFileSize:     1 << 20,
		Issuer:          setup.Issuer,
		JWKSURL:         setup.JWKSURL(),
		Audience:        setup.Audience,
		ShutdownTimeout: time.Second,
	}
}

func serve(t *testing.T, h http.Handler, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestNewServer_SharedMetricsListener(t *testing.T) {
	setup := testutil.NewJWTTestSetup(t)
	s, err := newServer(context.Background(), testConfig(t, setup), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("newServer failed: %v", err)
	}
	t.Cleanup(s.close)

	if s.metrics != nil {
		t.Fatal("metrics should share the API listener when no metrics address is set")
	}
	h := s.api.Handler

	if rec := serve(t, h, http.MethodGet, "/health", ""); rec.Code != http.StatusOK {
		t.Errorf("health: expected 200, got %d", rec.Code)
	}
	if rec := serve(t, h, http.MethodGet, "/files", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("files without token: expected 401, got %d", rec.Code)
	}

	token := setup.Token(t, "alice", time.Now().Add(time.Hour))
	rec := serve(t, h, http.MethodGet, "/files", token)
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("files with token: expected 200 and an empty list, got %d %s", rec.Code, rec.Body.String())
	}

	rec = serve(t, h, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics: expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `filestore_operations_total{operation="list",result="ok"} 1`) {
		t.Errorf("expected list operation to be counted, got:\n%s", rec.Body.String())
	}
}

func TestNewServer_SeparateMetricsListener(t *testing.T) {
	setup := testutil.NewJWTTestSetup(t)
	cfg := testConfig(t, setup)
	cfg.MetricsAddr = "127.0.0.1:0"

	s, err := newServer(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("newServer failed: %v", err)
	}
	t.Cleanup(s.close)

	if s.metrics == nil {
		t.Fatal("expected a dedicated metrics server")
	}
	if rec := serve(t, s.metrics.Handler, http.MethodGet, "/metrics", ""); rec.Code != http.StatusOK {
		t.Errorf("metrics: expected 200, got %d", rec.Code)
	}
	if rec := serve(t, s.api.Handler, http.MethodGet, "/metrics", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("metrics on the API listener should need a token, got %d", rec.Code)
	}
}

func TestNewServer_TLSFilesMustExist(t *testing.T) {
	setup := testutil.NewJWTTestSetup(t)
	cfg := testConfig(t, setup)
	cfg.TLSCertFile = "/nonexistent/cert.pem"
	cfg.TLSKeyFile = "/nonexistent/key.pem"

	if _, err := newServer(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil))); err == nil {
		t.Fatal("expected error for missing TLS files")
	}
}

func TestServer_RunStopsOnCancel(t *testing.T) {
	setup := testutil.NewJWTTestSetup(t)
	s, err := newServer(context.Background(), testConfig(t, setup), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("newServer failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestNewServer_IntrospectionAndScopes(t *testing.T) {
	introspect := testutil.NewLocalHTTPServer(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"active":true,"sub":"svc","scope":"files:read"}`)
	}))

	cfg := testConfig(t, testutil.NewJWTTestSetup(t))
	cfg.IntrospectionURL = introspect.URL
	cfg.IntrospectionClientID = "filestorage-api"
	cfg.IntrospectionClientSecret = "s3cret"
	cfg.ReadScopes = "files:read"
	cfg.WriteScopes = "files:write"

	s, err := newServer(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("newServer failed: %v", err)
	}
	t.Cleanup(s.close)

	if rec := serve(t, s.api.Handler, http.MethodGet, "/files", "opaque"); rec.Code != http.StatusOK {
		t.Errorf("read with files:read: expected 200, got %d", rec.Code)
	}
	if rec := serve(t, s.api.Handler, http.MethodDelete, "/files/a.txt", "opaque"); rec.Code != http.StatusForbidden {
		t.Errorf("delete without files:write: expected 403, got %d", rec.Code)
	}
}
