package testutil

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"golang.org/x/oauth2"
)

// NewLocalHTTPServer starts an HTTP server bound to IPv4 loopback only.
// The sandbox blocks IPv6 listeners, so force tcp4 to keep tests runnable.
func NewLocalHTTPServer(tb testing.TB, handler http.Handler) *httptest.Server {
	tb.Helper()

	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		tb.Fatalf("failed to create IPv4 listener: %v", err)
	}

	server := httptest.NewUnstartedServer(handler)
	server.Listener = listener
	server.Start()
	tb.Cleanup(server.Close)

	return server
}

// RoundTripFunc allows inlining http.RoundTripper implementations.
type RoundTripFunc func(*http.Request) (*http.Response, error)

// RoundTrip calls the underlying function.
func (f RoundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// Response builds a response with a string body for req.
func Response(req *http.Request, status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Header:     make(http.Header),
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    req,
	}
}

// StaticJSONResponse returns a RoundTripper that always responds with the provided JSON body.
func StaticJSONResponse(body string) RoundTripFunc {
	return func(req *http.Request) (*http.Response, error) {
		resp := Response(req, http.StatusOK, body)
		resp.Header.Set("Content-Type", "application/json")
		return resp, nil
	}
}

// MockOAuth2Server simulates an OAuth2 token endpoint without real sockets.
// Ctx carries the mock transport under oauth2.HTTPClient so that
// golang.org/x/oauth2 token sources use it.
type MockOAuth2Server struct {
	URL string
	Ctx context.Context

	mu       sync.Mutex
	requests []*http.Request
	forms    []string
}

// NewMockOAuth2Server builds a mock OAuth2 endpoint backed by an in-memory RoundTripper.
// If handler is nil, it returns a default successful token response.
func NewMockOAuth2Server(tb testing.TB, handler RoundTripFunc) *MockOAuth2Server {
	tb.Helper()

	server := &MockOAuth2Server{
		URL: "https://mock-oauth.example.com",
	}

	if handler == nil {
		handler = StaticJSONResponse(`{
			"access_token": "mock-access-token",
			"refresh_token": "mock-refresh-token",
			"token_type": "Bearer",
			"expires_in": 3600
		}`)
	}

	rt := RoundTripFunc(func(req *http.Request) (*http.Response, error) {
		var form string
		if req.Body != nil {
			data, _ := io.ReadAll(req.Body)
			_ = req.Body.Close()
			form = string(data)
			req.Body = io.NopCloser(strings.NewReader(form))
		}

		server.mu.Lock()
		server.requests = append(server.requests, req)
		server.forms = append(server.forms, form)
		server.mu.Unlock()

		return handler(req)
	})

	server.Ctx = context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{
		Transport: rt,
	})

	return server
}

// Requests returns the captured token requests.
func (m *MockOAuth2Server) Requests() []*http.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*http.Request(nil), m.requests...)
}

// Forms returns the raw form bodies of the captured token requests.
func (m *MockOAuth2Server) Forms() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.forms...)
}
