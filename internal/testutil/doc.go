// Package testutil provides test helpers for go-shellauth packages.
//
// It includes IPv4-only local HTTP servers (avoiding IPv6 in sandboxes), inline
// RoundTripper implementations, a mock OAuth2 token endpoint, a scriptable fake
// Session, JWT/JWKS fixtures, and self-signed certificates for TLS tests.
//
// # Utilities
//
//   - NewLocalHTTPServer: start httptest server bound to 127.0.0.1
//   - RoundTripFunc and StaticJSONResponse: inline http.RoundTripper implementations
//   - MockOAuth2Server: stub token endpoint that captures requests
//   - FakeSession: in-memory session.Session that records refresh and login calls
//   - JWTTestSetup, NewJWTClaims, CreateJWKSServer: signed tokens and a matching JWKS endpoint
//   - WriteTestCACert / WriteTestCertAndKey: temporary CA and leaf certificates
package testutil
