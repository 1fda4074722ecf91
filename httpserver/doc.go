// Package httpserver authenticates incoming HTTP requests with bearer JWTs
// issued by an OIDC provider such as Keycloak.
//
// Tokens are validated against the provider's JWKS (signature, expiry,
// not-before, issuer and an optional audience). Validated claims are stored
// in the request context.
//
// # Quick Start
//
//	validator, err := httpserver.NewValidatorBuilder("https://sso.example.com/realms/main").Build(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer validator.Close()
//
//	mux := http.NewServeMux()
//	mux.HandleFunc("GET /files", listFiles)
//
//	handler := httpserver.Middleware(validator,
//	    httpserver.WithExemptPaths("/", "/health", "/metrics"),
//	)(mux)
//	http.ListenAndServe(":8000", handler)
//
// # Error responses
//
// Failures are written as JSON {"detail": "..."}. A missing header, a
// non-Bearer scheme, an invalid token and an expired token all get 401 with
// "WWW-Authenticate: Bearer", so clients know to refresh and retry. While the
// JWKS cannot be fetched the middleware answers 503.
//
// # Accessing Claims in Handlers
//
//	func listFiles(w http.ResponseWriter, r *http.Request) {
//	    claims := httpserver.MustTokenClaimsFromContext(r.Context())
//	    log.Printf("listing files for %s", claims.Username())
//	}
//
// # TLS
//
// TLSFiles loads a server certificate, and optionally a client CA for mutual
// TLS, into a *tls.Config.
package httpserver
