// Package session defines the identity-provider collaborator used by the
// shared authenticated clients, and two implementations of it.
//
// A Session exposes the current access token, its expiry, a refresh operation
// (UpdateToken) and a re-authentication entry point (Login). Consumers never
// mutate the token themselves.
//
// # Implementations
//
//   - Provider: OpenID Connect session. Endpoints come from Discover, renewals
//     use the refresh_token grant, and the expiry is read from the exp claim of
//     the access token.
//   - ClientCredentials: service identity using the client credentials grant.
//     Login discards the cached token instead of prompting anyone.
//   - Static: fixed development token, never refreshed.
//
// # Refresh coalescing
//
// Refresher wraps a Session so that callers needing a refresh at the same time
// share one UpdateToken call. A failed refresh triggers Login once and is
// reported to every waiter as ErrAuthRefreshFailed.
//
// # Quick Start
//
//	cfg, err := session.Discover(ctx, "https://sso.example.com/realms/main", "main-ui", "openid profile")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	s, err := session.NewProvider(ctx, cfg, initialToken,
//	    session.WithLoginFunc(redirectToLogin),
//	    session.WithLoggingEnabled(),
//	)
package session
