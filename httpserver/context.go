package httpserver

import "context"

type claimsKey struct{}

// WithTokenClaims returns a new context carrying claims.
func WithTokenClaims(ctx context.Context, claims *TokenClaims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// TokenClaimsFromContext returns the claims stored by Middleware, if any.
//
// Example:
//
//	func listFiles(w http.ResponseWriter, r *http.Request) {
//	    claims, ok := httpserver.TokenClaimsFromContext(r.Context())
//	    if !ok {
//	        httpserver.WriteDetail(w, http.StatusUnauthorized, "not authenticated")
//	        return
//	    }
//	    log.Printf("listing files for %s", claims.Username())
//	}
func TokenClaimsFromContext(ctx context.Context) (*TokenClaims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*TokenClaims)
	return claims, ok
}

// MustTokenClaimsFromContext is like TokenClaimsFromContext but panics when
// no claims are present. Use it only behind Middleware.
func MustTokenClaimsFromContext(ctx context.Context) *TokenClaims {
	claims, ok := TokenClaimsFromContext(ctx)
	if !ok {
		panic("httpserver: token claims not found in context")
	}
	return claims
}
