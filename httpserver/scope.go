package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrInsufficientScope is returned when a token lacks the scopes a route
// requires.
var ErrInsufficientScope = errors.New("httpserver: insufficient scope")

// ScopeMatch selects how ScopePolicy.Required is matched.
type ScopeMatch int

const (
	// MatchAny accepts a token carrying at least one required scope.
	MatchAny ScopeMatch = iota
	// MatchAll accepts only tokens carrying every required scope.
	MatchAll
)

// ScopePolicy lists the scopes a request must carry. A policy without
// required scopes allows every authenticated request.
type ScopePolicy struct {
	Required []string
	Match    ScopeMatch
}

// Enabled reports whether the policy checks anything.
func (p ScopePolicy) Enabled() bool {
	return len(p.Required) > 0
}

// Check returns nil when claims satisfy p. Unknown match modes behave like
// MatchAll.
func (p ScopePolicy) Check(claims *TokenClaims) error {
	if !p.Enabled() {
		return nil
	}

	have := make(map[string]struct{})
	if claims != nil {
		for _, s := range claims.Scopes {
			have[s] = struct{}{}
		}
	}

	var missing []string
	for _, s := range p.Required {
		if _, ok := have[s]; !ok {
			missing = append(missing, s)
		}
	}

	if len(missing) == 0 || (p.Match == MatchAny && len(missing) < len(p.Required)) {
		return nil
	}
	return fmt.Errorf("%w: missing %s", ErrInsufficientScope, strings.Join(missing, " "))
}

// RequireScopes wraps next so that requests whose claims fail p get 403 with
// an RFC 6750 insufficient_scope challenge. It must run behind Middleware.
func RequireScopes(p ScopePolicy, next http.Handler) http.Handler {
	if !p.Enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, _ := TokenClaimsFromContext(r.Context())
		if err := p.Check(claims); err != nil {
			w.Header().Set("WWW-Authenticate", fmt.Sprintf(`Bearer error="insufficient_scope", scope=%q`, strings.Join(p.Required, " ")))
			WriteDetail(w, http.StatusForbidden, "Not enough permissions")
			return
		}
		next.ServeHTTP(w, r)
	})
}
