package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMissingToken is reported when the request has no Authorization header.
	ErrMissingToken = errors.New("httpserver: authorization header missing")

	// ErrInvalidScheme is reported for Authorization headers that are not a
	// non-empty Bearer credential.
	ErrInvalidScheme = errors.New("httpserver: authorization scheme must be Bearer")
)

// MiddlewareConfig holds configuration for authentication middleware.
type MiddlewareConfig struct {
	validator           TokenValidator
	exemptPaths         map[string]bool // Exact path matches
	exemptPathPrefixes  []string        // Prefix matches
	logger              Logger
	tokenExtractor      TokenExtractor
	unauthorizedHandler UnauthorizedHandler
}

// MiddlewareOption is a functional option for configuring middleware.
type MiddlewareOption func(*MiddlewareConfig)

// TokenExtractor extracts a token from an HTTP request. It returns the token
// or ErrMissingToken / ErrInvalidScheme.
type TokenExtractor func(r *http.Request) (string, error)

// UnauthorizedHandler writes the response for a failed authentication.
type UnauthorizedHandler func(w http.ResponseWriter, r *http.Request, err error)

// WithExemptPaths specifies HTTP paths that don't require authentication.
// These paths must match exactly.
//
// Example:
//
//	WithExemptPaths("/", "/health", "/metrics")
func WithExemptPaths(paths ...string) MiddlewareOption {
	return func(c *MiddlewareConfig) {
		for _, path := range paths {
			c.exemptPaths[path] = true
		}
	}
}

// WithExemptPathPrefixes specifies HTTP path prefixes that don't require authentication.
func WithExemptPathPrefixes(prefixes ...string) MiddlewareOption {
	return func(c *MiddlewareConfig) {
		c.exemptPathPrefixes = append(c.exemptPathPrefixes, prefixes...)
	}
}

// WithMiddlewareLogger sets a logger for the middleware.
func WithMiddlewareLogger(logger Logger) MiddlewareOption {
	return func(c *MiddlewareConfig) {
		c.logger = logger
	}
}

// WithTokenExtractor replaces the default "Authorization: Bearer" extraction.
func WithTokenExtractor(extractor TokenExtractor) MiddlewareOption {
	return func(c *MiddlewareConfig) {
		c.tokenExtractor = extractor
	}
}

// WithUnauthorizedHandler replaces WriteAuthError.
func WithUnauthorizedHandler(handler UnauthorizedHandler) MiddlewareOption {
	return func(c *MiddlewareConfig) {
		c.unauthorizedHandler = handler
	}
}

// Middleware returns an HTTP middleware that validates Bearer tokens and
// stores the claims in the request context (see TokenClaimsFromContext).
// Failures are answered by WriteAuthError unless WithUnauthorizedHandler is set.
//
// Usage:
//
//	validator, _ := httpserver.NewValidatorBuilder(issuerURL).Build()
//	mux := http.NewServeMux()
//	mux.HandleFunc("GET /files", listFiles)
//	http.ListenAndServe(":8000", httpserver.Middleware(validator, httpserver.WithExemptPaths("/health"))(mux))
func Middleware(validator TokenValidator, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	config := &MiddlewareConfig{
		validator:           validator,
		exemptPaths:         make(map[string]bool),
		tokenExtractor:      BearerToken,
		unauthorizedHandler: WriteAuthError,
	}

	for _, opt := range opts {
		opt(config)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isExempt(r.URL.Path, config) {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := extractAndValidateToken(r, config)
			if err != nil {
				config.logf("httpserver: authentication failed for %s %s: %v", r.Method, r.URL.Path, err)
				config.unauthorizedHandler(w, r, err)
				return
			}

			r = r.WithContext(WithTokenClaims(r.Context(), claims))
			config.logf("httpserver: authenticated request for %s %s (user: %s)", r.Method, r.URL.Path, claims.Username())

			next.ServeHTTP(w, r)
		})
	}
}

// BearerToken extracts the token of an "Authorization: Bearer <token>" header.
// The scheme is matched case-insensitively.
func BearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrMissingToken
	}

	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", ErrInvalidScheme
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrInvalidScheme
	}
	return token, nil
}

// WriteAuthError writes a JSON {"detail": ...} body for err. Missing, malformed,
// invalid and expired tokens get 401 with "WWW-Authenticate: Bearer";
// ErrKeysUnavailable gets 503.
func WriteAuthError(w http.ResponseWriter, _ *http.Request, err error) {
	status, detail := http.StatusUnauthorized, "Invalid authentication token"
	switch {
	case errors.Is(err, ErrKeysUnavailable):
		status, detail = http.StatusServiceUnavailable, "Authentication service unavailable."
	case errors.Is(err, ErrMissingToken):
		detail = "Authorization header missing"
	case errors.Is(err, ErrInvalidScheme):
		detail = "Authorization scheme must be Bearer"
	case errors.Is(err, jwt.ErrTokenExpired):
		detail = "Token has expired"
	}

	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	WriteDetail(w, status, detail)
}

// WriteDetail writes a JSON error body of the form {"detail": "..."}.
func WriteDetail(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}

func (c *MiddlewareConfig) logf(format string, args ...any) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}

func isExempt(path string, config *MiddlewareConfig) bool {
	if config.exemptPaths[path] {
		return true
	}
	for _, prefix := range config.exemptPathPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func extractAndValidateToken(r *http.Request, config *MiddlewareConfig) (*TokenClaims, error) {
	token, err := config.tokenExtractor(r)
	if err != nil {
		return nil, err
	}
	return config.validator.ValidateToken(r.Context(), token)
}
