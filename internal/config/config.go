// Package config loads the settings of the binaries from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joeshaw/envdecode"
)

// Shell configures cmd/shell.
type Shell struct {
	// APIBaseURL is the gateway every module calls. ENV: SHELL_API_BASE_URL
	APIBaseURL string `env:"SHELL_API_BASE_URL,default=http://localhost:8000"`
	// APITimeout is the per-request timeout. ENV: SHELL_API_TIMEOUT
	APITimeout time.Duration `env:"SHELL_API_TIMEOUT,default=10s"`
	// RefreshAhead is the window before expiry in which tokens are renewed. ENV: SHELL_REFRESH_AHEAD
	RefreshAhead time.Duration `env:"SHELL_REFRESH_AHEAD,default=30s"`

	OIDCIssuer       string `env:"SHELL_OIDC_ISSUER"`
	OIDCClientID     string `env:"SHELL_OIDC_CLIENT_ID"`
	OIDCClientSecret string `env:"SHELL_OIDC_CLIENT_SECRET"`
	OIDCScopes       string `env:"SHELL_OIDC_SCOPES,default=openid"`

	// RefreshToken and AccessToken seed a user session obtained elsewhere.
	RefreshToken string `env:"SHELL_REFRESH_TOKEN"`
	AccessToken  string `env:"SHELL_ACCESS_TOKEN"`

	// DevToken selects a static bearer token instead of an OIDC session.
	DevToken string `env:"SHELL_DEV_TOKEN"`

	ModuleAttempts int           `env:"SHELL_MODULE_ATTEMPTS,default=10"`
	ModuleInterval time.Duration `env:"SHELL_MODULE_INTERVAL,default=100ms"`

	LogLevel string `env:"SHELL_LOG_LEVEL,default=warn"`
}

// IdentityMode names how the shell obtains its session.
type IdentityMode string

const (
	IdentityUser              IdentityMode = "user"
	IdentityClientCredentials IdentityMode = "client-credentials"
	IdentityDevToken          IdentityMode = "dev-token"
)

// Identity picks the session type from the configured credentials: a refresh
// token wins over a client secret, which wins over a development token.
func (c Shell) Identity() (IdentityMode, error) {
	switch {
	case c.RefreshToken != "":
		return IdentityUser, nil
	case c.OIDCClientSecret != "":
		return IdentityClientCredentials, nil
	case c.DevToken != "":
		return IdentityDevToken, nil
	default:
		return "", errors.New("config: no credentials: set SHELL_REFRESH_TOKEN, SHELL_OIDC_CLIENT_SECRET or SHELL_DEV_TOKEN")
	}
}

// Validate checks the settings that have no usable default.
func (c Shell) Validate() error {
	if c.APIBaseURL == "" {
		return errors.New("config: SHELL_API_BASE_URL is required")
	}
	if c.APITimeout < 0 || c.RefreshAhead < 0 || c.ModuleInterval < 0 {
		return errors.New("config: durations must not be negative")
	}

	mode, err := c.Identity()
	if err != nil {
		return err
	}
	if mode != IdentityDevToken && (c.OIDCIssuer == "" || c.OIDCClientID == "") {
		return fmt.Errorf("config: %s identity requires SHELL_OIDC_ISSUER and SHELL_OIDC_CLIENT_ID", mode)
	}
	return nil
}

// API configures cmd/filestorage-api.
type API struct {
	Addr        string `env:"FILESTORE_ADDR,default=:8000"`
	MetricsAddr string `env:"FILESTORE_METRICS_ADDR"`

	FilesDir    string `env:"FILES_DIR,default=uploaded_files"`
	StaticDir   string `env:"STATIC_FILES_DIR"`
	MaxFileSize int64  `env:"FILESTORE_MAX_FILE_SIZE,default=52428800"`

	// Issuer is the realm URL tokens must be issued by. ENV: FILESTORE_ISSUER
	Issuer    string `env:"FILESTORE_ISSUER,default=http://keycloak:8080/auth/realms/myrealm"`
	JWKSURL   string `env:"FILESTORE_JWKS_URL"`
	Audience  string `env:"FILESTORE_AUDIENCE"`
	Discovery bool   `env:"FILESTORE_OIDC_DISCOVERY,default=false"`

	// IntrospectionURL switches from JWKS validation to RFC 7662 token
	// introspection with the client credentials below.
	IntrospectionURL          string `env:"FILESTORE_INTROSPECTION_URL"`
	IntrospectionClientID     string `env:"FILESTORE_INTROSPECTION_CLIENT_ID"`
	IntrospectionClientSecret string `env:"FILESTORE_INTROSPECTION_CLIENT_SECRET"`

	// ReadScopes and WriteScopes are space-separated; any one of them grants access.
	ReadScopes  string `env:"FILESTORE_READ_SCOPES"`
	WriteScopes string `env:"FILESTORE_WRITE_SCOPES"`

	TLSCertFile     string `env:"FILESTORE_TLS_CERT"`
	TLSKeyFile      string `env:"FILESTORE_TLS_KEY"`
	TLSClientCAFile string `env:"FILESTORE_TLS_CLIENT_CA"`

	ShutdownTimeout time.Duration `env:"FILESTORE_SHUTDOWN_TIMEOUT,default=10s"`
	LogLevel        string        `env:"FILESTORE_LOG_LEVEL,default=info"`
}

// Validate checks the settings that have no usable default.
func (c API) Validate() error {
	if c.Addr == "" {
		return errors.New("config: FILESTORE_ADDR is required")
	}
	if c.FilesDir == "" {
		return errors.New("config: FILES_DIR is required")
	}
	if c.Issuer == "" {
		return errors.New("config: FILESTORE_ISSUER is required")
	}
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return errors.New("config: FILESTORE_TLS_CERT and FILESTORE_TLS_KEY must be set together")
	}
	if c.IntrospectionURL != "" && (c.IntrospectionClientID == "" || c.IntrospectionClientSecret == "") {
		return errors.New("config: FILESTORE_INTROSPECTION_URL requires FILESTORE_INTROSPECTION_CLIENT_ID and FILESTORE_INTROSPECTION_CLIENT_SECRET")
	}
	return nil
}

// LoadShell reads Shell from the environment.
func LoadShell() (Shell, error) {
	var c Shell
	if err := decode(&c); err != nil {
		return Shell{}, err
	}
	return c, nil
}

// LoadAPI reads API from the environment.
func LoadAPI() (API, error) {
	var c API
	if err := decode(&c); err != nil {
		return API{}, err
	}
	return c, nil
}

// decode fills target from the environment. An environment without any of
// the variables is not an error: defaults apply.
func decode(target any) error {
	if err := envdecode.Decode(target); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
