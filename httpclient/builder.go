package httpclient

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/AmmannChristian/go-shellauth/session"
)

// DefaultTimeout is the request timeout used when none is configured.
const DefaultTimeout = 10 * time.Second

// Logger is the minimal logging interface used by this package.
type Logger interface {
	Printf(format string, args ...any)
}

// Builder provides a fluent interface for constructing authenticated HTTP
// clients with optional TLS/mTLS support.
type Builder struct {
	// Authentication
	session      session.Session
	refreshAhead time.Duration

	// TLS configuration
	tlsEnabled    bool
	tlsCAFile     string
	tlsCertFile   string
	tlsKeyFile    string
	tlsSkipVerify bool

	// HTTP client configuration
	baseURL         string
	timeout         time.Duration
	baseTransport   http.RoundTripper
	followRedirects bool

	logger  Logger
	metrics *Metrics
}

// Option configures a Builder. Options are accepted by Build.
type Option func(*Builder)

// NewBuilder creates a new HTTP client builder.
func NewBuilder() *Builder {
	return &Builder{
		timeout:         DefaultTimeout,
		refreshAhead:    session.DefaultRefreshAhead,
		followRedirects: true,
	}
}

// WithSession sets the identity session whose token authenticates requests.
func (b *Builder) WithSession(s session.Session) *Builder {
	b.session = s
	return b
}

// WithBaseURL sets the URL relative request paths are resolved against.
func (b *Builder) WithBaseURL(baseURL string) *Builder {
	b.baseURL = baseURL
	return b
}

// WithTLS enables TLS for the connection.
//
// Parameters:
//   - caFile: Path to CA certificate for server verification (optional, uses system roots if empty)
//   - certFile: Path to client certificate for mTLS (optional, must be paired with keyFile)
//   - keyFile: Path to client private key for mTLS (optional, must be paired with certFile)
func (b *Builder) WithTLS(caFile, certFile, keyFile string) *Builder {
	b.tlsEnabled = true
	b.tlsCAFile = caFile
	b.tlsCertFile = certFile
	b.tlsKeyFile = keyFile
	return b
}

// WithInsecureSkipVerify disables TLS certificate verification (NOT RECOMMENDED for production).
func (b *Builder) WithInsecureSkipVerify() *Builder {
	b.tlsSkipVerify = true
	return b
}

// WithTimeout sets the request timeout for the HTTP client.
// Default is 10 seconds if not specified.
func (b *Builder) WithTimeout(timeout time.Duration) *Builder {
	b.timeout = timeout
	return b
}

// WithRefreshAhead sets how long before expiry a token is renewed.
// Default is session.DefaultRefreshAhead.
func (b *Builder) WithRefreshAhead(d time.Duration) *Builder {
	b.refreshAhead = d
	return b
}

// WithBaseTransport sets a custom base transport underneath the session transport.
func (b *Builder) WithBaseTransport(transport http.RoundTripper) *Builder {
	b.baseTransport = transport
	return b
}

// WithoutRedirects disables automatic redirect following.
func (b *Builder) WithoutRedirects() *Builder {
	b.followRedirects = false
	return b
}

// WithLogger sets a logger for refresh and retry events.
func (b *Builder) WithLogger(logger Logger) *Builder {
	b.logger = logger
	return b
}

// WithMetrics sets the counters updated by the session transport.
func (b *Builder) WithMetrics(m *Metrics) *Builder {
	b.metrics = m
	return b
}

// Apply runs opts against the builder.
func (b *Builder) Apply(opts ...Option) *Builder {
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// WithLoggerOption is the Option form of Builder.WithLogger.
func WithLoggerOption(logger Logger) Option {
	return func(b *Builder) { b.WithLogger(logger) }
}

// WithLoggingEnabled logs through log.Default().
func WithLoggingEnabled() Option {
	return func(b *Builder) { b.WithLogger(log.Default()) }
}

// WithMetricsOption is the Option form of Builder.WithMetrics.
func WithMetricsOption(m *Metrics) Option {
	return func(b *Builder) { b.WithMetrics(m) }
}

// WithTransport is the Option form of Builder.WithBaseTransport.
func WithTransport(rt http.RoundTripper) Option {
	return func(b *Builder) { b.WithBaseTransport(rt) }
}

// WithRefreshAheadOption is the Option form of Builder.WithRefreshAhead.
func WithRefreshAheadOption(d time.Duration) Option {
	return func(b *Builder) { b.WithRefreshAhead(d) }
}

// Build constructs the authenticated client with the configured options.
func (b *Builder) Build() (*Client, error) {
	if b.session == nil {
		return nil, errors.New("httpclient: session is required")
	}
	if b.timeout < 0 {
		return nil, fmt.Errorf("httpclient: negative timeout %v", b.timeout)
	}

	var base *url.URL
	if b.baseURL != "" {
		u, err := url.Parse(b.baseURL)
		if err != nil {
			return nil, fmt.Errorf("httpclient: invalid base URL: %w", err)
		}
		if !u.IsAbs() {
			return nil, fmt.Errorf("httpclient: base URL %q must be absolute", b.baseURL)
		}
		base = u
	}

	transport, err := b.buildBaseTransport()
	if err != nil {
		return nil, err
	}

	st := NewSessionTransport(b.session, transport)
	st.RefreshAhead = b.refreshAhead
	st.Logger = b.logger
	st.Metrics = b.metrics

	client := &http.Client{
		Transport: st,
		Timeout:   b.timeout,
	}

	if !b.followRedirects {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	return &Client{httpClient: client, baseURL: base}, nil
}

func (b *Builder) buildBaseTransport() (http.RoundTripper, error) {
	if b.baseTransport != nil {
		return b.baseTransport, nil
	}

	httpTransport, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		// Whatever default transport is configured (e.g., a test stub)
		return http.DefaultTransport, nil
	}
	httpTransport = httpTransport.Clone()

	if b.tlsEnabled || b.tlsSkipVerify {
		tlsConfig, err := b.buildTLSConfig()
		if err != nil {
			return nil, fmt.Errorf("httpclient: TLS config failed: %w", err)
		}
		httpTransport.TLSClientConfig = tlsConfig
	} else {
		httpTransport.TLSClientConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}
	return httpTransport, nil
}

// buildTLSConfig constructs the TLS configuration for the HTTP client.
func (b *Builder) buildTLSConfig() (*tls.Config, error) {
	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: b.tlsSkipVerify, // #nosec G402
	}

	if b.tlsCAFile != "" {
		caCert, err := os.ReadFile(b.tlsCAFile)
		if err != nil {
			return nil, fmt.Errorf("read CA file: %w", err)
		}

		certPool := x509.NewCertPool()
		if !certPool.AppendCertsFromPEM(caCert) {
			return nil, errors.New("failed to parse CA certificate")
		}
		tlsConfig.RootCAs = certPool
	}

	if b.tlsCertFile != "" && b.tlsKeyFile != "" {
		cert, err := tls.LoadX509KeyPair(b.tlsCertFile, b.tlsKeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	} else if b.tlsCertFile != "" || b.tlsKeyFile != "" {
		return nil, errors.New("both TLS cert and key files must be provided for mTLS")
	}

	return tlsConfig, nil
}

// Build creates an authenticated client for baseURL whose requests carry the
// bearer token of s. A zero timeout means DefaultTimeout.
//
// Example:
//
//	client, err := httpclient.Build(s, "https://api.example.com", 10*time.Second)
//	resp, err := client.Get(ctx, "/files")
func Build(s session.Session, baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	b := NewBuilder().WithSession(s).WithBaseURL(baseURL)
	if timeout != 0 {
		b.WithTimeout(timeout)
	}
	return b.Apply(opts...).Build()
}
