package grpcclient

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/AmmannChristian/go-shellauth/session"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

// Option configures Dial.
type Option func(*dialConfig)

type dialConfig struct {
	refreshAhead time.Duration
	logger       Logger

	caFile     string
	serverName string
	plaintext  bool

	extra []grpc.DialOption
}

// WithRefreshAhead sets how long before expiry a token is renewed.
// Default is session.DefaultRefreshAhead.
func WithRefreshAhead(d time.Duration) Option {
	return func(c *dialConfig) { c.refreshAhead = d }
}

// WithLogger logs refresh and retry events.
func WithLogger(logger Logger) Option {
	return func(c *dialConfig) { c.logger = logger }
}

// WithTLS verifies the server against the PEM roots in caFile instead of the
// system pool. A non-empty serverName overrides the name checked in the
// server certificate.
func WithTLS(caFile, serverName string) Option {
	return func(c *dialConfig) {
		c.caFile = caFile
		c.serverName = serverName
	}
}

// WithInsecure dials without TLS. Tokens then travel in clear text, so it is
// meant for loopback and in-memory listeners only.
func WithInsecure() Option {
	return func(c *dialConfig) { c.plaintext = true }
}

// WithDialOptions appends grpc dial options after the session interceptors.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(c *dialConfig) { c.extra = append(c.extra, opts...) }
}

// Dial creates a client connection to address whose RPCs carry the bearer
// token of s. Connections use TLS 1.2+ with the system roots unless
// WithTLS or WithInsecure says otherwise.
//
// Service identities pass a *session.ClientCredentials:
//
//	cc, err := session.NewClientCredentials(ctx, tokenURL, "file-indexer", secret, "openid")
//	...
//	conn, err := grpcclient.Dial("files.example.com:9090", cc)
func Dial(address string, s session.Session, opts ...Option) (*grpc.ClientConn, error) {
	if address == "" {
		return nil, errors.New("grpcclient: server address is required")
	}
	if s == nil {
		return nil, errors.New("grpcclient: session is required")
	}

	var cfg dialConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	creds, err := cfg.credentials()
	if err != nil {
		return nil, fmt.Errorf("grpcclient: %w", err)
	}

	si := NewSessionInterceptor(s, cfg.refreshAhead, cfg.logger)
	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(creds),
		grpc.WithChainUnaryInterceptor(si.Unary()),
		grpc.WithChainStreamInterceptor(si.Stream()),
	}, cfg.extra...)

	conn, err := grpc.NewClient(address, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("grpcclient: dial %s: %w", address, err)
	}
	return conn, nil
}

func (c *dialConfig) credentials() (credentials.TransportCredentials, error) {
	if c.plaintext {
		if c.caFile != "" || c.serverName != "" {
			return nil, errors.New("TLS settings given for an insecure connection")
		}
		return insecure.NewCredentials(), nil
	}

	tlsConfig, err := c.tlsConfig()
	if err != nil {
		return nil, err
	}
	return credentials.NewTLS(tlsConfig), nil
}

func (c *dialConfig) tlsConfig() (*tls.Config, error) {
	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
		ServerName: c.serverName,
	}
	if c.caFile == "" {
		return tlsConfig, nil
	}

	data, err := os.ReadFile(c.caFile)
	if err != nil {
		return nil, fmt.Errorf("read CA file: %w", err)
	}
	roots := x509.NewCertPool()
	if !roots.AppendCertsFromPEM(data) {
		return nil, fmt.Errorf("no PEM certificates in %s", c.caFile)
	}
	tlsConfig.RootCAs = roots
	return tlsConfig, nil
}
