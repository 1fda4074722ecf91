package remote

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/AmmannChristian/go-shellauth/httpclient"
	"github.com/AmmannChristian/go-shellauth/registry"
	"github.com/AmmannChristian/go-shellauth/session"
)

const (
	// DefaultAttempts is how many times Resolve polls the accessor.
	DefaultAttempts = 10

	// DefaultInterval is the wait between two polls.
	DefaultInterval = 100 * time.Millisecond
)

// Logger is an interface for optional logging of resolution events.
type Logger interface {
	Printf(format string, args ...any)
}

// StandaloneFunc builds a client for running the module without a host.
type StandaloneFunc func() (*httpclient.Client, error)

// Module is the remote side of the client handoff. It obtains the host's
// shared client and keeps it for later calls.
type Module struct {
	name       string
	injected   *httpclient.Client
	attempts   int
	interval   time.Duration
	standalone StandaloneFunc
	logger     Logger

	resolved atomic.Pointer[httpclient.Client]
}

// Option is a functional option for configuring Module.
type Option func(*Module)

// WithClient injects a client directly. Resolve then never polls.
func WithClient(c *httpclient.Client) Option {
	return func(m *Module) {
		m.injected = c
	}
}

// WithRetry sets the polling budget used when no client was injected.
func WithRetry(attempts int, interval time.Duration) Option {
	return func(m *Module) {
		m.attempts = attempts
		m.interval = interval
	}
}

// WithStandalone sets the fallback used when the host never publishes.
func WithStandalone(fn StandaloneFunc) Option {
	return func(m *Module) {
		m.standalone = fn
	}
}

// WithLogger sets a custom logger for resolution events.
func WithLogger(logger Logger) Option {
	return func(m *Module) {
		m.logger = logger
	}
}

// WithLoggingEnabled enables logging using the default Go log package.
func WithLoggingEnabled() Option {
	return func(m *Module) {
		m.logger = log.Default()
	}
}

// NewModule creates a module called name.
func NewModule(name string, opts ...Option) *Module {
	m := &Module{
		name:     name,
		attempts: DefaultAttempts,
		interval: DefaultInterval,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name returns the module name.
func (m *Module) Name() string {
	return m.name
}

// Client returns the client obtained by a successful Resolve, or nil.
func (m *Module) Client() *httpclient.Client {
	return m.resolved.Load()
}

// Resolve returns the client the module should use. An injected client wins.
// Otherwise accessor is polled within the retry budget; when that runs out
// and a standalone fallback is configured, its client is used instead.
func (m *Module) Resolve(ctx context.Context, accessor registry.Accessor[*httpclient.Client]) (*httpclient.Client, error) {
	if c := m.resolved.Load(); c != nil {
		return c, nil
	}
	if m.injected != nil {
		return m.keep(m.injected, "injected"), nil
	}

	var err error
	if accessor != nil {
		var c *httpclient.Client
		c, err = registry.Retry(ctx, accessor, m.attempts, m.interval)
		if err == nil {
			return m.keep(c, "host"), nil
		}
	} else {
		err = fmt.Errorf("%w: no accessor", registry.ErrAcquisitionTimeout)
	}

	if !errors.Is(err, registry.ErrAcquisitionTimeout) || m.standalone == nil {
		return nil, fmt.Errorf("remote: module %q could not obtain the shared client: %w", m.name, err)
	}

	m.logf("remote: module %q found no host client, running standalone: %v", m.name, err)
	c, serr := m.standalone()
	if serr != nil {
		return nil, fmt.Errorf("remote: module %q standalone client: %w", m.name, serr)
	}
	return m.keep(c, "standalone"), nil
}

// ResolveFromContext resolves through the registry carried by ctx, if any.
func (m *Module) ResolveFromContext(ctx context.Context) (*httpclient.Client, error) {
	var accessor registry.Accessor[*httpclient.Client]
	if reg, ok := registry.FromContext[*httpclient.Client](ctx); ok {
		accessor = reg.Accessor()
	}
	return m.Resolve(ctx, accessor)
}

// keep stores c unless another Resolve got there first, and returns the
// stored client.
func (m *Module) keep(c *httpclient.Client, source string) *httpclient.Client {
	if m.resolved.CompareAndSwap(nil, c) {
		m.logf("remote: module %q using %s client", m.name, source)
		return c
	}
	return m.resolved.Load()
}

func (m *Module) logf(format string, args ...any) {
	if m.logger != nil {
		m.logger.Printf(format, args...)
	}
}

// Standalone returns a StandaloneFunc that builds a client around a fixed
// development token.
func Standalone(baseURL, token string, timeout time.Duration, opts ...httpclient.Option) StandaloneFunc {
	return func() (*httpclient.Client, error) {
		return httpclient.Build(session.NewStatic(token), baseURL, timeout, opts...)
	}
}
