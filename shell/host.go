package shell

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/AmmannChristian/go-shellauth/httpclient"
	"github.com/AmmannChristian/go-shellauth/registry"
	"github.com/AmmannChristian/go-shellauth/session"
)

// ErrUnknownModule is returned by Load for names that were never registered.
var ErrUnknownModule = errors.New("shell: unknown module")

// Logger is an interface for optional logging of startup events.
type Logger interface {
	Printf(format string, args ...any)
}

// Config holds the settings of the shared client built by the host.
type Config struct {
	// BaseURL is the API gateway every module talks to.
	BaseURL string

	// Timeout is the per-request timeout. Zero means httpclient.DefaultTimeout.
	Timeout time.Duration

	// RefreshAhead is the window before expiry in which tokens are renewed.
	// Zero means session.DefaultRefreshAhead.
	RefreshAhead time.Duration
}

// MountFunc attaches the primary view once the shared client is published.
type MountFunc func(ctx context.Context, client *httpclient.Client) error

// SessionInitializer completes identity-provider initialization and returns
// the ready session.
type SessionInitializer func(ctx context.Context) (session.Session, error)

// Module is a remotely loaded consumer of the shared client.
type Module interface {
	Name() string
	Resolve(ctx context.Context, accessor registry.Accessor[*httpclient.Client]) (*httpclient.Client, error)
}

// Host owns the startup sequence: build the shared client, publish it, and
// only then mount. It also keeps the catalog of modules reachable by name.
type Host struct {
	cfg      Config
	registry *registry.Registry[*httpclient.Client]
	client   []httpclient.Option
	logger   Logger

	mu      sync.RWMutex
	modules map[string]Module
}

// Option is a functional option for configuring Host.
type Option func(*Host)

// WithLogger sets a custom logger for startup events.
func WithLogger(logger Logger) Option {
	return func(h *Host) {
		h.logger = logger
	}
}

// WithLoggingEnabled enables logging using the default Go log package.
func WithLoggingEnabled() Option {
	return func(h *Host) {
		h.logger = log.Default()
	}
}

// WithClientOptions passes options to httpclient.Build.
func WithClientOptions(opts ...httpclient.Option) Option {
	return func(h *Host) {
		h.client = append(h.client, opts...)
	}
}

// New creates a host publishing into reg.
func New(cfg Config, reg *registry.Registry[*httpclient.Client], opts ...Option) (*Host, error) {
	if reg == nil {
		return nil, errors.New("shell: registry is required")
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("shell: base URL is required")
	}

	h := &Host{
		cfg:      cfg,
		registry: reg,
		modules:  make(map[string]Module),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Registry returns the registry the host publishes into.
func (h *Host) Registry() *registry.Registry[*httpclient.Client] {
	return h.registry
}

// Start builds the shared client around the ready session s, publishes it,
// and then calls mount. Nothing is mounted if building or publishing fails.
func (h *Host) Start(ctx context.Context, s session.Session, mount MountFunc) (*httpclient.Client, error) {
	if s == nil {
		return nil, errors.New("shell: session is required")
	}

	opts := append([]httpclient.Option{}, h.client...)
	if h.cfg.RefreshAhead > 0 {
		opts = append(opts, httpclient.WithRefreshAheadOption(h.cfg.RefreshAhead))
	}
	if h.logger != nil {
		opts = append(opts, httpclient.WithLoggerOption(h.logger))
	}

	client, err := httpclient.Build(s, h.cfg.BaseURL, h.cfg.Timeout, opts...)
	if err != nil {
		return nil, fmt.Errorf("shell: build client: %w", err)
	}

	if err := h.registry.Publish(client); err != nil {
		return nil, fmt.Errorf("shell: publish client: %w", err)
	}
	h.logf("shell: shared client for %s published", client.BaseURL())

	if mount != nil {
		if err := mount(ctx, client); err != nil {
			return client, fmt.Errorf("shell: mount: %w", err)
		}
	}
	return client, nil
}

// Run waits for init to produce a session and then calls Start.
func (h *Host) Run(ctx context.Context, init SessionInitializer, mount MountFunc) (*httpclient.Client, error) {
	if init == nil {
		return nil, errors.New("shell: session initializer is required")
	}

	s, err := init(ctx)
	if err != nil {
		return nil, fmt.Errorf("shell: identity initialization: %w", err)
	}
	return h.Start(ctx, s, mount)
}

// Register adds m to the catalog under m.Name(). A later registration under
// the same name replaces the earlier one.
func (h *Host) Register(m Module) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.modules[m.Name()] = m
}

// Modules returns the registered module names in sorted order.
func (h *Host) Modules() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.modules))
	for name := range h.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load resolves the shared client for the module registered under name. It
// may run before Start has published; the module decides how long to wait.
func (h *Host) Load(ctx context.Context, name string) (*httpclient.Client, error) {
	h.mu.RLock()
	m, ok := h.modules[name]
	h.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModule, name)
	}

	client, err := m.Resolve(ctx, h.registry.Accessor())
	if err != nil {
		return nil, fmt.Errorf("shell: load module %q: %w", name, err)
	}
	return client, nil
}

func (h *Host) logf(format string, args ...any) {
	if h.logger != nil {
		h.logger.Printf(format, args...)
	}
}
