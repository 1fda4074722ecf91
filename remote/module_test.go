package remote

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/AmmannChristian/go-shellauth/httpclient"
	"github.com/AmmannChristian/go-shellauth/registry"
	"github.com/AmmannChristian/go-shellauth/session"
)

type stubLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *stubLogger) Printf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf(format, args...))
}

func newClient(t *testing.T, token string) *httpclient.Client {
	t.Helper()

	c, err := httpclient.Build(session.NewStatic(token), "https://api.example.com", time.Second)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return c
}

func TestNewModule_Defaults(t *testing.T) {
	m := NewModule("filestorage")

	if m.Name() != "filestorage" {
		t.Errorf("unexpected name %q", m.Name())
	}
	if m.attempts != DefaultAttempts || m.interval != DefaultInterval {
		t.Errorf("unexpected retry budget %d x %v", m.attempts, m.interval)
	}
	if m.Client() != nil {
		t.Error("module should start without a client")
	}
}

func TestModule_Resolve_InjectedWins(t *testing.T) {
	injected := newClient(t, "injected")
	reg := registry.New[*httpclient.Client]()
	_ = reg.Publish(newClient(t, "host"))

	m := NewModule("filestorage", WithClient(injected))

	got, err := m.Resolve(context.Background(), reg.Accessor())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got != injected {
		t.Error("injected client should win over the host client")
	}
}

func TestModule_Resolve_FromHost(t *testing.T) {
	host := newClient(t, "host")
	reg := registry.New[*httpclient.Client]()
	logger := &stubLogger{}

	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = reg.Publish(host)
	}()

	m := NewModule("filestorage", WithRetry(10, 20*time.Millisecond), WithLogger(logger))
	got, err := m.Resolve(context.Background(), reg.Accessor())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got != host {
		t.Error("expected the host client")
	}
	if m.Client() != host {
		t.Error("resolved client should be kept")
	}

	// Kept client is returned without polling again.
	again, err := m.Resolve(context.Background(), nil)
	if err != nil || again != host {
		t.Errorf("expected kept client, got %v, %v", again, err)
	}
}

func TestModule_Resolve_Timeout(t *testing.T) {
	reg := registry.New[*httpclient.Client]()
	m := NewModule("filestorage", WithRetry(3, 10*time.Millisecond))

	_, err := m.Resolve(context.Background(), reg.Accessor())
	if !errors.Is(err, registry.ErrAcquisitionTimeout) {
		t.Fatalf("expected ErrAcquisitionTimeout, got %v", err)
	}
	if m.Client() != nil {
		t.Error("no client should be kept after a failed resolve")
	}
}

func TestModule_Resolve_StandaloneFallback(t *testing.T) {
	reg := registry.New[*httpclient.Client]()
	logger := &stubLogger{}
	m := NewModule("filestorage",
		WithRetry(2, 5*time.Millisecond),
		WithStandalone(Standalone("http://localhost:8000", "mock-token-for-development", time.Second)),
		WithLogger(logger),
	)

	got, err := m.Resolve(context.Background(), reg.Accessor())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got.BaseURL() != "http://localhost:8000" {
		t.Errorf("expected standalone client, got base URL %q", got.BaseURL())
	}
	if st := got.Transport(); st == nil || st.Session.Token() != "mock-token-for-development" {
		t.Error("standalone client should use the development token")
	}
	if len(logger.messages) == 0 {
		t.Error("fallback should be logged")
	}
}

func TestModule_Resolve_StandaloneWithoutAccessor(t *testing.T) {
	m := NewModule("filestorage", WithStandalone(Standalone("http://localhost:8000", "dev", time.Second)))

	if _, err := m.Resolve(context.Background(), nil); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
}

func TestModule_Resolve_StandaloneError(t *testing.T) {
	m := NewModule("filestorage",
		WithRetry(1, 0),
		WithStandalone(func() (*httpclient.Client, error) { return nil, errors.New("no base URL") }),
	)

	_, err := m.Resolve(context.Background(), registry.New[*httpclient.Client]().Accessor())
	if err == nil || err.Error() != `remote: module "filestorage" standalone client: no base URL` {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestModule_Resolve_CancelledSkipsStandalone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := NewModule("filestorage",
		WithRetry(5, time.Second),
		WithStandalone(func() (*httpclient.Client, error) {
			t.Error("standalone should not be used after cancellation")
			return nil, nil
		}),
	)

	_, err := m.Resolve(ctx, registry.New[*httpclient.Client]().Accessor())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestModule_ResolveFromContext(t *testing.T) {
	host := newClient(t, "host")
	reg := registry.New[*httpclient.Client]()
	_ = reg.Publish(host)

	ctx := registry.NewContext(context.Background(), reg)
	got, err := NewModule("filestorage").ResolveFromContext(ctx)
	if err != nil || got != host {
		t.Errorf("expected host client from context, got %v, %v", got, err)
	}

	_, err = NewModule("filestorage", WithRetry(1, 0)).ResolveFromContext(context.Background())
	if !errors.Is(err, registry.ErrAcquisitionTimeout) {
		t.Errorf("expected ErrAcquisitionTimeout without registry, got %v", err)
	}
}
