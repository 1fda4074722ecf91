package testutil

import (
	"context"
	"sync"
	"time"
)

// FakeSession is an in-memory session.Session. Refreshes succeed with the
// configured next token unless a refresh error is set. All calls are recorded.
type FakeSession struct {
	mu            sync.Mutex
	authenticated bool
	token         string
	expiry        time.Time

	nextToken  string
	nextExpiry time.Time
	refreshErr error
	delay      time.Duration

	updates []time.Duration
	logins  int
}

// NewFakeSession returns an authenticated session holding token until expiry.
func NewFakeSession(token string, expiry time.Time) *FakeSession {
	return &FakeSession{
		authenticated: token != "",
		token:         token,
		expiry:        expiry,
		nextToken:     token + "-refreshed",
		nextExpiry:    time.Now().Add(time.Hour),
	}
}

// SetRefreshResult configures the outcome of the next refreshes.
func (s *FakeSession) SetRefreshResult(token string, expiry time.Time, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextToken = token
	s.nextExpiry = expiry
	s.refreshErr = err
}

// SetRefreshDelay makes every refresh block for d before settling.
func (s *FakeSession) SetRefreshDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// Authenticated implements session.Session.
func (s *FakeSession) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated
}

// Token implements session.Session.
func (s *FakeSession) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Expiry implements session.Session.
func (s *FakeSession) Expiry() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expiry
}

// UpdateToken implements session.Session.
func (s *FakeSession) UpdateToken(_ context.Context, minValidity time.Duration) (bool, error) {
	s.mu.Lock()
	s.updates = append(s.updates, minValidity)
	delay := s.delay
	s.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.refreshErr != nil {
		return false, s.refreshErr
	}
	if minValidity >= 0 && time.Until(s.expiry) >= minValidity {
		return false, nil
	}

	s.token = s.nextToken
	s.expiry = s.nextExpiry
	s.authenticated = s.token != ""
	return true, nil
}

// Login implements session.Session.
func (s *FakeSession) Login() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logins++
}

// Updates returns the minValidity of every UpdateToken call.
func (s *FakeSession) Updates() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.updates...)
}

// Logins returns how many times Login was called.
func (s *FakeSession) Logins() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logins
}
