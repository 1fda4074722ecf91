package session

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultRefreshAhead is the window before expiry in which a token is renewed
// proactively.
const DefaultRefreshAhead = 30 * time.Second

// RefreshReason labels why a refresh was requested.
type RefreshReason string

const (
	// ReasonAhead marks proactive refreshes close to expiry.
	ReasonAhead RefreshReason = "ahead"
	// ReasonUnauthorized marks forced refreshes after the server rejected a token.
	ReasonUnauthorized RefreshReason = "unauthorized"
)

// RefreshObserver is notified once per refresh actually sent to the session,
// not once per waiting caller.
type RefreshObserver func(reason RefreshReason, err error)

// Refresher coalesces concurrent refresh requests against one Session.
// Callers that need a refresh for the same reason at the same time share a
// single UpdateToken call. When that call fails, Login is triggered once for
// the whole group.
type Refresher struct {
	session  Session
	ahead    time.Duration
	observer RefreshObserver
	flight   singleflight.Group
}

// NewRefresher creates a Refresher. A non-positive ahead uses DefaultRefreshAhead.
func NewRefresher(s Session, ahead time.Duration, observer RefreshObserver) *Refresher {
	if ahead <= 0 {
		ahead = DefaultRefreshAhead
	}
	return &Refresher{
		session:  s,
		ahead:    ahead,
		observer: observer,
	}
}

// Session returns the wrapped session.
func (r *Refresher) Session() Session { return r.session }

// Ahead returns the refresh-ahead window.
func (r *Refresher) Ahead() time.Duration { return r.ahead }

// NeedsRefresh reports whether the token expires within the refresh-ahead
// window. Unknown expiry never needs a proactive refresh.
func (r *Refresher) NeedsRefresh() bool {
	exp := r.session.Expiry()
	if exp.IsZero() {
		return false
	}
	return time.Until(exp) < r.ahead
}

// RefreshAhead asks for at least the refresh-ahead window of validity.
func (r *Refresher) RefreshAhead(ctx context.Context) error {
	return r.refresh(ctx, ReasonAhead, r.ahead)
}

// ForceRefresh refreshes regardless of the cached expiry.
func (r *Refresher) ForceRefresh(ctx context.Context) error {
	return r.refresh(ctx, ReasonUnauthorized, ForceRefresh)
}

func (r *Refresher) refresh(ctx context.Context, reason RefreshReason, minValidity time.Duration) error {
	// The refresh outlives any single waiter.
	ctx = context.WithoutCancel(ctx)

	_, err, _ := r.flight.Do(string(reason), func() (any, error) {
		_, err := r.session.UpdateToken(ctx, minValidity)
		if r.observer != nil {
			r.observer(reason, err)
		}
		if err != nil {
			r.session.Login()
			return nil, fmt.Errorf("%w: %w", ErrAuthRefreshFailed, err)
		}
		return nil, nil
	})
	return err
}
