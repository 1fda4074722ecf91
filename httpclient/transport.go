package httpclient

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/AmmannChristian/go-shellauth/session"
)

// ErrAuthRefreshFailed is returned when the session could not refresh its
// token. The session's Login entry point has already been triggered.
var ErrAuthRefreshFailed = session.ErrAuthRefreshFailed

// SessionTransport is an http.RoundTripper that authenticates outgoing
// requests with the bearer token of a session.Session.
//
// Before dispatch it renews tokens that expire within RefreshAhead. After a
// 401 response it forces a refresh and re-issues the request exactly once.
// When a refresh fails it triggers the session's Login and returns
// ErrAuthRefreshFailed without sending (or re-sending) the request.
//
// Fields must not be modified after the first RoundTrip.
type SessionTransport struct {
	// Base is the underlying HTTP transport. If nil, http.DefaultTransport is used.
	Base http.RoundTripper

	// Session provides bearer tokens.
	Session session.Session

	// RefreshAhead is the window before expiry in which tokens are renewed.
	// Zero means session.DefaultRefreshAhead.
	RefreshAhead time.Duration

	// Logger receives refresh and retry events. Optional.
	Logger Logger

	// Metrics counts refreshes, retries and login redirects. Optional.
	Metrics *Metrics

	once      sync.Once
	refresher *session.Refresher
}

// NewSessionTransport creates a SessionTransport for s.
// The base transport defaults to http.DefaultTransport if not specified.
func NewSessionTransport(s session.Session, base http.RoundTripper) *SessionTransport {
	if base == nil {
		base = http.DefaultTransport
	}

	return &SessionTransport{
		Base:    base,
		Session: s,
	}
}

func (t *SessionTransport) init() {
	t.refresher = session.NewRefresher(t.Session, t.RefreshAhead, func(reason session.RefreshReason, err error) {
		t.Metrics.observeRefresh(reason, err)
		if err != nil {
			t.Metrics.observeLogin()
		}
	})
}

// RoundTrip implements the http.RoundTripper interface.
func (t *SessionTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Session == nil {
		if req.Body != nil {
			_ = req.Body.Close()
		}
		return nil, errors.New("httpclient: Session is nil")
	}
	t.once.Do(t.init)

	ex := &exchange{
		transport: t,
		refresher: t.refresher,
		req:       req,
		state:     statePending,
	}
	return ex.run()
}

func (t *SessionTransport) base() http.RoundTripper {
	if t.Base == nil {
		return http.DefaultTransport
	}
	return t.Base
}

func (t *SessionTransport) logf(format string, args ...any) {
	if t.Logger != nil {
		t.Logger.Printf(format, args...)
	}
}

// state is a step of one request's authentication lifecycle:
//
//	pending → token-check → [refreshing] → dispatched → settled
//	                                            └ 401 → reauthenticating → retried → settled
//
// Every failing transition moves straight to settled with an error.
type state int

const (
	statePending state = iota
	stateTokenCheck
	stateRefreshing
	stateDispatched
	stateReauthenticating
	stateRetried
	stateSettled
)

func (s state) String() string {
	switch s {
	case statePending:
		return "pending"
	case stateTokenCheck:
		return "token-check"
	case stateRefreshing:
		return "refreshing"
	case stateDispatched:
		return "dispatched"
	case stateReauthenticating:
		return "reauthenticating"
	case stateRetried:
		return "retried"
	case stateSettled:
		return "settled"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// exchange drives one RoundTrip through the state machine.
type exchange struct {
	transport *SessionTransport
	refresher *session.Refresher
	req       *http.Request
	state     state

	getBody  func() (io.ReadCloser, error)
	buffered bool // original body was drained into memory
	sent     bool // original body handed to the base transport

	resp *http.Response
	err  error
}

func (ex *exchange) run() (*http.Response, error) {
	for ex.state != stateSettled {
		ex.step()
	}
	return ex.resp, ex.err
}

func (ex *exchange) step() {
	ctx := ex.req.Context()

	switch ex.state {
	case statePending:
		if err := ex.prepareBody(); err != nil {
			ex.fail(err)
			return
		}
		ex.state = stateTokenCheck

	case stateTokenCheck:
		switch {
		case !ex.transport.Session.Authenticated():
			ex.state = stateDispatched
		case ex.refresher.NeedsRefresh():
			ex.state = stateRefreshing
		default:
			ex.state = stateDispatched
		}

	case stateRefreshing:
		if err := ex.refresher.RefreshAhead(ctx); err != nil {
			ex.transport.logf("httpclient: token refresh before %s %s failed: %v", ex.req.Method, ex.req.URL.Redacted(), err)
			ex.fail(err)
			return
		}
		ex.state = stateDispatched

	case stateDispatched:
		resp, err := ex.send()
		if err != nil {
			ex.settle(nil, err)
			return
		}
		if resp.StatusCode != http.StatusUnauthorized {
			ex.settle(resp, nil)
			return
		}
		discard(resp)
		ex.state = stateReauthenticating

	case stateReauthenticating:
		if err := ex.refresher.ForceRefresh(ctx); err != nil {
			ex.transport.logf("httpclient: token refresh after 401 on %s %s failed: %v", ex.req.Method, ex.req.URL.Redacted(), err)
			ex.fail(err)
			return
		}
		ex.state = stateRetried

	case stateRetried:
		ex.transport.Metrics.observeRetry()
		ex.transport.logf("httpclient: retrying %s %s with refreshed token", ex.req.Method, ex.req.URL.Redacted())
		// Whatever comes back is final, including another 401.
		ex.settle(ex.send())
	}
}

// prepareBody makes the request body replayable for the single retry.
func (ex *exchange) prepareBody() error {
	req := ex.req
	if req.Body == nil || req.Body == http.NoBody {
		return nil
	}
	if req.GetBody != nil {
		ex.getBody = req.GetBody
		return nil
	}

	data, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	ex.buffered = true
	if err != nil {
		return fmt.Errorf("httpclient: buffer request body: %w", err)
	}
	ex.getBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	return nil
}

// send dispatches a fresh clone of the original request, carrying the
// session's current token when the session is authenticated.
func (ex *exchange) send() (*http.Response, error) {
	out := ex.req.Clone(ex.req.Context())

	if ex.getBody != nil && (ex.buffered || ex.sent) {
		body, err := ex.getBody()
		if err != nil {
			return nil, fmt.Errorf("httpclient: rewind request body: %w", err)
		}
		out.Body = body
	}
	ex.sent = true

	if ex.transport.Session.Authenticated() {
		out.Header.Set("Authorization", "Bearer "+ex.transport.Session.Token())
	}

	return ex.transport.base().RoundTrip(out)
}

func (ex *exchange) settle(resp *http.Response, err error) {
	ex.resp = resp
	ex.err = err
	ex.state = stateSettled
}

// fail settles with err, closing the original body if nobody else will.
func (ex *exchange) fail(err error) {
	if !ex.sent && !ex.buffered && ex.req.Body != nil {
		_ = ex.req.Body.Close()
	}
	ex.settle(nil, err)
}

// discard drains and closes a response that will not reach the caller so the
// connection can be reused.
func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}
