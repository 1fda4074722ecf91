package grpcclient

import (
	"context"
	"time"

	"github.com/AmmannChristian/go-shellauth/session"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// Logger is an interface for optional logging of refresh and retry events.
type Logger interface {
	Printf(format string, args ...any)
}

// SessionInterceptor authenticates RPCs with the bearer token of a
// session.Session. It follows the same contract as httpclient.SessionTransport:
// tokens expiring within the refresh-ahead window are renewed before the
// call, an Unauthenticated status triggers one forced refresh and one retry,
// and a failed refresh calls Login and returns session.ErrAuthRefreshFailed.
type SessionInterceptor struct {
	session   session.Session
	refresher *session.Refresher
	logger    Logger
}

// NewSessionInterceptor creates an interceptor for s. A non-positive
// refreshAhead means session.DefaultRefreshAhead.
func NewSessionInterceptor(s session.Session, refreshAhead time.Duration, logger Logger) *SessionInterceptor {
	return &SessionInterceptor{
		session:   s,
		refresher: session.NewRefresher(s, refreshAhead, nil),
		logger:    logger,
	}
}

// Unary returns a gRPC unary client interceptor.
//
// Usage:
//
//	conn, err := grpc.NewClient(
//	    "server:9090",
//	    grpc.WithUnaryInterceptor(si.Unary()),
//	)
func (si *SessionInterceptor) Unary() grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context,
		method string,
		req, reply any,
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		if err := si.beforeCall(ctx); err != nil {
			return err
		}

		err := invoker(si.withToken(ctx), method, req, reply, cc, opts...)
		if status.Code(err) != codes.Unauthenticated {
			return err
		}

		if err := si.reauthenticate(ctx, method); err != nil {
			return err
		}
		return invoker(si.withToken(ctx), method, req, reply, cc, opts...)
	}
}

// Stream returns a gRPC stream client interceptor. Only stream creation is
// retried; an Unauthenticated status received later on the stream is
// returned to the caller.
//
// Usage:
//
//	conn, err := grpc.NewClient(
//	    "server:9090",
//	    grpc.WithStreamInterceptor(si.Stream()),
//	)
func (si *SessionInterceptor) Stream() grpc.StreamClientInterceptor {
	return func(
		ctx context.Context,
		desc *grpc.StreamDesc,
		cc *grpc.ClientConn,
		method string,
		streamer grpc.Streamer,
		opts ...grpc.CallOption,
	) (grpc.ClientStream, error) {
		if err := si.beforeCall(ctx); err != nil {
			return nil, err
		}

		cs, err := streamer(si.withToken(ctx), desc, cc, method, opts...)
		if status.Code(err) != codes.Unauthenticated {
			return cs, err
		}

		if err := si.reauthenticate(ctx, method); err != nil {
			return nil, err
		}
		return streamer(si.withToken(ctx), desc, cc, method, opts...)
	}
}

func (si *SessionInterceptor) beforeCall(ctx context.Context) error {
	if !si.session.Authenticated() || !si.refresher.NeedsRefresh() {
		return nil
	}
	if err := si.refresher.RefreshAhead(ctx); err != nil {
		si.logf("grpcclient: token refresh failed: %v", err)
		return err
	}
	return nil
}

func (si *SessionInterceptor) reauthenticate(ctx context.Context, method string) error {
	if err := si.refresher.ForceRefresh(ctx); err != nil {
		si.logf("grpcclient: token refresh after Unauthenticated on %s failed: %v", method, err)
		return err
	}
	si.logf("grpcclient: retrying %s with refreshed token", method)
	return nil
}

// withToken adds the bearer token to the outgoing metadata of ctx. ctx is
// always the caller's original context, so a retry never carries two tokens.
func (si *SessionInterceptor) withToken(ctx context.Context) context.Context {
	if !si.session.Authenticated() {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+si.session.Token())
}

func (si *SessionInterceptor) logf(format string, args ...any) {
	if si.logger != nil {
		si.logger.Printf(format, args...)
	}
}
