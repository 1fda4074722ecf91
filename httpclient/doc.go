// Package httpclient builds the shared authenticated HTTP client.
//
// Every request sent through a Client passes through SessionTransport, which
// attaches the bearer token of a session.Session, renews tokens that are about
// to expire, and recovers from a 401 response with one forced refresh and one
// retry. A refresh that fails sends the user back to the login flow through
// Session.Login and surfaces ErrAuthRefreshFailed.
//
// # Features
//
//   - Refresh-ahead: tokens expiring within 30s are renewed before dispatch
//   - Single retry after 401, with request bodies replayed
//   - Concurrent refreshes coalesced into one UpdateToken call
//   - TLS 1.2+ by default, with custom CA/mTLS and optional InsecureSkipVerify
//   - Optional Prometheus counters for refreshes, retries and login redirects
//
// # Quick Start
//
//	client, err := httpclient.Build(s, "https://api.example.com", 10*time.Second)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	var files []File
//	err = client.GetJSON(ctx, "/files", &files)
//
// # Builder
//
//	client, err := httpclient.NewBuilder().
//	    WithSession(s).
//	    WithBaseURL("https://api.example.com").
//	    WithTLS("/path/to/ca.crt", "", "").
//	    WithMetrics(metrics).
//	    Build()
//
// All components are safe for concurrent use if the provided Session is.
package httpclient
