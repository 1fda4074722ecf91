// Package grpcclient authenticates gRPC client connections with a
// session.Session.
//
// The session interceptors apply the same rules as httpclient.SessionTransport:
// refresh tokens that expire within 30s before the call, retry once after an
// Unauthenticated status with a forced refresh, and send the user back to
// Login when a refresh fails. Streams are only retried while being opened.
//
//	conn, err := grpcclient.Dial("files.example.com:9090", s,
//	    grpcclient.WithTLS("/etc/ssl/internal-ca.pem", ""),
//	)
//	if err != nil {
//	    return err
//	}
//	defer conn.Close()
//
// Connections use TLS 1.2 or newer with the system roots by default.
// WithInsecure is for in-memory and loopback listeners.
package grpcclient
