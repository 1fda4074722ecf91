package grpcclient_test

import (
	"context"
	"fmt"
	"log"

	"github.com/AmmannChristian/go-shellauth/grpcclient"
	"github.com/AmmannChristian/go-shellauth/session"
)

// Example dials a server with a user session. Connections are lazy, so no
// server is contacted until the first RPC.
func Example() {
	conn, err := grpcclient.Dial("files.example.com:9090", session.NewStatic("mock-token-for-development"))
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	fmt.Println("connection ready")
	// Output: connection ready
}

// ExampleDial_clientCredentials authenticates as a service identity.
func ExampleDial_clientCredentials() {
	cc, err := session.NewClientCredentials(context.Background(),
		"https://sso.example.com/realms/main/protocol/openid-connect/token",
		"file-indexer", "client-secret", "openid")
	if err != nil {
		log.Fatal(err)
	}

	conn, err := grpcclient.Dial("files.example.com:9090", cc,
		grpcclient.WithTLS("", "files.example.com"))
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	fmt.Println("service identity configured")
	// Output: service identity configured
}
