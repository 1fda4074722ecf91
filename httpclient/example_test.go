package httpclient_test

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/AmmannChristian/go-shellauth/httpclient"
	"github.com/AmmannChristian/go-shellauth/session"
	"github.com/prometheus/client_golang/prometheus"
)

// Example demonstrates building the shared client for an API.
func Example() {
	s := session.NewStatic("mock-token-for-development")

	client, err := httpclient.Build(s, "https://api.example.com", 10*time.Second)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Client for %s with timeout %v\n", client.BaseURL(), client.HTTPClient().Timeout)
	// Output: Client for https://api.example.com with timeout 10s
}

// ExampleNewBuilder demonstrates using the builder pattern.
func ExampleNewBuilder() {
	s := session.NewStatic("mock-token-for-development")

	client, err := httpclient.NewBuilder().
		WithSession(s).
		WithBaseURL("https://api.example.com").
		WithTimeout(60 * time.Second).
		WithoutRedirects().
		Build()
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Client configured with timeout: %v\n", client.HTTPClient().Timeout)
	// Output: Client configured with timeout: 1m0s
}

// ExampleBuilder_WithTLS demonstrates TLS configuration.
func ExampleBuilder_WithTLS() {
	_, err := httpclient.NewBuilder().
		WithSession(session.NewStatic("token")).
		WithTLS(
			"/path/to/ca.crt",     // CA certificate
			"/path/to/client.crt", // Client certificate (optional)
			"/path/to/client.key", // Client key (optional)
		).
		Build()
	if err != nil {
		// In this example, files don't exist, so we expect an error
		fmt.Println("TLS configuration attempted")
		return
	}

	fmt.Println("TLS configured")
	// Output: TLS configuration attempted
}

// ExampleNewMetrics demonstrates registering the refresh counters.
func ExampleNewMetrics() {
	metrics, err := httpclient.NewMetrics(prometheus.NewRegistry())
	if err != nil {
		log.Fatal(err)
	}

	_, err = httpclient.Build(session.NewStatic("token"), "https://api.example.com", 0,
		httpclient.WithMetricsOption(metrics),
	)
	fmt.Println(err == nil)
	// Output: true
}

// ExampleNewSessionTransport demonstrates wrapping a transport manually.
func ExampleNewSessionTransport() {
	transport := httpclient.NewSessionTransport(session.NewStatic("token"), nil)
	client := &http.Client{Transport: transport}

	fmt.Printf("Transport type: %T\n", client.Transport)
	// Output: Transport type: *httpclient.SessionTransport
}
